// Package main converts a depth image and its calibration into a vehicle frame point cloud.
package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"github.com/viam-modules/pseudo-lidar/calib"
	"github.com/viam-modules/pseudo-lidar/config"
	"github.com/viam-modules/pseudo-lidar/dataprocess"
	"github.com/viam-modules/pseudo-lidar/depth"
	"github.com/viam-modules/pseudo-lidar/telemetry"
	"github.com/viam-modules/pseudo-lidar/unproject"
)

// Versioning variables which are replaced by LD flags.
var (
	Version     = "development"
	GitRevision = ""
)

const name = "depth2lidar"

func main() {
	utils.ContextualMain(mainWithArgs, logging.NewLogger(name))
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=JSON run configuration file"`
	Out        string `flag:"out,usage=output directory, overrides output_dir from the config"`
	Telemetry  bool   `flag:"telemetry,usage=report spans and stats to the console"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	var versionFields []interface{}
	if Version != "" {
		versionFields = append(versionFields, "version", Version)
	}
	if GitRevision != "" {
		versionFields = append(versionFields, "git_rev", GitRevision)
	}
	if len(versionFields) != 0 {
		logger.Infow(name, versionFields...)
	} else {
		logger.Info(name + " built from source; version unknown")
	}

	if len(args) == 2 && strings.HasSuffix(args[1], "-version") {
		return nil
	}

	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg, err := config.Load(argsParsed.ConfigFile)
	if err != nil {
		return err
	}
	if argsParsed.Out != "" {
		cfg.OutputDir = argsParsed.Out
	}

	if argsParsed.Telemetry {
		exporter, err := telemetry.SetupTelemetry()
		if err != nil {
			return err
		}
		defer exporter.Stop()
	}

	_, err = run(ctx, cfg, logger)
	return err
}

// run produces one .bin point cloud from cfg and returns its filename.
func run(ctx context.Context, cfg *config.Config, logger logging.Logger) (string, error) {
	depthScale, depthChannel, minForward, sensorName := config.GetOptionalParameters(cfg, logger)

	c, err := calib.ParseFile(cfg.CalibrationFile)
	if err != nil {
		return "", err
	}
	grid, err := depth.ReadFile(cfg.DepthFile, depthScale)
	if err != nil {
		return "", err
	}
	logger.Debugw("loaded inputs",
		"calibration", cfg.CalibrationFile,
		"depth", cfg.DepthFile,
		"rows", grid.Rows(),
		"cols", grid.Cols(),
		"channels", grid.Channels(),
	)

	pts, err := unproject.Unproject(ctx, c, grid, unproject.Options{
		DepthChannel: depthChannel,
		MaxHeight:    *cfg.MaxHeight,
		MinForward:   minForward,
	})
	if err != nil {
		return "", err
	}

	if len(pts) > 0 {
		pc, err := unproject.ToPointCloud(pts)
		if err != nil {
			return "", err
		}
		meta := pc.MetaData()
		logger.Debugw("point cloud bounds",
			"min_x", meta.MinX, "max_x", meta.MaxX,
			"min_y", meta.MinY, "max_y", meta.MaxY,
			"min_z", meta.MinZ, "max_z", meta.MaxZ,
		)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
		return "", errors.Wrap(err, "error creating output directory")
	}
	filename := dataprocess.CreateTimestampFilename(cfg.OutputDir, sensorName, dataprocess.BinExt, time.Now())
	if err := dataprocess.WriteBinToFile(pts, filename); err != nil {
		return "", errors.Wrapf(err, "error writing %s", filename)
	}
	logger.Infow("wrote point cloud", "file", filename, "points", len(pts), "pixels", grid.Rows()*grid.Cols())
	return filename, nil
}
