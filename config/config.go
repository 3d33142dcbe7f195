// Package config implements functions to assist with attribute evaluation for a pseudo-lidar run.
package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"github.com/viam-modules/pseudo-lidar/depth"
)

const (
	// DefaultSensorName is used in output filenames when sensor_name is not set.
	DefaultSensorName = "pseudo_lidar"
	// DefaultDepthScale is the KITTI 16-bit depth PNG convention.
	DefaultDepthScale = depth.KITTIScale
)

// newError returns an error specific to a failure in the pseudo-lidar config.
func newError(configError string) error {
	return errors.Errorf("pseudo-lidar configuration error: %s", configError)
}

// Config describes how to turn one depth image into a point cloud.
type Config struct {
	CalibrationFile string   `json:"calibration_file"`
	DepthFile       string   `json:"depth_file"`
	DepthScale      float64  `json:"depth_scale"`
	DepthChannel    *int     `json:"depth_channel"`
	MaxHeight       *float64 `json:"max_height"`
	MinForward      *float64 `json:"min_forward"`
	OutputDir       string   `json:"output_dir"`
	SensorName      string   `json:"sensor_name"`
}

// Validate checks that all required fields are present and that numeric fields are in range.
func (config *Config) Validate(path string) error {
	if config.CalibrationFile == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "calibration_file")
	}

	if config.DepthFile == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "depth_file")
	}

	if config.OutputDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "output_dir")
	}

	if config.MaxHeight == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "max_height")
	}

	if config.DepthScale < 0 {
		return errors.New("cannot specify depth_scale less than zero")
	}

	if config.DepthChannel != nil && *config.DepthChannel < 0 {
		return errors.New("cannot specify depth_channel less than zero")
	}

	return nil
}

// GetOptionalParameters returns the depth scale, depth channel, minimum forward distance and sensor name,
// substituting defaults for any that are unset.
func GetOptionalParameters(config *Config, logger logging.Logger) (float64, int, float64, string) {
	depthScale := config.DepthScale
	if config.DepthScale == 0 {
		depthScale = DefaultDepthScale
		logger.Debugf("no depth_scale given, setting to default value of %v", DefaultDepthScale)
	}

	depthChannel := 0
	if config.DepthChannel == nil {
		logger.Debug("no depth_channel given, reading depth from channel 0")
	} else {
		depthChannel = *config.DepthChannel
	}

	minForward := 0.0
	if config.MinForward == nil {
		logger.Debug("no min_forward given, dropping points behind the vehicle origin")
	} else {
		minForward = *config.MinForward
	}

	sensorName := config.SensorName
	if config.SensorName == "" {
		sensorName = DefaultSensorName
		logger.Debugf("no sensor_name given, setting to default value of %q", DefaultSensorName)
	}

	return depthScale, depthChannel, minForward, sensorName
}

// Load reads a JSON config from path and validates it.
func Load(path string) (*Config, error) {
	//nolint:gosec
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	var config Config
	if err := json.Unmarshal(b, &config); err != nil {
		return nil, newError(err.Error())
	}
	if err := config.Validate(path); err != nil {
		return nil, newError(err.Error())
	}
	return &config, nil
}
