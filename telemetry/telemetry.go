// Package telemetry provides setup for reporting spans and stats through opencensus.
package telemetry

import (
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/stats/view"
	"go.viam.com/utils/perf"

	"github.com/viam-modules/pseudo-lidar/unproject"
)

// Views aggregate the unprojection measures.
var (
	PixelsInView = &view.View{
		Name:        "pseudolidar/unproject/pixels_in_total",
		Description: "total image points back-projected",
		Measure:     unproject.PixelsIn,
		Aggregation: view.Sum(),
	}
	PointsKeptView = &view.View{
		Name:        "pseudolidar/unproject/points_kept_total",
		Description: "total points kept after filtering",
		Measure:     unproject.PointsKept,
		Aggregation: view.Sum(),
	}
)

// RegisterViews registers the unprojection views with opencensus.
func RegisterViews() error {
	if err := view.Register(PixelsInView, PointsKeptView); err != nil {
		return errors.Wrap(err, "error registering unprojection views")
	}
	return nil
}

// SetupTelemetry registers the views and starts a development exporter so spans and stats can be reported.
func SetupTelemetry() (perf.Exporter, error) {
	if err := RegisterViews(); err != nil {
		return nil, err
	}
	exporter := perf.NewDevelopmentExporterWithOptions(perf.DevelopmentExporterOptions{
		ReportingInterval: time.Second,
	})
	if err := exporter.Start(); err != nil {
		return nil, err
	}

	return exporter, nil
}
