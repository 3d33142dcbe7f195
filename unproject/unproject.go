// Package unproject turns dense depth images into vehicle frame point clouds.
package unproject

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/stats"
	"go.opencensus.io/trace"
	"go.viam.com/rdk/pointcloud"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-modules/pseudo-lidar/calib"
	"github.com/viam-modules/pseudo-lidar/depth"
)

// ErrInvalidChannel denotes a depth channel index that the grid does not have.
var ErrInvalidChannel = errors.New("depth channel out of range")

var (
	// PixelsIn counts the image points handed to the vehicle transform.
	PixelsIn = stats.Int64("pseudolidar/unproject/pixels_in", "image points back-projected", stats.UnitDimensionless)
	// PointsKept counts the points that survived filtering.
	PointsKept = stats.Int64("pseudolidar/unproject/points_kept", "points kept after filtering", stats.UnitDimensionless)
)

// Options controls which depth channel is read and which points are kept.
type Options struct {
	// DepthChannel is the channel of the depth grid that holds depth.
	DepthChannel int
	// MaxHeight drops points whose vehicle frame z is not strictly below it.
	MaxHeight float64
	// MinForward drops points whose vehicle frame x is below it.
	MinForward float64
}

func (opts Options) keeps(x, z float64) bool {
	return x >= opts.MinForward && z < opts.MaxHeight
}

// DefaultOptions reads depth from the first channel and drops points behind the vehicle origin.
func DefaultOptions(maxHeight float64) Options {
	return Options{MaxHeight: maxHeight}
}

// Unproject back-projects every pixel of grid into the vehicle frame with a single batched transform
// and returns the points that pass Filter, in row-major pixel order. Coordinates are transformed in one
// rows*cols x 3 buffer and survivors are copied out once.
func Unproject(ctx context.Context, c *calib.Calibration, grid depth.Grid, opts Options) ([]r3.Vector, error) {
	ctx, span := trace.StartSpan(ctx, "pseudolidar::unproject::Unproject")
	defer span.End()

	if opts.DepthChannel < 0 || opts.DepthChannel >= grid.Channels() {
		return nil, errors.Wrapf(ErrInvalidChannel, "channel %d requested from a grid with %d channel(s)",
			opts.DepthChannel, grid.Channels())
	}

	n := grid.Rows() * grid.Cols()
	var kept []r3.Vector
	if n == 0 {
		if _, err := c.RectificationInverse(); err != nil {
			return nil, errors.Wrap(err, "error transforming image points to the vehicle frame")
		}
		kept = []r3.Vector{}
	} else {
		coords := imageCoordinates(grid, opts.DepthChannel)
		if err := c.ImageToVehicleDense(coords); err != nil {
			return nil, errors.Wrap(err, "error transforming image points to the vehicle frame")
		}
		kept = filterRows(coords.RawMatrix(), opts)
	}

	stats.Record(ctx, PixelsIn.M(int64(n)), PointsKept.M(int64(len(kept))))
	span.AddAttributes(
		trace.Int64Attribute("pixels", int64(n)),
		trace.Int64Attribute("kept", int64(len(kept))),
	)
	return kept, nil
}

// imageCoordinates lays out one (col, row, depth) row per pixel, row outer and column inner.
func imageCoordinates(grid depth.Grid, channel int) *mat.Dense {
	rows, cols := grid.Rows(), grid.Cols()
	data := make([]float64, 0, 3*rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			data = append(data, float64(col), float64(row), grid.At(row, col, channel))
		}
	}
	return mat.NewDense(rows*cols, 3, data)
}

func filterRows(raw blas64.General, opts Options) []r3.Vector {
	keep := func(i int) bool {
		row := raw.Data[i*raw.Stride:]
		return opts.keeps(row[0], row[2])
	}
	count := 0
	for i := 0; i < raw.Rows; i++ {
		if keep(i) {
			count++
		}
	}
	kept := make([]r3.Vector, 0, count)
	for i := 0; i < raw.Rows; i++ {
		if keep(i) {
			row := raw.Data[i*raw.Stride:]
			kept = append(kept, r3.Vector{X: row[0], Y: row[1], Z: row[2]})
		}
	}
	return kept
}

// ImagePoints returns one (col, row, depth) point per pixel, row outer and column inner.
func ImagePoints(grid depth.Grid, channel int) []r3.Vector {
	rows, cols := grid.Rows(), grid.Cols()
	pts := make([]r3.Vector, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			pts = append(pts, r3.Vector{X: float64(col), Y: float64(row), Z: grid.At(row, col, channel)})
		}
	}
	return pts
}

// Filter keeps the points with x >= opts.MinForward and z < opts.MaxHeight, preserving order.
// The result is sized to the survivors.
func Filter(pts []r3.Vector, opts Options) []r3.Vector {
	count := 0
	for _, p := range pts {
		if opts.keeps(p.X, p.Z) {
			count++
		}
	}
	kept := make([]r3.Vector, 0, count)
	for _, p := range pts {
		if opts.keeps(p.X, p.Z) {
			kept = append(kept, p)
		}
	}
	return kept
}

// Homogeneous appends 1 to every point.
func Homogeneous(pts []r3.Vector) [][4]float64 {
	out := make([][4]float64, len(pts))
	for i, p := range pts {
		out[i] = [4]float64{p.X, p.Y, p.Z, 1}
	}
	return out
}

// ToPointCloud copies the points into an rdk point cloud for in-process consumers.
func ToPointCloud(pts []r3.Vector) (pointcloud.PointCloud, error) {
	pc := pointcloud.NewWithPrealloc(len(pts))
	for _, p := range pts {
		if err := pc.Set(p, pointcloud.NewBasicData()); err != nil {
			return nil, errors.Wrapf(err, "error setting point (%v, %v, %v) in point cloud", p.X, p.Y, p.Z)
		}
	}
	return pc, nil
}
