// Package depth holds dense per-pixel depth buffers and loads them from images and depth maps.
package depth

import (
	"fmt"
)

// Grid is a rows x cols buffer of depth samples with one or more channels per pixel.
type Grid interface {
	Rows() int
	Cols() int
	Channels() int
	At(row, col, channel int) float64
}

// Dense is a Grid backed by a single row-major slice.
type Dense struct {
	rows     int
	cols     int
	channels int
	data     []float64
}

// NewDense allocates a zeroed grid. It panics if any extent is negative or channels is zero.
func NewDense(rows, cols, channels int) *Dense {
	if rows < 0 || cols < 0 || channels <= 0 {
		panic(fmt.Sprintf("depth: invalid grid shape %dx%dx%d", rows, cols, channels))
	}
	return &Dense{
		rows:     rows,
		cols:     cols,
		channels: channels,
		data:     make([]float64, rows*cols*channels),
	}
}

// Rows returns the image height.
func (d *Dense) Rows() int {
	return d.rows
}

// Cols returns the image width.
func (d *Dense) Cols() int {
	return d.cols
}

// Channels returns the number of samples stored per pixel.
func (d *Dense) Channels() int {
	return d.channels
}

// At returns the sample at (row, col, channel).
func (d *Dense) At(row, col, channel int) float64 {
	return d.data[d.index(row, col, channel)]
}

// Set stores the sample at (row, col, channel).
func (d *Dense) Set(row, col, channel int, v float64) {
	d.data[d.index(row, col, channel)] = v
}

// SetPixel stores v in every channel of (row, col).
func (d *Dense) SetPixel(row, col int, v float64) {
	for ch := 0; ch < d.channels; ch++ {
		d.Set(row, col, ch, v)
	}
}

func (d *Dense) index(row, col, channel int) int {
	if row < 0 || row >= d.rows || col < 0 || col >= d.cols || channel < 0 || channel >= d.channels {
		panic(fmt.Sprintf("depth: index (%d, %d, %d) out of range for %dx%dx%d grid",
			row, col, channel, d.rows, d.cols, d.channels))
	}
	return (row*d.cols+col)*d.channels + channel
}
