// Package dataprocess manages code related to saving and reloading generated point clouds.
package dataprocess

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const (
	// TimeFormat is the timestamp format used in output filenames.
	TimeFormat = "2006-01-02T15:04:05.0000Z"
	// BinExt is the extension of flat float32 point records.
	BinExt = ".bin"
	// recordSize is four little-endian float32 values: x, y, z, 1.
	recordSize = 4 * 4
)

// ErrTruncatedRecord denotes a .bin stream whose length is not a whole number of records.
var ErrTruncatedRecord = errors.New("truncated point record")

// CreateTimestampFilename creates an absolute filename with a sensor name and timestamp written
// into the filename.
func CreateTimestampFilename(dataDirectory, sensorName, fileType string, timeStamp time.Time) string {
	return filepath.Join(dataDirectory, sensorName+"_data_"+timeStamp.UTC().Format(TimeFormat)+fileType)
}

// Records flattens points into (x, y, z, 1) float32 records.
func Records(pts []r3.Vector) []float32 {
	out := make([]float32, 0, 4*len(pts))
	for _, p := range pts {
		out = append(out, float32(p.X), float32(p.Y), float32(p.Z), 1)
	}
	return out
}

// WriteBin writes the points as headerless little-endian float32 records.
func WriteBin(w io.Writer, pts []r3.Vector) error {
	return binary.Write(w, binary.LittleEndian, Records(pts))
}

// ReadBin reads records written by WriteBin, discarding the homogeneous coordinate.
func ReadBin(r io.Reader) ([]r3.Vector, error) {
	var pts []r3.Vector
	br := bufio.NewReader(r)
	buf := make([]byte, recordSize)
	for {
		n, err := io.ReadFull(br, buf)
		if errors.Is(err, io.EOF) {
			return pts, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.Wrapf(ErrTruncatedRecord, "record %d has %d of %d bytes", len(pts), n, recordSize)
		}
		if err != nil {
			return nil, err
		}
		pts = append(pts, r3.Vector{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[0:]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[8:]))),
		})
	}
}

// ReadBinFile reads the .bin file at filename.
func ReadBinFile(filename string) ([]r3.Vector, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	pts, err := ReadBin(f)
	return pts, multierr.Combine(err, f.Close())
}

// WriteBinToFile encodes the points and then saves them to the passed filename.
func WriteBinToFile(pts []r3.Vector, filename string) error {
	buf := new(bytes.Buffer)
	buf.Grow(recordSize * len(pts))
	if err := WriteBin(buf, pts); err != nil {
		return err
	}
	return WriteBytesToFile(buf.Bytes(), filename)
}

// WriteBytesToFile writes the passed bytes to the passed filename.
func WriteBytesToFile(bytes []byte, filename string) (err error) {
	//nolint:gosec
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if _, err := w.Write(bytes); err != nil {
		return err
	}
	return w.Flush()
}
