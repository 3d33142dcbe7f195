package dataprocess

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestCreateTimestampFilename(t *testing.T) {
	dataDirectory := "/path/to/data"
	sensorName := "front"
	fileType := BinExt
	// The local offset is dropped in favor of UTC.
	timeStamp := time.Date(2011, time.September, 26, 15, 2, 25, 123400000, time.FixedZone("CEST", 2*60*60))

	filename := CreateTimestampFilename(dataDirectory, sensorName, fileType, timeStamp)
	test.That(t, filename, test.ShouldEqual, "/path/to/data/front_data_2011-09-26T13:02:25.1234Z.bin")
}

func TestRecords(t *testing.T) {
	test.That(t, Records(nil), test.ShouldResemble, []float32{})
	test.That(t, Records([]r3.Vector{{X: 1, Y: -2, Z: 0.5}, {X: 3, Y: 4, Z: 5}}), test.ShouldResemble,
		[]float32{1, -2, 0.5, 1, 3, 4, 5, 1})
}

func TestWriteBin(t *testing.T) {
	pts := []r3.Vector{{X: 10.5, Y: -1.25, Z: 0.75}, {X: 2, Y: 0, Z: -1}}

	t.Run("Layout is little-endian float32 x, y, z, 1", func(t *testing.T) {
		var buf bytes.Buffer
		test.That(t, WriteBin(&buf, pts), test.ShouldBeNil)
		b := buf.Bytes()
		test.That(t, len(b), test.ShouldEqual, 32)

		word := func(i int) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
		test.That(t, word(0), test.ShouldEqual, float32(10.5))
		test.That(t, word(1), test.ShouldEqual, float32(-1.25))
		test.That(t, word(2), test.ShouldEqual, float32(0.75))
		test.That(t, word(3), test.ShouldEqual, float32(1))
		test.That(t, word(7), test.ShouldEqual, float32(1))
	})

	t.Run("ReadBin recovers the points", func(t *testing.T) {
		var buf bytes.Buffer
		test.That(t, WriteBin(&buf, pts), test.ShouldBeNil)
		got, err := ReadBin(&buf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldResemble, pts)
	})

	t.Run("Empty input writes nothing", func(t *testing.T) {
		var buf bytes.Buffer
		test.That(t, WriteBin(&buf, nil), test.ShouldBeNil)
		test.That(t, buf.Len(), test.ShouldEqual, 0)
		got, err := ReadBin(&buf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(got), test.ShouldEqual, 0)
	})

	t.Run("A partial record is an error", func(t *testing.T) {
		var buf bytes.Buffer
		test.That(t, WriteBin(&buf, pts), test.ShouldBeNil)
		buf.Truncate(buf.Len() - 3)
		got, err := ReadBin(&buf)
		test.That(t, got, test.ShouldBeNil)
		test.That(t, errors.Is(err, ErrTruncatedRecord), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "record 1 has 13 of 16 bytes")
	})
}

func TestWriteBinToFile(t *testing.T) {
	dir := t.TempDir()
	pts := []r3.Vector{{X: 1, Y: 2, Z: 3}}
	filename := CreateTimestampFilename(dir, "front", BinExt, time.Unix(0, 0))

	test.That(t, WriteBinToFile(pts, filename), test.ShouldBeNil)
	info, err := os.Stat(filename)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldEqual, int64(16))

	got, err := ReadBinFile(filename)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, pts)

	_, err = ReadBinFile(filepath.Join(dir, "missing.bin"))
	test.That(t, errors.Is(err, os.ErrNotExist), test.ShouldBeTrue)

	err = WriteBinToFile(pts, filepath.Join(dir, "no", "such", "dir.bin"))
	test.That(t, err, test.ShouldNotBeNil)
}
