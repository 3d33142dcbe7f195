// Package testhelper contains helper variables and functions that are used across the tests in the
// pseudo-lidar repo.
package testhelper

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.viam.com/test"

	"github.com/viam-modules/pseudo-lidar/calib"
)

// Tolerance is the absolute error allowed when comparing transformed points.
const Tolerance = 1e-9

var (
	// Identity3 is a row-major 3x3 identity matrix.
	Identity3 = []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	// IdentityRigid is a row-major 3x4 rigid transform with no rotation and no translation.
	IdentityRigid = []float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0}
)

// Projection returns a row-major P2 matrix with a single focal length, a principal point and
// baseline offsets encoded the way stereo rigs store them.
func Projection(f, cu, cv, bx, by float64) []float64 {
	return []float64{
		f, 0, cu, -f * bx,
		0, f, cv, -f * by,
		0, 0, 1, 0,
	}
}

// RigidYaw returns a row-major 3x4 rigid transform rotating by yaw radians about z, then translating.
func RigidYaw(yaw, tx, ty, tz float64) []float64 {
	c, s := math.Cos(yaw), math.Sin(yaw)
	return []float64{
		c, -s, 0, tx,
		s, c, 0, ty,
		0, 0, 1, tz,
	}
}

// CalibrationText renders a calibration file containing a date header and the three required entries.
func CalibrationText(p2, r0, tr []float64) string {
	var sb strings.Builder
	sb.WriteString("calib_time: 2011-09-28 13:09:52\n")
	writeEntry(&sb, calib.ProjectionKey, p2)
	writeEntry(&sb, calib.RectificationKey, r0)
	writeEntry(&sb, calib.VehicleToRefKey, tr)
	return sb.String()
}

func writeEntry(sb *strings.Builder, key string, values []float64) {
	if values == nil {
		return
	}
	sb.WriteString(key + ":")
	for _, v := range values {
		sb.WriteString(" " + strconv.FormatFloat(v, 'g', -1, 64))
	}
	sb.WriteString("\n")
}

// WriteCalibration writes calibration text into dir and returns the file path.
func WriteCalibration(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "calib.txt")
	test.That(t, os.WriteFile(path, []byte(text), 0o600), test.ShouldBeNil)
	return path
}

// SimpleCalibration builds a calibration with identity rectification and an identity vehicle transform.
func SimpleCalibration(t *testing.T, f, cu, cv, bx, by float64) *calib.Calibration {
	t.Helper()
	c, err := calib.Parse(strings.NewReader(CalibrationText(Projection(f, cu, cv, bx, by), Identity3, IdentityRigid)))
	test.That(t, err, test.ShouldBeNil)
	return c
}

// KITTICalibration loads the calibration file checked into calib/testdata.
func KITTICalibration(t *testing.T) *calib.Calibration {
	t.Helper()
	c, err := calib.ParseFile(KITTICalibrationPath(t))
	test.That(t, err, test.ShouldBeNil)
	return c
}

// KITTICalibrationPath returns the absolute path of the calibration file checked into calib/testdata.
func KITTICalibrationPath(t *testing.T) string {
	t.Helper()
	path := ResolveFile("calib/testdata/kitti_calib.txt")
	_, err := os.Stat(path)
	test.That(t, err, test.ShouldBeNil)
	return path
}

// ResolveFile returns the path of fn relative to the root of the module, wherever the caller lives.
func ResolveFile(fn string) string {
	//nolint:dogsled
	_, thisFilePath, _, _ := runtime.Caller(0)
	thisDirPath, err := filepath.Abs(filepath.Dir(thisFilePath))
	if err != nil {
		panic(err)
	}
	return filepath.Join(thisDirPath, "..", "..", fn)
}

// PointsShouldAlmostEqual fails the test if the two point slices differ beyond Tolerance.
func PointsShouldAlmostEqual(t *testing.T, got, want []r3.Vector) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, Tolerance)); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}
