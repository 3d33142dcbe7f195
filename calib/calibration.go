// Package calib parses camera/LiDAR calibration files and converts points between the image,
// rectified camera, reference camera and vehicle (LiDAR) frames.
package calib

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/rimage/transform"
	"gonum.org/v1/gonum/mat"
)

const (
	// ProjectionKey names the rectified projection matrix of the left color camera.
	ProjectionKey = "P2"
	// VehicleToRefKey names the rigid transform from the vehicle frame to the reference camera frame.
	VehicleToRefKey = "Tr_velo_to_cam"
	// RectificationKey names the rectifying rotation of the reference camera.
	RectificationKey = "R0_rect"
)

var (
	// ErrMalformedCalibration denotes that a required calibration entry is missing or has the wrong size.
	ErrMalformedCalibration = errors.New("malformed calibration")

	// ErrSingularRectification denotes that the rectification matrix cannot be inverted.
	ErrSingularRectification = errors.New("rectification matrix is singular")
)

// Calibration holds the matrices relating one camera to the vehicle frame.
// It is never mutated after construction and may be shared between goroutines.
type Calibration struct {
	// Projection is the 3x4 matrix mapping rectified camera points to image pixels.
	Projection *mat.Dense
	// VehicleToRefTransform is the 3x4 rigid transform from the vehicle frame to the reference camera frame.
	VehicleToRefTransform *mat.Dense
	// RefToVehicleTransform is the rigid inverse of VehicleToRefTransform.
	RefToVehicleTransform *mat.Dense
	// Rectification is the 3x3 rotation from the reference camera frame to the rectified camera frame.
	Rectification *mat.Dense

	// Intrinsics holds the focal lengths and principal point read from Projection.
	Intrinsics transform.PinholeCameraIntrinsics
	// BaselineX is the rectified x offset of the camera, P[0,3] / -Fx.
	BaselineX float64
	// BaselineY is the rectified y offset of the camera, P[1,3] / -Fy.
	BaselineY float64
}

// New builds a Calibration from named value vectors as produced by ReadValues.
func New(values map[string][]float64) (*Calibration, error) {
	projection, err := reshape(values, ProjectionKey, 3, 4)
	if err != nil {
		return nil, err
	}
	vehicleToRef, err := reshape(values, VehicleToRefKey, 3, 4)
	if err != nil {
		return nil, err
	}
	rectification, err := reshape(values, RectificationKey, 3, 3)
	if err != nil {
		return nil, err
	}

	intrinsics := transform.PinholeCameraIntrinsics{
		Fx:  projection.At(0, 0),
		Fy:  projection.At(1, 1),
		Ppx: projection.At(0, 2),
		Ppy: projection.At(1, 2),
	}

	return &Calibration{
		Projection:            projection,
		VehicleToRefTransform: vehicleToRef,
		RefToVehicleTransform: InverseRigid(vehicleToRef),
		Rectification:         rectification,
		Intrinsics:            intrinsics,
		BaselineX:             projection.At(0, 3) / -intrinsics.Fx,
		BaselineY:             projection.At(1, 3) / -intrinsics.Fy,
	}, nil
}

func reshape(values map[string][]float64, key string, rows, cols int) (*mat.Dense, error) {
	v, ok := values[key]
	if !ok {
		return nil, errors.Wrapf(ErrMalformedCalibration, "missing required key %q", key)
	}
	if len(v) != rows*cols {
		return nil, errors.Wrapf(ErrMalformedCalibration, "key %q has %d values, expected %d (%dx%d)",
			key, len(v), rows*cols, rows, cols)
	}
	data := make([]float64, len(v))
	copy(data, v)
	return mat.NewDense(rows, cols, data), nil
}

// InverseRigid inverts a 3x4 rigid transform [R|t] algebraically, returning [R^T|-R^T t].
func InverseRigid(rt *mat.Dense) *mat.Dense {
	var rotT mat.Dense
	rotT.CloneFrom(rt.Slice(0, 3, 0, 3).T())

	var t mat.VecDense
	t.MulVec(&rotT, rt.ColView(3))
	t.ScaleVec(-1, &t)

	inv := mat.NewDense(3, 4, nil)
	inv.Slice(0, 3, 0, 3).(*mat.Dense).Copy(&rotT)
	inv.SetCol(3, t.RawVector().Data)
	return inv
}

// RectToRef maps rectified camera points into the reference camera frame.
func (c *Calibration) RectToRef(pts []r3.Vector) ([]r3.Vector, error) {
	rectInv, err := c.RectificationInverse()
	if err != nil {
		return nil, err
	}
	return applyLinear(pts, rectInv), nil
}

// RefToVehicle maps reference camera points into the vehicle frame.
func (c *Calibration) RefToVehicle(pts []r3.Vector) []r3.Vector {
	return applyAffine(pts, c.RefToVehicleTransform)
}

// RectToVehicle maps rectified camera points into the vehicle frame.
func (c *Calibration) RectToVehicle(pts []r3.Vector) ([]r3.Vector, error) {
	if len(pts) == 0 {
		_, err := c.RectificationInverse()
		return emptyOrNil(err)
	}
	m := fromVectors(pts)
	if err := c.RectToVehicleDense(m); err != nil {
		return nil, err
	}
	return toVectors(m), nil
}

// ImageToRect back-projects (u, v, depth) image points into the rectified camera frame.
func (c *Calibration) ImageToRect(pts []r3.Vector) []r3.Vector {
	if len(pts) == 0 {
		return []r3.Vector{}
	}
	m := fromVectors(pts)
	c.ImageToRectDense(m)
	return toVectors(m)
}

// ImageToVehicle back-projects (u, v, depth) image points into the vehicle frame.
func (c *Calibration) ImageToVehicle(pts []r3.Vector) ([]r3.Vector, error) {
	if len(pts) == 0 {
		_, err := c.RectificationInverse()
		return emptyOrNil(err)
	}
	m := fromVectors(pts)
	if err := c.ImageToVehicleDense(m); err != nil {
		return nil, err
	}
	return toVectors(m), nil
}

// ImageToRectDense overwrites every (u, v, depth) row of the N x 3 matrix pts with its rectified
// camera point.
func (c *Calibration) ImageToRectDense(pts *mat.Dense) {
	raw := pts.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+3]
		x, y, z := c.Intrinsics.PixelToPoint(row[0], row[1], row[2])
		row[0], row[1], row[2] = x+c.BaselineX, y+c.BaselineY, z
	}
}

// RectToVehicleDense overwrites every row of the N x 3 matrix pts with its vehicle frame point.
// Rectification and the rigid transform are folded into one 3x3 product and a translation.
func (c *Calibration) RectToVehicleDense(pts *mat.Dense) error {
	rectInv, err := c.RectificationInverse()
	if err != nil {
		return err
	}
	var rot mat.Dense
	rot.Mul(c.RefToVehicleTransform.Slice(0, 3, 0, 3), rectInv)
	pts.Mul(pts, rot.T())

	tx, ty, tz := c.RefToVehicleTransform.At(0, 3), c.RefToVehicleTransform.At(1, 3), c.RefToVehicleTransform.At(2, 3)
	raw := pts.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+3]
		row[0] += tx
		row[1] += ty
		row[2] += tz
	}
	return nil
}

// ImageToVehicleDense overwrites every (u, v, depth) row of the N x 3 matrix pts with its vehicle
// frame point.
func (c *Calibration) ImageToVehicleDense(pts *mat.Dense) error {
	c.ImageToRectDense(pts)
	return c.RectToVehicleDense(pts)
}

// VehicleToRef maps vehicle points into the reference camera frame.
func (c *Calibration) VehicleToRef(pts []r3.Vector) []r3.Vector {
	return applyAffine(pts, c.VehicleToRefTransform)
}

// RefToRect maps reference camera points into the rectified camera frame.
func (c *Calibration) RefToRect(pts []r3.Vector) []r3.Vector {
	return applyLinear(pts, c.Rectification)
}

// VehicleToRect maps vehicle points into the rectified camera frame.
func (c *Calibration) VehicleToRect(pts []r3.Vector) []r3.Vector {
	return c.RefToRect(c.VehicleToRef(pts))
}

// RectToImage projects rectified camera points onto the image plane. The returned Z carries the
// rectified depth so that ImageToRect can take the result back.
func (c *Calibration) RectToImage(pts []r3.Vector) []r3.Vector {
	projected := applyAffine(pts, c.Projection)
	for i, p := range projected {
		projected[i] = r3.Vector{X: p.X / p.Z, Y: p.Y / p.Z, Z: pts[i].Z}
	}
	return projected
}

// VehicleToImage projects vehicle points onto the image plane.
func (c *Calibration) VehicleToImage(pts []r3.Vector) []r3.Vector {
	return c.RectToImage(c.VehicleToRect(pts))
}

// RectificationInverse returns the full matrix inverse of Rectification, which is not assumed
// orthonormal. A singular rectification gives ErrSingularRectification.
func (c *Calibration) RectificationInverse() (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(c.Rectification); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) && !math.IsInf(float64(cond), 1) {
			return &inv, nil
		}
		return nil, errors.Wrap(ErrSingularRectification, err.Error())
	}
	return &inv, nil
}

// applyLinear computes m*p for every point as a single (N x 3)(3 x 3)^T product.
func applyLinear(pts []r3.Vector, m mat.Matrix) []r3.Vector {
	if len(pts) == 0 {
		return []r3.Vector{}
	}
	var out mat.Dense
	out.Mul(fromVectors(pts), m.T())
	return toVectors(&out)
}

// applyAffine augments every point with a trailing 1 and right-multiplies by the transpose of
// the 3x4 matrix m.
func applyAffine(pts []r3.Vector, m mat.Matrix) []r3.Vector {
	if len(pts) == 0 {
		return []r3.Vector{}
	}
	data := make([]float64, 0, 4*len(pts))
	for _, p := range pts {
		data = append(data, p.X, p.Y, p.Z, 1)
	}
	var out mat.Dense
	out.Mul(mat.NewDense(len(pts), 4, data), m.T())
	return toVectors(&out)
}

func emptyOrNil(err error) ([]r3.Vector, error) {
	if err != nil {
		return nil, err
	}
	return []r3.Vector{}, nil
}

func fromVectors(pts []r3.Vector) *mat.Dense {
	data := make([]float64, 0, 3*len(pts))
	for _, p := range pts {
		data = append(data, p.X, p.Y, p.Z)
	}
	return mat.NewDense(len(pts), 3, data)
}

func toVectors(m *mat.Dense) []r3.Vector {
	rows, _ := m.Dims()
	out := make([]r3.Vector, rows)
	for i := range out {
		out[i] = r3.Vector{X: m.At(i, 0), Y: m.At(i, 1), Z: m.At(i, 2)}
	}
	return out
}
