package depth

import (
	"image"
	"image/color"
	_ "image/png" // PNG depth images.
	"os"

	"github.com/pkg/errors"
	"go.viam.com/rdk/rimage"
	"go.viam.com/utils"
	_ "golang.org/x/image/tiff" // TIFF depth images.
)

// KITTIScale converts KITTI 16-bit depth PNG values to meters.
const KITTIScale = 1.0 / 256.0

// ErrInvalidScale denotes a non-positive depth scale factor.
var ErrInvalidScale = errors.New("depth scale must be greater than zero")

// ReadFile decodes the PNG or TIFF image at path and converts it with FromImage.
func ReadFile(path string, scale float64) (*Dense, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening depth image")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding depth image %s", path)
	}
	grid, err := FromImage(img, scale)
	if err != nil {
		return nil, errors.Wrapf(err, "error converting %s depth image", format)
	}
	return grid, nil
}

// FromImage converts stored pixel values into metric depth by multiplying them with scale.
// Grayscale images produce a single channel. Color images produce three channels holding the
// red, green and blue samples, as written by codecs that replicate depth across channels.
// Samples keep the bit depth the image was encoded with: 8-bit formats (Gray, RGBA, NRGBA,
// Paletted, YCbCr, CMYK) give values in [0, 255] and 16-bit formats give values in [0, 65535].
func FromImage(img image.Image, scale float64) (*Dense, error) {
	if scale <= 0 {
		return nil, ErrInvalidScale
	}
	b := img.Bounds()

	switch im := img.(type) {
	case *image.Gray16:
		return fill(b, 1, scale, func(x, y int, out []float64) {
			out[0] = float64(im.Gray16At(x, y).Y)
		}), nil
	case *image.Gray:
		return fill(b, 1, scale, func(x, y int, out []float64) {
			out[0] = float64(im.GrayAt(x, y).Y)
		}), nil
	case *image.NRGBA:
		return fill(b, 3, scale, func(x, y int, out []float64) {
			c := im.NRGBAAt(x, y)
			out[0], out[1], out[2] = float64(c.R), float64(c.G), float64(c.B)
		}), nil
	case *image.RGBA:
		return fill(b, 3, scale, func(x, y int, out []float64) {
			c := im.RGBAAt(x, y)
			out[0], out[1], out[2] = float64(c.R), float64(c.G), float64(c.B)
		}), nil
	case *image.Paletted, *image.YCbCr, *image.CMYK:
		return fill(b, 3, scale, func(x, y int, out []float64) {
			c, _ := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out[0], out[1], out[2] = float64(c.R), float64(c.G), float64(c.B)
		}), nil
	case *image.NRGBA64:
		return fill(b, 3, scale, func(x, y int, out []float64) {
			c := im.NRGBA64At(x, y)
			out[0], out[1], out[2] = float64(c.R), float64(c.G), float64(c.B)
		}), nil
	default:
		return fill(b, 3, scale, func(x, y int, out []float64) {
			c, _ := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			out[0], out[1], out[2] = float64(c.R), float64(c.G), float64(c.B)
		}), nil
	}
}

func fill(b image.Rectangle, channels int, scale float64, read func(x, y int, out []float64)) *Dense {
	grid := NewDense(b.Dy(), b.Dx(), channels)
	px := make([]float64, channels)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			read(x, y, px)
			for ch, v := range px {
				grid.Set(y-b.Min.Y, x-b.Min.X, ch, v*scale)
			}
		}
	}
	return grid
}

// FromDepthMap converts an rdk depth map (millimeters) into a single channel grid, multiplying each
// value by scale.
func FromDepthMap(dm *rimage.DepthMap, scale float64) (*Dense, error) {
	if dm == nil {
		return nil, errors.New("input DepthMap is nil")
	}
	if scale <= 0 {
		return nil, ErrInvalidScale
	}
	grid := NewDense(dm.Height(), dm.Width(), 1)
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			grid.Set(y, x, 0, float64(dm.GetDepth(x, y))*scale)
		}
	}
	return grid, nil
}
