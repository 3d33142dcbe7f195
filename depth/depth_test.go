package depth

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/rdk/rimage"
	"go.viam.com/test"
	"golang.org/x/image/tiff"
)

func gray16(w, h int) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(256 * (y*w + x))})
		}
	}
	return img
}

func TestDense(t *testing.T) {
	grid := NewDense(2, 3, 2)
	test.That(t, grid.Rows(), test.ShouldEqual, 2)
	test.That(t, grid.Cols(), test.ShouldEqual, 3)
	test.That(t, grid.Channels(), test.ShouldEqual, 2)

	grid.Set(1, 2, 1, 4.5)
	test.That(t, grid.At(1, 2, 1), test.ShouldEqual, 4.5)
	test.That(t, grid.At(1, 2, 0), test.ShouldEqual, 0.0)

	grid.SetPixel(0, 1, 7)
	test.That(t, grid.At(0, 1, 0), test.ShouldEqual, 7.0)
	test.That(t, grid.At(0, 1, 1), test.ShouldEqual, 7.0)

	test.That(t, func() { grid.At(2, 0, 0) }, test.ShouldPanic)
	test.That(t, func() { grid.At(0, 0, 2) }, test.ShouldPanic)
	test.That(t, func() { NewDense(1, 1, 0) }, test.ShouldPanic)
}

func TestFromImage(t *testing.T) {
	t.Run("Gray16 images are scaled into a single channel", func(t *testing.T) {
		grid, err := FromImage(gray16(3, 2), KITTIScale)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, grid.Rows(), test.ShouldEqual, 2)
		test.That(t, grid.Cols(), test.ShouldEqual, 3)
		test.That(t, grid.Channels(), test.ShouldEqual, 1)
		test.That(t, grid.At(0, 0, 0), test.ShouldEqual, 0.0)
		test.That(t, grid.At(0, 2, 0), test.ShouldEqual, 2.0)
		test.That(t, grid.At(1, 0, 0), test.ShouldEqual, 3.0)
	})

	t.Run("Replicated color images keep three channels", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
		img.SetNRGBA(1, 0, color.NRGBA{R: 40, G: 40, B: 40, A: 255})
		grid, err := FromImage(img, 0.5)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, grid.Channels(), test.ShouldEqual, 3)
		for ch := 0; ch < 3; ch++ {
			test.That(t, grid.At(0, 1, ch), test.ShouldEqual, 20.0)
			test.That(t, grid.At(0, 0, ch), test.ShouldEqual, 0.0)
		}
	})

	t.Run("An 8-bit sample gives the same depth whatever the decoded type", func(t *testing.T) {
		gray := color.RGBA{R: 40, G: 40, B: 40, A: 255}
		r := image.Rect(0, 0, 1, 1)

		rgba := image.NewRGBA(r)
		rgba.SetRGBA(0, 0, gray)
		nrgba := image.NewNRGBA(r)
		nrgba.Set(0, 0, gray)
		paletted := image.NewPaletted(r, color.Palette{color.Black, gray})
		paletted.SetColorIndex(0, 0, 1)
		ycbcr := image.NewYCbCr(r, image.YCbCrSubsampleRatio444)
		ycbcr.Y[0], ycbcr.Cb[0], ycbcr.Cr[0] = 40, 128, 128
		cmyk := image.NewCMYK(r)
		cmyk.SetCMYK(0, 0, color.CMYK{K: 215})

		for _, img := range []image.Image{rgba, nrgba, paletted, ycbcr, cmyk} {
			grid, err := FromImage(img, 1)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, grid.Channels(), test.ShouldEqual, 3)
			for ch := 0; ch < 3; ch++ {
				test.That(t, grid.At(0, 0, ch), test.ShouldEqual, 40.0)
			}
		}
	})

	t.Run("16-bit color images keep 16-bit samples", func(t *testing.T) {
		r := image.Rect(0, 0, 1, 1)
		nrgba64 := image.NewNRGBA64(r)
		nrgba64.SetNRGBA64(0, 0, color.NRGBA64{R: 1000, G: 1000, B: 1000, A: 0xffff})
		rgba64 := image.NewRGBA64(r)
		rgba64.SetRGBA64(0, 0, color.RGBA64{R: 1000, G: 1000, B: 1000, A: 0xffff})

		for _, img := range []image.Image{nrgba64, rgba64} {
			grid, err := FromImage(img, 1)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, grid.At(0, 0, 1), test.ShouldEqual, 1000.0)
		}
	})

	t.Run("Sub images are re-based to the origin", func(t *testing.T) {
		sub := gray16(4, 4).SubImage(image.Rect(1, 2, 3, 4))
		grid, err := FromImage(sub, 1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, grid.Rows(), test.ShouldEqual, 2)
		test.That(t, grid.Cols(), test.ShouldEqual, 2)
		test.That(t, grid.At(0, 0, 0), test.ShouldEqual, 2304.0)
	})

	t.Run("Non-positive scale is rejected", func(t *testing.T) {
		grid, err := FromImage(gray16(1, 1), 0)
		test.That(t, grid, test.ShouldBeNil)
		test.That(t, err, test.ShouldBeError, ErrInvalidScale)
	})
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	src := gray16(5, 4)

	t.Run("PNG", func(t *testing.T) {
		path := filepath.Join(dir, "depth.png")
		f, err := os.Create(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, png.Encode(f, src), test.ShouldBeNil)
		test.That(t, f.Close(), test.ShouldBeNil)

		grid, err := ReadFile(path, KITTIScale)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, grid.Channels(), test.ShouldEqual, 1)
		test.That(t, grid.At(3, 4, 0), test.ShouldEqual, 19.0)
	})

	t.Run("TIFF", func(t *testing.T) {
		path := filepath.Join(dir, "depth.tiff")
		f, err := os.Create(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tiff.Encode(f, src, nil), test.ShouldBeNil)
		test.That(t, f.Close(), test.ShouldBeNil)

		grid, err := ReadFile(path, KITTIScale)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, grid.At(2, 1, 0), test.ShouldEqual, 11.0)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(dir, "missing.png"), 1)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "error opening depth image")
	})

	t.Run("Not an image", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		test.That(t, os.WriteFile(path, []byte("hello"), 0o600), test.ShouldBeNil)
		_, err := ReadFile(path, 1)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "error decoding depth image")
	})
}

func TestFromDepthMap(t *testing.T) {
	dm := rimage.NewEmptyDepthMap(3, 2)
	dm.Set(2, 1, 1500)

	grid, err := FromDepthMap(dm, 0.001)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, grid.Rows(), test.ShouldEqual, 2)
	test.That(t, grid.Cols(), test.ShouldEqual, 3)
	test.That(t, grid.At(1, 2, 0), test.ShouldAlmostEqual, 1.5)
	test.That(t, grid.At(0, 0, 0), test.ShouldEqual, 0.0)

	_, err = FromDepthMap(nil, 1)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromDepthMap(dm, -1)
	test.That(t, err, test.ShouldBeError, ErrInvalidScale)
}
