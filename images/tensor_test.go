package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestToTensor(t *testing.T) {
	img := solid(4, 2, color.RGBA{R: 255, G: 0, B: 51, A: 255})
	img.Set(1, 0, color.RGBA{R: 0, G: 255, B: 0, A: 255})

	arr := ToTensor(img)
	assert.Equal(t, ndarray.Shape{3, 2, 4}, arr.Shape())

	r, err := arr.At(0, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-6)

	b, err := arr.At(2, 1, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, b, 1e-6)

	g, err := arr.At(1, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, g, 1e-6)
}

func TestResize(t *testing.T) {
	img := solid(64, 32, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	for _, interp := range []Interpolation{InterpolationNearest, InterpolationBilinear, InterpolationBicubic, InterpolationLanczos} {
		out := Resize(img, 16, 16, interp)
		assert.Equal(t, 16, out.Bounds().Dx(), string(interp))
		assert.Equal(t, 16, out.Bounds().Dy(), string(interp))
	}

	// same size returns the input untouched
	assert.Same(t, img, Resize(img, 64, 32, InterpolationBilinear).(*image.RGBA))
}

func TestLoad(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(5, 3, color.RGBA{A: 255})))

	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())

	encoded := &Image{Data: buf.Bytes()}
	_, err = encoded.Decode()
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, encoded.Format)
	assert.Equal(t, 5, encoded.Width)

	_, err = Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	assert.True(t, IsSupported("a/b/c.JPG"))
	assert.False(t, IsSupported("model.onnx"))
}

func TestMatRoundTrip(t *testing.T) {
	img := solid(6, 3, color.RGBA{R: 200, G: 40, B: 10, A: 255})
	img.Set(4, 2, color.RGBA{R: 0, G: 90, B: 255, A: 255})

	mat, err := ToMat(img)
	require.NoError(t, err)
	defer mat.Close()
	assert.Equal(t, 6, mat.Cols())
	assert.Equal(t, 3, mat.Rows())

	back, err := FromMat(mat)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Size(), back.Bounds().Size())
	assert.True(t, ToTensor(img).Equal(ToTensor(back)))
}

func TestFromMat_Empty(t *testing.T) {
	mat := gocv.NewMat()
	defer mat.Close()

	_, err := FromMat(mat)
	assert.ErrorContains(t, err, "mat is empty")
}
