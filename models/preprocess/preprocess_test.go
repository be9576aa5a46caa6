package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/nvr-ai/go-infer/images"
	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func at(t *testing.T, arr *ndarray.NDArray, idx ...int) float32 {
	t.Helper()
	v, err := arr.At(idx...)
	require.NoError(t, err)
	return v
}

// TestPreprocess_SSD validates the stretch resize path: the tensor has the
// batched CHW shape and the scale factors map input pixels back to the
// original image.
func TestPreprocess_SSD(t *testing.T) {
	p, err := NewPreprocessor(SSDConfig(32, 16))
	require.NoError(t, err)

	result, err := p.Preprocess(solid(64, 64, color.RGBA{R: 255, G: 51, B: 0, A: 255}))
	require.NoError(t, err)

	assert.Equal(t, ndarray.Shape{1, 3, 16, 32}, result.Array.Shape())
	assert.Equal(t, 64, result.OriginalWidth)
	assert.InDelta(t, 0.5, result.ScaleX, 1e-9)
	assert.InDelta(t, 0.25, result.ScaleY, 1e-9)

	assert.InDelta(t, 1.0, at(t, result.Array, 0, 0, 5, 5), 1e-5)
	assert.InDelta(t, 0.2, at(t, result.Array, 0, 1, 5, 5), 1e-5)
	assert.InDelta(t, 0.0, at(t, result.Array, 0, 2, 5, 5), 1e-5)

	x, y := result.ToOriginal(16, 8)
	assert.InDelta(t, 32.0, x, 1e-9)
	assert.InDelta(t, 32.0, y, 1e-9)
}

// TestPreprocess_Letterbox checks padding placement and the inverse mapping
// for a wide image.
func TestPreprocess_Letterbox(t *testing.T) {
	p, err := NewPreprocessor(YOLOConfig(64))
	require.NoError(t, err)

	result, err := p.Preprocess(solid(128, 64, color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)

	assert.Equal(t, ndarray.Shape{1, 3, 64, 64}, result.Array.Shape())
	assert.InDelta(t, 0.5, result.ScaleX, 1e-9)
	assert.InDelta(t, 0.5, result.ScaleY, 1e-9)
	assert.Equal(t, 0, result.PadLeft)
	assert.Equal(t, 16, result.PadTop)

	// padding rows carry the 114 gray, content rows the red image
	assert.InDelta(t, 114.0/255.0, at(t, result.Array, 0, 0, 2, 10), 1e-5)
	assert.InDelta(t, 1.0, at(t, result.Array, 0, 0, 32, 10), 1e-5)

	x, y := result.ToOriginal(32, 16)
	assert.InDelta(t, 64.0, x, 1e-9)
	assert.InDelta(t, 0.0, y, 1e-9)
}

func TestPreprocess_Normalization(t *testing.T) {
	img := solid(4, 4, color.RGBA{R: 255, G: 127, B: 0, A: 255})

	tests := []struct {
		name   string
		config Config
		idx    []int
		want   float32
	}{
		{
			name:   "none keeps 0-255",
			config: Config{InputWidth: 4, InputHeight: 4},
			idx:    []int{0, 1, 1},
			want:   255,
		},
		{
			name:   "minus one to one",
			config: Config{InputWidth: 4, InputHeight: 4, NormalizationType: NormalizeMinusOneToOne},
			idx:    []int{2, 0, 0},
			want:   -1,
		},
		{
			name:   "bgr swaps channels",
			config: Config{InputWidth: 4, InputHeight: 4, ColorMode: ColorModeBGR, NormalizationType: NormalizeZeroToOne},
			idx:    []int{0, 0, 0},
			want:   0,
		},
		{
			name:   "hwc layout",
			config: Config{InputWidth: 4, InputHeight: 4, ChannelOrder: ChannelOrderHWC},
			idx:    []int{3, 3, 1},
			want:   127,
		},
		{
			name:   "imagenet standardize",
			config: ImageNetConfig(4),
			idx:    []int{0, 0, 0, 0},
			want:   (255 - 123.675) / 58.395,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPreprocessor(tt.config)
			require.NoError(t, err)
			result, err := p.Preprocess(img)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, at(t, result.Array, tt.idx...), 1e-4)
		})
	}
}

func TestPreprocess_Validation(t *testing.T) {
	_, err := NewPreprocessor(Config{InputWidth: 0, InputHeight: 10})
	assert.Error(t, err)

	_, err = NewPreprocessor(Config{InputWidth: 10, InputHeight: 10, NormalizationType: NormalizeStandardize})
	assert.Error(t, err)

	bad := ImageNetConfig(8)
	bad.StdValues = []float32{1, 0, 1}
	_, err = NewPreprocessor(bad)
	assert.Error(t, err)

	p, err := NewPreprocessor(SSDConfig(8, 8))
	require.NoError(t, err)
	_, err = p.Preprocess(nil)
	assert.Error(t, err)
	_, err = p.Preprocess(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

func TestPreprocess_Idempotent(t *testing.T) {
	p, err := NewPreprocessor(YOLOConfig(16))
	require.NoError(t, err)
	img := solid(20, 10, color.RGBA{R: 10, G: 200, B: 30, A: 255})

	a, err := p.Preprocess(img)
	require.NoError(t, err)
	b, err := p.Preprocess(img)
	require.NoError(t, err)
	assert.True(t, a.Array.Equal(b.Array))
}

// TestPreprocess_ScaledRGB checks the ToTensor path against the generic
// conversion followed by scaling.
func TestPreprocess_ScaledRGB(t *testing.T) {
	img := solid(6, 4, color.RGBA{R: 12, G: 128, B: 250, A: 255})
	img.Set(2, 1, color.RGBA{R: 255, G: 3, B: 77, A: 255})

	fast, err := NewPreprocessor(SSDConfig(6, 4))
	require.NoError(t, err)
	require.True(t, fast.scaledRGB())

	raw := SSDConfig(6, 4)
	raw.NormalizationType = NormalizeNone
	generic, err := NewPreprocessor(raw)
	require.NoError(t, err)
	require.False(t, generic.scaledRGB())

	a, err := fast.Preprocess(img)
	require.NoError(t, err)
	b, err := generic.Preprocess(img)
	require.NoError(t, err)

	assert.True(t, a.Array.AllClose(b.Array.Scale(1.0/255.0), 1e-6))
	assert.True(t, a.Array.AllClose(mustExpand(t, images.ToTensor(img)), 0))
}

func mustExpand(t *testing.T, arr *ndarray.NDArray) *ndarray.NDArray {
	t.Helper()
	out, err := arr.ExpandDims(0)
	require.NoError(t, err)
	return out
}
