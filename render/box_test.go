package render

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-infer/images"
	"github.com/nvr-ai/go-infer/models/postprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceLabel(t *testing.T) {
	font := DefaultFont()
	tests := []struct {
		name     string
		box      image.Rectangle
		wantRect image.Rectangle
		wantPos  image.Point
	}{
		{
			name:     "above the box",
			box:      image.Rect(10, 40, 60, 90),
			wantRect: image.Rect(9, 10, 67, 40),
			wantPos:  image.Pt(13, 34),
		},
		{
			name:     "inside when clipped at the top",
			box:      image.Rect(10, 5, 60, 90),
			wantRect: image.Rect(9, 5, 67, 35),
			wantPos:  image.Pt(13, 29),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rect, pos := placeLabel(tt.box, image.Pt(50, 20), font, 2)
			assert.Equal(t, tt.wantRect, rect)
			assert.Equal(t, tt.wantPos, pos)
		})
	}
}

func TestLabelAndColor(t *testing.T) {
	obj := postprocess.DetectedObject{ClassName: "dog", Class: 12, Probability: 0.876}
	assert.Equal(t, "dog 0.88", Label(obj))
	assert.Equal(t, ClassColor(12), ClassColor(12+len(palette)))
	assert.Equal(t, ClassColor(3), ClassColor(-3))
}

func TestSaveImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	objects := postprocess.DetectedObjects{{
		ClassName:   "person",
		Class:       1,
		Probability: 0.9,
		Box:         postprocess.Rectangle{X: 8, Y: 20, Width: 30, Height: 20},
	}}

	dir := filepath.Join(t.TempDir(), "nested", "logs")
	path, err := SaveImage(dir, "ssd.png", img, objects)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ssd.png"), path)

	out, err := images.Load(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), out.Bounds())

	// the rectangle edge is painted in the class color, the corner stays black
	r, g, b, _ := out.At(8, 30).RGBA()
	assert.NotEqual(t, [3]uint32{0, 0, 0}, [3]uint32{r, g, b})
	assert.Equal(t, color.RGBAModel.Convert(color.Black), color.RGBAModel.Convert(out.At(63, 47)))
}

func TestSaveImage_Unwritable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := SaveImage(filepath.Join(file, "sub"), "ssd.jpg", image.NewRGBA(image.Rect(0, 0, 4, 4)), nil)
	assert.Error(t, err)
}
