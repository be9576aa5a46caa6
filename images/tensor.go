package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Interpolation selects the resampling algorithm used by Resize.
type Interpolation string

const (
	// InterpolationNearest uses nearest-neighbor sampling.
	InterpolationNearest Interpolation = "nearest"
	// InterpolationBilinear uses bilinear interpolation.
	InterpolationBilinear Interpolation = "bilinear"
	// InterpolationBicubic uses bicubic interpolation.
	InterpolationBicubic Interpolation = "bicubic"
	// InterpolationLanczos uses Lanczos3 resampling.
	InterpolationLanczos Interpolation = "lanczos"
)

func (i Interpolation) function() resize.InterpolationFunction {
	switch i {
	case InterpolationNearest:
		return resize.NearestNeighbor
	case InterpolationBicubic:
		return resize.Bicubic
	case InterpolationLanczos:
		return resize.Lanczos3
	default:
		return resize.Bilinear
	}
}

// Resize scales img to exactly width x height without preserving aspect.
func Resize(img image.Image, width, height int, interp Interpolation) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, interp.function())
}

// ToTensor converts an image into a CHW float32 array of shape [3, H, W] with
// RGB values scaled to [0, 1].
func ToTensor(img image.Image) *ndarray.NDArray {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	channelSize := width * height
	data := make([]float32, channelSize*3)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}
	return ndarray.MustNew(ndarray.Shape{3, height, width}, data)
}

// ToMat converts an image into a BGR gocv.Mat. The caller must Close it.
func ToMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "failed to convert image to mat")
	}
	return mat, nil
}

// FromMat converts a gocv.Mat back into an image.Image.
func FromMat(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, errors.New("mat is empty")
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert mat to image")
	}
	return img, nil
}
