// Package preprocess - Image to tensor conversion shared by the translators.
package preprocess

import (
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"

	"github.com/nvr-ai/go-infer/images"
	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/pkg/errors"
)

// NormalizationType defines how pixel values are normalized.
type NormalizationType int

const (
	// NormalizeNone keeps pixel values as 0-255.
	NormalizeNone NormalizationType = iota
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne
	// NormalizeMinusOneToOne scales pixel values to [-1, 1].
	NormalizeMinusOneToOne
	// NormalizeStandardize applies per-channel mean and std on the 0-255 values.
	NormalizeStandardize
)

// ChannelOrder defines the ordering of image channels.
type ChannelOrder int

const (
	// ChannelOrderCHW is Channel-Height-Width ordering (common for ONNX).
	ChannelOrderCHW ChannelOrder = iota
	// ChannelOrderHWC is Height-Width-Channel ordering (TensorFlow exports).
	ChannelOrderHWC
)

// ColorMode defines the color space of the image.
type ColorMode int

const (
	// ColorModeRGB is standard RGB color mode.
	ColorModeRGB ColorMode = iota
	// ColorModeBGR is BGR color mode (common for OpenCV models).
	ColorModeBGR
)

// Config defines preprocessing for a specific model.
type Config struct {
	// Name of the model for debugging purposes.
	Name string
	// InputWidth is the expected width of the model input.
	InputWidth int
	// InputHeight is the expected height of the model input.
	InputHeight int
	// NormalizationType defines how to normalize pixel values.
	NormalizationType NormalizationType
	// MeanValues for standardization, one per channel.
	MeanValues []float32
	// StdValues for standardization, one per channel.
	StdValues []float32
	// ChannelOrder defines the channel ordering (CHW or HWC).
	ChannelOrder ChannelOrder
	// ColorMode defines the color space (RGB or BGR).
	ColorMode ColorMode
	// KeepAspectRatio if true, maintains aspect ratio with letterboxing.
	KeepAspectRatio bool
	// LetterboxColor is the color used for letterbox padding (default black).
	LetterboxColor color.Color
	// Interpolation selects the resampling filter.
	Interpolation images.Interpolation
	// Batch adds a leading batch dimension of 1.
	Batch bool
}

// Validate checks the input size and standardization parameters.
func (c Config) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return errors.Errorf("invalid input size %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.NormalizationType == NormalizeStandardize {
		if len(c.MeanValues) != 3 || len(c.StdValues) != 3 {
			return errors.New("standardization needs 3 mean and 3 std values")
		}
		for _, s := range c.StdValues {
			if s == 0 {
				return errors.New("std values must be non-zero")
			}
		}
	}
	return nil
}

// Transform records how an image was mapped into the model input.
type Transform struct {
	// OriginalWidth is the original image width before preprocessing.
	OriginalWidth int
	// OriginalHeight is the original image height before preprocessing.
	OriginalHeight int
	// ScaleX is the horizontal scaling factor applied.
	ScaleX float64
	// ScaleY is the vertical scaling factor applied.
	ScaleY float64
	// PadLeft is the left padding applied for letterboxing.
	PadLeft int
	// PadTop is the top padding applied for letterboxing.
	PadTop int
}

// ToOriginal maps a point in model input pixels back to the original image.
func (t Transform) ToOriginal(x, y float64) (float64, float64) {
	return (x - float64(t.PadLeft)) / t.ScaleX, (y - float64(t.PadTop)) / t.ScaleY
}

// Result contains the preprocessed tensor and how it was produced.
type Result struct {
	// Array is [1, 3, H, W] (or [1, H, W, 3] for HWC) when Batch is set.
	Array *ndarray.NDArray
	Transform
}

// Preprocessor converts images into model input tensors.
type Preprocessor struct {
	config Config
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The model-specific preprocessing configuration.
//
// Returns:
//   - *Preprocessor: A configured Preprocessor instance.
//   - error: An error if the configuration is invalid.
//
// Example:
//
// ```go
//
//	p, err := NewPreprocessor(SSDConfig(512, 512))
//	result, err := p.Preprocess(img)
//
// ```
func NewPreprocessor(config Config) (*Preprocessor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.LetterboxColor == nil {
		config.LetterboxColor = color.Black
	}
	if config.Interpolation == "" {
		config.Interpolation = images.InterpolationBilinear
	}
	return &Preprocessor{config: config}, nil
}

// Config returns the preprocessing configuration.
func (p *Preprocessor) Config() Config { return p.config }

// Preprocess resizes, converts and normalizes img.
//
// Arguments:
//   - img: The decoded input image.
//
// Returns:
//   - *Result: The tensor and the applied transform.
//   - error: An error if the image is empty.
func (p *Preprocessor) Preprocess(img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.New("image is empty")
	}

	resized, transform := p.resizeImage(img)
	var arr *ndarray.NDArray
	var err error
	if p.scaledRGB() {
		arr = images.ToTensor(resized)
	} else if arr, err = p.normalize(p.imageToTensor(resized)); err != nil {
		return nil, err
	}

	if p.config.Batch {
		if arr, err = arr.ExpandDims(0); err != nil {
			return nil, err
		}
	}

	slog.Debug("preprocessed image",
		"model", p.config.Name,
		"original", [2]int{transform.OriginalWidth, transform.OriginalHeight},
		"shape", arr.Shape().String(),
		"scale", [2]float64{transform.ScaleX, transform.ScaleY},
	)

	return &Result{Array: arr, Transform: transform}, nil
}

// resizeImage scales the image into the input size, letterboxing when the
// aspect ratio must be kept.
func (p *Preprocessor) resizeImage(img image.Image) (image.Image, Transform) {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()
	width, height := p.config.InputWidth, p.config.InputHeight

	t := Transform{
		OriginalWidth:  srcWidth,
		OriginalHeight: srcHeight,
		ScaleX:         float64(width) / float64(srcWidth),
		ScaleY:         float64(height) / float64(srcHeight),
	}

	if !p.config.KeepAspectRatio {
		return images.Resize(img, width, height, p.config.Interpolation), t
	}

	scale := math.Min(t.ScaleX, t.ScaleY)
	newWidth := max(1, int(float64(srcWidth)*scale))
	newHeight := max(1, int(float64(srcHeight)*scale))
	resized := images.Resize(img, newWidth, newHeight, p.config.Interpolation)

	t.ScaleX, t.ScaleY = scale, scale
	t.PadLeft = (width - newWidth) / 2
	t.PadTop = (height - newHeight) / 2

	letterboxed := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(letterboxed, letterboxed.Bounds(), &image.Uniform{p.config.LetterboxColor}, image.Point{}, draw.Src)
	draw.Draw(letterboxed, image.Rect(t.PadLeft, t.PadTop, t.PadLeft+newWidth, t.PadTop+newHeight),
		resized, resized.Bounds().Min, draw.Src)

	return letterboxed, t
}

// scaledRGB reports whether the layout is the one images.ToTensor produces.
func (p *Preprocessor) scaledRGB() bool {
	return p.config.ChannelOrder == ChannelOrderCHW &&
		p.config.ColorMode == ColorModeRGB &&
		p.config.NormalizationType == NormalizeZeroToOne
}

// imageToTensor converts an image to 0-255 float32 values in the configured
// channel order and color mode.
func (p *Preprocessor) imageToTensor(img image.Image) []float32 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	plane := width * height
	tensor := make([]float32, plane*3)

	idx := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			ch0, ch1, ch2 := float32(r>>8), float32(g>>8), float32(b>>8)
			if p.config.ColorMode == ColorModeBGR {
				ch0, ch2 = ch2, ch0
			}

			if p.config.ChannelOrder == ChannelOrderCHW {
				pos := y*width + x
				tensor[pos] = ch0
				tensor[plane+pos] = ch1
				tensor[2*plane+pos] = ch2
			} else {
				tensor[idx] = ch0
				tensor[idx+1] = ch1
				tensor[idx+2] = ch2
				idx += 3
			}
		}
	}
	return tensor
}

// normalize wraps the values into an array and applies the configured
// normalization.
func (p *Preprocessor) normalize(tensor []float32) (*ndarray.NDArray, error) {
	shape := ndarray.Shape{3, p.config.InputHeight, p.config.InputWidth}
	channelAxis := 0
	if p.config.ChannelOrder == ChannelOrderHWC {
		shape = ndarray.Shape{p.config.InputHeight, p.config.InputWidth, 3}
		channelAxis = 2
	}
	arr, err := ndarray.New(shape, tensor)
	if err != nil {
		return nil, err
	}

	switch p.config.NormalizationType {
	case NormalizeZeroToOne:
		return arr.Scale(1.0 / 255.0), nil
	case NormalizeMinusOneToOne:
		return arr.Normalize([]float32{127.5, 127.5, 127.5}, []float32{127.5, 127.5, 127.5}, channelAxis)
	case NormalizeStandardize:
		return arr.Normalize(p.config.MeanValues, p.config.StdValues, channelAxis)
	default:
		return arr, nil
	}
}

// SSDConfig returns the configuration for SSD models: a plain resize to the
// input size with values scaled to [0, 1].
func SSDConfig(width, height int) Config {
	return Config{
		Name:              "ssd",
		InputWidth:        width,
		InputHeight:       height,
		NormalizationType: NormalizeZeroToOne,
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeRGB,
		Batch:             true,
	}
}

// YOLOConfig returns a standard configuration for YOLO models.
func YOLOConfig(inputSize int) Config {
	return Config{
		Name:              "yolo",
		InputWidth:        inputSize,
		InputHeight:       inputSize,
		NormalizationType: NormalizeZeroToOne,
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeRGB,
		KeepAspectRatio:   true,
		LetterboxColor:    color.RGBA{114, 114, 114, 255},
		Batch:             true,
	}
}

// ImageNetConfig returns the standardization used by ImageNet classifiers.
func ImageNetConfig(inputSize int) Config {
	return Config{
		Name:              "imagenet",
		InputWidth:        inputSize,
		InputHeight:       inputSize,
		NormalizationType: NormalizeStandardize,
		MeanValues:        []float32{123.675, 116.28, 103.53},
		StdValues:         []float32{58.395, 57.12, 57.375},
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeRGB,
		Batch:             true,
	}
}
