// Package ssd - Single shot multibox detector translator.
package ssd

import (
	"image"
	"log/slog"

	"github.com/nvr-ai/go-infer/inference"
	"github.com/nvr-ai/go-infer/models/postprocess"
	"github.com/nvr-ai/go-infer/models/preprocess"
	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/pkg/errors"
)

const transformKey = "ssd.transform"

// Config for the SSD translator.
type Config struct {
	// Width and Height are the model input size.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// Threshold keeps detections with a strictly higher probability.
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// KeepBackground keeps rows of class 0, which SSD exports use for
	// background.
	KeepBackground bool `json:"keep_background,omitempty" yaml:"keep_background,omitempty"`
	// Layout selects the output decoding.
	Layout Layout `json:"layout" yaml:"layout"`
	// Classes are used when the model ships no synset.
	Classes inference.Synset `json:"-" yaml:"-"`
	// NMS optionally suppresses overlapping boxes; nil keeps every row.
	NMS *postprocess.NMSConfig `json:"nms,omitempty" yaml:"nms,omitempty"`
	// Preprocess overrides the input pipeline; nil uses preprocess.SSDConfig.
	Preprocess *preprocess.Config `json:"-" yaml:"-"`
}

// DefaultConfig returns a 512x512 MXNet style detector with a 0.2 threshold.
func DefaultConfig() Config {
	return Config{Width: 512, Height: 512, Threshold: 0.2, Layout: LayoutMXNet}
}

// Translator converts images to SSD input tensors and decodes detections.
// It implements inference.Translator[image.Image, postprocess.DetectedObjects].
type Translator struct {
	config       Config
	preprocessor *preprocess.Preprocessor
}

// NewTranslator creates an SSD translator.
//
// Arguments:
//   - config: Input size, threshold and output layout.
//
// Returns:
//   - *Translator: The translator.
//   - error: An error if the configuration is invalid.
func NewTranslator(config Config) (*Translator, error) {
	layout, err := ParseLayout(string(config.Layout))
	if err != nil {
		return nil, err
	}
	config.Layout = layout

	pre := preprocess.SSDConfig(config.Width, config.Height)
	if config.Preprocess != nil {
		pre = *config.Preprocess
	}
	preprocessor, err := preprocess.NewPreprocessor(pre)
	if err != nil {
		return nil, errors.Wrap(err, "ssd")
	}
	return &Translator{config: config, preprocessor: preprocessor}, nil
}

var _ inference.Translator[image.Image, postprocess.DetectedObjects] = (*Translator)(nil)

// Config returns the translator configuration.
func (t *Translator) Config() Config { return t.config }

// ProcessInput resizes the image to the model input and converts it to a
// [1, 3, H, W] tensor.
func (t *Translator) ProcessInput(ctx *inference.TranslatorContext, img image.Image) (ndarray.NDList, error) {
	result, err := t.preprocessor.Preprocess(img)
	if err != nil {
		return nil, err
	}
	ctx.SetAttachment(transformKey, result.Transform)
	return ndarray.NewList(result.Array), nil
}

// ProcessOutput decodes the model outputs into detections in original image
// pixels. Background rows and rows not above the threshold are skipped; a
// class outside the synset is an error.
func (t *Translator) ProcessOutput(ctx *inference.TranslatorContext, outputs ndarray.NDList) (postprocess.DetectedObjects, error) {
	transform, ok := inference.AttachmentAs[preprocess.Transform](ctx, transformKey)
	if !ok {
		return nil, errors.New("missing input transform, ProcessInput was not called")
	}

	pre := t.preprocessor.Config()
	rows, err := decode(t.config.Layout, outputs, pre.InputWidth, pre.InputHeight)
	if err != nil {
		return nil, err
	}

	synset := t.config.Classes
	if model := ctx.Model(); model != nil && len(model.Synset) > 0 {
		synset = model.Synset
	}

	firstClass := 1
	if t.config.KeepBackground {
		firstClass = 0
	}

	objects := make(postprocess.DetectedObjects, 0, len(rows))
	for _, row := range rows {
		if row.class < firstClass || float64(row.score) <= t.config.Threshold {
			continue
		}
		name, err := synset.Name(row.class)
		if err != nil {
			return nil, err
		}

		x1, y1 := transform.ToOriginal(row.x1, row.y1)
		x2, y2 := transform.ToOriginal(row.x2, row.y2)
		box := postprocess.NewRectangle(x1, y1, x2, y2).
			Clamp(float64(transform.OriginalWidth), float64(transform.OriginalHeight))

		objects = append(objects, postprocess.DetectedObject{
			ClassName:   name,
			Class:       row.class,
			Probability: float64(row.score),
			Box:         box,
		})
	}

	if t.config.NMS != nil {
		objects = postprocess.ApplyNMS(objects, *t.config.NMS)
	} else {
		objects.Sort()
	}

	slog.Debug("ssd detections", "rows", len(rows), "kept", len(objects))
	return objects, nil
}
