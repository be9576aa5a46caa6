// Package yolo - Anchor-free YOLO detector translator.
package yolo

import (
	"image"
	"log/slog"

	"github.com/nvr-ai/go-infer/inference"
	"github.com/nvr-ai/go-infer/models/postprocess"
	"github.com/nvr-ai/go-infer/models/preprocess"
	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/pkg/errors"
)

const transformKey = "yolo.transform"

// Config for the YOLO translator.
type Config struct {
	Width     int                    `json:"width" yaml:"width"`
	Height    int                    `json:"height" yaml:"height"`
	Threshold float64                `json:"threshold" yaml:"threshold"`
	Classes   inference.Synset       `json:"-" yaml:"-"`
	NMS       *postprocess.NMSConfig `json:"nms,omitempty" yaml:"nms,omitempty"`
}

// DefaultConfig returns a 640x640 detector with class-aware NMS.
func DefaultConfig() Config {
	nms := postprocess.DefaultNMSConfig()
	return Config{Width: 640, Height: 640, Threshold: 0.25, NMS: &nms}
}

// Translator letterboxes images into the model input and decodes
// [1, 4+C, A] predictions where each anchor carries a center box followed by
// per-class scores.
type Translator struct {
	config       Config
	preprocessor *preprocess.Preprocessor
}

// NewTranslator creates a YOLO translator.
func NewTranslator(config Config) (*Translator, error) {
	pre := preprocess.YOLOConfig(config.Width)
	pre.InputHeight = config.Height
	preprocessor, err := preprocess.NewPreprocessor(pre)
	if err != nil {
		return nil, errors.Wrap(err, "yolo")
	}
	return &Translator{config: config, preprocessor: preprocessor}, nil
}

var _ inference.Translator[image.Image, postprocess.DetectedObjects] = (*Translator)(nil)

// Config returns the translator configuration.
func (t *Translator) Config() Config { return t.config }

// ProcessInput letterboxes the image into a [1, 3, H, W] tensor and records
// the transform for ProcessOutput.
func (t *Translator) ProcessInput(ctx *inference.TranslatorContext, img image.Image) (ndarray.NDList, error) {
	result, err := t.preprocessor.Preprocess(img)
	if err != nil {
		return nil, err
	}
	ctx.SetAttachment(transformKey, result.Transform)
	return ndarray.NewList(result.Array), nil
}

// ProcessOutput decodes [1, 4+C, A] predictions (or the transposed layout)
// into detections in original image pixels, keeping the best class of each
// anchor when it reaches the threshold.
func (t *Translator) ProcessOutput(ctx *inference.TranslatorContext, outputs ndarray.NDList) (postprocess.DetectedObjects, error) {
	transform, ok := inference.AttachmentAs[preprocess.Transform](ctx, transformKey)
	if !ok {
		return nil, errors.New("missing input transform, ProcessInput was not called")
	}
	if outputs.Len() == 0 {
		return nil, errors.New("no outputs")
	}

	synset := t.config.Classes
	if model := ctx.Model(); model != nil && len(model.Synset) > 0 {
		synset = model.Synset
	}

	pred, err := predictions(outputs.Get(0), len(synset))
	if err != nil {
		return nil, err
	}
	attrs := pred.Shape()[0]
	anchors := pred.Shape()[1]
	data := pred.Float32s()

	objects := make(postprocess.DetectedObjects, 0, 16)
	for a := 0; a < anchors; a++ {
		classID, score := -1, float32(-1)
		for c := 4; c < attrs; c++ {
			if v := data[c*anchors+a]; v > score {
				classID, score = c-4, v
			}
		}
		if float64(score) < t.config.Threshold {
			continue
		}
		name, err := synset.Name(classID)
		if err != nil {
			return nil, err
		}

		xc, yc := float64(data[a]), float64(data[anchors+a])
		w, h := float64(data[2*anchors+a]), float64(data[3*anchors+a])
		x1, y1 := transform.ToOriginal(xc-w/2, yc-h/2)
		x2, y2 := transform.ToOriginal(xc+w/2, yc+h/2)

		objects = append(objects, postprocess.DetectedObject{
			ClassName:   name,
			Class:       classID,
			Probability: float64(score),
			Box: postprocess.NewRectangle(x1, y1, x2, y2).
				Clamp(float64(transform.OriginalWidth), float64(transform.OriginalHeight)),
		})
	}

	if t.config.NMS != nil {
		objects = postprocess.ApplyNMS(objects, *t.config.NMS)
	} else {
		objects.Sort()
	}
	slog.Debug("yolo detections", "anchors", anchors, "kept", len(objects))
	return objects, nil
}

// predictions returns the output as [4+C, A]. Exports that emit [1, A, 4+C]
// are transposed when the class count makes the orientation unambiguous.
func predictions(out *ndarray.NDArray, classes int) (*ndarray.NDArray, error) {
	arr := out
	if arr.Dims() == 3 {
		var err error
		if arr, err = arr.Squeeze(0); err != nil {
			return nil, errors.Wrap(err, "yolo output")
		}
	}
	if arr.Dims() != 2 {
		return nil, errors.Errorf("yolo output must be [1, 4+C, A], got %v", out.Shape())
	}

	shape := arr.Shape()
	if classes > 0 && shape[0] != 4+classes && shape[1] == 4+classes {
		return arr.Transpose(1, 0)
	}
	if shape[0] < 5 {
		return nil, errors.Errorf("yolo output must have at least 5 attributes, got %v", out.Shape())
	}
	return arr, nil
}
