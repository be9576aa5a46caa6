package models

import (
	"image"

	"github.com/nvr-ai/go-infer/inference"
	"github.com/nvr-ai/go-infer/models/classifier"
	"github.com/nvr-ai/go-infer/models/model"
	"github.com/nvr-ai/go-infer/models/postprocess"
	"github.com/nvr-ai/go-infer/models/ssd"
	"github.com/nvr-ai/go-infer/models/yolo"
	"github.com/pkg/errors"
)

// Detector translates an image into detected objects.
type Detector = inference.Translator[image.Image, postprocess.DetectedObjects]

// NewTranslator creates the detection translator named by opts.
//
// This factory is the entry point used by the CLI: it validates the options,
// resolves the fallback class set from opts.Family and routes to the
// detector specific constructor.
//
// Arguments:
//   - opts: The translator name, input size, threshold and decoding options.
//
// Returns:
//   - Detector: The translator.
//   - error: An error if the options are invalid or the name is not a detector.
//
// Example:
//
//	opts := model.DefaultOptions(model.ModelNameSSD)
//	translator, err := NewTranslator(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	predictor := inference.NewPredictor(m, translator)
func NewTranslator(opts model.Options) (Detector, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	classes := fallbackClasses(opts.Family)

	switch opts.Name {
	case model.ModelNameSSD:
		layout, err := ssd.ParseLayout(opts.Layout)
		if err != nil {
			return nil, err
		}
		t, err := ssd.NewTranslator(ssd.Config{
			Width:     opts.Width,
			Height:    opts.Height,
			Threshold: opts.Threshold,
			Layout:    layout,
			Classes:   classes,
			NMS:       opts.NMS,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case model.ModelNameYOLO:
		t, err := yolo.NewTranslator(yolo.Config{
			Width:     opts.Width,
			Height:    opts.Height,
			Threshold: opts.Threshold,
			Classes:   classes,
			NMS:       opts.NMS,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, errors.Errorf("%s is not a detector", opts.Name)
	}
}

// NewClassifier creates a classifier translator from opts.
func NewClassifier(opts model.Options) (*classifier.Translator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Name != model.ModelNameClassifier {
		return nil, errors.Errorf("%s is not a classifier", opts.Name)
	}
	return classifier.NewTranslator(classifier.Config{
		Size:      opts.Width,
		TopK:      opts.TopK,
		Threshold: opts.Threshold,
		Logits:    true,
		Classes:   fallbackClasses(opts.Family),
	})
}

func fallbackClasses(family string) inference.Synset {
	if family == "" {
		return nil
	}
	set, ok := ClassSet(ModelFamily(family))
	if !ok {
		return nil
	}
	return set.Names()
}
