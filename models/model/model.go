// Package model - Translator names and options shared by the registry and CLI.
package model

import (
	"github.com/nvr-ai/go-infer/models/postprocess"
	"github.com/pkg/errors"
)

// Name is the unique identifier of a translator family.
type Name string

const (
	// ModelNameSSD is a single shot multibox detector.
	ModelNameSSD Name = "ssd"
	// ModelNameYOLO is an anchor-free YOLOv8 style detector.
	ModelNameYOLO Name = "yolo"
	// ModelNameClassifier is an image classifier.
	ModelNameClassifier Name = "classifier"
)

// Names lists every supported translator.
var Names = []Name{ModelNameSSD, ModelNameYOLO, ModelNameClassifier}

// Options configure a translator.
type Options struct {
	// Name selects the translator.
	Name Name `json:"name" yaml:"name"`
	// Family selects the fallback class set when the model ships no synset.
	Family string `json:"family,omitempty" yaml:"family,omitempty"`
	// Width and Height are the model input size in pixels.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// Threshold is the minimum probability for a result to be kept.
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// Layout selects the output decoding for detectors that have several.
	Layout string `json:"layout,omitempty" yaml:"layout,omitempty"`
	// TopK limits classifier results.
	TopK int `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	// NMS enables non-maximum suppression on detections.
	NMS *postprocess.NMSConfig `json:"nms,omitempty" yaml:"nms,omitempty"`
}

// DefaultOptions returns the defaults for the named translator.
func DefaultOptions(name Name) Options {
	switch name {
	case ModelNameYOLO:
		nms := postprocess.DefaultNMSConfig()
		return Options{Name: name, Family: "yolo", Width: 640, Height: 640, Threshold: 0.25, NMS: &nms}
	case ModelNameClassifier:
		return Options{Name: name, Width: 224, Height: 224, TopK: 5}
	default:
		return Options{Name: ModelNameSSD, Family: "coco", Width: 512, Height: 512, Threshold: 0.2, Layout: "mxnet"}
	}
}

// Validate checks the options for obvious mistakes.
func (o Options) Validate() error {
	known := false
	for _, n := range Names {
		known = known || n == o.Name
	}
	if !known {
		return errors.Errorf("unsupported model name: %s", o.Name)
	}
	if o.Width <= 0 || o.Height <= 0 {
		return errors.Errorf("invalid input size %dx%d", o.Width, o.Height)
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		return errors.Errorf("threshold %v outside [0, 1]", o.Threshold)
	}
	return nil
}
