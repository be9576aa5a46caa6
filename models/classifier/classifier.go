// Package classifier - Image classification translator.
package classifier

import (
	"fmt"
	"image"
	"sort"

	"github.com/nvr-ai/go-infer/inference"
	"github.com/nvr-ai/go-infer/models/preprocess"
	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/pkg/errors"
)

// Classification is one ranked label.
type Classification struct {
	ClassName   string  `json:"class_name"`
	Class       int     `json:"class"`
	Probability float64 `json:"probability"`
}

func (c Classification) String() string {
	return fmt.Sprintf("%s: %.4f", c.ClassName, c.Probability)
}

// Classifications are ordered by descending probability.
type Classifications []Classification

// Best returns the top classification.
func (c Classifications) Best() (Classification, bool) {
	if len(c) == 0 {
		return Classification{}, false
	}
	return c[0], true
}

// Config for the classifier translator.
type Config struct {
	Size int `json:"size" yaml:"size"`
	// TopK limits the results; 0 returns every class.
	TopK int `json:"top_k" yaml:"top_k"`
	// Threshold drops classes with a lower probability.
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// Logits applies softmax to the output before ranking.
	Logits  bool             `json:"logits" yaml:"logits"`
	Classes inference.Synset `json:"-" yaml:"-"`
}

// DefaultConfig returns an ImageNet style top-5 classifier.
func DefaultConfig() Config {
	return Config{Size: 224, TopK: 5, Logits: true}
}

// Translator implements inference.Translator[image.Image, Classifications].
type Translator struct {
	config       Config
	preprocessor *preprocess.Preprocessor
}

// NewTranslator creates a classifier translator using ImageNet standardization.
func NewTranslator(config Config) (*Translator, error) {
	if config.TopK < 0 {
		return nil, errors.Errorf("invalid top k %d", config.TopK)
	}
	preprocessor, err := preprocess.NewPreprocessor(preprocess.ImageNetConfig(config.Size))
	if err != nil {
		return nil, errors.Wrap(err, "classifier")
	}
	return &Translator{config: config, preprocessor: preprocessor}, nil
}

var _ inference.Translator[image.Image, Classifications] = (*Translator)(nil)

// ProcessInput resizes and standardizes the image into a [1, 3, S, S] tensor.
func (t *Translator) ProcessInput(_ *inference.TranslatorContext, img image.Image) (ndarray.NDList, error) {
	result, err := t.preprocessor.Preprocess(img)
	if err != nil {
		return nil, err
	}
	return ndarray.NewList(result.Array), nil
}

// ProcessOutput turns the first output into classifications sorted by
// probability, applying softmax when Logits is set and keeping at most TopK.
func (t *Translator) ProcessOutput(ctx *inference.TranslatorContext, outputs ndarray.NDList) (Classifications, error) {
	if outputs.Len() == 0 {
		return nil, errors.New("no outputs")
	}
	probs := outputs.Get(0).Flatten()
	if t.config.Logits {
		probs = probs.Softmax()
	}

	synset := t.config.Classes
	if model := ctx.Model(); model != nil && len(model.Synset) > 0 {
		synset = model.Synset
	}
	values := probs.Float32s()
	if len(synset) > 0 && len(values) > len(synset) {
		return nil, errors.Wrapf(inference.ErrClassIndex, "%d scores for %d classes", len(values), len(synset))
	}

	out := make(Classifications, 0, len(values))
	for i, v := range values {
		if float64(v) < t.config.Threshold {
			continue
		}
		name := fmt.Sprintf("class_%d", i)
		if len(synset) > 0 {
			name = synset[i]
		}
		out = append(out, Classification{ClassName: name, Class: i, Probability: float64(v)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })

	if k := t.config.TopK; k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}
