package inference

import "github.com/nvr-ai/go-infer/ndarray"

// Translator converts between domain values and the tensors a model consumes.
type Translator[I, O any] interface {
	// ProcessInput turns an input value into model inputs.
	ProcessInput(ctx *TranslatorContext, input I) (ndarray.NDList, error)
	// ProcessOutput turns model outputs into a result value.
	ProcessOutput(ctx *TranslatorContext, outputs ndarray.NDList) (O, error)
}

// TranslatorContext carries the model and per-call state between the two
// halves of a Translator. A context is never shared between calls.
type TranslatorContext struct {
	model       *Model
	attachments map[string]any
}

// NewTranslatorContext creates a context bound to model.
func NewTranslatorContext(model *Model) *TranslatorContext {
	return &TranslatorContext{model: model, attachments: map[string]any{}}
}

// Model returns the model being run.
func (c *TranslatorContext) Model() *Model { return c.model }

// SetAttachment stores a value under key.
func (c *TranslatorContext) SetAttachment(key string, value any) {
	c.attachments[key] = value
}

// Attachment returns the value stored under key.
func (c *TranslatorContext) Attachment(key string) (any, bool) {
	v, ok := c.attachments[key]
	return v, ok
}

// AttachmentAs returns the value stored under key if it has type T.
func AttachmentAs[T any](c *TranslatorContext, key string) (T, bool) {
	v, ok := c.attachments[key]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
