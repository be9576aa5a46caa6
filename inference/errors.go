package inference

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrPredictorClosed is returned when a predictor is used after Close.
	ErrPredictorClosed = errors.New("predictor is closed")
	// ErrModelNotFound is returned when no model artifact matches the criteria.
	ErrModelNotFound = errors.New("model not found")
	// ErrClassIndex is returned when a class index falls outside the synset.
	ErrClassIndex = errors.New("class index out of range")
	// ErrEngineNotRegistered is returned when no opener exists for an engine type.
	ErrEngineNotRegistered = errors.New("engine not registered")
)

// Stage names the side of a translator that failed.
type Stage string

const (
	// StageInput is the ProcessInput half of a translator.
	StageInput Stage = "input"
	// StageOutput is the ProcessOutput half of a translator.
	StageOutput Stage = "output"
)

// TranslateError wraps a failure raised by a Translator.
type TranslateError struct {
	Stage Stage
	Err   error
}

// Error implements error.
func (e *TranslateError) Error() string {
	return fmt.Sprintf("translate %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TranslateError) Unwrap() error { return e.Err }

// translateError wraps err as a TranslateError unless it already is one.
func translateError(stage Stage, err error) error {
	var te *TranslateError
	if errors.As(err, &te) {
		return err
	}
	return &TranslateError{Stage: stage, Err: err}
}
