package inference

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sumTranslator feeds a vector to the engine and returns the label of the
// largest output.
type sumTranslator struct {
	failInput  bool
	failOutput error
	outputs    atomic.Int32
}

func (s *sumTranslator) ProcessInput(ctx *TranslatorContext, input []float32) (ndarray.NDList, error) {
	if s.failInput {
		return nil, errors.New("bad input")
	}
	ctx.SetAttachment("n", len(input))
	arr, err := ndarray.New(ndarray.Shape{len(input)}, input)
	if err != nil {
		return nil, err
	}
	return ndarray.NewList(arr), nil
}

func (s *sumTranslator) ProcessOutput(ctx *TranslatorContext, outputs ndarray.NDList) (string, error) {
	s.outputs.Add(1)
	if s.failOutput != nil {
		return "", s.failOutput
	}
	n, ok := AttachmentAs[int](ctx, "n")
	if !ok || n != outputs.Get(0).Size() {
		return "", errors.New("attachment lost")
	}
	return ctx.Model().ClassName(outputs.Get(0).ArgMax())
}

func newTestModel() (*Model, *FuncEngine) {
	engine := NewFuncEngine("double", func(_ context.Context, in ndarray.NDList) (ndarray.NDList, error) {
		return ndarray.NewList(in.Get(0).Scale(2)), nil
	})
	return NewModel("test", engine, Synset{"a", "b", "c"}), engine
}

func TestPredictor_Predict(t *testing.T) {
	model, engine := newTestModel()
	p := NewPredictor[[]float32, string](model, &sumTranslator{}, WithModelOwnership())

	got, err := p.Predict(context.Background(), []float32{0.1, 0.7, 0.2})
	require.NoError(t, err)
	assert.Equal(t, "b", got)
	assert.Equal(t, 1, p.Metrics().Count())
	assert.EqualValues(t, 1, engine.Calls())

	require.NoError(t, p.Close())
	assert.True(t, engine.Closed())

	_, err = p.Predict(context.Background(), []float32{1})
	assert.ErrorIs(t, err, ErrPredictorClosed)
	require.NoError(t, p.Close())
}

func TestPredictor_Errors(t *testing.T) {
	tests := []struct {
		name       string
		translator *sumTranslator
		input      []float32
		stage      Stage
		cause      error
	}{
		{name: "input stage", translator: &sumTranslator{failInput: true}, input: []float32{1}, stage: StageInput},
		{name: "class index", translator: &sumTranslator{}, input: []float32{0, 0, 0, 9}, stage: StageOutput, cause: ErrClassIndex},
		{
			name:       "existing translate error kept",
			translator: &sumTranslator{failOutput: &TranslateError{Stage: StageInput, Err: errors.New("x")}},
			input:      []float32{1},
			stage:      StageInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, _ := newTestModel()
			p := NewPredictor[[]float32, string](model, tt.translator)
			defer p.Close()

			_, err := p.Predict(context.Background(), tt.input)
			require.Error(t, err)

			var te *TranslateError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.stage, te.Stage)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
			assert.Zero(t, p.Metrics().Count())
		})
	}
}

func TestPredictor_ContextCanceled(t *testing.T) {
	model, engine := newTestModel()
	p := NewPredictor[[]float32, string](model, &sumTranslator{})
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Predict(ctx, []float32{1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, engine.Calls())
}

func TestPredictor_CloseKeepsSharedModel(t *testing.T) {
	model, engine := newTestModel()
	p := NewPredictor[[]float32, string](model, &sumTranslator{})
	require.NoError(t, p.Close())
	assert.False(t, engine.Closed())
}

func TestPredictor_BatchPredict(t *testing.T) {
	model, engine := newTestModel()
	metrics := NewMetrics()
	p := NewPredictor[[]float32, string](model, &sumTranslator{}, WithWorkers(2), WithMetrics(metrics))
	defer p.Close()

	inputs := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{0, 5, 1},
	}
	got, err := p.BatchPredict(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "b"}, got)
	assert.EqualValues(t, 4, engine.Calls())
	assert.Equal(t, 4, metrics.Count())

	_, err = p.BatchPredict(context.Background(), [][]float32{{1}, {0, 0, 0, 0, 1}})
	assert.ErrorIs(t, err, ErrClassIndex)
}
