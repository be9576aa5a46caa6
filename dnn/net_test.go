package dnn

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-infer/inference"
	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEngine(t *testing.T) {
	dir := t.TempDir()
	weights := filepath.Join(dir, "frozen_inference_graph.pb")
	graph := filepath.Join(dir, "frozen_inference_graph.pbtxt")
	require.NoError(t, os.WriteFile(weights, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(graph, []byte("x"), 0o644))

	c := configFromEngine(weights, inference.EngineConfig{
		Type:    inference.EngineOpenCV,
		Options: map[string]string{"target": "fp16", "outputs": "detection_out, extra"},
	})
	assert.Equal(t, graph, c.ConfigPath)
	assert.Equal(t, "opencv", c.Backend)
	assert.Equal(t, "fp16", c.Target)
	assert.Equal(t, []string{"detection_out", "extra"}, c.Outputs)

	explicit := configFromEngine(weights, inference.EngineConfig{Options: map[string]string{"config": "/x.pbtxt"}})
	assert.Equal(t, "/x.pbtxt", explicit.ConfigPath)
	assert.Empty(t, explicit.Outputs)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(Config{ModelPath: filepath.Join(t.TempDir(), "missing.onnx")})
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.onnx")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Open(Config{ModelPath: empty})
	assert.ErrorContains(t, err, "empty")
}

func TestBlobRoundTrip(t *testing.T) {
	arr := ndarray.MustNew(ndarray.Shape{1, 2, 2, 3}, []float32{
		0, 1, 2, 3, 4, 5,
		6, 7, 8, 9, 10, 11,
	})

	blob, err := ToBlob(arr)
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, []int{1, 2, 2, 3}, blob.Size())

	back, err := FromBlob(blob)
	require.NoError(t, err)
	assert.True(t, arr.Equal(back))

	_, err = ToBlob(ndarray.MustNew(ndarray.Shape{0}, nil))
	assert.Error(t, err)
}

// TestNet_Forward runs a real model when DNN_TEST_MODEL names one.
func TestNet_Forward(t *testing.T) {
	model := os.Getenv("DNN_TEST_MODEL")
	if model == "" {
		t.Skip("DNN_TEST_MODEL not set")
	}

	engine, err := open(context.Background(), model, inference.EngineConfig{Type: inference.EngineOpenCV})
	require.NoError(t, err)
	defer engine.Close()

	input, err := ndarray.Zeros(ndarray.Shape{1, 3, 300, 300})
	require.NoError(t, err)
	outputs, err := engine.Forward(context.Background(), ndarray.NewList(input))
	require.NoError(t, err)
	assert.NotZero(t, outputs.Len())

	require.NoError(t, engine.Close())
	_, err = engine.Forward(context.Background(), ndarray.NewList(input))
	assert.Error(t, err)
}
