package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nvr-ai/go-infer/config"
	"github.com/nvr-ai/go-infer/inference"
	"github.com/nvr-ai/go-infer/models/postprocess"
	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfig(t *testing.T) {
	var f flags
	cmd := newRootCmd(&f)
	require.NoError(t, cmd.ParseFlags([]string{
		"-p", "/models", "-n", "ssd_300", "-i", "dog.jpg", "-l", "build/logs", "-c", "5",
		"--engine", "opencv", "--threshold", "0.4", "--width", "300", "--height", "300",
	}))

	c, err := resolveConfig(cmd, f)
	require.NoError(t, err)
	assert.Equal(t, "/models", c.Model.ModelDir)
	assert.Equal(t, "ssd_300", c.Model.ModelName)
	assert.Equal(t, "build/logs", c.LogDir)
	assert.Equal(t, 5, c.Iterations)
	assert.Equal(t, inference.EngineOpenCV, c.Model.Engine.Type)
	assert.InDelta(t, 0.4, c.Translator.Threshold, 1e-9)
	assert.Equal(t, 300, c.Translator.Width)
	assert.Equal(t, 300, c.Translator.Height)
}

func TestResolveConfig_Defaults(t *testing.T) {
	var f flags
	cmd := newRootCmd(&f)
	require.NoError(t, cmd.ParseFlags([]string{"-i", "dog.jpg"}))

	c, err := resolveConfig(cmd, f)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Translator, c.Translator)
	assert.Equal(t, 1, c.Iterations)
	assert.Empty(t, c.LogDir)
}

func TestResolveConfig_Invalid(t *testing.T) {
	tests := [][]string{
		{"--engine", "tflite"},
		{"-c", "0"},
		{"--threshold", "1.5"},
		{"--engine", "func"},
	}
	for _, args := range tests {
		var f flags
		cmd := newRootCmd(&f)
		require.NoError(t, cmd.ParseFlags(args))
		_, err := resolveConfig(cmd, f)
		assert.Error(t, err, args)
	}
}

func TestRun_MissingImage(t *testing.T) {
	err := run(context.Background(), &bytes.Buffer{}, config.Default(), filepath.Join(t.TempDir(), "none.jpg"), 0)
	assert.Error(t, err)
}

// cannedEngines registers a func engine that always reports one dog and one
// background row, and returns the engines it opened.
func cannedEngines(t *testing.T) func() []*inference.FuncEngine {
	t.Helper()
	var (
		mu     sync.Mutex
		opened []*inference.FuncEngine
	)
	rows := []float32{
		2, 0.9, 0.25, 0.25, 0.75, 0.75,
		0, 0.95, 0, 0, 1, 1,
	}
	inference.Register(inference.EngineFunc, func(_ context.Context, path string, _ inference.EngineConfig) (inference.Engine, error) {
		e := inference.NewFuncEngine(filepath.Base(path), func(context.Context, ndarray.NDList) (ndarray.NDList, error) {
			return ndarray.NewList(ndarray.MustNew(ndarray.Shape{1, 2, 6}, rows)), nil
		})
		mu.Lock()
		defer mu.Unlock()
		opened = append(opened, e)
		return e, nil
	})
	return func() []*inference.FuncEngine {
		mu.Lock()
		defer mu.Unlock()
		return append([]*inference.FuncEngine(nil), opened...)
	}
}

func writeFixture(t *testing.T) (modelDir, imagePath string) {
	t.Helper()
	modelDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "model.onnx"), []byte("onnx"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, inference.DefaultSynsetFile),
		[]byte("background\nperson\ndog\n"), 0o644))

	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: 160, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	imagePath = filepath.Join(modelDir, "dog.png")
	require.NoError(t, os.WriteFile(imagePath, buf.Bytes(), 0o644))
	return modelDir, imagePath
}

func TestRun_Detect(t *testing.T) {
	engines := cannedEngines(t)
	modelDir, imagePath := writeFixture(t)

	c := config.Default()
	c.Model = inference.Criteria{
		ModelDir:  modelDir,
		ModelName: "model.onnx",
		Engine:    inference.EngineConfig{Type: inference.EngineFunc},
	}
	c.Translator.Width, c.Translator.Height = 8, 8
	c.Workers = 1

	tests := []struct {
		name       string
		iterations int
		logDir     string
	}{
		{name: "renders into log dir", iterations: 3, logDir: filepath.Join(t.TempDir(), "logs")},
		{name: "no log dir writes nothing", iterations: 2, logDir: ""},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cwd := t.TempDir()
			t.Chdir(cwd)

			c := c
			c.Iterations = tt.iterations
			c.LogDir = tt.logDir

			var out bytes.Buffer
			require.NoError(t, run(context.Background(), &out, c, imagePath, 0))

			opened := engines()
			require.Len(t, opened, i+1)
			engine := opened[i]
			assert.EqualValues(t, tt.iterations, engine.Calls())
			assert.True(t, engine.Closed())

			assert.Contains(t, out.String(), "1 objects detected")
			assert.Contains(t, out.String(), "dog (0.9000)")
			assert.NotContains(t, out.String(), "background")
			assert.Contains(t, out.String(), "postprocess")

			entries, err := os.ReadDir(cwd)
			require.NoError(t, err)
			assert.Empty(t, entries)

			if tt.logDir == "" {
				assert.NotContains(t, out.String(), "Detections saved")
				_, err := os.Stat(filepath.Join(modelDir, OutputFile))
				assert.True(t, os.IsNotExist(err))
				return
			}
			assert.FileExists(t, filepath.Join(tt.logDir, OutputFile))
			reports, err := filepath.Glob(filepath.Join(tt.logDir, "benchmark_results_*.json"))
			require.NoError(t, err)
			assert.Len(t, reports, 1)
		})
	}
}

func TestPrint(t *testing.T) {
	var out bytes.Buffer
	printDetections(&out, nil)
	assert.Contains(t, out.String(), "No objects detected")

	out.Reset()
	printDetections(&out, postprocess.DetectedObjects{{ClassName: "dog", Probability: 0.9}})
	assert.Contains(t, out.String(), "1 objects detected")
	assert.Contains(t, out.String(), "dog (0.9000)")

	out.Reset()
	printLatency(&out, []inference.Summary{{Stage: "total", Count: 2, Mean: 1500 * time.Microsecond}})
	assert.Contains(t, out.String(), "1.50ms")
	assert.Contains(t, out.String(), "total")
	assert.Contains(t, out.String(), "MEAN")
}
