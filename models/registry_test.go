package models

import (
	"testing"

	"github.com/nvr-ai/go-infer/models/model"
	"github.com/nvr-ai/go-infer/models/ssd"
	"github.com/nvr-ai/go-infer/models/yolo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTranslator(t *testing.T) {
	t.Run("ssd", func(t *testing.T) {
		translator, err := NewTranslator(model.DefaultOptions(model.ModelNameSSD))
		require.NoError(t, err)
		s, ok := translator.(*ssd.Translator)
		require.True(t, ok)
		assert.Equal(t, ssd.LayoutMXNet, s.Config().Layout)
		assert.Len(t, s.Config().Classes, 81)
		assert.Equal(t, 512, s.Config().Width)
	})

	t.Run("yolo", func(t *testing.T) {
		translator, err := NewTranslator(model.DefaultOptions(model.ModelNameYOLO))
		require.NoError(t, err)
		y, ok := translator.(*yolo.Translator)
		require.True(t, ok)
		assert.Len(t, y.Config().Classes, 80)
		assert.NotNil(t, y.Config().NMS)
	})

	tests := []struct {
		name string
		opts model.Options
	}{
		{name: "classifier is not a detector", opts: model.DefaultOptions(model.ModelNameClassifier)},
		{name: "unknown", opts: model.Options{Name: "rcnn", Width: 1, Height: 1}},
		{name: "bad layout", opts: model.Options{Name: model.ModelNameSSD, Width: 1, Height: 1, Layout: "retina"}},
		{name: "bad size", opts: model.Options{Name: model.ModelNameYOLO}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTranslator(tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestNewClassifier(t *testing.T) {
	_, err := NewClassifier(model.DefaultOptions(model.ModelNameClassifier))
	require.NoError(t, err)

	_, err = NewClassifier(model.DefaultOptions(model.ModelNameSSD))
	assert.Error(t, err)
}
