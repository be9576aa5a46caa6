package inference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	assert.Nil(t, m.Summaries())

	for i := 1; i <= 10; i++ {
		d := time.Duration(i) * time.Millisecond
		m.Record(Timing{Preprocess: d, Inference: 2 * d, Postprocess: d})
	}
	assert.Equal(t, 10, m.Count())

	summaries := m.Summaries()
	require.Len(t, summaries, 4)

	inference := summaries[1]
	assert.Equal(t, "inference", inference.Stage)
	assert.Equal(t, 10, inference.Count)
	assert.Equal(t, 2*time.Millisecond, inference.Min)
	assert.Equal(t, 20*time.Millisecond, inference.Max)
	assert.Equal(t, 11*time.Millisecond, inference.Mean)
	assert.Equal(t, 10*time.Millisecond, inference.P50)
	assert.Equal(t, 18*time.Millisecond, inference.P90)
	assert.Equal(t, 20*time.Millisecond, inference.P99)

	total := summaries[3]
	assert.Equal(t, "total", total.Stage)
	assert.Equal(t, 40*time.Millisecond, total.Max)

	m.Reset()
	assert.Zero(t, m.Count())
}
