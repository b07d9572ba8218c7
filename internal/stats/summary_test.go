package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	values := []float64{50, 20, 30, 40, 10}

	s := Summarize(values)

	assert.Equal(t, 5, s.Count)
	assert.InDelta(t, 30, s.Mean, 1e-12)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 50.0, s.Max)
	assert.InDelta(t, 30, s.P50, 1e-9)
	assert.Equal(t, []float64{50, 20, 30, 40, 10}, values, "input untouched")
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Zero(t, Percentile(nil, 50))
}

func TestPercentileBounds(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	assert.Equal(t, 1.0, Percentile(sorted, -5))
	assert.Equal(t, 4.0, Percentile(sorted, 150))
}
