package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTally(t *testing.T) {
	counts := Tally(
		[]int{1, 1, 0, 0, 1},
		[]int{1, 0, 0, 1, 1},
	)
	assert.Equal(t, 2, counts.TruePositives)
	assert.Equal(t, 1, counts.FalsePositives)
	assert.Equal(t, 1, counts.TrueNegatives)
	assert.Equal(t, 1, counts.FalseNegatives)
}

func TestCalculate_PerfectClassifier(t *testing.T) {
	result := Calculate(Counts{TruePositives: 5, TrueNegatives: 5})
	assert.Equal(t, 1.0, result["precision"])
	assert.Equal(t, 1.0, result["recall"])
	assert.Equal(t, 1.0, result["f1"])
	assert.Equal(t, 1.0, result["accuracy"])
}

func TestCalculate_ZeroDenominators(t *testing.T) {
	result := Calculate(Counts{})
	assert.Equal(t, 0.0, result["precision"])
	assert.Equal(t, 0.0, result["recall"])
	assert.Equal(t, 0.0, result["f1"])
	assert.Equal(t, 0.0, result["accuracy"])
}

func TestCalculate_Mixed(t *testing.T) {
	result := Calculate(Counts{TruePositives: 3, FalsePositives: 1, TrueNegatives: 4, FalseNegatives: 2})
	assert.InDelta(t, 0.75, result["precision"], 1e-9)
	assert.InDelta(t, 0.6, result["recall"], 1e-9)
	assert.InDelta(t, 2*0.75*0.6/(0.75+0.6), result["f1"], 1e-9)
	assert.InDelta(t, 0.7, result["accuracy"], 1e-9)
}
