package rubric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleRubric = `
criteria:
  - name: correctness
    weight: 2
  - name: clarity
    weight: 1
passThreshold: 70
`

func lookupFixed(source string) func(string) (string, bool) {
	return func(id string) (string, bool) {
		if id != "quality" {
			return "", false
		}
		return source, true
	}
}

func TestEvaluatePassesAboveThreshold(t *testing.T) {
	e := NewEngine(lookupFixed(sampleRubric))
	eval, err := e.Evaluate(context.Background(), "quality", `{"score": 85}`, nil)
	require.NoError(t, err)
	require.True(t, eval.Passed)
	require.InDelta(t, 85, eval.Score, 0.001)
	require.Len(t, eval.Criteria, 2)
}

func TestEvaluateFailsBelowThreshold(t *testing.T) {
	e := NewEngine(lookupFixed(sampleRubric))
	eval, err := e.Evaluate(context.Background(), "quality", "Score: 50", nil)
	require.NoError(t, err)
	require.False(t, eval.Passed)
	require.InDelta(t, 50, eval.Score, 0.001)
}

func TestEvaluatePrefersMetadataScore(t *testing.T) {
	e := NewEngine(lookupFixed(sampleRubric))
	eval, err := e.Evaluate(context.Background(), "quality", "no score here", map[string]any{"score": 92.0})
	require.NoError(t, err)
	require.InDelta(t, 92, eval.Score, 0.001)
}

func TestEvaluateNormalizesFractionalScore(t *testing.T) {
	e := NewEngine(lookupFixed(sampleRubric))
	eval, err := e.Evaluate(context.Background(), "quality", `{"score": 0.9}`, nil)
	require.NoError(t, err)
	require.InDelta(t, 90, eval.Score, 0.001)
}

func TestEvaluateUnknownRubricErrors(t *testing.T) {
	e := NewEngine(lookupFixed(sampleRubric))
	_, err := e.Evaluate(context.Background(), "missing", "", nil)
	require.Error(t, err)
}

func TestPassThresholdDefaultsWhenUnset(t *testing.T) {
	e := NewEngine(lookupFixed("criteria: []\n"))
	require.Equal(t, float64(70), e.PassThreshold("quality"))
}
