package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/go-szeval/recording"
)

func TestCompute_Confusion(t *testing.T) {
	labels := [][]int{{0, 0, 1, 1}, {0, 1, 2}}
	scores := [][]float64{{0.1, 0.7, 0.8, 0.3}, {0.2, 0.6, 0.9}}

	got, err := Compute(labels, scores, 0.5)
	require.NoError(t, err)

	// windows: (0,.1)tn (0,.7)fp (1,.8)tp (1,.3)fn (0,.2)tn (1,.6)tp (2->0,.9)fp
	assert.Equal(t, 2, got.TruePositives)
	assert.Equal(t, 2, got.FalsePositives)
	assert.Equal(t, 2, got.TrueNegatives)
	assert.Equal(t, 1, got.FalseNegatives)
	assert.InDelta(t, 4.0/7.0, got.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3.0, got.Sensitivity, 1e-12)
	assert.InDelta(t, 0.5, got.Precision, 1e-12)
	assert.InDelta(t, 0.5, got.Specificity, 1e-12)
	assert.InDelta(t, 2*0.5*(2.0/3.0)/(0.5+2.0/3.0), got.F1, 1e-12)
}

func TestCompute_PerfectSeparation(t *testing.T) {
	got, err := Compute([][]int{{0, 0, 1, 1}}, [][]float64{{0.1, 0.2, 0.8, 0.9}}, DefaultThreshold)
	require.NoError(t, err)

	assert.Equal(t, 1.0, got.Accuracy)
	assert.Equal(t, 1.0, got.F1)
	assert.InDelta(t, 1.0, got.AUCROC, 1e-12)
	assert.InDelta(t, 1.0, got.AUCPR, 1e-12)

	require.NotEmpty(t, got.ROC)
	assert.Equal(t, 0.0, got.ROC[0].X)
	assert.Equal(t, 0.0, got.ROC[0].Y)
	last := got.ROC[len(got.ROC)-1]
	assert.Equal(t, 1.0, last.X)
	assert.Equal(t, 1.0, last.Y)

	require.NotEmpty(t, got.PR)
	assert.Equal(t, Point{X: 0, Y: 1, Threshold: 0.9}, got.PR[0])
	for i := 1; i < len(got.PR); i++ {
		assert.LessOrEqual(t, got.PR[i].Threshold, got.PR[i-1].Threshold, "PR ordered by descending score")
	}
}

func TestCompute_InvertedScores(t *testing.T) {
	got, err := Compute([][]int{{0, 0, 1, 1}}, [][]float64{{0.9, 0.8, 0.2, 0.1}}, DefaultThreshold)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got.AUCROC, 1e-12)
	assert.Equal(t, 0.0, got.F1)
	assert.Equal(t, 0.0, got.Precision)
}

func TestCompute_NoPositives(t *testing.T) {
	got, err := Compute([][]int{{0, 0, 0}}, [][]float64{{0.1, 0.9, 0.4}}, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.AUCROC)
	assert.Equal(t, 0.0, got.AUCPR)
	assert.Nil(t, got.ROC)
	assert.Nil(t, got.PR)
	assert.Equal(t, 0.0, got.Sensitivity)
	assert.InDelta(t, 2.0/3.0, got.Specificity, 1e-12)
}

func TestCompute_OnlyPositives(t *testing.T) {
	got, err := Compute([][]int{{1, 1}}, [][]float64{{0.3, 0.9}}, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.AUCROC, "ROC undefined without negatives")
	assert.Nil(t, got.ROC)
	assert.InDelta(t, 1.0, got.AUCPR, 1e-12)
	assert.Equal(t, 0.0, got.Specificity)
}

func TestCompute_Empty(t *testing.T) {
	got, err := Compute(nil, nil, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, Result{}, got)
}

func TestCompute_ShapeMismatch(t *testing.T) {
	_, err := Compute([][]int{{0, 1}}, [][]float64{{0.1}}, DefaultThreshold)
	assert.ErrorIs(t, err, recording.ErrShapeMismatch)

	_, err = Compute([][]int{{0}}, nil, DefaultThreshold)
	assert.ErrorIs(t, err, recording.ErrShapeMismatch)
}

func TestComputeSet(t *testing.T) {
	s := &recording.Set{Recordings: []*recording.Recording{
		{Filename: "a", Labels: []int{0, 1}, Scores: []float64{0.1, 0.9}},
		{Filename: "b", Labels: []int{1, 0}, Scores: []float64{0.8, 0.2}},
	}}
	got, err := ComputeSet(s, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TruePositives)
	assert.Equal(t, 2, got.TrueNegatives)

	s.Recordings[1].Scores = []float64{0.8}
	_, err = ComputeSet(s, 0.5)
	require.ErrorIs(t, err, recording.ErrShapeMismatch)
	assert.Contains(t, err.Error(), "b has 1 predictions")
}
