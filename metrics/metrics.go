// Package metrics computes window-level classification statistics over the
// pooled windows of a recording set.
package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/jamesainslie/go-szeval/recording"
)

// DefaultThreshold is the operating point used when none is chosen.
const DefaultThreshold = 0.5

// Point is one curve vertex.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// Threshold is the score cutoff producing this vertex.
	Threshold float64 `json:"threshold"`
}

// Result holds the window report for one threshold.
type Result struct {
	Accuracy    float64 `json:"acc"`
	Sensitivity float64 `json:"sens"`
	Precision   float64 `json:"prec"`
	F1          float64 `json:"f1"`
	Specificity float64 `json:"spec"`
	AUCROC      float64 `json:"auc-roc"`
	AUCPR       float64 `json:"auc-pr"`

	TruePositives  int `json:"tp"`
	FalsePositives int `json:"fp"`
	TrueNegatives  int `json:"tn"`
	FalseNegatives int `json:"fn"`

	// ROC holds (FPR, TPR) vertices; PR holds (recall, precision) vertices.
	// Both are ordered by descending score.
	ROC []Point `json:"roc_curve,omitempty"`
	PR  []Point `json:"pr_curve,omitempty"`
}

// Compute pools every recording's windows and scores them at threshold.
// labels[i] and scores[i] must have equal length. Post-seizure labels count
// as background.
func Compute(labels [][]int, scores [][]float64, threshold float64) (Result, error) {
	if len(labels) != len(scores) {
		return Result{}, fmt.Errorf("%w: %d label sequences, %d prediction sequences",
			recording.ErrShapeMismatch, len(labels), len(scores))
	}

	var y []float64
	var classes []bool
	for i := range labels {
		if len(labels[i]) != len(scores[i]) {
			return Result{}, fmt.Errorf("%w: sequence %d has %d predictions and %d labels",
				recording.ErrShapeMismatch, i, len(scores[i]), len(labels[i]))
		}
		for j, l := range labels[i] {
			y = append(y, scores[i][j])
			classes = append(classes, l == recording.Seizure)
		}
	}
	return compute(y, classes, threshold), nil
}

// ComputeSet is Compute over the recordings of s.
func ComputeSet(s *recording.Set, threshold float64) (Result, error) {
	labels := make([][]int, len(s.Recordings))
	scores := make([][]float64, len(s.Recordings))
	for i, r := range s.Recordings {
		if err := r.Validate(); err != nil {
			return Result{}, err
		}
		labels[i] = r.Labels
		scores[i] = r.Scores
	}
	return Compute(labels, scores, threshold)
}

func compute(y []float64, classes []bool, threshold float64) Result {
	var res Result
	for i, s := range y {
		pred := s >= threshold
		switch {
		case pred && classes[i]:
			res.TruePositives++
		case pred:
			res.FalsePositives++
		case classes[i]:
			res.FalseNegatives++
		default:
			res.TrueNegatives++
		}
	}

	tp, fp, tn, fn := res.TruePositives, res.FalsePositives, res.TrueNegatives, res.FalseNegatives
	res.Accuracy = ratio(tp+tn, tp+fp+tn+fn)
	res.Sensitivity = ratio(tp, tp+fn)
	res.Precision = ratio(tp, tp+fp)
	if tp > 0 {
		res.F1 = 2 * res.Precision * res.Sensitivity / (res.Precision + res.Sensitivity)
	}
	res.Specificity = ratio(tn, tn+fp)

	pos := tp + fn
	neg := fp + tn
	if pos == 0 {
		return res
	}
	res.PR, res.AUCPR = prCurve(y, classes, pos)
	if neg > 0 {
		res.ROC, res.AUCROC = rocCurve(y, classes)
	}
	return res
}

// rocCurve returns the ROC vertices and the trapezoidal area under them.
func rocCurve(y []float64, classes []bool) ([]Point, float64) {
	ys := append([]float64(nil), y...)
	cs := append([]bool(nil), classes...)
	stat.SortWeightedLabeled(ys, cs, nil)

	tpr, fpr, thresh := stat.ROC(nil, ys, cs, nil)
	pts := make([]Point, len(tpr))
	for i := range tpr {
		th := thresh[i]
		if math.IsInf(th, 1) {
			// The all-negative vertex; keep it serializable.
			th = math.Nextafter(ys[len(ys)-1], math.Inf(1))
		}
		pts[i] = Point{X: fpr[i], Y: tpr[i], Threshold: th}
	}
	return pts, integrate.Trapezoidal(fpr, tpr)
}

// prCurve sweeps every distinct score from high to low. The curve starts at
// (recall 0, precision 1).
func prCurve(y []float64, classes []bool, pos int) ([]Point, float64) {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return y[idx[a]] > y[idx[b]] })

	first := 1.0
	if len(idx) > 0 {
		first = y[idx[0]]
	}
	pts := []Point{{X: 0, Y: 1, Threshold: first}}
	var tp, fp int
	for k, i := range idx {
		if classes[i] {
			tp++
		} else {
			fp++
		}
		// Emit once per distinct score.
		if k+1 < len(idx) && y[idx[k+1]] == y[i] {
			continue
		}
		pts = append(pts, Point{
			X:         float64(tp) / float64(pos),
			Y:         float64(tp) / float64(tp+fp),
			Threshold: y[i],
		})
	}

	recall := make([]float64, len(pts))
	precision := make([]float64, len(pts))
	for i, p := range pts {
		recall[i] = p.X
		precision[i] = p.Y
	}
	return pts, integrate.Trapezoidal(recall, precision)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
