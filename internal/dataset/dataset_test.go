package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/go-szeval/recording"
)

const manifestYAML = `
name: train
window:
  length: 1
recordings:
  - filename: a.edf
    duration: 10
    seizure_starts: [3]
    seizure_ends: [5]
    predictions: preds/a.csv
  - filename: b.edf
    duration: 10
    predictions: preds/b.csv
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadPredictions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []float64
	}{
		{"single column", "0.1\n0.9\n", []float64{0.1, 0.9}},
		{"header skipped", "score\n0.1\n0.9\n", []float64{0.1, 0.9}},
		{"two classes take last", "p0,p1\n0.8,0.2\n0.3,0.7\n", []float64{0.2, 0.7}},
		{"non-finite sanitized", "NaN\nInf\n-Inf\n0.5\n", []float64{0, 0, 0, 0.5}},
		{"comments ignored", "# model v2\n0.4\n", []float64{0.4}},
		{"empty", "", []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadPredictions(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadPredictions_BadRow(t *testing.T) {
	_, err := ReadPredictions(strings.NewReader("0.1\nabc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWritePredictions_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePredictions(&buf, [][]float64{{0.75, 0.25}, {0.1, 0.9}}))
	assert.True(t, strings.HasPrefix(buf.String(), "p0,p1\n"))

	got, err := ReadPredictions(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.9}, got)
}

func TestReadFeatures(t *testing.T) {
	got, err := ReadFeatures(strings.NewReader("power,line_length\n1.5,2\n3,4.25\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1.5, 2}, {3, 4.25}}, got)
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no window", "recordings: [{filename: a, duration: 1, predictions: a.csv}]", "window length"},
		{"overlap too large", "window: {length: 1, overlap: 1}\nrecordings: [{filename: a, duration: 1, predictions: a.csv}]", "overlap"},
		{"no recordings", "window: {length: 1}", "no recordings"},
		{"unbalanced seizures", "window: {length: 1}\nrecordings: [{filename: a, duration: 5, seizure_starts: [1], predictions: a.csv}]", "seizure starts"},
		{"duplicate", "window: {length: 1}\nrecordings: [{filename: a, duration: 5, predictions: a.csv}, {filename: a, duration: 5, predictions: b.csv}]", "duplicate"},
		{"not yaml", "window: [", "parse manifest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.yaml")
	writeFile(t, path, manifestYAML)
	writeFile(t, filepath.Join(dir, "preds", "a.csv"), "0\n0\n0\n0.9\n0.8\n0\n0\n0\n0\n0\n")
	writeFile(t, filepath.Join(dir, "preds", "b.csv"), "0\n0\n0\n0\n0\n0\n0.7\n0\n0\n0\n")

	set, err := LoadSet(path)
	require.NoError(t, err)
	assert.Equal(t, "train", set.Name)
	require.Len(t, set.Recordings, 2)

	a := set.Recordings[0]
	assert.Equal(t, "a.edf", a.Filename)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 0, 0, 0, 0, 0}, a.Labels)
	assert.Equal(t, 0.9, a.Scores[3])
	assert.Equal(t, 1.0, a.Advance)
	assert.Equal(t, 1, set.TotalSeizures())
	assert.Equal(t, 20.0, set.TotalDuration())
}

func TestLoadSet_ShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.yaml")
	writeFile(t, path, manifestYAML)
	writeFile(t, filepath.Join(dir, "preds", "a.csv"), "0\n0\n")
	writeFile(t, filepath.Join(dir, "preds", "b.csv"), "0\n0\n0\n0\n0\n0\n0\n0\n0\n0\n")

	_, err := LoadSet(path)
	require.ErrorIs(t, err, recording.ErrShapeMismatch)
	assert.Contains(t, err.Error(), "a.edf")
}

func TestLoadManifest_NameFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "val.yml")
	writeFile(t, path, strings.Replace(manifestYAML, "name: train\n", "", 1))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "val", m.Name)
	assert.Equal(t, filepath.Join(dir, "preds", "a.csv"), m.PredictionsPath(m.Recordings[0]))
}

func TestLoadSet_Testdata(t *testing.T) {
	set, err := LoadSet(filepath.Join("..", "..", "testdata", "train.yaml"))
	require.NoError(t, err)
	require.Len(t, set.Recordings, 3)
	assert.Equal(t, 2, set.TotalSeizures())
	assert.Equal(t, 2.0, set.Advance())

	r := set.Recordings[0]
	assert.Len(t, r.Labels, 900)
	seizure := 0
	for _, l := range r.Labels {
		if l == recording.Seizure {
			seizure++
		}
	}
	assert.Equal(t, 20, seizure)
	assert.Equal(t, recording.Seizure, r.Labels[150])
	assert.Equal(t, recording.Background, r.Labels[170])
}
