package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	szeval "github.com/jamesainslie/go-szeval"
	"github.com/jamesainslie/go-szeval/internal/store"
	"github.com/jamesainslie/go-szeval/report"
)

const (
	trainManifest = "../../testdata/train.yaml"
	valManifest   = "../../testdata/val.yaml"
)

// evalOptions evaluates the train split into dir with a smoothed pass.
func evalOptions(dir string) options {
	return options{
		manifest:     trainManifest,
		smoothWindow: 5,
		outDir:       filepath.Join(dir, "reports"),
		dbPath:       filepath.Join(dir, "runs.db"),
		explicit:     map[string]bool{"smooth": true, "out": true, "db": true},
	}
}

func listRuns(t *testing.T, path, name string) []*store.Run {
	t.Helper()
	db, err := store.Open(path, nil)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	runs, err := db.ListByDataset(context.Background(), name)
	require.NoError(t, err)
	return runs
}

func TestRun_Usage(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, run(ctx, options{}), errUsage)
	assert.ErrorIs(t, run(ctx, options{history: "train"}), errUsage)
	assert.ErrorIs(t, run(ctx, options{inspect: "reports/train_threshold.txt"}), errUsage)
}

func TestRun_StoredRuns(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	o := evalOptions(dir)
	o.val = valManifest
	require.NoError(t, run(ctx, o))

	runs := listRuns(t, o.dbPath, "train")
	require.Len(t, runs, 2)
	assert.Len(t, listRuns(t, o.dbPath, "val"), 2)

	admin := options{dbPath: o.dbPath, explicit: map[string]bool{"db": true}}

	h := admin
	h.history = "train"
	require.NoError(t, run(ctx, h))
	h.history = "unknown"
	assert.ErrorIs(t, run(ctx, h), store.ErrNotFound)

	s := admin
	s.show = runs[0].RunID
	require.NoError(t, run(ctx, s))
	s.show = "no-such-run"
	assert.ErrorIs(t, run(ctx, s), store.ErrNotFound)

	d := admin
	d.del = runs[0].RunID
	require.NoError(t, run(ctx, d))
	assert.Len(t, listRuns(t, o.dbPath, "train"), 1)
	assert.ErrorIs(t, run(ctx, d), store.ErrNotFound)
}

func TestRun_ThresholdFilePerVariant(t *testing.T) {
	dir := t.TempDir()
	raw := report.FilesFor(dir, "prev", szeval.VariantRaw).Threshold
	writeThreshold(t, raw, 0.7)
	writeThreshold(t, report.ThresholdPath(raw, szeval.VariantSmoothed), 0.3)

	o := evalOptions(dir)
	o.thresholdFile = raw
	require.NoError(t, run(context.Background(), o))

	for v, want := range map[szeval.Variant]float64{
		szeval.VariantRaw:      0.7,
		szeval.VariantSmoothed: 0.3,
	} {
		got, err := report.ReadThresholdFile(report.FilesFor(o.outDir, "train", v).Threshold)
		require.NoError(t, err)
		assert.Equal(t, want, got, "variant %s", v)
	}
	for _, r := range listRuns(t, o.dbPath, "train") {
		assert.Equal(t, "explicit", string(r.Reason))
	}
}

func TestRun_Inspect(t *testing.T) {
	dir := t.TempDir()
	o := evalOptions(dir)
	require.NoError(t, run(context.Background(), o))

	files := report.FilesFor(o.outDir, "train", szeval.VariantSmoothed)
	require.NoError(t, run(context.Background(), options{inspect: files.Window}))
	require.NoError(t, run(context.Background(), options{inspect: files.SweepPB}))
	assert.Error(t, run(context.Background(), options{inspect: filepath.Join(dir, "missing.pb")}))
}

func TestRun_ErrorAfterOpeningDatabase(t *testing.T) {
	dir := t.TempDir()
	o := evalOptions(dir)
	o.manifest = filepath.Join(dir, "missing.yaml")

	err := run(context.Background(), o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading dataset")

	// The database was opened, migrated and closed without recording a run.
	_, statErr := os.Stat(o.dbPath)
	require.NoError(t, statErr)
	assert.Empty(t, listRuns(t, o.dbPath, "train"))
}

func writeThreshold(t *testing.T, path string, v float64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, report.WriteThreshold(f, v))
	require.NoError(t, f.Close())
}
