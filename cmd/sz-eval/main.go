package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	szeval "github.com/jamesainslie/go-szeval"
	"github.com/jamesainslie/go-szeval/internal/config"
	"github.com/jamesainslie/go-szeval/internal/dataset"
	"github.com/jamesainslie/go-szeval/internal/store"
	"github.com/jamesainslie/go-szeval/metrics"
	"github.com/jamesainslie/go-szeval/report"
	"github.com/jamesainslie/go-szeval/sweep"
)

var errUsage = errors.New("usage")

type options struct {
	manifest      string
	val           string
	configPath    string
	threshold     float64
	thresholdFile string
	fromDB        string
	lookback      int
	fpsPerHour    float64
	fpTimePerHour float64
	smoothWindow  int
	causal        bool
	workers       int
	outDir        string
	dbPath        string
	printSweep    bool
	verbose       bool

	history string
	show    string
	del     string
	inspect string

	// explicit names the flags given on the command line; they override
	// the config file.
	explicit map[string]bool
}

func main() {
	var o options
	flag.StringVar(&o.manifest, "manifest", "", "Path to the dataset manifest YAML")
	flag.StringVar(&o.val, "val", "", "Comma-separated manifests evaluated at the selected thresholds")
	flag.StringVar(&o.configPath, "config", "", "Path to a JSON evaluation config")
	flag.Float64Var(&o.threshold, "threshold", 0, "Fixed operating threshold (skips selection)")
	flag.StringVar(&o.thresholdFile, "threshold-file", "", "Raw threshold file from a previous run; its _smoothed sibling is used when present")
	flag.StringVar(&o.fromDB, "from-db", "", "Use the latest thresholds stored for this dataset name")
	flag.IntVar(&o.lookback, "lookback", 0, "Windows before onset an early detection may be credited (0 = unbounded)")
	flag.Float64Var(&o.fpsPerHour, "fps-per-hour", 0, "False-positive events per hour ceiling (0 = disabled)")
	flag.Float64Var(&o.fpTimePerHour, "fp-time-per-hour", 0, "False-positive seconds per hour ceiling (0 = disabled)")
	flag.IntVar(&o.smoothWindow, "smooth", 0, "Moving-average window for the smoothed pass (0 = disabled)")
	flag.BoolVar(&o.causal, "causal", false, "Use a trailing moving average")
	flag.IntVar(&o.workers, "workers", 0, "Sweep workers (default: number of CPUs)")
	flag.StringVar(&o.outDir, "out", "", "Report output directory (default: reports)")
	flag.StringVar(&o.dbPath, "db", "", "SQLite database to record runs in")
	flag.BoolVar(&o.printSweep, "sweep", false, "Print the threshold sweep table")
	flag.BoolVar(&o.verbose, "v", false, "Verbose logging")
	flag.StringVar(&o.history, "history", "", "List the runs stored for a dataset (requires -db)")
	flag.StringVar(&o.show, "show", "", "Print a stored run with its recordings and sweep table (requires -db)")
	flag.StringVar(&o.del, "delete", "", "Delete a stored run (requires -db)")
	flag.StringVar(&o.inspect, "inspect", "", "Print a written window report (.json) or sweep table (.pb)")
	flag.Parse()
	o.explicit = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { o.explicit[f.Name] = true })

	if err := run(context.Background(), o); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if o.inspect != "" {
		return inspect(o.inspect)
	}

	cfg := &config.EvalConfig{}
	if o.configPath != "" {
		var err error
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	for name := range o.explicit {
		switch name {
		case "threshold":
			cfg.Threshold = &o.threshold
			cfg.SmoothedThreshold = &o.threshold
		case "lookback":
			cfg.Lookback = &o.lookback
		case "fps-per-hour":
			cfg.FPSPerHour = &o.fpsPerHour
		case "fp-time-per-hour":
			cfg.FPTimePerHour = &o.fpTimePerHour
		case "smooth":
			cfg.SmoothingWindow = &o.smoothWindow
		case "causal":
			cfg.CausalSmoothing = &o.causal
		case "workers":
			cfg.Workers = &o.workers
		case "out":
			cfg.OutputDir = &o.outDir
		case "db":
			cfg.DBPath = &o.dbPath
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var db *store.Store
	needDB := o.fromDB != "" || o.history != "" || o.show != "" || o.del != ""
	if path := cfg.GetDBPath(); path != "" || needDB {
		if path == "" {
			return fmt.Errorf("%w: -from-db, -history, -show and -delete require -db", errUsage)
		}
		var err error
		db, err = store.Open(path, logger)
		if err != nil {
			return fmt.Errorf("opening run database: %w", err)
		}
		defer func() { _ = db.Close() }()
	}

	switch {
	case o.history != "":
		return history(ctx, db, o.history)
	case o.show != "":
		return show(ctx, db, o.show)
	case o.del != "":
		if err := db.Delete(ctx, o.del); err != nil {
			return err
		}
		fmt.Printf("Deleted run %s\n", o.del)
		return nil
	}

	if o.manifest == "" {
		return fmt.Errorf("%w: -manifest required", errUsage)
	}

	opts := append(cfg.Options(), szeval.WithLogger(logger))
	if o.thresholdFile != "" {
		stored, err := report.ReadThresholds(o.thresholdFile)
		if err != nil {
			return fmt.Errorf("reading threshold: %w", err)
		}
		for v, t := range stored {
			opts = append(opts, szeval.WithVariantThreshold(v, t))
		}
	}
	if o.fromDB != "" {
		stored, err := storedThresholds(ctx, db, o.fromDB)
		if err != nil {
			return err
		}
		opts = append(opts, stored...)
	}

	ev, err := szeval.New(opts...)
	if err != nil {
		return err
	}

	set, err := dataset.LoadSet(o.manifest)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	fmt.Printf("Loaded %d recordings from %s (%.1f h, %d seizures)\n\n",
		len(set.Recordings), o.manifest, set.TotalDuration()/3600, set.TotalSeizures())

	reports, err := ev.Evaluate(ctx, set)
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", set.Name, err)
	}
	if err := emit(ctx, reports, cfg.GetOutputDir(), db, o.printSweep); err != nil {
		return err
	}

	if o.val == "" {
		return nil
	}
	for _, path := range strings.Split(o.val, ",") {
		vset, err := dataset.LoadSet(strings.TrimSpace(path))
		if err != nil {
			return fmt.Errorf("loading dataset: %w", err)
		}
		transferred, err := ev.Transfer(ctx, reports, vset)
		if err != nil {
			return fmt.Errorf("evaluating %s: %w", vset.Name, err)
		}
		if err := emit(ctx, transferred, cfg.GetOutputDir(), db, o.printSweep); err != nil {
			return err
		}
	}
	return nil
}

// storedThresholds loads the latest thresholds recorded for the named
// dataset. A missing smoothed threshold is not an error.
func storedThresholds(ctx context.Context, db *store.Store, name string) ([]szeval.Option, error) {
	var opts []szeval.Option
	for _, v := range []szeval.Variant{szeval.VariantRaw, szeval.VariantSmoothed} {
		t, err := db.LatestThreshold(ctx, name, v)
		if err != nil {
			if v == szeval.VariantSmoothed && errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("threshold for %s: %w", name, err)
		}
		opts = append(opts, szeval.WithVariantThreshold(v, t))
	}
	return opts, nil
}

func emit(ctx context.Context, reports []*szeval.Report, outDir string, db *store.Store, withSweep bool) error {
	for _, rep := range reports {
		printReport(rep)
		if withSweep && rep.Sweep != nil {
			printSweepTable(rep.Sweep, rep.Selection.Index)
		}

		files, err := report.WriteAll(outDir, rep)
		if err != nil {
			return fmt.Errorf("writing reports: %w", err)
		}
		fmt.Printf("Reports: %s, %s\n", files.Window, files.Sequence)

		if db != nil {
			id, err := db.SaveReport(ctx, rep)
			if err != nil {
				return fmt.Errorf("saving run: %w", err)
			}
			fmt.Printf("Run: %s\n", id)
		}
		fmt.Println()
	}
	return nil
}

func history(ctx context.Context, db *store.Store, name string) error {
	version, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	runs, err := db.ListByDataset(ctx, name)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("%w: no runs for %s", store.ErrNotFound, name)
	}

	fmt.Printf("%d runs for %s (schema v%d)\n\n", len(runs), name, version)
	fmt.Printf("%-36s %-9s %-19s %-7s %-13s %-8s %-6s\n", "Run", "Variant", "Created", "Thresh", "Reason", "Lookback", "AUC")
	for _, r := range runs {
		auc := 0.0
		if r.Window != nil {
			auc = r.Window.AUCROC
		}
		fmt.Printf("%-36s %-9s %-19s %-7.2f %-13s %-8d %-6.3f\n",
			r.RunID, r.Variant, time.Unix(0, r.CreatedAt).Format(time.DateTime),
			r.Threshold, r.Reason, r.Lookback, auc)
	}
	return nil
}

func show(ctx context.Context, db *store.Store, runID string) error {
	r, err := db.Get(ctx, runID)
	if err != nil {
		return err
	}
	fmt.Printf("%s [%s] threshold %.2f (%s), lookback %d\n", r.Dataset, r.Variant, r.Threshold, r.Reason, r.Lookback)
	fmt.Println(strings.Repeat("-", 60))
	if r.Window != nil {
		printWindow(*r.Window)
	}

	rows, err := db.Recordings(ctx, runID)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Printf("%-20s %-6s %-8s %-8s %-8s\n", "Recording", "FPs", "Latency", "Correct", "Seizures")
	for _, row := range rows {
		fmt.Printf("%-20s %-6d %-8d %-8d %-8d\n",
			row.Filename, row.FalsePositiveEvents, row.LatencySamples, row.Correct, row.Seizures)
	}

	sw, err := db.Sweep(ctx, runID)
	if err != nil {
		return err
	}
	if len(sw.Thresholds) > 0 {
		printSweepTable(sw, r.ThresholdIndex)
	}
	return nil
}

func inspect(path string) error {
	switch filepath.Ext(path) {
	case ".json":
		w, err := report.ReadWindowFile(path)
		if err != nil {
			return err
		}
		printWindow(w)
	case ".pb":
		sw, err := report.ReadSweepFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d seizures, %.1f h, %.1fs advance\n",
			path, sw.TotalSeizures, sw.TotalDuration/3600, sw.Advance)
		printSweepTable(sw, -1)
	default:
		return fmt.Errorf("%w: -inspect takes a .json window report or a .pb sweep table", errUsage)
	}
	return nil
}

func printReport(rep *szeval.Report) {
	fmt.Printf("%s [%s] threshold %.2f (%s)\n", rep.Dataset, rep.Variant, rep.Selection.Threshold, rep.Selection.Reason)
	fmt.Println(strings.Repeat("-", 60))
	printWindow(rep.Window)

	t := rep.Sequence.Total
	fmt.Printf("Events    Sens: %.3f  FP/h: %.2f  FP s/h: %.1f  Latency: %.1fs  (%d/%d detected, %d FPs)\n",
		t.Sensitivity, t.FPSPerHour, t.FPTimePerHour, t.LatencyTime, t.Correct, t.Seizures, t.FalsePositiveEvents)
}

func printWindow(w metrics.Result) {
	fmt.Printf("Window    Acc: %.3f  Sens: %.3f  Prec: %.3f  F1: %.3f  Spec: %.3f\n",
		w.Accuracy, w.Sensitivity, w.Precision, w.F1, w.Specificity)
	fmt.Printf("          AUC-ROC: %.3f  AUC-PR: %.3f  (TP: %d, FP: %d, TN: %d, FN: %d)\n",
		w.AUCROC, w.AUCPR, w.TruePositives, w.FalsePositives, w.TrueNegatives, w.FalseNegatives)
}

// printSweepTable marks the row at selected; -1 marks none.
func printSweepTable(sw *sweep.Result, selected int) {
	fmt.Println()
	fmt.Printf("%-8s %-8s %-8s %-10s %-10s %-8s\n", "Thresh", "Sens", "FP/h", "FP s/h", "Latency", "Correct")
	for i, th := range sw.Thresholds {
		mark := ""
		if i == selected {
			mark = " <"
		}
		fmt.Printf("%-8.2f %-8.3f %-8.2f %-10.1f %-10.1f %-8d%s\n",
			th, sw.Sensitivity[i], sw.FPSPerHour[i], sw.FPTimePerHour[i],
			sw.AverageLatencySeconds[i], sw.Correct[i], mark)
	}
	fmt.Println()
}
