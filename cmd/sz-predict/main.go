package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/jamesainslie/go-szeval/inference"
	"github.com/jamesainslie/go-szeval/internal/dataset"
	"github.com/jamesainslie/go-szeval/recording"
	"github.com/jamesainslie/go-szeval/smooth"
)

var errUsage = errors.New("usage")

type options struct {
	model     string
	replay    string
	features  string
	out       string
	sessions  int
	batch     int
	threshold float64
	smooth    int
	mode      string
}

func main() {
	var o options
	flag.StringVar(&o.model, "model", "", "Path to ONNX window classifier")
	flag.StringVar(&o.replay, "replay", "", "Predictions CSV to replay instead of running a model")
	flag.StringVar(&o.out, "out", "", "Output predictions CSV (default: stdout)")
	flag.IntVar(&o.sessions, "sessions", runtime.NumCPU(), "ONNX sessions in the pool")
	flag.IntVar(&o.batch, "batch", inference.DefaultBatchSize, "Windows per inference batch")
	flag.Float64Var(&o.threshold, "threshold", 0.5, "Threshold for the detection summary")
	flag.IntVar(&o.smooth, "smooth", 0, "Moving-average window applied to each class column (0 = disabled)")
	flag.StringVar(&o.mode, "mode", "proba", "Mode: proba or predict")
	flag.Parse()
	o.features = flag.Arg(0)

	if err := run(context.Background(), o, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "Usage: sz-predict (-model MODEL | -replay PREDICTIONS) [OPTIONS] FEATURES.csv")
			flag.PrintDefaults()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, stdout, stderr io.Writer) error {
	if (o.model == "") == (o.replay == "") || o.features == "" {
		return fmt.Errorf("%w: exactly one of -model or -replay, and a features file", errUsage)
	}
	if o.mode != "proba" && o.mode != "predict" {
		return fmt.Errorf("%w: unknown mode %q", errUsage, o.mode)
	}

	f, err := os.Open(o.features)
	if err != nil {
		return err
	}
	features, err := dataset.ReadFeatures(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	var clf inference.Classifier
	if o.model != "" {
		onnx, err := inference.NewONNX(o.model, o.sessions, o.batch)
		if err != nil {
			return fmt.Errorf("creating classifier: %w", err)
		}
		defer func() { _ = onnx.Close() }()
		clf = onnx
	} else {
		scores, err := dataset.ReadPredictionsFile(o.replay)
		if err != nil {
			return err
		}
		clf = inference.FromScores(scores)
	}

	out := stdout
	if o.out != "" {
		of, err := os.Create(o.out)
		if err != nil {
			return err
		}
		defer func() { _ = of.Close() }()
		out = of
	}

	if o.mode == "predict" && o.smooth <= 0 {
		pred, err := clf.Predict(ctx, features)
		if err != nil {
			return err
		}
		return writeClasses(out, pred)
	}

	proba, err := clf.PredictProba(ctx, features)
	if err != nil {
		return err
	}
	if o.smooth > 0 {
		proba = smooth.Channels(proba, o.smooth)
	}
	if o.mode == "predict" {
		return writeClasses(out, inference.Argmax(proba))
	}

	if err := dataset.WritePredictions(out, proba); err != nil {
		return err
	}
	pred := recording.Binarize(recording.PositiveClass(proba), o.threshold)
	positive := 0
	for _, p := range pred {
		positive += p
	}
	fmt.Fprintf(stderr, "Windows: %d\nPositive at %.2f: %d\n", len(pred), o.threshold, positive)
	return nil
}

func writeClasses(w io.Writer, pred []int) error {
	for _, p := range pred {
		if _, err := fmt.Fprintln(w, p); err != nil {
			return err
		}
	}
	return nil
}
