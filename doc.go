// Package szeval turns per-window seizure probabilities into clinically
// interpretable performance metrics: false positives per hour, detection
// latency and sensitivity, alongside window-level accuracy, ROC and PR
// statistics.
//
// # Quick Start
//
//	ev, err := szeval.New(
//	    szeval.WithFPSPerHourCeiling(1),
//	    szeval.WithSmoothingWindow(5),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reports, err := ev.Evaluate(ctx, trainSet)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range reports {
//	    fmt.Printf("%s: threshold %.2f, sensitivity %.2f, fps/h %.2f\n",
//	        r.Variant, r.Selection.Threshold, r.Sequence.Total.Sensitivity, r.Sequence.Total.FPSPerHour)
//	}
//
// # Threshold Transfer
//
// A threshold chosen on a training split can be applied unmodified to a
// validation split with Evaluator.Transfer; the ceiling search is skipped.
//
// # Concurrency
//
// Evaluator is safe for concurrent use. Threshold sweeps run on a bounded
// worker pool configured with WithWorkers; per-threshold results are merged
// by summation, so the outcome does not depend on scheduling.
package szeval
