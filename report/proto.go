package report

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jamesainslie/go-szeval/sweep"
)

// Sweep table columns as stored in the protobuf Struct.
const (
	colThresholds       = "thresholds"
	colNFPs             = "nfps"
	colNFPSamples       = "nfp_samples"
	colLatencySamples   = "latency_samples"
	colCorrect          = "ncorrect"
	colSensitivity      = "sensitivity"
	colFPSPerHour       = "fps_per_hour"
	colFPTimePerHour    = "fp_time_per_hour"
	colAvgLatency       = "average_latency_samples"
	colLatencySeconds   = "latency_seconds"
	colAvgLatencySecond = "average_latency_seconds"
	colTotalSeizures    = "total_seizures"
	colTotalDuration    = "total_duration_seconds"
	colAdvance          = "window_advance_seconds"
)

// MarshalSweep encodes the sweep table as a binary google.protobuf.Struct
// with one numeric list per column.
func MarshalSweep(r *sweep.Result) ([]byte, error) {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		colThresholds:       floatList(r.Thresholds),
		colNFPs:             intList(r.FalsePositiveEvents),
		colNFPSamples:       intList(r.FalsePositiveSamples),
		colLatencySamples:   intList(r.LatencySamples),
		colCorrect:          intList(r.Correct),
		colSensitivity:      floatList(r.Sensitivity),
		colFPSPerHour:       floatList(r.FPSPerHour),
		colFPTimePerHour:    floatList(r.FPTimePerHour),
		colAvgLatency:       floatList(r.AverageLatencySamples),
		colLatencySeconds:   floatList(r.LatencySeconds),
		colAvgLatencySecond: floatList(r.AverageLatencySeconds),
		colTotalSeizures:    structpb.NewNumberValue(float64(r.TotalSeizures)),
		colTotalDuration:    structpb.NewNumberValue(r.TotalDuration),
		colAdvance:          structpb.NewNumberValue(r.Advance),
	}}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal sweep table: %w", err)
	}
	return data, nil
}

// UnmarshalSweep decodes a table written by MarshalSweep. Per-recording
// results are not persisted and stay empty.
func UnmarshalSweep(data []byte) (*sweep.Result, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal sweep table: %w", err)
	}

	thresholds, ok := floats(&s, colThresholds)
	if !ok {
		return nil, fmt.Errorf("sweep table: missing %q column", colThresholds)
	}
	r := &sweep.Result{Thresholds: thresholds}
	n := len(thresholds)

	cols := []struct {
		name string
		dst  *[]float64
	}{
		{colSensitivity, &r.Sensitivity},
		{colFPSPerHour, &r.FPSPerHour},
		{colFPTimePerHour, &r.FPTimePerHour},
		{colAvgLatency, &r.AverageLatencySamples},
		{colLatencySeconds, &r.LatencySeconds},
		{colAvgLatencySecond, &r.AverageLatencySeconds},
	}
	for _, c := range cols {
		v, ok := floats(&s, c.name)
		if !ok || len(v) != n {
			return nil, fmt.Errorf("sweep table: column %q missing or not %d long", c.name, n)
		}
		*c.dst = v
	}
	icols := []struct {
		name string
		dst  *[]int
	}{
		{colNFPs, &r.FalsePositiveEvents},
		{colNFPSamples, &r.FalsePositiveSamples},
		{colLatencySamples, &r.LatencySamples},
		{colCorrect, &r.Correct},
	}
	for _, c := range icols {
		v, ok := floats(&s, c.name)
		if !ok || len(v) != n {
			return nil, fmt.Errorf("sweep table: column %q missing or not %d long", c.name, n)
		}
		out := make([]int, n)
		for i, x := range v {
			out[i] = int(x)
		}
		*c.dst = out
	}

	r.TotalSeizures = int(s.Fields[colTotalSeizures].GetNumberValue())
	r.TotalDuration = s.Fields[colTotalDuration].GetNumberValue()
	r.Advance = s.Fields[colAdvance].GetNumberValue()
	return r, nil
}

func floatList(xs []float64) *structpb.Value {
	vals := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		vals[i] = structpb.NewNumberValue(x)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func intList(xs []int) *structpb.Value {
	vals := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		vals[i] = structpb.NewNumberValue(float64(x))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func floats(s *structpb.Struct, name string) ([]float64, bool) {
	v, ok := s.Fields[name]
	if !ok {
		return nil, false
	}
	list := v.GetListValue()
	if list == nil {
		return nil, false
	}
	out := make([]float64, len(list.GetValues()))
	for i, x := range list.GetValues() {
		out[i] = x.GetNumberValue()
	}
	return out, true
}
