package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jamesainslie/go-szeval/recording"
)

// ReadPredictions reads a windows × classes CSV of model outputs and returns
// the positive-class score per window. A non-numeric first row is treated as
// a header. NaN and infinite values become 0.
func ReadPredictions(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var rows [][]float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read predictions: %w", err)
		}
		row, err := parseRow(rec)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("predictions line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return recording.PositiveClass(rows), nil
}

// ReadPredictionsFile is ReadPredictions over a file path.
func ReadPredictionsFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadPredictions(f)
}

func parseRow(rec []string) ([]float64, error) {
	row := make([]float64, len(rec))
	for i, s := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, err
		}
		row[i] = sanitize(v)
	}
	return row, nil
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// WritePredictions writes one row per window with the background and
// positive-class probabilities.
func WritePredictions(w io.Writer, proba [][]float64) error {
	cw := csv.NewWriter(w)
	if len(proba) > 0 {
		header := make([]string, len(proba[0]))
		for i := range header {
			header[i] = "p" + strconv.Itoa(i)
		}
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	for _, row := range proba {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFeatures reads a windows × features CSV as float32 rows for the
// inference layer. A non-numeric first row is treated as a header.
func ReadFeatures(r io.Reader) ([][]float32, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out [][]float32
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read features: %w", err)
		}
		row, err := parseRow(rec)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("features line %d: %w", line, err)
		}
		f := make([]float32, len(row))
		for i, v := range row {
			f[i] = float32(v)
		}
		out = append(out, f)
	}
	return out, nil
}
