// Package dataset loads CSV rows into feature/label matrices, partitions them
// into deterministic train/validation/test splits and produces batch plans
// for the trainer.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"neuroforge/internal/matrix"
)

// RowParseError reports a malformed or non-numeric data row. Row is the
// 1-based index of the data row (the header is not counted). Malformed input
// is fatal, never skipped.
type RowParseError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("dataset: row %d column %q: %v", e.Row, e.Column, e.Err)
}

func (e *RowParseError) Unwrap() error { return e.Err }

// Dataset is a pair of row-aligned feature and label matrices.
type Dataset struct {
	Features *matrix.Matrix
	Labels   *matrix.Matrix

	FeatureNames []string
	LabelNames   []string
}

// Rows returns the number of rows.
func (d *Dataset) Rows() int { return d.Features.Rows() }

// Load reads a CSV stream with a header row. The trailing labelCols columns
// are labels, the remainder features.
func Load(r io.Reader, labelCols int) (*Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}
	if labelCols <= 0 || labelCols >= len(header) {
		return nil, fmt.Errorf("dataset: %d label columns with %d total columns", labelCols, len(header))
	}
	featCols := len(header) - labelCols

	var feats, labels [][]float64
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, &RowParseError{Row: row, Err: err}
		}
		f := make([]float64, featCols)
		l := make([]float64, labelCols)
		for i, cell := range rec {
			v, perr := strconv.ParseFloat(cell, 64)
			if perr != nil {
				return nil, &RowParseError{Row: row, Column: header[i], Err: perr}
			}
			if i < featCols {
				f[i] = v
			} else {
				l[i-featCols] = v
			}
		}
		feats = append(feats, f)
		labels = append(labels, l)
	}
	if len(feats) == 0 {
		return nil, fmt.Errorf("dataset: no data rows")
	}

	fm, err := matrix.FromRows(feats)
	if err != nil {
		return nil, err
	}
	lm, err := matrix.FromRows(labels)
	if err != nil {
		return nil, err
	}
	return &Dataset{
		Features:     fm,
		Labels:       lm,
		FeatureNames: header[:featCols],
		LabelNames:   header[featCols:],
	}, nil
}

// LoadFile opens and loads a CSV dataset file.
func LoadFile(path string, labelCols int) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()
	ds, err := Load(f, labelCols)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	return ds, nil
}
