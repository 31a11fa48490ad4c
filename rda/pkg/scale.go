package rda

import (
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"
)

var (
	ErrZeroVariance = errors.New("zero variance")
	ErrCollinear    = errors.New("covariates are collinear")
)

func handle(format string) func(...any) error {
	return func(args ...any) error {
		return fmt.Errorf(format, args...)
	}
}

// Scale z-scores each column with its mean and sample standard deviation.
func Scale(cols [][]float64, names []string) ([][]float64, error) {
	h := handle("Scale: %w")
	out := make([][]float64, len(cols))
	for c, col := range cols {
		name := fmt.Sprint(c)
		if c < len(names) {
			name = names[c]
		}
		if len(col) < 2 {
			return nil, h(fmt.Errorf("%v: %d values", name, len(col)))
		}
		m, e := stats.Mean(col)
		if e != nil {
			return nil, h(e)
		}
		sd, e := stats.StandardDeviationSample(col)
		if e != nil {
			return nil, h(e)
		}
		if sd == 0 {
			return nil, h(fmt.Errorf("%v: %w", name, ErrZeroVariance))
		}
		out[c] = make([]float64, len(col))
		for i, x := range col {
			out[c][i] = (x - m) / sd
		}
	}
	return out, nil
}

// Rows turns column-major data into one row per sample.
func Rows(cols [][]float64) [][]float64 {
	if len(cols) == 0 {
		return nil
	}
	out := make([][]float64, len(cols[0]))
	for i := range out {
		out[i] = make([]float64, len(cols))
		for c, col := range cols {
			out[i][c] = col[i]
		}
	}
	return out
}
