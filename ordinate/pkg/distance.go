package ordinate

import (
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

type Metric string

const (
	Bray      Metric = "bray"
	Jaccard   Metric = "jaccard"
	Euclidean Metric = "euclidean"
)

func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case Bray, Jaccard, Euclidean:
		return m, nil
	case "braycurtis", "bray-curtis":
		return Bray, nil
	}
	return "", fmt.Errorf("ParseMetric: unknown distance %q", s)
}

// BrayCurtis is sum|a-b| / sum(a+b); two empty rows are at distance 0.
func BrayCurtis(a, b []float64) float64 {
	num, den := 0.0, 0.0
	for j := range a {
		num += math.Abs(a[j] - b[j])
		den += a[j] + b[j]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// BinaryJaccard is one minus shared over total taxa present.
func BinaryJaccard(a, b []float64) float64 {
	both, either := 0, 0
	for j := range a {
		pa, pb := a[j] > 0, b[j] > 0
		if pa && pb {
			both++
		}
		if pa || pb {
			either++
		}
	}
	if either == 0 {
		return 0
	}
	return 1 - float64(both)/float64(either)
}

func (m Metric) Dist(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("Dist: rows of length %d and %d", len(a), len(b))
	}
	switch m {
	case Bray:
		return BrayCurtis(a, b), nil
	case Jaccard:
		return BinaryJaccard(a, b), nil
	case Euclidean:
		if len(a) == 0 {
			return 0, nil
		}
		return stats.EuclideanDistance(a, b)
	}
	return 0, fmt.Errorf("Dist: unknown distance %q", m)
}

// DistMatrix returns the symmetric matrix of pairwise distances between rows.
func DistMatrix(rows [][]float64, m Metric) (*mat.SymDense, error) {
	h := handle("DistMatrix: %w")
	n := len(rows)
	if n == 0 {
		return nil, h(fmt.Errorf("no rows"))
	}
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			x, e := m.Dist(rows[i], rows[j])
			if e != nil {
				return nil, h(e)
			}
			d.SetSym(i, j, x)
		}
	}
	return d, nil
}

func handle(format string) func(...any) error {
	return func(args ...any) error {
		return fmt.Errorf(format, args...)
	}
}
