package groupstats

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrTooFewGroups = errors.New("need at least two non-empty groups")

// ErrZeroVariance means the observations do not vary within groups beyond
// rounding error, so no F ratio can be formed.
var ErrZeroVariance = errors.New("zero within-group variance")

// Groups holds one slice of observations per named group.
type Groups struct {
	Names  []string
	Values [][]float64
}

// Split partitions values by label, in the order given. Labels absent from
// order are ignored, and empty groups are dropped.
func Split(labels []string, values []float64, order []string) Groups {
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	vals := make([][]float64, len(order))
	for i, l := range labels {
		if j, ok := pos[l]; ok {
			vals[j] = append(vals[j], values[i])
		}
	}
	var g Groups
	for i, name := range order {
		if len(vals[i]) > 0 {
			g.Names = append(g.Names, name)
			g.Values = append(g.Values, vals[i])
		}
	}
	return g
}

func (g Groups) N() int {
	n := 0
	for _, v := range g.Values {
		n += len(v)
	}
	return n
}

type Anova struct {
	DfBetween float64
	DfWithin  float64
	SSBetween float64
	SSWithin  float64
	MSBetween float64
	MSWithin  float64
	F         float64
	P         float64
}

func mean(x []float64) float64 {
	m, e := stats.Mean(x)
	if e != nil {
		return math.NaN()
	}
	return m
}

// OneWay is a one-way analysis of variance across groups.
func OneWay(g Groups) (Anova, error) {
	h := handle("OneWay: %w")
	var a Anova
	if len(g.Values) < 2 {
		return a, h(ErrTooFewGroups)
	}
	n := g.N()
	k := len(g.Values)
	if n <= k {
		return a, h(fmt.Errorf("%d observations in %d groups leave no residual degrees of freedom", n, k))
	}

	var all []float64
	for _, v := range g.Values {
		all = append(all, v...)
	}
	grand := mean(all)
	for _, v := range g.Values {
		m := mean(v)
		a.SSBetween += float64(len(v)) * (m - grand) * (m - grand)
		for _, x := range v {
			a.SSWithin += (x - m) * (x - m)
		}
	}
	a.DfBetween = float64(k - 1)
	a.DfWithin = float64(n - k)
	a.MSBetween = a.SSBetween / a.DfBetween
	a.MSWithin = a.SSWithin / a.DfWithin
	if a.SSWithin <= 1e-12*(a.SSBetween+a.SSWithin) {
		return a, h(ErrZeroVariance)
	}
	a.F = a.MSBetween / a.MSWithin
	a.P = distuv.F{D1: a.DfBetween, D2: a.DfWithin}.Survival(a.F)
	return a, nil
}

func FprintAnova(w io.Writer, name string, a Anova) error {
	_, e := fmt.Fprintf(w,
		"term\tdf\tsum_sq\tmean_sq\tF\tp\n"+
			"%v\t%v\t%.6g\t%.6g\t%.4f\t%.4g\n"+
			"Residuals\t%v\t%.6g\t%.6g\t\t\n",
		name, a.DfBetween, a.SSBetween, a.MSBetween, a.F, a.P,
		a.DfWithin, a.SSWithin, a.MSWithin,
	)
	return e
}

// Summary describes one group for printing.
type Summary struct {
	Name   string
	N      int
	Mean   float64
	SD     float64
	Q1     float64
	Median float64
	Q3     float64
}

func Describe(g Groups) ([]Summary, error) {
	out := make([]Summary, 0, len(g.Names))
	for i, v := range g.Values {
		if len(v) == 0 {
			continue
		}
		s := Summary{Name: g.Names[i], N: len(v), Mean: mean(v)}
		if len(v) > 1 {
			sd, e := stats.StandardDeviationSample(v)
			if e != nil {
				return nil, fmt.Errorf("Describe: %w", e)
			}
			s.SD = sd
		}
		s.Q1, s.Median, s.Q3 = v[0], v[0], v[0]
		if len(v) > 1 {
			q, e := stats.Quartile(v)
			if e != nil {
				return nil, fmt.Errorf("Describe: %w", e)
			}
			s.Q1, s.Median, s.Q3 = q.Q1, q.Q2, q.Q3
		}
		out = append(out, s)
	}
	return out, nil
}

func FprintSummaries(w io.Writer, ss []Summary) error {
	if _, e := fmt.Fprintf(w, "group\tn\tmean\tsd\tq1\tmedian\tq3\n"); e != nil {
		return e
	}
	for _, s := range ss {
		if _, e := fmt.Fprintf(w, "%v\t%v\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\n", s.Name, s.N, s.Mean, s.SD, s.Q1, s.Median, s.Q3); e != nil {
			return e
		}
	}
	return nil
}

func handle(format string) func(...any) error {
	return func(args ...any) error {
		return fmt.Errorf(format, args...)
	}
}
