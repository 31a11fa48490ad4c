package groupstats

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	rangePoints = 128
	chiPoints   = 256
	// past this many residual degrees of freedom the studentized range is
	// indistinguishable from the range of normals
	largeDf = 25000
)

// rangeCDF is P(R < w) for the range R of k independent standard normals.
func rangeCDF(w float64, k int) float64 {
	if w <= 0 {
		return 0
	}
	n := distuv.UnitNormal
	f := func(z float64) float64 {
		d := n.CDF(z) - n.CDF(z-w)
		if d <= 0 {
			return 0
		}
		return n.Prob(z) * math.Pow(d, float64(k-1))
	}
	p := float64(k) * quad.Fixed(f, -8, 8+w, rangePoints, quad.Legendre{}, 0)
	return math.Min(math.Max(p, 0), 1)
}

// PTukey is the CDF of the studentized range distribution for k means and df
// residual degrees of freedom.
func PTukey(q float64, k int, df float64) float64 {
	if q <= 0 || k < 2 {
		return 0
	}
	if math.IsInf(q, 1) {
		return 1
	}
	if df > largeDf || math.IsInf(df, 1) {
		return rangeCDF(q, k)
	}

	lg, _ := math.Lgamma(df / 2)
	logNorm := df/2*math.Log(df) + math.Ln2 - df/2*math.Ln2 - lg
	spread := 10 / math.Sqrt(2*df)
	lo := math.Max(0, 1-spread)
	hi := 1 + spread
	if df < 4 {
		hi = 1 + 2*spread
	}
	f := func(s float64) float64 {
		if s <= 0 {
			return 0
		}
		logDens := logNorm + (df-1)*math.Log(s) - df*s*s/2
		return math.Exp(logDens) * rangeCDF(q*s, k)
	}
	p := quad.Fixed(f, lo, hi, chiPoints, quad.Legendre{}, 0)
	return math.Min(math.Max(p, 0), 1)
}

// QTukey inverts PTukey by bisection.
func QTukey(p float64, k int, df float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return math.Inf(1)
	}
	lo, hi := 0.0, 8.0
	for PTukey(hi, k, df) < p {
		lo = hi
		hi *= 2
		if hi > 1e4 {
			return math.Inf(1)
		}
	}
	for i := 0; i < 50; i++ {
		mid := (lo + hi) / 2
		if PTukey(mid, k, df) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// Contrast is one Tukey HSD comparison, reported as B minus A.
type Contrast struct {
	A, B  string
	Diff  float64
	Lower float64
	Upper float64
	Q     float64
	PAdj  float64
}

func (c Contrast) Name() string {
	return c.B + "-" + c.A
}

// Tukey runs Tukey's honestly significant difference test on every pair of
// groups with a 95% family-wise confidence level.
func Tukey(g Groups) ([]Contrast, error) {
	h := handle("Tukey: %w")
	a, e := OneWay(g)
	if e != nil {
		return nil, h(e)
	}
	k := len(g.Values)
	qcrit := QTukey(0.95, k, a.DfWithin)

	var out []Contrast
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			ni := float64(len(g.Values[i]))
			nj := float64(len(g.Values[j]))
			se := math.Sqrt(a.MSWithin / 2 * (1/ni + 1/nj))
			diff := mean(g.Values[j]) - mean(g.Values[i])
			q := math.Abs(diff) / se
			out = append(out, Contrast{
				A:     g.Names[i],
				B:     g.Names[j],
				Diff:  diff,
				Lower: diff - qcrit*se,
				Upper: diff + qcrit*se,
				Q:     q,
				PAdj:  1 - PTukey(q, k, a.DfWithin),
			})
		}
	}
	return out, nil
}

func FprintTukey(w io.Writer, cs []Contrast) error {
	if _, e := fmt.Fprintf(w, "contrast\tdiff\tlwr\tupr\tp_adj\n"); e != nil {
		return e
	}
	for _, c := range cs {
		if _, e := fmt.Fprintf(w, "%v\t%.4g\t%.4g\t%.4g\t%.4g\n", c.Name(), c.Diff, c.Lower, c.Upper, c.PAdj); e != nil {
			return e
		}
	}
	return nil
}
