package rda

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/jgbaldwinbrown/marshmicro/ordinate/pkg"
)

type TestRow struct {
	Term     string
	Df       float64
	Variance float64
	F        float64
	P        float64
}

// Anova holds permutation tests of an RDA: the whole model, each constrained
// axis and each covariate added in order.
type Anova struct {
	Model    TestRow
	Axes     []TestRow
	Terms    []TestRow
	Residual TestRow
	Perms    int
}

type fitStats struct {
	fitted float64
	terms  []float64
	axes   []float64
}

// project summarizes the fit of the rows of yc, taken in order perm, onto the
// orthonormal basis q.
func project(q, yc *mat.Dense, perm []int) fitStats {
	n, p := yc.Dims()
	_, m := q.Dims()
	yp := mat.NewDense(n, p, nil)
	for i, src := range perm {
		yp.SetRow(i, yc.RawRowView(src))
	}
	var b mat.Dense
	b.Mul(q.T(), yp)

	st := fitStats{terms: make([]float64, m)}
	for t := 0; t < m; t++ {
		for j := 0; j < p; j++ {
			st.terms[t] += b.At(t, j) * b.At(t, j)
		}
		st.fitted += st.terms[t]
	}
	var svd mat.SVD
	if svd.Factorize(&b, mat.SVDNone) {
		for _, s := range svd.Values(nil) {
			st.axes = append(st.axes, s*s)
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(st.axes)))
	}
	return st
}

func ratio(ss, df, resid, dfResid float64) float64 {
	if resid <= 0 {
		return math.Inf(1)
	}
	return (ss / df) / (resid / dfResid)
}

func atLeast(x, observed float64) bool {
	if math.IsInf(observed, 1) {
		return math.IsInf(x, 1)
	}
	return x >= observed-1e-12*math.Abs(observed)
}

// Test runs permutation tests of the RDA of y on x. Rows of the response
// are permuted against fixed covariates; the statistic for every test is
// recomputed on each permutation against that permutation's residual.
func Test(y, x [][]float64, names []string, opts ordinate.PermOptions) (*Anova, error) {
	h := handle("Test: %w")
	if e := checkShapes(y, x); e != nil {
		return nil, h(e)
	}
	n, m := len(y), len(x[0])
	yc := center(y)
	total := sumSq(yc)
	if total <= 1e-15 {
		return nil, h(ErrZeroVariance)
	}
	q, e := basis(x)
	if e != nil {
		return nil, h(e)
	}

	dfResid := float64(n - m - 1)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	obs := project(q, yc, perm)
	resid := total - obs.fitted
	fModel := ratio(obs.fitted, float64(m), resid, dfResid)
	fTerms := make([]float64, m)
	for t := range fTerms {
		fTerms[t] = ratio(obs.terms[t], 1, resid, dfResid)
	}
	naxes := len(obs.axes)
	for naxes > 0 && obs.axes[naxes-1] <= 1e-12*obs.axes[0] {
		naxes--
	}
	fAxes := make([]float64, naxes)
	for a := range fAxes {
		fAxes[a] = ratio(obs.axes[a], 1, resid, dfResid)
	}

	hitsModel := 0
	hitsTerms := make([]int, m)
	hitsAxes := make([]int, naxes)
	rd := rand.New(rand.NewSource(opts.Seed))
	for k := 0; k < opts.N; k++ {
		rd.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		st := project(q, yc, perm)
		r := total - st.fitted
		if atLeast(ratio(st.fitted, float64(m), r, dfResid), fModel) {
			hitsModel++
		}
		for t := range hitsTerms {
			if atLeast(ratio(st.terms[t], 1, r, dfResid), fTerms[t]) {
				hitsTerms[t]++
			}
		}
		for a := range hitsAxes {
			if a < len(st.axes) && atLeast(ratio(st.axes[a], 1, r, dfResid), fAxes[a]) {
				hitsAxes[a]++
			}
		}
		if opts.Bar != nil {
			opts.Bar.Add(1)
		}
	}

	pval := func(hits int) float64 {
		return float64(hits+1) / float64(opts.N+1)
	}
	scale := float64(n - 1)
	out := &Anova{
		Model:    TestRow{Term: "Model", Df: float64(m), Variance: obs.fitted / scale, F: fModel, P: pval(hitsModel)},
		Residual: TestRow{Term: "Residual", Df: dfResid, Variance: resid / scale},
		Perms:    opts.N,
	}
	for t := 0; t < m; t++ {
		out.Terms = append(out.Terms, TestRow{Term: names[t], Df: 1, Variance: obs.terms[t] / scale, F: fTerms[t], P: pval(hitsTerms[t])})
	}
	for a := 0; a < naxes; a++ {
		out.Axes = append(out.Axes, TestRow{Term: fmt.Sprintf("RDA%d", a+1), Df: 1, Variance: obs.axes[a] / scale, F: fAxes[a], P: pval(hitsAxes[a])})
	}
	return out, nil
}

func fprintRows(w io.Writer, title string, rows []TestRow, resid TestRow) error {
	if _, e := fmt.Fprintf(w, "%v\tdf\tvariance\tF\tp\n", title); e != nil {
		return e
	}
	for _, r := range rows {
		if _, e := fmt.Fprintf(w, "%v\t%v\t%.6g\t%.4f\t%.4g\n", r.Term, r.Df, r.Variance, r.F, r.P); e != nil {
			return e
		}
	}
	_, e := fmt.Fprintf(w, "%v\t%v\t%.6g\t\t\n", resid.Term, resid.Df, resid.Variance)
	return e
}

func FprintAnova(w io.Writer, a *Anova) error {
	if _, e := fmt.Fprintf(w, "permutations\t%d\n", a.Perms); e != nil {
		return e
	}
	if e := fprintRows(w, "model", []TestRow{a.Model}, a.Residual); e != nil {
		return e
	}
	if e := fprintRows(w, "axis", a.Axes, a.Residual); e != nil {
		return e
	}
	return fprintRows(w, "term", a.Terms, a.Residual)
}
