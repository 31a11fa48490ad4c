package rda

import (
	"fmt"
	"io"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/sajari/regression"
	"gonum.org/v1/gonum/mat"
)

// Model is a redundancy analysis: the responses regressed on the covariates,
// with the fitted values decomposed into constrained axes. Explained is each
// axis' share of the total inertia. Sites holds weighted-average site scores
// and LC the linear combination scores, one row per sample and one column per
// axis. Biplot holds the correlation of each covariate with each axis' LC
// scores. Coeffs holds the intercept then one slope per covariate for each
// response.
type Model struct {
	Covariates   []string
	N            int
	TotalInertia float64
	Constrained  float64
	Eigenvalues  []float64
	Explained    []float64
	Sites        *mat.Dense
	LC           *mat.Dense
	Biplot       *mat.Dense
	Coeffs       [][]float64
	R2           []float64
}

func (m *Model) NumAxes() int {
	return len(m.Eigenvalues)
}

func center(rows [][]float64) *mat.Dense {
	n, p := len(rows), len(rows[0])
	out := mat.NewDense(n, p, nil)
	for j := 0; j < p; j++ {
		mean := 0.0
		for i := 0; i < n; i++ {
			mean += rows[i][j]
		}
		mean /= float64(n)
		for i := 0; i < n; i++ {
			out.Set(i, j, rows[i][j]-mean)
		}
	}
	return out
}

func sumSq(m mat.Matrix) float64 {
	r, c := m.Dims()
	ss := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			ss += m.At(i, j) * m.At(i, j)
		}
	}
	return ss
}

// basis returns an orthonormal basis for the centered covariates, with the
// first t columns spanning the first t covariates.
func basis(x [][]float64) (*mat.Dense, error) {
	xc := center(x)
	n, m := xc.Dims()
	var qr mat.QR
	qr.Factorize(xc)
	var r mat.Dense
	qr.RTo(&r)
	largest := 0.0
	for k := 0; k < m; k++ {
		largest = math.Max(largest, math.Abs(r.At(k, k)))
	}
	for k := 0; k < m; k++ {
		if math.Abs(r.At(k, k)) <= 1e-8*largest {
			return nil, ErrCollinear
		}
	}
	var q mat.Dense
	qr.QTo(&q)
	return mat.DenseCopyOf(q.Slice(0, n, 0, m)), nil
}

func checkShapes(y, x [][]float64) error {
	n := len(y)
	if n == 0 || len(y[0]) == 0 {
		return fmt.Errorf("empty response table")
	}
	if len(x) != n {
		return fmt.Errorf("%d response rows and %d covariate rows", n, len(x))
	}
	if len(x[0]) == 0 {
		return fmt.Errorf("no covariates")
	}
	if m := len(x[0]); n <= m+1 {
		return fmt.Errorf("%d samples cannot fit %d covariates", n, m)
	}
	return nil
}

func regress(col []float64, x [][]float64, names []string) (*regression.Regression, error) {
	r := new(regression.Regression)
	r.SetObserved("response")
	for c, name := range names {
		r.SetVar(c, name)
	}
	for i, row := range x {
		r.Train(regression.DataPoint(col[i], row))
	}
	if e := r.Run(); e != nil {
		return nil, e
	}
	return r, nil
}

func constant(col []float64) bool {
	for _, v := range col {
		if v != col[0] {
			return false
		}
	}
	return true
}

// Fit regresses every column of y on the covariates x (both one row per
// sample) and extracts the constrained axes from the fitted values. y is
// centered here; x should already be scaled.
func Fit(y, x [][]float64, names []string) (*Model, error) {
	h := handle("Fit: %w")
	if e := checkShapes(y, x); e != nil {
		return nil, h(e)
	}
	n, m := len(y), len(x[0])
	if len(names) != m {
		return nil, h(fmt.Errorf("%d names for %d covariates", len(names), m))
	}

	yc := center(y)
	_, p := yc.Dims()
	model := &Model{Covariates: names, N: n}
	model.TotalInertia = sumSq(yc) / float64(n-1)
	if model.TotalInertia <= 1e-15 {
		return nil, h(ErrZeroVariance)
	}
	if _, e := basis(x); e != nil {
		return nil, h(e)
	}

	fitted := mat.NewDense(n, p, nil)
	model.Coeffs = make([][]float64, p)
	model.R2 = make([]float64, p)
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, yc)
		if constant(col) {
			model.Coeffs[j] = make([]float64, m+1)
			continue
		}
		r, e := regress(col, x, names)
		if e != nil {
			return nil, h(fmt.Errorf("response %d: %w", j, e))
		}
		for i, row := range x {
			pred, e := r.Predict(row)
			if e != nil {
				return nil, h(e)
			}
			fitted.Set(i, j, pred)
		}
		model.Coeffs[j] = r.GetCoeffs()
		model.R2[j] = r.R2
	}

	var svd mat.SVD
	if ok := svd.Factorize(fitted, mat.SVDThin); !ok {
		return nil, h(fmt.Errorf("SVD of fitted values failed"))
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	k := 0
	for k < len(s) && k < m && s[k] > 1e-9*s[0] {
		k++
	}
	model.Eigenvalues = make([]float64, k)
	model.Explained = make([]float64, k)
	model.LC = mat.NewDense(n, max(k, 1), nil)
	model.Sites = mat.NewDense(n, max(k, 1), nil)
	model.Biplot = mat.NewDense(m, max(k, 1), nil)
	for a := 0; a < k; a++ {
		lambda := s[a] * s[a] / float64(n-1)
		model.Eigenvalues[a] = lambda
		model.Explained[a] = lambda / model.TotalInertia
		model.Constrained += lambda

		big := 0
		for i := 0; i < n; i++ {
			if math.Abs(u.At(i, a)) > math.Abs(u.At(big, a)) {
				big = i
			}
		}
		sign := 1.0
		if u.At(big, a) < 0 {
			sign = -1
		}
		for i := 0; i < n; i++ {
			model.LC.Set(i, a, sign*s[a]*u.At(i, a))
			wa := 0.0
			for j := 0; j < p; j++ {
				wa += yc.At(i, j) * sign * v.At(j, a)
			}
			model.Sites.Set(i, a, wa)
		}

		lc := mat.Col(nil, a, model.LC)
		for c := 0; c < m; c++ {
			xcol := make([]float64, n)
			for i := range x {
				xcol[i] = x[i][c]
			}
			cor, e := stats.Correlation(xcol, lc)
			if e != nil {
				return nil, h(e)
			}
			model.Biplot.Set(c, a, cor)
		}
	}
	return model, nil
}

// VIF is the variance inflation factor of each covariate, 1/(1-R²) from
// regressing it on the others.
func VIF(x [][]float64, names []string) ([]float64, error) {
	h := handle("VIF: %w")
	if len(x) == 0 {
		return nil, h(fmt.Errorf("no samples"))
	}
	m := len(x[0])
	out := make([]float64, m)
	if m == 1 {
		out[0] = 1
		return out, nil
	}
	for c := 0; c < m; c++ {
		col := make([]float64, len(x))
		rest := make([][]float64, len(x))
		var restNames []string
		for k, name := range names {
			if k != c {
				restNames = append(restNames, name)
			}
		}
		for i, row := range x {
			col[i] = row[c]
			rest[i] = append(append([]float64(nil), row[:c]...), row[c+1:]...)
		}
		r, e := regress(col, rest, restNames)
		if e != nil {
			return nil, h(fmt.Errorf("%v: %w", names[c], e))
		}
		if r.R2 >= 1 {
			out[c] = math.Inf(1)
		} else {
			out[c] = 1 / (1 - r.R2)
		}
	}
	return out, nil
}

func FprintModel(w io.Writer, m *Model) error {
	if _, e := fmt.Fprintf(w, "inertia\tvariance\tproportion\nTotal\t%.6g\t1\nConstrained\t%.6g\t%.4f\nUnconstrained\t%.6g\t%.4f\n",
		m.TotalInertia,
		m.Constrained, m.Constrained/m.TotalInertia,
		m.TotalInertia-m.Constrained, 1-m.Constrained/m.TotalInertia,
	); e != nil {
		return e
	}
	if _, e := fmt.Fprintf(w, "axis\teigenvalue\tproportion\n"); e != nil {
		return e
	}
	for a, l := range m.Eigenvalues {
		if _, e := fmt.Fprintf(w, "RDA%d\t%.6g\t%.4f\n", a+1, l, m.Explained[a]); e != nil {
			return e
		}
	}
	if _, e := fmt.Fprintf(w, "covariate"); e != nil {
		return e
	}
	for a := range m.Eigenvalues {
		if _, e := fmt.Fprintf(w, "\tRDA%d", a+1); e != nil {
			return e
		}
	}
	if _, e := fmt.Fprintln(w); e != nil {
		return e
	}
	for c, name := range m.Covariates {
		if _, e := fmt.Fprintf(w, "%v", name); e != nil {
			return e
		}
		for a := range m.Eigenvalues {
			if _, e := fmt.Fprintf(w, "\t%.4f", m.Biplot.At(c, a)); e != nil {
				return e
			}
		}
		if _, e := fmt.Fprintln(w); e != nil {
			return e
		}
	}
	return nil
}

func FprintVIF(w io.Writer, names []string, vif []float64) error {
	if _, e := fmt.Fprintf(w, "covariate\tvif\n"); e != nil {
		return e
	}
	for i, name := range names {
		if _, e := fmt.Fprintf(w, "%v\t%.3f\n", name, vif[i]); e != nil {
			return e
		}
	}
	return nil
}
