package ordinate

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var ErrZeroVariance = errors.New("zero variance")

// Ordination is a principal coordinates analysis of a distance matrix.
// Coords has one row per sample and one column per axis with a positive
// eigenvalue, in decreasing order of eigenvalue.
type Ordination struct {
	Eigenvalues []float64
	Explained   []float64
	Coords      *mat.Dense
}

func (o *Ordination) NumAxes() int {
	return len(o.Eigenvalues)
}

// Axis returns the scores of every sample on axis k (0-based).
func (o *Ordination) Axis(k int) []float64 {
	return mat.Col(nil, k, o.Coords)
}

// centered is -1/2 J D² J, the Gower-centered matrix of squared distances.
func centered(d mat.Symmetric) *mat.SymDense {
	n := d.SymmetricDim()
	a := mat.NewSymDense(n, nil)
	rowMeans := make([]float64, n)
	grand := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x := -0.5 * d.At(i, j) * d.At(i, j)
			rowMeans[i] += x
			grand += x
		}
		rowMeans[i] /= float64(n)
	}
	grand /= float64(n * n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			x := -0.5 * d.At(i, j) * d.At(i, j)
			a.SetSym(i, j, x-rowMeans[i]-rowMeans[j]+grand)
		}
	}
	return a
}

// PCoA projects samples onto the principal coordinates of d. Axes with
// non-positive eigenvalues are discarded; each axis is signed so that its
// largest-magnitude score is positive.
func PCoA(d mat.Symmetric) (*Ordination, error) {
	h := handle("PCoA: %w")
	n := d.SymmetricDim()
	if n < 2 {
		return nil, h(fmt.Errorf("need at least two samples, have %d", n))
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(centered(d), true); !ok {
		return nil, h(fmt.Errorf("eigendecomposition failed"))
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return vals[order[a]] > vals[order[b]] })

	top := math.Abs(vals[order[0]])
	tol := 1e-10 * math.Max(top, 1)
	var keep []int
	total := 0.0
	for _, k := range order {
		if vals[k] > tol {
			keep = append(keep, k)
			total += vals[k]
		}
	}
	if len(keep) == 0 {
		return nil, h(ErrZeroVariance)
	}

	o := &Ordination{
		Eigenvalues: make([]float64, len(keep)),
		Explained:   make([]float64, len(keep)),
		Coords:      mat.NewDense(n, len(keep), nil),
	}
	for a, k := range keep {
		o.Eigenvalues[a] = vals[k]
		o.Explained[a] = vals[k] / total
		scale := math.Sqrt(vals[k])

		big := 0
		for i := 0; i < n; i++ {
			if math.Abs(vecs.At(i, k)) > math.Abs(vecs.At(big, k)) {
				big = i
			}
		}
		sign := 1.0
		if vecs.At(big, k) < 0 {
			sign = -1
		}
		for i := 0; i < n; i++ {
			o.Coords.Set(i, a, sign*scale*vecs.At(i, k))
		}
	}
	return o, nil
}

// FprintOrdination prints the explained fraction of each axis and the scores
// on the first naxes axes.
func FprintOrdination(w io.Writer, samples, labels []string, o *Ordination, naxes int) error {
	if naxes > o.NumAxes() {
		naxes = o.NumAxes()
	}
	if _, e := fmt.Fprintf(w, "axis\teigenvalue\texplained\n"); e != nil {
		return e
	}
	for a := 0; a < naxes; a++ {
		if _, e := fmt.Fprintf(w, "PCo%d\t%.6g\t%.4f\n", a+1, o.Eigenvalues[a], o.Explained[a]); e != nil {
			return e
		}
	}

	if _, e := fmt.Fprintf(w, "sample\ttreatment"); e != nil {
		return e
	}
	for a := 0; a < naxes; a++ {
		if _, e := fmt.Fprintf(w, "\tPCo%d", a+1); e != nil {
			return e
		}
	}
	if _, e := fmt.Fprintln(w); e != nil {
		return e
	}
	for i, s := range samples {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		if _, e := fmt.Fprintf(w, "%v\t%v", s, label); e != nil {
			return e
		}
		for a := 0; a < naxes; a++ {
			if _, e := fmt.Fprintf(w, "\t%.5f", o.Coords.At(i, a)); e != nil {
				return e
			}
		}
		if _, e := fmt.Fprintln(w); e != nil {
			return e
		}
	}
	return nil
}
