package ordinate

import (
	"fmt"
	"io"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/cheggaaa/pb.v2"

	"github.com/jgbaldwinbrown/marshmicro/groupstats/pkg"
)

// PermOptions controls a permutation test. Bar, when not nil, advances once
// per permutation.
type PermOptions struct {
	N    int
	Seed int64
	Bar  *pb.ProgressBar
}

type PermanovaResult struct {
	Groups  int
	N       int
	DfModel float64
	DfResid float64
	SSModel float64
	SSResid float64
	SSTotal float64
	F       float64
	R2      float64
	P       float64
	Perms   int
}

// codes maps labels to group indices in first-seen order.
func codes(labels []string) ([]int, int) {
	pos := map[string]int{}
	out := make([]int, len(labels))
	for i, l := range labels {
		k, ok := pos[l]
		if !ok {
			k = len(pos)
			pos[l] = k
		}
		out[i] = k
	}
	return out, len(pos)
}

func squared(d mat.Symmetric) [][]float64 {
	n := d.SymmetricDim()
	sq := make([][]float64, n)
	for i := range sq {
		sq[i] = make([]float64, n)
		for j := range sq[i] {
			sq[i][j] = d.At(i, j) * d.At(i, j)
		}
	}
	return sq
}

func withinSS(sq [][]float64, group []int, ngroups int) float64 {
	sums := make([]float64, ngroups)
	sizes := make([]int, ngroups)
	for i := range sq {
		sizes[group[i]]++
		for j := i + 1; j < len(sq); j++ {
			if group[i] == group[j] {
				sums[group[i]] += sq[i][j]
			}
		}
	}
	ss := 0.0
	for g, s := range sums {
		ss += s / float64(sizes[g])
	}
	return ss
}

func pseudoF(ssTotal, ssWithin, dfModel, dfResid float64) float64 {
	if ssWithin <= 0 {
		return math.Inf(1)
	}
	return ((ssTotal - ssWithin) / dfModel) / (ssWithin / dfResid)
}

// Permanova tests whether samples labelled into groups differ in position in
// distance space, comparing the pseudo-F against label permutations.
func Permanova(d mat.Symmetric, labels []string, opts PermOptions) (PermanovaResult, error) {
	h := handle("Permanova: %w")
	var r PermanovaResult
	n := d.SymmetricDim()
	if len(labels) != n {
		return r, h(fmt.Errorf("%d labels for %d samples", len(labels), n))
	}
	group, a := codes(labels)
	if a < 2 {
		return r, h(groupstats.ErrTooFewGroups)
	}
	if n <= a {
		return r, h(fmt.Errorf("%d samples in %d groups leave no residual degrees of freedom", n, a))
	}

	sq := squared(d)
	for i := range sq {
		for j := i + 1; j < n; j++ {
			r.SSTotal += sq[i][j]
		}
	}
	r.SSTotal /= float64(n)
	if r.SSTotal <= 0 {
		return r, h(ErrZeroVariance)
	}

	r.Groups, r.N = a, n
	r.DfModel = float64(a - 1)
	r.DfResid = float64(n - a)
	r.SSResid = withinSS(sq, group, a)
	r.SSModel = r.SSTotal - r.SSResid
	r.F = pseudoF(r.SSTotal, r.SSResid, r.DfModel, r.DfResid)
	r.R2 = r.SSModel / r.SSTotal

	rd := rand.New(rand.NewSource(opts.Seed))
	perm := append([]int(nil), group...)
	threshold := r.F
	if !math.IsInf(threshold, 1) {
		threshold -= 1e-12 * math.Abs(threshold)
	}
	hits := 0
	for k := 0; k < opts.N; k++ {
		rd.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		f := pseudoF(r.SSTotal, withinSS(sq, perm, a), r.DfModel, r.DfResid)
		if f >= threshold {
			hits++
		}
		if opts.Bar != nil {
			opts.Bar.Add(1)
		}
	}
	r.Perms = opts.N
	r.P = float64(hits+1) / float64(opts.N+1)
	return r, nil
}

// Contrast is a PERMANOVA restricted to the samples of two groups.
type Contrast struct {
	A, B   string
	Result PermanovaResult
	PAdj   float64
}

func subMatrix(d mat.Symmetric, idx []int) *mat.SymDense {
	s := mat.NewSymDense(len(idx), nil)
	for a, i := range idx {
		for b := a + 1; b < len(idx); b++ {
			s.SetSym(a, b, d.At(i, idx[b]))
		}
	}
	return s
}

// PairwisePermanova runs Permanova on every pair of groups in order. Groups
// absent from labels are skipped. The raw p-values are kept in Result.P and
// adjusted with the given method into PAdj.
func PairwisePermanova(d mat.Symmetric, labels []string, order []string, adjust string, opts PermOptions) ([]Contrast, error) {
	h := handle("PairwisePermanova: %w")
	var present []string
	for _, g := range order {
		for _, l := range labels {
			if l == g {
				present = append(present, g)
				break
			}
		}
	}

	var out []Contrast
	for i := 0; i < len(present); i++ {
		for j := i + 1; j < len(present); j++ {
			var idx []int
			var sub []string
			for k, l := range labels {
				if l == present[i] || l == present[j] {
					idx = append(idx, k)
					sub = append(sub, l)
				}
			}
			res, e := Permanova(subMatrix(d, idx), sub, opts)
			if e != nil {
				return nil, h(fmt.Errorf("%v vs %v: %w", present[i], present[j], e))
			}
			out = append(out, Contrast{A: present[i], B: present[j], Result: res})
		}
	}

	ps := make([]float64, len(out))
	for i, c := range out {
		ps[i] = c.Result.P
	}
	adj, e := groupstats.Adjust(ps, adjust)
	if e != nil {
		return nil, h(e)
	}
	for i := range out {
		out[i].PAdj = adj[i]
	}
	return out, nil
}

func FprintPermanova(w io.Writer, term string, r PermanovaResult) error {
	_, e := fmt.Fprintf(w,
		"term\tdf\tsum_sq\tR2\tF\tp\n"+
			"%v\t%v\t%.6g\t%.4f\t%.4f\t%.4g\n"+
			"Residual\t%v\t%.6g\t%.4f\t\t\n"+
			"Total\t%v\t%.6g\t1\t\t\n",
		term, r.DfModel, r.SSModel, r.R2, r.F, r.P,
		r.DfResid, r.SSResid, 1-r.R2,
		r.DfModel+r.DfResid, r.SSTotal,
	)
	return e
}

func FprintPairwise(w io.Writer, cs []Contrast, adjust string) error {
	if _, e := fmt.Fprintf(w, "contrast\tF\tR2\tp\tp_%v\n", adjustName(adjust)); e != nil {
		return e
	}
	for _, c := range cs {
		if _, e := fmt.Fprintf(w, "%v vs %v\t%.4f\t%.4f\t%.4g\t%.4g\n", c.A, c.B, c.Result.F, c.Result.R2, c.Result.P, c.PAdj); e != nil {
			return e
		}
	}
	return nil
}

func adjustName(method string) string {
	if method == "" {
		return "none"
	}
	return method
}
