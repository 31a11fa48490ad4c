package ordinate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jgbaldwinbrown/marshmicro/groupstats/pkg"
)

// DispersionResult holds each sample's distance to its group centroid in
// principal coordinate space and an ANOVA of those distances across groups.
type DispersionResult struct {
	Distances []float64
	Groups    groupstats.Groups
	Anova     groupstats.Anova
}

// Dispersion checks homogeneity of multivariate spread between groups, the
// assumption under which a PERMANOVA difference reflects location alone.
// Only axes with positive eigenvalues are used.
func Dispersion(d mat.Symmetric, labels []string, order []string) (DispersionResult, error) {
	h := handle("Dispersion: %w")
	var r DispersionResult
	n := d.SymmetricDim()
	if len(labels) != n {
		return r, h(fmt.Errorf("%d labels for %d samples", len(labels), n))
	}
	o, e := PCoA(d)
	if e != nil {
		return r, h(e)
	}

	group, ngroups := codes(labels)
	naxes := o.NumAxes()
	centroids := make([][]float64, ngroups)
	sizes := make([]float64, ngroups)
	for g := range centroids {
		centroids[g] = make([]float64, naxes)
	}
	for i := 0; i < n; i++ {
		sizes[group[i]]++
		for a := 0; a < naxes; a++ {
			centroids[group[i]][a] += o.Coords.At(i, a)
		}
	}
	for g := range centroids {
		for a := range centroids[g] {
			centroids[g][a] /= sizes[g]
		}
	}

	r.Distances = make([]float64, n)
	for i := 0; i < n; i++ {
		ss := 0.0
		for a := 0; a < naxes; a++ {
			x := o.Coords.At(i, a) - centroids[group[i]][a]
			ss += x * x
		}
		r.Distances[i] = math.Sqrt(ss)
	}

	r.Groups = groupstats.Split(labels, r.Distances, order)
	r.Anova, e = groupstats.OneWay(r.Groups)
	if e != nil {
		return r, h(e)
	}
	return r, nil
}
