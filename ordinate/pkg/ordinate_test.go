package ordinate

import (
	"errors"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/jgbaldwinbrown/marshmicro/groupstats/pkg"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestRelativeRowsSumToOne(t *testing.T) {
	rows := [][]float64{{1, 2, 3, 4}, {0, 0, 5, 0}, {90, 3, 0, 7}}
	for _, tr := range []Transform{Relative, Hellinger} {
		out := tr.Apply(rows)
		for i, row := range out {
			sum := 0.0
			for _, x := range row {
				if tr == Hellinger {
					x *= x
				}
				sum += x
			}
			if !near(sum, 1, 1e-12) {
				t.Errorf("%v row %d sums to %v", tr, i, sum)
			}
		}
	}
	if rows[0][0] != 1 {
		t.Errorf("Apply modified its input")
	}
}

func TestPresenceAndParse(t *testing.T) {
	out := Presence.Apply([][]float64{{0, 3, 1}})
	if out[0][0] != 0 || out[0][1] != 1 || out[0][2] != 1 {
		t.Errorf("presence %v", out)
	}
	if tr, e := ParseTransform("Hellinger"); e != nil || tr != Hellinger {
		t.Errorf("ParseTransform: %v %v", tr, e)
	}
	if _, e := ParseTransform("log"); e == nil {
		t.Errorf("expected unknown transform error")
	}
	if m, e := ParseMetric("Bray-Curtis"); e != nil || m != Bray {
		t.Errorf("ParseMetric: %v %v", m, e)
	}
}

func TestDistances(t *testing.T) {
	a := []float64{6, 7, 4}
	b := []float64{10, 0, 6}
	// |6-10| + |7-0| + |4-6| = 13 over 33
	if d := BrayCurtis(a, b); !near(d, 13.0/33.0, 1e-12) {
		t.Errorf("bray %v", d)
	}
	if d := BinaryJaccard(a, b); !near(d, 1.0/3.0, 1e-12) {
		t.Errorf("jaccard %v", d)
	}
	if d, e := Euclidean.Dist([]float64{0, 0}, []float64{3, 4}); e != nil || !near(d, 5, 1e-12) {
		t.Errorf("euclidean %v %v", d, e)
	}
	if d := BrayCurtis([]float64{0, 0}, []float64{0, 0}); d != 0 {
		t.Errorf("bray of empty rows %v", d)
	}
}

func TestDistMatrix(t *testing.T) {
	d, e := DistMatrix([][]float64{{1, 0}, {0, 1}, {1, 1}}, Bray)
	if e != nil {
		t.Fatal(e)
	}
	for i := 0; i < 3; i++ {
		if d.At(i, i) != 0 {
			t.Errorf("diagonal %d = %v", i, d.At(i, i))
		}
		for j := 0; j < 3; j++ {
			if d.At(i, j) != d.At(j, i) {
				t.Errorf("asymmetric at %d %d", i, j)
			}
		}
	}
	if !near(d.At(0, 1), 1, 1e-12) {
		t.Errorf("disjoint rows at distance %v", d.At(0, 1))
	}
}

func euclideanMatrix(t *testing.T, pts [][]float64) *mat.SymDense {
	t.Helper()
	d, e := DistMatrix(pts, Euclidean)
	if e != nil {
		t.Fatal(e)
	}
	return d
}

func TestPCoARecoversEuclideanConfiguration(t *testing.T) {
	pts := [][]float64{{0, 0}, {4, 0}, {0, 2}, {4, 2}, {2, 1}}
	d := euclideanMatrix(t, pts)
	o, e := PCoA(d)
	if e != nil {
		t.Fatal(e)
	}
	if o.NumAxes() != 2 {
		t.Fatalf("axes %v != 2 (eigenvalues %v)", o.NumAxes(), o.Eigenvalues)
	}
	if o.Eigenvalues[0] < o.Eigenvalues[1] {
		t.Errorf("eigenvalues not decreasing: %v", o.Eigenvalues)
	}
	// variance along x is 4 times that along y
	if !near(o.Explained[0], 0.8, 1e-9) || !near(o.Explained[0]+o.Explained[1], 1, 1e-12) {
		t.Errorf("explained %v", o.Explained)
	}
	for i := range pts {
		for j := range pts {
			dx := o.Coords.At(i, 0) - o.Coords.At(j, 0)
			dy := o.Coords.At(i, 1) - o.Coords.At(j, 1)
			if !near(math.Hypot(dx, dy), d.At(i, j), 1e-9) {
				t.Errorf("distance %d-%d %v != %v", i, j, math.Hypot(dx, dy), d.At(i, j))
			}
		}
	}
	if len(o.Axis(0)) != len(pts) {
		t.Errorf("axis length %v", len(o.Axis(0)))
	}
}

func TestPCoAZeroVariance(t *testing.T) {
	_, e := PCoA(mat.NewSymDense(3, nil))
	if !errors.Is(e, ErrZeroVariance) {
		t.Errorf("error %v is not ErrZeroVariance", e)
	}
}

func clusters(offset float64) ([][]float64, []string) {
	var pts [][]float64
	var labels []string
	for g, name := range []string{"Control", "Fresh", "Salt"} {
		for k := 0; k < 4; k++ {
			x := float64(g)*offset + 0.1*float64(k)
			y := 0.1 * float64(k%2)
			pts = append(pts, []float64{x, y})
			labels = append(labels, name)
		}
	}
	return pts, labels
}

func TestPermanovaSeparatedGroups(t *testing.T) {
	pts, labels := clusters(10)
	d := euclideanMatrix(t, pts)
	r, e := Permanova(d, labels, PermOptions{N: 199, Seed: 1})
	if e != nil {
		t.Fatal(e)
	}
	if r.P > 0.01 {
		t.Errorf("separated groups p %v > 0.01", r.P)
	}
	if r.R2 < 0.99 {
		t.Errorf("separated groups R2 %v", r.R2)
	}
	if r.DfModel != 2 || r.DfResid != 9 {
		t.Errorf("df %v %v", r.DfModel, r.DfResid)
	}
}

func TestPermanovaIdenticalGroups(t *testing.T) {
	pts, labels := clusters(0)
	d := euclideanMatrix(t, pts)
	r, e := Permanova(d, labels, PermOptions{N: 199, Seed: 1})
	if e != nil {
		t.Fatal(e)
	}
	if r.P < 0.5 {
		t.Errorf("identical groups p %v < 0.5", r.P)
	}
	if r.R2 > 1e-9 {
		t.Errorf("identical groups R2 %v", r.R2)
	}
}

func TestPermanovaReproducible(t *testing.T) {
	pts, labels := clusters(0.2)
	d := euclideanMatrix(t, pts)
	a, _ := Permanova(d, labels, PermOptions{N: 99, Seed: 7})
	b, _ := Permanova(d, labels, PermOptions{N: 99, Seed: 7})
	if a.P != b.P {
		t.Errorf("same seed gave p %v and %v", a.P, b.P)
	}
}

func TestPairwisePermanova(t *testing.T) {
	pts, labels := clusters(10)
	d := euclideanMatrix(t, pts)
	cs, e := PairwisePermanova(d, labels, []string{"Salt", "Control", "Fresh", "Absent"}, "holm", PermOptions{N: 99, Seed: 2})
	if e != nil {
		t.Fatal(e)
	}
	if len(cs) != 3 {
		t.Fatalf("contrasts %v != 3", len(cs))
	}
	if cs[0].A != "Salt" || cs[0].B != "Control" {
		t.Errorf("first contrast %v vs %v", cs[0].A, cs[0].B)
	}
	for _, c := range cs {
		if c.Result.N != 8 {
			t.Errorf("%v vs %v used %d samples", c.A, c.B, c.Result.N)
		}
		if c.PAdj < c.Result.P {
			t.Errorf("adjusted p %v below raw %v", c.PAdj, c.Result.P)
		}
	}

	var b strings.Builder
	if e := FprintPairwise(&b, cs, "holm"); e != nil {
		t.Fatal(e)
	}
	if !strings.HasPrefix(b.String(), "contrast\tF\tR2\tp\tp_holm\n") {
		t.Errorf("header %q", b.String())
	}
}

func TestDispersion(t *testing.T) {
	// same centers, one group far more spread out
	pts := [][]float64{
		{0, 0}, {0.2, 0}, {0, 0.1}, {0.1, 0.1},
		{-5, -5}, {5, -5}, {-5, 5}, {6, 6},
	}
	labels := []string{"a", "a", "a", "a", "b", "b", "b", "b"}
	r, e := Dispersion(euclideanMatrix(t, pts), labels, []string{"a", "b"})
	if e != nil {
		t.Fatal(e)
	}
	if r.Anova.P > 0.001 {
		t.Errorf("dispersion p %v", r.Anova.P)
	}
	// centroid of b is (0.25, 0.25)
	if !near(r.Distances[4], 5.25*math.Sqrt2, 1e-6) {
		t.Errorf("distance to centroid %v != %v", r.Distances[4], 5.25*math.Sqrt2)
	}
}

func TestDispersionTwoReplicates(t *testing.T) {
	// with two samples per group both lie at the same distance from the centroid
	pts := [][]float64{
		{0.1, 0.3}, {0.7, 0.2},
		{3.3, 1.1}, {2.9, 2.3},
		{-1.7, 4.1}, {-2.2, 3.3},
	}
	labels := []string{"A", "A", "B", "B", "C", "C"}
	r, e := Dispersion(euclideanMatrix(t, pts), labels, []string{"A", "B", "C"})
	if !errors.Is(e, groupstats.ErrZeroVariance) {
		t.Errorf("anova %+v, error %v; want ErrZeroVariance", r.Anova, e)
	}
}
