package groupstats

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestOneWay(t *testing.T) {
	g := Groups{
		Names:  []string{"a", "b", "c"},
		Values: [][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}},
	}
	a, e := OneWay(g)
	if e != nil {
		t.Fatal(e)
	}
	// group means 2, 5, 8; grand mean 5
	if !near(a.SSBetween, 54, 1e-9) || !near(a.SSWithin, 6, 1e-9) {
		t.Errorf("SS between %v within %v; want 54 and 6", a.SSBetween, a.SSWithin)
	}
	if a.DfBetween != 2 || a.DfWithin != 6 {
		t.Errorf("df %v %v != 2 6", a.DfBetween, a.DfWithin)
	}
	if !near(a.F, 27, 1e-9) {
		t.Errorf("F %v != 27", a.F)
	}
	// 1 - pf(27, 2, 6) = 0.001
	if !near(a.P, 0.001, 1e-4) {
		t.Errorf("p %v != 0.001", a.P)
	}
}

func TestOneWayFailures(t *testing.T) {
	_, e := OneWay(Groups{Names: []string{"a"}, Values: [][]float64{{1, 2}}})
	if !errors.Is(e, ErrTooFewGroups) {
		t.Errorf("error %v is not ErrTooFewGroups", e)
	}
	_, e = OneWay(Groups{Names: []string{"a", "b"}, Values: [][]float64{{1, 1}, {2, 2}}})
	if !errors.Is(e, ErrZeroVariance) {
		t.Errorf("error %v is not ErrZeroVariance", e)
	}
}

func TestOneWayRoundingNoise(t *testing.T) {
	// 0.1+0.2 differs from 0.3 in the last bit only
	g := Groups{Names: []string{"a", "b", "c"}, Values: [][]float64{{0.1 + 0.2, 0.3}, {0.5, 0.5}, {0.7, 0.7}}}
	a, e := OneWay(g)
	if !errors.Is(e, ErrZeroVariance) {
		t.Errorf("anova %+v, error %v; want ErrZeroVariance", a, e)
	}
}

func TestSplit(t *testing.T) {
	g := Split([]string{"x", "y", "x", "z"}, []float64{1, 2, 3, 4}, []string{"y", "x", "w"})
	if len(g.Names) != 2 || g.Names[0] != "y" || g.Names[1] != "x" {
		t.Fatalf("names %v != [y x]", g.Names)
	}
	if len(g.Values[1]) != 2 || g.Values[1][1] != 3 {
		t.Errorf("values %v", g.Values)
	}
}

func TestPTukeyKnownValues(t *testing.T) {
	// qtukey(0.95, 3, 10) = 3.877, qtukey(0.95, 4, 20) = 3.958, qtukey(0.95, 2, Inf) = 2.772
	cases := []struct {
		q  float64
		k  int
		df float64
	}{
		{3.877, 3, 10},
		{3.958, 4, 20},
		{2.772, 2, math.Inf(1)},
	}
	for _, c := range cases {
		p := PTukey(c.q, c.k, c.df)
		if !near(p, 0.95, 2e-3) {
			t.Errorf("PTukey(%v, %v, %v) %v != 0.95", c.q, c.k, c.df, p)
		}
	}
	if q := QTukey(0.95, 3, 10); !near(q, 3.877, 1e-2) {
		t.Errorf("QTukey(0.95, 3, 10) %v != 3.877", q)
	}
}

func TestPTukeyMonotone(t *testing.T) {
	prev := 0.0
	for q := 0.5; q < 8; q += 0.5 {
		p := PTukey(q, 3, 6)
		if p < prev-1e-9 {
			t.Errorf("PTukey decreased at q=%v: %v < %v", q, p, prev)
		}
		prev = p
	}
}

func TestTukey(t *testing.T) {
	g := Groups{
		Names:  []string{"a", "b", "c"},
		Values: [][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}},
	}
	cs, e := Tukey(g)
	if e != nil {
		t.Fatal(e)
	}
	if len(cs) != 3 {
		t.Fatalf("len(cs) %v != 3", len(cs))
	}
	if cs[0].Name() != "b-a" || !near(cs[0].Diff, 3, 1e-12) {
		t.Errorf("first contrast %v diff %v", cs[0].Name(), cs[0].Diff)
	}
	// q = 5.196 for b-a lies between qtukey(0.95, 3, 6) = 4.339 and
	// qtukey(0.99, 3, 6) = 6.331
	if cs[0].PAdj <= 0.01 || cs[0].PAdj >= 0.05 {
		t.Errorf("b-a p %v outside (0.01, 0.05)", cs[0].PAdj)
	}
	if cs[1].PAdj >= 0.01 {
		t.Errorf("c-a p %v >= 0.01", cs[1].PAdj)
	}
	if cs[0].Lower > cs[0].Diff || cs[0].Upper < cs[0].Diff {
		t.Errorf("interval [%v, %v] misses diff %v", cs[0].Lower, cs[0].Upper, cs[0].Diff)
	}

	var b strings.Builder
	if e := FprintTukey(&b, cs); e != nil {
		t.Fatal(e)
	}
	if !strings.HasPrefix(b.String(), "contrast\tdiff") {
		t.Errorf("output %q", b.String())
	}
}

func TestAdjust(t *testing.T) {
	ps := []float64{0.01, 0.04, 0.03}
	holm, e := Adjust(ps, "holm")
	if e != nil {
		t.Fatal(e)
	}
	want := []float64{0.03, 0.06, 0.06}
	for i := range want {
		if !near(holm[i], want[i], 1e-12) {
			t.Errorf("holm %v != %v", holm, want)
			break
		}
	}
	bonf, _ := Adjust(ps, "bonferroni")
	if !near(bonf[1], 0.12, 1e-12) {
		t.Errorf("bonferroni %v", bonf)
	}
	none, _ := Adjust(ps, "none")
	if none[2] != 0.03 {
		t.Errorf("none %v", none)
	}
	if _, e := Adjust(ps, "fdr?"); e == nil {
		t.Errorf("expected unknown method error")
	}
}

func TestDescribe(t *testing.T) {
	ss, e := Describe(Groups{Names: []string{"a", "b"}, Values: [][]float64{{1, 2, 3, 4}, {5}}})
	if e != nil {
		t.Fatal(e)
	}
	if ss[0].N != 4 || !near(ss[0].Mean, 2.5, 1e-12) || !near(ss[0].Median, 2.5, 1e-12) {
		t.Errorf("summary %+v", ss[0])
	}
	if ss[1].Median != 5 || ss[1].SD != 0 {
		t.Errorf("summary %+v", ss[1])
	}
}
