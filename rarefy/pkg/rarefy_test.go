package rarefy

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/jgbaldwinbrown/marshmicro/otutab/pkg"
)

func synthetic() *otutab.Table {
	return &otutab.Table{
		Samples: []string{"a", "b", "c", "d"},
		Taxa:    []string{"t1", "t2", "t3", "t4", "t5"},
		Counts: [][]int64{
			{40, 30, 20, 10, 0},
			{20, 20, 20, 20, 40},
			{0, 45, 45, 0, 0},
			{30, 30, 30, 30, 30},
		},
	}
}

func TestRarefyToMinimum(t *testing.T) {
	tab := synthetic()
	totals := tab.RowTotals()
	want := []int64{100, 120, 90, 150}
	for i := range want {
		if totals[i] != want[i] {
			t.Fatalf("fixture totals %v != %v", totals, want)
		}
	}

	out, depth, e := Rarefy(tab, 1, 7)
	if e != nil {
		t.Fatal(e)
	}
	if depth != 90 {
		t.Errorf("depth %v != 90", depth)
	}
	if len(out.Counts) != 4 {
		t.Fatalf("len(out.Counts) %v != 4", len(out.Counts))
	}
	for i, total := range out.RowTotals() {
		if total != 90 {
			t.Errorf("sample %v total %v != 90", out.Samples[i], total)
		}
	}
	for j, total := range out.ColTotals() {
		if total == 0 {
			t.Errorf("taxon %v left with no reads", out.Taxa[j])
		}
	}
}

func TestRarefyNeverExceedsOriginal(t *testing.T) {
	tab := synthetic()
	orig := tab.Float()
	out, _, e := Rarefy(tab, 1, 3)
	if e != nil {
		t.Fatal(e)
	}
	col := map[string]int{}
	for j, name := range tab.Taxa {
		col[name] = j
	}
	for i := range out.Counts {
		for j, c := range out.Counts[i] {
			if float64(c) > orig[i][col[out.Taxa[j]]] {
				t.Errorf("sample %d taxon %v: %v > original %v", i, out.Taxa[j], c, orig[i][col[out.Taxa[j]]])
			}
		}
	}
}

func TestRarefyReproducible(t *testing.T) {
	a, _, e := Rarefy(synthetic(), 1, 11)
	if e != nil {
		t.Fatal(e)
	}
	b, _, e := Rarefy(synthetic(), 1, 11)
	if e != nil {
		t.Fatal(e)
	}
	for i := range a.Counts {
		for j := range a.Counts[i] {
			if a.Counts[i][j] != b.Counts[i][j] {
				t.Fatalf("same seed gave different draws at [%d][%d]", i, j)
			}
		}
	}
}

func TestFilterThreshold(t *testing.T) {
	out, depth, e := Rarefy(synthetic(), 100, 1)
	if e != nil {
		t.Fatal(e)
	}
	if len(out.Samples) != 3 || depth != 100 {
		t.Errorf("samples %v depth %v; want 3 samples at 100", out.Samples, depth)
	}
	for _, s := range out.Samples {
		if s == "c" {
			t.Errorf("sample c (90 reads) survived threshold 100")
		}
	}

	_, _, e = Rarefy(synthetic(), 1000, 1)
	if !errors.Is(e, ErrNoSamples) {
		t.Errorf("error %v is not ErrNoSamples", e)
	}
}

func TestRichnessMonotoneInDepth(t *testing.T) {
	counts := []int64{50, 1, 1, 1, 3, 20, 2, 1, 7, 1}
	depths := Steps(87, 20)
	for seed := int64(0); seed < 20; seed++ {
		rich := Curve(counts, depths, seed)
		for i := 1; i < len(rich); i++ {
			if rich[i] < rich[i-1] {
				t.Errorf("seed %v: richness %v decreased at depth %v", seed, rich, depths[i])
			}
		}
		if rich[len(rich)-1] != 10 {
			t.Errorf("seed %v: full depth richness %v != 10", seed, rich[len(rich)-1])
		}

		prev := -1
		for _, depth := range depths {
			row, e := Row(counts, depth, rand.New(rand.NewSource(seed)))
			if e != nil {
				t.Fatal(e)
			}
			r := richness(row)
			if r < prev {
				t.Errorf("seed %v: Row richness %v < %v at depth %v", seed, r, prev, depth)
			}
			prev = r
		}
	}
}

func TestRowDepthTooLarge(t *testing.T) {
	if _, e := Row([]int64{1, 2}, 4, rand.New(rand.NewSource(1))); e == nil {
		t.Errorf("expected error for depth above total")
	}
}
