package otutab

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jgbaldwinbrown/csvh"
	"github.com/jgbaldwinbrown/fasttsv"
)

func handle(format string) func(...any) error {
	return func(args ...any) error {
		return fmt.Errorf(format, args...)
	}
}

// Table is a samples by taxa matrix of read counts.
type Table struct {
	Samples []string
	Taxa    []string
	Counts  [][]int64
}

func (t *Table) NumSamples() int { return len(t.Samples) }
func (t *Table) NumTaxa() int    { return len(t.Taxa) }

func rowTotal(row []int64) int64 {
	var sum int64
	for _, c := range row {
		sum += c
	}
	return sum
}

func (t *Table) RowTotals() []int64 {
	out := make([]int64, len(t.Counts))
	for i, row := range t.Counts {
		out[i] = rowTotal(row)
	}
	return out
}

func (t *Table) ColTotals() []int64 {
	out := make([]int64, len(t.Taxa))
	for _, row := range t.Counts {
		for j, c := range row {
			out[j] += c
		}
	}
	return out
}

// SelectSamples returns a table holding rows idx in that order.
func (t *Table) SelectSamples(idx []int) *Table {
	out := &Table{Taxa: append([]string{}, t.Taxa...)}
	for _, i := range idx {
		out.Samples = append(out.Samples, t.Samples[i])
		out.Counts = append(out.Counts, append([]int64{}, t.Counts[i]...))
	}
	return out
}

// KeepTaxa returns a table with only the taxa for which keep returns true.
func (t *Table) KeepTaxa(keep func(j int) bool) *Table {
	var cols []int
	for j := range t.Taxa {
		if keep(j) {
			cols = append(cols, j)
		}
	}
	out := &Table{Samples: append([]string{}, t.Samples...)}
	for _, j := range cols {
		out.Taxa = append(out.Taxa, t.Taxa[j])
	}
	out.Counts = make([][]int64, len(t.Counts))
	for i, row := range t.Counts {
		out.Counts[i] = make([]int64, len(cols))
		for k, j := range cols {
			out.Counts[i][k] = row[j]
		}
	}
	return out
}

func (t *Table) DropEmptyTaxa() *Table {
	totals := t.ColTotals()
	return t.KeepTaxa(func(j int) bool { return totals[j] > 0 })
}

// DropTaxa returns a table without the taxa named in drop.
func (t *Table) DropTaxa(drop map[string]bool) *Table {
	return t.KeepTaxa(func(j int) bool { return !drop[t.Taxa[j]] })
}

func (t *Table) Float() [][]float64 {
	out := make([][]float64, len(t.Counts))
	for i, row := range t.Counts {
		out[i] = make([]float64, len(row))
		for j, c := range row {
			out[i][j] = float64(c)
		}
	}
	return out
}

func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, e := strconv.ParseInt(s, 10, 64); e == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative count %v", s)
		}
		return n, nil
	}
	f, e := strconv.ParseFloat(s, 64)
	if e != nil {
		return 0, e
	}
	if f < 0 || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("count %v is not a non-negative integer", s)
	}
	return int64(f), nil
}

func cloneFields(l []string) []string {
	out := make([]string, len(l))
	for i, f := range l {
		out[i] = strings.Clone(f)
	}
	return out
}

func isTaxonomyHeader(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "taxonomy", "taxon", "consensus lineage", "consensuslineage", "lineage":
		return true
	}
	return false
}

// ParseAbundance reads a taxa by samples table whose last column holds each
// taxon's lineage and returns it transposed to samples by taxa, together with
// the lineages it carried.
func ParseAbundance(r io.Reader) (*Table, Taxonomy, error) {
	h := handle("ParseAbundance: %w")
	s := fasttsv.NewScanner(r)

	var t Table
	tax := Taxonomy{}
	var cols [][]int64
	hasTax := false
	line := 0
	for s.Scan() {
		line++
		// the scanner reuses its line buffer
		l := cloneFields(s.Line())
		if len(l) == 0 || (len(l) == 1 && strings.TrimSpace(l[0]) == "") {
			continue
		}
		first := strings.TrimSpace(l[0])
		if t.Samples == nil {
			if strings.HasPrefix(first, "#") && !strings.HasPrefix(strings.ToLower(first), "#otu") {
				continue
			}
			if len(l) < 2 {
				return nil, nil, h(fmt.Errorf("no sample columns in header"))
			}
			names := l[1:]
			if isTaxonomyHeader(names[len(names)-1]) {
				hasTax = true
				names = names[:len(names)-1]
			}
			if len(names) == 0 {
				return nil, nil, h(fmt.Errorf("no sample columns in header"))
			}
			t.Samples = make([]string, len(names))
			seen := make(map[string]bool, len(names))
			for i, n := range names {
				t.Samples[i] = strings.TrimSpace(n)
				if seen[t.Samples[i]] {
					return nil, nil, h(fmt.Errorf("sample column %q repeated in header", t.Samples[i]))
				}
				seen[t.Samples[i]] = true
			}
			continue
		}
		if strings.HasPrefix(first, "#") {
			continue
		}

		want := len(t.Samples) + 1
		if hasTax {
			want++
		}
		if len(l) < want-1 || len(l) > want {
			return nil, nil, h(fmt.Errorf("line %d has %d fields, want %d", line, len(l), want))
		}
		row := make([]int64, len(t.Samples))
		for i := range row {
			c, e := parseCount(l[i+1])
			if e != nil {
				return nil, nil, h(fmt.Errorf("line %d sample %v: %w", line, t.Samples[i], e))
			}
			row[i] = c
		}
		t.Taxa = append(t.Taxa, first)
		cols = append(cols, row)
		if hasTax && len(l) == want {
			tax[first] = ParseLineage(l[want-1])
		}
	}
	if t.Samples == nil {
		return nil, nil, h(fmt.Errorf("empty table"))
	}

	t.Counts = make([][]int64, len(t.Samples))
	for i := range t.Counts {
		t.Counts[i] = make([]int64, len(t.Taxa))
		for j := range t.Taxa {
			t.Counts[i][j] = cols[j][i]
		}
	}
	return &t, tax, nil
}

func ParseAbundancePath(path string) (*Table, Taxonomy, error) {
	r, e := csvh.OpenMaybeGz(path)
	if e != nil {
		return nil, nil, e
	}
	defer r.Close()
	return ParseAbundance(r)
}
