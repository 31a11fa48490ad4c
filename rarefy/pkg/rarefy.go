package rarefy

import (
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/jgbaldwinbrown/marshmicro/otutab/pkg"
)

var ErrNoSamples = errors.New("no samples reach the minimum coverage")

// Filter keeps the samples whose total count is at least minCoverage.
func Filter(t *otutab.Table, minCoverage int64) (*otutab.Table, error) {
	totals := t.RowTotals()
	var keep []int
	for i, total := range totals {
		if total >= minCoverage {
			keep = append(keep, i)
		} else {
			log.Printf("rarefy.Filter: dropping %v with %d reads (< %d)", t.Samples[i], total, minCoverage)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("rarefy.Filter: minimum %d: %w", minCoverage, ErrNoSamples)
	}
	return t.SelectSamples(keep), nil
}

// Depth is the lowest total among counts, the depth every sample is reduced to.
func Depth(totals []int64) int64 {
	if len(totals) == 0 {
		return 0
	}
	lowest := totals[0]
	for _, total := range totals {
		if lowest > total {
			lowest = total
		}
	}
	return lowest
}

// draws is a seeded ordering of every read in a sample. Taking the first n
// reads of it is a draw of n without replacement; deeper draws extend
// shallower ones.
type draws struct {
	reads []int32
	rd    *rand.Rand
	done  int
}

func newDraws(counts []int64, rd *rand.Rand) *draws {
	var total int64
	for _, c := range counts {
		total += c
	}
	reads := make([]int32, 0, total)
	for j, c := range counts {
		for k := int64(0); k < c; k++ {
			reads = append(reads, int32(j))
		}
	}
	return &draws{reads: reads, rd: rd}
}

// extend shuffles positions up to n into place (a partial Fisher-Yates).
func (d *draws) extend(n int) {
	for ; d.done < n; d.done++ {
		k := d.done + d.rd.Intn(len(d.reads)-d.done)
		d.reads[d.done], d.reads[k] = d.reads[k], d.reads[d.done]
	}
}

func (d *draws) take(n int, ntaxa int) []int64 {
	d.extend(n)
	out := make([]int64, ntaxa)
	for _, j := range d.reads[:n] {
		out[j]++
	}
	return out
}

// Row subsamples counts to depth without replacement.
func Row(counts []int64, depth int64, rd *rand.Rand) ([]int64, error) {
	d := newDraws(counts, rd)
	if depth < 0 || depth > int64(len(d.reads)) {
		return nil, fmt.Errorf("rarefy.Row: depth %d outside [0, %d]", depth, len(d.reads))
	}
	return d.take(int(depth), len(counts)), nil
}

// Rarefy drops samples under minCoverage, reduces the rest to the lowest
// remaining total and removes taxa left with no reads. Sample i draws from
// its own source seeded with seed+i.
func Rarefy(t *otutab.Table, minCoverage int64, seed int64) (*otutab.Table, int64, error) {
	kept, e := Filter(t, minCoverage)
	if e != nil {
		return nil, 0, e
	}
	depth := Depth(kept.RowTotals())

	for i, row := range kept.Counts {
		rd := rand.New(rand.NewSource(seed + int64(i)))
		sub, e := Row(row, depth, rd)
		if e != nil {
			return nil, 0, fmt.Errorf("rarefy.Rarefy: sample %v: %w", kept.Samples[i], e)
		}
		kept.Counts[i] = sub
	}
	return kept.DropEmptyTaxa(), depth, nil
}

func richness(row []int64) int {
	n := 0
	for _, c := range row {
		if c > 0 {
			n++
		}
	}
	return n
}

// Curve returns observed richness at each depth, using one seeded ordering
// of reads so that richness never decreases with depth. Depths beyond the
// sample total are clipped to it.
func Curve(counts []int64, depths []int64, seed int64) []int {
	d := newDraws(counts, rand.New(rand.NewSource(seed)))
	out := make([]int, len(depths))
	for i, depth := range depths {
		if depth > int64(len(d.reads)) {
			depth = int64(len(d.reads))
		}
		if depth < 0 {
			depth = 0
		}
		out[i] = richness(d.take(int(depth), len(counts)))
	}
	return out
}

// Steps returns n evenly spaced depths from top/n up to top.
func Steps(top int64, n int) []int64 {
	if n < 1 {
		n = 1
	}
	out := make([]int64, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, top*int64(i)/int64(n))
	}
	return out
}
