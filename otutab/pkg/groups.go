package otutab

import (
	"fmt"
	"log"
	"sort"
)

// Group defines a set of taxa by a case-insensitive substring searched in
// the given ranks of each lineage.
type Group struct {
	Name    string
	Pattern string
	Ranks   []Rank
}

func (g Group) Matches(l Lineage) bool {
	for _, r := range g.Ranks {
		if r < 0 || r >= NumRanks {
			continue
		}
		if l[r] != "" && containsFold(l[r], g.Pattern) {
			return true
		}
	}
	return false
}

// MatchGroup returns the sorted IDs of taxa whose lineage matches g.
func MatchGroup(tax Taxonomy, g Group) []string {
	var ids []string
	for id, l := range tax {
		if g.Matches(l) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// DisjointGroups matches every group and removes from later groups any taxon
// already claimed by an earlier one.
func DisjointGroups(tax Taxonomy, groups []Group) ([][]string, error) {
	claimed := map[string]string{}
	out := make([][]string, len(groups))
	for i, g := range groups {
		if g.Pattern == "" {
			return nil, fmt.Errorf("DisjointGroups: group %q has an empty pattern", g.Name)
		}
		for _, id := range MatchGroup(tax, g) {
			if first, ok := claimed[id]; ok {
				log.Printf("DisjointGroups: taxon %v matches %v and %v; kept in %v", id, first, g.Name, first)
				continue
			}
			claimed[id] = g.Name
			out[i] = append(out[i], id)
		}
	}
	return out, nil
}

// GroupRelAbund returns, per sample, the summed share of the sample's reads
// that fall in taxa. Samples with no reads get 0.
func GroupRelAbund(t *Table, taxa []string) []float64 {
	in := make(map[string]bool, len(taxa))
	for _, id := range taxa {
		in[id] = true
	}
	out := make([]float64, len(t.Counts))
	for i, row := range t.Counts {
		total := rowTotal(row)
		if total == 0 {
			continue
		}
		var sum float64
		for j, c := range row {
			if in[t.Taxa[j]] {
				sum += float64(c) / float64(total)
			}
		}
		out[i] = sum
	}
	return out
}
