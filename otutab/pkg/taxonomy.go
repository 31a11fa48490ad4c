package otutab

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/jgbaldwinbrown/csvh"
	"github.com/jgbaldwinbrown/iter"
	"github.com/jgbaldwinbrown/lscan/pkg"
)

type Rank int

const (
	Domain Rank = iota
	Phylum
	Class
	Order
	Family
	Genus
	Species
	NumRanks
)

var rankNames = [NumRanks]string{"domain", "phylum", "class", "order", "family", "genus", "species"}

func (r Rank) String() string {
	if r < 0 || r >= NumRanks {
		return fmt.Sprintf("Rank(%d)", int(r))
	}
	return rankNames[r]
}

func ParseRank(s string) (Rank, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "kingdom" {
		return Domain, nil
	}
	for i, n := range rankNames {
		if n == s {
			return Rank(i), nil
		}
	}
	return 0, fmt.Errorf("ParseRank: unknown rank %q", s)
}

func (r Rank) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rank) UnmarshalText(b []byte) error {
	rank, e := ParseRank(string(b))
	if e != nil {
		return e
	}
	*r = rank
	return nil
}

// Lineage holds one name per rank, domain first. Missing ranks are "".
type Lineage [NumRanks]string

func (l Lineage) String() string {
	return strings.Join(l[:], ";")
}

// Taxonomy maps taxon IDs to lineages.
type Taxonomy map[string]Lineage

var (
	rankPrefix = regexp.MustCompile(`^([a-zA-Z]|D_[0-9]+)__`)
	lineageSep = lscan.ByByte(';')
)

// ParseLineage splits a delimited lineage such as
// "k__Bacteria; p__Desulfobacterota; ..." into ranks.
func ParseLineage(s string) Lineage {
	var l Lineage
	fields := lscan.SplitByFunc(nil, strings.Trim(strings.TrimSpace(s), `"`), lineageSep)
	for i, f := range fields {
		if i >= int(NumRanks) {
			break
		}
		f = rankPrefix.ReplaceAllString(strings.TrimSpace(f), "")
		l[i] = strings.Clone(strings.TrimSpace(f))
	}
	return l
}

type taxEntry struct {
	ID      string
	Lineage Lineage
}

func taxonomyRows(r io.Reader) *iter.Iterator[taxEntry] {
	return &iter.Iterator[taxEntry]{Iteratef: func(yield func(taxEntry) error) error {
		cr := csvh.CsvIn(r)
		line := 0
		for l, e := cr.Read(); e != io.EOF; l, e = cr.Read() {
			line++
			if e != nil {
				return e
			}
			if len(l) < 2 {
				return fmt.Errorf("line %d too short: %v", line, l)
			}
			var id, lin string
			if _, e = csvh.Scan(l[:2], &id, &lin); e != nil {
				return fmt.Errorf("line %d: %w", line, e)
			}
			id = strings.TrimSpace(id)
			if line == 1 && isTaxonomyHeader(lin) {
				continue
			}
			if strings.HasPrefix(id, "#") {
				continue
			}
			if e = yield(taxEntry{strings.Clone(id), ParseLineage(lin)}); e != nil {
				return e
			}
		}
		return nil
	}}
}

// ParseTaxonomy reads a tab-delimited id, lineage[, confidence] table.
func ParseTaxonomy(r io.Reader) (Taxonomy, error) {
	h := handle("ParseTaxonomy: %w")
	tax := Taxonomy{}
	e := taxonomyRows(r).Iterate(func(t taxEntry) error {
		if _, ok := tax[t.ID]; ok {
			return fmt.Errorf("duplicate taxon %v", t.ID)
		}
		tax[t.ID] = t.Lineage
		return nil
	})
	if e != nil {
		return nil, h(e)
	}
	return tax, nil
}

func ParseTaxonomyPath(path string) (Taxonomy, error) {
	r, e := csvh.OpenMaybeGz(path)
	if e != nil {
		return nil, e
	}
	defer r.Close()
	return ParseTaxonomy(r)
}

// Merge fills taxa missing from t with their lineage in fallback.
func (t Taxonomy) Merge(fallback Taxonomy) Taxonomy {
	out := make(Taxonomy, len(t)+len(fallback))
	for id, l := range fallback {
		out[id] = l
	}
	for id, l := range t {
		out[id] = l
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// ExcludeLineages drops taxa whose lineage contains any of labels at any rank.
func ExcludeLineages(t *Table, tax Taxonomy, labels []string) *Table {
	if len(labels) == 0 {
		return t
	}
	drop := map[string]bool{}
	for _, id := range t.Taxa {
		for _, name := range tax[id] {
			for _, label := range labels {
				if name != "" && containsFold(name, label) {
					drop[id] = true
				}
			}
		}
	}
	return t.DropTaxa(drop)
}
