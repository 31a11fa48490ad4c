package samples

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jgbaldwinbrown/csvh"
	"github.com/jgbaldwinbrown/iter"
)

type Sample struct {
	ID        string
	Date      string
	Treatment string
	Replicate int
	Molecule  Molecule
}

func (s Sample) Key() Key {
	return Key{ID: s.ID, Molecule: s.Molecule}
}

func csvIn(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

// header maps lowercased column names to their indices.
func header(line []string) map[string]int {
	m := make(map[string]int, len(line))
	for i, col := range line {
		m[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}
	return m
}

func column(h map[string]int, names ...string) (int, bool) {
	for _, name := range names {
		if i, ok := h[name]; ok {
			return i, true
		}
	}
	return -1, false
}

type designCols struct {
	id, date, trt, rep, mol int
}

func designColumns(h map[string]int) (designCols, error) {
	var c designCols
	var ok bool
	if c.id, ok = column(h, "sampleid", "sample_id", "sample", "id"); !ok {
		return c, fmt.Errorf("missing sample id column")
	}
	if c.date, ok = column(h, "date", "collection_date", "collectiondate"); !ok {
		return c, fmt.Errorf("missing date column")
	}
	if c.trt, ok = column(h, "treatment", "trt"); !ok {
		return c, fmt.Errorf("missing treatment column")
	}
	if c.rep, ok = column(h, "replicate", "rep"); !ok {
		return c, fmt.Errorf("missing replicate column")
	}
	c.mol, _ = column(h, "molecule", "type", "nucleic_acid")
	return c, nil
}

// DesignRows streams samples from a CSV design table. A row without a
// molecule column yields one sample per molecule type.
func DesignRows(r io.Reader) *iter.Iterator[Sample] {
	return &iter.Iterator[Sample]{Iteratef: func(yield func(Sample) error) error {
		h := handle("DesignRows: %w")
		cr := csvIn(r)
		first, e := cr.Read()
		if e != nil {
			return h(e)
		}
		cols, e := designColumns(header(first))
		if e != nil {
			return h(e)
		}

		for l, e := cr.Read(); e != io.EOF; l, e = cr.Read() {
			if e != nil {
				return h(e)
			}
			if len(l) <= cols.rep || len(l) <= cols.trt || len(l) <= cols.date || len(l) <= cols.id {
				return h(fmt.Errorf("line %v too short", l))
			}
			var s Sample
			var rawID, rawDate string
			if _, e = csvh.Scan([]string{l[cols.id], l[cols.date], l[cols.trt], l[cols.rep]}, &rawID, &rawDate, &s.Treatment, &s.Replicate); e != nil {
				return h(fmt.Errorf("line %v: %w", l, e))
			}
			s.ID = NormalizeID(rawID)
			s.Treatment = strings.TrimSpace(s.Treatment)
			if s.Date, e = NormalizeDate(rawDate); e != nil {
				return h(e)
			}

			if cols.mol < 0 || cols.mol >= len(l) || strings.TrimSpace(l[cols.mol]) == "" {
				for _, mol := range []Molecule{DNA, CDNA} {
					s.Molecule = mol
					if e = yield(s); e != nil {
						return e
					}
				}
				continue
			}
			if s.Molecule, e = ParseMolecule(l[cols.mol]); e != nil {
				return h(e)
			}
			if e = yield(s); e != nil {
				return e
			}
		}
		return nil
	}}
}

// ParseDesign reads the whole design table and rejects duplicate keys.
func ParseDesign(r io.Reader) ([]Sample, error) {
	h := handle("ParseDesign: %w")
	ss, e := iter.Collect[Sample](DesignRows(r))
	if e != nil {
		return nil, h(e)
	}
	seen := make(map[Key]struct{}, len(ss))
	for _, s := range ss {
		if _, ok := seen[s.Key()]; ok {
			return nil, h(fmt.Errorf("duplicate sample %v", s.Key()))
		}
		seen[s.Key()] = struct{}{}
	}
	return ss, nil
}

func ParseDesignPath(path string) ([]Sample, error) {
	r, e := csvh.OpenMaybeGz(path)
	if e != nil {
		return nil, e
	}
	defer r.Close()
	return ParseDesign(r)
}

func FilterMolecule(ss []Sample, mol Molecule) []Sample {
	var out []Sample
	for _, s := range ss {
		if s.Molecule == mol {
			out = append(out, s)
		}
	}
	return out
}

// FilterTreatments keeps samples whose treatment is in order and sorts them
// by treatment position, then date and replicate. Treatment names in the
// output are rewritten to the spelling used in order.
func FilterTreatments(ss []Sample, order []string) []Sample {
	pos := make(map[string]int, len(order))
	for i, t := range order {
		pos[NormalizeTreatment(t)] = i
	}
	var out []Sample
	for _, s := range ss {
		if i, ok := pos[NormalizeTreatment(s.Treatment)]; ok {
			s.Treatment = order[i]
			out = append(out, s)
		}
	}
	sortSamples(out, pos)
	return out
}
