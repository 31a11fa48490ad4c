package marsh

import (
	"fmt"
	"log"

	"github.com/jgbaldwinbrown/marshmicro/otutab/pkg"
	"github.com/jgbaldwinbrown/marshmicro/rarefy/pkg"
	"github.com/jgbaldwinbrown/marshmicro/samples/pkg"
)

// Inputs holds the four tables as read from disk.
type Inputs struct {
	Design    []samples.Sample
	Abundance *otutab.Table
	Taxonomy  otutab.Taxonomy
	Env       []samples.EnvRecord
}

// Load reads every input named in cfg. The taxonomy file takes precedence
// over lineages embedded in the abundance table; the environmental table is
// optional.
func Load(cfg Config) (*Inputs, error) {
	h := handle("Load: %w")
	var in Inputs
	var e error
	if in.Design, e = samples.ParseDesignPath(cfg.DesignPath); e != nil {
		return nil, h(e)
	}
	var embedded otutab.Taxonomy
	if in.Abundance, embedded, e = otutab.ParseAbundancePath(cfg.AbundancePath); e != nil {
		return nil, h(e)
	}
	in.Taxonomy = embedded
	if cfg.TaxonomyPath != "" {
		tax, e := otutab.ParseTaxonomyPath(cfg.TaxonomyPath)
		if e != nil {
			return nil, h(e)
		}
		in.Taxonomy = tax.Merge(embedded)
	}
	if cfg.EnvPath != "" && len(cfg.Covariates) > 0 {
		if in.Env, e = samples.ParseEnvPath(cfg.EnvPath, cfg.Covariates); e != nil {
			return nil, h(e)
		}
	}
	return &in, nil
}

// Dataset is one molecule's samples after joining, filtering and
// rarefaction. Samples[i] describes row i of Table; Raw holds the joined
// counts before rarefaction.
type Dataset struct {
	Molecule samples.Molecule
	Samples  []samples.Sample
	Raw      *otutab.Table
	Table    *otutab.Table
	Depth    int64
	Taxonomy otutab.Taxonomy
}

func (d *Dataset) Labels() []string {
	return samples.Treatments(d.Samples)
}

// columnKeys parses the abundance table's sample columns and returns the
// positions of those extracted from mol. Two columns normalizing to the same
// key are an error.
func columnKeys(t *otutab.Table, mol samples.Molecule) ([]samples.Key, []int, error) {
	var keys []samples.Key
	var pos []int
	seen := make(map[samples.Key]string, len(t.Samples))
	for i, col := range t.Samples {
		k, e := samples.ParseColumnKey(col)
		if e != nil {
			return nil, nil, e
		}
		if prev, ok := seen[k]; ok {
			return nil, nil, fmt.Errorf("columns %q and %q are both sample %v", prev, col, k)
		}
		seen[k] = col
		if k.Molecule == mol {
			keys = append(keys, k)
			pos = append(pos, i)
		}
	}
	return keys, pos, nil
}

// Prepare joins the design to the abundance table for one molecule, keeps
// the configured treatments, removes excluded lineages and rarefies.
func Prepare(cfg Config, in *Inputs, mol samples.Molecule) (*Dataset, error) {
	h := handle("Prepare: %w")
	design := samples.FilterTreatments(samples.FilterMolecule(in.Design, mol), cfg.Treatments)
	if len(design) == 0 {
		return nil, h(fmt.Errorf("%v: no design rows in treatments %v: %w", mol, cfg.Treatments, samples.ErrEmptyJoin))
	}
	keys, pos, e := columnKeys(in.Abundance, mol)
	if e != nil {
		return nil, h(e)
	}
	kept, rows, _, e := samples.JoinKeys(design, keys)
	if e != nil {
		return nil, h(fmt.Errorf("%v: %w", mol, e))
	}
	for i, r := range rows {
		rows[i] = pos[r]
	}

	joined := in.Abundance.SelectSamples(rows)
	joined = otutab.ExcludeLineages(joined, in.Taxonomy, cfg.ExcludeLineages).DropEmptyTaxa()

	bySample := make(map[string]samples.Sample, len(kept))
	for i, col := range joined.Samples {
		bySample[col] = kept[i]
	}

	rare, depth, e := rarefy.Rarefy(joined, cfg.MinCoverage, cfg.Seed)
	if e != nil {
		return nil, h(fmt.Errorf("%v: %w", mol, e))
	}
	d := &Dataset{
		Molecule: mol,
		Raw:      joined,
		Table:    rare,
		Depth:    depth,
		Taxonomy: in.Taxonomy,
	}
	for _, col := range rare.Samples {
		d.Samples = append(d.Samples, bySample[col])
	}
	log.Printf("Prepare: %v: %d samples rarefied to %d reads over %d taxa", mol, len(d.Samples), depth, rare.NumTaxa())
	return d, nil
}
