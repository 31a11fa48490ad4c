package marsh

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jgbaldwinbrown/csvh"

	"github.com/jgbaldwinbrown/marshmicro/ordinate/pkg"
	"github.com/jgbaldwinbrown/marshmicro/otutab/pkg"
	"github.com/jgbaldwinbrown/marshmicro/plots/pkg"
	"github.com/jgbaldwinbrown/marshmicro/samples/pkg"
)

// Config is everything a run needs. It is read from JSON; fields left out of
// the file keep their DefaultConfig values.
type Config struct {
	DesignPath    string
	AbundancePath string
	TaxonomyPath  string
	EnvPath       string
	Outdir        string

	Molecules  []samples.Molecule
	Treatments []string
	Palette    map[string]string
	Figure     plots.Figure

	MinCoverage  int64
	Seed         int64
	Permutations int
	ShowProgress bool
	CurveSteps   int

	Transform      string
	Distance       string
	PairwiseAdjust string

	Covariates      []string
	ExcludeLineages []string
	TaxonGroups     []otutab.Group
}

func DefaultConfig() Config {
	return Config{
		DesignPath:    "design.csv",
		AbundancePath: "otu_table.tsv",
		TaxonomyPath:  "taxonomy.tsv",
		EnvPath:       "env.csv",
		Outdir:        "figures",

		Molecules:  []samples.Molecule{samples.DNA, samples.CDNA},
		Treatments: []string{"Control", "Fresh", "Salt"},
		Palette: map[string]string{
			"Control": "#808080",
			"Fresh":   "#1F78B4",
			"Salt":    "#E31A1C",
		},
		Figure: plots.Figure{Width: 6, Height: 4, DPI: 300},

		MinCoverage:  5000,
		Seed:         1,
		Permutations: 999,
		CurveSteps:   20,

		Transform:      string(ordinate.Hellinger),
		Distance:       string(ordinate.Bray),
		PairwiseAdjust: "none",

		Covariates:      []string{"Salinity", "Sulfate", "Chloride", "pH"},
		ExcludeLineages: []string{"Chloroplast", "Mitochondria"},
		TaxonGroups: []otutab.Group{
			{Name: "Sulfate reducers", Pattern: "sulf", Ranks: []otutab.Rank{otutab.Order, otutab.Family, otutab.Genus}},
			{Name: "Methanogens", Pattern: "methano", Ranks: []otutab.Rank{otutab.Class, otutab.Order, otutab.Family, otutab.Genus}},
		},
	}
}

// Check rejects settings no stage can run with.
func (c Config) Check() error {
	h := handle("Check: %w")
	if len(c.Treatments) < 2 {
		return h(fmt.Errorf("need at least two treatments, have %v", c.Treatments))
	}
	if len(c.Molecules) == 0 {
		return h(fmt.Errorf("no molecules to analyze"))
	}
	if c.Permutations < 0 {
		return h(fmt.Errorf("negative permutation count %d", c.Permutations))
	}
	if _, e := ordinate.ParseTransform(c.Transform); e != nil {
		return h(e)
	}
	if _, e := ordinate.ParseMetric(c.Distance); e != nil {
		return h(e)
	}
	if _, e := plots.ParsePalette(c.Palette); e != nil {
		return h(e)
	}
	return nil
}

func ReadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := json.NewDecoder(r)
	if e := dec.Decode(&cfg); e != nil {
		return cfg, fmt.Errorf("ReadConfig: %w", e)
	}
	return cfg, cfg.Check()
}

func LoadConfig(path string) (Config, error) {
	r, e := csvh.OpenMaybeGz(path)
	if e != nil {
		return Config{}, fmt.Errorf("LoadConfig: %w", e)
	}
	defer r.Close()
	return ReadConfig(r)
}

func WriteConfig(w io.Writer, cfg Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(cfg)
}

// MakeCfg prints the default configuration as a starting template.
func MakeCfg() {
	Must(WriteConfig(os.Stdout, DefaultConfig()))
}

func Must(e error) {
	if e != nil {
		panic(e)
	}
}

func handle(format string) func(...any) error {
	return func(args ...any) error {
		return fmt.Errorf(format, args...)
	}
}
