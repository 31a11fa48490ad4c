package marsh

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/cheggaaa/pb.v2"

	"github.com/jgbaldwinbrown/marshmicro/diversity/pkg"
	"github.com/jgbaldwinbrown/marshmicro/groupstats/pkg"
	"github.com/jgbaldwinbrown/marshmicro/ordinate/pkg"
	"github.com/jgbaldwinbrown/marshmicro/otutab/pkg"
	"github.com/jgbaldwinbrown/marshmicro/plots/pkg"
	"github.com/jgbaldwinbrown/marshmicro/rarefy/pkg"
	"github.com/jgbaldwinbrown/marshmicro/rda/pkg"
	"github.com/jgbaldwinbrown/marshmicro/samples/pkg"
)

// FigurePath is where a stage's figure for one molecule is written.
func FigurePath(cfg Config, mol samples.Molecule, stage string) string {
	return filepath.Join(cfg.Outdir, fmt.Sprintf("%v_%v.png", mol, stage))
}

func section(w io.Writer, d *Dataset, name string) error {
	_, e := fmt.Fprintf(w, "\n## %v %v\n", d.Molecule, name)
	return e
}

func progress(cfg Config, n int) *pb.ProgressBar {
	if !cfg.ShowProgress || n <= 0 {
		return nil
	}
	return pb.StartNew(n)
}

func finish(bar *pb.ProgressBar) {
	if bar != nil {
		bar.Finish()
	}
}

// Curves draws rarefaction curves of every joined sample before
// rarefaction, with depths up to the deepest sample.
func Curves(cfg Config, d *Dataset, w io.Writer) error {
	h := handle("Curves: %w")
	if e := section(w, d, "rarefaction"); e != nil {
		return h(e)
	}
	pal, e := plots.ParsePalette(cfg.Palette)
	if e != nil {
		return h(e)
	}

	totals := d.Raw.RowTotals()
	var top int64
	for _, total := range totals {
		top = max(top, total)
	}
	depths := rarefy.Steps(top, cfg.CurveSteps)

	bySample := make(map[string]samples.Sample, len(d.Samples))
	for i, s := range d.Samples {
		bySample[d.Table.Samples[i]] = s
	}

	if _, e := fmt.Fprintf(w, "rarefied depth\t%d\nsample\ttreatment\treads\tkept\n", d.Depth); e != nil {
		return h(e)
	}
	var cs []plots.Curve
	for i, row := range d.Raw.Counts {
		name := d.Raw.Samples[i]
		s, kept := bySample[name]
		group := s.Treatment
		if !kept {
			group = "below coverage"
		}
		cs = append(cs, plots.Curve{
			Sample:   name,
			Group:    group,
			Depths:   depths,
			Richness: rarefy.Curve(row, depths, cfg.Seed+int64(i)),
		})
		if _, e := fmt.Fprintf(w, "%v\t%v\t%d\t%v\n", name, s.Treatment, totals[i], kept); e != nil {
			return h(e)
		}
	}
	return plots.Curves(FigurePath(cfg, d.Molecule, "rarefaction"), cfg.Figure, fmt.Sprintf("%v rarefaction", d.Molecule), cs, cfg.Treatments, pal)
}

// Alpha prints per-sample diversity and compares richness and effective
// Shannon diversity across treatments.
func Alpha(cfg Config, d *Dataset, w io.Writer) error {
	h := handle("Alpha: %w")
	if e := section(w, d, "alpha diversity"); e != nil {
		return h(e)
	}
	pal, e := plots.ParsePalette(cfg.Palette)
	if e != nil {
		return h(e)
	}
	as, e := diversity.Summarize(d.Table)
	if e != nil {
		return h(e)
	}
	labels := d.Labels()
	if e := diversity.FprintAlpha(w, labels, as); e != nil {
		return h(e)
	}

	measures := []struct {
		stage string
		title string
		get   func(diversity.Alpha) float64
	}{
		{"richness", "Observed taxa", func(a diversity.Alpha) float64 { return float64(a.Richness) }},
		{"alpha", "Effective Shannon diversity", func(a diversity.Alpha) float64 { return a.EffShannon }},
	}
	for _, m := range measures {
		g := groupstats.Split(labels, diversity.Extract(m.get, as...), cfg.Treatments)
		if e := compare(w, m.title, g); e != nil {
			return h(e)
		}
		if e := plots.Boxplot(FigurePath(cfg, d.Molecule, m.stage), cfg.Figure, fmt.Sprintf("%v %v", d.Molecule, m.title), m.title, g, pal); e != nil {
			return h(e)
		}
	}
	return nil
}

// compare prints a group summary, a one-way ANOVA and Tukey contrasts.
func compare(w io.Writer, name string, g groupstats.Groups) error {
	ss, e := groupstats.Describe(g)
	if e != nil {
		return e
	}
	if _, e := fmt.Fprintf(w, "\n# %v\n", name); e != nil {
		return e
	}
	if e := groupstats.FprintSummaries(w, ss); e != nil {
		return e
	}
	a, e := groupstats.OneWay(g)
	if e != nil {
		return e
	}
	if e := groupstats.FprintAnova(w, "treatment", a); e != nil {
		return e
	}
	cs, e := groupstats.Tukey(g)
	if e != nil {
		return e
	}
	return groupstats.FprintTukey(w, cs)
}

func axisLabel(prefix string, k int, frac float64) string {
	return fmt.Sprintf("%v%d (%.1f%%)", prefix, k+1, 100*frac)
}

func points(x, y []float64, labels []string) []plots.Point {
	pts := make([]plots.Point, len(labels))
	for i, l := range labels {
		pts[i] = plots.Point{X: x[i], Group: l}
		if y != nil {
			pts[i].Y = y[i]
		}
	}
	return pts
}

// Beta ordinates samples by PCoA of the configured distance and tests
// treatment separation with PERMANOVA, pairwise contrasts and a dispersion
// check.
func Beta(cfg Config, d *Dataset, w io.Writer) error {
	h := handle("Beta: %w")
	if e := section(w, d, "beta diversity"); e != nil {
		return h(e)
	}
	pal, e := plots.ParsePalette(cfg.Palette)
	if e != nil {
		return h(e)
	}
	tr, e := ordinate.ParseTransform(cfg.Transform)
	if e != nil {
		return h(e)
	}
	metric, e := ordinate.ParseMetric(cfg.Distance)
	if e != nil {
		return h(e)
	}

	dist, e := ordinate.DistMatrix(tr.Apply(d.Table.Float()), metric)
	if e != nil {
		return h(e)
	}
	o, e := ordinate.PCoA(dist)
	if e != nil {
		return h(e)
	}
	labels := d.Labels()
	if e := ordinate.FprintOrdination(w, d.Table.Samples, labels, o, 2); e != nil {
		return h(e)
	}

	present := groupstats.Split(labels, make([]float64, len(labels)), cfg.Treatments).Names
	npairs := len(present) * (len(present) - 1) / 2
	bar := progress(cfg, cfg.Permutations*(1+npairs))
	defer finish(bar)
	opts := ordinate.PermOptions{N: cfg.Permutations, Seed: cfg.Seed, Bar: bar}

	res, e := ordinate.Permanova(dist, labels, opts)
	if e != nil {
		return h(e)
	}
	if _, e := fmt.Fprintf(w, "\n# PERMANOVA (%v, %v, %d permutations)\n", tr, metric, cfg.Permutations); e != nil {
		return h(e)
	}
	if e := ordinate.FprintPermanova(w, "treatment", res); e != nil {
		return h(e)
	}
	pairs, e := ordinate.PairwisePermanova(dist, labels, cfg.Treatments, cfg.PairwiseAdjust, opts)
	if e != nil {
		return h(e)
	}
	if e := ordinate.FprintPairwise(w, pairs, cfg.PairwiseAdjust); e != nil {
		return h(e)
	}

	disp, e := ordinate.Dispersion(dist, labels, cfg.Treatments)
	switch {
	case errors.Is(e, groupstats.ErrZeroVariance):
		log.Printf("Beta: %v: centroid distances do not vary within treatments; dispersion test skipped", d.Molecule)
	case e != nil:
		return h(e)
	default:
		if _, e := fmt.Fprintf(w, "\n# Dispersion around treatment centroids\n"); e != nil {
			return h(e)
		}
		if e := groupstats.FprintAnova(w, "treatment", disp.Anova); e != nil {
			return h(e)
		}
	}

	var y []float64
	ylab := "PCo2"
	if o.NumAxes() > 1 {
		y = o.Axis(1)
		ylab = axisLabel("PCo", 1, o.Explained[1])
	}
	pts := points(o.Axis(0), y, labels)
	return plots.Ordination(FigurePath(cfg, d.Molecule, "pcoa"), cfg.Figure, fmt.Sprintf("%v PCoA (%v)", d.Molecule, metric),
		axisLabel("PCo", 0, o.Explained[0]), ylab, pts, cfg.Treatments, pal)
}

// envRows matches samples to environmental records and returns the aligned
// response rows and scaled covariate rows.
func envRows(cfg Config, d *Dataset, env []samples.EnvRecord) ([]samples.Sample, [][]float64, [][]float64, error) {
	ss, recs, _, e := samples.JoinEnv(d.Samples, env)
	if e != nil {
		return nil, nil, nil, e
	}
	row := make(map[samples.Key]int, len(d.Samples))
	for i, s := range d.Samples {
		row[s.Key()] = i
	}
	tr, e := ordinate.ParseTransform(cfg.Transform)
	if e != nil {
		return nil, nil, nil, e
	}
	all := tr.Apply(d.Table.Float())
	y := make([][]float64, len(ss))
	for i, s := range ss {
		y[i] = all[row[s.Key()]]
	}
	cols, e := rda.Scale(samples.Matrix(recs, cfg.Covariates), cfg.Covariates)
	if e != nil {
		return nil, nil, nil, e
	}
	return ss, y, rda.Rows(cols), nil
}

// Constrained fits an RDA of the transformed community on the scaled
// covariates and tests it by permutation.
func Constrained(cfg Config, d *Dataset, env []samples.EnvRecord, w io.Writer) error {
	h := handle("Constrained: %w")
	if e := section(w, d, "redundancy analysis"); e != nil {
		return h(e)
	}
	pal, e := plots.ParsePalette(cfg.Palette)
	if e != nil {
		return h(e)
	}
	ss, y, x, e := envRows(cfg, d, env)
	if e != nil {
		return h(e)
	}

	vif, e := rda.VIF(x, cfg.Covariates)
	if e != nil {
		return h(e)
	}
	if e := rda.FprintVIF(w, cfg.Covariates, vif); e != nil {
		return h(e)
	}
	m, e := rda.Fit(y, x, cfg.Covariates)
	if e != nil {
		return h(e)
	}
	if e := rda.FprintModel(w, m); e != nil {
		return h(e)
	}

	bar := progress(cfg, cfg.Permutations)
	a, e := rda.Test(y, x, cfg.Covariates, ordinate.PermOptions{N: cfg.Permutations, Seed: cfg.Seed, Bar: bar})
	finish(bar)
	if e != nil {
		return h(e)
	}
	if e := rda.FprintAnova(w, a); e != nil {
		return h(e)
	}

	if m.NumAxes() == 0 {
		log.Printf("Constrained: %v: covariates explain no variance; no biplot", d.Molecule)
		return nil
	}
	labels := samples.Treatments(ss)
	var yscores []float64
	ylab := "RDA2"
	if m.NumAxes() > 1 {
		yscores = colOf(m, 1)
		ylab = axisLabel("RDA", 1, m.Explained[1])
	}
	var arrows []plots.Arrow
	for c, name := range m.Covariates {
		arr := plots.Arrow{Name: name, X: m.Biplot.At(c, 0)}
		if m.NumAxes() > 1 {
			arr.Y = m.Biplot.At(c, 1)
		}
		arrows = append(arrows, arr)
	}
	return plots.Biplot(FigurePath(cfg, d.Molecule, "rda"), cfg.Figure, fmt.Sprintf("%v RDA", d.Molecule),
		axisLabel("RDA", 0, m.Explained[0]), ylab, points(colOf(m, 0), yscores, labels), cfg.Treatments, arrows, pal)
}

func colOf(m *rda.Model, a int) []float64 {
	out := make([]float64, m.N)
	for i := range out {
		out[i] = m.Sites.At(i, a)
	}
	return out
}

// Groups compares the relative abundance of each configured taxon group
// across treatments. A taxon matching several groups counts only toward the
// first.
func Groups(cfg Config, d *Dataset, w io.Writer) error {
	h := handle("Groups: %w")
	if e := section(w, d, "taxon groups"); e != nil {
		return h(e)
	}
	pal, e := plots.ParsePalette(cfg.Palette)
	if e != nil {
		return h(e)
	}
	members, e := otutab.DisjointGroups(d.Taxonomy, cfg.TaxonGroups)
	if e != nil {
		return h(e)
	}
	inTable := make(map[string]bool, len(d.Table.Taxa))
	for _, id := range d.Table.Taxa {
		inTable[id] = true
	}
	labels := d.Labels()
	for i, g := range cfg.TaxonGroups {
		present := 0
		for _, id := range members[i] {
			if inTable[id] {
				present++
			}
		}
		if present == 0 {
			log.Printf("Groups: %v: no taxa in %q remain after rarefaction; skipped", d.Molecule, g.Name)
			continue
		}
		rel := otutab.GroupRelAbund(d.Table, members[i])
		grouped := groupstats.Split(labels, rel, cfg.Treatments)
		if e := compare(w, fmt.Sprintf("%v relative abundance (%d taxa)", g.Name, present), grouped); e != nil {
			return h(fmt.Errorf("%v: %w", g.Name, e))
		}
		stage := "group_" + slug(g.Name)
		if e := plots.Boxplot(FigurePath(cfg, d.Molecule, stage), cfg.Figure, fmt.Sprintf("%v %v", d.Molecule, g.Name), "Relative abundance", grouped, pal); e != nil {
			return h(e)
		}
	}
	return nil
}

func slug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r-'A'+'a')
		default:
			if len(out) > 0 && out[len(out)-1] != '_' {
				out = append(out, '_')
			}
		}
	}
	return string(out)
}

// Stage names accepted by RunStages.
const (
	StageCurves = "curves"
	StageAlpha  = "alpha"
	StageBeta   = "beta"
	StageRDA    = "rda"
	StageGroups = "groups"
)

var AllStages = []string{StageCurves, StageAlpha, StageBeta, StageRDA, StageGroups}

// RunStages loads the inputs and runs the named stages for every configured
// molecule, printing results to w.
func RunStages(cfg Config, w io.Writer, stages ...string) error {
	h := handle("RunStages: %w")
	if e := cfg.Check(); e != nil {
		return h(e)
	}
	if e := os.MkdirAll(cfg.Outdir, 0o755); e != nil {
		return h(e)
	}
	in, e := Load(cfg)
	if e != nil {
		return h(e)
	}
	for _, mol := range cfg.Molecules {
		d, e := Prepare(cfg, in, mol)
		if e != nil {
			return h(e)
		}
		for _, stage := range stages {
			log.Printf("RunStages: %v %v", mol, stage)
			switch stage {
			case StageCurves:
				e = Curves(cfg, d, w)
			case StageAlpha:
				e = Alpha(cfg, d, w)
			case StageBeta:
				e = Beta(cfg, d, w)
			case StageRDA:
				if cfg.EnvPath == "" || len(cfg.Covariates) == 0 {
					log.Printf("RunStages: no environmental table or covariates configured; skipping rda")
					continue
				}
				e = Constrained(cfg, d, in.Env, w)
			case StageGroups:
				e = Groups(cfg, d, w)
			default:
				e = fmt.Errorf("unknown stage %q", stage)
			}
			if e != nil {
				return h(e)
			}
		}
	}
	return nil
}

// Run is every stage in order.
func Run(cfg Config, w io.Writer) error {
	return RunStages(cfg, w, AllStages...)
}
