package plots

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/jgbaldwinbrown/marshmicro/groupstats/pkg"
)

func newPlot(title, xlab, ylab string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlab
	p.Y.Label.Text = ylab
	return p
}

// Boxplot draws one box per group with the observations overlaid.
func Boxplot(path string, fig Figure, title, ylab string, g groupstats.Groups, pal Palette) error {
	h := handle("Boxplot: %w")
	p := newPlot(title, "", ylab)
	for i, vals := range g.Values {
		b, e := plotter.NewBoxPlot(vg.Points(24), float64(i), plotter.Values(vals))
		if e != nil {
			return h(fmt.Errorf("%v: %w", g.Names[i], e))
		}
		b.FillColor = pal.Color(g.Names[i], i)
		p.Add(b)

		pts := make(plotter.XYs, len(vals))
		for k, v := range vals {
			pts[k] = plotter.XY{X: float64(i) + 0.06*(float64(k%5)-2), Y: v}
		}
		s, e := plotter.NewScatter(pts)
		if e != nil {
			return h(e)
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(2)
		p.Add(s)
	}
	p.NominalX(g.Names...)
	return Save(p, path, fig)
}

// Point is one sample's position in an ordination.
type Point struct {
	X, Y  float64
	Group string
}

// Arrow is a covariate vector drawn from the origin.
type Arrow struct {
	Name string
	X, Y float64
}

func groupOrder(pts []Point, order []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, g := range order {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	for _, pt := range pts {
		if !seen[pt.Group] {
			seen[pt.Group] = true
			out = append(out, pt.Group)
		}
	}
	return out
}

func addPoints(p *plot.Plot, pts []Point, order []string, pal Palette) error {
	for i, g := range groupOrder(pts, order) {
		var xys plotter.XYs
		for _, pt := range pts {
			if pt.Group == g {
				xys = append(xys, plotter.XY{X: pt.X, Y: pt.Y})
			}
		}
		if len(xys) == 0 {
			continue
		}
		s, e := plotter.NewScatter(xys)
		if e != nil {
			return e
		}
		s.GlyphStyle.Color = pal.Color(g, i)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(3.5)
		p.Add(s)
		p.Legend.Add(g, s)
	}
	return nil
}

// Ordination draws samples on two ordination axes colored by group.
func Ordination(path string, fig Figure, title, xlab, ylab string, pts []Point, order []string, pal Palette) error {
	p := newPlot(title, xlab, ylab)
	if e := addPoints(p, pts, order, pal); e != nil {
		return fmt.Errorf("Ordination: %w", e)
	}
	p.Add(plotter.NewGrid())
	return Save(p, path, fig)
}

// ArrowScale stretches arrows so the longest reaches most of the way to the
// farthest point.
func ArrowScale(pts []Point, arrows []Arrow) float64 {
	far, long := 0.0, 0.0
	for _, pt := range pts {
		far = math.Max(far, math.Hypot(pt.X, pt.Y))
	}
	for _, a := range arrows {
		long = math.Max(long, math.Hypot(a.X, a.Y))
	}
	if far == 0 || long == 0 {
		return 1
	}
	return 0.8 * far / long
}

// Biplot draws samples on two constrained axes with covariate arrows.
func Biplot(path string, fig Figure, title, xlab, ylab string, pts []Point, order []string, arrows []Arrow, pal Palette) error {
	h := handle("Biplot: %w")
	p := newPlot(title, xlab, ylab)
	if e := addPoints(p, pts, order, pal); e != nil {
		return h(e)
	}

	mult := ArrowScale(pts, arrows)
	var tips plotter.XYLabels
	for _, a := range arrows {
		tip := plotter.XY{X: a.X * mult, Y: a.Y * mult}
		l, e := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, tip})
		if e != nil {
			return h(e)
		}
		l.LineStyle.Width = vg.Points(1.5)
		p.Add(l)
		tips.XYs = append(tips.XYs, tip)
		tips.Labels = append(tips.Labels, a.Name)
	}
	if len(arrows) > 0 {
		labels, e := plotter.NewLabels(tips)
		if e != nil {
			return h(e)
		}
		p.Add(labels)
	}
	return Save(p, path, fig)
}

// Curve is one sample's richness at increasing subsampling depths.
type Curve struct {
	Sample   string
	Group    string
	Depths   []int64
	Richness []int
}

// Curves draws rarefaction curves, one line per sample colored by group.
func Curves(path string, fig Figure, title string, cs []Curve, order []string, pal Palette) error {
	h := handle("Curves: %w")
	p := newPlot(title, "Reads sampled", "Observed taxa")
	pts := make([]Point, len(cs))
	for i, c := range cs {
		pts[i].Group = c.Group
	}
	groups := groupOrder(pts, order)
	index := map[string]int{}
	for i, g := range groups {
		index[g] = i
	}

	legend := map[string]bool{}
	for _, c := range cs {
		if len(c.Depths) != len(c.Richness) {
			return h(fmt.Errorf("%v: %d depths and %d richness values", c.Sample, len(c.Depths), len(c.Richness)))
		}
		xys := make(plotter.XYs, len(c.Depths))
		for k := range c.Depths {
			xys[k] = plotter.XY{X: float64(c.Depths[k]), Y: float64(c.Richness[k])}
		}
		l, e := plotter.NewLine(xys)
		if e != nil {
			return h(fmt.Errorf("%v: %w", c.Sample, e))
		}
		l.LineStyle.Color = pal.Color(c.Group, index[c.Group])
		l.LineStyle.Width = vg.Points(1)
		p.Add(l)
		if !legend[c.Group] {
			legend[c.Group] = true
			p.Legend.Add(c.Group, l)
		}
	}
	return Save(p, path, fig)
}
