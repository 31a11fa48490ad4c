package plots

import (
	"bufio"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/jgbaldwinbrown/csvh"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Figure is the size of an output image in inches and its resolution.
type Figure struct {
	Width  float64
	Height float64
	DPI    int
}

func (f Figure) check() error {
	if f.Width <= 0 || f.Height <= 0 || f.DPI <= 0 {
		return fmt.Errorf("figure size %vx%v in at %v dpi", f.Width, f.Height, f.DPI)
	}
	return nil
}

// Pixels is the size of the image Save writes for f.
func (f Figure) Pixels() (int, int) {
	return int(f.Width*float64(f.DPI) + 0.5), int(f.Height*float64(f.DPI) + 0.5)
}

// Palette assigns each treatment a fixed color.
type Palette map[string]color.Color

// ParsePalette reads colors written as #RRGGBB.
func ParsePalette(hex map[string]string) (Palette, error) {
	p := Palette{}
	for name, h := range hex {
		s := strings.TrimPrefix(strings.TrimSpace(h), "#")
		if len(s) != 6 {
			return nil, fmt.Errorf("ParsePalette: %v: bad color %q", name, h)
		}
		v, e := strconv.ParseUint(s, 16, 32)
		if e != nil {
			return nil, fmt.Errorf("ParsePalette: %v: %w", name, e)
		}
		p[name] = color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
	}
	return p, nil
}

// Color returns the treatment's color, or the ith default color when the
// palette has none for it.
func (p Palette) Color(name string, i int) color.Color {
	if c, ok := p[name]; ok {
		return c
	}
	return plotutil.Color(i)
}

// Save draws p at the figure's size and DPI and writes it as PNG.
func Save(p *plot.Plot, path string, fig Figure) (err error) {
	h := handle("Save: %w")
	if e := fig.check(); e != nil {
		return h(e)
	}
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(fig.Width)*vg.Inch, vg.Length(fig.Height)*vg.Inch),
		vgimg.UseDPI(fig.DPI),
	)
	p.Draw(draw.New(c))

	w, e := csvh.CreateMaybeGz(path)
	if e != nil {
		return h(e)
	}
	defer func() { csvh.DeferE(&err, w.Close()) }()
	bw := bufio.NewWriter(w)
	defer func() { csvh.DeferE(&err, bw.Flush()) }()

	if _, e := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); e != nil {
		return h(e)
	}
	return nil
}

func handle(format string) func(...any) error {
	return func(args ...any) error {
		return fmt.Errorf(format, args...)
	}
}
