package diversity

import (
	"fmt"
	"io"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/jgbaldwinbrown/marshmicro/otutab/pkg"
)

// Alpha is the within-sample diversity of one sample.
type Alpha struct {
	Sample     string
	Total      int64
	Richness   int
	Shannon    float64
	EffShannon float64
}

func Richness(row []int64) int {
	n := 0
	for _, c := range row {
		if c > 0 {
			n++
		}
	}
	return n
}

// Shannon is the natural-log entropy of the row's proportions; an empty row
// has entropy 0.
func Shannon(row []int64) (float64, error) {
	var props stats.Float64Data
	for _, c := range row {
		if c > 0 {
			props = append(props, float64(c))
		}
	}
	if len(props) == 0 {
		return 0, nil
	}
	// stats.Entropy normalizes props in place
	h, e := stats.Entropy(props)
	if e != nil {
		return 0, fmt.Errorf("Shannon: %w", e)
	}
	return h, nil
}

// EffectiveShannon is exp(Shannon), the number of equally common taxa that
// would give the same entropy.
func EffectiveShannon(row []int64) (float64, error) {
	h, e := Shannon(row)
	if e != nil {
		return 0, e
	}
	return math.Exp(h), nil
}

func Summarize(t *otutab.Table) ([]Alpha, error) {
	out := make([]Alpha, len(t.Counts))
	for i, row := range t.Counts {
		h, e := Shannon(row)
		if e != nil {
			return nil, fmt.Errorf("Summarize: sample %v: %w", t.Samples[i], e)
		}
		var total int64
		for _, c := range row {
			total += c
		}
		out[i] = Alpha{
			Sample:     t.Samples[i],
			Total:      total,
			Richness:   Richness(row),
			Shannon:    h,
			EffShannon: math.Exp(h),
		}
	}
	return out, nil
}

func Extract(f func(Alpha) float64, as ...Alpha) []float64 {
	out := make([]float64, 0, len(as))
	for _, a := range as {
		out = append(out, f(a))
	}
	return out
}

func FprintAlpha(w io.Writer, labels []string, as []Alpha) error {
	if _, e := fmt.Fprintf(w, "sample\ttreatment\treads\trichness\tshannon\teff_shannon\n"); e != nil {
		return e
	}
	for i, a := range as {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		if _, e := fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%.4f\t%.4f\n", a.Sample, label, a.Total, a.Richness, a.Shannon, a.EffShannon); e != nil {
			return e
		}
	}
	return nil
}
