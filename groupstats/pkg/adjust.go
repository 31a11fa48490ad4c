package groupstats

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Adjust corrects p-values for multiple comparisons. Methods are "none",
// "bonferroni" and "holm".
func Adjust(ps []float64, method string) ([]float64, error) {
	out := make([]float64, len(ps))
	m := float64(len(ps))
	switch strings.ToLower(method) {
	case "", "none":
		copy(out, ps)
	case "bonferroni":
		for i, p := range ps {
			out[i] = math.Min(1, p*m)
		}
	case "holm":
		idx := make([]int, len(ps))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return ps[idx[a]] < ps[idx[b]] })
		running := 0.0
		for rank, i := range idx {
			adj := math.Min(1, (m-float64(rank))*ps[i])
			running = math.Max(running, adj)
			out[i] = running
		}
	default:
		return nil, fmt.Errorf("Adjust: unknown method %q", method)
	}
	return out, nil
}
