package ordinate

import (
	"fmt"
	"math"
	"strings"
)

type Transform string

const (
	None      Transform = "none"
	Relative  Transform = "relative"
	Hellinger Transform = "hellinger"
	Presence  Transform = "pa"
)

func ParseTransform(s string) (Transform, error) {
	switch t := Transform(strings.ToLower(strings.TrimSpace(s))); t {
	case None, Relative, Hellinger, Presence:
		return t, nil
	case "":
		return None, nil
	case "presence", "presence/absence":
		return Presence, nil
	}
	return "", fmt.Errorf("ParseTransform: unknown transform %q", s)
}

func relative(row []float64) []float64 {
	out := make([]float64, len(row))
	total := 0.0
	for _, x := range row {
		total += x
	}
	if total == 0 {
		return out
	}
	for j, x := range row {
		out[j] = x / total
	}
	return out
}

// Apply transforms every row independently and returns new rows.
func (t Transform) Apply(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		switch t {
		case Relative:
			out[i] = relative(row)
		case Hellinger:
			out[i] = relative(row)
			for j, x := range out[i] {
				out[i][j] = math.Sqrt(x)
			}
		case Presence:
			out[i] = make([]float64, len(row))
			for j, x := range row {
				if x > 0 {
					out[i][j] = 1
				}
			}
		default:
			out[i] = append([]float64(nil), row...)
		}
	}
	return out
}
