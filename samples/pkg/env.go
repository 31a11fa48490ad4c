package samples

import (
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/jgbaldwinbrown/csvh"
	"github.com/jgbaldwinbrown/iter"
)

// EnvRecord holds the covariates measured on one plot at one date.
type EnvRecord struct {
	Date      string
	Treatment string
	Replicate int
	Values    map[string]float64
}

func isNA(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "na", "nan", "n/a", "-":
		return true
	}
	return false
}

// EnvRows streams environmental records, keeping only the named covariates.
// A record missing any of them is skipped with a log line.
func EnvRows(r io.Reader, covariates []string) *iter.Iterator[EnvRecord] {
	return &iter.Iterator[EnvRecord]{Iteratef: func(yield func(EnvRecord) error) error {
		h := handle("EnvRows: %w")
		cr := csvIn(r)
		first, e := cr.Read()
		if e != nil {
			return h(e)
		}
		hd := header(first)
		cols, e := designColumns(withSampleID(hd))
		if e != nil {
			return h(e)
		}
		covCols := make([]int, len(covariates))
		for i, name := range covariates {
			c, ok := hd[strings.ToLower(name)]
			if !ok {
				return h(fmt.Errorf("missing covariate column %q", name))
			}
			covCols[i] = c
		}

		line := 1
		for l, e := cr.Read(); e != io.EOF; l, e = cr.Read() {
			line++
			if e != nil {
				return h(e)
			}
			if len(l) <= max(cols.date, cols.trt, cols.rep) {
				return h(fmt.Errorf("line %d too short: %v", line, l))
			}
			var rec EnvRecord
			var rawDate string
			if _, e = csvh.Scan([]string{l[cols.date], l[cols.trt], l[cols.rep]}, &rawDate, &rec.Treatment, &rec.Replicate); e != nil {
				return h(fmt.Errorf("line %d: %w", line, e))
			}
			rec.Treatment = strings.TrimSpace(rec.Treatment)
			if rec.Date, e = NormalizeDate(rawDate); e != nil {
				return h(e)
			}

			rec.Values = make(map[string]float64, len(covariates))
			missing := ""
			for i, c := range covCols {
				if c >= len(l) || isNA(l[c]) {
					missing = covariates[i]
					break
				}
				v, e := strconv.ParseFloat(strings.TrimSpace(l[c]), 64)
				if e != nil {
					return h(fmt.Errorf("line %d column %q: %w", line, covariates[i], e))
				}
				if math.IsNaN(v) || math.IsInf(v, 0) {
					missing = covariates[i]
					break
				}
				rec.Values[covariates[i]] = v
			}
			if missing != "" {
				log.Printf("EnvRows: line %d (%v %v %v) missing %v; skipped", line, rec.Date, rec.Treatment, rec.Replicate, missing)
				continue
			}
			if e = yield(rec); e != nil {
				return e
			}
		}
		return nil
	}}
}

// the environmental table has no sample id column; borrow the date column
// so designColumns can be reused.
func withSampleID(h map[string]int) map[string]int {
	if _, ok := column(h, "sampleid", "sample_id", "sample", "id"); ok {
		return h
	}
	out := make(map[string]int, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	if d, ok := column(h, "date", "collection_date", "collectiondate"); ok {
		out["sampleid"] = d
	}
	return out
}

func ParseEnv(r io.Reader, covariates []string) ([]EnvRecord, error) {
	recs, e := iter.Collect[EnvRecord](EnvRows(r, covariates))
	if e != nil {
		return nil, fmt.Errorf("ParseEnv: %w", e)
	}
	return recs, nil
}

func ParseEnvPath(path string, covariates []string) ([]EnvRecord, error) {
	r, e := csvh.OpenMaybeGz(path)
	if e != nil {
		return nil, e
	}
	defer r.Close()
	return ParseEnv(r, covariates)
}

// Matrix returns the covariates of recs as columns, in the order given.
func Matrix(recs []EnvRecord, covariates []string) [][]float64 {
	cols := make([][]float64, len(covariates))
	for j, name := range covariates {
		cols[j] = make([]float64, len(recs))
		for i, rec := range recs {
			cols[j][i] = rec.Values[name]
		}
	}
	return cols
}
