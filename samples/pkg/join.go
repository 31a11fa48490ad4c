package samples

import (
	"errors"
	"fmt"
	"log"
	"sort"
)

var ErrEmptyJoin = errors.New("join produced zero rows")

// JoinReport counts what a join kept and what it silently dropped.
type JoinReport struct {
	Kept       int
	DesignOnly []string
	TableOnly  []string
}

func (r JoinReport) Dropped() int {
	return len(r.DesignOnly) + len(r.TableOnly)
}

func (r JoinReport) log(name string) {
	if r.Dropped() == 0 {
		return
	}
	log.Printf("%v: kept %d rows; dropped %d design-only %v and %d table-only %v",
		name, r.Kept, len(r.DesignOnly), r.DesignOnly, len(r.TableOnly), r.TableOnly)
}

// JoinKeys matches design samples to abundance table keys. For every kept
// sample it returns the sample and the index of its key in keys, in design
// order. A key may appear only once in keys.
func JoinKeys(design []Sample, keys []Key) ([]Sample, []int, JoinReport, error) {
	idx := make(map[Key]int, len(keys))
	for i, k := range keys {
		if j, ok := idx[k]; ok {
			return nil, nil, JoinReport{}, fmt.Errorf("JoinKeys: key %v at positions %d and %d", k, j, i)
		}
		idx[k] = i
	}

	var rep JoinReport
	var kept []Sample
	var rows []int
	used := make(map[Key]bool, len(keys))
	for _, s := range design {
		i, ok := idx[s.Key()]
		if !ok {
			rep.DesignOnly = append(rep.DesignOnly, s.Key().String())
			continue
		}
		kept = append(kept, s)
		rows = append(rows, i)
		used[s.Key()] = true
	}
	for _, k := range keys {
		if !used[k] {
			rep.TableOnly = append(rep.TableOnly, k.String())
		}
	}
	rep.Kept = len(kept)
	rep.log("JoinKeys")

	if len(kept) == 0 {
		return nil, nil, rep, fmt.Errorf("JoinKeys: %w", ErrEmptyJoin)
	}
	return kept, rows, rep, nil
}

type envKey struct {
	date      string
	treatment string
	replicate int
}

func sampleEnvKey(s Sample) envKey {
	return envKey{s.Date, NormalizeTreatment(s.Treatment), s.Replicate}
}

// JoinEnv pairs each sample with the environmental record measured on the
// same date, treatment and replicate. Samples without a record are dropped.
func JoinEnv(ss []Sample, env []EnvRecord) ([]Sample, []EnvRecord, JoinReport, error) {
	m := make(map[envKey]int, len(env))
	for i, rec := range env {
		m[envKey{rec.Date, NormalizeTreatment(rec.Treatment), rec.Replicate}] = i
	}

	var rep JoinReport
	var outS []Sample
	var outE []EnvRecord
	used := make(map[int]bool, len(env))
	for _, s := range ss {
		i, ok := m[sampleEnvKey(s)]
		if !ok {
			rep.DesignOnly = append(rep.DesignOnly, s.Key().String())
			continue
		}
		outS = append(outS, s)
		outE = append(outE, env[i])
		used[i] = true
	}
	for i, rec := range env {
		if !used[i] {
			rep.TableOnly = append(rep.TableOnly, fmt.Sprintf("%v/%v/%v", rec.Date, rec.Treatment, rec.Replicate))
		}
	}
	rep.Kept = len(outS)
	rep.log("JoinEnv")

	if len(outS) == 0 {
		return nil, nil, rep, fmt.Errorf("JoinEnv: %w", ErrEmptyJoin)
	}
	return outS, outE, rep, nil
}

func sortSamples(ss []Sample, pos map[string]int) {
	sort.SliceStable(ss, func(i, j int) bool {
		pi := pos[NormalizeTreatment(ss[i].Treatment)]
		pj := pos[NormalizeTreatment(ss[j].Treatment)]
		if pi != pj {
			return pi < pj
		}
		if ss[i].Date != ss[j].Date {
			return ss[i].Date < ss[j].Date
		}
		return ss[i].Replicate < ss[j].Replicate
	})
}

// Treatments returns the treatment label of each sample.
func Treatments(ss []Sample) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Treatment
	}
	return out
}
