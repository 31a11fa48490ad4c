package deint

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jgbaldwinbrown/csvh"
	"github.com/jgbaldwinbrown/iter"
	"golang.org/x/sync/errgroup"
)

const DefaultTool = "reformat.sh"

func handle(format string) func(...any) error {
	return func(args ...any) error {
		return fmt.Errorf(format, args...)
	}
}

func Must(e error) {
	if e != nil {
		panic(e)
	}
}

// Entry maps a sample name to its interleaved FASTQ file.
type Entry struct {
	Sample string
	File   string
}

func isHeader(l []string) bool {
	return strings.EqualFold(strings.TrimSpace(l[0]), "sample") && strings.EqualFold(strings.TrimSpace(l[1]), "file")
}

func MapRows(r io.Reader) *iter.Iterator[Entry] {
	return &iter.Iterator[Entry]{Iteratef: func(yield func(Entry) error) error {
		h := handle("MapRows: %w")
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		cr.Comment = '#'
		line := 0
		for l, e := cr.Read(); e != io.EOF; l, e = cr.Read() {
			line++
			if e != nil {
				return h(e)
			}
			if len(l) == 1 && strings.TrimSpace(l[0]) == "" {
				continue
			}
			if len(l) < 2 {
				return h(fmt.Errorf("line %d: want sample,file; got %v", line, l))
			}
			if line == 1 && isHeader(l) {
				continue
			}
			var ent Entry
			if _, e = csvh.Scan(l[:2], &ent.Sample, &ent.File); e != nil {
				return h(fmt.Errorf("line %d: %w", line, e))
			}
			ent.Sample = strings.TrimSpace(ent.Sample)
			ent.File = strings.TrimSpace(ent.File)
			if ent.Sample == "" || ent.File == "" {
				return h(fmt.Errorf("line %d: empty sample or file", line))
			}
			if e = yield(ent); e != nil {
				return e
			}
		}
		return nil
	}}
}

// ParseMap reads sample,file rows. A leading "sample,file" header is
// skipped, and a sample may appear only once.
func ParseMap(r io.Reader) ([]Entry, error) {
	h := handle("ParseMap: %w")
	ents, e := iter.Collect[Entry](MapRows(r))
	if e != nil {
		return nil, h(e)
	}
	seen := make(map[string]bool, len(ents))
	for _, ent := range ents {
		if seen[ent.Sample] {
			return nil, h(fmt.Errorf("sample %q listed twice", ent.Sample))
		}
		seen[ent.Sample] = true
	}
	return ents, nil
}

func ParseMapPath(path string) ([]Entry, error) {
	r, e := csvh.OpenMaybeGz(path)
	if e != nil {
		return nil, e
	}
	defer r.Close()
	return ParseMap(r)
}

// OutputPaths names the two mate files written for a sample.
func OutputPaths(outdir, sample string) (r1, r2 string) {
	return filepath.Join(outdir, sample+"_R1.fastq.gz"), filepath.Join(outdir, sample+"_R2.fastq.gz")
}

type Job struct {
	Sample string
	Input  string
	R1     string
	R2     string
}

func Jobs(outdir string, ents ...Entry) []Job {
	jobs := make([]Job, 0, len(ents))
	for _, ent := range ents {
		r1, r2 := OutputPaths(outdir, ent.Sample)
		jobs = append(jobs, Job{Sample: ent.Sample, Input: ent.File, R1: r1, R2: r2})
	}
	return jobs
}

// Tool is the external deinterleaver and any extra arguments passed to it
// after the file arguments.
type Tool struct {
	Path  string
	Extra []string
}

func (t Tool) Args(j Job) []string {
	args := []string{"in=" + j.Input, "out1=" + j.R1, "out2=" + j.R2}
	return append(args, t.Extra...)
}

func (t Tool) path() string {
	if t.Path == "" {
		return DefaultTool
	}
	return t.Path
}

func Command(ctx context.Context, t Tool, j Job) *exec.Cmd {
	cmd := exec.CommandContext(ctx, t.path(), t.Args(j)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// RunAll runs one tool process per job, at most threads at a time. threads
// below 1 means no limit. The first failure cancels the rest.
func RunAll(ctx context.Context, t Tool, threads int, jobs ...Job) error {
	g, ctx2 := errgroup.WithContext(ctx)
	if threads > 0 {
		g.SetLimit(threads)
	}
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if e := Command(ctx2, t, job).Run(); e != nil {
				return fmt.Errorf("RunAll: %v: %w", job.Sample, e)
			}
			return nil
		})
	}
	return g.Wait()
}

// DryRun prints each command line RunAll would execute.
func DryRun(w io.Writer, t Tool, jobs ...Job) error {
	for _, j := range jobs {
		if _, e := fmt.Fprintln(w, strings.Join(append([]string{t.path()}, t.Args(j)...), " ")); e != nil {
			return e
		}
	}
	return nil
}
