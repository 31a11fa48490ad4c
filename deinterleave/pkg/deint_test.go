package deint

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"
)

const mapIn = `sample,file
M01,raw/M01_interleaved.fastq.gz
M02, raw/M02_interleaved.fastq.gz
`

func TestParseMap(t *testing.T) {
	ents, e := ParseMap(strings.NewReader(mapIn))
	if e != nil {
		t.Fatal(e)
	}
	if len(ents) != 2 {
		t.Fatalf("len(ents) %v != 2", len(ents))
	}
	if ents[1].Sample != "M02" || ents[1].File != "raw/M02_interleaved.fastq.gz" {
		t.Errorf("entry %+v", ents[1])
	}

	noHeader := strings.SplitN(mapIn, "\n", 2)[1]
	ents, e = ParseMap(strings.NewReader(noHeader))
	if e != nil {
		t.Fatal(e)
	}
	if len(ents) != 2 || ents[0].Sample != "M01" {
		t.Errorf("headerless entries %+v", ents)
	}
}

func TestParseMapFailures(t *testing.T) {
	for _, in := range []string{
		mapIn + "M01,other.fastq\n",
		"M01\n",
		"M01,\n",
	} {
		if _, e := ParseMap(strings.NewReader(in)); e == nil {
			t.Errorf("map %q accepted", in)
		}
	}
}

func TestOutputPaths(t *testing.T) {
	r1, r2 := OutputPaths("reads", "M01")
	if r1 != "reads/M01_R1.fastq.gz" || r2 != "reads/M01_R2.fastq.gz" {
		t.Errorf("paths %v %v", r1, r2)
	}
}

func TestDryRun(t *testing.T) {
	jobs := Jobs("out", Entry{"M01", "in.fq"})
	var buf bytes.Buffer
	if e := DryRun(&buf, Tool{Extra: []string{"overwrite=t"}}, jobs...); e != nil {
		t.Fatal(e)
	}
	want := "reformat.sh in=in.fq out1=out/M01_R1.fastq.gz out2=out/M01_R2.fastq.gz overwrite=t\n"
	if buf.String() != want {
		t.Errorf("dry run %q != %q", buf.String(), want)
	}
}

func TestRunAll(t *testing.T) {
	if _, e := exec.LookPath("true"); e != nil {
		t.Skip("no true binary")
	}
	jobs := Jobs(t.TempDir(), Entry{"a", "a.fq"}, Entry{"b", "b.fq"}, Entry{"c", "c.fq"})
	if e := RunAll(context.Background(), Tool{Path: "true"}, 2, jobs...); e != nil {
		t.Errorf("RunAll with true: %v", e)
	}
	if e := RunAll(context.Background(), Tool{Path: "false"}, 2, jobs...); e == nil {
		t.Errorf("RunAll with false succeeded")
	}
}
