package samples

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeID(t *testing.T) {
	cases := map[string]string{
		"s_12":     "S12",
		"S-12 ":    "S12",
		"fw.1_a":   "FW1A",
		"Plot_3_b": "PLOT3B",
	}
	for in, want := range cases {
		if got := NormalizeID(in); got != want {
			t.Errorf("NormalizeID(%q) %v != %v", in, got, want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := map[string]string{
		"6/9/2016":   "20160609",
		"06/09/2016": "20160609",
		"6/9/16":     "20160609",
		"2016-06-09": "20160609",
		"2016-6-9":   "20160609",
		"20160609":   "20160609",
		"06092016":   "20160609",
	}
	for in, want := range cases {
		got, e := NormalizeDate(in)
		if e != nil {
			t.Errorf("NormalizeDate(%q): %v", in, e)
			continue
		}
		if got != want {
			t.Errorf("NormalizeDate(%q) %v != %v", in, got, want)
		}
	}
	if _, e := NormalizeDate("June ninth"); e == nil {
		t.Errorf("expected error for unparseable date")
	}
}

func TestParseColumnKey(t *testing.T) {
	cases := map[string]Key{
		"S12_cDNA": {"S12", CDNA},
		"S12.DNA":  {"S12", DNA},
		"s_12-dna": {"S12", DNA},
		"S12_RNA":  {"S12", CDNA},
		"S12":      {"S12", DNA},
	}
	for in, want := range cases {
		got, e := ParseColumnKey(in)
		if e != nil {
			t.Errorf("ParseColumnKey(%q): %v", in, e)
			continue
		}
		if got != want {
			t.Errorf("ParseColumnKey(%q) %v != %v", in, got, want)
		}
	}
}

const designIn = `SampleID,Date,Treatment,Replicate,Molecule
S_1,6/9/2016,Control,1,DNA
S_1,6/9/2016,Control,1,cDNA
S_2,6/9/2016,Salt,1,DNA
S_2,6/9/2016,Salt,1,cDNA
S_3,6/9/2016,Fresh,2,DNA
`

func TestDuplicateAcrossMolecules(t *testing.T) {
	design, e := ParseDesign(strings.NewReader(designIn))
	if e != nil {
		t.Fatal(e)
	}
	if len(design) != 5 {
		t.Fatalf("len(design) %v != 5", len(design))
	}

	keys := []Key{{"S1", DNA}, {"S1", CDNA}, {"S2", DNA}, {"S2", CDNA}, {"S3", DNA}}
	dna := FilterMolecule(design, DNA)
	kept, rows, rep, e := JoinKeys(dna, keys)
	if e != nil {
		t.Fatal(e)
	}
	if len(kept) != 3 {
		t.Errorf("len(kept) %v != 3", len(kept))
	}
	seen := map[string]int{}
	for _, s := range kept {
		seen[s.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("sample %v appears %v times", id, n)
		}
	}
	if rows[0] != 0 || rows[1] != 2 || rows[2] != 4 {
		t.Errorf("rows %v != [0 2 4]", rows)
	}
	if len(rep.TableOnly) != 2 || len(rep.DesignOnly) != 0 {
		t.Errorf("report %+v: want 2 table-only, 0 design-only", rep)
	}
}

func TestDuplicateKeyRejected(t *testing.T) {
	in := designIn + "S-1,6/9/2016,Control,1,DNA\n"
	if _, e := ParseDesign(strings.NewReader(in)); e == nil {
		t.Errorf("expected duplicate key error")
	}
}

func TestDesignWithoutMolecule(t *testing.T) {
	in := "sample,date,treatment,rep\nA1,2016-06-09,Salt,1\n"
	design, e := ParseDesign(strings.NewReader(in))
	if e != nil {
		t.Fatal(e)
	}
	if len(design) != 2 || design[0].Molecule != DNA || design[1].Molecule != CDNA {
		t.Errorf("design %v: want one DNA and one cDNA row", design)
	}
}

func TestJoinDropCounts(t *testing.T) {
	design, e := ParseDesign(strings.NewReader(designIn))
	if e != nil {
		t.Fatal(e)
	}
	keys := []Key{{"S1", DNA}, {"S9", DNA}}
	kept, _, rep, e := JoinKeys(FilterMolecule(design, DNA), keys)
	if e != nil {
		t.Fatal(e)
	}
	if len(kept) != 1 || rep.Kept != 1 {
		t.Errorf("kept %v != 1", len(kept))
	}
	if len(rep.DesignOnly) != 2 || len(rep.TableOnly) != 1 || rep.Dropped() != 3 {
		t.Errorf("report %+v: want 2 design-only, 1 table-only", rep)
	}
}

func TestJoinRepeatedKey(t *testing.T) {
	design, e := ParseDesign(strings.NewReader(designIn))
	if e != nil {
		t.Fatal(e)
	}
	var keys []Key
	for _, col := range []string{"S1", "S_1", "S2"} {
		k, e := ParseColumnKey(col)
		if e != nil {
			t.Fatal(e)
		}
		keys = append(keys, k)
	}
	if kept, rows, _, e := JoinKeys(FilterMolecule(design, DNA), keys); e == nil {
		t.Errorf("joined %v at rows %v despite repeated key S1.D", kept, rows)
	}
}

func TestEmptyJoin(t *testing.T) {
	design, e := ParseDesign(strings.NewReader(designIn))
	if e != nil {
		t.Fatal(e)
	}
	_, _, _, e = JoinKeys(design, []Key{{"NOPE", DNA}})
	if !errors.Is(e, ErrEmptyJoin) {
		t.Errorf("error %v is not ErrEmptyJoin", e)
	}
}

func TestFilterTreatments(t *testing.T) {
	design, e := ParseDesign(strings.NewReader(designIn))
	if e != nil {
		t.Fatal(e)
	}
	out := FilterTreatments(FilterMolecule(design, DNA), []string{"SALT", "Control"})
	if len(out) != 2 {
		t.Fatalf("len(out) %v != 2", len(out))
	}
	if out[0].Treatment != "SALT" || out[1].Treatment != "Control" {
		t.Errorf("treatments %v != [SALT Control]", Treatments(out))
	}
}

const envIn = `Date,Treatment,Replicate,Salinity,SO4,Note
06/09/2016,control,1,0.2,1.5,x
6/9/2016,Salt,1,4.1,NA,y
2016-06-09,Fresh,2,0.3,2.0,z
`

func TestEnvJoin(t *testing.T) {
	env, e := ParseEnv(strings.NewReader(envIn), []string{"Salinity", "SO4"})
	if e != nil {
		t.Fatal(e)
	}
	if len(env) != 2 {
		t.Fatalf("len(env) %v != 2 (NA row skipped)", len(env))
	}

	design, e := ParseDesign(strings.NewReader(designIn))
	if e != nil {
		t.Fatal(e)
	}
	ss, recs, rep, e := JoinEnv(FilterMolecule(design, DNA), env)
	if e != nil {
		t.Fatal(e)
	}
	if len(ss) != 2 || len(recs) != 2 {
		t.Fatalf("joined %v samples, %v records; want 2", len(ss), len(recs))
	}
	if len(rep.DesignOnly) != 1 || rep.DesignOnly[0] != "S2.D" {
		t.Errorf("design-only %v != [S2.D]", rep.DesignOnly)
	}
	cols := Matrix(recs, []string{"Salinity", "SO4"})
	if cols[0][1] != 0.3 || cols[1][0] != 1.5 {
		t.Errorf("matrix %v unexpected", cols)
	}
}

func TestEnvMissingCovariate(t *testing.T) {
	if _, e := ParseEnv(strings.NewReader(envIn), []string{"Chloride"}); e == nil {
		t.Errorf("expected missing covariate error")
	}
}
