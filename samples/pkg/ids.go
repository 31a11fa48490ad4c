package samples

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

func handle(format string) func(...any) error {
	return func(args ...any) error {
		return fmt.Errorf(format, args...)
	}
}

type Molecule int

const (
	DNA Molecule = iota
	CDNA
)

func (m Molecule) String() string {
	switch m {
	case DNA:
		return "DNA"
	case CDNA:
		return "cDNA"
	default:
		return fmt.Sprintf("Molecule(%d)", int(m))
	}
}

// Tag is the one-letter suffix used in reconciled keys.
func (m Molecule) Tag() string {
	if m == CDNA {
		return "C"
	}
	return "D"
}

func ParseMolecule(s string) (Molecule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dna", "d", "":
		return DNA, nil
	case "cdna", "rna", "c":
		return CDNA, nil
	}
	return DNA, fmt.Errorf("ParseMolecule: unknown molecule %q", s)
}

func (m Molecule) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Molecule) UnmarshalText(b []byte) error {
	mol, e := ParseMolecule(string(b))
	if e != nil {
		return e
	}
	*m = mol
	return nil
}

// Key identifies one sequencing library: a normalized sample ID and the
// molecule it was extracted from.
type Key struct {
	ID       string
	Molecule Molecule
}

func (k Key) String() string {
	return k.ID + "." + k.Molecule.Tag()
}

var idJunk = regexp.MustCompile(`[_\-. ]`)

func NormalizeID(raw string) string {
	return strings.ToUpper(idJunk.ReplaceAllString(strings.TrimSpace(raw), ""))
}

var molSuffix = regexp.MustCompile(`(?i)[_.\-](cdna|dna|rna)$`)

// ParseColumnKey splits an abundance table column name such as "S12_cDNA"
// into a key. Columns without a molecule suffix are DNA.
func ParseColumnKey(col string) (Key, error) {
	col = strings.TrimSpace(col)
	mol := DNA
	if m := molSuffix.FindStringSubmatchIndex(col); m != nil {
		var e error
		mol, e = ParseMolecule(col[m[2]:m[3]])
		if e != nil {
			return Key{}, e
		}
		col = col[:m[0]]
	}
	id := NormalizeID(col)
	if id == "" {
		return Key{}, fmt.Errorf("ParseColumnKey: empty sample id in column %q", col)
	}
	return Key{ID: id, Molecule: mol}, nil
}

var dateLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"2006-01-02",
	"2006-1-2",
	"20060102",
	"01022006",
	"1-2-2006",
}

// NormalizeDate returns a zero padded YYYYMMDD date.
func NormalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		t, e := time.Parse(layout, raw)
		if e == nil {
			return t.Format("20060102"), nil
		}
	}
	return "", fmt.Errorf("NormalizeDate: unparseable date %q", raw)
}

func NormalizeTreatment(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
