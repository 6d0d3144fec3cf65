package lanes

import "strings"

var glyphs = [...]byte{
	Empty:      ' ',
	Active:     '*',
	NotActive:  '|',
	MergeFork:  'M',
	MergeForkR: 'M',
	MergeForkL: 'M',
	Join:       '+',
	JoinR:      '+',
	JoinL:      '+',
	Head:       '\\',
	HeadR:      '\\',
	HeadL:      '\\',
	Tail:       '/',
	TailR:      '/',
	TailL:      '/',
	Cross:      '-',
	CrossEmpty: '-',
	Initial:    'I',
	Branch:     'B',
	Unapplied:  'u',
	Applied:    'a',
	Boundary:   'o',
	BoundaryC:  'o',
	BoundaryR:  'o',
	BoundaryL:  'o',
}

// Glyph is a one character rendering of t for text front-ends.
func (t Type) Glyph() byte {
	if int(t) < len(glyphs) {
		return glyphs[t]
	}
	return '?'
}

// Render draws a row as space separated glyphs, e.g. "| * |".
func Render(row []Type) string {
	var b strings.Builder
	for i, t := range row {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(t.Glyph())
	}
	return strings.TrimRight(b.String(), " ")
}

var names = [...]string{
	Empty:      "EMPTY",
	Active:     "ACTIVE",
	NotActive:  "NOT_ACTIVE",
	MergeFork:  "MERGE_FORK",
	MergeForkR: "MERGE_FORK_R",
	MergeForkL: "MERGE_FORK_L",
	Join:       "JOIN",
	JoinR:      "JOIN_R",
	JoinL:      "JOIN_L",
	Head:       "HEAD",
	HeadR:      "HEAD_R",
	HeadL:      "HEAD_L",
	Tail:       "TAIL",
	TailR:      "TAIL_R",
	TailL:      "TAIL_L",
	Cross:      "CROSS",
	CrossEmpty: "CROSS_EMPTY",
	Initial:    "INITIAL",
	Branch:     "BRANCH",
	Unapplied:  "UNAPPLIED",
	Applied:    "APPLIED",
	Boundary:   "BOUNDARY",
	BoundaryC:  "BOUNDARY_C",
	BoundaryR:  "BOUNDARY_R",
	BoundaryL:  "BOUNDARY_L",
}

func (t Type) String() string {
	if int(t) < len(names) {
		return names[t]
	}
	return "UNKNOWN"
}
