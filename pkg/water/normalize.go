package water

import "strings"

// Mode selects which header conventions the normalizer accepts.
type Mode int

const (
	// AliasMode accepts canonical names and the snake_case aliases,
	// compared after lower-casing and trimming.
	AliasMode Mode = iota
	// StrictMode accepts only exact canonical names.
	StrictMode
)

func (m Mode) String() string {
	if m == StrictMode {
		return "strict"
	}
	return "alias"
}

// Match ranks, lowest wins.
const (
	rankExact = iota
	rankFolded
	rankAlias
	rankNone
)

// Normalizer maps raw headers onto canonical parameters.
type Normalizer struct {
	mode Mode
}

// NewNormalizer creates a normalizer for the given mode.
func NewNormalizer(mode Mode) *Normalizer {
	return &Normalizer{mode: mode}
}

// Mode returns the configured mode.
func (n *Normalizer) Mode() Mode {
	return n.mode
}

// Normalize builds a SensorTable holding exactly the required parameters.
//
// When several headers resolve to the same parameter the exact canonical
// name wins, then a case/whitespace-folded canonical name, then an alias;
// equal ranks keep the leftmost header. Unmatched headers are dropped.
func (n *Normalizer) Normalize(raw RawTable) (*SensorTable, error) {
	chosen := make(map[Parameter]int, len(specs))
	rank := make(map[Parameter]int, len(specs))

	for col, h := range raw.Header {
		for _, s := range specs {
			r := n.rank(h, s)
			if r == rankNone {
				continue
			}
			if prev, ok := rank[s.ID]; ok && prev <= r {
				continue
			}
			rank[s.ID] = r
			chosen[s.ID] = col
		}
	}

	var missing []Parameter
	for _, s := range specs {
		if _, ok := chosen[s.ID]; !ok {
			missing = append(missing, s.ID)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing, Required: Parameters()}
	}

	t := &SensorTable{
		columns: make(map[Parameter][]string, len(specs)),
		source:  make(map[Parameter]string, len(specs)),
		rows:    len(raw.Rows),
	}
	for _, s := range specs {
		col := chosen[s.ID]
		cells := make([]string, len(raw.Rows))
		for i, rec := range raw.Rows {
			if col < len(rec) {
				cells[i] = rec[col]
			}
		}
		t.columns[s.ID] = cells
		t.source[s.ID] = raw.Header[col]
	}
	return t, nil
}

func (n *Normalizer) rank(header string, s ParameterSpec) int {
	if header == string(s.ID) {
		return rankExact
	}
	if n.mode == StrictMode {
		return rankNone
	}
	folded := fold(header)
	if folded == strings.ToLower(string(s.ID)) {
		return rankFolded
	}
	for _, a := range s.Aliases {
		if folded == a {
			return rankAlias
		}
	}
	return rankNone
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
