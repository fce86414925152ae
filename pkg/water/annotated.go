package water

import (
	"encoding/json"
	"fmt"
)

// Label is the outcome of scoring one sample.
type Label uint8

const (
	Normal Label = iota
	Anomaly
)

func (l Label) String() string {
	if l == Anomaly {
		return "anomaly"
	}
	return "normal"
}

// MarshalText renders the label as "normal" or "anomaly".
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Variant is the model layout active for a deployment.
type Variant int

const (
	PerParameter Variant = iota + 1
	Joint
)

func (v Variant) String() string {
	switch v {
	case PerParameter:
		return "per_parameter"
	case Joint:
		return "joint"
	default:
		return "unknown"
	}
}

// MarshalText renders the variant name.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ParseVariant accepts "per_parameter" or "joint".
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "per_parameter":
		return PerParameter, nil
	case "joint":
		return Joint, nil
	}
	return 0, fmt.Errorf("unknown variant %q", s)
}

// AnnotatedTable is a sensor table plus anomaly label columns. It is built
// once per run by NewAnnotatedTable and only read afterwards; accessors
// return copies.
type AnnotatedTable struct {
	variant Variant
	rows    int
	values  map[Parameter][]float64
	keys    []string
	labels  map[string][]Label
	scores  map[string][]float64
}

// ScoredColumn is one scored label column handed to NewAnnotatedTable.
type ScoredColumn struct {
	Key    string
	Labels []Label
	// Scores is optional; nil when the model exposes no continuous score.
	Scores []float64
}

// NewAnnotatedTable assembles an annotated table. values must hold every
// required parameter and every column must have the same length.
func NewAnnotatedTable(variant Variant, values map[Parameter][]float64, cols []ScoredColumn) (*AnnotatedTable, error) {
	rows := -1
	t := &AnnotatedTable{
		variant: variant,
		values:  make(map[Parameter][]float64, len(values)),
		labels:  make(map[string][]Label, len(cols)),
		scores:  make(map[string][]float64, len(cols)),
	}
	for _, p := range Parameters() {
		v, ok := values[p]
		if !ok {
			return nil, fmt.Errorf("annotated table: missing values for %s", p)
		}
		if rows >= 0 && len(v) != rows {
			return nil, fmt.Errorf("annotated table: column %s has %d rows, want %d", p, len(v), rows)
		}
		rows = len(v)
		t.values[p] = append([]float64(nil), v...)
	}
	for _, c := range cols {
		if len(c.Labels) != rows {
			return nil, fmt.Errorf("annotated table: column %s has %d labels, want %d", c.Key, len(c.Labels), rows)
		}
		if _, dup := t.labels[c.Key]; dup {
			return nil, fmt.Errorf("annotated table: duplicate column %s", c.Key)
		}
		t.keys = append(t.keys, c.Key)
		t.labels[c.Key] = append([]Label(nil), c.Labels...)
		if c.Scores != nil {
			if len(c.Scores) != rows {
				return nil, fmt.Errorf("annotated table: column %s has %d scores, want %d", c.Key, len(c.Scores), rows)
			}
			t.scores[c.Key] = append([]float64(nil), c.Scores...)
		}
	}
	t.rows = rows
	return t, nil
}

// Variant returns the model layout that produced the labels.
func (t *AnnotatedTable) Variant() Variant { return t.variant }

// Len returns the number of samples.
func (t *AnnotatedTable) Len() int { return t.rows }

// Values returns a copy of the values of parameter p.
func (t *AnnotatedTable) Values(p Parameter) []float64 {
	return append([]float64(nil), t.values[p]...)
}

// LabelKeys returns the label column keys in scoring order.
func (t *AnnotatedTable) LabelKeys() []string {
	return append([]string(nil), t.keys...)
}

// Labels returns a copy of the label column key, or nil if it does not exist.
func (t *AnnotatedTable) Labels(key string) []Label {
	l, ok := t.labels[key]
	if !ok {
		return nil
	}
	return append([]Label(nil), l...)
}

// Scores returns a copy of the continuous scores of label column key.
func (t *AnnotatedTable) Scores(key string) ([]float64, bool) {
	s, ok := t.scores[key]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), s...), true
}

// LabelKeyFor returns the label column that applies to parameter p.
func (t *AnnotatedTable) LabelKeyFor(p Parameter) string {
	if t.variant == Joint {
		return AnomalyColumn
	}
	return LabelColumn(p)
}

// AnomalyCount is one entry of an AnomalySummary.
type AnomalyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// AnomalySummary maps each label column key to its anomaly count, in the
// order the columns were scored.
type AnomalySummary []AnomalyCount

// Count returns the anomaly count for key, zero when absent.
func (s AnomalySummary) Count(key string) int {
	for _, c := range s {
		if c.Key == key {
			return c.Count
		}
	}
	return 0
}

// Total sums all counts.
func (s AnomalySummary) Total() int {
	n := 0
	for _, c := range s {
		n += c.Count
	}
	return n
}

type annotatedJSON struct {
	Variant Variant                 `json:"variant"`
	Rows    int                     `json:"rows"`
	Values  map[Parameter][]float64 `json:"values"`
	Labels  map[string][]Label      `json:"labels"`
	Scores  map[string][]float64    `json:"scores,omitempty"`
}

// MarshalJSON encodes the table column-wise.
func (t *AnnotatedTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(annotatedJSON{
		Variant: t.variant,
		Rows:    t.rows,
		Values:  t.values,
		Labels:  t.labels,
		Scores:  t.scores,
	})
}
