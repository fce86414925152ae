package csv

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/hed1ad/wqguard/pkg/water"
)

// WriteAnnotated writes t as CSV: parameter columns in declaration order,
// then each label column ("normal"/"anomaly"), then score columns.
func WriteAnnotated(w io.Writer, t *water.AnnotatedTable) error {
	cw := csv.NewWriter(w)

	params := water.Parameters()
	keys := t.LabelKeys()

	header := make([]string, 0, len(params)+2*len(keys))
	for _, p := range params {
		header = append(header, string(p))
	}
	header = append(header, keys...)

	var scoreKeys []string
	scores := make(map[string][]float64)
	for _, k := range keys {
		if s, ok := t.Scores(k); ok {
			scoreKeys = append(scoreKeys, k)
			scores[k] = s
			header = append(header, water.ScoreColumn(k))
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	values := make(map[water.Parameter][]float64, len(params))
	for _, p := range params {
		values[p] = t.Values(p)
	}
	labels := make(map[string][]water.Label, len(keys))
	for _, k := range keys {
		labels[k] = t.Labels(k)
	}

	record := make([]string, len(header))
	for i := 0; i < t.Len(); i++ {
		j := 0
		for _, p := range params {
			record[j] = formatFloat(values[p][i])
			j++
		}
		for _, k := range keys {
			record[j] = labels[k][i].String()
			j++
		}
		for _, k := range scoreKeys {
			record[j] = formatFloat(scores[k][i])
			j++
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
