package water

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyTable is returned when a table has a header but no samples.
var ErrEmptyTable = errors.New("table contains no samples")

// MissingColumnsError reports required parameters absent after normalization.
type MissingColumnsError struct {
	Missing  []Parameter
	Required []Parameter
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns %s; uploaded file must contain columns: %s",
		joinParams(e.Missing), joinParams(e.Required))
}

// InvalidInputError reports non-numeric or missing values in a required column.
// Rows holds zero-based sample indices in ascending order.
type InvalidInputError struct {
	Parameter Parameter
	Rows      []int
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("column %s has non-numeric or missing values at rows %s",
		e.Parameter, FormatRows(e.Rows))
}

// FormatRows compresses ascending row indices into ranges: "2-4, 9".
func FormatRows(rows []int) string {
	var b strings.Builder
	for i := 0; i < len(rows); {
		j := i
		for j+1 < len(rows) && rows[j+1] == rows[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(rows[i]))
		if j > i {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(rows[j]))
		}
		i = j + 1
	}
	return b.String()
}

func joinParams(ps []Parameter) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
