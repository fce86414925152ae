// Package csv reads delimited sensor uploads and writes annotated tables.
package csv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hed1ad/wqguard/pkg/water"
)

// Reader reads a delimited file with a header row.
type Reader struct {
	src       io.Reader
	closer    io.Closer
	delimiter rune
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithDelimiter fixes the field delimiter. Without it the delimiter is
// sniffed from the header line among ',', ';' and tab.
func WithDelimiter(d rune) Option {
	return func(r *Reader) {
		r.delimiter = d
	}
}

// NewReader creates a reader over an open stream, such as an upload.
func NewReader(src io.Reader, opts ...Option) *Reader {
	r := &Reader{src: src}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open creates a reader for a file on disk.
func Open(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	r := NewReader(file, opts...)
	r.closer = file
	return r, nil
}

// ReadTable reads the header and every record. Records are returned as
// uploaded; a record with the wrong number of fields is an error, never
// skipped.
func (r *Reader) ReadTable() (water.RawTable, error) {
	br := bufio.NewReader(r.src)

	delim := r.delimiter
	if delim == 0 {
		head, _ := br.Peek(4096)
		delim = sniffDelimiter(head)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return water.RawTable{}, errors.New("file is empty: a header row is required")
	}
	if err != nil {
		return water.RawTable{}, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.TrimSpace(h)
	}

	table := water.RawTable{Header: header}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return water.RawTable{}, fmt.Errorf("read record: %w", err)
		}
		table.Rows = append(table.Rows, record)
	}

	return table, nil
}

// Close releases the underlying file, if the reader opened one.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// sniffDelimiter picks the most frequent candidate in the first line.
func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(head, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
