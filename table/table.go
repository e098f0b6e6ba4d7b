// Package table implements the MSI database table model: column lists,
// the column-major row codec used by each table's data stream, and
// cursors over decoded rows.
package table

import (
	"io"

	"github.com/FocuswithJustin/msigo/column"
	msierrors "github.com/FocuswithJustin/msigo/errors"
	"github.com/FocuswithJustin/msigo/internal/streamname"
)

// Table describes a database table: its name, ordered column list, and
// the string-ref width used by its row data stream.
type Table struct {
	name           string
	columns        []*column.Column
	longStringRefs bool
}

// New returns a table with the given name and columns.
func New(name string, columns []*column.Column, longStringRefs bool) *Table {
	return &Table{name: name, columns: columns, longStringRefs: longStringRefs}
}

// Name returns the table's name.
func (t *Table) Name() string { return t.name }

// StreamName returns the mangled CFB stream name holding this table's
// row data.
func (t *Table) StreamName() string { return streamname.Encode(t.name, true) }

// Columns returns the table's columns, in on-disk order.
func (t *Table) Columns() []*column.Column { return t.columns }

// PrimaryKeyIndices returns the indices of the table's primary key
// columns, in column order.
func (t *Table) PrimaryKeyIndices() []int {
	var out []int
	for i, c := range t.columns {
		if c.IsPrimaryKey() {
			out = append(out, i)
		}
	}
	return out
}

// IndexForColumnName returns the index of the named column.
func (t *Table) IndexForColumnName(name string) (int, error) {
	for i, c := range t.columns {
		if c.Name() == name {
			return i, nil
		}
	}
	return -1, msierrors.NewSchema(t.name, name, "no such column")
}

func (t *Table) rowWidth() int {
	width := 0
	for _, c := range t.columns {
		width += c.Type().Width(t.longStringRefs)
	}
	return width
}

// ReadRows decodes every row from a table's data stream. The data is
// stored column-major: every row's value for column 0, then every row's
// value for column 1, and so on.
func (t *Table) ReadRows(data []byte) ([][]column.ValueRef, error) {
	width := t.rowWidth()
	numRows := 0
	if width > 0 {
		if len(data)%width != 0 {
			return nil, msierrors.NewMalformed(t.StreamName(), "row data length is not a multiple of row width")
		}
		numRows = len(data) / width
	} else if len(data) != 0 {
		return nil, msierrors.NewMalformed(t.StreamName(), "row data present for a zero-width table")
	}
	rows := make([][]column.ValueRef, numRows)
	for i := range rows {
		rows[i] = make([]column.ValueRef, len(t.columns))
	}
	r := newByteReader(data)
	for ci, c := range t.columns {
		typ := c.Type()
		for i := 0; i < numRows; i++ {
			v, err := typ.ReadValue(r, t.longStringRefs)
			if err != nil {
				return nil, msierrors.NewMalformed(t.StreamName(), "truncated row data")
			}
			rows[i][ci] = v
		}
	}
	return rows, nil
}

// WriteRows encodes rows (column-major) to w.
func (t *Table) WriteRows(w io.Writer, rows [][]column.ValueRef) error {
	for ci, c := range t.columns {
		typ := c.Type()
		for _, row := range rows {
			if err := typ.WriteValue(w, row[ci], t.longStringRefs); err != nil {
				return err
			}
		}
	}
	return nil
}

// byteReader is a minimal io.Reader over an in-memory slice; used
// instead of bytes.Reader so ReadRows has no extra import beyond io.
type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader { return &byteReader{data: data} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
