package table

import (
	"sort"

	"github.com/FocuswithJustin/msigo/column"
	msierrors "github.com/FocuswithJustin/msigo/errors"
	"github.com/FocuswithJustin/msigo/stringpool"
)

// Row is a single decoded table row, fully dereferenced against a
// string pool.
type Row struct {
	table  *Table
	values []column.Value
}

// Len returns the number of columns in the row.
func (r *Row) Len() int { return len(r.values) }

// At returns the value at the given column index.
func (r *Row) At(i int) column.Value { return r.values[i] }

// Get returns the value of the named column.
func (r *Row) Get(name string) (column.Value, error) {
	i, err := r.table.IndexForColumnName(name)
	if err != nil {
		return column.Value{}, err
	}
	return r.values[i], nil
}

// Values returns the row's values in column order.
func (r *Row) Values() []column.Value { return append([]column.Value(nil), r.values...) }

// Key returns the row's primary-key tuple, in primary-key column order.
func (r *Row) Key() []column.Value {
	indices := r.table.PrimaryKeyIndices()
	key := make([]column.Value, len(indices))
	for i, idx := range indices {
		key[i] = r.values[idx]
	}
	return key
}

// compareKeys orders two primary-key tuples the way MSI sorts rows:
// lexicographically over the key columns.
func compareKeys(a, b []column.Value) int {
	for i := range a {
		if c := a[i].Compare(b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Rows is a read-only, forward-only cursor over a table's decoded rows,
// sorted by primary key.
type Rows struct {
	table *Table
	pool  *stringpool.Pool
	refs  [][]column.ValueRef
	pos   int
}

// NewRows builds a read-only cursor over rows, sorting them by primary
// key the way the database presents them to a query.
func NewRows(t *Table, pool *stringpool.Pool, refs [][]column.ValueRef) *Rows {
	sorted := append([][]column.ValueRef(nil), refs...)
	SortByPrimaryKey(t, pool, sorted)
	return &Rows{table: t, pool: pool, refs: sorted}
}

func keyOf(t *Table, pool *stringpool.Pool, row []column.ValueRef, indices []int) []column.Value {
	key := make([]column.Value, len(indices))
	for i, idx := range indices {
		key[i] = row[idx].ToValue(pool)
	}
	return key
}

// SortByPrimaryKey reorders refs in place into primary-key order, the
// order a table's data stream must hold on disk. It uses the same
// comparator NewRows applies to the copy it hands to read cursors.
func SortByPrimaryKey(t *Table, pool *stringpool.Pool, refs [][]column.ValueRef) {
	indices := t.PrimaryKeyIndices()
	sort.SliceStable(refs, func(i, j int) bool {
		ai := keyOf(t, pool, refs[i], indices)
		bj := keyOf(t, pool, refs[j], indices)
		return compareKeys(ai, bj) < 0
	})
}

// Len returns the number of rows remaining.
func (rs *Rows) Len() int { return len(rs.refs) - rs.pos }

// Next advances the cursor and returns the next row, or nil when
// exhausted.
func (rs *Rows) Next() *Row {
	if rs.pos >= len(rs.refs) {
		return nil
	}
	refs := rs.refs[rs.pos]
	rs.pos++
	values := make([]column.Value, len(refs))
	for i, ref := range refs {
		values[i] = ref.ToValue(rs.pool)
	}
	return &Row{table: rs.table, values: values}
}

// RowsMut is a mutable cursor over a table's rows. Edits made through
// Set are buffered in memory; they take effect in the table's data
// stream only when Commit is called, mirroring the package's general
// flush-on-demand model rather than committing each edit immediately.
type RowsMut struct {
	table    *Table
	pool     *stringpool.Pool
	refs     [][]column.ValueRef
	pos      int
	dirty    bool
	onCommit func([][]column.ValueRef) error
}

// NewRowsMut builds a mutable cursor over refs. onCommit is invoked by
// Commit with the (possibly edited) row set, in its original order; it
// is responsible for writing the rows back to the table's stream.
func NewRowsMut(t *Table, pool *stringpool.Pool, refs [][]column.ValueRef, onCommit func([][]column.ValueRef) error) *RowsMut {
	return &RowsMut{table: t, pool: pool, refs: refs, onCommit: onCommit}
}

// Len returns the number of rows remaining.
func (rs *RowsMut) Len() int { return len(rs.refs) - rs.pos }

// Next advances the cursor and returns the next row, or nil when
// exhausted.
func (rs *RowsMut) Next() *Row {
	if rs.pos >= len(rs.refs) {
		return nil
	}
	refs := rs.refs[rs.pos]
	rs.pos++
	values := make([]column.Value, len(refs))
	for i, ref := range refs {
		values[i] = ref.ToValue(rs.pool)
	}
	return &Row{table: rs.table, values: values}
}

// Set replaces the value of column i in the row most recently returned
// by Next, releasing any string-pool reference the old value held and
// interning the new one.
func (rs *RowsMut) Set(i int, value column.Value) error {
	if rs.pos == 0 || rs.pos > len(rs.refs) {
		return msierrors.NewConstraint("cursor", rs.table.Name(), "", "Set called with no current row")
	}
	row := rs.refs[rs.pos-1]
	if err := row[i].Remove(rs.pool); err != nil {
		return err
	}
	row[i] = column.CreateRef(value, rs.pool)
	rs.dirty = true
	return nil
}

// Delete removes the row most recently returned by Next, releasing its
// string-pool references.
func (rs *RowsMut) Delete() error {
	if rs.pos == 0 || rs.pos > len(rs.refs) {
		return msierrors.NewConstraint("cursor", rs.table.Name(), "", "Delete called with no current row")
	}
	idx := rs.pos - 1
	row := rs.refs[idx]
	for _, ref := range row {
		if err := ref.Remove(rs.pool); err != nil {
			return err
		}
	}
	rs.refs = append(rs.refs[:idx], rs.refs[idx+1:]...)
	rs.pos--
	rs.dirty = true
	return nil
}

// Commit flushes buffered edits by invoking the cursor's onCommit
// callback, if any row was modified since the cursor was created or
// last committed.
func (rs *RowsMut) Commit() error {
	if !rs.dirty {
		return nil
	}
	if rs.onCommit != nil {
		if err := rs.onCommit(rs.refs); err != nil {
			return err
		}
	}
	rs.dirty = false
	return nil
}
