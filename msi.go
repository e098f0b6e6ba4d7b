// Package msigo reads and writes Windows Installer (MSI) package files:
// a relational database of tables, serialized as named streams inside a
// Compound File Binary container.
//
// The public surface is small by design: Open/Create a Package, declare
// or inspect Table schemas, and run queries written in the dialect
// implemented by the query package. The on-disk encoding (string
// pooling, column-major row packing, CFB stream naming) is handled
// internally and is not part of the API contract.
package msigo

import (
	"github.com/FocuswithJustin/msigo/column"
	"github.com/FocuswithJustin/msigo/query"
	"github.com/FocuswithJustin/msigo/table"
)

// Re-exported types so callers need only import this package for the
// common case.
type (
	Value      = column.Value
	Column     = column.Column
	Category   = column.Category
	Row        = table.Row
	Rows       = table.Rows
	RowsMut    = table.RowsMut
	Select     = query.Select
	Insert     = query.Insert
	Update     = query.Update
	Delete     = query.Delete
)

// ParseQuery parses a single statement of the query dialect.
func ParseQuery(text string) (query.Statement, error) { return query.ParseStatement(text) }

// SelectAll builds the `SELECT * FROM table` statement, for callers
// that want every row and column of a table without going through the
// query parser.
func SelectAll(table string) *Select {
	return &Select{Columns: []query.SelectItem{{Star: true}}, Table: table}
}
