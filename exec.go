package msigo

import (
	"github.com/FocuswithJustin/msigo/column"
	msierrors "github.com/FocuswithJustin/msigo/errors"
	"github.com/FocuswithJustin/msigo/query"
	"github.com/FocuswithJustin/msigo/table"
)

// joinedRow holds one decoded Row per table name participating in a
// (possibly joined) SELECT. A nil entry means the table's side of a
// LEFT JOIN had no match for this result row.
type joinedRow map[string]*table.Row

// rowEnv adapts a joinedRow to query.Env, resolving a (possibly
// table-qualified) column reference against whichever participating
// table carries it.
type rowEnv struct {
	rows joinedRow
}

func (e rowEnv) Lookup(tableName, col string) (column.Value, error) {
	if tableName != "" {
		row, ok := e.rows[tableName]
		if !ok {
			return column.Value{}, msierrors.NewQuery("", -1, "no such table in query: "+tableName)
		}
		if row == nil {
			return column.Null(), nil
		}
		return row.Get(col)
	}
	var found *table.Row
	count := 0
	for _, row := range e.rows {
		if row == nil {
			continue
		}
		if _, err := row.Get(col); err == nil {
			found = row
			count++
		}
	}
	if count == 0 {
		return column.Value{}, msierrors.NewQuery("", -1, "no such column: "+col)
	}
	if count > 1 {
		return column.Value{}, msierrors.NewQuery("", -1, "ambiguous column: "+col)
	}
	return found.Get(col)
}

func (p *Package) cursor(name string) (*table.Rows, error) {
	tbl, err := p.Table(name)
	if err != nil {
		return nil, err
	}
	return table.NewRows(tbl, p.pool, p.rows[name]), nil
}

func (p *Package) allRows(name string) ([]*table.Row, error) {
	cur, err := p.cursor(name)
	if err != nil {
		return nil, err
	}
	var out []*table.Row
	for row := cur.Next(); row != nil; row = cur.Next() {
		out = append(out, row)
	}
	return out, nil
}

// joinRows evaluates the FROM/JOIN clauses of a Select into the full
// set of candidate joinedRows, before WHERE filtering.
func (p *Package) joinRows(sel *query.Select) ([]joinedRow, error) {
	base, err := p.allRows(sel.Table)
	if err != nil {
		return nil, err
	}
	results := make([]joinedRow, 0, len(base))
	for _, row := range base {
		results = append(results, joinedRow{sel.Table: row})
	}
	for _, j := range sel.Joins {
		other, err := p.allRows(j.Table)
		if err != nil {
			return nil, err
		}
		var next []joinedRow
		for _, left := range results {
			matched := false
			for _, right := range other {
				candidate := cloneJoinedRow(left)
				candidate[j.Table] = right
				ok, err := evalBool(j.On, rowEnv{rows: candidate})
				if err != nil {
					return nil, err
				}
				if ok {
					next = append(next, candidate)
					matched = true
				}
			}
			if !matched && j.Kind == query.LeftJoin {
				candidate := cloneJoinedRow(left)
				candidate[j.Table] = nil
				next = append(next, candidate)
			}
		}
		results = next
	}
	return results, nil
}

func cloneJoinedRow(r joinedRow) joinedRow {
	out := make(joinedRow, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

func evalBool(expr query.Expr, env query.Env) (bool, error) {
	if expr == nil {
		return true, nil
	}
	v, err := query.Eval(expr, env)
	if err != nil {
		return false, err
	}
	return v.ToBool(), nil
}

// tableColumns lists name, in schema order, for name's columns.
func (p *Package) tableColumns(name string) ([]string, error) {
	tbl, err := p.Table(name)
	if err != nil {
		return nil, err
	}
	cols := tbl.Columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name()
	}
	return out, nil
}

// SelectColumnNames reports the display name of each value SelectRows
// returns for sel, in the same order.
func (p *Package) SelectColumnNames(sel *query.Select) ([]string, error) {
	tableOrder := []string{sel.Table}
	for _, j := range sel.Joins {
		tableOrder = append(tableOrder, j.Table)
	}
	var names []string
	for _, item := range sel.Columns {
		if item.Star {
			for _, t := range tableOrder {
				cols, err := p.tableColumns(t)
				if err != nil {
					return nil, err
				}
				names = append(names, cols...)
			}
			continue
		}
		if ref, ok := item.Expr.(query.ColumnRef); ok {
			names = append(names, ref.Column)
			continue
		}
		names = append(names, "?")
	}
	return names, nil
}

// SelectRows runs a parsed SELECT, returning one []column.Value per
// result row, in Columns order. A `*` SelectItem expands to every
// column of every participating table, in FROM/JOIN order; the query
// parser accepts no table-qualified `T.*` form.
func (p *Package) SelectRows(sel *query.Select) ([][]column.Value, error) {
	candidates, err := p.joinRows(sel)
	if err != nil {
		return nil, err
	}
	tableOrder := []string{sel.Table}
	for _, j := range sel.Joins {
		tableOrder = append(tableOrder, j.Table)
	}

	var out [][]column.Value
	for _, cand := range candidates {
		env := rowEnv{rows: cand}
		ok, err := evalBool(sel.Where, env)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var resultRow []column.Value
		for _, item := range sel.Columns {
			if item.Star {
				for _, t := range tableOrder {
					names, err := p.tableColumns(t)
					if err != nil {
						return nil, err
					}
					row := cand[t]
					for _, n := range names {
						if row == nil {
							resultRow = append(resultRow, column.Null())
							continue
						}
						v, err := row.Get(n)
						if err != nil {
							return nil, err
						}
						resultRow = append(resultRow, v)
					}
				}
				continue
			}
			v, err := query.Eval(item.Expr, env)
			if err != nil {
				return nil, err
			}
			resultRow = append(resultRow, v)
		}
		out = append(out, resultRow)
	}
	return out, nil
}

// InsertRows runs a parsed INSERT, appending one row built from ins's
// Values (positional, or named via Columns) to the target table.
func (p *Package) InsertRows(ins *query.Insert) error {
	tbl, err := p.Table(ins.Table)
	if err != nil {
		return err
	}
	cols := tbl.Columns()
	values := make([]column.Value, len(cols))
	for i := range values {
		values[i] = column.Null()
	}

	if len(ins.Columns) == 0 {
		if len(ins.Values) != len(cols) {
			return msierrors.NewConstraint("insert", ins.Table, "", "value count does not match column count")
		}
		for i, expr := range ins.Values {
			v, err := query.Eval(expr, rowEnv{})
			if err != nil {
				return err
			}
			values[i] = v
		}
	} else {
		if len(ins.Columns) != len(ins.Values) {
			return msierrors.NewConstraint("insert", ins.Table, "", "column count does not match value count")
		}
		for i, name := range ins.Columns {
			idx, err := tbl.IndexForColumnName(name)
			if err != nil {
				return err
			}
			v, err := query.Eval(ins.Values[i], rowEnv{})
			if err != nil {
				return err
			}
			values[idx] = v
		}
	}

	for i, c := range cols {
		if !c.IsValidValue(values[i]) {
			return msierrors.NewConstraint("insert", ins.Table, c.Name(), "illegal value for column")
		}
	}
	if err := p.checkPrimaryKeyUnique(tbl, ins.Table, values); err != nil {
		return err
	}
	if err := p.checkForeignKeys(tbl, ins.Table, values); err != nil {
		return err
	}

	refs := make([]column.ValueRef, len(cols))
	for i := range cols {
		refs[i] = column.CreateRef(values[i], p.pool)
	}
	p.rows[ins.Table] = append(p.rows[ins.Table], refs)
	p.dirty[ins.Table] = true
	return nil
}

// checkPrimaryKeyUnique reports a Constraint error if values's primary
// key columns collide with an existing row's.
func (p *Package) checkPrimaryKeyUnique(tbl *table.Table, tableName string, values []column.Value) error {
	pk := tbl.PrimaryKeyIndices()
	if len(pk) == 0 {
		return nil
	}
	for _, row := range p.rows[tableName] {
		same := true
		for _, idx := range pk {
			if !row[idx].ToValue(p.pool).Equal(values[idx]) {
				same = false
				break
			}
		}
		if same {
			return msierrors.NewConstraint("insert", tableName, "", "duplicate primary key")
		}
	}
	return nil
}

// checkForeignKeys reports a Constraint error if any of values's
// foreign-key columns does not match a live row's referenced primary
// key column.
func (p *Package) checkForeignKeys(tbl *table.Table, tableName string, values []column.Value) error {
	for i, c := range tbl.Columns() {
		fk, ok := c.ForeignKey()
		if !ok || values[i].IsNull() {
			continue
		}
		if err := p.checkForeignKey(tableName, c.Name(), fk, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Package) checkForeignKey(tableName, columnName string, fk column.ForeignKey, value column.Value) error {
	refCols, ok := p.schemas[fk.Table]
	if !ok {
		return msierrors.NewConstraint("insert", tableName, columnName, "foreign key references unknown table "+fk.Table)
	}
	refTbl := table.New(fk.Table, refCols, p.pool.LongStringRefs())
	pk := refTbl.PrimaryKeyIndices()
	if fk.Column < 1 || fk.Column > len(pk) {
		return msierrors.NewConstraint("insert", tableName, columnName, "foreign key references an invalid key column")
	}
	targetIdx := pk[fk.Column-1]
	for _, row := range p.rows[fk.Table] {
		if row[targetIdx].ToValue(p.pool).Equal(value) {
			return nil
		}
	}
	return msierrors.NewConstraint("insert", tableName, columnName, "foreign key value not present in "+fk.Table)
}

func (p *Package) mutCursor(name string) (*table.RowsMut, error) {
	tbl, err := p.Table(name)
	if err != nil {
		return nil, err
	}
	return table.NewRowsMut(tbl, p.pool, p.rows[name], func(refs [][]column.ValueRef) error {
		p.rows[name] = refs
		p.dirty[name] = true
		return nil
	}), nil
}

// UpdateRows runs a parsed UPDATE, applying upd's assignments to every
// row matching its WHERE clause.
func (p *Package) UpdateRows(upd *query.Update) (int, error) {
	tbl, err := p.Table(upd.Table)
	if err != nil {
		return 0, err
	}
	cur, err := p.mutCursor(upd.Table)
	if err != nil {
		return 0, err
	}
	count := 0
	for row := cur.Next(); row != nil; row = cur.Next() {
		ok, err := evalBool(upd.Where, rowEnv{rows: joinedRow{upd.Table: row}})
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		for _, assign := range upd.Assignments {
			idx, err := tbl.IndexForColumnName(assign.Column)
			if err != nil {
				return 0, err
			}
			v, err := query.Eval(assign.Value, rowEnv{rows: joinedRow{upd.Table: row}})
			if err != nil {
				return 0, err
			}
			if !tbl.Columns()[idx].IsValidValue(v) {
				return 0, msierrors.NewConstraint("update", upd.Table, assign.Column, "illegal value for column")
			}
			if err := cur.Set(idx, v); err != nil {
				return 0, err
			}
		}
		count++
	}
	if err := cur.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteRows runs a parsed DELETE, removing every row matching del's
// WHERE clause.
func (p *Package) DeleteRows(del *query.Delete) (int, error) {
	cur, err := p.mutCursor(del.Table)
	if err != nil {
		return 0, err
	}
	count := 0
	for row := cur.Next(); row != nil; row = cur.Next() {
		ok, err := evalBool(del.Where, rowEnv{rows: joinedRow{del.Table: row}})
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		if err := cur.Delete(); err != nil {
			return 0, err
		}
		count++
	}
	if err := cur.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
