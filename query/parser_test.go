package query

import (
	"errors"
	"testing"

	msierrors "github.com/FocuswithJustin/msigo/errors"
)

func TestParseSimpleSelect(t *testing.T) {
	stmt, err := ParseStatement("SELECT * FROM Foo WHERE Id >= 2")
	if err != nil {
		t.Fatalf("ParseStatement: %v", err)
	}
	sel, ok := stmt.(*Select)
	if !ok {
		t.Fatalf("got %T, want *Select", stmt)
	}
	if sel.Table != "Foo" || len(sel.Columns) != 1 || !sel.Columns[0].Star {
		t.Fatalf("unexpected select: %+v", sel)
	}
	bin, ok := sel.Where.(*Binary)
	if !ok || bin.Op != TK_GE {
		t.Fatalf("unexpected where clause: %+v", sel.Where)
	}
}

func TestParseSelectWithJoin(t *testing.T) {
	stmt, err := ParseStatement("SELECT A.Id, B.Val FROM A LEFT JOIN B ON A.Id = B.Id WHERE A.Id = 7")
	if err != nil {
		t.Fatalf("ParseStatement: %v", err)
	}
	sel := stmt.(*Select)
	if len(sel.Columns) != 2 {
		t.Fatalf("got %d select items, want 2", len(sel.Columns))
	}
	if len(sel.Joins) != 1 || sel.Joins[0].Kind != LeftJoin || sel.Joins[0].Table != "B" {
		t.Fatalf("unexpected joins: %+v", sel.Joins)
	}
}

func TestParseNonAssociativeComparisonIsError(t *testing.T) {
	_, err := ParseStatement("SELECT * FROM T WHERE x = 1 = 2")
	if err == nil {
		t.Fatal("expected a parse error for a chained comparison")
	}
	var qerr *msierrors.QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected a *errors.QueryError, got %T: %v", err, err)
	}
}

func TestParseInsert(t *testing.T) {
	stmt, err := ParseStatement("INSERT INTO Foo (Id, Name) VALUES (1, 'alpha')")
	if err != nil {
		t.Fatalf("ParseStatement: %v", err)
	}
	ins := stmt.(*Insert)
	if ins.Table != "Foo" || len(ins.Columns) != 2 || len(ins.Values) != 2 {
		t.Fatalf("unexpected insert: %+v", ins)
	}
	if ins.Columns[0] != "Id" || ins.Columns[1] != "Name" {
		t.Fatalf("unexpected columns: %v", ins.Columns)
	}
}

func TestParseInsertWithoutColumnList(t *testing.T) {
	stmt, err := ParseStatement("INSERT INTO Foo VALUES (1, NULL, 'beta')")
	if err != nil {
		t.Fatalf("ParseStatement: %v", err)
	}
	ins := stmt.(*Insert)
	if len(ins.Columns) != 0 || len(ins.Values) != 3 {
		t.Fatalf("unexpected insert: %+v", ins)
	}
}

func TestParseUpdate(t *testing.T) {
	stmt, err := ParseStatement("UPDATE Foo SET Name = 'a' WHERE Id = 2")
	if err != nil {
		t.Fatalf("ParseStatement: %v", err)
	}
	upd := stmt.(*Update)
	if upd.Table != "Foo" || len(upd.Assignments) != 1 || upd.Assignments[0].Column != "Name" {
		t.Fatalf("unexpected update: %+v", upd)
	}
}

func TestParseDelete(t *testing.T) {
	stmt, err := ParseStatement("DELETE FROM Foo")
	if err != nil {
		t.Fatalf("ParseStatement: %v", err)
	}
	del := stmt.(*Delete)
	if del.Table != "Foo" || del.Where != nil {
		t.Fatalf("unexpected delete: %+v", del)
	}
}

func TestParseOptionalTrailingSemicolon(t *testing.T) {
	if _, err := ParseStatement("DELETE FROM Foo;"); err != nil {
		t.Fatalf("ParseStatement: %v", err)
	}
}

func TestParsePrecedence(t *testing.T) {
	// AND binds tighter than OR: `a OR b AND c` parses as `a OR (b AND c)`.
	stmt, err := ParseStatement("SELECT * FROM T WHERE A = 1 OR B = 2 AND C = 3")
	if err != nil {
		t.Fatalf("ParseStatement: %v", err)
	}
	sel := stmt.(*Select)
	top, ok := sel.Where.(*Binary)
	if !ok || top.Op != TK_OR {
		t.Fatalf("expected top-level OR, got %+v", sel.Where)
	}
	right, ok := top.R.(*Binary)
	if !ok || right.Op != TK_AND {
		t.Fatalf("expected AND on the right of OR, got %+v", top.R)
	}
}

func TestParseUnexpectedTrailingInput(t *testing.T) {
	if _, err := ParseStatement("DELETE FROM Foo garbage"); err == nil {
		t.Fatal("expected an error for trailing input")
	}
}
