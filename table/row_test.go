package table

import (
	"testing"

	"github.com/FocuswithJustin/msigo/codepage"
	"github.com/FocuswithJustin/msigo/column"
	"github.com/FocuswithJustin/msigo/stringpool"
)

func sampleRefs(pool *stringpool.Pool) [][]column.ValueRef {
	return [][]column.ValueRef{
		{column.IntRef(3), column.StrRef(pool.Incref("Charlie"))},
		{column.IntRef(1), column.StrRef(pool.Incref("Alpha"))},
		{column.IntRef(2), column.StrRef(pool.Incref("Bravo"))},
	}
}

func TestRowsSortedByPrimaryKey(t *testing.T) {
	tbl := buildFooTable()
	pool := stringpool.New(codepage.Default)
	rows := NewRows(tbl, pool, sampleRefs(pool))

	if rows.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", rows.Len())
	}
	var ids []int32
	for r := rows.Next(); r != nil; r = rows.Next() {
		id, ok := r.At(0).AsInt()
		if !ok {
			t.Fatal("column 0 is not an int")
		}
		ids = append(ids, id)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("rows not sorted by primary key: %v", ids)
	}
	if rows.Next() != nil {
		t.Fatal("expected cursor exhausted")
	}
}

func TestSortByPrimaryKeyReordersInPlace(t *testing.T) {
	tbl := buildFooTable()
	pool := stringpool.New(codepage.Default)
	refs := sampleRefs(pool)

	SortByPrimaryKey(tbl, pool, refs)

	var ids []int32
	for _, row := range refs {
		id, ok := row[0].ToValue(pool).AsInt()
		if !ok {
			t.Fatal("column 0 is not an int")
		}
		ids = append(ids, id)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("refs not sorted by primary key: %v", ids)
	}
}

func TestRowGetByName(t *testing.T) {
	tbl := buildFooTable()
	pool := stringpool.New(codepage.Default)
	rows := NewRows(tbl, pool, sampleRefs(pool))

	r := rows.Next()
	name, err := r.Get("Name")
	if err != nil {
		t.Fatalf("Get(Name): %v", err)
	}
	s, ok := name.AsStr()
	if !ok || s != "Alpha" {
		t.Fatalf("Get(Name) = %v", name)
	}
}

func TestRowsMutSetCommits(t *testing.T) {
	tbl := buildFooTable()
	pool := stringpool.New(codepage.Default)
	refs := sampleRefs(pool)

	var committed [][]column.ValueRef
	rm := NewRowsMut(tbl, pool, refs, func(rows [][]column.ValueRef) error {
		committed = rows
		return nil
	})

	r := rm.Next()
	if r == nil {
		t.Fatal("expected a row")
	}
	if err := rm.Set(1, column.Str("Zulu")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := rm.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if committed == nil {
		t.Fatal("onCommit was not invoked")
	}
	got := committed[0][1].ToValue(pool)
	s, ok := got.AsStr()
	if !ok || s != "Zulu" {
		t.Fatalf("committed value = %v", got)
	}
}

func TestRowsMutCommitNoopWhenClean(t *testing.T) {
	tbl := buildFooTable()
	pool := stringpool.New(codepage.Default)
	refs := sampleRefs(pool)

	called := false
	rm := NewRowsMut(tbl, pool, refs, func(rows [][]column.ValueRef) error {
		called = true
		return nil
	})
	rm.Next()
	if err := rm.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if called {
		t.Fatal("onCommit should not be invoked when nothing changed")
	}
}

func TestRowsMutDelete(t *testing.T) {
	tbl := buildFooTable()
	pool := stringpool.New(codepage.Default)
	refs := sampleRefs(pool)

	rm := NewRowsMut(tbl, pool, refs, func(rows [][]column.ValueRef) error { return nil })
	rm.Next()
	if err := rm.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if rm.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rm.Len())
	}
}

func TestRowsMutSetWithoutNextFails(t *testing.T) {
	tbl := buildFooTable()
	pool := stringpool.New(codepage.Default)
	rm := NewRowsMut(tbl, pool, sampleRefs(pool), nil)
	if err := rm.Set(0, column.Int(9)); err == nil {
		t.Fatal("expected an error calling Set before Next")
	}
}
