package msigo

import (
	"bytes"
	"sort"
	"testing"

	"github.com/FocuswithJustin/msigo/codepage"
	"github.com/FocuswithJustin/msigo/column"
	"github.com/FocuswithJustin/msigo/stringpool"
	"github.com/FocuswithJustin/msigo/summary"
)

func buildDirectory(t *testing.T) *Package {
	t.Helper()
	p := Create(InstallerPackage, codepage.Windows1252)
	err := p.CreateTable("Directory", []*column.Column{
		column.Build("Directory").PrimaryKey().String(72),
		column.Build("Directory_Parent").Nullable().String(72),
		column.Build("DefaultDir").String(255),
	})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return p
}

func mustParse(t *testing.T, text string) interface{} {
	t.Helper()
	stmt, err := ParseQuery(text)
	if err != nil {
		t.Fatalf("ParseQuery(%q): %v", text, err)
	}
	return stmt
}

func TestCreateTableRejectsDuplicateAndNoPK(t *testing.T) {
	p := Create(InstallerPackage, codepage.Windows1252)
	err := p.CreateTable("Bad", []*column.Column{
		column.Build("A").String(10),
	})
	if err == nil {
		t.Fatal("expected error for table with no primary key")
	}

	err = p.CreateTable("Good", []*column.Column{
		column.Build("A").PrimaryKey().String(10),
		column.Build("A").String(10),
	})
	if err == nil {
		t.Fatal("expected error for duplicate column name")
	}
}

func TestInsertSelectRoundTrip(t *testing.T) {
	p := buildDirectory(t)
	ins := mustParse(t, `INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('TARGETDIR', NULL, 'SourceDir')`).(*Insert)
	if err := p.InsertRows(ins); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	ins2 := mustParse(t, `INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('INSTALLDIR', 'TARGETDIR', 'MyApp')`).(*Insert)
	if err := p.InsertRows(ins2); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}

	sel := mustParse(t, `SELECT * FROM Directory WHERE Directory_Parent = 'TARGETDIR'`).(*Select)
	rows, err := p.SelectRows(sel)
	if err != nil {
		t.Fatalf("SelectRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if s, _ := rows[0][0].AsStr(); s != "INSTALLDIR" {
		t.Errorf("got %q, want INSTALLDIR", s)
	}
}

func TestUpdateAndDeleteRows(t *testing.T) {
	p := buildDirectory(t)
	for _, q := range []string{
		`INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('A', NULL, 'Foo')`,
		`INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('B', NULL, 'Bar')`,
	} {
		if err := p.InsertRows(mustParse(t, q).(*Insert)); err != nil {
			t.Fatalf("InsertRows: %v", err)
		}
	}

	upd := mustParse(t, `UPDATE Directory SET DefaultDir = 'Baz' WHERE Directory = 'A'`).(*Update)
	n, err := p.UpdateRows(upd)
	if err != nil {
		t.Fatalf("UpdateRows: %v", err)
	}
	if n != 1 {
		t.Fatalf("updated %d rows, want 1", n)
	}

	sel := mustParse(t, `SELECT DefaultDir FROM Directory WHERE Directory = 'A'`).(*Select)
	rows, err := p.SelectRows(sel)
	if err != nil {
		t.Fatalf("SelectRows: %v", err)
	}
	if got, _ := rows[0][0].AsStr(); got != "Baz" {
		t.Errorf("got %q, want Baz", got)
	}

	del := mustParse(t, `DELETE FROM Directory WHERE Directory = 'B'`).(*Delete)
	n, err = p.DeleteRows(del)
	if err != nil {
		t.Fatalf("DeleteRows: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d rows, want 1", n)
	}

	all := mustParse(t, `SELECT * FROM Directory`).(*Select)
	rows, err = p.SelectRows(all)
	if err != nil {
		t.Fatalf("SelectRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows after delete, want 1", len(rows))
	}
}

func TestJoinSelect(t *testing.T) {
	p := buildDirectory(t)
	if err := p.CreateTable("Component", []*column.Column{
		column.Build("Component").PrimaryKey().String(72),
		column.Build("Directory_").String(72),
	}); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	for _, q := range []string{
		`INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('TARGETDIR', NULL, 'SourceDir')`,
		`INSERT INTO Component (Component, Directory_) VALUES ('MyComp', 'TARGETDIR')`,
	} {
		stmt, err := ParseQuery(q)
		if err != nil {
			t.Fatalf("ParseQuery: %v", err)
		}
		if err := p.InsertRows(stmt.(*Insert)); err != nil {
			t.Fatalf("InsertRows: %v", err)
		}
	}

	sel := mustParse(t, `SELECT Component.Component, Directory.DefaultDir FROM Component INNER JOIN Directory ON Component.Directory_ = Directory.Directory`).(*Select)
	rows, err := p.SelectRows(sel)
	if err != nil {
		t.Fatalf("SelectRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	comp, _ := rows[0][0].AsStr()
	dir, _ := rows[0][1].AsStr()
	if comp != "MyComp" || dir != "SourceDir" {
		t.Errorf("got (%q, %q), want (MyComp, SourceDir)", comp, dir)
	}
}

func TestFlushAndReopenRoundTrip(t *testing.T) {
	p := buildDirectory(t)
	if err := p.InsertRows(mustParse(t, `INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('TARGETDIR', NULL, 'SourceDir')`).(*Insert)); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reopened, err := Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !reopened.HasTable("Directory") {
		t.Fatal("reopened package is missing the Directory table")
	}
	rows, err := reopened.SelectRows(mustParse(t, `SELECT * FROM Directory`).(*Select))
	if err != nil {
		t.Fatalf("SelectRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if s, _ := rows[0][0].AsStr(); s != "TARGETDIR" {
		t.Errorf("got %q, want TARGETDIR", s)
	}
}

func TestInsertRejectsDuplicatePrimaryKey(t *testing.T) {
	p := buildDirectory(t)
	ins := mustParse(t, `INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('TARGETDIR', NULL, 'SourceDir')`).(*Insert)
	if err := p.InsertRows(ins); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	dup := mustParse(t, `INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('TARGETDIR', NULL, 'Other')`).(*Insert)
	if err := p.InsertRows(dup); err == nil {
		t.Fatal("expected a Constraint error for a duplicate primary key")
	}
}

func TestInsertChecksForeignKeyValidity(t *testing.T) {
	p := buildDirectory(t)
	if err := p.CreateTable("Component", []*column.Column{
		column.Build("Component").PrimaryKey().String(72),
		column.Build("Directory_").FK("Directory", 1).String(72),
	}); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	bad := mustParse(t, `INSERT INTO Component (Component, Directory_) VALUES ('MyComp', 'TARGETDIR')`).(*Insert)
	if err := p.InsertRows(bad); err == nil {
		t.Fatal("expected a Constraint error for a foreign key with no matching row")
	}

	if err := p.InsertRows(mustParse(t, `INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('TARGETDIR', NULL, 'SourceDir')`).(*Insert)); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	good := mustParse(t, `INSERT INTO Component (Component, Directory_) VALUES ('MyComp', 'TARGETDIR')`).(*Insert)
	if err := p.InsertRows(good); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
}

func TestFlushIsIdempotentForRefcounts(t *testing.T) {
	p := buildDirectory(t)
	if err := p.InsertRows(mustParse(t, `INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('TARGETDIR', NULL, 'SourceDir')`).(*Insert)); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	refs := append([]stringpool.StringRef(nil), p.schemaRefs...)
	counts := make([]uint32, len(refs))
	for i, ref := range refs {
		counts[i] = p.pool.Refcount(ref)
	}

	if err := p.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if len(p.schemaRefs) != len(refs) {
		t.Fatalf("schemaRefs count changed: got %d, want %d", len(p.schemaRefs), len(refs))
	}
	for i, ref := range p.schemaRefs {
		if p.pool.Refcount(ref) != counts[i] {
			t.Errorf("ref %d refcount changed after a second Flush: got %d, want %d", ref, p.pool.Refcount(ref), counts[i])
		}
	}
}

func TestFlushWritesRowsInPrimaryKeyOrder(t *testing.T) {
	p := buildDirectory(t)
	for _, q := range []string{
		`INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('C', NULL, 'Third')`,
		`INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('A', NULL, 'First')`,
		`INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('B', NULL, 'Second')`,
	} {
		if err := p.InsertRows(mustParse(t, q).(*Insert)); err != nil {
			t.Fatalf("InsertRows: %v", err)
		}
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	rows := p.rows["Directory"]
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for i, want := range []string{"A", "B", "C"} {
		s, _ := rows[i][0].ToValue(p.pool).AsStr()
		if s != want {
			t.Fatalf("row %d = %q, want %q: rows were not sorted by primary key before being written", i, s, want)
		}
	}

	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	reopened, err := Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	reread := reopened.rows["Directory"]
	if len(reread) != 3 {
		t.Fatalf("got %d rows after reopen, want 3", len(reread))
	}
	for i, want := range []string{"A", "B", "C"} {
		s, _ := reread[i][0].ToValue(reopened.pool).AsStr()
		if s != want {
			t.Fatalf("reopened row %d = %q, want %q: on-disk bytes were not in primary-key order", i, s, want)
		}
	}
}

func TestTableNames(t *testing.T) {
	p := buildDirectory(t)
	if err := p.CreateTable("Component", []*column.Column{
		column.Build("Component").PrimaryKey().String(72),
	}); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	names := p.TableNames()
	sort.Strings(names)
	want := []string{"Component", "Directory"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("got %v, want %v", names, want)
	}
}

func TestSummaryInfoRoundTrip(t *testing.T) {
	p := Create(InstallerPackage, codepage.Windows1252)
	info := summary.New()
	info.SetTitle("Installation Database")
	info.SetCodepage(codepage.Windows1252)
	if err := p.SetSummaryInfo(info); err != nil {
		t.Fatalf("SetSummaryInfo: %v", err)
	}

	got, err := p.SummaryInfo()
	if err != nil {
		t.Fatalf("SummaryInfo: %v", err)
	}
	if title, ok := got.Title(); !ok || title != "Installation Database" {
		t.Errorf("Title() = %q, %v, want \"Installation Database\", true", title, ok)
	}
	if cp, ok := got.Codepage(); !ok || cp != codepage.Windows1252 {
		t.Errorf("Codepage() = %v, %v, want Windows1252, true", cp, ok)
	}
}

func TestCompactRenumbersStringPool(t *testing.T) {
	p := buildDirectory(t)
	for _, q := range []string{
		`INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('A', NULL, 'Foo')`,
		`INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('B', NULL, 'Bar')`,
		`INSERT INTO Directory (Directory, Directory_Parent, DefaultDir) VALUES ('C', NULL, 'Baz')`,
	} {
		if err := p.InsertRows(mustParse(t, q).(*Insert)); err != nil {
			t.Fatalf("InsertRows: %v", err)
		}
	}
	if _, err := p.DeleteRows(mustParse(t, `DELETE FROM Directory WHERE Directory = 'B'`).(*Delete)); err != nil {
		t.Fatalf("DeleteRows: %v", err)
	}

	if err := p.Compact(); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	reopened, err := Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rows, err := reopened.SelectRows(mustParse(t, `SELECT Directory, DefaultDir FROM Directory WHERE Directory = 'C'`).(*Select))
	if err != nil {
		t.Fatalf("SelectRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if s, _ := rows[0][1].AsStr(); s != "Baz" {
		t.Errorf("got %q, want Baz", s)
	}
}
