package msigo

import (
	"bytes"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/msigo/codepage"
	"github.com/FocuswithJustin/msigo/column"
	msierrors "github.com/FocuswithJustin/msigo/errors"
	"github.com/FocuswithJustin/msigo/internal/cfbstore"
	"github.com/FocuswithJustin/msigo/internal/streamname"
	"github.com/FocuswithJustin/msigo/stringpool"
	"github.com/FocuswithJustin/msigo/summary"
	"github.com/FocuswithJustin/msigo/table"
)

// summaryInfoStream is the SummaryInformation stream name, carried
// verbatim (never run through streamname mangling, since it predates
// the table-stream convention and Windows Installer itself reads it
// unmangled).
const summaryInfoStream = "\x05SummaryInformation"

// PackageType selects which well-known CLSID is written at the CFB
// root, identifying the kind of installer package the file is.
type PackageType int

const (
	InstallerPackage PackageType = iota
	PatchPackage
	TransformPackage
)

// Well-known PackageType CLSIDs, as parsed uuid.UUID values rather than
// raw byte arrays.
var (
	InstallerCLSID = uuid.MustParse("000C1084-0000-0000-C000-000000000046")
	PatchCLSID     = uuid.MustParse("000C1086-0000-0000-C000-000000000046")
	TransformCLSID = uuid.MustParse("000C1082-0000-0000-C000-000000000046")
)

func (t PackageType) clsid() uuid.UUID {
	switch t {
	case PatchPackage:
		return PatchCLSID
	case TransformPackage:
		return TransformCLSID
	default:
		return InstallerCLSID
	}
}

// Package is the top-level facade over a package's CFB container,
// string pool, and table schemas. A Package owns its CfbStore
// exclusively; the core is single-threaded, and concurrent access must
// be coordinated by the caller.
type Package struct {
	store      *cfbstore.Store
	pool       *stringpool.Pool
	schemas    map[string][]*column.Column
	rows       map[string][][]column.ValueRef
	dirty      map[string]bool
	typ        PackageType
	logger     *log.Logger
	schemaRefs []stringpool.StringRef // interned by the previous flushSchema, decreffed before re-interning
}

// Option configures a Package on Open or Create.
type Option func(*Package)

// WithLogger stores logger on the Package. No operation of the package
// writes to it; the default is no logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Package) { p.logger = logger }
}

func newPackage(opts []Option) *Package {
	p := &Package{
		schemas: make(map[string][]*column.Column),
		rows:    make(map[string][][]column.ValueRef),
		dirty:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Package) logf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}

// Create builds a new, empty package of the given type and codepage.
func Create(typ PackageType, cp codepage.CodePage, opts ...Option) *Package {
	p := newPackage(opts)
	p.store = cfbstore.Create()
	p.pool = stringpool.New(cp)
	p.typ = typ
	return p
}

// Open reads an existing package from r.
func Open(r io.Reader, opts ...Option) (*Package, error) {
	p := newPackage(opts)
	store, err := cfbstore.Open(r)
	if err != nil {
		return nil, msierrors.NewNotMsi("not a compound file: " + err.Error())
	}
	p.store = store

	poolData, err := p.readSystemStream(stringpoolStream)
	if err != nil {
		return nil, msierrors.NewNotMsi("missing " + stringpoolStream + " stream")
	}
	builder, err := stringpool.ReadFromPool(bytes.NewReader(poolData))
	if err != nil {
		return nil, err
	}
	stringData, err := p.readSystemStream(stringdataStream)
	if err != nil {
		return nil, msierrors.NewNotMsi("missing " + stringdataStream + " stream")
	}
	pool, err := builder.BuildFromData(bytes.NewReader(stringData))
	if err != nil {
		return nil, err
	}
	p.pool = pool

	if err := p.loadSchema(); err != nil {
		return nil, err
	}
	for name, cols := range p.schemas {
		if cols == nil {
			continue
		}
		data, ok := p.readSystemStreamIfPresent(name)
		if !ok {
			p.rows[name] = nil
			continue
		}
		rows, err := table.New(name, cols, p.pool.LongStringRefs()).ReadRows(data)
		if err != nil {
			return nil, msierrors.NewMalformed(streamNameForTable(name), err.Error())
		}
		p.rows[name] = rows
	}

	for _, clsid := range []uuid.UUID{InstallerCLSID, PatchCLSID, TransformCLSID} {
		var raw [16]byte
		copy(raw[:], clsid[:])
		if got, err := p.store.CLSID("/"); err == nil && got == raw {
			p.typ = clsidToType(clsid)
			break
		}
	}
	return p, nil
}

func clsidToType(id uuid.UUID) PackageType {
	switch id {
	case PatchCLSID:
		return PatchPackage
	case TransformCLSID:
		return TransformPackage
	default:
		return InstallerPackage
	}
}

const (
	stringpoolStream = "_StringPool"
	stringdataStream = "_StringData"
)

// streamNameForTable returns the mangled CFB stream name holding a
// table's row data. System tables are mangled exactly like user
// tables.
func streamNameForTable(name string) string { return streamname.Encode(name, true) }

func (p *Package) readSystemStream(name string) ([]byte, error) {
	return p.store.ReadStream(streamNameForTable(name))
}

func (p *Package) readSystemStreamIfPresent(name string) ([]byte, bool) {
	data, err := p.store.ReadStream(streamNameForTable(name))
	if err != nil {
		return nil, false
	}
	return data, true
}

// HasTable reports whether name is a known user table.
func (p *Package) HasTable(name string) bool {
	if isSystemTable(name) {
		return false
	}
	_, ok := p.schemas[name]
	return ok
}

// TableNames lists every user table declared in the package, in no
// particular order.
func (p *Package) TableNames() []string {
	names := make([]string, 0, len(p.schemas))
	for name := range p.schemas {
		names = append(names, name)
	}
	return names
}

// Table returns the schema for name.
func (p *Package) Table(name string) (*table.Table, error) {
	cols, ok := p.schemas[name]
	if !ok {
		return nil, msierrors.NewSchema(name, "", "no such table")
	}
	return table.New(name, cols, p.pool.LongStringRefs()), nil
}

// CreateTable declares a new table with the given columns. At least
// one column must be marked primary key.
func (p *Package) CreateTable(name string, cols []*column.Column) error {
	if isSystemTable(name) {
		return msierrors.NewSchema(name, "", "cannot create a system table")
	}
	if _, exists := p.schemas[name]; exists {
		return msierrors.NewSchema(name, "", "table already exists")
	}
	if !streamname.IsValid(name, true) {
		return msierrors.NewSchema(name, "", "illegal table name")
	}
	hasPK := false
	seen := make(map[string]bool)
	for _, c := range cols {
		if seen[c.Name()] {
			return msierrors.NewSchema(name, c.Name(), "duplicate column name")
		}
		seen[c.Name()] = true
		if c.IsPrimaryKey() {
			hasPK = true
		}
	}
	if !hasPK {
		return msierrors.NewSchema(name, "", "table has no primary key column")
	}
	p.schemas[name] = cols
	p.rows[name] = nil
	p.dirty[name] = true
	p.dirty[tablesTable] = true
	p.dirty[columnsTable] = true
	return nil
}

// DropTable removes a table, decrefing every StringRef its rows held.
func (p *Package) DropTable(name string) error {
	cols, ok := p.schemas[name]
	if !ok {
		return msierrors.NewSchema(name, "", "no such table")
	}
	for _, row := range p.rows[name] {
		for i, ref := range row {
			if cols[i].Type().IsInt16() || cols[i].Type().IsInt32() {
				continue
			}
			if err := ref.Remove(p.pool); err != nil {
				return err
			}
		}
	}
	delete(p.schemas, name)
	delete(p.rows, name)
	delete(p.dirty, name)
	p.dirty[tablesTable] = true
	p.dirty[columnsTable] = true
	return nil
}

// SummaryInfo reads and parses the package's SummaryInformation
// property set stream.
func (p *Package) SummaryInfo() (*summary.Info, error) {
	data, err := p.store.ReadStream(summaryInfoStream)
	if err != nil {
		return nil, msierrors.NewIO("read", summaryInfoStream, err)
	}
	return summary.Read(bytes.NewReader(data))
}

// SetSummaryInfo serializes info and writes it as the package's
// SummaryInformation stream, replacing whatever was there before.
func (p *Package) SetSummaryInfo(info *summary.Info) error {
	var buf bytes.Buffer
	if err := info.WriteTo(&buf); err != nil {
		return err
	}
	if err := p.store.WriteStream(summaryInfoStream, buf.Bytes()); err != nil {
		return msierrors.NewIO("write", summaryInfoStream, err)
	}
	return nil
}

// ReadStream passes through a raw, table-unrelated stream read (cabinet
// streams, digital signatures, and similar).
func (p *Package) ReadStream(name string) ([]byte, error) {
	return p.store.ReadStream(name)
}

// WriteStream passes through a raw, table-unrelated stream write.
func (p *Package) WriteStream(name string, data []byte) error {
	return p.store.WriteStream(name, data)
}

// Compact renumbers the string pool's StringRefs to remove the gaps
// left by deleted rows and dropped tables, then rewrites every row's
// string-valued columns to the new numbering. Every user table is
// marked dirty so the next Flush rewrites them all with the compacted
// references.
func (p *Package) Compact() error {
	remap := p.pool.Compact()
	for name, cols := range p.schemas {
		rows := p.rows[name]
		for _, row := range rows {
			for i, ref := range row {
				if cols[i].Type().IsInt16() || cols[i].Type().IsInt32() {
					continue
				}
				old, ok := ref.StringRef()
				if !ok {
					continue
				}
				if next, ok := remap[old]; ok {
					row[i] = column.StrRef(next)
				}
			}
		}
		p.dirty[name] = true
	}
	return nil
}

// Flush writes every dirty stream: the string pool, the system tables,
// and every user table marked dirty since the last Flush. Flush is
// idempotent; a failure partway through may leave the underlying store
// partially updated, since CFB itself offers no transaction rollback.
func (p *Package) Flush() error {
	if err := p.flushSchema(); err != nil {
		return err
	}
	for name := range p.dirty {
		if isSystemTable(name) {
			continue
		}
		cols, ok := p.schemas[name]
		if !ok {
			continue
		}
		tbl := table.New(name, cols, p.pool.LongStringRefs())
		table.SortByPrimaryKey(tbl, p.pool, p.rows[name])
		var buf bytes.Buffer
		if err := tbl.WriteRows(&buf, p.rows[name]); err != nil {
			return msierrors.NewIO("write", streamNameForTable(name), err)
		}
		if err := p.store.WriteStream(streamNameForTable(name), buf.Bytes()); err != nil {
			return msierrors.NewIO("write", streamNameForTable(name), err)
		}
	}
	p.dirty = make(map[string]bool)

	var poolBuf, dataBuf bytes.Buffer
	if err := p.pool.WritePool(&poolBuf); err != nil {
		return err
	}
	if err := p.pool.WriteData(&dataBuf); err != nil {
		return err
	}
	if err := p.store.WriteStream(streamNameForTable(stringpoolStream), poolBuf.Bytes()); err != nil {
		return msierrors.NewIO("write", stringpoolStream, err)
	}
	if err := p.store.WriteStream(streamNameForTable(stringdataStream), dataBuf.Bytes()); err != nil {
		return msierrors.NewIO("write", stringdataStream, err)
	}
	var raw [16]byte
	clsid := p.typ.clsid()
	copy(raw[:], clsid[:])
	if err := p.store.SetCLSID("/", raw); err != nil {
		return msierrors.NewIO("set CLSID", "/", err)
	}
	return nil
}

// WriteTo serializes the package's underlying CFB container to w. Call
// Flush first to ensure pending edits are reflected.
func (p *Package) WriteTo(w io.Writer) (int64, error) {
	return p.store.WriteTo(w)
}

// flushSchema rewrites _Tables, _Columns, and _Validation from the
// current in-memory schema. Every string cell it writes is freshly
// interned, so the StringRefs interned by the previous call are
// decreffed first; otherwise every Flush would inflate every schema
// string's refcount, the same leak DropTable already avoids for
// ordinary row data by decrefing on the way out.
func (p *Package) flushSchema() error {
	longRefs := p.pool.LongStringRefs()

	for _, ref := range p.schemaRefs {
		if err := p.pool.Decref(ref); err != nil {
			return err
		}
	}
	p.schemaRefs = p.schemaRefs[:0]

	intern := func(s string) column.ValueRef {
		ref := p.pool.Incref(s)
		p.schemaRefs = append(p.schemaRefs, ref)
		return column.StrRef(ref)
	}

	var tableRows [][]column.ValueRef
	for name := range p.schemas {
		tableRows = append(tableRows, []column.ValueRef{intern(name)})
	}
	var tablesBuf bytes.Buffer
	if err := tablesSchema(longRefs).WriteRows(&tablesBuf, tableRows); err != nil {
		return err
	}
	if err := p.store.WriteStream(streamNameForTable(tablesTable), tablesBuf.Bytes()); err != nil {
		return msierrors.NewIO("write", tablesTable, err)
	}

	var columnRows [][]column.ValueRef
	for name, cols := range p.schemas {
		for i, c := range cols {
			columnRows = append(columnRows, []column.ValueRef{
				intern(name),
				column.IntRef(int32(i)),
				intern(c.Name()),
				column.IntRef(c.TypeBitfield()),
			})
		}
	}
	var columnsBuf bytes.Buffer
	if err := columnsSchema(longRefs).WriteRows(&columnsBuf, columnRows); err != nil {
		return err
	}
	if err := p.store.WriteStream(streamNameForTable(columnsTable), columnsBuf.Bytes()); err != nil {
		return msierrors.NewIO("write", columnsTable, err)
	}

	var validationRows [][]column.ValueRef
	for name, cols := range p.schemas {
		for _, c := range cols {
			nullable := "N"
			if c.IsNullable() {
				nullable = "Y"
			}
			row := []column.ValueRef{
				intern(name),
				intern(c.Name()),
				intern(nullable),
				column.NullRef(),
				column.NullRef(),
				column.NullRef(),
				column.NullRef(),
				column.NullRef(),
				column.NullRef(),
				column.NullRef(),
			}
			if fk, ok := c.ForeignKey(); ok {
				row[5] = intern(fk.Table)
				row[6] = column.IntRef(int32(fk.Column))
			}
			if cat, ok := c.Category(); ok {
				row[7] = intern(cat.String())
			}
			if values := c.ValueSet(); len(values) > 0 {
				row[8] = intern(strings.Join(values, ";"))
			}
			validationRows = append(validationRows, row)
		}
	}
	var validationBuf bytes.Buffer
	if err := validationSchema(longRefs).WriteRows(&validationBuf, validationRows); err != nil {
		return err
	}
	if err := p.store.WriteStream(streamNameForTable(validationTable), validationBuf.Bytes()); err != nil {
		return msierrors.NewIO("write", validationTable, err)
	}
	return nil
}
