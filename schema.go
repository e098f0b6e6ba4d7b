package msigo

import (
	"sort"
	"strings"

	"github.com/FocuswithJustin/msigo/column"
	"github.com/FocuswithJustin/msigo/table"
)

// System table names. Despite being the package's own bookkeeping
// tables, these are mangled into CFB stream names exactly like any
// user table (see internal/streamname's doc comment).
const (
	tablesTable     = "_Tables"
	columnsTable    = "_Columns"
	validationTable = "_Validation"
)

func tablesSchema(longRefs bool) *table.Table {
	return table.New(tablesTable, []*column.Column{
		column.Build("Name").PrimaryKey().String(64),
	}, longRefs)
}

func columnsSchema(longRefs bool) *table.Table {
	return table.New(columnsTable, []*column.Column{
		column.Build("Table").PrimaryKey().String(64),
		column.Build("Number").PrimaryKey().Int16(),
		column.Build("Name").String(64),
		column.Build("Type").Int16(),
	}, longRefs)
}

func validationSchema(longRefs bool) *table.Table {
	return table.New(validationTable, []*column.Column{
		column.Build("Table").PrimaryKey().String(64),
		column.Build("Column").PrimaryKey().String(64),
		column.Build("Nullable").String(4),
		column.Build("MinValue").Nullable().Int32(),
		column.Build("MaxValue").Nullable().Int32(),
		column.Build("KeyTable").Nullable().String(64),
		column.Build("KeyColumn").Nullable().Int16(),
		column.Build("Category").Nullable().String(32),
		column.Build("Set").Nullable().String(255),
		column.Build("Description").Nullable().String(255),
	}, longRefs)
}

// isSystemTable reports whether name is one of the package's own
// bookkeeping tables, which callers may not create, drop, or query
// directly as ordinary tables.
func isSystemTable(name string) bool {
	return name == tablesTable || name == columnsTable || name == validationTable
}

type columnEntry struct {
	number int32
	col    *column.Column
}

// loadSchema reconstructs every table's column list from the _Tables,
// _Columns, and _Validation streams.
func (p *Package) loadSchema() error {
	longRefs := p.pool.LongStringRefs()

	tablesData, err := p.readSystemStream(tablesTable)
	if err != nil {
		return err
	}
	tablesRefs, err := tablesSchema(longRefs).ReadRows(tablesData)
	if err != nil {
		return err
	}
	names := make(map[string]bool)
	for _, row := range tablesRefs {
		s, _ := row[0].ToValue(p.pool).AsStr()
		names[s] = true
	}

	columnsData, err := p.readSystemStream(columnsTable)
	if err != nil {
		return err
	}
	columnsRefs, err := columnsSchema(longRefs).ReadRows(columnsData)
	if err != nil {
		return err
	}
	byTable := make(map[string][]columnEntry)
	for _, row := range columnsRefs {
		tableName, _ := row[0].ToValue(p.pool).AsStr()
		number, _ := row[1].ToValue(p.pool).AsInt()
		colName, _ := row[2].ToValue(p.pool).AsStr()
		typeBits, _ := row[3].ToValue(p.pool).AsInt()
		col, err := column.FromBitfield(colName, typeBits)
		if err != nil {
			return err
		}
		byTable[tableName] = append(byTable[tableName], columnEntry{number: number, col: col})
	}
	for name, entries := range byTable {
		sort.Slice(entries, func(i, j int) bool { return entries[i].number < entries[j].number })
		cols := make([]*column.Column, len(entries))
		for i, e := range entries {
			cols[i] = e.col
		}
		p.schemas[name] = cols
	}

	if validationData, ok := p.readSystemStreamIfPresent(validationTable); ok {
		if err := p.loadValidation(validationData, longRefs); err != nil {
			return err
		}
	}

	for name := range names {
		if _, ok := p.schemas[name]; !ok {
			p.schemas[name] = nil
		}
	}
	return nil
}

func (p *Package) loadValidation(data []byte, longRefs bool) error {
	rows, err := validationSchema(longRefs).ReadRows(data)
	if err != nil {
		return err
	}
	for _, row := range rows {
		tableName, _ := row[0].ToValue(p.pool).AsStr()
		colName, _ := row[1].ToValue(p.pool).AsStr()
		keyTableVal := row[5].ToValue(p.pool)
		keyColumnVal := row[6].ToValue(p.pool)
		categoryVal := row[7].ToValue(p.pool)
		setVal := row[8].ToValue(p.pool)
		for _, c := range p.schemas[tableName] {
			if c.Name() != colName {
				continue
			}
			if s, ok := categoryVal.AsStr(); ok && s != "" {
				if cat, err := column.ParseCategory(s); err == nil {
					c.SetCategory(cat)
				}
			}
			if s, ok := setVal.AsStr(); ok && s != "" {
				c.SetValueSet(strings.Split(s, ";"))
			}
			if kt, ok := keyTableVal.AsStr(); ok && kt != "" {
				if kc, ok := keyColumnVal.AsInt(); ok {
					c.SetForeignKey(column.ForeignKey{Table: kt, Column: int(kc)})
				}
			}
		}
	}
	return nil
}
