// Package column implements the MSI database column model: data types,
// the bit-packed _Columns.Type codec, string category validation, and
// dereferenced/indirect cell values.
package column

import (
	"encoding/binary"
	"fmt"
	"io"

	msierrors "github.com/FocuswithJustin/msigo/errors"
	"github.com/FocuswithJustin/msigo/stringpool"
)

const (
	fieldSizeMask   = 0xff
	localizableBit  = 0x200
	stringBit       = 0x800
	nullableBit     = 0x1000
	primaryKeyBit   = 0x2000
)

// Type identifies the storage class of a column: a fixed-width integer,
// or a string with an optional maximum length.
type Type struct {
	kind      typeKind
	maxLength int // only meaningful when kind == typeStr; 0 means unbounded
}

type typeKind int

const (
	typeInt16 typeKind = iota
	typeInt32
	typeStr
)

// Int16Type is a 16-bit integer column type.
var Int16Type = Type{kind: typeInt16}

// Int32Type is a 32-bit integer column type.
var Int32Type = Type{kind: typeInt32}

// StrType returns a string column type with the given maximum character
// length (0 for unbounded).
func StrType(maxLength int) Type { return Type{kind: typeStr, maxLength: maxLength} }

// IsInt16 reports whether t is a 16-bit integer type.
func (t Type) IsInt16() bool { return t.kind == typeInt16 }

// IsInt32 reports whether t is a 32-bit integer type.
func (t Type) IsInt32() bool { return t.kind == typeInt32 }

// IsStr reports whether t is a string type, and if so its max length.
func (t Type) IsStr() (int, bool) {
	if t.kind != typeStr {
		return 0, false
	}
	return t.maxLength, true
}

func (t Type) String() string {
	switch t.kind {
	case typeInt16:
		return "SMALLINT"
	case typeInt32:
		return "INTEGER"
	default:
		return fmt.Sprintf("VARCHAR(%d)", t.maxLength)
	}
}

func typeFromBitfield(typeBits int32) (Type, error) {
	fieldSize := int(typeBits & fieldSizeMask)
	if typeBits&stringBit != 0 {
		return StrType(fieldSize), nil
	}
	switch fieldSize {
	case 2:
		return Int16Type, nil
	case 4:
		return Int32Type, nil
	default:
		return Type{}, msierrors.NewSchema("", "", fmt.Sprintf("invalid field size for integer column (%d)", fieldSize))
	}
}

// ReadValue reads one cell's worth of this column's type from r.
func (t Type) ReadValue(r io.Reader, longStringRefs bool) (ValueRef, error) {
	switch t.kind {
	case typeInt16:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return ValueRef{}, err
		}
		raw := int16(binary.LittleEndian.Uint16(buf[:]))
		if raw == 0 {
			return NullRef(), nil
		}
		return IntRef(int32(raw ^ -0x8000)), nil
	case typeInt32:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return ValueRef{}, err
		}
		raw := int32(binary.LittleEndian.Uint32(buf[:]))
		if raw == 0 {
			return NullRef(), nil
		}
		return IntRef(raw ^ -0x80000000), nil
	default:
		ref, err := stringpool.ReadRef(r, longStringRefs)
		if err != nil {
			return ValueRef{}, err
		}
		if !ref.Valid() {
			return NullRef(), nil
		}
		return StrRef(ref), nil
	}
}

// WriteValue writes one cell's worth of this column's type to w.
func (t Type) WriteValue(w io.Writer, v ValueRef, longStringRefs bool) error {
	switch t.kind {
	case typeInt16:
		var n int16
		switch {
		case v.kind == kindNull:
			n = 0
		case v.kind == kindInt:
			n = int16(v.i) ^ -0x8000
		default:
			return msierrors.NewConstraint("type", "", "", fmt.Sprintf("cannot write %v to %s column", v, t))
		}
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(n))
		_, err := w.Write(buf[:])
		return err
	case typeInt32:
		var n int32
		switch {
		case v.kind == kindNull:
			n = 0
		case v.kind == kindInt:
			n = v.i ^ -0x80000000
		default:
			return msierrors.NewConstraint("type", "", "", fmt.Sprintf("cannot write %v to %s column", v, t))
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(n))
		_, err := w.Write(buf[:])
		return err
	default:
		var ref stringpool.StringRef
		switch {
		case v.kind == kindNull:
			ref = 0
		case v.kind == kindStr:
			ref = v.ref
		default:
			return msierrors.NewConstraint("type", "", "", fmt.Sprintf("cannot write %v to %s column", v, t))
		}
		return stringpool.WriteRef(w, ref, longStringRefs)
	}
}

// Width returns the on-disk byte width of one cell of this type.
func (t Type) Width(longStringRefs bool) int {
	switch t.kind {
	case typeInt16:
		return 2
	case typeInt32:
		return 4
	default:
		if longStringRefs {
			return 3
		}
		return 2
	}
}

// ForeignKey references another table's primary key, as carried by a
// _Validation row's KeyTable/KeyColumn fields. Column is the 1-based
// ordinal of the referenced column within Table's primary key, not a
// column index into Table's full column list, since MSI numbers
// multi-column keys this way to support composite foreign keys.
type ForeignKey struct {
	Table  string
	Column int
}

// Column describes one column of a database table.
type Column struct {
	name          string
	typ           Type
	isLocalizable bool
	isNullable    bool
	isPrimaryKey  bool
	category      Category
	hasCategory   bool
	values        []string // non-nil for an enumerated value set, otherwise checked via category
	fk            *ForeignKey
}

// Build begins constructing a new column with the given name.
func Build(name string) *Builder {
	return &Builder{name: name}
}

// FromBitfield builds a Column from the bit-packed Type field stored in
// the _Columns table.
func FromBitfield(name string, typeBits int32) (*Column, error) {
	typ, err := typeFromBitfield(typeBits)
	if err != nil {
		return nil, err
	}
	return &Column{
		name:          name,
		typ:           typ,
		isLocalizable: typeBits&localizableBit != 0,
		isNullable:    typeBits&nullableBit != 0,
		isPrimaryKey:  typeBits&primaryKeyBit != 0,
	}, nil
}

// Name returns the column's name.
func (c *Column) Name() string { return c.name }

// Type returns the column's storage type.
func (c *Column) Type() Type { return c.typ }

// IsLocalizable reports whether the column's values may be localized.
func (c *Column) IsLocalizable() bool { return c.isLocalizable }

// IsNullable reports whether the column permits NULL.
func (c *Column) IsNullable() bool { return c.isNullable }

// IsPrimaryKey reports whether the column is part of the table's
// primary key.
func (c *Column) IsPrimaryKey() bool { return c.isPrimaryKey }

// Category returns the column's string category and whether one was set.
func (c *Column) Category() (Category, bool) { return c.category, c.hasCategory }

// ValueSet returns the column's fixed set of legal values, if any.
func (c *Column) ValueSet() []string { return c.values }

// ForeignKey returns the column's foreign-key reference, if any.
func (c *Column) ForeignKey() (ForeignKey, bool) {
	if c.fk == nil {
		return ForeignKey{}, false
	}
	return *c.fk, true
}

// SetForeignKey attaches a foreign-key reference to a column built from
// the raw _Columns bitfield, sourced from the corresponding
// _Validation row's KeyTable/KeyColumn columns.
func (c *Column) SetForeignKey(fk ForeignKey) { c.fk = &fk }

// SetCategory attaches a string category to a column built from the raw
// _Columns bitfield, which carries no category information of its own;
// the category comes from the corresponding _Validation row.
func (c *Column) SetCategory(cat Category) {
	c.category = cat
	c.hasCategory = true
}

// SetValueSet attaches an enumerated value set to a column built from
// the raw _Columns bitfield, sourced from the corresponding
// _Validation row's Set column.
func (c *Column) SetValueSet(values []string) {
	c.values = append([]string(nil), values...)
}

// TypeBitfield packs the column's type, nullability, and key attributes
// into the bit field the _Columns table stores.
func (c *Column) TypeBitfield() int32 {
	bits := int32(0)
	switch {
	case c.typ.kind == typeInt16:
		bits |= 2
	case c.typ.kind == typeInt32:
		bits |= 4
	default:
		bits |= int32(c.typ.maxLength) | stringBit
	}
	if c.isLocalizable {
		bits |= localizableBit
	}
	if c.isNullable {
		bits |= nullableBit
	}
	if c.isPrimaryKey {
		bits |= primaryKeyBit
	}
	return bits
}

// IsValidValue reports whether value is legal to store in this column.
func (c *Column) IsValidValue(value Value) bool {
	switch {
	case value.IsNull():
		return c.isNullable
	case value.kind == kindInt:
		switch c.typ.kind {
		case typeInt16:
			return value.i > -0x8000 && value.i <= 0x7fff
		case typeInt32:
			return value.i > -0x80000000
		default:
			return false
		}
	default:
		if c.typ.kind != typeStr {
			return false
		}
		s := value.s
		if len(c.values) > 0 {
			for _, allowed := range c.values {
				if allowed == s {
					return true
				}
			}
			return false
		}
		if c.hasCategory && !c.category.Validate(s) {
			return false
		}
		return c.typ.maxLength == 0 || runeCount(s) <= c.typ.maxLength
	}
}

func runeCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// Builder configures a new Column before it is finalized by one of the
// terminal Int16/Int32/String methods.
type Builder struct {
	name          string
	isLocalizable bool
	isNullable    bool
	isPrimaryKey  bool
	category      Category
	hasCategory   bool
	values        []string
	fk            *ForeignKey
}

// Localizable marks the column as localizable.
func (b *Builder) Localizable() *Builder { b.isLocalizable = true; return b }

// Nullable marks the column as accepting NULL.
func (b *Builder) Nullable() *Builder { b.isNullable = true; return b }

// PrimaryKey marks the column as part of the primary key.
func (b *Builder) PrimaryKey() *Builder { b.isPrimaryKey = true; return b }

// WithCategory sets the string category the column's values must satisfy.
func (b *Builder) WithCategory(cat Category) *Builder {
	b.category = cat
	b.hasCategory = true
	return b
}

// Enum restricts the column to one of the given literal values.
func (b *Builder) Enum(values []string) *Builder {
	b.values = append([]string(nil), values...)
	return b
}

// FK marks the column as a foreign key referencing the col-th (1-based)
// primary key column of table.
func (b *Builder) FK(table string, col int) *Builder {
	b.fk = &ForeignKey{Table: table, Column: col}
	return b
}

// Int16 finalizes the column as a 16-bit integer column.
func (b *Builder) Int16() *Column { return b.with(Int16Type) }

// Int32 finalizes the column as a 32-bit integer column.
func (b *Builder) Int32() *Column { return b.with(Int32Type) }

// String finalizes the column as a string column with the given maximum
// length (0 for unbounded).
func (b *Builder) String(maxLen int) *Column { return b.with(StrType(maxLen)) }

func (b *Builder) with(typ Type) *Column {
	return &Column{
		name:          b.name,
		typ:           typ,
		isLocalizable: b.isLocalizable,
		isNullable:    b.isNullable,
		isPrimaryKey:  b.isPrimaryKey,
		category:      b.category,
		hasCategory:   b.hasCategory,
		values:        b.values,
		fk:            b.fk,
	}
}
