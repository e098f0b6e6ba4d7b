package column

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/msigo/stringpool"
)

// Value is a single cell of a database table row, fully dereferenced
// from the string pool.
type Value struct {
	kind kind
	i    int32
	s    string
}

type kind int

const (
	kindNull kind = iota
	kindInt
	kindStr
)

// Null returns the null value.
func Null() Value { return Value{kind: kindNull} }

// Int returns an integer value.
func Int(i int32) Value { return Value{kind: kindInt, i: i} }

// Str returns a string value.
func Str(s string) Value { return Value{kind: kindStr, s: s} }

// FromBool returns Int(1) for true and Int(0) for false.
func FromBool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == kindNull }

// IsInt reports whether v holds an integer.
func (v Value) IsInt() bool { return v.kind == kindInt }

// IsStr reports whether v holds a string.
func (v Value) IsStr() bool { return v.kind == kindStr }

// AsInt returns the integer held by v and true, or (0, false) if v is not
// an integer.
func (v Value) AsInt() (int32, bool) {
	if v.kind != kindInt {
		return 0, false
	}
	return v.i, true
}

// AsStr returns the string held by v and true, or ("", false) if v is not
// a string.
func (v Value) AsStr() (string, bool) {
	if v.kind != kindStr {
		return "", false
	}
	return v.s, true
}

// ToBool coerces v to a boolean: false for null, zero, and the empty
// string; true for everything else.
func (v Value) ToBool() bool {
	switch v.kind {
	case kindNull:
		return false
	case kindInt:
		return v.i != 0
	default:
		return v.s != ""
	}
}

func (v Value) String() string {
	switch v.kind {
	case kindNull:
		return "NULL"
	case kindInt:
		return fmt.Sprintf("%d", v.i)
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "%q", v.s)
		return b.String()
	}
}

// Equal reports whether v and other hold the same value.
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && v.i == other.i && v.s == other.s
}

// Compare orders v and other: NULL sorts before any integer, which sorts
// before any string; integers compare numerically, strings lexically.
func (v Value) Compare(other Value) int {
	if v.kind != other.kind {
		return int(v.kind) - int(other.kind)
	}
	switch v.kind {
	case kindNull:
		return 0
	case kindInt:
		switch {
		case v.i < other.i:
			return -1
		case v.i > other.i:
			return 1
		default:
			return 0
		}
	default:
		return strings.Compare(v.s, other.s)
	}
}

// ValueRef is an indirect value: integers and nulls are stored inline,
// strings are stored as a reference into a string pool.
type ValueRef struct {
	kind kind
	i    int32
	ref  stringpool.StringRef
}

// NullRef returns the null ValueRef.
func NullRef() ValueRef { return ValueRef{kind: kindNull} }

// IntRef returns an integer ValueRef.
func IntRef(i int32) ValueRef { return ValueRef{kind: kindInt, i: i} }

// StrRef returns a ValueRef pointing at the given pool slot.
func StrRef(ref stringpool.StringRef) ValueRef { return ValueRef{kind: kindStr, ref: ref} }

// IsNull reports whether r is the null reference.
func (r ValueRef) IsNull() bool { return r.kind == kindNull }

// StringRef returns the pool reference held by r and true, or
// (0, false) if r does not hold a string.
func (r ValueRef) StringRef() (stringpool.StringRef, bool) {
	if r.kind != kindStr {
		return 0, false
	}
	return r.ref, true
}

// CreateRef interns value into pool (if it is a string) and returns the
// corresponding ValueRef.
func CreateRef(value Value, pool *stringpool.Pool) ValueRef {
	switch value.kind {
	case kindNull:
		return NullRef()
	case kindInt:
		return IntRef(value.i)
	default:
		return StrRef(pool.Incref(value.s))
	}
}

// Remove releases r's reference into pool, if it holds one.
func (r ValueRef) Remove(pool *stringpool.Pool) error {
	if r.kind != kindStr {
		return nil
	}
	return pool.Decref(r.ref)
}

// ToValue dereferences r against pool.
func (r ValueRef) ToValue(pool *stringpool.Pool) Value {
	switch r.kind {
	case kindNull:
		return Null()
	case kindInt:
		return Int(r.i)
	default:
		return Str(pool.Get(r.ref))
	}
}
