// Package streamname implements the reversible encoding of user-visible
// MSI table and stream names into legal CFB stream names.
//
// Table names are packed two characters at a time into code points drawn
// from the Unicode Private Use Area (U+3800..U+4840): each input byte is
// mapped to a 6-bit digit, and two digits are combined as
// 0x3800 + hi*0x40 + lo. An odd trailing digit is encoded alone in the
// 0x4800..0x483f range. Table streams additionally carry a leading
// U+4840 marker so that a reader can tell a table stream from any other
// stream in the container without decoding its name.
//
// Peripheral streams such as \x05SummaryInformation are never run
// through this encoding at all; they use their literal name, including
// the leading \x05 byte, unmodified.
package streamname

import "strings"

// tablePrefix marks a stream name as belonging to a table.
const tablePrefix = rune(0x4840)

// Encode packs name into a CFB-legal stream name. isTable controls
// whether the leading table marker is emitted; every system table
// (_StringPool, _StringData, _Tables, _Columns, _Validation) as well as
// every user table passes isTable=true.
func Encode(name string, isTable bool) string {
	var b strings.Builder
	if isTable {
		b.WriteRune(tablePrefix)
	}
	runes := []rune(name)
	i := 0
	for i < len(runes) {
		v1, ok1 := toDigit(runes[i])
		if !ok1 {
			b.WriteRune(runes[i])
			i++
			continue
		}
		if i+1 < len(runes) {
			if v2, ok2 := toDigit(runes[i+1]); ok2 {
				b.WriteRune(rune(0x3800 + v2*0x40 + v1))
				i += 2
				continue
			}
		}
		b.WriteRune(rune(0x4800 + v1))
		i++
	}
	return b.String()
}

// Decode reverses Encode, returning the original name and whether the
// stream name carried the table marker.
func Decode(name string) (decoded string, isTable bool) {
	var b strings.Builder
	runes := []rune(name)
	i := 0
	if len(runes) > 0 && runes[0] == tablePrefix {
		isTable = true
		i = 1
	}
	for ; i < len(runes); i++ {
		v := uint32(runes[i])
		switch {
		case v >= 0x3800 && v < 0x4800:
			v -= 0x3800
			b.WriteRune(fromDigit(v & 0x3f))
			b.WriteRune(fromDigit(v >> 6))
		case v >= 0x4800 && v < 0x4840:
			b.WriteRune(fromDigit(v - 0x4800))
		default:
			b.WriteRune(runes[i])
		}
	}
	return b.String(), isTable
}

// IsValid reports whether name will produce a legal CFB stream name once
// encoded: CFB stream names are limited to 31 UTF-16 code units, and a
// non-table name must not collide with the table marker.
func IsValid(name string, isTable bool) bool {
	if name == "" {
		return false
	}
	if !isTable && []rune(name)[0] == tablePrefix {
		return false
	}
	encoded := Encode(name, isTable)
	units := 0
	for _, r := range encoded {
		if r > 0xffff {
			units += 2
		} else {
			units++
		}
	}
	return units <= 31
}

// toDigit maps a single character of the allowed mangling alphabet
// (0-9, A-Z, a-z, '.', '_') to its 6-bit digit value.
func toDigit(ch rune) (uint32, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return uint32(ch - '0'), true
	case ch >= 'A' && ch <= 'Z':
		return 10 + uint32(ch-'A'), true
	case ch >= 'a' && ch <= 'z':
		return 36 + uint32(ch-'a'), true
	case ch == '.':
		return 62, true
	case ch == '_':
		return 63, true
	default:
		return 0, false
	}
}

// fromDigit is the inverse of toDigit.
func fromDigit(v uint32) rune {
	switch {
	case v < 10:
		return rune('0' + v)
	case v < 36:
		return rune('A' + v - 10)
	case v < 62:
		return rune('a' + v - 36)
	case v == 62:
		return '.'
	default:
		return '_'
	}
}
