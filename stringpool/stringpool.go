// Package stringpool implements the refcounted string interning table
// stored in every MSI package's _StringPool and _StringData streams.
package stringpool

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/FocuswithJustin/msigo/codepage"
	msierrors "github.com/FocuswithJustin/msigo/errors"
)

const longStringRefsBit = 0x8000_0000

// StringRef is a 1-based reference into a Pool. The zero value refers to
// no string (the empty string).
type StringRef uint32

func (r StringRef) index() int { return int(r) - 1 }

// Valid reports whether r refers to an actual pool slot.
func (r StringRef) Valid() bool { return r != 0 }

type entry struct {
	text     string
	refcount uint32 // at most 0xFFFF; Incref starts a new slot once a slot reaches that cap
}

// Pool is the string pool for an MSI package: a dense array of
// (string, refcount) slots addressed by 1-based StringRef. Slots whose
// refcount has dropped to zero stay in place as holes and are never
// compacted automatically; Incref fills the first hole it reaches, so a
// hole's StringRef number can come back into use before Compact is
// called.
type Pool struct {
	codepage       codepage.CodePage
	entries        []entry
	longStringRefs bool
}

// New returns a new, empty pool that encodes strings with cp.
func New(cp codepage.CodePage) *Pool {
	return &Pool{codepage: cp}
}

// CodePage returns the code page used to serialize the pool's strings.
func (p *Pool) CodePage() codepage.CodePage { return p.codepage }

// NumStrings returns the number of pool slots, including retired
// (zero-refcount) holes.
func (p *Pool) NumStrings() uint32 { return uint32(len(p.entries)) }

// LongStringRefs reports whether StringRef values must be serialized
// using three bytes instead of two. It is taken from the pool header on
// read and becomes true once the pool grows past 65535 slots. It does
// not stay set for good: Compact recomputes it from the compacted slot
// count, so it returns to false when 65535 or fewer slots remain.
func (p *Pool) LongStringRefs() bool { return p.longStringRefs }

// Get returns the string for ref, or "" if ref is zero or names a
// retired slot.
func (p *Pool) Get(ref StringRef) string {
	i := ref.index()
	if i < 0 || i >= len(p.entries) {
		return ""
	}
	return p.entries[i].text
}

// Refcount returns the pool's current refcount for ref.
func (p *Pool) Refcount(ref StringRef) uint32 {
	i := ref.index()
	if i < 0 || i >= len(p.entries) {
		return 0
	}
	return p.entries[i].refcount
}

// Incref interns s and returns the assigned reference. It walks the
// slots in order and stops at the first one that is either a hole
// (filled with s at refcount 1) or holds s with a refcount below 0xFFFF
// (incremented); a hole that comes before an existing slot for s
// therefore gives s a second slot. If no slot qualifies, s is appended.
// A slot at refcount 0xFFFF is never incremented further, so a string
// with more references than that occupies several slots; no
// refcount-overflow record is written.
func (p *Pool) Incref(s string) StringRef {
	for i := range p.entries {
		if p.entries[i].refcount == 0 {
			p.entries[i].text = s
			p.entries[i].refcount = 1
			p.growLongRefs(i + 1)
			return StringRef(i + 1)
		}
		if p.entries[i].text == s && p.entries[i].refcount < math.MaxUint16 {
			p.entries[i].refcount++
			return StringRef(i + 1)
		}
	}
	p.entries = append(p.entries, entry{text: s, refcount: 1})
	p.growLongRefs(len(p.entries))
	return StringRef(len(p.entries))
}

func (p *Pool) growLongRefs(n int) {
	if n > math.MaxUint16 {
		p.longStringRefs = true
	}
}

// Decref decrements the refcount of ref. When the refcount reaches zero
// the slot's text is cleared but the slot itself is kept as a hole
// rather than compacted out from under other references.
func (p *Pool) Decref(ref StringRef) error {
	i := ref.index()
	if i < 0 || i >= len(p.entries) {
		return msierrors.NewSchema("_StringPool", "", "decref: string ref out of range")
	}
	if p.entries[i].refcount == 0 {
		return msierrors.NewSchema("_StringPool", "", "decref: refcount already zero")
	}
	p.entries[i].refcount--
	if p.entries[i].refcount == 0 {
		p.entries[i].text = ""
	}
	return nil
}

// Compact rewrites the pool in place, dropping every retired hole and
// returning the mapping from old StringRef to new StringRef (holes map
// to zero). Callers must rewrite every stored StringRef using this
// mapping before the old numbering is discarded.
func (p *Pool) Compact() map[StringRef]StringRef {
	mapping := make(map[StringRef]StringRef, len(p.entries))
	var kept []entry
	for i, e := range p.entries {
		old := StringRef(i + 1)
		if e.refcount == 0 {
			mapping[old] = 0
			continue
		}
		kept = append(kept, e)
		mapping[old] = StringRef(len(kept))
	}
	p.entries = kept
	return mapping
}

// ReadRef reads a single serialized StringRef from r.
func ReadRef(r io.Reader, longStringRefs bool) (StringRef, error) {
	var lo [2]byte
	if _, err := io.ReadFull(r, lo[:]); err != nil {
		return 0, err
	}
	number := uint32(binary.LittleEndian.Uint16(lo[:]))
	if longStringRefs {
		var hi [1]byte
		if _, err := io.ReadFull(r, hi[:]); err != nil {
			return 0, err
		}
		number |= uint32(hi[0]) << 16
	}
	return StringRef(number), nil
}

// WriteRef writes a single serialized StringRef to w.
func WriteRef(w io.Writer, ref StringRef, longStringRefs bool) error {
	var lo [2]byte
	binary.LittleEndian.PutUint16(lo[:], uint16(ref))
	if _, err := w.Write(lo[:]); err != nil {
		return err
	}
	if longStringRefs {
		if _, err := w.Write([]byte{byte(uint32(ref) >> 16)}); err != nil {
			return err
		}
	}
	return nil
}

// Builder parses the _StringPool stream's header, deferring the string
// data decode (which requires the companion _StringData stream) to
// BuildFromData.
type Builder struct {
	cp                  codepage.CodePage
	longStringRefs      bool
	lengthsAndRefcounts [][2]uint32
}

// ReadFromPool parses the _StringPool stream.
func ReadFromPool(r io.Reader) (*Builder, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, msierrors.NewMalformed("_StringPool", "truncated pool header")
	}
	raw := binary.LittleEndian.Uint32(hdr[:])
	longStringRefs := raw&longStringRefsBit != 0
	cpID := int32(raw &^ longStringRefsBit)
	cp, ok := codepage.FromID(cpID)
	if !ok {
		return nil, msierrors.NewMalformed("_StringPool", "unknown codepage for string pool")
	}

	var lengthsAndRefcounts [][2]uint32
	for {
		var pair [4]byte
		n, err := io.ReadFull(r, pair[:])
		if n == 0 && err != nil {
			break
		}
		if err != nil {
			return nil, msierrors.NewMalformed("_StringPool", "truncated pool entry")
		}
		length := uint32(binary.LittleEndian.Uint16(pair[0:2]))
		refcount := uint32(binary.LittleEndian.Uint16(pair[2:4]))
		if length == 0 && refcount > 0 {
			// Refcount-overflow sentinel: the "length" field of this slot
			// holds the high 16 bits of a length that didn't fit the
			// refcount field of the *previous* slot, and is followed by
			// the real length/refcount pair for this slot.
			var rest [4]byte
			if _, err := io.ReadFull(r, rest[:]); err != nil {
				return nil, msierrors.NewMalformed("_StringPool", "truncated long-length entry")
			}
			length = refcount<<16 | uint32(binary.LittleEndian.Uint16(rest[0:2]))
			refcount = uint32(binary.LittleEndian.Uint16(rest[2:4]))
		}
		lengthsAndRefcounts = append(lengthsAndRefcounts, [2]uint32{length, refcount})
	}
	return &Builder{cp: cp, longStringRefs: longStringRefs, lengthsAndRefcounts: lengthsAndRefcounts}, nil
}

// BuildFromData decodes the _StringData stream using the lengths
// recorded by ReadFromPool and returns the assembled Pool.
func (b *Builder) BuildFromData(r io.Reader) (*Pool, error) {
	entries := make([]entry, len(b.lengthsAndRefcounts))
	for i, lr := range b.lengthsAndRefcounts {
		length, refcount := lr[0], lr[1]
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, msierrors.NewMalformed("_StringData", "truncated string data")
		}
		entries[i] = entry{text: b.cp.Decode(buf), refcount: refcount}
	}
	return &Pool{codepage: b.cp, entries: entries, longStringRefs: b.longStringRefs}, nil
}

// WritePool writes the _StringPool stream.
func (p *Pool) WritePool(w io.Writer) error {
	codepageID := uint32(p.codepage.ID())
	if p.longStringRefs {
		codepageID |= longStringRefsBit
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], codepageID)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	for _, e := range p.entries {
		length := uint32(len(p.codepage.Encode(e.text)))
		if length > math.MaxUint16 {
			var overflow [4]byte
			binary.LittleEndian.PutUint16(overflow[0:2], 0)
			binary.LittleEndian.PutUint16(overflow[2:4], uint16(length>>16))
			if _, err := w.Write(overflow[:]); err != nil {
				return err
			}
		}
		var pair [4]byte
		binary.LittleEndian.PutUint16(pair[0:2], uint16(length))
		binary.LittleEndian.PutUint16(pair[2:4], uint16(e.refcount))
		if _, err := w.Write(pair[:]); err != nil {
			return err
		}
	}
	return nil
}

// WriteData writes the _StringData stream.
func (p *Pool) WriteData(w io.Writer) error {
	for _, e := range p.entries {
		if _, err := w.Write(p.codepage.Encode(e.text)); err != nil {
			return err
		}
	}
	return nil
}
