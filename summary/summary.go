// Package summary implements SummaryInfo, the typed view over the
// Property Set Storage stream (`\x05SummaryInformation`) carried by
// every MSI package: codepage, title, author, and the other properties
// of the MSI FMTID.
package summary

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/msigo/codepage"
	msierrors "github.com/FocuswithJustin/msigo/errors"
)

const byteOrderMark = 0xfffe

// fmtid is the well-known FMTID for the MSI SummaryInformation property
// set: {F29F85E0-4FF9-1068-AB91-08002B27B3D9}, serialized the way
// Windows encodes a GUID (first three fields little-endian, last two
// big-endian).
var fmtid = [16]byte{
	0xe0, 0x85, 0x9f, 0xf2, 0xf9, 0x4f, 0x68, 0x10,
	0xab, 0x91, 0x08, 0x00, 0x2b, 0x27, 0xb3, 0xd9,
}

// Property IDs of the MSI SummaryInformation FMTID.
const (
	PropCodepage       = 1
	PropTitle          = 2
	PropSubject        = 3
	PropAuthor         = 4
	PropKeywords       = 5
	PropComments       = 6
	PropTemplate       = 7
	PropLastSavedBy    = 8
	PropRevisionNumber = 9
	PropLastPrinted    = 11
	PropCreateTime     = 12
	PropLastSaveTime   = 13
	PropPageCount      = 14
	PropWordCount      = 15
	PropCharCount      = 16
	PropAppName        = 18
	PropSecurity       = 19
)

type valueKind int

const (
	kindEmpty valueKind = iota
	kindNull
	kindI2
	kindI4
	kindI1
	kindStr
	kindFileTime
)

// propValue is one property's typed payload, mirroring the Property Set
// Storage wire types this package actually emits (I1, I2, I4, LPSTR,
// FILETIME) plus the two sentinel kinds (EMPTY, NULL).
type propValue struct {
	kind valueKind
	i    int32
	s    string
	t    time.Time
}

func readPropValue(r io.Reader) (propValue, error) {
	var typ uint32
	if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
		return propValue{}, err
	}
	switch typ {
	case 0:
		return propValue{kind: kindEmpty}, nil
	case 1:
		return propValue{kind: kindNull}, nil
	case 2:
		var v int16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return propValue{}, err
		}
		return propValue{kind: kindI2, i: int32(v)}, nil
	case 3:
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return propValue{}, err
		}
		return propValue{kind: kindI4, i: v}, nil
	case 16:
		var v int8
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return propValue{}, err
		}
		if _, err := io.CopyN(io.Discard, r, 3); err != nil {
			return propValue{}, err
		}
		return propValue{kind: kindI1, i: int32(v)}, nil
	case 30:
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return propValue{}, err
		}
		if length > 0 {
			length--
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return propValue{}, err
		}
		var term [1]byte
		if _, err := io.ReadFull(r, term[:]); err != nil {
			return propValue{}, err
		}
		if term[0] != 0 {
			return propValue{}, msierrors.NewMalformed("SummaryInformation", "property string not null-terminated")
		}
		pad := padding(length + 1 + 4)
		if _, err := io.CopyN(io.Discard, r, int64(pad)); err != nil {
			return propValue{}, err
		}
		return propValue{kind: kindStr, s: string(buf)}, nil
	case 64:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return propValue{}, err
		}
		return propValue{kind: kindFileTime, t: filetimeToTime(v)}, nil
	default:
		return propValue{}, msierrors.NewMalformed("SummaryInformation", fmt.Sprintf("unknown property value type (%d)", typ))
	}
}

func (v propValue) write(w io.Writer) error {
	switch v.kind {
	case kindEmpty:
		return binary.Write(w, binary.LittleEndian, uint32(0))
	case kindNull:
		return binary.Write(w, binary.LittleEndian, uint32(1))
	case kindI2:
		if err := binary.Write(w, binary.LittleEndian, uint32(2)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int16(v.i)); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, uint16(0))
	case kindI4:
		if err := binary.Write(w, binary.LittleEndian, uint32(3)); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v.i)
	case kindI1:
		if err := binary.Write(w, binary.LittleEndian, uint32(16)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int8(v.i)); err != nil {
			return err
		}
		_, err := w.Write(make([]byte, 3))
		return err
	case kindStr:
		if err := binary.Write(w, binary.LittleEndian, uint32(30)); err != nil {
			return err
		}
		length := uint32(len(v.s)) + 1
		if err := binary.Write(w, binary.LittleEndian, length); err != nil {
			return err
		}
		if _, err := io.WriteString(w, v.s); err != nil {
			return err
		}
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
		_, err := w.Write(make([]byte, padding(length+4)))
		return err
	case kindFileTime:
		if err := binary.Write(w, binary.LittleEndian, uint32(64)); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, timeToFiletime(v.t))
	default:
		return msierrors.NewMalformed("SummaryInformation", "unwritable property value kind")
	}
}

func (v propValue) sizeIncludingPadding() uint32 {
	switch v.kind {
	case kindEmpty, kindNull:
		return 4
	case kindI2:
		return 8
	case kindI4:
		return 8
	case kindI1:
		return 8
	case kindStr:
		length := uint32(len(v.s)) + 1
		return 8 + length + padding(length+4)
	case kindFileTime:
		return 12
	default:
		return 0
	}
}

func padding(writtenSoFar uint32) uint32 {
	return (((writtenSoFar + 3) >> 2) << 2) - writtenSoFar
}

// filetimeToTime converts a Windows FILETIME (100ns ticks since
// 1601-01-01 UTC) to a time.Time.
func filetimeToTime(ft uint64) time.Time {
	const epochDiff = 116444736000000000 // 1601-01-01 to 1970-01-01, in 100ns ticks
	if ft < epochDiff {
		return time.Time{}
	}
	unixNanos := (int64(ft) - epochDiff) * 100
	return time.Unix(0, unixNanos).UTC()
}

func timeToFiletime(t time.Time) uint64 {
	const epochDiff = 116444736000000000
	return uint64(t.UnixNano()/100) + epochDiff
}

// propertySet is the low-level Property Set Storage codec: one header,
// one FMTID section, and a flat list of (name, value) properties,
// serialized in the order they were set.
type propertySet struct {
	osVersion uint16
	props     map[uint32]propValue
	order     []uint32
}

func newPropertySet() *propertySet {
	return &propertySet{osVersion: 10, props: make(map[uint32]propValue)}
}

func readPropertySet(r io.Reader) (*propertySet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	br := &byteReader{data: data}

	var bom uint16
	if err := binary.Read(br, binary.LittleEndian, &bom); err != nil {
		return nil, err
	}
	if bom != byteOrderMark {
		return nil, msierrors.NewMalformed("SummaryInformation", "invalid byte order mark")
	}
	var formatVersion uint16
	if err := binary.Read(br, binary.LittleEndian, &formatVersion); err != nil {
		return nil, err
	}
	if formatVersion > 1 {
		return nil, msierrors.NewMalformed("SummaryInformation", fmt.Sprintf("unsupported property set version (%d)", formatVersion))
	}
	var osVersion, osKind uint16
	if err := binary.Read(br, binary.LittleEndian, &osVersion); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &osKind); err != nil {
		return nil, err
	}
	var clsid [16]byte
	if _, err := io.ReadFull(br, clsid[:]); err != nil {
		return nil, err
	}
	var reserved uint32
	if err := binary.Read(br, binary.LittleEndian, &reserved); err != nil {
		return nil, err
	}
	if reserved < 1 {
		return nil, msierrors.NewMalformed("SummaryInformation", "invalid header reserved value")
	}

	var gotFmtid [16]byte
	if _, err := io.ReadFull(br, gotFmtid[:]); err != nil {
		return nil, err
	}
	if gotFmtid != fmtid {
		return nil, msierrors.NewMalformed("SummaryInformation", "property set has wrong format identifier")
	}
	var sectionOffset uint32
	if err := binary.Read(br, binary.LittleEndian, &sectionOffset); err != nil {
		return nil, err
	}

	if int(sectionOffset) > len(data) {
		return nil, msierrors.NewMalformed("SummaryInformation", "section offset out of range")
	}
	sr := &byteReader{data: data[sectionOffset:]}
	var sectionSize, numProps uint32
	if err := binary.Read(sr, binary.LittleEndian, &sectionSize); err != nil {
		return nil, err
	}
	if err := binary.Read(sr, binary.LittleEndian, &numProps); err != nil {
		return nil, err
	}
	type nameOffset struct {
		name   uint32
		offset uint32
	}
	offsets := make([]nameOffset, numProps)
	for i := range offsets {
		if err := binary.Read(sr, binary.LittleEndian, &offsets[i].name); err != nil {
			return nil, err
		}
		if err := binary.Read(sr, binary.LittleEndian, &offsets[i].offset); err != nil {
			return nil, err
		}
	}

	ps := newPropertySet()
	ps.osVersion = osVersion
	for _, no := range offsets {
		pos := int(sectionOffset) + int(no.offset)
		if pos > len(data) {
			return nil, msierrors.NewMalformed("SummaryInformation", "property offset out of range")
		}
		vr := &byteReader{data: data[pos:]}
		v, err := readPropValue(vr)
		if err != nil {
			return nil, err
		}
		ps.set(no.name, v)
	}
	return ps, nil
}

func (ps *propertySet) writeTo(w io.Writer) error {
	const headerSize = 2 + 2 + 2 + 2 + 16 + 4 + 16 + 4
	const sectionOffset = headerSize

	if err := binary.Write(w, binary.LittleEndian, uint16(byteOrderMark)); err != nil {
		return err
	}
	formatVersion := uint16(0)
	for _, v := range ps.props {
		if v.kind == kindI1 {
			formatVersion = 1
			break
		}
	}
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, ps.osVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(2)); err != nil { // Win32
		return err
	}
	if _, err := w.Write(make([]byte, 16)); err != nil { // CLSID, always zero
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(1)); err != nil { // reserved
		return err
	}
	if _, err := w.Write(fmtid[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(sectionOffset)); err != nil {
		return err
	}

	numProps := uint32(len(ps.order))
	sectionSize := 8 + 8*numProps
	offsets := make([]uint32, numProps)
	for i, name := range ps.order {
		offsets[i] = sectionSize
		sectionSize += ps.props[name].sizeIncludingPadding()
	}
	if err := binary.Write(w, binary.LittleEndian, sectionSize); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, numProps); err != nil {
		return err
	}
	for i, name := range ps.order {
		if err := binary.Write(w, binary.LittleEndian, name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, offsets[i]); err != nil {
			return err
		}
	}
	for _, name := range ps.order {
		if err := ps.props[name].write(w); err != nil {
			return err
		}
	}
	return nil
}

func (ps *propertySet) get(name uint32) (propValue, bool) {
	v, ok := ps.props[name]
	return v, ok
}

func (ps *propertySet) set(name uint32, v propValue) {
	if _, exists := ps.props[name]; !exists {
		ps.order = append(ps.order, name)
	}
	ps.props[name] = v
}

func (ps *propertySet) remove(name uint32) {
	if _, exists := ps.props[name]; !exists {
		return
	}
	delete(ps.props, name)
	for i, n := range ps.order {
		if n == name {
			ps.order = append(ps.order[:i], ps.order[i+1:]...)
			break
		}
	}
}

// byteReader is a minimal io.Reader over a byte slice, standing in for
// bytes.Reader to avoid an extra import at the binary.Read call sites.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// Info is the typed view over an MSI package's SummaryInformation
// property set.
type Info struct {
	ps *propertySet
}

// New returns an empty Info with its codepage set to UTF-8.
func New() *Info {
	info := &Info{ps: newPropertySet()}
	info.SetCodepage(codepage.CodePage(65001))
	return info
}

// Read parses a SummaryInformation stream.
func Read(r io.Reader) (*Info, error) {
	ps, err := readPropertySet(r)
	if err != nil {
		return nil, err
	}
	return &Info{ps: ps}, nil
}

// WriteTo serializes the SummaryInformation stream to w.
func (info *Info) WriteTo(w io.Writer) error {
	return info.ps.writeTo(w)
}

func (info *Info) str(name uint32) (string, bool) {
	v, ok := info.ps.get(name)
	if !ok || v.kind != kindStr {
		return "", false
	}
	return v.s, true
}

func (info *Info) setStr(name uint32, s string) {
	info.ps.set(name, propValue{kind: kindStr, s: s})
}

func (info *Info) clear(name uint32) { info.ps.remove(name) }

func (info *Info) int32Prop(name uint32) (int32, bool) {
	v, ok := info.ps.get(name)
	if !ok || v.kind != kindI4 {
		return 0, false
	}
	return v.i, true
}

func (info *Info) setInt32(name uint32, i int32) {
	info.ps.set(name, propValue{kind: kindI4, i: i})
}

func (info *Info) filetime(name uint32) (time.Time, bool) {
	v, ok := info.ps.get(name)
	if !ok || v.kind != kindFileTime {
		return time.Time{}, false
	}
	return v.t, true
}

func (info *Info) setFiletime(name uint32, t time.Time) {
	info.ps.set(name, propValue{kind: kindFileTime, t: t})
}

// Codepage returns the code page SummaryInfo's string properties are
// understood to be encoded in.
func (info *Info) Codepage() (codepage.CodePage, bool) {
	v, ok := info.ps.get(PropCodepage)
	if !ok || v.kind != kindI2 {
		return 0, false
	}
	// The I2 field is signed, so IDs above 0x7FFF (UTF-8 is 65001) read
	// back negative; reinterpret the 16 bits as unsigned.
	cp, ok := codepage.FromID(int32(uint16(v.i)))
	return cp, ok
}

// SetCodepage sets the codepage property.
func (info *Info) SetCodepage(cp codepage.CodePage) {
	info.ps.set(PropCodepage, propValue{kind: kindI2, i: cp.ID()})
}

// Title returns the "title" property: the installer database kind
// (e.g. "Installation Database" or "Patch").
func (info *Info) Title() (string, bool) { return info.str(PropTitle) }

// SetTitle sets the "title" property.
func (info *Info) SetTitle(s string) { info.setStr(PropTitle, s) }

// ClearTitle removes the "title" property.
func (info *Info) ClearTitle() { info.clear(PropTitle) }

// Subject returns the "subject" property: typically the name of the
// application the package installs.
func (info *Info) Subject() (string, bool) { return info.str(PropSubject) }

// SetSubject sets the "subject" property.
func (info *Info) SetSubject(s string) { info.setStr(PropSubject, s) }

// ClearSubject removes the "subject" property.
func (info *Info) ClearSubject() { info.clear(PropSubject) }

// Author returns the "author" property.
func (info *Info) Author() (string, bool) { return info.str(PropAuthor) }

// SetAuthor sets the "author" property.
func (info *Info) SetAuthor(s string) { info.setStr(PropAuthor, s) }

// ClearAuthor removes the "author" property.
func (info *Info) ClearAuthor() { info.clear(PropAuthor) }

// Keywords returns the "keywords" property.
func (info *Info) Keywords() (string, bool) { return info.str(PropKeywords) }

// SetKeywords sets the "keywords" property.
func (info *Info) SetKeywords(s string) { info.setStr(PropKeywords, s) }

// ClearKeywords removes the "keywords" property.
func (info *Info) ClearKeywords() { info.clear(PropKeywords) }

// Comments returns the "comments" property.
func (info *Info) Comments() (string, bool) { return info.str(PropComments) }

// SetComments sets the "comments" property.
func (info *Info) SetComments(s string) { info.setStr(PropComments, s) }

// ClearComments removes the "comments" property.
func (info *Info) ClearComments() { info.clear(PropComments) }

// template returns the raw "template" property string, "arch;lang,lang,..."
func (info *Info) template() string {
	s, _ := info.str(PropTemplate)
	return s
}

// Arch returns the hardware architecture the package targets (e.g.
// "x64"), parsed from the leading field of the "template" property.
func (info *Info) Arch() (string, bool) {
	arch, _, _ := strings.Cut(info.template(), ";")
	if arch == "" {
		return "", false
	}
	return arch, true
}

// SetArch sets the architecture field of the "template" property,
// preserving any languages already recorded there.
func (info *Info) SetArch(arch string) {
	_, langs, _ := strings.Cut(info.template(), ";")
	info.setStr(PropTemplate, arch+";"+langs)
}

// ClearArch clears the architecture field of the "template" property.
func (info *Info) ClearArch() { info.SetArch("") }

// Languages returns the package's supported language IDs, parsed from
// the trailing field of the "template" property.
func (info *Info) Languages() []int32 {
	_, langs, ok := strings.Cut(info.template(), ";")
	if !ok || langs == "" {
		return nil
	}
	var out []int32
	for _, code := range strings.Split(langs, ",") {
		var v int32
		if _, err := fmt.Sscanf(code, "%d", &v); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// SetLanguages sets the trailing "template" field to the given language
// IDs, preserving any architecture already recorded there.
func (info *Info) SetLanguages(codes []int32) {
	arch, _, _ := strings.Cut(info.template(), ";")
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprintf("%d", c)
	}
	info.setStr(PropTemplate, arch+";"+strings.Join(parts, ","))
}

// ClearLanguages clears the language list in the "template" property.
func (info *Info) ClearLanguages() { info.SetLanguages(nil) }

// LastSavedBy returns the "last saved by" property.
func (info *Info) LastSavedBy() (string, bool) { return info.str(PropLastSavedBy) }

// SetLastSavedBy sets the "last saved by" property.
func (info *Info) SetLastSavedBy(s string) { info.setStr(PropLastSavedBy, s) }

// ClearLastSavedBy removes the "last saved by" property.
func (info *Info) ClearLastSavedBy() { info.clear(PropLastSavedBy) }

// RevisionNumber returns the package code, a GUID string, parsed from
// the "revision number" property.
func (info *Info) RevisionNumber() (uuid.UUID, bool) {
	s, ok := info.str(PropRevisionNumber)
	if !ok {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(strings.Trim(s, "{}"))
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

// SetRevisionNumber sets the "revision number" property to id,
// formatted as MSI expects: braced and upper-cased.
func (info *Info) SetRevisionNumber(id uuid.UUID) {
	info.setStr(PropRevisionNumber, strings.ToUpper("{"+id.String()+"}"))
}

// EnsureRevisionNumber sets a freshly generated revision number if one
// is not already present, and returns the resulting GUID.
func (info *Info) EnsureRevisionNumber() uuid.UUID {
	if id, ok := info.RevisionNumber(); ok {
		return id
	}
	id := uuid.New()
	info.SetRevisionNumber(id)
	return id
}

// ClearRevisionNumber removes the "revision number" property.
func (info *Info) ClearRevisionNumber() { info.clear(PropRevisionNumber) }

// LastPrinted returns the time the package was last printed.
func (info *Info) LastPrinted() (time.Time, bool) { return info.filetime(PropLastPrinted) }

// SetLastPrinted sets the "last printed" property.
func (info *Info) SetLastPrinted(t time.Time) { info.setFiletime(PropLastPrinted, t) }

// ClearLastPrinted removes the "last printed" property.
func (info *Info) ClearLastPrinted() { info.clear(PropLastPrinted) }

// CreateTime returns the time the package was created.
func (info *Info) CreateTime() (time.Time, bool) { return info.filetime(PropCreateTime) }

// SetCreateTime sets the "creation time" property.
func (info *Info) SetCreateTime(t time.Time) { info.setFiletime(PropCreateTime, t) }

// ClearCreateTime removes the "creation time" property.
func (info *Info) ClearCreateTime() { info.clear(PropCreateTime) }

// LastSaveTime returns the time the package was last saved.
func (info *Info) LastSaveTime() (time.Time, bool) { return info.filetime(PropLastSaveTime) }

// SetLastSaveTime sets the "last save time" property.
func (info *Info) SetLastSaveTime(t time.Time) { info.setFiletime(PropLastSaveTime, t) }

// ClearLastSaveTime removes the "last save time" property.
func (info *Info) ClearLastSaveTime() { info.clear(PropLastSaveTime) }

// PageCount returns the minimum installer version required to install
// the package, stored (confusingly, by MSI convention) in the "page
// count" property.
func (info *Info) PageCount() (int32, bool) { return info.int32Prop(PropPageCount) }

// SetPageCount sets the "page count" property.
func (info *Info) SetPageCount(n int32) { info.setInt32(PropPageCount, n) }

// ClearPageCount removes the "page count" property.
func (info *Info) ClearPageCount() { info.clear(PropPageCount) }

// WordCount returns the "word count" property: a bitfield of installer
// behavior flags (short/long file names, admin image, and similar).
func (info *Info) WordCount() (int32, bool) { return info.int32Prop(PropWordCount) }

// SetWordCount sets the "word count" property.
func (info *Info) SetWordCount(n int32) { info.setInt32(PropWordCount, n) }

// ClearWordCount removes the "word count" property.
func (info *Info) ClearWordCount() { info.clear(PropWordCount) }

// CharCount returns the "character count" property.
func (info *Info) CharCount() (int32, bool) { return info.int32Prop(PropCharCount) }

// SetCharCount sets the "character count" property.
func (info *Info) SetCharCount(n int32) { info.setInt32(PropCharCount, n) }

// ClearCharCount removes the "character count" property.
func (info *Info) ClearCharCount() { info.clear(PropCharCount) }

// AppName returns the "creating application" property: the name of the
// tool that built the package.
func (info *Info) AppName() (string, bool) { return info.str(PropAppName) }

// SetAppName sets the "creating application" property.
func (info *Info) SetAppName(s string) { info.setStr(PropAppName, s) }

// ClearAppName removes the "creating application" property.
func (info *Info) ClearAppName() { info.clear(PropAppName) }

// Security returns the package's security/read-only-enforcement flag.
func (info *Info) Security() (int32, bool) { return info.int32Prop(PropSecurity) }

// SetSecurity sets the "security" property.
func (info *Info) SetSecurity(n int32) { info.setInt32(PropSecurity, n) }

// ClearSecurity removes the "security" property.
func (info *Info) ClearSecurity() { info.clear(PropSecurity) }
