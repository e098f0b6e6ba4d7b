package cfbstore

import (
	"bytes"
	"fmt"
	"unicode/utf16"
)

// rawEntry is the on-disk shape of a single 128-byte directory entry,
// before it has been stitched into a Store's parent/children tree.
type rawEntry struct {
	name      string
	isStorage bool
	left      uint32
	right     uint32
	child     uint32
	clsid     [16]byte
	start     uint32
	size      uint64
}

func encodeName(name string) []byte {
	buf := make([]byte, 64)
	units := utf16.Encode([]rune(name))
	if len(units) > 31 {
		units = units[:31]
	}
	for i, u := range units {
		byteOrder.PutUint16(buf[2*i:], u)
	}
	return buf
}

func decodeName(buf []byte, byteLen uint16) string {
	if byteLen < 2 {
		return ""
	}
	n := int(byteLen/2) - 1 // exclude the trailing NUL
	if n < 0 {
		n = 0
	}
	if n*2 > len(buf) {
		n = len(buf) / 2
	}
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = byteOrder.Uint16(buf[2*i:])
	}
	return string(utf16.Decode(units))
}

func encodeDirEntry(e rawEntry) []byte {
	buf := make([]byte, DirEntrySize)
	copy(buf[offName:], encodeName(e.name))
	nameBytes := uint16((len(utf16.Encode([]rune(e.name))) + 1) * 2)
	byteOrder.PutUint16(buf[offNameLen:], nameBytes)
	objType := byte(objStream)
	if e.isStorage {
		objType = objStorage
	}
	buf[offObjectType] = objType
	buf[offColorFlag] = 1 // black; this implementation builds an unbalanced tree, see doc.go
	byteOrder.PutUint32(buf[offLeftSibling:], e.left)
	byteOrder.PutUint32(buf[offRightSib:], e.right)
	byteOrder.PutUint32(buf[offChild:], e.child)
	copy(buf[offCLSID:], e.clsid[:])
	byteOrder.PutUint32(buf[offStartSector:], e.start)
	byteOrder.PutUint64(buf[offStreamSize:], e.size)
	return buf
}

func decodeDirEntry(buf []byte) (rawEntry, bool) {
	objType := buf[offObjectType]
	if objType != objStorage && objType != objStream && objType != objRoot {
		return rawEntry{}, false
	}
	nameLen := byteOrder.Uint16(buf[offNameLen:])
	e := rawEntry{
		name:      decodeName(buf[offName:offName+64], nameLen),
		isStorage: objType == objStorage || objType == objRoot,
		left:      byteOrder.Uint32(buf[offLeftSibling:]),
		right:     byteOrder.Uint32(buf[offRightSib:]),
		child:     byteOrder.Uint32(buf[offChild:]),
		start:     byteOrder.Uint32(buf[offStartSector:]),
		size:      byteOrder.Uint64(buf[offStreamSize:]),
	}
	copy(e.clsid[:], buf[offCLSID:offCLSID+16])
	return e, true
}

// sectorOffset returns the file byte offset of sector idx's data.
func sectorOffset(idx uint32) int64 {
	return HeaderSize + int64(idx)*SectorSize
}

func readSector(data []byte, idx uint32) ([]byte, error) {
	off := sectorOffset(idx)
	if off < 0 || off+SectorSize > int64(len(data)) {
		return nil, errShortFile
	}
	return data[off : off+SectorSize], nil
}

// readChain follows a FAT chain starting at start, concatenating sector
// contents, and truncates the result to size bytes.
func readChain(data []byte, fat []uint32, start uint32, size int64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	var out bytes.Buffer
	sector := start
	for sector != EndOfChain && sector != FreeSector {
		if int(sector) >= len(fat) {
			return nil, errCorruptDirectory
		}
		buf, err := readSector(data, sector)
		if err != nil {
			return nil, err
		}
		out.Write(buf)
		sector = fat[sector]
	}
	if int64(out.Len()) < size {
		return nil, fmt.Errorf("cfbstore: stream shorter than recorded size")
	}
	return out.Bytes()[:size], nil
}

func parse(data []byte) (*Store, error) {
	if len(data) < HeaderSize {
		return nil, errShortHeader
	}
	hdr, difat, err := decodeHeader(data[:HeaderSize])
	if err != nil {
		return nil, err
	}
	fat := make([]uint32, 0, len(difat)*128)
	for _, sect := range difat {
		buf, err := readSector(data, sect)
		if err != nil {
			return nil, err
		}
		for i := 0; i < SectorSize/4; i++ {
			fat = append(fat, byteOrder.Uint32(buf[4*i:]))
		}
	}

	dirBytes, err := readChainUnbounded(data, fat, hdr.firstDirSect)
	if err != nil {
		return nil, err
	}
	var raw []rawEntry
	for off := 0; off+DirEntrySize <= len(dirBytes); off += DirEntrySize {
		if e, ok := decodeDirEntry(dirBytes[off : off+DirEntrySize]); ok {
			raw = append(raw, e)
		} else {
			raw = append(raw, rawEntry{isStorage: false, left: NoStream, right: NoStream, child: NoStream})
		}
	}
	if len(raw) == 0 || !raw[0].isStorage {
		return nil, errCorruptDirectory
	}

	entries := make([]*entry, len(raw))
	for i, r := range raw {
		var buf []byte
		if !r.isStorage && r.size > 0 {
			buf, err = readChain(data, fat, r.start, int64(r.size))
			if err != nil {
				return nil, fmt.Errorf("cfbstore: reading stream %q: %w", r.name, err)
			}
		}
		entries[i] = &entry{name: r.name, isStorage: r.isStorage, data: buf, clsid: r.clsid}
	}
	entries[0].parent = -1
	entries[0].children = assignChildren(raw, entries, raw[0].child, 0)
	return &Store{entries: entries}, nil
}

// readChainUnbounded reads an entire FAT chain without a known size,
// used for the directory stream whose length is implicit in the chain.
func readChainUnbounded(data []byte, fat []uint32, start uint32) ([]byte, error) {
	var out bytes.Buffer
	sector := start
	for sector != EndOfChain && sector != FreeSector {
		if int(sector) >= len(fat) {
			return nil, errCorruptDirectory
		}
		buf, err := readSector(data, sector)
		if err != nil {
			return nil, err
		}
		out.Write(buf)
		sector = fat[sector]
	}
	return out.Bytes(), nil
}

// assignChildren performs an in-order walk of the sibling tree rooted at
// node, recursing into nested storages, and returns the resulting
// children of parent in sorted order.
func assignChildren(raw []rawEntry, entries []*entry, node uint32, parent int) []int {
	if node == NoStream || int(node) >= len(raw) {
		return nil
	}
	var result []int
	result = append(result, assignChildren(raw, entries, raw[node].left, parent)...)
	entries[node].parent = parent
	result = append(result, int(node))
	if entries[node].isStorage {
		entries[node].children = assignChildren(raw, entries, raw[node].child, int(node))
	}
	result = append(result, assignChildren(raw, entries, raw[node].right, parent)...)
	return result
}
