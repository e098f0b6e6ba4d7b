package cfbstore

import (
	"io"
	"sort"
)

// WriteTo serializes the container to w in its entirety.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	order := s.serializationOrder()

	// Lay out stream data sectors first.
	starts := make([]uint32, len(order))
	var dataSectors [][]byte
	for pos, oldIdx := range order {
		e := s.entries[oldIdx]
		if e.isStorage || len(e.data) == 0 {
			starts[pos] = EndOfChain
			continue
		}
		starts[pos] = uint32(len(dataSectors))
		dataSectors = append(dataSectors, chunkSectors(e.data)...)
	}
	dataSectorCount := uint32(len(dataSectors))

	// Directory entries (the root plus every entry in order), padded to a
	// sector boundary (4 entries/sector).
	dirEntryCount := len(order) + 1
	for dirEntryCount%4 != 0 {
		dirEntryCount++
	}
	dirSectorCount := uint32(dirEntryCount / 4)

	nonFatSectors := dataSectorCount + dirSectorCount
	numFat := fatSectorsNeeded(nonFatSectors)
	if numFat > MaxDirectFat {
		return 0, errTooManyFatSectors
	}
	fat := make([]uint32, numFat*SectorSize/4)
	for i := range fat {
		fat[i] = FreeSector
	}

	// Chain the data sectors, one chain per stream.
	cursor := uint32(0)
	for _, oldIdx := range order {
		e := s.entries[oldIdx]
		if e.isStorage || len(e.data) == 0 {
			continue
		}
		n := uint32(sectorsFor(len(e.data)))
		for i := uint32(0); i < n; i++ {
			if i == n-1 {
				fat[cursor+i] = EndOfChain
			} else {
				fat[cursor+i] = cursor + i + 1
			}
		}
		cursor += n
	}

	// Chain the directory sectors.
	for i := uint32(0); i < dirSectorCount; i++ {
		sector := dataSectorCount + i
		if i == dirSectorCount-1 {
			fat[sector] = EndOfChain
		} else {
			fat[sector] = sector + 1
		}
	}

	// Mark the FAT's own sectors.
	fatStart := dataSectorCount + dirSectorCount
	for i := uint32(0); i < numFat; i++ {
		fat[fatStart+i] = FatSector
	}

	// Build the directory entries themselves, now that sibling indices
	// refer to positions in `order`.
	rawEntries := s.buildRawEntries(order, starts)
	for len(rawEntries) < dirEntryCount {
		rawEntries = append(rawEntries, rawEntry{left: NoStream, right: NoStream, child: NoStream})
	}

	root := s.entries[RootStorageIndex]
	hdr := &header{clsid: root.clsid, numFatSectors: numFat, firstDirSect: dataSectorCount, numDifat: numFat}

	var written int64
	n, err := w.Write(encodeHeaderWithDifat(hdr, fatStart, numFat))
	written += int64(n)
	if err != nil {
		return written, err
	}
	for _, sec := range dataSectors {
		n, err = w.Write(pad(sec, SectorSize))
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	for i := 0; i < len(rawEntries); i += 4 {
		var sector [SectorSize]byte
		for j := 0; j < 4 && i+j < len(rawEntries); j++ {
			copy(sector[j*DirEntrySize:], encodeDirEntry(rawEntries[i+j]))
		}
		n, err = w.Write(sector[:])
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	for i := uint32(0); i < numFat; i++ {
		var sector [SectorSize]byte
		for j := 0; j < SectorSize/4; j++ {
			byteOrder.PutUint32(sector[4*j:], fat[i*SectorSize/4+uint32(j)])
		}
		n, err = w.Write(sector[:])
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// serializationOrder returns every live entry (excluding the root) in a
// deterministic preorder, used to assign stable directory-stream
// positions on each write.
func (s *Store) serializationOrder() []int {
	var order []int
	var visit func(idx int)
	visit = func(idx int) {
		children := append([]int(nil), s.entries[idx].children...)
		sort.Slice(children, func(i, j int) bool {
			return s.entries[children[i]].name < s.entries[children[j]].name
		})
		for _, c := range children {
			order = append(order, c)
			if s.entries[c].isStorage {
				visit(c)
			}
		}
	}
	visit(RootStorageIndex)
	return order
}

// buildRawEntries converts the Store's parent/children tree into the
// sibling-chain form CFB directory entries use, given the directory
// stream position assigned to each live entry by `order`.
func (s *Store) buildRawEntries(order []int, starts []uint32) []rawEntry {
	pos := make(map[int]int, len(order))
	for i, idx := range order {
		pos[idx] = i + 1 // +1 because slot 0 is the root
	}
	pos[RootStorageIndex] = 0

	out := make([]rawEntry, len(order)+1)
	out[0] = rawEntry{name: s.entries[RootStorageIndex].name, isStorage: true, left: NoStream, right: NoStream, child: NoStream, clsid: s.entries[RootStorageIndex].clsid}

	for i, idx := range order {
		e := s.entries[idx]
		re := rawEntry{name: e.name, isStorage: e.isStorage, left: NoStream, right: NoStream, child: NoStream, clsid: e.clsid}
		if !e.isStorage {
			re.start = starts[i]
			re.size = uint64(len(e.data))
		}
		out[i+1] = re
	}

	// Link each storage's children into a right-only sibling chain (an
	// unbalanced, but valid, binary tree) and point the storage's child
	// pointer at the chain's head.
	linkChildren := func(parent int, headSlot *uint32) {
		children := append([]int(nil), s.entries[parent].children...)
		sort.Slice(children, func(i, j int) bool {
			return s.entries[children[i]].name < s.entries[children[j]].name
		})
		if len(children) == 0 {
			*headSlot = NoStream
			return
		}
		*headSlot = uint32(pos[children[0]])
		for i, c := range children {
			if i+1 < len(children) {
				out[pos[c]].right = uint32(pos[children[i+1]])
			}
		}
	}
	linkChildren(RootStorageIndex, &out[0].child)
	for i, idx := range order {
		if s.entries[idx].isStorage {
			linkChildren(idx, &out[i+1].child)
		}
	}
	return out
}

func sectorsFor(n int) int {
	if n == 0 {
		return 0
	}
	return (n + SectorSize - 1) / SectorSize
}

func chunkSectors(data []byte) [][]byte {
	var out [][]byte
	for off := 0; off < len(data); off += SectorSize {
		end := off + SectorSize
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[off:end])
	}
	return out
}

func pad(b []byte, size int) []byte {
	if len(b) == size {
		return b
	}
	out := make([]byte, size)
	copy(out, b)
	return out
}

// fatSectorsNeeded returns the minimum F such that F FAT sectors (each
// holding 128 uint32 entries) can address nonFatSectors data/directory
// sectors plus the F FAT sectors themselves.
func fatSectorsNeeded(nonFatSectors uint32) uint32 {
	const entriesPerSector = SectorSize / 4
	f := uint32(1)
	for f*entriesPerSector < nonFatSectors+f {
		f++
	}
	return f
}

// encodeHeaderWithDifat renders the header, including the DIFAT array
// pointing at the numFat FAT sectors starting at fatStart.
func encodeHeaderWithDifat(hdr *header, fatStart, numFat uint32) []byte {
	buf := hdr.encode()
	for i := uint32(0); i < numFat; i++ {
		byteOrder.PutUint32(buf[hdrDifat+4*i:], fatStart+i)
	}
	return buf
}

