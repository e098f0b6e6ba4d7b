package cfbstore

import (
	"fmt"
	"io"
)

// Store is an in-memory Compound File Binary container: a tree of named
// storages and streams, loaded in full from (or destined in full for) a
// single backing file.
type Store struct {
	entries []*entry // entries[0] is always the root storage
}

// Create returns a new, empty Store containing only the root storage.
func Create() *Store {
	return &Store{entries: []*entry{{name: "Root Entry", isStorage: true, parent: -1}}}
}

// Open reads a complete CFB container from r.
func Open(r io.Reader) (*Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cfbstore: read container: %w", err)
	}
	return parse(data)
}

// Streams returns the "/"-joined paths of every stream in the container.
func (s *Store) Streams() []string {
	var out []string
	s.walk(RootStorageIndex, func(idx int) {
		if !s.entries[idx].isStorage {
			out = append(out, s.fullPath(idx))
		}
	})
	return out
}

// Storages returns the "/"-joined paths of every storage in the
// container other than the root.
func (s *Store) Storages() []string {
	var out []string
	s.walk(RootStorageIndex, func(idx int) {
		if idx != RootStorageIndex && s.entries[idx].isStorage {
			out = append(out, s.fullPath(idx))
		}
	})
	return out
}

func (s *Store) walk(idx int, visit func(int)) {
	for _, child := range s.entries[idx].children {
		visit(child)
		if s.entries[child].isStorage {
			s.walk(child, visit)
		}
	}
}

// IsStream reports whether name names an existing stream.
func (s *Store) IsStream(name string) bool {
	idx, err := s.resolve(name)
	return err == nil && idx != RootStorageIndex && !s.entries[idx].isStorage
}

// IsStorage reports whether name names an existing storage (the root
// storage counts, for name == "").
func (s *Store) IsStorage(name string) bool {
	idx, err := s.resolve(name)
	return err == nil && s.entries[idx].isStorage
}

// ReadStream returns the contents of the named stream.
func (s *Store) ReadStream(name string) ([]byte, error) {
	idx, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	if s.entries[idx].isStorage {
		return nil, errNotAStream
	}
	out := make([]byte, len(s.entries[idx].data))
	copy(out, s.entries[idx].data)
	return out, nil
}

// WriteStream replaces (or creates) the named stream with data.
// Intermediate storages are created automatically.
func (s *Store) WriteStream(name string, data []byte) error {
	idx, err := s.resolve(name)
	if err == nil {
		if s.entries[idx].isStorage {
			return errNotAStream
		}
		buf := make([]byte, len(data))
		copy(buf, data)
		s.entries[idx].data = buf
		return nil
	}
	parent, leaf, err := s.resolveParent(name)
	if err != nil {
		return err
	}
	idx = s.addEntry(parent, leaf, false)
	buf := make([]byte, len(data))
	copy(buf, data)
	s.entries[idx].data = buf
	return nil
}

// CreateStorage creates an empty storage at name, creating intermediate
// storages as needed. It is a no-op if the storage already exists.
func (s *Store) CreateStorage(name string) error {
	if idx, err := s.resolve(name); err == nil {
		if !s.entries[idx].isStorage {
			return errAlreadyExists
		}
		return nil
	}
	parent, leaf, err := s.resolveParent(name)
	if err != nil {
		return err
	}
	s.addEntry(parent, leaf, true)
	return nil
}

// Rename moves the entry at oldName to newName. Missing intermediate
// storages of newName are created as needed.
func (s *Store) Rename(oldName, newName string) error {
	idx, err := s.resolve(oldName)
	if err != nil {
		return err
	}
	newParent, leaf, err := s.resolveParent(newName)
	if err != nil {
		return err
	}
	if s.childNamed(newParent, leaf) >= 0 {
		return errAlreadyExists
	}
	old := s.entries[idx]
	oldParent := old.parent
	siblings := s.entries[oldParent].children
	for i, c := range siblings {
		if c == idx {
			s.entries[oldParent].children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	old.name = leaf
	old.parent = newParent
	s.entries[newParent].children = append(s.entries[newParent].children, idx)
	return nil
}

// Remove deletes the named stream, or an empty named storage.
func (s *Store) Remove(name string) error {
	idx, err := s.resolve(name)
	if err != nil {
		return err
	}
	if idx == RootStorageIndex {
		return errNotAStream
	}
	if s.entries[idx].isStorage && len(s.entries[idx].children) > 0 {
		return fmt.Errorf("cfbstore: storage %q is not empty", name)
	}
	parent := s.entries[idx].parent
	siblings := s.entries[parent].children
	for i, c := range siblings {
		if c == idx {
			s.entries[parent].children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	return nil
}

// SetCLSID sets the CLSID recorded against the storage at name (use ""
// for the root storage).
func (s *Store) SetCLSID(name string, clsid [16]byte) error {
	idx, err := s.resolve(name)
	if err != nil {
		return err
	}
	if !s.entries[idx].isStorage {
		return errNotAStorage
	}
	s.entries[idx].clsid = clsid
	return nil
}

// CLSID returns the CLSID recorded against the storage at name.
func (s *Store) CLSID(name string) ([16]byte, error) {
	idx, err := s.resolve(name)
	if err != nil {
		return [16]byte{}, err
	}
	if !s.entries[idx].isStorage {
		return [16]byte{}, errNotAStorage
	}
	return s.entries[idx].clsid, nil
}
