/*
Package cfbstore implements a minimal Compound File Binary (CFB, a.k.a.
OLE2 structured storage) container: a single file holding a tree of named
byte streams.

MSI packages are serialized inside a CFB envelope, but the container
format itself is an external collaborator of the package layer (see the
package specification's out-of-scope section) — nothing in the reference
corpus this library was grounded on implements CFB, so this package is
necessarily original. It follows the binary-container idiom of
core/sqlite/internal/pager in its sibling packages: named byte-offset
constants, encoding/binary-driven fixed headers, and in-place sector
layout, substituted here for CFB's sector/FAT/directory-entry structure
in place of SQLite's page/freelist structure.

# Scope

This is a minimal implementation, not a general-purpose OLE2 library:

  - Sector size is fixed at 512 bytes (CFB major version 3).
  - The whole container is read into memory on Open and rewritten in
    full on WriteTo; there is no incremental sector allocator.
  - The mini-stream / MiniFAT small-stream optimization is not
    implemented — every stream, regardless of size, is stored in the
    regular FAT sector chain. This keeps the implementation's model
    simple (one allocation strategy, not two) at the cost of producing
    larger files than a reference Windows CFB writer would for
    packages with many small streams; it does not affect correctness
    of anything this library reads back.
  - More than 109 FAT sectors (the number a CFB header can reference
    directly) is not supported; a DIFAT chain for larger containers is
    not implemented. This bounds supported data to a little under 7 MiB
    in covered FAT sectors, ample for MSI metadata and moderate table
    data but not for embedding arbitrarily large cabinet streams.

Directory entries are kept as a plain sorted array per storage rather
than a balanced red-black tree; this is sufficient for a container that
only this package reads and writes.
*/
package cfbstore
