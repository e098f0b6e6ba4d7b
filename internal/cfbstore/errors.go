package cfbstore

import "errors"

var (
	errShortHeader       = errors.New("cfbstore: file too short to contain a header")
	errBadSignature      = errors.New("cfbstore: bad CFB signature")
	errTooManyFatSectors = errors.New("cfbstore: container exceeds the 109 directly-addressable FAT sectors supported by this minimal implementation")
	errShortFile         = errors.New("cfbstore: file truncated before end of sector chain")
	errCorruptDirectory  = errors.New("cfbstore: corrupt directory entry")
	errStreamNotFound    = errors.New("cfbstore: stream not found")
	errStorageNotFound   = errors.New("cfbstore: storage not found")
	errAlreadyExists     = errors.New("cfbstore: entry already exists")
	errNotAStream        = errors.New("cfbstore: entry is a storage, not a stream")
	errNotAStorage       = errors.New("cfbstore: entry is a stream, not a storage")
)
