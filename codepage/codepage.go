// Package codepage implements the closed set of Windows code pages that
// the MSI format permits for its string pool, and their conversion to and
// from Go's native (UTF-8) strings.
package codepage

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// CodePage identifies one of the character encodings an MSI package may
// declare for its string pool.
type CodePage int32

// The code pages recognized by this library. Values match the numeric
// Windows code page identifiers used on disk.
const (
	Windows1250    CodePage = 1250
	Windows1251    CodePage = 1251
	Windows1252    CodePage = 1252
	Windows1253    CodePage = 1253
	Windows1254    CodePage = 1254
	Windows1255    CodePage = 1255
	Windows1256    CodePage = 1256
	Windows1257    CodePage = 1257
	Windows1258    CodePage = 1258
	MacintoshRoman CodePage = 10000
	MacintoshCyr   CodePage = 10007
	UsAscii        CodePage = 20127
	Iso88591       CodePage = 28591
	Iso88592       CodePage = 28592
	Iso88593       CodePage = 28593
	Iso88594       CodePage = 28594
	Iso88595       CodePage = 28595
	Iso88596       CodePage = 28596
	Iso88597       CodePage = 28597
	Iso88598       CodePage = 28598
	Utf8           CodePage = 65001

	// Default is the code page used when the stored ID is 0. The format
	// specifies Windows-1252 as this fallback.
	Default CodePage = Windows1252
)

var names = map[CodePage]string{
	Windows1250:    "Windows Latin 2",
	Windows1251:    "Windows Cyrillic",
	Windows1252:    "Windows Latin 1",
	Windows1253:    "Windows Greek",
	Windows1254:    "Windows Turkish",
	Windows1255:    "Windows Hebrew",
	Windows1256:    "Windows Arabic",
	Windows1257:    "Windows Baltic",
	Windows1258:    "Windows Vietnamese",
	MacintoshRoman: "Mac OS Roman",
	MacintoshCyr:   "Macintosh Cyrillic",
	UsAscii:        "US-ASCII",
	Iso88591:       "ISO Latin 1",
	Iso88592:       "ISO Latin 2",
	Iso88593:       "ISO Latin 3",
	Iso88594:       "ISO Latin 4",
	Iso88595:       "ISO Latin/Cyrillic",
	Iso88596:       "ISO Latin/Arabic",
	Iso88597:       "ISO Latin/Greek",
	Iso88598:       "ISO Latin/Hebrew",
	Utf8:           "UTF-8",
}

var charmaps = map[CodePage]*charmap.Charmap{
	Windows1250:    charmap.Windows1250,
	Windows1251:    charmap.Windows1251,
	Windows1252:    charmap.Windows1252,
	Windows1253:    charmap.Windows1253,
	Windows1254:    charmap.Windows1254,
	Windows1255:    charmap.Windows1255,
	Windows1256:    charmap.Windows1256,
	Windows1257:    charmap.Windows1257,
	Windows1258:    charmap.Windows1258,
	MacintoshRoman: charmap.Macintosh,
	MacintoshCyr:   charmap.MacintoshCyrillic,
	Iso88591:       charmap.ISO8859_1,
	Iso88592:       charmap.ISO8859_2,
	Iso88593:       charmap.ISO8859_3,
	Iso88594:       charmap.ISO8859_4,
	Iso88595:       charmap.ISO8859_5,
	Iso88596:       charmap.ISO8859_6,
	Iso88597:       charmap.ISO8859_7,
	Iso88598:       charmap.ISO8859_8,
}

// FromID returns the CodePage with the given numeric ID, or false if the
// ID is not one of the recognized code pages. An ID of 0 yields Default.
func FromID(id int32) (CodePage, bool) {
	if id == 0 {
		return Default, true
	}
	cp := CodePage(id)
	if _, ok := names[cp]; ok {
		return cp, true
	}
	if cp == Utf8 {
		return Utf8, true
	}
	if cp == UsAscii {
		return UsAscii, true
	}
	return 0, false
}

// ID returns the numeric Windows code page identifier for cp.
func (cp CodePage) ID() int32 { return int32(cp) }

// Name returns a human-readable name for cp.
func (cp CodePage) Name() string {
	if n, ok := names[cp]; ok {
		return n
	}
	return fmt.Sprintf("code page %d", int32(cp))
}

// IsValid reports whether cp is one of the recognized code pages.
func (cp CodePage) IsValid() bool {
	if cp == Utf8 || cp == UsAscii {
		return true
	}
	_, ok := names[cp]
	return ok
}

// Decode converts bytes encoded in cp into a UTF-8 string. Bytes that are
// invalid in cp are replaced with the Unicode replacement character.
func (cp CodePage) Decode(data []byte) string {
	switch cp {
	case Utf8:
		return decodeUTF8Lenient(data)
	case UsAscii:
		return decodeASCII(data)
	}
	if cm, ok := charmaps[cp]; ok {
		out, _ := cm.NewDecoder().Bytes(data)
		return string(out)
	}
	return decodeUTF8Lenient(data)
}

// Encode converts a UTF-8 string into bytes encoded in cp. Characters that
// cannot be represented in cp are replaced with '?'.
func (cp CodePage) Encode(s string) []byte {
	switch cp {
	case Utf8:
		return []byte(s)
	case UsAscii:
		return encodeASCII(s)
	}
	if cm, ok := charmaps[cp]; ok {
		out := make([]byte, 0, len(s))
		for _, r := range s {
			if b, ok := cm.EncodeRune(r); ok {
				out = append(out, b)
			} else {
				out = append(out, '?')
			}
		}
		return out
	}
	return []byte(s)
}

// decodeUTF8Lenient re-validates data as UTF-8, replacing any invalid byte
// sequences with the Unicode replacement character rather than failing,
// matching the format's "Replace" decoding trap convention.
func decodeUTF8Lenient(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out := make([]rune, 0, len(data))
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		out = append(out, r)
		i += size
	}
	return string(out)
}

func decodeASCII(data []byte) string {
	out := make([]rune, len(data))
	for i, b := range data {
		if b < 0x80 {
			out[i] = rune(b)
		} else {
			out[i] = '�'
		}
	}
	return string(out)
}

func encodeASCII(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x80 {
			out = append(out, byte(r))
		} else {
			out = append(out, '?')
		}
	}
	return out
}

// Encoding returns the golang.org/x/text encoding backing cp, or nil for
// UTF-8 and US-ASCII, which are handled directly without the charmap
// table lookup.
func (cp CodePage) Encoding() encoding.Encoding {
	if cm, ok := charmaps[cp]; ok {
		return cm
	}
	return nil
}
