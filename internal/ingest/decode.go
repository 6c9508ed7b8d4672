// Package ingest reads vendor CSV exports into core records.
//
// Exports arrive as UTF-8 (with or without a byte-order mark), Shift_JIS
// or EUC-JP. The encoding is sniffed from the bytes before parsing.
package ingest

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names a supported text encoding.
type Encoding string

const (
	UTF8     Encoding = "utf-8"
	ShiftJIS Encoding = "shift_jis"
	EUCJP    Encoding = "euc-jp"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (e Encoding) codec() encoding.Encoding {
	switch e {
	case ShiftJIS:
		return japanese.ShiftJIS
	case EUCJP:
		return japanese.EUCJP
	default:
		return unicode.UTF8BOM
	}
}

// DetectEncoding returns the first candidate that decodes data cleanly,
// trying UTF-8, Shift_JIS and EUC-JP in that order. Undecidable input
// reports UTF-8.
func DetectEncoding(data []byte) Encoding {
	if utf8.Valid(bytes.TrimPrefix(data, utf8BOM)) {
		return UTF8
	}
	for _, enc := range []Encoding{ShiftJIS, EUCJP} {
		out, err := enc.codec().NewDecoder().Bytes(data)
		if err == nil && !bytes.ContainsRune(out, utf8.RuneError) {
			return enc
		}
	}
	return UTF8
}

// Decode converts data to UTF-8. Invalid sequences become U+FFFD instead
// of failing, and a leading UTF-8 byte-order mark is dropped.
func Decode(data []byte, enc Encoding) ([]byte, error) {
	return enc.codec().NewDecoder().Bytes(data)
}
