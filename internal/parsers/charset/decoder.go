package charset

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Encoding represents a text encoding
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1252 Encoding = "windows-1252"
	EncodingISO88591    Encoding = "iso-8859-1"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Bytes 0x80-0x9F are C1 control codes in ISO-8859-1 but printable
// punctuation in Windows-1252 (curly quotes, dashes, the euro sign).
func hasWindows1252Punctuation(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 && b <= 0x9F {
			return true
		}
	}
	return false
}

// DetectEncoding detects the encoding of a byte buffer.
// Valid UTF-8 (with or without BOM) wins; otherwise spreadsheets saved by
// Excel on Windows are assumed.
func DetectEncoding(data []byte) Encoding {
	if bytes.HasPrefix(data, utf8BOM) || utf8.Valid(data) {
		return EncodingUTF8
	}
	if hasWindows1252Punctuation(data) {
		return EncodingWindows1252
	}
	return EncodingISO88591
}

// Decode converts a byte buffer from the specified encoding to a UTF-8
// string. A UTF-8 BOM is always stripped.
func Decode(data []byte, enc Encoding) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	// Valid UTF-8 is returned as-is whatever was requested, so a file
	// declared as Latin-1 but saved as UTF-8 is not decoded twice.
	if utf8.Valid(data) {
		return string(data), nil
	}

	var decoder encoding.Encoding
	switch enc {
	case EncodingISO88591:
		decoder = charmap.ISO8859_1
	default:
		decoder = charmap.Windows1252
	}

	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), decoder.NewDecoder()))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ToUTF8Reader wraps a reader with a decoder to convert to UTF-8
func ToUTF8Reader(r io.Reader, enc Encoding) io.Reader {
	switch enc {
	case EncodingWindows1252:
		return transform.NewReader(r, charmap.Windows1252.NewDecoder())
	case EncodingISO88591:
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	default:
		return r
	}
}
