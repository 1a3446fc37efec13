package geojson

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Encoding names reported by DetectEncoding.
const (
	EncodingUTF8     = "utf-8"
	EncodingLatin1   = "latin-1"
	EncodingCP1252   = "cp1252"
	EncodingISO88591 = "iso-8859-1"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// legacyEncodings are tried in order after UTF-8.
var legacyEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{EncodingLatin1, charmap.ISO8859_1},
	{EncodingCP1252, charmap.Windows1252},
	{EncodingISO88591, charmap.ISO8859_1},
}

// DetectEncoding returns the first candidate encoding under which data is a
// valid JSON document, together with data transcoded to UTF-8. When no
// candidate works the data is returned unchanged as UTF-8 and the caller's
// JSON decoding reports the problem.
func DetectEncoding(data []byte) (string, []byte) {
	trimmed := bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(trimmed) && json.Valid(trimmed) {
		return EncodingUTF8, trimmed
	}

	for _, c := range legacyEncodings {
		decoded, err := c.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if json.Valid(decoded) {
			return c.name, decoded
		}
	}
	return EncodingUTF8, trimmed
}
