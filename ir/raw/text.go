package raw

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

var (
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
)

// DecodeText decodes a text string. A UTF-16BE byte order mark selects
// UTF-16BE and a UTF-8 mark selects UTF-8; anything else is read as Latin-1,
// which agrees with PDFDocEncoding on the printable range. The result is NFC.
func DecodeText(b []byte) string {
	switch {
	case bytes.HasPrefix(b, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if out, err := dec.Bytes(b); err == nil {
			return norm.NFC.String(string(out))
		}
	case bytes.HasPrefix(b, bomUTF8):
		if utf8.Valid(b[3:]) {
			return norm.NFC.String(string(b[3:]))
		}
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return norm.NFC.String(string(out))
}

// Text decodes the payload of a string node as a text string.
func (n *Node) Text() (string, bool) {
	if n == nil || n.Tag != TagString {
		return "", false
	}
	b, _ := n.Bytes()
	return DecodeText(b), true
}
