package filters

import (
	"bytes"
	"compress/zlib"
	stdascii85 "encoding/ascii85"
	"encoding/hex"

	"github.com/hhrutter/lzw"
	"github.com/pkg/errors"
)

// EncodeASCIIHex writes upper-case hex digits followed by the '>' EOD marker.
func EncodeASCIIHex(data []byte) []byte {
	out := make([]byte, hex.EncodedLen(len(data))+1)
	hex.Encode(out, data)
	out[len(out)-1] = '>'
	return bytes.ToUpper(out)
}

// EncodeASCII85 writes the base-85 form terminated by "~>".
func EncodeASCII85(data []byte) []byte {
	out := make([]byte, stdascii85.MaxEncodedLen(len(data)), stdascii85.MaxEncodedLen(len(data))+2)
	n := stdascii85.Encode(out, data)
	return append(out[:n], '~', '>')
}

// EncodeRunLength emits repeat runs for 3+ equal bytes and literal runs
// otherwise, each capped at 128 bytes, followed by the EOD byte.
func EncodeRunLength(data []byte) []byte {
	var out bytes.Buffer
	for i := 0; i < len(data); {
		run := 1
		for i+run < len(data) && run < 128 && data[i+run] == data[i] {
			run++
		}
		if run >= 3 {
			out.WriteByte(byte(257 - run))
			out.WriteByte(data[i])
			i += run
			continue
		}
		start := i
		for i < len(data) && i-start < 128 {
			if i+2 < len(data) && data[i] == data[i+1] && data[i] == data[i+2] {
				break
			}
			i++
		}
		out.WriteByte(byte(i - start - 1))
		out.Write(data[start:i])
	}
	out.WriteByte(128)
	return out.Bytes()
}

func EncodeFlate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "deflate")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "deflate")
	}
	return buf.Bytes(), nil
}

// EncodeLZW compresses with the default EarlyChange of 1.
func EncodeLZW(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, true)
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "lzw")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "lzw")
	}
	return buf.Bytes(), nil
}
