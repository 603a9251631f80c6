package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	stdascii85 "encoding/ascii85"
	"io"

	"github.com/hhrutter/lzw"
	"github.com/pkg/errors"
)

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

// Decode skips whitespace, stops at '>' and pads a final odd digit with 0.
func (asciiHexDecoder) Decode(_ context.Context, in []byte, _ Params) ([]byte, error) {
	out := make([]byte, 0, len(in)/2+1)
	var hi byte
	half := false
	for i, c := range in {
		if c == '>' {
			break
		}
		if isSpace(c) {
			continue
		}
		v, ok := hexValue(c)
		if !ok {
			return nil, errors.Errorf("invalid hex digit %q at %d", c, i)
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	return out, nil
}
func NewASCIIHexDecoder() Decoder { return asciiHexDecoder{} }

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }
func (ascii85Decoder) Decode(_ context.Context, in []byte, _ Params) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	if i := bytes.Index(trimmed, []byte("~>")); i >= 0 {
		trimmed = trimmed[:i]
	}
	out := make([]byte, 4*len(trimmed)+4)
	n, _, err := stdascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, errors.Wrap(err, "ascii85")
	}
	return out[:n], nil
}
func NewASCII85Decoder() Decoder { return ascii85Decoder{} }

type runLengthDecoder struct{}

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

// Decode expands length-prefixed literal and repeat runs up to the 128 EOD byte.
func (runLengthDecoder) Decode(_ context.Context, in []byte, _ Params) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(in); {
		n := int(in[i])
		i++
		switch {
		case n == 128:
			return out.Bytes(), nil
		case n < 128:
			if i+n+1 > len(in) {
				return nil, errors.Errorf("run-length literal run of %d bytes truncated at %d", n+1, i)
			}
			out.Write(in[i : i+n+1])
			i += n + 1
		default:
			if i >= len(in) {
				return nil, errors.Errorf("run-length repeat run truncated at %d", i)
			}
			out.Write(bytes.Repeat(in[i:i+1], 257-n))
			i++
		}
	}
	return out.Bytes(), nil
}
func NewRunLengthDecoder() Decoder { return runLengthDecoder{} }

type flateDecoder struct{}

func (flateDecoder) Name() string { return "FlateDecode" }

// Decode inflates zlib data, falling back to a bare deflate stream when the
// zlib header is missing, then undoes any predictor.
func (flateDecoder) Decode(ctx context.Context, in []byte, params Params) ([]byte, error) {
	var r io.ReadCloser
	zr, err := zlib.NewReader(bytes.NewReader(in))
	switch {
	case err == nil:
		r = zr
	case errors.Is(err, zlib.ErrHeader):
		r = flate.NewReader(bytes.NewReader(in))
	default:
		return nil, errors.Wrap(err, "zlib")
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, ctxReader{ctx, r}); err != nil {
		return nil, errors.Wrap(err, "inflate")
	}
	return unpredict(out.Bytes(), params)
}
func NewFlateDecoder() Decoder { return flateDecoder{} }

type lzwDecoder struct{}

func (lzwDecoder) Name() string { return "LZWDecode" }

// Decode honours EarlyChange (default 1) and undoes any predictor.
func (lzwDecoder) Decode(ctx context.Context, in []byte, params Params) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(in), params.Int("EarlyChange", 1) == 1)
	defer r.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, ctxReader{ctx, r}); err != nil {
		return nil, errors.Wrap(err, "lzw")
	}
	return unpredict(out.Bytes(), params)
}
func NewLZWDecoder() Decoder { return lzwDecoder{} }

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func isSpace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}
