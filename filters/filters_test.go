package filters

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, d Decoder, in string, params Params) ([]byte, error) {
	t.Helper()
	return d.Decode(context.Background(), []byte(in), params)
}

func TestASCIIHexDecode(t *testing.T) {
	dec := NewASCIIHexDecoder()
	cases := map[string]string{
		"61 62 2e6364   65":  "ab.cde",
		"61 62 2e6364   657": "ab.cdep",
		"7":                  "p",
		"68656C6C6F>ignored": "hello",
		"":                   "",
	}
	for in, want := range cases {
		out, err := decode(t, dec, in, nil)
		require.NoError(t, err, in)
		assert.Equal(t, want, string(out), in)
	}

	for _, in := range []string{"61 62 2e6364 R  657", "$1", "<><><><><><><"} {
		_, err := decode(t, dec, in, nil)
		assert.Error(t, err, in)
	}
}

func TestASCII85Decode(t *testing.T) {
	dec := NewASCII85Decoder()
	cases := map[string]string{
		"9jqo^BlbD-BleB1DJ+*+F(f,q": "Man is distinguished",
		"E,9)oF*2M7/c~>":            "pleasure.",
		"<~87cURD_*#4DfTZ)+T~>":     "Hello, World!",
	}
	for in, want := range cases {
		out, err := decode(t, dec, in, nil)
		require.NoError(t, err, in)
		assert.Equal(t, want, string(out), in)
	}

	_, err := decode(t, dec, "abc{}", nil)
	assert.Error(t, err)
}

func TestRunLengthDecode(t *testing.T) {
	dec := NewRunLengthDecoder()
	out, err := decode(t, dec, "\x05123456\xfa7\x04abcde\x80junk", nil)
	require.NoError(t, err)
	assert.Equal(t, "1234567777777abcde", string(out))

	out, err = decode(t, dec, string([]byte{2, 'h', 'i', '!', 255, 'A', 128}), nil)
	require.NoError(t, err)
	assert.Equal(t, "hi!AA", string(out))

	_, err = decode(t, dec, "\x05123", nil)
	assert.Error(t, err)
}

// allBytes returns every byte value, repeated n times.
func allBytes(n int) []byte {
	out := make([]byte, 0, 256*n)
	for i := 0; i < n; i++ {
		for b := 0; b < 256; b++ {
			out = append(out, byte(b))
		}
	}
	return out
}

// noise returns deterministic pseudo-random bytes.
func noise(n int) []byte {
	out := make([]byte, n)
	x := uint32(2463534242)
	for i := range out {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = byte(x)
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"X",
		"AAAAAAAAA",
		"$#@%!#TYU$&#%^!@%THJDTKE%I$U^",
		string(bytes.Repeat([]byte("X"), 65537)),
		string(bytes.Repeat([]byte("0123456789abcdef"), 5000)),
		string(allBytes(300)),
		string(noise(70000)),
	}
	type codec struct {
		encode func([]byte) ([]byte, error)
		dec    Decoder
	}
	noErr := func(f func([]byte) []byte) func([]byte) ([]byte, error) {
		return func(b []byte) ([]byte, error) { return f(b), nil }
	}
	codecs := map[string]codec{
		"ASCIIHex":  {noErr(EncodeASCIIHex), NewASCIIHexDecoder()},
		"ASCII85":   {noErr(EncodeASCII85), NewASCII85Decoder()},
		"RunLength": {noErr(EncodeRunLength), NewRunLengthDecoder()},
		"Flate":     {EncodeFlate, NewFlateDecoder()},
		"LZW":       {EncodeLZW, NewLZWDecoder()},
	}
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			for _, in := range inputs {
				enc, err := c.encode([]byte(in))
				require.NoError(t, err)
				out, err := c.dec.Decode(context.Background(), enc, nil)
				require.NoError(t, err)
				assert.Equal(t, in, string(out))
			}
		})
	}
}

func TestFlateDecode_RawDeflateFallback(t *testing.T) {
	enc, err := EncodeFlate([]byte("hello world"))
	require.NoError(t, err)
	// Drop the two-byte zlib header and the adler32 trailer.
	out, err := NewFlateDecoder().Decode(context.Background(), enc[2:len(enc)-4], nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))
}

func TestPredictors(t *testing.T) {
	geometry := Params{"Colors": 1, "BitsPerComponent": 8, "Columns": 3}
	with := func(predictor int64) Params {
		p := Params{"Predictor": predictor}
		for k, v := range geometry {
			p[k] = v
		}
		return p
	}

	t.Run("png sub through flate", func(t *testing.T) {
		enc, err := EncodeFlate([]byte{1, 10, 12, 20})
		require.NoError(t, err)
		out, err := NewFlateDecoder().Decode(context.Background(), enc, with(12))
		require.NoError(t, err)
		assert.Equal(t, []byte{10, 22, 42}, out)
	})

	t.Run("png up and none through lzw", func(t *testing.T) {
		enc, err := EncodeLZW([]byte{0, 1, 2, 3, 2, 1, 1, 1})
		require.NoError(t, err)
		out, err := NewLZWDecoder().Decode(context.Background(), enc, with(12))
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 2, 3, 4}, out)
	})

	t.Run("png average and paeth", func(t *testing.T) {
		rows := []byte{
			0, 10, 20, 30,
			3, 5, 5, 5, // avg(left, up)
			4, 1, 1, 1, // paeth
		}
		out, err := unpredict(rows, with(15))
		require.NoError(t, err)
		// Row 2: 10/2+5=10, (10+20)/2+5=20, (20+30)/2+5=30.
		// Row 3: paeth predicts from the byte above throughout.
		assert.Equal(t, []byte{10, 20, 30, 10, 20, 30, 11, 21, 31}, out)
	})

	t.Run("tiff", func(t *testing.T) {
		out, err := unpredict([]byte{10, 12, 20, 1, 1, 1}, with(2))
		require.NoError(t, err)
		assert.Equal(t, []byte{10, 22, 42, 1, 2, 3}, out)
	})

	t.Run("unknown row filter", func(t *testing.T) {
		_, err := unpredict([]byte{9, 1, 2, 3}, with(10))
		assert.Error(t, err)
	})

	t.Run("tiff 16 bit", func(t *testing.T) {
		p := Params{"Predictor": 2, "BitsPerComponent": 16, "Columns": 3}
		out, err := unpredict([]byte{0x01, 0x02, 0x00, 0xFF, 0xFF, 0x01}, p)
		require.NoError(t, err)
		// 0x0102, 0x0102+0x00FF, 0x0201+0xFF01 mod 2^16.
		assert.Equal(t, []byte{0x01, 0x02, 0x02, 0x01, 0x01, 0x02}, out)
	})

	t.Run("tiff 16 bit through flate", func(t *testing.T) {
		p := Params{"Predictor": 2, "BitsPerComponent": 16, "Colors": 2, "Columns": 2}
		enc, err := EncodeFlate([]byte{0x00, 0x10, 0x00, 0x20, 0x00, 0x01, 0x00, 0x02})
		require.NoError(t, err)
		out, err := NewFlateDecoder().Decode(context.Background(), enc, p)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0x10, 0x00, 0x20, 0x00, 0x11, 0x00, 0x22}, out)
	})

	t.Run("tiff 4 bit", func(t *testing.T) {
		p := Params{"Predictor": 2, "BitsPerComponent": 4, "Columns": 3}
		// Two rows of three samples, each padded to two bytes.
		out, err := unpredict([]byte{0x11, 0xF0, 0x3F, 0x20}, p)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x12, 0x10, 0x32, 0x40}, out)
	})

	t.Run("tiff 1 bit", func(t *testing.T) {
		p := Params{"Predictor": 2, "BitsPerComponent": 1, "Columns": 8}
		out, err := unpredict([]byte{0x80, 0x40}, p)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xFF, 0x7F}, out)
	})
}

func TestPredictors_Geometry(t *testing.T) {
	cases := map[string]Params{
		"png huge columns":   {"Predictor": 12, "BitsPerComponent": 16, "Columns": 1 << 59},
		"tiff huge columns":  {"Predictor": 2, "BitsPerComponent": 8, "Columns": 1 << 61},
		"huge colors":        {"Predictor": 2, "Colors": 1 << 40},
		"too many colors":    {"Predictor": 12, "Colors": maxColors + 1},
		"zero columns":       {"Predictor": 2, "Columns": 0},
		"negative colors":    {"Predictor": 12, "Colors": -1},
		"row too wide":       {"Predictor": 12, "Colors": maxColors, "BitsPerComponent": 16, "Columns": maxColumns},
		"bad bits per comp.": {"Predictor": 2, "BitsPerComponent": 3},
	}
	enc, err := EncodeFlate([]byte("0123456789"))
	require.NoError(t, err)
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewFlateDecoder().Decode(context.Background(), enc, p)
			assert.Error(t, err)
		})
	}
}

func TestDecode_ObservesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	flate, err := EncodeFlate(noise(4096))
	require.NoError(t, err)
	_, err = NewFlateDecoder().Decode(ctx, flate, nil)
	assert.ErrorIs(t, err, context.Canceled)

	lzw, err := EncodeLZW(noise(4096))
	require.NoError(t, err)
	_, err = NewLZWDecoder().Decode(ctx, lzw, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline(t *testing.T) {
	hex := EncodeASCIIHex(EncodeRunLength([]byte("aaaaaaab")))
	p := NewDefaultPipeline()
	out, err := p.Decode(context.Background(), hex, Spec{{Name: "AHx"}, {Name: "RL"}})
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaab", string(out))

	_, err = p.Decode(context.Background(), hex, Spec{{Name: "ASCIIHexDecode"}, {Name: "Bogus"}})
	var stage *StageError
	require.ErrorAs(t, err, &stage)
	assert.Equal(t, 1, stage.Stage)
	assert.ErrorIs(t, err, ErrUnknownFilter)

	limited := NewPipeline(DefaultDecoders(), Limits{MaxDecompressedSize: 4})
	_, err = limited.Decode(context.Background(), hex, Spec{{Name: "AHx"}, {Name: "RL"}})
	assert.ErrorIs(t, err, ErrSizeLimit)
}

func TestSpec_Opaque(t *testing.T) {
	name, ok := Spec{{Name: "FlateDecode"}, {Name: "DCT"}}.Opaque()
	assert.True(t, ok)
	assert.Equal(t, "DCT", name)

	_, ok = Spec{{Name: "FlateDecode"}}.Opaque()
	assert.False(t, ok)
}
