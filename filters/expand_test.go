package filters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/observability"
	"github.com/wudi/pdfdissect/parser"
)

func streamNode(t *testing.T, num int, dict string, data []byte) *raw.Node {
	t.Helper()
	src := fmt.Sprintf("%d 0 obj\n<< %s >>\nstream\n%sendstream\nendobj", num, dict, data)
	node, err := parser.ParseIndirect([]byte(src))
	require.NoError(t, err)
	require.Equal(t, raw.TagIndirectStream, node.Tag)
	return node
}

func payload(n *raw.Node) string {
	b, _ := n.StreamData().Bytes()
	return string(b)
}

func TestSpecFromDict(t *testing.T) {
	cases := []struct {
		dict string
		want Spec
	}{
		{"<< >>", nil},
		{"<< /Filter /Fl >>", Spec{{Name: "Fl"}}},
		{"<< /Filter /FlateDecode /DecodeParms << /Predictor 12 /Columns 4 >> >>",
			Spec{{Name: "FlateDecode", Params: Params{"Predictor": 12, "Columns": 4}}}},
		{"<< /Filter [/AHx /LZW] /DecodeParms [null << /EarlyChange 0 >>] >>",
			Spec{{Name: "AHx"}, {Name: "LZW", Params: Params{"EarlyChange": 0}}}},
		{"<< /Filter [/AHx] /DecodeParms null >>", Spec{{Name: "AHx"}}},
	}
	for _, tc := range cases {
		d, err := parser.ParseObject([]byte(tc.dict))
		require.NoError(t, err)
		spec, err := SpecFromDict(d)
		require.NoError(t, err, tc.dict)
		assert.Equal(t, tc.want, spec, tc.dict)
	}

	for _, bad := range []string{
		"<< /Filter [/AHx /LZW] /DecodeParms [null] >>",
		"<< /Filter [/AHx /LZW] /DecodeParms << /K 1 >> >>",
		"<< /Filter (Flate) >>",
		"<< /Filter [/AHx 1] >>",
		"<< /Filter /AHx /DecodeParms 5 >>",
	} {
		d, err := parser.ParseObject([]byte(bad))
		require.NoError(t, err)
		_, err = SpecFromDict(d)
		assert.ErrorIs(t, err, ErrFilterSpec, bad)
	}
}

func TestExpand_Flate(t *testing.T) {
	enc, err := EncodeFlate([]byte("BT /F1 12 Tf ET"))
	require.NoError(t, err)
	stream := streamNode(t, 4, fmt.Sprintf("/Filter /FlateDecode /Length %d", len(enc)), enc)

	diag := observability.NewDiagnostics()
	ok, err := NewExpander(ExpandConfig{Diagnostics: diag}).Expand(context.Background(), stream)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "BT /F1 12 Tf ET", payload(stream))

	_, hasFilter := raw.Lookup(stream.Object(), "Filter")
	assert.False(t, hasFilter)

	entries := diag.ForPass(observability.PassExpand)
	require.Len(t, entries, 1)
	assert.Equal(t, "4 0", entries[0].Object)
	assert.Contains(t, entries[0].Message, "Length")
}

func TestExpand_NoFilter(t *testing.T) {
	stream := streamNode(t, 1, "/Length 3", []byte("abc"))
	ok, err := NewExpander(ExpandConfig{}).Expand(context.Background(), stream)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", payload(stream))
}

func TestExpand_ImageCodecLeftOpaque(t *testing.T) {
	hex := EncodeASCIIHex([]byte("\xff\xd8jpeg"))
	stream := streamNode(t, 2, "/Filter [/ASCIIHexDecode /DCTDecode]", hex)

	ok, err := NewExpander(ExpandConfig{}).Expand(context.Background(), stream)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, string(hex), payload(stream))
	_, hasFilter := raw.Lookup(stream.Object(), "Filter")
	assert.True(t, hasFilter)
}

func TestExpand_OversizedImageReported(t *testing.T) {
	diag := observability.NewDiagnostics()
	e := NewExpander(ExpandConfig{Diagnostics: diag})

	ok, err := e.Expand(context.Background(),
		streamNode(t, 2, "/Subtype /Image /Width 100000 /Height 2 /Filter /DCTDecode", []byte("jpeg")))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = e.Expand(context.Background(),
		streamNode(t, 3, "/Subtype /Image /Width 64 /Height 64 /Filter /DCTDecode", []byte("jpeg")))
	require.NoError(t, err)
	assert.False(t, ok)

	warns := 0
	for _, d := range diag.Entries() {
		if d.Severity == observability.SeverityWarning {
			warns++
			assert.Equal(t, "2 0", d.Object)
			assert.Contains(t, d.Message, "image bounds out of range")
		}
	}
	assert.Equal(t, 1, warns)
}

func TestExpand_FailureWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	hex := EncodeASCIIHex([]byte("not zlib"))
	stream := streamNode(t, 3, "/Filter [/AHx /FlateDecode]", hex)

	diag := observability.NewDiagnostics()
	ok, err := NewExpander(ExpandConfig{ArtifactDir: dir, Diagnostics: diag}).Expand(context.Background(), stream)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, string(hex), payload(stream), "stream left untouched")
	_, hasFilter := raw.Lookup(stream.Object(), "Filter")
	assert.True(t, hasFilter)

	artifact, err := os.ReadFile(filepath.Join(dir, "FlateDecode.error"))
	require.NoError(t, err)
	assert.Equal(t, "not zlib", string(artifact))
	assert.Equal(t, 1, diag.Count(observability.SeverityWarning))
}

func TestExpand_BadPredictorLeavesStream(t *testing.T) {
	enc, err := EncodeFlate([]byte("row data"))
	require.NoError(t, err)
	for _, parms := range []string{
		"<< /Predictor 12 /BitsPerComponent 16 /Columns 576460752303423488 >>",
		"<< /Predictor 2 /BitsPerComponent 8 /Columns 2305843009213693952 >>",
	} {
		stream := streamNode(t, 4, "/Filter /FlateDecode /DecodeParms "+parms, enc)
		diag := observability.NewDiagnostics()
		ok, err := NewExpander(ExpandConfig{Diagnostics: diag}).Expand(context.Background(), stream)
		require.NoError(t, err)
		assert.False(t, ok, parms)
		assert.Equal(t, string(enc), payload(stream))
		_, hasParms := raw.Lookup(stream.Object(), "DecodeParms")
		assert.True(t, hasParms)
		assert.Equal(t, 1, diag.Count(observability.SeverityWarning))
	}
}

func TestExpand_Errors(t *testing.T) {
	e := NewExpander(ExpandConfig{})
	_, err := e.Expand(context.Background(), raw.NewLeaf(raw.TagNull, raw.Null{}, raw.Span{}))
	assert.ErrorIs(t, err, ErrNotStream)

	stream := streamNode(t, 1, "/Filter [/AHx /RL] /DecodeParms [null]", []byte("00"))
	_, err = e.Expand(context.Background(), stream)
	assert.ErrorIs(t, err, ErrFilterSpec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stream = streamNode(t, 1, "/Filter /AHx", []byte("6162"))
	_, err = e.Expand(ctx, stream)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpandAll(t *testing.T) {
	var streams []*raw.Node
	for i := 1; i <= 20; i++ {
		body := fmt.Sprintf("stream number %d", i)
		enc, err := EncodeFlate([]byte(body))
		require.NoError(t, err)
		streams = append(streams, streamNode(t, i, "/Filter /Fl", enc))
	}
	streams = append(streams,
		streamNode(t, 21, "/Filter /DCT", []byte("jpeg")),
		streamNode(t, 22, "/Filter /FlateDecode", []byte("garbage")),
		streamNode(t, 23, "/Filter 7", []byte("x")),
	)

	diag := observability.NewDiagnostics()
	n, err := NewExpander(ExpandConfig{Diagnostics: diag, Workers: 4}).ExpandAll(context.Background(), streams)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	for i := 0; i < 20; i++ {
		assert.Equal(t, fmt.Sprintf("stream number %d", i+1), payload(streams[i]))
	}
	assert.Equal(t, "garbage", payload(streams[21]))
	assert.Equal(t, 2, diag.Count(observability.SeverityWarning))
}
