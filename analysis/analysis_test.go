package analysis

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfdissect/document"
	"github.com/wudi/pdfdissect/filters"
	"github.com/wudi/pdfdissect/internal/pdftest"
	"github.com/wudi/pdfdissect/parser"
)

func sampleGraph(t *testing.T) *document.Graph {
	t.Helper()
	content, err := filters.EncodeFlate([]byte("BT ET"))
	require.NoError(t, err)
	data := pdftest.New().
		Version("1.4").
		Object(1, "<< /Type /Catalog /Pages 2 0 R /OpenAction 5 0 R >>").
		Object(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>").
		Object(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R /Resources 9 0 R >>").
		Stream(4, "/Filter [/AHx /Fl]", []byte(hexOf(content))).
		Object(5, "<< /S /JavaScript /JS (this.print\\(\\)) >>").
		Object(6, "<< /Title <FEFF0052006500700020263A> /Producer (Caf\\351) /Pages 2 >>").
		Stream(7, "/Type /XObject /Subtype /Image /Filter /DCTDecode", []byte{0xFF, 0xD8}).
		Trailer("/Root 1 0 R /Info 6 0 R").
		Bytes()
	tree, err := parser.ParseDocument(data)
	require.NoError(t, err)
	g := document.New(tree, document.Config{})
	g.ResolveReferences()
	return g
}

func hexOf(b []byte) string {
	return string(filters.EncodeASCIIHex(b))
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleGraph(t))

	assert.Equal(t, "1.4", s.Version)
	assert.Equal(t, 1, s.Updates)
	assert.Equal(t, 7, s.Objects)
	assert.Equal(t, 2, s.Streams)
	assert.Equal(t, map[string]int{"Catalog": 1, "Pages": 1, "Page": 1, "XObject": 1, "": 3}, s.Types)
	assert.Equal(t, map[string]int{"ASCIIHexDecode": 1, "FlateDecode": 1, "DCTDecode": 1}, s.Filters)
	assert.Equal(t, 1, s.JavaScript)
	assert.Equal(t, 1, s.Unresolved)
	assert.False(t, s.Encrypted)
	assert.Equal(t, map[string]string{"Title": "Rep ☺", "Producer": "Café"}, s.Info)
}

func TestSummarize_AfterProcess(t *testing.T) {
	g := sampleGraph(t)
	rep, err := g.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Expanded)

	s := Summarize(g)
	assert.Equal(t, map[string]int{"DCTDecode": 1}, s.Filters)
}

func TestSummary_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summarize(sampleGraph(t)).Write(&buf))
	out := buf.String()
	assert.Contains(t, out, "version                  1.4\n")
	assert.Contains(t, out, "type (none)              3\n")
	assert.Contains(t, out, "filter FlateDecode       1\n")
	assert.Contains(t, out, "info Producer            Café\n")
	assert.Less(t, strings.Index(out, "type Catalog"), strings.Index(out, "type Pages"))
}
