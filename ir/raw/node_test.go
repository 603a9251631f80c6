package raw

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Node {
	// 1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj
	typeEntry := NewEntry("Type", Span{10, 15}, NewLeaf(TagName, Name("Catalog"), Span{16, 24}))
	pagesEntry := NewEntry("Pages", Span{25, 31}, NewLeaf(TagRef, Ref{Num: 2}, Span{32, 37}))
	dict := NewTree(TagDictionary, typeEntry, pagesEntry)
	dict.Span = Span{8, 40}
	obj := NewTree(TagIndirect, dict)
	obj.Payload = ObjectID{Num: 1}
	obj.Span = Span{0, 47}
	update := NewTree(TagUpdate, obj)
	return NewTree(TagPDF, update)
}

func TestCoverAndTree(t *testing.T) {
	tree := sampleTree()
	assert.Equal(t, Span{0, 47}, tree.Span)
	for _, n := range tree.Walk() {
		for _, c := range n.Children {
			assert.True(t, n.Span.Contains(c.Span), "%s %s does not contain %s %s", n.Tag, n.Span, c.Tag, c.Span)
		}
	}
}

func TestLookupLastWins(t *testing.T) {
	d := NewTree(TagDictionary,
		NewEntry("K", Span{}, NewLeaf(TagNumber, Int(1), Span{})),
		NewEntry("K", Span{}, NewLeaf(TagNumber, Int(2), Span{})),
	)
	v, ok := LookupInt(d, "K")
	require.True(t, ok)
	assert.Equal(t, int64(2), v)
	assert.Len(t, LookupAll(d, "K"), 2)

	assert.Equal(t, 2, RemoveKeys(d, "K"))
	assert.Empty(t, d.Children)
}

func TestRetainKeys(t *testing.T) {
	tree := sampleTree()
	dict := tree.Children[0].Children[0].Dict()
	require.NotNil(t, dict)
	assert.Equal(t, 1, RetainKeys(dict, "Type"))
	name, ok := LookupName(dict, "Type")
	require.True(t, ok)
	assert.Equal(t, "Catalog", name)
}

func TestWalkIsSnapshot(t *testing.T) {
	tree := sampleTree()
	nodes := tree.Walk()
	tree.Children = nil
	assert.Len(t, nodes, 10)
	assert.Equal(t, TagPDF, nodes[0].Tag)
}

func TestPathsAndShift(t *testing.T) {
	tree := sampleTree()
	refs := tree.FindAll(func(n *Node) bool { return n.Tag == TagRef })
	require.Len(t, refs, 1)
	paths := tree.Paths()
	assert.Equal(t, "/pdf/update[1]/indirect_object[1]", paths[tree.Children[0].Children[0]])

	id, ok := refs[0].Target()
	require.True(t, ok)
	assert.Equal(t, "2 0", id.Key())

	tree.Shift(100)
	assert.Equal(t, Span{132, 137}, refs[0].Span)
}

func TestParseKey(t *testing.T) {
	id, ok := ParseKey("12 3")
	require.True(t, ok)
	assert.Equal(t, ObjectID{Num: 12, Gen: 3}, id)
	_, ok = ParseKey("x")
	assert.False(t, ok)
}

func TestRealCollapsesIntegers(t *testing.T) {
	assert.Equal(t, Number{I: 3, IsInt: true}, Real(3.0))
	assert.False(t, Real(3.5).IsInt)
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, sampleTree()))
	out := buf.String()
	assert.Contains(t, out, "indirect_object [0,47) 1 0")
	assert.Contains(t, out, "R [32,37) 2 0 R")
	assert.Contains(t, out, "name [16,24) /Catalog")
}

func TestDecodeText(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   []byte
		want string
	}{
		{"latin1", []byte("Caf\xe9"), "Café"},
		{"utf16be", []byte{0xFE, 0xFF, 0x00, 'H', 0x00, 'i', 0x26, 0x3A}, "Hi☺"},
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, "naïve"...), "naïve"},
		{"utf8 bom composes", append([]byte{0xEF, 0xBB, 0xBF}, "e\u0301"...), "\u00e9"},
		{"empty", nil, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecodeText(tc.in))
		})
	}

	s, ok := NewLeaf(TagString, String("plain"), Span{}).Text()
	require.True(t, ok)
	assert.Equal(t, "plain", s)
	_, ok = NewLeaf(TagName, Name("plain"), Span{}).Text()
	assert.False(t, ok)
}
