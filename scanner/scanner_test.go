package scanner

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfdissect/recovery"
)

func tokenize(t *testing.T, data string) []Token {
	t.Helper()
	toks, err := Tokenize([]byte(data), Config{})
	require.NoError(t, err)
	return toks
}

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestScanner_BasicTokens(t *testing.T) {
	toks := tokenize(t, "%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 -2 3.5] /Flag true /Null null /Ref 12 3 R >>\nendobj")

	assert.Equal(t, []TokenType{
		TokenHeader, TokenKeyword, TokenDict,
		TokenName, TokenName,
		TokenName, TokenArray, TokenNumber, TokenNumber, TokenNumber, TokenArrayEnd,
		TokenName, TokenBoolean,
		TokenName, TokenNull,
		TokenName, TokenRef,
		TokenDictEnd, TokenKeyword,
	}, types(toks))

	assert.Equal(t, "1.7", toks[0].Str)
	assert.True(t, toks[1].IsObjHeader())
	assert.Equal(t, int64(1), toks[1].Int)
	assert.Equal(t, "1 0 obj", string(toks[1].Raw))
	assert.Equal(t, int64(-2), toks[8].Int)
	assert.False(t, toks[9].IsInt)
	assert.Equal(t, 3.5, toks[9].Float)
	assert.True(t, toks[12].Bool)
	assert.Equal(t, int64(12), toks[16].Int)
	assert.Equal(t, 3, toks[16].Gen)
	assert.Equal(t, "12 3 R", string(toks[16].Raw))
	assert.True(t, toks[18].IsKeyword("endobj"))
}

func TestScanner_Lossless(t *testing.T) {
	inputs := []string{
		"%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n",
		"[ 1 2 R 3 (a\\)b) <41 42> /N#20x % trailing comment\n 4 ]",
		"2 0 obj\n<< /Length 4 >>\nstream\r\nabcd\r\nendstream\nendobj\nxref\n0 1\n0000000000 65535 f \ntrailer\n<< /Size 1 >>\nstartxref\n9\n%%EOF\n",
	}
	for _, in := range inputs {
		data := []byte(in)
		toks, err := Tokenize(data, Config{})
		require.NoError(t, err, "%q", in)

		prev := int64(0)
		for _, tok := range toks {
			assert.Equal(t, data[tok.Pos:tok.End], tok.Raw)
			require.GreaterOrEqual(t, tok.Pos, prev, "tokens overlap or are out of order")
			assertGap(t, data[prev:tok.Pos])
			prev = tok.End
		}
		assertGap(t, data[prev:])
	}
}

// assertGap checks that bytes between tokens are whitespace or comments.
func assertGap(t *testing.T, gap []byte) {
	t.Helper()
	inComment := false
	for _, c := range gap {
		switch {
		case c == '%':
			inComment = true
		case c == '\r' || c == '\n':
			inComment = false
		case inComment:
		default:
			assert.True(t, isWhitespace(c), "non-whitespace %q between tokens", c)
		}
	}
}

func TestScanner_NameHexEscapes(t *testing.T) {
	toks := tokenize(t, "/A#20B /C#2 /#41")
	require.Len(t, toks, 3)
	assert.Equal(t, "A B", toks[0].Str)
	assert.Equal(t, "C#2", toks[1].Str)
	assert.Equal(t, "A", toks[2].Str)
}

func TestScanner_LiteralStringEscapes(t *testing.T) {
	toks := tokenize(t, `(a\nb\(c\)\\d\101(nested)\
e)`)
	require.Len(t, toks, 1)
	assert.Equal(t, "a\nb(c)\\dA(nested)e", string(toks[0].Bytes))
}

func TestScanner_HexStringOddLength(t *testing.T) {
	toks := tokenize(t, "<48 65 6c6c 6f7>")
	require.Len(t, toks, 1)
	assert.Equal(t, "Hellop", string(toks[0].Bytes))
}

func TestScanner_ReferenceNotFoldedAcrossGarbage(t *testing.T) {
	toks := tokenize(t, "1 0 []")
	assert.Equal(t, []TokenType{TokenNumber, TokenNumber, TokenArray, TokenArrayEnd}, types(toks))

	toks, err := Tokenize([]byte("-1 0 R"), Config{})
	require.Error(t, err)
	assert.Equal(t, []TokenType{TokenNumber, TokenNumber}, types(toks))
}

func TestScanner_StreamPayloadVerbatim(t *testing.T) {
	src := "stream\r\nab endstreamX\ncd\r\nendstream endobj"
	toks := tokenize(t, src)
	require.Len(t, toks, 2)
	assert.Equal(t, TokenStream, toks[0].Type)
	assert.Equal(t, "ab endstreamX\ncd\r\n", string(toks[0].Bytes))
	assert.Equal(t, int64(strings.Index(src, " endobj")), toks[0].End)
	assert.True(t, toks[1].IsKeyword("endobj"))
}

func TestScanner_StreamAtEOF(t *testing.T) {
	toks := tokenize(t, "stream\nxyz\nendstream")
	require.Len(t, toks, 1)
	assert.Equal(t, "xyz\n", string(toks[0].Bytes))
}

func TestScanner_StreamMissingEOL(t *testing.T) {
	_, err := Tokenize([]byte("stream abc endstream"), Config{})
	var lexErr *LexError
	require.True(t, errors.As(err, &lexErr))
}

func TestScanner_XRefBody(t *testing.T) {
	src := "xref\n0 2\n0000000000 65535 f \n0000000017 00000 n \ntrailer\n<< /Size 2 >>"
	toks := tokenize(t, src)
	require.Equal(t, TokenXRef, toks[0].Type)
	assert.Equal(t, "\n0 2\n0000000000 65535 f \n0000000017 00000 n \n", string(toks[0].Bytes))
	assert.True(t, toks[1].IsKeyword("trailer"))
}

func TestScanner_XRefWithoutTrailer(t *testing.T) {
	_, err := Tokenize([]byte("xref\n0 1\n0000000000 65535 f \n"), Config{})
	require.Error(t, err)
}

func TestScanner_Markers(t *testing.T) {
	toks := tokenize(t, "%PDF-2.0\n% a comment\nstartxref\n123\n%%EOF\n")
	assert.Equal(t, []TokenType{TokenHeader, TokenKeyword, TokenNumber, TokenEOF}, types(toks))
	assert.Equal(t, "2.0", toks[0].Str)
}

func TestScanner_StrictErrors(t *testing.T) {
	cases := map[string]string{
		"unknown keyword":       "<< /A foo >>",
		"unterminated string":   "(abc",
		"unterminated hex":      "<4142",
		"invalid hex":           "<41zz>",
		"stray close paren":     ")",
		"malformed number":      "1.2.3",
		"number glued to word":  "12abc",
		"single angle bracket":  "> 1",
		"bare reference letter": "R",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Tokenize([]byte(src), Config{})
			var lexErr *LexError
			require.True(t, errors.As(err, &lexErr), "got %v", err)
		})
	}
}

func TestScanner_MaxStringLength(t *testing.T) {
	_, err := Tokenize([]byte("(abcdef)"), Config{MaxStringLength: 3})
	require.Error(t, err)
	_, err = Tokenize([]byte("<41424344>"), Config{MaxStringLength: 3})
	require.Error(t, err)
}

func TestScanner_LenientInvalidTokens(t *testing.T) {
	rec := recovery.NewLenientStrategy()
	toks, err := Tokenize([]byte("<< /A foo /B 1 >>"), Config{Recovery: rec})
	require.NoError(t, err)
	assert.Equal(t, []TokenType{TokenDict, TokenName, TokenInvalid, TokenName, TokenNumber, TokenDictEnd}, types(toks))
	assert.Equal(t, "foo", string(toks[2].Raw))
	require.Len(t, rec.Errors, 1)
}

func TestScanner_LenientSkip(t *testing.T) {
	rec := recovery.NewLenientStrategy()
	rec.Skip = true
	toks, err := Tokenize([]byte("[ 1 } 2 ]"), Config{Recovery: rec})
	require.NoError(t, err)
	assert.Equal(t, []TokenType{TokenArray, TokenNumber, TokenNumber, TokenArrayEnd}, types(toks))
}

func TestScanner_Seek(t *testing.T) {
	data := []byte("/A /B")
	s := New(data, Config{})
	require.NoError(t, s.Seek(3))
	tok, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "B", tok.Str)
	assert.Error(t, s.Seek(int64(len(data)+1)))
	assert.True(t, bytes.Equal(tok.Raw, []byte("/B")))
}
