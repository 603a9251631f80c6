package scanner

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/tdewolff/parse/v2/strconv"

	"github.com/wudi/pdfdissect/recovery"
)

type TokenType int

const (
	TokenDict      TokenType = iota // '<<'
	TokenDictEnd                    // '>>'
	TokenArray                      // '['
	TokenArrayEnd                   // ']'
	TokenName                       // '/Name'
	TokenString                     // literal or hex string
	TokenNumber                     // numeric value
	TokenBoolean                    // true/false
	TokenNull                       // null
	TokenRef                        // indirect ref '5 0 R'
	TokenKeyword                    // obj (folded with its number pair), endobj, endstream, trailer, startxref
	TokenStream                     // 'stream' ... 'endstream', payload verbatim
	TokenXRef                       // 'xref' and the table body up to 'trailer'
	TokenHeader                     // '%PDF-x.y'
	TokenEOF                        // '%%EOF'
	TokenInvalid                    // malformed bytes kept by a lenient strategy
)

var tokenNames = map[TokenType]string{
	TokenDict:     "'<<'",
	TokenDictEnd:  "'>>'",
	TokenArray:    "'['",
	TokenArrayEnd: "']'",
	TokenName:     "name",
	TokenString:   "string",
	TokenNumber:   "number",
	TokenBoolean:  "boolean",
	TokenNull:     "null",
	TokenRef:      "reference",
	TokenKeyword:  "keyword",
	TokenStream:   "stream",
	TokenXRef:     "xref",
	TokenHeader:   "header",
	TokenEOF:      "'%%EOF'",
	TokenInvalid:  "invalid",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "unknown"
}

// Token is one lexical unit. Raw is exactly input[Pos:End].
type Token struct {
	Type  TokenType
	Raw   []byte
	Pos   int64
	End   int64
	Str   string // name, keyword, header version
	Bytes []byte // string value, stream payload, xref table body
	Int   int64  // integer value; object number of refs and obj
	Gen   int    // generation of refs and obj
	Float float64
	IsInt bool
	Bool  bool
}

// IsKeyword reports whether t is the keyword kw.
func (t Token) IsKeyword(kw string) bool { return t.Type == TokenKeyword && t.Str == kw }

// IsObjHeader reports whether t is an 'N G obj' token.
func (t Token) IsObjHeader() bool { return t.IsKeyword("obj") && t.Int >= 0 }

func (t Token) String() string {
	switch t.Type {
	case TokenName:
		return "/" + t.Str
	case TokenKeyword, TokenHeader:
		return t.Str
	}
	if len(t.Raw) > 0 && len(t.Raw) <= 16 {
		return string(t.Raw)
	}
	return t.Type.String()
}

// LexError reports malformed input at a byte offset.
type LexError struct {
	Offset int64
	Msg    string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Offset, e.Msg)
}

type Scanner interface {
	Next() (Token, error)
	Position() int64
	Seek(offset int64) error
}

type Config struct {
	MaxStringLength int64
	// Recovery decides what happens on malformed input. Nil fails on the
	// first anomaly.
	Recovery recovery.Strategy
}

type pdfScanner struct {
	data []byte
	pos  int64
	cfg  Config
}

// New returns a scanner over the whole buffer.
func New(data []byte, cfg Config) Scanner {
	return &pdfScanner{data: data, cfg: cfg}
}

// Tokenize scans data to the end.
func Tokenize(data []byte, cfg Config) ([]Token, error) {
	s := New(data, cfg)
	var toks []Token
	for {
		tok, err := s.Next()
		if err == io.EOF {
			return toks, nil
		}
		if err != nil {
			return toks, err
		}
		toks = append(toks, tok)
	}
}

func (s *pdfScanner) Position() int64 { return s.pos }

func (s *pdfScanner) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return errors.Errorf("seek %d out of range", offset)
	}
	s.pos = offset
	return nil
}

func (s *pdfScanner) Next() (Token, error) {
	for {
		s.skipWhitespace()
		if s.pos >= int64(len(s.data)) {
			return Token{}, io.EOF
		}
		if s.data[s.pos] != '%' {
			break
		}
		if tok, ok := s.scanMarker(); ok {
			return tok, nil
		}
		s.skipComment()
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peekAhead(1) == '<' {
			s.pos += 2
			return s.emit(Token{Type: TokenDict}, start), nil
		}
		return s.scanHexString()
	case '>':
		if s.peekAhead(1) == '>' {
			s.pos += 2
			return s.emit(Token{Type: TokenDictEnd}, start), nil
		}
		return s.fail(start, start+1, "unexpected '>'")
	case '[':
		s.pos++
		return s.emit(Token{Type: TokenArray}, start), nil
	case ']':
		s.pos++
		return s.emit(Token{Type: TokenArrayEnd}, start), nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	case ')', '{', '}':
		return s.fail(start, start+1, "unexpected '"+string(c)+"'")
	}
	if isDigitStart(c) {
		return s.scanNumberOrRef()
	}
	return s.scanKeyword()
}

func (s *pdfScanner) emit(tok Token, start int64) Token {
	tok.Pos = start
	tok.End = s.pos
	tok.Raw = s.data[start:s.pos]
	return tok
}

// fail reports malformed bytes in [start, end). A strategy that does not fail
// turns them into an invalid token, or drops them on ActionSkip.
func (s *pdfScanner) fail(start, end int64, msg string) (Token, error) {
	err := &LexError{Offset: start, Msg: msg}
	if end <= start {
		end = start + 1
	}
	if end > int64(len(s.data)) {
		end = int64(len(s.data))
	}
	if s.cfg.Recovery == nil {
		return Token{}, err
	}
	action := s.cfg.Recovery.OnError(nil, err, recovery.Location{ByteOffset: start, Component: "scanner"})
	switch action {
	case recovery.ActionFail:
		return Token{}, err
	case recovery.ActionSkip:
		s.pos = end
		return s.Next()
	}
	s.pos = end
	return s.emit(Token{Type: TokenInvalid, Str: msg}, start), nil
}

func (s *pdfScanner) skipWhitespace() {
	for s.pos < int64(len(s.data)) && isWhitespace(s.data[s.pos]) {
		s.pos++
	}
}

func (s *pdfScanner) skipComment() {
	for s.pos < int64(len(s.data)) && !isEOL(s.data[s.pos]) {
		s.pos++
	}
}

var (
	headerMarker = []byte("%PDF-")
	eofMarker    = []byte("%%EOF")
)

// scanMarker recognises the two comments the grammar cares about.
func (s *pdfScanner) scanMarker() (Token, bool) {
	start := s.pos
	rest := s.data[s.pos:]
	switch {
	case bytes.HasPrefix(rest, headerMarker):
		s.pos += int64(len(headerMarker))
		for s.pos < int64(len(s.data)) && (isDigit(s.data[s.pos]) || s.data[s.pos] == '.') {
			s.pos++
		}
		version := string(s.data[start+int64(len(headerMarker)) : s.pos])
		if version == "" {
			s.pos = start
			return Token{}, false
		}
		return s.emit(Token{Type: TokenHeader, Str: version}, start), true
	case bytes.HasPrefix(rest, eofMarker):
		s.pos += int64(len(eofMarker))
		return s.emit(Token{Type: TokenEOF, Str: "%%EOF"}, start), true
	}
	return Token{}, false
}

func (s *pdfScanner) peekAhead(n int64) byte {
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // skip '/'
	var out bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) && isHex(s.data[s.pos+1]) && isHex(s.data[s.pos+2]) {
			out.WriteByte(fromHex(s.data[s.pos+1])<<4 | fromHex(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return s.emit(Token{Type: TokenName, Str: out.String()}, start), nil
}

func (s *pdfScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // skip '('
	var buf bytes.Buffer
	depth := 1
	for s.pos < int64(len(s.data)) && depth > 0 {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= int64(len(s.data)) {
				continue
			}
			esc := s.data[s.pos]
			s.pos++
			switch {
			case esc == '\r':
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case esc == '\n':
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				for k := 0; k < 2 && s.pos < int64(len(s.data)); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
			}
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(c)
			}
		default:
			buf.WriteByte(c)
		}
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			s.skipToStringEnd(depth)
			return s.fail(start, s.pos, "literal string too long")
		}
	}
	if depth != 0 {
		return s.fail(start, s.pos, "unterminated literal string")
	}
	return s.emit(Token{Type: TokenString, Bytes: buf.Bytes()}, start), nil
}

// skipToStringEnd moves past the rest of a literal string whose nesting depth is depth.
func (s *pdfScanner) skipToStringEnd(depth int) {
	for s.pos < int64(len(s.data)) && depth > 0 {
		switch s.data[s.pos] {
		case '\\':
			s.pos++
		case '(':
			depth++
		case ')':
			depth--
		}
		s.pos++
	}
	if s.pos > int64(len(s.data)) {
		s.pos = int64(len(s.data))
	}
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // skip '<'
	var hexbuf []byte
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c == '>' {
			s.pos++
			if len(hexbuf)%2 == 1 {
				hexbuf = append(hexbuf, '0')
			}
			if s.cfg.MaxStringLength > 0 && int64(len(hexbuf)/2) > s.cfg.MaxStringLength {
				return s.fail(start, s.pos, "hex string too long")
			}
			out := make([]byte, 0, len(hexbuf)/2)
			for i := 0; i < len(hexbuf); i += 2 {
				out = append(out, fromHex(hexbuf[i])<<4|fromHex(hexbuf[i+1]))
			}
			return s.emit(Token{Type: TokenString, Bytes: out}, start), nil
		}
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if !isHex(c) {
			return s.fail(start, s.pos+1, "invalid character in hex string")
		}
		hexbuf = append(hexbuf, c)
		s.pos++
	}
	return s.fail(start, s.pos, "unterminated hex string")
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return s.emit(Token{Type: TokenBoolean, Bool: kw == "true", Str: kw}, start), nil
	case "null":
		return s.emit(Token{Type: TokenNull, Str: kw}, start), nil
	case "obj":
		// An obj keyword without its number pair cannot start an object.
		return s.emit(Token{Type: TokenKeyword, Str: kw, Int: -1}, start), nil
	case "endobj", "endstream", "trailer", "startxref":
		return s.emit(Token{Type: TokenKeyword, Str: kw}, start), nil
	case "stream":
		return s.scanStream(start)
	case "xref":
		return s.scanXRef(start)
	}
	if kw == "" {
		return s.fail(start, start+1, "unexpected byte")
	}
	return s.fail(start, s.pos, "unknown keyword "+quote(kw))
}

var (
	endstreamKeyword = []byte("endstream")
	trailerKeyword   = []byte("trailer")
)

// scanStream captures the payload after the single end-of-line that follows
// 'stream', up to the nearest 'endstream' followed by a delimiter or EOF.
// The payload is kept verbatim, including any end-of-line before endstream.
func (s *pdfScanner) scanStream(start int64) (Token, error) {
	switch {
	case s.pos+1 < int64(len(s.data)) && s.data[s.pos] == '\r' && s.data[s.pos+1] == '\n':
		s.pos += 2
	case s.pos < int64(len(s.data)) && isEOL(s.data[s.pos]):
		s.pos++
	default:
		return s.fail(start, s.pos, "stream keyword not followed by end-of-line")
	}
	dataStart := s.pos
	for from := dataStart; ; {
		idx := bytes.Index(s.data[from:], endstreamKeyword)
		if idx < 0 {
			s.pos = int64(len(s.data))
			return s.fail(start, s.pos, "unterminated stream")
		}
		at := from + int64(idx)
		after := at + int64(len(endstreamKeyword))
		if after >= int64(len(s.data)) || isDelimiter(s.data[after]) {
			payload := append([]byte(nil), s.data[dataStart:at]...)
			s.pos = after
			return s.emit(Token{Type: TokenStream, Str: "stream", Bytes: payload}, start), nil
		}
		from = at + 1
	}
}

// scanXRef captures a classical cross-reference table body verbatim, up to
// the 'trailer' keyword.
func (s *pdfScanner) scanXRef(start int64) (Token, error) {
	idx := bytes.Index(s.data[s.pos:], trailerKeyword)
	if idx < 0 {
		return s.fail(start, s.pos, "xref table without trailer")
	}
	body := s.data[s.pos : s.pos+int64(idx)]
	for i, c := range body {
		if !isDigit(c) && !isWhitespace(c) && c != 'f' && c != 'n' {
			return s.fail(start, s.pos+int64(i)+1, "invalid byte in xref table")
		}
	}
	s.pos += int64(idx)
	return s.emit(Token{Type: TokenXRef, Str: "xref", Bytes: append([]byte(nil), body...)}, start), nil
}

// scanNumberOrRef scans a number and folds 'N G R' and 'N G obj' into a
// single token.
func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) && isNumberByte(s.data[s.pos]) {
		s.pos++
	}
	numRaw := s.data[start:s.pos]
	if isUnsigned(numRaw) {
		if tok, ok := s.foldPair(start, numRaw); ok {
			return tok, nil
		}
	}
	if s.pos < int64(len(s.data)) && !isDelimiter(s.data[s.pos]) {
		for s.pos < int64(len(s.data)) && !isDelimiter(s.data[s.pos]) {
			s.pos++
		}
		return s.fail(start, s.pos, "malformed number "+quote(string(s.data[start:s.pos])))
	}
	if isInteger(numRaw) {
		if i, n := strconv.ParseInt(numRaw); n == len(numRaw) {
			return s.emit(Token{Type: TokenNumber, Int: i, Float: float64(i), IsInt: true}, start), nil
		}
	}
	f, n := strconv.ParseFloat(numRaw)
	if n != len(numRaw) || !hasDigit(numRaw) {
		return s.fail(start, s.pos, "malformed number "+quote(string(numRaw)))
	}
	return s.emit(Token{Type: TokenNumber, Float: f}, start), nil
}

// foldPair looks past an unsigned integer for 'G R' or 'G obj'.
func (s *pdfScanner) foldPair(start int64, numRaw []byte) (Token, bool) {
	p := s.pos
	q := skipWS(s.data, p)
	if q == p {
		return Token{}, false
	}
	g := q
	for g < int64(len(s.data)) && isDigit(s.data[g]) {
		g++
	}
	if g == q {
		return Token{}, false
	}
	genRaw := s.data[q:g]
	k := skipWS(s.data, g)
	if k == g {
		return Token{}, false
	}
	num, n1 := strconv.ParseInt(numRaw)
	gen, n2 := strconv.ParseInt(genRaw)
	if n1 != len(numRaw) || n2 != len(genRaw) {
		return Token{}, false
	}
	var kw string
	switch {
	case hasKeyword(s.data, k, "R"):
		kw = "R"
	case hasKeyword(s.data, k, "obj"):
		kw = "obj"
	default:
		return Token{}, false
	}
	s.pos = k + int64(len(kw))
	if kw == "R" {
		return s.emit(Token{Type: TokenRef, Int: num, Gen: int(gen)}, start), true
	}
	return s.emit(Token{Type: TokenKeyword, Str: "obj", Int: num, Gen: int(gen)}, start), true
}

func hasKeyword(data []byte, at int64, kw string) bool {
	end := at + int64(len(kw))
	if end > int64(len(data)) || string(data[at:end]) != kw {
		return false
	}
	return end == int64(len(data)) || isDelimiter(data[end])
}

func skipWS(data []byte, p int64) int64 {
	for p < int64(len(data)) && isWhitespace(data[p]) {
		p++
	}
	return p
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}
func isEOL(c byte) bool { return c == '\r' || c == '\n' }
func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || isDigit(c) }
func isNumberByte(c byte) bool { return isDigitStart(c) }
func isHex(c byte) bool {
	return isDigit(c) || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func isUnsigned(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if !isDigit(c) {
			return false
		}
	}
	return true
}

func isInteger(b []byte) bool {
	if len(b) > 0 && (b[0] == '+' || b[0] == '-') {
		b = b[1:]
	}
	return isUnsigned(b)
}

func hasDigit(b []byte) bool {
	for _, c := range b {
		if isDigit(c) {
			return true
		}
	}
	return false
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}

func quote(s string) string {
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return "\"" + s + "\""
}
