package parser

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/recovery"
	"github.com/wudi/pdfdissect/scanner"
)

// SyntaxError reports a token the grammar did not expect.
type SyntaxError struct {
	Offset   int64
	Expected string
	Got      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: expected %s, got %s", e.Offset, e.Expected, e.Got)
}

// DefaultMaxDepth bounds array and dictionary nesting.
const DefaultMaxDepth = 256

// Grammar holds the limits applied while parsing. The zero value has no
// string limit and uses DefaultMaxDepth.
type Grammar struct {
	// MaxDepth caps array and dictionary nesting.
	MaxDepth int
	// MaxStringLength caps decoded literal and hex strings; 0 is unbounded.
	MaxStringLength int64
}

// DefaultGrammar backs the package-level Parse functions.
var DefaultGrammar = Grammar{MaxDepth: DefaultMaxDepth}

// ParseDocument parses a complete file with DefaultGrammar.
func ParseDocument(data []byte) (*raw.Node, error) { return DefaultGrammar.ParseDocument(data) }

// ParseObject parses exactly one direct object with DefaultGrammar.
func ParseObject(data []byte) (*raw.Node, error) { return DefaultGrammar.ParseObject(data) }

// ParseIndirect parses one indirect object with DefaultGrammar.
func ParseIndirect(data []byte) (*raw.Node, error) { return DefaultGrammar.ParseIndirect(data) }

// ParseTrailerTail parses an xref section and trailer with DefaultGrammar.
func ParseTrailerTail(data []byte) (xref, startxref *raw.Node, err error) {
	return DefaultGrammar.ParseTrailerTail(data)
}

// ParseDocument parses a complete file: a header followed by one or more updates.
func (g Grammar) ParseDocument(data []byte) (*raw.Node, error) {
	tr, err := g.newTokenReader(data)
	if err != nil {
		return nil, err
	}
	tok, err := tr.expect(scanner.TokenHeader, "%PDF header")
	if err != nil {
		return nil, err
	}
	header := raw.NewLeaf(raw.TagHeader, raw.Version(tok.Str), span(tok))
	children := []*raw.Node{header}
	for {
		update, err := parseUpdate(tr)
		if err != nil {
			return nil, err
		}
		children = append(children, update)
		if tr.done() {
			break
		}
	}
	root := raw.NewTree(raw.TagPDF, children...)
	root.Span = raw.Span{Start: 0, End: int64(len(data))}
	return root, nil
}

// ParseObject parses exactly one direct object.
func (g Grammar) ParseObject(data []byte) (*raw.Node, error) {
	tr, err := g.newTokenReader(data)
	if err != nil {
		return nil, err
	}
	obj, err := parseObject(tr)
	if err != nil {
		return nil, err
	}
	return obj, tr.finish()
}

// ParseIndirect parses exactly one 'N G obj ... endobj' definition.
func (g Grammar) ParseIndirect(data []byte) (*raw.Node, error) {
	tr, err := g.newTokenReader(data)
	if err != nil {
		return nil, err
	}
	obj, err := parseIndirect(tr)
	if err != nil {
		return nil, err
	}
	return obj, tr.finish()
}

// ParseTrailerTail parses a classical cross-reference section with its
// trailer, followed by 'startxref N %%EOF'.
func (g Grammar) ParseTrailerTail(data []byte) (xref, startxref *raw.Node, err error) {
	tr, err := g.newTokenReader(data)
	if err != nil {
		return nil, nil, err
	}
	if xref, err = parseXRefSection(tr); err != nil {
		return nil, nil, err
	}
	if startxref, err = parseStartXRef(tr); err != nil {
		return nil, nil, err
	}
	return xref, startxref, tr.finish()
}

func parseUpdate(tr *tokenReader) (*raw.Node, error) {
	var items []*raw.Node
	for {
		tok, ok := tr.peek()
		if !ok || !tok.IsObjHeader() {
			break
		}
		obj, err := parseIndirect(tr)
		if err != nil {
			return nil, err
		}
		items = append(items, obj)
	}
	tok, ok := tr.peek()
	switch {
	case ok && tok.Type == scanner.TokenXRef:
		xref, err := parseXRefSection(tr)
		if err != nil {
			return nil, err
		}
		items = append(items, xref)
	case len(items) > 0 && items[len(items)-1].Tag == raw.TagIndirectStream:
		// The last stream object is the cross-reference stream.
	default:
		return nil, tr.unexpected("indirect object or cross-reference section")
	}
	startxref, err := parseStartXRef(tr)
	if err != nil {
		return nil, err
	}
	items = append(items, startxref)
	return raw.NewTree(raw.TagUpdate, items...), nil
}

func parseIndirect(tr *tokenReader) (*raw.Node, error) {
	head, ok := tr.next()
	if !ok || !head.IsObjHeader() {
		return nil, tr.unexpectedTok(head, ok, "'N G obj'")
	}
	id := raw.ObjectID{Num: int(head.Int), Gen: head.Gen}
	obj, err := parseObject(tr)
	if err != nil {
		return nil, err
	}
	var node *raw.Node
	if tok, ok := tr.peek(); ok && tok.Type == scanner.TokenStream && obj.Tag == raw.TagDictionary {
		tr.next()
		data := raw.NewLeaf(raw.TagStreamData, raw.Data(tok.Bytes), span(tok))
		node = raw.NewTree(raw.TagIndirectStream, obj, data)
	} else {
		node = raw.NewTree(raw.TagIndirect, obj)
	}
	end, ok := tr.next()
	if !ok || !end.IsKeyword("endobj") {
		return nil, tr.unexpectedTok(end, ok, "'endobj'")
	}
	node.Payload = id
	node.Span = raw.Span{Start: head.Pos, End: end.End}
	return node, nil
}

func parseXRefSection(tr *tokenReader) (*raw.Node, error) {
	tok, err := tr.expect(scanner.TokenXRef, "'xref'")
	if err != nil {
		return nil, err
	}
	kw, ok := tr.next()
	if !ok || !kw.IsKeyword("trailer") {
		return nil, tr.unexpectedTok(kw, ok, "'trailer'")
	}
	if _, err := tr.expect(scanner.TokenDict, "trailer dictionary"); err != nil {
		return nil, err
	}
	tr.unreadLast()
	dict, err := parseObject(tr)
	if err != nil {
		return nil, err
	}
	node := raw.NewTree(raw.TagXRef, dict)
	node.Payload = raw.Data(tok.Bytes)
	node.Span = raw.Span{Start: tok.Pos, End: dict.Span.End}
	return node, nil
}

func parseStartXRef(tr *tokenReader) (*raw.Node, error) {
	kw, ok := tr.next()
	if !ok || !kw.IsKeyword("startxref") {
		return nil, tr.unexpectedTok(kw, ok, "'startxref'")
	}
	off, err := tr.expect(scanner.TokenNumber, "startxref offset")
	if err != nil {
		return nil, err
	}
	if !off.IsInt || off.Int < 0 {
		return nil, &SyntaxError{Offset: off.Pos, Expected: "non-negative integer offset", Got: off.String()}
	}
	eof, err := tr.expect(scanner.TokenEOF, "'%%EOF'")
	if err != nil {
		return nil, err
	}
	return raw.NewLeaf(raw.TagStartXRef, raw.Offset(off.Int), raw.Span{Start: kw.Pos, End: eof.End}), nil
}

func parseObject(tr *tokenReader) (*raw.Node, error) {
	tok, ok := tr.next()
	if !ok {
		return nil, tr.unexpectedTok(tok, ok, "object")
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NewLeaf(raw.TagName, raw.Name(tok.Str), span(tok)), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NewLeaf(raw.TagNumber, raw.Int(tok.Int), span(tok)), nil
		}
		return raw.NewLeaf(raw.TagNumber, raw.Real(tok.Float), span(tok)), nil
	case scanner.TokenBoolean:
		return raw.NewLeaf(raw.TagBool, raw.Bool(tok.Bool), span(tok)), nil
	case scanner.TokenNull:
		return raw.NewLeaf(raw.TagNull, raw.Null{}, span(tok)), nil
	case scanner.TokenString:
		return raw.NewLeaf(raw.TagString, raw.String(tok.Bytes), span(tok)), nil
	case scanner.TokenRef:
		return raw.NewLeaf(raw.TagRef, raw.Ref{Num: int(tok.Int), Gen: tok.Gen}, span(tok)), nil
	case scanner.TokenArray, scanner.TokenDict:
		if tr.depth >= tr.maxDepth {
			return nil, errors.WithStack(&SyntaxError{
				Offset:   tok.Pos,
				Expected: fmt.Sprintf("at most %d nested arrays and dictionaries", tr.maxDepth),
				Got:      tok.Type.String(),
			})
		}
		tr.depth++
		defer func() { tr.depth-- }()
		if tok.Type == scanner.TokenArray {
			return parseArray(tr, tok)
		}
		return parseDict(tr, tok)
	}
	return nil, tr.unexpectedTok(tok, true, "object")
}

func parseArray(tr *tokenReader, open scanner.Token) (*raw.Node, error) {
	arr := &raw.Node{Tag: raw.TagArray}
	for {
		tok, ok := tr.peek()
		if !ok {
			return nil, tr.unexpectedTok(tok, ok, "']'")
		}
		if tok.Type == scanner.TokenArrayEnd {
			tr.next()
			arr.Span = raw.Span{Start: open.Pos, End: tok.End}
			return arr, nil
		}
		item, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func parseDict(tr *tokenReader, open scanner.Token) (*raw.Node, error) {
	d := &raw.Node{Tag: raw.TagDictionary}
	for {
		tok, ok := tr.next()
		if !ok {
			return nil, tr.unexpectedTok(tok, ok, "'>>'")
		}
		if tok.Type == scanner.TokenDictEnd {
			d.Span = raw.Span{Start: open.Pos, End: tok.End}
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, tr.unexpectedTok(tok, true, "name key or '>>'")
		}
		val, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		d.Append(raw.NewEntry(tok.Str, span(tok), val))
	}
}

func span(tok scanner.Token) raw.Span { return raw.Span{Start: tok.Pos, End: tok.End} }

// tokenReader walks a fully scanned token slice.
type tokenReader struct {
	toks     []scanner.Token
	i        int
	size     int64
	depth    int
	maxDepth int
}

// newTokenReader scans data strictly; any lexical anomaly is an error.
func (g Grammar) newTokenReader(data []byte) (*tokenReader, error) {
	toks, err := scanner.Tokenize(data, scanner.Config{
		MaxStringLength: g.MaxStringLength,
		Recovery:        recovery.NewStrictStrategy(),
	})
	if err != nil {
		return nil, err
	}
	maxDepth := g.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &tokenReader{toks: toks, size: int64(len(data)), maxDepth: maxDepth}, nil
}

func (r *tokenReader) done() bool { return r.i >= len(r.toks) }

func (r *tokenReader) peek() (scanner.Token, bool) {
	if r.done() {
		return scanner.Token{}, false
	}
	return r.toks[r.i], true
}

func (r *tokenReader) next() (scanner.Token, bool) {
	tok, ok := r.peek()
	if ok {
		r.i++
	}
	return tok, ok
}

func (r *tokenReader) unreadLast() {
	if r.i > 0 {
		r.i--
	}
}

func (r *tokenReader) expect(typ scanner.TokenType, what string) (scanner.Token, error) {
	tok, ok := r.next()
	if !ok || tok.Type != typ {
		return tok, r.unexpectedTok(tok, ok, what)
	}
	return tok, nil
}

// finish fails unless every token has been consumed.
func (r *tokenReader) finish() error {
	if !r.done() {
		return r.unexpected("end of input")
	}
	return nil
}

func (r *tokenReader) unexpected(what string) error {
	tok, ok := r.peek()
	return r.unexpectedTok(tok, ok, what)
}

func (r *tokenReader) unexpectedTok(tok scanner.Token, ok bool, what string) error {
	if !ok {
		return errors.WithStack(&SyntaxError{Offset: r.size, Expected: what, Got: "end of input"})
	}
	return errors.WithStack(&SyntaxError{Offset: tok.Pos, Expected: what, Got: fmt.Sprintf("%s %q", tok.Type, tok.String())})
}
