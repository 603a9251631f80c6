package document

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/observability"
	"github.com/wudi/pdfdissect/parser"
	"github.com/wudi/pdfdissect/scanner"
)

type objStmEntry struct {
	num    int
	offset int64
}

// ExpandObjectStream unpacks a decoded object stream. Every packed object
// becomes a generation-0 indirect_object inside an object_stream container
// appended to the stream; the envelope stays in place. Synthesized nodes take
// the span of the stream payload. The index is rebuilt; references are not
// re-resolved.
func (g *Graph) ExpandObjectStream(stream *raw.Node) (int, error) {
	if stream == nil || stream.Tag != raw.TagIndirectStream || stream.StreamData() == nil {
		return 0, errors.Wrap(ErrObjStm, "not an indirect stream")
	}
	key := objectKey(stream)
	if len(stream.Children) != 2 {
		return 0, errors.Wrapf(ErrObjStm, "object %s already expanded", key)
	}
	dict := stream.Object()
	if _, ok := raw.Lookup(dict, "Filter"); ok {
		return 0, errors.Wrapf(ErrObjStm, "object %s is still filtered", key)
	}
	n, okN := raw.LookupInt(dict, "N")
	first, okFirst := raw.LookupInt(dict, "First")
	if !okN || !okFirst {
		return 0, errors.Wrapf(ErrObjStm, "object %s lacks N or First", key)
	}

	dataNode := stream.StreamData()
	data, _ := dataNode.Bytes()
	if first < 0 || first > int64(len(data)) {
		return 0, errors.Wrapf(ErrObjStm, "object %s: First %d outside payload of %d bytes", key, first, len(data))
	}
	entries, err := objStmHeader(data[:first], first, int64(len(data)))
	if err != nil {
		return 0, errors.Wrapf(err, "object %s", key)
	}
	if int64(len(entries)) != n {
		g.cfg.Diagnostics.Add(observability.Diagnostic{
			Pass: observability.PassObjStm, Severity: observability.SeverityWarning,
			Message: "N is " + strconv.FormatInt(n, 10) + " but header has " + strconv.Itoa(len(entries)) + " objects",
			Offset:  stream.Span.Start, Object: key,
		})
	}

	objects := make([]*raw.Node, 0, len(entries))
	for i, e := range entries {
		end := int64(len(data))
		if i+1 < len(entries) {
			end = entries[i+1].offset
		}
		obj, err := parser.ParseObject(data[e.offset:end])
		if err != nil {
			return 0, errors.Wrapf(ErrObjStm, "object %s: packed object %d: %v", key, e.num, err)
		}
		obj.Respan(dataNode.Span)
		ind := raw.NewTree(raw.TagIndirect, obj)
		ind.Payload = raw.ObjectID{Num: e.num}
		ind.SetAttr(raw.AttrStreamOffset, strconv.FormatInt(e.offset, 10))
		objects = append(objects, ind)
	}

	container := raw.NewTree(raw.TagObjectStream, objects...)
	container.Span = dataNode.Span
	stream.Append(container)
	g.log.Info("object stream expanded", observability.String("object", key), observability.Int("objects", len(objects)))
	g.Reindex()
	return len(objects), nil
}

// objStmHeader reads the (object number, offset) pairs, sorted by offset.
// Offsets are made absolute within the payload; a repeated offset keeps the
// last object number.
func objStmHeader(header []byte, first, size int64) ([]objStmEntry, error) {
	toks, err := scanner.Tokenize(header, scanner.Config{})
	if err != nil {
		return nil, errors.Wrapf(ErrObjStm, "header: %v", err)
	}
	if len(toks)%2 != 0 {
		return nil, errors.Wrapf(ErrObjStm, "header holds %d integers", len(toks))
	}
	byOffset := make(map[int64]int)
	for i := 0; i < len(toks); i += 2 {
		num, off := toks[i], toks[i+1]
		if !isNonNegativeInt(num) || !isNonNegativeInt(off) {
			return nil, errors.Wrapf(ErrObjStm, "header pair %q %q", num.Raw, off.Raw)
		}
		abs := first + off.Int
		if abs > size {
			return nil, errors.Wrapf(ErrObjStm, "offset %d beyond payload", off.Int)
		}
		byOffset[abs] = int(num.Int)
	}
	entries := make([]objStmEntry, 0, len(byOffset))
	for off, num := range byOffset {
		entries = append(entries, objStmEntry{num: num, offset: off})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].offset < entries[j].offset })
	return entries, nil
}

func isNonNegativeInt(t scanner.Token) bool {
	return t.Type == scanner.TokenNumber && t.IsInt && t.Int >= 0
}
