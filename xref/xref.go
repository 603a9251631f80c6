package xref

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"
	"github.com/tdewolff/parse/v2/strconv"

	"github.com/wudi/pdfdissect/ir/raw"
)

var ErrMalformed = errors.New("xref: malformed table")

// Entry is one row of a classic xref table.
type Entry struct {
	Offset int64
	Gen    int
	InUse  bool
}

// Table holds the rows of one classic xref section. Later subsections
// override earlier rows for the same object number.
type Table struct {
	entries map[int]Entry
}

// ParseTable reads the body of an xref section: the text between the xref
// keyword and trailer. Line endings are not significant.
func ParseTable(body []byte) (*Table, error) {
	fields := bytes.Fields(body)
	t := &Table{entries: make(map[int]Entry)}
	for i := 0; i < len(fields); {
		if i+1 >= len(fields) {
			return nil, errors.Wrapf(ErrMalformed, "dangling subsection header %q", fields[i])
		}
		start, ok := atoi(fields[i])
		if !ok || start < 0 {
			return nil, errors.Wrapf(ErrMalformed, "parse xref start %q", fields[i])
		}
		count, ok := atoi(fields[i+1])
		if !ok || count < 0 {
			return nil, errors.Wrapf(ErrMalformed, "parse xref count %q", fields[i+1])
		}
		i += 2
		for n := int64(0); n < count; n++ {
			if i+3 > len(fields) {
				return nil, errors.Wrapf(ErrMalformed, "unexpected end of subsection %d %d", start, count)
			}
			off, ok := atoi(fields[i])
			if !ok {
				return nil, errors.Wrapf(ErrMalformed, "parse xref offset %q", fields[i])
			}
			gen, ok := atoi(fields[i+1])
			if !ok {
				return nil, errors.Wrapf(ErrMalformed, "parse xref gen %q", fields[i+1])
			}
			var inUse bool
			switch string(fields[i+2]) {
			case "n":
				inUse = true
			case "f":
			default:
				return nil, errors.Wrapf(ErrMalformed, "invalid xref entry type %q", fields[i+2])
			}
			t.entries[int(start+n)] = Entry{Offset: off, Gen: int(gen), InUse: inUse}
			i += 3
		}
	}
	return t, nil
}

func atoi(b []byte) (int64, bool) {
	v, n := strconv.ParseInt(b)
	return v, n > 0 && n == len(b)
}

// FromNode parses the table carried by an xref node.
func FromNode(n *raw.Node) (*Table, error) {
	if n == nil || n.Tag != raw.TagXRef {
		return nil, errors.Wrap(ErrMalformed, "not an xref node")
	}
	body, _ := n.Bytes()
	return ParseTable(body)
}

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok
}

// Objects returns the in-use object numbers in ascending order.
func (t *Table) Objects() []int {
	return t.numbers(true)
}

// Free returns the object numbers marked free, in ascending order.
func (t *Table) Free() []int {
	return t.numbers(false)
}

func (t *Table) Len() int { return len(t.entries) }

func (t *Table) numbers(inUse bool) []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.InUse == inUse {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}
