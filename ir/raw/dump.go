package raw

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Dump writes an indented structural listing of the subtree rooted at n.
func Dump(w io.Writer, n *Node) error {
	return dump(w, n, 0)
}

func dump(w io.Writer, n *Node, depth int) error {
	line := strings.Repeat("  ", depth) + string(n.Tag) + " " + n.Span.String()
	if p := describe(n.Payload); p != "" {
		line += " " + p
	}
	if len(n.Attrs) > 0 {
		keys := make([]string, 0, len(n.Attrs))
		for k := range n.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line += fmt.Sprintf(" @%s=%q", k, n.Attrs[k])
		}
	}
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := dump(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

const dumpPreview = 32

func describe(p Payload) string {
	switch v := p.(type) {
	case nil:
		return ""
	case Name:
		return "/" + string(v)
	case String:
		return preview([]byte(v))
	case Number:
		if v.IsInt {
			return fmt.Sprintf("%d", v.I)
		}
		return fmt.Sprintf("%g", v.F)
	case Bool:
		return fmt.Sprintf("%t", bool(v))
	case Null:
		return "null"
	case Ref:
		return ObjectID(v).Key() + " R"
	case ObjectID:
		return v.Key()
	case Version:
		return string(v)
	case Offset:
		return fmt.Sprintf("%d", int64(v))
	case Data:
		return fmt.Sprintf("%d bytes", len(v))
	}
	return ""
}

func preview(b []byte) string {
	if len(b) > dumpPreview {
		return fmt.Sprintf("%q...", b[:dumpPreview])
	}
	return fmt.Sprintf("%q", b)
}
