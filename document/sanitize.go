package document

import (
	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/observability"
)

// DefaultTypes is the Type allow-list used by FilterTypes when none is given.
var DefaultTypes = []string{"Catalog", "Pages", "Page", "XObject", "Font", "FontDescriptor", "Encoding"}

// DefaultKeys is the key allow-list used by FilterKeys when none is given.
var DefaultKeys = []string{
	"Kids", "Type", "Resources", "MediaBox", "ColorSpace", "ProcSet", "Pages",
	"Count", "Rotate", "BaseFont", "Subtype", "Length", "Root", "Parent",
	"Range", "Font", "FunctionType", "Contents", "Size", "ExtGState",
}

// FilterTypes replaces every dictionary whose Type is not allowed with null,
// then drops the indirect objects left holding null. It returns how many
// dictionaries were nulled and how many objects were removed.
func (g *Graph) FilterTypes(allowed []string) (nulled, removed int) {
	if allowed == nil {
		allowed = DefaultTypes
	}
	keep := make(map[string]bool, len(allowed))
	for _, t := range allowed {
		keep[t] = true
	}

	for _, link := range g.tree.Links() {
		if link.Node.Tag != raw.TagDictionary {
			continue
		}
		ty, ok := raw.Lookup(link.Node, "Type")
		if !ok || keep[typeName(ty)] {
			continue
		}
		link.Parent.ReplaceChild(link.Node, raw.NewLeaf(raw.TagNull, raw.Null{}, link.Node.Span))
		nulled++
	}

	for _, link := range g.tree.Links() {
		n := link.Node
		if n.IsIndirect() && len(n.Children) > 0 && n.Children[0].Tag == raw.TagNull {
			g.log.Debug("object removed", observability.String("object", objectKey(n)))
			link.Parent.RemoveChild(n)
			removed++
		}
	}
	g.Reindex()
	return nulled, removed
}

// FilterKeys drops the top-level dictionary entries of every indirect object
// whose key is not allowed. It returns how many entries were dropped.
func (g *Graph) FilterKeys(allowed []string) int {
	if allowed == nil {
		allowed = DefaultKeys
	}
	dropped := 0
	for _, obj := range g.Objects() {
		dropped += raw.RetainKeys(obj.Dict(), allowed...)
	}
	return dropped
}

func typeName(n *raw.Node) string {
	if name, ok := n.NameValue(); ok {
		return name
	}
	if b, ok := n.Bytes(); ok && n.Tag == raw.TagString {
		return string(b)
	}
	return ""
}
