// Package scripting finds the JavaScript carried by a document and checks it
// without running it.
package scripting

import (
	"github.com/wudi/pdfdissect/document"
	"github.com/wudi/pdfdissect/ir/raw"
)

// Script is one JavaScript payload.
type Script struct {
	// Object is the indirect object holding the JS entry.
	Object raw.ObjectID
	// Source is the decoded text; empty when Encoded.
	Source string
	Offset int64
	// Stream is set when JS refers to a stream.
	Stream bool
	// Encoded is set when that stream still carries a filter.
	Encoded bool
}

// Extract returns the JS entries of every indexed object, in identifier
// order. An entry is a string or a reference to a string or stream.
func Extract(g *document.Graph) []Script {
	var out []Script
	for _, id := range g.IDs() {
		obj, _ := g.Lookup(id)
		for _, d := range dictionaries(obj) {
			v, ok := raw.Lookup(d, "JS")
			if !ok {
				continue
			}
			if s, ok := resolve(g, v); ok {
				s.Object = id
				out = append(out, s)
			}
		}
	}
	return out
}

func resolve(g *document.Graph, v *raw.Node) (Script, bool) {
	s := Script{Offset: v.Span.Start}
	if text, ok := v.Text(); ok {
		s.Source = text
		return s, true
	}
	target, ok := v.Target()
	if !ok {
		return s, false
	}
	obj, ok := g.Lookup(target)
	if !ok {
		return s, false
	}
	if text, ok := obj.Object().Text(); ok {
		s.Source = text
		return s, true
	}
	data := obj.StreamData()
	if data == nil {
		return s, false
	}
	s.Stream = true
	s.Offset = data.Span.Start
	if _, filtered := raw.Lookup(obj.Dict(), "Filter"); filtered {
		s.Encoded = true
		return s, true
	}
	b, _ := data.Bytes()
	s.Source = raw.DecodeText(b)
	return s, true
}

// dictionaries lists the dictionaries of obj, skipping unpacked object
// stream content which is indexed on its own.
func dictionaries(obj *raw.Node) []*raw.Node {
	var out []*raw.Node
	var visit func(*raw.Node)
	visit = func(n *raw.Node) {
		if n.Tag == raw.TagObjectStream {
			return
		}
		if n.Tag == raw.TagDictionary {
			out = append(out, n)
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(obj)
	return out
}
