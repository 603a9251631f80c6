// Package analysis computes summary statistics over a document graph.
package analysis

import (
	"fmt"
	"io"
	"sort"

	"github.com/wudi/pdfdissect/document"
	"github.com/wudi/pdfdissect/filters"
	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/scripting"
	"github.com/wudi/pdfdissect/security"
)

// Summary describes a document.
type Summary struct {
	Version       string
	Updates       int
	Objects       int
	Streams       int
	ObjectStreams int
	// Types counts indexed objects by their Type entry; "" counts the untyped.
	Types map[string]int
	// Filters counts filter stages still declared on streams.
	Filters    map[string]int
	JavaScript int
	Unresolved int
	Encrypted  bool
	// Info holds the text strings of the trailer's Info dictionary.
	Info map[string]string
}

// Summarize inspects g without changing it.
func Summarize(g *document.Graph) *Summary {
	s := &Summary{
		Types:   make(map[string]int),
		Filters: make(map[string]int),
		Info:    make(map[string]string),
	}
	for _, c := range g.Tree().Children {
		switch c.Tag {
		case raw.TagHeader:
			if v, ok := c.Payload.(raw.Version); ok && s.Version == "" {
				s.Version = string(v)
			}
		case raw.TagUpdate:
			s.Updates++
		}
	}

	for _, obj := range g.Objects() {
		s.Objects++
		ty, _ := raw.LookupName(obj.Dict(), "Type")
		s.Types[ty]++
		if obj.Tag != raw.TagIndirectStream {
			continue
		}
		s.Streams++
		if ty == "ObjStm" {
			s.ObjectStreams++
		}
		for _, name := range filterNames(obj.Dict()) {
			s.Filters[filters.Canonical(name)]++
		}
	}

	s.JavaScript = len(scripting.Extract(g))
	s.Unresolved = len(g.UnresolvedReferences())
	s.Encrypted = security.IsEncrypted(g)
	if trailer, err := g.Trailer(); err == nil {
		s.Info = info(g, trailer)
	}
	return s
}

func filterNames(dict *raw.Node) []string {
	v, ok := raw.Lookup(dict, "Filter")
	if !ok {
		return nil
	}
	if name, ok := v.NameValue(); ok {
		return []string{name}
	}
	var out []string
	if v.Tag == raw.TagArray {
		for _, c := range v.Children {
			if name, ok := c.NameValue(); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

func info(g *document.Graph, trailer *raw.Node) map[string]string {
	out := make(map[string]string)
	v, ok := raw.Lookup(trailer, "Info")
	if !ok {
		return out
	}
	dict := v
	if id, ok := v.Target(); ok {
		obj, found := g.Lookup(id)
		if !found {
			return out
		}
		dict = obj.Dict()
	}
	if dict == nil || dict.Tag != raw.TagDictionary {
		return out
	}
	for _, entry := range dict.Children {
		key, _ := raw.EntryKey(entry)
		if text, ok := raw.EntryValue(entry).Text(); ok {
			out[key] = text
		}
	}
	return out
}

// Write prints the summary as aligned key-value lines with sorted keys.
func (s *Summary) Write(w io.Writer) error {
	lines := [][2]string{
		{"version", s.Version},
		{"updates", fmt.Sprint(s.Updates)},
		{"objects", fmt.Sprint(s.Objects)},
		{"streams", fmt.Sprint(s.Streams)},
		{"object streams", fmt.Sprint(s.ObjectStreams)},
		{"javascript", fmt.Sprint(s.JavaScript)},
		{"unresolved", fmt.Sprint(s.Unresolved)},
		{"encrypted", fmt.Sprint(s.Encrypted)},
	}
	for _, k := range sortedKeys(s.Types) {
		name := k
		if name == "" {
			name = "(none)"
		}
		lines = append(lines, [2]string{"type " + name, fmt.Sprint(s.Types[k])})
	}
	for _, k := range sortedKeys(s.Filters) {
		lines = append(lines, [2]string{"filter " + k, fmt.Sprint(s.Filters[k])})
	}
	for _, k := range sortedKeys(s.Info) {
		lines = append(lines, [2]string{"info " + k, s.Info[k]})
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-24s %s\n", l[0], l[1]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
