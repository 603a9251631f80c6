// Package document derives an object graph from a parsed tree: the
// identifier index, reference resolution, object-stream unpacking and
// reachability from the document catalog.
package document

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/wudi/pdfdissect/filters"
	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/observability"
)

var (
	ErrNoStartXRef = errors.New("document: no startxref marker")
	ErrNoTrailer   = errors.New("document: main xref not found")
	ErrNoRoot      = errors.New("document: root not found")
	ErrObjStm      = errors.New("document: malformed object stream")
)

type Config struct {
	Logger      observability.Logger
	Diagnostics *observability.Diagnostics
	// Expand configures stream decoding in Process. Its Logger and
	// Diagnostics default to the graph's.
	Expand filters.ExpandConfig
}

// Graph wraps a document tree with derived caches. The caches are rebuilt
// after every structural change, never patched.
type Graph struct {
	tree  *raw.Node
	cfg   Config
	log   observability.Logger
	index map[raw.ObjectID]*raw.Node
}

// New indexes tree and returns its graph.
func New(tree *raw.Node, cfg Config) *Graph {
	g := &Graph{tree: tree, cfg: cfg, log: observability.OrNop(cfg.Logger)}
	g.Reindex()
	return g
}

func (g *Graph) Tree() *raw.Node { return g.tree }

func (g *Graph) Diagnostics() *observability.Diagnostics { return g.cfg.Diagnostics }

// Reindex rebuilds the identifier map. The last definition in document
// order wins.
func (g *Graph) Reindex() {
	g.index = make(map[raw.ObjectID]*raw.Node)
	for _, n := range g.Objects() {
		id, _ := n.ID()
		g.index[id] = n
	}
	g.log.Debug("index rebuilt", observability.Int("objects", len(g.index)))
}

// Lookup returns the indexed object for id.
func (g *Graph) Lookup(id raw.ObjectID) (*raw.Node, bool) {
	n, ok := g.index[id]
	return n, ok
}

// Objects returns every indirect object in document order, including
// shadowed duplicates and objects unpacked from object streams.
func (g *Graph) Objects() []*raw.Node {
	return g.tree.FindAll(func(n *raw.Node) bool { return n.IsIndirect() })
}

// IDs returns the indexed identifiers in ascending order.
func (g *Graph) IDs() []raw.ObjectID {
	ids := make([]raw.ObjectID, 0, len(g.index))
	for id := range g.index {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// StartXRef returns the offset of the last startxref marker.
func (g *Graph) StartXRef() (int64, error) {
	markers := g.tree.FindAll(func(n *raw.Node) bool { return n.Tag == raw.TagStartXRef })
	if len(markers) == 0 {
		return 0, ErrNoStartXRef
	}
	off, ok := markers[len(markers)-1].Payload.(raw.Offset)
	if !ok {
		return 0, errors.Wrap(ErrNoStartXRef, "marker has no offset")
	}
	return int64(off), nil
}

// MainXRef returns the xref section or cross-reference stream that the last
// startxref points at. Exactly one candidate must start there.
func (g *Graph) MainXRef() (*raw.Node, error) {
	off, err := g.StartXRef()
	if err != nil {
		return nil, err
	}
	candidates := g.tree.FindAll(func(n *raw.Node) bool {
		return n.Span.Start == off && (n.Tag == raw.TagXRef || n.Tag == raw.TagIndirectStream)
	})
	if len(candidates) != 1 {
		return nil, errors.Wrapf(ErrNoTrailer, "%d candidates at offset %d", len(candidates), off)
	}
	return candidates[0], nil
}

// Trailer returns the trailer dictionary of the main xref.
func (g *Graph) Trailer() (*raw.Node, error) {
	x, err := g.MainXRef()
	if err != nil {
		return nil, err
	}
	var dict *raw.Node
	if x.Tag == raw.TagXRef {
		if len(x.Children) > 0 {
			dict = x.Children[0]
		}
	} else {
		dict = x.Object()
	}
	if dict == nil || dict.Tag != raw.TagDictionary {
		return nil, errors.Wrap(ErrNoTrailer, "trailer is not a dictionary")
	}
	return dict, nil
}

// Root returns the catalog named by the trailer's single Root reference.
func (g *Graph) Root() (*raw.Node, error) {
	trailer, err := g.Trailer()
	if err != nil {
		return nil, err
	}
	refs := raw.LookupAll(trailer, "Root")
	if len(refs) != 1 {
		return nil, errors.Wrapf(ErrNoRoot, "trailer has %d Root entries", len(refs))
	}
	id, ok := refs[0].Target()
	if !ok {
		return nil, errors.Wrapf(ErrNoRoot, "Root is %s", refs[0].Tag)
	}
	root, ok := g.index[id]
	if !ok {
		return nil, errors.Wrapf(ErrNoRoot, "object %s not found", id)
	}
	return root, nil
}

// ResolveReferences sets the path attribute of every R node whose target is
// indexed and clears it on the others. It returns the resolved and
// unresolved counts. Re-running it is safe.
func (g *Graph) ResolveReferences() (resolved, unresolved int) {
	paths := g.tree.Paths()
	for _, r := range g.tree.FindAll(func(n *raw.Node) bool { return n.Tag == raw.TagRef }) {
		id, _ := r.Target()
		if target, ok := g.index[id]; ok {
			r.SetAttr(raw.AttrPath, paths[target])
			resolved++
			continue
		}
		r.DelAttr(raw.AttrPath)
		unresolved++
	}
	g.log.Debug("references resolved", observability.Int("resolved", resolved), observability.Int("unresolved", unresolved))
	return resolved, unresolved
}

// UnresolvedReferences returns the R nodes without a path attribute.
func (g *Graph) UnresolvedReferences() []*raw.Node {
	return g.tree.FindAll(func(n *raw.Node) bool {
		if n.Tag != raw.TagRef {
			return false
		}
		_, ok := n.Attr(raw.AttrPath)
		return !ok
	})
}

// StreamsOfType returns the indirect streams whose dictionary Type is ty.
func (g *Graph) StreamsOfType(ty string) []*raw.Node {
	return g.tree.FindAll(func(n *raw.Node) bool {
		if n.Tag != raw.TagIndirectStream {
			return false
		}
		name, ok := raw.LookupName(n.Object(), "Type")
		return ok && name == ty
	})
}

// FilteredStreams returns the indirect streams that still declare a Filter.
func (g *Graph) FilteredStreams() []*raw.Node {
	return g.tree.FindAll(func(n *raw.Node) bool {
		if n.Tag != raw.TagIndirectStream {
			return false
		}
		_, ok := raw.Lookup(n.Object(), "Filter")
		return ok
	})
}

// refLinks collects the R nodes below n with their parents. Objects unpacked
// into an object_stream container are not part of their envelope.
func refLinks(n *raw.Node) []raw.Link {
	var out []raw.Link
	var visit func(*raw.Node)
	visit = func(p *raw.Node) {
		for i, c := range p.Children {
			switch c.Tag {
			case raw.TagRef:
				out = append(out, raw.Link{Parent: p, Index: i, Node: c})
			case raw.TagObjectStream:
			default:
				visit(c)
			}
		}
	}
	visit(n)
	return out
}

func sortIDs(ids []raw.ObjectID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Num != ids[j].Num {
			return ids[i].Num < ids[j].Num
		}
		return ids[i].Gen < ids[j].Gen
	})
}

func objectKey(n *raw.Node) string {
	if id, ok := n.ID(); ok {
		return id.Key()
	}
	return ""
}
