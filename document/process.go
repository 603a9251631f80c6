package document

import (
	"context"

	"github.com/pkg/errors"

	"github.com/wudi/pdfdissect/filters"
	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/observability"
	"github.com/wudi/pdfdissect/xref"
)

// Report summarizes a Process run.
type Report struct {
	Expanded      int
	NotExpanded   int
	ObjectStreams int
	Unpacked      int
	Resolved      int
	Unresolved    int
}

// Process indexes and resolves, decodes every filtered stream, unpacks every
// object stream, then indexes and resolves again.
func (g *Graph) Process(ctx context.Context) (*Report, error) {
	rep := &Report{}
	g.Reindex()
	g.ResolveReferences()

	cfg := g.cfg.Expand
	if cfg.Logger == nil {
		cfg.Logger = g.cfg.Logger
	}
	if cfg.Diagnostics == nil {
		cfg.Diagnostics = g.cfg.Diagnostics
	}
	streams := g.FilteredStreams()
	expanded, err := filters.NewExpander(cfg).ExpandAll(ctx, streams)
	if err != nil {
		return nil, errors.Wrap(err, "expand streams")
	}
	rep.Expanded = expanded
	rep.NotExpanded = len(streams) - expanded

	objstms := g.StreamsOfType("ObjStm")
	g.log.Info("object streams found", observability.Int("count", len(objstms)))
	for _, s := range objstms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := g.ExpandObjectStream(s)
		if err != nil {
			g.cfg.Diagnostics.Add(observability.Diagnostic{
				Pass: observability.PassObjStm, Severity: observability.SeverityWarning,
				Message: err.Error(), Offset: s.Span.Start, Object: objectKey(s),
			})
			continue
		}
		rep.ObjectStreams++
		rep.Unpacked += n
	}

	g.Reindex()
	rep.Resolved, rep.Unresolved = g.ResolveReferences()
	for _, r := range g.UnresolvedReferences() {
		id, _ := r.Target()
		g.cfg.Diagnostics.Add(observability.Diagnostic{
			Pass: observability.PassResolve, Severity: observability.SeverityInfo,
			Message: "unresolved reference " + id.Key() + " R", Offset: r.Span.Start,
		})
	}
	return rep, nil
}

// Edge is one reference from an object, or from the trailer, to an object.
type Edge struct {
	From string
	To   string
}

// TrailerNode names the trailer in an edge list.
const TrailerNode = "trailer"

// Edges lists object-to-object references of every indexed object in
// identifier order, followed by trailer -> root when a root is found.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, id := range g.IDs() {
		for _, link := range refLinks(g.index[id]) {
			target, _ := link.Node.Target()
			out = append(out, Edge{From: id.Key(), To: target.Key()})
		}
	}
	if root, err := g.Root(); err == nil {
		out = append(out, Edge{From: TrailerNode, To: objectKey(root)})
	}
	return out
}

// CheckXRef compares the classic table of the main xref section with the
// parsed objects and records disagreements as diagnostics. The table is never
// used to change the tree. Cross-reference streams yield a nil table.
func (g *Graph) CheckXRef() (*xref.Table, error) {
	x, err := g.MainXRef()
	if err != nil {
		return nil, err
	}
	if x.Tag != raw.TagXRef {
		return nil, nil
	}
	table, err := xref.FromNode(x)
	if err != nil {
		g.cfg.Diagnostics.Add(observability.Diagnostic{
			Pass: observability.PassXRef, Severity: observability.SeverityWarning,
			Message: err.Error(), Offset: x.Span.Start,
		})
		return nil, err
	}

	byNum := make(map[int]*raw.Node)
	for _, id := range g.IDs() {
		byNum[id.Num] = g.index[id]
	}
	warn := func(sev observability.Severity, num int, msg string, offset int64) {
		g.cfg.Diagnostics.Add(observability.Diagnostic{
			Pass: observability.PassXRef, Severity: sev, Message: msg, Offset: offset,
			Object: raw.ObjectID{Num: num}.Key(),
		})
	}
	for _, num := range table.Objects() {
		e, _ := table.Lookup(num)
		obj, ok := byNum[num]
		switch {
		case !ok:
			warn(observability.SeverityWarning, num, "in use in xref but not found", e.Offset)
		case !unpacked(obj) && obj.Span.Start != e.Offset:
			warn(observability.SeverityInfo, num, "xref offset disagrees with parsed object", e.Offset)
		}
	}
	for _, num := range table.Free() {
		if obj, ok := byNum[num]; ok && num != 0 {
			warn(observability.SeverityWarning, num, "free in xref but present", obj.Span.Start)
		}
	}
	return table, nil
}

func unpacked(obj *raw.Node) bool {
	_, ok := obj.Attr(raw.AttrStreamOffset)
	return ok
}
