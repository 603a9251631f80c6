package document

import (
	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/observability"
)

// Reachability is the outcome of a walk from the catalog.
type Reachability struct {
	// Objects maps every reached identifier to its node.
	Objects map[raw.ObjectID]*raw.Node
	// Passes counts full sweeps, including the final one that added nothing.
	Passes int
	// Sizes records the reached-set size after each pass.
	Sizes []int
	// Nulled counts R nodes rewritten to null because their target is missing.
	Nulled int
}

// IDs returns the reached identifiers in ascending order.
func (r *Reachability) IDs() []raw.ObjectID {
	ids := make([]raw.ObjectID, 0, len(r.Objects))
	for id := range r.Objects {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Reachable follows references from the catalog until a full pass adds no
// object. References to missing objects met on the way are replaced by null
// in place.
func (g *Graph) Reachable() (*Reachability, error) {
	root, err := g.Root()
	if err != nil {
		return nil, err
	}
	rootID, _ := root.ID()
	res := &Reachability{Objects: map[raw.ObjectID]*raw.Node{rootID: root}}

	for grew := true; grew; {
		grew = false
		res.Passes++
		reached := res.IDs()
		for _, id := range reached {
			for _, link := range refLinks(res.Objects[id]) {
				target, _ := link.Node.Target()
				if _, ok := res.Objects[target]; ok {
					continue
				}
				if obj, ok := g.index[target]; ok {
					res.Objects[target] = obj
					grew = true
					continue
				}
				link.Parent.ReplaceChild(link.Node, raw.NewLeaf(raw.TagNull, raw.Null{}, link.Node.Span))
				res.Nulled++
				g.cfg.Diagnostics.Add(observability.Diagnostic{
					Pass: observability.PassReach, Severity: observability.SeverityInfo,
					Message: "reference to missing object " + target.Key() + " replaced by null",
					Offset:  link.Node.Span.Start, Object: id.Key(),
				})
			}
		}
		res.Sizes = append(res.Sizes, len(res.Objects))
	}
	g.log.Info("reachability computed",
		observability.Int("objects", len(res.Objects)),
		observability.Int("passes", res.Passes),
		observability.Int("nulled", res.Nulled))
	return res, nil
}
