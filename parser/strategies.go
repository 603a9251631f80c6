package parser

import (
	"bytes"
	"context"
	"regexp"
	"sort"

	"github.com/pkg/errors"

	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/observability"
)

const (
	wsClass    = `[\x00\t\n\f\r ]`
	delimClass = `[()<>\[\]/%\x00\t\n\f\r ]`
)

var (
	headerAnchor    = regexp.MustCompile(`%PDF-[0-9]\.[0-9]`)
	startxrefAnchor = regexp.MustCompile(`startxref` + wsClass + `+[0-9]+` + wsClass + `+%%EOF`)
	xrefAnchor      = regexp.MustCompile(`xref`)
	objAnchor       = regexp.MustCompile(`[0-9]+ [0-9]+ obj` + delimClass)
	endobjAnchor    = regexp.MustCompile(delimClass + `endobj`)
)

var errNothingRecovered = errors.New("parser: recovery found no objects and no trailers")

// recoveryStrategy rebuilds a tree from fragments located by byte patterns.
// Objects inside strings or streams may be picked up as phantoms; later
// passes resolve duplicates by last-definition-wins.
type recoveryStrategy struct {
	cfg Config
}

func (*recoveryStrategy) Name() string { return "recovery" }

func (r *recoveryStrategy) Parse(ctx context.Context, data []byte) (*raw.Node, error) {
	log := r.cfg.Logger.With(observability.String("strategy", "recovery"))
	diag := r.cfg.Diagnostics
	size := int64(len(data))

	var headers []*raw.Node
	for _, m := range headerAnchor.FindAllIndex(data, -1) {
		version := string(data[m[0]+len("%PDF-") : m[1]])
		headers = append(headers, raw.NewLeaf(raw.TagHeader, raw.Version(version), raw.Span{Start: int64(m[0]), End: int64(m[1])}))
	}

	startxrefs := startxrefAnchor.FindAllIndex(data, -1)

	var tails []*raw.Node
	var startxrefNodes []*raw.Node
	for _, x := range xrefAnchor.FindAllIndex(data, -1) {
		if x[0] >= len("start") && bytes.Equal(data[x[0]-len("start"):x[0]], []byte("start")) {
			continue
		}
		// Pair with the nearest later startxref that yields a valid tail.
		i := sort.Search(len(startxrefs), func(i int) bool { return startxrefs[i][0] >= x[1] })
		for ; i < len(startxrefs); i++ {
			s := startxrefs[i]
			xref, startxref, err := r.cfg.grammar().ParseTrailerTail(data[x[0]:s[1]])
			if err != nil {
				continue
			}
			xref.Shift(int64(x[0]))
			startxref.Shift(int64(x[0]))
			tails = append(tails, xref)
			startxrefNodes = append(startxrefNodes, startxref)
			break
		}
	}

	// Cross-reference streams end their update with a bare startxref tail.
	for _, s := range startxrefs {
		if containsStart(startxrefNodes, int64(s[0])) {
			continue
		}
		node, err := parseBareStartXRef(data[s[0]:s[1]])
		if err != nil {
			continue
		}
		node.Shift(int64(s[0]))
		startxrefNodes = append(startxrefNodes, node)
	}

	objects, err := r.recoverObjects(ctx, data, log)
	if err != nil {
		return nil, err
	}

	if len(objects) == 0 && len(tails) == 0 {
		return nil, errNothingRecovered
	}

	if len(startxrefNodes) == 0 {
		diag.Warnf(observability.PassRecovery, size, "no startxref marker found, adding placeholder")
		startxrefNodes = append(startxrefNodes, raw.NewLeaf(raw.TagStartXRef, raw.Offset(-1), raw.Span{Start: size, End: size}))
	}
	if len(headers) == 0 {
		diag.Warnf(observability.PassRecovery, 0, "no header found, adding placeholder")
		headers = append(headers, raw.NewLeaf(raw.TagHeader, raw.Version(""), raw.Span{}))
	}

	all := make([]*raw.Node, 0, len(headers)+len(tails)+len(startxrefNodes)+len(objects))
	all = append(all, headers...)
	all = append(all, tails...)
	all = append(all, startxrefNodes...)
	all = append(all, objects...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Span.Start < all[j].Span.Start })

	root := &raw.Node{Tag: raw.TagPDF, Span: raw.Span{Start: 0, End: size}}
	for i, n := range all {
		if n.Tag == raw.TagHeader {
			root.Append(n)
			all = append(all[:i:i], all[i+1:]...)
			break
		}
	}
	var pending []*raw.Node
	for _, n := range all {
		pending = append(pending, n)
		if n.Tag == raw.TagStartXRef {
			root.Append(raw.NewTree(raw.TagUpdate, pending...))
			pending = nil
		}
	}
	if len(pending) > 0 {
		diag.Warnf(observability.PassRecovery, pending[0].Span.Start, "%d trailing nodes after the last startxref", len(pending))
		root.Append(raw.NewTree(raw.TagUpdate, pending...))
	}

	log.Info("recovery finished",
		observability.Int("headers", len(headers)),
		observability.Int("trailers", len(tails)),
		observability.Int("objects", len(objects)),
		observability.Int("updates", len(root.Children)-1))
	diag.Infof(observability.PassRecovery, -1, "recovered %d objects, %d trailers, %d updates", len(objects), len(tails), len(root.Children)-1)
	return root, nil
}

// recoverObjects pairs every obj anchor with the first later endobj anchor
// whose enclosed slice parses as an indirect object.
func (r *recoveryStrategy) recoverObjects(ctx context.Context, data []byte, log observability.Logger) ([]*raw.Node, error) {
	starts := objAnchor.FindAllIndex(data, -1)
	ends := endobjAnchor.FindAllIndex(data, -1)
	attempts := 0
	var objects []*raw.Node
	for _, m := range starts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		first := sort.Search(len(ends), func(i int) bool { return ends[i][0] > m[1] })
		tried := 0
		for _, e := range ends[first:] {
			if tried >= r.cfg.MaxCandidates {
				r.cfg.Diagnostics.Warnf(observability.PassRecovery, int64(m[0]), "gave up on object after %d endobj candidates", tried)
				break
			}
			if attempts >= r.cfg.MaxAttempts {
				r.cfg.Diagnostics.Warnf(observability.PassRecovery, int64(m[0]), "attempt budget of %d exhausted", r.cfg.MaxAttempts)
				log.Warn("recovery attempt budget exhausted", observability.Int("objects", len(objects)))
				return objects, nil
			}
			tried++
			attempts++
			obj, err := r.cfg.grammar().ParseIndirect(data[m[0]:e[1]])
			if err != nil {
				continue
			}
			obj.Shift(int64(m[0]))
			objects = append(objects, obj)
			break
		}
	}
	return objects, nil
}

func parseBareStartXRef(data []byte) (*raw.Node, error) {
	tr, err := DefaultGrammar.newTokenReader(data)
	if err != nil {
		return nil, err
	}
	node, err := parseStartXRef(tr)
	if err != nil {
		return nil, err
	}
	return node, tr.finish()
}

func containsStart(nodes []*raw.Node, start int64) bool {
	for _, n := range nodes {
		if n.Span.Start == start {
			return true
		}
	}
	return false
}
