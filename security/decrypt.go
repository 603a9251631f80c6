package security

import (
	"github.com/pkg/errors"

	"github.com/wudi/pdfdissect/document"
	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/observability"
)

type target struct {
	node  *raw.Node
	owner *raw.Node
	id    raw.ObjectID
}

// Decrypt decrypts every string and stream payload of the tree in place,
// keyed by the enclosing indirect object. The Encrypt dictionary object,
// cross-reference streams and unpacked object-stream content are left alone,
// as are metadata streams when EncryptMetadata is false. A password that does
// not match U is reported and decryption goes ahead.
func Decrypt(g *document.Graph, cfg Config) (*Report, error) {
	log := observability.OrNop(cfg.Logger)
	trailer, err := g.Trailer()
	if err != nil {
		return nil, err
	}
	encVal, ok := raw.Lookup(trailer, "Encrypt")
	if !ok {
		return nil, ErrNotEncrypted
	}
	enc, encID, err := encryptDict(g, encVal)
	if err != nil {
		return nil, err
	}
	h, err := NewStandardHandler(enc, trailer)
	if err != nil {
		return nil, err
	}

	rep := &Report{Authenticated: h.Authenticate(cfg.Password)}
	if !rep.Authenticated {
		log.Warn("password does not match U", observability.Int("key_bits", h.lengthBits))
		cfg.Diagnostics.Warnf(observability.PassDecrypt, encVal.Span.Start, "password does not match U; decrypting anyway")
	}

	targets := collectTargets(g.Tree(), encID, h.encryptMeta)
	for _, t := range targets {
		if _, done := t.node.Attr(raw.AttrDecrypted); done {
			return nil, errors.Wrapf(ErrAlreadyDecrypted, "object %s", t.id)
		}
	}
	for _, t := range targets {
		if err := h.DecryptNode(t.node, t.owner, t.id); err != nil {
			rep.Failed++
			cfg.Diagnostics.Add(observability.Diagnostic{
				Pass: observability.PassDecrypt, Severity: observability.SeverityWarning,
				Message: err.Error(), Offset: t.node.Span.Start, Object: t.id.Key(),
			})
			continue
		}
		if t.node.Tag == raw.TagStreamData {
			rep.Streams++
		} else {
			rep.Strings++
		}
	}
	log.Info("document decrypted",
		observability.String("streams", h.streamAlgo.String()),
		observability.String("strings", h.stringAlgo.String()),
		observability.Int("decrypted", rep.Strings+rep.Streams),
		observability.Int("failed", rep.Failed))
	return rep, nil
}

// DecryptNode decrypts one string or stream-data node of object id in place
// and marks it. owner is the enclosing indirect object; its Length bounds a
// stream payload when it is a direct integer.
func (h *StandardHandler) DecryptNode(n, owner *raw.Node, id raw.ObjectID) error {
	if _, done := n.Attr(raw.AttrDecrypted); done {
		return ErrAlreadyDecrypted
	}
	data, ok := n.Bytes()
	if !ok {
		return errors.Errorf("%s node carries no bytes", n.Tag)
	}
	var (
		out []byte
		err error
	)
	switch n.Tag {
	case raw.TagString:
		out, err = h.DecryptString(id, data)
	case raw.TagStreamData:
		if length, ok := raw.LookupInt(owner.Dict(), "Length"); ok && length >= 0 && length <= int64(len(data)) {
			out, err = h.decrypt(h.streamAlgo, id, data[:length])
		} else {
			out, err = h.DecryptStream(id, data)
		}
	default:
		return errors.Errorf("cannot decrypt %s node", n.Tag)
	}
	if err != nil {
		return err
	}
	if n.Tag == raw.TagString {
		n.Payload = raw.String(out)
	} else {
		n.Payload = raw.Data(out)
	}
	n.SetAttr(raw.AttrDecrypted, "1")
	return nil
}

func encryptDict(g *document.Graph, v *raw.Node) (*raw.Node, *raw.ObjectID, error) {
	if v.Tag == raw.TagDictionary {
		return v, nil, nil
	}
	id, ok := v.Target()
	if !ok {
		return nil, nil, errors.Wrapf(ErrEncryptDict, "Encrypt is %s", v.Tag)
	}
	obj, ok := g.Lookup(id)
	if !ok {
		return nil, nil, errors.Wrapf(ErrEncryptDict, "object %s not found", id)
	}
	d := obj.Object()
	if d == nil || d.Tag != raw.TagDictionary {
		return nil, nil, errors.Wrapf(ErrEncryptDict, "object %s is not a dictionary", id)
	}
	return d, &id, nil
}

func collectTargets(tree *raw.Node, encID *raw.ObjectID, encryptMeta bool) []target {
	var out []target
	var visit func(n, owner *raw.Node, id raw.ObjectID)
	visit = func(n, owner *raw.Node, id raw.ObjectID) {
		switch {
		case n.Tag == raw.TagObjectStream:
			return
		case n.IsIndirect():
			oid, _ := n.ID()
			if encID != nil && oid == *encID {
				return
			}
			if ty, _ := raw.LookupName(n.Dict(), "Type"); n.Tag == raw.TagIndirectStream &&
				(ty == "XRef" || (ty == "Metadata" && !encryptMeta)) {
				return
			}
			owner, id = n, oid
		case owner != nil && (n.Tag == raw.TagString || n.Tag == raw.TagStreamData):
			out = append(out, target{node: n, owner: owner, id: id})
		}
		for _, c := range n.Children {
			visit(c, owner, id)
		}
	}
	visit(tree, nil, raw.ObjectID{})
	return out
}
