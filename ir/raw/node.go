package raw

import "strconv"

// Node is one element of the document tree. Leaves carry a Payload; interior
// nodes carry Children. A parent's span covers the spans of its descendants.
type Node struct {
	Tag      Tag
	Payload  Payload
	Span     Span
	Children []*Node
	Attrs    map[string]string
}

// Link is a node together with its parent and position, as seen in a snapshot.
type Link struct {
	Parent *Node
	Index  int
	Node   *Node
}

// NewLeaf builds a payload-carrying node.
func NewLeaf(tag Tag, p Payload, span Span) *Node {
	return &Node{Tag: tag, Payload: p, Span: span}
}

// NewTree builds an interior node whose span covers its children.
func NewTree(tag Tag, children ...*Node) *Node {
	n := &Node{Tag: tag, Children: children}
	n.Span = Cover(children)
	return n
}

// Cover returns the union of the spans of nodes, or the zero span.
func Cover(nodes []*Node) Span {
	if len(nodes) == 0 {
		return Span{}
	}
	s := nodes[0].Span
	for _, n := range nodes[1:] {
		s = s.Union(n.Span)
	}
	return s
}

// Attr returns the value of an attribute.
func (n *Node) Attr(key string) (string, bool) {
	if n.Attrs == nil {
		return "", false
	}
	v, ok := n.Attrs[key]
	return v, ok
}

func (n *Node) SetAttr(key, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
}

func (n *Node) DelAttr(key string) {
	delete(n.Attrs, key)
}

// IsIndirect reports whether n defines an indirect object.
func (n *Node) IsIndirect() bool {
	return n.Tag == TagIndirect || n.Tag == TagIndirectStream
}

// ID returns the identifier of an indirect object node.
func (n *Node) ID() (ObjectID, bool) {
	if !n.IsIndirect() {
		return ObjectID{}, false
	}
	id, ok := n.Payload.(ObjectID)
	return id, ok
}

// Target returns the identifier an R node points at.
func (n *Node) Target() (ObjectID, bool) {
	if n.Tag != TagRef {
		return ObjectID{}, false
	}
	r, ok := n.Payload.(Ref)
	return ObjectID(r), ok
}

// NameValue returns the payload of a name node.
func (n *Node) NameValue() (string, bool) {
	if n == nil || n.Tag != TagName {
		return "", false
	}
	v, ok := n.Payload.(Name)
	return string(v), ok
}

// IntValue returns the payload of an integer number node.
func (n *Node) IntValue() (int64, bool) {
	if n == nil || n.Tag != TagNumber {
		return 0, false
	}
	v, ok := n.Payload.(Number)
	if !ok || !v.IsInt {
		return 0, false
	}
	return v.I, true
}

// Bytes returns the payload of string, stream-data and xref nodes.
func (n *Node) Bytes() ([]byte, bool) {
	if n == nil {
		return nil, false
	}
	switch p := n.Payload.(type) {
	case String:
		return []byte(p), true
	case Data:
		return []byte(p), true
	}
	return nil, false
}

// Object returns the value of an indirect object: the wrapped object for
// indirect_object, the stream dictionary for indirect_object_stream.
func (n *Node) Object() *Node {
	if !n.IsIndirect() || len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// StreamData returns the stream-data child of an indirect_object_stream.
func (n *Node) StreamData() *Node {
	if n.Tag != TagIndirectStream || len(n.Children) < 2 {
		return nil
	}
	if c := n.Children[1]; c.Tag == TagStreamData {
		return c
	}
	return nil
}

// Dict returns the dictionary of an indirect object or stream, or n itself if
// it is a dictionary.
func (n *Node) Dict() *Node {
	if n == nil {
		return nil
	}
	if n.Tag == TagDictionary {
		return n
	}
	if obj := n.Object(); obj != nil && obj.Tag == TagDictionary {
		return obj
	}
	return nil
}

// ChildrenSnapshot returns a copy of the child list.
func (n *Node) ChildrenSnapshot() []*Node {
	out := make([]*Node, len(n.Children))
	copy(out, n.Children)
	return out
}

// Append adds children without changing n's span.
func (n *Node) Append(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// RemoveChild removes c from n's children by identity.
func (n *Node) RemoveChild(c *Node) bool {
	for i, child := range n.Children {
		if child == c {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return true
		}
	}
	return false
}

// ReplaceChild swaps old for repl by identity.
func (n *Node) ReplaceChild(old, repl *Node) bool {
	for i, child := range n.Children {
		if child == old {
			n.Children[i] = repl
			return true
		}
	}
	return false
}

// Walk returns every node of the subtree rooted at n in pre-order.
func (n *Node) Walk() []*Node {
	var out []*Node
	var visit func(*Node)
	visit = func(c *Node) {
		out = append(out, c)
		for _, child := range c.Children {
			visit(child)
		}
	}
	visit(n)
	return out
}

// FindAll returns the nodes of the subtree that satisfy match, in pre-order.
func (n *Node) FindAll(match func(*Node) bool) []*Node {
	var out []*Node
	for _, c := range n.Walk() {
		if match(c) {
			out = append(out, c)
		}
	}
	return out
}

// Links returns every descendant of n with its parent, in pre-order.
func (n *Node) Links() []Link {
	var out []Link
	var visit func(*Node)
	visit = func(p *Node) {
		for i, child := range p.Children {
			out = append(out, Link{Parent: p, Index: i, Node: child})
			visit(child)
		}
	}
	visit(n)
	return out
}

// Paths returns the tree path of every node in the subtree, keyed by node.
// A path names each step by tag and 1-based position among same-tag siblings,
// e.g. /pdf/update[1]/indirect_object[3].
func (n *Node) Paths() map[*Node]string {
	out := make(map[*Node]string)
	var visit func(*Node, string)
	visit = func(c *Node, path string) {
		out[c] = path
		seen := make(map[Tag]int)
		for _, child := range c.Children {
			seen[child.Tag]++
			visit(child, path+"/"+string(child.Tag)+"["+strconv.Itoa(seen[child.Tag])+"]")
		}
	}
	visit(n, "/"+string(n.Tag))
	return out
}

// Shift moves every span in the subtree by delta.
func (n *Node) Shift(delta int64) {
	for _, c := range n.Walk() {
		c.Span.Start += delta
		c.Span.End += delta
	}
}

// Respan sets every span in the subtree to s.
func (n *Node) Respan(s Span) {
	for _, c := range n.Walk() {
		c.Span = s
	}
}
