package raw

import "math"

// Payload is the value carried by a leaf node. The set of variants is closed.
type Payload interface {
	payload()
}

// Name payload, without the leading slash and with #xx escapes decoded.
type Name string

// String payload, the decoded bytes of a literal or hex string.
type String []byte

// Number payload.
type Number struct {
	I     int64
	F     float64
	IsInt bool
}

// Bool payload.
type Bool bool

// Null payload.
type Null struct{}

// Ref payload of an R node.
type Ref ObjectID

// Version payload of the header node, e.g. "1.7".
type Version string

// Offset payload of a startxref node. -1 marks a placeholder.
type Offset int64

// Data payload of stream-data and xref nodes.
type Data []byte

func (Name) payload()     {}
func (String) payload()   {}
func (Number) payload()   {}
func (Bool) payload()     {}
func (Null) payload()     {}
func (Ref) payload()      {}
func (ObjectID) payload() {}
func (Version) payload()  {}
func (Offset) payload()   {}
func (Data) payload()     {}

// Int builds an integer number.
func Int(v int64) Number { return Number{I: v, IsInt: true} }

// Real builds a number, collapsing integer-valued reals to integers.
func Real(v float64) Number {
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return Number{I: int64(v), IsInt: true}
	}
	return Number{F: v}
}

func (n Number) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}

func (n Number) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

func (r Ref) ID() ObjectID { return ObjectID(r) }
