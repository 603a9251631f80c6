package raw

import (
	"fmt"
	"strconv"
)

// Tag names the grammar production a node was built from.
type Tag string

const (
	TagPDF            Tag = "pdf"
	TagHeader         Tag = "header"
	TagUpdate         Tag = "update"
	TagIndirect       Tag = "indirect_object"
	TagIndirectStream Tag = "indirect_object_stream"
	TagDictionary     Tag = "dictionary"
	TagEntry          Tag = "dictionary_entry"
	TagArray          Tag = "array"
	TagName           Tag = "name"
	TagString         Tag = "string"
	TagNumber         Tag = "number"
	TagBool           Tag = "bool"
	TagNull           Tag = "null"
	TagRef            Tag = "R"
	TagXRef           Tag = "xref"
	TagStartXRef      Tag = "startxref"
	TagObjectStream   Tag = "object_stream"
	TagStreamData     Tag = "stream-data"
)

// Well-known attribute keys.
const (
	// AttrPath is set on an R node when its target is in the index.
	AttrPath = "path"
	// AttrDecrypted marks string and stream-data nodes already decrypted.
	AttrDecrypted = "decrypted"
	// AttrStrategy records on the root which parsing strategy produced the tree.
	AttrStrategy = "strategy"
	// AttrStreamOffset records where an unpacked object sat inside its object stream.
	AttrStreamOffset = "stream_offset"
)

// Span is a half-open byte range [Start, End) into the source buffer.
type Span struct {
	Start int64
	End   int64
}

func (s Span) Len() int64 { return s.End - s.Start }

// Union returns the smallest span covering both s and o.
func (s Span) Union(o Span) Span {
	out := s
	if o.Start < out.Start {
		out.Start = o.Start
	}
	if o.End > out.End {
		out.End = o.End
	}
	return out
}

// Contains reports whether o lies within s.
func (s Span) Contains(o Span) bool { return o.Start >= s.Start && o.End <= s.End }

func (s Span) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End) }

// ObjectID identifies an indirect object.
type ObjectID struct {
	Num int
	Gen int
}

// Key renders the identifier the way the index keys it.
func (id ObjectID) Key() string {
	return strconv.Itoa(id.Num) + " " + strconv.Itoa(id.Gen)
}

func (id ObjectID) String() string { return id.Key() }

// ParseKey is the inverse of Key.
func ParseKey(key string) (ObjectID, bool) {
	var id ObjectID
	n, err := fmt.Sscanf(key, "%d %d", &id.Num, &id.Gen)
	if err != nil || n != 2 || id.Num < 0 || id.Gen < 0 {
		return ObjectID{}, false
	}
	return id, true
}
