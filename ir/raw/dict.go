package raw

// EntryKey returns the key of a dictionary_entry node.
func EntryKey(entry *Node) (string, bool) {
	if entry == nil || entry.Tag != TagEntry || len(entry.Children) != 2 {
		return "", false
	}
	return entry.Children[0].NameValue()
}

// EntryValue returns the value of a dictionary_entry node.
func EntryValue(entry *Node) *Node {
	if entry == nil || entry.Tag != TagEntry || len(entry.Children) != 2 {
		return nil
	}
	return entry.Children[1]
}

// NewEntry builds a dictionary_entry from a key and a value node.
func NewEntry(key string, keySpan Span, value *Node) *Node {
	return NewTree(TagEntry, NewLeaf(TagName, Name(key), keySpan), value)
}

// Lookup returns the value stored under key in dictionary d. Duplicate keys
// are kept positionally in the tree; the last occurrence wins here.
func Lookup(d *Node, key string) (*Node, bool) {
	if d == nil || d.Tag != TagDictionary {
		return nil, false
	}
	var found *Node
	for _, entry := range d.Children {
		if k, ok := EntryKey(entry); ok && k == key {
			found = EntryValue(entry)
		}
	}
	return found, found != nil
}

// LookupAll returns every value stored under key, in order.
func LookupAll(d *Node, key string) []*Node {
	if d == nil || d.Tag != TagDictionary {
		return nil
	}
	var out []*Node
	for _, entry := range d.Children {
		if k, ok := EntryKey(entry); ok && k == key {
			out = append(out, EntryValue(entry))
		}
	}
	return out
}

// LookupName returns the name stored under key.
func LookupName(d *Node, key string) (string, bool) {
	v, ok := Lookup(d, key)
	if !ok {
		return "", false
	}
	return v.NameValue()
}

// LookupInt returns the integer stored under key.
func LookupInt(d *Node, key string) (int64, bool) {
	v, ok := Lookup(d, key)
	if !ok {
		return 0, false
	}
	return v.IntValue()
}

// RemoveKeys deletes every entry of d whose key is in keys and returns how
// many entries were removed.
func RemoveKeys(d *Node, keys ...string) int {
	if d == nil || d.Tag != TagDictionary {
		return 0
	}
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	return retain(d, func(key string) bool { return !drop[key] })
}

// RetainKeys deletes every entry of d whose key is not in keys.
func RetainKeys(d *Node, keys ...string) int {
	if d == nil || d.Tag != TagDictionary {
		return 0
	}
	keep := make(map[string]bool, len(keys))
	for _, k := range keys {
		keep[k] = true
	}
	return retain(d, func(key string) bool { return keep[key] })
}

func retain(d *Node, keep func(string) bool) int {
	kept := d.Children[:0]
	removed := 0
	for _, entry := range d.Children {
		if k, ok := EntryKey(entry); ok && !keep(k) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	for i := len(kept); i < len(d.Children); i++ {
		d.Children[i] = nil
	}
	d.Children = kept
	return removed
}
