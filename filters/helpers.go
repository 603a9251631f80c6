package filters

import (
	"github.com/pkg/errors"

	"github.com/wudi/pdfdissect/ir/raw"
)

// ErrFilterSpec reports a Filter/DecodeParms pair that cannot be matched up.
var ErrFilterSpec = errors.New("filters: malformed Filter/DecodeParms")

// SpecFromDict reads Filter and DecodeParms from a stream dictionary and
// pairs them positionally. A dictionary without Filter yields an empty Spec.
func SpecFromDict(dict *raw.Node) (Spec, error) {
	filterObj, ok := raw.Lookup(dict, "Filter")
	if !ok {
		return nil, nil
	}

	var names []string
	switch filterObj.Tag {
	case raw.TagName:
		name, _ := filterObj.NameValue()
		names = append(names, name)
	case raw.TagArray:
		for _, item := range filterObj.Children {
			name, ok := item.NameValue()
			if !ok {
				return nil, errors.Wrapf(ErrFilterSpec, "Filter array holds %s", item.Tag)
			}
			names = append(names, name)
		}
	default:
		return nil, errors.Wrapf(ErrFilterSpec, "Filter is %s", filterObj.Tag)
	}

	params := make([]Params, len(names))
	if pObj, ok := raw.Lookup(dict, "DecodeParms"); ok {
		switch pObj.Tag {
		case raw.TagNull:
		case raw.TagDictionary:
			if len(names) != 1 {
				return nil, errors.Wrapf(ErrFilterSpec, "%d filters but one DecodeParms", len(names))
			}
			params[0] = paramsFromDict(pObj)
		case raw.TagArray:
			if len(pObj.Children) != len(names) {
				return nil, errors.Wrapf(ErrFilterSpec, "%d filters but %d DecodeParms", len(names), len(pObj.Children))
			}
			for i, item := range pObj.Children {
				switch item.Tag {
				case raw.TagNull:
				case raw.TagDictionary:
					params[i] = paramsFromDict(item)
				default:
					return nil, errors.Wrapf(ErrFilterSpec, "DecodeParms array holds %s", item.Tag)
				}
			}
		default:
			return nil, errors.Wrapf(ErrFilterSpec, "DecodeParms is %s", pObj.Tag)
		}
	}

	spec := make(Spec, len(names))
	for i, name := range names {
		spec[i] = Stage{Name: name, Params: params[i]}
	}
	return spec, nil
}

func paramsFromDict(d *raw.Node) Params {
	p := make(Params)
	for _, entry := range d.Children {
		key, ok := raw.EntryKey(entry)
		if !ok {
			continue
		}
		v := raw.EntryValue(entry)
		switch payload := v.Payload.(type) {
		case raw.Number:
			p[key] = payload.Int()
		case raw.Bool:
			if payload {
				p[key] = 1
			} else {
				p[key] = 0
			}
		}
	}
	return p
}
