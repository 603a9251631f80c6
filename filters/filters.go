package filters

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Params holds the integer-valued entries of a DecodeParms dictionary.
type Params map[string]int64

// Int returns the value stored under key, or def.
func (p Params) Int(key string, def int64) int64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params Params) ([]byte, error)
}

// Stage is one (filter, parameters) step of a stream's filter chain.
type Stage struct {
	Name   string
	Params Params
}

// Spec is a stream's filter chain in application order.
type Spec []Stage

// Opaque reports whether the chain contains an image codec that is never
// decoded.
func (s Spec) Opaque() (string, bool) {
	for _, st := range s {
		if imageCodecs[Canonical(st.Name)] {
			return st.Name, true
		}
	}
	return "", false
}

var (
	ErrUnknownFilter = errors.New("filters: unknown filter")
	ErrSizeLimit     = errors.New("filters: decoded size exceeds limit")
)

// StageError reports which stage of a chain failed.
type StageError struct {
	Stage int
	Name  string
	// Input is the data the failing stage was given.
	Input []byte
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("filter %s (stage %d): %v", e.Name, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

func DefaultLimits() Limits {
	return Limits{MaxDecompressedSize: 256 << 20}
}

var abbreviations = map[string]string{
	"AHx": "ASCIIHexDecode",
	"A85": "ASCII85Decode",
	"LZW": "LZWDecode",
	"Fl":  "FlateDecode",
	"RL":  "RunLengthDecode",
	"CCF": "CCITTFaxDecode",
	"DCT": "DCTDecode",
}

// Canonical expands the abbreviated filter names allowed in inline images.
func Canonical(name string) string {
	if full, ok := abbreviations[name]; ok {
		return full
	}
	return name
}

var imageCodecs = map[string]bool{
	"DCTDecode":      true,
	"JPXDecode":      true,
	"CCITTFaxDecode": true,
	"JBIG2Decode":    true,
}

type Registry struct{ decoders map[string]Decoder }

func (r *Registry) Register(d Decoder) {
	if r.decoders == nil {
		r.decoders = make(map[string]Decoder)
	}
	r.decoders[d.Name()] = d
}

func (r *Registry) Get(name string) (Decoder, bool) {
	d, ok := r.decoders[Canonical(name)]
	return d, ok
}

// DefaultDecoders returns the generic codecs.
func DefaultDecoders() []Decoder {
	return []Decoder{
		NewASCIIHexDecoder(),
		NewASCII85Decoder(),
		NewRunLengthDecoder(),
		NewLZWDecoder(),
		NewFlateDecoder(),
	}
}

type Pipeline struct {
	registry Registry
	limits   Limits
}

// NewPipeline constructs a pipeline with provided decoders and limits.
func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	p := &Pipeline{limits: limits}
	for _, d := range decoders {
		p.registry.Register(d)
	}
	return p
}

// NewDefaultPipeline wires the generic codecs with default limits.
func NewDefaultPipeline() *Pipeline {
	return NewPipeline(DefaultDecoders(), DefaultLimits())
}

// Decode applies every stage of spec in order. Failures are *StageError.
func (p *Pipeline) Decode(ctx context.Context, input []byte, spec Spec) ([]byte, error) {
	if p.limits.MaxDecodeTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.limits.MaxDecodeTime)
		defer cancel()
	}
	data := input
	for i, st := range spec {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fail := func(err error) error {
			return &StageError{Stage: i, Name: st.Name, Input: data, Err: err}
		}
		dec, ok := p.registry.Get(st.Name)
		if !ok {
			return nil, fail(ErrUnknownFilter)
		}
		out, err := dec.Decode(ctx, data, st.Params)
		if err != nil {
			return nil, fail(err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, fail(ErrSizeLimit)
		}
		data = out
	}
	return data, nil
}
