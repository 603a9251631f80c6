package filters

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/observability"
)

var ErrNotStream = errors.New("filters: node is not an indirect object stream")

type ExpandConfig struct {
	Pipeline *Pipeline
	// ArtifactDir receives <filter>.error files holding the input of a
	// failing stage. Empty disables artifacts.
	ArtifactDir string
	Logger      observability.Logger
	Diagnostics *observability.Diagnostics
	// Workers bounds concurrent decodes in ExpandAll. Zero means GOMAXPROCS.
	Workers int
}

// Expander replaces filtered stream payloads with their decoded bytes.
type Expander struct {
	cfg ExpandConfig
	log observability.Logger
}

func NewExpander(cfg ExpandConfig) *Expander {
	if cfg.Pipeline == nil {
		cfg.Pipeline = NewDefaultPipeline()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Expander{cfg: cfg, log: observability.OrNop(cfg.Logger)}
}

// job is one stream prepared for decoding.
type job struct {
	stream *raw.Node
	data   *raw.Node
	spec   Spec
	out    []byte
	err    error
}

// Expand decodes one stream in place. It reports false without error when
// the chain holds an image codec or a stage fails; the stream is then left
// untouched. A stream without Filter counts as expanded.
func (e *Expander) Expand(ctx context.Context, stream *raw.Node) (bool, error) {
	j, done, err := e.prepare(stream)
	if err != nil || done != nil {
		return done != nil && *done, err
	}
	j.out, j.err = e.cfg.Pipeline.Decode(ctx, payloadOf(j.data), j.spec)
	return e.apply(ctx, j)
}

// ExpandAll expands every stream, decoding concurrently and mutating the tree
// on the calling goroutine in input order. It returns how many streams were
// expanded. Structural errors of single streams are recorded as diagnostics.
func (e *Expander) ExpandAll(ctx context.Context, streams []*raw.Node) (int, error) {
	var jobs []*job
	expanded := 0
	for _, s := range streams {
		j, done, err := e.prepare(s)
		switch {
		case err != nil:
			e.cfg.Diagnostics.Add(observability.Diagnostic{
				Pass: observability.PassExpand, Severity: observability.SeverityWarning,
				Message: err.Error(), Offset: s.Span.Start, Object: objectKey(s),
			})
		case done != nil:
			if *done {
				expanded++
			}
		default:
			jobs = append(jobs, j)
		}
	}

	sem := make(chan struct{}, e.cfg.Workers)
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				j.err = ctx.Err()
				return
			}
			defer func() { <-sem }()
			j.out, j.err = e.cfg.Pipeline.Decode(ctx, payloadOf(j.data), j.spec)
		}(j)
	}
	wg.Wait()

	for _, j := range jobs {
		ok, err := e.apply(ctx, j)
		if err != nil {
			return expanded, err
		}
		if ok {
			expanded++
		}
	}
	return expanded, nil
}

// prepare validates the stream. A non-nil done means no decoding is needed
// and carries the result.
func (e *Expander) prepare(stream *raw.Node) (*job, *bool, error) {
	if stream == nil || stream.Tag != raw.TagIndirectStream || stream.StreamData() == nil {
		return nil, nil, ErrNotStream
	}
	dict := stream.Object()
	spec, err := SpecFromDict(dict)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "object %s", objectKey(stream))
	}
	yes, no := true, false
	if len(spec) == 0 {
		return nil, &yes, nil
	}
	if name, opaque := spec.Opaque(); opaque {
		e.log.Debug("image codec left opaque", observability.String("object", objectKey(stream)), observability.String("filter", name))
		e.cfg.Diagnostics.Add(observability.Diagnostic{
			Pass: observability.PassExpand, Severity: observability.SeverityInfo,
			Message: "image filter " + name + " not decoded", Offset: stream.Span.Start, Object: objectKey(stream),
		})
		if err := CheckImageBounds(dict); err != nil {
			e.cfg.Diagnostics.Add(observability.Diagnostic{
				Pass: observability.PassExpand, Severity: observability.SeverityWarning,
				Message: err.Error(), Offset: stream.Span.Start, Object: objectKey(stream),
			})
		}
		return nil, &no, nil
	}
	return &job{stream: stream, data: stream.StreamData(), spec: spec}, nil, nil
}

func (e *Expander) apply(ctx context.Context, j *job) (bool, error) {
	if j.err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		e.fail(j)
		return false, nil
	}
	dict := j.stream.Object()
	raw.RemoveKeys(dict, "Filter", "DecodeParms")
	j.data.Payload = raw.Data(j.out)

	if length, ok := raw.LookupInt(dict, "Length"); ok && length != int64(len(j.out)) {
		e.cfg.Diagnostics.Add(observability.Diagnostic{
			Pass: observability.PassExpand, Severity: observability.SeverityInfo,
			Message: "Length is stale after decoding", Offset: j.stream.Span.Start, Object: objectKey(j.stream),
		})
	}
	return true, nil
}

func (e *Expander) fail(j *job) {
	key := objectKey(j.stream)
	e.log.Warn("stream decode failed", observability.String("object", key), observability.Error("error", j.err))
	e.cfg.Diagnostics.Add(observability.Diagnostic{
		Pass: observability.PassExpand, Severity: observability.SeverityWarning,
		Message: j.err.Error(), Offset: j.stream.Span.Start, Object: key,
	})

	var stage *StageError
	if e.cfg.ArtifactDir == "" || !errors.As(j.err, &stage) {
		return
	}
	path := filepath.Join(e.cfg.ArtifactDir, stage.Name+".error")
	if err := os.WriteFile(path, stage.Input, 0o644); err != nil {
		e.log.Error("write artifact", observability.String("path", path), observability.Error("error", err))
	}
}

func payloadOf(data *raw.Node) []byte {
	b, _ := data.Bytes()
	return b
}

func objectKey(n *raw.Node) string {
	if id, ok := n.ID(); ok {
		return id.Key()
	}
	return ""
}
