package parser

import (
	"context"

	"github.com/pkg/errors"

	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/observability"
)

var (
	// ErrUnparseable is returned when every strategy failed.
	ErrUnparseable = errors.New("parser: no strategy could parse the document")
	// ErrNotImplemented is returned by strategies that are reserved but not built.
	ErrNotImplemented = errors.New("parser: strategy not implemented")
)

const (
	DefaultMaxCandidates = 512
	DefaultMaxAttempts   = 200000
)

// Config controls document parsing.
type Config struct {
	Logger      observability.Logger
	Diagnostics *observability.Diagnostics
	// MaxCandidates caps the endobj anchors tried for one obj anchor during recovery.
	MaxCandidates int
	// MaxAttempts caps the fragment parses of one recovery run.
	MaxAttempts int
	// MaxDepth caps array and dictionary nesting (default DefaultMaxDepth).
	MaxDepth int
	// MaxStringLength caps decoded strings; 0 is unbounded.
	MaxStringLength int64
}

func (c Config) grammar() Grammar {
	return Grammar{MaxDepth: c.MaxDepth, MaxStringLength: c.MaxStringLength}
}

// Strategy turns a whole file into a tree, or fails.
type Strategy interface {
	Name() string
	Parse(ctx context.Context, data []byte) (*raw.Node, error)
}

// DocumentParser tries its strategies in order and returns the first tree
// that parses without failure.
type DocumentParser struct {
	cfg        Config
	strategies []Strategy
}

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &DocumentParser{
		cfg: cfg,
		strategies: []Strategy{
			strictStrategy{grammar: cfg.grammar()},
			&recoveryStrategy{cfg: cfg},
			xrefStrategy{},
		},
	}
}

// Strategies returns the strategies in the order they are tried.
func (p *DocumentParser) Strategies() []Strategy {
	out := make([]Strategy, len(p.strategies))
	copy(out, p.strategies)
	return out
}

func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*raw.Node, error) {
	log := p.cfg.Logger.With(observability.String("run", p.cfg.Diagnostics.RunID()))
	for _, s := range p.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tree, err := s.Parse(ctx, data)
		if err != nil {
			log.Debug("strategy failed", observability.String("strategy", s.Name()), observability.Error("err", err))
			p.cfg.Diagnostics.Infof(observability.PassParse, -1, "strategy %s failed: %v", s.Name(), err)
			continue
		}
		tree.SetAttr(raw.AttrStrategy, s.Name())
		log.Info("document parsed", observability.String("strategy", s.Name()), observability.Int("updates", len(tree.Children)-1))
		return tree, nil
	}
	p.cfg.Diagnostics.Errorf(observability.PassParse, -1, "all strategies failed")
	return nil, ErrUnparseable
}

type strictStrategy struct {
	grammar Grammar
}

func (strictStrategy) Name() string { return "strict" }

func (s strictStrategy) Parse(_ context.Context, data []byte) (*raw.Node, error) {
	return s.grammar.ParseDocument(data)
}

// xrefStrategy would parse by following cross-reference offsets. It is
// reserved and always fails.
type xrefStrategy struct{}

func (xrefStrategy) Name() string { return "xref" }

func (xrefStrategy) Parse(context.Context, []byte) (*raw.Node, error) {
	return nil, ErrNotImplemented
}
