package recovery

import (
	"fmt"

	"github.com/wudi/pdfdissect/observability"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy keeps scanning past anomalies. Each one is accumulated in
// Errors and, when Sink is set, recorded as a warning diagnostic.
type LenientStrategy struct {
	Errors []error
	Sink   *observability.Diagnostics
	// Skip drops malformed bytes instead of emitting invalid tokens.
	Skip bool
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	s.Errors = append(s.Errors, fmt.Errorf("[%s] offset %d: %w", location.Component, location.ByteOffset, err))
	s.Sink.Warnf(observability.PassLex, location.ByteOffset, "%s: %v", location.Component, err)
	if s.Skip {
		return ActionSkip
	}
	return ActionWarn
}
