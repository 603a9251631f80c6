// Package recovery decides what the lexer does when it meets malformed input.
package recovery

// Strategy is consulted on every lexical anomaly.
type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

type Action int

const (
	// ActionFail aborts the scan and surfaces the error.
	ActionFail Action = iota
	// ActionSkip drops the offending bytes.
	ActionSkip
	// ActionFix is reserved for strategies that repair input in place.
	ActionFix
	// ActionWarn keeps the offending bytes as an invalid token.
	ActionWarn
)

type Context interface{ Done() <-chan struct{} }
