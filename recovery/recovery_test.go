package recovery_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfdissect/observability"
	"github.com/wudi/pdfdissect/recovery"
)

func TestStrictStrategyFails(t *testing.T) {
	action := recovery.NewStrictStrategy().OnError(nil, errors.New("bad byte"), recovery.Location{ByteOffset: 3})
	assert.Equal(t, recovery.ActionFail, action)
}

func TestLenientStrategyRecords(t *testing.T) {
	sink := observability.NewDiagnostics()
	rec := recovery.NewLenientStrategy()
	rec.Sink = sink

	action := rec.OnError(nil, errors.New("unknown keyword"), recovery.Location{ByteOffset: 17, Component: "scanner"})
	assert.Equal(t, recovery.ActionWarn, action)
	require.Len(t, rec.Errors, 1)
	assert.Contains(t, rec.Errors[0].Error(), "offset 17")

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, observability.PassLex, entries[0].Pass)
	assert.Equal(t, int64(17), entries[0].Offset)

	rec.Skip = true
	assert.Equal(t, recovery.ActionSkip, rec.OnError(nil, errors.New("x"), recovery.Location{}))
}
