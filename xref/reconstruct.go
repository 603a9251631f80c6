package xref

import (
	"context"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/wudi/pdfdissect/recovery"
	"github.com/wudi/pdfdissect/scanner"
)

var ErrNoObjects = errors.New("xref: no object headers found")

// Reconstruct scans data for "N G obj" headers and returns the table they
// imply. Malformed bytes are skipped and stream payloads are not searched.
// A later header for the same object number wins. The table describes the
// bytes; it is meant for comparison with what a file's own xref claims.
func Reconstruct(ctx context.Context, data []byte) (*Table, error) {
	s := scanner.New(data, scanner.Config{Recovery: &recovery.LenientStrategy{Skip: true}})
	t := &Table{entries: make(map[int]Entry)}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		tok, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "xref: scan")
		}
		if tok.IsObjHeader() {
			t.entries[int(tok.Int)] = Entry{Offset: tok.Pos, Gen: tok.Gen, InUse: true}
		}
	}
	if len(t.entries) == 0 {
		return nil, ErrNoObjects
	}
	return t, nil
}

// Diff returns the object numbers in use in either table whose in-use
// entries disagree: present in only one, or at another offset or generation.
func Diff(a, b *Table) []int {
	seen := make(map[int]bool)
	var out []int
	check := func(num int) {
		if seen[num] {
			return
		}
		seen[num] = true
		ea, okA := a.Lookup(num)
		eb, okB := b.Lookup(num)
		okA = okA && ea.InUse
		okB = okB && eb.InUse
		if okA != okB || (okA && (ea.Offset != eb.Offset || ea.Gen != eb.Gen)) {
			out = append(out, num)
		}
	}
	for _, num := range a.Objects() {
		check(num)
	}
	for _, num := range b.Objects() {
		check(num)
	}
	sort.Ints(out)
	return out
}
