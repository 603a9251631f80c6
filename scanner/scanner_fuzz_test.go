package scanner

import (
	"testing"

	"github.com/wudi/pdfdissect/recovery"
)

func FuzzScanner(f *testing.F) {
	f.Add([]byte("<< /Type /Page >>"))
	f.Add([]byte("[ 1 2 3 ]"))
	f.Add([]byte("stream\n...data...\nendstream"))
	f.Add([]byte("(Hello World)"))
	f.Add([]byte("<AABBCC>"))
	f.Add([]byte("1 0 obj 2 0 R endobj"))

	f.Fuzz(func(t *testing.T, data []byte) {
		toks, _ := Tokenize(data, Config{MaxStringLength: 1024})
		prev := int64(0)
		for _, tok := range toks {
			if tok.Pos < prev || string(data[tok.Pos:tok.End]) != string(tok.Raw) {
				t.Fatalf("token %v breaks span invariants", tok)
			}
			prev = tok.End
		}

		toks, err := Tokenize(data, Config{Recovery: recovery.NewLenientStrategy()})
		if err != nil {
			t.Fatalf("lenient scan failed: %v", err)
		}
		_ = toks
	})
}
