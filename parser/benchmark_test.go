package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/wudi/pdfdissect/internal/pdftest"
)

func benchmarkDoc(objects int) []byte {
	b := pdftest.New().Object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, 0, objects)
	for n := 3; n < objects+3; n++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", n))
		b.Object(n, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Name (page %d) >>", n))
	}
	b.Object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), objects))
	return b.Trailer("/Root 1 0 R").Bytes()
}

func BenchmarkParseStrict(b *testing.B) {
	data := benchmarkDoc(500)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := NewDocumentParser(Config{})
		if _, err := p.Parse(context.Background(), data); err != nil {
			b.Fatalf("parse failed: %v", err)
		}
	}
}

func BenchmarkParseRecovery(b *testing.B) {
	data := benchmarkDoc(500)
	// Drop the startxref tail so only recovery can parse the file.
	data = data[:bytes.LastIndex(data, []byte("xref"))-len("start")]
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := NewDocumentParser(Config{})
		if _, err := p.Parse(context.Background(), data); err != nil {
			b.Fatalf("parse failed: %v", err)
		}
	}
}
