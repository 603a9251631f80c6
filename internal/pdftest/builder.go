// Package pdftest assembles small PDF files in memory for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"sort"
)

type object struct {
	num    int
	body   string
	dict   string
	data   []byte
	stream bool
}

// Builder lays out a single-update file with a classical xref table.
type Builder struct {
	version string
	objects []object
	trailer string
}

func New() *Builder {
	return &Builder{version: "1.7"}
}

func (b *Builder) Version(v string) *Builder {
	b.version = v
	return b
}

// Object adds 'num 0 obj body endobj'.
func (b *Builder) Object(num int, body string) *Builder {
	b.objects = append(b.objects, object{num: num, body: body})
	return b
}

// Stream adds a stream object. dict holds the entries without the
// surrounding '<<' '>>'; /Length is appended.
func (b *Builder) Stream(num int, dict string, data []byte) *Builder {
	b.objects = append(b.objects, object{num: num, dict: dict, data: data, stream: true})
	return b
}

// Trailer sets extra trailer entries; /Size is always written.
func (b *Builder) Trailer(entries string) *Builder {
	b.trailer = entries
	return b
}

// Layout is a built file plus where its parts landed.
type Layout struct {
	Data    []byte
	Offsets map[int]int64
	XRef    int64
}

func (b *Builder) Bytes() []byte { return b.Build().Data }

func (b *Builder) Build() Layout {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", b.version)
	offsets := make(map[int]int64)
	maxNum := 0
	for _, o := range b.objects {
		offsets[o.num] = int64(buf.Len())
		if o.num > maxNum {
			maxNum = o.num
		}
		writeObject(&buf, o)
	}
	xrefAt := int64(buf.Len())
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n <= maxNum; n++ {
		if off, ok := offsets[n]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n", maxNum+1, b.trailer, xrefAt)
	return Layout{Data: buf.Bytes(), Offsets: offsets, XRef: xrefAt}
}

func writeObject(buf *bytes.Buffer, o object) {
	fmt.Fprintf(buf, "%d 0 obj\n", o.num)
	if !o.stream {
		fmt.Fprintf(buf, "%s\nendobj\n", o.body)
		return
	}
	fmt.Fprintf(buf, "<< %s /Length %d >>\nstream\r\n", o.dict, len(o.data))
	buf.Write(o.data)
	buf.WriteString("\r\nendstream\nendobj\n")
}

// ObjStm lays out the decoded payload of an object stream holding the given
// bodies, keyed by object number. It returns the payload and /First.
func ObjStm(bodies map[int]string) ([]byte, int) {
	nums := make([]int, 0, len(bodies))
	for n := range bodies {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	var header, body bytes.Buffer
	for _, n := range nums {
		fmt.Fprintf(&header, "%d %d ", n, body.Len())
		body.WriteString(bodies[n])
		body.WriteString(" ")
	}
	header.WriteString("\n")
	first := header.Len()
	return append(header.Bytes(), body.Bytes()...), first
}
