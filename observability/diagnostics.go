package observability

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Diagnostic is one anomaly observed by a pass. Offset is -1 when the anomaly
// has no position in the source buffer; Object is an ObjectID key or empty.
type Diagnostic struct {
	Pass     string
	Severity Severity
	Message  string
	Offset   int64
	Object   string
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("[%s] %s: %s", d.Severity, d.Pass, d.Message)
	if d.Object != "" {
		s += " (object " + d.Object + ")"
	}
	if d.Offset >= 0 {
		s += fmt.Sprintf(" at offset %d", d.Offset)
	}
	return s
}

// Diagnostics collects anomalies across passes. A nil *Diagnostics discards
// everything, so passes may be run without one.
type Diagnostics struct {
	mu      sync.Mutex
	runID   string
	entries []Diagnostic
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{runID: uuid.NewString()}
}

// RunID identifies the collector in log lines.
func (d *Diagnostics) RunID() string {
	if d == nil {
		return ""
	}
	return d.runID
}

func (d *Diagnostics) Add(e Diagnostic) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.entries = append(d.entries, e)
	d.mu.Unlock()
}

func (d *Diagnostics) Infof(pass string, offset int64, format string, args ...interface{}) {
	d.Add(Diagnostic{Pass: pass, Severity: SeverityInfo, Message: fmt.Sprintf(format, args...), Offset: offset})
}

func (d *Diagnostics) Warnf(pass string, offset int64, format string, args ...interface{}) {
	d.Add(Diagnostic{Pass: pass, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), Offset: offset})
}

func (d *Diagnostics) Errorf(pass string, offset int64, format string, args ...interface{}) {
	d.Add(Diagnostic{Pass: pass, Severity: SeverityError, Message: fmt.Sprintf(format, args...), Offset: offset})
}

// Entries returns a copy of the collected diagnostics.
func (d *Diagnostics) Entries() []Diagnostic {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diagnostic, len(d.entries))
	copy(out, d.entries)
	return out
}

// Drain returns the collected diagnostics and empties the collector.
func (d *Diagnostics) Drain() []Diagnostic {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.entries
	d.entries = nil
	return out
}

func (d *Diagnostics) Len() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Count returns how many entries have the given severity.
func (d *Diagnostics) Count(sev Severity) int {
	n := 0
	for _, e := range d.Entries() {
		if e.Severity == sev {
			n++
		}
	}
	return n
}

// ForPass returns the entries recorded by one pass.
func (d *Diagnostics) ForPass(pass string) []Diagnostic {
	var out []Diagnostic
	for _, e := range d.Entries() {
		if e.Pass == pass {
			out = append(out, e)
		}
	}
	return out
}
