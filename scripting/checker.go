package scripting

import (
	"context"
	"strings"

	"github.com/dop251/goja"

	"github.com/wudi/pdfdissect/observability"
)

// DefaultMarkers are source fragments common in hostile document scripts.
var DefaultMarkers = []string{
	"eval(", "unescape(", "String.fromCharCode", "app.launchURL",
	"exportDataObject", "util.printf", "getAnnots", "Collab.getIcon",
	"media.newPlayer", "spell.customDictionaryOpen", "app.setTimeOut",
}

// Finding is the outcome of checking one script.
type Finding struct {
	Script
	// Err is the compile error, if any.
	Err error
	// Markers lists the markers present in the source.
	Markers []string
}

// Compiles reports whether the source parsed.
func (f Finding) Compiles() bool { return f.Err == nil && !f.Encoded }

type CheckerConfig struct {
	Logger      observability.Logger
	Diagnostics *observability.Diagnostics
	// Markers overrides DefaultMarkers.
	Markers []string
}

// Checker compiles scripts with goja. Nothing is executed.
type Checker struct {
	cfg CheckerConfig
	log observability.Logger
}

func NewChecker(cfg CheckerConfig) *Checker {
	if cfg.Markers == nil {
		cfg.Markers = DefaultMarkers
	}
	return &Checker{cfg: cfg, log: observability.OrNop(cfg.Logger)}
}

// Check compiles every script and scans it for markers. Encoded scripts are
// reported without a check.
func (c *Checker) Check(ctx context.Context, scripts []Script) ([]Finding, error) {
	out := make([]Finding, 0, len(scripts))
	for _, s := range scripts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := Finding{Script: s}
		if s.Encoded {
			c.cfg.Diagnostics.Infof(observability.PassAnalysis, s.Offset, "script in object %s is still encoded", s.Object)
			out = append(out, f)
			continue
		}
		if _, err := goja.Compile(s.Object.Key(), s.Source, false); err != nil {
			f.Err = err
			c.cfg.Diagnostics.Add(observability.Diagnostic{
				Pass: observability.PassAnalysis, Severity: observability.SeverityWarning,
				Message: "script does not compile: " + err.Error(), Offset: s.Offset, Object: s.Object.Key(),
			})
		}
		for _, m := range c.cfg.Markers {
			if strings.Contains(s.Source, m) {
				f.Markers = append(f.Markers, m)
			}
		}
		if len(f.Markers) > 0 {
			c.log.Warn("suspicious script",
				observability.String("object", s.Object.Key()),
				observability.String("markers", strings.Join(f.Markers, ",")))
		}
		out = append(out, f)
	}
	return out, nil
}
