package main

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wudi/pdfdissect/observability"
)

// newRootCmd builds the command tree. Each call has its own viper instance so
// flag and environment state never leak between runs.
func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:           "pdfdissect",
		Short:         "Structural PDF parser and inspector",
		Long:          "pdfdissect parses PDF files into a mutable structural tree, recovering from damage, and reports on what it finds.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentPreRun = func(*cobra.Command, []string) {
		v.SetEnvPrefix("PDFDISSECT")
		v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		v.AutomaticEnv()
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	root.PersistentFlags().Bool("debug", false, "Debug output")
	_ = v.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))
	_ = v.BindPFlag("debug", root.PersistentFlags().Lookup("debug"))

	root.AddCommand(newInspectCmd(v), newTokensCmd(v))
	return root
}

func newLogger(v *viper.Viper, w io.Writer) observability.Logger {
	level := slog.LevelWarn
	switch {
	case v.GetBool("debug"):
		level = slog.LevelDebug
	case v.GetBool("verbose"):
		level = slog.LevelInfo
	}
	return observability.NewSlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func printDiagnostics(w io.Writer, diag *observability.Diagnostics, all bool) {
	entries := diag.Entries()
	if len(entries) == 0 {
		return
	}
	if all {
		for _, d := range entries {
			_, _ = io.WriteString(w, d.String()+"\n")
		}
		return
	}
	_, _ = io.WriteString(w, summarizeDiagnostics(diag)+"\n")
}

func summarizeDiagnostics(diag *observability.Diagnostics) string {
	var b strings.Builder
	b.WriteString("diagnostics:")
	for _, sev := range []observability.Severity{observability.SeverityError, observability.SeverityWarning, observability.SeverityInfo} {
		if n := diag.Count(sev); n > 0 {
			b.WriteString(" ")
			b.WriteString(sev.String())
			b.WriteString("=")
			b.WriteString(strconv.Itoa(n))
		}
	}
	return b.String()
}
