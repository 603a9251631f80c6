package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wudi/pdfdissect/analysis"
	"github.com/wudi/pdfdissect/document"
	"github.com/wudi/pdfdissect/filters"
	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/observability"
	"github.com/wudi/pdfdissect/parser"
	"github.com/wudi/pdfdissect/scripting"
	"github.com/wudi/pdfdissect/security"
	"github.com/wudi/pdfdissect/xref"
)

func newInspectCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file.pdf>",
		Short: "Parse a PDF and report on its structure",
		Long: "Parse a PDF into a structural tree, optionally decrypt it, decode its streams, " +
			"unpack its object streams and sanitize it, then print the requested views.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, v, args[0])
		},
	}
	f := cmd.Flags()
	f.BoolP("decompress", "d", false, "Decode streams and unpack object streams")
	f.Bool("filter", false, "Drop objects and keys outside the allow-lists")
	f.StringP("password", "p", "", "User password for encrypted files")
	f.StringSlice("types", nil, "Type allow-list for --filter (default: built-in list)")
	f.StringSlice("keys", nil, "Key allow-list for --filter (default: built-in list)")
	f.Bool("stats", false, "Print summary statistics")
	f.Bool("edges", false, "Print the reference edge list")
	f.Bool("dump", false, "Print the structural tree")
	f.Bool("scripts", false, "Check JavaScript payloads")
	f.Bool("xref", false, "Compare the xref table with the parsed objects")
	f.Bool("reach", false, "Report objects reachable from the catalog")
	f.String("artifacts", "", "Directory for the inputs of failed decoders")
	f.Bool("diagnostics", false, "Print every diagnostic")

	for _, name := range []string{"decompress", "filter", "password", "types", "keys", "artifacts", "diagnostics"} {
		_ = v.BindPFlag(name, f.Lookup(name))
	}
	return cmd
}

func runInspect(cmd *cobra.Command, v *viper.Viper, path string) error {
	ctx := cmd.Context()
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read input")
	}

	log := newLogger(v, errOut)
	diag := observability.NewDiagnostics()
	defer printDiagnostics(errOut, diag, v.GetBool("diagnostics"))

	tree, err := parser.NewDocumentParser(parser.Config{Logger: log, Diagnostics: diag}).Parse(ctx, data)
	if err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	strategy, _ := tree.Attr(raw.AttrStrategy)
	fmt.Fprintf(out, "parsed %s with the %s strategy\n", path, strategy)

	g := document.New(tree, document.Config{
		Logger:      log,
		Diagnostics: diag,
		Expand:      filters.ExpandConfig{ArtifactDir: v.GetString("artifacts")},
	})
	g.ResolveReferences()

	if security.IsEncrypted(g) {
		rep, err := security.Decrypt(g, security.Config{Password: v.GetString("password"), Logger: log, Diagnostics: diag})
		if err != nil {
			return errors.Wrap(err, "decrypt")
		}
		fmt.Fprintf(out, "decrypted %d strings and %d streams (%d failed, authenticated %v)\n",
			rep.Strings, rep.Streams, rep.Failed, rep.Authenticated)
	}

	if v.GetBool("decompress") {
		rep, err := g.Process(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "expanded %d streams, %d left encoded, unpacked %d objects from %d object streams, %d unresolved references\n",
			rep.Expanded, rep.NotExpanded, rep.Unpacked, rep.ObjectStreams, rep.Unresolved)
	}

	if v.GetBool("filter") {
		nulled, removed := g.FilterTypes(v.GetStringSlice("types"))
		dropped := g.FilterKeys(v.GetStringSlice("keys"))
		g.ResolveReferences()
		fmt.Fprintf(out, "filtered: %d dictionaries nulled, %d objects removed, %d keys dropped\n", nulled, removed, dropped)
	}

	views := 0
	flag := func(name string) bool {
		on, _ := cmd.Flags().GetBool(name)
		if on {
			views++
		}
		return on
	}
	if flag("xref") {
		if err := printXRef(ctx, out, g, data); err != nil {
			return err
		}
	}
	if flag("reach") {
		res, err := g.Reachable()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "reachable: %d of %d objects in %d passes, %d references nulled\n",
			len(res.Objects), len(g.IDs()), res.Passes, res.Nulled)
	}
	if flag("scripts") {
		if err := printScripts(cmd, out, g, log, diag); err != nil {
			return err
		}
	}
	if flag("edges") {
		for _, e := range g.Edges() {
			fmt.Fprintf(out, "%s -> %s\n", e.From, e.To)
		}
	}
	if flag("dump") {
		if err := raw.Dump(out, g.Tree()); err != nil {
			return err
		}
	}
	if flag("stats") || views == 0 {
		return analysis.Summarize(g).Write(out)
	}
	return nil
}

func printXRef(ctx context.Context, out io.Writer, g *document.Graph, data []byte) error {
	scanned, err := xref.Reconstruct(ctx, data)
	if err != nil {
		return err
	}
	table, err := g.CheckXRef()
	if err != nil {
		return err
	}
	if table == nil {
		fmt.Fprintf(out, "xref: cross-reference stream, %d object headers in the file\n", len(scanned.Objects()))
		return nil
	}
	fmt.Fprintf(out, "xref: %d entries, %d in use, %d free\n", table.Len(), len(table.Objects()), len(table.Free()))
	if diff := xref.Diff(table, scanned); len(diff) > 0 {
		fmt.Fprintf(out, "xref: disagrees with the object headers for %v\n", diff)
	}
	return nil
}

func printScripts(cmd *cobra.Command, out io.Writer, g *document.Graph, log observability.Logger, diag *observability.Diagnostics) error {
	findings, err := scripting.NewChecker(scripting.CheckerConfig{Logger: log, Diagnostics: diag}).
		Check(cmd.Context(), scripting.Extract(g))
	if err != nil {
		return err
	}
	for _, f := range findings {
		status := "ok"
		switch {
		case f.Encoded:
			status = "encoded"
		case f.Err != nil:
			status = "syntax error"
		}
		fmt.Fprintf(out, "script in %s: %s", f.Object, status)
		if len(f.Markers) > 0 {
			fmt.Fprintf(out, " markers=%v", f.Markers)
		}
		fmt.Fprintln(out)
	}
	return nil
}
