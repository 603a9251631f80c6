package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wudi/pdfdissect/observability"
	"github.com/wudi/pdfdissect/recovery"
	"github.com/wudi/pdfdissect/scanner"
)

func newTokensCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens <file.pdf>",
		Short: "Print the token stream of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokens(cmd, v, args[0])
		},
	}
	cmd.Flags().Bool("strict", false, "Stop at the first malformed byte")
	cmd.Flags().Int("limit", 0, "Stop after this many tokens (0 for no limit)")
	return cmd
}

func runTokens(cmd *cobra.Command, v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read input")
	}
	strict, _ := cmd.Flags().GetBool("strict")
	limit, _ := cmd.Flags().GetInt("limit")
	out := cmd.OutOrStdout()

	diag := observability.NewDiagnostics()
	defer printDiagnostics(cmd.ErrOrStderr(), diag, v.GetBool("verbose"))
	cfg := scanner.Config{}
	if !strict {
		cfg.Recovery = &recovery.LenientStrategy{Sink: diag}
	}

	s := scanner.New(data, cfg)
	for n := 0; limit == 0 || n < limit; n++ {
		tok, err := s.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\t%d\t%s\t%s\n", tok.Pos, tok.End, tok.Type, tok)
	}
	return nil
}
