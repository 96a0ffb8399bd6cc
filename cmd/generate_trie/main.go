// Command generate_trie builds the prefix trie of a scorer package.
//
//	generate_trie lm.arpa vocabulary < words.txt > trie
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ieee0824/ctclm"
	"github.com/ieee0824/ctclm/envconfig"
	"github.com/ieee0824/ctclm/internal/logutil"
	"github.com/ieee0824/ctclm/internal/mathutil"
	"github.com/ieee0824/ctclm/language"
	"github.com/ieee0824/ctclm/trie"
	"github.com/ieee0824/ctclm/vocabulary"
)

func main() {
	slog.SetDefault(logutil.NewLogger(os.Stderr, logutil.Level(envconfig.Debug)))
	cobra.CheckErr(newCmd().ExecuteContext(context.Background()))
}

func newCmd() *cobra.Command {
	var aggregation string
	var oovProb float64

	cmd := &cobra.Command{
		Use:   "generate_trie MODEL VOCABULARY",
		Short: "Build a prefix trie from a word list",
		Long: `Build a prefix trie from the words read on standard input.

Every word is stored with its unigram log probability under MODEL, an ARPA
file (optionally .gz or .zst). VOCABULARY holds the alphabet on one line.
The trie is written to standard output.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			var agg trie.Aggregation
			switch aggregation {
			case "min":
				agg = trie.Min
			case "max":
				agg = trie.Max
			default:
				return fmt.Errorf("unknown aggregation %q", aggregation)
			}

			model, err := language.LoadARPAFile(args[0])
			if err != nil {
				return fmt.Errorf("load language model: %w", err)
			}
			if oovProb != 0 {
				model.OOVLogProb = mathutil.FromLog10(oovProb)
			}
			vocab, err := vocabulary.LoadFile(args[1])
			if err != nil {
				return fmt.Errorf("load vocabulary: %w", err)
			}

			t, stats, err := ctclm.BuildTrie(cmd.InOrStdin(), model, vocab, ctclm.WithAggregation(agg))
			if err != nil {
				return err
			}

			w := bufio.NewWriter(cmd.OutOrStdout())
			if _, err := t.WriteTo(w); err != nil {
				return fmt.Errorf("write trie: %w", err)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("write trie: %w", err)
			}

			slog.Info("built trie",
				"words", stats.Words,
				"inserted", stats.Inserted,
				"skipped", stats.Skipped,
				"oov", stats.OOV,
				"nodes", t.NumNodes(),
				"aggregation", agg)
			return nil
		},
	}

	cmd.Flags().StringVar(&aggregation, "aggregation", "min", "node score aggregation (min or max)")
	cmd.Flags().Float64Var(&oovProb, "oov-prob", 0, "OOV unigram log10 probability (e.g. -5.0, 0=model default)")
	cmd.SetUsageTemplate(cmd.UsageTemplate() + envconfig.UsageTemplate("CTCLM_DEBUG"))
	return cmd
}
