// Command ctcscore scores sentences with a scorer package the way a CTC beam
// search would score a beam spelling them.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/ctclm"
	"github.com/ieee0824/ctclm/envconfig"
	"github.com/ieee0824/ctclm/internal/logutil"
	"github.com/ieee0824/ctclm/internal/textio"
	"github.com/ieee0824/ctclm/scorer"
)

func main() {
	slog.SetDefault(logutil.NewLogger(os.Stderr, logutil.Level(envconfig.Debug)))
	cobra.CheckErr(newCmd().ExecuteContext(context.Background()))
}

type result struct {
	text  string
	beam  float64
	model float64
	err   error
}

func newCmd() *cobra.Command {
	cfg := scorer.DefaultConfig()
	var modelDir string
	var oovProb float64
	var jobs int
	var buildTrie bool

	cmd := &cobra.Command{
		Use:   "ctcscore [flags] < sentences.txt",
		Short: "Score sentences with a CTC language model scorer",
		Long: `Score every line of standard input with the scorer package in --model-dir.

BEAM is the total a beam spelling the line receives from the scorer, with
all weights applied. MODEL is the language model's own sentence log
probability.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			slog.Debug("ctcscore config", "env", envconfig.Values())

			s, err := ctclm.NewScorer(modelDir,
				ctclm.WithScorerConfig(cfg),
				ctclm.WithOOVLogProb(oovProb),
				ctclm.WithBuildMissingTrie(buildTrie),
			)
			if err != nil {
				return err
			}

			lines, err := readLines(cmd.InOrStdin())
			if err != nil {
				return err
			}

			results := make([]result, len(lines))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(jobs, 1))
			for i, line := range lines {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					r := result{text: line, model: s.ModelScore(line)}
					r.beam, r.err = s.ScoreText(line)
					results[i] = r
					logutil.TraceContext(ctx, nil, "scored sentence", "text", r.text, "beam", r.beam, "model", r.model, "error", r.err)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			render(cmd.OutOrStdout(), results)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelDir, "model-dir", envconfig.ModelDir, "scorer package directory (vocabulary, trie, lm.arpa)")
	cmd.Flags().Float64Var(&cfg.LMWeight, "lm-weight", cfg.LMWeight, "language model weight")
	cmd.Flags().Float64Var(&cfg.WordCountWeight, "word-weight", cfg.WordCountWeight, "bonus for every completed word")
	cmd.Flags().Float64Var(&cfg.ValidWordCountWeight, "valid-word-weight", cfg.ValidWordCountWeight, "bonus for every completed in-vocabulary word")
	cmd.Flags().Float64Var(&oovProb, "oov-prob", 0, "OOV unigram log10 probability (e.g. -5.0, 0=model default)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "number of sentences scored in parallel")
	cmd.Flags().BoolVar(&buildTrie, "build-trie", false, "build the trie from the model vocabulary when the package has none")
	cmd.SetUsageTemplate(cmd.UsageTemplate() + envconfig.UsageTemplate())
	return cmd
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(textio.NewReader(r))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.Join(strings.Fields(scanner.Text()), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sentences: %w", err)
	}
	return lines, nil
}

func render(w io.Writer, results []result) {
	var data [][]string
	for _, r := range results {
		beam := strconv.FormatFloat(r.beam, 'f', 4, 64)
		if r.err != nil {
			beam = r.err.Error()
		}
		data = append(data, []string{r.text, beam, strconv.FormatFloat(r.model, 'f', 4, 64)})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"TEXT", "BEAM", "MODEL"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	table.AppendBulk(data)
	table.Render()
}
