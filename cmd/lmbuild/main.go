// Command lmbuild builds an ARPA n-gram language model from tokenized text.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ieee0824/ctclm/envconfig"
	"github.com/ieee0824/ctclm/internal/logutil"
	"github.com/ieee0824/ctclm/internal/textio"
	"github.com/ieee0824/ctclm/language"
)

func main() {
	slog.SetDefault(logutil.NewLogger(os.Stderr, logutil.Level(envconfig.Debug)))
	cobra.CheckErr(newCmd().ExecuteContext(context.Background()))
}

func newCmd() *cobra.Command {
	var order int
	var output string

	cmd := &cobra.Command{
		Use:   "lmbuild [input-files...]",
		Short: "Build an ARPA N-gram language model from tokenized text",
		Long: `Build an ARPA N-gram language model from tokenized text.

Input: one sentence per line, words separated by spaces.
If no input files are given, reads from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			b := language.NewBuilder(order)

			// Read input
			if len(args) == 0 {
				if err := readLines(b, cmd.InOrStdin()); err != nil {
					return err
				}
			} else {
				for _, path := range args {
					f, err := os.Open(path)
					if err != nil {
						slog.Warn("skipping input", "path", path, "error", err)
						continue
					}
					err = readLines(b, f)
					f.Close()
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
				}
			}

			// Write output
			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if err := b.WriteARPA(w); err != nil {
				return fmt.Errorf("write ARPA: %w", err)
			}

			slog.Info("built language model", "order", order, "sentences", b.Sentences())
			return nil
		},
	}

	cmd.Flags().IntVar(&order, "order", 2, fmt.Sprintf("N-gram order (1..%d)", language.MaxOrder))
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func readLines(b *language.Builder, r io.Reader) error {
	scanner := bufio.NewScanner(textio.NewReader(r))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		b.AddSentence(strings.Fields(line))
	}
	return scanner.Err()
}
