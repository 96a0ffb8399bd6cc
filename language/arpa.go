package language

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/ieee0824/ctclm/internal/mathutil"
	"github.com/ieee0824/ctclm/internal/textio"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// LoadARPA reads a language model in ARPA format.
// Log probabilities in ARPA files are base-10; they are converted to natural log.
func LoadARPA(r io.Reader) (*NGramModel, error) {
	scanner := bufio.NewScanner(textio.NewReader(r))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	model := NewNGramModel(1) // will be updated based on data

	// Skip until \data\ section
	found := false
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "\\data\\" {
			found = true
			break
		}
	}
	if !found {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("missing \\data\\ section")
	}

	// Parse ngram counts
	maxOrder := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ngram ") {
			parts := strings.SplitN(line[6:], "=", 2)
			if len(parts) == 2 {
				order, err := strconv.Atoi(strings.TrimSpace(parts[0]))
				if err != nil {
					return nil, fmt.Errorf("parse ngram count %q: %w", line, err)
				}
				if order > maxOrder {
					maxOrder = order
				}
			}
			continue
		}
		break
	}
	if maxOrder < 1 {
		return nil, fmt.Errorf("no ngram counts in \\data\\ section")
	}
	if maxOrder > MaxOrder {
		return nil, fmt.Errorf("order %d exceeds maximum %d", maxOrder, MaxOrder)
	}
	model.setOrder(maxOrder)

	// Parse n-gram sections
	for {
		line := strings.TrimSpace(scanner.Text())

		if line == "\\end\\" {
			break
		}

		if strings.HasPrefix(line, "\\") && strings.HasSuffix(line, ":") {
			// e.g., \1-grams:
			orderStr := strings.TrimSuffix(strings.TrimPrefix(line, "\\"), "-grams:")
			order, err := strconv.Atoi(orderStr)
			if err != nil || order < 1 || order > maxOrder {
				return nil, fmt.Errorf("unexpected section %q", line)
			}

			for scanner.Scan() {
				entry := strings.TrimSpace(scanner.Text())
				if entry == "" {
					continue
				}
				if strings.HasPrefix(entry, "\\") {
					break
				}
				if err := parseNGramLine(model, order, entry); err != nil {
					return nil, fmt.Errorf("parse n-gram line %q: %w", entry, err)
				}
			}
			continue
		}

		if !scanner.Scan() {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return model, nil
}

func parseNGramLine(model *NGramModel, order int, line string) error {
	fields := strings.Fields(line)
	if len(fields) < order+1 {
		return fmt.Errorf("too few fields for %d-gram: %q", order, line)
	}

	logProb, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("parse log prob: %w", err)
	}

	var logBackoff float64
	if len(fields) > order+1 {
		bo, err := strconv.ParseFloat(fields[order+1], 64)
		if err != nil {
			return fmt.Errorf("parse backoff: %w", err)
		}
		logBackoff = mathutil.FromLog10(bo)
	}

	words := make([]WordIndex, order)
	for i, w := range fields[1 : order+1] {
		words[i] = model.intern(w)
	}
	model.set(words, ngramEntry{LogProb: mathutil.FromLog10(logProb), LogBackoff: logBackoff})
	return nil
}

// LoadARPAFile opens an ARPA file. gzip and zstd compressed files are
// detected by their magic bytes and decompressed on the fly.
func LoadARPAFile(path string) (*NGramModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(4)
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer zr.Close()
		return LoadARPA(zr)
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		defer zr.Close()
		return LoadARPA(zr)
	}
	return LoadARPA(br)
}

// WriteARPA writes the model in ARPA format (log10 probabilities) to w.
// N-grams are written in lexical order so the output is deterministic.
func (m *NGramModel) WriteARPA(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "\\data\\")
	for n := 1; n <= m.Order; n++ {
		fmt.Fprintf(bw, "ngram %d=%d\n", n, len(m.ngrams[n-1]))
	}
	fmt.Fprintln(bw)

	for n := 1; n <= m.Order; n++ {
		type line struct {
			words string
			e     ngramEntry
		}
		lines := make([]line, 0, len(m.ngrams[n-1]))
		for k, e := range m.ngrams[n-1] {
			parts := make([]string, n)
			for i := range parts {
				parts[i] = m.words[k[i]]
			}
			lines = append(lines, line{strings.Join(parts, " "), e})
		}
		sort.Slice(lines, func(i, j int) bool { return lines[i].words < lines[j].words })

		fmt.Fprintf(bw, "\\%d-grams:\n", n)
		for _, l := range lines {
			lp := mathutil.ToLog10(l.e.LogProb)
			if n < m.Order && l.e.LogBackoff != 0 {
				fmt.Fprintf(bw, "%.6f\t%s\t%.6f\n", lp, l.words, mathutil.ToLog10(l.e.LogBackoff))
			} else {
				fmt.Fprintf(bw, "%.6f\t%s\n", lp, l.words)
			}
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw, "\\end\\")
	return bw.Flush()
}
