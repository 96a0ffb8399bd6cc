// Package ctclm loads the language model scorer of a CTC beam search decoder
// and builds the prefix trie it needs.
package ctclm

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ieee0824/ctclm/internal/logutil"
	"github.com/ieee0824/ctclm/internal/mathutil"
	"github.com/ieee0824/ctclm/internal/widechar"
	"github.com/ieee0824/ctclm/language"
	"github.com/ieee0824/ctclm/lexicon"
	"github.com/ieee0824/ctclm/scorer"
	"github.com/ieee0824/ctclm/trie"
	"github.com/ieee0824/ctclm/vocabulary"
)

// Files of a scorer package directory.
const (
	VocabularyFile = "vocabulary"
	TrieFile       = "trie"
)

// ModelFiles are the language model file names looked up in a scorer package
// directory, in order.
var ModelFiles = []string{"lm.arpa", "lm.arpa.gz", "lm.arpa.zst"}

// Scorer is a loaded scorer package.
type Scorer struct {
	*scorer.LMScorer

	Vocab *vocabulary.Vocabulary
	Trie  *trie.Trie
	LM    *language.NGramModel

	ScorerConfig     scorer.Config
	OOVLogProb       float64 // OOV unigram log10 probability (e.g. -5.0). 0 = model default.
	BuildMissingTrie bool    // build the trie from the model vocabulary when the file is missing
	Logger           *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithScorerConfig sets the scorer weights.
func WithScorerConfig(cfg scorer.Config) Option {
	return func(s *Scorer) {
		s.ScorerConfig = cfg
	}
}

// WithOOVLogProb sets the OOV unigram probability in log10 (e.g. -5.0).
func WithOOVLogProb(log10prob float64) Option {
	return func(s *Scorer) {
		s.OOVLogProb = log10prob
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) {
		s.Logger = l
	}
}

// WithBuildMissingTrie enables building the trie from the language model's
// vocabulary when the package has no trie file.
func WithBuildMissingTrie(enabled bool) Option {
	return func(s *Scorer) {
		s.BuildMissingTrie = enabled
	}
}

func newScorer(opts []Option) *Scorer {
	s := &Scorer{
		ScorerConfig: scorer.DefaultConfig(),
		Logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewScorer loads the scorer package in dir: a vocabulary file, a trie file
// and an ARPA language model, optionally gzip or zstd compressed.
func NewScorer(dir string, opts ...Option) (*Scorer, error) {
	s := newScorer(opts)

	var err error
	s.Vocab, err = vocabulary.LoadFile(filepath.Join(dir, VocabularyFile))
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}

	lmPath, err := findModel(dir)
	if err != nil {
		return nil, err
	}
	s.LM, err = language.LoadARPAFile(lmPath)
	if err != nil {
		return nil, fmt.Errorf("load language model: %w", err)
	}
	s.applyOOV()

	var trieErr error
	s.Trie, trieErr = trie.Load(filepath.Join(dir, TrieFile), s.Vocab.Size())
	switch {
	case trieErr == nil:
		if n := trieMismatches(s.Trie, s.Vocab, s.LM); n > 0 {
			s.Logger.Warn("trie word indices differ from the language model; rebuild the trie", "dir", dir, "words", n)
		}
	case errors.Is(trieErr, fs.ErrNotExist) && s.BuildMissingTrie:
		var stats BuildStats
		s.Trie, stats, err = BuildTrie(strings.NewReader(strings.Join(modelWords(s.LM), "\n")), s.LM, s.Vocab,
			WithBuildLogger(s.Logger))
		if err != nil {
			return nil, fmt.Errorf("build trie: %w", err)
		}
		s.Logger.Info("built missing trie", "dir", dir, "words", stats.Inserted, "skipped", stats.Skipped)
	default:
		return nil, fmt.Errorf("load trie: %w", trieErr)
	}

	s.LMScorer, err = scorer.New(s.Vocab, s.Trie, s.LM, scorer.WithConfig(s.ScorerConfig))
	if err != nil {
		return nil, fmt.Errorf("create scorer: %w", err)
	}

	s.Logger.Debug("scorer loaded",
		"dir", dir,
		"model", filepath.Base(lmPath),
		"order", s.LM.Order,
		"ngrams", ngramCounts(s.LM),
		"alphabet", s.Vocab.Size(),
		"trie_nodes", s.Trie.NumNodes(),
		"trie_words", s.Trie.PrefixCount(trie.Root))
	return s, nil
}

// NewScorerFromModels creates a Scorer from pre-loaded components. With
// WithOOVLogProb the Scorer works on a copy of lm, which is left unchanged.
func NewScorerFromModels(vocab *vocabulary.Vocabulary, t *trie.Trie, lm *language.NGramModel, opts ...Option) (*Scorer, error) {
	if lm == nil {
		return nil, errors.New("create scorer: language model is required")
	}
	s := newScorer(opts)
	s.Vocab, s.Trie, s.LM = vocab, t, lm
	s.applyOOV()

	var err error
	s.LMScorer, err = scorer.New(vocab, t, s.LM, scorer.WithConfig(s.ScorerConfig))
	if err != nil {
		return nil, fmt.Errorf("create scorer: %w", err)
	}
	return s, nil
}

func (s *Scorer) applyOOV() {
	if s.OOVLogProb != 0 {
		lm := *s.LM
		lm.OOVLogProb = mathutil.FromLog10(s.OOVLogProb)
		s.LM = &lm
	}
}

func ngramCounts(lm *language.NGramModel) []int {
	counts := make([]int, lm.Order)
	for n := range counts {
		counts[n] = lm.NumNGrams(n + 1)
	}
	return counts
}

// trieMismatches counts the trie words whose stored index is not the index
// lm gives the same word.
func trieMismatches(t *trie.Trie, vocab *vocabulary.Vocabulary, lm scorer.LanguageModel) int {
	n := 0
	t.Walk(func(labels []int, id trie.NodeID) bool {
		if index, _ := t.WordIndex(id); index != lm.Index(vocab.Decode(labels)) {
			n++
		}
		return true
	})
	return n
}

// modelWords returns the model vocabulary without the sentence markers.
func modelWords(lm *language.NGramModel) []string {
	var words []string
	for _, w := range lm.Vocab() {
		switch w {
		case language.UnknownWord, language.BeginSentenceWord, language.EndSentenceWord:
			continue
		}
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

func findModel(dir string) (string, error) {
	for _, name := range ModelFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("open language model: no %s in %s: %w", strings.Join(ModelFiles, ", "), dir, fs.ErrNotExist)
}

// ScoreText scores a transcript as a beam spelling it would be scored.
func (s *Scorer) ScoreText(text string) (float64, error) {
	labels, err := s.Vocab.Encode(text)
	if err != nil {
		return 0, err
	}
	return s.ScoreLabels(labels), nil
}

// ModelScore returns the language model's own log probability of the words
// of text, without any scorer weights.
func (s *Scorer) ModelScore(text string) float64 {
	return s.LM.SentenceLogProb(strings.Fields(text))
}

// BuildStats summarizes a trie build.
type BuildStats struct {
	Words    int // distinct words read
	Inserted int // words added to the trie
	Skipped  int // words with characters outside the alphabet
	OOV      int // inserted words the model does not know
}

type buildOptions struct {
	aggregation trie.Aggregation
	logger      *slog.Logger
}

// BuildOption configures BuildTrie.
type BuildOption func(*buildOptions)

// WithAggregation sets how node scores are aggregated. The default is trie.Min.
func WithAggregation(a trie.Aggregation) BuildOption {
	return func(o *buildOptions) {
		o.aggregation = a
	}
}

func WithBuildLogger(l *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = l
	}
}

// BuildTrie reads a word list and inserts every word with its unigram log
// probability under model. Words with characters outside vocab's alphabet
// are skipped.
func BuildTrie(words io.Reader, model scorer.LanguageModel, vocab *vocabulary.Vocabulary, opts ...BuildOption) (*trie.Trie, BuildStats, error) {
	o := buildOptions{aggregation: trie.Min, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	list, err := lexicon.Load(words)
	if err != nil {
		return nil, BuildStats{}, fmt.Errorf("read word list: %w", err)
	}

	t := trie.New(vocab.Size(), trie.WithAggregation(o.aggregation))
	stats := BuildStats{Words: list.Len()}
	for _, w := range list.Words() {
		index := model.Index(w)
		lp, _ := model.FullScore(model.NullContextState(), index)
		if err := t.Insert(widechar.Encode(w), vocab.LabelOf, index, lp); err != nil {
			if !errors.Is(err, trie.ErrUnknownCharacter) {
				return nil, stats, err
			}
			stats.Skipped++
			o.logger.Warn("skipping word", "word", w, "error", err)
			continue
		}
		stats.Inserted++
		if index == language.Unknown {
			stats.OOV++
			o.logger.Debug("word not in language model", "word", w)
		}
		logutil.Trace(o.logger, "inserted word", "word", w, "index", index, "logprob", lp)
	}
	return t, stats, nil
}
