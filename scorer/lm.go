package scorer

import (
	"errors"
	"fmt"

	"github.com/ieee0824/ctclm/internal/widechar"
	"github.com/ieee0824/ctclm/language"
	"github.com/ieee0824/ctclm/trie"
	"github.com/ieee0824/ctclm/vocabulary"
)

var ErrAlphabetMismatch = errors.New("scorer: trie and vocabulary alphabets differ")

// LanguageModel is the word level n-gram model an LMScorer consults at word
// boundaries. Implementations must be safe for concurrent readers.
type LanguageModel interface {
	BeginSentenceState() language.State
	NullContextState() language.State
	// FullScore returns the log probability of w after in, and the context
	// that follows w.
	FullScore(in language.State, w language.WordIndex) (float64, language.State)
	// Index returns the index of word, or language.Unknown.
	Index(word string) language.WordIndex
	EndSentence() language.WordIndex
}

var _ LanguageModel = (*language.NGramModel)(nil)

// State is the scoring state of one beam.
type State struct {
	LanguageModelScore float64 // log probability of the completed words
	Score              float64 // LanguageModelScore plus the estimate for the incomplete word
	DeltaScore         float64 // change of Score caused by the last expansion

	word []uint16
	node trie.NodeID
	ctx  language.State
}

// Word returns the incomplete word.
func (s *State) Word() string {
	return widechar.Decode(s.word)
}

// LMScorer scores beams with a prefix trie while a word is being spelled and
// with the n-gram model once it is complete.
type LMScorer struct {
	vocab *vocabulary.Vocabulary
	trie  *trie.Trie
	model LanguageModel
	cfg   Config
}

var _ Scorer[State] = (*LMScorer)(nil)

// New creates a scorer. The trie must have been built over vocab's alphabet.
func New(vocab *vocabulary.Vocabulary, t *trie.Trie, model LanguageModel, opts ...Option) (*LMScorer, error) {
	if vocab == nil || t == nil || model == nil {
		return nil, errors.New("scorer: vocabulary, trie and model are required")
	}
	if t.AlphabetSize() != vocab.Size() {
		return nil, fmt.Errorf("%w: trie has %d labels, vocabulary %d", ErrAlphabetMismatch, t.AlphabetSize(), vocab.Size())
	}
	s := &LMScorer{
		vocab: vocab,
		trie:  t,
		model: model,
		cfg:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	return s, nil
}

// Config returns the current weights.
func (s *LMScorer) Config() Config {
	return s.cfg
}

// The setters must not be called while a decode is running.

func (s *LMScorer) SetLMWeight(w float64) { s.cfg.LMWeight = w }

func (s *LMScorer) SetWordCountWeight(w float64) { s.cfg.WordCountWeight = w }

func (s *LMScorer) SetValidWordCountWeight(w float64) { s.cfg.ValidWordCountWeight = w }

func (s *LMScorer) InitializeState(st *State) {
	*st = State{
		node: trie.Root,
		ctx:  s.model.BeginSentenceState(),
	}
}

func (s *LMScorer) ExpandState(from *State, fromLabel int, to *State, toLabel int) {
	// from may be to.
	prev := *from
	*to = prev
	// to gets its own buffer so sibling beams never share one.
	to.word = make([]uint16, len(prev.word), len(prev.word)+1)
	copy(to.word, prev.word)

	if !s.vocab.IsSpace(toLabel) {
		to.word = append(to.word, s.vocab.CharacterOf(toLabel))
		estimate := s.cfg.UnknownPrefixLogProb
		to.node = s.trie.ChildAt(prev.node, toLabel)
		if to.node != trie.NoNode {
			estimate = s.trie.Score(to.node)
		}
		to.Score = estimate + to.LanguageModelScore
		to.DeltaScore = to.Score - prev.Score
		return
	}

	if len(to.word) == 0 {
		// Nothing to close.
		to.DeltaScore = 0
		return
	}
	delta, ctx := s.scoreWord(prev.ctx, to.word)
	to.ctx = ctx
	s.resetWord(to)
	s.update(to, delta)
}

// scoreWord returns the log probability of word after ctx, with the word
// bonuses folded in.
func (s *LMScorer) scoreWord(ctx language.State, word []uint16) (float64, language.State) {
	index := s.model.Index(widechar.Decode(word))
	lp, out := s.model.FullScore(ctx, index)
	if index != language.Unknown {
		lp += s.cfg.ValidWordCountWeight
	}
	lp += s.cfg.WordCountWeight
	return lp, out
}

func (s *LMScorer) resetWord(st *State) {
	st.word = nil
	st.node = trie.Root
}

func (s *LMScorer) update(st *State, delta float64) {
	prev := st.Score
	st.LanguageModelScore += delta
	st.Score = st.LanguageModelScore
	st.DeltaScore = st.LanguageModelScore - prev
}

func (s *LMScorer) ExpandStateEnd(st *State) {
	var delta float64
	if len(st.word) > 0 {
		delta, st.ctx = s.scoreWord(st.ctx, st.word)
		s.resetWord(st)
	}
	lp, ctx := s.model.FullScore(st.ctx, s.model.EndSentence())
	st.ctx = ctx
	s.update(st, delta+lp)
}

func (s *LMScorer) StateExpansionScore(st *State, previous float64) float64 {
	return s.cfg.LMWeight*st.DeltaScore + previous
}

func (s *LMScorer) StateEndExpansionScore(st *State) float64 {
	return s.cfg.LMWeight * st.DeltaScore
}

// ScoreLabels runs a collapsed label sequence through the scorer as a single
// beam would see it and returns the total language model contribution.
func (s *LMScorer) ScoreLabels(labels []int) float64 {
	var cur, next State
	s.InitializeState(&cur)
	total := 0.0
	prev := s.vocab.Blank()
	for _, l := range labels {
		s.ExpandState(&cur, prev, &next, l)
		total = s.StateExpansionScore(&next, total)
		cur, next = next, cur
		prev = l
	}
	s.ExpandStateEnd(&cur)
	return total + s.StateEndExpansionScore(&cur)
}
