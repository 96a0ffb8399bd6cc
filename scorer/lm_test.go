package scorer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/ctclm/internal/widechar"
	"github.com/ieee0824/ctclm/language"
	"github.com/ieee0824/ctclm/trie"
	"github.com/ieee0824/ctclm/vocabulary"
)

const testAlphabet = "abcdefghijklmnopqrstuvwxyz' "

// Frame-level CTC path for "tomorrow it will rain"; 28 is the blank.
var testPath = []int{19, 19, 19, 19, 28, 28, 14, 28, 28, 12, 12, 12, 28, 14, 14, 14, 14, 28,
	28, 17, 17, 28, 28, 28, 17, 17, 17, 17, 28, 14, 14, 14, 28, 28, 28, 28,
	22, 22, 22, 22, 28, 28, 28, 27, 27, 27, 27, 28, 28, 28, 28, 8, 8, 28, 28,
	28, 19, 19, 19, 28, 28, 28, 27, 28, 22, 22, 22, 28, 28, 28, 8, 28, 28, 28,
	11, 11, 11, 11, 28, 11, 11, 28, 28, 27, 27, 27, 28, 28, 17, 28, 28, 28,
	28, 0, 0, 28, 28, 28, 8, 8, 28, 28, 28, 13, 13, 13, 13, 28}

var testCorpus = []string{
	"tomorrow it will rain",
	"it will be sunny tomorrow",
	"will it rain tomorrow",
	"it is raining",
	"it won't rain",
	"the rain will stop tomorrow",
}

type fixture struct {
	vocab *vocabulary.Vocabulary
	model *language.NGramModel
	trie  *trie.Trie
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	v, err := vocabulary.New(testAlphabet)
	require.NoError(t, err)

	b := language.NewBuilder(3)
	for _, s := range testCorpus {
		b.AddSentence(strings.Fields(s))
	}
	m := b.Build()

	tr := trie.New(v.Size())
	for _, w := range m.Vocab() {
		if w == language.BeginSentenceWord || w == language.EndSentenceWord {
			continue
		}
		lp, _ := m.FullScore(m.NullContextState(), m.Index(w))
		require.NoError(t, tr.Insert(widechar.Encode(w), v.LabelOf, m.Index(w), lp))
	}
	return &fixture{vocab: v, model: m, trie: tr}
}

func (f *fixture) scorer(t *testing.T, opts ...Option) *LMScorer {
	t.Helper()
	s, err := New(f.vocab, f.trie, f.model, opts...)
	require.NoError(t, err)
	return s
}

func (f *fixture) labels(t *testing.T, text string) []int {
	t.Helper()
	labels, err := f.vocab.Encode(text)
	require.NoError(t, err)
	return labels
}

func TestScoreLabelsMatchesModel(t *testing.T) {
	f := newFixture(t)
	s := f.scorer(t)

	labels := f.vocab.Collapse(testPath)
	require.Equal(t, "tomorrow it will rain", f.vocab.Decode(labels))

	want := f.model.SentenceLogProb([]string{"tomorrow", "it", "will", "rain"})
	assert.InDelta(t, want, s.ScoreLabels(labels), 1e-4)

	// The same total as the model's own word-by-word scoring.
	ctx := f.model.BeginSentenceState()
	sum := 0.0
	for _, w := range []string{"tomorrow", "it", "will", "rain"} {
		var lp float64
		lp, ctx = f.model.FullScore(ctx, f.model.Index(w))
		sum += lp
	}
	lp, _ := f.model.FullScore(ctx, f.model.EndSentence())
	assert.InDelta(t, sum+lp, s.ScoreLabels(labels), 1e-4)
}

func TestExpandState(t *testing.T) {
	f := newFixture(t)
	s := f.scorer(t)

	var root State
	s.InitializeState(&root)
	assert.Equal(t, 0.0, root.Score)
	assert.Equal(t, 0.0, root.LanguageModelScore)
	assert.Equal(t, "", root.Word())

	cur := root
	for _, l := range f.labels(t, "tom") {
		var next State
		s.ExpandState(&cur, -1, &next, l)
		assert.Equal(t, next.Score-cur.Score, next.DeltaScore)
		cur = next
	}
	assert.Equal(t, "tom", cur.Word())
	node := trie.Root
	for _, l := range f.labels(t, "tom") {
		node = f.trie.ChildAt(node, l)
	}
	assert.Equal(t, f.trie.Score(node), cur.Score)
	assert.Equal(t, 0.0, cur.LanguageModelScore)

	// A prefix no word starts with falls back to the fixed estimate.
	var miss State
	s.ExpandState(&cur, -1, &miss, f.vocab.LabelOf('x'))
	assert.Equal(t, DefaultConfig().UnknownPrefixLogProb, miss.Score)
	var still State
	s.ExpandState(&miss, -1, &still, f.vocab.LabelOf('o'))
	assert.Equal(t, DefaultConfig().UnknownPrefixLogProb, still.Score)
	assert.Equal(t, 0.0, still.DeltaScore)
}

func TestWordBoundaryConsistency(t *testing.T) {
	f := newFixture(t)
	s := f.scorer(t, WithWordCountWeight(-0.5), WithValidWordCountWeight(1.5))

	var cur State
	s.InitializeState(&cur)
	total := 0.0
	for _, l := range f.labels(t, "tomorrow it wil rain") {
		var next State
		s.ExpandState(&cur, -1, &next, l)
		total = s.StateExpansionScore(&next, total)
		if next.Word() == "" {
			assert.Equal(t, next.LanguageModelScore, next.Score)
		}
		cur = next
	}
	s.ExpandStateEnd(&cur)
	total += s.StateEndExpansionScore(&cur)

	assert.Equal(t, cur.LanguageModelScore, cur.Score)
	assert.Equal(t, "", cur.Word())
	assert.InDelta(t, cur.Score, total, 1e-9)
}

func TestSpaceClosesWord(t *testing.T) {
	f := newFixture(t)
	s := f.scorer(t)

	var cur State
	s.InitializeState(&cur)
	for _, l := range f.labels(t, "it ") {
		var next State
		s.ExpandState(&cur, -1, &next, l)
		cur = next
	}
	want, _ := f.model.FullScore(f.model.BeginSentenceState(), f.model.Index("it"))
	assert.InDelta(t, want, cur.LanguageModelScore, 1e-12)
	assert.Equal(t, cur.LanguageModelScore, cur.Score)

	// A second space has no word to close.
	var again State
	s.ExpandState(&cur, f.vocab.Space(), &again, f.vocab.Space())
	assert.Equal(t, cur.LanguageModelScore, again.LanguageModelScore)
	assert.Equal(t, 0.0, again.DeltaScore)

	// So does a leading space.
	var root, lead State
	s.InitializeState(&root)
	s.ExpandState(&root, f.vocab.Blank(), &lead, f.vocab.Space())
	assert.Equal(t, 0.0, lead.Score)
	assert.Equal(t, 0.0, lead.DeltaScore)
}

func TestPenalization(t *testing.T) {
	f := newFixture(t)
	s := f.scorer(t)

	complete := s.ScoreLabels(f.labels(t, "tomorrow it will rain"))
	incomplete := s.ScoreLabels(f.labels(t, "tomorrow it will rain th"))
	typo := s.ScoreLabels(f.labels(t, "tomorow it will rain"))

	assert.Greater(t, complete, incomplete)
	assert.Greater(t, complete, typo)
}

func TestDeterminism(t *testing.T) {
	f := newFixture(t)
	s := f.scorer(t, WithWordCountWeight(0.25))

	labels := f.vocab.Collapse(testPath)
	first := s.ScoreLabels(labels)
	for range 5 {
		assert.Equal(t, first, s.ScoreLabels(labels))
	}
	assert.Equal(t, first, f.scorer(t, WithWordCountWeight(0.25)).ScoreLabels(labels))
}

func TestOOV(t *testing.T) {
	f := newFixture(t)
	const bonus, perWord = 5.0, 1.0
	s := f.scorer(t, WithValidWordCountWeight(bonus), WithWordCountWeight(perWord))

	closeWord := func(word string) State {
		var cur State
		s.InitializeState(&cur)
		for _, l := range f.labels(t, word+" ") {
			var next State
			s.ExpandState(&cur, -1, &next, l)
			cur = next
		}
		return cur
	}

	require.Equal(t, language.Unknown, f.model.Index("xq"))
	oov := closeWord("xq")
	lp, _ := f.model.FullScore(f.model.BeginSentenceState(), language.Unknown)
	assert.InDelta(t, lp+perWord, oov.LanguageModelScore, 1e-12)
	assert.Less(t, lp, f.model.OOVLogProb/2)

	known := closeWord("it")
	lp, _ = f.model.FullScore(f.model.BeginSentenceState(), f.model.Index("it"))
	assert.InDelta(t, lp+bonus+perWord, known.LanguageModelScore, 1e-12)
}

func TestWeights(t *testing.T) {
	f := newFixture(t)
	labels := f.labels(t, "it will rain")

	base := f.scorer(t).ScoreLabels(labels)
	assert.InDelta(t, 2*base, f.scorer(t, WithLMWeight(2)).ScoreLabels(labels), 1e-9)
	assert.InDelta(t, base+3, f.scorer(t, WithWordCountWeight(1)).ScoreLabels(labels), 1e-9)

	s := f.scorer(t)
	s.SetLMWeight(0.5)
	s.SetWordCountWeight(1)
	s.SetValidWordCountWeight(2)
	assert.Equal(t, Config{LMWeight: 0.5, WordCountWeight: 1, ValidWordCountWeight: 2, UnknownPrefixLogProb: -10}, s.Config())
	assert.InDelta(t, 0.5*(base+9), s.ScoreLabels(labels), 1e-9)

	cfg := DefaultConfig()
	cfg.UnknownPrefixLogProb = -3
	assert.Equal(t, -3.0, f.scorer(t, WithConfig(cfg)).Config().UnknownPrefixLogProb)
	assert.Equal(t, -4.0, f.scorer(t, WithUnknownPrefixLogProb(-4)).Config().UnknownPrefixLogProb)
}

func TestExpandStateDoesNotAlias(t *testing.T) {
	f := newFixture(t)
	s := f.scorer(t)

	var root, parent State
	s.InitializeState(&root)
	s.ExpandState(&root, -1, &parent, f.vocab.LabelOf('i'))

	// Children copied from the same parent must not share a word buffer.
	a, b := parent, parent
	s.ExpandState(&parent, -1, &a, f.vocab.LabelOf('t'))
	s.ExpandState(&parent, -1, &b, f.vocab.LabelOf('s'))
	assert.Equal(t, "it", a.Word())
	assert.Equal(t, "is", b.Word())
	assert.Equal(t, "i", parent.Word())
}

func TestExpandStateInPlace(t *testing.T) {
	f := newFixture(t)
	s := f.scorer(t)

	var st State
	s.InitializeState(&st)
	for _, l := range f.labels(t, "rai") {
		s.ExpandState(&st, -1, &st, l)
	}
	assert.Equal(t, "rai", st.Word())

	var fresh State
	s.InitializeState(&fresh)
	for _, l := range f.labels(t, "rai") {
		var next State
		s.ExpandState(&fresh, -1, &next, l)
		fresh = next
	}
	assert.Equal(t, fresh.Score, st.Score)
	assert.Equal(t, fresh.DeltaScore, st.DeltaScore)

	s.ExpandState(&st, -1, &st, f.vocab.Space())
	want, _ := f.model.FullScore(f.model.BeginSentenceState(), language.Unknown)
	assert.InDelta(t, want, st.LanguageModelScore, 1e-12)
	assert.Equal(t, "", st.Word())
}

func TestConcurrentExpansion(t *testing.T) {
	f := newFixture(t)
	s := f.scorer(t)

	var parent State
	s.InitializeState(&parent)
	for _, l := range f.labels(t, "tomorrow it wi") {
		var next State
		s.ExpandState(&parent, -1, &next, l)
		parent = next
	}

	want := make([]State, f.vocab.Size())
	for l := range want {
		s.ExpandState(&parent, -1, &want[l], l)
	}

	got := make([]State, f.vocab.Size())
	var g errgroup.Group
	for l := range got {
		g.Go(func() error {
			s.ExpandState(&parent, -1, &got[l], l)
			s.ExpandStateEnd(&got[l])
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for l := range want {
		s.ExpandStateEnd(&want[l])
		assert.Equal(t, want[l].Score, got[l].Score, "label %d", l)
		assert.Equal(t, want[l].DeltaScore, got[l].DeltaScore, "label %d", l)
	}
}

func TestNew(t *testing.T) {
	f := newFixture(t)

	_, err := New(f.vocab, trie.New(5), f.model)
	assert.True(t, errors.Is(err, ErrAlphabetMismatch))

	_, err = New(nil, f.trie, f.model)
	assert.Error(t, err)
	_, err = New(f.vocab, nil, f.model)
	assert.Error(t, err)
	_, err = New(f.vocab, f.trie, nil)
	assert.Error(t, err)
}

func TestExpandStateBlankPanics(t *testing.T) {
	f := newFixture(t)
	s := f.scorer(t)

	var root, next State
	s.InitializeState(&root)
	assert.Panics(t, func() { s.ExpandState(&root, -1, &next, f.vocab.Blank()) })
}

func TestBase(t *testing.T) {
	var b Base[State]
	var st State
	b.InitializeState(&st)
	b.ExpandState(&st, 0, &st, 1)
	b.ExpandStateEnd(&st)
	assert.Equal(t, 1.5, b.StateExpansionScore(&st, 1.5))
	assert.Equal(t, 0.0, b.StateEndExpansionScore(&st))

	var _ Scorer[int] = Base[int]{}
}
