package language

import (
	"github.com/ieee0824/ctclm/internal/mathutil"
)

// MaxOrder is the highest n-gram order a model can hold.
const MaxOrder = 6

// Reserved words.
const (
	UnknownWord       = "<unk>"
	BeginSentenceWord = "<s>"
	EndSentenceWord   = "</s>"
)

// WordIndex identifies a word in a model's vocabulary.
type WordIndex uint32

// Unknown is the index of <unk>; Index returns it for out-of-vocabulary words.
const Unknown WordIndex = 0

// DefaultOOVLogProb is the natural-log probability of an unknown word when
// the model has no <unk> unigram (log10 -100).
var DefaultOOVLogProb = mathutil.FromLog10(-100)

// State is the n-gram context: the most recent words, oldest first.
// It is a comparable value and is safe to copy.
type State struct {
	words [MaxOrder - 1]WordIndex
	n     uint8
}

// Len returns the number of context words.
func (s State) Len() int {
	return int(s.n)
}

// Words returns the context words, oldest first.
func (s State) Words() []WordIndex {
	return append([]WordIndex(nil), s.words[:s.n]...)
}

// push appends w, keeping at most max words.
func (s State) push(w WordIndex, max int) State {
	if max <= 0 {
		return State{}
	}
	if int(s.n) < max {
		s.words[s.n] = w
		s.n++
		return s
	}
	copy(s.words[:max-1], s.words[int(s.n)-max+1:s.n])
	s.words[max-1] = w
	s.n = uint8(max)
	return s
}

// ngramKey is a fixed-size n-gram; unused trailing slots are zero.
type ngramKey [MaxOrder]WordIndex

func makeKey(context []WordIndex, w WordIndex) ngramKey {
	var k ngramKey
	copy(k[:], context)
	k[len(context)] = w
	return k
}

type ngramEntry struct {
	LogProb    float64
	LogBackoff float64
}

// NGramModel is a backoff n-gram language model over indexed words.
// Probabilities are natural logs. A loaded model is read-only and safe for
// concurrent use.
type NGramModel struct {
	Order int // 1..MaxOrder

	// OOVLogProb scores unknown words when the model has no <unk> unigram.
	OOVLogProb float64

	words   []string
	indices map[string]WordIndex
	// ngrams[n-1] holds the n-grams of order n.
	ngrams []map[ngramKey]ngramEntry

	bos, eos WordIndex
}

// NewNGramModel creates an empty model of the given order. <unk>, <s> and
// </s> are always in the vocabulary.
func NewNGramModel(order int) *NGramModel {
	if order < 1 {
		order = 1
	}
	if order > MaxOrder {
		order = MaxOrder
	}
	m := &NGramModel{
		Order:      order,
		OOVLogProb: DefaultOOVLogProb,
		indices:    make(map[string]WordIndex),
	}
	m.setOrder(order)
	m.intern(UnknownWord)
	m.bos = m.intern(BeginSentenceWord)
	m.eos = m.intern(EndSentenceWord)
	return m
}

func (m *NGramModel) setOrder(order int) {
	for len(m.ngrams) < order {
		m.ngrams = append(m.ngrams, make(map[ngramKey]ngramEntry))
	}
	m.Order = order
}

// intern returns the index of word, adding it if needed.
func (m *NGramModel) intern(word string) WordIndex {
	if i, ok := m.indices[word]; ok {
		return i
	}
	i := WordIndex(len(m.words))
	m.words = append(m.words, word)
	m.indices[word] = i
	return i
}

func (m *NGramModel) set(words []WordIndex, e ngramEntry) {
	n := len(words)
	m.ngrams[n-1][makeKey(words[:n-1], words[n-1])] = e
}

func (m *NGramModel) lookup(context []WordIndex, w WordIndex) (ngramEntry, bool) {
	e, ok := m.ngrams[len(context)][makeKey(context, w)]
	return e, ok
}

// Index returns the index of word, or Unknown.
func (m *NGramModel) Index(word string) WordIndex {
	if i, ok := m.indices[word]; ok {
		return i
	}
	return Unknown
}

// Word returns the text of a word index.
func (m *NGramModel) Word(i WordIndex) string {
	if int(i) >= len(m.words) {
		return UnknownWord
	}
	return m.words[i]
}

func (m *NGramModel) BeginSentence() WordIndex { return m.bos }

func (m *NGramModel) EndSentence() WordIndex { return m.eos }

// BeginSentenceState returns the context at the start of a sentence.
func (m *NGramModel) BeginSentenceState() State {
	return State{}.push(m.bos, m.Order-1)
}

// NullContextState returns an empty context, which scores unigrams.
func (m *NGramModel) NullContextState() State {
	return State{}
}

// FullScore returns the log probability of w following in, and the context
// after w. When the longest n-gram is missing the model backs off to shorter
// contexts, adding each context's backoff weight.
func (m *NGramModel) FullScore(in State, w WordIndex) (float64, State) {
	ctx := in.words[:in.n]
	if len(ctx) > m.Order-1 {
		ctx = ctx[len(ctx)-(m.Order-1):]
	}

	var backoff float64
	for k := len(ctx); k > 0; k-- {
		h := ctx[len(ctx)-k:]
		if e, ok := m.lookup(h, w); ok {
			return backoff + e.LogProb, in.push(w, m.Order-1)
		}
		if e, ok := m.lookup(h[:k-1], h[k-1]); ok {
			backoff += e.LogBackoff
		}
	}
	return backoff + m.unigram(w), in.push(w, m.Order-1)
}

func (m *NGramModel) unigram(w WordIndex) float64 {
	if e, ok := m.lookup(nil, w); ok {
		return e.LogProb
	}
	if e, ok := m.lookup(nil, Unknown); ok {
		return e.LogProb
	}
	return m.OOVLogProb
}

// LogProb returns the log probability of a word given its history.
// Uses backoff when the exact n-gram is not found.
func (m *NGramModel) LogProb(history []string, word string) float64 {
	var s State
	for _, h := range history {
		s = s.push(m.Index(h), m.Order-1)
	}
	lp, _ := m.FullScore(s, m.Index(word))
	return lp
}

// SentenceLogProb returns the total log probability of a sentence (word sequence).
// Automatically adds <s> at the beginning and </s> at the end.
func (m *NGramModel) SentenceLogProb(words []string) float64 {
	total := 0.0
	s := m.BeginSentenceState()
	for _, w := range words {
		var lp float64
		lp, s = m.FullScore(s, m.Index(w))
		total += lp
	}
	lp, _ := m.FullScore(s, m.eos)
	return total + lp
}

// Vocab returns all words in the unigram vocabulary.
func (m *NGramModel) Vocab() []string {
	words := make([]string, 0, len(m.ngrams[0]))
	for k := range m.ngrams[0] {
		words = append(words, m.words[k[0]])
	}
	return words
}

// NumNGrams returns the number of n-grams of order n.
func (m *NGramModel) NumNGrams(n int) int {
	if n < 1 || n > len(m.ngrams) {
		return 0
	}
	return len(m.ngrams[n-1])
}
