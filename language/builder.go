package language

import (
	"io"
	"math"

	"github.com/ieee0824/ctclm/internal/mathutil"
)

// Builder accumulates sentences and builds an N-gram language model.
type Builder struct {
	order     int
	model     *NGramModel
	counts    []map[ngramKey]int
	sentences int
}

// NewBuilder creates a new N-gram builder. order is clamped to 1..MaxOrder.
func NewBuilder(order int) *Builder {
	if order < 1 {
		order = 1
	}
	if order > MaxOrder {
		order = MaxOrder
	}
	b := &Builder{
		order:  order,
		model:  NewNGramModel(order),
		counts: make([]map[ngramKey]int, order),
	}
	for i := range b.counts {
		b.counts[i] = make(map[ngramKey]int)
	}
	return b
}

// AddSentence adds a tokenized sentence. <s> and </s> are added automatically.
func (b *Builder) AddSentence(words []string) {
	if len(words) == 0 {
		return
	}
	seq := make([]WordIndex, 0, len(words)+2)
	seq = append(seq, b.model.bos)
	for _, w := range words {
		seq = append(seq, b.model.intern(w))
	}
	seq = append(seq, b.model.eos)

	for i := range seq {
		for n := 1; n <= b.order && n <= i+1; n++ {
			gram := seq[i-n+1 : i+1]
			b.counts[n-1][makeKey(gram[:n-1], gram[n-1])]++
		}
	}
	b.sentences++
}

// Sentences returns the number of sentences added.
func (b *Builder) Sentences() int {
	return b.sentences
}

// Build returns a Witten-Bell smoothed backoff model of the added sentences.
// Unigrams are maximum likelihood estimates; <unk> is left out so unknown
// words score the model's OOVLogProb.
func (b *Builder) Build() *NGramModel {
	m := NewNGramModel(b.order)
	m.words = append([]string(nil), b.model.words...)
	for w, i := range b.model.indices {
		m.indices[w] = i
	}

	// Unigrams. <s> is history only and is never predicted.
	total := 0
	for k, c := range b.counts[0] {
		if k[0] != m.bos {
			total += c
		}
	}
	for k, c := range b.counts[0] {
		e := ngramEntry{LogProb: mathutil.LogZero}
		if k[0] != m.bos {
			e.LogProb = math.Log(float64(c) / float64(total))
		}
		m.ngrams[0][k] = e
	}

	for n := 2; n <= b.order; n++ {
		// Witten-Bell: for each history h, N(h) tokens and T(h) types follow it.
		ctxTotal := make(map[ngramKey]int)
		ctxTypes := make(map[ngramKey]int)
		for k, c := range b.counts[n-1] {
			h := contextKey(k, n)
			ctxTotal[h] += c
			ctxTypes[h]++
		}

		// P_wb(w|h) = C(h,w) / (N(h) + T(h))
		for k, c := range b.counts[n-1] {
			h := contextKey(k, n)
			p := float64(c) / float64(ctxTotal[h]+ctxTypes[h])
			m.ngrams[n-1][k] = ngramEntry{LogProb: math.Log(p)}
		}

		// bow(h) = (1 - sum P_wb(w|h)) / (1 - sum P_lower(w|h')) over the
		// words w seen after h, where h' drops the oldest word of h.
		lowerMass := make(map[ngramKey]float64)
		for k := range b.counts[n-1] {
			h := contextKey(k, n)
			var lower State
			for _, w := range k[1 : n-1] {
				lower = lower.push(w, m.Order-1)
			}
			lp, _ := m.FullScore(lower, k[n-1])
			lowerMass[h] += math.Exp(lp)
		}
		for h, mass := range lowerMass {
			t := float64(ctxTypes[h])
			left := t / (float64(ctxTotal[h]) + t)
			e, ok := m.ngrams[n-2][h]
			if !ok || mass >= 1 {
				continue
			}
			e.LogBackoff = math.Log(left / (1 - mass))
			m.ngrams[n-2][h] = e
		}
	}
	return m
}

// contextKey returns the history of an n-gram key as an (n-1)-gram key.
func contextKey(k ngramKey, n int) ngramKey {
	var h ngramKey
	copy(h[:n-1], k[:n-1])
	return h
}

// WriteARPA writes the built model in ARPA format (log10 probabilities) to w.
func (b *Builder) WriteARPA(w io.Writer) error {
	return b.Build().WriteARPA(w)
}
