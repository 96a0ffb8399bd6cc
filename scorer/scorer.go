// Package scorer scores the character expansions of a CTC beam search with a
// word level language model.
package scorer

// Scorer is called by a beam search decoder to score one beam's state as it
// is extended label by label. S is the per-beam state the decoder stores and
// copies; the scorer only ever writes the state it is handed as destination.
type Scorer[S any] interface {
	// InitializeState prepares the state of a new root beam.
	InitializeState(s *S)
	// ExpandState derives to, the state after toLabel, from its parent.
	// It is called at most once per child beam.
	ExpandState(from *S, fromLabel int, to *S, toLabel int)
	// ExpandStateEnd finalizes s once decoding has finished.
	// It is called at most once per beam.
	ExpandStateEnd(s *S)
	// StateExpansionScore returns the log probability to add to a beam's
	// score after ExpandState.
	StateExpansionScore(s *S, previous float64) float64
	// StateEndExpansionScore returns the log probability to add to a beam's
	// final score after ExpandStateEnd.
	StateEndExpansionScore(s *S) float64
}

// Base is a Scorer that keeps no state and leaves scores unchanged.
type Base[S any] struct{}

func (Base[S]) InitializeState(*S) {}

func (Base[S]) ExpandState(*S, int, *S, int) {}

func (Base[S]) ExpandStateEnd(*S) {}

func (Base[S]) StateExpansionScore(_ *S, previous float64) float64 {
	return previous
}

func (Base[S]) StateEndExpansionScore(*S) float64 {
	return 0
}
