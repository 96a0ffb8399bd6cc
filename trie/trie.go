package trie

import (
	"errors"
	"fmt"
	"math"

	"github.com/ieee0824/ctclm/language"
)

var (
	ErrMalformed        = errors.New("trie: malformed stream")
	ErrAlphabetMismatch = errors.New("trie: alphabet size mismatch")
	ErrUnknownCharacter = errors.New("trie: character not in alphabet")
)

// NodeID addresses a node in a Trie.
type NodeID int32

const (
	// NoNode marks an absent child.
	NoNode NodeID = -1
	// Root is the root node of every trie.
	Root NodeID = 0
)

// Aggregation decides how the unigram scores of the words through a node
// are summarized into the node's score.
type Aggregation uint8

const (
	// Min keeps the lowest unigram log probability.
	Min Aggregation = iota
	// Max keeps the highest unigram log probability.
	Max
)

func (a Aggregation) String() string {
	switch a {
	case Min:
		return "min"
	case Max:
		return "max"
	}
	return fmt.Sprintf("Aggregation(%d)", uint8(a))
}

func (a Aggregation) fold(cur, score float64) float64 {
	if a == Max {
		return math.Max(cur, score)
	}
	return math.Min(cur, score)
}

type node struct {
	score       float64
	prefixCount uint32
	word        language.WordIndex
	terminal    bool
}

// Trie is a prefix tree over the labels of an alphabet. Every node caches a
// score summarizing the unigram scores of the words that pass through it.
// A built trie is read-only and safe for concurrent use.
type Trie struct {
	alphabetSize int
	aggregation  Aggregation
	nodes        []node
	// children[id*alphabetSize+label] is the child of node id for label.
	children []NodeID
}

// Option configures a Trie.
type Option func(*Trie)

// WithAggregation sets the score aggregation policy. The default is Min.
func WithAggregation(a Aggregation) Option {
	return func(t *Trie) {
		t.aggregation = a
	}
}

// New creates a trie holding only the root.
func New(alphabetSize int, opts ...Option) *Trie {
	if alphabetSize < 1 {
		panic(fmt.Sprintf("trie: invalid alphabet size %d", alphabetSize))
	}
	t := &Trie{alphabetSize: alphabetSize}
	for _, opt := range opts {
		opt(t)
	}
	t.addNode()
	return t
}

func (t *Trie) addNode() NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{})
	for range t.alphabetSize {
		t.children = append(t.children, NoNode)
	}
	return id
}

// Insert adds word with its word index and unigram score. labelOf maps each
// character to its label and returns a negative value for characters
// outside the alphabet; the trie is left untouched in that case.
func (t *Trie) Insert(word []uint16, labelOf func(uint16) int, index language.WordIndex, score float64) error {
	labels := make([]int, len(word))
	for i, c := range word {
		l := labelOf(c)
		if l < 0 || l >= t.alphabetSize {
			return fmt.Errorf("%w: %q", ErrUnknownCharacter, rune(c))
		}
		labels[i] = l
	}

	cur := Root
	t.update(cur, score)
	for _, l := range labels {
		next := t.children[int(cur)*t.alphabetSize+l]
		if next == NoNode {
			next = t.addNode()
			t.children[int(cur)*t.alphabetSize+l] = next
		}
		cur = next
		t.update(cur, score)
	}
	t.nodes[cur].terminal = true
	t.nodes[cur].word = index
	return nil
}

func (t *Trie) update(id NodeID, score float64) {
	n := &t.nodes[id]
	if n.prefixCount == 0 {
		n.score = score
	} else {
		n.score = t.aggregation.fold(n.score, score)
	}
	n.prefixCount++
}

// ChildAt returns the child of id for label, or NoNode.
func (t *Trie) ChildAt(id NodeID, label int) NodeID {
	if id == NoNode || label < 0 || label >= t.alphabetSize {
		return NoNode
	}
	return t.children[int(id)*t.alphabetSize+label]
}

// Score returns the cached score of id.
func (t *Trie) Score(id NodeID) float64 {
	return t.nodes[id].score
}

// PrefixCount returns the number of inserted words that pass through id.
func (t *Trie) PrefixCount(id NodeID) int {
	return int(t.nodes[id].prefixCount)
}

// WordIndex returns the word index stored at id, if a word ends there.
func (t *Trie) WordIndex(id NodeID) (language.WordIndex, bool) {
	n := t.nodes[id]
	return n.word, n.terminal
}

func (t *Trie) NumNodes() int { return len(t.nodes) }

func (t *Trie) AlphabetSize() int { return t.alphabetSize }

func (t *Trie) Aggregation() Aggregation { return t.aggregation }

// Walk calls fn for every stored word in depth-first label order. labels is
// reused between calls and must be copied to be retained. Walk stops when fn
// returns false.
func (t *Trie) Walk(fn func(labels []int, id NodeID) bool) {
	var labels []int
	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		if t.nodes[id].terminal && !fn(labels, id) {
			return false
		}
		for l := range t.alphabetSize {
			child := t.children[int(id)*t.alphabetSize+l]
			if child == NoNode {
				continue
			}
			labels = append(labels, l)
			if !visit(child) {
				return false
			}
			labels = labels[:len(labels)-1]
		}
		return true
	}
	visit(Root)
}
