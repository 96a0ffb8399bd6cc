// Package vocabulary maps between CTC output labels and alphabet characters.
//
// An alphabet of N characters uses labels 0..N-1 by position. Label N is the
// CTC blank and never names a character.
package vocabulary

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ieee0824/ctclm/internal/textio"
	"github.com/ieee0824/ctclm/internal/widechar"
)

var (
	ErrEmpty            = errors.New("vocabulary: empty alphabet")
	ErrDuplicate        = errors.New("vocabulary: duplicate character")
	ErrUnknownCharacter = errors.New("vocabulary: character not in alphabet")
)

// spaceChar is the word separator.
const spaceChar uint16 = ' '

// Vocabulary is an immutable alphabet. It is safe for concurrent use.
type Vocabulary struct {
	chars  []uint16
	labels map[uint16]int
	space  int
}

// New builds a vocabulary from an alphabet string, one label per 16-bit unit.
// Characters outside the Basic Multilingual Plane take two labels, and an
// alphabet holding two of them with the same high surrogate fails with
// ErrDuplicate.
func New(alphabet string) (*Vocabulary, error) {
	return FromChars(widechar.Encode(alphabet))
}

// FromChars builds a vocabulary from a list of 16-bit characters.
func FromChars(chars []uint16) (*Vocabulary, error) {
	if len(chars) == 0 {
		return nil, ErrEmpty
	}
	v := &Vocabulary{
		chars:  make([]uint16, len(chars)),
		labels: make(map[uint16]int, len(chars)),
		space:  -1,
	}
	copy(v.chars, chars)
	for i, c := range v.chars {
		if prev, ok := v.labels[c]; ok {
			return nil, fmt.Errorf("%w: %q at labels %d and %d", ErrDuplicate, rune(c), prev, i)
		}
		v.labels[c] = i
		if c == spaceChar {
			v.space = i
		}
	}
	return v, nil
}

// Load reads a vocabulary from the first line of r.
// The line holds every alphabet character in label order.
func Load(r io.Reader) (*Vocabulary, error) {
	br := bufio.NewReader(textio.NewReader(r))
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	return New(line)
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Size returns the number of characters, excluding the blank.
func (v *Vocabulary) Size() int {
	return len(v.chars)
}

// Blank returns the blank label.
func (v *Vocabulary) Blank() int {
	return len(v.chars)
}

// Space returns the word separator label, or -1 if the alphabet has none.
func (v *Vocabulary) Space() int {
	return v.space
}

func (v *Vocabulary) IsBlank(label int) bool {
	return label == len(v.chars)
}

func (v *Vocabulary) IsSpace(label int) bool {
	return v.space >= 0 && label == v.space
}

// CharacterOf returns the character for label. It panics if label is the
// blank or out of range.
func (v *Vocabulary) CharacterOf(label int) uint16 {
	if label < 0 || label >= len(v.chars) {
		panic(fmt.Sprintf("vocabulary: label %d out of range [0,%d)", label, len(v.chars)))
	}
	return v.chars[label]
}

// LabelOf returns the label for c, or -1 if c is not in the alphabet.
func (v *Vocabulary) LabelOf(c uint16) int {
	if l, ok := v.labels[c]; ok {
		return l
	}
	return -1
}

// Encode converts text into labels.
func (v *Vocabulary) Encode(text string) ([]int, error) {
	units := widechar.Encode(text)
	labels := make([]int, len(units))
	for i, c := range units {
		l := v.LabelOf(c)
		if l < 0 {
			return nil, fmt.Errorf("%w: %q in %q", ErrUnknownCharacter, rune(c), text)
		}
		labels[i] = l
	}
	return labels, nil
}

// Decode converts labels into text. Blank labels are skipped.
func (v *Vocabulary) Decode(labels []int) string {
	units := make([]uint16, 0, len(labels))
	for _, l := range labels {
		if v.IsBlank(l) {
			continue
		}
		units = append(units, v.CharacterOf(l))
	}
	return widechar.Decode(units)
}

// Collapse reduces a frame-level CTC path to the label transitions a beam
// search would expand: consecutive repeats merge, then blanks are dropped.
// A blank between two equal labels keeps both.
func (v *Vocabulary) Collapse(path []int) []int {
	out := make([]int, 0, len(path))
	prev := -1
	for _, l := range path {
		if l == prev {
			continue
		}
		prev = l
		if v.IsBlank(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}
