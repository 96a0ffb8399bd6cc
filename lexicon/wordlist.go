package lexicon

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/ieee0824/ctclm/internal/textio"
)

// WordList is an ordered set of words, as read from a word list file.
type WordList struct {
	words []string
	index map[string]int
}

// NewWordList creates an empty word list.
func NewWordList() *WordList {
	return &WordList{
		index: make(map[string]int),
	}
}

// Add appends word unless it is already present. It reports whether the
// word was added.
func (l *WordList) Add(word string) bool {
	if word == "" {
		return false
	}
	if _, ok := l.index[word]; ok {
		return false
	}
	l.index[word] = len(l.words)
	l.words = append(l.words, word)
	return true
}

// Load reads whitespace separated words, usually one per line.
// Lines starting with '#' are comments. Duplicates keep their first position.
func Load(r io.Reader) (*WordList, error) {
	l := NewWordList()
	scanner := bufio.NewScanner(textio.NewReader(r))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, w := range strings.Fields(line) {
			l.Add(w)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return l, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*WordList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (l *WordList) Len() int {
	return len(l.words)
}

// Words returns the words in insertion order.
func (l *WordList) Words() []string {
	return append([]string(nil), l.words...)
}
