package lexicon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testWords = `# vocabulary for tests
tomorrow
it will
rain

it
東京	タワー
`

func TestLoad(t *testing.T) {
	l, err := Load(strings.NewReader(testWords))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	want := []string{"tomorrow", "it", "will", "rain", "東京", "タワー"}
	words := l.Words()
	if len(words) != len(want) {
		t.Fatalf("len(Words) = %d, want %d", len(words), len(want))
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("words[%d] = %s, want %s", i, words[i], want[i])
		}
	}
	if l.Len() != len(want) {
		t.Errorf("Len = %d, want %d", l.Len(), len(want))
	}
}

func TestLoadSkipsComments(t *testing.T) {
	l, err := Load(strings.NewReader(testWords))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	for _, w := range l.Words() {
		if strings.HasPrefix(w, "#") {
			t.Errorf("comment token %q loaded", w)
		}
	}
	if l.Add("rain") {
		t.Error("rain should already be in the list")
	}
	if !l.Add("存在しない") {
		t.Error("new word should be added")
	}
}

func TestAdd(t *testing.T) {
	l := NewWordList()
	if !l.Add("a") {
		t.Error("first Add should report true")
	}
	if l.Add("a") {
		t.Error("duplicate Add should report false")
	}
	if l.Add("") {
		t.Error("empty word should not be added")
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}

func TestLoadFileBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte("\xef\xbb\xbfone\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if got := l.Words(); len(got) != 2 || got[0] != "one" {
		t.Errorf("words = %v, want BOM stripped", got)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
