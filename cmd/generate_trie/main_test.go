package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/ctclm/trie"
)

const testARPA = `\data\
ngram 1=5

\1-grams:
-99	<s>
-0.8	</s>
-0.5	it
-0.7	will
-0.9	rain

\end\
`

func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	model := filepath.Join(dir, "lm.arpa")
	vocab := filepath.Join(dir, "vocabulary")
	require.NoError(t, os.WriteFile(model, []byte(testARPA), 0o644))
	require.NoError(t, os.WriteFile(vocab, []byte("abcdefghijklmnopqrstuvwxyz' \n"), 0o644))
	return model, vocab
}

func TestGenerateTrie(t *testing.T) {
	model, vocab := writeInputs(t)

	var out bytes.Buffer
	cmd := newCmd()
	cmd.SetArgs([]string{model, vocab, "--aggregation", "max"})
	cmd.SetIn(strings.NewReader("it\nwill\nrain\nRain\n"))
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	tr, err := trie.ReadFrom(&out, 28)
	require.NoError(t, err)
	assert.Equal(t, trie.Max, tr.Aggregation())

	n := 0
	tr.Walk(func([]int, trie.NodeID) bool {
		n++
		return true
	})
	assert.Equal(t, 3, n)
}

func TestGenerateTrieArgs(t *testing.T) {
	model, vocab := writeInputs(t)

	for _, args := range [][]string{nil, {model}, {model, vocab, "extra"}} {
		cmd := newCmd()
		cmd.SetArgs(args)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		assert.Error(t, cmd.Execute(), "%v", args)
	}

	cmd := newCmd()
	cmd.SetArgs([]string{model, vocab, "--aggregation", "mean"})
	cmd.SetIn(strings.NewReader("it\n"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.ErrorContains(t, cmd.Execute(), "unknown aggregation")

	cmd = newCmd()
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.arpa"), vocab})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.ErrorContains(t, cmd.Execute(), "load language model")
}

func TestGenerateTrieHelp(t *testing.T) {
	var out bytes.Buffer
	cmd := newCmd()
	cmd.SetArgs([]string{"--help"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Environment Variables:")
	assert.Contains(t, out.String(), "CTCLM_DEBUG")
	assert.NotContains(t, out.String(), "CTCLM_MODELS")
}
