package trie

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/exp/mmap"

	"github.com/ieee0824/ctclm/language"
)

const (
	magic         = "CTRI"
	formatVersion = 1
	maxHeaderSize = 4096

	flagTerminal = 1 << 0

	endOfChildren int32 = -1
)

type header struct {
	Version      int         `cbor:"version"`
	AlphabetSize int         `cbor:"alphabet_size"`
	Aggregation  Aggregation `cbor:"aggregation"`
	Nodes        int         `cbor:"nodes"`
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteTo serializes the trie: a header, then every node depth first with
// its children in label order.
func (t *Trie) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	hdr, err := cbor.Marshal(header{
		Version:      formatVersion,
		AlphabetSize: t.alphabetSize,
		Aggregation:  t.aggregation,
		Nodes:        len(t.nodes),
	})
	if err != nil {
		return 0, fmt.Errorf("encode trie header: %w", err)
	}
	buf := append([]byte(magic), 0, 0, 0, 0)
	binary.BigEndian.PutUint32(buf[len(magic):], uint32(len(hdr)))
	buf = append(buf, hdr...)
	if _, err := bw.Write(buf); err != nil {
		return cw.n, err
	}

	if err := t.writeNode(bw, Root, buf[:0]); err != nil {
		return cw.n, err
	}
	err = bw.Flush()
	return cw.n, err
}

func (t *Trie) writeNode(w *bufio.Writer, id NodeID, buf []byte) error {
	n := t.nodes[id]
	buf = binary.BigEndian.AppendUint64(buf[:0], math.Float64bits(n.score))
	buf = binary.BigEndian.AppendUint32(buf, n.prefixCount)
	if n.terminal {
		buf = append(buf, flagTerminal)
		buf = binary.BigEndian.AppendUint32(buf, uint32(n.word))
	} else {
		buf = append(buf, 0)
	}
	if _, err := w.Write(buf); err != nil {
		return err
	}

	for l := range t.alphabetSize {
		child := t.children[int(id)*t.alphabetSize+l]
		if child == NoNode {
			continue
		}
		buf = binary.BigEndian.AppendUint32(buf[:0], uint32(int32(l)))
		if _, err := w.Write(buf); err != nil {
			return err
		}
		if err := t.writeNode(w, child, buf); err != nil {
			return err
		}
	}
	eoc := endOfChildren
	buf = binary.BigEndian.AppendUint32(buf[:0], uint32(eoc))
	_, err := w.Write(buf)
	return err
}

// ReadFrom reads a trie written by WriteTo. alphabetSize must match the size
// the trie was built with.
func ReadFrom(r io.Reader, alphabetSize int) (*Trie, error) {
	br := bufio.NewReader(r)

	var pre [len(magic) + 4]byte
	if _, err := io.ReadFull(br, pre[:]); err != nil {
		return nil, fmt.Errorf("%w: read magic: %v", ErrMalformed, err)
	}
	if string(pre[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrMalformed, pre[:len(magic)])
	}
	size := binary.BigEndian.Uint32(pre[len(magic):])
	if size == 0 || size > maxHeaderSize {
		return nil, fmt.Errorf("%w: header size %d", ErrMalformed, size)
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrMalformed, err)
	}
	var hdr header
	if err := cbor.Unmarshal(raw, &hdr); err != nil {
		return nil, fmt.Errorf("%w: decode header: %v", ErrMalformed, err)
	}
	if hdr.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, hdr.Version)
	}
	if hdr.AlphabetSize != alphabetSize {
		return nil, fmt.Errorf("%w: trie has %d labels, want %d", ErrAlphabetMismatch, hdr.AlphabetSize, alphabetSize)
	}
	if hdr.Aggregation != Min && hdr.Aggregation != Max {
		return nil, fmt.Errorf("%w: unknown aggregation %d", ErrMalformed, hdr.Aggregation)
	}
	if hdr.Nodes < 1 || hdr.Nodes > math.MaxInt32 {
		return nil, fmt.Errorf("%w: node count %d", ErrMalformed, hdr.Nodes)
	}

	d := &decoder{
		r:     br,
		limit: hdr.Nodes,
		t: &Trie{
			alphabetSize: alphabetSize,
			aggregation:  hdr.Aggregation,
			nodes:        make([]node, 0, min(hdr.Nodes, 1<<20)),
		},
	}
	if _, err := d.node(); err != nil {
		return nil, err
	}
	if d.t.NumNodes() != hdr.Nodes {
		return nil, fmt.Errorf("%w: read %d nodes, header announces %d", ErrMalformed, d.t.NumNodes(), hdr.Nodes)
	}
	return d.t, nil
}

type decoder struct {
	r     *bufio.Reader
	t     *Trie
	limit int
	buf   [8]byte
}

func (d *decoder) read(n int) ([]byte, error) {
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return d.buf[:n], nil
}

func (d *decoder) node() (NodeID, error) {
	t := d.t
	if t.NumNodes() >= d.limit {
		return NoNode, fmt.Errorf("%w: more than %d nodes", ErrMalformed, d.limit)
	}
	id := t.addNode()

	b, err := d.read(8)
	if err != nil {
		return NoNode, err
	}
	score := math.Float64frombits(binary.BigEndian.Uint64(b))
	if b, err = d.read(4); err != nil {
		return NoNode, err
	}
	count := binary.BigEndian.Uint32(b)
	if b, err = d.read(1); err != nil {
		return NoNode, err
	}
	flags := b[0]
	if flags&^flagTerminal != 0 {
		return NoNode, fmt.Errorf("%w: node flags %#x", ErrMalformed, flags)
	}
	n := node{score: score, prefixCount: count}
	if flags&flagTerminal != 0 {
		if b, err = d.read(4); err != nil {
			return NoNode, err
		}
		n.terminal = true
		n.word = language.WordIndex(binary.BigEndian.Uint32(b))
	}
	t.nodes[id] = n

	prev := -1
	for {
		b, err := d.read(4)
		if err != nil {
			return NoNode, err
		}
		label := int32(binary.BigEndian.Uint32(b))
		if label == endOfChildren {
			return id, nil
		}
		if int(label) <= prev || int(label) >= t.alphabetSize {
			return NoNode, fmt.Errorf("%w: child label %d", ErrMalformed, label)
		}
		child, err := d.node()
		if err != nil {
			return NoNode, err
		}
		t.children[int(id)*t.alphabetSize+int(label)] = child
		prev = int(label)
	}
}

// Save writes the trie to path.
func (t *Trie) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := t.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write trie: %w", err)
	}
	return f.Close()
}

// Load reads a trie file through a read-only memory map.
func Load(path string, alphabetSize int) (*Trie, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return ReadFrom(io.NewSectionReader(m, 0, int64(m.Len())), alphabetSize)
}
