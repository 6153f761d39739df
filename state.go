package bao

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// state is a carry-propagation subtree stack: it tracks pending subtree
// hashes without storing their sizes, the same way a binary counter
// tracks carries. A new chunk's arrival merges two pending subtrees
// together whenever it produces a carry; the "levels are full" test is
// a popcount check against totalLen/ChunkSize, since every subtree
// prior to finalization is a power of two times ChunkSize.
type state struct {
	subtrees []Hash // stack, bottom = oldest/largest
	totalLen uint64
}

func newState() *state {
	return &state{subtrees: make([]Hash, 0, MaxDepth)}
}

// needsMerge reports whether the stack holds more subtrees than the number
// of 1 bits in totalLen/ChunkSize — i.e. whether a carry is pending.
func (s *state) needsMerge() bool {
	chunks := s.totalLen / ChunkSize
	return len(s.subtrees) > popcount(chunks)
}

func popcount(n uint64) int {
	count := 0
	for n != 0 {
		count++
		n &= n - 1
	}
	return count
}

// mergeInner pops the top two subtrees, hashes their concatenation as a
// parent with the given finalization, and pushes the result back. It
// returns the 64-byte parent node body.
func (s *state) mergeInner(f finalization) parentNode {
	n := len(s.subtrees)
	right := s.subtrees[n-1]
	left := s.subtrees[n-2]
	s.subtrees = s.subtrees[:n-2]

	var node parentNode
	copy(node[:HashSize], left[:])
	copy(node[HashSize:], right[:])

	h := parentHash(left, right, f)
	s.subtrees = append(s.subtrees, h)
	return node
}

// pushSubtree adds a freshly hashed subtree to the stack, merging any
// pending carries first. Callers who need the intermediate parent bytes
// (encoders) should drain mergeParent in a loop before calling this; this
// function merges silently for callers (like HashWriter) that only want the
// final root.
func (s *state) pushSubtree(h Hash, length int) {
	for s.needsMerge() {
		s.mergeInner(notRoot())
	}
	s.subtrees = append(s.subtrees, h)
	s.totalLen += uint64(length)
}

// mergeParent performs one pending carry merge and returns its parent node
// bytes, or ok=false if the stack is already balanced.
func (s *state) mergeParent() (parentNode, bool) {
	if !s.needsMerge() {
		return parentNode{}, false
	}
	return s.mergeInner(notRoot()), true
}

// stateFinish is the result of one step of mergeFinish: either another
// interior parent, or (on the final call) the root hash.
type stateFinish struct {
	parent   parentNode
	hasParent bool
	root     Hash
	isRoot   bool
}

// mergeFinish collapses the stack by one merge step. While more than two
// subtrees remain it merges with NotRoot; the final merge of exactly two
// subtrees is hashed as Root(totalLen); with one subtree remaining, that
// subtree already *is* the root (this happens for inputs of at most one
// chunk, which are never merged at all).
func (s *state) mergeFinish() stateFinish {
	switch {
	case len(s.subtrees) > 2:
		p := s.mergeInner(notRoot())
		return stateFinish{parent: p, hasParent: true}
	case len(s.subtrees) == 2:
		p := s.mergeInner(asRoot(s.totalLen))
		return stateFinish{parent: p, hasParent: true, root: s.subtrees[0], isRoot: true}
	default:
		return stateFinish{root: s.subtrees[0], isRoot: true}
	}
}

// finish drives mergeFinish to completion and returns the root hash,
// discarding any parent node bytes along the way.
func (s *state) finish() Hash {
	for {
		f := s.mergeFinish()
		if f.isRoot {
			return f.root
		}
	}
}

// HashWriter incrementally hashes written bytes into a root Hash, without
// producing an encoded stream. It buffers input into ChunkSize-sized
// staging chunks; callers that also need the encoded tree bytes should use
// the encode.go Writer instead, which buffers its input and runs Encode
// rather than this state machine.
type HashWriter struct {
	buf   []byte
	state *state
}

// NewHashWriter returns a HashWriter ready to accept input via Write.
func NewHashWriter() *HashWriter {
	return &HashWriter{buf: make([]byte, 0, ChunkSize), state: newState()}
}

// Write implements io.Writer. It never returns an error.
func (w *HashWriter) Write(p []byte) (int, error) {
	written := len(p)
	for len(p) > 0 {
		if len(w.buf) == ChunkSize {
			h := hashNode(w.buf, notRoot())
			w.state.pushSubtree(h, ChunkSize)
			w.buf = w.buf[:0]
		}
		want := ChunkSize - len(w.buf)
		take := want
		if take > len(p) {
			take = len(p)
		}
		w.buf = append(w.buf, p[:take]...)
		p = p[take:]
	}
	return written, nil
}

// Finish returns the root hash of everything written so far. The
// HashWriter must not be reused afterwards.
func (w *HashWriter) Finish() Hash {
	f := notRoot()
	if len(w.state.subtrees) == 0 {
		// Nothing was ever pushed: the whole input fits in the staging
		// buffer (possibly zero bytes), so this chunk alone is the root.
		f = asRoot(uint64(len(w.buf)))
	}
	h := hashNode(w.buf, f)
	w.state.pushSubtree(h, len(w.buf))
	return w.state.finish()
}

// Sum computes the root hash of data in one call. Above maxSingleThreaded
// bytes it splits recursively at leftLen and hashes the two halves
// concurrently via errgroup; below that threshold it falls back to the
// serial recursive walk. Both paths are pure functions of the input
// bytes and produce identical output.
func Sum(data []byte) Hash {
	if len(data) <= maxSingleThreaded {
		return hashRecurse(data, asRoot(uint64(len(data))))
	}
	return hashRecurseParallel(data, asRoot(uint64(len(data))))
}

func hashRecurse(data []byte, f finalization) Hash {
	if len(data) <= ChunkSize {
		return hashNode(data, f)
	}
	split := leftLen(uint64(len(data)))
	left := hashRecurse(data[:split], notRoot())
	right := hashRecurse(data[split:], notRoot())
	return parentHash(left, right, f)
}

func hashRecurseParallel(data []byte, f finalization) Hash {
	if len(data) <= ChunkSize {
		return hashNode(data, f)
	}
	split := leftLen(uint64(len(data)))
	left, right := data[:split], data[split:]

	var leftHash, rightHash Hash
	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		leftHash = hashRecurseParallel(left, notRoot())
		return nil
	})
	g.Go(func() error {
		rightHash = hashRecurseParallel(right, notRoot())
		return nil
	})
	_ = g.Wait() // neither goroutine can fail; subtree hashing is pure
	return parentHash(leftHash, rightHash, f)
}
