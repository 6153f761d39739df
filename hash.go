package bao

import (
	"encoding/binary"
	"hash"

	blake2b "github.com/minio/blake2b-simd"
)

// Size constants for the tree shape. These are fixed constants of the
// format, not negotiable parameters.
const (
	// ChunkSize is the maximum number of plaintext bytes summarized by a
	// single leaf node.
	ChunkSize = 4096
	// HashSize is the width of every hash value in the tree, in bytes.
	HashSize = 32
	// ParentSize is the width of a parent node: two concatenated child hashes.
	ParentSize = 2 * HashSize
	// HeaderSize is the width of the little-endian content-length header
	// that prefixes every encoded stream.
	HeaderSize = 8
	// MaxDepth is the number of subtree stack slots reserved up front. The
	// deepest the stack can possibly grow for a content length up to
	// 2^64-1 is 52; the extra room is slack for alignment, matching the
	// reference implementation.
	MaxDepth = 64
	// maxSingleThreaded is the input size at or below which Sum doesn't bother
	// forking into parallel work.
	maxSingleThreaded = 4 * ChunkSize
)

// Hash is an opaque 32-byte tree-hash value: either a chunk hash, a parent
// hash, or a root hash.
type Hash [HashSize]byte

// parentNode is the 64-byte body hashed to produce a parent's hash:
// left child hash concatenated with right child hash.
type parentNode [ParentSize]byte

func (p parentNode) leftHash() Hash {
	var h Hash
	copy(h[:], p[:HashSize])
	return h
}

func (p parentNode) rightHash() Hash {
	var h Hash
	copy(h[:], p[HashSize:])
	return h
}

// finalization tags a node's root-ness. The zero value is notRoot.
type finalization struct {
	isRoot  bool
	rootLen uint64
}

func notRoot() finalization { return finalization{} }

func asRoot(totalLen uint64) finalization { return finalization{isRoot: true, rootLen: totalLen} }

// encodeLen renders a content length as the little-endian 8-byte header.
func encodeLen(n uint64) [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint64(b[:], n)
	return b
}

// decodeLen parses the little-endian 8-byte header back into a length.
func decodeLen(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// newBlake2b builds a BLAKE2b state configured to emit HashSize bytes, with
// the tree "last node" flag set according to f. Every node this package
// hashes is bounded in size (a chunk is at most ChunkSize bytes, a parent is
// exactly ParentSize bytes), so rather than mutating a long-lived streaming
// state mid-flight, the wrapper decides root-ness up front and configures
// the state once before writing the node's body. This is the same
// constant-size-node property src/hash.rs relies on when it builds a fresh
// blake2b_simd::State per node instead of reusing one across nodes.
func newBlake2b(f finalization) hash.Hash {
	state, err := blake2b.New(&blake2b.Config{
		Size: HashSize,
		Tree: &blake2b.Tree{
			Fanout:     1,
			MaxDepth:   1,
			IsLastNode: f.isRoot,
		},
	})
	if err != nil {
		// Size and Tree are both well-formed constants; the only way New
		// can fail is a library misuse we've just ruled out.
		panic("bao: unexpected blake2b configuration error: " + err.Error())
	}
	return state
}

// hashNode hashes a single chunk's plaintext (at most ChunkSize bytes).
func hashNode(chunk []byte, f finalization) Hash {
	state := newBlake2b(f)
	state.Write(chunk)
	return finalizeHash(state, f)
}

// parentHash hashes a 64-byte parent node body (the concatenation of two
// child hashes).
func parentHash(left, right Hash, f finalization) Hash {
	state := newBlake2b(f)
	state.Write(left[:])
	state.Write(right[:])
	return finalizeHash(state, f)
}

// finalizeHash feeds the root length suffix (if any) and returns the first
// HashSize bytes of the digest.
func finalizeHash(state hash.Hash, f finalization) Hash {
	if f.isRoot {
		lenBytes := encodeLen(f.rootLen)
		state.Write(lenBytes[:])
	}
	sum := state.Sum(nil)
	var out Hash
	copy(out[:], sum[:HashSize])
	return out
}
