package bao

import (
	"bufio"
	"io"
)

// EncodedSize returns the size in bytes of the combined encoding of a
// contentLen-byte input.
func EncodedSize(contentLen uint64) uint64 { return encodedSize(contentLen) }

// OutboardSize returns the size in bytes of the outboard encoding (tree
// nodes and header only) of a contentLen-byte input.
func OutboardSize(contentLen uint64) uint64 { return outboardSize(contentLen) }

// Encode produces the combined encoding of content and its root hash. The
// encoding is header || pre-order(parent nodes interleaved with chunks).
//
// This is the "mapped" strategy: the final size is known up front
// (len(content)), so the output buffer is pre-sized and every node lands at
// its final offset without any seeking. Each parent's slot is reserved
// before its children and filled in once both child hashes are known.
func Encode(content []byte) ([]byte, Hash) {
	out := make([]byte, 0, encodedSize(uint64(len(content))))
	header := encodeLen(uint64(len(content)))
	out = append(out, header[:]...)
	out, root := encodeSubtree(out, content, asRoot(uint64(len(content))))
	return out, root
}

// EncodeOutboard produces the outboard encoding of content (header + parent
// nodes only) and its root hash. Content is left untouched; it must be
// stored separately by the caller.
func EncodeOutboard(content []byte) ([]byte, Hash) {
	out := make([]byte, 0, outboardSize(uint64(len(content))))
	header := encodeLen(uint64(len(content)))
	out = append(out, header[:]...)
	out, root := encodeSubtreeOutboard(out, content, asRoot(uint64(len(content))))
	return out, root
}

// encodeSubtree appends the pre-order encoding of content (a leaf, or an
// internal node plus both children) to out, returning the updated slice and
// the subtree's hash.
func encodeSubtree(out []byte, content []byte, f finalization) ([]byte, Hash) {
	if len(content) <= ChunkSize {
		out = append(out, content...)
		return out, hashNode(content, f)
	}
	split := leftLen(uint64(len(content)))
	// Reserve the parent slot; we'll know its bytes once both children are
	// hashed, which in the mapped strategy is immediate since we recurse
	// synchronously before moving on.
	parentOffset := len(out)
	out = append(out, make([]byte, ParentSize)...)
	out, leftHash := encodeSubtree(out, content[:split], notRoot())
	out, rightHash := encodeSubtree(out, content[split:], notRoot())
	copy(out[parentOffset:parentOffset+HashSize], leftHash[:])
	copy(out[parentOffset+HashSize:parentOffset+ParentSize], rightHash[:])
	return out, parentHash(leftHash, rightHash, f)
}

// encodeSubtreeOutboard is encodeSubtree's outboard twin: it writes parent
// nodes but never content bytes.
func encodeSubtreeOutboard(out []byte, content []byte, f finalization) ([]byte, Hash) {
	if len(content) <= ChunkSize {
		return out, hashNode(content, f)
	}
	split := leftLen(uint64(len(content)))
	parentOffset := len(out)
	out = append(out, make([]byte, ParentSize)...)
	out, leftHash := encodeSubtreeOutboard(out, content[:split], notRoot())
	out, rightHash := encodeSubtreeOutboard(out, content[split:], notRoot())
	copy(out[parentOffset:parentOffset+HashSize], leftHash[:])
	copy(out[parentOffset+HashSize:parentOffset+ParentSize], rightHash[:])
	return out, parentHash(leftHash, rightHash, f)
}

// Writer is a streaming combined-format encoder. Callers write plaintext to
// it in any chunking they like, then call Finish to obtain the root hash.
//
// Finish requires the sink to implement io.Seeker: since the header and
// every parent node's final position depends on the total content length,
// which isn't known until the last byte arrives, Writer buffers the
// content it's given and performs the mapped encode (see Encode) once
// Finish is called, seeking back to the start of the sink to lay down the
// result: the caller streams input once, and the sink must be seekable,
// without duplicating the bookkeeping the two-pass mapped strategy
// already gets right.
type Writer struct {
	sink     io.Writer
	buf      []byte
	outboard bool
}

// NewWriter returns a Writer that will produce a combined encoding on sink
// once Finish is called.
func NewWriter(sink io.Writer) *Writer {
	return &Writer{sink: sink}
}

// NewOutboardWriter returns a Writer that will produce an outboard encoding
// (header + parent nodes only) on sink once Finish is called. Content bytes
// written to it are hashed but not copied to sink.
func NewOutboardWriter(sink io.Writer) *Writer {
	return &Writer{sink: sink, outboard: true}
}

// Write buffers p for later encoding. It never returns an error.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Finish encodes everything written so far to the sink and returns the
// content's root hash. It returns ErrSeekRequired if the sink doesn't
// implement io.Seeker.
func (w *Writer) Finish() (Hash, error) {
	seeker, ok := w.sink.(io.Seeker)
	if !ok {
		return Hash{}, ErrSeekRequired
	}
	var encoded []byte
	var root Hash
	if w.outboard {
		encoded, root = EncodeOutboard(w.buf)
	} else {
		encoded, root = Encode(w.buf)
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return Hash{}, wrapIOError(err, "seeking to start of encode output")
	}
	bw := bufio.NewWriter(w.sink)
	if _, err := bw.Write(encoded); err != nil {
		return Hash{}, wrapIOError(err, "writing encoded output")
	}
	if err := bw.Flush(); err != nil {
		return Hash{}, wrapIOError(err, "flushing encoded output")
	}
	if truncater, ok := w.sink.(interface{ Truncate(int64) error }); ok {
		if err := truncater.Truncate(int64(len(encoded))); err != nil {
			return Hash{}, wrapIOError(err, "truncating encode output")
		}
	}
	return root, nil
}
