package bao

import (
	"bytes"
	"io"
)

// sliceOverlap reports whether a node covering [nodeStart, nodeStart+nodeLen)
// needs to be represented (even if only partially) in a slice covering
// [rangeStart, rangeStart+rangeLen). An empty requested range (rangeLen==0)
// still "touches" whichever node's span contains rangeStart, so that the
// spine down to that point is preserved even though no chunk bytes will be
// emitted — seeking or slicing past the end of content yields an empty
// but still-verified traversal.
func sliceOverlap(nodeStart, nodeLen, rangeStart, rangeLen uint64) bool {
	nodeEnd := nodeStart + nodeLen
	if rangeLen == 0 {
		return nodeStart <= rangeStart && rangeStart <= nodeEnd
	}
	rangeEnd := rangeStart + rangeLen
	return nodeEnd > rangeStart && nodeStart < rangeEnd
}

// clampRange silently clamps a requested [start, start+length) to fit
// within [0, contentLen).
func clampRange(contentLen, start, length uint64) (clampedStart, clampedLen uint64) {
	if start > contentLen {
		start = contentLen
	}
	end := start + length
	if end > contentLen || end < start /* overflow */ {
		end = contentLen
	}
	return start, end - start
}

// NewSliceExtractor reads input's combined encoding and produces a
// self-contained slice covering [start, start+length) (clamped to the
// content length found in input's own header). The slice is byte-identical
// in format to a combined encoding, but nodes and chunks fully outside the
// requested range are omitted along with their subtrees — the decoder
// (SliceReader), given the same start/length, reconstructs exactly which
// nodes were omitted without any extra markers, since both sides apply the
// same deterministic overlap rule.
//
// input must support Seek; extraction reads only the bytes the slice needs,
// not the whole encoding.
func NewSliceExtractor(input io.ReadSeeker, start, length uint64) (io.Reader, error) {
	if _, err := input.Seek(0, io.SeekStart); err != nil {
		return nil, wrapIOError(err, "seeking to header")
	}
	var header [HeaderSize]byte
	if _, err := io.ReadFull(input, header[:]); err != nil {
		return nil, wrapIOError(err, "reading header")
	}
	contentLen := decodeLen(header[:])
	rangeStart, rangeLen := clampRange(contentLen, start, length)

	out := make([]byte, 0, HeaderSize+ParentSize*numParentNodes(contentLen)+rangeLen+2*ChunkSize)
	out = append(out, header[:]...)
	if err := extractNode(input, HeaderSize, 0, contentLen, rangeStart, rangeLen, &out); err != nil {
		return nil, err
	}
	return bytes.NewReader(out), nil
}

func extractNode(r io.ReadSeeker, inputOffset, contentStart, length, rangeStart, rangeLen uint64, out *[]byte) error {
	if !sliceOverlap(contentStart, length, rangeStart, rangeLen) {
		return nil
	}
	if length <= ChunkSize {
		if rangeLen == 0 {
			return nil
		}
		if _, err := r.Seek(int64(inputOffset), io.SeekStart); err != nil {
			return wrapIOError(err, "seeking to chunk")
		}
		chunk := make([]byte, length)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return wrapNodeReadError(err, inputOffset, "reading chunk")
		}
		*out = append(*out, chunk...)
		return nil
	}
	if _, err := r.Seek(int64(inputOffset), io.SeekStart); err != nil {
		return wrapIOError(err, "seeking to parent")
	}
	var body [ParentSize]byte
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return wrapNodeReadError(err, inputOffset, "reading parent node")
	}
	*out = append(*out, body[:]...)

	split := leftLen(length)
	leftEncodedLen, _ := subtreeChunks(length)
	if err := extractNode(r, inputOffset+ParentSize, contentStart, split, rangeStart, rangeLen, out); err != nil {
		return err
	}
	return extractNode(r, inputOffset+ParentSize+leftEncodedLen, contentStart+split, length-split, rangeStart, rangeLen, out)
}

// NewOutboardSliceExtractor is NewSliceExtractor's outboard twin: parent
// nodes are read from tree while chunk bytes come from content. Both must
// support Seek.
func NewOutboardSliceExtractor(content, tree io.ReadSeeker, start, length uint64) (io.Reader, error) {
	if _, err := tree.Seek(0, io.SeekStart); err != nil {
		return nil, wrapIOError(err, "seeking to header")
	}
	var header [HeaderSize]byte
	if _, err := io.ReadFull(tree, header[:]); err != nil {
		return nil, wrapIOError(err, "reading header")
	}
	contentLen := decodeLen(header[:])
	rangeStart, rangeLen := clampRange(contentLen, start, length)

	out := make([]byte, 0, HeaderSize+ParentSize*numParentNodes(contentLen)+rangeLen+2*ChunkSize)
	out = append(out, header[:]...)
	if err := extractNodeOutboard(content, tree, HeaderSize, 0, 0, contentLen, rangeStart, rangeLen, &out); err != nil {
		return nil, err
	}
	return bytes.NewReader(out), nil
}

func extractNodeOutboard(content, tree io.ReadSeeker, treeOffset, contentOffset, contentStart, length, rangeStart, rangeLen uint64, out *[]byte) error {
	if !sliceOverlap(contentStart, length, rangeStart, rangeLen) {
		return nil
	}
	if length <= ChunkSize {
		if rangeLen == 0 {
			return nil
		}
		if _, err := content.Seek(int64(contentOffset), io.SeekStart); err != nil {
			return wrapIOError(err, "seeking content stream")
		}
		chunk := make([]byte, length)
		if _, err := io.ReadFull(content, chunk); err != nil {
			return wrapNodeReadError(err, contentOffset, "reading chunk")
		}
		*out = append(*out, chunk...)
		return nil
	}
	if _, err := tree.Seek(int64(treeOffset), io.SeekStart); err != nil {
		return wrapIOError(err, "seeking tree stream")
	}
	var body [ParentSize]byte
	if _, err := io.ReadFull(tree, body[:]); err != nil {
		return wrapNodeReadError(err, treeOffset, "reading parent node")
	}
	*out = append(*out, body[:]...)

	split := leftLen(length)
	leftTreeLen := numParentNodes(split) * ParentSize
	if err := extractNodeOutboard(content, tree, treeOffset+ParentSize, contentOffset, contentStart, split, rangeStart, rangeLen, out); err != nil {
		return err
	}
	return extractNodeOutboard(content, tree, treeOffset+ParentSize+leftTreeLen, contentOffset+split, contentStart+split, length-split, rangeStart, rangeLen, out)
}

// sliceFrame is a SliceReader traversal-stack entry. Unlike Reader's
// combinedFrame, it needs no stream offset: the slice stream only ever
// contains bytes for nodes SliceReader is about to visit, consumed purely
// sequentially.
type sliceFrame struct {
	hash         Hash
	contentStart uint64
	length       uint64
	isRoot       bool
}

// SliceReader verifies a slice produced by NewSliceExtractor (or
// NewOutboardSliceExtractor) against the original root hash, and streams
// the verified plaintext for [start, start+length). It does not require
// the slice stream to be seekable.
type SliceReader struct {
	r          io.Reader
	root       Hash
	start      uint64
	length     uint64
	started    bool
	contentLen uint64
	rangeStart uint64
	rangeLen   uint64
	stack      []sliceFrame
	pending    []byte
}

// NewSliceReader returns a SliceReader that verifies r (a slice stream)
// against root and emits the plaintext for [start, start+length).
func NewSliceReader(r io.Reader, root Hash, start, length uint64) *SliceReader {
	return &SliceReader{r: r, root: root, start: start, length: length}
}

func (d *SliceReader) ensureStarted() error {
	if d.started {
		return nil
	}
	var header [HeaderSize]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		return wrapIOError(err, "reading slice header")
	}
	d.contentLen = decodeLen(header[:])
	d.rangeStart, d.rangeLen = clampRange(d.contentLen, d.start, d.length)
	d.stack = append(d.stack, sliceFrame{hash: d.root, contentStart: 0, length: d.contentLen, isRoot: true})
	d.started = true
	return nil
}

// Read implements io.Reader.
func (d *SliceReader) Read(p []byte) (int, error) {
	if len(d.pending) == 0 {
		if err := d.ensureStarted(); err != nil {
			return 0, err
		}
		if err := d.descend(); err != nil {
			return 0, err
		}
		if len(d.stack) == 0 && len(d.pending) == 0 {
			return 0, io.EOF
		}
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *SliceReader) descend() error {
	for len(d.stack) > 0 {
		top := d.stack[len(d.stack)-1]
		d.stack = d.stack[:len(d.stack)-1]

		if !sliceOverlap(top.contentStart, top.length, d.rangeStart, d.rangeLen) {
			continue
		}

		if top.length <= ChunkSize {
			if d.rangeLen == 0 {
				continue
			}
			chunk := make([]byte, top.length)
			if _, err := io.ReadFull(d.r, chunk); err != nil {
				return wrapNodeReadError(err, top.contentStart, "reading chunk")
			}
			f := notRoot()
			if top.isRoot {
				f = asRoot(d.contentLen)
			}
			if !constantTimeEqual(hashNode(chunk, f), top.hash) {
				return &IntegrityError{Offset: top.contentStart}
			}
			lo := maxU64(top.contentStart, d.rangeStart)
			hi := minU64(top.contentStart+top.length, d.rangeStart+d.rangeLen)
			d.pending = chunk[lo-top.contentStart : hi-top.contentStart]
			return nil
		}

		var body [ParentSize]byte
		if _, err := io.ReadFull(d.r, body[:]); err != nil {
			return wrapNodeReadError(err, top.contentStart, "reading parent node")
		}
		node := parentNode(body)
		f := notRoot()
		if top.isRoot {
			f = asRoot(d.contentLen)
		}
		if !constantTimeEqual(parentHash(node.leftHash(), node.rightHash(), f), top.hash) {
			return &IntegrityError{Offset: top.contentStart}
		}
		split := leftLen(top.length)
		right := sliceFrame{hash: node.rightHash(), contentStart: top.contentStart + split, length: top.length - split}
		left := sliceFrame{hash: node.leftHash(), contentStart: top.contentStart, length: split}
		if sliceOverlap(right.contentStart, right.length, d.rangeStart, d.rangeLen) {
			d.stack = append(d.stack, right)
		}
		if sliceOverlap(left.contentStart, left.length, d.rangeStart, d.rangeLen) {
			d.stack = append(d.stack, left)
		}
	}
	return nil
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// Decode verifies encoded (a complete, in-memory combined encoding)
// against root and writes the verified plaintext to out. It is an
// in-memory convenience wrapper around Reader for callers that already
// hold the whole encoding; the bao CLI uses Reader directly.
func Decode(encoded []byte, out io.Writer, root Hash) error {
	r := NewReader(bytes.NewReader(encoded), root)
	_, err := io.Copy(out, r)
	return err
}
