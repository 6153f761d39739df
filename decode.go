package bao

import (
	"io"
)

// combinedFrame is one entry of a Reader's traversal stack: the hash we
// expect a node to have, the number of plaintext bytes its subtree covers,
// and the absolute byte offset (within the combined stream, header
// included) where its encoding starts.
type combinedFrame struct {
	hash   Hash
	length uint64
	offset uint64
	isRoot bool
}

// Reader verifies and streams the plaintext of a combined encoding
// produced by Encode or Writer. Every byte it returns from Read has
// already been authenticated, transitively, up to the root hash it was
// constructed with.
//
// It works by pulling nodes off a stack, splitting internal nodes into
// their children, and only handing plaintext back to the caller once
// its own hash (and every ancestor's) has checked out.
type Reader struct {
	r          io.Reader
	root       Hash
	contentLen uint64
	started    bool
	stack      []combinedFrame
	pending    []byte
}

// NewReader returns a Reader that will verify r's combined encoding against
// root as it streams plaintext out.
func NewReader(r io.Reader, root Hash) *Reader {
	return &Reader{r: r, root: root}
}

func (d *Reader) ensureStarted() error {
	if d.started {
		return nil
	}
	var header [HeaderSize]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		return wrapIOError(err, "reading encoded header")
	}
	d.contentLen = decodeLen(header[:])
	d.stack = append(d.stack, combinedFrame{hash: d.root, length: d.contentLen, offset: HeaderSize, isRoot: true})
	d.started = true
	return nil
}

// Read implements io.Reader.
func (d *Reader) Read(p []byte) (int, error) {
	if len(d.pending) == 0 {
		if err := d.ensureStarted(); err != nil {
			return 0, err
		}
		if err := d.descendToLeaf(); err != nil {
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

// descendToLeaf pops frames, verifying each as it goes, until a leaf is
// reached and its verified plaintext is stashed in d.pending. It is a
// no-op if the stack is already empty.
func (d *Reader) descendToLeaf() error {
	for len(d.stack) > 0 {
		top := d.stack[len(d.stack)-1]
		if top.length <= ChunkSize {
			d.stack = d.stack[:len(d.stack)-1]
			chunk := make([]byte, top.length)
			if _, err := io.ReadFull(d.r, chunk); err != nil {
				return wrapNodeReadError(err, top.offset, "reading chunk")
			}
			f := notRoot()
			if top.isRoot {
				f = asRoot(d.contentLen)
			}
			if !constantTimeEqual(hashNode(chunk, f), top.hash) {
				return &IntegrityError{Offset: top.offset}
			}
			d.pending = chunk
			return nil
		}

		d.stack = d.stack[:len(d.stack)-1]
		var body [ParentSize]byte
		if _, err := io.ReadFull(d.r, body[:]); err != nil {
			return wrapNodeReadError(err, top.offset, "reading parent node")
		}
		node := parentNode(body)
		f := notRoot()
		if top.isRoot {
			f = asRoot(d.contentLen)
		}
		if !constantTimeEqual(parentHash(node.leftHash(), node.rightHash(), f), top.hash) {
			return &IntegrityError{Offset: top.offset}
		}

		leftChildLen := leftLen(top.length)
		rightChildLen := top.length - leftChildLen
		leftEncodedLen, _ := subtreeChunks(top.length)
		rightFrame := combinedFrame{
			hash:   node.rightHash(),
			length: rightChildLen,
			offset: top.offset + ParentSize + leftEncodedLen,
		}
		leftFrame := combinedFrame{
			hash:   node.leftHash(),
			length: leftChildLen,
			offset: top.offset + ParentSize,
		}
		d.stack = append(d.stack, rightFrame, leftFrame)
	}
	return nil
}

// Seek repositions the Reader so the next Read returns plaintext starting
// at offset. The underlying stream must implement io.Seeker. Every node on
// the path from the root down to offset's leaf is re-verified on each
// call — nothing is cached across calls, but a node is never trusted
// without being re-checked since the last seek.
func (d *Reader) Seek(offset uint64) error {
	seeker, ok := d.r.(io.Seeker)
	if !ok {
		return &UsageError{Msg: "seek requires a seekable input"}
	}
	if err := d.ensureStarted(); err != nil {
		return err
	}
	if offset > d.contentLen {
		offset = d.contentLen
	}
	d.pending = nil
	d.stack = d.stack[:0]
	cur := combinedFrame{hash: d.root, length: d.contentLen, offset: HeaderSize, isRoot: true}
	relOffset := offset
	for {
		if _, err := seeker.Seek(int64(cur.offset), io.SeekStart); err != nil {
			return wrapIOError(err, "seeking input")
		}
		if cur.length <= ChunkSize {
			d.stack = append(d.stack, cur)
			if err := d.descendToLeaf(); err != nil {
				return err
			}
			d.pending = d.pending[relOffset:]
			return nil
		}
		var body [ParentSize]byte
		if _, err := io.ReadFull(d.r, body[:]); err != nil {
			return wrapNodeReadError(err, cur.offset, "reading parent node")
		}
		node := parentNode(body)
		f := notRoot()
		if cur.isRoot {
			f = asRoot(d.contentLen)
		}
		if !constantTimeEqual(parentHash(node.leftHash(), node.rightHash(), f), cur.hash) {
			return &IntegrityError{Offset: cur.offset}
		}
		leftChildLen := leftLen(cur.length)
		leftEncodedLen, _ := subtreeChunks(cur.length)
		if relOffset < leftChildLen {
			d.stack = append(d.stack, combinedFrame{
				hash:   node.rightHash(),
				length: cur.length - leftChildLen,
				offset: cur.offset + ParentSize + leftEncodedLen,
			})
			cur = combinedFrame{hash: node.leftHash(), length: leftChildLen, offset: cur.offset + ParentSize}
		} else {
			relOffset -= leftChildLen
			cur = combinedFrame{
				hash:   node.rightHash(),
				length: cur.length - leftChildLen,
				offset: cur.offset + ParentSize + leftEncodedLen,
			}
		}
	}
}

// ParseAndCheckContentLen reads the 8-byte header out of a fully in-memory
// combined encoding and returns the content length, failing
// if the buffer is too short to even hold the header or the body's length
// doesn't match what a combined encoding of that header would need.
func ParseAndCheckContentLen(encoded []byte) (uint64, error) {
	if len(encoded) < HeaderSize {
		return 0, &IntegrityError{Offset: 0}
	}
	n := decodeLen(encoded[:HeaderSize])
	want := encodedSize(n)
	if uint64(len(encoded)) != want {
		return 0, &IntegrityError{Offset: HeaderSize}
	}
	return n, nil
}

// HashFromEncoded walks a combined encoding exactly as Reader does, but
// discards the plaintext and returns only the verified root hash. This is
// the operation the bao CLI's `hash --encoded` exposes: parse the header,
// walk every node down to every leaf checking hashes, and return the root
// once the whole tree has verified.
func HashFromEncoded(r io.Reader) (Hash, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Hash{}, wrapIOError(err, "reading encoded header")
	}
	contentLen := decodeLen(header[:])
	root, err := hashSubtreeFromStream(r, contentLen, true, HeaderSize)
	if err != nil {
		return Hash{}, err
	}
	return root, nil
}

// hashSubtreeFromStream reads and verifies one subtree's worth of nodes
// from r (sequentially, pre-order) and returns its hash, without knowing
// it up front — used by HashFromEncoded, which must compute the root
// rather than check it against a caller-supplied value.
func hashSubtreeFromStream(r io.Reader, length uint64, isRoot bool, offset uint64) (Hash, error) {
	f := notRoot()
	totalLen := length
	if isRoot {
		// The caller only calls this at the top level with the real
		// content length, so f's root length is always correct here.
		f = asRoot(totalLen)
	}
	if length <= ChunkSize {
		chunk := make([]byte, length)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return Hash{}, wrapNodeReadError(err, offset, "reading chunk")
		}
		return hashNode(chunk, f), nil
	}
	var body [ParentSize]byte
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return Hash{}, wrapNodeReadError(err, offset, "reading parent node")
	}
	split := leftLen(length)
	leftHash, err := hashSubtreeFromStream(r, split, false, offset+ParentSize)
	if err != nil {
		return Hash{}, err
	}
	leftEncodedLen, _ := subtreeChunks(length)
	rightHash, err := hashSubtreeFromStream(r, length-split, false, offset+ParentSize+leftEncodedLen)
	if err != nil {
		return Hash{}, err
	}
	node := parentNode(body)
	if node.leftHash() != leftHash || node.rightHash() != rightHash {
		return Hash{}, &IntegrityError{Offset: offset}
	}
	return parentHash(leftHash, rightHash, f), nil
}

// DecodeChunk fetches exactly one chunk's plaintext out of an in-memory
// combined encoding, verifying every ancestor down to the root hash but
// without decoding the chunks around it. Grounded on
// original_source/src/lib.rs's decode_chunk, reimplemented against the
// real (length-suffixed, last-node-flagged) tree shape.
func DecodeChunk(encoded []byte, root Hash, chunkIndex uint64) ([]byte, error) {
	contentLen, err := ParseAndCheckContentLen(encoded)
	if err != nil {
		return nil, err
	}
	if chunkIndex >= chunkCount(contentLen) {
		return nil, &UsageError{Msg: "chunk index out of range"}
	}
	return decodeChunkFrom(encoded[HeaderSize:], root, contentLen, chunkIndex, true)
}

func decodeChunkFrom(body []byte, expected Hash, length uint64, chunkIndex uint64, isRoot bool) ([]byte, error) {
	f := notRoot()
	if isRoot {
		f = asRoot(length)
	}
	if length <= ChunkSize {
		if !constantTimeEqual(hashNode(body, f), expected) {
			return nil, &IntegrityError{}
		}
		return body, nil
	}
	if len(body) < ParentSize {
		return nil, &IntegrityError{}
	}
	node := parentNode(body[:ParentSize])
	if !constantTimeEqual(parentHash(node.leftHash(), node.rightHash(), f), expected) {
		return nil, &IntegrityError{}
	}
	leftChildLen := leftLen(length)
	leftEncodedLen, leftChunks := subtreeChunks(length)
	rest := body[ParentSize:]
	if chunkIndex < leftChunks {
		return decodeChunkFrom(rest[:leftEncodedLen], node.leftHash(), leftChildLen, chunkIndex, false)
	}
	return decodeChunkFrom(rest[leftEncodedLen:], node.rightHash(), length-leftChildLen, chunkIndex-leftChunks, false)
}
