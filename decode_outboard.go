package bao

import "io"

// outboardFrame is a traversal-stack entry for OutboardReader: parent nodes
// live in the tree stream at treeOffset, while the leaf (if this frame
// turns out to be one) lives in the content stream at contentOffset.
type outboardFrame struct {
	hash         Hash
	length       uint64
	treeOffset   uint64
	contentOffset uint64
	isRoot       bool
}

// OutboardReader verifies and streams plaintext the same way Reader does,
// except parent nodes are read from a separate tree stream while chunk
// bytes come from an unmodified content stream. Both streams advance
// monotonically as decoding proceeds.
type OutboardReader struct {
	tree       io.Reader
	content    io.Reader
	root       Hash
	contentLen uint64
	started    bool
	stack      []outboardFrame
	pending    []byte
}

// NewOutboardReader returns an OutboardReader that verifies tree (the
// outboard encoding) against root while reading plaintext out of content.
func NewOutboardReader(content io.Reader, tree io.Reader, root Hash) *OutboardReader {
	return &OutboardReader{content: content, tree: tree, root: root}
}

func (d *OutboardReader) ensureStarted() error {
	if d.started {
		return nil
	}
	var header [HeaderSize]byte
	if _, err := io.ReadFull(d.tree, header[:]); err != nil {
		return wrapIOError(err, "reading outboard header")
	}
	d.contentLen = decodeLen(header[:])
	d.stack = append(d.stack, outboardFrame{hash: d.root, length: d.contentLen, treeOffset: HeaderSize, isRoot: true})
	d.started = true
	return nil
}

// Read implements io.Reader.
func (d *OutboardReader) Read(p []byte) (int, error) {
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

func (d *OutboardReader) descendToLeaf() error {
	for len(d.stack) > 0 {
		top := d.stack[len(d.stack)-1]
		if top.length <= ChunkSize {
			d.stack = d.stack[:len(d.stack)-1]
			chunk := make([]byte, top.length)
			if _, err := io.ReadFull(d.content, chunk); err != nil {
				return wrapNodeReadError(err, top.contentOffset, "reading chunk")
			}
			f := notRoot()
			if top.isRoot {
				f = asRoot(d.contentLen)
			}
			if !constantTimeEqual(hashNode(chunk, f), top.hash) {
				return &IntegrityError{Offset: top.contentOffset}
			}
			d.pending = chunk
			return nil
		}

		d.stack = d.stack[:len(d.stack)-1]
		var body [ParentSize]byte
		if _, err := io.ReadFull(d.tree, body[:]); err != nil {
			return wrapNodeReadError(err, top.treeOffset, "reading parent node")
		}
		node := parentNode(body)
		f := notRoot()
		if top.isRoot {
			f = asRoot(d.contentLen)
		}
		if !constantTimeEqual(parentHash(node.leftHash(), node.rightHash(), f), top.hash) {
			return &IntegrityError{Offset: top.treeOffset}
		}

		leftChildLen := leftLen(top.length)
		rightFrame := outboardFrame{
			hash:          node.rightHash(),
			length:        top.length - leftChildLen,
			treeOffset:    top.treeOffset + ParentSize + numParentNodes(leftChildLen)*ParentSize,
			contentOffset: top.contentOffset + leftChildLen,
		}
		leftFrame := outboardFrame{
			hash:          node.leftHash(),
			length:        leftChildLen,
			treeOffset:    top.treeOffset + ParentSize,
			contentOffset: top.contentOffset,
		}
		d.stack = append(d.stack, rightFrame, leftFrame)
	}
	return nil
}

// Seek repositions the reader so the next Read returns plaintext starting
// at offset. Both the tree and content streams must implement io.Seeker.
func (d *OutboardReader) Seek(offset uint64) error {
	treeSeeker, ok := d.tree.(io.Seeker)
	if !ok {
		return &UsageError{Msg: "seek requires a seekable tree stream"}
	}
	contentSeeker, ok := d.content.(io.Seeker)
	if !ok {
		return &UsageError{Msg: "seek requires a seekable content stream"}
	}
	if err := d.ensureStarted(); err != nil {
		return err
	}
	if offset > d.contentLen {
		offset = d.contentLen
	}
	d.pending = nil
	d.stack = d.stack[:0]
	cur := outboardFrame{hash: d.root, length: d.contentLen, treeOffset: HeaderSize, contentOffset: 0, isRoot: true}
	relOffset := offset
	for {
		if cur.length <= ChunkSize {
			if _, err := contentSeeker.Seek(int64(cur.contentOffset), io.SeekStart); err != nil {
				return wrapIOError(err, "seeking content stream")
			}
			d.stack = append(d.stack, cur)
			if err := d.descendToLeaf(); err != nil {
				return err
			}
			d.pending = d.pending[relOffset:]
			return nil
		}
		if _, err := treeSeeker.Seek(int64(cur.treeOffset), io.SeekStart); err != nil {
			return wrapIOError(err, "seeking tree stream")
		}
		var body [ParentSize]byte
		if _, err := io.ReadFull(d.tree, body[:]); err != nil {
			return wrapNodeReadError(err, cur.treeOffset, "reading parent node")
		}
		node := parentNode(body)
		f := notRoot()
		if cur.isRoot {
			f = asRoot(d.contentLen)
		}
		if !constantTimeEqual(parentHash(node.leftHash(), node.rightHash(), f), cur.hash) {
			return &IntegrityError{Offset: cur.treeOffset}
		}
		leftChildLen := leftLen(cur.length)
		if relOffset < leftChildLen {
			d.stack = append(d.stack, outboardFrame{
				hash:          node.rightHash(),
				length:        cur.length - leftChildLen,
				treeOffset:    cur.treeOffset + ParentSize + numParentNodes(leftChildLen)*ParentSize,
				contentOffset: cur.contentOffset + leftChildLen,
			})
			cur = outboardFrame{
				hash:          node.leftHash(),
				length:        leftChildLen,
				treeOffset:    cur.treeOffset + ParentSize,
				contentOffset: cur.contentOffset,
			}
		} else {
			relOffset -= leftChildLen
			cur = outboardFrame{
				hash:          node.rightHash(),
				length:        cur.length - leftChildLen,
				treeOffset:    cur.treeOffset + ParentSize + numParentNodes(leftChildLen)*ParentSize,
				contentOffset: cur.contentOffset + leftChildLen,
			}
		}
	}
}
