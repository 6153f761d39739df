package bao

import (
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// IntegrityError reports that a node's hash did not match what the tree
// expected. It is fatal: decoders must abort immediately and never emit
// bytes past the point of a mismatch.
type IntegrityError struct {
	// Offset locates the node that failed to verify: its byte offset within
	// the combined stream (header included) for Reader and HashFromEncoded,
	// within the tree or content stream for OutboardReader, and within the
	// plaintext content for SliceReader. DecodeChunk leaves it zero.
	Offset uint64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("bao: hash mismatch verifying node at offset %d", e.Offset)
}

// UsageError reports a misuse of the API: seeking where the underlying
// stream doesn't support it, a slice request beyond what the format allows,
// or a malformed hash at a boundary like the CLI.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return "bao: " + e.Msg }

// ErrSeekRequired is the UsageError returned when an encoder is asked to
// finish writing to a sink that doesn't implement io.Seeker, and the
// content wasn't available up front to use the mapped (pre-sized) strategy
// instead.
var ErrSeekRequired = &UsageError{Msg: "output must be seekable to encode without a pre-sized buffer"}

// wrapIOError lets callers propagate an underlying I/O failure unchanged
// while still attaching position context; it is never reinterpreted as
// an integrity failure.
func wrapIOError(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, context)
}

// constantTimeEqual compares two hashes without leaking, via timing, which
// byte (if any) first differed. Every hash comparison in the decoder
// family goes through this.
func constantTimeEqual(a, b Hash) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// wrapNodeReadError classifies a failed read of a chunk or parent node
// body. A storage layer that truncates an encoding mid-node looks
// exactly like one that returns a short read for any other reason, so
// an EOF here is reported as an IntegrityError at offset rather than an
// opaque I/O failure: a caller checking for IntegrityError specifically
// must not be foolable by truncation. Any other read failure still goes
// through wrapIOError unchanged. This does not apply to a stream's very
// first header read, which has no prior authenticated bytes to dispute.
func wrapNodeReadError(err error, offset uint64, context string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &IntegrityError{Offset: offset}
	}
	return wrapIOError(err, context)
}
