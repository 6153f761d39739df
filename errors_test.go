package bao

import (
	"errors"
	"testing"
)

func TestConstantTimeEqual(t *testing.T) {
	var a, b Hash
	a[0], a[5] = 1, 2
	b = a
	if !constantTimeEqual(a, b) {
		t.Error("identical hashes should compare equal")
	}
	b[5] = 3
	if constantTimeEqual(a, b) {
		t.Error("differing hashes should not compare equal")
	}
}

func TestWrapIOErrorPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	wrapped := wrapIOError(cause, "reading thing")
	if wrapped == nil {
		t.Fatal("expected a non-nil wrapped error")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error should unwrap to the original cause")
	}
	if wrapIOError(nil, "context") != nil {
		t.Error("wrapping a nil error should return nil")
	}
}

func TestIntegrityErrorMessage(t *testing.T) {
	err := &IntegrityError{Offset: 42}
	if err.Error() == "" {
		t.Error("IntegrityError.Error() should not be empty")
	}
}

func TestUsageErrorMessage(t *testing.T) {
	err := &UsageError{Msg: "seek requires a seekable input"}
	if err.Error() == "" {
		t.Error("UsageError.Error() should not be empty")
	}
}
