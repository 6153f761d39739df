package bao

import (
	"bytes"
	"io"
	"testing"
)

func TestOutboardReaderSeek(t *testing.T) {
	data := testData(12*ChunkSize + 7)
	outboard, root := EncodeOutboard(data)

	r := NewOutboardReader(bytes.NewReader(data), bytes.NewReader(outboard), root)
	offset := uint64(6*ChunkSize + 50)
	if err := r.Seek(offset); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll after seek: %v", err)
	}
	if !bytes.Equal(got, data[offset:]) {
		t.Error("content after Seek doesn't match expected suffix")
	}
}

func TestOutboardReaderDetectsTamperedTree(t *testing.T) {
	data := testData(3*ChunkSize + 5)
	outboard, root := EncodeOutboard(data)
	outboard[HeaderSize] ^= 0xFF

	r := NewOutboardReader(bytes.NewReader(data), bytes.NewReader(outboard), root)
	_, err := io.ReadAll(r)
	if _, ok := err.(*IntegrityError); !ok {
		t.Fatalf("expected *IntegrityError, got %v (type %T)", err, err)
	}
}

func TestOutboardReaderDetectsTamperedContent(t *testing.T) {
	data := testData(3*ChunkSize + 5)
	outboard, root := EncodeOutboard(data)
	tamperedData := append([]byte(nil), data...)
	tamperedData[0] ^= 0xFF

	r := NewOutboardReader(bytes.NewReader(tamperedData), bytes.NewReader(outboard), root)
	_, err := io.ReadAll(r)
	if _, ok := err.(*IntegrityError); !ok {
		t.Fatalf("expected *IntegrityError, got %v (type %T)", err, err)
	}
}
