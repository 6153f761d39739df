package bao

import (
	"bytes"
	"io"
	"testing"
)

func TestSliceExtractAndDecodeRoundTrip(t *testing.T) {
	data := testData(8193)
	encoded, root := Encode(data)

	cases := []struct{ start, length uint64 }{
		{0, 1},
		{0, uint64(len(data))},
		{4096, 1},
		{4096, 4097},
		{8000, 1000}, // runs past end of content, should clamp
		{uint64(len(data)), 0},
	}
	for _, c := range cases {
		slice, err := NewSliceExtractor(bytes.NewReader(encoded), c.start, c.length)
		if err != nil {
			t.Fatalf("start=%d len=%d: NewSliceExtractor: %v", c.start, c.length, err)
		}
		sliceBytes, err := io.ReadAll(slice)
		if err != nil {
			t.Fatalf("start=%d len=%d: reading slice: %v", c.start, c.length, err)
		}

		r := NewSliceReader(bytes.NewReader(sliceBytes), root, c.start, c.length)
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("start=%d len=%d: SliceReader: %v", c.start, c.length, err)
		}

		clampedStart, clampedLen := clampRange(uint64(len(data)), c.start, c.length)
		want := data[clampedStart : clampedStart+clampedLen]
		if !bytes.Equal(got, want) {
			t.Errorf("start=%d len=%d: got %d bytes, want %d bytes", c.start, c.length, len(got), len(want))
		}
	}
}

func TestSliceReaderDetectsTamper(t *testing.T) {
	data := testData(3*ChunkSize + 10)
	encoded, root := Encode(data)

	slice, err := NewSliceExtractor(bytes.NewReader(encoded), ChunkSize, 10)
	if err != nil {
		t.Fatalf("NewSliceExtractor: %v", err)
	}
	sliceBytes, err := io.ReadAll(slice)
	if err != nil {
		t.Fatalf("reading slice: %v", err)
	}
	sliceBytes[len(sliceBytes)-1] ^= 0xFF

	r := NewSliceReader(bytes.NewReader(sliceBytes), root, ChunkSize, 10)
	_, err = io.ReadAll(r)
	if _, ok := err.(*IntegrityError); !ok {
		t.Fatalf("expected *IntegrityError, got %v (type %T)", err, err)
	}
}

func TestOutboardSliceExtractAndDecode(t *testing.T) {
	data := testData(9000)
	outboard, root := EncodeOutboard(data)

	slice, err := NewOutboardSliceExtractor(bytes.NewReader(data), bytes.NewReader(outboard), 100, 200)
	if err != nil {
		t.Fatalf("NewOutboardSliceExtractor: %v", err)
	}
	sliceBytes, err := io.ReadAll(slice)
	if err != nil {
		t.Fatalf("reading slice: %v", err)
	}

	r := NewSliceReader(bytes.NewReader(sliceBytes), root, 100, 200)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("SliceReader: %v", err)
	}
	if !bytes.Equal(got, data[100:300]) {
		t.Error("outboard slice round trip mismatch")
	}
}
