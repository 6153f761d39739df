package bao

import (
	"bytes"
	"testing"
)

func TestHashWriterMatchesSumForVariousSizes(t *testing.T) {
	sizes := []int{0, 1, 10, ChunkSize - 1, ChunkSize, ChunkSize + 1, 3 * ChunkSize, 3*ChunkSize + 17, 10 * ChunkSize}
	for _, n := range sizes {
		data := bytes.Repeat([]byte{0xAB}, n)
		want := Sum(data)

		w := NewHashWriter()
		if _, err := w.Write(data); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got := w.Finish()
		if got != want {
			t.Errorf("size %d: HashWriter = %x, Sum = %x", n, got, want)
		}
	}
}

func TestHashWriterAcceptsArbitraryWriteSizes(t *testing.T) {
	data := make([]byte, 10*ChunkSize+123)
	for i := range data {
		data[i] = byte(i)
	}
	want := Sum(data)

	w := NewHashWriter()
	for i := 0; i < len(data); {
		step := 37
		if i+step > len(data) {
			step = len(data) - i
		}
		if _, err := w.Write(data[i : i+step]); err != nil {
			t.Fatalf("Write: %v", err)
		}
		i += step
	}
	if got := w.Finish(); got != want {
		t.Errorf("chunked writes = %x, want %x", got, want)
	}
}

func TestSumParallelMatchesSerialAboveThreshold(t *testing.T) {
	data := bytes.Repeat([]byte{0x5A}, maxSingleThreaded+1)
	serial := hashRecurse(data, asRoot(uint64(len(data))))
	parallel := hashRecurseParallel(data, asRoot(uint64(len(data))))
	if serial != parallel {
		t.Errorf("serial and parallel hashing disagree: %x != %x", serial, parallel)
	}
	if got := Sum(data); got != serial {
		t.Errorf("Sum(data) = %x, want %x", got, serial)
	}
}

func TestNeedsMergeTracksCarryPropagation(t *testing.T) {
	s := newState()
	// Pushing one full chunk's worth of subtree shouldn't need a merge yet.
	s.pushSubtree(Hash{1}, ChunkSize)
	if s.needsMerge() {
		t.Error("a single subtree should never need a merge")
	}
	// A second chunk of the same size produces a carry (2 subtrees at the
	// same "level", just like adding 1+1 in binary produces a carry out).
	s.totalLen = ChunkSize
	s.subtrees = append(s.subtrees, Hash{2})
	s.totalLen += ChunkSize
	if !s.needsMerge() {
		t.Error("two equal-sized subtrees should need a merge")
	}
}
