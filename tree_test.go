package bao

import "testing"

func TestLeftLenBoundaries(t *testing.T) {
	s := uint64(ChunkSize)
	cases := []struct {
		contentLen uint64
		want       uint64
	}{
		{s + 1, s},
		{2*s - 1, s},
		{2 * s, s},
		{2*s + 1, 2 * s},
	}
	for _, c := range cases {
		if got := leftLen(c.contentLen); got != c.want {
			t.Errorf("leftLen(%d) = %d, want %d", c.contentLen, got, c.want)
		}
	}
}

func TestChunkCount(t *testing.T) {
	cases := []struct {
		contentLen uint64
		want       uint64
	}{
		{0, 1},
		{1, 1},
		{ChunkSize, 1},
		{ChunkSize + 1, 2},
		{2 * ChunkSize, 2},
		{2*ChunkSize + 1, 3},
	}
	for _, c := range cases {
		if got := chunkCount(c.contentLen); got != c.want {
			t.Errorf("chunkCount(%d) = %d, want %d", c.contentLen, got, c.want)
		}
	}
}

func TestEncodedSizeMatchesChunkAndParentCounts(t *testing.T) {
	for _, n := range []uint64{0, 1, ChunkSize, ChunkSize + 1, 2 * ChunkSize, 8193, 65537} {
		parents := numParentNodes(n)
		want := HeaderSize + parents*ParentSize + n
		if got := encodedSize(n); got != want {
			t.Errorf("encodedSize(%d) = %d, want %d", n, got, want)
		}
		if got := outboardSize(n); got != HeaderSize+parents*ParentSize {
			t.Errorf("outboardSize(%d) = %d, want %d", n, got, HeaderSize+parents*ParentSize)
		}
	}
}

func TestSubtreeChunksSumsToWhole(t *testing.T) {
	for _, n := range []uint64{ChunkSize + 1, 2 * ChunkSize, 8193, 65537} {
		leftEncodedLen, leftChunks := subtreeChunks(n)
		split := leftLen(n)
		rightLen := n - split
		rightEncodedLen := encodedSize(rightLen) - HeaderSize
		if leftEncodedLen+rightEncodedLen != encodedSize(n)-HeaderSize-ParentSize {
			t.Errorf("subtreeChunks(%d): left+right encoded lens don't add up", n)
		}
		if leftChunks+chunkCount(rightLen) != chunkCount(n) {
			t.Errorf("subtreeChunks(%d): left+right chunk counts don't add up", n)
		}
	}
}
