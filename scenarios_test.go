package bao

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// End-to-end cases: an empty input, a tiny input, an exact-multiple-of-chunk
// input, a just-over-two-chunks input, a slice drawn from it, and tamper
// detection on a flipped byte. Low-level primitive tests elsewhere in this
// package use bare t.Fatalf; these end-to-end cases use testify for the
// richer assertion messages, since several properties are checked per case.

func TestScenarioEmptyInput(t *testing.T) {
	encoded, root := Encode(nil)
	require.Equal(t, 8, len(encoded), "encoded size of empty input")
	require.Equal(t, make([]byte, 8), encoded, "header of empty input is all zero")
	require.Equal(t, hashNode(nil, asRoot(0)), root, "root of empty input")

	var out bytes.Buffer
	require.NoError(t, Decode(encoded, &out, root))
	require.Empty(t, out.Bytes())
}

func TestScenarioTinyInput(t *testing.T) {
	data := []byte("abc")
	encoded, root := Encode(data)
	require.Equal(t, 11, len(encoded))
	require.Equal(t, byte(3), encoded[0], "length header low byte")
	require.Equal(t, data, encoded[HeaderSize:], "body is the raw bytes verbatim")

	var out bytes.Buffer
	require.NoError(t, Decode(encoded, &out, root))
	require.Equal(t, data, out.Bytes())
}

func TestScenarioExactlyTwoChunks(t *testing.T) {
	data := make([]byte, 2*ChunkSize)
	encoded, root := Encode(data)
	require.Equal(t, 8+ParentSize+2*ChunkSize, len(encoded))

	leftHash := hashNode(data[:ChunkSize], notRoot())
	rightHash := hashNode(data[ChunkSize:], notRoot())
	require.Equal(t, leftHash, rightHash, "both chunks are equal, so their hashes must match")
	require.Equal(t, parentHash(leftHash, rightHash, asRoot(uint64(len(data)))), root)

	var out bytes.Buffer
	require.NoError(t, Decode(encoded, &out, root))
	require.Equal(t, data, out.Bytes())
}

func TestScenarioJustOverTwoChunks(t *testing.T) {
	data := make([]byte, 2*ChunkSize+1)
	encoded, root := Encode(data)
	require.Equal(t, HeaderSize+2*ParentSize+len(data), len(encoded))

	var out bytes.Buffer
	require.NoError(t, Decode(encoded, &out, root))
	require.Equal(t, data, out.Bytes())
}

func TestScenarioSliceFromJustOverTwoChunks(t *testing.T) {
	data := make([]byte, 2*ChunkSize+1)
	encoded, root := Encode(data)

	slice, err := NewSliceExtractor(bytes.NewReader(encoded), ChunkSize, 1)
	require.NoError(t, err)
	sliceBytes, err := io.ReadAll(slice)
	require.NoError(t, err)

	r := NewSliceReader(bytes.NewReader(sliceBytes), root, ChunkSize, 1)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, data[ChunkSize:ChunkSize+1], got)
}

func TestScenarioFlippedByteFailsOnlyTheAffectedChunk(t *testing.T) {
	data := make([]byte, 2*ChunkSize+1)
	encoded, root := Encode(data)
	encoded[len(encoded)-1] ^= 0xFF

	_, err0 := DecodeChunk(encoded, root, 0)
	require.NoError(t, err0, "chunk 0 is untouched and must still verify")

	_, err1 := DecodeChunk(encoded, root, 1)
	require.NoError(t, err1, "chunk 1 is untouched and must still verify")

	_, err2 := DecodeChunk(encoded, root, 2)
	require.Error(t, err2, "chunk 2 contains the flipped byte")
	require.IsType(t, &IntegrityError{}, err2)
}
