// Package bao implements a verified streaming tree hash and its associated
// encoded-stream format.
//
// Content of up to 2^64-1 bytes is split into 4096-byte chunks and folded
// into a binary tree of BLAKE2b-256 hashes using a carry-propagation merge
// rule (see HashWriter). The resulting root hash authenticates the full content;
// the encoded form produced by Encode/NewWriter interleaves the tree's
// parent nodes with the plaintext chunks so that any contiguous byte range
// can be streamed out and verified incrementally, without trusting the
// storage layer and without reading bytes outside the requested range
// beyond the small tree overhead.
//
// The package does not provide confidentiality, and it inherits whatever
// collision resistance properties BLAKE2b itself has; it only adds
// integrity verification on top of a keyed cryptographic hash.
package bao
