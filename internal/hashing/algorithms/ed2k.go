/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package algorithms

import (
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/md4"
)

// newChunkDigestHasher and chunkDigestEmpty provide the MD4-family digest
// the chunked content hash uses internally for each chunk and for its
// digest-of-digests pass. This is a different function from the
// standalone "md128" algorithm (md128.go, MD5): the two happen to share a
// digest width.
func newChunkDigestHasher() hash.Hash {
	return md4.New()
}

func chunkDigestEmpty() []byte {
	return md4.New().Sum(nil)
}

// ChunkSize is the fixed internal chunk size of the chunked content hash,
// independent of any caller's I/O buffer size.
const ChunkSize = 9_728_000

// Variant selects between the two historical behaviors for a file whose
// size is an exact multiple of ChunkSize larger than one chunk. Both
// variants return the lone chunk digest directly for an input of exactly
// ChunkSize bytes; for larger exact multiples, Red appends the
// empty-digest before the final digest-of-digests pass and Blue does not.
// Red is the default used by identification against the metadata service.
type Variant int

const (
	Red Variant = iota
	Blue
)

type ed2kAlgorithm struct {
	variant Variant
}

func init() {
	register(ed2kAlgorithm{variant: Red})
}

func (a ed2kAlgorithm) ID() string          { return "chunked_content_hash" }
func (a ed2kAlgorithm) DisplayName() string { return "Chunked Content Hash" }
func (a ed2kAlgorithm) MemoryOverhead() int { return 1024 }
func (a ed2kAlgorithm) Variants() []string  { return []string{"red", "blue"} }

func (a ed2kAlgorithm) CreateHasher() StreamingHasher {
	return NewChunkedContentHasher(a.variant)
}

func (a ed2kAlgorithm) HashBytes(data []byte) string {
	h := a.CreateHasher()
	h.Write(data)
	return h.Finalize()
}

// WithVariant returns the chunked content hash Algorithm configured for
// the given variant, for callers that need Blue instead of the registry's
// default Red.
func WithVariant(v Variant) Algorithm {
	return ed2kAlgorithm{variant: v}
}

// chunkedContentHasher accumulates up to ChunkSize bytes at a time, emitting
// an MD4-family digest per full chunk; Finalize applies the special cases
// described in the chunked-hash invariant (empty input, under-chunk,
// exact-one-chunk, and multi-chunk-with-trailing-empty-digest).
type chunkedContentHasher struct {
	variant Variant

	accumulator    []byte
	chunkDigests   []byte // concatenation of each completed chunk's digest
	bytesProcessed int64
}

// NewChunkedContentHasher returns a StreamingHasher for the chunked
// content hash using the given variant.
func NewChunkedContentHasher(v Variant) StreamingHasher {
	return &chunkedContentHasher{
		variant:     v,
		accumulator: make([]byte, 0, ChunkSize),
	}
}

func (h *chunkedContentHasher) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		space := ChunkSize - len(h.accumulator)
		toCopy := len(p)
		if toCopy > space {
			toCopy = space
		}
		h.accumulator = append(h.accumulator, p[:toCopy]...)
		p = p[toCopy:]
		if len(h.accumulator) == ChunkSize {
			h.emitChunk()
		}
	}
	h.bytesProcessed += int64(total)
	return total, nil
}

func (h *chunkedContentHasher) emitChunk() {
	hasher := newChunkDigestHasher()
	hasher.Write(h.accumulator)
	h.chunkDigests = hasher.Sum(h.chunkDigests)
	h.accumulator = h.accumulator[:0]
}

func (h *chunkedContentHasher) Finalize() string {
	if h.bytesProcessed == 0 {
		return hex.EncodeToString(chunkDigestEmpty())
	}

	if h.bytesProcessed < ChunkSize {
		hasher := newChunkDigestHasher()
		hasher.Write(h.accumulator)
		return hex.EncodeToString(hasher.Sum(nil))
	}

	// bytesProcessed >= ChunkSize: emit a trailing partial chunk if any.
	if len(h.accumulator) > 0 {
		h.emitChunk()
	}

	// Exactly one chunk: return its digest directly, never re-hashed.
	if h.bytesProcessed == ChunkSize && len(h.chunkDigests) == 16 {
		return hex.EncodeToString(h.chunkDigests)
	}

	if h.variant == Red && h.bytesProcessed%ChunkSize == 0 {
		h.chunkDigests = append(h.chunkDigests, chunkDigestEmpty()...)
	}

	finalHasher := newChunkDigestHasher()
	finalHasher.Write(h.chunkDigests)
	return hex.EncodeToString(finalHasher.Sum(nil))
}
