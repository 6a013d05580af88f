/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package hashing exposes the identification hash suite over the
// individual algorithm implementations in its algorithms subpackage: the
// chunked content-addressing digest, CRC-32, the MD5-based digest, SHA-1,
// and Tiger-Tree. Every algorithm provides both a one-shot and a streaming
// shape; streaming state is bounded independent of input length, which is
// what lets the pipeline (package pipeline) hash arbitrarily large files
// with fixed memory overhead.
package hashing

import (
	"fmt"
	"time"

	"github.com/anidbtools/anidbcore/internal/coreerr"
	"github.com/anidbtools/anidbcore/internal/hashing/algorithms"
)

// Algorithm is the tagged set of hash algorithms the identification
// pipeline can run, each mapped to an entry in the algorithms registry.
type Algorithm string

const (
	ChunkedContentHash Algorithm = "chunked_content_hash"
	Crc32              Algorithm = "crc32"
	Md128              Algorithm = "md128"
	Sha160             Algorithm = "sha160"
	TigerTree          Algorithm = "tiger_tree"
)

// All lists every algorithm the default identification run computes.
func All() []Algorithm {
	return []Algorithm{ChunkedContentHash, Crc32, Md128, Sha160, TigerTree}
}

// Digest pairs an algorithm with the digest it produced, in the
// algorithm's canonical textual encoding: lower-case hex for the first
// four, lower-case unpadded base32 for Tiger-Tree.
type Digest struct {
	Algorithm Algorithm
	Digest    string
}

// Result additionally reports how much input the digest covers and how
// long it took to compute, for progress reporting and diagnostics.
type Result struct {
	Algorithm  Algorithm
	Digest     string
	InputBytes int64
	Elapsed    time.Duration
}

// Hasher is a streaming handle for one algorithm; repeated Write calls are
// accepted in any chunking and Finalize is called exactly once.
type Hasher struct {
	algorithm Algorithm
	inner     algorithms.StreamingHasher
	written   int64
	start     time.Time
	started   bool
}

// NewHasher returns a streaming Hasher for algo, or a validation error if
// algo is not registered.
func NewHasher(algo Algorithm) (*Hasher, error) {
	impl, ok := lookup(algo)
	if !ok {
		return nil, coreerr.NewValidationError("algorithm", string(algo), coreerr.ErrUnknownAlgorithm)
	}
	return &Hasher{algorithm: algo, inner: impl.CreateHasher()}, nil
}

// Write feeds p into the underlying algorithm. It never returns an error:
// every algorithm here accumulates in memory or incrementally with no
// fallible I/O, matching the streaming contract the pipeline depends on.
func (h *Hasher) Write(p []byte) (int, error) {
	if !h.started {
		h.start = time.Now()
		h.started = true
	}
	n, err := h.inner.Write(p)
	h.written += int64(n)
	return n, err
}

// Finalize consumes the accumulated state and returns the completed
// Result. Calling it more than once is not supported.
func (h *Hasher) Finalize() Result {
	digest := h.inner.Finalize()
	var elapsed time.Duration
	if h.started {
		elapsed = time.Since(h.start)
	}
	return Result{
		Algorithm:  h.algorithm,
		Digest:     digest,
		InputBytes: h.written,
		Elapsed:    elapsed,
	}
}

// HashBytes computes the one-shot digest of data using algo.
func HashBytes(algo Algorithm, data []byte) (Digest, error) {
	impl, ok := lookup(algo)
	if !ok {
		return Digest{}, coreerr.NewValidationError("algorithm", string(algo), coreerr.ErrUnknownAlgorithm)
	}
	return Digest{Algorithm: algo, Digest: impl.HashBytes(data)}, nil
}

// EncodingWidth returns the canonical digest length in characters for
// algo, used to validate digests read back from the local store.
func EncodingWidth(algo Algorithm) (int, bool) {
	switch algo {
	case Crc32:
		return 8, true
	case Md128:
		return 32, true
	case Sha160:
		return 40, true
	case TigerTree:
		return 39, true
	case ChunkedContentHash:
		return 32, true
	}
	return 0, false
}

func lookup(algo Algorithm) (algorithms.Algorithm, bool) {
	return algorithms.Lookup(string(algo))
}

func (a Algorithm) String() string { return string(a) }

// validate that every constant above actually resolves against the
// algorithms registry; a mismatch here is a wiring bug, not user input.
func init() {
	for _, a := range All() {
		if _, ok := algorithms.Lookup(string(a)); !ok {
			panic(fmt.Sprintf("hashing: algorithm %q has no registered implementation", a))
		}
	}
}
