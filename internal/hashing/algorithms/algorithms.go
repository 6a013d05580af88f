/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package algorithms implements the individual streaming hash algorithms:
// CRC-32, the MD5-based 128-bit digest, SHA-1, the chunked
// content-addressing digest, and Tiger-Tree. Each is modeled as a value
// implementing Algorithm, following the "small capability set, registry
// keyed by variant, no deep inheritance" guidance applied elsewhere to
// size-classed buffer pools and protocol command dispatch.
package algorithms

// StreamingHasher accepts repeated Write calls and produces the final
// digest on Finalize. Implementations must accept any split of the input
// across Write calls and produce the same digest either way.
type StreamingHasher interface {
	Write(p []byte) (n int, err error)
	Finalize() string
}

// Algorithm is the small capability set every hash implementation
// provides: identity, a streaming hasher factory, a one-shot convenience,
// and sizing hints used by the memory manager and progress reporting.
type Algorithm interface {
	ID() string
	DisplayName() string
	CreateHasher() StreamingHasher
	HashBytes(data []byte) string
	MemoryOverhead() int
	Variants() []string
}

// registry maps algorithm id to its Algorithm value. Populated by each
// algorithm's init(); looked up by name from the hashing package's
// Algorithm tag, not duplicated in a switch statement.
var registry = map[string]Algorithm{}

func register(a Algorithm) {
	registry[a.ID()] = a
}

// Lookup returns the registered Algorithm for id, or ok=false.
func Lookup(id string) (a Algorithm, ok bool) {
	a, ok = registry[id]
	return
}
