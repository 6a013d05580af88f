/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package algorithms

import (
	"crypto/sha1"
	"encoding/hex"
	"hash"
)

type sha160Algorithm struct{}

func init() { register(sha160Algorithm{}) }

func (sha160Algorithm) ID() string          { return "sha160" }
func (sha160Algorithm) DisplayName() string { return "SHA-160" }
func (sha160Algorithm) MemoryOverhead() int { return 96 }
func (sha160Algorithm) Variants() []string  { return nil }

func (a sha160Algorithm) CreateHasher() StreamingHasher {
	return &sha160Hasher{h: sha1.New()}
}

func (a sha160Algorithm) HashBytes(data []byte) string {
	h := a.CreateHasher()
	h.Write(data)
	return h.Finalize()
}

type sha160Hasher struct {
	h hash.Hash
}

func (h *sha160Hasher) Write(p []byte) (int, error) { return h.h.Write(p) }

func (h *sha160Hasher) Finalize() string {
	return hex.EncodeToString(h.h.Sum(nil))
}
