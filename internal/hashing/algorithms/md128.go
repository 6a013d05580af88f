/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package algorithms

import (
	"crypto/md5"
	"encoding/hex"
	"hash"
)

// md128Algorithm is the standalone 128-bit MD-family digest the spec
// calls "md128". It is a distinct algorithm from the chunked content
// hash's internal chunk digest (ed2k.go, MD4-family): the two share a
// digest width but not a function.
type md128Algorithm struct{}

func init() { register(md128Algorithm{}) }

func (md128Algorithm) ID() string          { return "md128" }
func (md128Algorithm) DisplayName() string { return "MD128" }
func (md128Algorithm) MemoryOverhead() int { return 128 }
func (md128Algorithm) Variants() []string  { return nil }

func (a md128Algorithm) CreateHasher() StreamingHasher {
	return &md128Hasher{h: md5.New()}
}

func (a md128Algorithm) HashBytes(data []byte) string {
	h := a.CreateHasher()
	h.Write(data)
	return h.Finalize()
}

type md128Hasher struct {
	h hash.Hash
}

func (h *md128Hasher) Write(p []byte) (int, error) { return h.h.Write(p) }

func (h *md128Hasher) Finalize() string {
	return hex.EncodeToString(h.h.Sum(nil))
}
