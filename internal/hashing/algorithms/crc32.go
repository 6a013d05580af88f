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
	"hash/crc32"
)

type crc32Algorithm struct{}

func init() { register(crc32Algorithm{}) }

func (crc32Algorithm) ID() string          { return "crc32" }
func (crc32Algorithm) DisplayName() string { return "CRC-32" }
func (crc32Algorithm) MemoryOverhead() int { return 64 }
func (crc32Algorithm) Variants() []string  { return nil }

func (a crc32Algorithm) CreateHasher() StreamingHasher {
	return &crc32Hasher{h: crc32.NewIEEE()}
}

func (a crc32Algorithm) HashBytes(data []byte) string {
	h := a.CreateHasher()
	h.Write(data)
	return h.Finalize()
}

type crc32Hasher struct {
	h hash.Hash32
}

func (h *crc32Hasher) Write(p []byte) (int, error) { return h.h.Write(p) }

func (h *crc32Hasher) Finalize() string {
	return hex.EncodeToString(h.h.Sum(nil))
}
