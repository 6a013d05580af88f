/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package algorithms

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCrc32KnownVectors(t *testing.T) {
	a, ok := Lookup("crc32")
	require.True(t, ok)
	require.Equal(t, "00000000", a.HashBytes(nil))
	require.Equal(t, "e8b7be43", a.HashBytes([]byte("a")))
}

func TestMd128KnownVectors(t *testing.T) {
	a, ok := Lookup("md128")
	require.True(t, ok)
	require.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", a.HashBytes(nil))
	require.Equal(t, "0cc175b9c0f1b6a831c399e269772661", a.HashBytes([]byte("a")))
}

func TestSha160Empty(t *testing.T) {
	a, ok := Lookup("sha160")
	require.True(t, ok)
	require.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", a.HashBytes(nil))
}

func TestStreamingMatchesOneShot(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 50_000)
	for _, id := range []string{"crc32", "md128", "sha160"} {
		a, ok := Lookup(id)
		require.True(t, ok, id)

		oneShot := a.HashBytes(data)

		h := a.CreateHasher()
		h.Write(data[:12345])
		h.Write(data[12345:])
		require.Equal(t, oneShot, h.Finalize(), id)
	}
}

func TestChunkedContentHashEmpty(t *testing.T) {
	a, ok := Lookup("chunked_content_hash")
	require.True(t, ok)
	require.Equal(t, "31d6cfe0d16ae931b73c59d7e0c089c0", a.HashBytes(nil))
}

func TestChunkedContentHashUnderChunk(t *testing.T) {
	h := NewChunkedContentHasher(Red)
	h.Write([]byte("a"))
	require.Equal(t, "bde52cb31de33e46245e05fbdbd6fb24", h.Finalize())
}

func TestChunkedContentHashExactlyOneChunk(t *testing.T) {
	data := bytes.Repeat([]byte{0x00}, ChunkSize)

	chunkHasher := newChunkDigestHasher()
	chunkHasher.Write(data)
	want := chunkHasher.Sum(nil)

	h := NewChunkedContentHasher(Red)
	h.Write(data)
	got := h.Finalize()

	wantHex := make([]byte, 32)
	hexEncode(wantHex, want)
	require.Equal(t, string(wantHex), got)
}

func TestChunkedContentHashExactMultipleAppendsEmptyDigestRed(t *testing.T) {
	oneChunk := bytes.Repeat([]byte{0x01}, ChunkSize)
	twoChunks := append(append([]byte(nil), oneChunk...), oneChunk...)

	h := NewChunkedContentHasher(Red)
	h.Write(twoChunks)
	got := h.Finalize()

	var digests []byte
	d1 := newChunkDigestHasher()
	d1.Write(oneChunk)
	digests = d1.Sum(digests)
	d2 := newChunkDigestHasher()
	d2.Write(oneChunk)
	digests = d2.Sum(digests)
	digests = append(digests, chunkDigestEmpty()...)

	final := newChunkDigestHasher()
	final.Write(digests)
	want := final.Sum(nil)

	wantHex := make([]byte, 32)
	hexEncode(wantHex, want)
	require.Equal(t, string(wantHex), got)
}

func TestChunkedContentHashOverChunkNonMultiple(t *testing.T) {
	data := append(bytes.Repeat([]byte{0x02}, ChunkSize), []byte("tail")...)

	h := NewChunkedContentHasher(Red)
	h.Write(data[:123])
	h.Write(data[123:])
	got := h.Finalize()
	require.Len(t, got, 32)

	h2 := NewChunkedContentHasher(Red)
	h2.Write(data)
	require.Equal(t, got, h2.Finalize())
}

func TestTigerTreeEmpty(t *testing.T) {
	a, ok := Lookup("tiger_tree")
	require.True(t, ok)
	require.Equal(t, ttEmptyDigest, a.HashBytes(nil))
	require.Len(t, a.HashBytes(nil), 39)
}

func TestTigerTreeDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte{0x07}, 5120)
	a, ok := Lookup("tiger_tree")
	require.True(t, ok)

	first := a.HashBytes(data)
	second := a.HashBytes(data)
	require.Equal(t, first, second)
	require.Len(t, first, 39)
}

func TestTigerTreeStreamingMatchesOneShotAcrossLeafBoundaries(t *testing.T) {
	a, ok := Lookup("tiger_tree")
	require.True(t, ok)

	for _, size := range []int{0, 1, 1023, 1024, 1025, 2048} {
		data := bytes.Repeat([]byte{0x09}, size)
		oneShot := a.HashBytes(data)

		h := a.CreateHasher()
		if size > 0 {
			h.Write(data[:size/2])
			h.Write(data[size/2:])
		}
		require.Equal(t, oneShot, h.Finalize(), "size=%d", size)
	}
}

func hexEncode(dst, src []byte) {
	const hextable = "0123456789abcdef"
	for i, b := range src {
		dst[i*2] = hextable[b>>4]
		dst[i*2+1] = hextable[b&0x0F]
	}
}
