/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package hashing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyFileChunkedAndCrc32(t *testing.T) {
	chunked, err := HashBytes(ChunkedContentHash, nil)
	require.NoError(t, err)
	require.Equal(t, "31d6cfe0d16ae931b73c59d7e0c089c0", chunked.Digest)

	crc, err := HashBytes(Crc32, nil)
	require.NoError(t, err)
	require.Equal(t, "00000000", crc.Digest)
}

func TestSingleByteCrc32AndMd128(t *testing.T) {
	crc, err := HashBytes(Crc32, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, "e8b7be43", crc.Digest)

	md, err := HashBytes(Md128, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, "0cc175b9c0f1b6a831c399e269772661", md.Digest)
}

func TestNewHasherUnknownAlgorithm(t *testing.T) {
	_, err := NewHasher(Algorithm("not-a-real-algorithm"))
	require.Error(t, err)
}

func TestHasherTracksInputBytesAndElapsed(t *testing.T) {
	h, err := NewHasher(Sha160)
	require.NoError(t, err)

	data := bytes.Repeat([]byte{0x11}, 4096)
	h.Write(data[:1000])
	h.Write(data[1000:])

	result := h.Finalize()
	require.Equal(t, Sha160, result.Algorithm)
	require.Equal(t, int64(len(data)), result.InputBytes)
	require.Len(t, result.Digest, 40)
	require.GreaterOrEqual(t, result.Elapsed.Nanoseconds(), int64(0))
}

func TestEncodingWidthCoversAllAlgorithms(t *testing.T) {
	for _, a := range All() {
		width, ok := EncodingWidth(a)
		require.True(t, ok, a)
		require.Greater(t, width, 0, a)
	}
}

func TestTigerTreeEmptyDigestFixed(t *testing.T) {
	d, err := HashBytes(TigerTree, nil)
	require.NoError(t, err)
	require.Equal(t, "lwpnacqdbzryxw3vhjvcj64qbznghohhhzwclnq", d.Digest)
	require.Len(t, d.Digest, 39)
}
