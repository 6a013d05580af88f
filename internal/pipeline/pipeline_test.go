/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anidbtools/anidbcore/internal/hashing"
	"github.com/anidbtools/anidbcore/internal/memory"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunComputesAllAlgorithmsForEmptyFile(t *testing.T) {
	path := writeTempFile(t, nil)
	mgr := memory.New(0)

	results, err := Run(context.Background(), mgr, path, Options{})
	require.NoError(t, err)

	require.Equal(t, "31d6cfe0d16ae931b73c59d7e0c089c0", results[hashing.ChunkedContentHash].Digest)
	require.Equal(t, "00000000", results[hashing.Crc32].Digest)
	require.Equal(t, "lwpnacqdbzryxw3vhjvcj64qbznghohhhzwclnq", results[hashing.TigerTree].Digest)
}

func TestRunMatchesOneShotAcrossMultipleReadBuffers(t *testing.T) {
	data := bytes.Repeat([]byte{0x5a}, 500_000)
	path := writeTempFile(t, data)
	mgr := memory.New(0)

	results, err := Run(context.Background(), mgr, path, Options{
		Algorithms:     []hashing.Algorithm{hashing.Crc32, hashing.Sha160},
		ReadBufferSize: 4096,
		RingSlots:      16,
	})
	require.NoError(t, err)

	want, err := hashing.HashBytes(hashing.Crc32, data)
	require.NoError(t, err)
	require.Equal(t, want.Digest, results[hashing.Crc32].Digest)

	wantSha, err := hashing.HashBytes(hashing.Sha160, data)
	require.NoError(t, err)
	require.Equal(t, wantSha.Digest, results[hashing.Sha160].Digest)
}

func TestRunReleasesAllMemoryAfterCompletion(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 200_000)
	path := writeTempFile(t, data)
	mgr := memory.New(0)

	_, err := Run(context.Background(), mgr, path, Options{ReadBufferSize: 8192})
	require.NoError(t, err)
	require.Equal(t, int64(0), mgr.Used())
}

func TestRunReturnsErrorForMissingFile(t *testing.T) {
	mgr := memory.New(0)
	_, err := Run(context.Background(), mgr, filepath.Join(t.TempDir(), "missing"), Options{})
	require.Error(t, err)
}

func TestRunCancellationReleasesMemory(t *testing.T) {
	data := bytes.Repeat([]byte{0x02}, 10_000_000)
	path := writeTempFile(t, data)
	mgr := memory.New(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, mgr, path, Options{ReadBufferSize: 4096})
	require.Error(t, err)
	require.Equal(t, int64(0), mgr.Used())
}
