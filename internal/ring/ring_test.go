/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anidbtools/anidbcore/internal/memory"
)

func TestNewRejectsOutOfRangeSlotCount(t *testing.T) {
	mgr := memory.New(0)
	_, err := New(mgr, 4)
	require.Error(t, err)

	_, err = New(mgr, 128)
	require.Error(t, err)

	r, err := New(mgr, MinSlots)
	require.NoError(t, err)
	require.NotNil(t, r)
}

func TestSingleCursorObservesEveryByteInOrder(t *testing.T) {
	mgr := memory.New(0)
	r, err := New(mgr, MinSlots)
	require.NoError(t, err)

	c := r.NewCursor()

	const n = 40
	go func() {
		for i := 0; i < n; i++ {
			buf, _ := mgr.TryAllocate(8)
			copy(buf.Bytes, []byte{byte(i), 0, 0, 0, 0, 0, 0, 0})
			r.Publish(buf)
		}
		r.Close()
	}()

	var seen []byte
	for {
		data, ok, err := c.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		seen = append(seen, data[0])
	}

	require.Len(t, seen, n)
	for i := 0; i < n; i++ {
		require.Equal(t, byte(i), seen[i])
	}
}

func TestMultipleCursorsEachSeeFullStream(t *testing.T) {
	mgr := memory.New(0)
	r, err := New(mgr, MinSlots)
	require.NoError(t, err)

	const consumers = 4
	const n = 100

	cursors := make([]*Cursor, consumers)
	for i := range cursors {
		cursors[i] = r.NewCursor()
	}

	go func() {
		for i := 0; i < n; i++ {
			buf, _ := mgr.TryAllocate(8)
			buf.Bytes[0] = byte(i)
			r.Publish(buf)
		}
		r.Close()
	}()

	var wg sync.WaitGroup
	counts := make([]int, consumers)
	wg.Add(consumers)
	for i, c := range cursors {
		go func(i int, c *Cursor) {
			defer wg.Done()
			for {
				_, ok, err := c.Next()
				require.NoError(t, err)
				if !ok {
					return
				}
				counts[i]++
			}
		}(i, c)
	}
	wg.Wait()

	for i, got := range counts {
		require.Equal(t, n, got, "cursor %d", i)
	}
}

func TestReleasesBufferOnlyAfterSlowestCursorPasses(t *testing.T) {
	mgr := memory.New(0)
	r, err := New(mgr, MinSlots)
	require.NoError(t, err)

	fast := r.NewCursor()
	slow := r.NewCursor()

	buf, err := mgr.TryAllocate(8)
	require.NoError(t, err)
	require.NoError(t, r.Publish(buf))
	r.Close()

	before := mgr.Used()
	require.Greater(t, before, int64(0))

	_, ok, err := fast.Next()
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, before, mgr.Used(), "must not release until the slow cursor also passes")

	_, ok, err = slow.Next()
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, int64(0), mgr.Used())
}

func TestCancelReleasesAllHeldBuffers(t *testing.T) {
	mgr := memory.New(0)
	r, err := New(mgr, MinSlots)
	require.NoError(t, err)

	c := r.NewCursor()
	buf, err := mgr.TryAllocate(8)
	require.NoError(t, err)
	require.NoError(t, r.Publish(buf))

	r.Cancel()

	require.Equal(t, int64(0), mgr.Used())

	_, _, err = c.Next()
	require.Error(t, err)

	err = r.Publish(buf)
	require.Error(t, err)
}
