/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFirstWaitIsImmediate(t *testing.T) {
	rl := New()
	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSecondWaitIsDelayedByMinInterval(t *testing.T) {
	rl := New()
	require.NoError(t, rl.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, MinInterval-50*time.Millisecond)
}

func TestWaitCancellationDoesNotConsumeToken(t *testing.T) {
	rl := New()
	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := rl.Wait(ctx)
	require.Error(t, err)

	// The next waiter gets the slot one MinInterval after the first send;
	// had the cancelled wait consumed it, this would take two.
	require.NoError(t, rl.Wait(context.Background()))
	require.Less(t, time.Since(start), MinInterval+time.Second)
}
