/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package ratelimit enforces the single-process send cadence the
// metadata service requires: after any successful send, the next send
// must wait until at least MinInterval has elapsed. It is built on
// golang.org/x/time/rate the way the teacher's connection throttling
// (throttle.go) configures a token bucket for outbound pacing; here burst
// is fixed at 1 so waiters queue and are released strictly in arrival
// order.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// MinInterval is the minimum time between two successive sends.
const MinInterval = 2 * time.Second

// Limiter serializes send attempts through a single token bucket of
// burst 1, replenished every MinInterval.
type Limiter struct {
	l *rate.Limiter
}

// New constructs a Limiter enforcing MinInterval between sends.
func New() *Limiter {
	return &Limiter{l: rate.NewLimiter(rate.Every(MinInterval), 1)}
}

// Wait blocks until the caller may send, or ctx is cancelled first.
// Cancelling a waiter frees the next waiter's turn without consuming the
// token, the same behavior rate.Limiter.Wait already provides: a
// cancelled reservation is given back to the bucket.
func (rl *Limiter) Wait(ctx context.Context) error {
	return rl.l.Wait(ctx)
}

// Allow reports whether a send may proceed immediately without blocking,
// consuming the token if so.
func (rl *Limiter) Allow() bool {
	return rl.l.Allow()
}
