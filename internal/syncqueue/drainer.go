/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package syncqueue drains store.SyncQueue: it dispatches ready items
// through the protocol client, advances each item's status on the
// outcome, and reschedules transient failures with exponential backoff.
// It is single-concurrent per client, since the rate limiter already
// serializes every send; there is nothing to gain from draining in
// parallel.
package syncqueue

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/anidbtools/anidbcore/internal/coreerr"
	"github.com/anidbtools/anidbcore/internal/corelog"
	"github.com/anidbtools/anidbcore/internal/protocol/client"
	"github.com/anidbtools/anidbcore/internal/protocol/codec"
	"github.com/anidbtools/anidbcore/internal/store"
)

// DefaultBatchSize bounds how many ready items one DrainOnce call picks
// up.
const DefaultBatchSize = 20

// DefaultBaseDelay is the multiplier in the retry schedule
// scheduled_at = now + 2^retry_count * base_delay.
const DefaultBaseDelay = 30 * time.Second

// CommandBuilder turns a queued item into the protocol command that
// carries out its operation (MYLISTADD, MYLISTDEL, and so on);
// ApplyOnSuccess, if non-nil, updates any local list-state fields in the
// store once the command succeeds (e.g. recording the mylist id the
// service assigned).
type CommandBuilder interface {
	Build(item store.SyncQueueItem) (codec.Command, error)
	ApplyOnSuccess(s *store.Store, item store.SyncQueueItem, resp codec.Response) error
}

// Drainer advances one SyncQueue against one protocol client.
type Drainer struct {
	c         *client.Client
	s         *store.Store
	build     CommandBuilder
	baseDelay time.Duration
	log       *corelog.Logger
}

// New constructs a Drainer. baseDelay <= 0 selects DefaultBaseDelay.
func New(c *client.Client, s *store.Store, build CommandBuilder, baseDelay time.Duration, log *corelog.Logger) *Drainer {
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if log == nil {
		log = corelog.NewDiscardLogger()
	}
	return &Drainer{c: c, s: s, build: build, baseDelay: baseDelay, log: log}
}

// DrainOnce fetches up to limit ready items and processes them in
// priority/scheduled_at order, one at a time. It returns the number of
// items processed (regardless of outcome) and the first error that
// prevented fetching the batch itself; per-item failures are recorded on
// the item, not returned here. A limit <= 0 selects DefaultBatchSize.
func (d *Drainer) DrainOnce(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	items, err := d.s.SyncQueue().FindReady(nowMillis(), limit)
	if err != nil {
		return 0, coreerr.Wrap("syncqueue.DrainOnce", err)
	}

	processed := 0
	for _, item := range items {
		if ctx.Err() != nil {
			// Cancellation lets the current item finish; it never starts
			// a new one.
			break
		}
		d.processOne(ctx, item)
		processed++
	}
	return processed, nil
}

// Run calls DrainOnce every interval until ctx is cancelled.
func (d *Drainer) Run(ctx context.Context, limit int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DrainOnce(ctx, limit); err != nil {
				d.log.Warn("sync drain failed", corelog.KVErr(err))
			}
		}
	}
}

// itemLog scopes every line about one queued item with its file id and
// operation, so a grep over the log for one file's history turns up
// every attempt regardless of which helper logged it.
func (d *Drainer) itemLog(item store.SyncQueueItem) *corelog.KVLogger {
	return corelog.NewLoggerWithKV(d.log,
		corelog.KV("file_id", item.FileID), corelog.KV("operation", item.Operation))
}

func (d *Drainer) processOne(ctx context.Context, item store.SyncQueueItem) {
	ilog := d.itemLog(item)
	if err := d.s.SyncQueue().MarkInProgress(item.ID, time.Now().UnixMilli()); err != nil {
		ilog.Warn("mark in_progress failed", corelog.KVErr(err))
		return
	}

	cmd, err := d.build.Build(item)
	if err != nil {
		d.fail(item, err.Error())
		return
	}

	resp, err := d.c.Send(ctx, cmd)
	if err != nil {
		if isTransient(err) {
			d.retryOrFail(item, err.Error())
		} else {
			d.fail(item, err.Error())
		}
		return
	}

	if err := d.build.ApplyOnSuccess(d.s, item, resp); err != nil {
		ilog.Warn("apply-on-success failed", corelog.KVErr(err))
	}
	if err := d.s.SyncQueue().MarkCompleted(item.ID); err != nil {
		ilog.Warn("mark completed failed", corelog.KVErr(err))
	}
}

func (d *Drainer) fail(item store.SyncQueueItem, message string) {
	if err := d.s.SyncQueue().MarkFailed(item.ID, message); err != nil {
		d.itemLog(item).Warn("mark failed failed", corelog.KVErr(err))
	}
}

func (d *Drainer) retryOrFail(item store.SyncQueueItem, message string) {
	next := time.Now().Add(d.backoff(item.RetryCount + 1)).UnixMilli()
	if err := d.s.SyncQueue().RetryOrFail(item.ID, message, next); err != nil {
		d.itemLog(item).Warn("retry-or-fail failed", corelog.KVErr(err))
	}
}

// backoff computes 2^retryCount * base_delay per §4.10.
func (d *Drainer) backoff(retryCount int) time.Duration {
	factor := math.Pow(2, float64(retryCount))
	return time.Duration(factor * float64(d.baseDelay))
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// isTransient classifies a Send error as worth rescheduling. A rejected
// authentication or a protocol error already marked transient (the
// retryable code ranges) gets another pass through the queue later, and so
// does any error that is not a *coreerr.ProtocolError (a transport send
// failure, for one); only a ProtocolError not marked transient is permanent.
func isTransient(err error) bool {
	if errors.Is(err, client.ErrAuthenticationFailed) {
		return true
	}
	var pe *coreerr.ProtocolError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return true
}
