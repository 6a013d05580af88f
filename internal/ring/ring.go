/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package ring implements the copy-on-read ring buffer the hashing
// pipeline reads a file through exactly once: a single writer publishes
// buffers supplied by package memory, and any number of independent
// reader cursors each observe every buffer in order, advancing at their
// own pace. A slot is only returned to the memory manager once every
// active cursor has moved past it.
//
// The index bookkeeping (head/tail/count around a fixed-size array, a
// special case for the empty state) follows the same shape as the single-
// consumer circular index used elsewhere in the corpus for entry buffers;
// this one generalizes that shape to many independent consumers instead
// of one.
package ring

import (
	"strconv"
	"sync"

	"github.com/anidbtools/anidbcore/internal/coreerr"
	"github.com/anidbtools/anidbcore/internal/memory"
)

// MinSlots and MaxSlots bound the ring's fixed slot count.
const (
	MinSlots = 16
	MaxSlots = 64
)

type slot struct {
	buf     *memory.PooledBuffer
	seq     uint64
	waiting int // cursors that have not yet consumed this slot
}

// Ring is a bounded, multi-consumer, single-producer buffer of file
// chunks. Cursors must all be created with NewCursor before the first
// Publish they are meant to observe; a cursor only sees buffers published
// after it was created.
type Ring struct {
	mgr   *memory.Manager
	slots []slot

	mu       sync.Mutex
	cond     *sync.Cond
	writeSeq uint64 // total buffers published
	closed   bool
	canceled bool

	cursors    []*Cursor
	numCursors int
}

// New constructs a Ring with the given slot count, backed by mgr for
// buffer release on reclaim. slotCount must be within [MinSlots, MaxSlots].
func New(mgr *memory.Manager, slotCount int) (*Ring, error) {
	if slotCount < MinSlots || slotCount > MaxSlots {
		return nil, coreerr.NewValidationError("slotCount", strconv.Itoa(slotCount), coreerr.ErrInvalidConfig)
	}
	r := &Ring{mgr: mgr, slots: make([]slot, slotCount)}
	r.cond = sync.NewCond(&r.mu)
	return r, nil
}

// Cursor is one consumer's read position into the ring. Cursors are not
// safe for concurrent use by more than one goroutine each.
type Cursor struct {
	r       *Ring
	readSeq uint64 // next sequence number this cursor wants to read
	done    bool
}

// NewCursor registers a new consumer cursor starting at the ring's
// current write position. All cursors meant to observe the same run must
// be created before the first Publish.
func (r *Ring) NewCursor() *Cursor {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Cursor{r: r, readSeq: r.writeSeq}
	r.cursors = append(r.cursors, c)
	r.numCursors++
	return c
}

// Publish blocks until a slot is free and places buf into it. Back-
// pressure: the writer waits when the slowest active cursor is one full
// lap (len(r.slots) buffers) behind the write position, bounding memory
// overhead to slotCount*slotSize regardless of consumer speed.
func (r *Ring) Publish(buf *memory.PooledBuffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if r.canceled {
			return coreerr.NewInternalError("ring.Publish", coreerr.ErrAssertion)
		}
		if r.writeSeq-r.slowestCursorLocked() < uint64(len(r.slots)) {
			break
		}
		r.cond.Wait()
	}

	idx := int(r.writeSeq % uint64(len(r.slots)))
	r.slots[idx] = slot{buf: buf, seq: r.writeSeq, waiting: r.numCursors}
	r.writeSeq++
	r.cond.Broadcast()
	return nil
}

// Close signals that no more buffers will be published; cursors drain
// whatever remains in the ring and then report EOF.
func (r *Ring) Close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

// Cancel aborts the ring immediately: the writer and all cursors unblock,
// Publish and Next return errors, and every still-held buffer is released
// back to the memory manager. Partial results must be discarded by the
// caller.
func (r *Ring) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canceled = true
	for i := range r.slots {
		if r.slots[i].buf != nil {
			r.mgr.Release(r.slots[i].buf)
			r.slots[i].buf = nil
		}
	}
	r.cond.Broadcast()
}

// slowestCursorLocked returns the read position of the least-advanced
// still-active cursor, or r.writeSeq if there are none (no back-pressure
// with no consumers yet registered).
func (r *Ring) slowestCursorLocked() uint64 {
	slowest := r.writeSeq
	any := false
	for _, c := range r.cursors {
		if c.done {
			continue
		}
		any = true
		if c.readSeq < slowest {
			slowest = c.readSeq
		}
	}
	if !any {
		return r.writeSeq
	}
	return slowest
}

// Next advances the cursor by one buffer, returning its bytes and true,
// or ok=false once the ring is closed and fully drained. The returned
// slice is only valid until the next call to Next; callers that need to
// retain bytes across calls must copy them into their own hasher state
// before advancing again, which is exactly what a streaming hasher's
// Write does.
func (c *Cursor) Next() (data []byte, ok bool, err error) {
	r := c.r
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if r.canceled {
			return nil, false, coreerr.NewInternalError("ring.Next", coreerr.ErrAssertion)
		}
		if c.readSeq < r.writeSeq {
			break
		}
		if r.closed {
			if !c.done {
				c.done = true
				r.cond.Broadcast()
			}
			return nil, false, nil
		}
		r.cond.Wait()
	}

	idx := int(c.readSeq % uint64(len(r.slots)))
	s := &r.slots[idx]
	data = s.buf.Bytes
	c.readSeq++

	s.waiting--
	if s.waiting <= 0 {
		r.mgr.Release(s.buf)
		s.buf = nil
	}
	r.cond.Broadcast()
	return data, true, nil
}

// Close marks the cursor done without draining the remainder of the
// ring, used when a hasher fails and the pipeline is tearing down early.
func (c *Cursor) Close() {
	r := c.r
	r.mu.Lock()
	defer r.mu.Unlock()
	if !c.done {
		c.done = true
		r.cond.Broadcast()
	}
}
