/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package memory implements the process-wide byte budget shared by the
// hashing pipeline's ring buffers and any FFI-allocated results. A single
// Manager tracks a byte counter against a configurable limit with a CAS
// loop, identically to how the ring's circular index in the pipeline
// package is a plain value type guarded by its owner's lock rather than a
// global — the only truly global state here is the byte counter and the
// size-classed pool array, as called for by the "only two globals" design
// note.
package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/inhies/go-bytesize"

	"github.com/anidbtools/anidbcore/internal/coreerr"
)

// Class is a buffer size class. Allocations round up to the smallest class
// that fits the request.
type Class int

const (
	Small Class = iota
	Medium
	Large
	XLarge

	numClasses
)

// ClassSizes gives the fixed byte size backing each Class.
var ClassSizes = [numClasses]int{
	Small:  4 * 1024,
	Medium: 64 * 1024,
	Large:  512 * 1024,
	XLarge: 4 * 1024 * 1024,
}

func (c Class) String() string {
	switch c {
	case Small:
		return "small"
	case Medium:
		return "medium"
	case Large:
		return "large"
	case XLarge:
		return "xlarge"
	}
	return "unknown"
}

// classFor returns the smallest Class whose fixed size is >= n, or ok=false
// if n exceeds the largest class (the caller must fall back to a fresh,
// unpooled allocation sized exactly to n).
func classFor(n int) (c Class, ok bool) {
	for c = Small; c < numClasses; c++ {
		if n <= ClassSizes[c] {
			return c, true
		}
	}
	return 0, false
}

// PooledBuffer is a buffer handed out by the Manager. Bytes is sized to the
// requesting caller's request but backed by a Class-sized allocation so it
// can be recycled; Class is XLarge-or-larger-unpooled set to -1 when the
// buffer was a one-off allocation outside any size class.
type PooledBuffer struct {
	Bytes      []byte
	Class      Class
	pooled     bool
	lastUsed   time.Time
	reuseCount int
}

// ErrMemoryLimitExceeded is the recoverable failure try_allocate returns;
// callers typically shrink pools and retry, or degrade by reducing
// parallelism.
type ErrMemoryLimitExceeded struct {
	Limit   int64
	Current int64
}

func (e *ErrMemoryLimitExceeded) Error() string {
	return "memory limit exceeded"
}

// Stats are tracked with relaxed atomics purely for observability; they are
// never consulted for correctness.
type Stats struct {
	Attempts int64
	Successes int64
	Failures  int64
	Hits      int64 // served from a size-class pool
	Misses    int64 // required a fresh allocation
	Peak      int64 // high-water mark of Used()
	BytesIn   int64 // cumulative bytes allocated
	BytesOut  int64 // cumulative bytes released
}

type pool struct {
	mu    sync.Mutex
	items []*PooledBuffer
	cap   int
}

// maxPoolDepth bounds how many idle buffers a size class retains; beyond
// this, Release discards rather than recycles.
const maxPoolDepth = 32

// idleEvictAfter is how long an idle pooled buffer survives Shrink before
// being evicted.
const idleEvictAfter = 2 * time.Minute

// Manager is the process-wide byte budget. The zero value is not usable;
// construct with New.
type Manager struct {
	used  int64 // atomic
	limit int64 // atomic

	stats Stats // fields accessed via atomic.Add*

	pools [numClasses]*pool
}

// New constructs a Manager with the given byte limit. A limit <= 0 means
// unbounded (try_allocate never fails on size alone).
func New(limit int64) *Manager {
	m := &Manager{limit: limit}
	for i := range m.pools {
		m.pools[i] = &pool{cap: maxPoolDepth}
	}
	return m
}

// Used returns the current number of bytes outstanding (allocated and not
// yet released).
func (m *Manager) Used() int64 { return atomic.LoadInt64(&m.used) }

// Limit returns the configured byte limit; <= 0 means unbounded.
func (m *Manager) Limit() int64 { return atomic.LoadInt64(&m.limit) }

// SetLimit updates the byte limit; it does not retroactively evict
// in-flight allocations, only future try_allocate calls are affected.
func (m *Manager) SetLimit(n int64) { atomic.StoreInt64(&m.limit, n) }

// HumanUsed renders Used() via go-bytesize for log/status lines.
func (m *Manager) HumanUsed() string {
	return bytesize.New(float64(m.Used())).String()
}

// HumanLimit renders Limit() via go-bytesize for log/status lines.
func (m *Manager) HumanLimit() string {
	if l := m.Limit(); l > 0 {
		return bytesize.New(float64(l)).String()
	}
	return "unbounded"
}

// Stats returns a snapshot of the accounting counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Attempts:  atomic.LoadInt64(&m.stats.Attempts),
		Successes: atomic.LoadInt64(&m.stats.Successes),
		Failures:  atomic.LoadInt64(&m.stats.Failures),
		Hits:      atomic.LoadInt64(&m.stats.Hits),
		Misses:    atomic.LoadInt64(&m.stats.Misses),
		Peak:      atomic.LoadInt64(&m.stats.Peak),
		BytesIn:   atomic.LoadInt64(&m.stats.BytesIn),
		BytesOut:  atomic.LoadInt64(&m.stats.BytesOut),
	}
}

// TryAllocate serves a buffer of at least n bytes, preferring a recycled
// buffer from the matching size-class pool. It fails with
// ErrMemoryLimitExceeded if granting the allocation would exceed the
// configured limit; the CAS loop below is the "atomic under contention"
// allocation the byte counter requires.
func (m *Manager) TryAllocate(n int) (*PooledBuffer, error) {
	atomic.AddInt64(&m.stats.Attempts, 1)

	class, pooled := classFor(n)
	size := n
	if pooled {
		size = ClassSizes[class]
	}

	if !m.reserve(int64(size)) {
		atomic.AddInt64(&m.stats.Failures, 1)
		return nil, &ErrMemoryLimitExceeded{Limit: m.Limit(), Current: m.Used()}
	}

	var buf *PooledBuffer
	if pooled {
		if b := m.pools[class].pop(); b != nil {
			atomic.AddInt64(&m.stats.Hits, 1)
			b.reuseCount++
			b.Bytes = b.Bytes[:n]
			buf = b
		}
	}
	if buf == nil {
		atomic.AddInt64(&m.stats.Misses, 1)
		cls := Small
		backing := n
		if pooled {
			cls = class
			backing = size
		} else {
			cls = -1
		}
		buf = &PooledBuffer{Bytes: make([]byte, n, backing), Class: cls, pooled: pooled}
	}

	atomic.AddInt64(&m.stats.Successes, 1)
	atomic.AddInt64(&m.stats.BytesIn, int64(size))
	m.bumpPeak()
	return buf, nil
}

// reserve performs the compare-and-swap loop adding delta to used, failing
// without mutating state if the limit would be exceeded.
func (m *Manager) reserve(delta int64) bool {
	for {
		cur := atomic.LoadInt64(&m.used)
		lim := atomic.LoadInt64(&m.limit)
		next := cur + delta
		if lim > 0 && next > lim {
			return false
		}
		if atomic.CompareAndSwapInt64(&m.used, cur, next) {
			return true
		}
	}
}

func (m *Manager) bumpPeak() {
	for {
		cur := atomic.LoadInt64(&m.stats.Peak)
		used := atomic.LoadInt64(&m.used)
		if used <= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&m.stats.Peak, cur, used) {
			return
		}
	}
}

// Release returns buf's bytes to its size-class pool if the pool has room
// and the buffer came from one; otherwise the backing array is discarded
// and garbage collected. Either way the byte counter is decremented.
func (m *Manager) Release(buf *PooledBuffer) {
	if buf == nil {
		return
	}
	size := cap(buf.Bytes)
	atomic.AddInt64(&m.used, -int64(size))
	if atomic.LoadInt64(&m.used) < 0 {
		atomic.StoreInt64(&m.used, 0)
	}
	atomic.AddInt64(&m.stats.BytesOut, int64(size))

	if buf.Class >= Small && buf.Class < numClasses && buf.pooled {
		buf.lastUsed = time.Now()
		m.pools[buf.Class].push(buf)
	}
}

// Shrink evicts pooled buffers idle longer than idleEvictAfter from every
// size class, freeing memory back to the runtime without affecting
// in-flight allocations. It is safe to call concurrently with TryAllocate.
func (m *Manager) Shrink() {
	now := time.Now()
	for _, p := range m.pools {
		p.evictIdle(now)
	}
}

func (p *pool) pop() *PooledBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.items)
	if n == 0 {
		return nil
	}
	b := p.items[n-1]
	p.items = p.items[:n-1]
	return b
}

func (p *pool) push(b *PooledBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) >= p.cap {
		return // discard, pool at capacity
	}
	p.items = append(p.items, b)
}

func (p *pool) evictIdle(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.items[:0]
	for _, b := range p.items {
		if now.Sub(b.lastUsed) < idleEvictAfter {
			kept = append(kept, b)
		}
	}
	p.items = kept
}

// AssertReconciled is a debug-build invariant check: the sum of in-flight
// and pooled bytes must never exceed the configured limit. It is cheap
// enough to call from tests but is not on any hot path.
func (m *Manager) AssertReconciled() error {
	var pooled int64
	for _, p := range m.pools {
		p.mu.Lock()
		for _, b := range p.items {
			pooled += int64(cap(b.Bytes))
		}
		p.mu.Unlock()
	}
	if lim := m.Limit(); lim > 0 && m.Used()+pooled > lim {
		return coreerr.NewInternalError("memory.AssertReconciled", coreerr.ErrAssertion)
	}
	return nil
}
