/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package pipeline reads a file once, feeding its bytes through the
// copy-on-read ring (package ring) to every requested hash algorithm
// (package hashing) concurrently. One reader goroutine and one goroutine
// per algorithm are joined with golang.org/x/sync/errgroup, the same
// structured fan-out/fan-in the rest of the retrieval pack uses for this
// shape of work; the first failing goroutine cancels its siblings and the
// run returns that error.
package pipeline

import (
	"context"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/anidbtools/anidbcore/internal/coreerr"
	"github.com/anidbtools/anidbcore/internal/hashing"
	"github.com/anidbtools/anidbcore/internal/memory"
	"github.com/anidbtools/anidbcore/internal/ring"
)

// DefaultReadBufferSize is the size each reader chunk is allocated at
// from the memory manager; it determines the ring's slot size.
const DefaultReadBufferSize = 64 * 1024

// DefaultRingSlots is the ring's fixed slot count, within
// [ring.MinSlots, ring.MaxSlots].
const DefaultRingSlots = 32

// Options configures a Run.
type Options struct {
	// Algorithms lists the hash algorithms to compute; defaults to
	// hashing.All() if empty.
	Algorithms []hashing.Algorithm

	// RingSlots overrides DefaultRingSlots.
	RingSlots int

	// ReadBufferSize overrides DefaultReadBufferSize.
	ReadBufferSize int
}

// Run reads path once and returns the completed hashing.Result for every
// requested algorithm, or the first error encountered by the reader or
// any hasher. Cancelling ctx cancels the reader and every hasher and
// releases all in-flight buffers; partial results are discarded.
func Run(ctx context.Context, mgr *memory.Manager, path string, opts Options) (map[hashing.Algorithm]hashing.Result, error) {
	algos := opts.Algorithms
	if len(algos) == 0 {
		algos = hashing.All()
	}
	ringSlots := opts.RingSlots
	if ringSlots == 0 {
		ringSlots = DefaultRingSlots
	}
	readBufSize := opts.ReadBufferSize
	if readBufSize == 0 {
		readBufSize = DefaultReadBufferSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, coreerr.NewIoError(path, err)
	}
	defer f.Close()

	r, err := ring.New(mgr, ringSlots)
	if err != nil {
		return nil, coreerr.Wrap("pipeline.Run", err)
	}

	type hasherRun struct {
		algo   hashing.Algorithm
		cursor *ring.Cursor
		hasher *hashing.Hasher
	}

	runs := make([]*hasherRun, 0, len(algos))
	for _, a := range algos {
		h, err := hashing.NewHasher(a)
		if err != nil {
			return nil, err
		}
		runs = append(runs, &hasherRun{algo: a, cursor: r.NewCursor(), hasher: h})
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	g, gctx := errgroup.WithContext(runCtx)

	// Unblock any goroutine parked in r.Publish/Cursor.Next as soon as the
	// group is cancelled (by ctx, by a sibling's error, or by cancelRun on
	// our own return), so a failing hasher cannot leave the reader, or
	// another hasher, stuck forever.
	go func() {
		<-gctx.Done()
		r.Cancel()
	}()

	g.Go(func() error {
		return readLoop(gctx, f, mgr, r, readBufSize, path)
	})

	results := make([]hashing.Result, len(runs))
	for i, run := range runs {
		i, run := i, run
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					run.cursor.Close()
					return gctx.Err()
				default:
				}
				data, ok, err := run.cursor.Next()
				if err != nil {
					return coreerr.Wrap(string(run.algo), err)
				}
				if !ok {
					results[i] = run.hasher.Finalize()
					return nil
				}
				run.hasher.Write(data)
			}
		})
	}

	if err := g.Wait(); err != nil {
		r.Cancel()
		return nil, err
	}

	out := make(map[hashing.Algorithm]hashing.Result, len(results))
	for _, res := range results {
		out[res.Algorithm] = res
	}
	return out, nil
}

func readLoop(ctx context.Context, f *os.File, mgr *memory.Manager, r *ring.Ring, bufSize int, path string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		buf, err := mgr.TryAllocate(bufSize)
		if err != nil {
			return coreerr.Wrap("pipeline.readLoop", err)
		}

		n, readErr := io.ReadFull(f, buf.Bytes)
		if n > 0 {
			buf.Bytes = buf.Bytes[:n]
			if err := r.Publish(buf); err != nil {
				return err
			}
		} else {
			mgr.Release(buf)
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			r.Close()
			return nil
		}
		if readErr != nil {
			return coreerr.NewIoError(path, readErr)
		}
	}
}
