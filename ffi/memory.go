/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/anidbtools/anidbcore/internal/memory"
)

// DefaultByteBudget bounds every heap object this boundary hands back to
// a caller (strings), the same C1 byte counter the hashing
// pipeline's ring buffers draw from.
const DefaultByteBudget = 64 * 1024 * 1024

// mgr is the process-wide memory manager every FFI allocation is charged
// against; it is the one resource spec.md's design notes call genuinely
// global (alongside the size-class pool array memory.Manager itself
// owns), created in anidb_init. anidb_cleanup leaves it in place; the next
// anidb_init replaces it with a fresh one.
var mgr *memory.Manager

var (
	heapMu    sync.Mutex
	heapAlloc = map[unsafe.Pointer]*memory.PooledBuffer{}
)

// newCString reserves len(s)+1 bytes against mgr, copies s into a
// C-owned, NUL-terminated buffer, and records the reservation so the
// matching free call can release it. Returns a nil pointer and
// errOutOfMemory if the budget is exhausted.
func newCString(s string) (*C.char, int32) {
	buf, err := mgr.TryAllocate(len(s) + 1)
	if err != nil {
		return nil, errOutOfMemory
	}
	cstr := C.CString(s)
	heapMu.Lock()
	heapAlloc[unsafe.Pointer(cstr)] = buf
	heapMu.Unlock()
	return cstr, errSuccess
}

// freeCString releases a string previously returned by newCString. A nil
// or already-freed pointer is a no-op, matching the registry's tolerance
// for a stale handle rather than crashing the caller's process.
func freeCString(ptr *C.char) {
	if ptr == nil {
		return
	}
	p := unsafe.Pointer(ptr)
	heapMu.Lock()
	buf, ok := heapAlloc[p]
	if ok {
		delete(heapAlloc, p)
	}
	heapMu.Unlock()
	if !ok {
		return
	}
	if buf != nil {
		mgr.Release(buf)
	}
	C.free(p)
}

// resetMemory drops every outstanding tracked allocation's accounting
// without freeing the underlying C memory (the caller is responsible for
// any pointers it is still holding); used by anidb_cleanup alongside the
// handle registries.
func resetMemory() {
	heapMu.Lock()
	heapAlloc = map[unsafe.Pointer]*memory.PooledBuffer{}
	heapMu.Unlock()
}
