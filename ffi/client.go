/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

/*
#include <stdint.h>
*/
import "C"

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/anidbtools/anidbcore/internal/identify"
	"github.com/anidbtools/anidbcore/internal/memory"
	"github.com/anidbtools/anidbcore/internal/protocol/client"
	"github.com/anidbtools/anidbcore/internal/store"
	"github.com/anidbtools/anidbcore/internal/syncqueue"
)

// clientState bundles every collaborator one opaque client handle owns.
// The identifier holds the client by capability reference only, and the
// client owns the transport and rate limiter; there is no back-edge, per
// the "cyclic references" design note.
type clientState struct {
	client     *client.Client
	store      *store.Store
	identifier *identify.Identifier
	drainer    *syncqueue.Drainer
}

var clientRegistry = newHandleRegistry[clientState]()

var initialized int32

// anidb_init must be called once before any other entry point. It
// validates the caller's ABI version and lazily creates the process-wide
// memory manager.
//
//export anidb_init
func anidb_init(abiVersion C.int32_t) C.int32_t {
	return C.int32_t(guard(func() int32 {
		if int32(abiVersion) != AbiVersion {
			return errVersionMismatch
		}
		if atomic.CompareAndSwapInt32(&initialized, 0, 1) {
			mgr = memory.New(DefaultByteBudget)
		}
		return errSuccess
	}))
}

// anidb_cleanup empties every handle registry and memory-accounting
// table. It does not free C memory the caller is still holding; the
// caller is expected to have freed every outstanding handle and string
// first.
//
//export anidb_cleanup
func anidb_cleanup() {
	guardVoid(func() {
		clientRegistry.reset()
		resetMemory()
		atomic.StoreInt32(&initialized, 0)
	})
}

// anidb_client_create opens (or creates) the local store at dbPath,
// dials remoteAddr, and returns an opaque client handle in handleOut.
// clientName, clientVersion, username, and password may be nil.
//
//export anidb_client_create
func anidb_client_create(dbPath, remoteAddr, clientName, clientVersion, username, password *C.char, handleOut *C.uint64_t) C.int32_t {
	return C.int32_t(guard(func() int32 {
		if handleOut == nil || dbPath == nil || remoteAddr == nil {
			return errInvalidParameter
		}

		s, err := store.Open(store.Config{Path: cGoString(dbPath)})
		if err != nil {
			return classifyError(err)
		}

		c := client.New(
			client.Identity{ClientName: cGoString(clientName), ClientVersion: cGoString(clientVersion)},
			client.Credentials{Username: cGoString(username), Password: cGoString(password)},
			ffiLog,
		)
		if err := c.Connect(cGoString(remoteAddr)); err != nil {
			_ = s.Close()
			return classifyError(err)
		}

		st := &clientState{
			client:     c,
			store:      s,
			identifier: identify.New(c, s, 0),
			drainer:    syncqueue.New(c, s, syncqueue.LookupCommandBuilder{Store: s}, 0, ffiLog),
		}
		*handleOut = C.uint64_t(clientRegistry.insert(st))
		return errSuccess
	}))
}

// anidb_client_destroy disconnects the client, closes its store, and
// retires the handle. A stale or already-destroyed handle yields
// errInvalidHandle rather than panicking.
//
//export anidb_client_destroy
func anidb_client_destroy(handle C.uint64_t) C.int32_t {
	return C.int32_t(guard(func() int32 {
		st, ok := clientRegistry.removeAndGet(uint64(handle))
		if !ok {
			return errInvalidHandle
		}
		_ = st.client.Disconnect()
		_ = st.store.Close()
		return errSuccess
	}))
}

// anidb_client_authenticate issues AUTH with the credentials the client
// was created with.
//
//export anidb_client_authenticate
func anidb_client_authenticate(handle C.uint64_t) C.int32_t {
	return C.int32_t(guard(func() int32 {
		st, ok := clientRegistry.get(uint64(handle))
		if !ok {
			return errInvalidHandle
		}
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultRequestTimeout)
		defer cancel()
		if err := st.client.Authenticate(ctx); err != nil {
			if errors.Is(err, client.ErrAuthenticationFailed) {
				return errPermissionDenied
			}
			return classifyError(err)
		}
		return errSuccess
	}))
}

// anidb_identify_file resolves (ed2k, size) against the metadata
// service, consulting the local cache first. On a successful
// identification, titleOut receives a newly allocated string (release it
// with anidb_string_free); any other outcome leaves titleOut untouched
// and returns the matching error code.
//
//export anidb_identify_file
func anidb_identify_file(handle C.uint64_t, ed2k *C.char, size C.int64_t, fmask, amask *C.char, titleOut **C.char) C.int32_t {
	return C.int32_t(guard(func() int32 {
		st, ok := clientRegistry.get(uint64(handle))
		if !ok {
			return errInvalidHandle
		}
		if ed2k == nil || titleOut == nil {
			return errInvalidParameter
		}

		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultRequestTimeout)
		defer cancel()
		res := st.identifier.IdentifyFile(ctx, cGoString(ed2k), int64(size), cGoString(fmask), cGoString(amask))
		if res.Outcome != identify.Identified {
			return classifyOutcome(res.Outcome)
		}

		cstr, code := newCString(res.Identification.Titles)
		if code != errSuccess {
			return code
		}
		*titleOut = cstr
		return errSuccess
	}))
}

// anidb_sync_drain_once processes up to limit ready sync-queue items
// through handle's client, returning the count processed via
// processedOut.
//
//export anidb_sync_drain_once
func anidb_sync_drain_once(handle C.uint64_t, limit C.int32_t, processedOut *C.int32_t) C.int32_t {
	return C.int32_t(guard(func() int32 {
		st, ok := clientRegistry.get(uint64(handle))
		if !ok {
			return errInvalidHandle
		}
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultRequestTimeout)
		defer cancel()
		n, err := st.drainer.DrainOnce(ctx, int(limit))
		if err != nil {
			return classifyError(err)
		}
		if processedOut != nil {
			*processedOut = C.int32_t(n)
		}
		return errSuccess
	}))
}

// anidb_string_free releases a string previously returned through an
// out-parameter by any entry point above.
//
//export anidb_string_free
func anidb_string_free(s *C.char) {
	guardVoid(func() { freeCString(s) })
}

func cGoString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}
