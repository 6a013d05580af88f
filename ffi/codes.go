/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"errors"

	"github.com/anidbtools/anidbcore/internal/coreerr"
	"github.com/anidbtools/anidbcore/internal/identify"
	"github.com/anidbtools/anidbcore/internal/store"
)

// AbiVersion is the ABI version anidb_init checks its caller against.
const AbiVersion int32 = 1

// Stable integer error codes, matching the boundary contract's fixed
// list one for one.
const (
	errSuccess int32 = iota
	errInvalidHandle
	errInvalidParameter
	errFileNotFound
	errProcessing
	errOutOfMemory
	errIo
	errNetwork
	errCancelled
	errInvalidUtf8
	errVersionMismatch
	errTimeout
	errPermissionDenied
	errBusy
	errUnknown
)

// classifyError maps an internal error into one of the stable codes
// above. Any error kind not recognized falls back to errUnknown rather
// than leaking an internal type across the boundary.
func classifyError(err error) int32 {
	if err == nil {
		return errSuccess
	}

	var ioErr *coreerr.IoError
	if errors.As(err, &ioErr) {
		if errors.Is(ioErr.Err, coreerr.ErrFileNotFound) {
			return errFileNotFound
		}
		if errors.Is(ioErr.Err, coreerr.ErrPermissionDenied) {
			return errPermissionDenied
		}
		return errIo
	}

	var protoErr *coreerr.ProtocolError
	if errors.As(err, &protoErr) {
		return errNetwork
	}

	var valErr *coreerr.ValidationError
	if errors.As(err, &valErr) {
		return errInvalidParameter
	}

	var intErr *coreerr.InternalError
	if errors.As(err, &intErr) {
		if errors.Is(intErr.Err, coreerr.ErrMemoryLimitReached) {
			return errOutOfMemory
		}
		return errProcessing
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return errFileNotFound
	case errors.Is(err, store.ErrDBTimeout):
		return errBusy
	case errors.Is(err, store.ErrAlreadyExists):
		return errInvalidParameter
	}

	return errUnknown
}

// classifyOutcome maps an identify.Outcome (not itself an error) onto
// the same stable code space, for entry points that surface it directly
// rather than through an error return.
func classifyOutcome(o identify.Outcome) int32 {
	switch o {
	case identify.Identified:
		return errSuccess
	case identify.NotFound:
		return errFileNotFound
	case identify.AuthFailed:
		return errPermissionDenied
	case identify.Throttled:
		return errTimeout
	default:
		return errNetwork
	}
}
