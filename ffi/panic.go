/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import "github.com/anidbtools/anidbcore/internal/corelog"

// ffiLog is the one package-level logger for this boundary, matching
// corelog's "never a package-level global client, always an injected
// *Logger" rule as closely as a cgo entry point can: there is no caller
// to inject one into, so a single discard logger is created at package
// initialization; no entry point replaces it.
var ffiLog = corelog.NewDiscardLogger()

// guard runs fn and recovers any panic, turning it into errUnknown. Every
// exported entry point routes through this (or guardVoid) so a bug deep
// in the core never unwinds across the cgo boundary into undefined
// behavior on the caller's side.
func guard(fn func() int32) (code int32) {
	defer func() {
		if r := recover(); r != nil {
			ffiLog.Errorf("ffi: recovered panic: %v", r)
			code = errUnknown
		}
	}()
	return fn()
}

// guardVoid is guard for entry points with no return value.
func guardVoid(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			ffiLog.Errorf("ffi: recovered panic: %v", r)
		}
	}()
	fn()
}
