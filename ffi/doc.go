/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command ffi is the C ABI boundary over the core library: opaque
// integer handles for clients; every exported
// entry point recovers any panic and maps it to a stable error code
// rather than letting it cross the cgo boundary; every returned heap
// object (a string) carries a matching free entry point
// and is charged against the same process-wide byte budget internal/
// memory already tracks for the hashing pipeline. Built with
// `go build -buildmode=c-shared`.
package main

import "C"

func main() {}
