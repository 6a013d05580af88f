/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package corelog

import (
	"fmt"

	"github.com/crewjam/rfc5424"
)

// KV builds a structured-data field for a Debug/Info/Warn/Error/Critical
// call, or for AddKV on a KVLogger.
func KV(name string, value interface{}) (r rfc5424.SDParam) {
	r.Name = name
	switch v := value.(type) {
	case string:
		r.Value = v
	default:
		r.Value = fmt.Sprintf("%v", value)
	}
	return
}

// KVErr is KV("error", err), the field every error-carrying log line in
// this client attaches.
func KVErr(err error) rfc5424.SDParam {
	return KV("error", err)
}
