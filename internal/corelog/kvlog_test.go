/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package corelog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithTagAttachesTagToEveryLine(t *testing.T) {
	l, path := newFileLogger(t)
	tagged := WithTag(l, "AUTH")
	require.NoError(t, tagged.Warn("retrying after transient failure", KV("attempt", 1)))
	require.NoError(t, l.Close())

	s := readLog(t, path)
	require.Contains(t, s, `tag="AUTH"`)
	require.Contains(t, s, `attempt="1"`)
}

func TestWithFileAttachesPathToEveryLine(t *testing.T) {
	l, path := newFileLogger(t)
	scoped := WithFile(l, "/anime/a.mkv")
	require.NoError(t, scoped.Error("hash mismatch", KVErr(ErrInvalidLevel)))
	require.NoError(t, l.Close())

	s := readLog(t, path)
	require.Contains(t, s, `path="/anime/a.mkv"`)
}

func TestAddKVAppendsToExistingFields(t *testing.T) {
	l, path := newFileLogger(t)
	scoped := NewLoggerWithKV(l, KV("file_id", 7))
	scoped.AddKV(KV("operation", "mylist_add"))
	require.NoError(t, scoped.Warn("mark failed failed"))
	require.NoError(t, l.Close())

	s := readLog(t, path)
	require.Contains(t, s, `file_id="7"`)
	require.Contains(t, s, `operation="mylist_add"`)
}
