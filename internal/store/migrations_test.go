/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

// seedLegacyPendingRow writes a pending sync_queue row plus its status
// index entry directly, bypassing Enqueue, and rolls the schema version
// back to 3. This reproduces a database that predates
// bucketSyncPendingIndex: the row exists and is pending, but no partial
// unique index entry was ever created for it.
func seedLegacyPendingRow(t *testing.T, path string, item SyncQueueItem) {
	t.Helper()
	db, err := bbolt.Open(path, dbOpenMode, nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		id, err := tx.Bucket(bucketSyncQueue).NextSequence()
		if err != nil {
			return err
		}
		item.ID = id
		data, err := marshal(item)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketSyncQueue).Put(idKey(item.ID), data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketSyncStatusIndex).Put(statusIndexKey(string(item.Status), item.ID), nil); err != nil {
			return err
		}
		// Deliberately no bucketSyncPendingIndex entry: that's the bucket
		// migrateV4 is responsible for populating.
		return setSchemaVersion(tx, 3)
	}))
}

func TestMigrateV4IndexesSingletonPendingRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	openAndCloseTestStore(t, path)

	seedLegacyPendingRow(t, path, SyncQueueItem{
		FileID: 42, Operation: "mylistadd", Status: StatusPending, MaxRetries: 3,
	})

	s2, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.SchemaVersion()
	require.NoError(t, err)
	require.Equal(t, 4, v)

	// The legacy row had no duplicate, so the old buggy migration skipped
	// it entirely; a later Enqueue for the same pair must still be
	// rejected now that the index is supposed to be authoritative.
	_, err = s2.SyncQueue().Enqueue(SyncQueueItem{FileID: 42, Operation: "mylistadd", Status: StatusPending, MaxRetries: 3})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

// openAndCloseTestStore opens a fresh store (creating every bucket and
// bringing the schema to the latest version) and closes it immediately,
// leaving a real database file on disk for seedLegacyPendingRow to edit
// directly.
func openAndCloseTestStore(t *testing.T, path string) {
	t.Helper()
	s, err := Open(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
