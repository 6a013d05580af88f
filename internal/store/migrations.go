/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"encoding/binary"
	"sort"

	"go.etcd.io/bbolt"
)

// migration applies schema change N, each running inside the single
// transaction runMigrations opens for it. Migrations only ever move
// forward; there is no down path.
type migration struct {
	version int
	apply   func(tx *bbolt.Tx) error
}

var migrations = []migration{
	{version: 1, apply: migrateV1},
	{version: 2, apply: migrateV2},
	{version: 3, apply: migrateV3},
	{version: 4, apply: migrateV4},
}

// runMigrations applies every migration newer than the stored version, in
// order, each in its own transaction with the recorded version advanced
// atomically on success.
func runMigrations(s *Store) error {
	current, err := s.SchemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.db.Update(func(tx *bbolt.Tx) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			return setSchemaVersion(tx, m.version)
		}); err != nil {
			return err
		}
	}
	return nil
}

func setSchemaVersion(tx *bbolt.Tx, v int) error {
	b := tx.Bucket(bucketSchemaVersion)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return b.Put([]byte("version"), buf)
}

// migrateV1 is a no-op: Open already creates every bucket this version
// needs before migrations run. It exists so the version counter starts at
// 1 rather than treating "all buckets present" as an unversioned state.
func migrateV1(tx *bbolt.Tx) error {
	return nil
}

// migrateV2 backfills files_by_path from any files rows a pre-index build
// might already hold (a fresh database has none, so this is a no-op in
// practice but keeps the migration idempotent on a partially-migrated
// file).
func migrateV2(tx *bbolt.Tx) error {
	files := tx.Bucket(bucketFiles)
	byPath := tx.Bucket(bucketFilesByPath)
	return files.ForEach(func(k, v []byte) error {
		var f FileRecord
		if err := unmarshal(v, &f); err != nil {
			return err
		}
		return byPath.Put([]byte(f.Path), k)
	})
}

// migrateV3 backfills sync_status_index from any sync_queue rows already
// present.
func migrateV3(tx *bbolt.Tx) error {
	queue := tx.Bucket(bucketSyncQueue)
	statusIdx := tx.Bucket(bucketSyncStatusIndex)
	return queue.ForEach(func(k, v []byte) error {
		var item SyncQueueItem
		if err := unmarshal(v, &item); err != nil {
			return err
		}
		return statusIdx.Put(statusIndexKey(string(item.Status), item.ID), nil)
	})
}

// migrateV4 builds bucketSyncPendingIndex, enforcing "at most one pending
// row per (file_id, operation)" going forward. Every pending (file_id,
// operation) group gets an index entry, including singletons with no
// pre-existing duplicate: a database that never had this index before
// must come out of the migration fully indexed, or a later Enqueue for an
// already-pending pair would be silently accepted instead of rejected.
// Any pre-existing duplicates are collapsed to the smallest id first, so
// the index never starts out violated.
func migrateV4(tx *bbolt.Tx) error {
	queue := tx.Bucket(bucketSyncQueue)
	statusIdx := tx.Bucket(bucketSyncStatusIndex)
	pendingIdx := tx.Bucket(bucketSyncPendingIndex)

	groups := map[string][]SyncQueueItem{}
	if err := queue.ForEach(func(k, v []byte) error {
		var item SyncQueueItem
		if err := unmarshal(v, &item); err != nil {
			return err
		}
		if item.Status != StatusPending {
			return nil
		}
		key := pendingKey(item.FileID, item.Operation)
		groups[key] = append(groups[key], item)
		return nil
	}); err != nil {
		return err
	}

	for key, items := range groups {
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		keep := items[0]
		for _, dup := range items[1:] {
			if err := queue.Delete(idKey(dup.ID)); err != nil {
				return err
			}
			if err := statusIdx.Delete(statusIndexKey(string(dup.Status), dup.ID)); err != nil {
				return err
			}
		}
		if err := pendingIdx.Put([]byte(key), idKey(keep.ID)); err != nil {
			return err
		}
	}
	return nil
}

func pendingKey(fileID uint64, operation string) string {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, fileID)
	return string(buf) + "\x00" + operation
}

func statusIndexKey(status string, id uint64) []byte {
	k := append([]byte(status), 0x00)
	return append(k, idKey(id)...)
}
