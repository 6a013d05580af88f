/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"go.etcd.io/bbolt"
)

// ListEntry is a file's mylist membership and view-state, keyed by the
// unique FileID it belongs to.
type ListEntry struct {
	FileID   uint64 `json:"file_id"`
	ListID   int64  `json:"list_id"`
	Watched  bool   `json:"watched"`
	Deleted  bool   `json:"deleted"`
	ViewedAt int64  `json:"viewed_at"`
}

// ListEntries is the list-entry repository.
type ListEntries struct{ s *Store }

func (s *Store) ListEntries() *ListEntries { return &ListEntries{s: s} }

// Upsert writes entry, replacing any prior row for the same FileID.
func (r *ListEntries) Upsert(entry ListEntry) error {
	return r.s.db.Update(func(tx *bbolt.Tx) error {
		data, err := marshal(entry)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketListEntries).Put(idKey(entry.FileID), data)
	})
}

// Get fetches the ListEntry for fileID.
func (r *ListEntries) Get(fileID uint64) (ListEntry, error) {
	var entry ListEntry
	err := r.s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketListEntries).Get(idKey(fileID))
		if data == nil {
			return ErrNotFound
		}
		return unmarshal(data, &entry)
	})
	return entry, err
}
