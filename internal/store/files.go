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

// FileStatus is a File row's lifecycle state.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusProcessed  FileStatus = "processed"
	FileStatusError      FileStatus = "error"
	FileStatusDeleted    FileStatus = "deleted"
)

// FileRecord is one tracked filesystem path.
type FileRecord struct {
	ID           uint64     `json:"id"`
	Path         string     `json:"path"`
	Size         int64      `json:"size"`
	ModifiedTime int64      `json:"modified_time"`
	Status       FileStatus `json:"status"`
}

// Files is the file repository.
type Files struct{ s *Store }

func (s *Store) Files() *Files { return &Files{s: s} }

// Create inserts a new File row. Path must be unique; ErrAlreadyExists is
// returned otherwise.
func (f *Files) Create(rec FileRecord) (FileRecord, error) {
	var out FileRecord
	err := f.s.db.Update(func(tx *bbolt.Tx) error {
		byPath := tx.Bucket(bucketFilesByPath)
		if byPath.Get([]byte(rec.Path)) != nil {
			return ErrAlreadyExists
		}

		id, err := f.s.nextID(tx, bucketFiles)
		if err != nil {
			return err
		}
		rec.ID = id

		data, err := marshal(rec)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketFiles).Put(idKey(id), data); err != nil {
			return err
		}
		if err := byPath.Put([]byte(rec.Path), idKey(id)); err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

// Get fetches a File by id.
func (f *Files) Get(id uint64) (FileRecord, error) {
	var rec FileRecord
	err := f.s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get(idKey(id))
		if data == nil {
			return ErrNotFound
		}
		return unmarshal(data, &rec)
	})
	return rec, err
}

// GetByPath fetches a File by its unique path.
func (f *Files) GetByPath(path string) (FileRecord, error) {
	var rec FileRecord
	err := f.s.db.View(func(tx *bbolt.Tx) error {
		idBytes := tx.Bucket(bucketFilesByPath).Get([]byte(path))
		if idBytes == nil {
			return ErrNotFound
		}
		data := tx.Bucket(bucketFiles).Get(idBytes)
		if data == nil {
			return ErrNotFound
		}
		return unmarshal(data, &rec)
	})
	return rec, err
}

// Update overwrites an existing File row in place.
func (f *Files) Update(rec FileRecord) error {
	return f.s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketFiles).Get(idKey(rec.ID)) == nil {
			return ErrNotFound
		}
		data, err := marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketFiles).Put(idKey(rec.ID), data)
	})
}

// Delete cascades to every Hash and ListEntry row referencing file id, per
// the File entity's cascading-delete invariant.
func (f *Files) Delete(id uint64) error {
	return f.s.db.Update(func(tx *bbolt.Tx) error {
		files := tx.Bucket(bucketFiles)
		data := files.Get(idKey(id))
		if data == nil {
			return ErrNotFound
		}
		var rec FileRecord
		if err := unmarshal(data, &rec); err != nil {
			return err
		}

		if err := tx.Bucket(bucketFilesByPath).Delete([]byte(rec.Path)); err != nil {
			return err
		}
		if err := files.Delete(idKey(id)); err != nil {
			return err
		}

		if err := deleteHashesForFile(tx, id); err != nil {
			return err
		}
		return tx.Bucket(bucketListEntries).Delete(idKey(id))
	})
}
