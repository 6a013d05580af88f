/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package store persists files, hashes, identifications, list entries,
// and the sync queue in a single embedded go.etcd.io/bbolt database, one
// bucket per entity plus a handful of secondary-index buckets standing in
// for the unique constraints a relational store would enforce natively.
// The bolt.Open/CreateBucketIfNotExists/View/Update shape follows the
// ingest cache's own boltdb usage; this package just has more than one
// bucket and a real migration table on top of it.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/anidbtools/anidbcore/internal/coreerr"
)

var (
	ErrNotFound      = errors.New("store: record not found")
	ErrAlreadyExists = errors.New("store: record already exists")
	ErrDBTimeout     = errors.New("store: failed to acquire database lock")
)

var (
	bucketFiles            = []byte("files")
	bucketFilesByPath      = []byte("files_by_path")
	bucketHashes           = []byte("hashes")
	bucketIdentifications  = []byte("identifications")
	bucketListEntries      = []byte("list_entries")
	bucketSyncQueue        = []byte("sync_queue")
	bucketSyncStatusIndex  = []byte("sync_status_index")
	bucketSyncPendingIndex = []byte("sync_pending_index")
	bucketSchemaVersion    = []byte("schema_version")
)

var allBuckets = [][]byte{
	bucketFiles, bucketFilesByPath, bucketHashes, bucketIdentifications,
	bucketListEntries, bucketSyncQueue, bucketSyncStatusIndex,
	bucketSyncPendingIndex, bucketSchemaVersion,
}

const dbOpenMode = 0660
const dbTimeout = 1 * time.Second

// Config configures the on-disk database.
type Config struct {
	Path string
}

// Store wraps one bbolt database. mtx is not locked by any method; bbolt
// itself serializes writers, sequence assignment included.
type Store struct {
	mtx *sync.Mutex
	db  *bbolt.DB
}

// Open creates the database file (and parent buckets) if it does not
// exist and brings the schema up to the latest migration.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, coreerr.NewValidationError("path", cfg.Path, coreerr.ErrMissingField)
	}

	db, err := bbolt.Open(cfg.Path, os.FileMode(dbOpenMode), &bbolt.Options{Timeout: dbTimeout})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, ErrDBTimeout
		}
		return nil, coreerr.NewIoError(cfg.Path, err)
	}

	s := &Store{mtx: &sync.Mutex{}, db: db}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, coreerr.NewInternalError("store.Open", err)
	}

	if err := runMigrations(s); err != nil {
		db.Close()
		return nil, coreerr.NewInternalError("store.Open", err)
	}

	return s, nil
}

// Close releases the database file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// nextID draws the next sequence value for bucket name, used as every
// entity's primary key.
func (s *Store) nextID(tx *bbolt.Tx, bucket []byte) (uint64, error) {
	b := tx.Bucket(bucket)
	return b.NextSequence()
}

func idKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func idFromKey(k []byte) uint64 {
	return binary.BigEndian.Uint64(k)
}

func marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// SchemaVersion returns the currently applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSchemaVersion)
		raw := b.Get([]byte("version"))
		if raw == nil {
			v = 0
			return nil
		}
		v = int(binary.BigEndian.Uint64(raw))
		return nil
	})
	return v, err
}
