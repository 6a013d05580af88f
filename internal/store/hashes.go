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

// HashRecord is one (file, algorithm) digest, keyed by the pair so a
// second Put for the same pair simply overwrites, which is the bucket's
// natural way of enforcing the (file_id, algorithm) uniqueness invariant.
type HashRecord struct {
	FileID     uint64 `json:"file_id"`
	Algorithm  string `json:"algorithm"`
	Digest     string `json:"digest"`
	DurationMs int64  `json:"duration_ms"`
}

func hashKey(fileID uint64, algorithm string) []byte {
	return append(idKey(fileID), []byte(algorithm)...)
}

// Hashes is the hash repository.
type Hashes struct{ s *Store }

func (s *Store) Hashes() *Hashes { return &Hashes{s: s} }

// Upsert writes rec, replacing any prior digest for the same
// (file_id, algorithm).
func (h *Hashes) Upsert(rec HashRecord) error {
	return h.s.db.Update(func(tx *bbolt.Tx) error {
		data, err := marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketHashes).Put(hashKey(rec.FileID, rec.Algorithm), data)
	})
}

// Get fetches the digest for (fileID, algorithm).
func (h *Hashes) Get(fileID uint64, algorithm string) (HashRecord, error) {
	var rec HashRecord
	err := h.s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketHashes).Get(hashKey(fileID, algorithm))
		if data == nil {
			return ErrNotFound
		}
		return unmarshal(data, &rec)
	})
	return rec, err
}

// ForFile returns every Hash row for fileID.
func (h *Hashes) ForFile(fileID uint64) ([]HashRecord, error) {
	var out []HashRecord
	prefix := idKey(fileID)
	err := h.s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketHashes).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var rec HashRecord
			if err := unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// deleteHashesForFile removes every Hash row for fileID, called from
// Files.Delete's cascade.
func deleteHashesForFile(tx *bbolt.Tx, fileID uint64) error {
	b := tx.Bucket(bucketHashes)
	prefix := idKey(fileID)
	c := b.Cursor()
	var keys [][]byte
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
