/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"time"

	"go.etcd.io/bbolt"
)

// Identification is the cached metadata result for one (ed2k_digest, size)
// pair.
type Identification struct {
	Ed2kDigest    string `json:"ed2k_digest"`
	Size          int64  `json:"size"`
	AnimeID       *int64 `json:"anime_id,omitempty"`
	EpisodeID     *int64 `json:"episode_id,omitempty"`
	GroupID       *int64 `json:"group_id,omitempty"`
	Titles        string `json:"titles"`
	EpisodeNumber string `json:"episode_number"`
	Container     string `json:"container"`
	Codec         string `json:"codec"`
	Source        string `json:"source"`
	Quality       string `json:"quality"`
	CrcValid      *bool  `json:"crc_valid,omitempty"`
	MylistID      *int64 `json:"mylist_id,omitempty"`
	FetchedAt     int64  `json:"fetched_at"`
	ExpiresAt     *int64 `json:"expires_at,omitempty"`
}

// IsExpired reports whether now is past ExpiresAt; an Identification with
// no ExpiresAt never expires.
func (i Identification) IsExpired(now time.Time) bool {
	if i.ExpiresAt == nil {
		return false
	}
	return now.UnixMilli() > *i.ExpiresAt
}

func identificationKey(ed2kDigest string, size int64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(size >> (8 * (7 - i)))
	}
	return append([]byte(ed2kDigest+"\x00"), buf...)
}

// Identifications is the identification-cache repository.
type Identifications struct{ s *Store }

func (s *Store) Identifications() *Identifications { return &Identifications{s: s} }

// Upsert writes ident, replacing any prior entry for the same
// (ed2k_digest, size).
func (r *Identifications) Upsert(ident Identification) error {
	return r.s.db.Update(func(tx *bbolt.Tx) error {
		data, err := marshal(ident)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketIdentifications).Put(identificationKey(ident.Ed2kDigest, ident.Size), data)
	})
}

// Get fetches the cached Identification for (ed2kDigest, size), if any.
func (r *Identifications) Get(ed2kDigest string, size int64) (Identification, error) {
	var ident Identification
	err := r.s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketIdentifications).Get(identificationKey(ed2kDigest, size))
		if data == nil {
			return ErrNotFound
		}
		return unmarshal(data, &ident)
	})
	return ident, err
}

// GetFresh is like Get but also returns ErrNotFound if the cached entry
// has expired, so callers never have to check IsExpired themselves.
func (r *Identifications) GetFresh(ed2kDigest string, size int64, now time.Time) (Identification, error) {
	ident, err := r.Get(ed2kDigest, size)
	if err != nil {
		return Identification{}, err
	}
	if ident.IsExpired(now) {
		return Identification{}, ErrNotFound
	}
	return ident, nil
}
