/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"sort"

	"go.etcd.io/bbolt"

	"github.com/anidbtools/anidbcore/internal/coreerr"
)

// SyncQueueStatus is a SyncQueueItem's lifecycle state.
type SyncQueueStatus string

const (
	StatusPending    SyncQueueStatus = "pending"
	StatusInProgress SyncQueueStatus = "in_progress"
	StatusCompleted  SyncQueueStatus = "completed"
	StatusFailed     SyncQueueStatus = "failed"
)

// SyncQueueItem is one pending mutation to replay against the metadata
// service (a mylist add, a watched-state update, and so on).
type SyncQueueItem struct {
	ID            uint64          `json:"id"`
	FileID        uint64          `json:"file_id"`
	Operation     string          `json:"operation"`
	Priority      int             `json:"priority"`
	Status        SyncQueueStatus `json:"status"`
	RetryCount    int             `json:"retry_count"`
	MaxRetries    int             `json:"max_retries"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	ScheduledAt   int64           `json:"scheduled_at"`
	LastAttemptAt int64           `json:"last_attempt_at,omitempty"`
}

// SyncQueue is the sync-queue repository.
type SyncQueue struct{ s *Store }

func (s *Store) SyncQueue() *SyncQueue { return &SyncQueue{s: s} }

// Enqueue inserts a single pending item, enforcing the partial unique
// index: at most one pending row per (file_id, operation).
func (q *SyncQueue) Enqueue(item SyncQueueItem) (SyncQueueItem, error) {
	var out SyncQueueItem
	err := q.s.db.Update(func(tx *bbolt.Tx) error {
		if item.Status == StatusPending {
			key := []byte(pendingKey(item.FileID, item.Operation))
			if tx.Bucket(bucketSyncPendingIndex).Get(key) != nil {
				return ErrAlreadyExists
			}
		}
		id, err := q.s.nextID(tx, bucketSyncQueue)
		if err != nil {
			return err
		}
		item.ID = id
		if err := putSyncItem(tx, item); err != nil {
			return err
		}
		out = item
		return nil
	})
	return out, err
}

// BatchEnqueue inserts every item or none at all: a single bbolt
// transaction already gives this all-or-nothing behavior, so a duplicate
// pending (file_id, operation) anywhere in the batch aborts the whole
// write.
func (q *SyncQueue) BatchEnqueue(items []SyncQueueItem) ([]SyncQueueItem, error) {
	out := make([]SyncQueueItem, len(items))
	err := q.s.db.Update(func(tx *bbolt.Tx) error {
		seen := map[string]bool{}
		for _, item := range items {
			if item.Status == StatusPending {
				key := pendingKey(item.FileID, item.Operation)
				if seen[key] {
					return coreerr.NewValidationError("operation", item.Operation, ErrAlreadyExists)
				}
				if tx.Bucket(bucketSyncPendingIndex).Get([]byte(key)) != nil {
					return ErrAlreadyExists
				}
				seen[key] = true
			}
		}
		for i, item := range items {
			id, err := q.s.nextID(tx, bucketSyncQueue)
			if err != nil {
				return err
			}
			item.ID = id
			if err := putSyncItem(tx, item); err != nil {
				return err
			}
			out[i] = item
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// putSyncItem writes item to the primary bucket and keeps both secondary
// indexes in sync with its status.
func putSyncItem(tx *bbolt.Tx, item SyncQueueItem) error {
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
	if item.Status == StatusPending {
		return tx.Bucket(bucketSyncPendingIndex).Put([]byte(pendingKey(item.FileID, item.Operation)), idKey(item.ID))
	}
	return nil
}

// transitionSyncItem replaces prior's row with next, removing prior's
// status-index and pending-index entries first so a status change never
// leaves a stale index entry behind.
func transitionSyncItem(tx *bbolt.Tx, prior, next SyncQueueItem) error {
	if err := tx.Bucket(bucketSyncStatusIndex).Delete(statusIndexKey(string(prior.Status), prior.ID)); err != nil {
		return err
	}
	if prior.Status == StatusPending {
		if err := tx.Bucket(bucketSyncPendingIndex).Delete([]byte(pendingKey(prior.FileID, prior.Operation))); err != nil {
			return err
		}
	}
	return putSyncItem(tx, next)
}

// Get fetches a SyncQueueItem by id.
func (q *SyncQueue) Get(id uint64) (SyncQueueItem, error) {
	var item SyncQueueItem
	err := q.s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSyncQueue).Get(idKey(id))
		if data == nil {
			return ErrNotFound
		}
		return unmarshal(data, &item)
	})
	return item, err
}

// FindReady returns up to limit pending items with scheduled_at <= now,
// ordered by priority descending then scheduled_at ascending.
func (q *SyncQueue) FindReady(now int64, limit int) ([]SyncQueueItem, error) {
	var candidates []SyncQueueItem
	err := q.s.db.View(func(tx *bbolt.Tx) error {
		queue := tx.Bucket(bucketSyncQueue)
		c := tx.Bucket(bucketSyncStatusIndex).Cursor()
		prefix := append([]byte(StatusPending), 0x00)
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			id := idFromKey(k[len(prefix):])
			data := queue.Get(idKey(id))
			if data == nil {
				continue
			}
			var item SyncQueueItem
			if err := unmarshal(data, &item); err != nil {
				return err
			}
			if item.ScheduledAt <= now {
				candidates = append(candidates, item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ScheduledAt < candidates[j].ScheduledAt
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// MarkInProgress transitions item id from pending to in_progress.
func (q *SyncQueue) MarkInProgress(id uint64, attemptAt int64) error {
	return q.s.db.Update(func(tx *bbolt.Tx) error {
		prior, err := getSyncItemTx(tx, id)
		if err != nil {
			return err
		}
		next := prior
		next.Status = StatusInProgress
		next.LastAttemptAt = attemptAt
		return transitionSyncItem(tx, prior, next)
	})
}

// MarkCompleted transitions item id to completed.
func (q *SyncQueue) MarkCompleted(id uint64) error {
	return q.s.db.Update(func(tx *bbolt.Tx) error {
		prior, err := getSyncItemTx(tx, id)
		if err != nil {
			return err
		}
		next := prior
		next.Status = StatusCompleted
		next.ErrorMessage = ""
		return transitionSyncItem(tx, prior, next)
	})
}

// MarkFailed transitions item id to failed with message, unconditionally
// (used for permanent failures).
func (q *SyncQueue) MarkFailed(id uint64, message string) error {
	return q.s.db.Update(func(tx *bbolt.Tx) error {
		prior, err := getSyncItemTx(tx, id)
		if err != nil {
			return err
		}
		next := prior
		next.Status = StatusFailed
		next.ErrorMessage = message
		return transitionSyncItem(tx, prior, next)
	})
}

// RetryOrFail increments retry_count and either reschedules item id to
// pending at nextScheduledAt (if retries remain) or marks it failed.
func (q *SyncQueue) RetryOrFail(id uint64, message string, nextScheduledAt int64) error {
	return q.s.db.Update(func(tx *bbolt.Tx) error {
		prior, err := getSyncItemTx(tx, id)
		if err != nil {
			return err
		}
		next := prior
		next.RetryCount++
		next.ErrorMessage = message
		if next.RetryCount < next.MaxRetries {
			next.Status = StatusPending
			next.ScheduledAt = nextScheduledAt
		} else {
			next.Status = StatusFailed
		}
		return transitionSyncItem(tx, prior, next)
	})
}

func getSyncItemTx(tx *bbolt.Tx, id uint64) (SyncQueueItem, error) {
	var item SyncQueueItem
	data := tx.Bucket(bucketSyncQueue).Get(idKey(id))
	if data == nil {
		return item, ErrNotFound
	}
	err := unmarshal(data, &item)
	return item, err
}
