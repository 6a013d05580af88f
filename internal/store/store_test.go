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
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenAppliesAllMigrations(t *testing.T) {
	s := openTestStore(t)
	v, err := s.SchemaVersion()
	require.NoError(t, err)
	require.Equal(t, 4, v)
}

func TestFileCreateRejectsDuplicatePath(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.Files().Create(FileRecord{Path: "/anime/a.mkv", Size: 100, Status: FileStatusPending})
	require.NoError(t, err)
	require.NotZero(t, rec.ID)

	_, err = s.Files().Create(FileRecord{Path: "/anime/a.mkv", Size: 200, Status: FileStatusPending})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestFileGetByPathRoundTrips(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.Files().Create(FileRecord{Path: "/anime/b.mkv", Size: 42, Status: FileStatusPending})
	require.NoError(t, err)

	got, err := s.Files().GetByPath("/anime/b.mkv")
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, int64(42), got.Size)
}

func TestFileDeleteCascadesHashesAndListEntry(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.Files().Create(FileRecord{Path: "/anime/c.mkv", Size: 1, Status: FileStatusPending})
	require.NoError(t, err)

	require.NoError(t, s.Hashes().Upsert(HashRecord{FileID: rec.ID, Algorithm: "crc32", Digest: "deadbeef"}))
	require.NoError(t, s.ListEntries().Upsert(ListEntry{FileID: rec.ID, ListID: 7}))

	require.NoError(t, s.Files().Delete(rec.ID))

	_, err = s.Files().Get(rec.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Hashes().Get(rec.ID, "crc32")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.ListEntries().Get(rec.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHashesForFileReturnsAllAlgorithms(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.Files().Create(FileRecord{Path: "/anime/d.mkv", Size: 1, Status: FileStatusPending})
	require.NoError(t, err)

	require.NoError(t, s.Hashes().Upsert(HashRecord{FileID: rec.ID, Algorithm: "crc32", Digest: "aaaa"}))
	require.NoError(t, s.Hashes().Upsert(HashRecord{FileID: rec.ID, Algorithm: "md128", Digest: "bbbb"}))

	all, err := s.Hashes().ForFile(rec.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestIdentificationGetFreshRejectsExpired(t *testing.T) {
	s := openTestStore(t)
	past := time.Now().Add(-time.Hour).UnixMilli()
	require.NoError(t, s.Identifications().Upsert(Identification{
		Ed2kDigest: "abc", Size: 10, ExpiresAt: &past,
	}))

	_, err := s.Identifications().GetFresh("abc", 10, time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIdentificationGetFreshAcceptsUnexpired(t *testing.T) {
	s := openTestStore(t)
	future := time.Now().Add(time.Hour).UnixMilli()
	require.NoError(t, s.Identifications().Upsert(Identification{
		Ed2kDigest: "abc", Size: 10, Titles: "Show", ExpiresAt: &future,
	}))

	got, err := s.Identifications().GetFresh("abc", 10, time.Now())
	require.NoError(t, err)
	require.Equal(t, "Show", got.Titles)
}

func TestSyncQueueEnqueueRejectsDuplicatePending(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SyncQueue().Enqueue(SyncQueueItem{FileID: 1, Operation: "mylistadd", Status: StatusPending, MaxRetries: 3})
	require.NoError(t, err)

	_, err = s.SyncQueue().Enqueue(SyncQueueItem{FileID: 1, Operation: "mylistadd", Status: StatusPending, MaxRetries: 3})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestSyncQueueFindReadyOrdersByPriorityThenSchedule(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UnixMilli()

	low, err := s.SyncQueue().Enqueue(SyncQueueItem{FileID: 1, Operation: "a", Status: StatusPending, Priority: 1, ScheduledAt: now - 1000, MaxRetries: 3})
	require.NoError(t, err)
	high, err := s.SyncQueue().Enqueue(SyncQueueItem{FileID: 2, Operation: "b", Status: StatusPending, Priority: 5, ScheduledAt: now, MaxRetries: 3})
	require.NoError(t, err)
	notYet, err := s.SyncQueue().Enqueue(SyncQueueItem{FileID: 3, Operation: "c", Status: StatusPending, Priority: 9, ScheduledAt: now + 100000, MaxRetries: 3})
	require.NoError(t, err)

	ready, err := s.SyncQueue().FindReady(now, 10)
	require.NoError(t, err)
	require.Len(t, ready, 2)
	require.Equal(t, high.ID, ready[0].ID)
	require.Equal(t, low.ID, ready[1].ID)

	for _, item := range ready {
		require.NotEqual(t, notYet.ID, item.ID)
	}
}

func TestSyncQueueRetryOrFailReschedulesUntilExhausted(t *testing.T) {
	s := openTestStore(t)
	item, err := s.SyncQueue().Enqueue(SyncQueueItem{FileID: 1, Operation: "a", Status: StatusPending, MaxRetries: 2})
	require.NoError(t, err)

	require.NoError(t, s.SyncQueue().MarkInProgress(item.ID, time.Now().UnixMilli()))
	require.NoError(t, s.SyncQueue().RetryOrFail(item.ID, "timeout", time.Now().Add(time.Minute).UnixMilli()))

	got, err := s.SyncQueue().Get(item.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.Equal(t, 1, got.RetryCount)

	require.NoError(t, s.SyncQueue().MarkInProgress(item.ID, time.Now().UnixMilli()))
	require.NoError(t, s.SyncQueue().RetryOrFail(item.ID, "timeout again", time.Now().Add(time.Minute).UnixMilli()))

	got, err = s.SyncQueue().Get(item.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, 2, got.RetryCount)
}

func TestSyncQueueBatchEnqueueAllOrNothing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SyncQueue().Enqueue(SyncQueueItem{FileID: 1, Operation: "a", Status: StatusPending, MaxRetries: 3})
	require.NoError(t, err)

	_, err = s.SyncQueue().BatchEnqueue([]SyncQueueItem{
		{FileID: 2, Operation: "b", Status: StatusPending, MaxRetries: 3},
		{FileID: 1, Operation: "a", Status: StatusPending, MaxRetries: 3}, // duplicate of the existing pending row
	})
	require.ErrorIs(t, err, ErrAlreadyExists)

	// The first item in the batch must not have been committed either.
	_, err = s.Files().GetByPath("nonexistent")
	require.ErrorIs(t, err, ErrNotFound)
	ready, err := s.SyncQueue().FindReady(time.Now().UnixMilli()+1, 10)
	require.NoError(t, err)
	require.Len(t, ready, 1)
}
