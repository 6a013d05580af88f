/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package syncqueue

import (
	"strconv"

	"github.com/anidbtools/anidbcore/internal/coreerr"
	"github.com/anidbtools/anidbcore/internal/hashing"
	"github.com/anidbtools/anidbcore/internal/protocol/codec"
	"github.com/anidbtools/anidbcore/internal/store"
)

// Mylist operation names, matched against SyncQueueItem.Operation.
const (
	OpMylistAdd = "mylist_add"
	OpMylistDel = "mylist_del"
)

// LookupCommandBuilder implements CommandBuilder for the two list
// mutations the wire protocol exposes: MYLISTADD and MYLISTDEL. It
// resolves FileID to the File and Hash rows the wire protocol keys on
// (ed2k digest and size, not the internal file id) and writes the
// service's response back onto the ListEntry row.
type LookupCommandBuilder struct {
	Store *store.Store
}

// Build resolves item.FileID's ed2k digest and size and issues the
// matching MYLISTADD/MYLISTDEL command.
func (b LookupCommandBuilder) Build(item store.SyncQueueItem) (codec.Command, error) {
	file, err := b.Store.Files().Get(item.FileID)
	if err != nil {
		return codec.Command{}, err
	}
	hashes, err := b.Store.Hashes().ForFile(item.FileID)
	if err != nil {
		return codec.Command{}, err
	}
	var ed2k string
	for _, h := range hashes {
		if h.Algorithm == string(hashing.ChunkedContentHash) {
			ed2k = h.Digest
			break
		}
	}
	if ed2k == "" {
		return codec.Command{}, coreerr.NewValidationError("ed2k", "", coreerr.ErrMissingField)
	}

	params := []codec.Param{
		{Key: "size", Value: strconv.FormatInt(file.Size, 10)},
		{Key: "ed2k", Value: ed2k},
	}

	switch item.Operation {
	case OpMylistAdd:
		return codec.Command{Name: "MYLISTADD", RequiresAuth: true, Params: params}, nil
	case OpMylistDel:
		return codec.Command{Name: "MYLISTDEL", RequiresAuth: true, Params: params}, nil
	default:
		return codec.Command{}, coreerr.NewValidationError("operation", item.Operation, coreerr.ErrMissingField)
	}
}

// ApplyOnSuccess records the mylist id the service returned (MYLISTADD
// only; MYLISTDEL has nothing to record) onto the file's ListEntry row.
func (b LookupCommandBuilder) ApplyOnSuccess(s *store.Store, item store.SyncQueueItem, resp codec.Response) error {
	if item.Operation != OpMylistAdd || len(resp.Rows) == 0 || len(resp.Rows[0]) == 0 {
		return nil
	}
	mylistID, err := strconv.ParseInt(resp.Rows[0][0], 10, 64)
	if err != nil {
		return nil
	}
	entry, err := s.ListEntries().Get(item.FileID)
	if err != nil {
		entry = store.ListEntry{FileID: item.FileID}
	}
	entry.ListID = mylistID
	return s.ListEntries().Upsert(entry)
}
