/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package identify composes the chunked content hash with a FILE query
// (and its optional ANIME/EPISODE/GROUP follow-ups) to resolve a local
// file against the metadata service, caching the result in the local
// store with a TTL so repeated identification of the same file never
// touches the network while the cache entry is fresh.
package identify

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/anidbtools/anidbcore/internal/coreerr"
	"github.com/anidbtools/anidbcore/internal/protocol/client"
	"github.com/anidbtools/anidbcore/internal/protocol/codec"
	"github.com/anidbtools/anidbcore/internal/store"
)

// Outcome tags how an identification attempt concluded.
type Outcome int

const (
	Identified Outcome = iota
	NotFound
	NetworkError
	AuthFailed
	Throttled
)

func (o Outcome) String() string {
	switch o {
	case Identified:
		return "identified"
	case NotFound:
		return "not_found"
	case NetworkError:
		return "network_error"
	case AuthFailed:
		return "auth_failed"
	case Throttled:
		return "throttled"
	}
	return "unknown"
}

// Result is the outcome of one identification attempt, carrying the
// resolved Identification only when Outcome is Identified.
type Result struct {
	Outcome        Outcome
	Identification store.Identification
}

// noSuchFileCode is the FILE response code meaning the server holds no
// record matching the supplied size+ed2k pair.
const noSuchFileCode = 320

// loginFirstCode is the response code surfacing past the client's own
// built-in single reauth retry: by the time identify sees it, a second
// expiry in a row means authentication itself is broken, not just stale.
const loginFirstCode = 501

// DefaultTTL is how long a cached Identification is trusted before a
// fresh FILE query is issued again.
const DefaultTTL = 7 * 24 * time.Hour

// Identifier resolves files against the metadata service through c,
// caching results in s.
type Identifier struct {
	c   *client.Client
	s   *store.Store
	ttl time.Duration
}

// New constructs an Identifier with the given cache TTL; a zero ttl
// selects DefaultTTL.
func New(c *client.Client, s *store.Store, ttl time.Duration) *Identifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Identifier{c: c, s: s, ttl: ttl}
}

// IdentifyFile resolves (ed2kDigest, size) to a FileIdentification,
// consulting the cache first and issuing FILE with fmask/amask only on a
// cache miss or expiry.
func (id *Identifier) IdentifyFile(ctx context.Context, ed2kDigest string, size int64, fmask, amask string) Result {
	if cached, err := id.s.Identifications().GetFresh(ed2kDigest, size, time.Now()); err == nil {
		return Result{Outcome: Identified, Identification: cached}
	}

	cmd := codec.Command{
		Name:         "FILE",
		RequiresAuth: true,
		Params: []codec.Param{
			{Key: "size", Value: strconv.FormatInt(size, 10)},
			{Key: "ed2k", Value: ed2kDigest},
			{Key: "fmask", Value: fmask},
			{Key: "amask", Value: amask},
		},
	}

	resp, err := id.c.Send(ctx, cmd)
	if err != nil {
		return Result{Outcome: classifyError(err)}
	}

	if resp.Code == noSuchFileCode {
		return Result{Outcome: NotFound}
	}
	if resp.Code < 200 || resp.Code >= 300 {
		return Result{Outcome: classifyResponseCode(resp.Code)}
	}

	ident := parseFileResponse(ed2kDigest, size, resp, id.ttl)
	if err := id.s.Identifications().Upsert(ident); err != nil {
		return Result{Outcome: NetworkError}
	}
	return Result{Outcome: Identified, Identification: ident}
}

// FetchAnime issues a follow-up ANIME query for aid with the given amask
// and returns the server's raw decoded rows; field-level parsing is left
// to the caller since ANIME's row shape depends entirely on amask.
func (id *Identifier) FetchAnime(ctx context.Context, aid int64, amask string) (codec.Response, error) {
	return id.c.Send(ctx, codec.Command{
		Name:         "ANIME",
		RequiresAuth: true,
		Params: []codec.Param{
			{Key: "aid", Value: strconv.FormatInt(aid, 10)},
			{Key: "amask", Value: amask},
		},
	})
}

// FetchEpisode issues a follow-up EPISODE query for eid.
func (id *Identifier) FetchEpisode(ctx context.Context, eid int64) (codec.Response, error) {
	return id.c.Send(ctx, codec.Command{
		Name:         "EPISODE",
		RequiresAuth: true,
		Params:       []codec.Param{{Key: "eid", Value: strconv.FormatInt(eid, 10)}},
	})
}

// FetchGroup issues a follow-up GROUP query for gid.
func (id *Identifier) FetchGroup(ctx context.Context, gid int64) (codec.Response, error) {
	return id.c.Send(ctx, codec.Command{
		Name:         "GROUP",
		RequiresAuth: true,
		Params:       []codec.Param{{Key: "gid", Value: strconv.FormatInt(gid, 10)}},
	})
}

// parseFileResponse maps a 220 FILE response's first row onto an
// Identification. Fields are taken positionally in fmask declaration
// order; a row shorter than expected leaves the trailing fields zero
// rather than erroring, since the server only ever sends what fmask asked
// for.
func parseFileResponse(ed2kDigest string, size int64, resp codec.Response, ttl time.Duration) store.Identification {
	var row []string
	if len(resp.Rows) > 0 {
		row = resp.Rows[0]
	}
	field := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	parseID := func(s string) *int64 {
		if s == "" {
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil
		}
		return &v
	}

	now := time.Now()
	expires := now.Add(ttl).UnixMilli()
	return store.Identification{
		Ed2kDigest:    ed2kDigest,
		Size:          size,
		AnimeID:       parseID(field(0)),
		EpisodeID:     parseID(field(1)),
		GroupID:       parseID(field(2)),
		Titles:        field(3),
		EpisodeNumber: field(4),
		Container:     field(5),
		Codec:         field(6),
		Source:        field(7),
		Quality:       field(8),
		FetchedAt:     now.UnixMilli(),
		ExpiresAt:     &expires,
	}
}

func classifyError(err error) Outcome {
	if errors.Is(err, client.ErrAuthenticationFailed) {
		return AuthFailed
	}
	var protoErr *coreerr.ProtocolError
	if errors.As(err, &protoErr) {
		if protoErr.Code == loginFirstCode {
			return AuthFailed
		}
		return NetworkError
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Throttled
	}
	return NetworkError
}

func classifyResponseCode(code int) Outcome {
	if code == loginFirstCode {
		return AuthFailed
	}
	if code >= 400 && code < 500 {
		return NotFound
	}
	return NetworkError
}
