/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package client implements the protocol state machine: connecting,
// authenticating, issuing commands with a background receiver goroutine
// matching responses to the request that is currently in flight, and
// retrying transient failures with exponential backoff, all subject to
// package ratelimit. New takes the *corelog.Logger every method logs
// through, mirroring the teacher's IngestConnection, never a package-level
// global.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anidbtools/anidbcore/internal/coreerr"
	"github.com/anidbtools/anidbcore/internal/corelog"
	"github.com/anidbtools/anidbcore/internal/protocol/codec"
	"github.com/anidbtools/anidbcore/internal/protocol/ratelimit"
	"github.com/anidbtools/anidbcore/internal/protocol/transport"
)

// ErrAuthenticationFailed wraps any non-2xx AUTH response; callers use
// errors.Is to distinguish a rejected login from a transport failure.
var ErrAuthenticationFailed = errors.New("client: authentication failed")

// ProtocolVersion is the fixed protocol version the client advertises in
// AUTH.
const ProtocolVersion = "3"

// DefaultRequestTimeout bounds how long a caller waits for a single
// command's response.
const DefaultRequestTimeout = 30 * time.Second

// MaxRetries and the backoff schedule below implement §4.7's
// retry/backoff: retryable codes and network timeouts are retried up to
// three times, waiting 1s, 2s, 4s between attempts (each wait still
// subject to the rate limiter on the next send). The doubling shape
// mirrors the teacher's own backoff(curr, max) helper in muxer.go.
const MaxRetries = 3

var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Credentials are the stored username/password used to (re-)authenticate.
type Credentials struct {
	Username string
	Password string
}

// Identity names this client to the metadata service.
type Identity struct {
	ClientName    string
	ClientVersion string
}

// Client drives one UDP connection through its full state machine. The
// zero value is not usable; construct with New.
type Client struct {
	mu    sync.Mutex
	state State

	tr      *transport.Transport
	limiter *ratelimit.Limiter
	log     *corelog.Logger

	creds    Credentials
	identity Identity
	session  string

	pendingMu   sync.Mutex
	pending     chan rawResponse // non-nil while a request is in flight
	pendingAuth bool             // whether the in-flight request expects an AUTH-shaped header

	recvDone chan struct{}
	recvWG   sync.WaitGroup

	droppedResponses int64
}

// rawResponse carries a decoded response or the decode error back to the
// blocked sender; a response that fails to decode still completes the
// waiting call rather than leaving it to time out.
type rawResponse struct {
	resp codec.Response
	err  error
}

// New constructs a Client with the given identity and credentials. The
// socket is not opened until Connect.
func New(identity Identity, creds Credentials, log *corelog.Logger) *Client {
	if log == nil {
		log = corelog.NewDiscardLogger()
	}
	return &Client{
		state:    Disconnected,
		limiter:  ratelimit.New(),
		log:      log,
		creds:    creds,
		identity: identity,
	}
}

// Connect opens the UDP socket and starts the background receiver.
func (c *Client) Connect(addr string) error {
	c.mu.Lock()
	c.transition(Connecting)
	c.mu.Unlock()

	tr, err := transport.Dial(addr)
	if err != nil {
		c.mu.Lock()
		c.transition(Failed)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.tr = tr
	c.transition(Connected)
	c.mu.Unlock()

	c.recvDone = make(chan struct{})
	c.recvWG.Add(1)
	go c.receiveLoop()
	return nil
}

// Disconnect sends LOGOUT best-effort, stops the receiver, and closes the
// socket.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state == Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.transition(Disconnecting)
	authenticated := c.session != ""
	tr := c.tr
	c.mu.Unlock()

	if authenticated && tr != nil {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultRequestTimeout)
		_, _ = c.Send(ctx, codec.Command{Name: "LOGOUT", RequiresAuth: true})
		cancel()
	}

	if c.recvDone != nil {
		close(c.recvDone)
		c.recvWG.Wait()
	}
	var closeErr error
	if tr != nil {
		closeErr = tr.Close()
	}

	c.mu.Lock()
	c.session = ""
	c.transition(Disconnected)
	c.mu.Unlock()
	return closeErr
}

// Authenticate issues AUTH with the stored credentials and, on success,
// transitions Connected -> Authenticated, storing the session key.
func (c *Client) Authenticate(ctx context.Context) error {
	cmd := codec.Command{
		Name: "AUTH",
		Params: []codec.Param{
			{Key: "user", Value: c.creds.Username},
			{Key: "pass", Value: c.creds.Password},
			{Key: "protover", Value: ProtocolVersion},
			{Key: "client", Value: c.identity.ClientName},
			{Key: "clientver", Value: c.identity.ClientVersion},
			{Key: "enc", Value: "utf8"},
		},
	}

	resp, err := c.sendAuth(ctx, cmd)
	if err != nil {
		return err
	}
	if resp.Code < 200 || resp.Code >= 300 {
		return fmt.Errorf("%w: code %d: %s", ErrAuthenticationFailed, resp.Code, resp.Message)
	}

	c.mu.Lock()
	c.session = resp.Session
	c.transition(Authenticated)
	c.mu.Unlock()
	return nil
}

// Send issues cmd, retrying transient failures with backoff per §4.7 and
// transparently re-authenticating once on an expired-session response.
// A zero ctx deadline gets DefaultRequestTimeout applied by the caller;
// Send itself enforces no default, it only respects ctx.
func (c *Client) Send(ctx context.Context, cmd codec.Command) (codec.Response, error) {
	c.mu.Lock()
	cmd.Session = c.session
	c.mu.Unlock()

	rlog := corelog.WithTag(c.log, cmd.Name)

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffSchedule[attempt-1]
			rlog.Warn("retrying after transient failure",
				corelog.KV("attempt", attempt), corelog.KV("wait", wait.String()), corelog.KVErr(lastErr))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return codec.Response{}, ctx.Err()
			}
		}

		resp, err := c.sendOnce(ctx, cmd, false)
		if err == nil {
			switch {
			case isExpiredSession(resp.Code):
				if reauthErr := c.reauthenticateAndRewrite(ctx, &cmd); reauthErr != nil {
					return codec.Response{}, reauthErr
				}
				resp, err = c.sendOnce(ctx, cmd, false)
				if err == nil {
					if isRetryableCode(resp.Code) {
						lastErr = coreerr.NewProtocolError(resp.Code, resp.Message, true)
						continue
					}
					if isPermanentErrorCode(resp.Code) {
						return resp, classifyResponseError(resp)
					}
					return resp, nil
				}
			case isRetryableCode(resp.Code):
				lastErr = coreerr.NewProtocolError(resp.Code, resp.Message, true)
				continue
			case isPermanentErrorCode(resp.Code):
				return resp, classifyResponseError(resp)
			default:
				return resp, nil
			}
		}

		if err != nil {
			if !isRetryableErr(err) {
				return codec.Response{}, err
			}
			lastErr = err
			continue
		}
		return resp, nil
	}
	return codec.Response{}, lastErr
}

// sendAuth is like sendOnce but decodes the AUTH-shaped header.
func (c *Client) sendAuth(ctx context.Context, cmd codec.Command) (codec.Response, error) {
	return c.sendOnce(ctx, cmd, true)
}

func (c *Client) sendOnce(ctx context.Context, cmd codec.Command, isAuth bool) (codec.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return codec.Response{}, coreerr.NewProtocolErrorWrap(err)
	}

	wire, err := codec.Encode(cmd)
	if err != nil {
		return codec.Response{}, coreerr.Wrap("client.Send", err)
	}

	ch := make(chan rawResponse, 1)
	c.pendingMu.Lock()
	c.pending = ch
	c.pendingAuth = isAuth
	c.pendingMu.Unlock()

	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()
	if tr == nil {
		return codec.Response{}, coreerr.NewProtocolErrorWrap(coreerr.ErrNetworkOffline)
	}

	if err := tr.Send([]byte(wire)); err != nil {
		return codec.Response{}, err
	}

	select {
	case rr := <-ch:
		return rr.resp, rr.err
	case <-ctx.Done():
		return codec.Response{}, ctx.Err()
	}
}

// reauthenticateAndRewrite transitions Authenticated -> Connected if the
// client had reached Authenticated (a session it held going stale), then
// re-authenticates with the stored credentials and rewrites cmd's session
// so the caller's single retry uses the fresh token. A command that hits
// "LOGIN FIRST" without the client ever having authenticated stays
// Connected; there is no prior Authenticated state to fall back from.
func (c *Client) reauthenticateAndRewrite(ctx context.Context, cmd *codec.Command) error {
	c.mu.Lock()
	if c.state == Authenticated {
		c.transition(Connected)
	}
	c.mu.Unlock()

	if err := c.Authenticate(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	cmd.Session = c.session
	c.mu.Unlock()
	return nil
}

// receiveLoop decodes datagrams and completes the single in-flight
// request's channel; a datagram arriving with nothing pending is dropped
// with a counted warning, since this client issues at most one request
// at a time (the rate limiter serializes every send).
func (c *Client) receiveLoop() {
	defer c.recvWG.Done()
	for {
		select {
		case <-c.recvDone:
			return
		default:
		}

		raw, err := c.tr.Recv()
		if err != nil {
			select {
			case <-c.recvDone:
				return
			default:
			}
			continue
		}

		c.pendingMu.Lock()
		ch := c.pending
		isAuth := c.pendingAuth
		c.pending = nil
		c.pendingMu.Unlock()

		if ch == nil {
			c.log.Warn("dropping unmatched response", corelog.KV("bytes", len(raw)))
			atomic.AddInt64(&c.droppedResponses, 1)
			continue
		}

		resp, decErr := codec.Decode(string(raw), isAuth)
		ch <- rawResponse{resp: resp, err: decErr}
	}
}

// DroppedResponses returns the count of datagrams received with no
// matching in-flight request.
func (c *Client) DroppedResponses() int64 {
	return atomic.LoadInt64(&c.droppedResponses)
}

func isRetryableCode(code int) bool {
	return (code >= 500 && code <= 504) || (code >= 600 && code <= 604)
}

// isPermanentErrorCode reports whether code is a genuine failure the caller
// should see as an error rather than a response to interpret. Per the wire
// protocol, 2xx is success and 3xx is informational (NO SUCH FILE and
// similar codes a caller inspects directly); only 5xx/6xx codes outside the
// retryable bands represent a server-side failure with nothing left to do.
func isPermanentErrorCode(code int) bool {
	return code >= 500 && !isRetryableCode(code)
}

// expiredSessionCode is the response code indicating the session token is
// no longer valid ("501 LOGIN FIRST") and must be refreshed via
// re-authentication.
const expiredSessionCode = 501

func isExpiredSession(code int) bool {
	return code == expiredSessionCode
}

func isRetryableErr(err error) bool {
	var pe *coreerr.ProtocolError
	if asProtocolError(err, &pe) {
		return pe.Transient
	}
	return true // network-level errors (timeouts, offline) are retried
}

func asProtocolError(err error, target **coreerr.ProtocolError) bool {
	pe, ok := err.(*coreerr.ProtocolError)
	if ok {
		*target = pe
	}
	return ok
}

func classifyResponseError(resp codec.Response) error {
	return coreerr.NewProtocolError(resp.Code, resp.Message, false)
}
