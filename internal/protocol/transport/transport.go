/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package transport wraps a connected UDP socket, rejecting empty or
// oversize datagrams before they ever reach the wire, the same role
// net.ListenUDP/DialUDP plays for the ingest listeners elsewhere in the
// corpus, but as a client-side connected socket instead of a listener.
package transport

import (
	"net"
	"sync/atomic"

	"github.com/anidbtools/anidbcore/internal/coreerr"
)

// MaxPacketSize bounds a single datagram; it matches codec.MaxPacketSize
// but is restated here since transport does not depend on codec.
const MaxPacketSize = 1400

// Stats are cumulative counters tracked with atomics, read for status
// reporting only.
type Stats struct {
	PacketsSent int64
	BytesSent   int64
	PacketsRecv int64
	BytesRecv   int64
}

// Transport is a connected UDP socket to a single remote endpoint.
type Transport struct {
	conn *net.UDPConn

	sent     int64
	sentB    int64
	received int64
	recvB    int64
}

// Dial resolves addr and connects a UDP socket to it, with an ephemeral
// local bind.
func Dial(addr string) (*Transport, error) {
	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, coreerr.NewIoError(addr, err)
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, coreerr.NewIoError(addr, err)
	}
	return &Transport{conn: conn}, nil
}

// Send transmits data as a single datagram. It rejects an empty payload
// or one exceeding MaxPacketSize without attempting transmission.
func (t *Transport) Send(data []byte) error {
	if len(data) == 0 {
		return coreerr.NewValidationError("data", "", coreerr.ErrMissingField)
	}
	if len(data) > MaxPacketSize {
		return coreerr.NewValidationError("data", "", coreerr.ErrInvalidConfig)
	}
	n, err := t.conn.Write(data)
	if err != nil {
		return coreerr.NewIoError(t.peerString(), err)
	}
	atomic.AddInt64(&t.sent, 1)
	atomic.AddInt64(&t.sentB, int64(n))
	return nil
}

// Recv blocks for a single datagram into a MaxPacketSize buffer and
// returns the bytes actually received.
func (t *Transport) Recv() ([]byte, error) {
	buf := make([]byte, MaxPacketSize)
	n, err := t.conn.Read(buf)
	if err != nil {
		return nil, coreerr.NewIoError(t.peerString(), err)
	}
	atomic.AddInt64(&t.received, 1)
	atomic.AddInt64(&t.recvB, int64(n))
	return buf[:n], nil
}

// LocalAddr returns the socket's local (ephemeral) address.
func (t *Transport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// PeerAddr returns the connected remote address.
func (t *Transport) PeerAddr() net.Addr { return t.conn.RemoteAddr() }

func (t *Transport) peerString() string {
	if a := t.PeerAddr(); a != nil {
		return a.String()
	}
	return "disconnected"
}

// Stats returns a snapshot of cumulative send/receive counters.
func (t *Transport) Stats() Stats {
	return Stats{
		PacketsSent: atomic.LoadInt64(&t.sent),
		BytesSent:   atomic.LoadInt64(&t.sentB),
		PacketsRecv: atomic.LoadInt64(&t.received),
		BytesRecv:   atomic.LoadInt64(&t.recvB),
	}
}

// Close closes the underlying socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}
