/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package transport

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func startEchoServer(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, MaxPacketSize)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			conn.WriteToUDP(buf[:n], addr)
		}
	}()
	return conn
}

func TestSendRecvRoundTrip(t *testing.T) {
	server := startEchoServer(t)
	tr, err := Dial(server.LocalAddr().String())
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Send([]byte("FILE size=123&ed2k=abc")))

	got, err := tr.Recv()
	require.NoError(t, err)
	require.Equal(t, "FILE size=123&ed2k=abc", string(got))

	stats := tr.Stats()
	require.Equal(t, int64(1), stats.PacketsSent)
	require.Equal(t, int64(1), stats.PacketsRecv)
}

func TestSendRejectsEmptyPayload(t *testing.T) {
	server := startEchoServer(t)
	tr, err := Dial(server.LocalAddr().String())
	require.NoError(t, err)
	defer tr.Close()

	err = tr.Send(nil)
	require.Error(t, err)
}

func TestSendRejectsOversizePayload(t *testing.T) {
	server := startEchoServer(t)
	tr, err := Dial(server.LocalAddr().String())
	require.NoError(t, err)
	defer tr.Close()

	err = tr.Send([]byte(strings.Repeat("x", MaxPacketSize+1)))
	require.Error(t, err)
}

func TestLocalAndPeerAddr(t *testing.T) {
	server := startEchoServer(t)
	tr, err := Dial(server.LocalAddr().String())
	require.NoError(t, err)
	defer tr.Close()

	require.NotEmpty(t, tr.LocalAddr().String())
	require.Equal(t, server.LocalAddr().String(), tr.PeerAddr().String())
}
