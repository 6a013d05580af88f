/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeJoinsParamsWithAmpersand(t *testing.T) {
	out, err := Encode(Command{
		Name: "ANIME",
		Params: []Param{
			{Key: "aid", Value: "123"},
			{Key: "amask", Value: "b2c0c0f0"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "ANIME aid=123&amask=b2c0c0f0", out)
}

func TestEncodeAppendsSessionWhenAuthRequiredAndAbsent(t *testing.T) {
	out, err := Encode(Command{
		Name:         "ANIME",
		Params:       []Param{{Key: "aid", Value: "123"}},
		RequiresAuth: true,
		Session:      "abc123",
	})
	require.NoError(t, err)
	require.Equal(t, "ANIME aid=123&s=abc123", out)
}

func TestEncodeDoesNotDuplicateExistingSession(t *testing.T) {
	out, err := Encode(Command{
		Name:         "ANIME",
		Params:       []Param{{Key: "aid", Value: "123"}, {Key: "s", Value: "already"}},
		RequiresAuth: true,
		Session:      "abc123",
	})
	require.NoError(t, err)
	require.Equal(t, "ANIME aid=123&s=already", out)
}

func TestEscapeValuePassesMostBytesThrough(t *testing.T) {
	out, err := Encode(Command{
		Name:   "NOTIFYACK",
		Params: []Param{{Key: "msg", Value: "a@b!c#d/e%f g日本語"}},
	})
	require.NoError(t, err)
	require.Equal(t, "NOTIFYACK msg=a@b!c#d/e%f g日本語", out)
}

func TestEscapeValueHandlesAmpersandNewlineAndCR(t *testing.T) {
	out, err := Encode(Command{
		Name:   "NOTIFYACK",
		Params: []Param{{Key: "msg", Value: "a&b\nc\rd"}},
	})
	require.NoError(t, err)
	require.Equal(t, "NOTIFYACK msg=a&amp;b<br />cd", out)
}

func TestEncodeRejectsOversizePacket(t *testing.T) {
	_, err := Encode(Command{
		Name:   "NOTIFYACK",
		Params: []Param{{Key: "msg", Value: strings.Repeat("x", MaxPacketSize)}},
	})
	require.Error(t, err)
	var tooLarge *PacketTooLarge
	require.ErrorAs(t, err, &tooLarge)
}

func TestDecodePlainHeaderAndRows(t *testing.T) {
	raw := "220 FILE\r\n123|456|e8b7be43|abc123\r\n"
	resp, err := Decode(raw, false)
	require.NoError(t, err)
	require.Equal(t, 220, resp.Code)
	require.Equal(t, "FILE", resp.Message)
	require.Len(t, resp.Rows, 1)
	require.Equal(t, []string{"123", "456", "e8b7be43", "abc123"}, resp.Rows[0])
}

func TestDecodeAuthHeaderWithSession(t *testing.T) {
	raw := "200 abc123def LOGIN ACCEPTED"
	resp, err := Decode(raw, true)
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code)
	require.Equal(t, "abc123def", resp.Session)
	require.Equal(t, "LOGIN ACCEPTED", resp.Message)
}

func TestDecodeUnescapesFields(t *testing.T) {
	raw := "220 FILE\r\na&amp;b|line1<br />line2|quo`te|/"
	resp, err := Decode(raw, false)
	require.NoError(t, err)
	require.Equal(t, []string{"a&b", "line1\nline2", "quo'te", "|"}, resp.Rows[0])
}

func TestDecodeRejectsMalformedCode(t *testing.T) {
	_, err := Decode("xyz BAD CODE", false)
	require.Error(t, err)
}
