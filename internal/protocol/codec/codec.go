/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package codec encodes outbound commands and decodes inbound responses
// for the metadata service's line-oriented UDP wire format: a command
// name, a space, ampersand-joined key=value parameters, and a response
// header of either "CODE MESSAGE" or, for AUTH, "CODE SESSION MESSAGE"
// followed by zero or more pipe-delimited data rows.
package codec

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/anidbtools/anidbcore/internal/coreerr"
)

// MaxPacketSize is the hard ceiling on an encoded command's UTF-8 byte
// length; the transport additionally enforces this for raw datagrams.
const MaxPacketSize = 1400

// SessionParam is the parameter name the session token is appended under
// when a command requires authentication and does not already carry one.
const SessionParam = "s"

// PacketTooLarge reports an encoded command exceeding MaxPacketSize.
type PacketTooLarge struct {
	Actual int
	Max    int
}

func (e *PacketTooLarge) Error() string {
	return "packet too large: " + strconv.Itoa(e.Actual) + " > " + strconv.Itoa(e.Max)
}

// Command is an outbound request before encoding.
type Command struct {
	Name         string
	Params       []Param
	RequiresAuth bool
	Session      string
}

// Param is a single key=value pair; order is preserved on the wire.
type Param struct {
	Key   string
	Value string
}

// Encode renders cmd as the wire byte string, appending the session
// parameter if cmd.RequiresAuth and no "s" parameter is already present.
// Returns *PacketTooLarge if the encoded UTF-8 byte length exceeds
// MaxPacketSize.
func Encode(cmd Command) (string, error) {
	var b strings.Builder
	b.WriteString(cmd.Name)

	hasSession := false
	for _, p := range cmd.Params {
		if p.Key == SessionParam {
			hasSession = true
		}
	}

	first := true
	writeParam := func(key, value string) {
		if first {
			b.WriteByte(' ')
			first = false
		} else {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(escapeValue(value))
	}

	for _, p := range cmd.Params {
		writeParam(p.Key, p.Value)
	}
	if cmd.RequiresAuth && !hasSession && cmd.Session != "" {
		writeParam(SessionParam, cmd.Session)
	}

	out := b.String()
	if len(out) > MaxPacketSize {
		return "", &PacketTooLarge{Actual: len(out), Max: MaxPacketSize}
	}
	return out, nil
}

// escapeValue applies the wire escaping rule: '&' becomes "&amp;", '\n'
// becomes "<br />", '\r' is dropped, everything else (including '@', '!',
// '#', '/', '%', spaces, and multi-byte UTF-8) passes through unchanged.
func escapeValue(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '\n':
			b.WriteString("<br />")
		case '\r':
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// unescapeField reverses the field-level decoding rule applied to each
// pipe-delimited response field: "&amp;" back to '&', "<br />" back to
// '\n', a lone backtick to an apostrophe, and a field that is exactly a
// single '/' to '|' (the wire's escape for a literal pipe inside a row).
func unescapeField(f string) string {
	if f == "/" {
		return "|"
	}
	f = strings.ReplaceAll(f, "<br />", "\n")
	f = strings.ReplaceAll(f, "&amp;", "&")
	f = strings.ReplaceAll(f, "`", "'")
	return f
}

// Response is a decoded reply: a three-digit Code, an optional Session
// (AUTH replies only), a Message, and zero or more data Rows, each a
// slice of unescaped fields.
type Response struct {
	Code    int
	Session string
	Message string
	Rows    [][]string
}

// Decode parses a raw response datagram's text into a Response. isAuth
// selects the "CODE SESSION MESSAGE" header shape used only by AUTH
// replies; every other command uses "CODE MESSAGE".
func Decode(raw string, isAuth bool) (Response, error) {
	if !utf8.ValidString(raw) {
		return Response{}, coreerr.NewProtocolErrorWrap(coreerr.ErrDecoding)
	}

	lines := strings.Split(raw, "\n")
	header := strings.TrimRight(lines[0], "\r")

	var resp Response
	if isAuth {
		parts := strings.SplitN(header, " ", 3)
		if len(parts) < 2 {
			return Response{}, coreerr.NewProtocolError(0, "malformed AUTH header", false)
		}
		code, err := parseCode(parts[0])
		if err != nil {
			return Response{}, err
		}
		resp.Code = code
		if len(parts) == 3 {
			resp.Session = parts[1]
			resp.Message = parts[2]
		} else {
			resp.Message = parts[1]
		}
	} else {
		parts := strings.SplitN(header, " ", 2)
		code, err := parseCode(parts[0])
		if err != nil {
			return Response{}, err
		}
		resp.Code = code
		if len(parts) == 2 {
			resp.Message = parts[1]
		}
	}

	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = unescapeField(f)
		}
		resp.Rows = append(resp.Rows, row)
	}

	return resp, nil
}

func parseCode(s string) (int, error) {
	if len(s) != 3 {
		return 0, coreerr.NewProtocolError(0, "response code must be three digits", false)
	}
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, coreerr.NewProtocolErrorWrap(err)
	}
	return code, nil
}
