/*************************************************************************
 * Copyright 2026 The anidbcore Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package client

import "fmt"

// State is one of the protocol client's connection lifecycle states.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Authenticated
	Disconnecting
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Authenticated:
		return "authenticated"
	case Disconnecting:
		return "disconnecting"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// allowedTransitions enumerates every legal (from, to) pair. Any
// transition not listed here is a programming error and panics rather
// than silently corrupting client state.
var allowedTransitions = map[State]map[State]bool{
	Disconnected:  {Connecting: true, Failed: true},
	Connecting:    {Connected: true, Failed: true, Disconnected: true},
	Connected:     {Authenticated: true, Disconnecting: true, Failed: true, Disconnected: true},
	Authenticated: {Connected: true, Disconnecting: true, Failed: true, Disconnected: true},
	Disconnecting: {Disconnected: true, Failed: true},
	Failed:        {Disconnected: true, Connecting: true},
}

// transition validates and applies from -> to, panicking if the
// transition is not in allowedTransitions. Callers hold c.mu.
func (c *Client) transition(to State) {
	from := c.state
	if !allowedTransitions[from][to] {
		panic(fmt.Sprintf("anidbcore/client: illegal state transition %s -> %s", from, to))
	}
	c.state = to
}

// State returns the client's current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
