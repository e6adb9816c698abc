// Package state implements the per-connection protocol state machine.
//
//	Handshaking -> StatusQuery -> Closing
//	Handshaking -> LoginNegotiation -> Play -> Closing
//
// Every state may also move directly to Closing. Closing is terminal.
package state

import (
	"fmt"

	"github.com/marmos91/dittocraft/internal/protocol/packet"
)

// State is the phase of a connection's lifecycle.
type State uint8

const (
	Handshaking State = iota
	StatusQuery
	LoginNegotiation
	Play
	Closing
)

func (s State) String() string {
	switch s {
	case Handshaking:
		return "Handshaking"
	case StatusQuery:
		return "StatusQuery"
	case LoginNegotiation:
		return "LoginNegotiation"
	case Play:
		return "Play"
	case Closing:
		return "Closing"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// legal lists the serverbound packets each state accepts. A client may send
// Disconnect at any point before Closing.
var legal = map[State]map[packet.ID]bool{
	Handshaking: {
		packet.IDHandshake:      true,
		packet.IDServerListPing: true,
		packet.IDDisconnect:     true,
	},
	StatusQuery: {
		packet.IDDisconnect: true,
	},
	LoginNegotiation: {
		packet.IDLogin:      true,
		packet.IDDisconnect: true,
	},
	Play: {
		packet.IDKeepAlive:          true,
		packet.IDChatMessage:        true,
		packet.IDPlayer:             true,
		packet.IDPlayerPosition:     true,
		packet.IDPlayerLook:         true,
		packet.IDPlayerPositionLook: true,
		packet.IDPluginMessage:      true,
		packet.IDDisconnect:         true,
	},
	Closing: {},
}

// Allows reports whether a packet with the given identifier may be received
// in state s. State implements packet.Filter.
func (s State) Allows(id packet.ID) bool {
	return legal[s][id]
}

var edges = map[State][]State{
	Handshaking:      {StatusQuery, LoginNegotiation, Closing},
	StatusQuery:      {Closing},
	LoginNegotiation: {Play, Closing},
	Play:             {Closing},
}

// TransitionError reports an edge the state machine does not have.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal state transition %s -> %s", e.From, e.To)
}

// Machine tracks the state of one session. The zero value is in Handshaking.
type Machine struct {
	current State
}

// Current returns the current state.
func (m *Machine) Current() State {
	return m.current
}

// Transition moves to the next state if the edge exists.
func (m *Machine) Transition(to State) error {
	for _, next := range edges[m.current] {
		if next == to {
			m.current = to
			return nil
		}
	}
	return &TransitionError{From: m.current, To: to}
}

// Close moves to Closing from any state. It reports whether the machine was
// not already closing.
func (m *Machine) Close() bool {
	if m.current == Closing {
		return false
	}
	m.current = Closing
	return true
}
