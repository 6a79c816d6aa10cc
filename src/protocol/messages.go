// Package protocol defines the framed binary wire format spoken between the
// service and its companion clients. One websocket binary frame carries
// exactly one message.
package protocol

import "reflect"

type Op uint8

const (
	// Client to server.
	OpAuthenticate Op = iota + 1
	OpAuthStatusRequest
	OpControl
	OpEnd

	// Server to client.
	OpAuthResult
	OpAuthStatus
	OpMembershipState
	OpPlayerState
	OpControlResult
	OpUnexpected
)

// Authenticate exchanges a credential for an identity.
type Authenticate struct {
	Credential string `msgpack:"credential"`
}

// AuthStatusRequest asks whether the connection is authenticated.
type AuthStatusRequest struct{}

// Control submits a player command. ID correlates the eventual
// ControlResult with this request.
type Control struct {
	ID      string         `msgpack:"id"`
	Command ControlCommand `msgpack:"command"`
}

// End announces that the client is done with the connection.
type End struct{}

type ControlAction uint8

const (
	ActionResume ControlAction = iota + 1
	ActionPause
	ActionSkip
	ActionBackSkip
	ActionSetPosition
	ActionSetLoopMode
	ActionEnqueue
	ActionLeave
	ActionJoin
)

// ControlCommand is one player mutation. Only the fields relevant to the
// action are set.
type ControlCommand struct {
	Action         ControlAction `msgpack:"action"`
	Count          int           `msgpack:"count,omitempty"`
	PositionMillis int64         `msgpack:"position_millis,omitempty"`
	Mode           PlayMode      `msgpack:"mode,omitempty"`
	Query          string        `msgpack:"query,omitempty"`
}

// UserInfo is the authenticated identity behind a connection.
type UserInfo struct {
	ID     string `msgpack:"id"`
	Name   string `msgpack:"name"`
	Avatar string `msgpack:"avatar,omitempty"`
}

// AuthResult answers an Authenticate request. On failure only Error is set
// and the session stays unauthenticated.
type AuthResult struct {
	OK                bool      `msgpack:"ok"`
	Error             string    `msgpack:"error,omitempty"`
	User              *UserInfo `msgpack:"user,omitempty"`
	RefreshCredential string    `msgpack:"refresh_credential,omitempty"`
}

// AuthStatus answers an AuthStatusRequest.
type AuthStatus struct {
	Authenticated bool `msgpack:"authenticated"`
}

// MembershipState notifies the client which routing target it is watching.
// A nil Target means the user is not in any channel.
type MembershipState struct {
	Target *MembershipTarget `msgpack:"target,omitempty"`
}

type MembershipTarget struct {
	Guild       string `msgpack:"guild"`
	ChannelID   string `msgpack:"channel_id"`
	ChannelName string `msgpack:"channel_name,omitempty"`
}

type StateKind uint8

const (
	// StateFull carries a complete snapshot.
	StateFull StateKind = iota + 1
	// StatePatch carries a delta against the previously sent snapshot.
	StatePatch
	// StateEmpty signals that there is no player for the watched target.
	StateEmpty
)

// PlayerStateMessage streams player state to the client: one full snapshot
// when a player is first resolved, patches afterwards.
type PlayerStateMessage struct {
	Kind  StateKind    `msgpack:"kind"`
	Full  *PlayerState `msgpack:"full,omitempty"`
	Patch *Patch       `msgpack:"patch,omitempty"`
}

// ControlResult answers a Control request. Exactly one is sent per request,
// also on internal errors.
type ControlResult struct {
	ID      string         `msgpack:"id"`
	Command ControlCommand `msgpack:"command"`
	OK      bool           `msgpack:"ok"`
	Error   string         `msgpack:"error,omitempty"`
}

// Unexpected reports a frame that could not be handled. The connection
// stays open.
type Unexpected struct {
	// ParseError echoes an unparsable frame along with the decoder error.
	ParseError *ParseError `msgpack:"parse_error,omitempty"`
	// WrongType describes a well-formed message that is not valid in this
	// direction.
	WrongType string `msgpack:"wrong_type,omitempty"`
}

type ParseError struct {
	Raw     []byte `msgpack:"raw"`
	Message string `msgpack:"message"`
}

type PlayMode uint8

const (
	PlayModeNormal PlayMode = iota
	PlayModeLoopAll
	PlayModeLoopOne
)

// Track is a playable item as shown to clients. Positions are materialized
// at send time.
type Track struct {
	URI            string `msgpack:"uri"`
	Title          string `msgpack:"title"`
	DurationMillis int64  `msgpack:"duration_millis"`
	PositionMillis int64  `msgpack:"position_millis"`
}

type OwnerInfo struct {
	ID     string `msgpack:"id"`
	Name   string `msgpack:"name"`
	Avatar string `msgpack:"avatar,omitempty"`
}

// PlayerState is the fully materialized snapshot sent to clients.
type PlayerState struct {
	Owner   OwnerInfo `msgpack:"owner"`
	Paused  bool      `msgpack:"paused"`
	Mode    PlayMode  `msgpack:"mode"`
	Current *Track    `msgpack:"current,omitempty"`
	History []Track   `msgpack:"history"`
	Queue   []Track   `msgpack:"queue"`
}

// Equal compares two snapshots structurally.
func (s PlayerState) Equal(other PlayerState) bool {
	return reflect.DeepEqual(s, other)
}
