package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type envelope struct {
	Op   Op                 `msgpack:"op"`
	Data msgpack.RawMessage `msgpack:"data"`
}

// ParseMessage decodes one binary frame into its typed message. The returned
// error describes why the frame could not be decoded, the caller is expected
// to echo it back to the sender along with the raw bytes.
func ParseMessage(b []byte) (interface{}, error) {
	var env envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	var msg interface{}
	switch env.Op {
	case OpAuthenticate:
		msg = &Authenticate{}
	case OpAuthStatusRequest:
		msg = &AuthStatusRequest{}
	case OpControl:
		msg = &Control{}
	case OpEnd:
		msg = &End{}
	case OpAuthResult:
		msg = &AuthResult{}
	case OpAuthStatus:
		msg = &AuthStatus{}
	case OpMembershipState:
		msg = &MembershipState{}
	case OpPlayerState:
		msg = &PlayerStateMessage{}
	case OpControlResult:
		msg = &ControlResult{}
	case OpUnexpected:
		msg = &Unexpected{}
	default:
		return nil, fmt.Errorf("unknown message op %d", env.Op)
	}
	if err := msgpack.Unmarshal(env.Data, msg); err != nil {
		return nil, fmt.Errorf("malformed %T payload: %w", msg, err)
	}
	return msg, nil
}

// EncodeMessage encodes a typed message into one binary frame.
func EncodeMessage(msg interface{}) ([]byte, error) {
	var op Op
	switch msg.(type) {
	case *Authenticate:
		op = OpAuthenticate
	case *AuthStatusRequest:
		op = OpAuthStatusRequest
	case *Control:
		op = OpControl
	case *End:
		op = OpEnd
	case *AuthResult:
		op = OpAuthResult
	case *AuthStatus:
		op = OpAuthStatus
	case *MembershipState:
		op = OpMembershipState
	case *PlayerStateMessage:
		op = OpPlayerState
	case *ControlResult:
		op = OpControlResult
	case *Unexpected:
		op = OpUnexpected
	default:
		return nil, fmt.Errorf("message type %T is not part of the protocol", msg)
	}

	data, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %T payload: %w", msg, err)
	}
	return msgpack.Marshal(envelope{Op: op, Data: data})
}
