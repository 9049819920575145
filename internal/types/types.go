// Package types is the websocket wire codec. Control frames and authoritative
// events travel as JSON text messages; per-tick poses travel as msgpack binary
// messages since they dominate the traffic.
package types

import (
	"encoding/json"
	"errors"
	"fmt"

	wire "github.com/DoyleJ11/poipoi-backend/pkg/types"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrBadMessage = errors.New("bad message")
var ErrUnknownKind = errors.New("unknown kind")

type Message struct {
	Binary bool
	Data   []byte
}

func EncodeFrame(f wire.Frame) (Message, error) {
	if f.Kind == wire.FramePose && f.Pose != nil {
		data, err := msgpack.Marshal(f.Pose)
		if err != nil {
			return Message{}, fmt.Errorf("encode pose: %w", err)
		}
		return Message{Binary: true, Data: data}, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return Message{}, fmt.Errorf("encode frame: %w", err)
	}
	return Message{Data: data}, nil
}

func DecodeFrame(m Message) (wire.Frame, error) {
	if m.Binary {
		var p wire.Pose
		if err := msgpack.Unmarshal(m.Data, &p); err != nil {
			return wire.Frame{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
		}
		return wire.Frame{Kind: wire.FramePose, From: p.Participant, Pose: &p}, nil
	}
	var f wire.Frame
	if err := json.Unmarshal(m.Data, &f); err != nil {
		return wire.Frame{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	switch f.Kind {
	case wire.FrameWelcome, wire.FramePlayerJoined, wire.FramePlayerLeft,
		wire.FramePlayerProps, wire.FrameRoomProps, wire.FrameAuthority,
		wire.FrameEvent, wire.FramePose, wire.FrameRejected:
		return f, nil
	default:
		return wire.Frame{}, fmt.Errorf("%w: %q", ErrUnknownKind, f.Kind)
	}
}

func EncodeRequest(r wire.Request) (Message, error) {
	if r.Kind == wire.RequestPose && r.Pose != nil {
		data, err := msgpack.Marshal(r.Pose)
		if err != nil {
			return Message{}, fmt.Errorf("encode pose: %w", err)
		}
		return Message{Binary: true, Data: data}, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return Message{}, fmt.Errorf("encode request: %w", err)
	}
	return Message{Data: data}, nil
}

func DecodeRequest(m Message) (wire.Request, error) {
	if m.Binary {
		var p wire.Pose
		if err := msgpack.Unmarshal(m.Data, &p); err != nil {
			return wire.Request{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
		}
		return wire.Request{Kind: wire.RequestPose, Pose: &p}, nil
	}
	var r wire.Request
	if err := json.Unmarshal(m.Data, &r); err != nil {
		return wire.Request{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	switch r.Kind {
	case wire.RequestPlayerProps:
		if r.Player == nil {
			return wire.Request{}, fmt.Errorf("%w: missing player patch", ErrBadMessage)
		}
	case wire.RequestRoomProps:
		if r.Room == nil {
			return wire.Request{}, fmt.Errorf("%w: missing room patch", ErrBadMessage)
		}
	case wire.RequestEvent:
		if r.Event == nil {
			return wire.Request{}, fmt.Errorf("%w: missing event", ErrBadMessage)
		}
	case wire.RequestPose:
		if r.Pose == nil {
			return wire.Request{}, fmt.Errorf("%w: missing pose", ErrBadMessage)
		}
	default:
		return wire.Request{}, fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
	return r, nil
}
