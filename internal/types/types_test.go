package types

import (
	"errors"
	"testing"

	wire "github.com/DoyleJ11/poipoi-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoseFramesAreBinary(t *testing.T) {
	pose := wire.Pose{Participant: "a", Position: wire.Vec2{X: 1.5, Y: -2}, FlipX: true, Facing: wire.Vec2{X: 1}}
	m, err := EncodeFrame(wire.Frame{Kind: wire.FramePose, Pose: &pose})
	require.NoError(t, err)
	assert.True(t, m.Binary)

	f, err := DecodeFrame(m)
	require.NoError(t, err)
	require.Equal(t, wire.FramePose, f.Kind)
	assert.Equal(t, pose, *f.Pose)
	assert.Equal(t, "a", f.From)
}

func TestEventFramesAreText(t *testing.T) {
	evt := wire.Event{Kind: wire.EventPickItem, ItemID: 7, Requester: "a"}
	m, err := EncodeFrame(wire.Frame{Kind: wire.FrameEvent, From: "a", Seq: 3, Event: &evt})
	require.NoError(t, err)
	assert.False(t, m.Binary)
	assert.Contains(t, string(m.Data), `"kind":"event"`)

	f, err := DecodeFrame(m)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Seq)
	assert.Equal(t, evt, *f.Event)
}

func TestDecodeRequestValidates(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"bad json", `{`, ErrBadMessage},
		{"unknown kind", `{"kind":"dance"}`, ErrUnknownKind},
		{"missing patch", `{"kind":"player_props"}`, ErrBadMessage},
		{"missing event", `{"kind":"event"}`, ErrBadMessage},
		{"ok", `{"kind":"room_props","room":{"practice":true}}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeRequest(Message{Data: []byte(tc.data)})
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRequestRoundTrip(t *testing.T) {
	slot := 2
	m, err := EncodeRequest(wire.Request{Kind: wire.RequestPlayerProps, Player: &wire.PlayerPatch{Slot: &slot}})
	require.NoError(t, err)
	r, err := DecodeRequest(m)
	require.NoError(t, err)
	require.NotNil(t, r.Player.Slot)
	assert.Equal(t, 2, *r.Player.Slot)
	assert.Nil(t, r.Player.Score)
}
