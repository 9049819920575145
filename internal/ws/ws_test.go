package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/hub"
	"github.com/DoyleJ11/poipoi-backend/internal/room"
	wire "github.com/DoyleJ11/poipoi-backend/pkg/types"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, opts ...hub.Option) (*hub.Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, opts...)
	srv := httptest.NewServer(Handler(h, nil))
	t.Cleanup(srv.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func ensureRoom(h *hub.Hub, code string) *room.Room {
	reply := make(chan *room.Room, 1)
	h.Inbox() <- hub.EnsureRoom{Code: code, Reply: reply}
	return <-reply
}

func pumpUntil(t *testing.T, pred func() bool, reps ...*room.Replica) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, r := range reps {
			r.Pump()
		}
		if pred() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not reached")
}

func TestWebsocket_RelaysEventsAndPoses(t *testing.T) {
	h, url := newServer(t)
	ensureRoom(h, "WS0001")
	ctx := context.Background()

	ca, err := Dial(ctx, url, "WS0001", "ann", nil)
	require.NoError(t, err)
	defer ca.Close()
	cb, err := Dial(ctx, url, "WS0001", "bob", nil)
	require.NoError(t, err)
	defer cb.Close()

	a := room.NewReplica(ca, nil)
	b := room.NewReplica(cb, nil)
	pumpUntil(t, func() bool { return len(a.Players()) == 2 && len(b.Players()) == 2 }, a, b)
	assert.True(t, a.IsAuthority())
	assert.NotEqual(t, a.Self(), b.Self())

	var events []wire.Event
	a.OnEvent(func(from string, seq uint64, evt wire.Event) { events = append(events, evt) })
	var poses []wire.Pose
	b.OnPose(func(p wire.Pose) { poses = append(poses, p) })

	require.NoError(t, b.Broadcast(wire.Event{Kind: wire.EventPickItem, ItemID: 3, Requester: b.Self()}))
	require.NoError(t, a.SendPose(wire.Pose{Position: wire.Vec2{X: 1, Y: 2}, FlipX: true}))
	pumpUntil(t, func() bool { return len(events) == 1 && len(poses) == 1 }, a, b)

	assert.Equal(t, 3, events[0].ItemID)
	assert.Equal(t, a.Self(), poses[0].Participant)
	assert.Equal(t, wire.Vec2{X: 1, Y: 2}, poses[0].Position)
}

func TestWebsocket_RejectsJoinWhenFull(t *testing.T) {
	h, url := newServer(t, hub.WithRoomOptions(room.WithCapacity(1)))
	ensureRoom(h, "WS0002")
	ctx := context.Background()

	first, err := Dial(ctx, url, "WS0002", "ann", nil)
	require.NoError(t, err)
	defer first.Close()

	_, err = Dial(ctx, url, "WS0002", "bob", nil)
	require.ErrorIs(t, err, ErrJoinRejected)
	assert.Contains(t, err.Error(), room.ErrRoomFull.Error())
}

// closingServer accepts a websocket and closes it before any welcome.
func closingServer(t *testing.T, code websocket.StatusCode, reason string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c.Close(code, reason)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDial_CloseBeforeWelcome(t *testing.T) {
	cases := []struct {
		name     string
		code     websocket.StatusCode
		rejected bool
	}{
		{"policy violation is a rejection", websocket.StatusPolicyViolation, true},
		{"going away is not", websocket.StatusGoingAway, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			url := closingServer(t, tc.code, "room closed")
			c, err := Dial(context.Background(), url, "WS0009", "ann", nil)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.Equal(t, tc.rejected, errors.Is(err, ErrJoinRejected), "err %v", err)
			if tc.rejected {
				assert.Contains(t, err.Error(), "room closed")
			}
		})
	}
}

func TestWebsocket_UnknownRoom(t *testing.T) {
	_, url := newServer(t)
	_, err := Dial(context.Background(), url, "NOPE00", "ann", nil)
	require.Error(t, err)
}

func TestWebsocket_DisconnectIsObserved(t *testing.T) {
	h, url := newServer(t)
	ensureRoom(h, "WS0003")
	ctx := context.Background()

	ca, err := Dial(ctx, url, "WS0003", "ann", nil)
	require.NoError(t, err)
	cb, err := Dial(ctx, url, "WS0003", "bob", nil)
	require.NoError(t, err)
	defer cb.Close()
	a := room.NewReplica(ca, nil)
	b := room.NewReplica(cb, nil)
	pumpUntil(t, func() bool { return len(b.Players()) == 2 }, a, b)

	require.NoError(t, a.Disconnect())
	pumpUntil(t, func() bool { return !a.Connected() && b.IsAuthority() && len(b.Players()) == 1 }, a, b)
}
