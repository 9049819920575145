package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/room"
	wire "github.com/DoyleJ11/poipoi-backend/pkg/types"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(subj string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{subject: subj, data: data})
	return nil
}

func (p *fakePublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "poipoi.room.ABC123.events", Subject("ABC123"))
}

func TestMirror_PublishDecodes(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMirror(pub)
	evt := wire.Event{Kind: wire.EventThrowItem, ItemID: 2, Requester: "a", Impulse: wire.Vec2{X: 3}}
	require.NoError(t, m.Publish("ABC123", wire.Frame{Kind: wire.FrameEvent, From: "a", Seq: 9, Event: &evt}))

	msgs := pub.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "poipoi.room.ABC123.events", msgs[0].subject)

	f, err := decode(&nats.Msg{Subject: msgs[0].subject, Data: msgs[0].data})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), f.Seq)
	assert.Equal(t, "a", f.From)
	assert.Equal(t, evt, *f.Event)
}

func TestMirror_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	evt := wire.Event{Kind: wire.EventPickItem, ItemID: 1}
	err := NewMirror(pub).Publish("X", wire.Frame{Kind: wire.FrameEvent, Event: &evt})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats down")
}

func TestMirror_RoomPublishesInSeqOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pub := &fakePublisher{}
	r := room.New(ctx, "MIR001", room.WithMirror(NewMirror(pub)))
	conn, err := room.Dial(ctx, r, "a", "a")
	require.NoError(t, err)
	defer conn.Close()

	for i := 1; i <= 3; i++ {
		require.NoError(t, conn.Send(wire.Request{Kind: wire.RequestEvent, Event: &wire.Event{Kind: wire.EventPickItem, ItemID: i, Requester: "a"}}))
	}
	require.NoError(t, conn.Send(wire.Request{Kind: wire.RequestPose, Pose: &wire.Pose{}}))

	deadline := time.Now().Add(time.Second)
	for len(pub.snapshot()) < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	msgs := pub.snapshot()
	require.Len(t, msgs, 3, "poses are not mirrored")
	for i, m := range msgs {
		f, err := decode(&nats.Msg{Data: m.data})
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), f.Seq)
		assert.Equal(t, i+1, f.Event.ItemID)
	}
}
