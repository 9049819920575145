package match

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/character"
	"github.com/DoyleJ11/poipoi-backend/internal/task"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	dt    = 1.0 / 60
	frame = time.Second / 60
)

// loopNet echoes broadcasts back in order when flushed, as the room would.
type loopNet struct {
	self  string
	queue []types.Event
	poses []types.Pose
}

func (n *loopNet) Self() string { return n.self }

func (n *loopNet) Broadcast(evt types.Event) error {
	n.queue = append(n.queue, evt)
	return nil
}

func (n *loopNet) SendPose(p types.Pose) error {
	n.poses = append(n.poses, p)
	return nil
}

func (n *loopNet) flush(w *World) {
	for len(n.queue) > 0 {
		evt := n.queue[0]
		n.queue = n.queue[1:]
		w.HandleEvent(n.self, 0, evt)
	}
}

func newWorld(t *testing.T) (*World, *loopNet, *task.Scheduler) {
	t.Helper()
	sched := task.NewScheduler(context.Background(), nil)
	t.Cleanup(sched.Close)
	net := &loopNet{self: "me"}
	return NewWorld(DefaultConfig(), net, sched, nil), net, sched
}

func tick(w *World, sched *task.Scheduler, in character.Input) {
	w.Tick(in, dt)
	sched.Tick(frame)
}

func TestWorld_SpawnAndMirror(t *testing.T) {
	w, net, _ := newWorld(t)
	assert.Equal(t, 0, w.Characters())

	_, err := w.SpawnLocal(context.Background(), types.Vec2{X: 3, Y: 10}, 1)
	require.NoError(t, err)
	_, err = w.SpawnLocal(context.Background(), types.Vec2{}, 1)
	assert.ErrorIs(t, err, ErrAlreadySpawned)

	net.flush(w)
	assert.Equal(t, 1, w.Characters(), "own spawn echo does not create a mirror")

	w.HandleEvent("other", 2, types.Event{Kind: types.EventSpawnCharacter, Participant: "other", Slot: 2, Position: types.Vec2{X: 2, Y: 9}})
	assert.Equal(t, 2, w.Characters())

	w.HandlePose(types.Pose{Participant: "other", Position: types.Vec2{X: 2.5, Y: 9}, FlipX: true})
	r, ok := w.Remote("other")
	require.True(t, ok)
	assert.True(t, r.Seen())
	assert.Equal(t, 2.5, r.Pose().Position.X)
	assert.Equal(t, 2, r.Slot)

	w.HandleEvent("other", 3, types.Event{Kind: types.EventDespawnCharacter, Participant: "other"})
	assert.Equal(t, 1, w.Characters())
}

func TestWorld_SearchPicksNearbyItemAndCarriesIt(t *testing.T) {
	w, net, sched := newWorld(t)
	_, err := w.SpawnLocal(context.Background(), types.Vec2{X: 3, Y: 10}, 0)
	require.NoError(t, err)
	w.HandleEvent("host", 1, types.Event{Kind: types.EventSpawnItem, ItemID: 1, Position: types.Vec2{X: 3.2, Y: 10}, Mass: 1})
	w.HandleEvent("host", 2, types.Event{Kind: types.EventSpawnItem, ItemID: 2, Position: types.Vec2{X: 9, Y: 9}, Mass: 1})
	net.flush(w)

	tick(w, sched, character.Input{Search: true})
	tick(w, sched, character.Input{})
	net.flush(w)

	d, holding := w.Local().Carrying()
	require.True(t, holding)
	assert.Equal(t, 1, d.ID)
	assert.Equal(t, "me", d.Holder())

	for range 30 {
		tick(w, sched, character.Input{Move: types.Vec2{Y: 1}})
	}
	assert.Equal(t, w.Local().Position(), d.Position)
	assert.NotEmpty(t, net.poses)
}

func TestWorld_CollisionDropsCarriedItem(t *testing.T) {
	w, net, sched := newWorld(t)
	_, err := w.SpawnLocal(context.Background(), types.Vec2{X: 3, Y: 10}, 0)
	require.NoError(t, err)
	w.HandleEvent("host", 1, types.Event{Kind: types.EventSpawnItem, ItemID: 1, Position: types.Vec2{X: 3, Y: 10}, Mass: 1})
	net.flush(w)
	tick(w, sched, character.Input{Search: true})
	net.flush(w)
	_, holding := w.Local().Carrying()
	require.True(t, holding)

	w.HandleEvent("other", 5, types.Event{Kind: types.EventSpawnCharacter, Participant: "other", Position: types.Vec2{X: 8, Y: 8}})
	w.HandlePose(types.Pose{Participant: "other", Position: types.Vec2{X: 3.1, Y: 10}})
	tick(w, sched, character.Input{})

	require.NotEmpty(t, net.queue)
	drop := net.queue[len(net.queue)-1]
	assert.Equal(t, types.EventThrowItem, drop.Kind)
	assert.True(t, drop.Impulse.IsZero())
	net.flush(w)
	d, _ := w.Ledger().Get(1)
	assert.False(t, d.Picked())
}

func TestWorld_ReportsLandedThrows(t *testing.T) {
	w, net, sched := newWorld(t)
	var landed []float64
	w.OnLanded(func(_ int, distance float64) { landed = append(landed, distance) })

	_, err := w.SpawnLocal(context.Background(), types.Vec2{X: 3, Y: 10}, 0)
	require.NoError(t, err)
	w.HandleEvent("host", 1, types.Event{Kind: types.EventSpawnItem, ItemID: 1, Position: types.Vec2{X: 3, Y: 10}, Mass: 1})
	net.flush(w)
	tick(w, sched, character.Input{Search: true})
	net.flush(w)

	tick(w, sched, character.Input{StartCharge: true})
	for range 30 {
		tick(w, sched, character.Input{})
	}
	tick(w, sched, character.Input{Aim: types.Vec2{X: 1}, Fire: true})
	net.flush(w)

	for range 600 {
		tick(w, sched, character.Input{})
	}
	require.Len(t, landed, 1)
	assert.Greater(t, landed[0], 1.0)
}
