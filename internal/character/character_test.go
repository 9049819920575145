package character

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/item"
	"github.com/DoyleJ11/poipoi-backend/internal/task"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	dt    = 1.0 / 60
	frame = time.Second / 60
)

type fakeNet struct{ sent []types.Event }

func (n *fakeNet) Broadcast(evt types.Event) error {
	n.sent = append(n.sent, evt)
	return nil
}

type countingVolume struct{ enabled, disabled int }

func (v *countingVolume) Enable()  { v.enabled++ }
func (v *countingVolume) Disable() { v.disabled++ }

type rig struct {
	c     *Character
	body  *KinematicBody
	net   *fakeNet
	items *item.Protocol
	sched *task.Scheduler
	vol   *countingVolume
}

func newRig(t *testing.T, cfg Config) *rig {
	t.Helper()
	sched := task.NewScheduler(context.Background(), nil)
	t.Cleanup(sched.Close)
	net := &fakeNet{}
	ledger := item.NewLedger()
	items := item.NewProtocol("me", ledger, net, nil)
	body := NewKinematicBody(types.Vec2{X: 3, Y: 10})
	vol := &countingVolume{}
	c := New(context.Background(), "me", cfg, body, items, sched, vol, nil)
	return &rig{c: c, body: body, net: net, items: items, sched: sched, vol: vol}
}

// give hands the character an item of the given mass, confirmed by the echo.
func (r *rig) give(t *testing.T, mass float64) {
	t.Helper()
	require.NoError(t, r.items.Deliver(types.Event{Kind: types.EventSpawnItem, ItemID: 1, Mass: mass}))
	_, err := r.items.AttemptPickup(1)
	require.NoError(t, err)
	require.NoError(t, r.items.Deliver(r.net.sent[len(r.net.sent)-1]))
}

func (r *rig) run(in Input, ticks int) {
	for range ticks {
		r.c.Update(in, dt)
		r.body.Step(dt)
		r.sched.Tick(frame)
	}
}

func TestMassMultiplier(t *testing.T) {
	cases := []struct {
		mass, want float64
	}{
		{0, 1},
		{1, 0.8},
		{2.5, 0.5},
		{4.6, 0.1},
		{5, 0.1},
		{12, 0.1},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, MassMultiplier(tc.mass, 5, 0.1), 1e-9, "mass %v", tc.mass)
	}
}

func TestFacingPicksDominantAxis(t *testing.T) {
	cases := []struct {
		in, want types.Vec2
	}{
		{types.Vec2{X: 0.7}, types.Vec2{X: 1}},
		{types.Vec2{Y: -2}, types.Vec2{Y: -1}},
		{types.Vec2{X: -3, Y: 2}, types.Vec2{X: -1}},
		{types.Vec2{X: 0.2, Y: 0.9}, types.Vec2{Y: 1}},
		{types.Vec2{X: 1, Y: 1}, types.Vec2{X: 1}},
		{types.Vec2{}, types.Vec2{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Facing(tc.in), "dir %+v", tc.in)
	}
}

func TestSmoothDampConvergesWithoutOvershoot(t *testing.T) {
	var vel types.Vec2
	cur := types.Vec2{}
	target := types.Vec2{X: 2}
	for range 600 {
		cur = SmoothDamp(cur, target, &vel, 0.15, 4, dt)
		require.LessOrEqual(t, cur.X, target.X)
	}
	assert.InDelta(t, 2, cur.X, 1e-3)
}

func TestMovingNeverReturnsToIdle(t *testing.T) {
	r := newRig(t, DefaultConfig())
	assert.Equal(t, Idle, r.c.State())

	r.run(Input{}, 10)
	assert.Equal(t, Idle, r.c.State())

	r.run(Input{Move: types.Vec2{X: 1}}, 1)
	require.Equal(t, Moving, r.c.State())
	assert.Equal(t, types.Vec2{X: 3, Y: 10}, r.c.StartAnchor())

	r.run(Input{Move: types.Vec2{X: 1}}, 120)
	assert.InDelta(t, 4, r.body.Velocity().X, 0.01)
	assert.True(t, r.c.FlipX())

	r.run(Input{}, 300)
	assert.Equal(t, Moving, r.c.State())
	assert.InDelta(t, 0, r.body.Velocity().Len(), 1e-3)
}

func TestCarriedMassSlowsCarrier(t *testing.T) {
	heavy := newRig(t, DefaultConfig())
	heavy.give(t, 5)
	assert.InDelta(t, 0.1, heavy.c.SpeedMultiplier(), 1e-9)
	heavy.run(Input{Move: types.Vec2{X: 1}}, 300)
	assert.InDelta(t, 0.4, heavy.body.Velocity().X, 0.01)

	light := newRig(t, DefaultConfig())
	light.give(t, 0)
	assert.InDelta(t, 1, light.c.SpeedMultiplier(), 1e-9)
	light.run(Input{Move: types.Vec2{X: 1}}, 300)
	assert.InDelta(t, 4, light.body.Velocity().X, 0.01)
}

func TestAimingBrakesAndTurns(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.run(Input{Move: types.Vec2{X: 1}}, 120)
	r.run(Input{Move: types.Vec2{X: 1}, Aim: types.Vec2{X: -0.2, Y: -1}, Aiming: true}, 300)
	assert.InDelta(t, 0, r.body.Velocity().Len(), 1e-3)
	assert.Equal(t, types.Vec2{Y: -1}, r.c.Facing())
	assert.False(t, r.c.FlipX())
}

func TestChargeSaturatesAtCeiling(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.give(t, 1)
	r.run(Input{StartCharge: true}, 1)
	require.Equal(t, Charging, r.c.Charge())
	for range 600 {
		r.run(Input{}, 1)
		require.LessOrEqual(t, r.c.ChargePower(), 1.0)
	}
	assert.Equal(t, 1.0, r.c.ChargePower())
	assert.Equal(t, Charging, r.c.Charge())
}

func TestLoopingChargeWraps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChargeLoop = true
	r := newRig(t, cfg)
	r.give(t, 1)

	r.c.Update(Input{StartCharge: true}, 0.3)
	r.c.Update(Input{}, 0.3)
	r.c.Update(Input{}, 0.3)
	assert.InDelta(t, 0.9, r.c.ChargePower(), 1e-9)
	r.c.Update(Input{}, 0.3)
	assert.InDelta(t, 0.2, r.c.ChargePower(), 1e-9)
	r.c.Update(Input{}, 0.3)
	assert.InDelta(t, 0.5, r.c.ChargePower(), 1e-9)
}

func TestFireThrowsWithChargedImpulse(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.give(t, 1)

	r.c.Update(Input{StartCharge: true}, 0.25)
	r.c.Update(Input{Aim: types.Vec2{X: 3, Y: 4}, Fire: true}, 0.25)
	require.Equal(t, Fired, r.c.Charge())

	throw := r.net.sent[len(r.net.sent)-1]
	require.Equal(t, types.EventThrowItem, throw.Kind)
	assert.Equal(t, "me", throw.Requester)
	// 0.5 charge x 20 force along (0.6, 0.8)
	assert.InDelta(t, 6, throw.Impulse.X, 1e-9)
	assert.InDelta(t, 8, throw.Impulse.Y, 1e-9)
	_, holding := r.c.Carrying()
	assert.False(t, holding)

	r.c.Update(Input{StopCharge: true}, dt)
	assert.Equal(t, NotCharging, r.c.Charge())
}

func TestStopChargeWithoutFireResets(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.give(t, 1)
	sent := len(r.net.sent)

	r.c.Update(Input{StartCharge: true}, 0.5)
	r.c.Update(Input{StopCharge: true}, 0.1)
	assert.Equal(t, NotCharging, r.c.Charge())
	assert.Zero(t, r.c.ChargePower())
	assert.Len(t, r.net.sent, sent, "no throw without fire")
}

func TestSearchWindowClosesAfterDuration(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.run(Input{Search: true}, 1)
	require.True(t, r.c.Searching())
	assert.Equal(t, 1, r.vol.enabled)

	r.run(Input{Search: true}, 3) // ignored while open
	assert.Equal(t, 1, r.vol.enabled)

	r.run(Input{}, 6)
	assert.False(t, r.c.Searching())
	assert.Equal(t, 1, r.vol.disabled)
}

func TestDestroyMidSearchClosesWindowOnce(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.c.StartSearch()
	require.True(t, r.c.Searching())

	r.c.Destroy()
	r.sched.Tick(10 * time.Millisecond)
	r.sched.Tick(time.Second)
	assert.False(t, r.c.Searching())
	assert.Equal(t, 1, r.vol.enabled)
	assert.Equal(t, 1, r.vol.disabled)

	r.c.StartSearch()
	assert.Equal(t, 1, r.vol.enabled, "destroyed character cannot search")
}

func TestSearchHitClaimsItem(t *testing.T) {
	r := newRig(t, DefaultConfig())
	require.NoError(t, r.items.Deliver(types.Event{Kind: types.EventSpawnItem, ItemID: 4, Mass: 1}))

	r.c.OnSearchHit(4)
	assert.Empty(t, r.net.sent, "hits outside the window are ignored")

	r.c.StartSearch()
	r.c.OnSearchHit(4)
	require.Len(t, r.net.sent, 1)
	assert.Equal(t, types.Event{Kind: types.EventPickItem, ItemID: 4, Requester: "me"}, r.net.sent[0])
	_, holding := r.c.Carrying()
	assert.True(t, holding)
}

func TestCollisionDropsInPlace(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.c.OnCharacterCollision()
	assert.Empty(t, r.net.sent)

	r.give(t, 2)
	r.c.Update(Input{StartCharge: true}, 0.2)
	r.c.OnCharacterCollision()

	drop := r.net.sent[len(r.net.sent)-1]
	assert.Equal(t, types.EventThrowItem, drop.Kind)
	assert.True(t, drop.Impulse.IsZero())
	assert.Equal(t, r.body.Position(), drop.Start)
	assert.Equal(t, Cancelled, r.c.Charge())
	_, holding := r.c.Carrying()
	assert.False(t, holding)
}
