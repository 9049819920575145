package main

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/character"
	"github.com/DoyleJ11/poipoi-backend/internal/session"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
)

// brain drives a bot's controls from what the controller can see.
type brain struct {
	rng      *rand.Rand
	controls *session.ManualControls
	expect   int // participants to wait for before starting

	target    types.Vec2
	retarget  time.Duration
	charging  time.Duration
	aim       types.Vec2
	thrown    int
	resultsAt time.Duration
	elapsed   time.Duration
	started   bool
}

func newBrain(seed uint64, controls *session.ManualControls, expect int) *brain {
	return &brain{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		controls: controls,
		expect:   expect,
	}
}

func (b *brain) think(c *session.Controller, net session.Network, dt time.Duration) {
	b.elapsed += dt
	switch c.Phase() {
	case session.PhaseLobby:
		if b.started {
			return
		}
		if _, ok := net.Authority(); ok && readyCount(net) >= b.expect {
			b.controls.PressSubmit()
			b.started = true
		}

	case session.PhaseActive:
		b.play(c, dt)

	case session.PhaseEnding:
		if b.resultsAt == 0 {
			b.resultsAt = b.elapsed
		}
		// linger on the results like a person would
		if b.elapsed-b.resultsAt > 5*time.Second {
			b.controls.PressSubmit()
		}
	}
}

func (b *brain) play(c *session.Controller, dt time.Duration) {
	w := c.World()
	if w == nil || w.Local() == nil {
		return
	}
	me := w.Local()
	in := character.Input{}

	b.retarget -= dt
	if b.retarget <= 0 || me.Position().Sub(b.target).Len() < 0.3 {
		b.target = b.pickTarget(c)
		b.retarget = time.Duration(1+b.rng.IntN(3)) * time.Second
	}
	in.Move = b.target.Sub(me.Position()).Normalized()

	if d, carrying := me.Carrying(); carrying {
		switch {
		case d.ID == b.thrown:
			// released, waiting for the room to confirm
		case me.Charge() != character.Charging:
			in.StartCharge = true
			b.charging = 0
			angle := b.rng.Float64() * 2 * math.Pi
			b.aim = types.Vec2{X: math.Cos(angle), Y: math.Sin(angle)}
		default:
			b.charging += dt
			in.Aim = b.aim
			in.Aiming = true
			if b.charging > 600*time.Millisecond {
				in.Fire = true
				b.thrown = d.ID
			}
		}
	} else {
		b.thrown = 0
		in.Search = !me.Searching()
	}
	b.controls.SetInput(in)
}

// pickTarget heads for the nearest free item, or wanders.
func (b *brain) pickTarget(c *session.Controller) types.Vec2 {
	w := c.World()
	me := w.Local().Position()
	best, found := types.Vec2{}, false
	for _, id := range w.Ledger().Free() {
		d, ok := w.Ledger().Get(id)
		if !ok {
			continue
		}
		if !found || d.Position.Sub(me).Len() < best.Sub(me).Len() {
			best, found = d.Position, true
		}
	}
	if found {
		return best
	}
	return types.Vec2{X: b.rng.Float64() * 8, Y: 4 + b.rng.Float64()*10}
}

func readyCount(net session.Network) int {
	n := 0
	for _, p := range net.Players() {
		if p.Ready {
			n++
		}
	}
	return n
}
