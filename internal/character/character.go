// Package character drives one avatar from its owner's input.
package character

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/DoyleJ11/poipoi-backend/internal/item"
	"github.com/DoyleJ11/poipoi-backend/internal/task"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	"go.uber.org/zap"
)

type State int

const (
	Idle State = iota
	Moving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Moving:
		return "moving"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type ChargeState int

const (
	NotCharging ChargeState = iota
	Charging
	Fired
	Cancelled
)

func (s ChargeState) String() string {
	switch s {
	case NotCharging:
		return "not_charging"
	case Charging:
		return "charging"
	case Fired:
		return "fired"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("ChargeState(%d)", int(s))
	}
}

// Input is one tick of the owner's controls. The bool fields are edges.
type Input struct {
	Move        types.Vec2
	Aim         types.Vec2
	Aiming      bool
	Search      bool
	StartCharge bool
	Fire        bool
	StopCharge  bool
}

// Character is the locally controlled avatar. Only its owner's process
// creates one; everybody else sees its poses through a Remote.
type Character struct {
	cfg    Config
	owner  string
	body   Body
	items  *item.Protocol
	sched  *task.Scheduler
	volume SearchVolume
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	state     State
	start     types.Vec2
	ramp      float64
	damp      types.Vec2
	facing    types.Vec2
	flipX     bool
	charge    ChargeState
	power     float64
	searching bool
}

func New(ctx context.Context, owner string, cfg Config, body Body, items *item.Protocol, sched *task.Scheduler, volume SearchVolume, log *zap.Logger) *Character {
	if log == nil {
		log = zap.NewNop()
	}
	if volume == nil {
		volume = nopVolume{}
	}
	cctx, cancel := context.WithCancel(ctx)
	return &Character{
		cfg:    cfg,
		owner:  owner,
		body:   body,
		items:  items,
		sched:  sched,
		volume: volume,
		log:    log.Named("character").With(zap.String("participant", owner)),
		ctx:    cctx,
		cancel: cancel,
		facing: types.Vec2{Y: -1},
	}
}

func (c *Character) Owner() string            { return c.owner }
func (c *Character) State() State             { return c.state }
func (c *Character) Charge() ChargeState      { return c.charge }
func (c *Character) ChargePower() float64     { return c.power }
func (c *Character) Facing() types.Vec2       { return c.facing }
func (c *Character) FlipX() bool              { return c.flipX }
func (c *Character) Searching() bool          { return c.searching }
func (c *Character) StartAnchor() types.Vec2  { return c.start }
func (c *Character) Position() types.Vec2     { return c.body.Position() }
func (c *Character) Context() context.Context { return c.ctx }

// Carrying returns the item the character holds, tentatively or confirmed.
func (c *Character) Carrying() (*item.DropItem, bool) { return c.items.Carrying() }

// SpeedMultiplier is the carried-mass slowdown currently in effect.
func (c *Character) SpeedMultiplier() float64 {
	d, ok := c.items.Carrying()
	if !ok {
		return 1
	}
	return MassMultiplier(d.Mass, c.cfg.MaxMass, c.cfg.MinSpeedFraction)
}

// Update consumes one tick of input. dt is in seconds.
func (c *Character) Update(in Input, dt float64) {
	if c.ctx.Err() != nil {
		return
	}
	switch c.state {
	case Idle:
		c.idle(in)
	case Moving:
		c.move(in, dt)
	}
	c.carry(in, dt)
}

func (c *Character) idle(in Input) {
	if in.Move.IsZero() {
		return
	}
	c.start = c.body.Position()
	c.ramp = 0
	c.facing = Facing(in.Move)
	c.state = Moving
	c.log.Debug("started moving")
}

func (c *Character) move(in Input, dt float64) {
	c.ramp = clamp(c.ramp+dt*c.cfg.AccelRate, 0, 1)

	look, command := in.Move, in.Move
	if in.Aiming {
		// aiming plants the feet and turns toward the aim
		look, command = in.Aim, types.Vec2{}
	}
	c.facing = Facing(look)

	speed := c.cfg.Speed * c.SpeedMultiplier()
	target := command.Scale(speed * c.ramp)
	v := SmoothDamp(c.body.Velocity(), target, &c.damp, c.cfg.SmoothTime, c.cfg.Speed, dt)
	c.body.SetVelocity(v)

	x := v.X
	if in.Aiming {
		x = look.X
	}
	c.flipX = x >= 0
}

func (c *Character) carry(in Input, dt float64) {
	if _, holding := c.items.Carrying(); !holding {
		if c.charge == Charging {
			c.charge = Cancelled
		}
		if in.StopCharge {
			c.charge = NotCharging
		}
		c.power = 0
		if in.Search {
			c.StartSearch()
		}
		return
	}

	if in.StartCharge && c.charge != Charging {
		c.charge = Charging
		c.power = 0
	}
	if c.charge == Charging {
		c.accumulate(dt)
	}
	if in.Fire && c.charge == Charging {
		c.fire(in)
	}
	if in.StopCharge {
		c.charge = NotCharging
		c.power = 0
	}
}

func (c *Character) accumulate(dt float64) {
	c.power += c.cfg.ChargeRate * dt
	if c.power < c.cfg.ChargeCeiling {
		return
	}
	if c.cfg.ChargeLoop && c.cfg.ChargeCeiling > 0 {
		c.power = math.Mod(c.power, c.cfg.ChargeCeiling)
		return
	}
	c.power = c.cfg.ChargeCeiling
}

func (c *Character) fire(in Input) {
	aim := in.Aim
	if aim.IsZero() {
		aim = in.Move
	}
	impulse := aim.Normalized().Scale(c.power * c.cfg.ThrowForce)
	if err := c.items.Throw(c.body.Position(), impulse, c.cfg.ReleaseHeight); err != nil {
		c.log.Warn("throw", zap.Error(err))
		return
	}
	c.charge = Fired
}

// StartSearch opens the pickup query for the configured window. The window
// always closes, even if the character is destroyed while it is open.
func (c *Character) StartSearch() {
	if c.searching || c.ctx.Err() != nil {
		return
	}
	if _, holding := c.items.Carrying(); holding {
		return
	}
	c.sched.Go(c.ctx, "search", func(y *task.Yielder) error {
		return task.Hold(c.openSearch, c.closeSearch, func() error {
			return y.Delay(c.cfg.SearchWindow)
		})
	})
}

func (c *Character) openSearch() {
	c.searching = true
	c.volume.Enable()
}

func (c *Character) closeSearch() {
	c.searching = false
	c.volume.Disable()
}

// OnSearchHit is the search volume touching a free item.
func (c *Character) OnSearchHit(itemID int) {
	if !c.searching {
		return
	}
	if _, holding := c.items.Carrying(); holding {
		return
	}
	if _, err := c.items.AttemptPickup(itemID); err != nil {
		if errors.Is(err, item.ErrAlreadyHeld) || errors.Is(err, item.ErrUnknownItem) {
			c.log.Debug("pickup skipped", zap.Int("item", itemID), zap.Error(err))
			return
		}
		c.log.Warn("pickup", zap.Int("item", itemID), zap.Error(err))
	}
}

// OnCharacterCollision is this character being struck by another one. A
// carried item drops where it is. The reaction is local; the drop itself is
// broadcast like any throw.
func (c *Character) OnCharacterCollision() {
	if _, holding := c.items.Carrying(); !holding {
		return
	}
	if err := c.items.Throw(c.body.Position(), types.Vec2{}, c.cfg.ReleaseHeight); err != nil {
		c.log.Warn("drop on collision", zap.Error(err))
		return
	}
	if c.charge == Charging {
		c.charge = Cancelled
	}
	c.power = 0
}

func (c *Character) Pose() types.Pose {
	return types.Pose{
		Participant: c.owner,
		Position:    c.body.Position(),
		Velocity:    c.body.Velocity(),
		FlipX:       c.flipX,
		Facing:      c.facing,
	}
}

// Destroy cancels every sequence the character started.
func (c *Character) Destroy() {
	c.cancel()
}
