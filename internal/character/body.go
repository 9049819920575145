package character

import "github.com/DoyleJ11/poipoi-backend/pkg/types"

// Body is the rigid body a character drives. The physics integrator behind
// it owns collision resolution.
type Body interface {
	Position() types.Vec2
	Velocity() types.Vec2
	SetVelocity(v types.Vec2)
}

// SearchVolume is the pickup query shape toggled by the search window.
type SearchVolume interface {
	Enable()
	Disable()
}

// KinematicBody integrates velocity with no collisions. Headless clients use
// it in place of a physics engine.
type KinematicBody struct {
	pos types.Vec2
	vel types.Vec2
}

func NewKinematicBody(pos types.Vec2) *KinematicBody {
	return &KinematicBody{pos: pos}
}

func (b *KinematicBody) Position() types.Vec2     { return b.pos }
func (b *KinematicBody) Velocity() types.Vec2     { return b.vel }
func (b *KinematicBody) SetVelocity(v types.Vec2) { b.vel = v }

func (b *KinematicBody) Step(dt float64) {
	b.pos = b.pos.Add(b.vel.Scale(dt))
}

type nopVolume struct{}

func (nopVolume) Enable()  {}
func (nopVolume) Disable() {}
