package character

import (
	"math"

	"github.com/DoyleJ11/poipoi-backend/pkg/types"
)

// SmoothDamp moves current toward target like a critically damped spring.
// vel carries the spring's own velocity between calls. The result never
// overshoots target and changes by at most maxSpeed*smoothTime per call.
func SmoothDamp(current, target types.Vec2, vel *types.Vec2, smoothTime, maxSpeed, dt float64) types.Vec2 {
	smoothTime = math.Max(0.0001, smoothTime)
	if dt <= 0 {
		return current
	}
	omega := 2 / smoothTime
	x := omega * dt
	exp := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)

	change := current.Sub(target).ClampLen(maxSpeed * smoothTime)
	goal := target
	target = current.Sub(change)

	temp := vel.Add(change.Scale(omega)).Scale(dt)
	*vel = vel.Sub(temp.Scale(omega)).Scale(exp)
	out := target.Add(change.Add(temp).Scale(exp))

	if goal.Sub(current).Dot(out.Sub(goal)) > 0 {
		out = goal
		*vel = types.Vec2{}
	}
	return out
}

// MassMultiplier is the carrier speed factor for an item of mass:
// linear from 1 at no mass to 0 at maxMass, never below floor.
func MassMultiplier(mass, maxMass, floor float64) float64 {
	t := 0.0
	if maxMass > 0 {
		t = clamp(mass/maxMass, 0, 1)
	}
	return clamp(lerp(1, 0, t), floor, 1)
}

// Facing quantizes dir to the dominant axis. Ties go to the horizontal axis.
func Facing(dir types.Vec2) types.Vec2 {
	if math.Abs(dir.X) < math.Abs(dir.Y) {
		return types.Vec2{Y: sign(dir.Y)}
	}
	return types.Vec2{X: sign(dir.X)}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clamp(v, lo, hi float64) float64 { return math.Min(math.Max(v, lo), hi) }
