package character

import "github.com/DoyleJ11/poipoi-backend/pkg/types"

// Remote mirrors a character owned by another participant. It is read-only
// apart from the poses its owner replicates.
type Remote struct {
	Participant string
	Slot        int
	pose        types.Pose
	seen        bool
}

func NewRemote(participant string, slot int, pos types.Vec2) *Remote {
	return &Remote{
		Participant: participant,
		Slot:        slot,
		pose:        types.Pose{Participant: participant, Position: pos},
	}
}

func (r *Remote) Apply(p types.Pose) {
	r.pose = p
	r.seen = true
}

func (r *Remote) Pose() types.Pose { return r.pose }

// Seen reports whether a pose has arrived since the spawn.
func (r *Remote) Seen() bool { return r.seen }

// Color is the tint for a participant's slot.
type Color struct{ R, G, B float64 }

var palette = [...]Color{
	{1, 1, 1},
	{1, 0.5, 0.5},
	{0.5, 1, 0.5},
	{0.5, 0.5, 1},
}

func SlotColor(slot int) Color {
	if slot < 0 {
		return palette[0]
	}
	return palette[slot%len(palette)]
}
