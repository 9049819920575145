package session

import (
	"sync"

	"github.com/DoyleJ11/poipoi-backend/internal/character"
)

// ControlStyle is the input mapping picked in the lobby.
type ControlStyle int

const (
	ChargeAimReverse ControlStyle = iota
	ChargeAim
	NewControlReverse
	NewControl
	Classic
	numControlStyles
)

var controlHelp = [numControlStyles]string{
	ChargeAimReverse:  "Move: left stick  Aim: right stick (reversed)  Hold R to charge, release to throw",
	ChargeAim:         "Move: left stick  Aim: right stick  Hold R to charge, release to throw",
	NewControlReverse: "Move: left stick  Aim: right stick (reversed)  Throw: flick the right stick",
	NewControl:        "Move: left stick  Aim: right stick  Throw: flick the right stick",
	Classic:           "Move: left stick  Pick: A  Charge: hold A  Throw: release A",
}

var controlNames = [numControlStyles]string{
	ChargeAimReverse:  "charge_aim_reverse",
	ChargeAim:         "charge_aim",
	NewControlReverse: "new_control_reverse",
	NewControl:        "new_control",
	Classic:           "classic",
}

func (s ControlStyle) String() string {
	if s < 0 || s >= numControlStyles {
		return "unknown"
	}
	return controlNames[s]
}

func (s ControlStyle) Help() string {
	if s < 0 || s >= numControlStyles {
		return ""
	}
	return controlHelp[s]
}

// Step moves delta styles along the cycle, wrapping at both ends.
func (s ControlStyle) Step(delta int) ControlStyle {
	n := int(numControlStyles)
	return ControlStyle(((int(s)+delta)%n + n) % n)
}

// Controls is the input source polled once per tick.
type Controls interface {
	Character() character.Input
	// Horizontal is the menu axis in [-1, 1].
	Horizontal() float64
	// Submit and Cancel report a press since the last call.
	Submit() bool
	Cancel() bool
	ControlStyle() ControlStyle
	SetControlStyle(ControlStyle)
}

// ManualControls is a Controls driven by code: bots, tests, replays.
type ManualControls struct {
	mu         sync.Mutex
	input      character.Input
	horizontal float64
	submit     bool
	cancel     bool
	style      ControlStyle
}

var _ Controls = (*ManualControls)(nil)

func (m *ManualControls) SetInput(in character.Input) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input = in
}

func (m *ManualControls) SetHorizontal(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.horizontal = v
}

func (m *ManualControls) PressSubmit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submit = true
}

func (m *ManualControls) PressCancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancel = true
}

// Character returns the held input. The one-shot flags are cleared so a
// single SetInput fires a single charge edge.
func (m *ManualControls) Character() character.Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	in := m.input
	m.input.Search = false
	m.input.StartCharge = false
	m.input.Fire = false
	m.input.StopCharge = false
	return in
}

func (m *ManualControls) Horizontal() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.horizontal
}

func (m *ManualControls) Submit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := m.submit
	m.submit = false
	return ok
}

func (m *ManualControls) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := m.cancel
	m.cancel = false
	return ok
}

func (m *ManualControls) ControlStyle() ControlStyle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.style
}

func (m *ManualControls) SetControlStyle(s ControlStyle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.style = s
}
