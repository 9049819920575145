// Package item tracks who holds which drop item.
//
// Every participant keeps a Ledger and feeds it the room's authoritative
// events in delivery order. The first pick of a free item wins everywhere;
// later picks of the same item are rejected until the holder throws it.
package item

import (
	"errors"
	"maps"
	"slices"

	"github.com/DoyleJ11/poipoi-backend/pkg/types"
)

var ErrUnknownItem = errors.New("unknown item")
var ErrDuplicateItem = errors.New("item already exists")
var ErrAlreadyHeld = errors.New("item already held")
var ErrNotHolder = errors.New("not the item holder")
var ErrUnsupportedEvent = errors.New("unsupported event")

// DropItem is one pickup. The holder is the only ownership state; an item is
// picked exactly when it has a holder.
type DropItem struct {
	ID       int
	Position types.Vec2
	Velocity types.Vec2
	Height   float64
	Mass     float64
	holder   string
}

func (d *DropItem) Holder() string { return d.holder }
func (d *DropItem) Picked() bool   { return d.holder != "" }

type Ledger struct {
	items map[int]*DropItem
}

func NewLedger() *Ledger {
	return &Ledger{items: make(map[int]*DropItem)}
}

func (l *Ledger) Get(id int) (*DropItem, bool) {
	d, ok := l.items[id]
	return d, ok
}

// IDs lists every item id in ascending order.
func (l *Ledger) IDs() []int {
	return slices.Sorted(maps.Keys(l.items))
}

// Free lists the ids of items nobody holds.
func (l *Ledger) Free() []int {
	var out []int
	for _, id := range l.IDs() {
		if !l.items[id].Picked() {
			out = append(out, id)
		}
	}
	return out
}

// HeldBy returns the item participant holds, if any.
func (l *Ledger) HeldBy(participant string) (*DropItem, bool) {
	for _, id := range l.IDs() {
		if d := l.items[id]; d.holder == participant {
			return d, true
		}
	}
	return nil, false
}

// Apply folds one authoritative event into the ledger. Rejected events leave
// it untouched.
func (l *Ledger) Apply(evt types.Event) error {
	switch evt.Kind {
	case types.EventSpawnItem:
		if _, ok := l.items[evt.ItemID]; ok {
			return ErrDuplicateItem
		}
		l.items[evt.ItemID] = &DropItem{ID: evt.ItemID, Position: evt.Position, Mass: evt.Mass}
		return nil

	case types.EventPickItem:
		d, ok := l.items[evt.ItemID]
		if !ok {
			return ErrUnknownItem
		}
		if d.Picked() {
			return ErrAlreadyHeld
		}
		d.holder = evt.Requester
		d.Velocity = types.Vec2{}
		return nil

	case types.EventThrowItem:
		d, ok := l.items[evt.ItemID]
		if !ok {
			return ErrUnknownItem
		}
		if d.holder != evt.Requester {
			return ErrNotHolder
		}
		d.holder = ""
		d.Position = evt.Start
		d.Height = evt.Height
		mass := d.Mass
		if mass <= 0 {
			mass = 1
		}
		d.Velocity = evt.Impulse.Scale(1 / mass)
		return nil

	case types.EventDespawnCharacter:
		// whatever the character carried drops where it stood
		if d, ok := l.HeldBy(evt.Participant); ok {
			d.holder = ""
			d.Position = evt.Position
			d.Velocity = types.Vec2{}
		}
		return nil

	default:
		return ErrUnsupportedEvent
	}
}

// Step moves free items by their velocity and bleeds it off with linear drag.
// Held items travel with their holder and are not integrated.
func (l *Ledger) Step(dt, drag float64) {
	for _, d := range l.items {
		if d.Picked() || d.Velocity.IsZero() {
			continue
		}
		d.Position = d.Position.Add(d.Velocity.Scale(dt))
		speed := d.Velocity.Len() - drag*dt
		if speed <= 0 {
			d.Velocity = types.Vec2{}
			d.Height = 0
			continue
		}
		d.Velocity = d.Velocity.Normalized().Scale(speed)
	}
}
