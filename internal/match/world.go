// Package match holds one participant's view of the playing field: the item
// ledger, the locally controlled character and mirrors of everyone else's.
package match

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/DoyleJ11/poipoi-backend/internal/character"
	"github.com/DoyleJ11/poipoi-backend/internal/item"
	"github.com/DoyleJ11/poipoi-backend/internal/task"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	"go.uber.org/zap"
)

var ErrAlreadySpawned = errors.New("character already spawned")

// Net is the slice of the room the world writes to.
type Net interface {
	Self() string
	Broadcast(evt types.Event) error
	SendPose(p types.Pose) error
}

type Config struct {
	Character       character.Config
	SearchRadius    float64
	CollisionRadius float64
	ItemDrag        float64
	// NewBody builds the physics body for the local character.
	NewBody func(pos types.Vec2) character.Body
}

func DefaultConfig() Config {
	return Config{
		Character:       character.DefaultConfig(),
		SearchRadius:    0.6,
		CollisionRadius: 0.5,
		ItemDrag:        6,
	}
}

type World struct {
	cfg     Config
	net     Net
	sched   *task.Scheduler
	log     *zap.Logger
	ledger  *item.Ledger
	items   *item.Protocol
	local   *character.Character
	body    character.Body
	remotes map[string]*character.Remote

	searchOpen bool
	touching   map[string]bool
	flights    map[int]types.Vec2 // own throws still in the air, by release point
	onLanded   func(itemID int, distance float64)
}

func NewWorld(cfg Config, net Net, sched *task.Scheduler, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.NewBody == nil {
		cfg.NewBody = func(pos types.Vec2) character.Body { return character.NewKinematicBody(pos) }
	}
	ledger := item.NewLedger()
	return &World{
		cfg:      cfg,
		net:      net,
		sched:    sched,
		log:      log.Named("world"),
		ledger:   ledger,
		items:    item.NewProtocol(net.Self(), ledger, net, log),
		remotes:  make(map[string]*character.Remote),
		touching: make(map[string]bool),
		flights:  make(map[int]types.Vec2),
	}
}

// OnLanded registers fn to run when an item the local participant threw comes
// to rest. distance is measured from the release point.
func (w *World) OnLanded(fn func(itemID int, distance float64)) { w.onLanded = fn }

func (w *World) Ledger() *item.Ledger        { return w.ledger }
func (w *World) Items() *item.Protocol       { return w.items }
func (w *World) Local() *character.Character { return w.local }
func (w *World) Remote(id string) (*character.Remote, bool) {
	r, ok := w.remotes[id]
	return r, ok
}

// Characters counts every spawned character, local and remote.
func (w *World) Characters() int {
	n := len(w.remotes)
	if w.local != nil {
		n++
	}
	return n
}

// HandleEvent applies one authoritative event in room order.
func (w *World) HandleEvent(from string, seq uint64, evt types.Event) {
	switch evt.Kind {
	case types.EventSpawnCharacter:
		if evt.Participant == w.net.Self() {
			return
		}
		w.remotes[evt.Participant] = character.NewRemote(evt.Participant, evt.Slot, evt.Position)
		w.log.Debug("remote character spawned", zap.String("participant", evt.Participant), zap.Int("slot", evt.Slot))

	case types.EventDespawnCharacter:
		delete(w.remotes, evt.Participant)
		delete(w.touching, evt.Participant)
		w.deliver(from, seq, evt)

	case types.EventThrowItem:
		w.deliver(from, seq, evt)
		if evt.Requester == w.net.Self() && !evt.Impulse.IsZero() {
			if d, ok := w.ledger.Get(evt.ItemID); ok && !d.Picked() {
				w.flights[evt.ItemID] = evt.Start
			}
		}

	default:
		w.deliver(from, seq, evt)
	}
}

func (w *World) deliver(from string, seq uint64, evt types.Event) {
	if err := w.items.Deliver(evt); err != nil {
		fields := []zap.Field{zap.String("from", from), zap.Uint64("seq", seq), zap.Int("item", evt.ItemID), zap.Error(err)}
		if errors.Is(err, item.ErrAlreadyHeld) || errors.Is(err, item.ErrNotHolder) {
			w.log.Debug("event superseded", fields...)
			return
		}
		w.log.Warn("event rejected", fields...)
	}
}

func (w *World) HandlePose(p types.Pose) {
	if r, ok := w.remotes[p.Participant]; ok {
		r.Apply(p)
	}
}

// SpawnLocal creates the local participant's character and announces it.
func (w *World) SpawnLocal(ctx context.Context, pos types.Vec2, slot int) (*character.Character, error) {
	if w.local != nil {
		return nil, ErrAlreadySpawned
	}
	w.body = w.cfg.NewBody(pos)
	w.local = character.New(ctx, w.net.Self(), w.cfg.Character, w.body, w.items, w.sched, w, w.log)
	err := w.net.Broadcast(types.Event{Kind: types.EventSpawnCharacter, Participant: w.net.Self(), Slot: slot, Position: pos})
	return w.local, err
}

// DespawnLocal destroys the local character. Whatever it carried drops.
func (w *World) DespawnLocal() error {
	if w.local == nil {
		return nil
	}
	pos := w.local.Position()
	w.local.Destroy()
	w.local = nil
	return w.net.Broadcast(types.Event{Kind: types.EventDespawnCharacter, Participant: w.net.Self(), Position: pos})
}

// Enable and Disable make the world the local character's search volume.
func (w *World) Enable()  { w.searchOpen = true }
func (w *World) Disable() { w.searchOpen = false }

type stepper interface{ Step(dt float64) }

// Tick advances the local simulation by dt seconds and publishes the local
// pose.
func (w *World) Tick(in character.Input, dt float64) {
	if w.local != nil {
		w.local.Update(in, dt)
		if s, ok := w.body.(stepper); ok {
			s.Step(dt)
		}
	}
	w.ledger.Step(dt, w.cfg.ItemDrag)
	w.land()
	w.carry()
	if w.local == nil {
		return
	}
	w.search()
	w.collide()
	if err := w.net.SendPose(w.local.Pose()); err != nil {
		w.log.Debug("send pose", zap.Error(err))
	}
}

func (w *World) land() {
	for _, id := range slices.Sorted(maps.Keys(w.flights)) {
		d, ok := w.ledger.Get(id)
		if ok && !d.Picked() && !d.Velocity.IsZero() {
			continue
		}
		start := w.flights[id]
		delete(w.flights, id)
		if ok && !d.Picked() && w.onLanded != nil {
			w.onLanded(id, d.Position.Sub(start).Len())
		}
	}
}

// carry keeps held items on their holders.
func (w *World) carry() {
	for _, id := range w.ledger.IDs() {
		d, _ := w.ledger.Get(id)
		if !d.Picked() {
			continue
		}
		if w.local != nil && d.Holder() == w.net.Self() {
			d.Position = w.local.Position()
		} else if r, ok := w.remotes[d.Holder()]; ok {
			d.Position = r.Pose().Position
		}
	}
}

func (w *World) search() {
	if !w.searchOpen {
		return
	}
	pos := w.local.Position()
	best, bestDist, found := 0, w.cfg.SearchRadius, false
	for _, id := range w.ledger.Free() {
		d, _ := w.ledger.Get(id)
		if dist := d.Position.Sub(pos).Len(); dist <= bestDist {
			best, bestDist, found = id, dist, true
		}
	}
	if found {
		w.local.OnSearchHit(best)
	}
}

// collide reports a hit once per contact, when another character first comes
// within reach.
func (w *World) collide() {
	pos := w.local.Position()
	for _, id := range slices.Sorted(maps.Keys(w.remotes)) {
		r := w.remotes[id]
		near := r.Seen() && r.Pose().Position.Sub(pos).Len() < w.cfg.CollisionRadius
		if near && !w.touching[id] {
			w.local.OnCharacterCollision()
		}
		w.touching[id] = near
	}
}
