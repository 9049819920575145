package room

import (
	"errors"
	"slices"

	"github.com/DoyleJ11/poipoi-backend/internal/task"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	"go.uber.org/zap"
)

var ErrDisconnected = errors.New("disconnected")

type EventHandler func(from string, seq uint64, evt types.Event)
type PoseHandler func(p types.Pose)

type watch struct {
	pred func() bool
	f    *task.Future[struct{}]
}

type slotWatch struct {
	slot int
	f    *task.Future[[]int]
}

// Replica is one participant's mirror of a room. It only changes when Pump
// applies frames delivered by the room, so a write becomes visible locally
// after it has made the round trip.
//
// A Replica is not safe for concurrent use; it belongs to the goroutine that
// drives the frame tick.
type Replica struct {
	conn      Transport
	log       *zap.Logger
	self      string
	players   map[string]types.PlayerProps
	order     []string
	room      types.RoomProps
	authority string
	joined    bool
	connected bool
	offline   bool
	local     *Room // the in-process room backing offline play
	lastErr   error

	watches     []watch
	slotWatches []slotWatch
	onEvent     []EventHandler
	onPose      []PoseHandler
}

func NewReplica(conn Transport, log *zap.Logger) *Replica {
	if log == nil {
		log = zap.NewNop()
	}
	return &Replica{
		conn:      conn,
		log:       log.Named("replica"),
		players:   make(map[string]types.PlayerProps),
		connected: true,
	}
}

// Pump applies every frame that has arrived, without blocking. Watches are
// evaluated after each frame.
func (r *Replica) Pump() {
	if !r.connected {
		return
	}
	frames := r.conn.Frames()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				r.disconnected()
				return
			}
			r.apply(f)
			r.resolve()
		default:
			return
		}
	}
}

func (r *Replica) apply(f types.Frame) {
	switch f.Kind {
	case types.FrameWelcome:
		r.self = f.Participant
		r.players = make(map[string]types.PlayerProps, len(f.Players))
		r.order = r.order[:0]
		for _, p := range f.Players {
			r.players[p.ID] = p
			r.order = append(r.order, p.ID)
		}
		if f.Room != nil {
			r.room = *f.Room
		}
		r.authority = f.Authority
		r.joined = true
		r.log = r.log.With(zap.String("participant", r.self))
		r.log.Info("joined room", zap.Int("players", len(r.order)), zap.Bool("authority", r.IsAuthority()))

	case types.FramePlayerJoined:
		if f.Player == nil {
			return
		}
		if _, ok := r.players[f.Participant]; !ok {
			r.order = append(r.order, f.Participant)
		}
		r.players[f.Participant] = *f.Player

	case types.FramePlayerLeft:
		delete(r.players, f.Participant)
		r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == f.Participant })

	case types.FramePlayerProps:
		if f.Player == nil {
			return
		}
		if _, ok := r.players[f.Participant]; !ok {
			r.order = append(r.order, f.Participant)
		}
		r.players[f.Participant] = *f.Player
		if f.Participant == r.self {
			r.confirmSlot(f.Player.Slot)
		}

	case types.FrameRoomProps:
		if f.Room != nil {
			r.room = *f.Room
		}

	case types.FrameAuthority:
		r.authority = f.Authority
		r.log.Info("authority changed", zap.String("authority", f.Authority))

	case types.FrameEvent:
		if f.Event == nil {
			return
		}
		for _, h := range r.onEvent {
			h(f.From, f.Seq, *f.Event)
		}

	case types.FramePose:
		if f.Pose == nil {
			return
		}
		for _, h := range r.onPose {
			h(*f.Pose)
		}

	case types.FrameRejected:
		r.lastErr = errors.New(f.Error)
		r.log.Warn("request rejected", zap.String("error", f.Error))
	}
}

func (r *Replica) confirmSlot(slot int) {
	if len(r.slotWatches) == 0 {
		return
	}
	peers := r.peerSlots()
	r.slotWatches = slices.DeleteFunc(r.slotWatches, func(w slotWatch) bool {
		if w.slot != slot {
			return false
		}
		w.f.Resolve(peers)
		return true
	})
}

func (r *Replica) peerSlots() []int {
	var out []int
	for _, id := range r.order {
		if id == r.self {
			continue
		}
		if p := r.players[id]; p.Slot != types.NoSlot {
			out = append(out, p.Slot)
		}
	}
	return out
}

func (r *Replica) resolve() {
	r.watches = slices.DeleteFunc(r.watches, func(w watch) bool {
		if w.pred() {
			w.f.Resolve(struct{}{})
			return true
		}
		return false
	})
}

func (r *Replica) disconnected() {
	r.connected = false
	r.joined = false
	r.log.Info("disconnected")
	r.resolve()
	for _, w := range r.watches {
		w.f.Fail(ErrDisconnected)
	}
	for _, w := range r.slotWatches {
		w.f.Fail(ErrDisconnected)
	}
	r.watches, r.slotWatches = nil, nil
}

// When returns a future resolved after the first applied frame that makes
// pred true, or immediately if it already holds. It fails with
// ErrDisconnected if the connection drops first.
func (r *Replica) When(pred func() bool) *task.Future[struct{}] {
	if pred() {
		return task.Resolved(struct{}{})
	}
	f := task.NewFuture[struct{}]()
	if !r.connected {
		f.Fail(ErrDisconnected)
		return f
	}
	r.watches = append(r.watches, watch{pred: pred, f: f})
	return f
}

func (r *Replica) OnEvent(h EventHandler) { r.onEvent = append(r.onEvent, h) }
func (r *Replica) OnPose(h PoseHandler)   { r.onPose = append(r.onPose, h) }

func (r *Replica) Self() string    { return r.self }
func (r *Replica) Joined() bool    { return r.joined }
func (r *Replica) Connected() bool { return r.connected }
func (r *Replica) Offline() bool   { return r.offline }

// LastRejection is the most recent error the room reported for this participant.
func (r *Replica) LastRejection() error { return r.lastErr }

func (r *Replica) Room() types.RoomProps { return r.room }

func (r *Replica) IsAuthority() bool { return r.joined && r.authority == r.self }

func (r *Replica) Local() (types.PlayerProps, bool) {
	p, ok := r.players[r.self]
	return p, ok
}

func (r *Replica) Player(id string) (types.PlayerProps, bool) {
	p, ok := r.players[id]
	return p, ok
}

// Players lists every known participant in join order.
func (r *Replica) Players() []types.PlayerProps {
	out := make([]types.PlayerProps, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id])
	}
	return out
}

func (r *Replica) Others() []types.PlayerProps {
	out := make([]types.PlayerProps, 0, len(r.order))
	for _, id := range r.order {
		if id != r.self {
			out = append(out, r.players[id])
		}
	}
	return out
}

func (r *Replica) SetPlayer(patch types.PlayerPatch) error {
	return r.conn.Send(types.Request{Kind: types.RequestPlayerProps, Player: &patch})
}

func (r *Replica) Broadcast(evt types.Event) error {
	return r.conn.Send(types.Request{Kind: types.RequestEvent, Event: &evt})
}

func (r *Replica) SendPose(p types.Pose) error {
	return r.conn.Send(types.Request{Kind: types.RequestPose, Pose: &p})
}

// ProposeSlot writes slot to the local participant's replicated record.
func (r *Replica) ProposeSlot(slot int) error {
	return r.SetPlayer(types.PlayerPatch{Slot: &slot})
}

// SlotConfirmed resolves when the room echoes the local participant's slot as
// slot. The value is the slots other participants held at that moment.
func (r *Replica) SlotConfirmed(slot int) *task.Future[[]int] {
	f := task.NewFuture[[]int]()
	if !r.connected {
		f.Fail(ErrDisconnected)
		return f
	}
	r.slotWatches = append(r.slotWatches, slotWatch{slot: slot, f: f})
	return f
}

func (r *Replica) MarkReady() error {
	ready := true
	return r.SetPlayer(types.PlayerPatch{Ready: &ready})
}

// Disconnect leaves the room. Connected turns false once the room has
// processed the leave and Pump has observed it.
func (r *Replica) Disconnect() error {
	err := r.conn.Close()
	if r.offline {
		r.offline = false
		select {
		case r.local.Inbox() <- Shutdown{}:
		case <-r.local.Done():
		}
	}
	return err
}
