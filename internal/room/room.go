// Package room relays a session between its participants. A Room is an actor
// that totally orders every authoritative event and property write, so all
// participants observe the same history, the sender included.
package room

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/store"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	"go.uber.org/zap"
)

var ErrRoomFull = errors.New("room full")
var ErrRoomClosed = errors.New("room closed")
var ErrDuplicateParticipant = errors.New("duplicate participant")
var ErrNotAuthority = errors.New("not the room authority")

const DefaultCapacity = 4

type Msg interface{ isRoomMsg() }

type Join struct {
	ID     string
	Name   string
	Outbox chan types.Frame // where this participant receives frames
	Reply  chan error
}

func (Join) isRoomMsg() {}

type Leave struct{ ID string }

func (Leave) isRoomMsg() {}

type FromParticipant struct {
	ID  string
	Req types.Request
}

func (FromParticipant) isRoomMsg() {}

type GetState struct {
	Reply chan types.RoomSnapshot
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// ShutdownIfEmpty shuts the room down only if nobody is in it. Reply
// (buffered) reports whether it did.
type ShutdownIfEmpty struct {
	Reply chan bool
}

func (ShutdownIfEmpty) isRoomMsg() {}

// PropertyStore keeps the room-shared properties outside the actor.
type PropertyStore interface {
	SaveRoom(ctx context.Context, code string, props types.RoomProps) error
	LoadRoom(ctx context.Context, code string) (types.RoomProps, bool, error)
	DeleteRoom(ctx context.Context, code string) error
}

// Mirror receives a copy of every relayed event frame.
type Mirror interface {
	Publish(code string, f types.Frame) error
}

// Archive persists the final standings of a scored match.
type Archive interface {
	RecordMatch(ctx context.Context, m store.Match) error
}

type Option func(*Room)

func WithCapacity(n int) Option        { return func(r *Room) { r.capacity = n } }
func WithStore(s PropertyStore) Option { return func(r *Room) { r.store = s } }
func WithMirror(m Mirror) Option       { return func(r *Room) { r.mirror = m } }
func WithArchive(a Archive) Option     { return func(r *Room) { r.archive = a } }
func WithLogger(l *zap.Logger) Option  { return func(r *Room) { r.log = l } }

// OnEmpty is called from the room goroutine when the last participant leaves.
func OnEmpty(fn func(code string)) Option { return func(r *Room) { r.onEmpty = fn } }

type member struct {
	props types.PlayerProps
	out   chan types.Frame
}

type Room struct {
	code      string
	capacity  int
	inbox     chan Msg
	members   []*member // join order
	props     types.RoomProps
	authority string
	seq       uint64
	departed  []types.PlayerProps
	store     PropertyStore
	mirror    Mirror
	archive   Archive
	onEmpty   func(code string)
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(parent context.Context, code string, opts ...Option) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		code:     code,
		capacity: DefaultCapacity,
		inbox:    make(chan Msg, 64),
		props:    types.RoomProps{Open: true},
		store:    NewMemoryStore(),
		log:      zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.Named("room").With(zap.String("room", code))

	lctx, lcancel := context.WithTimeout(ctx, 2*time.Second)
	if props, ok, err := r.store.LoadRoom(lctx, code); err != nil {
		r.log.Warn("load room props", zap.Error(err))
	} else if ok {
		r.props = props
	}
	lcancel()

	go r.loop()
	return r
}

func (r *Room) Code() string { return r.code }

// Expose the inbox so the websocket layer and tests can send messages.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				err := r.join(msg)
				msg.Reply <- err

			case Leave:
				r.remove(msg.ID)

			case FromParticipant:
				r.handle(msg.ID, msg.Req)

			case GetState:
				msg.Reply <- r.snapshot()

			case Shutdown:
				r.shutdown()
				return

			case ShutdownIfEmpty:
				if len(r.members) > 0 {
					msg.Reply <- false
					continue
				}
				r.shutdown()
				msg.Reply <- true
				return
			}
		}
	}
}

func (r *Room) join(msg Join) error {
	if !r.props.Open {
		return ErrRoomClosed
	}
	if len(r.members) >= r.capacity {
		return ErrRoomFull
	}
	if r.find(msg.ID) >= 0 {
		return ErrDuplicateParticipant
	}

	m := &member{
		props: types.PlayerProps{ID: msg.ID, Name: msg.Name, Slot: types.NoSlot, Record: -1},
		out:   msg.Outbox,
	}
	r.members = append(r.members, m)
	if r.authority == "" {
		r.authority = msg.ID
	}
	r.log.Info("participant joined", zap.String("participant", msg.ID), zap.Int("members", len(r.members)))

	props := r.props
	r.send(m, types.Frame{
		Kind:        types.FrameWelcome,
		Participant: msg.ID,
		Players:     r.players(),
		Room:        &props,
		Authority:   r.authority,
	})
	joined := m.props
	r.broadcast(types.Frame{Kind: types.FramePlayerJoined, Participant: msg.ID, Player: &joined}, msg.ID)
	return nil
}

func (r *Room) remove(id string) {
	i := r.find(id)
	if i < 0 {
		return
	}
	m := r.members[i]
	r.members = slices.Delete(r.members, i, i+1)
	close(m.out) // no more frames for this participant
	if r.props.MatchStarted {
		r.departed = append(r.departed, m.props)
	}
	r.log.Info("participant left", zap.String("participant", id), zap.Int("members", len(r.members)))

	r.broadcast(types.Frame{Kind: types.FramePlayerLeft, Participant: id}, "")
	if r.authority == id {
		r.authority = ""
		if len(r.members) > 0 {
			r.authority = r.members[0].props.ID
			r.broadcast(types.Frame{Kind: types.FrameAuthority, Authority: r.authority}, "")
			r.log.Info("authority moved", zap.String("participant", r.authority))
		}
	}
	if len(r.members) == 0 {
		r.emptied()
	}
}

func (r *Room) emptied() {
	if r.archive != nil && r.props.MatchStarted && !r.props.Practice && len(r.departed) > 0 {
		results := make([]store.Result, 0, len(r.departed))
		for _, p := range r.departed {
			results = append(results, store.Result{
				Participant: p.ID,
				Name:        p.Name,
				Slot:        p.Slot,
				Score:       p.Score,
				Record:      p.Record,
			})
		}
		ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
		err := r.archive.RecordMatch(ctx, store.Match{Room: r.code, EndedAt: time.Now().UTC(), Results: results})
		cancel()
		if err != nil {
			r.log.Error("archive match", zap.Error(err))
		}
	}
	r.departed = nil
	if r.onEmpty != nil {
		r.onEmpty(r.code)
	}
}

func (r *Room) handle(id string, req types.Request) {
	i := r.find(id)
	if i < 0 {
		r.log.Debug("request from unknown participant", zap.String("participant", id))
		return
	}
	m := r.members[i]

	switch req.Kind {
	case types.RequestPlayerProps:
		if req.Player == nil {
			return
		}
		m.props = m.props.Apply(*req.Player)
		props := m.props
		r.broadcast(types.Frame{Kind: types.FramePlayerProps, Participant: id, Player: &props}, "")

	case types.RequestRoomProps:
		if req.Room == nil {
			return
		}
		if id != r.authority {
			r.reject(m, ErrNotAuthority)
			return
		}
		r.props = r.props.Apply(*req.Room)
		ctx, cancel := context.WithTimeout(r.ctx, 2*time.Second)
		if err := r.store.SaveRoom(ctx, r.code, r.props); err != nil {
			r.log.Error("save room props", zap.Error(err))
		}
		cancel()
		props := r.props
		r.broadcast(types.Frame{Kind: types.FrameRoomProps, Room: &props}, "")

	case types.RequestEvent:
		if req.Event == nil {
			return
		}
		if req.Event.Kind == types.EventSpawnItem && id != r.authority {
			r.reject(m, ErrNotAuthority)
			return
		}
		r.seq++
		evt := *req.Event
		f := types.Frame{Kind: types.FrameEvent, From: id, Seq: r.seq, Event: &evt}
		r.log.Debug("relay event", zap.String("participant", id), zap.Uint64("seq", r.seq), zap.String("kind", string(evt.Kind)))
		r.broadcast(f, "")
		if r.mirror != nil {
			if err := r.mirror.Publish(r.code, f); err != nil {
				r.log.Warn("mirror event", zap.Error(err))
			}
		}

	case types.RequestPose:
		if req.Pose == nil {
			return
		}
		pose := *req.Pose
		pose.Participant = id
		f := types.Frame{Kind: types.FramePose, From: id, Pose: &pose}
		for _, o := range r.members {
			if o.props.ID == id {
				continue
			}
			select {
			case o.out <- f:
			default:
				// poses are superseded next tick
			}
		}
	}
}

func (r *Room) reject(m *member, err error) {
	r.log.Warn("request rejected", zap.String("participant", m.props.ID), zap.Error(err))
	r.send(m, types.Frame{Kind: types.FrameRejected, Participant: m.props.ID, Error: err.Error()})
}

// send queues a reliable frame. A participant that cannot keep up is dropped.
func (r *Room) send(m *member, f types.Frame) bool {
	select {
	case m.out <- f:
		return true
	default:
		r.log.Warn("participant too slow, dropping", zap.String("participant", m.props.ID))
		r.remove(m.props.ID)
		return false
	}
}

// broadcast sends f to every member except skip.
func (r *Room) broadcast(f types.Frame, skip string) {
	for _, m := range slices.Clone(r.members) {
		if m.props.ID == skip || r.find(m.props.ID) < 0 {
			continue
		}
		r.send(m, f)
	}
}

func (r *Room) find(id string) int {
	return slices.IndexFunc(r.members, func(m *member) bool { return m.props.ID == id })
}

func (r *Room) players() []types.PlayerProps {
	out := make([]types.PlayerProps, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.props)
	}
	return out
}

func (r *Room) snapshot() types.RoomSnapshot {
	return types.RoomSnapshot{
		Code:      r.code,
		Capacity:  r.capacity,
		Players:   r.players(),
		Room:      r.props,
		Authority: r.authority,
		Seq:       r.seq,
	}
}

func (r *Room) shutdown() {
	for _, m := range r.members {
		close(m.out) // Tell participant no more frames
	}
	r.members = nil
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := r.store.DeleteRoom(ctx, r.code); err != nil {
		r.log.Warn("delete room props", zap.Error(err))
	}
	cancel()
	r.cancel()
}
