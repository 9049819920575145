// Package hub owns the set of live rooms on this server.
package hub

import (
	"context"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/room"
	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Code  string
	Reply chan *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type EnsureRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct {
	Code string
}

type ListRooms struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (RemoveRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

// Directory advertises which server hosts a room.
type Directory interface {
	Register(ctx context.Context, code string) error
	Deregister(ctx context.Context, code string) error
}

type Option func(*Hub)

// WithRoomOptions are applied to every room the hub creates.
func WithRoomOptions(opts ...room.Option) Option {
	return func(h *Hub) { h.roomOpts = append(h.roomOpts, opts...) }
}

func WithDirectory(d Directory) Option { return func(h *Hub) { h.dir = d } }
func WithLogger(l *zap.Logger) Option  { return func(h *Hub) { h.log = l } }

type Hub struct {
	inbox    chan HubMsg
	rooms    map[string]*room.Room
	roomOpts []room.Option
	dir      Directory
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		log:    zap.NewNop(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.Named("hub")
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub has shut down.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.ensure(msg.Code)

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // May be nil

			case EnsureRoom:
				msg.Reply <- h.ensure(msg.Code)

			case RemoveRoom:
				h.removeIfEmpty(msg.Code)

			case ListRooms:
				codes := make([]string, 0, len(h.rooms))
				for code := range h.rooms {
					codes = append(codes, code)
				}
				msg.Reply <- codes

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) ensure(code string) *room.Room {
	if rm := h.rooms[code]; rm != nil {
		return rm
	}
	opts := append([]room.Option{
		room.WithLogger(h.log),
		room.OnEmpty(h.emptied),
	}, h.roomOpts...)
	rm := room.New(h.ctx, code, opts...)
	h.rooms[code] = rm
	h.log.Info("room created", zap.String("room", code), zap.Int("rooms", len(h.rooms)))

	if h.dir != nil {
		ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
		if err := h.dir.Register(ctx, code); err != nil {
			h.log.Warn("register room", zap.String("room", code), zap.Error(err))
		}
		cancel()
	}
	return rm
}

// emptied runs on the room's goroutine. It must not block there: the hub
// may be waiting on that same room.
func (h *Hub) emptied(code string) {
	go func() {
		select {
		case h.inbox <- RemoveRoom{Code: code}:
		case <-h.ctx.Done():
		}
	}()
}

// removeIfEmpty drops a room that reported itself empty, unless somebody
// joined it in the meantime.
func (h *Hub) removeIfEmpty(code string) {
	rm := h.rooms[code]
	if rm == nil {
		return
	}
	reply := make(chan bool, 1)
	closed := true
	select {
	case rm.Inbox() <- room.ShutdownIfEmpty{Reply: reply}:
		select {
		case closed = <-reply:
		case <-rm.Done():
		}
	case <-rm.Done():
	}
	if !closed {
		h.log.Debug("room refilled before removal", zap.String("room", code))
		return
	}
	h.forget(code)
}

func (h *Hub) remove(code string) {
	rm := h.rooms[code]
	if rm == nil {
		return
	}
	select {
	case rm.Inbox() <- room.Shutdown{}:
	case <-rm.Done():
	}
	h.forget(code)
}

func (h *Hub) forget(code string) {
	delete(h.rooms, code)
	if h.dir != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := h.dir.Deregister(ctx, code); err != nil {
			h.log.Warn("deregister room", zap.String("room", code), zap.Error(err))
		}
		cancel()
	}
	h.log.Info("room removed", zap.String("room", code), zap.Int("rooms", len(h.rooms)))
}

func (h *Hub) shutdown() {
	for code := range h.rooms {
		h.remove(code)
	}
	h.cancel()
}
