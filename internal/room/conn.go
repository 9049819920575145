package room

import (
	"context"
	"errors"
	"sync"

	"github.com/DoyleJ11/poipoi-backend/pkg/types"
)

var ErrConnClosed = errors.New("connection closed")

// Transport is one participant's link to a room. Frames are delivered in the
// room's order; the channel is closed when the participant is disconnected.
type Transport interface {
	Send(req types.Request) error
	Frames() <-chan types.Frame
	Close() error
}

// LocalConn is an in-process Transport.
type LocalConn struct {
	room   *Room
	id     string
	out    chan types.Frame
	closed chan struct{}
	once   sync.Once
}

// Dial joins r as participant id and returns the join error synchronously.
func Dial(ctx context.Context, r *Room, id, name string) (*LocalConn, error) {
	c := &LocalConn{
		room:   r,
		id:     id,
		out:    make(chan types.Frame, 256),
		closed: make(chan struct{}),
	}
	reply := make(chan error, 1)
	select {
	case r.Inbox() <- Join{ID: id, Name: name, Outbox: c.out, Reply: reply}:
	case <-r.Done():
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case err := <-reply:
		if err != nil {
			return nil, err
		}
	case <-r.Done():
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c, nil
}

func (c *LocalConn) ID() string { return c.id }

func (c *LocalConn) Send(req types.Request) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.room.Inbox() <- FromParticipant{ID: c.id, Req: req}:
		return nil
	case <-c.room.Done():
		return ErrRoomClosed
	case <-c.closed:
		return ErrConnClosed
	}
}

func (c *LocalConn) Frames() <-chan types.Frame { return c.out }

// Close leaves the room. The frame channel is closed by the room once the
// leave has been processed.
func (c *LocalConn) Close() error {
	c.once.Do(func() {
		close(c.closed)
		select {
		case c.room.Inbox() <- Leave{ID: c.id}:
		case <-c.room.Done():
		}
	})
	return nil
}
