package ws

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/DoyleJ11/poipoi-backend/internal/room"
	"github.com/DoyleJ11/poipoi-backend/internal/types"
	wire "github.com/DoyleJ11/poipoi-backend/pkg/types"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

var ErrJoinRejected = errors.New("join rejected")

// Conn is a room Transport over a websocket.
type Conn struct {
	ws     *websocket.Conn
	frames chan wire.Frame
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	log    *zap.Logger
}

var _ room.Transport = (*Conn)(nil)

// Dial joins room code on the server at serverURL (the /ws endpoint). Like
// room.Dial it returns once the room has accepted or refused the join.
func Dial(ctx context.Context, serverURL, code, name string, log *zap.Logger) (*Conn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("code", code)
	q.Set("name", name)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", code, err)
	}
	ws.SetReadLimit(1 << 20)

	// The first frame is the welcome, or a policy close if the room refused us.
	first, err := readFrame(ctx, ws)
	if err != nil {
		ws.CloseNow()
		var ce websocket.CloseError
		if errors.As(err, &ce) && ce.Code == websocket.StatusPolicyViolation {
			return nil, fmt.Errorf("%w: %s", ErrJoinRejected, ce.Reason)
		}
		return nil, fmt.Errorf("await welcome: %w", err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:     ws,
		frames: make(chan wire.Frame, 256),
		ctx:    cctx,
		cancel: cancel,
		log:    log.Named("ws-client").With(zap.String("room", code)),
	}
	c.frames <- first
	go c.readLoop()
	return c, nil
}

func readFrame(ctx context.Context, ws *websocket.Conn) (wire.Frame, error) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			return wire.Frame{}, err
		}
		f, err := types.DecodeFrame(types.Message{Binary: typ == websocket.MessageBinary, Data: data})
		if err != nil {
			continue
		}
		return f, nil
	}
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	for {
		typ, data, err := c.ws.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && c.ctx.Err() == nil {
				c.log.Info("connection lost", zap.Error(err))
			}
			return
		}
		f, err := types.DecodeFrame(types.Message{Binary: typ == websocket.MessageBinary, Data: data})
		if err != nil {
			c.log.Warn("bad frame", zap.Error(err))
			continue
		}
		select {
		case c.frames <- f:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Conn) Send(req wire.Request) error {
	if c.ctx.Err() != nil {
		return room.ErrConnClosed
	}
	m, err := types.EncodeRequest(req)
	if err != nil {
		return err
	}
	typ := websocket.MessageText
	if m.Binary {
		typ = websocket.MessageBinary
	}
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	if err := c.ws.Write(ctx, typ, m.Data); err != nil {
		return fmt.Errorf("send %s: %w", req.Kind, err)
	}
	return nil
}

func (c *Conn) Frames() <-chan wire.Frame { return c.frames }

// Close leaves the room. Frames is closed once the reader has stopped.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		err = c.ws.Close(websocket.StatusNormalClosure, "bye")
		c.cancel()
	})
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return nil
	}
	return err
}
