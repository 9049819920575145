// Package ws carries room traffic over websockets, both the server side and
// a client Transport.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/hub"
	"github.com/DoyleJ11/poipoi-backend/internal/room"
	"github.com/DoyleJ11/poipoi-backend/internal/types"
	wire "github.com/DoyleJ11/poipoi-backend/pkg/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		name := r.URL.Query().Get("name")

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		id := uuid.NewString()
		log := log.With(zap.String("room", code), zap.String("participant", id))
		out := make(chan wire.Frame, 256)
		joinReply := make(chan error, 1)
		select {
		case rm.Inbox() <- room.Join{ID: id, Name: name, Outbox: out, Reply: joinReply}:
		case <-rm.Done():
			joinReply <- room.ErrRoomClosed
		}
		if err := <-joinReply; err != nil {
			log.Info("join rejected", zap.Error(err))
			conn.Close(websocket.StatusPolicyViolation, err.Error())
			return
		}
		defer func() {
			select {
			case rm.Inbox() <- room.Leave{ID: id}:
			case <-rm.Done():
			}
		}()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for f := range out {
				if err := write(writeCtx, conn, f); err != nil {
					log.Debug("write frame", zap.Error(err))
				}
			}
			// the room let go of us
			conn.Close(websocket.StatusNormalClosure, "left room")
		}()

		// Reader loop
		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if !errors.Is(err, context.Canceled) {
						log.Debug("read", zap.Error(err))
					}
				}
				return
			}

			req, err := types.DecodeRequest(types.Message{Binary: typ == websocket.MessageBinary, Data: data})
			if err != nil {
				_ = write(r.Context(), conn, wire.Frame{Kind: wire.FrameRejected, Participant: id, Error: err.Error()})
				continue
			}

			select {
			case rm.Inbox() <- room.FromParticipant{ID: id, Req: req}:
			case <-rm.Done():
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, f wire.Frame) error {
	m, err := types.EncodeFrame(f)
	if err != nil {
		return err
	}
	typ := websocket.MessageText
	if m.Binary {
		typ = websocket.MessageBinary
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, typ, m.Data)
}
