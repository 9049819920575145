// Package relay mirrors each room's ordered event stream onto NATS so other
// services can follow a match without joining it.
package relay

import (
	"fmt"

	"github.com/DoyleJ11/poipoi-backend/internal/room"
	"github.com/DoyleJ11/poipoi-backend/internal/types"
	wire "github.com/DoyleJ11/poipoi-backend/pkg/types"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subject is where room code's events are published.
func Subject(code string) string {
	return "poipoi.room." + code + ".events"
}

// Connect dials NATS and keeps reconnecting for the life of the process.
func Connect(url string, log *zap.Logger) (*nats.Conn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("nats")
	nc, err := nats.Connect(url,
		nats.Name("poipoi"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

type Publisher interface {
	Publish(subj string, data []byte) error
}

// Mirror publishes relayed event frames. Each room publishes from its own
// goroutine, so a subject sees its events in room order.
type Mirror struct {
	pub Publisher
}

var _ room.Mirror = (*Mirror)(nil)

func NewMirror(pub Publisher) *Mirror {
	return &Mirror{pub: pub}
}

func (m *Mirror) Publish(code string, f wire.Frame) error {
	msg, err := types.EncodeFrame(f)
	if err != nil {
		return err
	}
	if err := m.pub.Publish(Subject(code), msg.Data); err != nil {
		return fmt.Errorf("publish %s: %w", code, err)
	}
	return nil
}

// Follow calls fn with every event frame mirrored for room code.
func Follow(nc *nats.Conn, code string, fn func(wire.Frame), log *zap.Logger) (*nats.Subscription, error) {
	if log == nil {
		log = zap.NewNop()
	}
	sub, err := nc.Subscribe(Subject(code), func(m *nats.Msg) {
		f, err := decode(m)
		if err != nil {
			log.Warn("bad mirrored frame", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		fn(f)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", code, err)
	}
	return sub, nil
}

func decode(m *nats.Msg) (wire.Frame, error) {
	return types.DecodeFrame(types.Message{Data: m.Data})
}
