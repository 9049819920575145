package room

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const offlineParticipant = "local"

// Offline starts a single-seat in-process room and joins it. Everything the
// session does online works the same way; Disconnect tears the room down.
func Offline(ctx context.Context, name string, log *zap.Logger) (*Replica, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := New(ctx, "offline", WithCapacity(1), WithLogger(log))
	conn, err := Dial(ctx, r, offlineParticipant, name)
	if err != nil {
		r.Inbox() <- Shutdown{}
		return nil, fmt.Errorf("join offline room: %w", err)
	}
	rep := NewReplica(conn, log)
	rep.offline = true
	rep.local = r
	return rep, nil
}
