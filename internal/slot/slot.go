// Package slot assigns each participant a seat number in [0, N) that no other
// present participant holds.
//
// A participant proposes a number by writing it to its own replicated record,
// waits until the room echoes that write back, and only then looks at the
// numbers everyone else held at the moment of the echo. Since the room orders
// all writes, of two participants proposing the same number the later one
// always sees the earlier one and moves on.
package slot

import (
	"errors"
	"fmt"
	"slices"

	"github.com/DoyleJ11/poipoi-backend/internal/task"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	"go.uber.org/zap"
)

var ErrSessionFull = errors.New("session full")

// Board is the replicated participant state the assignment runs against.
type Board interface {
	ProposeSlot(slot int) error
	// SlotConfirmed resolves with the other participants' slots once the
	// local proposal of slot has made the round trip.
	SlotConfirmed(slot int) *task.Future[[]int]
	MarkReady() error
}

// Assign runs the propose, confirm, scan cycle until a free slot is committed
// and the participant is marked ready.
func Assign(y *task.Yielder, b Board, capacity int, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if capacity <= 0 {
		return types.NoSlot, fmt.Errorf("%w: capacity %d", ErrSessionFull, capacity)
	}
	for i := 0; ; i = (i + 1) % capacity {
		confirmed := b.SlotConfirmed(i)
		if err := b.ProposeSlot(i); err != nil {
			return types.NoSlot, fmt.Errorf("propose slot %d: %w", i, err)
		}
		peers, err := task.Await(y, confirmed)
		if err != nil {
			return types.NoSlot, err
		}
		if !slices.Contains(peers, i) {
			if err := b.MarkReady(); err != nil {
				return types.NoSlot, fmt.Errorf("mark ready: %w", err)
			}
			log.Info("slot assigned", zap.Int("slot", i))
			return i, nil
		}
		log.Debug("slot taken, retrying", zap.Int("slot", i))
		if occupied(peers, capacity) {
			// withdraw so the others do not count this participant
			_ = b.ProposeSlot(types.NoSlot)
			return types.NoSlot, ErrSessionFull
		}
	}
}

func occupied(peers []int, capacity int) bool {
	for i := range capacity {
		if !slices.Contains(peers, i) {
			return false
		}
	}
	return true
}
