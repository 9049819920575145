package item

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	"go.uber.org/zap"
)

var ErrAlreadyCarrying = errors.New("already carrying an item")
var ErrNotCarrying = errors.New("not carrying an item")

type Broadcaster interface {
	Broadcast(evt types.Event) error
}

type ClaimState int

const (
	ClaimPending ClaimState = iota
	ClaimWon
	ClaimLost
)

func (s ClaimState) String() string {
	switch s {
	case ClaimPending:
		return "pending"
	case ClaimWon:
		return "won"
	case ClaimLost:
		return "lost"
	default:
		return fmt.Sprintf("ClaimState(%d)", int(s))
	}
}

// Claim is a local participant's tentative pickup. It settles when the
// participant's own pick event comes back from the room.
type Claim struct {
	ItemID int
	State  ClaimState
}

// Protocol is the local participant's side of item ownership. The carried
// item reference is set optimistically by AttemptPickup and rolled back if
// the room ordered someone else's pick first.
type Protocol struct {
	self     string
	ledger   *Ledger
	net      Broadcaster
	log      *zap.Logger
	carrying int
	holding  bool
	claim    *Claim
}

func NewProtocol(self string, ledger *Ledger, net Broadcaster, log *zap.Logger) *Protocol {
	if log == nil {
		log = zap.NewNop()
	}
	return &Protocol{self: self, ledger: ledger, net: net, log: log.Named("item")}
}

func (p *Protocol) Ledger() *Ledger { return p.ledger }

// Carrying returns the item the local character holds, tentatively or not.
func (p *Protocol) Carrying() (*DropItem, bool) {
	if !p.holding {
		return nil, false
	}
	return p.ledger.Get(p.carrying)
}

// AttemptPickup claims a free item and broadcasts the pick.
func (p *Protocol) AttemptPickup(id int) (*Claim, error) {
	if p.holding {
		return nil, ErrAlreadyCarrying
	}
	d, ok := p.ledger.Get(id)
	if !ok {
		return nil, ErrUnknownItem
	}
	if d.Picked() {
		return nil, ErrAlreadyHeld
	}

	c := &Claim{ItemID: id}
	p.claim, p.carrying, p.holding = c, id, true
	if err := p.net.Broadcast(types.Event{Kind: types.EventPickItem, ItemID: id, Requester: p.self}); err != nil {
		p.rollback()
		return nil, fmt.Errorf("broadcast pick: %w", err)
	}
	p.log.Debug("pickup claimed", zap.Int("item", id))
	return c, nil
}

// Throw releases the carried item from start with the given impulse.
func (p *Protocol) Throw(start, impulse types.Vec2, height float64) error {
	if !p.holding {
		return ErrNotCarrying
	}
	evt := types.Event{
		Kind:      types.EventThrowItem,
		ItemID:    p.carrying,
		Requester: p.self,
		Start:     start,
		Impulse:   impulse,
		Height:    height,
	}
	if err := p.net.Broadcast(evt); err != nil {
		return fmt.Errorf("broadcast throw: %w", err)
	}
	p.log.Debug("item thrown", zap.Int("item", p.carrying), zap.Float64("impulse", impulse.Len()))
	p.holding = false
	p.claim = nil
	return nil
}

// Deliver applies an authoritative event in room order and settles the local
// claim when its own pick comes back.
func (p *Protocol) Deliver(evt types.Event) error {
	err := p.ledger.Apply(evt)

	if evt.Kind == types.EventPickItem && evt.Requester == p.self {
		c := p.claim
		if c == nil || c.ItemID != evt.ItemID {
			return err
		}
		d, _ := p.ledger.Get(evt.ItemID)
		if d != nil && d.Holder() == p.self {
			c.State = ClaimWon
			p.log.Debug("pickup confirmed", zap.Int("item", evt.ItemID))
		} else {
			c.State = ClaimLost
			p.log.Debug("pickup lost", zap.Int("item", evt.ItemID))
			p.rollback()
		}
		p.claim = nil
		if errors.Is(err, ErrAlreadyHeld) {
			// lost race, settled above
			return nil
		}
	}
	return err
}

func (p *Protocol) rollback() {
	if p.claim != nil && p.claim.State == ClaimPending {
		p.claim.State = ClaimLost
	}
	p.claim = nil
	p.holding = false
}
