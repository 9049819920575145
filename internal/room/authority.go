package room

import "github.com/DoyleJ11/poipoi-backend/pkg/types"

// Authority is the write capability for room-shared state. Only the
// participant currently designated as the room authority can obtain one, and
// each write rechecks that the designation still holds.
type Authority struct {
	r *Replica
}

func (r *Replica) Authority() (*Authority, bool) {
	if !r.IsAuthority() {
		return nil, false
	}
	return &Authority{r: r}, true
}

func (a *Authority) write(patch types.RoomPatch) error {
	if !a.r.IsAuthority() {
		return ErrNotAuthority
	}
	return a.r.conn.Send(types.Request{Kind: types.RequestRoomProps, Room: &patch})
}

func (a *Authority) SetPractice(on bool) error {
	return a.write(types.RoomPatch{Practice: &on})
}

func (a *Authority) SetMatchStarted(on bool) error {
	return a.write(types.RoomPatch{MatchStarted: &on})
}

// StartMatch closes the room to new participants and ends the lobby.
func (a *Authority) StartMatch() error {
	closed, started := false, true
	return a.write(types.RoomPatch{Open: &closed, MatchStarted: &started})
}

func (a *Authority) SpawnItem(id int, pos types.Vec2, mass float64) error {
	if !a.r.IsAuthority() {
		return ErrNotAuthority
	}
	return a.r.Broadcast(types.Event{Kind: types.EventSpawnItem, ItemID: id, Position: pos, Mass: mass})
}
