package types

// RoomSnapshot is the HTTP view of a room:
//   code: string
//   players: PlayerProps[] in join order
//   room: { match_started, practice, open }
//   authority: participant id of the designated authority ("" when empty)
//   seq: number of authoritative events relayed so far
type RoomSnapshot struct {
	Code      string        `json:"code"`
	Capacity  int           `json:"capacity"`
	Players   []PlayerProps `json:"players"`
	Room      RoomProps     `json:"room"`
	Authority string        `json:"authority"`
	Seq       uint64        `json:"seq"`
}
