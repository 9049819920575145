package types

// Client -> Server (Request)
//   player_props: patch of the sender's own participant record
//   room_props:   patch of the room-shared properties (authority only)
//   event:        authoritative event, relayed to everyone including the sender
//   pose:         per-tick character pose, relayed to everyone else
//
// Server -> Client (Frame)
//   welcome, player_joined, player_left, player_props, room_props,
//   authority, event, pose, rejected

// NoSlot marks a participant that has not proposed a slot yet.
const NoSlot = -1

type PlayerProps struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Slot   int     `json:"slot"`
	Ready  bool    `json:"ready"`
	Score  int     `json:"score"`
	Record float64 `json:"record"`
}

type PlayerPatch struct {
	Name   *string  `json:"name,omitempty"`
	Slot   *int     `json:"slot,omitempty"`
	Ready  *bool    `json:"ready,omitempty"`
	Score  *int     `json:"score,omitempty"`
	Record *float64 `json:"record,omitempty"`
}

func (p PlayerProps) Apply(patch PlayerPatch) PlayerProps {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Slot != nil {
		p.Slot = *patch.Slot
	}
	if patch.Ready != nil {
		p.Ready = *patch.Ready
	}
	if patch.Score != nil {
		p.Score = *patch.Score
	}
	if patch.Record != nil {
		p.Record = *patch.Record
	}
	return p
}

type RoomProps struct {
	MatchStarted bool `json:"match_started"`
	Practice     bool `json:"practice"`
	Open         bool `json:"open"`
}

type RoomPatch struct {
	MatchStarted *bool `json:"match_started,omitempty"`
	Practice     *bool `json:"practice,omitempty"`
	Open         *bool `json:"open,omitempty"`
}

func (r RoomProps) Apply(patch RoomPatch) RoomProps {
	if patch.MatchStarted != nil {
		r.MatchStarted = *patch.MatchStarted
	}
	if patch.Practice != nil {
		r.Practice = *patch.Practice
	}
	if patch.Open != nil {
		r.Open = *patch.Open
	}
	return r
}

type EventKind string

const (
	EventPickItem         EventKind = "pick_item"
	EventThrowItem        EventKind = "throw_item"
	EventSpawnItem        EventKind = "spawn_item"
	EventSpawnCharacter   EventKind = "spawn_character"
	EventDespawnCharacter EventKind = "despawn_character"
)

// Event is an authoritative event. Its delivery order, as stamped by the room,
// is the same for every participant.
type Event struct {
	Kind        EventKind `json:"kind"`
	ItemID      int       `json:"item_id,omitempty"`
	Requester   string    `json:"requester,omitempty"`
	Start       Vec2      `json:"start"`
	Impulse     Vec2      `json:"impulse"`
	Height      float64   `json:"height,omitempty"`
	Mass        float64   `json:"mass,omitempty"`
	Participant string    `json:"participant,omitempty"`
	Slot        int       `json:"slot,omitempty"`
	Position    Vec2      `json:"position"`
}

type Pose struct {
	Participant string `json:"participant" msgpack:"p"`
	Position    Vec2   `json:"position" msgpack:"pos"`
	Velocity    Vec2   `json:"velocity" msgpack:"vel"`
	FlipX       bool   `json:"flip_x" msgpack:"fx"`
	Facing      Vec2   `json:"facing" msgpack:"f"`
}

type FrameKind string

const (
	FrameWelcome      FrameKind = "welcome"
	FramePlayerJoined FrameKind = "player_joined"
	FramePlayerLeft   FrameKind = "player_left"
	FramePlayerProps  FrameKind = "player_props"
	FrameRoomProps    FrameKind = "room_props"
	FrameAuthority    FrameKind = "authority"
	FrameEvent        FrameKind = "event"
	FramePose         FrameKind = "pose"
	FrameRejected     FrameKind = "rejected"
)

type Frame struct {
	Kind        FrameKind     `json:"kind"`
	Participant string        `json:"participant,omitempty"`
	From        string        `json:"from,omitempty"`
	Seq         uint64        `json:"seq,omitempty"`
	Players     []PlayerProps `json:"players,omitempty"`
	Player      *PlayerProps  `json:"player,omitempty"`
	Room        *RoomProps    `json:"room,omitempty"`
	Authority   string        `json:"authority,omitempty"`
	Event       *Event        `json:"event,omitempty"`
	Pose        *Pose         `json:"pose,omitempty"`
	Error       string        `json:"error,omitempty"`
}

type RequestKind string

const (
	RequestPlayerProps RequestKind = "player_props"
	RequestRoomProps   RequestKind = "room_props"
	RequestEvent       RequestKind = "event"
	RequestPose        RequestKind = "pose"
)

type Request struct {
	Kind   RequestKind  `json:"kind"`
	Player *PlayerPatch `json:"player,omitempty"`
	Room   *RoomPatch   `json:"room,omitempty"`
	Event  *Event       `json:"event,omitempty"`
	Pose   *Pose        `json:"pose,omitempty"`
}
