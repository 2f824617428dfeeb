package protocol

import "encoding/json"

// Message types. Names follow the wire format used by the robots and the
// browser observer.
const (
	TypeWebsiteConnect  = "website_connect"
	TypeRobotConnect    = "robot_connect"
	TypeRobotDisconnect = "robot_disconnect"
	TypeWorldInfo       = "world_info"
	TypeUpdateWorldInfo = "update_world_info"
	TypeNewDirection    = "new_direction"
	TypeCancelDirection = "cancel_direction"
	TypeWorldTick       = "world_tick"
	TypeRobotTickDone   = "robot_tick_done"
	TypeWebsiteTick     = "website_tick"
	TypePickup          = "pickup"
	TypeTaskAssigned    = "task_assigned"
	TypeError           = "error"
)

// Tick modes as carried in tick_type.
const (
	TickManual = 0
	TickAuto   = 1
)

// Tile types as carried in map data and reveals.
const (
	TileUnknown = 0
	TileFloor   = 1
	TileChest   = 2
	TileWall    = 3
)

// Program ids for active_program.
const (
	ProgramNothing  = "Nothing"
	ProgramDiscover = "Discover"
	ProgramRandom   = "Random"
)

// Message is one frame: {type, data}.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func Decode(b []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(b, &m)
	return m, err
}

// DecodeData unmarshals m.Data into v. Missing data decodes as an empty object.
func DecodeData(m Message, v any) error {
	if len(m.Data) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(m.Data, v)
}

// Encode builds a frame for the given type and payload.
func Encode(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: typ, Data: raw})
}
