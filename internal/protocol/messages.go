package protocol

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Direction struct {
	ID uint64 `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
}

type TileUpdate struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Type int `json:"type"`
}

// website_connect (client -> server)
// website_id is a string or a number (browsers send Date.now()).
type WebsiteConnectData struct {
	WebsiteID any `json:"website_id,omitempty"`
}

// robot_connect (robot -> server). Robot and LiftCapacity are optional; the
// configured spawn and capacity apply when they are missing.
type RobotHelloData struct {
	RobotID      int         `json:"robot_id"`
	Robot        *Point      `json:"robot,omitempty"`
	LiftCapacity int         `json:"lift_capacity,omitempty"`
	Directions   []Direction `json:"directions,omitempty"`
}

// robot_connect (server -> client)
type RobotConnectData struct {
	RobotID      int         `json:"robot_id"`
	Robot        Point       `json:"robot"`
	LiftCapacity int         `json:"lift_capacity"`
	Directions   []Direction `json:"directions"`
}

type RobotDisconnectData struct {
	RobotID int `json:"robot_id"`
}

type MapData struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Data   []int `json:"data"`
}

type RobotInfo struct {
	ID           int         `json:"id"`
	X            *int        `json:"x,omitempty"`
	Y            *int        `json:"y,omitempty"`
	LiftCapacity int         `json:"lift_capacity"`
	Connected    bool        `json:"connected"`
	Directions   []Direction `json:"directions"`
}

// WorldInfo is the snapshot delivered once per connection.
type WorldInfo struct {
	Map           MapData     `json:"map"`
	Tick          uint64      `json:"tick"`
	TickType      int         `json:"tick_type"`
	TickSpeed     int         `json:"tick_speed"`
	ActiveProgram string      `json:"active_program"`
	Robots        []RobotInfo `json:"robots"`
}

// update_world_info. Omitted fields are left unchanged.
type UpdateWorldInfoData struct {
	TickType      *int    `json:"tick_type,omitempty"`
	TickSpeed     *int    `json:"tick_speed,omitempty"`
	ActiveProgram *string `json:"active_program,omitempty"`
}

// new_direction. Clients send only x/y; the server assigns the id.
type NewDirectionData struct {
	RobotID   int       `json:"robot_id"`
	Direction Direction `json:"direction"`
}

type CancelDirectionData struct {
	RobotID     int    `json:"robot_id"`
	DirectionID uint64 `json:"direction_id"`
	Reason      string `json:"reason,omitempty"`
}

type RobotTickDoneData struct {
	RobotID int          `json:"robot_id"`
	Robot   Point        `json:"robot"`
	Map     []TileUpdate `json:"map"`
}

type WebsiteTickData struct {
	Tick uint64 `json:"tick"`
}

type PickupData struct {
	Weight int   `json:"weight"`
	Pickup Point `json:"pickup"`
	Drop   Point `json:"drop"`
}

type TaskAssignedData struct {
	RobotID  int    `json:"robot_id"`
	PickupID uint64 `json:"pickup_id"`
	DropID   uint64 `json:"drop_id"`
	Queued   bool   `json:"queued"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	For     string `json:"for,omitempty"`
}

// Cancel reasons.
const (
	CancelRequested   = "cancelled"
	CancelReached     = "reached"
	CancelUnreachable = "unreachable"
)
