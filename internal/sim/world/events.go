package world

import "megabots.dev/internal/protocol"

// Event is one state change produced by a command or a step. Events are
// buffered while a command applies and published once it has fully applied.
type Event interface {
	Type() string
	Payload() any
}

type RobotConnected struct {
	RobotID      int
	Pos          Pos
	LiftCapacity int
	Queue        []Waypoint
}

func (RobotConnected) Type() string { return protocol.TypeRobotConnect }
func (e RobotConnected) Payload() any {
	return protocol.RobotConnectData{
		RobotID:      e.RobotID,
		Robot:        protocol.Point{X: e.Pos.X, Y: e.Pos.Y},
		LiftCapacity: e.LiftCapacity,
		Directions:   directions(e.Queue),
	}
}

type RobotDisconnected struct{ RobotID int }

func (RobotDisconnected) Type() string { return protocol.TypeRobotDisconnect }
func (e RobotDisconnected) Payload() any {
	return protocol.RobotDisconnectData{RobotID: e.RobotID}
}

type WaypointAdded struct {
	RobotID  int
	Waypoint Waypoint
}

func (WaypointAdded) Type() string { return protocol.TypeNewDirection }
func (e WaypointAdded) Payload() any {
	return protocol.NewDirectionData{RobotID: e.RobotID, Direction: direction(e.Waypoint)}
}

type WaypointCancelled struct {
	RobotID    int
	WaypointID uint64
	Reason     string
}

func (WaypointCancelled) Type() string { return protocol.TypeCancelDirection }
func (e WaypointCancelled) Payload() any {
	return protocol.CancelDirectionData{RobotID: e.RobotID, DirectionID: e.WaypointID, Reason: e.Reason}
}

type Reveal struct {
	Pos  Pos
	Tile TileType
}

// RobotMoved reports a robot's position after it was processed, together
// with every tile its sensors revealed.
type RobotMoved struct {
	RobotID int
	Pos     Pos
	Reveals []Reveal
}

func (RobotMoved) Type() string { return protocol.TypeRobotTickDone }
func (e RobotMoved) Payload() any {
	updates := make([]protocol.TileUpdate, 0, len(e.Reveals))
	for _, r := range e.Reveals {
		updates = append(updates, protocol.TileUpdate{X: r.Pos.X, Y: r.Pos.Y, Type: int(r.Tile)})
	}
	return protocol.RobotTickDoneData{
		RobotID: e.RobotID,
		Robot:   protocol.Point{X: e.Pos.X, Y: e.Pos.Y},
		Map:     updates,
	}
}

// TickConfigChanged carries the full tick configuration after an update.
type TickConfigChanged struct {
	Mode    TickMode
	SpeedMs int
	Program string
}

func (TickConfigChanged) Type() string { return protocol.TypeUpdateWorldInfo }
func (e TickConfigChanged) Payload() any {
	mode := int(e.Mode)
	speed := e.SpeedMs
	prog := e.Program
	return protocol.UpdateWorldInfoData{TickType: &mode, TickSpeed: &speed, ActiveProgram: &prog}
}

type TickFired struct{ Tick uint64 }

func (TickFired) Type() string { return protocol.TypeWebsiteTick }
func (e TickFired) Payload() any {
	return protocol.WebsiteTickData{Tick: e.Tick}
}

func direction(wp Waypoint) protocol.Direction {
	return protocol.Direction{ID: wp.ID, X: wp.X, Y: wp.Y}
}

func directions(q []Waypoint) []protocol.Direction {
	out := make([]protocol.Direction, 0, len(q))
	for _, wp := range q {
		out = append(out, direction(wp))
	}
	return out
}

// EncodeEvent renders an event as a wire frame.
func EncodeEvent(e Event) ([]byte, error) {
	return protocol.Encode(e.Type(), e.Payload())
}
