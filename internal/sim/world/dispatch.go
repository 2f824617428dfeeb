package world

import (
	"fmt"

	"megabots.dev/internal/protocol"
)

// Assignment is the outcome of a pickup request.
type Assignment struct {
	RobotID  int
	PickupID uint64
	DropID   uint64
	// Queued is set when every capable robot was busy and the pair went
	// behind existing work.
	Queued bool
}

// GotoDirect appends one waypoint to a robot's queue. The target is only
// bounds-checked; obstacles are resolved while moving.
func (w *World) GotoDirect(robotID, x, y int) (Waypoint, error) {
	if _, err := w.fleet.Get(robotID); err != nil {
		return Waypoint{}, err
	}
	if !w.grid.InBounds(x, y) {
		return Waypoint{}, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}
	wp := Waypoint{ID: w.ids.next(), X: x, Y: y}
	w.enqueue(robotID, wp)
	w.audit(AuditEntry{Action: "GOTO", RobotID: robotID, X: x, Y: y, Ref: wp.ID})
	w.flush()
	return wp, nil
}

// CancelWaypoint removes a waypoint wherever it sits in the robot's queue.
// Cancelling an id that is not queued does nothing.
func (w *World) CancelWaypoint(robotID int, wpID uint64) (bool, error) {
	removed, err := w.fleet.Cancel(robotID, wpID)
	if err != nil || !removed {
		return false, err
	}
	w.emit(WaypointCancelled{RobotID: robotID, WaypointID: wpID, Reason: protocol.CancelRequested})
	w.audit(AuditEntry{Action: "CANCEL", RobotID: robotID, Ref: wpID, Reason: protocol.CancelRequested})
	w.flush()
	return true, nil
}

// Pickup assigns a pickup/drop pair to a robot able to lift weight. Idle
// robots are preferred; when all capable robots are busy the pair is
// queued behind one of them.
func (w *World) Pickup(weight int, pickup, drop Pos) (Assignment, error) {
	if weight < 0 {
		return Assignment{}, fmt.Errorf("%w: negative weight %d", ErrBadCommand, weight)
	}
	for _, p := range []Pos{pickup, drop} {
		if !w.grid.InBounds(p.X, p.Y) {
			return Assignment{}, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, p.X, p.Y)
		}
	}

	robots := w.fleet.Sorted()
	w.rng.Shuffle(len(robots), func(i, j int) { robots[i], robots[j] = robots[j], robots[i] })

	var chosen *Robot
	queued := false
	for _, r := range robots {
		if r.Idle() && r.LiftCapacity >= weight {
			chosen = r
			break
		}
	}
	if chosen == nil {
		for _, r := range robots {
			if r.LiftCapacity >= weight {
				chosen, queued = r, true
				break
			}
		}
	}
	if chosen == nil {
		return Assignment{}, fmt.Errorf("%w: weight %d", ErrNoCapableRobot, weight)
	}

	a := Assignment{RobotID: chosen.ID, Queued: queued}
	pw := Waypoint{ID: w.ids.next(), X: pickup.X, Y: pickup.Y}
	dw := Waypoint{ID: w.ids.next(), X: drop.X, Y: drop.Y}
	a.PickupID, a.DropID = pw.ID, dw.ID
	w.enqueue(chosen.ID, pw)
	w.enqueue(chosen.ID, dw)
	w.audit(AuditEntry{Action: "PICKUP", RobotID: chosen.ID, X: pickup.X, Y: pickup.Y, Ref: pw.ID, Weight: weight})
	w.audit(AuditEntry{Action: "DROP", RobotID: chosen.ID, X: drop.X, Y: drop.Y, Ref: dw.ID, Weight: weight})
	w.flush()
	return a, nil
}

// enqueue appends a waypoint the caller already validated.
func (w *World) enqueue(robotID int, wp Waypoint) {
	if err := w.fleet.Enqueue(robotID, wp); err != nil {
		w.logf("enqueue robot %d: %v", robotID, err)
		return
	}
	w.emit(WaypointAdded{RobotID: robotID, Waypoint: wp})
}
