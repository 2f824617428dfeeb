package world

import (
	"fmt"
)

// ConnectRobot marks a robot connected as if its link had just completed the
// handshake. pos and existing seed a robot seen for the first time.
func (w *World) ConnectRobot(id int, pos *Pos, capacity int, existing []Waypoint) error {
	if err := w.checkConnect(id, pos, existing, false); err != nil {
		return err
	}
	if err := w.connect(id, pos, capacity, existing); err != nil {
		return err
	}
	w.flush()
	return nil
}

// DisconnectRobot marks a robot disconnected. Position and queue are kept.
func (w *World) DisconnectRobot(id int) error {
	if err := w.disconnect(id); err != nil {
		return err
	}
	w.flush()
	return nil
}

// checkConnect validates a connect without mutating anything. With replace
// set, a robot that is still connected may be taken over.
func (w *World) checkConnect(id int, pos *Pos, existing []Waypoint, replace bool) error {
	r, err := w.fleet.Get(id)
	if err != nil {
		return err
	}
	if r.Connected && !replace {
		return fmt.Errorf("%w: %d", ErrAlreadyConnected, id)
	}
	for _, wp := range existing {
		if !w.grid.InBounds(wp.X, wp.Y) {
			return fmt.Errorf("%w: direction (%d,%d)", ErrOutOfBounds, wp.X, wp.Y)
		}
	}
	if r.Pos != nil {
		return nil
	}
	start := pos
	if start == nil {
		start = r.spawn
	}
	if start == nil {
		return fmt.Errorf("%w: robot %d has no position", ErrBadCommand, id)
	}
	if !w.grid.Interior(start.X, start.Y) {
		return fmt.Errorf("%w: robot %d at (%d,%d)", ErrOutOfBounds, id, start.X, start.Y)
	}
	if w.grid.at(*start).Blocking() || w.sensor.Sense(start.X, start.Y).Blocking() {
		return fmt.Errorf("%w: robot %d cannot stand at (%d,%d)", ErrTileInvariant, id, start.X, start.Y)
	}
	if other, ok := w.fleet.OccupantAt(*start); ok && other != id {
		return fmt.Errorf("%w: (%d,%d) held by robot %d", ErrOccupied, start.X, start.Y, other)
	}
	return nil
}

func (w *World) connect(id int, pos *Pos, capacity int, existing []Waypoint) error {
	cur, err := w.fleet.Get(id)
	if err != nil {
		return err
	}
	// A reported queue only seeds an empty one. Its ids are not trusted; the
	// robot learns the new ones from robot_connect.
	var seeded []Waypoint
	if len(cur.Queue) == 0 {
		for _, wp := range existing {
			wp.ID = w.ids.next()
			seeded = append(seeded, wp)
		}
	}
	r, err := w.fleet.Connect(id, pos, capacity, seeded)
	if err != nil {
		return err
	}
	w.emit(RobotConnected{RobotID: r.ID, Pos: *r.Pos, LiftCapacity: r.LiftCapacity, Queue: append([]Waypoint(nil), r.Queue...)})
	w.emit(RobotMoved{RobotID: r.ID, Pos: *r.Pos, Reveals: w.sense(*r.Pos)})
	w.audit(AuditEntry{Action: "CONNECT", RobotID: r.ID, X: r.Pos.X, Y: r.Pos.Y, Ref: uint64(len(r.Queue))})
	if w.log != nil {
		w.log.Printf("robot %d connected at (%d,%d) capacity=%d queue=%d", r.ID, r.Pos.X, r.Pos.Y, r.LiftCapacity, len(r.Queue))
	}
	return nil
}

func (w *World) disconnect(id int) error {
	r, err := w.fleet.Get(id)
	if err != nil {
		return err
	}
	if !r.Connected {
		return nil
	}
	if _, err := w.fleet.Disconnect(id); err != nil {
		return err
	}
	w.emit(RobotDisconnected{RobotID: id})
	a := AuditEntry{Action: "DISCONNECT", RobotID: id, Ref: uint64(len(r.Queue))}
	if r.Pos != nil {
		a.X, a.Y = r.Pos.X, r.Pos.Y
	}
	w.audit(a)
	if w.log != nil {
		w.log.Printf("robot %d disconnected, keeping %d queued", id, len(r.Queue))
	}
	return nil
}

// sense reveals the cell at p as floor and, when enabled, the four
// neighbours as the sensor reports them. Only tiles that change are returned.
func (w *World) sense(p Pos) []Reveal {
	var out []Reveal
	reveal := func(q Pos, t TileType) {
		cur := w.grid.at(q)
		if cur != TileUnknown {
			return
		}
		changed, err := w.grid.Set(q.X, q.Y, t)
		if err != nil {
			w.logf("reveal (%d,%d): %v", q.X, q.Y, err)
			return
		}
		if changed {
			out = append(out, Reveal{Pos: q, Tile: t})
		}
	}
	reveal(p, TileFloor)
	if w.cfg.RevealNeighbors {
		for _, d := range neighborOffsets {
			q := p.Add(d.X, d.Y)
			if !w.grid.InBounds(q.X, q.Y) {
				continue
			}
			t := w.sensor.Sense(q.X, q.Y)
			if t == TileUnknown {
				continue
			}
			reveal(q, t)
		}
	}
	return out
}
