package world

import (
	"time"

	"megabots.dev/internal/protocol"
)

type stepStats struct {
	Moves    int
	Blocked  int
	Reveals  int
	Planned  int
	Duration time.Duration
}

type stepTotals struct {
	Steps   uint64
	Moves   uint64
	Blocked uint64
	Reveals uint64
}

// StepOnce advances the world by a single tick with the same ordering as the
// run loop. It must not be called while Run is active.
func (w *World) StepOnce() TickLogEntry { return w.step() }

func (w *World) step() TickLogEntry {
	start := time.Now()
	tick := w.tick.Add(1)
	w.emit(TickFired{Tick: tick})

	var st stepStats
	st.Planned = w.plan()

	robots := w.fleet.Sorted()
	occupied := make(map[Pos]int, len(robots))
	for _, r := range robots {
		if r.Pos != nil {
			occupied[*r.Pos] = r.ID
		}
	}
	claimed := map[Pos]int{}

	for _, r := range robots {
		if !r.Connected || r.Pos == nil {
			continue
		}
		head, ok := w.activeWaypoint(r)
		if !ok {
			continue
		}
		cur := *r.Pos
		next := greedyStep(cur, head.Pos())

		if held, ok := occupied[next]; ok && held != r.ID {
			st.Blocked++
			continue
		}
		if _, ok := claimed[next]; ok {
			st.Blocked++
			continue
		}
		if w.grid.at(next).Blocking() {
			st.Blocked++
			continue
		}
		if truth := w.sensor.Sense(next.X, next.Y); truth.Blocking() {
			// Bumped into something the map did not know about yet.
			st.Blocked++
			var reveals []Reveal
			if changed, err := w.grid.Set(next.X, next.Y, truth); err == nil && changed {
				reveals = append(reveals, Reveal{Pos: next, Tile: truth})
			}
			if len(reveals) > 0 {
				st.Reveals += len(reveals)
				w.emit(RobotMoved{RobotID: r.ID, Pos: cur, Reveals: reveals})
			}
			continue
		}

		claimed[next] = r.ID
		p := next
		r.Pos = &p
		reveals := w.sense(next)
		st.Moves++
		st.Reveals += len(reveals)
		w.emit(RobotMoved{RobotID: r.ID, Pos: next, Reveals: reveals})
		if next == head.Pos() {
			r.popHead()
			w.emit(WaypointCancelled{RobotID: r.ID, WaypointID: head.ID, Reason: protocol.CancelReached})
		}
	}

	w.flush()

	st.Duration = time.Since(start)
	w.lastStep = st
	w.totals.Steps++
	w.totals.Moves += uint64(st.Moves)
	w.totals.Blocked += uint64(st.Blocked)
	w.totals.Reveals += uint64(st.Reveals)

	entry := TickLogEntry{
		Tick:    tick,
		Moves:   st.Moves,
		Blocked: st.Blocked,
		Reveals: st.Reveals,
		Planned: st.Planned,
		Digest:  w.Digest(),
	}
	w.writeJournal(JournalEntry{Tick: tick, Digest: entry.Digest})
	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.logf("tick log: %v", err)
		}
	}
	w.publishMetrics()
	return entry
}

// activeWaypoint returns the robot's head waypoint after discarding heads it
// already stands on and heads on tiles known to be impassable.
func (w *World) activeWaypoint(r *Robot) (Waypoint, bool) {
	for len(r.Queue) > 0 {
		head := r.Queue[0]
		switch {
		case head.Pos() == *r.Pos:
			r.popHead()
			w.emit(WaypointCancelled{RobotID: r.ID, WaypointID: head.ID, Reason: protocol.CancelReached})
		case w.grid.at(head.Pos()).Blocking():
			r.popHead()
			w.emit(WaypointCancelled{RobotID: r.ID, WaypointID: head.ID, Reason: protocol.CancelUnreachable})
			w.audit(AuditEntry{Action: "CANCEL", RobotID: r.ID, X: head.X, Y: head.Y, Ref: head.ID, Reason: protocol.CancelUnreachable})
		default:
			return head, true
		}
	}
	return Waypoint{}, false
}

// greedyStep moves one cell along the axis with the larger distance; ties
// go to x.
func greedyStep(from, to Pos) Pos {
	dx, dy := to.X-from.X, to.Y-from.Y
	if abs(dx) >= abs(dy) {
		return from.Add(sign(dx), 0)
	}
	return from.Add(0, sign(dy))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
