package world

import (
	"math/rand"
	"testing"

	"megabots.dev/internal/protocol"
)

func TestGreedyStep(t *testing.T) {
	cases := []struct {
		from, to, want Pos
	}{
		{Pos{1, 1}, Pos{5, 2}, Pos{2, 1}},
		{Pos{1, 1}, Pos{2, 5}, Pos{1, 2}},
		{Pos{3, 3}, Pos{1, 1}, Pos{2, 3}}, // tie goes to x
		{Pos{3, 3}, Pos{3, 1}, Pos{3, 2}},
		{Pos{3, 3}, Pos{6, 3}, Pos{4, 3}},
	}
	for _, tc := range cases {
		if got := greedyStep(tc.from, tc.to); got != tc.want {
			t.Fatalf("greedyStep(%v,%v)=%v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStep_CancelledHeadIsNeverFollowed(t *testing.T) {
	w, _ := newWorld(t, testConfig(8, 8, RobotSpec{ID: 1, LiftCapacity: 100, Spawn: spawn(4, 2)}))
	connectAll(t, w)

	first, err := w.GotoDirect(1, 3, 3)
	if err != nil {
		t.Fatalf("goto: %v", err)
	}
	if _, err := w.GotoDirect(1, 5, 5); err != nil {
		t.Fatalf("goto: %v", err)
	}
	if ok, err := w.CancelWaypoint(1, first.ID); err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
	w.StepOnce()

	// Toward (3,3) would be (3,2); toward (5,5) the y distance dominates.
	if got := mustPos(t, w, 1); got != (Pos{4, 3}) {
		t.Fatalf("robot at %v, want (4,3)", got)
	}
}

func TestStep_CancelAbsentEmitsNothing(t *testing.T) {
	w, rec := newWorld(t, testConfig(6, 6, RobotSpec{ID: 1, Spawn: spawn(1, 1)}))
	connectAll(t, w)
	rec.reset()
	ok, err := w.CancelWaypoint(1, 999)
	if err != nil || ok {
		t.Fatalf("cancel absent: ok=%v err=%v", ok, err)
	}
	if len(rec.frames) != 0 {
		t.Fatalf("expected no events, got %+v", rec.frames)
	}
}

func TestStep_ReachingHeadPopsAndReveals(t *testing.T) {
	cfg := testConfig(6, 6, RobotSpec{ID: 1, Spawn: spawn(1, 1)})
	cfg.RevealNeighbors = false
	w, rec := newWorld(t, cfg)
	connectAll(t, w)
	wp, _ := w.GotoDirect(1, 2, 1)
	rec.reset()

	w.StepOnce()

	r, _ := w.Robot(1)
	if *r.Pos != (Pos{2, 1}) || len(r.Queue) != 0 {
		t.Fatalf("robot after step: pos=%v queue=%v", *r.Pos, r.Queue)
	}
	if got, _ := w.Grid().Get(2, 1); got != TileFloor {
		t.Fatalf("arrival cell not revealed: %s", got)
	}
	moved := rec.ofType(protocol.TypeRobotTickDone)
	if len(moved) != 1 {
		t.Fatalf("expected one robot_tick_done, got %d", len(moved))
	}
	done := decodeAs[protocol.RobotTickDoneData](t, moved[0])
	if len(done.Map) != 1 || done.Map[0] != (protocol.TileUpdate{X: 2, Y: 1, Type: protocol.TileFloor}) {
		t.Fatalf("reveals: %+v", done.Map)
	}
	cancels := rec.ofType(protocol.TypeCancelDirection)
	if len(cancels) != 1 {
		t.Fatalf("expected one cancel_direction, got %d", len(cancels))
	}
	c := decodeAs[protocol.CancelDirectionData](t, cancels[0])
	if c.DirectionID != wp.ID || c.Reason != protocol.CancelReached {
		t.Fatalf("cancel: %+v", c)
	}
}

func TestStep_RevealIsNotRepeated(t *testing.T) {
	w, rec := newWorld(t, testConfig(6, 6, RobotSpec{ID: 1, Spawn: spawn(1, 1)}))
	connectAll(t, w)
	w.GotoDirect(1, 2, 1)
	w.GotoDirect(1, 1, 1)
	w.GotoDirect(1, 2, 1)
	rec.reset()
	for i := 0; i < 4; i++ {
		w.StepOnce()
	}
	seen := map[protocol.TileUpdate]int{}
	for _, m := range rec.ofType(protocol.TypeRobotTickDone) {
		for _, u := range decodeAs[protocol.RobotTickDoneData](t, m).Map {
			seen[protocol.TileUpdate{X: u.X, Y: u.Y}]++
		}
	}
	for k, n := range seen {
		if n > 1 {
			t.Fatalf("tile %v revealed %d times", k, n)
		}
	}
}

func TestStep_PreStepPositionsBlock(t *testing.T) {
	w, _ := newWorld(t, testConfig(8, 5,
		RobotSpec{ID: 1, Spawn: spawn(2, 1)},
		RobotSpec{ID: 2, Spawn: spawn(1, 1)},
	))
	connectAll(t, w)
	w.GotoDirect(1, 5, 1)
	w.GotoDirect(2, 5, 1)

	entry := w.StepOnce()
	if got := mustPos(t, w, 1); got != (Pos{3, 1}) {
		t.Fatalf("robot 1 at %v", got)
	}
	if got := mustPos(t, w, 2); got != (Pos{1, 1}) {
		t.Fatalf("robot 2 entered a cell vacated in the same step: %v", got)
	}
	if entry.Moves != 1 || entry.Blocked != 1 {
		t.Fatalf("entry: %+v", entry)
	}

	w.StepOnce()
	if got := mustPos(t, w, 2); got != (Pos{2, 1}) {
		t.Fatalf("robot 2 did not retry: %v", got)
	}
}

func TestStep_ClaimedCellBlocksLaterRobot(t *testing.T) {
	w, _ := newWorld(t, testConfig(6, 6,
		RobotSpec{ID: 1, Spawn: spawn(1, 2)},
		RobotSpec{ID: 2, Spawn: spawn(2, 3)},
	))
	connectAll(t, w)
	w.GotoDirect(1, 3, 2)
	w.GotoDirect(2, 2, 1)
	w.StepOnce()
	if got := mustPos(t, w, 1); got != (Pos{2, 2}) {
		t.Fatalf("robot 1 at %v", got)
	}
	if got := mustPos(t, w, 2); got != (Pos{2, 3}) {
		t.Fatalf("robot 2 should wait, at %v", got)
	}
}

func TestStep_DisconnectedRobotsDoNotMove(t *testing.T) {
	w, _ := newWorld(t, testConfig(6, 6, RobotSpec{ID: 1, Spawn: spawn(1, 1)}))
	connectAll(t, w)
	w.GotoDirect(1, 4, 1)
	if err := w.DisconnectRobot(1); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	w.StepOnce()
	if got := mustPos(t, w, 1); got != (Pos{1, 1}) {
		t.Fatalf("disconnected robot moved to %v", got)
	}
}

func TestStep_ImpassableTargets(t *testing.T) {
	sensor := SensorFunc(func(x, y int) TileType {
		if x == 3 && y == 1 {
			return TileChest
		}
		return OpenFloor{W: 7, H: 5}.Sense(x, y)
	})
	cfg := testConfig(7, 5, RobotSpec{ID: 1, Spawn: spawn(1, 1)})
	cfg.RevealNeighbors = false
	cfg.Sensor = sensor
	w, rec := newWorld(t, cfg)
	connectAll(t, w)

	// Unknown chest on the way: the robot bumps into it and learns about it.
	w.GotoDirect(1, 5, 1)
	w.StepOnce()
	w.StepOnce()
	if got := mustPos(t, w, 1); got != (Pos{2, 1}) {
		t.Fatalf("robot at %v", got)
	}
	if got, _ := w.Grid().Get(3, 1); got != TileChest {
		t.Fatalf("chest not revealed: %s", got)
	}

	// A target on a known chest is dropped.
	wp, _ := w.GotoDirect(1, 3, 1)
	if ok, _ := w.CancelWaypoint(1, 1); !ok {
		t.Fatalf("first waypoint should still be queued")
	}
	rec.reset()
	w.StepOnce()
	cancels := rec.ofType(protocol.TypeCancelDirection)
	if len(cancels) != 1 {
		t.Fatalf("expected unreachable cancel, got %d", len(cancels))
	}
	if c := decodeAs[protocol.CancelDirectionData](t, cancels[0]); c.Reason != protocol.CancelUnreachable || c.DirectionID != wp.ID {
		t.Fatalf("cancel: %+v", c)
	}
}

func TestStep_NoSharedCells(t *testing.T) {
	cfg := testConfig(8, 8,
		RobotSpec{ID: 1, LiftCapacity: 200, Spawn: spawn(1, 1)},
		RobotSpec{ID: 2, LiftCapacity: 400, Spawn: spawn(6, 1)},
		RobotSpec{ID: 3, LiftCapacity: 250, Spawn: spawn(1, 6)},
		RobotSpec{ID: 4, LiftCapacity: 500, Spawn: spawn(6, 6)},
	)
	w, rec := newWorld(t, cfg)
	connectAll(t, w)
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 200; step++ {
		for id := 1; id <= 4; id++ {
			r, _ := w.Robot(id)
			if len(r.Queue) == 0 {
				if _, err := w.GotoDirect(id, 1+rng.Intn(6), 1+rng.Intn(6)); err != nil {
					t.Fatalf("goto: %v", err)
				}
			}
		}
		busy := 0
		for _, r := range w.fleet.Sorted() {
			if len(r.Queue) > 0 {
				busy++
			}
		}
		rec.reset()
		w.StepOnce()
		if n := len(rec.ofType(protocol.TypeRobotTickDone)); n > busy {
			t.Fatalf("step %d: %d robot_tick_done for %d busy robots", step, n, busy)
		}
		seen := map[Pos]int{}
		for _, r := range w.fleet.Sorted() {
			if other, ok := seen[*r.Pos]; ok {
				t.Fatalf("step %d: robots %d and %d share %v", step, other, r.ID, *r.Pos)
			}
			seen[*r.Pos] = r.ID
		}
	}
}

func TestStep_TickFiredFirst(t *testing.T) {
	w, rec := newWorld(t, testConfig(6, 6, RobotSpec{ID: 1, Spawn: spawn(1, 1)}))
	connectAll(t, w)
	w.GotoDirect(1, 3, 1)
	rec.reset()
	entry := w.StepOnce()
	if len(rec.frames) == 0 || rec.frames[0].Type != protocol.TypeWebsiteTick {
		t.Fatalf("first frame of a step must be website_tick: %+v", rec.frames)
	}
	if tick := decodeAs[protocol.WebsiteTickData](t, rec.frames[0]).Tick; tick != 1 || entry.Tick != 1 {
		t.Fatalf("tick=%d entry=%d", tick, entry.Tick)
	}
	if len(rec.digests) != 1 || rec.digests[0] != entry.Digest || entry.Digest != w.Digest() {
		t.Fatalf("digest not journaled: %v vs %s", rec.digests, entry.Digest)
	}
}
