package world

import (
	"errors"
	"math"
	"testing"

	"megabots.dev/internal/protocol"
)

func warehouseFleet() []RobotSpec {
	return []RobotSpec{
		{ID: 1, LiftCapacity: 200, Spawn: spawn(1, 1)},
		{ID: 2, LiftCapacity: 400, Spawn: spawn(8, 1)},
		{ID: 3, LiftCapacity: 250, Spawn: spawn(1, 8)},
		{ID: 4, LiftCapacity: 500, Spawn: spawn(8, 8)},
	}
}

func TestPickup_PicksCapableIdleRobot(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		cfg := testConfig(10, 10, warehouseFleet()...)
		cfg.Seed = seed
		w, _ := newWorld(t, cfg)
		connectAll(t, w)

		a, err := w.Pickup(300, Pos{3, 3}, Pos{5, 5})
		if err != nil {
			t.Fatalf("seed %d: pickup: %v", seed, err)
		}
		if a.RobotID != 2 && a.RobotID != 4 {
			t.Fatalf("seed %d: robot %d cannot lift 300", seed, a.RobotID)
		}
		if a.Queued {
			t.Fatalf("seed %d: idle robot reported as queued", seed)
		}
		if a.DropID != a.PickupID+1 {
			t.Fatalf("seed %d: ids %d,%d not consecutive", seed, a.PickupID, a.DropID)
		}
		r, _ := w.Robot(a.RobotID)
		if len(r.Queue) != 2 || r.Queue[0].Pos() != (Pos{3, 3}) || r.Queue[1].Pos() != (Pos{5, 5}) {
			t.Fatalf("seed %d: queue %+v", seed, r.Queue)
		}
	}
}

func TestPickup_BusyCapableRobotStillAssigned(t *testing.T) {
	w, _ := newWorld(t, testConfig(10, 10, warehouseFleet()...))
	connectAll(t, w)
	w.GotoDirect(2, 4, 4)
	w.GotoDirect(4, 6, 6)

	a, err := w.Pickup(300, Pos{2, 2}, Pos{7, 7})
	if err != nil {
		t.Fatalf("pickup with busy capable robots: %v", err)
	}
	if a.RobotID != 2 && a.RobotID != 4 {
		t.Fatalf("robot %d cannot lift 300", a.RobotID)
	}
	if !a.Queued {
		t.Fatalf("expected the pair to be queued")
	}
	r, _ := w.Robot(a.RobotID)
	if len(r.Queue) != 3 || r.Queue[1].ID != a.PickupID || r.Queue[2].ID != a.DropID {
		t.Fatalf("pair not appended behind existing work: %+v", r.Queue)
	}
}

func TestPickup_PrefersIdleOverBusy(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		cfg := testConfig(10, 10, warehouseFleet()...)
		cfg.Seed = seed
		w, _ := newWorld(t, cfg)
		connectAll(t, w)
		w.GotoDirect(2, 4, 4)
		a, err := w.Pickup(300, Pos{2, 2}, Pos{7, 7})
		if err != nil {
			t.Fatalf("pickup: %v", err)
		}
		if a.RobotID != 4 || a.Queued {
			t.Fatalf("seed %d: expected idle robot 4, got %+v", seed, a)
		}
	}
}

func TestPickup_NoCapableRobot(t *testing.T) {
	w, rec := newWorld(t, testConfig(10, 10, warehouseFleet()...))
	connectAll(t, w)
	rec.reset()
	if _, err := w.Pickup(600, Pos{2, 2}, Pos{3, 3}); !errors.Is(err, ErrNoCapableRobot) {
		t.Fatalf("expected ErrNoCapableRobot, got %v", err)
	}
	if w.fleet.QueuedWaypoints() != 0 || len(rec.frames) != 0 {
		t.Fatalf("rejected pickup had effects")
	}
}

func TestPickup_OutOfBoundsHasNoEffect(t *testing.T) {
	w, _ := newWorld(t, testConfig(10, 10, warehouseFleet()...))
	connectAll(t, w)
	if _, err := w.Pickup(100, Pos{2, 2}, Pos{30, 3}); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if w.fleet.QueuedWaypoints() != 0 {
		t.Fatalf("half a pair was enqueued")
	}
	wp, _ := w.GotoDirect(1, 2, 2)
	if wp.ID != 1 {
		t.Fatalf("rejected pickup consumed ids: next id %d", wp.ID)
	}
}

func TestGotoDirect_Validation(t *testing.T) {
	w, rec := newWorld(t, testConfig(6, 6, RobotSpec{ID: 1, Spawn: spawn(1, 1)}))
	if _, err := w.GotoDirect(7, 1, 1); !errors.Is(err, ErrUnknownRobot) {
		t.Fatalf("expected ErrUnknownRobot, got %v", err)
	}
	if _, err := w.GotoDirect(1, 6, 1); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	// Walls are accepted; movement deals with them.
	wp, err := w.GotoDirect(1, 0, 0)
	if err != nil {
		t.Fatalf("goto wall: %v", err)
	}
	adds := rec.ofType(protocol.TypeNewDirection)
	if len(adds) != 1 {
		t.Fatalf("expected one new_direction, got %d", len(adds))
	}
	d := decodeAs[protocol.NewDirectionData](t, adds[0])
	if d.RobotID != 1 || d.Direction.ID != wp.ID {
		t.Fatalf("new_direction: %+v", d)
	}
}

func TestWaypointIDsAreUnique(t *testing.T) {
	w, _ := newWorld(t, testConfig(10, 10, warehouseFleet()...))
	if err := w.ConnectRobot(1, nil, 0, []Waypoint{{ID: 10, X: 2, Y: 2}}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := w.ConnectRobot(2, nil, 0, []Waypoint{{ID: 10, X: 3, Y: 3}}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	connectRest := []int{3, 4}
	for _, id := range connectRest {
		if err := w.ConnectRobot(id, nil, 0, nil); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}
	w.Pickup(100, Pos{2, 2}, Pos{4, 4})
	w.GotoDirect(3, 5, 5)
	seen := map[uint64]bool{}
	for _, r := range w.fleet.Sorted() {
		for _, wp := range r.Queue {
			if seen[wp.ID] {
				t.Fatalf("duplicate waypoint id %d", wp.ID)
			}
			seen[wp.ID] = true
		}
	}
}

func TestConnect_ReissuesReportedWaypointIDs(t *testing.T) {
	w, rec := newWorld(t, testConfig(10, 10, warehouseFleet()...))
	reported := []Waypoint{{ID: 1, X: 2, Y: 2}, {ID: math.MaxUint64, X: 3, Y: 3}}
	if err := w.ConnectRobot(1, nil, 0, reported); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := w.ConnectRobot(2, nil, 0, nil); err != nil {
		t.Fatalf("connect: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := w.GotoDirect(2, 5+i, 5); err != nil {
			t.Fatalf("goto: %v", err)
		}
	}

	seen := map[uint64]bool{}
	for _, r := range w.fleet.Sorted() {
		for _, wp := range r.Queue {
			if wp.ID == 0 || wp.ID == math.MaxUint64 {
				t.Fatalf("robot %d holds id %d", r.ID, wp.ID)
			}
			if seen[wp.ID] {
				t.Fatalf("duplicate waypoint id %d across robots", wp.ID)
			}
			seen[wp.ID] = true
		}
	}

	// The robot learns its remapped queue from robot_connect.
	msgs := rec.ofType(protocol.TypeRobotConnect)
	if len(msgs) == 0 {
		t.Fatalf("no robot_connect recorded")
	}
	d := decodeAs[protocol.RobotConnectData](t, msgs[0])
	r, _ := w.Robot(1)
	if len(d.Directions) != 2 || d.Directions[0].ID != r.Queue[0].ID || d.Directions[1].ID != r.Queue[1].ID {
		t.Fatalf("robot_connect directions %+v, queue %+v", d.Directions, r.Queue)
	}
}
