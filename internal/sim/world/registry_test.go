package world

import (
	"errors"
	"testing"

	"megabots.dev/internal/protocol"
)

func TestConnect_ValidatesStartCell(t *testing.T) {
	w, _ := newWorld(t, testConfig(6, 6,
		RobotSpec{ID: 1, Spawn: spawn(1, 1)},
		RobotSpec{ID: 2, Spawn: spawn(1, 1)},
		RobotSpec{ID: 3},
	))
	connect := func(id int, pos *Pos) error { return w.ConnectRobot(id, pos, 0, nil) }

	if err := connect(1, nil); err != nil {
		t.Fatalf("connect 1: %v", err)
	}
	if err := connect(2, nil); !errors.Is(err, ErrOccupied) {
		t.Fatalf("expected ErrOccupied, got %v", err)
	}
	if err := connect(3, nil); !errors.Is(err, ErrBadCommand) {
		t.Fatalf("expected ErrBadCommand without a spawn, got %v", err)
	}
	if err := connect(3, spawn(0, 3)); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds on the ring, got %v", err)
	}
	if err := connect(3, spawn(4, 4)); err != nil {
		t.Fatalf("connect 3: %v", err)
	}
	if err := connect(7, nil); !errors.Is(err, ErrUnknownRobot) {
		t.Fatalf("expected ErrUnknownRobot, got %v", err)
	}
}

func TestDisconnect_SnapshotRetainsState(t *testing.T) {
	w, rec := newWorld(t, testConfig(8, 8, RobotSpec{ID: 1, LiftCapacity: 300, Spawn: spawn(2, 2)}))
	connectAll(t, w)
	a, _ := w.GotoDirect(1, 5, 2)
	b, _ := w.GotoDirect(1, 5, 5)
	w.StepOnce()
	before := w.Snapshot().Robots[0]

	if err := w.DisconnectRobot(1); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if n := len(rec.ofType(protocol.TypeRobotDisconnect)); n != 1 {
		t.Fatalf("robot_disconnect frames=%d", n)
	}
	if err := w.DisconnectRobot(1); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
	if n := len(rec.ofType(protocol.TypeRobotDisconnect)); n != 1 {
		t.Fatalf("repeated disconnect emitted again")
	}
	if err := w.ConnectRobot(1, spawn(6, 6), 0, nil); err != nil {
		t.Fatalf("reconnect: %v", err)
	}

	after := w.Snapshot().Robots[0]
	if *after.X != *before.X || *after.Y != *before.Y {
		t.Fatalf("position changed: (%d,%d) -> (%d,%d)", *before.X, *before.Y, *after.X, *after.Y)
	}
	if len(after.Directions) != 2 || after.Directions[0].ID != a.ID || after.Directions[1].ID != b.ID {
		t.Fatalf("directions: %+v", after.Directions)
	}
	if !after.Connected || after.LiftCapacity != 300 {
		t.Fatalf("robot: %+v", after)
	}
}

func TestConnect_EmitsConnectThenReveals(t *testing.T) {
	w, rec := newWorld(t, testConfig(6, 6, RobotSpec{ID: 1, LiftCapacity: 300, Spawn: spawn(2, 2)}))
	rec.reset()
	if err := w.ConnectRobot(1, nil, 0, []Waypoint{{X: 4, Y: 4}}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if len(rec.frames) != 2 || rec.frames[0].Type != protocol.TypeRobotConnect || rec.frames[1].Type != protocol.TypeRobotTickDone {
		t.Fatalf("frames: %+v", rec.frames)
	}
	rc := decodeAs[protocol.RobotConnectData](t, rec.frames[0])
	if len(rc.Directions) != 1 || rc.Directions[0].ID == 0 {
		t.Fatalf("seeded queue not given an id: %+v", rc.Directions)
	}
}
