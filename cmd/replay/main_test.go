package main

import (
	"path/filepath"
	"testing"

	persistlog "megabots.dev/internal/persistence/log"
	"megabots.dev/internal/protocol"
	"megabots.dev/internal/sim/world"
)

func runJournaledWorld(t *testing.T, dir string, steps int) {
	t.Helper()
	w, err := world.New(world.Config{
		ID:     "replay",
		Width:  10,
		Height: 8,
		Seed:   3,
		Fleet: []world.RobotSpec{
			{ID: 1, LiftCapacity: 200, Spawn: &world.Pos{X: 1, Y: 1}},
			{ID: 2, LiftCapacity: 400, Spawn: &world.Pos{X: 8, Y: 6}},
		},
		Program:         protocol.ProgramDiscover,
		RevealNeighbors: true,
	})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	j := persistlog.NewJournalLogger(dir)
	w.SetJournal(j)
	for _, id := range []int{1, 2} {
		if err := w.ConnectRobot(id, nil, 0, nil); err != nil {
			t.Fatalf("connect %d: %v", id, err)
		}
	}
	for i := 0; i < steps; i++ {
		w.StepOnce()
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}
}

func TestVerify_CleanJournal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "w")
	runJournaledWorld(t, dir, 40)

	rep, err := verify(dir, 0, 0)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if rep.Mismatch != nil {
		t.Fatalf("unexpected mismatch: %+v", rep.Mismatch)
	}
	if rep.Checked != 40 || rep.LastTick != 40 || rep.Snapshots != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestVerify_ToTickStopsEarly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "w")
	runJournaledWorld(t, dir, 20)

	rep, err := verify(dir, 5, 10)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if rep.Checked != 6 || rep.LastTick != 10 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestVerify_DetectsTamperedDigest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "w")
	runJournaledWorld(t, dir, 5)

	// A later segment claims a digest the frames cannot produce.
	j := persistlog.NewJournalLogger(dir)
	if err := j.WriteJournal(world.JournalEntry{Tick: 6, Digest: "deadbeef"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rep, err := verify(dir, 0, 0)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if rep.Mismatch == nil || rep.Mismatch.Tick != 6 || rep.Mismatch.Want != "deadbeef" {
		t.Fatalf("expected mismatch at tick 6, got %+v", rep)
	}
}
