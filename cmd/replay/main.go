package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "megabots.dev/internal/persistence/log"
	"megabots.dev/internal/protocol"
	"megabots.dev/internal/sim/mirror"
	"megabots.dev/internal/sim/world"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		worldID  = flag.String("world", "", "world id (required unless -dir)")
		dir      = flag.String("dir", "", "world directory containing journal/ (optional)")
		fromTick = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	worldDir := *dir
	if worldDir == "" {
		if *worldID == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -dir")
			os.Exit(2)
		}
		worldDir = filepath.Join(*dataDir, "worlds", *worldID)
	}

	rep, err := verify(worldDir, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("frames=%d snapshots=%d checked=%d last_tick=%d digest=%s\n",
		rep.Frames, rep.Snapshots, rep.Checked, rep.LastTick, rep.LastDigest)
	if rep.Mismatch != nil {
		fmt.Fprintf(os.Stderr, "digest mismatch at tick %d: journal=%s replay=%s\n",
			rep.Mismatch.Tick, rep.Mismatch.Want, rep.Mismatch.Got)
		os.Exit(1)
	}
	fmt.Println("OK")
}

var errStop = errors.New("stop")

type mismatch struct {
	Tick      uint64
	Want, Got string
}

type report struct {
	Frames     int
	Snapshots  int
	Checked    int
	LastTick   uint64
	LastDigest string
	Mismatch   *mismatch
}

// verify folds every journaled frame into a mirror and compares the mirror's
// digest to each recorded digest. A fresh world_info (server restart) resets
// the mirror. Verification stops at the first mismatch.
func verify(worldDir string, from, to uint64) (report, error) {
	var rep report
	m := mirror.New()

	err := persistlog.ReadJournal(worldDir, func(e world.JournalEntry) error {
		if to > 0 && e.Tick > to {
			return errStop
		}
		if len(e.Frame) > 0 {
			msg, err := m.ApplyFrame(e.Frame)
			if err != nil {
				return fmt.Errorf("tick %d: apply %s: %w", e.Tick, msg.Type, err)
			}
			rep.Frames++
			if msg.Type == protocol.TypeWorldInfo {
				rep.Snapshots++
			}
		}
		if e.Digest == "" || e.Tick < from {
			return nil
		}
		if !m.Ready() {
			return fmt.Errorf("tick %d: digest before any world_info", e.Tick)
		}
		got := m.Digest()
		rep.Checked++
		rep.LastTick, rep.LastDigest = e.Tick, got
		if got != e.Digest {
			rep.Mismatch = &mismatch{Tick: e.Tick, Want: e.Digest, Got: got}
			return errStop
		}
		return nil
	})
	if err != nil && err != errStop {
		return rep, err
	}
	return rep, nil
}
