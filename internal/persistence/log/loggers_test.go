package log

import (
	"encoding/json"
	"testing"
	"time"

	"megabots.dev/internal/protocol"
	"megabots.dev/internal/sim/world"
)

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "ticks")
	at := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return at }

	if err := w.Write(world.TickLogEntry{Tick: 1, Digest: "a"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	at = at.Add(2 * time.Minute)
	if err := w.Write(world.TickLogEntry{Tick: 2, Digest: "b"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir, "ticks")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	var ticks []uint64
	for _, f := range files {
		err := ScanFile(f, func(line []byte) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			ticks = append(ticks, e.Tick)
			return nil
		})
		if err != nil {
			t.Fatalf("scan %s: %v", f, err)
		}
	}
	if len(ticks) != 2 || ticks[0] != 1 || ticks[1] != 2 {
		t.Fatalf("ticks=%v", ticks)
	}
}

func TestJournal_ReopenAppends(t *testing.T) {
	dir := t.TempDir()
	frame, _ := protocol.Encode(protocol.TypeWebsiteTick, protocol.WebsiteTickData{Tick: 3})

	for i := 0; i < 2; i++ {
		j := NewJournalLogger(dir)
		if err := j.WriteJournal(world.JournalEntry{Tick: 3, Frame: frame}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := j.WriteJournal(world.JournalEntry{Tick: 3, Digest: "d"}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := j.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	var frames, digests int
	err := ReadJournal(dir, func(e world.JournalEntry) error {
		if len(e.Frame) > 0 {
			m, err := protocol.Decode(e.Frame)
			if err != nil {
				return err
			}
			if m.Type != protocol.TypeWebsiteTick {
				t.Fatalf("type=%s", m.Type)
			}
			frames++
		}
		if e.Digest != "" {
			digests++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if frames != 2 || digests != 2 {
		t.Fatalf("frames=%d digests=%d", frames, digests)
	}
}
