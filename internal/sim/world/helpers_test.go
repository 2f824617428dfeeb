package world

import (
	"testing"

	"megabots.dev/internal/protocol"
)

type recorder struct {
	frames  []protocol.Message
	digests []string
}

func (r *recorder) WriteJournal(e JournalEntry) error {
	if len(e.Frame) > 0 {
		m, err := protocol.Decode(e.Frame)
		if err != nil {
			return err
		}
		r.frames = append(r.frames, m)
	}
	if e.Digest != "" {
		r.digests = append(r.digests, e.Digest)
	}
	return nil
}

func (r *recorder) reset() { r.frames = nil }

func (r *recorder) ofType(typ string) []protocol.Message {
	var out []protocol.Message
	for _, m := range r.frames {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func spawn(x, y int) *Pos { return &Pos{X: x, Y: y} }

func testConfig(w, h int, fleet ...RobotSpec) Config {
	return Config{
		ID:              "test",
		Width:           w,
		Height:          h,
		Seed:            42,
		Fleet:           fleet,
		TickMode:        TickManual,
		TickSpeedMs:     100,
		Program:         protocol.ProgramNothing,
		RevealNeighbors: true,
	}
}

func newWorld(t *testing.T, cfg Config) (*World, *recorder) {
	t.Helper()
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	rec := &recorder{}
	w.SetJournal(rec)
	return w, rec
}

// connectAll connects every robot at its configured spawn.
func connectAll(t *testing.T, w *World) {
	t.Helper()
	for _, r := range w.fleet.Sorted() {
		if err := w.ConnectRobot(r.ID, nil, 0, nil); err != nil {
			t.Fatalf("connect %d: %v", r.ID, err)
		}
	}
}

func mustPos(t *testing.T, w *World, id int) Pos {
	t.Helper()
	r, err := w.Robot(id)
	if err != nil {
		t.Fatalf("robot %d: %v", id, err)
	}
	if r.Pos == nil {
		t.Fatalf("robot %d has no position", id)
	}
	return *r.Pos
}

func decodeAs[T any](t *testing.T, m protocol.Message) T {
	t.Helper()
	var v T
	if err := protocol.DecodeData(m, &v); err != nil {
		t.Fatalf("decode %s: %v", m.Type, err)
	}
	return v
}
