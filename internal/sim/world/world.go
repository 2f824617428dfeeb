package world

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"megabots.dev/internal/protocol"
)

type Config struct {
	ID     string
	Width  int
	Height int
	Seed   int64

	Fleet []RobotSpec

	TickMode    TickMode
	TickSpeedMs int
	Program     string

	// RevealNeighbors makes a robot sense its four orthogonal neighbours
	// in addition to the cell it stands on.
	RevealNeighbors bool

	// ClientQueue bounds each client's outbound frame queue.
	ClientQueue int

	// Sensor answers what a robot sees. Defaults to an open floor.
	Sensor Sensor

	Logger *log.Logger
}

// Command is one inbound frame from a link, already schema-checked.
type Command struct {
	SessionID string
	Msg       protocol.Message
}

type JoinRequest struct {
	SessionID string
	// Hello is set for robot links and nil for observers.
	Hello *protocol.RobotHelloData
	Out   chan []byte
	Resp  chan JoinResponse
}

type JoinResponse struct {
	SessionID string
	// Done is closed when the world drops the client, e.g. after its queue overflowed.
	Done <-chan struct{}
	Err  error
}

// World is the single authoritative fleet simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg Config

	grid    *Grid
	fleet   *Fleet
	clock   TickConfig
	program string
	sensor  Sensor
	rng     *rand.Rand
	ids     idCounter

	tick atomic.Uint64

	clients map[string]*clientState
	pending []Event

	inbox   chan Command
	join    chan JoinRequest
	leave   chan string
	snapReq chan chan protocol.WorldInfo
	stop    chan struct{}
	once    sync.Once

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger
	journal     Journal

	// actor is the session that issued the command being applied.
	actor string

	lastStep stepStats
	totals   stepTotals
	metrics  atomic.Value // WorldMetrics

	log *log.Logger
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// Journal receives every outbound frame in publish order, plus a digest
// record after each step.
type Journal interface {
	WriteJournal(entry JournalEntry) error
}

type TickLogEntry struct {
	Tick    uint64 `json:"tick"`
	Moves   int    `json:"moves"`
	Blocked int    `json:"blocked"`
	Reveals int    `json:"reveals"`
	Planned int    `json:"planned"`
	Digest  string `json:"digest"`
}

type AuditEntry struct {
	Tick    uint64 `json:"tick"`
	Actor   string `json:"actor"`
	Action  string `json:"action"` // e.g. "GOTO"
	RobotID int    `json:"robot_id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Ref     uint64 `json:"ref,omitempty"`
	Weight  int    `json:"weight,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type JournalEntry struct {
	Tick   uint64          `json:"tick"`
	Frame  json.RawMessage `json:"frame,omitempty"`
	Digest string          `json:"digest,omitempty"`
}

func New(cfg Config) (*World, error) {
	if cfg.Width < 3 || cfg.Height < 3 {
		return nil, fmt.Errorf("world size %dx%d too small", cfg.Width, cfg.Height)
	}
	if len(cfg.Fleet) == 0 {
		return nil, fmt.Errorf("empty fleet")
	}
	seen := map[int]bool{}
	for _, s := range cfg.Fleet {
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate robot id %d", s.ID)
		}
		seen[s.ID] = true
		if s.LiftCapacity < 0 {
			return nil, fmt.Errorf("robot %d: negative lift capacity", s.ID)
		}
	}
	if cfg.TickSpeedMs == 0 {
		cfg.TickSpeedMs = 500
	}
	if !validTickMode(cfg.TickMode) {
		return nil, fmt.Errorf("bad tick mode %d", cfg.TickMode)
	}
	if !validTickSpeed(cfg.TickSpeedMs) {
		return nil, fmt.Errorf("tick speed %dms outside [%d,%d]", cfg.TickSpeedMs, MinTickSpeedMs, MaxTickSpeedMs)
	}
	if cfg.Program == "" {
		cfg.Program = protocol.ProgramNothing
	}
	if programFor(cfg.Program) == nil {
		return nil, fmt.Errorf("unknown program %q", cfg.Program)
	}
	if cfg.ClientQueue <= 0 {
		cfg.ClientQueue = 256
	}
	if cfg.Sensor == nil {
		cfg.Sensor = OpenFloor{W: cfg.Width, H: cfg.Height}
	}

	w := &World{
		cfg:     cfg,
		grid:    NewGrid(cfg.Width, cfg.Height),
		fleet:   NewFleet(cfg.Fleet),
		clock:   TickConfig{Mode: cfg.TickMode, SpeedMs: cfg.TickSpeedMs},
		program: cfg.Program,
		sensor:  cfg.Sensor,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		clients: map[string]*clientState{},
		inbox:   make(chan Command, 1024),
		join:    make(chan JoinRequest, 64),
		leave:   make(chan string, 64),
		snapReq: make(chan chan protocol.WorldInfo, 16),
		stop:    make(chan struct{}),
		log:     cfg.Logger,
	}
	w.publishMetrics()
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

// SetJournal attaches the frame journal and records the current snapshot
// as its first entry. Call before Run.
func (w *World) SetJournal(j Journal) {
	w.journal = j
	if j == nil {
		return
	}
	b, err := protocol.Encode(protocol.TypeWorldInfo, w.Snapshot())
	if err != nil {
		w.logf("journal snapshot: %v", err)
		return
	}
	w.writeJournal(JournalEntry{Tick: w.tick.Load(), Frame: b})
}

func (w *World) Inbox() chan<- Command    { return w.inbox }
func (w *World) Join() chan<- JoinRequest { return w.join }
func (w *World) Leave() chan<- string     { return w.leave }

func (w *World) ID() string          { return w.cfg.ID }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Run(ctx context.Context) error {
	var ticker *time.Ticker
	var tickC <-chan time.Time
	var applied TickConfig
	syncTicker := func() {
		if w.clock == applied {
			return
		}
		applied = w.clock
		if w.clock.Mode != TickAuto {
			if ticker != nil {
				ticker.Stop()
				ticker, tickC = nil, nil
			}
			return
		}
		if ticker == nil {
			ticker = time.NewTicker(w.clock.Interval())
			tickC = ticker.C
			return
		}
		ticker.Reset(w.clock.Interval())
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		syncTicker()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			w.handleJoin(req)
		case id := <-w.leave:
			w.handleLeave(id)
		case cmd := <-w.inbox:
			w.handleCommand(cmd)
		case resp := <-w.snapReq:
			resp <- w.Snapshot()
		case <-tickC:
			w.step()
		}
	}
}

func (w *World) Stop() { w.once.Do(func() { close(w.stop) }) }

// Submit hands a command to the world loop.
func (w *World) Submit(ctx context.Context, cmd Command) error {
	select {
	case w.inbox <- cmd:
		return nil
	case <-w.stop:
		return ErrWorldStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestSnapshot returns a snapshot taken inside the world loop.
func (w *World) RequestSnapshot(ctx context.Context) (protocol.WorldInfo, error) {
	resp := make(chan protocol.WorldInfo, 1)
	select {
	case w.snapReq <- resp:
	case <-w.stop:
		return protocol.WorldInfo{}, ErrWorldStopped
	case <-ctx.Done():
		return protocol.WorldInfo{}, ctx.Err()
	}
	select {
	case info := <-resp:
		return info, nil
	case <-w.stop:
		return protocol.WorldInfo{}, ErrWorldStopped
	case <-ctx.Done():
		return protocol.WorldInfo{}, ctx.Err()
	}
}

// Snapshot builds a full copy of the current state. Loop goroutine only.
func (w *World) Snapshot() protocol.WorldInfo {
	info := protocol.WorldInfo{
		Map: protocol.MapData{
			Width:  w.grid.Width(),
			Height: w.grid.Height(),
			Data:   w.grid.Data(),
		},
		Tick:          w.tick.Load(),
		TickType:      int(w.clock.Mode),
		TickSpeed:     w.clock.SpeedMs,
		ActiveProgram: w.program,
	}
	for _, r := range w.fleet.Sorted() {
		ri := protocol.RobotInfo{
			ID:           r.ID,
			LiftCapacity: r.LiftCapacity,
			Connected:    r.Connected,
			Directions:   directions(r.Queue),
		}
		if r.Pos != nil {
			x, y := r.Pos.X, r.Pos.Y
			ri.X, ri.Y = &x, &y
		}
		info.Robots = append(info.Robots, ri)
	}
	return info
}

// Digest hashes the current state.
func (w *World) Digest() string { return protocol.StateDigest(w.Snapshot()) }

// Grid exposes the known map. Read it only from the loop goroutine.
func (w *World) Grid() *Grid { return w.grid }

// Robot returns a copy of one robot's state. Loop goroutine only.
func (w *World) Robot(id int) (Robot, error) {
	r, err := w.fleet.Get(id)
	if err != nil {
		return Robot{}, err
	}
	cp := *r
	cp.Queue = append([]Waypoint(nil), r.Queue...)
	if r.Pos != nil {
		p := *r.Pos
		cp.Pos = &p
	}
	return cp, nil
}

func (w *World) Program() string { return w.program }

func (w *World) TickConfig() TickConfig { return w.clock }

func (w *World) emit(e Event) { w.pending = append(w.pending, e) }

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	e.Tick = w.tick.Load()
	if e.Actor == "" {
		e.Actor = w.actor
	}
	if e.Actor == "" {
		e.Actor = "WORLD"
	}
	if err := w.auditLogger.WriteAudit(e); err != nil {
		w.logf("audit: %v", err)
	}
}

func (w *World) writeJournal(e JournalEntry) {
	if w.journal == nil {
		return
	}
	if err := w.journal.WriteJournal(e); err != nil {
		w.logf("journal: %v", err)
	}
}

func (w *World) logf(format string, args ...any) {
	if w.log != nil {
		w.log.Printf(format, args...)
	}
}
