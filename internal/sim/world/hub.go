package world

import (
	"fmt"

	"megabots.dev/internal/protocol"
)

type clientState struct {
	Out  chan []byte
	Done chan struct{}

	// Robot links are bound to one robot id for their lifetime.
	Robot   bool
	RobotID int

	evicted bool
}

func (w *World) handleJoin(req JoinRequest) {
	resp := JoinResponse{SessionID: req.SessionID}
	defer func() {
		if req.Resp != nil {
			req.Resp <- resp
		}
	}()
	if req.SessionID == "" || req.Out == nil {
		resp.Err = fmt.Errorf("%w: join without session", ErrBadCommand)
		return
	}
	if _, ok := w.clients[req.SessionID]; ok {
		resp.Err = fmt.Errorf("%w: session %s already joined", ErrBadCommand, req.SessionID)
		return
	}

	var existing []Waypoint
	if req.Hello != nil {
		for _, d := range req.Hello.Directions {
			existing = append(existing, Waypoint{ID: d.ID, X: d.X, Y: d.Y})
		}
		stale, replacing := w.robotSession(req.Hello.RobotID)
		if err := w.checkConnect(req.Hello.RobotID, helloPos(req.Hello), existing, replacing); err != nil {
			resp.Err = err
			return
		}
		if replacing {
			// A new handshake for a linked robot replaces the old link.
			w.logf("robot %d reconnected as %s, dropping session %s", req.Hello.RobotID, req.SessionID, stale)
			w.dropClient(stale, w.clients[stale])
			// Published before the new link joins; its snapshot already
			// shows the robot disconnected.
			w.flush()
		}
	}

	c := &clientState{Out: req.Out, Done: make(chan struct{})}
	w.clients[req.SessionID] = c
	resp.Done = c.Done

	// The snapshot goes out before anything the connect itself produces.
	b, err := protocol.Encode(protocol.TypeWorldInfo, w.Snapshot())
	if err != nil {
		w.logf("encode world_info: %v", err)
	} else if !trySend(c.Out, b) {
		c.evicted = true
	}

	if req.Hello != nil {
		c.Robot, c.RobotID = true, req.Hello.RobotID
		w.actor = req.SessionID
		if err := w.connect(req.Hello.RobotID, helloPos(req.Hello), req.Hello.LiftCapacity, existing); err != nil {
			// checkConnect already validated; nothing can fail here.
			w.logf("connect robot %d: %v", req.Hello.RobotID, err)
		}
		w.actor = ""
	}
	w.flush()
	w.publishMetrics()
}

// robotSession returns the session a robot's link is bound to.
func (w *World) robotSession(robotID int) (string, bool) {
	for id, c := range w.clients {
		if c.Robot && c.RobotID == robotID {
			return id, true
		}
	}
	return "", false
}

func helloPos(h *protocol.RobotHelloData) *Pos {
	if h.Robot == nil {
		return nil
	}
	return &Pos{X: h.Robot.X, Y: h.Robot.Y}
}

func (w *World) handleLeave(sessionID string) {
	c, ok := w.clients[sessionID]
	if !ok {
		return
	}
	w.dropClient(sessionID, c)
	w.flush()
	w.publishMetrics()
}

// dropClient unregisters a client and disconnects the robot it was bound to.
func (w *World) dropClient(sessionID string, c *clientState) {
	delete(w.clients, sessionID)
	close(c.Done)
	if c.Robot {
		w.actor = sessionID
		if err := w.disconnect(c.RobotID); err != nil {
			w.logf("disconnect robot %d: %v", c.RobotID, err)
		}
		w.actor = ""
	}
}

// flush publishes buffered events to the journal and every client, in order.
// Clients that could not keep up are dropped afterwards; dropping a robot
// link emits a disconnect, which is published on the next round.
func (w *World) flush() {
	for len(w.pending) > 0 {
		events := w.pending
		w.pending = nil
		for _, e := range events {
			b, err := EncodeEvent(e)
			if err != nil {
				w.logf("encode %s: %v", e.Type(), err)
				continue
			}
			w.writeJournal(JournalEntry{Tick: w.tick.Load(), Frame: b})
			w.broadcast(b)
		}
		for id, c := range w.clients {
			if c.evicted {
				w.logf("evicting client %s: outbound queue full", id)
				w.dropClient(id, c)
			}
		}
	}
}

func (w *World) broadcast(b []byte) {
	for _, c := range w.clients {
		if c.evicted {
			continue
		}
		if !trySend(c.Out, b) {
			c.evicted = true
		}
	}
}

// reply sends a frame to one client only.
func (w *World) reply(sessionID, typ string, data any) {
	c, ok := w.clients[sessionID]
	if !ok || c.evicted {
		return
	}
	b, err := protocol.Encode(typ, data)
	if err != nil {
		w.logf("encode %s: %v", typ, err)
		return
	}
	if !trySend(c.Out, b) {
		c.evicted = true
	}
}

func (w *World) replyError(sessionID, forType string, err error) {
	code := ErrorCode(err)
	w.reply(sessionID, protocol.TypeError, protocol.ErrorData{Code: code, Message: err.Error(), For: forType})
}

// handleCommand decodes one inbound frame and applies it.
func (w *World) handleCommand(cmd Command) {
	w.actor = cmd.SessionID
	defer func() { w.actor = "" }()

	err := w.apply(cmd)
	if err != nil {
		w.replyError(cmd.SessionID, cmd.Msg.Type, err)
	}
	w.flush()
	w.publishMetrics()
}

func (w *World) apply(cmd Command) error {
	m := cmd.Msg
	switch m.Type {
	case protocol.TypeUpdateWorldInfo:
		var d protocol.UpdateWorldInfoData
		if err := decode(m, &d); err != nil {
			return err
		}
		return w.UpdateWorldInfo(d)
	case protocol.TypeNewDirection:
		var d protocol.NewDirectionData
		if err := decode(m, &d); err != nil {
			return err
		}
		_, err := w.GotoDirect(d.RobotID, d.Direction.X, d.Direction.Y)
		return err
	case protocol.TypeCancelDirection:
		var d protocol.CancelDirectionData
		if err := decode(m, &d); err != nil {
			return err
		}
		_, err := w.CancelWaypoint(d.RobotID, d.DirectionID)
		return err
	case protocol.TypeWorldTick:
		if w.clock.Mode == TickManual {
			// What the step does is the world's doing, not the caller's.
			actor := w.actor
			w.actor = ""
			w.step()
			w.actor = actor
		}
		return nil
	case protocol.TypePickup:
		var d protocol.PickupData
		if err := decode(m, &d); err != nil {
			return err
		}
		a, err := w.Pickup(d.Weight, Pos{X: d.Pickup.X, Y: d.Pickup.Y}, Pos{X: d.Drop.X, Y: d.Drop.Y})
		if err != nil {
			return err
		}
		w.reply(cmd.SessionID, protocol.TypeTaskAssigned, protocol.TaskAssignedData{
			RobotID:  a.RobotID,
			PickupID: a.PickupID,
			DropID:   a.DropID,
			Queued:   a.Queued,
		})
		return nil
	case protocol.TypeRobotDisconnect:
		c, ok := w.clients[cmd.SessionID]
		if !ok || !c.Robot {
			return fmt.Errorf("%w: robot_disconnect from a non-robot link", ErrBadCommand)
		}
		c.Robot = false
		return w.disconnect(c.RobotID)
	default:
		return fmt.Errorf("%w: unexpected message type %q", ErrBadCommand, m.Type)
	}
}

func decode(m protocol.Message, v any) error {
	if err := protocol.DecodeData(m, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	return nil
}

func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}
