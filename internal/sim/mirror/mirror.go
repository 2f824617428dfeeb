// Package mirror rebuilds world state on the consumer side from one
// world_info snapshot followed by the ordered event stream.
package mirror

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"megabots.dev/internal/protocol"
)

var (
	ErrNoSnapshot     = errors.New("no snapshot applied")
	ErrUnexpectedType = errors.New("unexpected message type")
)

type Mirror struct {
	mu     sync.Mutex
	ready  bool
	info   protocol.WorldInfo
	robots map[int]*protocol.RobotInfo
}

func New() *Mirror { return &Mirror{robots: map[int]*protocol.RobotInfo{}} }

// ApplySnapshot replaces all state with info.
func (m *Mirror) ApplySnapshot(info protocol.WorldInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info = info
	m.info.Map.Data = append([]int(nil), info.Map.Data...)
	m.info.Robots = nil
	m.robots = make(map[int]*protocol.RobotInfo, len(info.Robots))
	for _, r := range info.Robots {
		cp := r
		cp.Directions = append([]protocol.Direction(nil), r.Directions...)
		m.robots[r.ID] = &cp
	}
	m.ready = true
}

// Apply folds one server frame into the replica. Replies meant for a single
// requester carry no state and are accepted as no-ops.
func (m *Mirror) Apply(msg protocol.Message) error {
	if msg.Type == protocol.TypeWorldInfo {
		var info protocol.WorldInfo
		if err := protocol.DecodeData(msg, &info); err != nil {
			return err
		}
		m.ApplySnapshot(info)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return ErrNoSnapshot
	}
	switch msg.Type {
	case protocol.TypeRobotConnect:
		var d protocol.RobotConnectData
		if err := protocol.DecodeData(msg, &d); err != nil {
			return err
		}
		r := m.robot(d.RobotID)
		x, y := d.Robot.X, d.Robot.Y
		r.X, r.Y = &x, &y
		r.LiftCapacity = d.LiftCapacity
		r.Directions = append([]protocol.Direction(nil), d.Directions...)
		r.Connected = true
	case protocol.TypeRobotDisconnect:
		var d protocol.RobotDisconnectData
		if err := protocol.DecodeData(msg, &d); err != nil {
			return err
		}
		m.robot(d.RobotID).Connected = false
	case protocol.TypeUpdateWorldInfo:
		var d protocol.UpdateWorldInfoData
		if err := protocol.DecodeData(msg, &d); err != nil {
			return err
		}
		if d.TickType != nil {
			m.info.TickType = *d.TickType
		}
		if d.TickSpeed != nil {
			m.info.TickSpeed = *d.TickSpeed
		}
		if d.ActiveProgram != nil {
			m.info.ActiveProgram = *d.ActiveProgram
		}
	case protocol.TypeNewDirection:
		var d protocol.NewDirectionData
		if err := protocol.DecodeData(msg, &d); err != nil {
			return err
		}
		r := m.robot(d.RobotID)
		r.Directions = append(r.Directions, d.Direction)
	case protocol.TypeCancelDirection:
		var d protocol.CancelDirectionData
		if err := protocol.DecodeData(msg, &d); err != nil {
			return err
		}
		r := m.robot(d.RobotID)
		for i, dir := range r.Directions {
			if dir.ID == d.DirectionID {
				r.Directions = append(r.Directions[:i:i], r.Directions[i+1:]...)
				break
			}
		}
	case protocol.TypeRobotTickDone:
		var d protocol.RobotTickDoneData
		if err := protocol.DecodeData(msg, &d); err != nil {
			return err
		}
		r := m.robot(d.RobotID)
		x, y := d.Robot.X, d.Robot.Y
		r.X, r.Y = &x, &y
		for _, u := range d.Map {
			if err := m.setTile(u.X, u.Y, u.Type); err != nil {
				return err
			}
		}
	case protocol.TypeWebsiteTick:
		var d protocol.WebsiteTickData
		if err := protocol.DecodeData(msg, &d); err != nil {
			return err
		}
		m.info.Tick = d.Tick
	case protocol.TypeTaskAssigned, protocol.TypeError:
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedType, msg.Type)
	}
	return nil
}

// ApplyFrame decodes and applies a raw frame.
func (m *Mirror) ApplyFrame(b []byte) (protocol.Message, error) {
	msg, err := protocol.Decode(b)
	if err != nil {
		return msg, err
	}
	return msg, m.Apply(msg)
}

func (m *Mirror) robot(id int) *protocol.RobotInfo {
	r := m.robots[id]
	if r == nil {
		r = &protocol.RobotInfo{ID: id, Directions: []protocol.Direction{}}
		m.robots[id] = r
	}
	return r
}

func (m *Mirror) setTile(x, y, t int) error {
	w, h := m.info.Map.Width, m.info.Map.Height
	if x < 0 || y < 0 || x >= w || y >= h {
		return fmt.Errorf("tile (%d,%d) outside %dx%d", x, y, w, h)
	}
	m.info.Map.Data[y*w+x] = t
	return nil
}

func (m *Mirror) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Snapshot returns a copy of the replica in the world_info shape.
func (m *Mirror) Snapshot() protocol.WorldInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.info
	info.Map.Data = append([]int(nil), m.info.Map.Data...)
	ids := make([]int, 0, len(m.robots))
	for id := range m.robots {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	info.Robots = make([]protocol.RobotInfo, 0, len(ids))
	for _, id := range ids {
		r := *m.robots[id]
		r.Directions = append([]protocol.Direction{}, r.Directions...)
		info.Robots = append(info.Robots, r)
	}
	return info
}

func (m *Mirror) Digest() string { return protocol.StateDigest(m.Snapshot()) }

func (m *Mirror) Robot(id int) (protocol.RobotInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.robots[id]
	if !ok {
		return protocol.RobotInfo{}, false
	}
	cp := *r
	cp.Directions = append([]protocol.Direction{}, r.Directions...)
	return cp, true
}

func (m *Mirror) Tile(x, y int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, h := m.info.Map.Width, m.info.Map.Height
	if x < 0 || y < 0 || x >= w || y >= h {
		return protocol.TileWall
	}
	return m.info.Map.Data[y*w+x]
}
