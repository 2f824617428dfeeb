package world

import (
	"fmt"
	"sort"
)

type Waypoint struct {
	ID uint64 `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
}

func (wp Waypoint) Pos() Pos { return Pos{X: wp.X, Y: wp.Y} }

type RobotSpec struct {
	ID           int
	LiftCapacity int
	Spawn        *Pos
}

// Robot is one member of the fixed fleet. Pos stays nil until the first
// connect; position and queue survive disconnects.
type Robot struct {
	ID           int
	Pos          *Pos
	LiftCapacity int
	Queue        []Waypoint
	Connected    bool

	spawn *Pos
}

func (r *Robot) Idle() bool { return len(r.Queue) == 0 }

// Fleet is the robot registry. Membership is fixed at construction.
type Fleet struct {
	robots map[int]*Robot
	order  []int
}

func NewFleet(specs []RobotSpec) *Fleet {
	f := &Fleet{robots: make(map[int]*Robot, len(specs))}
	for _, s := range specs {
		r := &Robot{ID: s.ID, LiftCapacity: s.LiftCapacity}
		if s.Spawn != nil {
			sp := *s.Spawn
			r.spawn = &sp
		}
		f.robots[s.ID] = r
		f.order = append(f.order, s.ID)
	}
	sort.Ints(f.order)
	return f
}

func (f *Fleet) Get(id int) (*Robot, error) {
	r := f.robots[id]
	if r == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRobot, id)
	}
	return r, nil
}

// Sorted returns robots in ascending id order.
func (f *Fleet) Sorted() []*Robot {
	out := make([]*Robot, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.robots[id])
	}
	return out
}

func (f *Fleet) Len() int { return len(f.order) }

// OccupantAt returns the id of the robot standing on p, if any.
func (f *Fleet) OccupantAt(p Pos) (int, bool) {
	for _, id := range f.order {
		r := f.robots[id]
		if r.Pos != nil && *r.Pos == p {
			return id, true
		}
	}
	return 0, false
}

// Connect marks the robot connected. A robot seen before resumes from its
// retained position and queue; pos and existing only seed a robot that has
// no retained state. capacity > 0 replaces the lift capacity.
func (f *Fleet) Connect(id int, pos *Pos, capacity int, existing []Waypoint) (*Robot, error) {
	r, err := f.Get(id)
	if err != nil {
		return nil, err
	}
	if r.Connected {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyConnected, id)
	}
	if r.Pos == nil {
		start := pos
		if start == nil {
			start = r.spawn
		}
		if start == nil {
			return nil, fmt.Errorf("%w: robot %d has no position", ErrBadCommand, id)
		}
		p := *start
		r.Pos = &p
	}
	if capacity > 0 {
		r.LiftCapacity = capacity
	}
	if len(r.Queue) == 0 && len(existing) > 0 {
		r.Queue = append([]Waypoint(nil), existing...)
	}
	r.Connected = true
	return r, nil
}

func (f *Fleet) Disconnect(id int) (*Robot, error) {
	r, err := f.Get(id)
	if err != nil {
		return nil, err
	}
	r.Connected = false
	return r, nil
}

func (f *Fleet) Enqueue(id int, wp Waypoint) error {
	r, err := f.Get(id)
	if err != nil {
		return err
	}
	r.Queue = append(r.Queue, wp)
	return nil
}

// Cancel removes waypoint wpID from the robot's queue wherever it sits.
// An absent id is not an error; removed reports whether anything changed.
func (f *Fleet) Cancel(id int, wpID uint64) (removed bool, err error) {
	r, err := f.Get(id)
	if err != nil {
		return false, err
	}
	for i, wp := range r.Queue {
		if wp.ID == wpID {
			r.Queue = append(r.Queue[:i:i], r.Queue[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// popHead consumes the active waypoint.
func (r *Robot) popHead() Waypoint {
	head := r.Queue[0]
	r.Queue = append(r.Queue[:0:0], r.Queue[1:]...)
	return head
}

func (f *Fleet) QueuedWaypoints() int {
	n := 0
	for _, r := range f.robots {
		n += len(r.Queue)
	}
	return n
}

func (f *Fleet) ConnectedCount() int {
	n := 0
	for _, r := range f.robots {
		if r.Connected {
			n++
		}
	}
	return n
}
