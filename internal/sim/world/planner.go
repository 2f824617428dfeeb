package world

import "megabots.dev/internal/protocol"

// Program fills idle robots' queues once per tick, before movement.
type Program interface {
	Name() string
	// Plan may enqueue at most one waypoint per idle robot and returns how
	// many it enqueued.
	Plan(w *World, idle []*Robot) int
}

var programs = []Program{nothingProgram{}, discoverProgram{}, randomProgram{}}

func programFor(name string) Program {
	for _, p := range programs {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// ProgramNames lists the selectable programs.
func ProgramNames() []string {
	names := make([]string, 0, len(programs))
	for _, p := range programs {
		names = append(names, p.Name())
	}
	return names
}

func (w *World) plan() int {
	p := programFor(w.program)
	if p == nil {
		return 0
	}
	var idle []*Robot
	for _, r := range w.fleet.Sorted() {
		if r.Connected && r.Pos != nil && r.Idle() {
			idle = append(idle, r)
		}
	}
	if len(idle) == 0 {
		return 0
	}
	return p.Plan(w, idle)
}

type nothingProgram struct{}

func (nothingProgram) Name() string              { return protocol.ProgramNothing }
func (nothingProgram) Plan(*World, []*Robot) int { return 0 }

// randomProgram sends each idle robot to a uniformly chosen known floor cell.
type randomProgram struct{}

func (randomProgram) Name() string { return protocol.ProgramRandom }

func (randomProgram) Plan(w *World, idle []*Robot) int {
	// Sampling terminates only if some floor is known.
	if !w.grid.HasKnown(TileFloor) {
		return 0
	}
	iw, ih := w.grid.Width()-2, w.grid.Height()-2
	n := 0
	for _, r := range idle {
		for {
			p := Pos{X: 1 + w.rng.Intn(iw), Y: 1 + w.rng.Intn(ih)}
			if w.grid.at(p) == TileFloor {
				w.enqueue(r.ID, Waypoint{ID: w.ids.next(), X: p.X, Y: p.Y})
				n++
				break
			}
		}
	}
	return n
}

// discoverProgram sends each idle robot to the first frontier tile its
// breadth-first search reaches.
type discoverProgram struct{}

func (discoverProgram) Name() string { return protocol.ProgramDiscover }

func (discoverProgram) Plan(w *World, idle []*Robot) int {
	frontier := w.frontier()
	if len(frontier) == 0 {
		return 0
	}
	n := 0
	for _, r := range idle {
		target, ok := w.searchFrontier(r, frontier)
		if !ok {
			continue
		}
		delete(frontier, target)
		w.enqueue(r.ID, Waypoint{ID: w.ids.next(), X: target.X, Y: target.Y})
		n++
		if len(frontier) == 0 {
			break
		}
	}
	return n
}

// frontier returns interior unknown tiles that are not sealed in by chests
// on all four sides.
func (w *World) frontier() map[Pos]bool {
	out := map[Pos]bool{}
	for y := 1; y < w.grid.Height()-1; y++ {
		for x := 1; x < w.grid.Width()-1; x++ {
			p := Pos{X: x, Y: y}
			if w.grid.at(p) != TileUnknown {
				continue
			}
			sealed := true
			for _, d := range neighborOffsets {
				if w.grid.at(p.Add(d.X, d.Y)) != TileChest {
					sealed = false
					break
				}
			}
			if !sealed {
				out[p] = true
			}
		}
	}
	return out
}

// searchFrontier runs a BFS from the robot through floor and unknown cells
// not held by other robots. Neighbour order is shuffled at every node, so
// the result is the first frontier tile found, not the nearest.
func (w *World) searchFrontier(r *Robot, frontier map[Pos]bool) (Pos, bool) {
	start := *r.Pos
	visited := map[Pos]bool{start: true}
	queue := []Pos{start}
	order := neighborOffsets
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		w.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, d := range order {
			next := cur.Add(d.X, d.Y)
			if visited[next] || !w.grid.InBounds(next.X, next.Y) {
				continue
			}
			visited[next] = true
			t := w.grid.at(next)
			if t != TileFloor && t != TileUnknown {
				continue
			}
			if other, ok := w.fleet.OccupantAt(next); ok && other != r.ID {
				continue
			}
			if frontier[next] {
				return next, true
			}
			queue = append(queue, next)
		}
	}
	return Pos{}, false
}
