package world

import (
	"fmt"

	"megabots.dev/internal/protocol"
)

type TileType uint8

const (
	TileUnknown TileType = protocol.TileUnknown
	TileFloor   TileType = protocol.TileFloor
	TileChest   TileType = protocol.TileChest
	TileWall    TileType = protocol.TileWall
)

func (t TileType) String() string {
	switch t {
	case TileUnknown:
		return "UNKNOWN"
	case TileFloor:
		return "FLOOR"
	case TileChest:
		return "CHEST"
	case TileWall:
		return "WALL"
	default:
		return fmt.Sprintf("TILE(%d)", uint8(t))
	}
}

// Blocking reports whether a robot can never stand on the tile.
func (t TileType) Blocking() bool { return t == TileWall || t == TileChest }

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Pos) Add(dx, dy int) Pos { return Pos{X: p.X + dx, Y: p.Y + dy} }

var neighborOffsets = [4]Pos{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}

// Grid is the warehouse floor as currently known, stored row-major.
// The outer ring is always wall and a revealed tile never becomes unknown again.
type Grid struct {
	w, h  int
	tiles []TileType
}

func NewGrid(w, h int) *Grid {
	g := &Grid{w: w, h: h, tiles: make([]TileType, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if g.onRing(x, y) {
				g.tiles[y*w+x] = TileWall
			}
		}
	}
	return g
}

func (g *Grid) Width() int  { return g.w }
func (g *Grid) Height() int { return g.h }

func (g *Grid) InBounds(x, y int) bool { return x >= 0 && y >= 0 && x < g.w && y < g.h }

func (g *Grid) Interior(x, y int) bool { return x > 0 && y > 0 && x < g.w-1 && y < g.h-1 }

func (g *Grid) onRing(x, y int) bool { return x == 0 || y == 0 || x == g.w-1 || y == g.h-1 }

func (g *Grid) Get(x, y int) (TileType, error) {
	if !g.InBounds(x, y) {
		return TileUnknown, fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrOutOfBounds, x, y, g.w, g.h)
	}
	return g.tiles[y*g.w+x], nil
}

// at reads without bounds errors; off-grid reads as wall.
func (g *Grid) at(p Pos) TileType {
	if !g.InBounds(p.X, p.Y) {
		return TileWall
	}
	return g.tiles[p.Y*g.w+p.X]
}

// Set stores t at (x, y). Storing the type already present is a no-op and
// reports changed=false, which keeps re-applied reveals from producing events.
func (g *Grid) Set(x, y int, t TileType) (changed bool, err error) {
	cur, err := g.Get(x, y)
	if err != nil {
		return false, err
	}
	if cur == t {
		return false, nil
	}
	if t > TileWall {
		return false, fmt.Errorf("%w: invalid tile type %d", ErrBadCommand, t)
	}
	if g.onRing(x, y) {
		return false, fmt.Errorf("%w: border tile (%d,%d) is permanently wall", ErrTileInvariant, x, y)
	}
	if t == TileUnknown {
		return false, fmt.Errorf("%w: tile (%d,%d) already revealed as %s", ErrTileInvariant, x, y, cur)
	}
	g.tiles[y*g.w+x] = t
	return true, nil
}

func (g *Grid) HasKnown(t TileType) bool {
	for _, v := range g.tiles {
		if v == t {
			return true
		}
	}
	return false
}

func (g *Grid) Count(t TileType) int {
	n := 0
	for _, v := range g.tiles {
		if v == t {
			n++
		}
	}
	return n
}

// Data returns a row-major copy using wire tile codes.
func (g *Grid) Data() []int {
	out := make([]int, len(g.tiles))
	for i, v := range g.tiles {
		out[i] = int(v)
	}
	return out
}
