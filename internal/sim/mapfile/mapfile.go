// Package mapfile reads and writes ground-truth warehouse maps.
//
// A map file is JSON: {"type":"MegaBots Map","width":W,"height":H,"data":[[...row 0...],...]}
// with tile codes 0 unknown, 1 floor, 2 chest, 3 wall.
package mapfile

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

const FileType = "MegaBots Map"

const (
	Floor = 1
	Chest = 2
	Wall  = 3
)

type Map struct {
	Type   string  `json:"type"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Data   [][]int `json:"data"`
}

// At returns the tile code at (x, y), treating anything off-map as wall.
func (m *Map) At(x, y int) int {
	if m == nil || x < 0 || y < 0 || y >= len(m.Data) || x >= len(m.Data[y]) {
		return Wall
	}
	return m.Data[y][x]
}

func (m *Map) Validate() error {
	if m.Width < 3 || m.Height < 3 {
		return fmt.Errorf("map too small: %dx%d", m.Width, m.Height)
	}
	if len(m.Data) != m.Height {
		return fmt.Errorf("map has %d rows, want %d", len(m.Data), m.Height)
	}
	for y, row := range m.Data {
		if len(row) != m.Width {
			return fmt.Errorf("map row %d has %d tiles, want %d", y, len(row), m.Width)
		}
		for x, t := range row {
			if t < 0 || t > Wall {
				return fmt.Errorf("map tile (%d,%d) has invalid type %d", x, y, t)
			}
		}
	}
	return nil
}

func Load(path string) (*Map, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Map
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &m, nil
}

func Save(path string, m *Map) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// GenerateMaze carves a random maze of chests into a w x h floor.
// The border is wall. Corridor cells sit at odd coordinates; with
// openness > 0 that fraction of the remaining inner chests is knocked out to
// create loops. Only chests separating two corridors are removed, so every
// floor tile stays reachable.
func GenerateMaze(w, h int, openness float64, rng *rand.Rand) *Map {
	m := &Map{Type: FileType, Width: w, Height: h, Data: make([][]int, h)}
	for y := 0; y < h; y++ {
		m.Data[y] = make([]int, w)
		for x := 0; x < w; x++ {
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				m.Data[y][x] = Wall
			} else {
				m.Data[y][x] = Chest
			}
		}
	}
	if w < 3 || h < 3 {
		return m
	}

	type cell struct{ x, y int }
	inside := func(x, y int) bool { return x > 0 && y > 0 && x < w-1 && y < h-1 }

	start := cell{1, 1}
	m.Data[start.y][start.x] = Floor
	stack := []cell{start}
	dirs := [4]cell{{-2, 0}, {0, 2}, {2, 0}, {0, -2}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		order := rng.Perm(4)
		moved := false
		for _, i := range order {
			nx, ny := cur.x+dirs[i].x, cur.y+dirs[i].y
			if !inside(nx, ny) || m.Data[ny][nx] == Floor {
				continue
			}
			m.Data[cur.y+dirs[i].y/2][cur.x+dirs[i].x/2] = Floor
			m.Data[ny][nx] = Floor
			stack = append(stack, cell{nx, ny})
			moved = true
			break
		}
		if !moved {
			stack = stack[:len(stack)-1]
		}
	}

	// Even-sized maps leave the last inner row/column uncarved; open it up so
	// the far corners stay reachable.
	if (w-2)%2 == 0 {
		for y := 1; y < h-1; y++ {
			m.Data[y][w-2] = Floor
		}
	}
	if (h-2)%2 == 0 {
		for x := 1; x < w-1; x++ {
			m.Data[h-2][x] = Floor
		}
	}

	if openness > 0 {
		for y := 1; y < h-1; y++ {
			for x := 1; x < w-1; x++ {
				if m.Data[y][x] != Chest {
					continue
				}
				bridges := (m.At(x-1, y) == Floor && m.At(x+1, y) == Floor) ||
					(m.At(x, y-1) == Floor && m.At(x, y+1) == Floor)
				if bridges && rng.Float64() < openness {
					m.Data[y][x] = Floor
				}
			}
		}
	}
	return m
}
