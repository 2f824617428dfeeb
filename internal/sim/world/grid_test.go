package world

import (
	"errors"
	"testing"
)

func TestNewGrid_RingIsWall(t *testing.T) {
	g := NewGrid(5, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			got, err := g.Get(x, y)
			if err != nil {
				t.Fatalf("get (%d,%d): %v", x, y, err)
			}
			want := TileUnknown
			if x == 0 || y == 0 || x == 4 || y == 3 {
				want = TileWall
			}
			if got != want {
				t.Fatalf("(%d,%d)=%s want %s", x, y, got, want)
			}
		}
	}
}

func TestGrid_GetOutOfBounds(t *testing.T) {
	g := NewGrid(4, 4)
	for _, p := range []Pos{{-1, 0}, {0, -1}, {4, 0}, {0, 4}} {
		if _, err := g.Get(p.X, p.Y); !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("get %v: expected ErrOutOfBounds, got %v", p, err)
		}
	}
}

func TestGrid_SetIsIdempotentAndMonotonic(t *testing.T) {
	g := NewGrid(5, 5)
	changed, err := g.Set(2, 2, TileFloor)
	if err != nil || !changed {
		t.Fatalf("first reveal: changed=%v err=%v", changed, err)
	}
	for i := 0; i < 3; i++ {
		changed, err = g.Set(2, 2, TileFloor)
		if err != nil || changed {
			t.Fatalf("repeat reveal %d: changed=%v err=%v", i, changed, err)
		}
	}
	if _, err := g.Set(2, 2, TileUnknown); !errors.Is(err, ErrTileInvariant) {
		t.Fatalf("expected ErrTileInvariant un-revealing a tile, got %v", err)
	}
	if got, _ := g.Get(2, 2); got != TileFloor {
		t.Fatalf("tile changed after rejected set: %s", got)
	}
}

func TestGrid_SetRejectsRingAndBadType(t *testing.T) {
	g := NewGrid(5, 5)
	if _, err := g.Set(0, 2, TileFloor); !errors.Is(err, ErrTileInvariant) {
		t.Fatalf("expected ErrTileInvariant on ring, got %v", err)
	}
	if changed, err := g.Set(0, 2, TileWall); err != nil || changed {
		t.Fatalf("wall on ring should be a no-op: changed=%v err=%v", changed, err)
	}
	if _, err := g.Set(2, 2, TileType(9)); !errors.Is(err, ErrBadCommand) {
		t.Fatalf("expected ErrBadCommand, got %v", err)
	}
	if _, err := g.Set(7, 2, TileFloor); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestGrid_DataRowMajor(t *testing.T) {
	g := NewGrid(4, 3)
	if _, err := g.Set(2, 1, TileChest); err != nil {
		t.Fatalf("set: %v", err)
	}
	data := g.Data()
	if len(data) != 12 {
		t.Fatalf("len=%d", len(data))
	}
	if data[1*4+2] != int(TileChest) {
		t.Fatalf("index y*w+x does not hold the chest: %v", data)
	}
}
