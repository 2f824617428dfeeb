package world

import "megabots.dev/internal/sim/mapfile"

// Sensor reports the true tile at a cell. Robots consult it when they
// reveal their surroundings.
type Sensor interface {
	Sense(x, y int) TileType
}

// MapSensor reads a ground-truth warehouse map.
type MapSensor struct {
	m *mapfile.Map
}

func NewMapSensor(m *mapfile.Map) *MapSensor { return &MapSensor{m: m} }

func (s *MapSensor) Sense(x, y int) TileType {
	switch s.m.At(x, y) {
	case mapfile.Floor:
		return TileFloor
	case mapfile.Chest:
		return TileChest
	default:
		return TileWall
	}
}

// OpenFloor is a warehouse with no chests: floor everywhere inside the ring.
type OpenFloor struct {
	W, H int
}

func (s OpenFloor) Sense(x, y int) TileType {
	if x <= 0 || y <= 0 || x >= s.W-1 || y >= s.H-1 {
		return TileWall
	}
	return TileFloor
}

// SensorFunc adapts a function to Sensor.
type SensorFunc func(x, y int) TileType

func (f SensorFunc) Sense(x, y int) TileType { return f(x, y) }
