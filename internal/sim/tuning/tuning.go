package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	Seed int64 `yaml:"seed"`

	Map  MapTuning  `yaml:"map"`
	Tick TickTuning `yaml:"tick"`

	// ActiveProgram is the exploration program at start (Nothing, Discover, Random).
	ActiveProgram   string `yaml:"active_program"`
	RevealNeighbors *bool  `yaml:"reveal_neighbors"`

	// ClientQueue bounds the outbound frames buffered per link.
	ClientQueue int `yaml:"client_queue"`

	Fleet []RobotSpec `yaml:"fleet"`
}

type MapTuning struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// File is an optional ground-truth map (see internal/sim/mapfile). When
	// set, its dimensions win over Width/Height.
	File string `yaml:"file"`
}

type TickTuning struct {
	Mode    string `yaml:"mode"` // manual | auto
	SpeedMs int    `yaml:"speed_ms"`
}

type RobotSpec struct {
	ID           int     `yaml:"id"`
	LiftCapacity int     `yaml:"lift_capacity"`
	Spawn        *[2]int `yaml:"spawn"`
}

// Defaults mirrors the original four-robot arena with robots in the corners.
func Defaults() Tuning {
	t := Tuning{
		Seed:          1337,
		Map:           MapTuning{Width: 24, Height: 24},
		Tick:          TickTuning{Mode: "manual", SpeedMs: 500},
		ActiveProgram: "Nothing",
		ClientQueue:   256,
	}
	t.Normalize()
	return t
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	if t.Map.Width <= 0 {
		t.Map.Width = 24
	}
	if t.Map.Height <= 0 {
		t.Map.Height = 24
	}
	t.Tick.Mode = strings.ToLower(strings.TrimSpace(t.Tick.Mode))
	if t.Tick.Mode == "" {
		t.Tick.Mode = "manual"
	}
	if t.Tick.SpeedMs <= 0 {
		t.Tick.SpeedMs = 500
	}
	if strings.TrimSpace(t.ActiveProgram) == "" {
		t.ActiveProgram = "Nothing"
	}
	if t.ClientQueue <= 0 {
		t.ClientQueue = 256
	}
	if t.RevealNeighbors == nil {
		on := true
		t.RevealNeighbors = &on
	}
	if len(t.Fleet) == 0 {
		w, h := t.Map.Width, t.Map.Height
		t.Fleet = []RobotSpec{
			{ID: 1, LiftCapacity: 200, Spawn: &[2]int{1, 1}},
			{ID: 2, LiftCapacity: 400, Spawn: &[2]int{w - 2, 1}},
			{ID: 3, LiftCapacity: 250, Spawn: &[2]int{1, h - 2}},
			{ID: 4, LiftCapacity: 500, Spawn: &[2]int{w - 2, h - 2}},
		}
	}
}

func (t Tuning) Validate() error {
	if t.Map.Width < 3 || t.Map.Height < 3 {
		return fmt.Errorf("map must be at least 3x3, got %dx%d", t.Map.Width, t.Map.Height)
	}
	switch t.Tick.Mode {
	case "manual", "auto":
	default:
		return fmt.Errorf("tick.mode must be manual or auto, got %q", t.Tick.Mode)
	}
	switch t.ActiveProgram {
	case "Nothing", "Discover", "Random":
	default:
		return fmt.Errorf("unknown active_program %q", t.ActiveProgram)
	}
	seen := map[int]bool{}
	for _, r := range t.Fleet {
		if r.ID <= 0 {
			return fmt.Errorf("fleet: robot id must be positive, got %d", r.ID)
		}
		if seen[r.ID] {
			return fmt.Errorf("fleet: duplicate robot id %d", r.ID)
		}
		seen[r.ID] = true
		if r.LiftCapacity < 0 {
			return fmt.Errorf("fleet: robot %d has negative lift_capacity", r.ID)
		}
	}
	return nil
}
