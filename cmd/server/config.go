package main

import (
	"fmt"
	"log"
	"strings"

	"megabots.dev/internal/sim/mapfile"
	"megabots.dev/internal/sim/tuning"
	"megabots.dev/internal/sim/world"
)

// worldConfig turns the loaded tuning into a world config. A map file, when
// given, supplies both the grid size and the sensor's ground truth.
func worldConfig(id string, seed int64, tune tuning.Tuning, logger *log.Logger) (world.Config, error) {
	mode, err := world.ParseTickMode(tune.Tick.Mode)
	if err != nil {
		return world.Config{}, err
	}

	cfg := world.Config{
		ID:              id,
		Width:           tune.Map.Width,
		Height:          tune.Map.Height,
		Seed:            seed,
		TickMode:        mode,
		TickSpeedMs:     tune.Tick.SpeedMs,
		Program:         tune.ActiveProgram,
		RevealNeighbors: tune.RevealNeighbors == nil || *tune.RevealNeighbors,
		ClientQueue:     tune.ClientQueue,
		Logger:          logger,
	}

	if path := strings.TrimSpace(tune.Map.File); path != "" {
		m, err := mapfile.Load(path)
		if err != nil {
			return world.Config{}, fmt.Errorf("map file: %w", err)
		}
		cfg.Width, cfg.Height = m.Width, m.Height
		cfg.Sensor = world.NewMapSensor(m)
	}

	for _, r := range tune.Fleet {
		spec := world.RobotSpec{ID: r.ID, LiftCapacity: r.LiftCapacity}
		if r.Spawn != nil {
			spec.Spawn = &world.Pos{X: r.Spawn[0], Y: r.Spawn[1]}
		}
		cfg.Fleet = append(cfg.Fleet, spec)
	}
	return cfg, nil
}
