package world

import (
	"fmt"
	"time"

	"megabots.dev/internal/protocol"
)

type TickMode int

const (
	TickManual TickMode = protocol.TickManual
	TickAuto   TickMode = protocol.TickAuto
)

func (m TickMode) String() string {
	switch m {
	case TickManual:
		return "manual"
	case TickAuto:
		return "auto"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseTickMode(s string) (TickMode, error) {
	switch s {
	case "manual", "MANUAL", "":
		return TickManual, nil
	case "auto", "AUTO":
		return TickAuto, nil
	default:
		return 0, fmt.Errorf("%w: tick mode %q", ErrBadCommand, s)
	}
}

const (
	MinTickSpeedMs = 10
	MaxTickSpeedMs = 60000
)

type TickConfig struct {
	Mode    TickMode
	SpeedMs int
}

func (c TickConfig) Interval() time.Duration { return time.Duration(c.SpeedMs) * time.Millisecond }

func validTickMode(m TickMode) bool { return m == TickManual || m == TickAuto }

func validTickSpeed(ms int) bool { return ms >= MinTickSpeedMs && ms <= MaxTickSpeedMs }
