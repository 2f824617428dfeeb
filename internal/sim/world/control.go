package world

import (
	"fmt"
	"strings"

	"megabots.dev/internal/protocol"
)

// UpdateWorldInfo applies a partial tick configuration change. Every field
// is validated before any is applied; omitted fields keep their value.
func (w *World) UpdateWorldInfo(u protocol.UpdateWorldInfoData) error {
	next := w.clock
	prog := w.program
	if u.TickType != nil {
		m := TickMode(*u.TickType)
		if !validTickMode(m) {
			return fmt.Errorf("%w: tick_type %d", ErrBadCommand, *u.TickType)
		}
		next.Mode = m
	}
	if u.TickSpeed != nil {
		if !validTickSpeed(*u.TickSpeed) {
			return fmt.Errorf("%w: tick_speed %dms outside [%d,%d]", ErrBadCommand, *u.TickSpeed, MinTickSpeedMs, MaxTickSpeedMs)
		}
		next.SpeedMs = *u.TickSpeed
	}
	if u.ActiveProgram != nil {
		if programFor(*u.ActiveProgram) == nil {
			return fmt.Errorf("%w: unknown program %q, want one of %s", ErrBadCommand, *u.ActiveProgram, strings.Join(ProgramNames(), ", "))
		}
		if *u.ActiveProgram == protocol.ProgramRandom && prog != protocol.ProgramRandom && !w.grid.HasKnown(TileFloor) {
			return fmt.Errorf("%w: Random needs at least one known floor tile", ErrBadCommand)
		}
		prog = *u.ActiveProgram
	}
	if next == w.clock && prog == w.program {
		return nil
	}
	w.clock = next
	w.program = prog
	w.emit(TickConfigChanged{Mode: next.Mode, SpeedMs: next.SpeedMs, Program: prog})
	w.audit(AuditEntry{Action: "TICK_CONFIG", Ref: uint64(next.SpeedMs), Reason: fmt.Sprintf("%s/%s", next.Mode, prog)})
	w.logf("tick config: mode=%s speed=%dms program=%s", next.Mode, next.SpeedMs, prog)
	w.flush()
	return nil
}

func (w *World) SetTickMode(m TickMode) error {
	v := int(m)
	return w.UpdateWorldInfo(protocol.UpdateWorldInfoData{TickType: &v})
}

func (w *World) SetTickSpeed(ms int) error {
	return w.UpdateWorldInfo(protocol.UpdateWorldInfoData{TickSpeed: &ms})
}

func (w *World) SetProgram(name string) error {
	return w.UpdateWorldInfo(protocol.UpdateWorldInfoData{ActiveProgram: &name})
}
