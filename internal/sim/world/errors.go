package world

import (
	"errors"

	"megabots.dev/internal/protocol"
)

// Validation errors: the command is rejected with no effect.
var (
	ErrOutOfBounds      = errors.New("out of bounds")
	ErrUnknownRobot     = errors.New("unknown robot")
	ErrTileInvariant    = errors.New("tile invariant")
	ErrBadCommand       = errors.New("bad command")
	ErrOccupied         = errors.New("cell occupied")
	ErrAlreadyConnected = errors.New("robot already connected")
)

// ErrNoCapableRobot is returned when no robot in the fleet can lift the load.
var ErrNoCapableRobot = errors.New("no capable robot")

var ErrWorldStopped = errors.New("world stopped")

// ErrorCode maps a command error to its wire code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownRobot):
		return protocol.ErrUnknownRobot
	case errors.Is(err, ErrOutOfBounds), errors.Is(err, ErrOccupied), errors.Is(err, ErrTileInvariant):
		return protocol.ErrInvalidTarget
	case errors.Is(err, ErrNoCapableRobot):
		return protocol.ErrNoResource
	case errors.Is(err, ErrBadCommand), errors.Is(err, ErrAlreadyConnected):
		return protocol.ErrBadRequest
	case errors.Is(err, ErrWorldStopped):
		return protocol.ErrWorldBusy
	default:
		return protocol.ErrInternal
	}
}
