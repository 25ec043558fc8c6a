package world

import (
	"errors"

	"blockmarch.dev/internal/protocol"
	"blockmarch.dev/internal/sim/structure"
)

var (
	ErrOutOfBounds      = errors.New("position out of bounds")
	ErrTileOccupied     = errors.New("tile occupied")
	ErrImpassable       = errors.New("tile impassable")
	ErrNoStructure      = errors.New("no structure at position")
	ErrNotRemovable     = errors.New("structure not removable")
	ErrNoBlock          = errors.New("no such block")
	ErrUnknownAgentKind = errors.New("unknown agent kind")
	ErrUnknownOp        = errors.New("unknown command op")
)

// ErrorCode maps an entry point error to its protocol code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOutOfBounds), errors.Is(err, ErrNoStructure), errors.Is(err, ErrNoBlock):
		return protocol.ErrInvalidTarget
	case errors.Is(err, ErrTileOccupied):
		return protocol.ErrConflict
	case errors.Is(err, ErrImpassable):
		return protocol.ErrBlocked
	case errors.Is(err, ErrNotRemovable):
		return protocol.ErrNoPermission
	case errors.Is(err, structure.ErrUnknownKind), errors.Is(err, ErrUnknownAgentKind), errors.Is(err, ErrUnknownOp):
		return protocol.ErrBadRequest
	}
	return protocol.ErrBadRequest
}
