package movement

import (
	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/pathfind"
)

// Block is a mobile agent. Pos and the tile's block id must agree outside of
// a commit.
type Block struct {
	ID   grid.BlockID
	Kind string
	Pos  grid.Point
	// Prev is where the block started the current tick; renderers interpolate
	// from Prev to Pos.
	Prev grid.Point
	Life int

	// Path is owned by the block. Its head is the tile the block stands on.
	Path pathfind.Path

	Moving  bool
	Moved   bool
	Updated bool
	Waiting bool

	// Stale asks the world to recompute Path before the next resolution.
	Stale bool
	// Orphan counts consecutive ticks the block's tile did not point back at it.
	Orphan int
}

// ResetTick clears the per-tick flags and pins Prev to the current tile.
func (b *Block) ResetTick() {
	b.Moving = false
	b.Moved = false
	b.Updated = false
	b.Waiting = false
	b.Prev = b.Pos
}

func (b *Block) resolved() bool { return b.Updated || b.Moved }

// SetPath installs a private copy of p.
func (b *Block) SetPath(p pathfind.Path) {
	b.Path = p.Clone()
	b.Stale = false
}

// Interpolated returns the render position at fraction f in [0,1] of the
// current tick.
func (b *Block) Interpolated(f float64) (x, y float64) {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	x = float64(b.Prev.X) + (float64(b.Pos.X)-float64(b.Prev.X))*f
	y = float64(b.Prev.Y) + (float64(b.Pos.Y)-float64(b.Prev.Y))*f
	return x, y
}
