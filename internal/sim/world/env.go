package world

import (
	"sort"

	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/structure"
)

// structureEnv is the world as seen from structure tick hooks.
type structureEnv struct{ w *World }

var _ structure.Env = structureEnv{}

func (e structureEnv) Tick() uint64 { return e.w.tick.Load() }

func (e structureEnv) BlockAt(p grid.Point) (grid.BlockID, bool) {
	t, ok := e.w.graph.At(p)
	if !ok || !t.Occupied() {
		return grid.NoBlock, false
	}
	if e.w.blocks[t.Block()] == nil {
		return grid.NoBlock, false
	}
	return t.Block(), true
}

func (e structureEnv) BlocksWithin(center grid.Point, radius int) []grid.BlockID {
	type hit struct {
		id   grid.BlockID
		dist int
	}
	var hits []hit
	for id, b := range e.w.blocks {
		if d := grid.Manhattan(center, b.Pos); d <= radius {
			hits = append(hits, hit{id: id, dist: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].id < hits[j].id
	})
	out := make([]grid.BlockID, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}

func (e structureEnv) AddBlock(p grid.Point, kind string) (grid.BlockID, error) {
	return e.w.AddBlock(p, kind)
}

func (e structureEnv) ConsumeBlock(id grid.BlockID, by grid.Point) {
	b := e.w.blocks[id]
	if b == nil {
		return
	}
	e.w.totals.Consumed++
	e.w.dropBlock(b, "BLOCK_CONSUMED", "goal")
}

// DamageBlock kills the block once its life reaches zero. Blocks spawned with
// zero life cannot be damaged.
func (e structureEnv) DamageBlock(id grid.BlockID, amount int, by grid.Point) {
	b := e.w.blocks[id]
	if b == nil || b.Life <= 0 || amount <= 0 {
		return
	}
	b.Life -= amount
	if b.Life > 0 {
		return
	}
	b.Life = 0
	e.w.totals.Killed++
	e.w.dropBlock(b, "BLOCK_KILLED", "tower")
}
