package movement

import (
	"blockmarch.dev/internal/sim/grid"
)

const DefaultPasses = 100

// Resolver advances blocks one tile per tick without collisions.
type Resolver struct {
	// Passes bounds the sweeps per tick. Blocks still queued after the last
	// pass get a single best-effort check and otherwise wait for next tick.
	Passes int
}

// Stats summarizes one Resolve call.
type Stats struct {
	Passes   int
	Moved    int
	Blocked  int
	Deferred int
	Stale    int
}

type outcome uint8

const (
	outcomeIdle outcome = iota
	outcomeWaiting
	outcomeMoved
	outcomeBlocked
)

// Resolve runs the per-tick passes over blocks, which the caller supplies in a
// stable order (the world uses ascending id). Flags must already be reset.
// Every block ends the call with Updated set.
func (r Resolver) Resolve(g *grid.Graph, blocks []*Block) Stats {
	passes := r.Passes
	if passes <= 0 {
		passes = DefaultPasses
	}
	byID := make(map[grid.BlockID]*Block, len(blocks))
	for _, b := range blocks {
		byID[b.ID] = b
	}

	var st Stats
	for pass := 0; pass < passes; pass++ {
		st.Passes++
		progress := false
		waiting := 0
		for _, b := range blocks {
			if b.resolved() {
				continue
			}
			switch o := r.step(g, b, byID); o {
			case outcomeMoved:
				st.Moved++
				progress = true
			case outcomeBlocked:
				st.Blocked++
				progress = true
				if b.Stale {
					st.Stale++
				}
			case outcomeWaiting:
				waiting++
			}
		}
		// A pass with no commit or block leaves the board as it was, so the
		// next one would repeat it.
		if waiting == 0 || !progress {
			break
		}
	}

	for _, b := range blocks {
		if b.resolved() {
			continue
		}
		if b.Waiting {
			st.Deferred++
		}
		if next, ok := r.validNext(g, b); ok {
			if t, _ := g.At(next); !t.Occupied() {
				commit(g, b, next)
				st.Moved++
				continue
			}
		}
		b.Updated = true
		b.Moving = false
	}
	return st
}

func (r Resolver) step(g *grid.Graph, b *Block, byID map[grid.BlockID]*Block) outcome {
	if b.Path.Remaining() < 2 {
		return outcomeIdle
	}
	next, ok := r.validNext(g, b)
	if !ok {
		b.Updated = true
		b.Moving = false
		b.Waiting = false
		b.Stale = true
		return outcomeBlocked
	}
	t, _ := g.At(next)
	if !t.Occupied() {
		commit(g, b, next)
		return outcomeMoved
	}
	other := byID[t.Block()]
	if other == nil || other.resolved() {
		// Unknown occupants never move; resolved ones are done for this tick.
		b.Updated = true
		b.Moving = false
		b.Waiting = false
		return outcomeBlocked
	}
	b.Waiting = true
	return outcomeWaiting
}

// validNext returns the path's next tile if the block can legally step onto
// it from where it stands.
func (r Resolver) validNext(g *grid.Graph, b *Block) (grid.Point, bool) {
	head, ok := b.Path.Head()
	if !ok || head != b.Pos {
		return grid.Point{}, false
	}
	next, ok := b.Path.Next()
	if !ok {
		return grid.Point{}, false
	}
	d, ok := grid.DirBetween(b.Pos, next)
	if !ok {
		return grid.Point{}, false
	}
	cur, ok := g.At(b.Pos)
	if !ok || cur.ExitBlocked(d) {
		return grid.Point{}, false
	}
	t, ok := g.At(next)
	if !ok || !t.Passable() {
		return grid.Point{}, false
	}
	return next, true
}

func commit(g *grid.Graph, b *Block, next grid.Point) {
	b.Prev = b.Pos
	g.ClearBlock(b.Pos)
	b.Path.Pop()
	b.Pos = next
	g.SetBlock(next, b.ID)
	b.Moved = true
	b.Moving = true
	b.Updated = true
	b.Waiting = false
}
