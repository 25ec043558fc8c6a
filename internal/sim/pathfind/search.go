package pathfind

import (
	"container/heap"

	"blockmarch.dev/internal/sim/grid"
)

const (
	DefaultMaxDistance = 512.0
	DefaultMaxTries    = 20000
)

// Options bounds a single search. Non-positive fields fall back to the defaults.
type Options struct {
	// MaxDistance caps both the start-goal straight-line distance and the
	// accumulated route distance of any expanded node.
	MaxDistance float64
	// MaxTries caps the number of frontier selections.
	MaxTries int
}

func (o Options) normalized() Options {
	if o.MaxDistance <= 0 {
		o.MaxDistance = DefaultMaxDistance
	}
	if o.MaxTries <= 0 {
		o.MaxTries = DefaultMaxTries
	}
	return o
}

// scratch is the per-search working record of one visited tile.
type scratch struct {
	distance  float64
	cost      float64
	crowFlies float64
	steps     int
	turns     int
	parent    int

	exitDir grid.Dir
	hasExit bool

	open    bool
	closed  bool
	version uint32
}

type frontierEntry struct {
	index   int
	score   float64
	seq     uint64
	version uint32
}

// frontier is a min-heap on score; equal scores pop in insertion order.
type frontier []frontierEntry

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].score != f[j].score {
		return f[i].score < f[j].score
	}
	return f[i].seq < f[j].seq
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(frontierEntry)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	e := old[n-1]
	*f = old[:n-1]
	return e
}

// Find searches a route from start to goal over g.
//
// All working state lives in a map local to the call, so nothing is left on
// the graph afterwards and two calls with equal inputs return equal results.
// The graph itself must not be mutated while Find runs.
func Find(g *grid.Graph, start, goal grid.Point, model CostModel, opts Options) Path {
	if model == nil {
		model = Standard
	}
	opts = opts.normalized()

	startTile, ok := g.At(start)
	if !ok {
		return Path{Code: FailureNoPath}
	}
	goalTile, ok := g.At(goal)
	if !ok {
		return Path{Code: FailureNoPath}
	}
	if !goalTile.Passable() {
		return Path{Code: FailureNoPath}
	}
	if start == goal {
		return Path{Code: AtDestination, Tiles: []grid.Point{start}}
	}
	if grid.CrowFlies(start, goal) > opts.MaxDistance {
		return Path{Code: FailureTooFar}
	}

	nodes := make(map[int]*scratch, 256)
	open := make(frontier, 0, 64)
	var seq uint64

	push := func(idx int, n *scratch) {
		n.open = true
		n.closed = false
		n.version++
		seq++
		heap.Push(&open, frontierEntry{
			index:   idx,
			score:   model.Score(n.distance, n.cost, n.crowFlies, n.steps, n.turns),
			seq:     seq,
			version: n.version,
		})
	}

	first := &scratch{crowFlies: grid.CrowFlies(start, goal), parent: -1}
	nodes[startTile.Index()] = first
	push(startTile.Index(), first)

	tries := 0
	for open.Len() > 0 {
		e := heap.Pop(&open).(frontierEntry)
		cur := nodes[e.index]
		if cur == nil || !cur.open || cur.version != e.version {
			continue
		}

		tries++
		if tries > opts.MaxTries {
			return Path{Code: FailureTooManyTries}
		}
		if cur.distance > opts.MaxDistance {
			return Path{Code: FailureTooFar}
		}
		if e.index == goalTile.Index() {
			return reconstruct(g, nodes, e.index)
		}

		cur.open = false
		cur.closed = true
		curTile := g.TileByIndex(e.index)

		for _, d := range grid.Dirs {
			nb := curTile.Neighbor(d)
			if nb == nil || !nb.Passable() {
				continue
			}
			// Gating belongs to the tile being left.
			if curTile.ExitBlocked(d) {
				continue
			}
			tentative := cur.distance + 1
			n := nodes[nb.Index()]
			if n != nil && tentative >= n.distance {
				continue
			}
			if n == nil {
				n = &scratch{}
				nodes[nb.Index()] = n
			}
			turns := cur.turns
			if cur.hasExit && cur.exitDir != d {
				turns++
			}
			n.distance = tentative
			n.crowFlies = grid.CrowFlies(nb.Pos(), goal)
			n.cost = cur.cost + nb.TraversalCost()
			n.steps = cur.steps + 1
			n.turns = turns
			n.parent = e.index
			n.exitDir = d
			n.hasExit = true
			push(nb.Index(), n)
		}
	}
	return Path{Code: FailureNoPath}
}

func reconstruct(g *grid.Graph, nodes map[int]*scratch, goalIdx int) Path {
	end := nodes[goalIdx]
	tiles := make([]grid.Point, 0, end.steps+1)
	for idx := goalIdx; idx >= 0; idx = nodes[idx].parent {
		tiles = append(tiles, g.TileByIndex(idx).Pos())
	}
	for i, j := 0, len(tiles)-1; i < j; i, j = i+1, j-1 {
		tiles[i], tiles[j] = tiles[j], tiles[i]
	}
	return Path{
		Code:          Success,
		Tiles:         tiles,
		Distance:      end.distance,
		StructureCost: end.cost,
		CrowFlies:     end.crowFlies,
		Steps:         end.steps,
		Turns:         end.turns,
	}
}
