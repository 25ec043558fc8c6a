package pathfind

import (
	"sort"

	"blockmarch.dev/internal/sim/grid"
)

// FindNearest searches every goal and returns the successful route with the
// lowest Standard score. Searches run with the caller's model; only the choice
// between goals uses Standard so agents of different kinds agree on "nearest".
// Ties go to the goal that sorts first in row-major order.
func FindNearest(g *grid.Graph, start grid.Point, goals []grid.Point, model CostModel, opts Options) Path {
	if len(goals) == 0 {
		return Path{Code: FailureNoPath}
	}
	sorted := make([]grid.Point, len(goals))
	copy(sorted, goals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	var best Path
	bestScore := 0.0
	found := false
	retry := false
	for _, goal := range sorted {
		p := Find(g, start, goal, model, opts)
		if !p.OK() {
			if p.Code == FailureTooManyTries {
				retry = true
			}
			continue
		}
		s := p.Score(Standard)
		if !found || s < bestScore {
			best, bestScore, found = p, s, true
		}
	}
	if found {
		return best
	}
	if retry {
		// The budget, not the topology, stopped at least one search.
		return Path{Code: FailureTooManyTries}
	}
	return Path{Code: FailureNoPath}
}
