package pathfind

import (
	"fmt"

	"blockmarch.dev/internal/sim/grid"
)

// Code is the tagged outcome of a search.
type Code uint8

const (
	// FailureNoPath is the zero value so an empty Path never reads as usable.
	FailureNoPath Code = iota
	Success
	AtDestination
	FailureTooFar
	FailureTooManyTries
)

func (c Code) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case AtDestination:
		return "AT_DESTINATION"
	case FailureNoPath:
		return "FAILURE_NO_PATH"
	case FailureTooFar:
		return "FAILURE_TOO_FAR"
	case FailureTooManyTries:
		return "FAILURE_TOO_MANY_TRIES"
	}
	return fmt.Sprintf("Code(%d)", uint8(c))
}

// ParseCode is the inverse of Code.String.
func ParseCode(s string) (Code, error) {
	for c := FailureNoPath; c <= FailureTooManyTries; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return FailureNoPath, fmt.Errorf("unknown path code %q", s)
}

// Path is a search result. Tiles runs from the start tile to the goal tile
// inclusive. The cost components describe the whole route so it can be rescored
// under another CostModel without searching again.
type Path struct {
	Code  Code
	Tiles []grid.Point

	Distance      float64
	StructureCost float64
	CrowFlies     float64
	Steps         int
	Turns         int
}

// OK reports whether the path can be followed.
func (p Path) OK() bool { return p.Code == Success || p.Code == AtDestination }

func (p Path) Score(m CostModel) float64 {
	return m.Score(p.Distance, p.StructureCost, p.CrowFlies, p.Steps, p.Turns)
}

// Clone deep-copies the tile list so the copy can be consumed independently.
func (p Path) Clone() Path {
	out := p
	if p.Tiles != nil {
		out.Tiles = make([]grid.Point, len(p.Tiles))
		copy(out.Tiles, p.Tiles)
	}
	return out
}

// Remaining is the number of tiles left, including the current one.
func (p *Path) Remaining() int { return len(p.Tiles) }

func (p *Path) Head() (grid.Point, bool) {
	if len(p.Tiles) == 0 {
		return grid.Point{}, false
	}
	return p.Tiles[0], true
}

// Next is the tile after the head, the one an agent steps onto next.
func (p *Path) Next() (grid.Point, bool) {
	if len(p.Tiles) < 2 {
		return grid.Point{}, false
	}
	return p.Tiles[1], true
}

// Pop drops the head tile.
func (p *Path) Pop() {
	if len(p.Tiles) == 0 {
		return
	}
	p.Tiles = p.Tiles[1:]
}

// Goal returns the last tile of the path.
func (p *Path) Goal() (grid.Point, bool) {
	if len(p.Tiles) == 0 {
		return grid.Point{}, false
	}
	return p.Tiles[len(p.Tiles)-1], true
}
