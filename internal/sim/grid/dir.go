package grid

import "fmt"

// Dir is a cardinal direction. Values index Tile neighbor slots.
type Dir uint8

const (
	North Dir = iota
	East
	South
	West
)

// Dirs is the fixed expansion order used everywhere a deterministic walk over
// neighbors is needed.
var Dirs = [4]Dir{North, East, South, West}

func (d Dir) Opposite() Dir { return (d + 2) & 3 }

// Rotate turns d clockwise by q quarter turns. Negative q turns counter-clockwise.
func (d Dir) Rotate(q int) Dir {
	q %= 4
	if q < 0 {
		q += 4
	}
	return Dir((int(d) + q) & 3)
}

// Delta returns the coordinate offset of one step in d. Y grows southwards.
func (d Dir) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	default:
		return -1, 0
	}
}

func (d Dir) String() string {
	switch d {
	case North:
		return "N"
	case East:
		return "E"
	case South:
		return "S"
	case West:
		return "W"
	}
	return fmt.Sprintf("Dir(%d)", uint8(d))
}

// DirBetween reports the direction of a single cardinal step from a to b.
func DirBetween(a, b Point) (Dir, bool) {
	switch {
	case b.X == a.X && b.Y == a.Y-1:
		return North, true
	case b.X == a.X+1 && b.Y == a.Y:
		return East, true
	case b.X == a.X && b.Y == a.Y+1:
		return South, true
	case b.X == a.X-1 && b.Y == a.Y:
		return West, true
	}
	return 0, false
}
