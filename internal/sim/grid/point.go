package grid

import "math"

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) Add(d Dir) Point {
	dx, dy := d.Delta()
	return Point{X: p.X + dx, Y: p.Y + dy}
}

func (p Point) ToArray() [2]int { return [2]int{p.X, p.Y} }

func PointFromArray(a [2]int) Point { return Point{X: a[0], Y: a[1]} }

// Less orders points row-major (y, then x).
func (p Point) Less(o Point) bool {
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.X < o.X
}

func Manhattan(a, b Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// CrowFlies is the straight-line distance between tile centers.
func CrowFlies(a, b Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
