package grid

import "fmt"

// BlockID is the stable registry id of a mobile block. Zero means "no block".
type BlockID uint32

const NoBlock BlockID = 0

// Occupant is the part of a placed structure the graph and the pathfinder need.
type Occupant interface {
	TraversalCost() float64
	Impassable() bool
	// ExitBlocked reports whether leaving the occupied tile in direction d is
	// forbidden. d is a world direction; rotation is applied by the occupant.
	ExitBlocked(d Dir) bool
}

type Tile struct {
	pos       Point
	index     int
	neighbors [4]*Tile

	structure Occupant
	block     BlockID
}

func (t *Tile) Pos() Point           { return t.pos }
func (t *Tile) Index() int           { return t.index }
func (t *Tile) Structure() Occupant  { return t.structure }
func (t *Tile) Block() BlockID       { return t.block }
func (t *Tile) Occupied() bool       { return t.block != NoBlock }
func (t *Tile) HasStructure() bool   { return t.structure != nil }
func (t *Tile) Neighbor(d Dir) *Tile { return t.neighbors[d&3] }

func (t *Tile) Passable() bool {
	return t.structure == nil || !t.structure.Impassable()
}

func (t *Tile) TraversalCost() float64 {
	if t.structure == nil {
		return 0
	}
	c := t.structure.TraversalCost()
	if c < 0 {
		return 0
	}
	return c
}

func (t *Tile) ExitBlocked(d Dir) bool {
	return t.structure != nil && t.structure.ExitBlocked(d)
}

// Graph is a fixed-size 4-connected tile graph.
// It is not safe for concurrent use; the owning world serializes all access.
type Graph struct {
	width  int
	height int
	tiles  []Tile

	changed bool
}

func New(width, height int) (*Graph, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid: invalid size %dx%d", width, height)
	}
	g := &Graph{
		width:  width,
		height: height,
		tiles:  make([]Tile, width*height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			g.tiles[i].pos = Point{X: x, Y: y}
			g.tiles[i].index = i
		}
	}
	// Links are set once, reciprocally. Boundary slots stay nil.
	for i := range g.tiles {
		t := &g.tiles[i]
		for _, d := range Dirs {
			if n, ok := g.At(t.pos.Add(d)); ok {
				t.neighbors[d] = n
				n.neighbors[d.Opposite()] = t
			}
		}
	}
	return g, nil
}

func (g *Graph) Width() int  { return g.width }
func (g *Graph) Height() int { return g.height }
func (g *Graph) Len() int    { return len(g.tiles) }

func (g *Graph) InBounds(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.width && p.Y < g.height
}

func (g *Graph) At(p Point) (*Tile, bool) {
	if !g.InBounds(p) {
		return nil, false
	}
	return &g.tiles[p.Y*g.width+p.X], true
}

// TileByIndex returns the tile with the given row-major index.
func (g *Graph) TileByIndex(i int) *Tile {
	if i < 0 || i >= len(g.tiles) {
		return nil
	}
	return &g.tiles[i]
}

func (g *Graph) Neighbor(p Point, d Dir) (*Tile, bool) {
	t, ok := g.At(p)
	if !ok {
		return nil, false
	}
	n := t.neighbors[d&3]
	return n, n != nil
}

func (g *Graph) SetStructure(p Point, s Occupant) error {
	t, ok := g.At(p)
	if !ok {
		return fmt.Errorf("grid: %v out of bounds", p)
	}
	t.structure = s
	g.changed = true
	return nil
}

// ClearStructure removes and returns the structure at p (nil if none).
func (g *Graph) ClearStructure(p Point) Occupant {
	t, ok := g.At(p)
	if !ok || t.structure == nil {
		return nil
	}
	s := t.structure
	t.structure = nil
	g.changed = true
	return s
}

// SetBlock records id as the occupant of p. Occupancy never marks the graph changed.
func (g *Graph) SetBlock(p Point, id BlockID) error {
	t, ok := g.At(p)
	if !ok {
		return fmt.Errorf("grid: %v out of bounds", p)
	}
	t.block = id
	return nil
}

func (g *Graph) ClearBlock(p Point) {
	if t, ok := g.At(p); ok {
		t.block = NoBlock
	}
}

func (g *Graph) Changed() bool { return g.changed }
func (g *Graph) MarkChanged()  { g.changed = true }
func (g *Graph) ClearChanged() { g.changed = false }
