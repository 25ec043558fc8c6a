package grid

import "testing"

type stubOccupant struct {
	cost       float64
	impassable bool
	blocked    [4]bool
}

func (s stubOccupant) TraversalCost() float64 { return s.cost }
func (s stubOccupant) Impassable() bool       { return s.impassable }
func (s stubOccupant) ExitBlocked(d Dir) bool { return s.blocked[d] }

func TestNew_RejectsEmpty(t *testing.T) {
	if _, err := New(0, 3); err == nil {
		t.Fatalf("expected error for zero width")
	}
	if _, err := New(3, -1); err == nil {
		t.Fatalf("expected error for negative height")
	}
}

func TestAt_BoundsChecked(t *testing.T) {
	g, err := New(3, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, p := range []Point{{-1, 0}, {0, -1}, {3, 0}, {0, 2}} {
		if _, ok := g.At(p); ok {
			t.Fatalf("At(%v) should be absent", p)
		}
	}
	tl, ok := g.At(Point{X: 2, Y: 1})
	if !ok || tl.Pos() != (Point{X: 2, Y: 1}) {
		t.Fatalf("At(2,1)=%v ok=%v", tl, ok)
	}
	if tl.Index() != 5 {
		t.Fatalf("index=%d want 5", tl.Index())
	}
}

func TestNeighbors_ReciprocalAndBoundary(t *testing.T) {
	g, _ := New(3, 3)
	for i := 0; i < g.Len(); i++ {
		tl := g.TileByIndex(i)
		for _, d := range Dirs {
			n := tl.Neighbor(d)
			want := g.InBounds(tl.Pos().Add(d))
			if (n != nil) != want {
				t.Fatalf("tile %v dir %v: neighbor present=%v want %v", tl.Pos(), d, n != nil, want)
			}
			if n != nil && n.Neighbor(d.Opposite()) != tl {
				t.Fatalf("tile %v dir %v: link not reciprocal", tl.Pos(), d)
			}
		}
	}
	c, _ := g.At(Point{X: 1, Y: 1})
	if n := c.Neighbor(North); n.Pos() != (Point{X: 1, Y: 0}) {
		t.Fatalf("north of center=%v", n.Pos())
	}
	if n := c.Neighbor(East); n.Pos() != (Point{X: 2, Y: 1}) {
		t.Fatalf("east of center=%v", n.Pos())
	}
}

func TestStructureMarksChanged_BlockDoesNot(t *testing.T) {
	g, _ := New(2, 2)
	p := Point{X: 1, Y: 0}

	if err := g.SetBlock(p, 7); err != nil {
		t.Fatalf("set block: %v", err)
	}
	if g.Changed() {
		t.Fatalf("block occupancy must not mark changed")
	}
	tl, _ := g.At(p)
	if tl.Block() != 7 || !tl.Occupied() {
		t.Fatalf("block=%d", tl.Block())
	}
	g.ClearBlock(p)
	if tl.Occupied() || g.Changed() {
		t.Fatalf("clear block: occupied=%v changed=%v", tl.Occupied(), g.Changed())
	}

	if err := g.SetStructure(p, stubOccupant{cost: 2, impassable: true}); err != nil {
		t.Fatalf("set structure: %v", err)
	}
	if !g.Changed() {
		t.Fatalf("structure placement must mark changed")
	}
	if tl.Passable() || tl.TraversalCost() != 2 {
		t.Fatalf("passable=%v cost=%v", tl.Passable(), tl.TraversalCost())
	}
	g.ClearChanged()
	if s := g.ClearStructure(p); s == nil {
		t.Fatalf("expected removed structure")
	}
	if !g.Changed() || !tl.Passable() || tl.HasStructure() {
		t.Fatalf("after clear: changed=%v passable=%v", g.Changed(), tl.Passable())
	}
	g.ClearChanged()
	if s := g.ClearStructure(p); s != nil || g.Changed() {
		t.Fatalf("clearing empty tile should be a no-op")
	}
}

func TestDirRotate(t *testing.T) {
	cases := []struct {
		d    Dir
		q    int
		want Dir
	}{
		{North, 1, East},
		{North, 2, South},
		{West, 1, North},
		{East, -1, North},
		{South, 7, East},
		{South, -6, North},
	}
	for _, c := range cases {
		if got := c.d.Rotate(c.q); got != c.want {
			t.Fatalf("%v.Rotate(%d)=%v want %v", c.d, c.q, got, c.want)
		}
	}
	for _, d := range Dirs {
		if d.Opposite().Opposite() != d {
			t.Fatalf("opposite not involutive for %v", d)
		}
	}
}

func TestDirBetween(t *testing.T) {
	a := Point{X: 4, Y: 4}
	for _, d := range Dirs {
		got, ok := DirBetween(a, a.Add(d))
		if !ok || got != d {
			t.Fatalf("DirBetween step %v = %v,%v", d, got, ok)
		}
	}
	if _, ok := DirBetween(a, Point{X: 5, Y: 5}); ok {
		t.Fatalf("diagonal must not be a cardinal step")
	}
	if _, ok := DirBetween(a, a); ok {
		t.Fatalf("same point must not be a step")
	}
}
