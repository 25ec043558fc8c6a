package layout

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/structure"
)

//go:embed layout.schema.json
var schemaJSON string

const schemaURL = "layout.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaJSON)
	})
	return schema, schemaErr
}

// Layout is a map file: grid size, placed structures and initial blocks.
type Layout struct {
	Name       string           `json:"name,omitempty"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Structures []structure.Spec `json:"structures,omitempty"`
	Blocks     []BlockSpec      `json:"blocks,omitempty"`
}

type BlockSpec struct {
	Pos  grid.Point `json:"pos"`
	Kind string     `json:"kind,omitempty"`
}

// Target is what a layout is applied to.
type Target interface {
	LoadStructure(spec structure.Spec) error
	AddBlock(p grid.Point, kind string) (grid.BlockID, error)
}

func Load(path string) (Layout, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, err
	}
	l, err := Parse(raw)
	if err != nil {
		return Layout{}, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Parse validates raw against the layout schema, then decodes it.
func Parse(raw []byte) (Layout, error) {
	s, err := compiledSchema()
	if err != nil {
		return Layout{}, fmt.Errorf("layout schema: %w", err)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Layout{}, fmt.Errorf("layout: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return Layout{}, fmt.Errorf("layout: %w", err)
	}
	var l Layout
	if err := json.Unmarshal(raw, &l); err != nil {
		return Layout{}, fmt.Errorf("layout: %w", err)
	}
	if err := l.check(); err != nil {
		return Layout{}, fmt.Errorf("layout: %w", err)
	}
	return l, nil
}

// check covers what the schema cannot: positions inside the declared size and
// one structure per tile.
func (l Layout) check() error {
	in := func(p grid.Point) bool { return p.X < l.Width && p.Y < l.Height }
	seen := map[grid.Point]bool{}
	for i, s := range l.Structures {
		if !in(s.Pos) {
			return fmt.Errorf("structures[%d]: %v outside %dx%d", i, s.Pos, l.Width, l.Height)
		}
		if seen[s.Pos] {
			return fmt.Errorf("structures[%d]: second structure at %v", i, s.Pos)
		}
		seen[s.Pos] = true
	}
	blocks := map[grid.Point]bool{}
	for i, b := range l.Blocks {
		if !in(b.Pos) {
			return fmt.Errorf("blocks[%d]: %v outside %dx%d", i, b.Pos, l.Width, l.Height)
		}
		if blocks[b.Pos] {
			return fmt.Errorf("blocks[%d]: second block at %v", i, b.Pos)
		}
		blocks[b.Pos] = true
	}
	return nil
}

// Apply places every structure, then every block, stopping at the first error.
func (l Layout) Apply(t Target) error {
	for i, s := range l.Structures {
		if err := t.LoadStructure(s); err != nil {
			return fmt.Errorf("structures[%d]: %w", i, err)
		}
	}
	for i, b := range l.Blocks {
		if _, err := t.AddBlock(b.Pos, b.Kind); err != nil {
			return fmt.Errorf("blocks[%d]: %w", i, err)
		}
	}
	return nil
}
