package main

import (
	"fmt"
	"math/rand"

	"blockmarch.dev/internal/protocol"
)

// bot spawns blocks on the west edge and toggles one wall to force reroutes.
type bot struct {
	rng        *rand.Rand
	spawnEvery uint64
	wallEvery  uint64

	width, height int
	kinds         []string
	occupied      map[[2]int]bool
	wall          *[2]int
	seq           int
}

func newBot(rng *rand.Rand, spawnEvery, wallEvery uint64) *bot {
	return &bot{rng: rng, spawnEvery: spawnEvery, wallEvery: wallEvery, occupied: map[[2]int]bool{}}
}

func (b *bot) welcome(w protocol.WelcomeMsg) {
	b.width, b.height = w.Width, w.Height
	b.kinds = w.AgentKinds
}

func (b *bot) onFrame(f protocol.FrameMsg) []protocol.CmdMsg {
	if b.width <= 0 || b.height <= 0 {
		return nil
	}
	if f.Structures != nil || f.Changed {
		clear(b.occupied)
		for _, s := range f.Structures {
			b.occupied[s.Pos] = true
		}
	}
	blocks := make(map[[2]int]bool, len(f.Blocks))
	for _, bs := range f.Blocks {
		blocks[bs.Pos] = true
	}

	var out []protocol.CmdMsg
	if b.spawnEvery > 0 && f.Tick%b.spawnEvery == 0 {
		y := b.rng.Intn(b.height)
		p := [2]int{0, y}
		if !b.occupied[p] && !blocks[p] {
			kind := ""
			if len(b.kinds) > 0 {
				kind = b.kinds[b.rng.Intn(len(b.kinds))]
			}
			out = append(out, b.cmd(protocol.OpSpawn, p, kind, nil))
		}
	}
	if b.wallEvery > 0 && f.Tick%b.wallEvery == 0 {
		if b.wall != nil {
			out = append(out, b.cmd(protocol.OpDelete, *b.wall, "", nil))
			b.wall = nil
		} else if b.width > 2 {
			p := [2]int{1 + b.rng.Intn(b.width-2), b.rng.Intn(b.height)}
			if !b.occupied[p] && !blocks[p] {
				out = append(out, b.cmd(protocol.OpPlace, p, "", &protocol.StructureSpec{Kind: "WALL"}))
				b.wall = &p
			}
		}
	}
	return out
}

func (b *bot) cmd(op string, pos [2]int, kind string, s *protocol.StructureSpec) protocol.CmdMsg {
	b.seq++
	return protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		ID:              fmt.Sprintf("B_%d", b.seq),
		Op:              op,
		Pos:             pos,
		Kind:            kind,
		Structure:       s,
	}
}
