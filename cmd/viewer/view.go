package main

import (
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"blockmarch.dev/internal/protocol"
	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/structure"
	"blockmarch.dev/internal/sim/world"
)

var (
	styleFloor   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleWall    = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleGoal    = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleSpawner = tcell.StyleDefault.Foreground(tcell.ColorBlue).Bold(true)
	styleTower   = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleBlock   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleStatus  = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleError   = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// viewer owns the world and steps it from its own loop, so no other
// goroutine may touch w.
type viewer struct {
	w       *world.World
	screen  tcell.Screen
	tickDur time.Duration

	cursor   grid.Point
	pending  []world.Command
	inflight []chan world.CommandResult
	nextCmd  int

	status    string
	statusErr bool
}

func newViewer(w *world.World, screen tcell.Screen) *viewer {
	hz := w.TickRateHz()
	if hz <= 0 {
		hz = 5
	}
	return &viewer{
		w:       w,
		screen:  screen,
		tickDur: time.Second / time.Duration(hz),
		cursor:  grid.Point{X: w.Width() / 2, Y: w.Height() / 2},
	}
}

func structureGlyph(k structure.Kind) (rune, tcell.Style) {
	switch k {
	case structure.KindGoal:
		return 'G', styleGoal
	case structure.KindSpawner:
		return 'S', styleSpawner
	case structure.KindTower:
		return 'T', styleTower
	case structure.KindWall:
		return '#', styleWall
	default:
		return '+', styleWall
	}
}

// render draws the grid with blocks placed fraction of the way through
// their current move.
func (v *viewer) render(fraction float64) {
	v.screen.Clear()
	for y := 0; y < v.w.Height(); y++ {
		for x := 0; x < v.w.Width(); x++ {
			r, st := '.', styleFloor
			if t, ok := v.w.TileAt(grid.Point{X: x, Y: y}); ok && t.Structure != nil {
				r, st = structureGlyph(t.Structure.Kind)
			}
			v.screen.SetContent(x, y, r, nil, st)
		}
	}
	for _, b := range v.w.Interpolate(fraction) {
		x, y := int(math.Round(b.X)), int(math.Round(b.Y))
		v.screen.SetContent(x, y, blockGlyph(b.Kind), nil, styleBlock)
	}

	r, _, st, _ := v.screen.GetContent(v.cursor.X, v.cursor.Y)
	v.screen.SetContent(v.cursor.X, v.cursor.Y, r, nil, st.Reverse(true))

	m := v.w.Totals()
	line := fmt.Sprintf("tick %d  blocks %d  spawned %d consumed %d killed %d  [w]all [d]elete [s]pawn [q]uit",
		v.w.CurrentTick(), len(v.w.Blocks()), m.Spawned, m.Consumed, m.Killed)
	v.drawText(0, v.w.Height()+1, line, styleStatus)
	if v.status != "" {
		st := styleStatus
		if v.statusErr {
			st = styleError
		}
		v.drawText(0, v.w.Height()+2, v.status, st)
	}
	v.screen.Show()
}

func blockGlyph(kind string) rune {
	if kind == "" {
		return 'o'
	}
	return rune(kind[0])
}

func (v *viewer) drawText(x, y int, s string, st tcell.Style) {
	for i, r := range []rune(s) {
		v.screen.SetContent(x+i, y, r, nil, st)
	}
}

// handleKey returns false when the viewer should exit.
func (v *viewer) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		v.moveCursor(0, -1)
	case tcell.KeyDown:
		v.moveCursor(0, 1)
	case tcell.KeyLeft:
		v.moveCursor(-1, 0)
	case tcell.KeyRight:
		v.moveCursor(1, 0)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case 'w':
			v.queue(world.Command{Op: protocol.OpPlace, Structure: structure.Spec{Kind: structure.KindWall}})
		case 'd':
			v.queue(world.Command{Op: protocol.OpDelete})
		case 's':
			v.queue(world.Command{Op: protocol.OpSpawn})
		}
	}
	return true
}

func (v *viewer) moveCursor(dx, dy int) {
	p := grid.Point{X: v.cursor.X + dx, Y: v.cursor.Y + dy}
	if p.X < 0 || p.Y < 0 || p.X >= v.w.Width() || p.Y >= v.w.Height() {
		return
	}
	v.cursor = p
}

// queue records a command at the cursor for the next tick.
func (v *viewer) queue(c world.Command) {
	v.nextCmd++
	c.ID = fmt.Sprintf("K_%d", v.nextCmd)
	c.SessionID = "viewer"
	c.Pos = v.cursor
	c.Resp = make(chan world.CommandResult, 1)
	v.pending = append(v.pending, c)
	v.inflight = append(v.inflight, c.Resp)
}

// step advances the world one tick with the queued commands and reports the
// last failure (or success) on the status line.
func (v *viewer) step() {
	cmds := v.pending
	v.pending = nil
	v.w.StepOnce(cmds)
	for _, ch := range v.inflight {
		select {
		case res := <-ch:
			if res.Err != nil {
				v.status = fmt.Sprintf("%s: %s", res.Ref, res.Err)
				v.statusErr = true
			} else {
				v.status = fmt.Sprintf("%s ok at tick %d", res.Ref, res.Tick)
				v.statusErr = false
			}
		default:
		}
	}
	v.inflight = nil
}

func (v *viewer) run() {
	ticker := time.NewTicker(16 * time.Millisecond) // ~60 FPS
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	lastStep := time.Now()
	for {
		select {
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !v.handleKey(ev) {
					return
				}
			case *tcell.EventResize:
				v.screen.Sync()
			}
		case now := <-ticker.C:
			if now.Sub(lastStep) >= v.tickDur {
				v.step()
				lastStep = now
			}
			fraction := float64(now.Sub(lastStep)) / float64(v.tickDur)
			v.render(min(fraction, 1))
		}
	}
}
