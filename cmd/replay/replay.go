package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "blockmarch.dev/internal/persistence/log"
	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/world"
)

var errStop = errors.New("stop")

func listEventFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// replayFiles re-applies every logged tick from w's current tick onward and
// compares state digests. Ticks before verifyFrom are stepped but not checked.
func replayFiles(w *world.World, files []string, verifyFrom, toTick uint64) (checked uint64, err error) {
	startTick := w.CurrentTick()
	if verifyFrom == 0 {
		verifyFrom = startTick
	}
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(raw json.RawMessage) error {
			var entry world.TickLogEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			if entry.Tick < startTick {
				return nil
			}
			if toTick != 0 && entry.Tick > toTick {
				return errStop
			}
			if entry.Tick != w.CurrentTick() {
				return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
			}

			tick, gotDigest := w.StepOnce(commandsFromLog(entry.Commands))
			if tick >= verifyFrom {
				checked++
				if gotDigest != entry.Digest {
					return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
				}
			}
			return nil
		})
		if errors.Is(err, errStop) {
			return checked, nil
		}
		if err != nil {
			return checked, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return checked, nil
}

func commandsFromLog(recs []world.RecordedCommand) []world.Command {
	if len(recs) == 0 {
		return nil
	}
	out := make([]world.Command, 0, len(recs))
	for _, r := range recs {
		c := world.Command{
			ID:        r.ID,
			SessionID: r.SessionID,
			Op:        r.Op,
			Pos:       grid.Point{X: r.Pos[0], Y: r.Pos[1]},
			Kind:      r.Kind,
			Amount:    r.Amount,
		}
		if r.Structure != nil {
			c.Structure = *r.Structure
		}
		out = append(out, c)
	}
	return out
}
