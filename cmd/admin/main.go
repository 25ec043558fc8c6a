package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	persistlog "blockmarch.dev/internal/persistence/log"
	"blockmarch.dev/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// auditCmd prints audit log entries filtered by tick range, rectangle and
// action, straight from the zstd logs (works with -disable_db servers).
func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	rect := fs.String("rect", "", "rectangle filter: x1,y1:x2,y2 (optional)")
	action := fs.String("action", "", "action filter, e.g. STRUCTURE_PLACED (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	f := auditFilter{SinceTick: *sinceTick, ToTick: *toTick, Action: strings.ToUpper(strings.TrimSpace(*action))}
	if *rect != "" {
		lo, hi, err := parseRect(*rect)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -rect:", err)
			os.Exit(2)
		}
		f.Rect = &[2][2]int{lo, hi}
	}

	recs, err := readAudit(filepath.Join(*dataDir, "worlds", *worldID), f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, r := range recs {
		printJSON(os.Stdout, r)
	}
}

type auditFilter struct {
	SinceTick uint64
	ToTick    uint64
	Action    string
	Rect      *[2][2]int
}

func (f auditFilter) match(e world.AuditEntry) bool {
	if e.Tick < f.SinceTick || (f.ToTick != 0 && e.Tick > f.ToTick) {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Rect != nil {
		lo, hi := f.Rect[0], f.Rect[1]
		if e.Pos[0] < lo[0] || e.Pos[0] > hi[0] || e.Pos[1] < lo[1] || e.Pos[1] > hi[1] {
			return false
		}
	}
	return true
}

func readAudit(worldDir string, f auditFilter) ([]world.AuditEntry, error) {
	dir := filepath.Join(worldDir, "audit")
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
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []world.AuditEntry
	for _, name := range names {
		path := filepath.Join(dir, name)
		err := persistlog.ReadJSONL(path, func(raw json.RawMessage) error {
			var e world.AuditEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", name, err)
			}
			if f.match(e) {
				out = append(out, e)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseRect(s string) (lo, hi [2]int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return lo, hi, fmt.Errorf("expected x1,y1:x2,y2")
	}
	a, err := parsePoint(parts[0])
	if err != nil {
		return lo, hi, err
	}
	b, err := parsePoint(parts[1])
	if err != nil {
		return lo, hi, err
	}
	for i := 0; i < 2; i++ {
		lo[i], hi[i] = min(a[i], b[i]), max(a[i], b[i])
	}
	return lo, hi, nil
}

func parsePoint(s string) ([2]int, error) {
	var v [2]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return v, fmt.Errorf("expected x,y")
	}
	for i := 0; i < 2; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}
