package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 is the full resumable state of a world at the end of Header.Tick.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Width    int `json:"width"`
	Height   int `json:"height"`
	TickRate int `json:"tick_rate_hz"`

	// Operational parameters, captured so a resumed world behaves the same.
	MaxPathDistance    float64       `json:"max_path_distance"`
	MaxPathTries       int           `json:"max_path_tries"`
	ResolutionPasses   int           `json:"resolution_passes"`
	OrphanGraceTicks   int           `json:"orphan_grace_ticks"`
	SnapshotEveryTicks int           `json:"snapshot_every_ticks,omitempty"`
	DefaultAgentKind   string        `json:"default_agent_kind"`
	AgentKinds         []AgentKindV1 `json:"agent_kinds"`

	// Changed carries a structural change that has not been repathed yet.
	Changed bool `json:"changed,omitempty"`

	Structures []StructureV1 `json:"structures"`
	Blocks     []BlockV1     `json:"blocks"`

	Counters CountersV1 `json:"counters"`
}

type AgentKindV1 struct {
	Name      string `json:"name"`
	CostModel string `json:"cost_model"`
	Life      int    `json:"life"`
}

type StructureV1 struct {
	Kind        string  `json:"kind"`
	Pos         [2]int  `json:"pos"`
	Rotation    int     `json:"rotation"`
	Cost        float64 `json:"cost"`
	Impassable  bool    `json:"impassable"`
	ExitBlocked [4]bool `json:"exit_blocked"`
	Life        int     `json:"life"`
	Removable   bool    `json:"removable"`
	BuildOver   bool    `json:"build_over"`

	SpawnKind     string `json:"spawn_kind,omitempty"`
	SpawnInterval int    `json:"spawn_interval,omitempty"`
	SpawnCount    int    `json:"spawn_count,omitempty"`
	SpawnCooldown int    `json:"spawn_cooldown,omitempty"`

	Range         int `json:"range,omitempty"`
	Power         int `json:"power,omitempty"`
	Reload        int `json:"reload,omitempty"`
	ReloadCounter int `json:"reload_counter,omitempty"`

	Consumed int `json:"consumed,omitempty"`
}

type BlockV1 struct {
	ID   uint32 `json:"id"`
	Kind string `json:"kind"`
	Pos  [2]int `json:"pos"`
	Prev [2]int `json:"prev"`
	Life int    `json:"life"`

	PathCode          string   `json:"path_code"`
	Path              [][2]int `json:"path,omitempty"`
	PathDistance      float64  `json:"path_distance,omitempty"`
	PathStructureCost float64  `json:"path_structure_cost,omitempty"`
	PathCrowFlies     float64  `json:"path_crow_flies,omitempty"`
	PathSteps         int      `json:"path_steps,omitempty"`
	PathTurns         int      `json:"path_turns,omitempty"`

	Stale  bool `json:"stale,omitempty"`
	Orphan int  `json:"orphan,omitempty"`
}

type CountersV1 struct {
	NextBlock uint32 `json:"next_block"`
	Spawned   uint64 `json:"spawned"`
	Consumed  uint64 `json:"consumed"`
	Killed    uint64 `json:"killed"`
	Collected uint64 `json:"collected"`
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded
// snapshot, all inside one zstd stream.
func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header; the line only serves quick inspection.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// FileName is the on-disk name of the snapshot for tick.
func FileName(tick uint64) string {
	return fmt.Sprintf("%d.snap.zst", tick)
}

// Latest returns the snapshot with the highest tick in dir.
func Latest(dir string) (path string, tick uint64, err error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, err
	}
	type cand struct {
		tick uint64
		name string
	}
	var cands []cand
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		t, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		cands = append(cands, cand{tick: t, name: name})
	}
	if len(cands) == 0 {
		return "", 0, fmt.Errorf("no snapshots in %s", dir)
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].tick > cands[j].tick })
	return filepath.Join(dir, cands[0].name), cands[0].tick, nil
}
