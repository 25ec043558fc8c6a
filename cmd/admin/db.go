package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	fromTick := fs.Uint64("from_tick", 0, "first tick (ticks query)")
	blockID := fs.Uint64("block", 0, "block id (block query)")
	pos := fs.String("pos", "", "tile x,y (tile query)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	opts := dbQuery{Limit: *limit, FromTick: *fromTick, BlockID: *blockID}
	if *pos != "" {
		p, err := parsePoint(*pos)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -pos:", err)
			os.Exit(2)
		}
		opts.Pos = &p
	}
	if err := runDBQuery(os.Stdout, db, q, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] snapshots|meta|ticks|block|tile")
		os.Exit(2)
	}
}

type dbQuery struct {
	Limit    int
	FromTick uint64
	BlockID  uint64
	Pos      *[2]int
}

func runDBQuery(out io.Writer, db *sql.DB, q string, o dbQuery) error {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,width,height,structures,blocks FROM snapshots ORDER BY tick DESC LIMIT ?`, o.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick       int64  `json:"tick"`
				Path       string `json:"path"`
				Width      int    `json:"width"`
				Height     int    `json:"height"`
				Structures int    `json:"structures"`
				Blocks     int    `json:"blocks"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.Width, &r.Height, &r.Structures, &r.Blocks); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "meta":
		rows, err := db.Query(`SELECT key,value FROM meta WHERE key <> 'tuning_json' ORDER BY key`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		m := map[string]string{}
		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			m[k] = v
		}
		if err := rows.Err(); err != nil {
			return err
		}
		printJSON(out, m)
		return nil

	case "ticks":
		rows, err := db.Query(`SELECT tick,digest,commands,changed,moved,spawned,consumed FROM ticks WHERE tick >= ? ORDER BY tick LIMIT ?`, int64(o.FromTick), o.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     int64  `json:"tick"`
				Digest   string `json:"digest"`
				Commands int    `json:"commands"`
				Changed  bool   `json:"changed"`
				Moved    int    `json:"moved"`
				Spawned  int    `json:"spawned"`
				Consumed int    `json:"consumed"`
			}
			if err := rows.Scan(&r.Tick, &r.Digest, &r.Commands, &r.Changed, &r.Moved, &r.Spawned, &r.Consumed); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "block", "tile":
		var (
			rows *sql.Rows
			err  error
		)
		if q == "block" {
			if o.BlockID == 0 {
				return fmt.Errorf("block query needs -block")
			}
			rows, err = db.Query(`SELECT raw_json FROM audits WHERE block_id=? ORDER BY tick, seq LIMIT ?`, int64(o.BlockID), o.Limit)
		} else {
			if o.Pos == nil {
				return fmt.Errorf("tile query needs -pos")
			}
			rows, err = db.Query(`SELECT raw_json FROM audits WHERE x=? AND y=? ORDER BY tick, seq LIMIT ?`, o.Pos[0], o.Pos[1], o.Limit)
		}
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			fmt.Fprintln(out, raw)
		}
		return rows.Err()
	}
	return fmt.Errorf("unknown query: %s", q)
}

func printJSON(out io.Writer, v any) {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
