package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"tileworld.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "validate":
			validateCmd(os.Args[2:])
			return
		case "seed":
			seedCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "snapshots":
			snapshotsCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "reload":
			reloadCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "upsert":
			upsertCmd(os.Args[2:])
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

// snapshotsCmd prints the header of every snapshot on disk for a world.
func snapshotsCmd(args []string) {
	fs := flag.NewFlagSet("snapshots", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "worlds", *worldID, "snapshots")
	paths, err := filepath.Glob(filepath.Join(dir, "*.snap.zst"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "glob:", err)
		os.Exit(1)
	}
	for _, p := range paths {
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(p), err)
			continue
		}
		printJSON(struct {
			Path string `json:"path"`
			snapshot.Header
		}{Path: p, Header: h})
	}
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
