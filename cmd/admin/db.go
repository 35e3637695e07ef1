package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"tileworld.ai/internal/persistence/sqlstore"
)

// dbCmd lists rows from a world database: characters, items, resources, loot, spawns
// or character <id>.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	_ = fs.Parse(args)

	q := "characters"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := resolveDBPath(*dataDir, *worldID, *dbPath)
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	db, err := sqlstore.Open(path, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runDBQuery(context.Background(), db, q, fs.Args()); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		db.Close()
		os.Exit(1)
	}
}

func runDBQuery(ctx context.Context, db *sqlstore.Store, q string, args []string) error {
	switch q {
	case "characters":
		rows, err := db.ListCharacters(ctx)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "character":
		if len(args) < 2 {
			return fmt.Errorf("usage: db character <id>")
		}
		rec, ok, err := db.LoadCharacter(ctx, args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no character %s", args[1])
		}
		printJSON(rec)
	case "items":
		defs, err := db.ItemDefs(ctx)
		if err != nil {
			return err
		}
		for _, d := range defs {
			printJSON(d)
		}
	case "resources":
		defs, err := db.ResourceDefs(ctx)
		if err != nil {
			return err
		}
		for _, d := range defs {
			printJSON(d)
		}
		reqs, err := db.ResourceRequirements(ctx)
		if err != nil {
			return err
		}
		for _, r := range reqs {
			printJSON(r)
		}
	case "loot":
		rows, err := db.ResourceLoot(ctx)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "spawns":
		rows, err := db.ResourceSpawns(ctx)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "meta":
		for _, k := range []string{"schema_version", "seed_digest"} {
			v, ok, err := db.Meta(ctx, k)
			if err != nil {
				return err
			}
			if ok {
				fmt.Printf("%s=%s\n", k, v)
			}
		}
	default:
		return fmt.Errorf("unknown query (want characters|character|items|resources|loot|spawns|meta)")
	}
	return nil
}
