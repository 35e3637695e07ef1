package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"tileworld.ai/internal/sim/catalogs"
	"tileworld.ai/internal/sim/tile"
	"tileworld.ai/internal/sim/tuning"
	"tileworld.ai/internal/sim/world"
)

const configDir = "../../configs"

func TestOpenBackend_SQLiteImportsSeedOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	be, err := openBackend(ctx, dir, configDir, false, nil)
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	if be.db == nil {
		t.Fatalf("expected a sqlite store")
	}
	digest, ok, err := be.db.Meta(ctx, "seed_digest")
	if err != nil || !ok || digest == "" {
		t.Fatalf("expected seed digest recorded, got %q ok=%v err=%v", digest, ok, err)
	}
	if err := be.items.UpsertItemDef(ctx, catalogs.ItemDef{ID: "gem", Name: "Gem", Stackable: true}); err != nil {
		t.Fatalf("UpsertItemDef: %v", err)
	}
	if err := be.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A second open must keep the admin edit rather than re-importing the seed.
	be, err = openBackend(ctx, dir, configDir, false, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer be.Close()
	repo := catalogs.NewItemRepo(be.items, nil)
	if _, ok := repo.Get("gem"); !ok {
		t.Fatalf("expected admin-added item to survive reopen")
	}
}

func TestOpenBackend_MemoryAndWorld(t *testing.T) {
	ctx := context.Background()
	be, err := openBackend(ctx, t.TempDir(), configDir, true, nil)
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	if be.db != nil {
		t.Fatalf("expected no database with disable_db")
	}
	tune, err := tuning.Load(configDir + "/tuning.yaml")
	if err != nil {
		t.Fatalf("tuning: %v", err)
	}
	w, err := buildWorld(ctx, "world_1", tune, configDir, catalogs.NewItemRepo(be.items, nil), catalogs.NewResourceRepo(be.resources, nil))
	if err != nil {
		t.Fatalf("buildWorld: %v", err)
	}
	if w.Width() != 32 || w.Height() != 24 {
		t.Fatalf("expected the 32x24 map, got %dx%d", w.Width(), w.Height())
	}
	if !w.Walkable(tune.Spawn()) {
		t.Fatalf("expected the spawn tile to be walkable")
	}
	if c := w.Counts(); c.Resources != 13 {
		t.Fatalf("expected 13 placed resources, got %d", c.Resources)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TW_TEST_FLAG", "false")
	if envBool("TW_TEST_FLAG", true) {
		t.Fatalf("expected false from env")
	}
	t.Setenv("TW_TEST_FLAG", "garbage")
	if !envBool("TW_TEST_FLAG", true) {
		t.Fatalf("expected default on parse error")
	}
}

func TestFatalAfterClose_FlushesQueuedSaves(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	be, err := openBackend(ctx, dir, configDir, false, nil)
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	be.chars.SaveCharacter(world.CharacterRecord{ID: "c1", Name: "Ann", Pos: tile.Pos{X: 5, Y: 5}})

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	exited := 0
	logger.ExitFunc = func(code int) { exited = code }
	fatalAfterClose(logger, be)(errors.New("boom"), "world")
	if exited != 1 {
		t.Fatalf("expected exit code 1, got %d", exited)
	}

	be, err = openBackend(ctx, dir, configDir, false, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer be.Close()
	rec, ok, err := be.chars.LoadCharacter(ctx, "c1")
	if err != nil || !ok || rec.Name != "Ann" {
		t.Fatalf("expected queued save flushed before exit, got %+v ok=%v err=%v", rec, ok, err)
	}
}
