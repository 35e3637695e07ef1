package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const schemaDir = "../../schemas"

func writeSeed(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestValidateSeed_ShippedConfigs(t *testing.T) {
	seed, err := validateSeed("../../configs", schemaDir)
	if err != nil {
		t.Fatalf("shipped configs invalid: %v", err)
	}
	if len(seed.Items) == 0 || len(seed.Resources) == 0 || len(seed.Spawns) == 0 {
		t.Fatalf("expected a populated seed, got items=%d resources=%d spawns=%d", len(seed.Items), len(seed.Resources), len(seed.Spawns))
	}
}

func TestValidateSeed_SpawnsOptional(t *testing.T) {
	dir := writeSeed(t, map[string]string{
		"items.json": `[{"id":"logs","name":"Logs","stackable":false}]`,
		"resources.json": `[{"id":"tree","type":"tree","skill":"woodcutting","xp":25,"ticks_min":4,"ticks_max":6,
			"respawn_ms":5000,"collision":"block","loot":[{"item":"logs","min":1,"max":1,"weight":1}]}]`,
	})
	seed, err := validateSeed(dir, schemaDir)
	if err != nil {
		t.Fatalf("expected valid seed, got %v", err)
	}
	if len(seed.Spawns) != 0 {
		t.Fatalf("expected no spawns, got %d", len(seed.Spawns))
	}
}

func TestValidateSeed_Rejects(t *testing.T) {
	goodItems := `[{"id":"logs","name":"Logs","stackable":false}]`
	goodResources := `[{"id":"tree","type":"tree","skill":"woodcutting","xp":25,"ticks_min":4,"ticks_max":6,
		"respawn_ms":5000,"collision":"block","loot":[{"item":"logs","min":1,"max":1,"weight":1}]}]`
	cases := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{"bad item id", map[string]string{"items.json": `[{"id":"Logs!","name":"x","stackable":false}]`, "resources.json": `[]`}, "items.json"},
		{"unknown field", map[string]string{"items.json": goodItems, "resources.json": strings.Replace(goodResources, `"xp":25`, `"xp":25,"hp":3`, 1)}, "resources.json"},
		{"bad collision", map[string]string{"items.json": goodItems, "resources.json": strings.Replace(goodResources, `"block"`, `"wall"`, 1)}, "resources.json"},
		{"spawn missing y", map[string]string{"items.json": goodItems, "resources.json": goodResources, "spawns.json": `[{"id":"s","resource_id":"tree","x":1}]`}, "spawns.json"},
		// Passes the schema; only the loaded seed catches the dangling reference.
		{"unknown spawn resource", map[string]string{"items.json": goodItems, "resources.json": goodResources, "spawns.json": `[{"id":"s","resource_id":"rock","x":1,"y":1}]`}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validateSeed(writeSeed(t, tc.files), schemaDir)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error naming %s, got %v", tc.want, err)
			}
		})
	}
}
