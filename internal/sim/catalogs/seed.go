package catalogs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SeedResource is one entry of resources.json: a definition with its requirement and loot
// rows inline.
type SeedResource struct {
	ResourceDef
	Requirements []Requirement `json:"requirements,omitempty"`
	Loot         []LootRow     `json:"loot,omitempty"`
}

// Seed is the on-disk catalog used to populate an empty store or to run without a
// database.
type Seed struct {
	Items     []ItemDef
	Resources []SeedResource
	Spawns    []Spawn

	ItemsDigest     string
	ResourcesDigest string
	SpawnsDigest    string
}

func LoadSeed(configDir string) (*Seed, error) {
	var s Seed
	if err := loadJSONFile(filepath.Join(configDir, "items.json"), &s.Items, &s.ItemsDigest, false); err != nil {
		return nil, err
	}
	if err := loadJSONFile(filepath.Join(configDir, "resources.json"), &s.Resources, &s.ResourcesDigest, false); err != nil {
		return nil, err
	}
	// Spawn layout may live only in the database.
	if err := loadJSONFile(filepath.Join(configDir, "spawns.json"), &s.Spawns, &s.SpawnsDigest, true); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func loadJSONFile(path string, out any, digest *string, optional bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			*digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	*digest = sha256Hex(raw)
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// Validate checks ids are unique, definitions are well formed and every spawn and loot
// row references a known definition.
func (s *Seed) Validate() error {
	items := map[string]bool{}
	for _, it := range s.Items {
		if err := ValidateItemDef(it); err != nil {
			return fmt.Errorf("items.json: %w", err)
		}
		if items[it.ID] {
			return fmt.Errorf("items.json: duplicate id %s", it.ID)
		}
		items[it.ID] = true
	}
	res := map[string]bool{}
	for _, r := range s.Resources {
		if err := ValidateResourceDef(r.ResourceDef, r.Requirements, r.Loot); err != nil {
			return fmt.Errorf("resources.json: %w", err)
		}
		if res[r.ID] {
			return fmt.Errorf("resources.json: duplicate id %s", r.ID)
		}
		res[r.ID] = true
		for _, l := range r.Loot {
			if !items[l.ItemID] {
				return fmt.Errorf("resources.json: %s: loot references unknown item %s", r.ID, l.ItemID)
			}
		}
	}
	spawnIDs := map[string]bool{}
	for _, sp := range s.Spawns {
		if sp.ID == "" {
			return fmt.Errorf("spawns.json: empty id")
		}
		if spawnIDs[sp.ID] {
			return fmt.Errorf("spawns.json: duplicate id %s", sp.ID)
		}
		spawnIDs[sp.ID] = true
		if !res[sp.ResourceID] {
			return fmt.Errorf("spawns.json: %s references unknown resource %s", sp.ID, sp.ResourceID)
		}
	}
	return nil
}

// Digest combines the three file digests.
func (s *Seed) Digest() string {
	return sha256Hex([]byte(s.ItemsDigest + s.ResourcesDigest + s.SpawnsDigest))
}

// NewMemStoreFromSeed returns an in-memory store holding the seed's rows.
func NewMemStoreFromSeed(s *Seed) *MemStore {
	m := NewMemStore()
	for _, it := range s.Items {
		m.items[it.ID] = it
	}
	for _, r := range s.Resources {
		m.putResource(r.ResourceDef, r.Requirements, r.Loot)
	}
	for _, sp := range s.Spawns {
		m.spawns[sp.ID] = sp
	}
	return m
}

func digestOf(v any) string {
	b, _ := json.Marshal(v)
	return sha256Hex(b)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
