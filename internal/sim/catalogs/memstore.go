package catalogs

import (
	"context"
	"sync"
)

// MemStore is an in-memory ItemStore and ResourceStore. It backs -disable_db runs and
// tests.
type MemStore struct {
	mu     sync.Mutex
	items  map[string]ItemDef
	res    map[string]ResourceDef
	reqs   map[string][]Requirement
	loot   map[string][]LootRow
	spawns map[string]Spawn
}

func NewMemStore() *MemStore {
	return &MemStore{
		items:  map[string]ItemDef{},
		res:    map[string]ResourceDef{},
		reqs:   map[string][]Requirement{},
		loot:   map[string][]LootRow{},
		spawns: map[string]Spawn{},
	}
}

func (m *MemStore) ItemDefs(ctx context.Context) ([]ItemDef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ItemDef, 0, len(m.items))
	for _, id := range sortedKeys(m.items) {
		out = append(out, m.items[id])
	}
	return out, nil
}

func (m *MemStore) UpsertItemDef(ctx context.Context, def ItemDef) error {
	if err := ValidateItemDef(def); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[def.ID] = def
	return nil
}

func (m *MemStore) ResourceDefs(ctx context.Context) ([]ResourceDef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ResourceDef, 0, len(m.res))
	for _, id := range sortedKeys(m.res) {
		out = append(out, m.res[id])
	}
	return out, nil
}

func (m *MemStore) ResourceRequirements(ctx context.Context) ([]Requirement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Requirement
	for _, id := range sortedKeys(m.reqs) {
		out = append(out, m.reqs[id]...)
	}
	return out, nil
}

func (m *MemStore) ResourceLoot(ctx context.Context) ([]LootRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LootRow
	for _, id := range sortedKeys(m.loot) {
		out = append(out, m.loot[id]...)
	}
	return out, nil
}

func (m *MemStore) ResourceSpawns(ctx context.Context) ([]Spawn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Spawn, 0, len(m.spawns))
	for _, id := range sortedKeys(m.spawns) {
		out = append(out, m.spawns[id])
	}
	return out, nil
}

func (m *MemStore) UpsertResourceDef(ctx context.Context, def ResourceDef, reqs []Requirement, loot []LootRow) error {
	if err := ValidateResourceDef(def, reqs, loot); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putResource(def, reqs, loot)
	return nil
}

func (m *MemStore) UpsertSpawn(ctx context.Context, sp Spawn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spawns[sp.ID] = sp
	return nil
}

func (m *MemStore) DeleteSpawn(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.spawns, id)
	return nil
}

// putResource replaces the definition and its normalized rows. Caller holds mu (or owns m).
func (m *MemStore) putResource(def ResourceDef, reqs []Requirement, loot []LootRow) {
	m.res[def.ID] = def
	rs := make([]Requirement, 0, len(reqs))
	for _, r := range reqs {
		r.ResourceID = def.ID
		rs = append(rs, r)
	}
	ls := make([]LootRow, 0, len(loot))
	for _, l := range loot {
		l.ResourceID = def.ID
		ls = append(ls, l)
	}
	m.reqs[def.ID] = rs
	m.loot[def.ID] = ls
}
