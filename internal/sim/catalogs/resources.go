package catalogs

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"tileworld.ai/internal/logging"
	"tileworld.ai/internal/sim/skills"
)

// resourceCatalog is one load of the definition, requirement and loot tables. It is
// never mutated after Load builds it.
type resourceCatalog struct {
	defs   map[string]ResourceDef
	reqs   map[string][]Requirement
	loot   map[string][]LootRow
	digest string
}

// ResourceRepo caches resource definitions together with their requirement and loot rows.
type ResourceRepo struct {
	store ResourceStore
	log   logrus.FieldLogger

	mu     sync.RWMutex
	cur    *resourceCatalog
	stale  bool
	failed bool
}

func NewResourceRepo(store ResourceStore, log logrus.FieldLogger) *ResourceRepo {
	return &ResourceRepo{
		store: store,
		log:   logging.OrDiscard(log).WithField("component", "resource_repo"),
	}
}

// FallbackResource is what an unknown resource id resolves to: no skill, no xp, no
// requirements, one tick, walkable.
func FallbackResource(id string) ResourceDef {
	return ResourceDef{ID: id, TicksMin: 1, TicksMax: 1, Collision: CollisionNone}
}

// Load replaces the cache with the store's current tables. On error the cache is left
// as it was.
func (r *ResourceRepo) Load(ctx context.Context) error {
	defs, err := r.store.ResourceDefs(ctx)
	if err != nil {
		return fmt.Errorf("load resource defs: %w", err)
	}
	reqs, err := r.store.ResourceRequirements(ctx)
	if err != nil {
		return fmt.Errorf("load resource requirements: %w", err)
	}
	loot, err := r.store.ResourceLoot(ctx)
	if err != nil {
		return fmt.Errorf("load resource loot: %w", err)
	}

	c := &resourceCatalog{
		defs: make(map[string]ResourceDef, len(defs)),
		reqs: map[string][]Requirement{},
		loot: map[string][]LootRow{},
		digest: digestOf(struct {
			Defs []ResourceDef
			Reqs []Requirement
			Loot []LootRow
		}{defs, reqs, loot}),
	}
	for _, d := range defs {
		c.defs[d.ID] = d
	}
	for _, q := range reqs {
		c.reqs[q.ResourceID] = append(c.reqs[q.ResourceID], q)
	}
	for _, l := range loot {
		c.loot[l.ResourceID] = append(c.loot[l.ResourceID], l)
	}

	r.mu.Lock()
	r.cur, r.stale, r.failed = c, false, false
	r.mu.Unlock()
	return nil
}

// ClearCache marks the cache stale; the next read reloads from the store. Until a load
// succeeds, reads keep the last good tables (or fallbacks if there never were any).
func (r *ResourceRepo) ClearCache() {
	r.mu.Lock()
	r.stale = true
	r.mu.Unlock()
}

// catalog returns the tables every read works from. A failed load is never cached, so
// the next read retries the store.
func (r *ResourceRepo) catalog() *resourceCatalog {
	r.mu.RLock()
	c, stale := r.cur, r.stale
	r.mu.RUnlock()
	if c != nil && !stale {
		return c
	}
	if err := r.Load(context.Background()); err != nil {
		r.mu.Lock()
		warn := !r.failed
		r.failed = true
		r.mu.Unlock()
		if warn {
			r.log.WithError(err).Warn("resource catalog unavailable; serving last good rows or fallbacks")
		}
		if c != nil {
			return c
		}
		return &resourceCatalog{digest: digestOf(nil)}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cur
}

func (r *ResourceRepo) Get(id string) (ResourceDef, bool) {
	d, ok := r.catalog().defs[id]
	return d, ok
}

func (r *ResourceRepo) GetOrFallback(id string) ResourceDef {
	if d, ok := r.Get(id); ok {
		return d
	}
	return FallbackResource(id)
}

func (r *ResourceRepo) All() []ResourceDef {
	c := r.catalog()
	out := make([]ResourceDef, 0, len(c.defs))
	for _, id := range sortedKeys(c.defs) {
		out = append(out, c.defs[id])
	}
	return out
}

func (r *ResourceRepo) Digest() string { return r.catalog().digest }

// Requirements returns the skill/level pairs for a resource (nil when none).
func (r *ResourceRepo) Requirements(id string) []Requirement {
	return append([]Requirement(nil), r.catalog().reqs[id]...)
}

func (r *ResourceRepo) Loot(id string) []LootRow {
	return append([]LootRow(nil), r.catalog().loot[id]...)
}

// MeetsRequirements reports whether every requirement of the resource is satisfied by
// the given xp totals.
func (r *ResourceRepo) MeetsRequirements(id string, xp skills.Set) bool {
	return MeetsRequirements(r.Requirements(id), xp)
}

func MeetsRequirements(reqs []Requirement, xp skills.Set) bool {
	for _, q := range reqs {
		if skills.LevelForXP(xp[q.Skill]) < q.Level {
			return false
		}
	}
	return true
}

// RollLoot resolves one weighted draw from the resource's loot table. It reports false
// for an empty table or a zero total weight.
func (r *ResourceRepo) RollLoot(id string, rng RNG) (Drop, bool) {
	return RollLoot(r.Loot(id), rng)
}

func RollLoot(rows []LootRow, rng RNG) (Drop, bool) {
	total := 0
	for _, l := range rows {
		if l.Weight > 0 {
			total += l.Weight
		}
	}
	if total <= 0 {
		return Drop{}, false
	}
	rem := rng.Intn(total)
	for _, l := range rows {
		if l.Weight <= 0 {
			continue
		}
		rem -= l.Weight
		if rem < 0 {
			qty := l.Min
			if l.Max > l.Min {
				qty = l.Min + rng.Intn(l.Max-l.Min+1)
			}
			return Drop{ItemID: l.ItemID, Qty: qty}, true
		}
	}
	return Drop{}, false
}

// Spawns reads the current spawn layout straight from the store (not cached).
func (r *ResourceRepo) Spawns(ctx context.Context) ([]Spawn, error) {
	sp, err := r.store.ResourceSpawns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load resource spawns: %w", err)
	}
	return sp, nil
}

func (r *ResourceRepo) Upsert(ctx context.Context, def ResourceDef, reqs []Requirement, loot []LootRow) error {
	if err := ValidateResourceDef(def, reqs, loot); err != nil {
		return err
	}
	if err := r.store.UpsertResourceDef(ctx, def, reqs, loot); err != nil {
		return fmt.Errorf("upsert resource %s: %w", def.ID, err)
	}
	r.ClearCache()
	return nil
}

func (r *ResourceRepo) UpsertSpawn(ctx context.Context, sp Spawn) error {
	if sp.ID == "" || sp.ResourceID == "" {
		return fmt.Errorf("%w: spawn needs id and resource_id", ErrInvalidDef)
	}
	return r.store.UpsertSpawn(ctx, sp)
}

func (r *ResourceRepo) DeleteSpawn(ctx context.Context, id string) error {
	return r.store.DeleteSpawn(ctx, id)
}
