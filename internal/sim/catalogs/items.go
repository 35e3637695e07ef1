package catalogs

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"tileworld.ai/internal/logging"
)

// itemCatalog is one load of the item table. It is never mutated after Load builds it,
// so a reader holding one sees a consistent set of rows.
type itemCatalog struct {
	defs   map[string]ItemDef
	digest string
}

// ItemRepo caches item definitions from an ItemStore. Reads never fail: an unknown id
// resolves to FallbackItem.
type ItemRepo struct {
	store ItemStore
	log   logrus.FieldLogger

	mu     sync.RWMutex
	cur    *itemCatalog
	stale  bool
	failed bool
}

func NewItemRepo(store ItemStore, log logrus.FieldLogger) *ItemRepo {
	return &ItemRepo{
		store: store,
		log:   logging.OrDiscard(log).WithField("component", "item_repo"),
	}
}

// FallbackItem is what an unknown item id resolves to: fully stackable, no limit.
func FallbackItem(id string) ItemDef {
	return ItemDef{ID: id, Name: id, Stackable: true}
}

// Load fills the cache from the store, replacing whatever was cached. On error the cache
// is left as it was.
func (r *ItemRepo) Load(ctx context.Context) error {
	defs, err := r.store.ItemDefs(ctx)
	if err != nil {
		return fmt.Errorf("load item defs: %w", err)
	}
	c := &itemCatalog{defs: make(map[string]ItemDef, len(defs)), digest: digestOf(defs)}
	for _, d := range defs {
		c.defs[d.ID] = d
	}
	r.mu.Lock()
	r.cur, r.stale, r.failed = c, false, false
	r.mu.Unlock()
	return nil
}

// ClearCache marks the cached rows stale; the next read reloads from the store. Until a
// load succeeds, reads keep the last good rows (or fallbacks if there never were any).
func (r *ItemRepo) ClearCache() {
	r.mu.Lock()
	r.stale = true
	r.mu.Unlock()
}

// catalog returns the rows every read works from. A failed load is never cached.
func (r *ItemRepo) catalog() *itemCatalog {
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
			r.log.WithError(err).Warn("item catalog unavailable; serving last good rows or fallbacks")
		}
		if c != nil {
			return c
		}
		return &itemCatalog{defs: map[string]ItemDef{}, digest: digestOf([]ItemDef{})}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cur
}

func (r *ItemRepo) Get(id string) (ItemDef, bool) {
	d, ok := r.catalog().defs[id]
	return d, ok
}

func (r *ItemRepo) GetOrFallback(id string) ItemDef {
	if d, ok := r.Get(id); ok {
		return d
	}
	return FallbackItem(id)
}

// All returns every cached definition sorted by id.
func (r *ItemRepo) All() []ItemDef {
	c := r.catalog()
	out := make([]ItemDef, 0, len(c.defs))
	for _, id := range sortedKeys(c.defs) {
		out = append(out, c.defs[id])
	}
	return out
}

func (r *ItemRepo) Digest() string { return r.catalog().digest }

// Upsert writes def to the store and clears the cache.
func (r *ItemRepo) Upsert(ctx context.Context, def ItemDef) error {
	if err := ValidateItemDef(def); err != nil {
		return err
	}
	if err := r.store.UpsertItemDef(ctx, def); err != nil {
		return fmt.Errorf("upsert item %s: %w", def.ID, err)
	}
	r.ClearCache()
	return nil
}
