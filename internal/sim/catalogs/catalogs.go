package catalogs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"tileworld.ai/internal/sim/skills"
)

type ResourceType string

const (
	ResourceTree        ResourceType = "tree"
	ResourceRock        ResourceType = "rock"
	ResourceFishingSpot ResourceType = "fishing_spot"
)

type CollisionMode string

const (
	// CollisionBlock makes the tile permanently unwalkable, alive or depleted.
	CollisionBlock CollisionMode = "block"
	CollisionNone  CollisionMode = "none"
)

// ItemDef governs how quantities of an item are laid out in inventory slots.
// A stackable item with StackLimit 0 stacks without limit.
type ItemDef struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Stackable  bool           `json:"stackable"`
	StackLimit int            `json:"stack_limit"`
	Splittable bool           `json:"splittable,omitempty"`
	Consumable bool           `json:"consumable,omitempty"`
	EquipSlot  string         `json:"equip_slot,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// PerSlotLimit is the largest quantity one slot may hold; 1 for non-stacking items.
func (d ItemDef) PerSlotLimit() int {
	if !d.Stackable || d.StackLimit == 1 {
		return 1
	}
	if d.StackLimit <= 0 {
		return math.MaxInt32
	}
	return d.StackLimit
}

func (d ItemDef) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

type ResourceDef struct {
	ID           string        `json:"id"`
	Type         ResourceType  `json:"type"`
	Skill        skills.Skill  `json:"skill"`
	XP           int           `json:"xp"`
	TicksMin     int           `json:"ticks_min"`
	TicksMax     int           `json:"ticks_max"`
	RespawnMs    int64         `json:"respawn_ms"`
	Mesh         string        `json:"mesh,omitempty"`
	DepletedMesh string        `json:"depleted_mesh,omitempty"`
	Scale        float64       `json:"scale,omitempty"`
	Collision    CollisionMode `json:"collision"`
}

func (d ResourceDef) Blocks() bool { return d.Collision == CollisionBlock }

type Requirement struct {
	ResourceID string       `json:"resource_id,omitempty"`
	Skill      skills.Skill `json:"skill"`
	Level      int          `json:"level"`
}

type LootRow struct {
	ResourceID string `json:"resource_id,omitempty"`
	ItemID     string `json:"item"`
	Min        int    `json:"min"`
	Max        int    `json:"max"`
	Weight     int    `json:"weight"`
}

// Drop is one resolved loot roll.
type Drop struct {
	ItemID string `json:"item"`
	Qty    int    `json:"qty"`
}

// Spawn places one resource instance on a tile.
type Spawn struct {
	ID         string `json:"id"`
	ResourceID string `json:"resource_id"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
}

type ItemStore interface {
	ItemDefs(ctx context.Context) ([]ItemDef, error)
	UpsertItemDef(ctx context.Context, def ItemDef) error
}

type ResourceStore interface {
	ResourceDefs(ctx context.Context) ([]ResourceDef, error)
	ResourceRequirements(ctx context.Context) ([]Requirement, error)
	ResourceLoot(ctx context.Context) ([]LootRow, error)
	ResourceSpawns(ctx context.Context) ([]Spawn, error)
	UpsertResourceDef(ctx context.Context, def ResourceDef, reqs []Requirement, loot []LootRow) error
	UpsertSpawn(ctx context.Context, sp Spawn) error
	DeleteSpawn(ctx context.Context, id string) error
}

// RNG is the subset of *math/rand.Rand the catalogs need.
type RNG interface {
	Intn(n int) int
}

var ErrInvalidDef = errors.New("invalid definition")

func ValidateItemDef(d ItemDef) error {
	if d.ID == "" {
		return fmt.Errorf("%w: item: empty id", ErrInvalidDef)
	}
	if d.StackLimit < 0 {
		return fmt.Errorf("%w: item %s: negative stack_limit", ErrInvalidDef, d.ID)
	}
	return nil
}

func ValidateResourceDef(d ResourceDef, reqs []Requirement, loot []LootRow) error {
	if d.ID == "" {
		return fmt.Errorf("%w: resource: empty id", ErrInvalidDef)
	}
	if d.TicksMin < 1 || d.TicksMax < d.TicksMin {
		return fmt.Errorf("%w: resource %s: bad tick range [%d,%d]", ErrInvalidDef, d.ID, d.TicksMin, d.TicksMax)
	}
	if d.RespawnMs < 0 || d.XP < 0 {
		return fmt.Errorf("%w: resource %s: negative respawn_ms or xp", ErrInvalidDef, d.ID)
	}
	switch d.Collision {
	case CollisionBlock, CollisionNone:
	default:
		return fmt.Errorf("%w: resource %s: unknown collision %q", ErrInvalidDef, d.ID, d.Collision)
	}
	for _, r := range reqs {
		if r.Skill == "" || r.Level < 1 {
			return fmt.Errorf("%w: resource %s: bad requirement %+v", ErrInvalidDef, d.ID, r)
		}
	}
	for _, l := range loot {
		if l.ItemID == "" || l.Min < 1 || l.Max < l.Min || l.Weight < 0 {
			return fmt.Errorf("%w: resource %s: bad loot row %+v", ErrInvalidDef, d.ID, l)
		}
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
