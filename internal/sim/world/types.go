package world

import (
	"tileworld.ai/internal/sim/catalogs"
	"tileworld.ai/internal/sim/inventory"
	"tileworld.ai/internal/sim/skills"
	"tileworld.ai/internal/sim/tile"
)

// Player is the authoritative state of one connected character.
// Action and a non-empty Path are never set at the same time.
type Player struct {
	ID   string
	Name string
	Pos  tile.Pos

	Path    []tile.Pos
	Pending *Pending
	Action  *Action

	Skills    skills.Set
	Inventory inventory.Inventory
}

func (p *Player) SpatialID() string    { return p.ID }
func (p *Player) SpatialPos() tile.Pos { return p.Pos }

// Pending is an interaction queued until the player reaches Stand.
type Pending struct {
	At    tile.Pos `json:"at"`
	Stand tile.Pos `json:"stand"`
}

// Action is a timed gather on a resource instance.
type Action struct {
	Skill      skills.Skill `json:"skill"`
	TicksLeft  int          `json:"ticks_left"`
	TicksTotal int          `json:"ticks_total"`
	Target     tile.Pos     `json:"target"`
	ResourceID string       `json:"resource_id"`
	DefID      string       `json:"def_id"`
}

// ResourceInstance is one placed resource node. At most one instance occupies a tile.
type ResourceInstance struct {
	ID          string
	DefID       string
	Type        catalogs.ResourceType
	Pos         tile.Pos
	Alive       bool
	RespawnAtMs int64
}

func (r *ResourceInstance) SpatialID() string    { return r.ID }
func (r *ResourceInstance) SpatialPos() tile.Pos { return r.Pos }

type EventKind string

const (
	EventActionStart    EventKind = "action_start"
	EventActionComplete EventKind = "action_complete"
	EventInventory      EventKind = "inv"
	EventInventoryFull  EventKind = "inv_full"
)

// Event is returned from commands and Step. Fields beyond Kind, PlayerID and Tick are
// set according to Kind.
type Event struct {
	Kind     EventKind `json:"type"`
	PlayerID string    `json:"player_id"`
	Tick     uint64    `json:"tick"`

	Skill      skills.Skill `json:"skill,omitempty"`
	XP         int          `json:"xp,omitempty"`
	Ticks      int          `json:"ticks,omitempty"`
	ResourceID string       `json:"resource_id,omitempty"`
	At         *tile.Pos    `json:"at,omitempty"`

	ItemID string `json:"item,omitempty"`
	Qty    int    `json:"qty,omitempty"`
}

// CharacterRecord is what the character store persists for a player.
type CharacterRecord struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Pos       tile.Pos            `json:"pos"`
	Skills    skills.Set          `json:"skills"`
	Inventory inventory.Inventory `json:"inventory"`
}

type Counts struct {
	Players      int `json:"players"`
	Resources    int `json:"resources"`
	Depleted     int `json:"depleted"`
	Pending      int `json:"pending"`
	Acting       int `json:"acting"`
	BlockedTiles int `json:"blocked_tiles"`
}
