package world

import (
	"errors"
	"fmt"

	"tileworld.ai/internal/sim/inventory"
	"tileworld.ai/internal/sim/pathfind"
	"tileworld.ai/internal/sim/spatial"
)

var ErrBadConfig = errors.New("world: invalid config")

type Config struct {
	ID              string
	ChunkSize       int
	InventorySize   int
	PathMaxExpanded int
	TickDurationMs  int64
	Seed            int64
}

// withDefaults fills zero fields. Negative values are left for validate to reject.
func (c Config) withDefaults() Config {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = spatial.DefaultChunkSize
	}
	if c.InventorySize == 0 {
		c.InventorySize = inventory.DefaultSize
	}
	if c.PathMaxExpanded == 0 {
		c.PathMaxExpanded = pathfind.DefaultMaxExpanded
	}
	if c.TickDurationMs == 0 {
		c.TickDurationMs = 100
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.ChunkSize < 1:
		return fmt.Errorf("%w: chunk_size %d", ErrBadConfig, c.ChunkSize)
	case c.InventorySize < 1:
		return fmt.Errorf("%w: inventory_size %d", ErrBadConfig, c.InventorySize)
	case c.PathMaxExpanded < 1:
		return fmt.Errorf("%w: path_max_expanded %d", ErrBadConfig, c.PathMaxExpanded)
	case c.TickDurationMs < 1:
		return fmt.Errorf("%w: tick_duration_ms %d", ErrBadConfig, c.TickDurationMs)
	}
	return nil
}
