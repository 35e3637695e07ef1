package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tileworld.ai/internal/sim/tile"
)

var ErrBadTuning = errors.New("invalid tuning")

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz     int   `yaml:"tick_rate_hz"`
	TickDurationMs int64 `yaml:"tick_duration_ms"`
	Seed           int64 `yaml:"seed"`

	World WorldTuning `yaml:"world"`

	ChunkSize       int `yaml:"chunk_size"`
	InventorySize   int `yaml:"inventory_size"`
	PathMaxExpanded int `yaml:"path_max_expanded"`

	SaveEveryTicks     int `yaml:"save_every_ticks"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	MaxPlayers    int `yaml:"max_players"`
	InboxCapacity int `yaml:"inbox_capacity"`
}

type WorldTuning struct {
	// MapPath is an ASCII map ('#' blocked); relative paths resolve against the tuning
	// file's directory. Empty means an open Width×Height map.
	MapPath string `yaml:"map_path"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	SpawnX  int    `yaml:"spawn_x"`
	SpawnY  int    `yaml:"spawn_y"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      10,
		TickDurationMs:  100,
		Seed:            1337,
		World: WorldTuning{
			Width:  64,
			Height: 64,
			SpawnX: 5,
			SpawnY: 5,
		},
		ChunkSize:          16,
		InventorySize:      28,
		PathMaxExpanded:    4096,
		SaveEveryTicks:     300,
		SnapshotEveryTicks: 3000,
		MaxPlayers:         256,
		InboxCapacity:      4096,
	}
}

// Load overlays the YAML file on Defaults, so a file only needs the keys it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz < 1 || t.TickRateHz > 1000:
		return fmt.Errorf("%w: tick_rate_hz %d", ErrBadTuning, t.TickRateHz)
	case t.TickDurationMs < 1:
		return fmt.Errorf("%w: tick_duration_ms %d", ErrBadTuning, t.TickDurationMs)
	case t.ChunkSize < 1:
		return fmt.Errorf("%w: chunk_size %d", ErrBadTuning, t.ChunkSize)
	case t.InventorySize < 1:
		return fmt.Errorf("%w: inventory_size %d", ErrBadTuning, t.InventorySize)
	case t.PathMaxExpanded < 1:
		return fmt.Errorf("%w: path_max_expanded %d", ErrBadTuning, t.PathMaxExpanded)
	case t.SaveEveryTicks < 0 || t.SnapshotEveryTicks < 0:
		return fmt.Errorf("%w: negative save/snapshot interval", ErrBadTuning)
	case t.World.MapPath == "" && (t.World.Width < 1 || t.World.Height < 1):
		return fmt.Errorf("%w: world %dx%d", ErrBadTuning, t.World.Width, t.World.Height)
	}
	return nil
}

func (t Tuning) Spawn() tile.Pos { return tile.Pos{X: t.World.SpawnX, Y: t.World.SpawnY} }
