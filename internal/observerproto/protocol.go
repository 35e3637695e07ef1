// Package observerproto is the wire format of the loopback spectator feed. It is
// versioned separately from the player protocol.
package observerproto

import "tileworld.ai/internal/protocol"

const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTick      = "OBS_TICK"
)

// SubscribeMsg is the first client message. Events=false drops gameplay events from
// every tick.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Events          bool   `json:"events"`
}

// BootstrapResponse is served by GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string               `json:"protocol_version"`
	Tick            uint64               `json:"tick"`
	WorldParams     protocol.WorldParams `json:"world_params"`
}

// TickMsg is sent once per tick with the whole world, not a chunk neighborhood.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Players  []protocol.PlayerObs `json:"players"`
	Depleted []string             `json:"depleted,omitempty"`
	Joins    []JoinInfo           `json:"joins,omitempty"`
	Leaves   []string             `json:"leaves,omitempty"`
	Events   []PlayerEvent        `json:"events,omitempty"`
}

type JoinInfo struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type PlayerEvent struct {
	PlayerID string `json:"player_id"`
	protocol.EventObs
}
