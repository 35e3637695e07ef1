package protocol

// HELLO (client -> server). An empty CharacterID creates a new character.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CharacterID     string `json:"character_id,omitempty"`
	Name            string `json:"name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	PlayerID        string         `json:"player_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	WorldID        string `json:"world_id"`
	TickRateHz     int    `json:"tick_rate_hz"`
	TickDurationMs int64  `json:"tick_duration_ms"`
	ChunkSize      int    `json:"chunk_size"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	InventorySize  int    `json:"inventory_size"`
	XPPerLevel     int    `json:"xp_per_level"`
	// MapRLE is the terrain grid (1 blocked, 0 walkable) run-length encoded; resource
	// collision arrives with each snapshot.
	MapRLE string `json:"map_rle,omitempty"`
}

type CatalogDigests struct {
	Items     DigestRef `json:"items"`
	Resources DigestRef `json:"resources"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// MOVE (client -> server)
type MoveMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	To              [2]int `json:"to"`
}

// INTERACT (client -> server)
type InteractMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	At              [2]int `json:"at"`
}
