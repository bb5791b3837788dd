// Package wire defines the JSON contract spoken between sync clients and the
// relay, plus the normalization adapter that folds the historical message
// shape variants into a single internal event taxonomy.
package wire

import "encoding/json"

// Message type identifiers. The canonical snake_case names are emitted for
// new messages; the camelCase aliases survive on the inbound path because
// older relay builds still produce them.
const (
	TypePlayerUpdate  = "player_update"
	TypePlayerJoin    = "player_join"
	TypePlayerLeave   = "player_leave"
	TypePlayerCount   = "playerCount"
	TypeSnapshot      = "players_snapshot"
	TypeFlagUpdate    = "flag_update"
	TypeRequestFlags  = "request_flags"
	TypePing          = "ping"
	TypePong          = "pong"
	aliasPlayerJoin   = "playerJoin"
	aliasPlayerLeave  = "playerLeave"
	aliasPlayerUpdate = "positionUpdate"
)

// Position is a geographic coordinate in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Profile carries cosmetic display data. Every field is best-effort; peers
// render placeholders for whatever is missing.
type Profile struct {
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// PlayerData is the state block attached to player_update and player_join.
type PlayerData struct {
	Position     *Position       `json:"position,omitempty"`
	MarkerConfig json.RawMessage `json:"markerConfig,omitempty"`
	Steps        int             `json:"steps,omitempty"`
	Timestamp    int64           `json:"timestamp,omitempty"`
	Profile      *Profile        `json:"profile,omitempty"`
}

// FlagData describes a placed map decoration on the wire.
type FlagData struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Size      float64 `json:"size,omitempty"`
	Rotation  float64 `json:"rotation,omitempty"`
	Symbol    string  `json:"symbol,omitempty"`
	OwnerID   string  `json:"ownerId,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// PlayerUpdate is the periodic state publication for one player.
type PlayerUpdate struct {
	Type       string     `json:"type" jsonschema:"pattern=^player_update$"`
	PlayerID   string     `json:"playerId" jsonschema:"description=Session-scoped opaque id of the sender"`
	PlayerData PlayerData `json:"playerData"`
}

// PlayerJoin announces a player to the relay. Sent at most once per process
// lifetime; reconnects must not repeat it.
type PlayerJoin struct {
	Type       string     `json:"type" jsonschema:"pattern=^player_join$"`
	PlayerID   string     `json:"playerId"`
	PlayerData PlayerData `json:"playerData"`
}

// FlagUpdate broadcasts a single owned decoration.
type FlagUpdate struct {
	Type     string   `json:"type" jsonschema:"pattern=^flag_update$"`
	PlayerID string   `json:"playerId"`
	FlagID   string   `json:"flagId" jsonschema:"description=Derived identity: ownerId plus coordinates plus creation time"`
	FlagData FlagData `json:"flagData"`
}

// RequestFlags asks every other peer to re-broadcast its owned decorations.
type RequestFlags struct {
	Type        string `json:"type" jsonschema:"pattern=^request_flags$"`
	RequesterID string `json:"requesterId"`
}

// Ping is the client-side heartbeat probe; the relay answers with pong.
type Ping struct {
	Type string `json:"type" jsonschema:"pattern=^ping$"`
}

// SnapshotEntry is one peer inside a players_snapshot message.
type SnapshotEntry struct {
	PlayerID   string     `json:"playerId"`
	PlayerData PlayerData `json:"playerData"`
}

// Catalog groups every canonical outbound shape for schema generation.
// cmd/schema reflects this type into a machine-readable protocol document.
type Catalog struct {
	PlayerUpdate PlayerUpdate `json:"player_update"`
	PlayerJoin   PlayerJoin   `json:"player_join"`
	FlagUpdate   FlagUpdate   `json:"flag_update"`
	RequestFlags RequestFlags `json:"request_flags"`
	Ping         Ping         `json:"ping"`
}
