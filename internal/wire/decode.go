package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventKind is the internal taxonomy every inbound shape normalizes to.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventPeerUpdate
	EventPeerJoin
	EventPeerLeave
	EventPeerCount
	EventSnapshot
	EventFlagUpdate
	EventFlagsRequest
	EventPong
)

// String returns a short name for logging.
func (k EventKind) String() string {
	switch k {
	case EventPeerUpdate:
		return "peer_update"
	case EventPeerJoin:
		return "peer_join"
	case EventPeerLeave:
		return "peer_leave"
	case EventPeerCount:
		return "peer_count"
	case EventSnapshot:
		return "snapshot"
	case EventFlagUpdate:
		return "flag_update"
	case EventFlagsRequest:
		return "flags_request"
	case EventPong:
		return "pong"
	default:
		return "unknown"
	}
}

// Event is the normalized form of one inbound message. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind      EventKind
	RawType   string
	PeerID    string
	Player    PlayerData
	Count     int
	Peers     []SnapshotEntry
	FlagID    string
	Flag      FlagData
	Requester string
}

var (
	// ErrMissingType marks a message without a usable type discriminator.
	ErrMissingType = errors.New("wire: message has no type field")
	// ErrMissingPeerID marks a known message type missing its player id.
	ErrMissingPeerID = errors.New("wire: message has no player id")
	// ErrMissingFlagData marks a flag message without a usable flag payload.
	// A flag always carries its creation timestamp; a zero one means the
	// data block was absent or truncated.
	ErrMissingFlagData = errors.New("wire: flag message has no flag data")
)

// kindOf maps every known historical type string onto the internal taxonomy.
// New relay variants are a one-line addition here.
func kindOf(t string) EventKind {
	switch t {
	case TypePlayerUpdate, aliasPlayerUpdate:
		return EventPeerUpdate
	case TypePlayerJoin, aliasPlayerJoin:
		return EventPeerJoin
	case TypePlayerLeave, aliasPlayerLeave:
		return EventPeerLeave
	case TypePlayerCount:
		return EventPeerCount
	case TypeSnapshot:
		return EventSnapshot
	case TypeFlagUpdate:
		return EventFlagUpdate
	case TypeRequestFlags:
		return EventFlagsRequest
	case TypePong:
		return EventPong
	default:
		return EventUnknown
	}
}

// Decode normalizes one raw inbound message. It tolerates both the flat form
// ({type, ...siblings}) and the enveloped form ({type, payload: {...}});
// either way the same Event comes out. Unknown types decode successfully
// with Kind EventUnknown so the caller can log and drop them.
func Decode(raw []byte) (Event, error) {
	var envelope struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Event{}, fmt.Errorf("wire: parse message: %w", err)
	}
	if envelope.Type == "" {
		return Event{}, ErrMissingType
	}

	body := raw
	if len(envelope.Payload) > 0 && string(envelope.Payload) != "null" {
		body = envelope.Payload
	}

	ev := Event{Kind: kindOf(envelope.Type), RawType: envelope.Type}
	switch ev.Kind {
	case EventPeerUpdate, EventPeerJoin:
		var msg struct {
			PlayerID   string     `json:"playerId"`
			PlayerData PlayerData `json:"playerData"`
		}
		if err := json.Unmarshal(body, &msg); err != nil {
			return Event{}, fmt.Errorf("wire: parse %s: %w", envelope.Type, err)
		}
		if msg.PlayerID == "" {
			return Event{}, fmt.Errorf("%w: %s", ErrMissingPeerID, envelope.Type)
		}
		ev.PeerID = msg.PlayerID
		ev.Player = msg.PlayerData

	case EventPeerLeave:
		var msg struct {
			PlayerID string `json:"playerId"`
		}
		if err := json.Unmarshal(body, &msg); err != nil {
			return Event{}, fmt.Errorf("wire: parse %s: %w", envelope.Type, err)
		}
		if msg.PlayerID == "" {
			return Event{}, fmt.Errorf("%w: %s", ErrMissingPeerID, envelope.Type)
		}
		ev.PeerID = msg.PlayerID

	case EventPeerCount:
		var msg struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(body, &msg); err != nil {
			return Event{}, fmt.Errorf("wire: parse %s: %w", envelope.Type, err)
		}
		ev.Count = msg.Count

	case EventSnapshot:
		var msg struct {
			Players []SnapshotEntry `json:"players"`
		}
		if err := json.Unmarshal(body, &msg); err != nil {
			return Event{}, fmt.Errorf("wire: parse %s: %w", envelope.Type, err)
		}
		ev.Peers = msg.Players

	case EventFlagUpdate:
		var msg struct {
			PlayerID string   `json:"playerId"`
			FlagID   string   `json:"flagId"`
			FlagData FlagData `json:"flagData"`
		}
		if err := json.Unmarshal(body, &msg); err != nil {
			return Event{}, fmt.Errorf("wire: parse %s: %w", envelope.Type, err)
		}
		if msg.FlagData.Timestamp == 0 {
			return Event{}, fmt.Errorf("%w: %s", ErrMissingFlagData, envelope.Type)
		}
		ev.PeerID = msg.PlayerID
		ev.FlagID = msg.FlagID
		ev.Flag = msg.FlagData
		if ev.Flag.OwnerID == "" {
			ev.Flag.OwnerID = msg.PlayerID
		}

	case EventFlagsRequest:
		var msg struct {
			RequesterID string `json:"requesterId"`
		}
		if err := json.Unmarshal(body, &msg); err != nil {
			return Event{}, fmt.Errorf("wire: parse %s: %w", envelope.Type, err)
		}
		ev.Requester = msg.RequesterID

	case EventPong, EventUnknown:
		// Nothing further to extract.
	}

	return ev, nil
}

// PeerIDOf extracts the sender id from a raw message without fully decoding
// it. The relay uses this for subscriber registration; any of the historical
// id fields counts.
func PeerIDOf(raw []byte) string {
	var probe struct {
		PlayerID    string `json:"playerId"`
		RequesterID string `json:"requesterId"`
		Payload     *struct {
			PlayerID string `json:"playerId"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	if probe.PlayerID != "" {
		return probe.PlayerID
	}
	if probe.Payload != nil && probe.Payload.PlayerID != "" {
		return probe.Payload.PlayerID
	}
	return probe.RequesterID
}
