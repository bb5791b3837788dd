package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFlatAndEnvelopedShapesMatch(t *testing.T) {
	flat := []byte(`{"type":"player_join","playerId":"peer-42","playerData":{"position":{"lat":60.0,"lng":24.0},"steps":12}}`)
	enveloped := []byte(`{"type":"playerJoin","payload":{"playerId":"peer-42","playerData":{"position":{"lat":60.0,"lng":24.0},"steps":12}}}`)

	evFlat, err := Decode(flat)
	require.NoError(t, err)
	evEnv, err := Decode(enveloped)
	require.NoError(t, err)

	assert.Equal(t, EventPeerJoin, evFlat.Kind)
	assert.Equal(t, EventPeerJoin, evEnv.Kind)
	assert.Equal(t, evFlat.PeerID, evEnv.PeerID)
	assert.Equal(t, evFlat.Player, evEnv.Player)
	require.NotNil(t, evFlat.Player.Position)
	assert.Equal(t, 60.0, evFlat.Player.Position.Lat)
	assert.Equal(t, 12, evFlat.Player.Steps)
}

func TestDecodeLegacyTypeAliases(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind EventKind
	}{
		{"positionUpdate", `{"type":"positionUpdate","playerId":"p1","playerData":{}}`, EventPeerUpdate},
		{"player_update", `{"type":"player_update","playerId":"p1","playerData":{}}`, EventPeerUpdate},
		{"playerLeave", `{"type":"playerLeave","playerId":"p1"}`, EventPeerLeave},
		{"player_leave", `{"type":"player_leave","playerId":"p1"}`, EventPeerLeave},
		{"playerJoin", `{"type":"playerJoin","playerId":"p1"}`, EventPeerJoin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Decode([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.kind, ev.Kind)
			assert.Equal(t, "p1", ev.PeerID)
		})
	}
}

func TestDecodePlayerCount(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"playerCount","count":7}`))
	require.NoError(t, err)
	assert.Equal(t, EventPeerCount, ev.Kind)
	assert.Equal(t, 7, ev.Count)
}

func TestDecodeSnapshot(t *testing.T) {
	raw := `{"type":"players_snapshot","players":[
		{"playerId":"a","playerData":{"position":{"lat":1,"lng":2}}},
		{"playerId":"b","playerData":{"steps":3}}
	]}`
	ev, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, EventSnapshot, ev.Kind)
	require.Len(t, ev.Peers, 2)
	assert.Equal(t, "a", ev.Peers[0].PlayerID)
	assert.Equal(t, 3, ev.Peers[1].PlayerData.Steps)
}

func TestDecodeFlagUpdateDefaultsOwner(t *testing.T) {
	raw := `{"type":"flag_update","playerId":"p9","flagId":"x","flagData":{"lat":60.1,"lng":24.1,"timestamp":1000}}`
	ev, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, EventFlagUpdate, ev.Kind)
	assert.Equal(t, "p9", ev.Flag.OwnerID)
	assert.Equal(t, int64(1000), ev.Flag.Timestamp)

	withOwner := `{"type":"flag_update","playerId":"relayed","flagId":"x","flagData":{"lat":1,"lng":2,"ownerId":"orig","timestamp":5}}`
	ev, err = Decode([]byte(withOwner))
	require.NoError(t, err)
	assert.Equal(t, "orig", ev.Flag.OwnerID)
}

func TestDecodeRequestFlags(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"request_flags","requesterId":"p2"}`))
	require.NoError(t, err)
	assert.Equal(t, EventFlagsRequest, ev.Kind)
	assert.Equal(t, "p2", ev.Requester)
}

func TestDecodeUnknownTypeIsNotAnError(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"chat_message","text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, EventUnknown, ev.Kind)
	assert.Equal(t, "chat_message", ev.RawType)
}

func TestDecodeAnomalies(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"count":3}`))
	assert.ErrorIs(t, err, ErrMissingType)

	_, err = Decode([]byte(`{"type":"player_update","playerData":{}}`))
	assert.ErrorIs(t, err, ErrMissingPeerID)
}

func TestDecodeFlagUpdateRequiresFlagData(t *testing.T) {
	// No flagData block at all.
	_, err := Decode([]byte(`{"type":"flag_update","playerId":"p9","flagId":"x"}`))
	assert.ErrorIs(t, err, ErrMissingFlagData)

	// Truncated flagData without the creation timestamp would otherwise
	// yield a phantom flag at (0,0).
	_, err = Decode([]byte(`{"type":"flag_update","playerId":"p9","flagData":{"lat":60.1,"lng":24.1}}`))
	assert.ErrorIs(t, err, ErrMissingFlagData)
}

func TestPeerIDOf(t *testing.T) {
	assert.Equal(t, "p1", PeerIDOf([]byte(`{"type":"player_update","playerId":"p1"}`)))
	assert.Equal(t, "p2", PeerIDOf([]byte(`{"type":"playerJoin","payload":{"playerId":"p2"}}`)))
	assert.Equal(t, "p3", PeerIDOf([]byte(`{"type":"request_flags","requesterId":"p3"}`)))
	assert.Equal(t, "", PeerIDOf([]byte(`{"type":"pong"}`)))
	assert.Equal(t, "", PeerIDOf([]byte(`garbage`)))
}
