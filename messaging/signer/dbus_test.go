package signer

import (
	"encoding/json"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dbusReply(t *testing.T, success bool, inner any, errMsg string) string {
	innerJSON, err := json.Marshal(inner)
	require.NoError(t, err)
	resp := map[string]any{"success": success, "id": "1", "result": string(innerJSON)}
	if errMsg != "" {
		resp["error"] = errMsg
	}
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(b)
}

func TestParsePublicKeyResponse(t *testing.T) {
	pk, err := parsePublicKeyResponse(dbusReply(t, true, map[string]string{"type": "public_key", "hex": target, "npub": "npub1x"}, ""))
	require.NoError(t, err)
	assert.Equal(t, target, pk)

	pk, err = parsePublicKeyResponse(dbusReply(t, true, map[string]string{"npub": "npub1x"}, ""))
	require.NoError(t, err)
	assert.Equal(t, "npub1x", pk)

	_, err = parsePublicKeyResponse(dbusReply(t, false, nil, "locked"))
	assert.ErrorContains(t, err, "locked")

	_, err = parsePublicKeyResponse("{")
	assert.Error(t, err)
}

func TestParseSignResponse(t *testing.T) {
	evt := followEvent()
	require.NoError(t, evt.Sign(nostr.GeneratePrivateKey()))
	eventJSON, err := json.Marshal(evt)
	require.NoError(t, err)

	signed, err := parseSignResponse(dbusReply(t, true, map[string]string{"type": "signed_event", "event_json": string(eventJSON)}, ""))
	require.NoError(t, err)
	assert.Equal(t, evt.ID, signed.ID)
	assert.Equal(t, evt.Sig, signed.Sig)

	_, err = parseSignResponse(dbusReply(t, false, nil, ""))
	assert.ErrorContains(t, err, "unknown error")

	_, err = parseSignResponse(dbusReply(t, true, map[string]string{"event_json": "nope"}, ""))
	assert.Error(t, err)
}
