package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSignalRelayPlacesPayloadByKind(t *testing.T) {
	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
	cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 2122260223 10.0.0.2 54321 typ host"}`)

	offer := NewSignalRelay(KindOffer, "s1", "Ana", sdp)
	assert.Equal(t, sdp, offer.SDP)
	assert.Nil(t, offer.Candidate)

	ice := NewSignalRelay(KindICECandidate, "s1", "", cand)
	assert.Equal(t, cand, ice.Candidate)
	assert.Nil(t, ice.SDP)

	data, err := json.Marshal(ice)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ice-candidate","from":"s1","candidate":`+string(cand)+`}`, string(data))
}

func TestSignalMessagePayload(t *testing.T) {
	var m SignalMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"answer","target":"t","sdp":{"x":1}}`), &m))
	assert.JSONEq(t, `{"x":1}`, string(m.Payload()))

	require.NoError(t, json.Unmarshal([]byte(`{"type":"ice-candidate","target":"t","candidate":"c"}`), &m))
	assert.JSONEq(t, `"c"`, string(m.Payload()))
}

func TestInboundKinds(t *testing.T) {
	kinds := InboundKinds()
	kinds[0] = "mutated"
	assert.Equal(t, KindJoinRoom, InboundKinds()[0])

	for _, k := range InboundKinds() {
		assert.Equal(t, k == KindOffer || k == KindAnswer || k == KindICECandidate, k.IsSignaling(), k)
	}
}
