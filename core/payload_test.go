package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyClientPayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want PayloadKind
	}{
		{"heartbeat", `{"pulse":"HB"}`, KindHeartbeat},
		{"signed auth", `{"message":"m","signature":"s"}`, KindSignedAuth},
		{"client request", `{"event":100}`, KindClientRequest},
		{"extra field breaks the match", `{"event":100,"extra":1}`, KindNotAPayload},
		{"missing field breaks the match", `{"message":"m"}`, KindNotAPayload},
		{"null field breaks the match", `{"pulse":null}`, KindNotAPayload},
		{"null value in signed auth", `{"message":"m","signature":null}`, KindNotAPayload},
		{"empty object", `{}`, KindNotAPayload},
		{"array", `[1,2]`, KindNotAPayload},
		{"string", `"hello"`, KindNotAPayload},
		{"number", `42`, KindNotAPayload},
		{"null", `null`, KindNotAPayload},
		{"truncated json", `{"event":`, KindNotAPayload},
		{"any non-null pulse value matches", `{"pulse":1}`, KindHeartbeat},
		{"unknown event still classifies as client request", `{"event":999}`, KindClientRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyClientPayload([]byte(tt.raw)))
		})
	}
}

func TestClassifyServerPayload(t *testing.T) {
	assert.Equal(t, KindHeartbeat, ClassifyServerPayload(HeartbeatFrame))
	assert.Equal(t, KindResponse, ClassifyServerPayload([]byte(`{"event":10,"response":"abc"}`)))
	assert.Equal(t, KindNotAPayload, ClassifyServerPayload([]byte(`{"event":10}`)))
	assert.Equal(t, KindNotAPayload, ClassifyServerPayload([]byte(`{"event":10,"response":"abc","x":1}`)))
}

func TestDecodeSignedAuth(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p, err := DecodeSignedAuth([]byte(`{"message":"m","signature":"s"}`))
		require.NoError(t, err)
		assert.Equal(t, "m", p.Message)
		assert.Equal(t, "s", p.Signature)
	})

	t.Run("non-string fields rejected", func(t *testing.T) {
		_, err := DecodeSignedAuth([]byte(`{"message":1,"signature":"s"}`))
		assert.Error(t, err)
	})

	t.Run("empty strings rejected", func(t *testing.T) {
		_, err := DecodeSignedAuth([]byte(`{"message":"","signature":"s"}`))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func TestDecodeClientRequest(t *testing.T) {
	t.Run("known events accepted", func(t *testing.T) {
		for _, event := range []ClientEvent{EventRequestNonce, EventRequestBroadcast, EventOpenRecipient, EventCloseRecipient} {
			raw, err := json.Marshal(ClientRequest{Event: event})
			require.NoError(t, err)
			p, err := DecodeClientRequest(raw)
			require.NoError(t, err)
			assert.Equal(t, event, p.Event)
		}
	})

	t.Run("unknown event rejected", func(t *testing.T) {
		_, err := DecodeClientRequest([]byte(`{"event":101}`))
		assert.ErrorIs(t, err, ErrUnknownEvent)
	})

	t.Run("non-numeric event rejected", func(t *testing.T) {
		_, err := DecodeClientRequest([]byte(`{"event":"100"}`))
		assert.Error(t, err)
	})

	t.Run("fractional event rejected", func(t *testing.T) {
		_, err := DecodeClientRequest([]byte(`{"event":100.5}`))
		assert.Error(t, err)
	})
}

func TestEventEnumMembership(t *testing.T) {
	assert.True(t, ClientEvent(310).Known())
	assert.False(t, ClientEvent(311).Known())
	// Client and server enumerations are disjoint sets with overlapping
	// integer values; 100 means request-broadcast on one side and
	// broadcast-notification on the other.
	assert.True(t, ClientEvent(100).Known())
	assert.True(t, ServerEvent(100).Known())
	assert.False(t, ServerEvent(200).Known())
}

func TestReply(t *testing.T) {
	frame := Reply(EventNonceIssued, "abc123")

	var got Response
	require.NoError(t, json.Unmarshal(frame, &got))
	assert.Equal(t, EventNonceIssued, got.Event)
	assert.Equal(t, "abc123", got.Response)
	assert.Equal(t, KindResponse, ClassifyServerPayload(frame))
}
