package core

import (
	"encoding/json"
	"fmt"
)

// ClientEvent is a request code sent by clients.
type ClientEvent int

const (
	EventRequestNonce     ClientEvent = 100
	EventRequestBroadcast ClientEvent = 200
	EventOpenRecipient    ClientEvent = 300
	EventCloseRecipient   ClientEvent = 310
)

// Known reports whether e is a member of the client event enumeration.
func (e ClientEvent) Known() bool {
	switch e {
	case EventRequestNonce, EventRequestBroadcast, EventOpenRecipient, EventCloseRecipient:
		return true
	}
	return false
}

// ServerEvent is a response code sent by the server.
type ServerEvent int

const (
	EventNonceIssued           ServerEvent = 10
	EventSessionEstablished    ServerEvent = 20
	EventAddressChanged        ServerEvent = 30
	EventBroadcastNotification ServerEvent = 100
	EventBroadcastAck          ServerEvent = 110
	EventError                 ServerEvent = 500
	EventDisconnectNotice      ServerEvent = 510
)

// Known reports whether e is a member of the server event enumeration.
func (e ServerEvent) Known() bool {
	switch e {
	case EventNonceIssued, EventSessionEstablished, EventAddressChanged,
		EventBroadcastNotification, EventBroadcastAck, EventError, EventDisconnectNotice:
		return true
	}
	return false
}

// PayloadKind is the result of structurally classifying an inbound frame.
type PayloadKind int

const (
	KindNotAPayload PayloadKind = iota
	KindHeartbeat
	KindSignedAuth
	KindClientRequest
	KindResponse
)

// SignedAuth carries a wallet-signed message for verification.
type SignedAuth struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// ClientRequest asks the server to perform one of the known client events.
type ClientRequest struct {
	Event ClientEvent `json:"event"`
}

// Response is a server frame carrying an event code and a response string.
type Response struct {
	Event    ServerEvent `json:"event"`
	Response string      `json:"response"`
}

// HeartbeatFrame is the liveness probe frame, sent in both directions.
var HeartbeatFrame = []byte(`{"pulse":"HB"}`)

var (
	heartbeatFields  = []string{"pulse"}
	signedAuthFields = []string{"message", "signature"}
	clientReqFields  = []string{"event"}
	responseFields   = []string{"event", "response"}
)

// ClassifyClientPayload classifies an inbound frame by matching its field set
// exactly against the known payload shapes, in priority order. A value matches
// a shape only when its field names are exactly the shape's fields and none of
// them is null. Callers must keep the shapes' field sets disjoint.
func ClassifyClientPayload(raw []byte) PayloadKind {
	obj, ok := decodeObject(raw)
	if !ok {
		return KindNotAPayload
	}
	switch {
	case hasExactFields(obj, heartbeatFields):
		return KindHeartbeat
	case hasExactFields(obj, signedAuthFields):
		return KindSignedAuth
	case hasExactFields(obj, clientReqFields):
		return KindClientRequest
	}
	return KindNotAPayload
}

// ClassifyServerPayload is the server-to-client counterpart, used by clients
// and tests to tell heartbeats from responses.
func ClassifyServerPayload(raw []byte) PayloadKind {
	obj, ok := decodeObject(raw)
	if !ok {
		return KindNotAPayload
	}
	switch {
	case hasExactFields(obj, heartbeatFields):
		return KindHeartbeat
	case hasExactFields(obj, responseFields):
		return KindResponse
	}
	return KindNotAPayload
}

func decodeObject(raw []byte) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func hasExactFields(obj map[string]json.RawMessage, fields []string) bool {
	if len(obj) != len(fields) {
		return false
	}
	for _, f := range fields {
		v, ok := obj[f]
		if !ok || string(v) == "null" {
			return false
		}
	}
	return true
}

// DecodeSignedAuth parses and validates a frame already classified as
// signed-auth. Both fields must be non-empty strings.
func DecodeSignedAuth(raw []byte) (SignedAuth, error) {
	var p SignedAuth
	if err := json.Unmarshal(raw, &p); err != nil {
		return SignedAuth{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Message == "" || p.Signature == "" {
		return SignedAuth{}, ErrInvalidPayload
	}
	return p, nil
}

// DecodeClientRequest parses and validates a frame already classified as a
// client request. The event must be numeric and a known client event.
func DecodeClientRequest(raw []byte) (ClientRequest, error) {
	var p ClientRequest
	if err := json.Unmarshal(raw, &p); err != nil {
		return ClientRequest{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !p.Event.Known() {
		return ClientRequest{}, ErrUnknownEvent
	}
	return p, nil
}

// Reply encodes a server response frame.
func Reply(event ServerEvent, response string) []byte {
	b, err := json.Marshal(Response{Event: event, Response: response})
	if err != nil {
		// Response has no unmarshalable fields; this cannot happen.
		panic(err)
	}
	return b
}
