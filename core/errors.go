package core

import "errors"

var (
	ErrNoChallenge    = errors.New("no challenge outstanding")
	ErrNotSignedIn    = errors.New("not signed in")
	ErrRateLimited    = errors.New("broadcast rate limit hit")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrUnknownEvent   = errors.New("unknown event code")
)

// Close codes sent on connection teardown. RFC 6455 reserves 4000-4999 for
// private use; the class distinction (expired vs invalid signature vs other)
// matters to reconnecting clients.
const (
	CloseAddressTaken     = 4000
	CloseLoginTimeout     = 4408
	CloseInvalidSignature = 4422
	CloseExpiredMessage   = 4440
	CloseAuthFailure      = 4500
	CloseHeartbeatMissed  = 4510
)
