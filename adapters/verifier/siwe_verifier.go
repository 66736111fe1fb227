package verifier

import (
	"time"

	siwe "github.com/spruceid/siwe-go"

	"github.com/stevehere/ethdrop-relay/ports"
)

// SIWEVerifier verifies EIP-4361 (Sign-In with Ethereum) messages against the
// nonce issued to the connection. Signature recovery and expiry are handled
// by the library; the relay re-checks the message fields on top of it.
type SIWEVerifier struct{}

// NewSIWEVerifier creates a new SIWE verifier
func NewSIWEVerifier() ports.Verifier {
	return &SIWEVerifier{}
}

// Verify parses the message, checks the signature, nonce, and expiry, and
// returns the typed message fields.
func (v *SIWEVerifier) Verify(message, signature, nonce string) (*ports.SIWEFields, error) {
	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return nil, &ports.VerificationError{Kind: ports.VerificationOther, Reason: err.Error()}
	}

	if _, err := msg.Verify(signature, nil, &nonce, nil); err != nil {
		return nil, mapVerifyError(err)
	}

	fields := &ports.SIWEFields{
		Version: msg.GetVersion(),
		Nonce:   msg.GetNonce(),
		ChainID: msg.GetChainID(),
		Address: msg.GetAddress().Hex(),
	}

	issuedAt, err := parseTimestamp(msg.GetIssuedAt())
	if err != nil {
		return nil, &ports.VerificationError{Kind: ports.VerificationOther, Reason: "unparseable issued-at timestamp"}
	}
	fields.IssuedAt = issuedAt

	if st := msg.GetStatement(); st != nil {
		fields.Statement = *st
	}

	if exp := msg.GetExpirationTime(); exp != nil {
		t, err := parseTimestamp(*exp)
		if err != nil {
			return nil, &ports.VerificationError{Kind: ports.VerificationOther, Reason: "unparseable expiration timestamp"}
		}
		fields.ExpirationTime = &t
	}

	return fields, nil
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Parse(time.RFC3339Nano, value)
	}
	return t, nil
}

func mapVerifyError(err error) error {
	kind := ports.VerificationOther
	switch err.(type) {
	case *siwe.ExpiredMessage:
		kind = ports.VerificationExpired
	case *siwe.InvalidSignature:
		kind = ports.VerificationInvalidSignature
	}
	return &ports.VerificationError{Kind: kind, Reason: err.Error()}
}
