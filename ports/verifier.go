package ports

import "time"

// VerificationKind classifies why a signed message was rejected. Reconnecting
// clients are told the class through the connection close code.
type VerificationKind int

const (
	VerificationOther VerificationKind = iota
	VerificationExpired
	VerificationInvalidSignature
)

// VerificationError is a typed verification failure.
type VerificationError struct {
	Kind   VerificationKind
	Reason string
}

func (e *VerificationError) Error() string { return e.Reason }

// SIWEFields are the typed fields of a successfully verified sign-in message.
type SIWEFields struct {
	Version        string
	Nonce          string
	ChainID        int
	IssuedAt       time.Time
	ExpirationTime *time.Time
	Statement      string
	Address        string // EIP-55 checksummed
}

// Verifier checks a wallet-signed message against the challenge issued to the
// connection. Implementations do the cryptographic work; the relay enforces
// its own field rules on the returned fields.
type Verifier interface {
	Verify(message, signature, nonce string) (*SIWEFields, error)
}
