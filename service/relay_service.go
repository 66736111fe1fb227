package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stevehere/ethdrop-relay/core"
	"github.com/stevehere/ethdrop-relay/ports"
)

// Config holds the relay's protocol parameters. Zero values fall back to the
// defaults the service was deployed with originally.
type Config struct {
	ChainID     int           // Expected SIWE chain id
	Statement   string        // Phrase the signed statement must contain
	Freshness   time.Duration // Max age of the message's issued-at
	LoginGrace  time.Duration // Window to complete the first sign-in
	Cooldown    time.Duration // Min interval between broadcasts per session
	SweepPeriod time.Duration // Liveness sweep interval
}

func (c Config) withDefaults() Config {
	if c.ChainID == 0 {
		c.ChainID = 280 // ZKSync 2.0 L2 Goerli Testnet
	}
	if c.Statement == "" {
		c.Statement = "ETH Airdrop App for ZkSync 2.0 Testnet"
	}
	if c.Freshness == 0 {
		c.Freshness = 5 * time.Minute
	}
	if c.LoginGrace == 0 {
		c.LoginGrace = 7 * time.Minute
	}
	if c.Cooldown == 0 {
		c.Cooldown = 5 * time.Minute
	}
	if c.SweepPeriod == 0 {
		c.SweepPeriod = 30 * time.Second
	}
	return c
}

// RelayService handles the per-connection protocol: challenge issuance,
// sign-in verification, session registry mutations, and broadcast fan-out.
type RelayService struct {
	registry ports.Registry
	verifier ports.Verifier
	events   ports.EventPublisher
	cfg      Config

	now func() time.Time
}

// NewRelayService creates a new relay service
func NewRelayService(registry ports.Registry, verifier ports.Verifier, events ports.EventPublisher, cfg Config) *RelayService {
	return &RelayService{
		registry: registry,
		verifier: verifier,
		events:   events,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// LoginGrace is the window a fresh connection has to complete its first
// sign-in before the transport force-closes it.
func (s *RelayService) LoginGrace() time.Duration {
	return s.cfg.LoginGrace
}

// Peer is the connection-local protocol state: everything that exists before,
// or outside of, a registry session. The pending nonce is only touched by the
// connection's handler goroutine; the signed-in flag is also read by the
// first-login timer.
type Peer struct {
	identity string
	sink     core.Sink
	nonce    string
	signedIn atomic.Bool
}

// NewPeer allocates protocol state for a fresh connection.
func (s *RelayService) NewPeer(sink core.Sink) *Peer {
	return &Peer{
		identity: uuid.New().String(),
		sink:     sink,
	}
}

// Identity returns the peer's per-connection token.
func (p *Peer) Identity() string { return p.identity }

// SignedIn reports whether the peer ever established a session.
func (p *Peer) SignedIn() bool { return p.signedIn.Load() }

// HandleFrame processes one inbound frame. It is called serially per
// connection by the transport's read loop.
func (s *RelayService) HandleFrame(ctx context.Context, p *Peer, raw []byte) {
	switch core.ClassifyClientPayload(raw) {
	case core.KindHeartbeat:
		s.registry.Update(p.identity, func(sess *core.Session) {
			sess.Active = true
		})
	case core.KindSignedAuth:
		s.handleSignedAuth(ctx, p, raw)
	case core.KindClientRequest:
		s.handleClientRequest(ctx, p, raw)
	default:
		p.send(core.Reply(core.EventError, "Undetectable payload format"))
	}
}

// Disconnect purges the peer's session after its socket is gone.
func (s *RelayService) Disconnect(ctx context.Context, p *Peer) {
	if sess, ok := s.registry.Remove(p.identity); ok {
		s.publishEviction(ctx, sess.Address, "connection closed")
	}
}

func (s *RelayService) handleSignedAuth(ctx context.Context, p *Peer, raw []byte) {
	if p.nonce == "" {
		p.send(core.Reply(core.EventError, "No nonce initialized"))
		return
	}

	payload, err := core.DecodeSignedAuth(raw)
	if err != nil {
		s.abort(ctx, p, core.CloseAuthFailure, "Wrong sign-in payload format")
		return
	}

	// The challenge is single-use: consumed by this attempt whatever the
	// outcome. Re-authentication needs a fresh one.
	nonce := p.nonce
	p.nonce = ""

	// Verification runs outside any registry hold; the local nonce is all
	// that authorizes this step.
	fields, err := s.verifier.Verify(payload.Message, payload.Signature, nonce)
	if err != nil {
		s.abort(ctx, p, closeCodeFor(err), "SIWE Error - "+err.Error())
		return
	}
	if err := s.checkFields(fields, nonce); err != nil {
		s.abort(ctx, p, core.CloseAuthFailure, "SIWE Error - "+err.Error())
		return
	}

	if sess, ok := s.registry.Get(p.identity); ok {
		if sess.LastNonce == nonce {
			s.abort(ctx, p, core.CloseAuthFailure, "SIWE Error - Nonce has been reused")
			return
		}
		_, evicted := s.registry.Upsert(p.identity, func(cs *core.Session) {
			cs.Address = fields.Address
			cs.LastNonce = nonce
			cs.Active = true
		})
		s.dropEvicted(ctx, evicted)
		p.send(core.Reply(core.EventAddressChanged, fields.Address))
		return
	}

	_, evicted := s.registry.Upsert(p.identity, func(cs *core.Session) {
		cs.Address = fields.Address
		cs.LastNonce = nonce
		cs.Active = true
		cs.Recipient = false
		cs.Conn = p.sink
	})
	s.dropEvicted(ctx, evicted)
	p.signedIn.Store(true)
	p.send(core.Reply(core.EventSessionEstablished, fields.Address))
}

func (s *RelayService) handleClientRequest(ctx context.Context, p *Peer, raw []byte) {
	req, err := core.DecodeClientRequest(raw)
	if err != nil {
		p.send(core.Reply(core.EventError, "Wrong client payload format"))
		return
	}

	if req.Event == core.EventRequestNonce {
		nonce, err := newNonce()
		if err != nil {
			p.send(core.Reply(core.EventError, "Failed to generate nonce"))
			return
		}
		p.nonce = nonce // overwrites any prior unconsumed challenge
		p.send(core.Reply(core.EventNonceIssued, nonce))
		return
	}

	sess, ok := s.registry.Get(p.identity)
	if !ok {
		p.send(core.Reply(core.EventError, "Not Signed in"))
		return
	}

	switch req.Event {
	case core.EventRequestBroadcast:
		s.requestBroadcast(ctx, p, sess)
	case core.EventOpenRecipient, core.EventCloseRecipient:
		open := req.Event == core.EventOpenRecipient
		s.registry.Update(p.identity, func(cs *core.Session) {
			cs.Recipient = open
			cs.Active = true
		})
		if open {
			p.send(core.Reply(core.EventBroadcastAck, "Open"))
		} else {
			p.send(core.Reply(core.EventBroadcastAck, "Closed"))
		}
	}
}

// requestBroadcast enforces the cooldown, fans the notification out to every
// active recipient except the requester's address, and acks with the count.
func (s *RelayService) requestBroadcast(ctx context.Context, p *Peer, sess core.Session) {
	now := s.now()
	if !sess.LastBroadcast.IsZero() && now.Sub(sess.LastBroadcast) < s.cfg.Cooldown {
		p.send(core.Reply(core.EventError, fmt.Sprintf("Broadcasts are rate-limited to 1 per %s", s.cfg.Cooldown)))
		return
	}

	count := s.fanOut(sess.Address)
	p.send(core.Reply(core.EventBroadcastAck, strconv.Itoa(count)))

	s.registry.Update(p.identity, func(cs *core.Session) {
		cs.LastBroadcast = now
		cs.Active = true
	})

	if err := s.events.PublishBroadcast(ctx, sess.Address, count); err != nil {
		log.Printf("relay: failed to publish broadcast event: %v", err)
	}
}

// fanOut sends the notification to every eligible recipient, best-effort.
// The eligible set is a consistent registry snapshot; sends happen outside
// the registry lock and individual failures are swallowed.
func (s *RelayService) fanOut(source string) int {
	frame := core.Reply(core.EventBroadcastNotification, source)

	var sinks []core.Sink
	s.registry.ForEach(func(cs core.Session) {
		if cs.Recipient && cs.Active && cs.Address != source {
			sinks = append(sinks, cs.Conn)
		}
	})
	for _, sink := range sinks {
		_ = sink.Send(frame)
	}
	return len(sinks)
}

// checkFields applies the relay's rules to a verified message, in order,
// failing closed on the first violation. The returned messages go to the
// client verbatim.
func (s *RelayService) checkFields(fields *ports.SIWEFields, nonce string) error {
	if fields == nil {
		return errors.New("Invalid signature")
	}
	if fields.Version != "1" {
		return errors.New("Wrong SIWE version")
	}
	if fields.Nonce != nonce {
		return errors.New("Wrong nonce")
	}
	if fields.ChainID != s.cfg.ChainID {
		return errors.New("Wrong network")
	}
	now := s.now()
	if fields.IssuedAt.Before(now.Add(-s.cfg.Freshness)) {
		return fmt.Errorf("Message was signed late: Must be signed within %s", s.cfg.Freshness)
	}
	if fields.ExpirationTime == nil {
		return errors.New("Expiration time field not found")
	}
	if fields.ExpirationTime.Before(now) {
		return errors.New("Signature Expired")
	}
	if !strings.Contains(fields.Statement, s.cfg.Statement) {
		return errors.New("Wrong statement")
	}
	return nil
}

// abort is the hard-abort path: purge any session for this identity, then
// close the connection. The client does not get to retry on this socket.
func (s *RelayService) abort(ctx context.Context, p *Peer, code int, reason string) {
	if sess, ok := s.registry.Remove(p.identity); ok {
		s.publishEviction(ctx, sess.Address, reason)
	}
	_ = p.sink.Close(code, reason+". Disconnecting.")
}

// dropEvicted closes the connection of a session that lost its address to a
// newer sign-in.
func (s *RelayService) dropEvicted(ctx context.Context, evicted *core.Session) {
	if evicted == nil {
		return
	}
	if evicted.Conn != nil {
		_ = evicted.Conn.Send(core.Reply(core.EventDisconnectNotice, "Address signed in elsewhere - Disconnecting."))
		_ = evicted.Conn.Close(core.CloseAddressTaken, "address taken over")
	}
	s.publishEviction(ctx, evicted.Address, "address taken over")
}

func (s *RelayService) publishEviction(ctx context.Context, address, reason string) {
	if err := s.events.PublishEviction(ctx, address, reason); err != nil {
		log.Printf("relay: failed to publish eviction event: %v", err)
	}
}

func (p *Peer) send(frame []byte) {
	_ = p.sink.Send(frame)
}

func closeCodeFor(err error) int {
	var verr *ports.VerificationError
	if errors.As(err, &verr) {
		switch verr.Kind {
		case ports.VerificationExpired:
			return core.CloseExpiredMessage
		case ports.VerificationInvalidSignature:
			return core.CloseInvalidSignature
		}
	}
	return core.CloseAuthFailure
}

func newNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
