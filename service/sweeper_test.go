package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevehere/ethdrop-relay/core"
)

func TestSweepPingsActiveAndEvictsIdle(t *testing.T) {
	v := &stubVerifier{}
	svc := newTestService(v)
	ctx := context.Background()

	liveSink := &recordSink{}
	live, _ := signIn(t, svc, v, liveSink, "0xLIVE")

	idleSink := &recordSink{}
	idle, _ := signIn(t, svc, v, idleSink, "0xIDLE")
	svc.registry.Update(idle.Identity(), func(s *core.Session) { s.Active = false })

	svc.sweep(ctx)

	// The idle session is gone: disconnect notice, close, registry purge.
	_, ok := svc.registry.Get(idle.Identity())
	assert.False(t, ok)
	_, ok = svc.registry.FindByAddress("0xIDLE")
	assert.False(t, ok)
	assert.True(t, idleSink.closed)
	assert.Equal(t, core.CloseHeartbeatMissed, idleSink.code)
	notice := idleSink.lastResponse(t)
	assert.Equal(t, core.EventDisconnectNotice, notice.Event)

	// The live session survives, flipped to inactive and pinged.
	sess, ok := svc.registry.Get(live.Identity())
	require.True(t, ok)
	assert.False(t, sess.Active, "sweep arms the next window")
	assert.False(t, liveSink.closed)
	liveSink.mu.Lock()
	lastFrame := liveSink.frames[len(liveSink.frames)-1]
	liveSink.mu.Unlock()
	assert.Equal(t, core.KindHeartbeat, core.ClassifyServerPayload(lastFrame))
}

func TestSweepEvictsAfterOneSilentPeriod(t *testing.T) {
	v := &stubVerifier{}
	svc := newTestService(v)
	ctx := context.Background()

	sink := &recordSink{}
	p, _ := signIn(t, svc, v, sink, "0xAAA")

	svc.sweep(ctx)
	_, ok := svc.registry.Get(p.Identity())
	require.True(t, ok, "first silent sweep only disarms")

	svc.sweep(ctx)
	_, ok = svc.registry.Get(p.Identity())
	assert.False(t, ok, "second silent sweep evicts")
	assert.Equal(t, core.CloseHeartbeatMissed, sink.code)
}

func TestHeartbeatBetweenSweepsKeepsSession(t *testing.T) {
	v := &stubVerifier{}
	svc := newTestService(v)
	ctx := context.Background()

	sink := &recordSink{}
	p, _ := signIn(t, svc, v, sink, "0xAAA")

	svc.sweep(ctx)
	svc.HandleFrame(ctx, p, []byte(`{"pulse":"HB"}`))
	svc.sweep(ctx)

	_, ok := svc.registry.Get(p.Identity())
	assert.True(t, ok, "a pulse between sweeps resets the window")
}

func TestAnyClientRequestCountsAsLiveness(t *testing.T) {
	v := &stubVerifier{}
	svc := newTestService(v)
	ctx := context.Background()

	sink := &recordSink{}
	p, _ := signIn(t, svc, v, sink, "0xAAA")

	svc.sweep(ctx)
	svc.HandleFrame(ctx, p, []byte(`{"event":300}`)) // recipient toggle marks active
	svc.sweep(ctx)

	_, ok := svc.registry.Get(p.Identity())
	assert.True(t, ok)
}
