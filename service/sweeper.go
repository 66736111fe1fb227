package service

import (
	"context"
	"time"

	"github.com/stevehere/ethdrop-relay/core"
)

// RunSweeper runs the liveness sweep until ctx is cancelled. Each period,
// sessions that produced no inbound traffic since the previous sweep are
// evicted; the rest are flipped to inactive and pinged, arming the next
// window.
func (s *RelayService) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RelayService) sweep(ctx context.Context) {
	var stale, live []core.Session
	s.registry.ForEach(func(cs core.Session) {
		if cs.Active {
			live = append(live, cs)
		} else {
			stale = append(stale, cs)
		}
	})

	for _, cs := range stale {
		// Evict re-checks inactivity under the registry lock, so a heartbeat
		// that lands between the snapshot and here still saves the session.
		sess, ok := s.registry.Evict(cs.Identity)
		if !ok {
			continue
		}
		if sess.Conn != nil {
			_ = sess.Conn.Send(core.Reply(core.EventDisconnectNotice, "Heartbeat missing - Disconnecting."))
			_ = sess.Conn.Close(core.CloseHeartbeatMissed, "Heartbeat missing - Disconnecting.")
		}
		s.publishEviction(ctx, sess.Address, "heartbeat missing")
	}

	for _, cs := range live {
		s.registry.Update(cs.Identity, func(x *core.Session) {
			x.Active = false
		})
		if cs.Conn != nil {
			_ = cs.Conn.Send(core.HeartbeatFrame)
		}
	}
}
