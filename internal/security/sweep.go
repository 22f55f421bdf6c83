package security

import (
	"context"
	"time"
)

// Run executes the periodic cleanup sweep until ctx is cancelled. It runs on
// its own goroutine and never blocks request handling.
func (v *Validator) Run(ctx context.Context) {
	interval := v.cfg.CleanupInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.Sweep(ctx)
		}
	}
}

// Sweep removes expired sessions, prunes the event log and expires stale
// suspicious-IP flags. When any registry exceeds its configured threshold an
// emergency pass additionally evicts sessions idle beyond the shorter
// inactivity bound.
func (v *Validator) Sweep(ctx context.Context) {
	now := time.Now()

	sessions, err := v.store.All(ctx)
	if err != nil {
		v.log.Error().Err(err).Msg("cleanup sweep failed to list sessions")
		return
	}

	expired := 0
	for _, sess := range sessions {
		if sess.Expired(now) {
			if err := v.store.Delete(ctx, sess.SessionID); err == nil {
				expired++
			}
		}
	}

	v.events.Prune(now)
	v.suspects.Prune(now)

	evicted := 0
	if v.underPressure(ctx) {
		idleCutoff := now.Add(-v.cfg.IdleEviction)
		for _, sess := range sessions {
			if sess.LastActivity.Before(idleCutoff) && !sess.Expired(now) {
				if err := v.store.Delete(ctx, sess.SessionID); err == nil {
					evicted++
				}
			}
		}
	}

	if expired > 0 || evicted > 0 {
		v.log.Info().
			Int("expired", expired).
			Int("idle_evicted", evicted).
			Msg("session cleanup sweep")
	}
}

// underPressure reports whether any registry exceeds its emergency
// threshold.
func (v *Validator) underPressure(ctx context.Context) bool {
	if v.cfg.MaxSessions > 0 {
		if n, err := v.store.Len(ctx); err == nil && n > v.cfg.MaxSessions {
			return true
		}
	}
	if v.cfg.MaxEvents > 0 && v.events.Len() > v.cfg.MaxEvents {
		return true
	}
	if v.cfg.MaxSuspiciousIPs > 0 && v.suspects.Len() > v.cfg.MaxSuspiciousIPs {
		return true
	}
	return false
}
