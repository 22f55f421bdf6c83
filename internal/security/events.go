package security

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Suspicious-IP detection bounds. An IP is flagged once three high or
// critical events originate from it within a rolling hour; the flag expires
// after a day.
const (
	suspiciousThreshold = 3
	suspiciousWindow    = time.Hour
	suspiciousTTL       = 24 * time.Hour
)

// EventLog is an append-only, bounded in-memory log of security events.
// It is read-only from the outside: entries are only added through Record
// and only removed by the retention sweep.
type EventLog struct {
	mu       sync.RWMutex
	events   []Event
	maxCount int
	maxAge   time.Duration
}

// NewEventLog creates an event log retaining at most maxCount events no
// older than maxAge.
func NewEventLog(maxCount int, maxAge time.Duration) *EventLog {
	if maxCount <= 0 {
		maxCount = 5000
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &EventLog{maxCount: maxCount, maxAge: maxAge}
}

// Record appends an event, assigning its ID and timestamp if unset, and
// truncates the oldest entries beyond the count bound.
func (l *EventLog) Record(ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, ev)
	if len(l.events) > l.maxCount {
		l.events = l.events[len(l.events)-l.maxCount:]
	}
	return ev
}

// Events returns up to limit most recent events, newest first. limit <= 0
// returns everything retained.
func (l *EventLog) Events(limit int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = l.events[len(l.events)-1-i]
	}
	return out
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Prune drops events older than the retention age.
func (l *EventLog) Prune(now time.Time) {
	cutoff := now.Add(-l.maxAge)

	l.mu.Lock()
	defer l.mu.Unlock()

	i := 0
	for ; i < len(l.events); i++ {
		if l.events[i].Timestamp.After(cutoff) {
			break
		}
	}
	if i > 0 {
		l.events = append([]Event(nil), l.events[i:]...)
	}
}

// SuspiciousIPRegistry tracks IPs that accumulated repeated high-severity
// events. Flagged IPs fail session validation outright until the flag ages
// out.
type SuspiciousIPRegistry struct {
	mu      sync.RWMutex
	flagged map[string]time.Time
	// recent holds timestamps of high/critical events per IP within the
	// detection window.
	recent map[string][]time.Time
}

// NewSuspiciousIPRegistry creates an empty registry.
func NewSuspiciousIPRegistry() *SuspiciousIPRegistry {
	return &SuspiciousIPRegistry{
		flagged: make(map[string]time.Time),
		recent:  make(map[string][]time.Time),
	}
}

// NoteSevere records a high or critical event from ip and flags the IP once
// the threshold is crossed within the rolling window.
func (r *SuspiciousIPRegistry) NoteSevere(ip string, now time.Time) {
	if ip == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-suspiciousWindow)
	times := r.recent[ip]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	r.recent[ip] = kept

	if len(kept) >= suspiciousThreshold {
		if _, already := r.flagged[ip]; !already {
			r.flagged[ip] = now
		}
	}
}

// IsSuspicious reports whether ip is currently flagged.
func (r *SuspiciousIPRegistry) IsSuspicious(ip string, now time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	first, ok := r.flagged[ip]
	if !ok {
		return false
	}
	return now.Before(first.Add(suspiciousTTL))
}

// Len returns the number of currently flagged IPs.
func (r *SuspiciousIPRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.flagged)
}

// Prune expires stale flags and trims the detection buffers.
func (r *SuspiciousIPRegistry) Prune(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ip, first := range r.flagged {
		if !now.Before(first.Add(suspiciousTTL)) {
			delete(r.flagged, ip)
		}
	}

	cutoff := now.Add(-suspiciousWindow)
	for ip, times := range r.recent {
		kept := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(r.recent, ip)
		} else {
			r.recent[ip] = kept
		}
	}
}
