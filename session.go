package batteries

import (
	"sync"
	"sync/atomic"
)

// Session orchestrates zero or more live batteries. It owns the runtime
// enable flag and fans lifecycle notifications out to every battery in
// registration order.
//
// The notification surface is synchronous from the caller's perspective but
// never blocks on network I/O; batteries dispatch their outbound work in the
// background. Only Shutdown may block, bounded by each battery's drain
// ceiling.
type Session struct {
	metadata  *Metadata
	batteries []Battery
	enabled   atomic.Bool
	shutdown  sync.Once
}

// WithBattery runs the builder's setup against the session's metadata and
// enable flag and appends the resulting battery. Attachment is irreversible;
// there is no way to detach a battery short of shutting the session down.
func (s *Session) WithBattery(builder BatteryBuilder) *Session {
	s.batteries = append(s.batteries, builder.Setup(s.metadata, &s.enabled))
	return s
}

// Metadata returns the service identity shared with every battery. It must be
// treated as read-only once the first battery is attached.
func (s *Session) Metadata() *Metadata { return s.metadata }

// Enabled returns the shared runtime switch gating telemetry dispatch. It may
// be toggled from any goroutine at any time, for example to honor a user
// opt-out, without restarting any battery.
func (s *Session) Enabled() *atomic.Bool { return &s.enabled }

// RecordNewPage reports a page or view change to every battery in
// registration order. What a "page" means is battery-specific: the analytics
// battery turns it into a load beacon, the tracing battery into a span.
func (s *Session) RecordNewPage(page string) {
	for _, battery := range s.batteries {
		battery.RecordNewPage(page)
	}
}

// RecordError reports the error to every battery in registration order and
// returns it unchanged, so call sites can report and propagate in a single
// expression:
//
//	return session.RecordError(doWork())
//
// A nil error is passed through without notifying any battery.
func (s *Session) RecordError(err error) error {
	if err == nil {
		return nil
	}
	for _, battery := range s.batteries {
		battery.RecordError(err)
	}
	return err
}

// Shutdown tears down every battery in registration order, waiting for each
// one's best-effort drain. After Shutdown returns the session must not be
// used again; calling Shutdown more than once is safe and does nothing after
// the first call.
func (s *Session) Shutdown() {
	s.shutdown.Do(func() {
		for _, battery := range s.batteries {
			battery.Shutdown()
		}
	})
}
