// Package batteries wires pluggable telemetry backends ("batteries") into a
// single process-wide session. Application code reports lifecycle events
// (page views, errors, shutdown) to the session, which fans them out to every
// attached battery without depending on any backend's concrete API.
//
// A session is built once at startup:
//
//	session := batteries.New("my-service", "1.4.0").
//		WithContext("channel", "stable").
//		WithBattery(medama.New("https://analytics.example.com")).
//		WithBattery(sentry.New(dsn))
//
//	defer session.Shutdown()
//
// Nothing a battery does is ever allowed to affect application control flow:
// the worst user-visible effect of any failure in this package and its
// backends is silently missing telemetry.
package batteries

import "sync/atomic"

// BatteryBuilder is implemented by backend-specific configuration objects,
// allowing them to be attached to a Session.
//
// Setup is called once by Session.WithBattery to initialize the backend. It
// may perform blocking I/O (opening connections, installing global providers)
// but must return a live Battery synchronously. A builder that cannot
// configure its backend should log the failure and return NoopBattery rather
// than failing the whole session, so downstream calls never need
// backend-specific nil checks.
//
// The metadata describes the service being monitored and should be attached
// to any descriptive information reported to the backend. The enabled flag is
// the session's shared runtime switch: a battery must not perform network
// dispatch while it reads false.
type BatteryBuilder interface {
	Setup(md *Metadata, enabled *atomic.Bool) Battery
}

// Battery is one live telemetry backend attached to a Session. It receives
// lifecycle notifications from the session and owns its outbound transport
// and internal state.
type Battery interface {
	// RecordNewPage reports that a new page view has started. Only one page
	// view is active at a time, so the battery should finish any previous
	// page view before starting a new one.
	RecordNewPage(page string)

	// RecordError reports an error to the backend through whatever mechanism
	// is appropriate. It should enqueue the report and return promptly rather
	// than blocking on network I/O.
	RecordError(err error)

	// Shutdown is called when the process is exiting. It must not return
	// until the battery's best-effort drain completes or times out, and it
	// must never hang the process indefinitely waiting on network I/O.
	Shutdown()
}

// NoopBattery is a Battery whose operations all do nothing. Builders return
// it when their backend cannot be configured, and concrete batteries may
// embed it to inherit no-op defaults for notifications they do not handle.
type NoopBattery struct{}

// RecordNewPage does nothing.
func (NoopBattery) RecordNewPage(string) {}

// RecordError does nothing.
func (NoopBattery) RecordError(error) {}

// Shutdown does nothing.
func (NoopBattery) Shutdown() {}
