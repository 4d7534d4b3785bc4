// Package sentry implements an error-reporting battery backed by
// [Sentry](https://sentry.io).
//
// Reported errors are captured as Sentry exceptions, page changes leave
// navigation breadcrumbs so captured errors carry the browsing trail, and
// shutdown flushes buffered events with a bounded wait.
package sentry

import (
	"sync/atomic"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/tracekit/batteries"
	"github.com/tracekit/batteries/internal/logger"
)

const drainTimeout = 5 * time.Second

// Sentry configures the error-reporting battery with a project DSN.
//
//	session := batteries.New("my-service", "1.4.0").
//		WithBattery(sentry.New("https://key@ingest.sentry.io/project").
//			WithEnvironment("production"))
//
//	defer session.Shutdown()
type Sentry struct {
	dsn         string
	environment string
	release     string
	transport   sentrygo.Transport
}

// New configures the battery with the DSN of the Sentry project which will
// receive the error reports.
func New(dsn string) *Sentry {
	return &Sentry{dsn: dsn}
}

// WithEnvironment sets the deployment environment reported on every event.
func (s *Sentry) WithEnvironment(environment string) *Sentry {
	s.environment = environment
	return s
}

// WithRelease overrides the release identifier. The default is
// "{service}@{version}" from the session metadata.
func (s *Sentry) WithRelease(release string) *Sentry {
	s.release = release
	return s
}

// WithTransport injects a custom transport. Intended for tests.
func (s *Sentry) WithTransport(transport sentrygo.Transport) *Sentry {
	s.transport = transport
	return s
}

// Setup implements batteries.BatteryBuilder. An SDK initialization failure
// downgrades to a no-op battery; error reporting is never allowed to break
// the host application.
func (s *Sentry) Setup(md *batteries.Metadata, enabled *atomic.Bool) batteries.Battery {
	log := logger.New("sentry")

	release := s.release
	if release == "" {
		release = md.Service + "@" + md.Version
	}

	err := sentrygo.Init(sentrygo.ClientOptions{
		Dsn:         s.dsn,
		Release:     release,
		Environment: s.environment,
		Transport:   s.transport,
		BeforeSend: func(event *sentrygo.Event, hint *sentrygo.EventHint) *sentrygo.Event {
			// Runtime opt-out: drop the event while the session's enable
			// flag reads false.
			if !enabled.Load() {
				return nil
			}
			return event
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Sentry, error reporting disabled")
		return batteries.NoopBattery{}
	}

	sentrygo.ConfigureScope(func(scope *sentrygo.Scope) {
		for key, value := range md.Context {
			scope.SetExtra(key, value)
		}
	})

	return &battery{log: log}
}

type battery struct {
	log zerolog.Logger
}

// RecordNewPage leaves a navigation breadcrumb so subsequent errors carry
// the page trail.
func (b *battery) RecordNewPage(page string) {
	sentrygo.AddBreadcrumb(&sentrygo.Breadcrumb{
		Type:      "navigation",
		Category:  "navigation",
		Message:   page,
		Timestamp: time.Now(),
	})
}

// RecordError captures the error as a Sentry exception.
func (b *battery) RecordError(err error) {
	sentrygo.CaptureException(err)
}

// Shutdown flushes buffered events, bounded by the drain ceiling.
func (b *battery) Shutdown() {
	if !sentrygo.Flush(drainTimeout) {
		b.log.Warn().Msg("Timeout waiting for Sentry events to flush")
	}
}
