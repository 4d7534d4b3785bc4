// Package medama implements an analytics battery which keeps track of
// application usage through a [Medama](https://oss.medama.io) server in a
// privacy-preserving way.
//
// Telemetry is reported as if it originated on a web page with the URL
// `https://{service}.app/{page}`: every page view produces a "load" beacon,
// ending a page view (a new page or shutdown) produces an "unload" beacon
// carrying the dwell time, and reported errors produce "custom" beacons.
// Beacons are dispatched asynchronously and never block the caller; shutdown
// drains in-flight beacons with a bounded wait.
package medama

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeandeaual/go-locale"
	"github.com/rs/zerolog"
	"github.com/thlib/go-timezone-local/tzlocal"

	"github.com/tracekit/batteries"
	"github.com/tracekit/batteries/internal/httpx"
	"github.com/tracekit/batteries/internal/logger"
)

const (
	hitPath = "api/event/hit"

	drainInterval       = 50 * time.Millisecond
	defaultDrainTimeout = 5 * time.Second
)

// Medama configures the analytics battery for a server capable of receiving
// Medama analytics data.
//
//	session := batteries.New("my-service", "1.4.0").
//		WithBattery(medama.New("https://analytics.example.com").
//			WithInitialPage("/home").
//			WithReferrer("https://example.com"))
//
//	defer session.Shutdown()
type Medama struct {
	server       string
	page         string
	referrer     string
	drainTimeout time.Duration
}

// New configures the battery with the base URL of the Medama server which
// will receive the analytics data.
func New(server string) *Medama {
	return &Medama{
		server:       strings.TrimRight(server, "/"),
		drainTimeout: defaultDrainTimeout,
	}
}

// WithInitialPage sets a page whose load beacon is sent as soon as the
// battery is attached. Without it the battery starts idle and the first
// beacon is produced by the first Session.RecordNewPage call.
func (m *Medama) WithInitialPage(page string) *Medama {
	m.page = page
	return m
}

// WithReferrer sets the referrer URL reported on every load beacon. The
// default is an empty string.
func (m *Medama) WithReferrer(referrer string) *Medama {
	m.referrer = referrer
	return m
}

// WithDrainTimeout bounds how long Shutdown waits for in-flight beacons to
// complete. The default is five seconds.
func (m *Medama) WithDrainTimeout(d time.Duration) *Medama {
	m.drainTimeout = d
	return m
}

// Setup implements batteries.BatteryBuilder.
func (m *Medama) Setup(md *batteries.Metadata, enabled *atomic.Bool) batteries.Battery {
	b := &battery{
		server:       m.server,
		referrer:     m.referrer,
		drainTimeout: m.drainTimeout,
		metadata:     md.Clone(),
		timezone:     localTimezone(),
		beaconID:     generateBeaconID(),
		startTime:    time.Now(),
		visited:      make(map[string]struct{}),
		enabled:      enabled,
		client:       httpx.NewClient(),
		log:          logger.New("medama"),
	}

	if m.page != "" {
		b.RecordNewPage(m.page)
	}

	return b
}

type battery struct {
	// Configuration from the builder.
	server       string
	referrer     string
	drainTimeout time.Duration
	metadata     *batteries.Metadata
	timezone     string

	// Session-scoped visit state. The mutex covers every read-modify-write of
	// the visit flags and dwell timer; without it concurrent page changes
	// could interleave and corrupt the unique/returning semantics.
	mu         sync.Mutex
	beaconID   string
	startTime  time.Time
	pageActive bool
	visited    map[string]struct{}

	// Request management.
	enabled     *atomic.Bool
	outstanding atomic.Int64
	client      *http.Client
	log         zerolog.Logger
}

// RecordNewPage finishes the active page view, if any, and starts a new one
// under a fresh beacon id.
func (b *battery) RecordNewPage(page string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pageActive {
		b.dispatch(b.unloadBeaconLocked())
	}

	b.beaconID = generateBeaconID()
	b.pageActive = true
	b.dispatch(b.loadBeaconLocked(page))
}

// RecordError reports the error as a custom event grouped under the
// service's synthesized hostname.
func (b *battery) RecordError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dispatch(customEvent{
		BeaconID: b.beaconID,
		Event:    "custom",
		Group:    strings.ToLower(b.metadata.Service) + ".app",
		Data:     map[string]string{"error": err.Error()},
	})
}

// Shutdown finishes the active page view and waits for all outstanding
// beacons, bounded by the drain timeout.
func (b *battery) Shutdown() {
	b.mu.Lock()
	if b.pageActive {
		b.dispatch(b.unloadBeaconLocked())
		b.pageActive = false
	}
	b.mu.Unlock()

	b.drain()
}

// loadBeaconLocked computes the visit flags and builds the load payload. The
// flags are evaluated before the page is inserted into the visited set: the
// first page of a session is always unique, and a page is returning only if
// it was seen strictly before this call.
func (b *battery) loadBeaconLocked(page string) loadBeacon {
	isUnique := len(b.visited) == 0
	_, isReturning := b.visited[page]
	b.visited[page] = struct{}{}

	b.startTime = time.Now()

	data := make(map[string]string, len(b.metadata.Context)+2)
	for k, v := range b.metadata.Context {
		data[k] = v
	}
	data["service.name"] = b.metadata.Service
	data["service.version"] = b.metadata.Version

	return loadBeacon{
		BeaconID: b.beaconID,
		Event:    "load",
		URL: fmt.Sprintf("https://%s.app%s?utm_source=%s&utm_medium=%s&utm_campaign=%s",
			strings.ToLower(b.metadata.Service), page, runtime.GOOS, runtime.GOARCH, b.metadata.Version),
		Referrer:  b.referrer,
		Unique:    isUnique,
		Returning: isReturning,
		Timezone:  b.timezone,
		Data:      data,
	}
}

// unloadBeaconLocked builds the unload payload for the active page view,
// carrying the dwell time since the view started.
func (b *battery) unloadBeaconLocked() unloadBeacon {
	return unloadBeacon{
		BeaconID: b.beaconID,
		Event:    "unload",
		Duration: uint64(time.Since(b.startTime).Milliseconds()),
	}
}

// dispatch sends one beacon as an independent unit of work. If telemetry is
// disabled it is a no-op: no network call, no counter mutation. Otherwise the
// outstanding counter is incremented before the goroutine starts, so a
// concurrent drain can never observe zero while a send is still pending.
// Every completion path, including errors, decrements the counter exactly
// once. Nothing here ever surfaces an error to the caller.
func (b *battery) dispatch(payload any) {
	if !b.enabled.Load() {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		b.log.Warn().Err(err).Msg("Failed to encode beacon payload")
		return
	}

	b.outstanding.Add(1)
	go func() {
		defer b.outstanding.Add(-1)
		b.send(body)
	}()
}

// send performs the network call for one dispatch unit. Transport failures
// and non-2xx responses are logged, never raised.
func (b *battery) send(body []byte) {
	req, err := httpx.NewRequestWithJSON(context.Background(), http.MethodPost, b.server+"/"+hitPath, body)
	if err != nil {
		b.log.Warn().Err(err).Msg("Failed to build beacon request")
		return
	}

	req.Header.Set("User-Agent", userAgent(b.metadata.Service, b.metadata.Version))
	req.Header.Set("Accept-Language", acceptLanguage())
	// Medama expects hit payloads as text/plain to sidestep CORS preflights.
	req.Header.Set("Content-Type", "text/plain")

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Warn().Err(err).Msg("Error sending Medama event")
		return
	}
	defer httpx.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b.log.Warn().Int("status", resp.StatusCode).Msg("Medama request failed")
	}
}

// drain polls the outstanding counter until it reaches zero or the drain
// timeout elapses. On timeout it logs a warning and proceeds; shutdown must
// be bounded and never hang the process on network I/O.
func (b *battery) drain() {
	deadline := time.Now().Add(b.drainTimeout)

	for b.outstanding.Load() > 0 {
		if time.Now().After(deadline) {
			b.log.Warn().Msg("Timeout waiting for outstanding requests to complete")
			return
		}
		time.Sleep(drainInterval)
	}
}

// generateBeaconID combines epoch seconds with a random 64-bit word, each in
// base 36. Collisions are tolerable analytics noise: the timestamp bounds
// them to beacons generated in the same second and the random word makes a
// same-second collision improbable.
func generateBeaconID() string {
	timestamp := uint64(time.Now().Unix())
	return strconv.FormatUint(timestamp, 36) + strconv.FormatUint(rand.Uint64(), 36)
}

// userAgent synthesizes a browser-shaped user agent from the host platform
// and the service identity, so beacons group sensibly in the Medama UI.
func userAgent(service, version string) string {
	osInfo := "Unknown OS"
	switch {
	case runtime.GOOS == "darwin" && runtime.GOARCH == "amd64":
		osInfo = "Macintosh; Intel Mac OS X"
	case runtime.GOOS == "darwin":
		osInfo = "Macintosh; Apple Mac OS X"
	case runtime.GOOS == "windows":
		osInfo = "Windows NT"
	case runtime.GOOS == "linux":
		osInfo = "X11; Linux"
	}

	return fmt.Sprintf("Mozilla/5.0 (%s) Gecko/20100101 %s/%s", osInfo, service, version)
}

// localTimezone returns the host's IANA timezone name, or an empty string
// when it cannot be determined. Medama uses it for coarse location grouping.
// The lookup touches env vars and files, so it runs once at setup rather
// than on every load beacon.
func localTimezone() string {
	tz, err := tzlocal.RuntimeTZ()
	if err != nil {
		return ""
	}
	return tz
}

// acceptLanguage returns the host locale for the Accept-Language header,
// defaulting to "en".
func acceptLanguage() string {
	loc, err := locale.GetLocale()
	if err != nil || loc == "" {
		return "en"
	}
	return loc
}

type loadBeacon struct {
	// The beacon id for this page view.
	BeaconID string `json:"b"`
	// The event tag being sent.
	Event string `json:"e"`
	// The synthesized URL of the page being tracked.
	URL string `json:"u"`
	// The referrer URL.
	Referrer string `json:"r"`
	// Whether this is the first page view of the session.
	Unique bool `json:"p"`
	// Whether this page was already visited during the session.
	Returning bool `json:"q"`
	// The host timezone, used for location detection.
	Timezone string `json:"t"`
	// The flattened context payload.
	Data map[string]string `json:"d"`
}

type unloadBeacon struct {
	BeaconID string `json:"b"`
	Event    string `json:"e"`
	// Time spent on the page, in milliseconds.
	Duration uint64 `json:"m"`
}

type customEvent struct {
	BeaconID string `json:"b"`
	Event    string `json:"e"`
	// The event group (the synthesized hostname of the app).
	Group string            `json:"g"`
	Data  map[string]string `json:"d"`
}
