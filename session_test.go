package batteries

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures every notification a session delivers, tagged with the
// battery's name so fan-out order is observable.
type recorder struct {
	name  string
	calls *[]string

	metadata *Metadata
	enabled  *atomic.Bool

	shutdowns int
}

func (r *recorder) Setup(md *Metadata, enabled *atomic.Bool) Battery {
	r.metadata = md
	r.enabled = enabled
	*r.calls = append(*r.calls, r.name+":setup")
	return r
}

func (r *recorder) RecordNewPage(page string) {
	*r.calls = append(*r.calls, r.name+":page:"+page)
}

func (r *recorder) RecordError(err error) {
	*r.calls = append(*r.calls, r.name+":error:"+err.Error())
}

func (r *recorder) Shutdown() {
	r.shutdowns++
	*r.calls = append(*r.calls, r.name+":shutdown")
}

func TestSessionFanOutOrder(t *testing.T) {
	var calls []string
	first := &recorder{name: "first", calls: &calls}
	second := &recorder{name: "second", calls: &calls}

	session := New("example", "0.0.1").
		WithBattery(first).
		WithBattery(second)

	session.RecordNewPage("/home")
	session.RecordError(errors.New("boom"))
	session.Shutdown()

	assert.Equal(t, []string{
		"first:setup",
		"second:setup",
		"first:page:/home",
		"second:page:/home",
		"first:error:boom",
		"second:error:boom",
		"first:shutdown",
		"second:shutdown",
	}, calls)
}

func TestRecordErrorPassThrough(t *testing.T) {
	var calls []string
	session := New("example", "0.0.1").
		WithBattery(&recorder{name: "only", calls: &calls})

	err := errors.New("boom")
	assert.Same(t, err, session.RecordError(err))
}

func TestRecordErrorNil(t *testing.T) {
	var calls []string
	session := New("example", "0.0.1").
		WithBattery(&recorder{name: "only", calls: &calls})

	assert.NoError(t, session.RecordError(nil))
	assert.Equal(t, []string{"only:setup"}, calls, "a nil error should not notify any battery")
}

func TestWithContextLastWriteWins(t *testing.T) {
	var calls []string
	battery := &recorder{name: "only", calls: &calls}

	New("example", "0.0.1").
		WithContext("channel", "beta").
		WithContext("channel", "stable").
		WithBattery(battery)

	require.NotNil(t, battery.metadata)
	assert.Equal(t, "example", battery.metadata.Service)
	assert.Equal(t, "0.0.1", battery.metadata.Version)
	assert.Equal(t, "stable", battery.metadata.Context["channel"])
}

func TestEnabledHandleIsShared(t *testing.T) {
	var calls []string
	battery := &recorder{name: "only", calls: &calls}

	session := New("example", "0.0.1").WithBattery(battery)

	require.NotNil(t, battery.enabled)
	assert.Same(t, session.Enabled(), battery.enabled)

	assert.True(t, battery.enabled.Load(), "telemetry defaults to enabled")
	session.Enabled().Store(false)
	assert.False(t, battery.enabled.Load(), "toggling the session flag must be visible to batteries")
}

func TestShutdownRunsOnce(t *testing.T) {
	var calls []string
	battery := &recorder{name: "only", calls: &calls}

	session := New("example", "0.0.1").WithBattery(battery)
	session.Shutdown()
	session.Shutdown()

	assert.Equal(t, 1, battery.shutdowns)
}

func TestMetadataCloneIsIndependent(t *testing.T) {
	md := New("example", "0.0.1").WithContext("k", "v")
	clone := md.Clone()
	clone.Context["k"] = "changed"

	assert.Equal(t, "v", md.Context["k"])
}

// noopBuilder attaches a NoopBattery, standing in for a builder whose
// backend could not be configured.
type noopBuilder struct{}

func (noopBuilder) Setup(*Metadata, *atomic.Bool) Battery { return NoopBattery{} }

func TestNoopBatteryIsSafe(t *testing.T) {
	session := New("example", "0.0.1").WithBattery(noopBuilder{})

	session.RecordNewPage("/home")
	assert.Same(t, assert.AnError, session.RecordError(assert.AnError))
	session.Shutdown()
}
