package batteries

// Metadata describes the service being monitored by the telemetry session:
// its name, version, and any additional context the caller has provided.
// Batteries attach the context to whatever descriptive surface their backend
// offers (resource attributes, scope extras, beacon payload fields).
//
// Metadata is returned by New and may be modified until the first battery is
// attached; from that point it is shared with every battery and must be
// treated as read-only.
type Metadata struct {
	Service string
	Version string
	Context map[string]string
}

// New starts building a telemetry session for the named service. It performs
// no I/O; batteries only come to life once attached with WithBattery.
func New(service, version string) *Metadata {
	return &Metadata{
		Service: service,
		Version: version,
		Context: make(map[string]string),
	}
}

// WithContext adds a context entry which will be reported to every telemetry
// backend. Setting an existing key overwrites it.
func (m *Metadata) WithContext(key, value string) *Metadata {
	m.Context[key] = value
	return m
}

// WithBattery attaches the first battery, freezing the metadata and yielding
// the session. Additional batteries may be attached on the returned Session.
func (m *Metadata) WithBattery(builder BatteryBuilder) *Session {
	session := &Session{metadata: m}
	session.enabled.Store(true)
	return session.WithBattery(builder)
}

// Clone returns an independent copy of the metadata. Batteries that retain
// metadata past Setup should hold a clone so later payload construction never
// races with the caller.
func (m *Metadata) Clone() *Metadata {
	ctx := make(map[string]string, len(m.Context))
	for k, v := range m.Context {
		ctx[k] = v
	}
	return &Metadata{Service: m.Service, Version: m.Version, Context: ctx}
}
