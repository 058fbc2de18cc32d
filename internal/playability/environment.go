package playability

import (
	"errors"
	"strings"
	"sync"
)

// ErrProbeUnavailable is returned by an Environment when a probe cannot be
// evaluated. The prober treats it the same as an unsupported result.
var ErrProbeUnavailable = errors.New("probe unavailable")

// Environment is the capability query the prober runs against. A browser, a
// client-reported probe table and a test fixture all satisfy it.
type Environment interface {
	// IdentificationString returns the engine identification (User-Agent).
	IdentificationString() string
	// CanPlayType reports whether the environment can play the given MIME
	// probe string, including its codecs parameter.
	CanPlayType(mimeProbe string) (bool, error)
	// HasFeature reports whether a platform capability is present.
	HasFeature(capability PlatformCapability) (bool, error)
}

// StaticEnvironment answers probes from fixed tables.
// Probe strings are compared case-insensitively with whitespace trimmed.
type StaticEnvironment struct {
	Identification string
	Playable       map[string]bool
	Features       map[PlatformCapability]bool
}

// NewStaticEnvironment creates a StaticEnvironment that reports every probe in
// playable as supported.
func NewStaticEnvironment(identification string, playable []string, features ...PlatformCapability) *StaticEnvironment {
	env := &StaticEnvironment{
		Identification: identification,
		Playable:       make(map[string]bool, len(playable)),
		Features:       make(map[PlatformCapability]bool, len(features)),
	}
	for _, probe := range playable {
		env.Playable[normalizeProbe(probe)] = true
	}
	for _, f := range features {
		env.Features[f] = true
	}
	return env
}

// IdentificationString implements Environment.
func (e *StaticEnvironment) IdentificationString() string {
	return e.Identification
}

// CanPlayType implements Environment.
func (e *StaticEnvironment) CanPlayType(mimeProbe string) (bool, error) {
	if e.Playable == nil {
		return false, nil
	}
	if ok, found := e.Playable[normalizeProbe(mimeProbe)]; found {
		return ok, nil
	}
	// Playable may have been populated directly without normalization.
	return e.Playable[mimeProbe], nil
}

// HasFeature implements Environment.
func (e *StaticEnvironment) HasFeature(capability PlatformCapability) (bool, error) {
	return e.Features[capability], nil
}

func normalizeProbe(probe string) string {
	return strings.ToLower(strings.TrimSpace(probe))
}

// memoized caches probe answers of a wrapped environment.
type memoized struct {
	env Environment

	mu       sync.Mutex
	playable map[string]probeResult
	features map[PlatformCapability]probeResult
}

type probeResult struct {
	ok  bool
	err error
}

// Memoize wraps env so each distinct probe is evaluated at most once. The
// wrapper assumes the environment does not change for its lifetime: create one
// per viewer environment (one request, one session) and never share it.
func Memoize(env Environment) Environment {
	if env == nil {
		return nil
	}
	if m, ok := env.(*memoized); ok {
		return m
	}
	return &memoized{
		env:      env,
		playable: make(map[string]probeResult),
		features: make(map[PlatformCapability]probeResult),
	}
}

func (m *memoized) IdentificationString() string {
	return m.env.IdentificationString()
}

func (m *memoized) CanPlayType(mimeProbe string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.playable[mimeProbe]; ok {
		return r.ok, r.err
	}
	ok, err := m.env.CanPlayType(mimeProbe)
	m.playable[mimeProbe] = probeResult{ok: ok, err: err}
	return ok, err
}

func (m *memoized) HasFeature(capability PlatformCapability) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.features[capability]; ok {
		return r.ok, r.err
	}
	ok, err := m.env.HasFeature(capability)
	m.features[capability] = probeResult{ok: ok, err: err}
	return ok, err
}
