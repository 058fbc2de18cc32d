package playability

import (
	"fmt"
	"io"
	"log/slog"
)

// MIME probe strings. Each container and protocol is tested with exactly one
// of these against Environment.CanPlayType.
const (
	ProbeMP4  = `video/mp4; codecs="avc1.42E01E"`
	ProbeWebM = `video/webm; codecs="vp8, vorbis"`
	ProbeOGG  = `video/ogg; codecs="theora, vorbis"`
	ProbeHLS  = "application/vnd.apple.mpegURL"
	ProbeDASH = "application/dash+xml"
)

var containerProbes = map[Container]string{
	ContainerMP4:  ProbeMP4,
	ContainerWebM: ProbeWebM,
	ContainerOGG:  ProbeOGG,
}

var protocolProbes = map[StreamingProtocol]string{
	ProtocolHLS:  ProbeHLS,
	ProtocolDASH: ProbeDASH,
}

// ContainerProbe returns the MIME probe string used to test a container.
func ContainerProbe(c Container) string {
	return containerProbes[c]
}

// ProtocolProbe returns the MIME probe string used to test a protocol.
func ProtocolProbe(p StreamingProtocol) string {
	return protocolProbes[p]
}

// Prober builds capability profiles. Every probe is evaluated independently
// and any failure, error or panic alike, reads as unsupported.
type Prober struct {
	logger     *slog.Logger
	signatures []EngineSignature
}

// NewProber creates a prober using the default engine signature table.
func NewProber(logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Prober{
		logger:     logger,
		signatures: engineSignatures,
	}
}

// WithSignatures replaces the engine signature table used for detection.
func (p *Prober) WithSignatures(signatures []EngineSignature) *Prober {
	p.signatures = signatures
	return p
}

var defaultProber = NewProber(nil)

// Probe builds a capability profile for env with the default prober.
func Probe(env Environment) CapabilityProfile {
	return defaultProber.Probe(env)
}

// Probe builds a capability profile for env. It never fails: a nil
// environment yields the all-unsupported Unknown profile.
func (p *Prober) Probe(env Environment) CapabilityProfile {
	if env == nil {
		return NewCapabilityProfile(EngineUnknown, 0, nil, nil, nil)
	}

	identification := p.identify(env)
	engine, version := matchEngine(p.signatures, identification)

	containers := make(map[Container]bool, len(Containers))
	for _, c := range Containers {
		containers[c] = p.canPlay(env, containerProbes[c])
	}

	protocols := make(map[StreamingProtocol]bool, len(StreamingProtocols))
	for _, proto := range StreamingProtocols {
		protocols[proto] = p.canPlay(env, protocolProbes[proto])
	}

	platform := make(map[PlatformCapability]bool, len(PlatformCapabilities))
	for _, capability := range PlatformCapabilities {
		platform[capability] = p.hasFeature(env, capability)
	}

	profile := NewCapabilityProfile(engine, version, containers, protocols, platform)
	p.logProbe(identification, profile)
	return profile
}

func (p *Prober) identify(env Environment) (id string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("identification probe panicked", slog.String("panic", fmt.Sprint(r)))
			id = ""
		}
	}()
	return env.IdentificationString()
}

// canPlay runs a single playability probe, absorbing errors and panics.
func (p *Prober) canPlay(env Environment, mimeProbe string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("playability probe panicked",
				slog.String("probe", mimeProbe),
				slog.String("panic", fmt.Sprint(r)),
			)
			ok = false
		}
	}()

	ok, err := env.CanPlayType(mimeProbe)
	if err != nil {
		p.logger.Debug("playability probe failed",
			slog.String("probe", mimeProbe),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

func (p *Prober) hasFeature(env Environment, capability PlatformCapability) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("feature probe panicked",
				slog.String("capability", string(capability)),
				slog.String("panic", fmt.Sprint(r)),
			)
			ok = false
		}
	}()

	ok, err := env.HasFeature(capability)
	if err != nil {
		p.logger.Debug("feature probe failed",
			slog.String("capability", string(capability)),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

func (p *Prober) logProbe(identification string, profile CapabilityProfile) {
	containers := make([]string, 0, len(Containers))
	for _, c := range profile.SupportedContainers() {
		containers = append(containers, string(c))
	}
	p.logger.Debug("environment probed",
		slog.String("identification", identification),
		slog.String("engine", profile.Engine().String()),
		slog.Int("engine_version", profile.EngineVersion()),
		slog.Any("containers", containers),
		slog.Bool("hls", profile.SupportsProtocol(ProtocolHLS)),
		slog.Bool("dash", profile.SupportsProtocol(ProtocolDASH)),
	)
}
