package playability

// Container is a media file format wrapping encoded audio and video.
type Container string

// Supported containers, in source preference order.
const (
	ContainerMP4  Container = "mp4"
	ContainerWebM Container = "webm"
	ContainerOGG  Container = "ogg"
)

// Containers lists the containers in the fixed order sources are built in.
var Containers = []Container{ContainerMP4, ContainerWebM, ContainerOGG}

// StreamingProtocol is an adaptive streaming protocol.
type StreamingProtocol string

// Streaming protocols probed by the prober.
const (
	ProtocolHLS  StreamingProtocol = "hls"
	ProtocolDASH StreamingProtocol = "dash"
)

// StreamingProtocols lists the probed protocols.
var StreamingProtocols = []StreamingProtocol{ProtocolHLS, ProtocolDASH}

// PlatformCapability names a generic platform feature of the host.
type PlatformCapability string

// Platform capabilities probed by the prober.
const (
	CapabilityFullscreen        PlatformCapability = "fullscreen"
	CapabilityPictureInPicture  PlatformCapability = "picture_in_picture"
	CapabilityWebGL             PlatformCapability = "webgl"
	CapabilityWebAssembly       PlatformCapability = "webassembly"
	CapabilityServiceWorker     PlatformCapability = "service_worker"
	CapabilityPushNotifications PlatformCapability = "push_notifications"
	CapabilityOfflineStorage    PlatformCapability = "offline_storage"
	CapabilityWebRTC            PlatformCapability = "webrtc"
	CapabilityWebAudio          PlatformCapability = "web_audio"
)

// PlatformCapabilities lists every probed platform capability.
var PlatformCapabilities = []PlatformCapability{
	CapabilityFullscreen,
	CapabilityPictureInPicture,
	CapabilityWebGL,
	CapabilityWebAssembly,
	CapabilityServiceWorker,
	CapabilityPushNotifications,
	CapabilityOfflineStorage,
	CapabilityWebRTC,
	CapabilityWebAudio,
}

// CapabilityProfile is a snapshot of what a browser environment can do.
// It is immutable: the maps are private and every accessor copies.
type CapabilityProfile struct {
	engine        Engine
	engineVersion int
	containers    map[Container]bool
	protocols     map[StreamingProtocol]bool
	platform      map[PlatformCapability]bool
}

// NewCapabilityProfile builds a profile from explicit values. Missing map
// entries read as unsupported; negative versions are clamped to 0.
func NewCapabilityProfile(
	engine Engine,
	version int,
	containers map[Container]bool,
	protocols map[StreamingProtocol]bool,
	platform map[PlatformCapability]bool,
) CapabilityProfile {
	if engine == "" {
		engine = EngineUnknown
	}
	if version < 0 {
		version = 0
	}

	p := CapabilityProfile{
		engine:        engine,
		engineVersion: version,
		containers:    make(map[Container]bool, len(Containers)),
		protocols:     make(map[StreamingProtocol]bool, len(StreamingProtocols)),
		platform:      make(map[PlatformCapability]bool, len(PlatformCapabilities)),
	}
	for _, c := range Containers {
		p.containers[c] = containers[c]
	}
	for _, proto := range StreamingProtocols {
		p.protocols[proto] = protocols[proto]
	}
	for _, capability := range PlatformCapabilities {
		p.platform[capability] = platform[capability]
	}
	return p
}

// Engine returns the detected engine.
func (p CapabilityProfile) Engine() Engine {
	if p.engine == "" {
		return EngineUnknown
	}
	return p.engine
}

// EngineVersion returns the detected major version, 0 when undetected.
func (p CapabilityProfile) EngineVersion() int {
	return p.engineVersion
}

// SupportsContainer reports whether the container probe succeeded.
func (p CapabilityProfile) SupportsContainer(c Container) bool {
	return p.containers[c]
}

// SupportsProtocol reports whether the streaming protocol probe succeeded.
func (p CapabilityProfile) SupportsProtocol(proto StreamingProtocol) bool {
	return p.protocols[proto]
}

// Has reports whether the platform capability probe succeeded.
func (p CapabilityProfile) Has(capability PlatformCapability) bool {
	return p.platform[capability]
}

// SupportedContainers returns the supported containers in source order.
func (p CapabilityProfile) SupportedContainers() []Container {
	out := make([]Container, 0, len(Containers))
	for _, c := range Containers {
		if p.containers[c] {
			out = append(out, c)
		}
	}
	return out
}

// CapabilityReport is the flat, serializable form of a CapabilityProfile.
type CapabilityReport struct {
	Engine        string          `json:"engine" yaml:"engine"`
	EngineVersion int             `json:"engine_version" yaml:"engine_version"`
	Containers    map[string]bool `json:"containers" yaml:"containers"`
	Protocols     map[string]bool `json:"protocols" yaml:"protocols"`
	Platform      map[string]bool `json:"platform" yaml:"platform"`
}

// Report flattens the profile for API responses and CLI output.
func (p CapabilityProfile) Report() CapabilityReport {
	r := CapabilityReport{
		Engine:        p.Engine().String(),
		EngineVersion: p.engineVersion,
		Containers:    make(map[string]bool, len(Containers)),
		Protocols:     make(map[string]bool, len(StreamingProtocols)),
		Platform:      make(map[string]bool, len(PlatformCapabilities)),
	}
	for _, c := range Containers {
		r.Containers[string(c)] = p.containers[c]
	}
	for _, proto := range StreamingProtocols {
		r.Protocols[string(proto)] = p.protocols[proto]
	}
	for _, capability := range PlatformCapabilities {
		r.Platform[string(capability)] = p.platform[capability]
	}
	return r
}
