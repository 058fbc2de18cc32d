package playability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedEnvironment fails or panics on chosen probes.
type scriptedEnvironment struct {
	StaticEnvironment
	failing  map[string]bool
	panicky  map[string]bool
	features map[PlatformCapability]error
	calls    map[string]int
}

func newScriptedEnvironment(base *StaticEnvironment) *scriptedEnvironment {
	return &scriptedEnvironment{
		StaticEnvironment: *base,
		failing:           map[string]bool{},
		panicky:           map[string]bool{},
		features:          map[PlatformCapability]error{},
		calls:             map[string]int{},
	}
}

func (e *scriptedEnvironment) CanPlayType(mimeProbe string) (bool, error) {
	e.calls[mimeProbe]++
	if e.panicky[mimeProbe] {
		panic("media element detached")
	}
	if e.failing[mimeProbe] {
		return true, errors.New("probe failed")
	}
	return e.StaticEnvironment.CanPlayType(mimeProbe)
}

func (e *scriptedEnvironment) HasFeature(capability PlatformCapability) (bool, error) {
	if err := e.features[capability]; err != nil {
		return true, err
	}
	return e.StaticEnvironment.HasFeature(capability)
}

func TestProbe_NilEnvironment(t *testing.T) {
	profile := Probe(nil)

	assert.Equal(t, EngineUnknown, profile.Engine())
	assert.Equal(t, 0, profile.EngineVersion())
	assert.Empty(t, profile.SupportedContainers())
	for _, proto := range StreamingProtocols {
		assert.False(t, profile.SupportsProtocol(proto))
	}
	for _, capability := range PlatformCapabilities {
		assert.False(t, profile.Has(capability))
	}
}

func TestProbe_StaticEnvironment(t *testing.T) {
	env := NewStaticEnvironment(uaChrome,
		[]string{ProbeMP4, ProbeWebM, ProbeHLS},
		CapabilityFullscreen, CapabilityPictureInPicture, CapabilityWebAudio,
	)

	profile := Probe(env)

	assert.Equal(t, EngineChrome, profile.Engine())
	assert.Equal(t, 120, profile.EngineVersion())
	assert.True(t, profile.SupportsContainer(ContainerMP4))
	assert.True(t, profile.SupportsContainer(ContainerWebM))
	assert.False(t, profile.SupportsContainer(ContainerOGG))
	assert.True(t, profile.SupportsProtocol(ProtocolHLS))
	assert.False(t, profile.SupportsProtocol(ProtocolDASH))
	assert.True(t, profile.Has(CapabilityFullscreen))
	assert.True(t, profile.Has(CapabilityPictureInPicture))
	assert.True(t, profile.Has(CapabilityWebAudio))
	assert.False(t, profile.Has(CapabilityWebRTC))
}

func TestProbe_UsesExactCodecStrings(t *testing.T) {
	// A bare MIME type without codecs must not count as MP4 support.
	env := NewStaticEnvironment(uaChrome, []string{"video/mp4", `video/ogg; codecs="theora, vorbis"`})

	profile := Probe(env)
	assert.False(t, profile.SupportsContainer(ContainerMP4))
	assert.True(t, profile.SupportsContainer(ContainerOGG))
}

func TestProbe_FailuresReadAsUnsupported(t *testing.T) {
	env := newScriptedEnvironment(NewStaticEnvironment(uaFirefox,
		[]string{ProbeMP4, ProbeWebM, ProbeOGG, ProbeHLS, ProbeDASH},
		CapabilityWebGL, CapabilityWebRTC,
	))
	env.failing[ProbeWebM] = true
	env.panicky[ProbeDASH] = true
	env.features[CapabilityWebGL] = ErrProbeUnavailable

	var profile CapabilityProfile
	require.NotPanics(t, func() {
		profile = Probe(env)
	})

	assert.Equal(t, EngineFirefox, profile.Engine())
	assert.True(t, profile.SupportsContainer(ContainerMP4))
	assert.False(t, profile.SupportsContainer(ContainerWebM), "errored probe is unsupported")
	assert.True(t, profile.SupportsContainer(ContainerOGG), "probes are independent")
	assert.True(t, profile.SupportsProtocol(ProtocolHLS))
	assert.False(t, profile.SupportsProtocol(ProtocolDASH), "panicking probe is unsupported")
	assert.False(t, profile.Has(CapabilityWebGL))
	assert.True(t, profile.Has(CapabilityWebRTC))
}

type panickingIdentity struct {
	StaticEnvironment
}

func (panickingIdentity) IdentificationString() string {
	panic("navigator unavailable")
}

func TestProbe_IdentificationPanic(t *testing.T) {
	env := &panickingIdentity{StaticEnvironment: *NewStaticEnvironment("", []string{ProbeMP4})}

	profile := Probe(env)
	assert.Equal(t, EngineUnknown, profile.Engine())
	assert.True(t, profile.SupportsContainer(ContainerMP4))
}

func TestProber_WithSignatures(t *testing.T) {
	prober := NewProber(nil).WithSignatures(nil)

	profile := prober.Probe(NewStaticEnvironment(uaChrome, nil))
	assert.Equal(t, EngineUnknown, profile.Engine())
}

func TestMemoize(t *testing.T) {
	inner := newScriptedEnvironment(NewStaticEnvironment(uaSafari17, []string{ProbeMP4}))
	env := Memoize(inner)

	for range 3 {
		ok, err := env.CanPlayType(ProbeMP4)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, inner.calls[ProbeMP4])

	assert.Same(t, env, Memoize(env), "wrapping twice returns the same boundary")
	assert.Nil(t, Memoize(nil))
}

func TestCapabilityProfile_Report(t *testing.T) {
	profile := NewCapabilityProfile(EngineSafari, 16,
		map[Container]bool{ContainerMP4: true},
		map[StreamingProtocol]bool{ProtocolHLS: true},
		map[PlatformCapability]bool{CapabilityPictureInPicture: true},
	)

	report := profile.Report()
	assert.Equal(t, "Safari", report.Engine)
	assert.Equal(t, 16, report.EngineVersion)
	assert.Equal(t, map[string]bool{"mp4": true, "webm": false, "ogg": false}, report.Containers)
	assert.Equal(t, map[string]bool{"hls": true, "dash": false}, report.Protocols)
	assert.Len(t, report.Platform, len(PlatformCapabilities))
	assert.True(t, report.Platform["picture_in_picture"])
	assert.False(t, report.Platform["webgl"])
}

func TestNewCapabilityProfile_CopiesInput(t *testing.T) {
	containers := map[Container]bool{ContainerWebM: true}
	profile := NewCapabilityProfile("", -4, containers, nil, nil)

	containers[ContainerWebM] = false
	containers[ContainerOGG] = true

	assert.True(t, profile.SupportsContainer(ContainerWebM))
	assert.False(t, profile.SupportsContainer(ContainerOGG))
	assert.Equal(t, EngineUnknown, profile.Engine())
	assert.Equal(t, 0, profile.EngineVersion())
}
