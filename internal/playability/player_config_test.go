package playability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildConfig_EffectiveAttributes(t *testing.T) {
	base := map[string]any{
		AttrControlsList: "nodownload",
		AttrPreload:      "metadata",
		AttrCrossOrigin:  "anonymous",
	}

	tests := []struct {
		engine   Engine
		expected map[string]any
	}{
		{EngineSafari, map[string]any{AttrPlaysInline: true}},
		{EngineFirefox, map[string]any{AttrMozMediaKeys: true}},
		{EngineChrome, nil},
		{EngineEdge, nil},
		{EngineOpera, nil},
		{EngineUnknown, nil},
	}

	for _, tt := range tests {
		t.Run(tt.engine.String(), func(t *testing.T) {
			cfg := BuildConfig(NewCapabilityProfile(tt.engine, 1, nil, nil, nil))
			attrs := cfg.EffectiveAttributes()

			for k, v := range base {
				assert.Equal(t, v, attrs[k], "base attribute %s", k)
			}
			for k, v := range tt.expected {
				assert.Equal(t, v, attrs[k], "override %s", k)
			}
			assert.Len(t, attrs, len(base)+len(tt.expected))
			assert.Empty(t, cfg.Tracks)
		})
	}
}

func TestEffectiveAttributes_OverridesNeverRemoveBase(t *testing.T) {
	cfg := BuildConfig(NewCapabilityProfile(EngineChrome, 120, nil, nil, nil))
	cfg.EngineOverrides[AttrPreload] = nil
	cfg.EngineOverrides[AttrCrossOrigin] = "use-credentials"

	attrs := cfg.EffectiveAttributes()
	assert.Equal(t, "metadata", attrs[AttrPreload])
	assert.Equal(t, "use-credentials", attrs[AttrCrossOrigin])
	assert.Equal(t, "nodownload", attrs[AttrControlsList])
}

func TestBuildConfig_IndependentInstances(t *testing.T) {
	safari := NewCapabilityProfile(EngineSafari, 17, nil, nil, nil)

	first := BuildConfig(safari)
	first.EngineOverrides[AttrPlaysInline] = false
	first.BaseAttributes[AttrPreload] = "auto"

	second := BuildConfig(safari)
	assert.Equal(t, true, second.EngineOverrides[AttrPlaysInline])
	assert.Equal(t, "metadata", second.BaseAttributes[AttrPreload])
}
