package playability

import "maps"

// Player attribute names.
const (
	AttrControlsList = "controlsList"
	AttrPreload      = "preload"
	AttrCrossOrigin  = "crossOrigin"
	AttrPlaysInline  = "playsInline"
	AttrMozMediaKeys = "mozMediaKeys"
)

// TextTrack is a subtitle or caption track attached to the player.
type TextTrack struct {
	Kind    string `json:"kind"`
	Src     string `json:"src"`
	SrcLang string `json:"srclang,omitempty"`
	Label   string `json:"label,omitempty"`
	Default bool   `json:"default,omitempty"`
}

// PlayerConfig holds the player attributes for one capability profile.
type PlayerConfig struct {
	BaseAttributes  map[string]any `json:"base_attributes"`
	EngineOverrides map[string]any `json:"engine_overrides"`
	Tracks          []TextTrack    `json:"tracks"`
}

func baseAttributes() map[string]any {
	return map[string]any{
		AttrControlsList: "nodownload",
		AttrPreload:      "metadata",
		AttrCrossOrigin:  "anonymous",
	}
}

// engineOverrides lists the attributes each engine adds on top of the base.
var engineOverrides = map[Engine]map[string]any{
	EngineSafari:  {AttrPlaysInline: true},
	EngineFirefox: {AttrMozMediaKeys: true},
}

// BuildConfig returns the player configuration for profile.
func BuildConfig(profile CapabilityProfile) PlayerConfig {
	cfg := PlayerConfig{
		BaseAttributes:  baseAttributes(),
		EngineOverrides: map[string]any{},
		Tracks:          []TextTrack{},
	}
	if overrides, ok := engineOverrides[profile.Engine()]; ok {
		maps.Copy(cfg.EngineOverrides, overrides)
	}
	return cfg
}

// EffectiveAttributes merges the engine overrides onto the base attributes.
// Overrides add or change keys; they never remove a base attribute.
func (c PlayerConfig) EffectiveAttributes() map[string]any {
	out := make(map[string]any, len(c.BaseAttributes)+len(c.EngineOverrides))
	maps.Copy(out, c.BaseAttributes)
	for k, v := range c.EngineOverrides {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}
