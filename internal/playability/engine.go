// Package playability decides how a lesson video should be played in a given
// browser environment: which engine is running, which containers it decodes,
// which sources to offer the player and how the player should be configured.
package playability

import (
	"regexp"
	"strconv"
	"strings"
)

// Engine identifies the rendering/media engine family of a browser.
type Engine string

// Known engines. Anything not matched by the signature table is EngineUnknown.
const (
	EngineChrome  Engine = "Chrome"
	EngineFirefox Engine = "Firefox"
	EngineSafari  Engine = "Safari"
	EngineEdge    Engine = "Edge"
	EngineOpera   Engine = "Opera"
	EngineUnknown Engine = "Unknown"
)

// Engines lists every engine value, EngineUnknown last.
var Engines = []Engine{EngineChrome, EngineFirefox, EngineSafari, EngineEdge, EngineOpera, EngineUnknown}

// String returns the display name of the engine.
func (e Engine) String() string {
	if e == "" {
		return string(EngineUnknown)
	}
	return string(e)
}

// ParseEngine maps a case-insensitive engine name to an Engine.
// Unrecognized names map to EngineUnknown.
func ParseEngine(name string) Engine {
	name = strings.TrimSpace(name)
	for _, e := range Engines {
		if strings.EqualFold(name, string(e)) {
			return e
		}
	}
	return EngineUnknown
}

// EngineSignature pairs an identification-string pattern with the engine it
// identifies. When the pattern has a capture group, the group holds the
// leading digits of the engine version.
type EngineSignature struct {
	Engine  Engine
	Pattern *regexp.Regexp
}

// Signatures are evaluated top to bottom and the first match wins. Edge and
// Opera must precede Chrome because their identification strings also carry
// the Chrome signature; Chrome must precede Safari for the same reason.
var engineSignatures = []EngineSignature{
	// Chromium Edge (desktop, Android, iOS) and legacy EdgeHTML
	{EngineEdge, regexp.MustCompile(`Edg(?:e|A|iOS)?/(\d+)?`)},
	// Chromium Opera and Presto Opera
	{EngineOpera, regexp.MustCompile(`(?:OPR|OPT|Opera)[/ ](\d+)?`)},
	{EngineFirefox, regexp.MustCompile(`(?:Firefox|FxiOS)/(\d+)?`)},
	{EngineChrome, regexp.MustCompile(`(?:Chrome|CriOS)/(\d+)?`)},
	// Safari reports its marketing version in Version/, not in Safari/
	{EngineSafari, regexp.MustCompile(`Version/(\d+)?[^ ]*.*Safari/`)},
	{EngineSafari, regexp.MustCompile(`AppleWebKit/.*Safari/`)},
}

// EngineSignatures returns a copy of the ordered engine signature table.
func EngineSignatures() []EngineSignature {
	out := make([]EngineSignature, len(engineSignatures))
	copy(out, engineSignatures)
	return out
}

// DetectEngine matches an identification string (a User-Agent) against the
// signature table. The version is the first run of digits following the
// matched signature, or 0 when there is none.
func DetectEngine(identification string) (Engine, int) {
	return matchEngine(engineSignatures, identification)
}

func matchEngine(signatures []EngineSignature, identification string) (Engine, int) {
	if identification == "" {
		return EngineUnknown, 0
	}

	for _, sig := range signatures {
		matches := sig.Pattern.FindStringSubmatch(identification)
		if matches == nil {
			continue
		}

		version := 0
		if len(matches) > 1 && matches[1] != "" {
			if v, err := strconv.Atoi(matches[1]); err == nil && v > 0 {
				version = v
			}
		}
		return sig.Engine, version
	}

	return EngineUnknown, 0
}
