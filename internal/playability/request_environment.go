package playability

import (
	"net/http"
	"strconv"
	"strings"
)

// MediaProbesHeader carries client-side probe results as a comma separated
// list of key=value pairs, e.g. "mp4=1, webm=1, ogg=0, hls=0". Keys may also
// be full MIME probe strings; commas inside quoted codec lists do not split
// entries, e.g. `video/webm; codecs="vp8, vorbis"=1`.
const MediaProbesHeader = "X-Media-Probes"

// shortProbeKeys maps the compact keys accepted from clients to probe strings.
var shortProbeKeys = map[string]string{
	"mp4":  ProbeMP4,
	"webm": ProbeWebM,
	"ogg":  ProbeOGG,
	"hls":  ProbeHLS,
	"dash": ProbeDASH,
}

// ClientReport is what a browser page reports about itself after running its
// own canPlayType and feature checks.
type ClientReport struct {
	// Probes maps a short key (mp4, webm, ogg, hls, dash) or a full MIME probe
	// string to the browser's answer.
	Probes map[string]bool `json:"probes,omitempty" doc:"Probe results keyed by mp4/webm/ogg/hls/dash or MIME probe string"`
	// Features maps platform capability names to presence.
	Features map[string]bool `json:"features,omitempty" doc:"Platform capability presence keyed by capability name"`
}

// RequestEnvironment answers probes for a remote browser from what the
// request carries. The server cannot decode media on the viewer's behalf, so
// anything the client did not report is unavailable, never inferred from the
// User-Agent.
type RequestEnvironment struct {
	userAgent string
	playable  map[string]bool
	features  map[PlatformCapability]bool
	hint      *ConnectionHint
}

// NewRequestEnvironment builds an environment from the request headers and an
// optional client report. Values in the report take precedence over the
// X-Media-Probes header.
func NewRequestEnvironment(r *http.Request, report *ClientReport) *RequestEnvironment {
	env := &RequestEnvironment{
		playable: make(map[string]bool),
		features: make(map[PlatformCapability]bool),
	}
	if r != nil {
		env.userAgent = r.UserAgent()
		env.hint = ConnectionHintFromHeaders(r.Header)
		for key, ok := range ParseMediaProbes(r.Header.Get(MediaProbesHeader)) {
			env.setProbe(key, ok)
		}
	}
	if report != nil {
		for key, ok := range report.Probes {
			env.setProbe(key, ok)
		}
		for name, ok := range report.Features {
			env.features[PlatformCapability(strings.ToLower(strings.TrimSpace(name)))] = ok
		}
	}
	return env
}

func (e *RequestEnvironment) setProbe(key string, ok bool) {
	key = strings.TrimSpace(key)
	if probe, found := shortProbeKeys[strings.ToLower(key)]; found {
		key = probe
	}
	e.playable[normalizeProbe(key)] = ok
}

// ConnectionHint returns the hint derived from client hint headers, or nil.
func (e *RequestEnvironment) ConnectionHint() *ConnectionHint {
	return e.hint
}

// IdentificationString implements Environment.
func (e *RequestEnvironment) IdentificationString() string {
	return e.userAgent
}

// CanPlayType implements Environment.
func (e *RequestEnvironment) CanPlayType(mimeProbe string) (bool, error) {
	ok, found := e.playable[normalizeProbe(mimeProbe)]
	if !found {
		return false, ErrProbeUnavailable
	}
	return ok, nil
}

// HasFeature implements Environment.
func (e *RequestEnvironment) HasFeature(capability PlatformCapability) (bool, error) {
	ok, found := e.features[capability]
	if !found {
		return false, ErrProbeUnavailable
	}
	return ok, nil
}

// ParseMediaProbes parses an X-Media-Probes header value. Entries without a
// value count as supported; malformed values are skipped.
func ParseMediaProbes(value string) map[string]bool {
	out := make(map[string]bool)
	for _, part := range splitProbeList(value) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, raw, hasValue := cutProbeValue(part)
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if !hasValue {
			out[key] = true
			continue
		}

		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "probably", "maybe", "yes", "on":
			out[key] = true
		case "no", "off", "":
			out[key] = false
		default:
			if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
				out[key] = b
			}
		}
	}
	return out
}

// splitProbeList splits on commas outside double quotes.
func splitProbeList(value string) []string {
	var parts []string
	quoted := false
	start := 0
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				parts = append(parts, value[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, value[start:])
}

// cutProbeValue splits an entry at its last '=' unless that '=' opens a
// quoted MIME parameter, as in a bare `video/ogg; codecs="theora"`.
func cutProbeValue(entry string) (key, value string, found bool) {
	i := strings.LastIndexByte(entry, '=')
	if i < 0 || strings.ContainsRune(entry[i+1:], '"') {
		return entry, "", false
	}
	return entry[:i], entry[i+1:], true
}
