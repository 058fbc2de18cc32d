package playability

import "strings"

// FormatCandidate maps a file extension to the probe string that decides
// whether it is playable.
type FormatCandidate struct {
	Extension string
	MIMEProbe string
}

var formatCandidates = []FormatCandidate{
	{Extension: "mp4", MIMEProbe: ProbeMP4},
	{Extension: "webm", MIMEProbe: ProbeWebM},
	{Extension: "ogg", MIMEProbe: ProbeOGG},
}

// FormatCandidates returns a copy of the default-ordered candidate table.
func FormatCandidates() []FormatCandidate {
	out := make([]FormatCandidate, len(formatCandidates))
	copy(out, formatCandidates)
	return out
}

// enginePreferredExtension is moved to the front of the priority list for
// the given engine.
var enginePreferredExtension = map[Engine]string{
	EngineSafari:  "mp4",
	EngineFirefox: "webm",
}

// FormatPriority returns the candidate order used for an engine.
func FormatPriority(engine Engine) []FormatCandidate {
	candidates := FormatCandidates()

	preferred, ok := enginePreferredExtension[engine]
	if !ok {
		return candidates
	}

	for i, c := range candidates {
		if c.Extension != preferred {
			continue
		}
		promoted := make([]FormatCandidate, 0, len(candidates))
		promoted = append(promoted, c)
		promoted = append(promoted, candidates[:i]...)
		promoted = append(promoted, candidates[i+1:]...)
		return promoted
	}
	return candidates
}

// SelectBestFormat picks the first extension, in the engine's priority order,
// that is both listed in available and confirmed playable by a fresh probe
// against env. The second result is false when nothing qualifies; callers then
// fall back to the unmodified locator.
func SelectBestFormat(env Environment, profile CapabilityProfile, available []string) (string, bool) {
	if env == nil || len(available) == 0 {
		return "", false
	}

	offered := make(map[string]bool, len(available))
	for _, ext := range available {
		offered[normalizeExtension(ext)] = true
	}

	for _, c := range FormatPriority(profile.Engine()) {
		if !offered[c.Extension] {
			continue
		}
		if defaultProber.canPlay(env, c.MIMEProbe) {
			return c.Extension, true
		}
	}
	return "", false
}

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
