package playability

import (
	"net/url"
	"path"
	"strings"
)

// Canonical MIME types and labels for source descriptors.
const (
	MIMETypeMP4  = "video/mp4"
	MIMETypeWebM = "video/webm"
	MIMETypeOGG  = "video/ogg"

	FallbackLabel = "Default"
)

// SourceDescriptor is one candidate the player may attempt.
type SourceDescriptor struct {
	Locator  string `json:"locator" yaml:"locator" doc:"URL of the media resource"`
	MIMEType string `json:"mime_type" yaml:"mime_type" doc:"Canonical MIME type"`
	Label    string `json:"label" yaml:"label" doc:"Human readable label"`
}

type sourceFormat struct {
	container Container
	extension string
	mimeType  string
	label     string
}

// Fixed source order.
var sourceFormats = []sourceFormat{
	{ContainerMP4, "mp4", MIMETypeMP4, "MP4 (H.264)"},
	{ContainerWebM, "webm", MIMETypeWebM, "WebM (VP8/VP9)"},
	{ContainerOGG, "ogg", MIMETypeOGG, "OGG (Theora)"},
}

// strippableSuffixes are the container suffixes removed to obtain a stem.
// Suffixes outside this set are part of the stem.
var strippableSuffixes = map[string]bool{
	".mp4":  true,
	".webm": true,
	".ogg":  true,
	".ogv":  true,
	".mov":  true,
	".m4v":  true,
	".mkv":  true,
	".avi":  true,
	".wmv":  true,
	".flv":  true,
	".3gp":  true,
}

// BuildSources returns the ordered source list for baseLocator. The result is
// never empty: with no supported container it holds a single Default entry
// pointing at the unmodified locator.
func BuildSources(baseLocator string, profile CapabilityProfile) []SourceDescriptor {
	stem, tail := SourceStem(baseLocator)

	sources := make([]SourceDescriptor, 0, len(sourceFormats))
	for _, f := range sourceFormats {
		if !profile.SupportsContainer(f.container) {
			continue
		}
		sources = append(sources, SourceDescriptor{
			Locator:  stem + "." + f.extension + tail,
			MIMEType: f.mimeType,
			Label:    f.label,
		})
	}

	if len(sources) == 0 {
		sources = append(sources, SourceDescriptor{
			Locator:  baseLocator,
			MIMEType: MIMETypeMP4,
			Label:    FallbackLabel,
		})
	}
	return sources
}

// SourceStem splits a locator into its stem, with any recognized container
// suffix removed, and the trailing query/fragment that must follow the new
// extension.
func SourceStem(locator string) (stem, tail string) {
	body := locator
	if i := strings.IndexAny(locator, "?#"); i >= 0 {
		body, tail = locator[:i], locator[i:]
	}

	// Only the path is eligible; a host such as lessons.mov is kept.
	urlPath := body[pathStart(body):]
	ext := path.Ext(urlPath)
	if ext != "" && strippableSuffixes[strings.ToLower(ext)] {
		body = strings.TrimSuffix(body, ext)
	}
	return body, tail
}

// pathStart returns the offset of the path in locator, skipping the scheme
// and authority of absolute and protocol-relative URLs.
func pathStart(locator string) int {
	authority := 0
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" && u.Opaque == "" {
		authority = len(u.Scheme) + len(":")
	}
	if !strings.HasPrefix(locator[authority:], "//") {
		return authority
	}
	authority += len("//")
	if i := strings.IndexByte(locator[authority:], '/'); i >= 0 {
		return authority + i
	}
	return len(locator)
}
