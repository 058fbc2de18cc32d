package playability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func containerProfile(mp4, webm, ogg bool) CapabilityProfile {
	return NewCapabilityProfile(EngineChrome, 120, map[Container]bool{
		ContainerMP4:  mp4,
		ContainerWebM: webm,
		ContainerOGG:  ogg,
	}, nil, nil)
}

func TestBuildSources_MovScenario(t *testing.T) {
	sources := BuildSources("https://cdn/x/lesson1.mov", containerProfile(true, true, false))

	assert.Equal(t, []SourceDescriptor{
		{Locator: "https://cdn/x/lesson1.mp4", MIMEType: "video/mp4", Label: "MP4 (H.264)"},
		{Locator: "https://cdn/x/lesson1.webm", MIMEType: "video/webm", Label: "WebM (VP8/VP9)"},
	}, sources)
}

func TestBuildSources_Order(t *testing.T) {
	sources := BuildSources("lesson.ogv", containerProfile(true, true, true))

	require.Len(t, sources, 3)
	assert.Equal(t, "lesson.mp4", sources[0].Locator)
	assert.Equal(t, "lesson.webm", sources[1].Locator)
	assert.Equal(t, "lesson.ogg", sources[2].Locator)
	assert.Equal(t, "OGG (Theora)", sources[2].Label)
	assert.Equal(t, "video/ogg", sources[2].MIMEType)
}

func TestBuildSources_NeverEmpty(t *testing.T) {
	locators := []string{"", "x", "x.mp4", "https://cdn/a/b.webm?sig=1", "/videos/", "lesson.v2"}
	profiles := []CapabilityProfile{
		Probe(nil),
		containerProfile(false, false, false),
		containerProfile(true, false, false),
		containerProfile(false, false, true),
		containerProfile(true, true, true),
	}

	for _, locator := range locators {
		for _, profile := range profiles {
			assert.NotEmpty(t, BuildSources(locator, profile), "locator %q", locator)
		}
	}
}

func TestBuildSources_Fallback(t *testing.T) {
	sources := BuildSources("https://cdn/x/Lesson1.MP4", Probe(nil))

	assert.Equal(t, []SourceDescriptor{
		{Locator: "https://cdn/x/Lesson1.MP4", MIMEType: "video/mp4", Label: "Default"},
	}, sources)
}

func TestBuildSources_StemIdempotence(t *testing.T) {
	profile := containerProfile(true, true, true)

	tests := []struct {
		withExt string
		bare    string
	}{
		{"x.mp4", "x"},
		{"x.WEBM", "x"},
		{"x.ogg", "x"},
		{"x.ogv", "x"},
		{"https://cdn/c/lesson-3.mp4", "https://cdn/c/lesson-3"},
	}

	for _, tt := range tests {
		t.Run(tt.withExt, func(t *testing.T) {
			assert.Equal(t, BuildSources(tt.bare, profile), BuildSources(tt.withExt, profile))
		})
	}
}

func TestSourceStem(t *testing.T) {
	tests := []struct {
		locator      string
		expectedStem string
		expectedTail string
	}{
		{"lesson.mp4", "lesson", ""},
		{"lesson.MOV", "lesson", ""},
		{"lesson.mkv", "lesson", ""},
		{"lesson", "lesson", ""},
		{"lesson.v2", "lesson.v2", ""},
		{"watch.php", "watch.php", ""},
		{"archive.mp4.bak", "archive.mp4.bak", ""},
		{"https://cdn/x/lesson1.webm?token=abc.mp4", "https://cdn/x/lesson1", "?token=abc.mp4"},
		{"https://cdn/x/lesson1.mp4#t=30", "https://cdn/x/lesson1", "#t=30"},
		{"https://cdn.example.com/videos/", "https://cdn.example.com/videos/", ""},
		{"https://cdn.example.com/dir.mp4/lesson", "https://cdn.example.com/dir.mp4/lesson", ""},
		{"https://cdn.mp4", "https://cdn.mp4", ""},
		{"https://lessons.mov?token=abc", "https://lessons.mov", "?token=abc"},
		{"https://lessons.mov/intro.MOV", "https://lessons.mov/intro", ""},
		{"//cdn.webm", "//cdn.webm", ""},
		{"//cdn.example.com/lesson1.ogv", "//cdn.example.com/lesson1", ""},
		{"file:///srv/videos/lesson1.mp4", "file:///srv/videos/lesson1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			stem, tail := SourceStem(tt.locator)
			assert.Equal(t, tt.expectedStem, stem)
			assert.Equal(t, tt.expectedTail, tail)
		})
	}
}

func TestBuildSources_PreservesQuery(t *testing.T) {
	sources := BuildSources("https://cdn/x/lesson1.mp4?token=abc", containerProfile(false, true, false))

	require.Len(t, sources, 1)
	assert.Equal(t, "https://cdn/x/lesson1.webm?token=abc", sources[0].Locator)
	assert.True(t, strings.HasSuffix(sources[0].Locator, "?token=abc"))
}

func TestBuildSources_HostIsNotAStem(t *testing.T) {
	sources := BuildSources("https://cdn.mp4", containerProfile(true, true, false))

	require.Len(t, sources, 2)
	assert.Equal(t, "https://cdn.mp4.mp4", sources[0].Locator)
	assert.Equal(t, "https://cdn.mp4.webm", sources[1].Locator)
}
