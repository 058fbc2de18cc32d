package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/pianola/internal/config"
	"github.com/jmylchreest/pianola/internal/database/migrations"
	"github.com/jmylchreest/pianola/internal/playability"
)

const safariUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15"

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestToMap(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Catalog.AuthToken = "secret"

	m := toMap(cfg, false)
	server, ok := m["server"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 8080, server["port"])
	assert.Equal(t, "30s", server["read_timeout"])

	playback, ok := m["playback"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "30m", playback["session_idle_timeout"])

	catalog := m["catalog"].(map[string]any)
	assert.Equal(t, "secret", catalog["auth_token"], "defaults dumps are not masked")

	masked := toMap(cfg, true)["catalog"].(map[string]any)
	assert.Equal(t, "********", masked["auth_token"])
	assert.Equal(t, "", masked["base_url"])
}

func TestWriteConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, defaultConfig(t), false))

	out := buf.String()
	assert.Contains(t, out, "# All values shown below are defaults.")
	assert.Contains(t, out, "PIANOLA_CATALOG_BASE_URL")
	assert.Contains(t, out, "prune_schedule:")
	assert.Contains(t, out, "0 */5 * * * *")
}

func TestNegotiateProbe(t *testing.T) {
	result, err := negotiateProbe(probeOptions{
		userAgent:  safariUA,
		probes:     "mp4=1, webm=0, hls=1",
		ect:        "2g",
		locator:    "https://cdn.example.com/lesson.mov",
		extensions: []string{"webm", "mp4"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Safari", result.Capabilities.Engine)
	assert.Equal(t, "mp4", result.BestFormat)
	assert.Equal(t, "https://cdn.example.com/lesson.mp4", result.PreferredLocator)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, playability.QualityLow, result.Quality)
	assert.Equal(t, true, result.EngineOverrides["playsInline"])
}

func TestNegotiateProbe_NothingReported(t *testing.T) {
	result, err := negotiateProbe(probeOptions{userAgent: safariUA, locator: "https://cdn.example.com/lesson.mov"})
	require.NoError(t, err)

	assert.Empty(t, result.BestFormat)
	assert.Equal(t, "https://cdn.example.com/lesson.mov", result.PreferredLocator)
	for name, ok := range result.Capabilities.Containers {
		assert.False(t, ok, name)
	}
}

func TestWriteProbeResult(t *testing.T) {
	result, err := negotiateProbe(probeOptions{
		userAgent: safariUA,
		probes:    "mp4=1, webm=1",
		locator:   "https://cdn.example.com/lesson.mp4",
	})
	require.NoError(t, err)

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeProbeResult(&buf, result, false))
		out := buf.String()
		assert.Contains(t, out, "# Safari 17: 2 playable containers, 2 sources")
		assert.Contains(t, out, "mime_type: video/mp4")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeProbeResult(&buf, result, true))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Contains(t, decoded, "capabilities")
		assert.Contains(t, decoded, "sources")
	})
}

func TestWriteMigrationStatus(t *testing.T) {
	applied := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, writeMigrationStatus(&buf, []migrations.MigrationStatus{
		{Version: "001", Description: "initial schema", Applied: true, AppliedAt: &applied},
		{Version: "002", Description: "playback lesson index"},
	}))

	out := buf.String()
	assert.Contains(t, out, "VERSION")
	assert.Contains(t, out, "2026-03-01T12:00:00Z")
	assert.Regexp(t, `002\s+false\s+-\s+playback lesson index`, out)
}
