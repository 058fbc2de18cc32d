package handlers

import (
	"net/http"

	"github.com/jmylchreest/pianola/internal/catalog"
	"github.com/jmylchreest/pianola/internal/playability"
	"github.com/jmylchreest/pianola/internal/scheduler"
	"github.com/jmylchreest/pianola/internal/session"
	"github.com/jmylchreest/pianola/pkg/httpclient"
)

// UserIDHeader identifies the viewer for progress tracking. Authentication
// happens upstream of this service.
const UserIDHeader = "X-User-ID"

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status        string            `json:"status" doc:"healthy, degraded or unhealthy"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	CPUInfo       CPUInfo           `json:"cpu_info"`
	Memory        MemoryInfo        `json:"memory"`
	Components    HealthComponents  `json:"components"`
	Checks        map[string]string `json:"checks"`
}

// CPUInfo holds load averages.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo holds system and process memory usage.
type MemoryInfo struct {
	TotalMemoryMB          float64 `json:"total_memory_mb"`
	UsedMemoryMB           float64 `json:"used_memory_mb"`
	AvailableMemoryMB      float64 `json:"available_memory_mb"`
	ProcessMB              float64 `json:"process_mb"`
	ProcessPercentOfSystem float64 `json:"process_percent_of_system"`
	ProcessThreads         int     `json:"process_threads"`
	Goroutines             int     `json:"goroutines"`
}

// DatabaseHealth describes database reachability.
type DatabaseHealth struct {
	Status             string  `json:"status"`
	OpenConnections    int     `json:"open_connections"`
	ActiveConnections  int     `json:"active_connections"`
	IdleConnections    int     `json:"idle_connections"`
	ResponseTimeMS     float64 `json:"response_time_ms"`
	ResponseTimeStatus string  `json:"response_time_status"`
}

// HealthComponents groups the health of each dependency.
type HealthComponents struct {
	Database  DatabaseHealth                  `json:"database"`
	Catalog   *httpclient.CircuitBreakerStats `json:"catalog,omitempty"`
	Sessions  map[string]int                  `json:"sessions,omitempty"`
	Scheduler *scheduler.Status               `json:"scheduler,omitempty"`
}

// ClientHints carries the request headers a browser sends about itself.
type ClientHints struct {
	UserAgent   string `header:"User-Agent" doc:"Browser user agent"`
	MediaProbes string `header:"X-Media-Probes" doc:"Client probe results, e.g. mp4=1, webm=1, hls=0"`
	ECT         string `header:"ECT" doc:"Effective connection type client hint"`
	Downlink    string `header:"Downlink" doc:"Downlink client hint in Mbps"`
	SaveData    string `header:"Save-Data" doc:"Save-Data client hint"`
}

// environment builds the probe environment for the calling browser.
func (h ClientHints) environment(report *playability.ClientReport) *playability.RequestEnvironment {
	header := http.Header{}
	set := func(name, value string) {
		if value != "" {
			header.Set(name, value)
		}
	}
	set("User-Agent", h.UserAgent)
	set(playability.MediaProbesHeader, h.MediaProbes)
	set("ECT", h.ECT)
	set("Downlink", h.Downlink)
	set("Save-Data", h.SaveData)

	return playability.NewRequestEnvironment(&http.Request{Header: header}, report)
}

// ClientCapabilities is what a player page may report in a request body.
type ClientCapabilities struct {
	AvailableExtensions []string                    `json:"available_extensions,omitempty" doc:"Extensions the media host is known to serve"`
	Probes              map[string]bool             `json:"probes,omitempty" doc:"Probe results keyed by mp4/webm/ogg/hls/dash or MIME probe string"`
	Features            map[string]bool             `json:"features,omitempty" doc:"Platform capability presence keyed by capability name"`
	Connection          *playability.ConnectionHint `json:"connection,omitempty" doc:"Network information reported by the page; overrides client hint headers"`
}

func (c ClientCapabilities) report() *playability.ClientReport {
	if len(c.Probes) == 0 && len(c.Features) == 0 {
		return nil
	}
	return &playability.ClientReport{Probes: c.Probes, Features: c.Features}
}

// hint returns the body hint, falling back to the header hint.
func (c ClientCapabilities) hint(env *playability.RequestEnvironment) *playability.ConnectionHint {
	if c.Connection != nil {
		return c.Connection
	}
	return env.ConnectionHint()
}

// NegotiationResponse describes how a lesson video should be played.
type NegotiationResponse struct {
	Capabilities     playability.CapabilityReport   `json:"capabilities"`
	BestFormat       string                         `json:"best_format,omitempty" doc:"Selected extension; empty when the original locator is used"`
	HasBestFormat    bool                           `json:"has_best_format"`
	PreferredLocator string                         `json:"preferred_locator" doc:"Locator to attempt first"`
	Sources          []playability.SourceDescriptor `json:"sources"`
	Config           playability.PlayerConfig       `json:"config"`
	Quality          playability.QualityTier        `json:"quality"`
}

func negotiationResponse(n playability.Negotiation, locator string) NegotiationResponse {
	sources := n.Sources
	if sources == nil {
		sources = []playability.SourceDescriptor{}
	}
	return NegotiationResponse{
		Capabilities:     n.Profile.Report(),
		BestFormat:       n.BestFormat,
		HasBestFormat:    n.HasBestFormat,
		PreferredLocator: n.PreferredLocator(locator),
		Sources:          sources,
		Config:           n.Config,
		Quality:          n.Quality,
	}
}

// SessionResponse is a playback session opened for a lesson.
type SessionResponse struct {
	Session     session.Snapshot    `json:"session"`
	Lesson      catalog.Lesson      `json:"lesson"`
	Negotiation NegotiationResponse `json:"negotiation"`
}
