// Package handlers provides HTTP API handlers for pianola.
package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"gorm.io/gorm"

	"github.com/jmylchreest/pianola/internal/scheduler"
	"github.com/jmylchreest/pianola/pkg/httpclient"
)

// CircuitStatsProvider exposes circuit breaker counters of an upstream.
type CircuitStatsProvider interface {
	CircuitStats() httpclient.CircuitBreakerStats
}

// SessionCounter counts live playback sessions by state.
type SessionCounter interface {
	SessionCounts() map[string]int
}

// SchedulerStatusProvider reports the housekeeping scheduler status.
type SchedulerStatusProvider interface {
	Status() scheduler.Status
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *gorm.DB
	catalog   CircuitStatsProvider
	sessions  SessionCounter
	scheduler SchedulerStatusProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database connection for health checks.
func (h *HealthHandler) WithDB(db *gorm.DB) *HealthHandler {
	h.db = db
	return h
}

// WithCatalog sets the catalog client whose circuit breaker is reported.
func (h *HealthHandler) WithCatalog(catalog CircuitStatsProvider) *HealthHandler {
	h.catalog = catalog
	return h
}

// WithSessions sets the source of session counts.
func (h *HealthHandler) WithSessions(sessions SessionCounter) *HealthHandler {
	h.sessions = sessions
	return h
}

// WithScheduler sets the scheduler whose status is reported.
func (h *HealthHandler) WithScheduler(s SchedulerStatusProvider) *HealthHandler {
	h.scheduler = s
	return h
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service including system metrics",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns the health status of the service. The status degrades
// when the database is unreachable or the catalog circuit is open.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	resp := HealthResponse{
		Status:        "healthy",
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       h.version,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		CPUInfo:       h.getCPUInfo(),
		Memory:        h.getMemoryInfo(),
		Checks:        map[string]string{},
	}

	db := h.getDatabaseHealth(ctx)
	resp.Components.Database = db
	resp.Checks["database"] = db.Status

	if h.catalog != nil {
		stats := h.catalog.CircuitStats()
		resp.Components.Catalog = &stats
		resp.Checks["catalog"] = stats.State
		if stats.State == httpclient.CircuitOpen.String() {
			resp.Status = "degraded"
		}
	}

	if h.sessions != nil {
		resp.Components.Sessions = h.sessions.SessionCounts()
	}

	if h.scheduler != nil {
		status := h.scheduler.Status()
		resp.Components.Scheduler = &status
	}

	if db.Status == "error" {
		resp.Status = "unhealthy"
	}

	return &HealthOutput{Body: resp}, nil
}

// getCPUInfo returns CPU load information.
func (h *HealthHandler) getCPUInfo() CPUInfo {
	cores := runtime.NumCPU()
	info := CPUInfo{Cores: cores}

	loadAvg, err := load.Avg()
	if err == nil && loadAvg != nil {
		info.Load1Min = loadAvg.Load1
		info.Load5Min = loadAvg.Load5
		info.Load15Min = loadAvg.Load15
		if cores > 0 {
			info.LoadPercentage1Min = (loadAvg.Load1 / float64(cores)) * 100
		}
	}

	return info
}

// getMemoryInfo returns system and process memory usage.
func (h *HealthHandler) getMemoryInfo() MemoryInfo {
	info := MemoryInfo{}

	vmStat, err := mem.VirtualMemory()
	if err == nil && vmStat != nil {
		info.TotalMemoryMB = bytesToMB(vmStat.Total)
		info.UsedMemoryMB = bytesToMB(vmStat.Used)
		info.AvailableMemoryMB = bytesToMB(vmStat.Available)
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}
	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		info.ProcessMB = bytesToMB(memInfo.RSS)
		if info.TotalMemoryMB > 0 {
			info.ProcessPercentOfSystem = info.ProcessMB / info.TotalMemoryMB * 100
		}
	}
	if n, err := proc.NumThreads(); err == nil {
		info.ProcessThreads = int(n)
	}
	info.Goroutines = runtime.NumGoroutine()

	return info
}

// getDatabaseHealth pings the database and reports pool usage.
func (h *HealthHandler) getDatabaseHealth(ctx context.Context) DatabaseHealth {
	health := DatabaseHealth{Status: "ok", ResponseTimeStatus: "healthy"}

	if h.db == nil {
		health.Status = "not_configured"
		health.ResponseTimeStatus = "unknown"
		return health
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		health.Status = "error"
		return health
	}

	stats := sqlDB.Stats()
	health.OpenConnections = stats.OpenConnections
	health.ActiveConnections = stats.InUse
	health.IdleConnections = stats.Idle

	start := time.Now()
	err = sqlDB.PingContext(ctx)
	health.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000

	switch {
	case err != nil:
		health.Status = "error"
		health.ResponseTimeStatus = "error"
	case health.ResponseTimeMS > 100:
		health.ResponseTimeStatus = "slow"
	}

	return health
}

func bytesToMB(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
