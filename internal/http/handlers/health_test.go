package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/pianola/internal/http/handlers"
	"github.com/jmylchreest/pianola/internal/scheduler"
	"github.com/jmylchreest/pianola/pkg/httpclient"
)

type stubCircuit struct {
	stats httpclient.CircuitBreakerStats
}

func (s stubCircuit) CircuitStats() httpclient.CircuitBreakerStats { return s.stats }

type stubScheduler struct{}

func (stubScheduler) Status() scheduler.Status {
	return scheduler.Status{Running: true, Schedule: scheduler.DefaultSchedule, Runs: 3}
}

func TestHealthHandler_GetHealth(t *testing.T) {
	handler := handlers.NewHealthHandler("1.0.0")

	output, err := handler.GetHealth(context.Background(), &handlers.HealthInput{})
	require.NoError(t, err)
	require.NotNil(t, output)

	assert.Equal(t, "healthy", output.Body.Status)
	assert.Equal(t, "1.0.0", output.Body.Version)
	assert.NotEmpty(t, output.Body.Uptime)
	assert.NotZero(t, output.Body.CPUInfo.Cores)
	assert.NotZero(t, output.Body.Memory.Goroutines)
	assert.Equal(t, "not_configured", output.Body.Components.Database.Status)
	assert.Nil(t, output.Body.Components.Catalog)
}

func TestHealthHandler_Components(t *testing.T) {
	tests := []struct {
		name       string
		circuit    httpclient.CircuitState
		wantStatus string
	}{
		{"closed circuit", httpclient.CircuitClosed, "healthy"},
		{"half-open circuit", httpclient.CircuitHalfOpen, "healthy"},
		{"open circuit", httpclient.CircuitOpen, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.NewHealthHandler("1.0.0").
				WithCatalog(stubCircuit{stats: httpclient.CircuitBreakerStats{
					State:       tt.circuit.String(),
					LastFailure: time.Now(),
				}}).
				WithScheduler(stubScheduler{})

			output, err := handler.GetHealth(context.Background(), &handlers.HealthInput{})
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, output.Body.Status)
			require.NotNil(t, output.Body.Components.Catalog)
			assert.Equal(t, tt.circuit.String(), output.Body.Checks["catalog"])
			require.NotNil(t, output.Body.Components.Scheduler)
			assert.Equal(t, 3, output.Body.Components.Scheduler.Runs)
		})
	}
}

func TestHealthHandler_Route(t *testing.T) {
	s := newTestServer(t)
	s.openSession(t, "lesson-1", safariHeaders)

	rec := s.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[handlers.HealthResponse](t, rec)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, 1, body.Components.Sessions["loading"])
}
