package handlers_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/pianola/internal/http/handlers"
	"github.com/jmylchreest/pianola/internal/models"
	"github.com/jmylchreest/pianola/internal/service"
	"github.com/jmylchreest/pianola/internal/session"
)

var safariHeaders = map[string]string{
	"User-Agent":     uaSafari,
	"X-Media-Probes": "mp4=1, webm=0",
	"X-User-ID":      "user-1",
}

func TestSessionHandler_Open(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"lesson_id":            "lesson-1",
		"slot":                 "main",
		"available_extensions": []string{"mp4", "webm"},
	}, safariHeaders)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[handlers.SessionResponse](t, rec)
	assert.False(t, resp.Session.ID.IsZero())
	assert.Equal(t, "lesson-1", resp.Session.LessonID)
	assert.Equal(t, session.StateLoading, resp.Session.State)
	assert.Equal(t, "course-1", resp.Lesson.CourseID())
	assert.Equal(t, "Piano Basics", resp.Lesson.Course.Title)
	assert.Equal(t, "mp4", resp.Negotiation.BestFormat)
	assert.Equal(t, "https://cdn.example.com/videos/lesson1.mp4", resp.Negotiation.PreferredLocator)
	require.Len(t, resp.Session.Sources, 1)
	assert.Equal(t, "https://cdn.example.com/videos/lesson1.mp4", resp.Session.Sources[0].Locator)
}

func TestSessionHandler_OpenErrors(t *testing.T) {
	tests := []struct {
		name     string
		lessonID string
		want     int
	}{
		{"unknown lesson", "lesson-404", http.StatusNotFound},
		{"lesson without video", "lesson-novideo", http.StatusUnprocessableEntity},
		{"empty lesson id", "", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{"lesson_id": tt.lessonID}, safariHeaders)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestSessionHandler_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	snap := s.openSession(t, "lesson-2", safariHeaders)
	base := "/api/v1/sessions/" + snap.ID.String()

	// Playing before the media is ready is a conflict.
	rec := s.do(t, http.MethodPost, base+"/intents", map[string]any{"type": "play"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/events", map[string]any{"type": "ready"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, session.StateReady, decode[session.Snapshot](t, rec).State)

	rec = s.do(t, http.MethodPost, base+"/events", map[string]any{"type": "duration", "value": 300}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 300, decode[session.Snapshot](t, rec).DurationSeconds, 0.001)

	rec = s.do(t, http.MethodPost, base+"/intents", map[string]any{"type": "play"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	playing := decode[session.Snapshot](t, rec)
	assert.Equal(t, session.StatePlayingOrPaused, playing.State)
	assert.True(t, playing.Playing)

	rec = s.do(t, http.MethodPost, base+"/intents", map[string]any{"type": "seek", "value": 42}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 42, decode[session.Snapshot](t, rec).PositionSeconds, 0.001)

	rec = s.do(t, http.MethodPost, base+"/intents", map[string]any{"type": "volume", "value": 1.5}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode[session.Snapshot](t, rec).Volume, "volume is clamped to 1")

	rec = s.do(t, http.MethodPost, base+"/intents", map[string]any{"type": "seek", "value": -1}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "negative positions are rejected")

	rec = s.do(t, http.MethodPost, base+"/intents", map[string]any{"type": "rewind"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "unknown intents fail validation")

	rec = s.do(t, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 42, decode[session.Snapshot](t, rec).PositionSeconds, 0.001)

	rec = s.do(t, http.MethodPost, base+"/events", map[string]any{"type": "ended"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ended := decode[session.Snapshot](t, rec)
	assert.Equal(t, session.StateEnded, ended.State)
	assert.True(t, ended.Completed)

	// Completion is recorded against the viewer's course progress.
	rec = s.do(t, http.MethodGet, "/api/v1/progress/course-1", nil, map[string]string{"X-User-ID": "user-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"lesson-2"}, decode[service.CourseProgressView](t, rec).CompletedLessons)

	rec = s.do(t, http.MethodDelete, base, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, base, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_ErrorAndRetry(t *testing.T) {
	s := newTestServer(t)
	snap := s.openSession(t, "lesson-1", safariHeaders)
	base := "/api/v1/sessions/" + snap.ID.String()

	rec := s.do(t, http.MethodPost, base+"/retry", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "retry is only allowed after an error")

	rec = s.do(t, http.MethodPost, base+"/events", map[string]any{
		"type":    "error",
		"code":    4,
		"detail":  "MEDIA_ERR_SRC_NOT_SUPPORTED",
		"locator": "https://cdn.example.com/videos/lesson1.mp4",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	errored := decode[session.Snapshot](t, rec)
	assert.Equal(t, session.StateErrored, errored.State)
	assert.Equal(t, session.DefaultErrorMessage, errored.LastErrorMessage)

	rec = s.do(t, http.MethodPost, base+"/retry", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	retried := decode[session.Snapshot](t, rec)
	assert.Equal(t, session.StateLoading, retried.State)
	assert.Equal(t, 2, retried.Attempts)

	rec = s.do(t, http.MethodGet, "/api/v1/lessons/lesson-1/playbacks", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct {
		Records []models.PlaybackRecord `json:"records"`
	}](t, rec)
	require.Len(t, history.Records, 1)
	assert.Equal(t, 1, history.Records[0].ErrorCount)
	assert.Equal(t, "Safari", history.Records[0].Engine)
}

func TestSessionHandler_InvalidID(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/v1/sessions/not-a-ulid",
		"/api/v1/sessions/" + models.NewULID().String(),
	} {
		rec := s.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestSessionHandler_List(t *testing.T) {
	s := newTestServer(t)
	s.openSession(t, "lesson-1", safariHeaders)

	rec := s.do(t, http.MethodGet, "/api/v1/sessions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Sessions []session.Snapshot `json:"sessions"`
	}](t, rec)
	assert.Len(t, list.Sessions, 1)

	rec = s.do(t, http.MethodGet, "/api/v1/playbacks/outcomes", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	outcomes := decode[struct {
		Outcomes map[string]int64 `json:"outcomes"`
	}](t, rec)
	assert.Equal(t, int64(1), outcomes.Outcomes[string(models.PlaybackOutcomeStarted)])
}

func TestSessionHandler_SlotReplacement(t *testing.T) {
	s := newTestServer(t)
	first := s.openSession(t, "lesson-1", safariHeaders)
	second := s.openSession(t, "lesson-2", safariHeaders)

	assert.NotEqual(t, first.ID, second.ID)

	rec := s.do(t, http.MethodGet, "/api/v1/sessions/"+first.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "opening a slot detaches its previous session")
}

func TestSessionHandler_Notifications(t *testing.T) {
	s := newTestServer(t)
	s.sessions.SetHeartbeatInterval(50 * time.Millisecond)
	snap := s.openSession(t, "lesson-1", safariHeaders)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/api/v1/sessions/"+snap.ID.String()+"/notifications", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 32)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "event: ") || strings.HasPrefix(line, ":heartbeat") {
				events <- line
			}
		}
	}()

	waitFor := func(want string) {
		t.Helper()
		for {
			select {
			case line, ok := <-events:
				require.True(t, ok, "stream closed before %q", want)
				if strings.HasPrefix(line, want) {
					return
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitFor("event: snapshot")

	_, err = s.playback.HandleEvent(snap.ID, service.Event{
		Type: service.EventError,
		Code: session.MediaErrNetwork,
	})
	require.NoError(t, err)

	waitFor("event: error")
	waitFor(":heartbeat")
}

func TestSessionHandler_NotificationsUnknownSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/sessions/"+models.NewULID().String()+"/notifications", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
