package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/pianola/internal/catalog"
	"github.com/jmylchreest/pianola/internal/http/handlers"
	"github.com/jmylchreest/pianola/internal/models"
	"github.com/jmylchreest/pianola/internal/playability"
	"github.com/jmylchreest/pianola/internal/repository"
	"github.com/jmylchreest/pianola/internal/service"
	"github.com/jmylchreest/pianola/internal/session"
)

const (
	uaChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaSafari = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15"
)

type testServer struct {
	router   *chi.Mux
	db       *gorm.DB
	playback *service.PlaybackService
	progress *service.ProgressService
	hub      *session.Hub
	sessions *handlers.SessionHandler
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PlaybackRecord{}, &models.CourseProgress{}))

	lessons := catalog.NewStaticSource(
		catalog.Lesson{
			ID:       "lesson-1",
			Course:   catalog.CourseRef{ID: "course-1", Title: "Piano Basics"},
			Title:    "Middle C",
			VideoURL: "https://cdn.example.com/videos/lesson1.mov",
			Order:    1,
		},
		catalog.Lesson{
			ID:       "lesson-2",
			Course:   catalog.CourseRef{ID: "course-1", Title: "Piano Basics"},
			Title:    "Scales",
			VideoURL: "https://cdn.example.com/videos/lesson2.mp4",
			Order:    2,
		},
		catalog.Lesson{ID: "lesson-novideo", Course: catalog.CourseRef{ID: "course-1"}, Order: 3},
	)

	log := quietLogger()
	hub := session.NewHub(log)
	t.Cleanup(hub.Close)

	progress := service.NewProgressService(repository.NewCourseProgressRepository(db), lessons).WithLogger(log)
	manager := session.NewManager(log, hub)
	playback := service.NewPlaybackService(
		lessons,
		playability.NewNegotiator(log),
		manager,
		repository.NewPlaybackRecordRepository(db),
		progress,
	).WithLogger(log)

	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("Test API", "1.0.0"))

	handlers.NewHealthHandler("1.0.0").WithDB(db).WithSessions(playback).Register(api)
	handlers.NewPlayabilityHandler(playback).Register(api)
	sessions := handlers.NewSessionHandler(playback, hub)
	sessions.Register(api)
	sessions.RegisterSSE(router)
	handlers.NewProgressHandler(progress).Register(api)

	return &testServer{
		router:   router,
		db:       db,
		playback: playback,
		progress: progress,
		hub:      hub,
		sessions: sessions,
	}
}

// do sends a request and returns the recorder. body is JSON encoded when
// not nil.
func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

// openSession opens a session for lessonID and returns its snapshot.
func (s *testServer) openSession(t *testing.T, lessonID string, headers map[string]string) session.Snapshot {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"lesson_id": lessonID,
		"slot":      "main",
	}, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[handlers.SessionResponse](t, rec).Session
}
