package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/pianola/internal/models"
	"github.com/jmylchreest/pianola/internal/observability"
	"github.com/jmylchreest/pianola/internal/service"
	"github.com/jmylchreest/pianola/internal/session"
)

// defaultHistoryLimit bounds playback history responses.
const defaultHistoryLimit = 50

// SessionHandler handles playback session endpoints.
type SessionHandler struct {
	service           *service.PlaybackService
	hub               *session.Hub
	heartbeatInterval time.Duration
}

// NewSessionHandler creates a new session handler. hub may be nil, in which
// case the notification stream is not registered.
func NewSessionHandler(svc *service.PlaybackService, hub *session.Hub) *SessionHandler {
	return &SessionHandler{
		service:           svc,
		hub:               hub,
		heartbeatInterval: 30 * time.Second,
	}
}

// SetHeartbeatInterval sets the SSE heartbeat interval (for testing).
func (h *SessionHandler) SetHeartbeatInterval(interval time.Duration) {
	h.heartbeatInterval = interval
}

// OpenSessionInput is the input for opening a playback session.
type OpenSessionInput struct {
	ClientHints
	UserID string `header:"X-User-ID" doc:"Viewer identity used for course progress"`
	Body   struct {
		ClientCapabilities
		LessonID string `json:"lesson_id" minLength:"1" doc:"Lesson whose video is played"`
		Slot     string `json:"slot,omitempty" doc:"Player slot; a new session replaces the previous session of the same slot"`
	}
}

// SessionOutput wraps a session snapshot.
type SessionOutput struct {
	Body session.Snapshot
}

// OpenSessionOutput is the output for opening a playback session.
type OpenSessionOutput struct {
	Body SessionResponse
}

// SessionIDInput addresses one session.
type SessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

// ListSessionsOutput lists live sessions.
type ListSessionsOutput struct {
	Body struct {
		Sessions []session.Snapshot `json:"sessions"`
	}
}

// EventInput delivers a media element event.
type EventInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Type    string  `json:"type" enum:"ready,timeupdate,duration,error,ended" doc:"Media element event"`
		Value   float64 `json:"value,omitempty" doc:"Position or duration in seconds"`
		Code    int     `json:"code,omitempty" minimum:"0" maximum:"4" doc:"MediaError code for error events"`
		Detail  string  `json:"detail,omitempty" doc:"Diagnostic detail for error events"`
		Locator string  `json:"locator,omitempty" doc:"Locator that failed"`
	}
}

// IntentInput applies a viewer intent.
type IntentInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Type  string  `json:"type" enum:"play,pause,toggle,seek,volume,mute,unmute" doc:"Viewer intent"`
		Value float64 `json:"value,omitempty" doc:"Seek target in seconds or volume in [0,1]"`
	}
}

// HistoryInput is the input for a lesson's playback history.
type HistoryInput struct {
	LessonID string `path:"lesson_id" doc:"Lesson ID"`
	Limit    int    `query:"limit" minimum:"0" maximum:"500" doc:"Maximum number of records (default 50)"`
}

// HistoryOutput is the playback history of a lesson.
type HistoryOutput struct {
	Body struct {
		Records []*models.PlaybackRecord `json:"records"`
	}
}

// OutcomesOutput counts playback records by outcome.
type OutcomesOutput struct {
	Body struct {
		Outcomes map[models.PlaybackOutcome]int64 `json:"outcomes"`
	}
}

// Register registers the session routes with the API.
func (h *SessionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "openSession",
		Method:        "POST",
		Path:          "/api/v1/sessions",
		Summary:       "Open playback session",
		Description:   "Resolves a lesson, negotiates playback for the calling browser and opens a session",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
	}, h.Open)

	huma.Register(api, huma.Operation{
		OperationID: "listSessions",
		Method:      "GET",
		Path:        "/api/v1/sessions",
		Summary:     "List sessions",
		Tags:        []string{"Sessions"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getSession",
		Method:      "GET",
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get session",
		Tags:        []string{"Sessions"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "postSessionEvent",
		Method:      "POST",
		Path:        "/api/v1/sessions/{id}/events",
		Summary:     "Deliver media event",
		Description: "Delivers a media element event (ready, timeupdate, duration, error, ended) to a session",
		Tags:        []string{"Sessions"},
	}, h.Event)

	huma.Register(api, huma.Operation{
		OperationID: "postSessionIntent",
		Method:      "POST",
		Path:        "/api/v1/sessions/{id}/intents",
		Summary:     "Apply viewer intent",
		Tags:        []string{"Sessions"},
	}, h.Intent)

	huma.Register(api, huma.Operation{
		OperationID: "retrySession",
		Method:      "POST",
		Path:        "/api/v1/sessions/{id}/retry",
		Summary:     "Retry playback",
		Description: "Re-derives the sources of an errored session and reloads it",
		Tags:        []string{"Sessions"},
	}, h.Retry)

	huma.Register(api, huma.Operation{
		OperationID:   "closeSession",
		Method:        "DELETE",
		Path:          "/api/v1/sessions/{id}",
		Summary:       "Close session",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusNoContent,
	}, h.Close)

	huma.Register(api, huma.Operation{
		OperationID: "getLessonPlaybacks",
		Method:      "GET",
		Path:        "/api/v1/lessons/{lesson_id}/playbacks",
		Summary:     "Lesson playback history",
		Tags:        []string{"Sessions"},
	}, h.History)

	huma.Register(api, huma.Operation{
		OperationID: "getPlaybackOutcomes",
		Method:      "GET",
		Path:        "/api/v1/playbacks/outcomes",
		Summary:     "Playback outcome counts",
		Tags:        []string{"Sessions"},
	}, h.Outcomes)
}

// RegisterSSE registers the notification stream on a chi router.
// This is separate from Register because Huma doesn't support SSE streaming natively.
func (h *SessionHandler) RegisterSSE(router chi.Router) {
	if h.hub == nil {
		return
	}
	router.Get("/api/v1/sessions/{id}/notifications", h.handleNotifications)
}

// Open opens a playback session.
func (h *SessionHandler) Open(ctx context.Context, input *OpenSessionInput) (*OpenSessionOutput, error) {
	env := input.environment(input.Body.report())
	result, err := h.service.Open(ctx, service.OpenRequest{
		LessonID:            input.Body.LessonID,
		Slot:                input.Body.Slot,
		UserID:              input.UserID,
		Env:                 env,
		AvailableExtensions: input.Body.AvailableExtensions,
		Hint:                input.Body.hint(env),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &OpenSessionOutput{
		Body: SessionResponse{
			Session:     result.Session,
			Lesson:      result.Lesson,
			Negotiation: negotiationResponse(result.Negotiation, result.Lesson.VideoURL),
		},
	}, nil
}

// List returns every live session.
func (h *SessionHandler) List(ctx context.Context, input *struct{}) (*ListSessionsOutput, error) {
	out := &ListSessionsOutput{}
	out.Body.Sessions = h.service.List()
	if out.Body.Sessions == nil {
		out.Body.Sessions = []session.Snapshot{}
	}
	return out, nil
}

// Get returns a session snapshot.
func (h *SessionHandler) Get(ctx context.Context, input *SessionIDInput) (*SessionOutput, error) {
	id, err := parseSessionID(input.ID)
	if err != nil {
		return nil, err
	}
	snap, err := h.service.Get(id)
	if err != nil {
		return nil, mapError(err)
	}
	return &SessionOutput{Body: snap}, nil
}

// Event delivers a media element event.
func (h *SessionHandler) Event(ctx context.Context, input *EventInput) (*SessionOutput, error) {
	id, err := parseSessionID(input.ID)
	if err != nil {
		return nil, err
	}
	snap, err := h.service.HandleEvent(id, service.Event{
		Type:    service.EventType(input.Body.Type),
		Value:   input.Body.Value,
		Code:    session.MediaErrorCode(input.Body.Code),
		Detail:  input.Body.Detail,
		Locator: input.Body.Locator,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return &SessionOutput{Body: snap}, nil
}

// Intent applies a viewer intent.
func (h *SessionHandler) Intent(ctx context.Context, input *IntentInput) (*SessionOutput, error) {
	id, err := parseSessionID(input.ID)
	if err != nil {
		return nil, err
	}
	snap, err := h.service.HandleIntent(id, service.Intent{
		Type:  service.IntentType(input.Body.Type),
		Value: input.Body.Value,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return &SessionOutput{Body: snap}, nil
}

// Retry retries an errored session.
func (h *SessionHandler) Retry(ctx context.Context, input *SessionIDInput) (*SessionOutput, error) {
	id, err := parseSessionID(input.ID)
	if err != nil {
		return nil, err
	}
	snap, err := h.service.Retry(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &SessionOutput{Body: snap}, nil
}

// Close detaches a session.
func (h *SessionHandler) Close(ctx context.Context, input *SessionIDInput) (*struct{}, error) {
	id, err := parseSessionID(input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.service.Close(ctx, id); err != nil {
		return nil, mapError(err)
	}
	return nil, nil
}

// History returns recent playback records of a lesson.
func (h *SessionHandler) History(ctx context.Context, input *HistoryInput) (*HistoryOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	records, err := h.service.History(ctx, input.LessonID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &HistoryOutput{}
	out.Body.Records = records
	if out.Body.Records == nil {
		out.Body.Records = []*models.PlaybackRecord{}
	}
	return out, nil
}

// Outcomes counts playback records by outcome.
func (h *SessionHandler) Outcomes(ctx context.Context, input *struct{}) (*OutcomesOutput, error) {
	counts, err := h.service.OutcomeCounts(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	out := &OutcomesOutput{}
	out.Body.Outcomes = counts
	return out, nil
}

// handleNotifications streams the notifications of one session as SSE.
// The stream opens with a snapshot event and ends when the client goes away
// or the hub closes.
func (h *SessionHandler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context())

	id, err := models.ParseULID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	snap, err := h.service.Get(id)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	sub := h.hub.Subscribe(id)
	defer h.hub.Unsubscribe(sub.ID)

	if err := writeSSE(w, "snapshot", snap); err != nil {
		logger.Error("failed to write SSE snapshot", slog.Any("error", err))
		return
	}
	if err := rc.Flush(); err != nil {
		logger.Debug("initial flush failed, client likely disconnected", slog.Any("error", err))
		return
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				logger.Debug("heartbeat flush failed, client likely disconnected", slog.Any("error", err))
				return
			}
		case n, ok := <-sub.Notifications:
			if !ok {
				return
			}
			if err := writeSSE(w, string(n.Kind), n); err != nil {
				logger.Error("failed to write SSE notification",
					slog.String("session_id", id.String()),
					slog.String("kind", string(n.Kind)),
					slog.Any("error", err),
				)
				return
			}
			if err := rc.Flush(); err != nil {
				logger.Debug("notification flush failed, client likely disconnected", slog.Any("error", err))
				return
			}
		}
	}
}

// writeSSE writes one event in a single write.
func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}
	message := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data))
	n, err := w.Write(message)
	if err != nil {
		return err
	}
	if n < len(message) {
		return fmt.Errorf("short write: wrote %d of %d bytes", n, len(message))
	}
	return nil
}
