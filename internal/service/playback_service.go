package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/pianola/internal/catalog"
	"github.com/jmylchreest/pianola/internal/metrics"
	"github.com/jmylchreest/pianola/internal/models"
	"github.com/jmylchreest/pianola/internal/playability"
	"github.com/jmylchreest/pianola/internal/repository"
	"github.com/jmylchreest/pianola/internal/session"
)

// Service-level errors for playback.
var (
	// ErrLessonNotFound is returned when the catalog has no such lesson.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrLessonHasNoVideo is returned when a lesson has no video locator.
	ErrLessonHasNoVideo = errors.New("lesson has no video")
	// ErrCatalogUnavailable is returned when the lesson catalog cannot be reached.
	ErrCatalogUnavailable = errors.New("lesson catalog unavailable")
	// ErrUnknownEvent is returned for media events the session does not know.
	ErrUnknownEvent = errors.New("unknown media event")
	// ErrUnknownIntent is returned for viewer intents the session does not know.
	ErrUnknownIntent = errors.New("unknown playback intent")
)

// recordWriteTimeout bounds record updates issued from session callbacks.
const recordWriteTimeout = 5 * time.Second

// OpenRequest asks for a playback session for one lesson.
type OpenRequest struct {
	LessonID string
	// Slot identifies the viewer's player. Opening a session for a slot
	// detaches the previous session of that slot.
	Slot   string
	UserID string
	// Env answers probes for the viewer's browser.
	Env                 playability.Environment
	AvailableExtensions []string
	Hint                *playability.ConnectionHint
}

// OpenResult is the outcome of opening a session.
type OpenResult struct {
	Lesson      catalog.Lesson
	Negotiation playability.Negotiation
	Session     session.Snapshot
}

// EventType names a media element event.
type EventType string

// Media element events.
const (
	EventReady      EventType = "ready"
	EventTimeUpdate EventType = "timeupdate"
	EventDuration   EventType = "duration"
	EventError      EventType = "error"
	EventEnded      EventType = "ended"
)

// Event is a media element signal for a session.
type Event struct {
	Type  EventType
	Value float64
	// Code, Detail and Locator describe an error event.
	Code    session.MediaErrorCode
	Detail  string
	Locator string
}

// IntentType names a viewer intent.
type IntentType string

// Viewer intents.
const (
	IntentPlay   IntentType = "play"
	IntentPause  IntentType = "pause"
	IntentToggle IntentType = "toggle"
	IntentSeek   IntentType = "seek"
	IntentVolume IntentType = "volume"
	IntentMute   IntentType = "mute"
	IntentUnmute IntentType = "unmute"
)

// Intent is a viewer action for a session.
type Intent struct {
	Type  IntentType
	Value float64
}

// PlaybackService opens lesson playback sessions and keeps their history.
type PlaybackService struct {
	lessons    catalog.LessonSource
	negotiator *playability.Negotiator
	manager    *session.Manager
	records    repository.PlaybackRecordRepository
	progress   *ProgressService
	logger     *slog.Logger

	errorMessage string
	volume       *float64
}

// NewPlaybackService creates a new playback service. records and progress
// may be nil, in which case nothing is persisted.
func NewPlaybackService(
	lessons catalog.LessonSource,
	negotiator *playability.Negotiator,
	manager *session.Manager,
	records repository.PlaybackRecordRepository,
	progress *ProgressService,
) *PlaybackService {
	return &PlaybackService{
		lessons:    lessons,
		negotiator: negotiator,
		manager:    manager,
		records:    records,
		progress:   progress,
		logger:     slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *PlaybackService) WithLogger(logger *slog.Logger) *PlaybackService {
	s.logger = logger
	return s
}

// WithPlaybackDefaults sets the error message shown on playback failure and
// the initial volume of new sessions.
func (s *PlaybackService) WithPlaybackDefaults(errorMessage string, volume float64) *PlaybackService {
	s.errorMessage = errorMessage
	s.volume = &volume
	return s
}

// Negotiate runs playability negotiation for one environment.
func (s *PlaybackService) Negotiate(env playability.Environment, req playability.NegotiationRequest) playability.Negotiation {
	result := s.negotiator.Negotiate(env, req)
	metrics.RecordNegotiation(result.Profile.Engine().String(), result.BestFormat)
	return result
}

// Capabilities probes env and returns its capability report.
func (s *PlaybackService) Capabilities(env playability.Environment) playability.CapabilityReport {
	return s.negotiator.Prober().Probe(env).Report()
}

// Open resolves the lesson, negotiates for the viewer and opens a session.
func (s *PlaybackService) Open(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	lesson, err := s.lessons.GetLesson(ctx, req.LessonID)
	if err != nil {
		return nil, mapCatalogError(err)
	}
	if strings.TrimSpace(lesson.VideoURL) == "" {
		return nil, ErrLessonHasNoVideo
	}

	env := playability.Memoize(req.Env)
	negotiation := s.Negotiate(env, playability.NegotiationRequest{
		Locator:             lesson.VideoURL,
		AvailableExtensions: req.AvailableExtensions,
		Hint:                req.Hint,
	})

	if req.Slot != "" {
		if prev, err := s.manager.BySlot(req.Slot); err == nil {
			s.abandon(ctx, prev)
		}
	}

	id := models.NewULID()
	if s.records != nil {
		record := &models.PlaybackRecord{
			SessionID:     id,
			LessonID:      lesson.ID,
			CourseID:      lesson.CourseID(),
			UserID:        req.UserID,
			Engine:        negotiation.Profile.Engine().String(),
			EngineVersion: negotiation.Profile.EngineVersion(),
			BestFormat:    negotiation.BestFormat,
			Quality:       string(negotiation.Quality),
			SourceCount:   len(negotiation.Sources),
		}
		if err := s.records.Create(ctx, record); err != nil {
			s.logger.Error("failed to persist playback record",
				slog.String("session_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	tracker := &sessionTracker{service: s, sessionID: id, userID: req.UserID, courseID: lesson.CourseID(), lessonID: lesson.ID}

	ctrl := s.manager.Open(session.Options{
		ID:             id,
		LessonID:       lesson.ID,
		Slot:           req.Slot,
		Locator:        lesson.VideoURL,
		InitialSources: negotiation.Sources,
		Sources: session.SourceProviderFunc(func(locator string) []playability.SourceDescriptor {
			return s.negotiator.Sources(env, locator)
		}),
		ErrorMessage: s.errorMessage,
		Volume:       s.volume,
		Callbacks:    tracker.callbacks(),
	})
	tracker.ctrl.Store(ctrl)
	metrics.RecordSessionOpened()
	s.publishSessionGauge()

	s.logger.Info("playback session opened",
		slog.String("session_id", id.String()),
		slog.String("lesson_id", lesson.ID),
		slog.String("engine", negotiation.Profile.Engine().String()),
		slog.String("best_format", negotiation.BestFormat),
	)

	return &OpenResult{
		Lesson:      *lesson,
		Negotiation: negotiation,
		Session:     ctrl.Snapshot(),
	}, nil
}

// Get returns the snapshot of a session.
func (s *PlaybackService) Get(id models.ULID) (session.Snapshot, error) {
	ctrl, err := s.manager.Get(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// List returns snapshots of every live session.
func (s *PlaybackService) List() []session.Snapshot {
	return s.manager.List()
}

// HandleEvent delivers a media element event to a session.
func (s *PlaybackService) HandleEvent(id models.ULID, event Event) (session.Snapshot, error) {
	ctrl, err := s.manager.Get(id)
	if err != nil {
		return session.Snapshot{}, err
	}

	switch event.Type {
	case EventReady:
		err = ctrl.HandleReady()
	case EventTimeUpdate:
		err = ctrl.HandleTimeUpdate(event.Value)
	case EventDuration:
		err = ctrl.HandleDurationKnown(event.Value)
	case EventError:
		err = ctrl.HandleError(session.MediaError{Code: event.Code, Detail: event.Detail, Locator: event.Locator})
		if err == nil {
			metrics.RecordPlaybackError(event.Code.String())
		}
	case EventEnded:
		err = ctrl.HandleEnded()
	default:
		return session.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownEvent, event.Type)
	}
	if err != nil {
		return session.Snapshot{}, err
	}

	metrics.RecordSessionEvent(string(event.Type))
	return ctrl.Snapshot(), nil
}

// HandleIntent applies a viewer intent to a session.
func (s *PlaybackService) HandleIntent(id models.ULID, intent Intent) (session.Snapshot, error) {
	ctrl, err := s.manager.Get(id)
	if err != nil {
		return session.Snapshot{}, err
	}

	switch intent.Type {
	case IntentPlay:
		err = ctrl.Play()
	case IntentPause:
		err = ctrl.Pause()
	case IntentToggle:
		err = ctrl.TogglePlay()
	case IntentSeek:
		err = ctrl.Seek(intent.Value)
	case IntentVolume:
		err = ctrl.SetVolume(intent.Value)
	case IntentMute:
		err = ctrl.SetMuted(true)
	case IntentUnmute:
		err = ctrl.SetMuted(false)
	default:
		return session.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownIntent, intent.Type)
	}
	if err != nil {
		return session.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// Retry re-derives the sources of an errored session and reloads it.
func (s *PlaybackService) Retry(ctx context.Context, id models.ULID) (session.Snapshot, error) {
	ctrl, err := s.manager.Get(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := ctrl.Retry(); err != nil {
		return session.Snapshot{}, err
	}
	metrics.RecordPlaybackRetry()

	s.updateRecord(ctx, id, func(r *models.PlaybackRecord) {
		r.MarkRetried()
	})
	return ctrl.Snapshot(), nil
}

// Close detaches a session.
func (s *PlaybackService) Close(ctx context.Context, id models.ULID) error {
	ctrl, err := s.manager.Get(id)
	if err != nil {
		return err
	}
	s.abandon(ctx, ctrl)
	if err := s.manager.Close(id); err != nil {
		return err
	}
	s.publishSessionGauge()
	return nil
}

// PruneSessions drops idle sessions and returns how many were removed.
func (s *PlaybackService) PruneSessions(olderThan time.Duration) int {
	removed := s.manager.Prune(olderThan)
	metrics.RecordPruned("sessions", removed)
	s.publishSessionGauge()
	return removed
}

// PruneRecords deletes playback records older than retention. A zero
// retention keeps records forever.
func (s *PlaybackService) PruneRecords(ctx context.Context, retention time.Duration) (int64, error) {
	if s.records == nil || retention <= 0 {
		return 0, nil
	}
	deleted, err := s.records.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("pruning playback records: %w", err)
	}
	metrics.RecordPruned("records", int(deleted))
	return deleted, nil
}

// History returns the most recent playback records of a lesson.
func (s *PlaybackService) History(ctx context.Context, lessonID string, limit int) ([]*models.PlaybackRecord, error) {
	if s.records == nil {
		return nil, nil
	}
	return s.records.ListByLesson(ctx, lessonID, limit)
}

// OutcomeCounts counts playback records per outcome.
func (s *PlaybackService) OutcomeCounts(ctx context.Context) (map[models.PlaybackOutcome]int64, error) {
	if s.records == nil {
		return map[models.PlaybackOutcome]int64{}, nil
	}
	return s.records.CountByOutcome(ctx)
}

// abandon marks the record of ctrl as abandoned with its last position.
func (s *PlaybackService) abandon(ctx context.Context, ctrl *session.Controller) {
	snap := ctrl.Snapshot()
	s.updateRecord(ctx, snap.ID, func(r *models.PlaybackRecord) {
		r.PositionSeconds = snap.PositionSeconds
		r.DurationSeconds = snap.DurationSeconds
		r.MarkAbandoned()
	})
}

func (s *PlaybackService) updateRecord(ctx context.Context, id models.ULID, mutate func(r *models.PlaybackRecord)) {
	if s.records == nil {
		return
	}

	record, err := s.records.GetBySessionID(ctx, id)
	if err != nil || record == nil {
		if err != nil {
			s.logger.Warn("failed to load playback record",
				slog.String("session_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	mutate(record)
	if err := s.records.Update(ctx, record); err != nil {
		s.logger.Warn("failed to update playback record",
			slog.String("session_id", id.String()),
			slog.String("error", err.Error()),
		)
	}
}

// SessionCounts counts live sessions by state.
func (s *PlaybackService) SessionCounts() map[string]int {
	counts := s.manager.CountByState()
	out := make(map[string]int, len(counts))
	for state, n := range counts {
		out[string(state)] = n
	}
	return out
}

func (s *PlaybackService) publishSessionGauge() {
	metrics.SetActiveSessions(s.SessionCounts())
}

func mapCatalogError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrLessonNotFound):
		return ErrLessonNotFound
	case errors.Is(err, catalog.ErrForbidden), errors.Is(err, catalog.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	default:
		return fmt.Errorf("resolving lesson: %w", err)
	}
}

// sessionTracker persists the outcome of one session from its callbacks.
// Callbacks run while event delivery to the session is serialized, so they
// only read the controller and never deliver events to it.
type sessionTracker struct {
	service   *PlaybackService
	ctrl      atomic.Pointer[session.Controller]
	sessionID models.ULID
	userID    string
	courseID  string
	lessonID  string
}

func (t *sessionTracker) callbacks() session.Callbacks {
	return session.Callbacks{
		OnError: func(string) {
			snap := t.snapshot()
			t.update(func(r *models.PlaybackRecord) {
				r.PositionSeconds = snap.PositionSeconds
				r.MarkErrored(snap.LastErrorDetail, snap.AttemptedLocator)
			})
		},
		OnDurationKnown: func(d float64) {
			t.update(func(r *models.PlaybackRecord) {
				r.DurationSeconds = d
			})
		},
		OnEnded: t.ended,
	}
}

func (t *sessionTracker) ended() {
	snap := t.snapshot()
	metrics.RecordLessonCompletion()

	t.update(func(r *models.PlaybackRecord) {
		r.PositionSeconds = snap.PositionSeconds
		r.DurationSeconds = snap.DurationSeconds
		r.MarkCompleted()
	})

	if t.service.progress == nil || t.userID == "" || t.courseID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordWriteTimeout)
	defer cancel()
	if _, err := t.service.progress.MarkLessonCompleted(ctx, t.userID, t.courseID, t.lessonID); err != nil {
		t.service.logger.Error("failed to record lesson completion",
			slog.String("session_id", t.sessionID.String()),
			slog.String("lesson_id", t.lessonID),
			slog.String("error", err.Error()),
		)
	}
}

func (t *sessionTracker) snapshot() session.Snapshot {
	ctrl := t.ctrl.Load()
	if ctrl == nil {
		return session.Snapshot{ID: t.sessionID, LessonID: t.lessonID}
	}
	return ctrl.Snapshot()
}

func (t *sessionTracker) update(mutate func(r *models.PlaybackRecord)) {
	ctx, cancel := context.WithTimeout(context.Background(), recordWriteTimeout)
	defer cancel()
	t.service.updateRecord(ctx, t.sessionID, mutate)
}
