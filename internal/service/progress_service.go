package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmylchreest/pianola/internal/catalog"
	"github.com/jmylchreest/pianola/internal/models"
	"github.com/jmylchreest/pianola/internal/repository"
)

// ErrUserRequired is returned when a progress operation has no user.
var ErrUserRequired = errors.New("user is required")

// CourseProgressView is the progress of a user through one course.
type CourseProgressView struct {
	CourseID           string       `json:"courseId"`
	CompletedLessons   []string     `json:"completedLessons"`
	LastAccessedLesson string       `json:"lastAccessedLesson,omitempty"`
	CompletionDate     *models.Time `json:"completionDate,omitempty"`
	TotalLessons       int          `json:"totalLessons"`
	Percent            float64      `json:"percent"`
}

// ProgressUpdate replaces parts of a progress record. Nil fields are left
// unchanged.
type ProgressUpdate struct {
	CompletedLessons   *[]string
	LastAccessedLesson *string
}

// ProgressService tracks course progress per user.
type ProgressService struct {
	repo    repository.CourseProgressRepository
	lessons catalog.LessonSource
	logger  *slog.Logger

	// mu serializes read-modify-write cycles on progress records.
	mu sync.Mutex
}

// NewProgressService creates a new progress service. lessons may be nil, in
// which case course totals are unknown and courses never complete.
func NewProgressService(repo repository.CourseProgressRepository, lessons catalog.LessonSource) *ProgressService {
	return &ProgressService{
		repo:    repo,
		lessons: lessons,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *ProgressService) WithLogger(logger *slog.Logger) *ProgressService {
	s.logger = logger
	return s
}

// Get returns the progress of userID in courseID. A user without progress
// gets an empty view.
func (s *ProgressService) Get(ctx context.Context, userID, courseID string) (*CourseProgressView, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	progress, err := s.repo.Get(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = &models.CourseProgress{UserID: userID, CourseID: courseID}
	}
	return s.view(progress, s.courseLessons(ctx, courseID)), nil
}

// Update applies a partial update to the progress of userID in courseID.
func (s *ProgressService) Update(ctx context.Context, userID, courseID string, update ProgressUpdate) (*CourseProgressView, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	progress, err := s.load(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	if update.CompletedLessons != nil {
		progress.CompletedLessons = models.StringList{}
		for _, id := range *update.CompletedLessons {
			if id != "" && !progress.CompletedLessons.Contains(id) {
				progress.CompletedLessons = append(progress.CompletedLessons, id)
			}
		}
		progress.CompletionDate = nil
	}
	if update.LastAccessedLesson != nil {
		progress.LastAccessedLesson = *update.LastAccessedLesson
	}

	lessons := s.courseLessons(ctx, courseID)
	progress.UpdateCompletion(lessons)

	if err := s.repo.Save(ctx, progress); err != nil {
		return nil, err
	}
	return s.view(progress, lessons), nil
}

// MarkLessonCompleted records that userID finished lessonID of courseID.
func (s *ProgressService) MarkLessonCompleted(ctx context.Context, userID, courseID, lessonID string) (*CourseProgressView, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	progress, err := s.load(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	added := progress.MarkLessonCompleted(lessonID)
	lessons := s.courseLessons(ctx, courseID)
	completedCourse := progress.UpdateCompletion(lessons)

	if err := s.repo.Save(ctx, progress); err != nil {
		return nil, err
	}

	s.logger.Info("lesson completed",
		slog.String("user_id", userID),
		slog.String("course_id", courseID),
		slog.String("lesson_id", lessonID),
		slog.Bool("first_completion", added),
		slog.Bool("course_completed", completedCourse),
	)
	return s.view(progress, lessons), nil
}

// ListByUser returns the progress of userID across courses.
func (s *ProgressService) ListByUser(ctx context.Context, userID string) ([]*models.CourseProgress, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	return s.repo.ListByUser(ctx, userID)
}

// Reset deletes the progress of userID in courseID.
func (s *ProgressService) Reset(ctx context.Context, userID, courseID string) error {
	if userID == "" {
		return ErrUserRequired
	}
	return s.repo.Delete(ctx, userID, courseID)
}

func (s *ProgressService) load(ctx context.Context, userID, courseID string) (*models.CourseProgress, error) {
	progress, err := s.repo.Get(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("loading course progress: %w", err)
	}
	if progress == nil {
		progress = &models.CourseProgress{UserID: userID, CourseID: courseID, CompletedLessons: models.StringList{}}
	}
	return progress, nil
}

// courseLessons returns the lesson IDs of a course, or nil when the catalog
// cannot tell.
func (s *ProgressService) courseLessons(ctx context.Context, courseID string) []string {
	if s.lessons == nil {
		return nil
	}
	lessons, err := s.lessons.ListCourseLessons(ctx, courseID)
	if err != nil {
		s.logger.Warn("failed to list course lessons",
			slog.String("course_id", courseID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	ids := make([]string, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	return ids
}

func (s *ProgressService) view(p *models.CourseProgress, lessons []string) *CourseProgressView {
	completed := []string(p.CompletedLessons)
	if completed == nil {
		completed = []string{}
	}
	return &CourseProgressView{
		CourseID:           p.CourseID,
		CompletedLessons:   completed,
		LastAccessedLesson: p.LastAccessedLesson,
		CompletionDate:     p.CompletionDate,
		TotalLessons:       len(lessons),
		Percent:            p.Percent(len(lessons)),
	}
}
