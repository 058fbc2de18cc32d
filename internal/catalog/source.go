package catalog

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Catalog errors.
var (
	// ErrLessonNotFound is returned when the catalog has no lesson with the given ID.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrForbidden is returned when the catalog rejects the credentials.
	ErrForbidden = errors.New("catalog access forbidden")
	// ErrUnavailable is returned when the catalog cannot be reached.
	ErrUnavailable = errors.New("catalog unavailable")
)

// LessonSource resolves lessons.
type LessonSource interface {
	// GetLesson returns one lesson or ErrLessonNotFound.
	GetLesson(ctx context.Context, id string) (*Lesson, error)
	// ListCourseLessons returns the lessons of a course ordered by Order.
	ListCourseLessons(ctx context.Context, courseID string) ([]Lesson, error)
}

// StaticSource serves a fixed set of lessons.
type StaticSource struct {
	mu      sync.RWMutex
	lessons map[string]Lesson
}

// NewStaticSource creates a source holding lessons.
func NewStaticSource(lessons ...Lesson) *StaticSource {
	s := &StaticSource{lessons: make(map[string]Lesson, len(lessons))}
	for _, l := range lessons {
		s.lessons[l.ID] = l
	}
	return s
}

// Put adds or replaces a lesson.
func (s *StaticSource) Put(l Lesson) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[l.ID] = l
}

// GetLesson implements LessonSource.
func (s *StaticSource) GetLesson(_ context.Context, id string) (*Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lessons[id]
	if !ok {
		return nil, ErrLessonNotFound
	}
	return &l, nil
}

// ListCourseLessons implements LessonSource.
func (s *StaticSource) ListCourseLessons(_ context.Context, courseID string) ([]Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Lesson
	for _, l := range s.lessons {
		if l.CourseID() == courseID {
			out = append(out, l)
		}
	}
	sortLessons(out)
	return out, nil
}

func sortLessons(lessons []Lesson) {
	slices.SortStableFunc(lessons, func(a, b Lesson) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
