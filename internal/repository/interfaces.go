// Package repository defines data access interfaces for pianola entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/jmylchreest/pianola/internal/models"
)

// PlaybackRecordRepository defines operations for playback record persistence.
type PlaybackRecordRepository interface {
	// Create creates a new playback record.
	Create(ctx context.Context, record *models.PlaybackRecord) error
	// GetBySessionID retrieves the record of a session. Returns nil if not found.
	GetBySessionID(ctx context.Context, sessionID models.ULID) (*models.PlaybackRecord, error)
	// ListByLesson retrieves the most recent records of a lesson, newest first.
	ListByLesson(ctx context.Context, lessonID string, limit int) ([]*models.PlaybackRecord, error)
	// Update updates an existing playback record.
	Update(ctx context.Context, record *models.PlaybackRecord) error
	// CountByOutcome counts records per outcome.
	CountByOutcome(ctx context.Context) (map[models.PlaybackOutcome]int64, error)
	// DeleteOlderThan deletes records created before cutoff and returns the count.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CourseProgressRepository defines operations for course progress persistence.
type CourseProgressRepository interface {
	// Get retrieves progress for a user and course. Returns nil if not found.
	Get(ctx context.Context, userID, courseID string) (*models.CourseProgress, error)
	// ListByUser retrieves all progress records of a user.
	ListByUser(ctx context.Context, userID string) ([]*models.CourseProgress, error)
	// Save creates or updates a progress record.
	Save(ctx context.Context, progress *models.CourseProgress) error
	// Delete deletes the progress of a user for a course.
	Delete(ctx context.Context, userID, courseID string) error
}
