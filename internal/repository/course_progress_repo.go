package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/pianola/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// courseProgressRepo implements CourseProgressRepository using GORM.
type courseProgressRepo struct {
	db *gorm.DB
}

// NewCourseProgressRepository creates a new CourseProgressRepository.
func NewCourseProgressRepository(db *gorm.DB) *courseProgressRepo {
	return &courseProgressRepo{db: db}
}

// Get retrieves progress for a user and course.
func (r *courseProgressRepo) Get(ctx context.Context, userID, courseID string) (*models.CourseProgress, error) {
	var progress models.CourseProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&progress).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting course progress: %w", err)
	}
	return &progress, nil
}

// ListByUser retrieves all progress records of a user.
func (r *courseProgressRepo) ListByUser(ctx context.Context, userID string) ([]*models.CourseProgress, error) {
	var records []*models.CourseProgress
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing course progress by user: %w", err)
	}
	return records, nil
}

// Save creates or updates a progress record. A record for the same user and
// course replaces the stored lesson list, last accessed lesson and
// completion date.
func (r *courseProgressRepo) Save(ctx context.Context, progress *models.CourseProgress) error {
	if progress.ID.IsZero() {
		existing, err := r.Get(ctx, progress.UserID, progress.CourseID)
		if err != nil {
			return err
		}
		if existing != nil {
			progress.ID = existing.ID
			progress.CreatedAt = existing.CreatedAt
		}
	}

	if !progress.ID.IsZero() {
		if err := r.db.WithContext(ctx).Save(progress).Error; err != nil {
			return fmt.Errorf("saving course progress: %w", err)
		}
		return nil
	}

	// Insert, tolerating a concurrent insert for the same user and course.
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"completed_lessons", "last_accessed_lesson", "completion_date", "updated_at",
		}),
	}).Create(progress).Error
	if err != nil {
		return fmt.Errorf("saving course progress: %w", err)
	}
	return nil
}

// Delete deletes the progress of a user for a course.
func (r *courseProgressRepo) Delete(ctx context.Context, userID, courseID string) error {
	err := r.db.WithContext(ctx).
		Unscoped().
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&models.CourseProgress{}).Error
	if err != nil {
		return fmt.Errorf("deleting course progress: %w", err)
	}
	return nil
}
