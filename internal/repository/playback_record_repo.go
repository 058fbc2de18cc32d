package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/pianola/internal/models"
	"gorm.io/gorm"
)

// playbackRecordRepo implements PlaybackRecordRepository using GORM.
type playbackRecordRepo struct {
	db *gorm.DB
}

// NewPlaybackRecordRepository creates a new PlaybackRecordRepository.
func NewPlaybackRecordRepository(db *gorm.DB) *playbackRecordRepo {
	return &playbackRecordRepo{db: db}
}

// Create creates a new playback record.
func (r *playbackRecordRepo) Create(ctx context.Context, record *models.PlaybackRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("creating playback record: %w", err)
	}
	return nil
}

// GetBySessionID retrieves the record of a session.
func (r *playbackRecordRepo) GetBySessionID(ctx context.Context, sessionID models.ULID) (*models.PlaybackRecord, error) {
	var record models.PlaybackRecord
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting playback record by session ID: %w", err)
	}
	return &record, nil
}

// ListByLesson retrieves the most recent records of a lesson.
func (r *playbackRecordRepo) ListByLesson(ctx context.Context, lessonID string, limit int) ([]*models.PlaybackRecord, error) {
	var records []*models.PlaybackRecord
	query := r.db.WithContext(ctx).Where("lesson_id = ?", lessonID).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing playback records by lesson: %w", err)
	}
	return records, nil
}

// Update updates an existing playback record.
func (r *playbackRecordRepo) Update(ctx context.Context, record *models.PlaybackRecord) error {
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("updating playback record: %w", err)
	}
	return nil
}

// CountByOutcome counts records per outcome.
func (r *playbackRecordRepo) CountByOutcome(ctx context.Context) (map[models.PlaybackOutcome]int64, error) {
	var rows []struct {
		Outcome models.PlaybackOutcome
		Count   int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.PlaybackRecord{}).
		Select("outcome, COUNT(*) AS count").
		Group("outcome").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("counting playback records by outcome: %w", err)
	}

	counts := make(map[models.PlaybackOutcome]int64, len(rows))
	for _, row := range rows {
		counts[row.Outcome] = row.Count
	}
	return counts, nil
}

// DeleteOlderThan deletes records created before cutoff.
func (r *playbackRecordRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Unscoped().Where("created_at < ?", cutoff).Delete(&models.PlaybackRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting old playback records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
