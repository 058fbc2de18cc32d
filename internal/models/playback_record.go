package models

import (
	"gorm.io/gorm"
)

// PlaybackOutcome is the last known result of a playback session.
type PlaybackOutcome string

const (
	// PlaybackOutcomeStarted indicates the session was opened.
	PlaybackOutcomeStarted PlaybackOutcome = "started"
	// PlaybackOutcomeErrored indicates the media element reported an error.
	PlaybackOutcomeErrored PlaybackOutcome = "errored"
	// PlaybackOutcomeCompleted indicates the video played to its end.
	PlaybackOutcomeCompleted PlaybackOutcome = "completed"
	// PlaybackOutcomeAbandoned indicates the session was detached before ending.
	PlaybackOutcomeAbandoned PlaybackOutcome = "abandoned"
)

// PlaybackRecord is the persisted history of one playback session: what was
// negotiated for the viewer and how the attempt went.
type PlaybackRecord struct {
	BaseModel

	// SessionID is the ID of the in-memory playback session.
	SessionID ULID `gorm:"type:varchar(26);not null;uniqueIndex" json:"session_id"`

	LessonID string `gorm:"size:64;not null;index" json:"lesson_id"`
	CourseID string `gorm:"size:64;index" json:"course_id,omitempty"`
	UserID   string `gorm:"size:64;index" json:"user_id,omitempty"`

	// Engine and EngineVersion are the detected browser engine.
	Engine        string `gorm:"size:20" json:"engine"`
	EngineVersion int    `json:"engine_version"`

	// BestFormat is the auto-selected extension; empty means the raw
	// locator was used first.
	BestFormat  string `gorm:"size:10" json:"best_format,omitempty"`
	Quality     string `gorm:"size:10" json:"quality"`
	SourceCount int    `json:"source_count"`

	Outcome  PlaybackOutcome `gorm:"size:20;not null;default:'started';index" json:"outcome"`
	Attempts int             `gorm:"default:1" json:"attempts"`

	// ErrorCount counts transitions into the errored state.
	ErrorCount       int    `gorm:"default:0" json:"error_count"`
	LastErrorDetail  string `gorm:"size:1024" json:"last_error_detail,omitempty"`
	AttemptedLocator string `gorm:"size:2048" json:"attempted_locator,omitempty"`

	PositionSeconds float64 `json:"position_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`

	CompletedAt *Time `json:"completed_at,omitempty"`
}

// TableName returns the table name for PlaybackRecord.
func (PlaybackRecord) TableName() string {
	return "playback_records"
}

// MarkErrored records a playback error.
func (r *PlaybackRecord) MarkErrored(detail, locator string) {
	r.Outcome = PlaybackOutcomeErrored
	r.ErrorCount++
	r.LastErrorDetail = detail
	r.AttemptedLocator = locator
}

// MarkRetried records a retry after an error.
func (r *PlaybackRecord) MarkRetried() {
	r.Outcome = PlaybackOutcomeStarted
	r.Attempts++
}

// MarkCompleted records that the video played to its end.
func (r *PlaybackRecord) MarkCompleted() {
	r.Outcome = PlaybackOutcomeCompleted
	now := Now()
	r.CompletedAt = &now
}

// MarkAbandoned records a detach before completion. Completed and errored
// records keep their outcome.
func (r *PlaybackRecord) MarkAbandoned() {
	if r.Outcome == PlaybackOutcomeStarted {
		r.Outcome = PlaybackOutcomeAbandoned
	}
}

// Validate performs basic validation on the record.
func (r *PlaybackRecord) Validate() error {
	if r.SessionID.IsZero() {
		return ErrSessionIDRequired
	}
	if r.LessonID == "" {
		return ErrLessonIDRequired
	}
	if r.PositionSeconds < 0 {
		return ErrValidation{Field: "position_seconds", Message: "must be non-negative"}
	}
	if r.DurationSeconds < 0 {
		return ErrValidation{Field: "duration_seconds", Message: "must be non-negative"}
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the record and generates ULID.
func (r *PlaybackRecord) BeforeCreate(tx *gorm.DB) error {
	if err := r.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if r.Outcome == "" {
		r.Outcome = PlaybackOutcomeStarted
	}
	return r.Validate()
}

// BeforeUpdate is a GORM hook that validates the record before update.
func (r *PlaybackRecord) BeforeUpdate(_ *gorm.DB) error {
	return r.Validate()
}
