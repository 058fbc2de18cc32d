package models

import (
	"gorm.io/gorm"
)

// CourseProgress tracks which lessons of a course a user has completed.
type CourseProgress struct {
	BaseModel

	UserID   string `gorm:"size:64;not null;uniqueIndex:idx_course_progress_user_course" json:"user_id"`
	CourseID string `gorm:"size:64;not null;uniqueIndex:idx_course_progress_user_course" json:"course_id"`

	// CompletedLessons lists lesson IDs in completion order, without duplicates.
	CompletedLessons StringList `gorm:"type:text" json:"completed_lessons"`

	LastAccessedLesson string `gorm:"size:64" json:"last_accessed_lesson,omitempty"`

	// CompletionDate is set once every lesson of the course is completed.
	CompletionDate *Time `json:"completion_date,omitempty"`
}

// TableName returns the table name for CourseProgress.
func (CourseProgress) TableName() string {
	return "course_progress"
}

// MarkLessonCompleted adds lessonID to the completed lessons and makes it the
// last accessed lesson. It returns false when it was already completed.
func (p *CourseProgress) MarkLessonCompleted(lessonID string) bool {
	p.LastAccessedLesson = lessonID
	if p.CompletedLessons.Contains(lessonID) {
		return false
	}
	p.CompletedLessons = append(p.CompletedLessons, lessonID)
	return true
}

// HasCompleted reports whether lessonID is completed.
func (p *CourseProgress) HasCompleted(lessonID string) bool {
	return p.CompletedLessons.Contains(lessonID)
}

// UpdateCompletion sets CompletionDate when every lesson in courseLessons is
// completed. An empty course never completes. It returns true when the date
// was set by this call.
func (p *CourseProgress) UpdateCompletion(courseLessons []string) bool {
	if p.CompletionDate != nil || len(courseLessons) == 0 {
		return false
	}
	for _, id := range courseLessons {
		if !p.CompletedLessons.Contains(id) {
			return false
		}
	}
	now := Now()
	p.CompletionDate = &now
	return true
}

// Percent returns completion as a percentage of totalLessons.
func (p *CourseProgress) Percent(totalLessons int) float64 {
	if totalLessons <= 0 {
		return 0
	}
	pct := float64(len(p.CompletedLessons)) / float64(totalLessons) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Validate performs basic validation on the progress record.
func (p *CourseProgress) Validate() error {
	if p.UserID == "" {
		return ErrUserIDRequired
	}
	if p.CourseID == "" {
		return ErrCourseIDRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the record and generates ULID.
func (p *CourseProgress) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if p.CompletedLessons == nil {
		p.CompletedLessons = StringList{}
	}
	return p.Validate()
}

// BeforeUpdate is a GORM hook that validates the record before update.
func (p *CourseProgress) BeforeUpdate(_ *gorm.DB) error {
	return p.Validate()
}
