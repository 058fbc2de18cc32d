package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrSessionIDRequired indicates a playback record without a session.
	ErrSessionIDRequired = errors.New("session_id is required")

	// ErrLessonIDRequired indicates a missing lesson reference.
	ErrLessonIDRequired = errors.New("lesson_id is required")

	// ErrCourseIDRequired indicates a missing course reference.
	ErrCourseIDRequired = errors.New("course_id is required")

	// ErrUserIDRequired indicates a missing user reference.
	ErrUserIDRequired = errors.New("user_id is required")

	// ErrLessonNotFound indicates the catalog has no such lesson.
	ErrLessonNotFound = errors.New("lesson not found")

	// ErrCourseProgressNotFound indicates no progress exists for a user and course.
	ErrCourseProgressNotFound = errors.New("course progress not found")
)
