package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseProgress_MarkLessonCompleted(t *testing.T) {
	p := &CourseProgress{UserID: "user-1", CourseID: "course-1"}

	assert.True(t, p.MarkLessonCompleted("lesson-1"))
	assert.True(t, p.MarkLessonCompleted("lesson-2"))
	assert.False(t, p.MarkLessonCompleted("lesson-1"), "already completed")

	assert.Equal(t, StringList{"lesson-1", "lesson-2"}, p.CompletedLessons)
	assert.Equal(t, "lesson-1", p.LastAccessedLesson)
	assert.True(t, p.HasCompleted("lesson-2"))
	assert.False(t, p.HasCompleted("lesson-3"))
}

func TestCourseProgress_UpdateCompletion(t *testing.T) {
	p := &CourseProgress{UserID: "user-1", CourseID: "course-1"}
	course := []string{"lesson-1", "lesson-2"}

	assert.False(t, p.UpdateCompletion(nil), "empty course never completes")

	p.MarkLessonCompleted("lesson-1")
	assert.False(t, p.UpdateCompletion(course))
	assert.Nil(t, p.CompletionDate)

	p.MarkLessonCompleted("lesson-2")
	assert.True(t, p.UpdateCompletion(course))
	require.NotNil(t, p.CompletionDate)

	first := *p.CompletionDate
	assert.False(t, p.UpdateCompletion(course), "completion date is set once")
	assert.Equal(t, first, *p.CompletionDate)
}

func TestCourseProgress_Percent(t *testing.T) {
	p := &CourseProgress{CompletedLessons: StringList{"a", "b", "c"}}

	assert.InDelta(t, 75.0, p.Percent(4), 0.001)
	assert.InDelta(t, 100.0, p.Percent(2), 0.001)
	assert.Zero(t, p.Percent(0))
}

func TestCourseProgress_Validate(t *testing.T) {
	tests := []struct {
		name     string
		progress CourseProgress
		err      error
	}{
		{"valid", CourseProgress{UserID: "u", CourseID: "c"}, nil},
		{"missing user", CourseProgress{CourseID: "c"}, ErrUserIDRequired},
		{"missing course", CourseProgress{UserID: "u"}, ErrCourseIDRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.progress.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPlaybackRecord_Lifecycle(t *testing.T) {
	r := &PlaybackRecord{SessionID: NewULID(), LessonID: "lesson-1", Outcome: PlaybackOutcomeStarted, Attempts: 1}
	require.NoError(t, r.Validate())

	r.MarkErrored("network", "https://cdn/x/lesson1.mp4")
	assert.Equal(t, PlaybackOutcomeErrored, r.Outcome)
	assert.Equal(t, 1, r.ErrorCount)
	assert.Equal(t, "https://cdn/x/lesson1.mp4", r.AttemptedLocator)

	r.MarkRetried()
	assert.Equal(t, PlaybackOutcomeStarted, r.Outcome)
	assert.Equal(t, 2, r.Attempts)

	r.MarkCompleted()
	assert.Equal(t, PlaybackOutcomeCompleted, r.Outcome)
	assert.NotNil(t, r.CompletedAt)

	r.MarkAbandoned()
	assert.Equal(t, PlaybackOutcomeCompleted, r.Outcome, "completed records stay completed")
}

func TestPlaybackRecord_Validate(t *testing.T) {
	tests := []struct {
		name   string
		record PlaybackRecord
		field  string
		err    error
	}{
		{"missing session", PlaybackRecord{LessonID: "l"}, "", ErrSessionIDRequired},
		{"missing lesson", PlaybackRecord{SessionID: NewULID()}, "", ErrLessonIDRequired},
		{"negative position", PlaybackRecord{SessionID: NewULID(), LessonID: "l", PositionSeconds: -1}, "position_seconds", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			require.Error(t, err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			var verr ErrValidation
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
