// Package catalog resolves lessons from the course catalog, either a remote
// REST API or a fixed in-memory set.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// CourseRef is the course a lesson belongs to. The catalog API returns either
// the bare course ID or a populated {_id, title} object.
type CourseRef struct {
	ID    string `json:"_id"`
	Title string `json:"title,omitempty"`
}

// UnmarshalJSON accepts a string ID or a populated course object.
func (c *CourseRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = CourseRef{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("decoding course id: %w", err)
		}
		*c = CourseRef{ID: id}
		return nil
	}

	type plain CourseRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding course: %w", err)
	}
	*c = CourseRef(p)
	return nil
}

// MarshalJSON writes the bare ID unless a title is known.
func (c CourseRef) MarshalJSON() ([]byte, error) {
	if c.Title == "" {
		return json.Marshal(c.ID)
	}
	type plain CourseRef
	return json.Marshal(plain(c))
}

// Lesson is a single lesson of a course.
type Lesson struct {
	ID          string    `json:"_id"`
	Course      CourseRef `json:"courseId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	VideoURL    string    `json:"videoUrl"`
	// DurationMinutes is the lesson length as entered by the course author.
	DurationMinutes float64   `json:"duration"`
	Order           int       `json:"order"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// CourseID returns the ID of the lesson's course.
func (l Lesson) CourseID() string {
	return l.Course.ID
}

// Duration returns the authored lesson length.
func (l Lesson) Duration() time.Duration {
	return time.Duration(l.DurationMinutes * float64(time.Minute))
}
