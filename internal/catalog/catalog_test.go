package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lessonJSON = `{
	"_id": "lesson-1",
	"courseId": {"_id": "course-1", "title": "Piano Basics"},
	"title": "Middle C",
	"description": "Finding middle C",
	"videoUrl": "https://cdn.example.com/videos/lesson1.mp4",
	"duration": 12.5,
	"order": 1,
	"createdAt": "2024-01-02T10:00:00Z",
	"updatedAt": "2024-01-03T10:00:00Z"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:       server.URL + "/api/",
		AuthToken:     "token-123",
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestLesson_UnmarshalCourseRef(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		courseID string
		title    string
	}{
		{"populated course", lessonJSON, "course-1", "Piano Basics"},
		{"bare course id", `{"_id":"lesson-2","courseId":"course-2"}`, "course-2", ""},
		{"null course", `{"_id":"lesson-3","courseId":null}`, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l Lesson
			require.NoError(t, json.Unmarshal([]byte(tt.input), &l))
			assert.Equal(t, tt.courseID, l.CourseID())
			assert.Equal(t, tt.title, l.Course.Title)
		})
	}

	var l Lesson
	assert.Error(t, json.Unmarshal([]byte(`{"courseId":42}`), &l))
}

func TestLesson_Fields(t *testing.T) {
	var l Lesson
	require.NoError(t, json.Unmarshal([]byte(lessonJSON), &l))

	assert.Equal(t, "lesson-1", l.ID)
	assert.Equal(t, "https://cdn.example.com/videos/lesson1.mp4", l.VideoURL)
	assert.Equal(t, 12*time.Minute+30*time.Second, l.Duration())
	assert.Equal(t, 1, l.Order)
	assert.Equal(t, 2024, l.CreatedAt.Year())
}

func TestCourseRef_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(CourseRef{ID: "course-1"})
	require.NoError(t, err)
	assert.JSONEq(t, `"course-1"`, string(data))

	data, err = json.Marshal(CourseRef{ID: "course-1", Title: "Piano Basics"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"course-1","title":"Piano Basics"}`, string(data))
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource(
		Lesson{ID: "b", Course: CourseRef{ID: "c1"}, Order: 2},
		Lesson{ID: "a", Course: CourseRef{ID: "c1"}, Order: 1},
		Lesson{ID: "x", Course: CourseRef{ID: "c2"}, Order: 1},
	)
	ctx := context.Background()

	l, err := src.GetLesson(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "c1", l.CourseID())

	_, err = src.GetLesson(ctx, "missing")
	assert.ErrorIs(t, err, ErrLessonNotFound)

	lessons, err := src.ListCourseLessons(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "a", lessons[0].ID)
	assert.Equal(t, "b", lessons[1].ID)

	src.Put(Lesson{ID: "c", Course: CourseRef{ID: "c1"}, Order: 0})
	lessons, err = src.ListCourseLessons(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c", lessons[0].ID)
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "ftp://lessons", "not a url", "http://"} {
		_, err := NewClient(ClientConfig{BaseURL: base})
		assert.Error(t, err, base)
	}
}

func TestClient_GetLesson(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/lessons/lesson-1", r.URL.Path)
		assert.Equal(t, "token-123", r.Header.Get(AuthTokenHeader))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(lessonJSON))
	})

	lesson, err := client.GetLesson(context.Background(), "lesson-1")
	require.NoError(t, err)
	assert.Equal(t, "Middle C", lesson.Title)
	assert.Equal(t, "course-1", lesson.CourseID())
}

func TestClient_GetLessonErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantErr      error
		wantAttempts int32
	}{
		{"not found is not retried", http.StatusNotFound, ErrLessonNotFound, 1},
		{"forbidden is retried once", http.StatusForbidden, ErrForbidden, 2},
		{"unauthorized is not retried", http.StatusUnauthorized, ErrForbidden, 1},
		{"unavailable is retried to the limit", http.StatusServiceUnavailable, ErrUnavailable, 4},
		{"server error is not retried", http.StatusInternalServerError, ErrUnavailable, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&attempts, 1)
				w.WriteHeader(tt.status)
			})

			_, err := client.GetLesson(context.Background(), "lesson-1")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantAttempts, atomic.LoadInt32(&attempts))
		})
	}
}

func TestClient_GetLessonEmptyID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := client.GetLesson(context.Background(), " ")
	assert.ErrorIs(t, err, ErrLessonNotFound)
}

func TestClient_ListCourseLessons(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/lessons/course/course-1":
			w.Write([]byte(`[
				{"_id":"l2","courseId":"course-1","order":2,"videoUrl":"https://cdn/x/l2.mp4"},
				{"_id":"l1","courseId":"course-1","order":1,"videoUrl":"https://cdn/x/l1.mp4"}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	lessons, err := client.ListCourseLessons(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "l1", lessons[0].ID)

	lessons, err = client.ListCourseLessons(context.Background(), "course-9")
	require.NoError(t, err)
	assert.Empty(t, lessons)
}

func TestClient_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"_id":`))
	})

	_, err := client.GetLesson(context.Background(), "lesson-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding catalog response")
}
