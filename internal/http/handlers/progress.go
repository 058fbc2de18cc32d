package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/pianola/internal/models"
	"github.com/jmylchreest/pianola/internal/service"
)

// ProgressHandler handles course progress endpoints.
type ProgressHandler struct {
	service *service.ProgressService
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(svc *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: svc}
}

// CourseProgressInput addresses the caller's progress in one course.
type CourseProgressInput struct {
	UserID   string `header:"X-User-ID" doc:"Viewer identity"`
	CourseID string `path:"course_id" doc:"Course ID"`
}

// UpdateProgressInput replaces parts of the caller's progress in one course.
type UpdateProgressInput struct {
	UserID   string `header:"X-User-ID" doc:"Viewer identity"`
	CourseID string `path:"course_id" doc:"Course ID"`
	Body     struct {
		CompletedLessons   *[]string `json:"completedLessons,omitempty" doc:"Replaces the completed lesson list"`
		LastAccessedLesson *string   `json:"lastAccessedLesson,omitempty" doc:"Most recently opened lesson"`
	}
}

// CourseProgressOutput is the caller's progress in one course.
type CourseProgressOutput struct {
	Body *service.CourseProgressView
}

// ListProgressInput addresses the caller's progress across courses.
type ListProgressInput struct {
	UserID string `header:"X-User-ID" doc:"Viewer identity"`
}

// ListProgressOutput is the caller's progress across courses.
type ListProgressOutput struct {
	Body struct {
		Courses []*models.CourseProgress `json:"courses"`
	}
}

// Register registers the progress routes with the API.
func (h *ProgressHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listProgress",
		Method:      "GET",
		Path:        "/api/v1/progress",
		Summary:     "List course progress",
		Description: "Returns the caller's progress in every course they have started",
		Tags:        []string{"Progress"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getCourseProgress",
		Method:      "GET",
		Path:        "/api/v1/progress/{course_id}",
		Summary:     "Get course progress",
		Tags:        []string{"Progress"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "updateCourseProgress",
		Method:      "PATCH",
		Path:        "/api/v1/progress/{course_id}",
		Summary:     "Update course progress",
		Description: "Replaces the completed lesson list and/or the last accessed lesson",
		Tags:        []string{"Progress"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID:   "resetCourseProgress",
		Method:        "DELETE",
		Path:          "/api/v1/progress/{course_id}",
		Summary:       "Reset course progress",
		Tags:          []string{"Progress"},
		DefaultStatus: http.StatusNoContent,
	}, h.Reset)
}

// List returns the caller's progress across courses.
func (h *ProgressHandler) List(ctx context.Context, input *ListProgressInput) (*ListProgressOutput, error) {
	courses, err := h.service.ListByUser(ctx, input.UserID)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListProgressOutput{}
	out.Body.Courses = courses
	if out.Body.Courses == nil {
		out.Body.Courses = []*models.CourseProgress{}
	}
	return out, nil
}

// Get returns the caller's progress in a course.
func (h *ProgressHandler) Get(ctx context.Context, input *CourseProgressInput) (*CourseProgressOutput, error) {
	view, err := h.service.Get(ctx, input.UserID, input.CourseID)
	if err != nil {
		return nil, mapError(err)
	}
	return &CourseProgressOutput{Body: view}, nil
}

// Update applies a partial progress update.
func (h *ProgressHandler) Update(ctx context.Context, input *UpdateProgressInput) (*CourseProgressOutput, error) {
	view, err := h.service.Update(ctx, input.UserID, input.CourseID, service.ProgressUpdate{
		CompletedLessons:   input.Body.CompletedLessons,
		LastAccessedLesson: input.Body.LastAccessedLesson,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return &CourseProgressOutput{Body: view}, nil
}

// Reset deletes the caller's progress in a course.
func (h *ProgressHandler) Reset(ctx context.Context, input *CourseProgressInput) (*struct{}, error) {
	if err := h.service.Reset(ctx, input.UserID, input.CourseID); err != nil {
		return nil, mapError(err)
	}
	return nil, nil
}
