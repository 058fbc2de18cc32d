package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/pianola/internal/models"
	"github.com/jmylchreest/pianola/internal/service"
	"github.com/jmylchreest/pianola/internal/session"
)

// mapError converts service and session errors to API errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrLessonNotFound):
		return huma.Error404NotFound("lesson not found")
	case errors.Is(err, session.ErrSessionNotFound):
		return huma.Error404NotFound("session not found")
	case errors.Is(err, service.ErrLessonHasNoVideo):
		return huma.Error422UnprocessableEntity("lesson has no video")
	case errors.Is(err, service.ErrCatalogUnavailable):
		return huma.Error503ServiceUnavailable("lesson catalog unavailable")
	case errors.Is(err, service.ErrUserRequired):
		return huma.Error400BadRequest("the " + UserIDHeader + " header is required")
	case errors.Is(err, service.ErrUnknownEvent),
		errors.Is(err, service.ErrUnknownIntent),
		errors.Is(err, session.ErrInvalidValue):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, session.ErrNotReady),
		errors.Is(err, session.ErrSessionEnded),
		errors.Is(err, session.ErrSessionClosed),
		errors.Is(err, session.ErrRetryNotAllowed):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable("request cancelled", err)
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}

// parseSessionID parses a session path parameter. Malformed IDs are reported
// as unknown sessions.
func parseSessionID(raw string) (models.ULID, error) {
	id, err := models.ParseULID(raw)
	if err != nil || id.IsZero() {
		return models.ULID{}, huma.Error404NotFound("session not found")
	}
	return id, nil
}
