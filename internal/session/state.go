// Package session owns the playback state machine of a single lesson video
// and the registry of live sessions per viewer slot.
package session

import (
	"fmt"
	"time"

	"github.com/jmylchreest/pianola/internal/models"
	"github.com/jmylchreest/pianola/internal/playability"
)

// State is the top-level state of a playback session.
type State string

// Session states. Play and pause are a boolean sub-state of
// StatePlayingOrPaused, not separate states.
const (
	StateLoading         State = "loading"
	StateReady           State = "ready"
	StatePlayingOrPaused State = "playing_or_paused"
	StateEnded           State = "ended"
	StateErrored         State = "errored"
)

// IsPlayable reports whether play, pause and seek intents are accepted.
func (s State) IsPlayable() bool {
	return s == StateReady || s == StatePlayingOrPaused
}

// IsSettled reports whether the session is waiting on the viewer and not on
// the media element.
func (s State) IsSettled() bool {
	return s == StateEnded || s == StateErrored
}

// Fixed user-facing texts.
const (
	DefaultErrorMessage            = "Failed to load video. Please check the video URL."
	DefaultNotificationTitle       = "Video Error"
	DefaultNotificationDescription = "There was an error loading the video. Please check the video URL."
)

// DefaultVolume is the initial volume of a new session.
const DefaultVolume = 0.8

// MediaErrorCode mirrors the HTMLMediaElement error codes.
type MediaErrorCode int

// Media error codes.
const (
	MediaErrUnknown         MediaErrorCode = 0
	MediaErrAborted         MediaErrorCode = 1
	MediaErrNetwork         MediaErrorCode = 2
	MediaErrDecode          MediaErrorCode = 3
	MediaErrSrcNotSupported MediaErrorCode = 4
)

// String returns the media error constant name.
func (c MediaErrorCode) String() string {
	switch c {
	case MediaErrAborted:
		return "MEDIA_ERR_ABORTED"
	case MediaErrNetwork:
		return "MEDIA_ERR_NETWORK"
	case MediaErrDecode:
		return "MEDIA_ERR_DECODE"
	case MediaErrSrcNotSupported:
		return "MEDIA_ERR_SRC_NOT_SUPPORTED"
	default:
		return fmt.Sprintf("MEDIA_ERR_%d", int(c))
	}
}

// MediaError is the error signal reported by the media element.
type MediaError struct {
	Code    MediaErrorCode
	Detail  string
	// Locator is the source that failed. Empty means the first source.
	Locator string
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID               models.ULID                    `json:"id"`
	LessonID         string                         `json:"lesson_id"`
	Slot             string                         `json:"slot,omitempty"`
	State            State                          `json:"state"`
	Playing          bool                           `json:"playing"`
	PositionSeconds  float64                        `json:"position_seconds"`
	DurationSeconds  float64                        `json:"duration_seconds"`
	Position         string                         `json:"position"`
	Volume           float64                        `json:"volume"`
	Muted            bool                           `json:"muted"`
	LastErrorMessage string                         `json:"last_error_message,omitempty"`
	LastErrorDetail  string                         `json:"last_error_detail,omitempty"`
	AttemptedLocator string                         `json:"attempted_locator,omitempty"`
	Sources          []playability.SourceDescriptor `json:"sources"`
	Attempts         int                            `json:"attempts"`
	Completed        bool                           `json:"completed"`
	Closed           bool                           `json:"closed"`
	CreatedAt        time.Time                      `json:"created_at"`
	UpdatedAt        time.Time                      `json:"updated_at"`
}
