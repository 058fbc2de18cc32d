package session

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/pianola/internal/models"
)

// NotificationKind classifies a notification.
type NotificationKind string

// Notification kinds.
const (
	// NotificationError is the user-visible toast raised on a playback error.
	NotificationError NotificationKind = "error"
	// NotificationState carries a state change for live clients.
	NotificationState NotificationKind = "state"
)

// Notification is a message for the viewer of a session.
type Notification struct {
	SessionID   models.ULID      `json:"session_id"`
	LessonID    string           `json:"lesson_id"`
	Kind        NotificationKind `json:"kind"`
	State       State            `json:"state"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Notifier receives session notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// defaultSubscriberBuffer is the per-subscriber channel size.
const defaultSubscriberBuffer = 32

// Subscriber receives notifications from a Hub.
type Subscriber struct {
	ID string
	// SessionID limits delivery to one session. Zero receives everything.
	SessionID     models.ULID
	Notifications chan Notification
}

func (s *Subscriber) matches(n Notification) bool {
	return s.SessionID.IsZero() || s.SessionID == n.SessionID
}

// Hub fans notifications out to subscribers. Slow subscribers lose
// notifications instead of stalling the session that raised them.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	buffer      int
	logger      *slog.Logger
	dropped     func()
}

// NewHub creates a notification hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		buffer:      defaultSubscriberBuffer,
		logger:      logger.With("component", "notification_hub"),
	}
}

// WithBuffer sets the channel size for new subscribers.
func (h *Hub) WithBuffer(size int) *Hub {
	if size > 0 {
		h.buffer = size
	}
	return h
}

// WithDropHook sets a function called for every dropped notification.
func (h *Hub) WithDropHook(fn func()) *Hub {
	h.dropped = fn
	return h
}

// Subscribe registers a subscriber for one session, or for all sessions when
// sessionID is zero.
func (h *Hub) Subscribe(sessionID models.ULID) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:            models.NewULID().String(),
		SessionID:     sessionID,
		Notifications: make(chan Notification, h.buffer),
	}
	h.subscribers[sub.ID] = sub

	h.logger.Debug("subscriber added",
		slog.String("subscriber_id", sub.ID),
		slog.String("session_id", sessionID.String()),
	)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[subscriberID]; ok {
		close(sub.Notifications)
		delete(h.subscribers, subscriberID)
		h.logger.Debug("subscriber removed", slog.String("subscriber_id", subscriberID))
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Notify implements Notifier.
func (h *Hub) Notify(n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		if !sub.matches(n) {
			continue
		}
		select {
		case sub.Notifications <- n:
		default:
			h.logger.Warn("subscriber notification channel full, dropping notification",
				slog.String("subscriber_id", sub.ID),
				slog.String("session_id", n.SessionID.String()),
				slog.String("kind", string(n.Kind)),
			)
			if h.dropped != nil {
				h.dropped()
			}
		}
	}
}

// Close removes every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subscribers {
		close(sub.Notifications)
		delete(h.subscribers, id)
	}
}
