package session

import (
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/pianola/internal/models"
)

// Manager tracks live sessions by ID and by viewer slot. A slot is whatever
// identifies one player surface (a browser tab, a user); it holds at most one
// session. Session callbacks must not call back into the Manager.
type Manager struct {
	mu       sync.RWMutex
	sessions map[models.ULID]*Controller
	slots    map[string]models.ULID

	logger   *slog.Logger
	notifier Notifier
	now      func() time.Time
}

// NewManager creates a session manager. The notifier, when set, is used for
// sessions opened without their own.
func NewManager(logger *slog.Logger, notifier Notifier) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		sessions: make(map[models.ULID]*Controller),
		slots:    make(map[string]models.ULID),
		logger:   logger.With("component", "session_manager"),
		notifier: notifier,
		now:      time.Now,
	}
}

// Open creates a session and registers it. When opts.Slot already holds a
// session, that session is closed before the new one becomes reachable, so a
// stale session can never deliver into the slot's new one.
func (m *Manager) Open(opts Options) *Controller {
	if opts.Notifier == nil {
		opts.Notifier = m.notifier
	}
	if opts.Logger == nil {
		opts.Logger = m.logger
	}
	ctrl := NewController(opts)

	m.mu.Lock()
	defer m.mu.Unlock()

	if opts.Slot != "" {
		if prevID, ok := m.slots[opts.Slot]; ok {
			if prev, ok := m.sessions[prevID]; ok {
				prev.Close()
				delete(m.sessions, prevID)
				m.logger.Debug("replaced session in slot",
					slog.String("slot", opts.Slot),
					slog.String("previous_session_id", prevID.String()),
					slog.String("session_id", ctrl.ID().String()),
				)
			}
		}
		m.slots[opts.Slot] = ctrl.ID()
	}
	m.sessions[ctrl.ID()] = ctrl

	m.logger.Info("session opened",
		slog.String("session_id", ctrl.ID().String()),
		slog.String("lesson_id", opts.LessonID),
	)
	return ctrl
}

// Get returns a live session.
func (m *Manager) Get(id models.ULID) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ctrl, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ctrl, nil
}

// BySlot returns the session currently held by a slot.
func (m *Manager) BySlot(slot string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.slots[slot]
	if !ok {
		return nil, ErrSessionNotFound
	}
	ctrl, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ctrl, nil
}

// Close detaches and forgets a session.
func (m *Manager) Close(id models.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctrl, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	m.removeLocked(ctrl)
	return nil
}

// List returns snapshots of all live sessions, oldest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	ctrls := make([]*Controller, 0, len(m.sessions))
	for _, ctrl := range m.sessions {
		ctrls = append(ctrls, ctrl)
	}
	m.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(ctrls))
	for _, ctrl := range ctrls {
		snapshots = append(snapshots, ctrl.Snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ID.String() < snapshots[j].ID.String()
	})
	return snapshots
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CountByState returns the number of live sessions per state.
func (m *Manager) CountByState() map[State]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[State]int, 5)
	for _, ctrl := range m.sessions {
		counts[ctrl.State()]++
	}
	return counts
}

// Prune closes and drops sessions that have been idle for longer than
// olderThan. Loading and playing sessions are pruned too once they go idle
// for twice that long, which covers viewers that left without detaching.
func (m *Manager) Prune(olderThan time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	settledCutoff := now.Add(-olderThan)
	activeCutoff := now.Add(-2 * olderThan)

	removed := 0
	for _, ctrl := range m.sessions {
		updated := ctrl.UpdatedAt()
		state := ctrl.State()

		stale := ctrl.Closed() ||
			(state.IsSettled() && updated.Before(settledCutoff)) ||
			updated.Before(activeCutoff)
		if !stale {
			continue
		}
		m.removeLocked(ctrl)
		removed++
	}

	if removed > 0 {
		m.logger.Info("pruned idle sessions",
			slog.Int("count", removed),
			slog.Duration("older_than", olderThan),
		)
	}
	return removed
}

// CloseAll detaches every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ctrl := range m.sessions {
		m.removeLocked(ctrl)
	}
}

// removeLocked closes ctrl and drops it from both indexes. Must be called
// with m.mu held.
func (m *Manager) removeLocked(ctrl *Controller) {
	ctrl.Close()
	delete(m.sessions, ctrl.ID())
	if slot := ctrl.Slot(); slot != "" && m.slots[slot] == ctrl.ID() {
		delete(m.slots, slot)
	}
}
