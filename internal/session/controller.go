package session

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jmylchreest/pianola/internal/models"
	"github.com/jmylchreest/pianola/internal/playability"
)

// SourceProvider derives the source list for a locator. Retry calls it again
// instead of reattempting the failed locator alone.
type SourceProvider interface {
	Sources(locator string) []playability.SourceDescriptor
}

// SourceProviderFunc adapts a function to the SourceProvider interface.
type SourceProviderFunc func(locator string) []playability.SourceDescriptor

// Sources implements SourceProvider.
func (f SourceProviderFunc) Sources(locator string) []playability.SourceDescriptor {
	return f(locator)
}

// Callbacks are invoked after the state change they describe. They run
// outside the state lock but while event delivery is serialized, so they must
// not deliver events to the same controller.
type Callbacks struct {
	OnReady         func()
	OnError         func(message string)
	OnEnded         func()
	OnProgress      func(positionSeconds float64)
	OnDurationKnown func(durationSeconds float64)
	OnStateChange   func(from, to State)
}

// Options configures a new Controller.
type Options struct {
	ID       models.ULID
	LessonID string
	Slot     string
	// Locator is the lesson's media asset locator.
	Locator string
	// Sources re-derives sources on retry. When nil, retry keeps the
	// current source list.
	Sources SourceProvider
	// InitialSources are used for the first attempt. When empty they are
	// derived through Sources.
	InitialSources []playability.SourceDescriptor
	Notifier       Notifier
	Callbacks      Callbacks

	ErrorMessage string
	Volume       *float64
	Logger       *slog.Logger
}

// Controller is the state machine of one playback attempt bound to one media
// element. Events are delivered one at a time.
type Controller struct {
	// eventMu serializes event and intent delivery, callbacks included.
	eventMu sync.Mutex
	mu      sync.RWMutex

	id       models.ULID
	lessonID string
	slot     string
	locator  string

	state            State
	playing          bool
	position         float64
	duration         float64
	volume           float64
	muted            bool
	lastError        string
	lastErrorDetail  string
	attemptedLocator string
	sources          []playability.SourceDescriptor
	attempts         int
	completed        bool
	closed           bool
	createdAt        time.Time
	updatedAt        time.Time

	errorMessage string
	provider     SourceProvider
	notifier     Notifier
	callbacks    Callbacks
	logger       *slog.Logger
	now          func() time.Time
}

// NewController creates a session in the loading state.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := opts.ID
	if id.IsZero() {
		id = models.NewULID()
	}
	message := opts.ErrorMessage
	if message == "" {
		message = DefaultErrorMessage
	}
	volume := DefaultVolume
	if opts.Volume != nil {
		volume = clampVolume(*opts.Volume)
	}

	c := &Controller{
		id:           id,
		lessonID:     opts.LessonID,
		slot:         opts.Slot,
		locator:      opts.Locator,
		state:        StateLoading,
		volume:       volume,
		attempts:     1,
		errorMessage: message,
		provider:     opts.Sources,
		notifier:     opts.Notifier,
		callbacks:    opts.Callbacks,
		now:          time.Now,
	}
	c.logger = logger.With(
		slog.String("session_id", id.String()),
		slog.String("lesson_id", opts.LessonID),
	)

	c.sources = cloneSources(opts.InitialSources)
	if len(c.sources) == 0 {
		c.sources = c.deriveSources()
	}
	c.createdAt = c.now()
	c.updatedAt = c.createdAt
	return c
}

// ID returns the session ID.
func (c *Controller) ID() models.ULID {
	return c.id
}

// LessonID returns the lesson the session plays.
func (c *Controller) LessonID() string {
	return c.lessonID
}

// Slot returns the viewer slot the session was opened in.
func (c *Controller) Slot() string {
	return c.slot
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// UpdatedAt returns the time of the last accepted event or intent.
func (c *Controller) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Closed reports whether the session has been detached.
func (c *Controller) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		ID:               c.id,
		LessonID:         c.lessonID,
		Slot:             c.slot,
		State:            c.state,
		Playing:          c.playing,
		PositionSeconds:  c.position,
		DurationSeconds:  c.duration,
		Position:         FormatPosition(c.position),
		Volume:           c.volume,
		Muted:            c.muted,
		LastErrorMessage: c.lastError,
		LastErrorDetail:  c.lastErrorDetail,
		AttemptedLocator: c.attemptedLocator,
		Sources:          cloneSources(c.sources),
		Attempts:         c.attempts,
		Completed:        c.completed,
		Closed:           c.closed,
		CreatedAt:        c.createdAt,
		UpdatedAt:        c.updatedAt,
	}
}

// pending collects the side effects of one event so they can run after the
// state lock is released.
type pending struct {
	effects []func()
}

func (p *pending) add(fn func()) {
	if fn != nil {
		p.effects = append(p.effects, fn)
	}
}

func (p *pending) run() {
	for _, fn := range p.effects {
		fn()
	}
}

// apply runs fn under both locks and then the queued side effects.
func (c *Controller) apply(fn func(p *pending) error) error {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	var p pending
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	err := fn(&p)
	c.mu.Unlock()

	p.run()
	return err
}

// transitionLocked moves to a new state. Must be called with c.mu held.
func (c *Controller) transitionLocked(p *pending, to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	c.logger.Debug("session state changed",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)

	if cb := c.callbacks.OnStateChange; cb != nil {
		p.add(func() { cb(from, to) })
	}
	if c.notifier != nil {
		n := c.notificationLocked(NotificationState)
		p.add(func() { c.notifier.Notify(n) })
	}
}

func (c *Controller) notificationLocked(kind NotificationKind) Notification {
	n := Notification{
		SessionID: c.id,
		LessonID:  c.lessonID,
		Kind:      kind,
		State:     c.state,
		Timestamp: c.now(),
	}
	if kind == NotificationError {
		n.Title = DefaultNotificationTitle
		n.Description = DefaultNotificationDescription
	}
	return n
}

// HandleReady delivers the media element's can-play signal. It only moves a
// loading session to ready; repeated signals are ignored.
func (c *Controller) HandleReady() error {
	return c.apply(func(p *pending) error {
		if c.state != StateLoading {
			return nil
		}
		c.lastError = ""
		c.lastErrorDetail = ""
		c.touchLocked()
		c.transitionLocked(p, StateReady)
		p.add(c.callbacks.OnReady)
		return nil
	})
}

// HandleTimeUpdate records the playback position. It never changes state.
func (c *Controller) HandleTimeUpdate(positionSeconds float64) error {
	if !validSeconds(positionSeconds) {
		return ErrInvalidValue
	}
	return c.apply(func(p *pending) error {
		c.position = positionSeconds
		c.touchLocked()
		if cb := c.callbacks.OnProgress; cb != nil {
			p.add(func() { cb(positionSeconds) })
		}
		return nil
	})
}

// HandleDurationKnown records the media duration. It never changes state.
func (c *Controller) HandleDurationKnown(durationSeconds float64) error {
	if !validSeconds(durationSeconds) {
		return ErrInvalidValue
	}
	return c.apply(func(p *pending) error {
		c.duration = durationSeconds
		c.touchLocked()
		if cb := c.callbacks.OnDurationKnown; cb != nil {
			p.add(func() { cb(durationSeconds) })
		}
		return nil
	})
}

// HandleError delivers a media element error. Any state except ended moves
// to errored with the fixed user-facing message; the viewer is notified once
// per transition. Nothing is retried automatically.
func (c *Controller) HandleError(mediaErr MediaError) error {
	return c.apply(func(p *pending) error {
		if c.state == StateEnded {
			c.logger.Debug("ignoring media error after end of stream",
				slog.String("code", mediaErr.Code.String()),
			)
			return nil
		}

		locator := mediaErr.Locator
		if locator == "" {
			locator = c.firstLocatorLocked()
		}
		c.attemptedLocator = locator
		c.lastErrorDetail = mediaErr.Detail
		c.playing = false
		c.touchLocked()

		if c.state == StateErrored {
			return nil
		}

		c.lastError = c.errorMessage
		c.logger.Warn("playback failed",
			slog.String("code", mediaErr.Code.String()),
			slog.String("detail", mediaErr.Detail),
			slog.String("attempted_locator", locator),
			slog.Int("attempt", c.attempts),
		)
		c.transitionLocked(p, StateErrored)

		if c.notifier != nil {
			n := c.notificationLocked(NotificationError)
			p.add(func() { c.notifier.Notify(n) })
		}
		if cb := c.callbacks.OnError; cb != nil {
			message := c.lastError
			p.add(func() { cb(message) })
		}
		return nil
	})
}

// HandleEnded delivers the end-of-stream signal. The completion callback runs
// at most once per session.
func (c *Controller) HandleEnded() error {
	return c.apply(func(p *pending) error {
		c.playing = false
		c.touchLocked()
		c.transitionLocked(p, StateEnded)

		if !c.completed {
			c.completed = true
			p.add(c.callbacks.OnEnded)
		}
		return nil
	})
}

// Play starts playback.
func (c *Controller) Play() error {
	return c.setPlaying(true)
}

// Pause pauses playback.
func (c *Controller) Pause() error {
	return c.setPlaying(false)
}

// TogglePlay flips the play/pause sub-state.
func (c *Controller) TogglePlay() error {
	return c.apply(func(p *pending) error {
		return c.setPlayingLocked(p, !c.playing)
	})
}

func (c *Controller) setPlaying(playing bool) error {
	return c.apply(func(p *pending) error {
		return c.setPlayingLocked(p, playing)
	})
}

func (c *Controller) setPlayingLocked(p *pending, playing bool) error {
	if err := c.checkPlayableLocked(); err != nil {
		return err
	}
	c.playing = playing
	c.touchLocked()
	c.transitionLocked(p, StatePlayingOrPaused)
	return nil
}

// Seek moves the playback position. Positions past a known duration are
// clamped to it.
func (c *Controller) Seek(positionSeconds float64) error {
	if !validSeconds(positionSeconds) {
		return ErrInvalidValue
	}
	return c.apply(func(_ *pending) error {
		if err := c.checkPlayableLocked(); err != nil {
			return err
		}
		if c.duration > 0 && positionSeconds > c.duration {
			positionSeconds = c.duration
		}
		c.position = positionSeconds
		c.touchLocked()
		return nil
	})
}

// SetVolume sets the volume, clamped to 0..1.
func (c *Controller) SetVolume(volume float64) error {
	if math.IsNaN(volume) {
		return ErrInvalidValue
	}
	return c.apply(func(_ *pending) error {
		c.volume = clampVolume(volume)
		c.touchLocked()
		return nil
	})
}

// SetMuted mutes or unmutes playback.
func (c *Controller) SetMuted(muted bool) error {
	return c.apply(func(_ *pending) error {
		c.muted = muted
		c.touchLocked()
		return nil
	})
}

// Retry is the only way out of the errored state. It clears the error,
// re-derives the source list and moves the session back to loading.
func (c *Controller) Retry() error {
	return c.apply(func(p *pending) error {
		if c.state != StateErrored {
			return ErrRetryNotAllowed
		}

		c.lastError = ""
		c.lastErrorDetail = ""
		c.attemptedLocator = ""
		c.playing = false
		c.attempts++
		if c.provider != nil {
			c.sources = c.deriveSources()
		}
		c.touchLocked()

		c.logger.Info("playback retry requested",
			slog.Int("attempt", c.attempts),
			slog.Int("source_count", len(c.sources)),
		)
		c.transitionLocked(p, StateLoading)
		return nil
	})
}

// Close detaches the session from its media element. Later events and
// intents return ErrSessionClosed. Close waits for an in-flight event.
func (c *Controller) Close() {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.playing = false
	c.updatedAt = c.now()
	c.logger.Debug("session closed", slog.String("state", string(c.state)))
}

func (c *Controller) checkPlayableLocked() error {
	switch {
	case c.state == StateEnded:
		return ErrSessionEnded
	case !c.state.IsPlayable():
		return ErrNotReady
	}
	return nil
}

func (c *Controller) touchLocked() {
	c.updatedAt = c.now()
}

func (c *Controller) firstLocatorLocked() string {
	if len(c.sources) > 0 {
		return c.sources[0].Locator
	}
	return c.locator
}

// deriveSources asks the provider for sources. The result is never empty.
func (c *Controller) deriveSources() []playability.SourceDescriptor {
	var sources []playability.SourceDescriptor
	if c.provider != nil {
		sources = cloneSources(c.provider.Sources(c.locator))
	}
	if len(sources) == 0 {
		sources = playability.BuildSources(c.locator, playability.Probe(nil))
	}
	return sources
}

func cloneSources(in []playability.SourceDescriptor) []playability.SourceDescriptor {
	if len(in) == 0 {
		return nil
	}
	out := make([]playability.SourceDescriptor, len(in))
	copy(out, in)
	return out
}

func clampVolume(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func validSeconds(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
