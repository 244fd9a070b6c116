// Package track measures how long a user spends on each learning activity
// and reconciles that measurement with the remote session service. One
// Controller per user keeps at most one session open, with at most one open
// activity inside it, and publishes a second-granularity live timer for the
// currently open activity.
package track

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/darasahq/darasa/core"
)

const (
	defaultTickInterval      = time.Second
	defaultHeartbeatInterval = 30 * time.Second
	defaultSessionWait       = 10 * time.Second
)

type (
	Options struct {
		API    API
		Logger core.Logger
		UserID string

		// TickInterval drives the live timer; defaults to 1s.
		TickInterval time.Duration
		// HeartbeatInterval drives "still ongoing" pings; defaults to 30s.
		HeartbeatInterval time.Duration
		// SessionWait bounds how long an operation waits for session
		// establishment (and heartbeat delivery); defaults to 10s.
		SessionWait time.Duration

		// OnTick, when set, receives every published live-timer value,
		// including the reset to 0 on activity change or end.
		OnTick func(elapsedSeconds int)

		Clock Clock // nil means the system clock
	}

	// Controller owns the lifecycle of one session for one user: creation,
	// the currently tracked activity, periodic heartbeats and termination.
	// Construct one per authenticated client lifetime; never share across users.
	//
	// Remote failures are logged and swallowed: the controller degrades to
	// "not tracking" rather than surfacing errors to the UI. The next
	// TrackActivity call is the retry trigger.
	Controller struct {
		api         API
		log         core.Logger
		userID      string
		tickEvery   time.Duration
		hbEvery     time.Duration
		sessionWait time.Duration
		onTick      func(int)
		clock       Clock

		mu        sync.Mutex
		sessionID string
		tracking  bool
		busy      bool // in-flight guard for begin-session/record-activity
		current   *Activity
		startedAt time.Time
		elapsed   int
		stop      chan struct{} // closes the timer pair of the open activity
		done      chan struct{} // closed by the timer loop on exit
	}
)

func NewController(opts Options) *Controller {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.SessionWait <= 0 {
		opts.SessionWait = defaultSessionWait
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	return &Controller{
		api:         opts.API,
		log:         opts.Logger,
		userID:      opts.UserID,
		tickEvery:   opts.TickInterval,
		hbEvery:     opts.HeartbeatInterval,
		sessionWait: opts.SessionWait,
		onTick:      opts.OnTick,
		clock:       opts.Clock,
	}
}

// StartSession ensures a session is open and returns its identifier.
// Re-entrant calls return the already-held identifier without touching the
// server; a call racing an in-flight begin/track returns "" without side
// effects. "" means no session could be obtained.
func (c *Controller) StartSession(ctx context.Context) string {
	if !ValidUser(c.userID) {
		return ""
	}

	c.mu.Lock()
	if c.sessionID != "" {
		id := c.sessionID
		c.mu.Unlock()
		return id
	}
	if c.busy {
		c.mu.Unlock()
		return ""
	}
	c.busy = true
	c.mu.Unlock()
	defer c.release()

	return c.beginSession(ctx)
}

// beginSession issues the remote begin request and adopts the returned
// identifier. Caller must hold the busy flag.
func (c *Controller) beginSession(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, c.sessionWait)
	defer cancel()

	res, err := c.api.BeginSession(ctx, c.userID)
	if err != nil {
		c.log.Error(fmt.Sprintf("tracking: begin session: %v", err), err)
		return ""
	}

	// The server may have resumed a pre-existing open session for this user
	// instead of creating one; both outcomes are adopted identically.
	if res.ExistingSession {
		c.log.Info(fmt.Sprintf("tracking: resumed open session %s", res.SessionID))
	}

	c.mu.Lock()
	c.sessionID = res.SessionID
	c.tracking = true
	c.mu.Unlock()
	return res.SessionID
}

// TrackActivity records the given activity as the currently open one,
// opening a session first if needed. It is a no-op when the user is invalid,
// when the tuple equals the currently open activity, or when another
// begin/track call is already in flight.
func (c *Controller) TrackActivity(ctx context.Context, act Activity) {
	if !ValidUser(c.userID) {
		return
	}
	if !IsValidType(act.Type) {
		c.log.Warn(fmt.Sprintf("tracking: unknown activity type %q", act.Type))
		return
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return
	}
	if c.current != nil && c.current.Key() == act.Key() {
		c.mu.Unlock()
		return
	}
	c.busy = true
	sessionID := c.sessionID
	c.mu.Unlock()
	defer c.release()

	if sessionID == "" {
		if sessionID = c.beginSession(ctx); sessionID == "" {
			return
		}
	}

	rec := ActivityRecord{
		UserID:         c.userID,
		SessionID:      sessionID,
		Type:           act.Type,
		LearningPathID: act.LearningPathID,
		ModuleID:       act.ModuleID,
	}
	if err := c.api.RecordActivity(ctx, rec); err != nil {
		// do not start a local timer for an activity the server never recorded
		c.log.Error(fmt.Sprintf("tracking: record activity: %v", err), err)
		return
	}

	c.mu.Lock()
	stop, done := c.detachTimersLocked()
	c.mu.Unlock()
	c.stopTimers(stop, done)

	c.mu.Lock()
	open := act
	c.current = &open
	c.startedAt = c.clock.Now()
	c.elapsed = 0
	c.startTimersLocked()
	onTick := c.onTick
	c.mu.Unlock()

	if onTick != nil {
		onTick(0)
	}
}

// EndActivity closes the currently open activity. Regardless of the server's
// response the local activity is cleared and both timers are torn down.
// No-op when no activity is open.
func (c *Controller) EndActivity(ctx context.Context) {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	userID, sessionID := c.userID, c.sessionID
	c.mu.Unlock()

	if _, err := c.api.EndActivity(ctx, userID, sessionID); err != nil {
		c.log.Warn(fmt.Sprintf("tracking: end activity: %v", err), err)
	}

	c.mu.Lock()
	stop, done := c.detachTimersLocked()
	c.current = nil
	c.startedAt = time.Time{}
	c.elapsed = 0
	onTick := c.onTick
	c.mu.Unlock()
	c.stopTimers(stop, done)

	if onTick != nil {
		onTick(0)
	}
}

// EndSession closes the open activity (strictly first), then the session.
// The session identifier is cleared only on a successful remote close.
// No-op when no session is open.
func (c *Controller) EndSession(ctx context.Context) {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()
	if sessionID == "" {
		return
	}

	c.EndActivity(ctx)

	if _, err := c.api.EndSession(ctx, c.userID, sessionID); err != nil {
		c.log.Error(fmt.Sprintf("tracking: end session: %v", err), err)
		return
	}

	c.mu.Lock()
	c.sessionID = ""
	c.tracking = false
	c.mu.Unlock()
}

// Shutdown is the page-teardown path: it forces the controller to Idle
// immediately and hands the end-session payload to the fire-and-forget
// beacon transport. It never blocks on the network.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	userID, sessionID := c.userID, c.sessionID
	stop, done := c.detachTimersLocked()
	c.current = nil
	c.startedAt = time.Time{}
	c.elapsed = 0
	c.sessionID = ""
	c.tracking = false
	c.mu.Unlock()
	c.stopTimers(stop, done)

	if sessionID != "" {
		c.api.EndSessionBeacon(userID, sessionID)
	}
}

// SessionStats fetches the server's aggregate session/activity history for
// the given user. Side-effect-free; nil on failure or invalid user.
func (c *Controller) SessionStats(ctx context.Context, userID string) *Stats {
	if !ValidUser(userID) {
		return nil
	}
	stats, err := c.api.SessionStats(ctx, userID)
	if err != nil {
		c.log.Error(fmt.Sprintf("tracking: session stats: %v", err), err)
		return nil
	}
	return &stats
}

// Elapsed returns the live timer value in whole seconds;
// 0 whenever no activity is open.
func (c *Controller) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

func (c *Controller) Tracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracking
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// CurrentActivity returns the open activity, if any.
func (c *Controller) CurrentActivity() (Activity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Activity{}, false
	}
	return *c.current, true
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// startTimersLocked launches the live-timer/heartbeat pair for the activity
// that was just opened. Both are scoped to one open activity and are torn
// down together when it changes or ends.
func (c *Controller) startTimersLocked() {
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stop, c.done)
}

// detachTimersLocked takes ownership of the current timer pair, if any.
// The caller must release the mutex and then call stopTimers.
func (c *Controller) detachTimersLocked() (stop, done chan struct{}) {
	stop, done = c.stop, c.done
	c.stop, c.done = nil, nil
	return stop, done
}

// stopTimers shuts the timer loop down and waits for it to exit, so that no
// stale tick is published after the caller resets the display.
func (c *Controller) stopTimers(stop, done chan struct{}) {
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *Controller) run(stop, done chan struct{}) {
	defer close(done)

	tick := time.NewTicker(c.tickEvery)
	defer tick.Stop()
	hb := time.NewTicker(c.hbEvery)
	defer hb.Stop()

	for {
		select {
		case <-stop:
			return

		case <-tick.C:
			c.mu.Lock()
			if c.stop != stop || c.current == nil {
				c.mu.Unlock()
				return
			}
			c.elapsed = int(c.clock.Now().Sub(c.startedAt) / time.Second)
			elapsed, onTick := c.elapsed, c.onTick
			c.mu.Unlock()
			if onTick != nil {
				onTick(elapsed)
			}

		case <-hb.C:
			c.mu.Lock()
			if c.stop != stop || c.current == nil {
				c.mu.Unlock()
				return
			}
			userID, sessionID := c.userID, c.sessionID
			c.mu.Unlock()
			// detached so a slow round trip never delays ticks or teardown
			go c.heartbeat(userID, sessionID)
		}
	}
}

func (c *Controller) heartbeat(userID, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.sessionWait)
	defer cancel()
	if err := c.api.Heartbeat(ctx, userID, sessionID); err != nil {
		c.log.Warn(fmt.Sprintf("tracking: heartbeat: %v", err), err)
	}
}
