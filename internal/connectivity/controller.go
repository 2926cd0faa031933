// Package connectivity owns the single source of truth for "are we
// online" and triggers reconciliation at the correct moment.
//
// The controller polls a reachability prober and tracks a three-state
// machine: Unknown (no signal yet), Offline, Online. Exactly one
// transition — Offline to Online — triggers an automatic reconciliation
// pass. Unknown to Online deliberately does not: at cold start the
// previous state isn't known, and treating the first signal as a
// reconnect would fire a spurious sync on every launch. Consumers see
// Unknown as Offline (reads fall back to cache, writes queue).
package connectivity

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/stridefit/stride/internal/queue"
	syncengine "github.com/stridefit/stride/internal/sync"
)

// State is the connectivity state machine.
type State int

const (
	StateUnknown State = iota
	StateOffline
	StateOnline
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateOnline:
		return "online"
	default:
		return "unknown"
	}
}

// ErrOffline is returned by SyncNow while the controller believes the
// device is offline.
var ErrOffline = errors.New("connectivity: offline")

// Prober answers one reachability question. Implementations must be
// safe for repeated calls; HTTPProber is the production one, tests
// substitute their own.
type Prober interface {
	Online(ctx context.Context) bool
}

// Status is the UI-visible snapshot.
type Status struct {
	Online        bool             `json:"online"`
	Initialized   bool             `json:"initialized"`
	PendingCount  int              `json:"pending_count"`
	FailedOps     []queue.FailedOp `json:"failed_ops,omitempty"`
	Syncing       bool             `json:"syncing"`
	LastSyncTime  time.Time        `json:"last_sync_time"`
	LastSyncError string           `json:"last_sync_error,omitempty"`
}

// SyncListener is notified after each completed pass. Used by the
// dashboard to broadcast results; nil results accompany pass-level
// errors.
type SyncListener func(result *syncengine.Result, err error)

// Config holds controller tunables.
type Config struct {
	// PollInterval is how often the prober is consulted.
	PollInterval time.Duration

	// Logger for controller activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PollInterval: 5 * time.Second,
		Logger:       log.New(os.Stderr, "[connectivity] ", log.LstdFlags),
	}
}

// Controller monitors connectivity and drives the sync engine.
//
// Transitions are handled sequentially on a single goroutine: a
// transition is fully decided (including whether to trigger a pass)
// before the next one is looked at, so a reconnect flicker can't fire
// two passes for one edge. The engine's own guard is the second line of
// defense.
type Controller struct {
	prober   Prober
	engine   *syncengine.Engine
	queue    *queue.Store
	config   *Config
	listener SyncListener

	mu          sync.Mutex
	state       State
	lastSyncErr string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller. listener may be nil.
func New(prober Prober, engine *syncengine.Engine, q *queue.Store, config *Config, listener SyncListener) *Controller {
	if config == nil {
		config = DefaultConfig()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		prober:   prober,
		engine:   engine,
		queue:    q,
		config:   config,
		listener: listener,
		state:    StateUnknown,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins polling. It returns immediately; Stop shuts the loop
// down and waits for it.
func (c *Controller) Start() {
	c.wg.Add(1)
	go c.run()
}

// Stop shuts down the poll loop. A pass already in flight runs to
// completion over its snapshot; only new passes are prevented.
func (c *Controller) Stop() {
	c.cancel()
	c.wg.Wait()
}

// run is the poll loop. One goroutine, so transition handling is
// naturally serialized.
func (c *Controller) run() {
	defer c.wg.Done()

	// Immediate first probe so the app doesn't sit in Unknown for a full
	// poll interval.
	c.observe(c.probe())

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.observe(c.probe())
		}
	}
}

// probe consults the prober with a bounded context.
func (c *Controller) probe() State {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.PollInterval)
	defer cancel()

	if c.prober.Online(ctx) {
		return StateOnline
	}
	return StateOffline
}

// observe applies one connectivity signal and decides whether it is the
// reconnect edge.
func (c *Controller) observe(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()

	if prev == next {
		return
	}

	c.config.Logger.Printf("Connectivity: %s -> %s", prev, next)

	// Only the offline->online edge triggers a pass. unknown->online is
	// a cold start, not a reconnect.
	if prev == StateOffline && next == StateOnline {
		c.runPass()
	}
}

// State returns the current connectivity state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Online reports whether the controller believes the device is online.
// Unknown counts as offline.
func (c *Controller) Online() bool {
	return c.State() == StateOnline
}

// SyncNow requests a manual pass. It is a no-op returning an error when
// the controller believes the device is offline or a pass is already
// running.
func (c *Controller) SyncNow() (*syncengine.Result, error) {
	if !c.Online() {
		return nil, ErrOffline
	}
	return c.runPass()
}

// runPass executes one reconciliation pass and records its outcome.
func (c *Controller) runPass() (*syncengine.Result, error) {
	result, err := c.engine.Sync(c.ctx)
	if err != nil {
		if !errors.Is(err, syncengine.ErrSyncRunning) {
			c.setLastError(err.Error())
			c.config.Logger.Printf("Sync pass failed: %v", err)
			c.notify(nil, err)
		}
		return nil, err
	}

	if len(result.Errors) > 0 {
		c.setLastError(result.Errors[0].Error)
	} else {
		c.setLastError("")
	}

	c.notify(result, nil)
	return result, nil
}

func (c *Controller) notify(result *syncengine.Result, err error) {
	if c.listener != nil {
		c.listener(result, err)
	}
}

func (c *Controller) setLastError(msg string) {
	c.mu.Lock()
	c.lastSyncErr = msg
	c.mu.Unlock()
}

// DismissError clears the last sync error. Purely informational state;
// dismissal never triggers a retry.
func (c *Controller) DismissError() {
	c.setLastError("")
}

// ClearFailed drops the failed-operations list.
func (c *Controller) ClearFailed() {
	c.queue.ClearFailed()
}

// Status returns the UI-visible snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	state := c.state
	lastErr := c.lastSyncErr
	c.mu.Unlock()

	return Status{
		Online:        state == StateOnline,
		Initialized:   state != StateUnknown,
		PendingCount:  c.queue.Len(),
		FailedOps:     c.queue.Failed(),
		Syncing:       c.engine.Running(),
		LastSyncTime:  c.engine.LastSyncTime(),
		LastSyncError: lastErr,
	}
}
