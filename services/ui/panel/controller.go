package panel

import (
	"context"
	"errors"
	"sync"

	"github.com/rmrobinson/floodlight/lib/stream"
	"github.com/rmrobinson/floodlight/services/device"
	"go.uber.org/zap"
)

var (
	// ErrNoState is recorded when the state service returns neither a state nor an error.
	ErrNoState = errors.New("state service returned no state")
)

// Phase describes how far the initial load has progressed.
type Phase int

// The phases of the initial load. Loaded and Failed are terminal.
const (
	PhaseInitial Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Snapshot is a consistent view of the controller at a point in time.
type Snapshot struct {
	State   device.State
	Loading bool
	Err     error
	Phase   Phase
}

// CanIncrement reports whether the increment control should be enabled.
func (s Snapshot) CanIncrement() bool {
	return !s.Loading && s.State.CanIncrement()
}

// CanDecrement reports whether the decrement control should be enabled.
func (s Snapshot) CanDecrement() bool {
	return !s.Loading && s.State.CanDecrement()
}

type observer struct {
	id uint64
	fn func(Snapshot)
}

// Controller owns the state of a single floodlight panel.
// It loads the state once from the state service and then applies local edits to it; edits are never written back.
//
// Observers registered with Subscribe are called synchronously after every change, in the order the changes
// were made, and always see the complete result of a change. They may read from the controller but must not
// modify it.
type Controller struct {
	logger *zap.Logger
	svc    device.StateService

	mu         sync.Mutex
	state      device.State
	loading    bool
	err        error
	phase      Phase
	closed     bool
	generation uint64
	cancel     context.CancelFunc
	observers  []observer
	nextID     uint64
	seq        uint64

	// delivered is the sequence number of the last change handed to observers.
	delivered   uint64
	deliverLock sync.Mutex
	deliverCond *sync.Cond

	updates *stream.Source[Snapshot]
	settled chan struct{}
}

// NewController creates a controller with a zeroed state. Nothing is fetched until Start is called.
func NewController(logger *zap.Logger, svc device.StateService) *Controller {
	c := &Controller{
		logger:  logger,
		svc:     svc,
		updates: stream.NewSource[Snapshot](logger),
		settled: make(chan struct{}),
	}
	c.deliverCond = sync.NewCond(&c.deliverLock)
	return c
}

// Start begins the initial load and returns without waiting for it.
// Only the first call has any effect; the outcome is visible through Snapshot, Subscribe and Watch.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.phase != PhaseInitial || c.closed {
		c.mu.Unlock()
		return
	}

	c.phase = PhaseLoading
	c.loading = true
	c.err = nil
	gen := c.generation

	ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Debug("loading device state")
	c.commitLocked()

	go c.load(ctx, gen)
}

func (c *Controller) load(ctx context.Context, gen uint64) {
	defer close(c.settled)

	state, err := c.svc.FetchDeviceState(ctx)
	if err == nil {
		if state == nil {
			err = ErrNoState
		} else {
			err = state.Validate()
		}
	}

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("controller closed, dropping device state result",
			zap.Error(err),
		)
		return
	}

	c.loading = false
	if err != nil {
		c.err = err
		c.phase = PhaseFailed
		c.logger.Warn("unable to load device state",
			zap.Error(err),
		)
	} else {
		c.state = *state
		c.phase = PhaseLoaded
		c.logger.Info("device state loaded",
			zap.Stringer("state", c.state),
		)
	}
	c.commitLocked()
}

// Settled is closed once the initial load has finished, successfully or not, or its result has been dropped.
func (c *Controller) Settled() <-chan struct{} {
	return c.settled
}

// IncrementBrightness raises the brightness by one step.
// It does nothing while loading or when brightness is already at its maximum.
func (c *Controller) IncrementBrightness() {
	c.update("increment brightness", func(s *device.State) bool {
		return !c.loading && s.IncrementBrightness()
	})
}

// DecrementBrightness lowers the brightness by one step.
// It does nothing while loading or when brightness is already at its minimum.
func (c *Controller) DecrementBrightness() {
	c.update("decrement brightness", func(s *device.State) bool {
		return !c.loading && s.DecrementBrightness()
	})
}

// SetNightVision sets the night vision mode. Unlike brightness this is permitted while loading.
func (c *Controller) SetNightVision(on bool) {
	c.update("set night vision", func(s *device.State) bool {
		return setBool(&s.NightVision, on)
	})
}

// SetDuskTillDawn sets the dusk till dawn mode.
func (c *Controller) SetDuskTillDawn(on bool) {
	c.update("set dusk till dawn", func(s *device.State) bool {
		return setBool(&s.DuskTillDawn, on)
	})
}

// SetFlashing sets the flashing mode.
func (c *Controller) SetFlashing(on bool) {
	c.update("set flashing", func(s *device.State) bool {
		return setBool(&s.Flashing, on)
	})
}

func setBool(field *bool, v bool) bool {
	if *field == v {
		return false
	}
	*field = v
	return true
}

// update applies fn to the state and notifies observers if it reports a change.
func (c *Controller) update(op string, fn func(*device.State) bool) {
	c.mu.Lock()
	if c.closed || !fn(&c.state) {
		c.mu.Unlock()
		return
	}

	c.logger.Debug(op,
		zap.Stringer("state", c.state),
	)
	c.commitLocked()
}

// commitLocked hands the current snapshot to observers and watchers.
// It must be called with c.mu held and returns with it released.
func (c *Controller) commitLocked() {
	c.seq++
	seq := c.seq
	snap := c.snapshotLocked()
	observers := make([]observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	c.deliverLock.Lock()
	for c.delivered != seq-1 {
		c.deliverCond.Wait()
	}

	for _, o := range observers {
		o.fn(snap)
	}
	c.updates.SendMessage(snap)

	c.delivered = seq
	c.deliverCond.Broadcast()
	c.deliverLock.Unlock()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:   c.state,
		Loading: c.loading,
		Err:     c.err,
		Phase:   c.phase,
	}
}

// Snapshot returns the current state of the controller.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

// State returns the current device state.
func (c *Controller) State() device.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Loading reports whether the initial load is in progress.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loading
}

// Err returns the error which failed the initial load, if any.
// Nothing retries the load; presentation is expected to surface this.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// CanIncrement reports whether IncrementBrightness would currently change anything.
func (c *Controller) CanIncrement() bool {
	return c.Snapshot().CanIncrement()
}

// CanDecrement reports whether DecrementBrightness would currently change anything.
func (c *Controller) CanDecrement() bool {
	return c.Snapshot().CanDecrement()
}

// Subscribe registers fn to be called after every change. The returned function removes the registration.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.observers = append(c.observers, observer{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		for idx, o := range c.observers {
			if o.id == id {
				c.observers = append(c.observers[:idx], c.observers[idx+1:]...)
				return
			}
		}
	}
}

// Watch returns a sink receiving every snapshot, for consumers running on their own goroutine.
// Slow consumers miss snapshots rather than block the controller. The sink is closed by Close.
func (c *Controller) Watch() *stream.Sink[Snapshot] {
	return c.updates.NewSink()
}

// Close tears the controller down. An in-flight load is cancelled and its result, if it still arrives,
// is discarded. Later edits are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	cancel := c.cancel
	c.observers = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.updates.Close()
}
