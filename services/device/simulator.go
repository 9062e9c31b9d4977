package device

import (
	"context"
	"sync"
	"time"

	"github.com/rmrobinson/floodlight/lib/stream"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultDrainSchedule runs the battery drain once an hour.
const DefaultDrainSchedule = "@every 1h"

// Simulator is a StateService backed by an in-memory floodlight.
// Its battery drains on a cron schedule while Run is active; every change is broadcast to watchers.
type Simulator struct {
	logger *zap.Logger
	delay  time.Duration

	state     State
	stateLock sync.Mutex

	updates *stream.Source[State]
}

// NewSimulator creates a simulated floodlight in the supplied state.
// Each fetch is answered after the supplied delay.
func NewSimulator(logger *zap.Logger, initial State, delay time.Duration) *Simulator {
	return &Simulator{
		logger:  logger,
		delay:   delay,
		state:   initial,
		updates: stream.NewSource[State](logger),
	}
}

// FetchDeviceState returns a copy of the simulated state once the configured delay has elapsed.
func (s *Simulator) FetchDeviceState(ctx context.Context) (*State, error) {
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	s.stateLock.Lock()
	ret := s.state
	s.stateLock.Unlock()

	return &ret, nil
}

// Watch returns a sink which receives the state after each change.
func (s *Simulator) Watch() *stream.Sink[State] {
	return s.updates.NewSink()
}

// Drain removes an hour of battery life, stopping at zero.
func (s *Simulator) Drain() {
	s.stateLock.Lock()
	if s.state.TimeLeft <= 0 {
		s.stateLock.Unlock()
		return
	}
	s.state.TimeLeft--
	current := s.state
	s.stateLock.Unlock()

	s.logger.Debug("battery drained",
		zap.Int("time_left", current.TimeLeft),
	)
	s.updates.SendMessage(current)
}

// Run drains the battery on the supplied cron schedule until the context is cancelled.
func (s *Simulator) Run(ctx context.Context, schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, s.Drain); err != nil {
		return err
	}

	s.logger.Info("simulator running",
		zap.String("drain_schedule", schedule),
	)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.updates.Close()

	s.logger.Info("simulator stopped")
	return nil
}
