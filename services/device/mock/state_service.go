package mock

import (
	"context"
	"sync"
	"time"

	"github.com/rmrobinson/floodlight/services/device"
)

// DefaultDelay is how long the mock takes to answer a fetch.
const DefaultDelay = 2 * time.Second

// DefaultState returns the canned state served by the mock.
func DefaultState() device.State {
	return device.State{
		Brightness:   20,
		TimeLeft:     12,
		NightVision:  false,
		DuskTillDawn: true,
		Flashing:     true,
	}
}

// StateService is a stand-in for the floodlight backend.
// It answers every fetch with a fixed state (or error) after a fixed delay.
type StateService struct {
	delay time.Duration
	state device.State
	err   error

	callsLock sync.Mutex
	calls     int
}

// Option customises the mock.
type Option func(*StateService)

// WithDelay changes how long each fetch takes. A zero delay answers immediately.
func WithDelay(d time.Duration) Option {
	return func(s *StateService) {
		s.delay = d
	}
}

// WithState changes the state the mock answers with.
func WithState(state device.State) Option {
	return func(s *StateService) {
		s.state = state
	}
}

// WithError makes every fetch fail with the supplied error.
func WithError(err error) Option {
	return func(s *StateService) {
		s.err = err
	}
}

// NewStateService creates a new mock which serves DefaultState after DefaultDelay unless configured otherwise.
func NewStateService(opts ...Option) *StateService {
	s := &StateService{
		delay: DefaultDelay,
		state: DefaultState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchDeviceState waits for the configured delay and then returns a copy of the configured state.
func (s *StateService) FetchDeviceState(ctx context.Context) (*device.State, error) {
	s.callsLock.Lock()
	s.calls++
	s.callsLock.Unlock()

	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	if s.err != nil {
		return nil, s.err
	}

	ret := s.state
	return &ret, nil
}

// Calls returns how many fetches have been made.
func (s *StateService) Calls() int {
	s.callsLock.Lock()
	defer s.callsLock.Unlock()

	return s.calls
}
