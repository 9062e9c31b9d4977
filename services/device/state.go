package device

import (
	"context"
	"errors"
	"fmt"
)

const (
	// BrightnessMin is the lowest brightness level, in percent.
	BrightnessMin = 0
	// BrightnessMax is the highest brightness level, in percent.
	BrightnessMax = 100
	// BrightnessStep is the amount brightness changes by for each increment or decrement.
	BrightnessStep = 20
)

var (
	// ErrInvalidState is returned when a device state is missing fields or has values outside their domain.
	ErrInvalidState = errors.New("invalid device state")
)

// StateService supplies the current state of the device.
// Implementations may block; callers should expect the request to be slow and to fail.
type StateService interface {
	FetchDeviceState(ctx context.Context) (*State, error)
}

// State is the controllable state of a floodlight.
type State struct {
	// Brightness is a percentage within [BrightnessMin, BrightnessMax].
	Brightness int

	// TimeLeft is the number of hours of battery remaining.
	TimeLeft int

	NightVision  bool
	DuskTillDawn bool
	Flashing     bool
}

// Validate ensures the state holds values within their domains.
func (s *State) Validate() error {
	if s.Brightness < BrightnessMin || s.Brightness > BrightnessMax {
		return fmt.Errorf("%w: brightness %d outside [%d, %d]", ErrInvalidState, s.Brightness, BrightnessMin, BrightnessMax)
	}
	if s.TimeLeft < 0 {
		return fmt.Errorf("%w: negative time left %d", ErrInvalidState, s.TimeLeft)
	}
	return nil
}

// CanIncrement returns whether a brightness increment would change the state.
func (s State) CanIncrement() bool {
	return s.Brightness <= BrightnessMax-BrightnessStep
}

// CanDecrement returns whether a brightness decrement would change the state.
func (s State) CanDecrement() bool {
	return s.Brightness >= BrightnessMin+BrightnessStep
}

// IncrementBrightness raises the brightness by one step.
// At the top of the range this is a no-op; the return value reports whether anything changed.
func (s *State) IncrementBrightness() bool {
	if !s.CanIncrement() {
		return false
	}
	s.Brightness += BrightnessStep
	return true
}

// DecrementBrightness lowers the brightness by one step.
// At the bottom of the range this is a no-op; the return value reports whether anything changed.
func (s *State) DecrementBrightness() bool {
	if !s.CanDecrement() {
		return false
	}
	s.Brightness -= BrightnessStep
	return true
}

func (s State) String() string {
	return fmt.Sprintf("brightness=%d%% time_left=%dh night_vision=%t dusk_till_dawn=%t flashing=%t",
		s.Brightness, s.TimeLeft, s.NightVision, s.DuskTillDawn, s.Flashing)
}
