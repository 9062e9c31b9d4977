package device

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// Field names used on the wire, matching the JSON shape of the floodlight backend.
const (
	fieldBrightness   = "brightness"
	fieldTimeLeft     = "timeLeft"
	fieldNightVision  = "nightVision"
	fieldDuskTillDawn = "duskTillDawn"
	fieldFlashing     = "flashing"
)

// ToStruct encodes the state into a protobuf Struct for transmission.
func (s *State) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		fieldBrightness:   s.Brightness,
		fieldTimeLeft:     s.TimeLeft,
		fieldNightVision:  s.NightVision,
		fieldDuskTillDawn: s.DuskTillDawn,
		fieldFlashing:     s.Flashing,
	})
}

// FromStruct decodes and validates a state received on the wire.
// Every field must be present and correctly typed.
func FromStruct(st *structpb.Struct) (*State, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidState)
	}

	fields := st.GetFields()
	s := &State{}
	var err error

	if s.Brightness, err = intField(fields, fieldBrightness); err != nil {
		return nil, err
	}
	if s.TimeLeft, err = intField(fields, fieldTimeLeft); err != nil {
		return nil, err
	}
	if s.NightVision, err = boolField(fields, fieldNightVision); err != nil {
		return nil, err
	}
	if s.DuskTillDawn, err = boolField(fields, fieldDuskTillDawn); err != nil {
		return nil, err
	}
	if s.Flashing, err = boolField(fields, fieldFlashing); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func intField(fields map[string]*structpb.Value, name string) (int, error) {
	v, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidState, name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a number", ErrInvalidState, name)
	}
	if n.NumberValue != math.Trunc(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidState, name)
	}
	if math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidState, name)
	}
	return int(n.NumberValue), nil
}

func boolField(fields map[string]*structpb.Value, name string) (bool, error) {
	v, ok := fields[name]
	if !ok {
		return false, fmt.Errorf("%w: missing %s", ErrInvalidState, name)
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%w: %s is not a bool", ErrInvalidState, name)
	}
	return b.BoolValue, nil
}
