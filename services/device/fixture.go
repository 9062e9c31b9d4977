package device

import (
	"bytes"
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v3"
)

// LoadStateFile reads a YAML-encoded state from the supplied path.
func LoadStateFile(path string) (*State, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	return ParseState(data)
}

// stateFile mirrors State with every key required.
type stateFile struct {
	Brightness   *int  `yaml:"brightness"`
	TimeLeft     *int  `yaml:"timeLeft"`
	NightVision  *bool `yaml:"nightVision"`
	DuskTillDawn *bool `yaml:"duskTillDawn"`
	Flashing     *bool `yaml:"flashing"`
}

// ParseState decodes and validates a YAML-encoded state.
// Like the wire form, every field must be present and unknown keys are rejected.
func ParseState(data []byte) (*State, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	f := &stateFile{}
	if err := dec.Decode(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	switch {
	case f.Brightness == nil:
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidState, fieldBrightness)
	case f.TimeLeft == nil:
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidState, fieldTimeLeft)
	case f.NightVision == nil:
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidState, fieldNightVision)
	case f.DuskTillDawn == nil:
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidState, fieldDuskTillDawn)
	case f.Flashing == nil:
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidState, fieldFlashing)
	}

	s := &State{
		Brightness:   *f.Brightness,
		TimeLeft:     *f.TimeLeft,
		NightVision:  *f.NightVision,
		DuskTillDawn: *f.DuskTillDawn,
		Flashing:     *f.Flashing,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
