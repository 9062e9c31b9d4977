package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSimulatorFetchReturnsCopy(t *testing.T) {
	sim := NewSimulator(zaptest.NewLogger(t), State{Brightness: 40, TimeLeft: 2}, 0)

	s, err := sim.FetchDeviceState(context.Background())
	require.NoError(t, err)
	s.Brightness = 100

	again, err := sim.FetchDeviceState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, again.Brightness)
}

func TestSimulatorFetchHonoursCancellation(t *testing.T) {
	sim := NewSimulator(zaptest.NewLogger(t), State{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := sim.FetchDeviceState(ctx)
	assert.Nil(t, s)
	assert.Equal(t, context.Canceled, err)
}

func TestSimulatorDrain(t *testing.T) {
	sim := NewSimulator(zaptest.NewLogger(t), State{Brightness: 20, TimeLeft: 2}, 0)
	sink := sim.Watch()
	defer sink.Close()

	sim.Drain()
	sim.Drain()
	sim.Drain()

	assert.Equal(t, 1, (<-sink.Messages()).TimeLeft)
	assert.Equal(t, 0, (<-sink.Messages()).TimeLeft)
	assert.Len(t, sink.Messages(), 0)

	s, err := sim.FetchDeviceState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, s.TimeLeft)
}

func TestSimulatorRun(t *testing.T) {
	sim := NewSimulator(zaptest.NewLogger(t), State{TimeLeft: 5}, 0)
	sink := sim.Watch()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sim.Run(ctx, "@every 1s")
	}()

	select {
	case s := <-sink.Messages():
		assert.Equal(t, 4, s.TimeLeft)
	case <-time.After(5 * time.Second):
		t.Fatal("no drain observed")
	}

	cancel()
	require.NoError(t, <-done)

	// Run closes the update source on exit.
	for range sink.Messages() {
	}
}

func TestSimulatorRunRejectsBadSchedule(t *testing.T) {
	sim := NewSimulator(zaptest.NewLogger(t), State{}, 0)
	assert.Error(t, sim.Run(context.Background(), "not a schedule"))
}
