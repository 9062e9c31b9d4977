package panel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rmrobinson/floodlight/services/device"
	"github.com/rmrobinson/floodlight/services/device/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// gatedService answers a fetch only once release is closed.
type gatedService struct {
	release chan struct{}
	state   *device.State
	err     error
}

func newGatedService(state *device.State, err error) *gatedService {
	return &gatedService{
		release: make(chan struct{}),
		state:   state,
		err:     err,
	}
}

func (g *gatedService) FetchDeviceState(ctx context.Context) (*device.State, error) {
	<-g.release
	if g.err != nil {
		return nil, g.err
	}
	ret := *g.state
	return &ret, nil
}

func waitSettled(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case <-c.Settled():
	case <-time.After(5 * time.Second):
		t.Fatal("load did not settle")
	}
}

// loadedController returns a started controller whose load has completed with the supplied state.
func loadedController(t *testing.T, state device.State) *Controller {
	c := NewController(zaptest.NewLogger(t), mock.NewStateService(mock.WithDelay(0), mock.WithState(state)))
	c.Start(context.Background())
	waitSettled(t, c)
	t.Cleanup(c.Close)
	return c
}

func TestInitialLoad(t *testing.T) {
	canned := mock.DefaultState()
	svc := newGatedService(&canned, nil)
	c := NewController(zaptest.NewLogger(t), svc)
	defer c.Close()

	assert.Equal(t, PhaseInitial, c.Snapshot().Phase)

	c.Start(context.Background())

	snap := c.Snapshot()
	assert.True(t, snap.Loading)
	assert.Equal(t, PhaseLoading, snap.Phase)
	assert.Equal(t, device.State{}, snap.State)
	assert.NoError(t, snap.Err)

	close(svc.release)
	waitSettled(t, c)

	snap = c.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, PhaseLoaded, snap.Phase)
	assert.Equal(t, device.State{
		Brightness:   20,
		TimeLeft:     12,
		NightVision:  false,
		DuskTillDawn: true,
		Flashing:     true,
	}, snap.State)
	assert.NoError(t, c.Err())
}

func TestStartOnlyLoadsOnce(t *testing.T) {
	svc := mock.NewStateService(mock.WithDelay(0))
	c := NewController(zaptest.NewLogger(t), svc)
	defer c.Close()

	c.Start(context.Background())
	c.Start(context.Background())
	waitSettled(t, c)
	c.Start(context.Background())

	assert.Equal(t, 1, svc.Calls())
	assert.Equal(t, PhaseLoaded, c.Snapshot().Phase)
}

func TestFailedLoad(t *testing.T) {
	fetchErr := errors.New("connection refused")
	svc := newGatedService(nil, fetchErr)
	c := NewController(zaptest.NewLogger(t), svc)
	defer c.Close()

	c.Start(context.Background())
	c.SetNightVision(true)
	close(svc.release)
	waitSettled(t, c)

	snap := c.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.Equal(t, fetchErr, snap.Err)
	assert.Equal(t, device.State{NightVision: true}, snap.State)
}

func TestInvalidLoadFails(t *testing.T) {
	bad := device.State{Brightness: 150}
	c := NewController(zaptest.NewLogger(t), mock.NewStateService(mock.WithDelay(0), mock.WithState(bad)))
	defer c.Close()

	c.Start(context.Background())
	waitSettled(t, c)

	assert.Equal(t, PhaseFailed, c.Snapshot().Phase)
	assert.True(t, errors.Is(c.Err(), device.ErrInvalidState))
	assert.Equal(t, device.State{}, c.State())
}

func TestBrightnessGatedWhileLoading(t *testing.T) {
	canned := mock.DefaultState()
	svc := newGatedService(&canned, nil)
	c := NewController(zaptest.NewLogger(t), svc)
	defer c.Close()

	c.Start(context.Background())

	// The zeroed state would allow an increment if not for the load in progress.
	assert.False(t, c.CanIncrement())
	c.IncrementBrightness()
	c.DecrementBrightness()
	assert.Equal(t, 0, c.State().Brightness)

	// Toggles are not gated.
	c.SetFlashing(true)
	assert.True(t, c.State().Flashing)

	close(svc.release)
	waitSettled(t, c)

	assert.True(t, c.CanIncrement())
	c.IncrementBrightness()
	assert.Equal(t, 40, c.State().Brightness)
}

func TestBrightnessSteps(t *testing.T) {
	for start := device.BrightnessMin; start <= device.BrightnessMax; start += device.BrightnessStep {
		c := loadedController(t, device.State{Brightness: start})
		c.IncrementBrightness()

		expected := start + device.BrightnessStep
		if expected > device.BrightnessMax {
			expected = device.BrightnessMax
		}
		assert.Equal(t, expected, c.State().Brightness, "increment from %d", start)

		c = loadedController(t, device.State{Brightness: start})
		c.DecrementBrightness()

		expected = start - device.BrightnessStep
		if expected < device.BrightnessMin {
			expected = device.BrightnessMin
		}
		assert.Equal(t, expected, c.State().Brightness, "decrement from %d", start)
	}
}

func TestBrightnessBoundaries(t *testing.T) {
	c := loadedController(t, device.State{Brightness: 100})
	assert.False(t, c.CanIncrement())
	assert.True(t, c.CanDecrement())
	for i := 0; i < 3; i++ {
		c.IncrementBrightness()
	}
	assert.Equal(t, 100, c.State().Brightness)

	c = loadedController(t, device.State{Brightness: 0})
	assert.False(t, c.CanDecrement())
	assert.True(t, c.CanIncrement())
	for i := 0; i < 3; i++ {
		c.DecrementBrightness()
	}
	assert.Equal(t, 0, c.State().Brightness)
}

func TestBrightnessSequence(t *testing.T) {
	c := loadedController(t, device.State{Brightness: 20})

	c.IncrementBrightness()
	c.IncrementBrightness()
	assert.Equal(t, 60, c.State().Brightness)

	c.DecrementBrightness()
	assert.Equal(t, 40, c.State().Brightness)
}

var toggleTests = []struct {
	name  string
	apply func(*Controller)
	want  func(device.State) device.State
}{
	{
		"night vision",
		func(c *Controller) { c.SetNightVision(true) },
		func(s device.State) device.State { s.NightVision = true; return s },
	},
	{
		"dusk till dawn off",
		func(c *Controller) { c.SetDuskTillDawn(false) },
		func(s device.State) device.State { s.DuskTillDawn = false; return s },
	},
	{
		"flashing off",
		func(c *Controller) { c.SetFlashing(false) },
		func(s device.State) device.State { s.Flashing = false; return s },
	},
}

func TestToggles(t *testing.T) {
	for _, tt := range toggleTests {
		t.Run(tt.name, func(t *testing.T) {
			start := mock.DefaultState()
			c := loadedController(t, start)

			tt.apply(c)
			assert.Equal(t, tt.want(start), c.State())
		})
	}
}

func TestObserversSeeEveryChangeInOrder(t *testing.T) {
	canned := mock.DefaultState()
	svc := newGatedService(&canned, nil)
	c := NewController(zaptest.NewLogger(t), svc)
	defer c.Close()

	var lock sync.Mutex
	var seen []Snapshot
	c.Subscribe(func(s Snapshot) {
		// Reads are permitted from within an observer.
		assert.Equal(t, s.State, c.State())

		lock.Lock()
		seen = append(seen, s)
		lock.Unlock()
	})

	c.Start(context.Background())
	close(svc.release)
	waitSettled(t, c)

	c.IncrementBrightness()
	c.SetNightVision(true)
	// No-op edits do not notify.
	c.SetNightVision(true)

	lock.Lock()
	defer lock.Unlock()

	require.Len(t, seen, 4)
	assert.Equal(t, PhaseLoading, seen[0].Phase)
	assert.True(t, seen[0].Loading)
	assert.Equal(t, PhaseLoaded, seen[1].Phase)
	assert.Equal(t, canned, seen[1].State)
	assert.Equal(t, 40, seen[2].State.Brightness)
	assert.False(t, seen[2].State.NightVision)
	assert.True(t, seen[3].State.NightVision)
	assert.Equal(t, 40, seen[3].State.Brightness)
}

func TestUnsubscribe(t *testing.T) {
	c := loadedController(t, device.State{Brightness: 20})

	calls := 0
	unsubscribe := c.Subscribe(func(Snapshot) { calls++ })

	c.IncrementBrightness()
	unsubscribe()
	c.IncrementBrightness()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 60, c.State().Brightness)
}

func TestConcurrentEditsAreConsistent(t *testing.T) {
	c := loadedController(t, device.State{Brightness: 0})

	var lock sync.Mutex
	var last Snapshot
	count := 0
	c.Subscribe(func(s Snapshot) {
		lock.Lock()
		last = s
		count++
		lock.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.IncrementBrightness()
		}()
		go func(on bool) {
			defer wg.Done()
			c.SetFlashing(on)
		}(i%2 == 0)
	}
	wg.Wait()

	final := c.State()
	assert.GreaterOrEqual(t, final.Brightness, device.BrightnessMin)
	assert.LessOrEqual(t, final.Brightness, device.BrightnessMax)
	assert.Equal(t, 0, final.Brightness%device.BrightnessStep)

	lock.Lock()
	defer lock.Unlock()
	assert.Greater(t, count, 0)
	assert.Equal(t, final, last.State)
}

func TestWatch(t *testing.T) {
	c := NewController(zaptest.NewLogger(t), mock.NewStateService(mock.WithDelay(0)))
	sink := c.Watch()

	c.Start(context.Background())
	waitSettled(t, c)

	first := <-sink.Messages()
	assert.Equal(t, PhaseLoading, first.Phase)
	second := <-sink.Messages()
	assert.Equal(t, PhaseLoaded, second.Phase)

	c.Close()
	_, ok := <-sink.Messages()
	assert.False(t, ok)
}

func TestWatchDeliversLatestAfterBurst(t *testing.T) {
	c := loadedController(t, mock.DefaultState())
	sink := c.Watch()

	for i := 0; i < 25; i++ {
		c.SetFlashing(i%2 == 0)
	}
	c.Close()

	var last Snapshot
	received := 0
	for snap := range sink.Messages() {
		last = snap
		received++
	}

	assert.Greater(t, received, 0)
	assert.Equal(t, c.Snapshot(), last)
	assert.True(t, last.State.Flashing)
}

func TestCloseDropsLateResult(t *testing.T) {
	canned := mock.DefaultState()
	svc := newGatedService(&canned, nil)
	c := NewController(zaptest.NewLogger(t), svc)

	notified := 0
	c.Subscribe(func(Snapshot) { notified++ })

	c.Start(context.Background())
	c.Close()
	close(svc.release)
	waitSettled(t, c)

	snap := c.Snapshot()
	assert.Equal(t, device.State{}, snap.State)
	assert.True(t, snap.Loading)
	assert.Equal(t, PhaseLoading, snap.Phase)
	assert.Equal(t, 1, notified)

	c.SetFlashing(true)
	assert.False(t, c.State().Flashing)
}

func TestCloseCancelsFetch(t *testing.T) {
	svc := mock.NewStateService(mock.WithDelay(time.Hour))
	c := NewController(zaptest.NewLogger(t), svc)

	c.Start(context.Background())
	c.Close()
	waitSettled(t, c)

	assert.NoError(t, c.Err())
}

func TestStartAfterCloseIsNoop(t *testing.T) {
	svc := mock.NewStateService(mock.WithDelay(0))
	c := NewController(zaptest.NewLogger(t), svc)
	c.Close()
	c.Start(context.Background())

	assert.Equal(t, PhaseInitial, c.Snapshot().Phase)
	assert.Equal(t, 0, svc.Calls())
}

func TestOpenBackendFallsBackToMock(t *testing.T) {
	svc, closer, err := OpenBackend(context.Background(), zaptest.NewLogger(t), BackendConfig{MockDelay: 0})
	require.NoError(t, err)
	defer closer()

	s, err := svc.FetchDeviceState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mock.DefaultState(), *s)
}
