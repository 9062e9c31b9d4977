package widget

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell"
	"github.com/rivo/tview"
	"github.com/rmrobinson/floodlight/lib/stream"
	"github.com/rmrobinson/floodlight/services/device"
	"github.com/rmrobinson/floodlight/services/ui/panel"
)

const barSegments = 5

// Controls are the operations the Floodlight widget invokes in response to user input.
type Controls interface {
	IncrementBrightness()
	DecrementBrightness()
	SetNightVision(bool)
	SetDuskTillDawn(bool)
	SetFlashing(bool)
}

// Floodlight is a widget that displays and edits the state of a single floodlight.
type Floodlight struct {
	*tview.Flex

	app      *tview.Application
	controls Controls

	barText        *tview.TextView
	brightnessText *tview.TextView
	timeLeftText   *tview.TextView
	statusText     *tview.TextView
	plusButton     *tview.Button
	minusButton    *tview.Button
	nightVision    *tview.Checkbox
	duskTillDawn   *tview.Checkbox
	flashing       *tview.Checkbox

	snapshot panel.Snapshot
}

// NewFloodlight creates the widget. Nothing useful is displayed until the first Refresh.
func NewFloodlight(app *tview.Application, name string, controls Controls) *Floodlight {
	f := &Floodlight{
		Flex:           tview.NewFlex(),
		app:            app,
		controls:       controls,
		barText:        tview.NewTextView(),
		brightnessText: tview.NewTextView(),
		timeLeftText:   tview.NewTextView(),
		statusText:     tview.NewTextView(),
		plusButton:     tview.NewButton("+"),
		minusButton:    tview.NewButton("-"),
		nightVision:    tview.NewCheckbox(),
		duskTillDawn:   tview.NewCheckbox(),
		flashing:       tview.NewCheckbox(),
	}

	f.barText.SetDynamicColors(true).
		SetTextAlign(tview.AlignRight)

	f.brightnessText.SetTextAlign(tview.AlignCenter).
		SetBorder(true).
		SetTitle("Level")

	f.timeLeftText.SetTextAlign(tview.AlignLeft).
		SetBorder(true).
		SetTitle("Battery").
		SetTitleAlign(tview.AlignLeft)

	f.statusText.SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)

	f.nightVision.SetLabel("Night Vision   ").
		SetChangedFunc(controls.SetNightVision)
	f.duskTillDawn.SetLabel("Dusk Till Dawn ").
		SetChangedFunc(controls.SetDuskTillDawn)
	f.flashing.SetLabel("Flashing       ").
		SetChangedFunc(controls.SetFlashing)

	f.plusButton.SetSelectedFunc(controls.IncrementBrightness)
	f.minusButton.SetSelectedFunc(controls.DecrementBrightness)

	// Tab cycles through the controls.
	f.plusButton.SetBlurFunc(func(key tcell.Key) {
		f.app.SetFocus(f.minusButton)
	})
	f.minusButton.SetBlurFunc(func(key tcell.Key) {
		f.app.SetFocus(f.nightVision)
	})
	f.nightVision.SetDoneFunc(func(key tcell.Key) {
		f.app.SetFocus(f.duskTillDawn)
	})
	f.duskTillDawn.SetDoneFunc(func(key tcell.Key) {
		f.app.SetFocus(f.flashing)
	})
	f.flashing.SetDoneFunc(func(key tcell.Key) {
		f.app.SetFocus(f.plusButton)
	})

	f.SetInputCapture(f.onKey)

	f.SetBorder(true).
		SetTitle(name).
		SetTitleAlign(tview.AlignLeft)

	f.SetDirection(tview.FlexRow).
		AddItem(f.barText, 1, 1, false).
		AddItem(tview.NewFlex().
			AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
				AddItem(f.plusButton, 1, 1, true).
				AddItem(f.brightnessText, 3, 1, false).
				AddItem(f.minusButton, 1, 1, false), 9, 1, true).
			AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
				AddItem(f.timeLeftText, 3, 1, false).
				AddItem(f.nightVision, 1, 1, false).
				AddItem(f.duskTillDawn, 1, 1, false).
				AddItem(f.flashing, 1, 1, false), 0, 1, false), 5, 1, true).
		AddItem(f.statusText, 1, 1, false)

	f.apply(panel.Snapshot{})
	return f
}

// Refresh redraws the widget from the supplied snapshot.
func (f *Floodlight) Refresh(snap panel.Snapshot) {
	f.app.QueueUpdateDraw(func() {
		f.apply(snap)
	})
}

// Run refreshes the widget from every snapshot received on the sink until it is closed.
func (f *Floodlight) Run(sink *stream.Sink[panel.Snapshot]) {
	for snap := range sink.Messages() {
		f.Refresh(snap)
	}
}

func (f *Floodlight) apply(snap panel.Snapshot) {
	f.snapshot = snap

	f.barText.SetText(brightnessBar(snap))
	f.brightnessText.SetText(brightnessLabel(snap))
	f.timeLeftText.SetText(timeLeftLabel(snap))
	f.statusText.SetText(statusLabel(snap))

	f.nightVision.SetChecked(snap.State.NightVision)
	f.duskTillDawn.SetChecked(snap.State.DuskTillDawn)
	f.flashing.SetChecked(snap.State.Flashing)

	setButtonEnabled(f.plusButton, snap.CanIncrement())
	setButtonEnabled(f.minusButton, snap.CanDecrement())
}

func (f *Floodlight) onKey(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() != tcell.KeyRune {
		return event
	}

	switch event.Rune() {
	case '+', '=':
		f.controls.IncrementBrightness()
	case '-', '_':
		f.controls.DecrementBrightness()
	case 'n':
		f.controls.SetNightVision(!f.snapshot.State.NightVision)
	case 'd':
		f.controls.SetDuskTillDawn(!f.snapshot.State.DuskTillDawn)
	case 'f':
		f.controls.SetFlashing(!f.snapshot.State.Flashing)
	default:
		return event
	}
	return nil
}

// tview buttons can't be disabled; a disabled control is greyed out and the controller ignores it.
func setButtonEnabled(b *tview.Button, enabled bool) {
	if enabled {
		b.SetLabelColor(tcell.ColorWhite).
			SetBackgroundColor(tcell.ColorBlue)
		return
	}
	b.SetLabelColor(tcell.ColorGray).
		SetBackgroundColor(tcell.ColorBlack)
}

func brightnessBar(snap panel.Snapshot) string {
	if snap.Loading {
		return "[gray]" + strings.Repeat("·", barSegments*2)
	}

	lit := snap.State.Brightness * barSegments / device.BrightnessMax
	return "[aqua]" + strings.Repeat("■ ", lit) + "[gray]" + strings.Repeat("□ ", barSegments-lit)
}

func brightnessLabel(snap panel.Snapshot) string {
	if snap.Loading {
		return "--"
	}
	return fmt.Sprintf("%d%%", snap.State.Brightness)
}

func timeLeftLabel(snap panel.Snapshot) string {
	if snap.Loading {
		return "Time left  --"
	}
	return fmt.Sprintf("Time left  %dh", snap.State.TimeLeft)
}

func statusLabel(snap panel.Snapshot) string {
	switch snap.Phase {
	case panel.PhaseLoading:
		return "[yellow]loading..."
	case panel.PhaseFailed:
		return fmt.Sprintf("[red]state unavailable: %v", snap.Err)
	}
	return ""
}
