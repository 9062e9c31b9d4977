package widget

import (
	"github.com/gdamore/tcell"
	"github.com/rivo/tview"
)

// LogView is a widget to display log output.
type LogView struct {
	*tview.TextView

	app *tview.Application
}

// NewLogView creates a new log widget.
func NewLogView(app *tview.Application) *LogView {
	l := &LogView{
		TextView: tview.NewTextView(),
		app:      app,
	}

	l.SetTextAlign(tview.AlignLeft).
		SetTextColor(tcell.ColorBlue).
		SetScrollable(true).
		SetBorder(true).
		SetTitle("Log")

	return l
}

// Append adds the contents to the end of the log and scrolls to it.
func (l *LogView) Append(contents string) {
	l.app.QueueUpdateDraw(func() {
		l.Write([]byte(contents))
		l.ScrollToEnd()
	})
}
