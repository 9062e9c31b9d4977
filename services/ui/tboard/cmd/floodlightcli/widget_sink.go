package main

import (
	"github.com/rmrobinson/floodlight/services/ui/tboard/widget"
)

// WidgetSink implements zapcore.WriteSyncer by appending all messages to a log widget.
type WidgetSink struct {
	widget *widget.LogView
}

// NewWidgetSink creates a new widget logger sink
func NewWidgetSink(widget *widget.LogView) *WidgetSink {
	return &WidgetSink{
		widget: widget,
	}
}

// Write saves the contents to the widget
func (s *WidgetSink) Write(p []byte) (n int, err error) {
	s.widget.Append(string(p))
	return len(p), nil
}

// Sync is a nop
func (s *WidgetSink) Sync() error { return nil }
