package stream

import "sync"

// Sink is an implementation of a message sync; it receives messages broadcast by its parent source.
type Sink[T any] struct {
	id      string
	channel chan T
	once    sync.Once

	source *Source[T]
}

// Messages returns the read channel of messages broadcast by the source.
// The backing channel is buffered to allow for additional messages to be generated
// while the current message is being processed; that being said the sink has a responsibility
// to consume messages from this channel as quickly as possible.
// The channel is closed when either the sink or its source is closed.
func (s *Sink[T]) Messages() <-chan T {
	return s.channel
}

// Close releases any resources allocated as part of this sink's creation.
// It is safe to call more than once.
func (s *Sink[T]) Close() {
	s.source.removeSink(s)
	s.closeChannel()
}

func (s *Sink[T]) closeChannel() {
	s.once.Do(func() {
		close(s.channel)
	})
}
