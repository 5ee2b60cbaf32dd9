package llm

import (
	"context"
	"io"
)

type channelStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	events <-chan Event
}

// newEventStream runs produce in its own goroutine and exposes what it emits
// as a Stream. A nil return from produce appends EventDone, an error appends
// EventError; either way the channel is closed afterwards.
func newEventStream(ctx context.Context, produce func(context.Context, chan<- Event) error) Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		final := Event{Type: EventDone}
		if err := produce(streamCtx, ch); err != nil {
			final = Event{Type: EventError, Err: err}
		}
		select {
		case ch <- final:
		case <-streamCtx.Done():
		}
	}()
	return &channelStream{ctx: streamCtx, cancel: cancel, events: ch}
}

// emit sends ev unless ctx is done first.
func emit(ctx context.Context, ch chan<- Event, ev Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- ev:
		return nil
	}
}

func (s *channelStream) Recv() (Event, error) {
	// Drain buffered events before looking at ctx so a terminal event that
	// raced with cancellation is not lost.
	select {
	case event, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return event, nil
	default:
	}

	select {
	case <-s.ctx.Done():
		return Event{}, s.ctx.Err()
	case event, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return event, nil
	}
}

func (s *channelStream) Close() error {
	s.cancel()
	return nil
}
