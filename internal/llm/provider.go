package llm

import (
	"context"

	"github.com/Rorical/streamchat/internal/models"
)

// EventType discriminates the events a Stream yields.
type EventType int

const (
	EventToken EventType = iota
	EventDone
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventToken:
		return "token"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one item of a token stream. A stream yields any number of
// EventToken events followed by exactly one EventDone or EventError.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Request is a single completion call. Messages are already in provider
// order: system instruction, history, newest human turn.
type Request struct {
	Messages []models.Message
	Model    string
}

// Stream is a lazy, finite, non-restartable sequence of events. Recv returns
// io.EOF once the terminal event has been consumed. Close releases the
// provider session and may be called at any time.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Provider opens token streams against a completion backend.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}

func chooseModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}
