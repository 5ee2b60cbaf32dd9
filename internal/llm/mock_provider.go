package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockTurn scripts one Stream call of MockProvider.
type MockTurn struct {
	Tokens  []string        // Emitted in order
	Err     error           // Returned after Tokens, ending the stream with EventError
	OpenErr error           // Returned from Stream itself
	Delay   time.Duration   // Pause before each token
	Hold    <-chan struct{} // If set, block after Tokens until closed or cancelled
	// Finished receives the producer's outcome (nil, Err or a context error).
	Finished chan<- error
}

// MockProvider replays scripted turns and records every request.
type MockProvider struct {
	name      string
	turns     []MockTurn
	turnIndex int
	Requests  []Request
	mu        sync.Mutex
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (m *MockProvider) Name() string {
	return m.name
}

// AddTurn appends a scripted turn and returns the provider for chaining.
func (m *MockProvider) AddTurn(t MockTurn) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return m
}

// AddTokens is shorthand for a turn that emits tokens and ends cleanly.
func (m *MockProvider) AddTokens(tokens ...string) *MockProvider {
	return m.AddTurn(MockTurn{Tokens: tokens})
}

// RequestCount returns how many times Stream was called.
func (m *MockProvider) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// LastRequest returns the most recent request, if any.
func (m *MockProvider) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return Request{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

func (m *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	if m.turnIndex >= len(m.turns) {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock provider: no more turns configured (expected turn %d, have %d)", m.turnIndex, len(m.turns))
	}
	turn := m.turns[m.turnIndex]
	m.turnIndex++
	m.mu.Unlock()

	if turn.OpenErr != nil {
		return nil, turn.OpenErr
	}

	return newEventStream(ctx, func(ctx context.Context, ch chan<- Event) (err error) {
		if turn.Finished != nil {
			defer func() { turn.Finished <- err }()
		}
		for _, token := range turn.Tokens {
			if turn.Delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(turn.Delay):
				}
			}
			if err := emit(ctx, ch, Event{Type: EventToken, Text: token}); err != nil {
				return err
			}
		}
		if turn.Hold != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-turn.Hold:
			}
		}
		return turn.Err
	}), nil
}
