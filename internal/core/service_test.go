package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rorical/streamchat/internal/eventbus"
	"github.com/Rorical/streamchat/internal/models"
)

type streamRequest struct {
	history []models.Message
	prompt  string
}

// pipeStreamer hands each turn a pipe the test writes tokens into. Cancelling
// the turn closes the read side, as an aborted HTTP request would.
type pipeStreamer struct {
	mu       sync.Mutex
	requests []streamRequest
	writers  chan *io.PipeWriter
	openErr  error
}

func newPipeStreamer() *pipeStreamer {
	return &pipeStreamer{writers: make(chan *io.PipeWriter, 4)}
}

func (p *pipeStreamer) Stream(ctx context.Context, history []models.Message, prompt string) (io.ReadCloser, error) {
	p.mu.Lock()
	p.requests = append(p.requests, streamRequest{history: history, prompt: prompt})
	p.mu.Unlock()
	if p.openErr != nil {
		return nil, p.openErr
	}

	pr, pw := io.Pipe()
	go func() {
		<-ctx.Done()
		pr.CloseWithError(ctx.Err())
	}()
	p.writers <- pw
	return pr, nil
}

func (p *pipeStreamer) Requests() []streamRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]streamRequest(nil), p.requests...)
}

func (p *pipeStreamer) next(t *testing.T) *io.PipeWriter {
	t.Helper()
	select {
	case pw := <-p.writers:
		return pw
	case <-time.After(5 * time.Second):
		t.Fatal("no stream was opened")
		return nil
	}
}

func startService(t *testing.T, streamer Streamer) (*ChatService, *eventbus.EventBus) {
	t.Helper()
	eb := eventbus.NewEventBus()
	cs := NewChatService(streamer, eb, nil)
	cs.Start()
	t.Cleanup(cs.Stop)
	waitFor(t, eb, func(s eventbus.StateUpdateEvent) bool { return len(s.Messages) == 0 })
	return cs, eb
}

func waitFor(t *testing.T, eb *eventbus.EventBus, pred func(eventbus.StateUpdateEvent) bool) eventbus.StateUpdateEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-eb.CoreToUI():
			s := ev.(eventbus.StateUpdateEvent)
			if pred(s) {
				return s
			}
		case <-timeout:
			t.Fatal("timed out waiting for state")
		}
	}
}

func atRest(s eventbus.StateUpdateEvent) bool {
	return !s.AssistantThinking && !s.IsWriting
}

func lastText(s eventbus.StateUpdateEvent) string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[len(s.Messages)-1].Text
}

func write(t *testing.T, pw *io.PipeWriter, chunks ...string) {
	t.Helper()
	for _, c := range chunks {
		_, err := pw.Write([]byte(c))
		require.NoError(t, err)
	}
}

func TestSubmitStreamsChunksInOrder(t *testing.T) {
	streamer := newPipeStreamer()
	_, eb := startService(t, streamer)

	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: "hi"}))
	thinking := waitFor(t, eb, func(s eventbus.StateUpdateEvent) bool { return s.AssistantThinking })
	assert.Equal(t, []models.Message{{Role: models.Human, Text: "hi"}, {Role: models.AI, Text: ""}}, thinking.Messages)

	pw := streamer.next(t)
	write(t, pw, "Hel", "lo")
	require.NoError(t, pw.Close())

	final := waitFor(t, eb, func(s eventbus.StateUpdateEvent) bool { return atRest(s) && len(s.Messages) == 2 })
	assert.Equal(t, []models.Message{{Role: models.Human, Text: "hi"}, {Role: models.AI, Text: "Hello"}}, final.Messages)
	assert.NoError(t, final.Error)

	reqs := streamer.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].history)
	assert.Equal(t, "hi", reqs[0].prompt)
}

func TestCancelKeepsReceivedTokens(t *testing.T) {
	streamer := newPipeStreamer()
	_, eb := startService(t, streamer)

	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: "count"}))
	pw := streamer.next(t)
	write(t, pw, "a", "b")
	waitFor(t, eb, func(s eventbus.StateUpdateEvent) bool { return s.IsWriting && lastText(s) == "ab" })

	require.NoError(t, eb.SendToCore(eventbus.CancelEvent{}))
	cancelled := waitFor(t, eb, atRest)
	assert.Equal(t, "ab", lastText(cancelled))
	assert.NoError(t, cancelled.Error)

	// Anything still arriving on the aborted stream is ignored.
	_, _ = pw.Write([]byte("c"))

	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: "again"}))
	next := waitFor(t, eb, func(s eventbus.StateUpdateEvent) bool { return len(s.Messages) == 4 })
	assert.Equal(t, "ab", next.Messages[1].Text)

	// The second turn's stream is opened after the snapshot above is published.
	streamer.next(t)
	reqs := streamer.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []models.Message{{Role: models.Human, Text: "count"}, {Role: models.AI, Text: "ab"}}, reqs[1].history)
}

func TestSubmitWhileInFlightIsIgnored(t *testing.T) {
	streamer := newPipeStreamer()
	_, eb := startService(t, streamer)

	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: "one"}))
	pw := streamer.next(t)
	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: "two"}))
	write(t, pw, "done")
	require.NoError(t, pw.Close())

	final := waitFor(t, eb, func(s eventbus.StateUpdateEvent) bool { return atRest(s) && len(s.Messages) > 0 })
	assert.Equal(t, []models.Message{{Role: models.Human, Text: "one"}, {Role: models.AI, Text: "done"}}, final.Messages)
	assert.Len(t, streamer.Requests(), 1)
}

func TestEmptyPromptIsIgnored(t *testing.T) {
	streamer := newPipeStreamer()
	_, eb := startService(t, streamer)

	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: ""}))
	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: "  \n"}))
	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: "real"}))

	s := waitFor(t, eb, func(s eventbus.StateUpdateEvent) bool { return len(s.Messages) > 0 })
	assert.Equal(t, "real", s.Messages[0].Text)
	assert.Len(t, streamer.Requests(), 1)
}

func TestCancelAtRestIsNoop(t *testing.T) {
	streamer := newPipeStreamer()
	_, eb := startService(t, streamer)

	require.NoError(t, eb.SendToCore(eventbus.CancelEvent{}))
	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: "hi"}))
	s := waitFor(t, eb, func(s eventbus.StateUpdateEvent) bool { return len(s.Messages) > 0 })
	assert.True(t, s.AssistantThinking)
}

func TestStreamFailureKeepsPartialAnswer(t *testing.T) {
	streamer := newPipeStreamer()
	_, eb := startService(t, streamer)

	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: "hi"}))
	pw := streamer.next(t)
	write(t, pw, "Sor")
	pw.CloseWithError(io.ErrUnexpectedEOF)

	final := waitFor(t, eb, func(s eventbus.StateUpdateEvent) bool { return atRest(s) && len(s.Messages) == 2 })
	assert.Equal(t, "Sor", lastText(final))
	assert.ErrorIs(t, final.Error, io.ErrUnexpectedEOF)
}

func TestOpenFailureEndsTurn(t *testing.T) {
	streamer := newPipeStreamer()
	streamer.openErr = errors.New("connection refused")
	_, eb := startService(t, streamer)

	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: "hi"}))
	final := waitFor(t, eb, func(s eventbus.StateUpdateEvent) bool { return atRest(s) && len(s.Messages) == 2 })
	assert.Equal(t, "", lastText(final))
	assert.EqualError(t, final.Error, "connection refused")
}

func TestMultiByteRunesAreNotSplit(t *testing.T) {
	streamer := newPipeStreamer()
	_, eb := startService(t, streamer)

	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: "hi"}))
	pw := streamer.next(t)
	write(t, pw, "h\xc3", "\xa9llo \xe4\xb8", "\x96")
	require.NoError(t, pw.Close())

	final := waitFor(t, eb, func(s eventbus.StateUpdateEvent) bool {
		assert.True(t, utf8.ValidString(lastText(s)), "snapshot text %q", lastText(s))
		return atRest(s) && len(s.Messages) == 2
	})
	assert.Equal(t, "héllo 世", lastText(final))
}

func TestStopAbortsInFlightTurn(t *testing.T) {
	streamer := newPipeStreamer()
	eb := eventbus.NewEventBus()
	cs := NewChatService(streamer, eb, nil)
	cs.Start()

	require.NoError(t, eb.SendToCore(eventbus.SubmitEvent{Prompt: "hi"}))
	pw := streamer.next(t)

	done := make(chan struct{})
	go func() {
		cs.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	_, err := pw.Write([]byte("late"))
	assert.Error(t, err)
}

func TestSplitRunes(t *testing.T) {
	tests := []struct {
		in, complete, rest string
	}{
		{"", "", ""},
		{"abc", "abc", ""},
		{"ab\xc3", "ab", "\xc3"},
		{"\xc3\xa9", "\xc3\xa9", ""},
		{"x\xe4\xb8", "x", "\xe4\xb8"},
		{"\xf0\x9f\x98", "", "\xf0\x9f\x98"},
		{"\xf0\x9f\x98\x80", "\xf0\x9f\x98\x80", ""},
	}
	for _, tt := range tests {
		complete, rest := splitRunes([]byte(tt.in))
		assert.Equal(t, tt.complete, string(complete), "input %q", tt.in)
		assert.Equal(t, tt.rest, string(rest), "input %q", tt.in)
	}
}
