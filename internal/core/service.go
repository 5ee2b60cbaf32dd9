package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Rorical/streamchat/internal/eventbus"
	logging "github.com/Rorical/streamchat/internal/logger"
	"github.com/Rorical/streamchat/internal/models"
)

const defaultReadSize = 4096

// Streamer opens the token stream for one turn. *client.Client satisfies it.
type Streamer interface {
	Stream(ctx context.Context, history []models.Message, prompt string) (io.ReadCloser, error)
}

// turnEvent is posted by a read loop to the event loop.
type turnEvent interface {
	turn() int
}

type chunkEvent struct {
	id   int
	text string
}

type endEvent struct {
	id  int
	err error
}

func (e chunkEvent) turn() int { return e.id }
func (e endEvent) turn() int   { return e.id }

// ChatService owns the conversation. All transitions happen on the event
// loop goroutine; read loops only post events to it.
type ChatService struct {
	streamer   Streamer
	eventBus   *eventbus.EventBus
	logger     *slog.Logger
	state      ConversationState
	turnEvents chan turnEvent
	readSize   int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewChatService(streamer Streamer, eb *eventbus.EventBus, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatService{
		streamer:   streamer,
		eventBus:   eb,
		logger:     logger,
		turnEvents: make(chan turnEvent, 64),
		readSize:   defaultReadSize,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start runs the core logic in a goroutine
func (cs *ChatService) Start() {
	// Send initial state to UI immediately
	cs.pushStateToUI()
	cs.wg.Add(1)
	go cs.eventLoop()
}

// Stop cancels any in-flight turn and waits for every goroutine to exit.
func (cs *ChatService) Stop() {
	cs.cancel()
	cs.wg.Wait()
}

func (cs *ChatService) eventLoop() {
	defer cs.wg.Done()
	for {
		select {
		case <-cs.ctx.Done():
			return
		case event, ok := <-cs.eventBus.UIToCore():
			if !ok {
				return
			}
			cs.handleUIEvent(event)
		case event := <-cs.turnEvents:
			cs.handleTurnEvent(event)
		}
	}
}

func (cs *ChatService) handleUIEvent(event eventbus.UIEvent) {
	switch e := event.(type) {
	case eventbus.SubmitEvent:
		cs.submit(e.Prompt)
	case eventbus.CancelEvent:
		cs.cancelTurn()
	}
}

func (cs *ChatService) submit(prompt string) {
	if strings.TrimSpace(prompt) == "" {
		return
	}
	if cs.state.InFlight() {
		cs.logger.Debug("submit ignored, turn in flight", "turn", cs.state.Turn)
		return
	}

	history := cs.state.Messages
	ctx, cancel := context.WithCancel(cs.ctx)
	turn := cs.state.Turn + 1

	cs.apply(AddMessage{Prompt: prompt, Cancel: cancel, Turn: turn})
	cs.logger.Info("turn started", "turn", turn, "history", len(history))

	cs.wg.Add(1)
	go cs.readLoop(ctx, turn, history, prompt)
}

func (cs *ChatService) cancelTurn() {
	if !cs.state.InFlight() {
		return
	}
	cs.state.Cancel()
	cs.apply(Abort{})
	cs.logger.Info("turn cancelled", "turn", cs.state.Turn)
}

func (cs *ChatService) handleTurnEvent(event turnEvent) {
	switch e := event.(type) {
	case chunkEvent:
		cs.apply(UpdatePromptAnswer{Turn: e.id, Text: e.text})
	case endEvent:
		if !cs.state.InFlight() || e.id != cs.state.Turn {
			return
		}
		cs.state.Cancel()
		cs.apply(Done{Turn: e.id, Err: e.err})
		if e.err != nil {
			cs.logger.Warn("turn ended abnormally", "turn", e.id, "error", e.err)
		} else {
			cs.logger.Info("turn complete", "turn", e.id)
		}
	}
}

func (cs *ChatService) apply(a Action) {
	cs.state = Reduce(cs.state, a)
	cs.pushStateToUI()
}

func (cs *ChatService) pushStateToUI() {
	cs.eventBus.SendToUI(eventbus.StateUpdateEvent{
		Messages:          cs.state.Messages,
		AssistantThinking: cs.state.AssistantThinking,
		IsWriting:         cs.state.IsWriting,
		Error:             cs.state.LastError,
	})
}

// readLoop posts one chunkEvent per read and a single endEvent when the body
// ends or fails. Once ctx is cancelled it exits without posting anything.
func (cs *ChatService) readLoop(ctx context.Context, turn int, history []models.Message, prompt string) {
	defer cs.wg.Done()

	body, err := cs.streamer.Stream(ctx, history, prompt)
	if err != nil {
		if ctx.Err() == nil {
			cs.post(ctx, endEvent{id: turn, err: err})
		}
		return
	}
	defer body.Close()

	buf := make([]byte, cs.readSize)
	var pending []byte
	for {
		n, err := body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			complete, rest := splitRunes(pending)
			if len(complete) > 0 {
				if !cs.post(ctx, chunkEvent{id: turn, text: string(complete)}) {
					return
				}
			}
			pending = append(pending[:0], rest...)
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if len(pending) > 0 {
			if !cs.post(ctx, chunkEvent{id: turn, text: string(pending)}) {
				return
			}
		}
		if errors.Is(err, io.EOF) {
			err = nil
		}
		cs.post(ctx, endEvent{id: turn, err: err})
		return
	}
}

func (cs *ChatService) post(ctx context.Context, event turnEvent) bool {
	select {
	case cs.turnEvents <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// splitRunes holds back a trailing partial UTF-8 sequence so a multi-byte
// character split across reads is delivered whole.
func splitRunes(p []byte) (complete, rest []byte) {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if utf8.FullRune(p[i:]) {
			return p, nil
		}
		return p[:i], p[i:]
	}
	return p, nil
}
