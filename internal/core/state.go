package core

import (
	"context"

	"github.com/Rorical/streamchat/internal/models"
)

// Action is one of AddMessage, UpdatePromptAnswer, Abort or Done.
type Action interface {
	action()
}

// AddMessage opens a turn: the prompt and an empty assistant placeholder are
// appended, and Cancel becomes the only handle on the request.
type AddMessage struct {
	Prompt string
	Cancel context.CancelFunc
	Turn   int
}

// UpdatePromptAnswer appends one chunk to the assistant placeholder of Turn.
type UpdatePromptAnswer struct {
	Turn int
	Text string
}

// Abort ends the in-flight turn after its handle has been invoked.
type Abort struct{}

// Done ends Turn once its read loop has stopped. Err is nil on a clean end of
// stream.
type Done struct {
	Turn int
	Err  error
}

func (AddMessage) action()         {}
func (UpdatePromptAnswer) action() {}
func (Abort) action()              {}
func (Done) action()               {}

// ConversationState is the controller's snapshot. Messages is replaced, never
// mutated, so a published snapshot stays valid after later transitions.
type ConversationState struct {
	Messages          []models.Message
	AssistantThinking bool
	IsWriting         bool
	Cancel            context.CancelFunc
	Turn              int
	LastError         error
}

// InFlight reports whether a turn holds the cancel handle.
func (s ConversationState) InFlight() bool {
	return s.Cancel != nil
}

// Reduce applies a to s. Actions that do not fit the current state, such as
// a chunk for a turn that already ended, return s unchanged.
func Reduce(s ConversationState, a Action) ConversationState {
	switch a := a.(type) {
	case AddMessage:
		if s.InFlight() || a.Prompt == "" || a.Cancel == nil {
			return s
		}
		messages := make([]models.Message, len(s.Messages), len(s.Messages)+2)
		copy(messages, s.Messages)
		messages = append(messages,
			models.Message{Role: models.Human, Text: a.Prompt},
			models.Message{Role: models.AI, Text: ""},
		)
		return ConversationState{
			Messages:          messages,
			AssistantThinking: true,
			Cancel:            a.Cancel,
			Turn:              a.Turn,
		}

	case UpdatePromptAnswer:
		if !s.InFlight() || a.Turn != s.Turn || len(s.Messages) == 0 {
			return s
		}
		messages := make([]models.Message, len(s.Messages))
		copy(messages, s.Messages)
		messages[len(messages)-1].Text += a.Text
		s.Messages = messages
		s.AssistantThinking = false
		s.IsWriting = true
		return s

	case Abort:
		if !s.InFlight() {
			return s
		}
		return settle(s, nil)

	case Done:
		if !s.InFlight() || a.Turn != s.Turn {
			return s
		}
		return settle(s, a.Err)
	}
	return s
}

func settle(s ConversationState, err error) ConversationState {
	s.AssistantThinking = false
	s.IsWriting = false
	s.Cancel = nil
	s.LastError = err
	return s
}
