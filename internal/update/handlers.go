package update

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rorical/streamchat/internal/eventbus"
	"github.com/Rorical/streamchat/internal/models"
)

const (
	StatusReady    = "Ready"
	StatusThinking = "Thinking"
	StatusWriting  = "Writing"
	StatusStopping = "Stopping"
)

// HandleKeyMsgWithEventBus handles keyboard input using event bus
func HandleKeyMsgWithEventBus(appModel *models.AppModel, input *textarea.Model, keyMsg tea.KeyMsg, eb *eventbus.EventBus) (tea.Cmd, bool) {
	switch keyMsg.String() {
	case "ctrl+c":
		return tea.Quit, true
	case "esc":
		if !appModel.Busy() {
			return nil, true
		}
		if err := eb.SendToCore(eventbus.CancelEvent{}); err != nil {
			appModel.Status = "Error stopping response: " + err.Error()
			return nil, true
		}
		appModel.Status = StatusStopping
		return nil, true
	case "enter":
		// Submission is disabled until the controller reports the turn ended.
		if appModel.Busy() {
			return nil, true
		}
		prompt := input.Value()
		if strings.TrimSpace(prompt) == "" {
			return nil, true
		}
		if err := eb.SendToCore(eventbus.SubmitEvent{Prompt: prompt}); err != nil {
			appModel.Status = "Error sending message: " + err.Error()
			return nil, true
		}
		input.Reset()
		return nil, true
	}
	return nil, false
}

// CoreEventMsg wraps core events for Bubble Tea
type CoreEventMsg struct {
	Event eventbus.CoreEvent
}

// HandleCoreEvent processes events from the core
func HandleCoreEvent(appModel *models.AppModel, coreEventMsg CoreEventMsg) tea.Cmd {
	switch event := coreEventMsg.Event.(type) {
	case eventbus.StateUpdateEvent:
		appModel.Messages = event.Messages
		appModel.AssistantThinking = event.AssistantThinking
		appModel.IsWriting = event.IsWriting
		appModel.Failed = event.Error != nil

		switch {
		case event.AssistantThinking:
			appModel.Status = StatusThinking
		case event.IsWriting:
			appModel.Status = StatusWriting
		case event.Error != nil:
			appModel.Status = "Response ended early: " + event.Error.Error()
		default:
			appModel.Status = StatusReady
		}
	}

	return nil
}

func HandleWindowSizeMsg(appModel *models.AppModel, sizeMsg tea.WindowSizeMsg) {
	appModel.Width = sizeMsg.Width
	appModel.Height = sizeMsg.Height
}
