package update

import (
	"errors"
	"testing"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rorical/streamchat/internal/eventbus"
	"github.com/Rorical/streamchat/internal/models"
)

func newInput(value string) *textarea.Model {
	ta := textarea.New()
	ta.SetValue(value)
	return &ta
}

func drain(eb *eventbus.EventBus) []eventbus.UIEvent {
	var events []eventbus.UIEvent
	for {
		select {
		case ev := <-eb.UIToCore():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestEnterSubmitsPrompt(t *testing.T) {
	eb := eventbus.NewEventBus()
	app := &models.AppModel{}
	input := newInput("hi there")

	_, handled := HandleKeyMsgWithEventBus(app, input, tea.KeyMsg{Type: tea.KeyEnter}, eb)

	assert.True(t, handled)
	assert.Equal(t, []eventbus.UIEvent{eventbus.SubmitEvent{Prompt: "hi there"}}, drain(eb))
	assert.Empty(t, input.Value())
}

func TestEnterIgnoredWhileBusyOrEmpty(t *testing.T) {
	eb := eventbus.NewEventBus()

	busy := &models.AppModel{IsWriting: true}
	input := newInput("queued")
	HandleKeyMsgWithEventBus(busy, input, tea.KeyMsg{Type: tea.KeyEnter}, eb)
	assert.Equal(t, "queued", input.Value())

	HandleKeyMsgWithEventBus(&models.AppModel{}, newInput("   "), tea.KeyMsg{Type: tea.KeyEnter}, eb)

	assert.Empty(t, drain(eb))
}

func TestEscCancelsOnlyWhenBusy(t *testing.T) {
	eb := eventbus.NewEventBus()

	idle := &models.AppModel{}
	HandleKeyMsgWithEventBus(idle, newInput(""), tea.KeyMsg{Type: tea.KeyEsc}, eb)
	assert.Empty(t, drain(eb))

	busy := &models.AppModel{AssistantThinking: true}
	HandleKeyMsgWithEventBus(busy, newInput(""), tea.KeyMsg{Type: tea.KeyEsc}, eb)
	assert.Equal(t, []eventbus.UIEvent{eventbus.CancelEvent{}}, drain(eb))
	assert.Equal(t, StatusStopping, busy.Status)
}

func TestCtrlCQuits(t *testing.T) {
	cmd, handled := HandleKeyMsgWithEventBus(&models.AppModel{}, newInput(""), tea.KeyMsg{Type: tea.KeyCtrlC}, eventbus.NewEventBus())
	assert.True(t, handled)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestTypingIsPassedThrough(t *testing.T) {
	_, handled := HandleKeyMsgWithEventBus(&models.AppModel{}, newInput(""), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}, eventbus.NewEventBus())
	assert.False(t, handled)
}

func TestHandleCoreEventStatus(t *testing.T) {
	app := &models.AppModel{}
	msgs := []models.Message{{Role: models.Human, Text: "hi"}, {Role: models.AI, Text: ""}}

	HandleCoreEvent(app, CoreEventMsg{Event: eventbus.StateUpdateEvent{Messages: msgs, AssistantThinking: true}})
	assert.Equal(t, StatusThinking, app.Status)
	assert.True(t, app.Busy())
	assert.Equal(t, msgs, app.Messages)

	HandleCoreEvent(app, CoreEventMsg{Event: eventbus.StateUpdateEvent{Messages: msgs, IsWriting: true}})
	assert.Equal(t, StatusWriting, app.Status)

	HandleCoreEvent(app, CoreEventMsg{Event: eventbus.StateUpdateEvent{Messages: msgs}})
	assert.Equal(t, StatusReady, app.Status)
	assert.False(t, app.Busy())
	assert.False(t, app.Failed)

	HandleCoreEvent(app, CoreEventMsg{Event: eventbus.StateUpdateEvent{Messages: msgs, Error: errors.New("cut")}})
	assert.True(t, app.Failed)
	assert.Contains(t, app.Status, "cut")
}

func TestWindowSize(t *testing.T) {
	app := &models.AppModel{}
	_, handled := HandleUpdateWithEventBus(app, newInput(""), tea.WindowSizeMsg{Width: 100, Height: 40}, eventbus.NewEventBus())
	assert.False(t, handled)
	assert.Equal(t, 100, app.Width)
	assert.Equal(t, 40, app.Height)
}
