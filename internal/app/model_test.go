package app

import (
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rorical/streamchat/internal/config"
	"github.com/Rorical/streamchat/internal/dispatcher"
	"github.com/Rorical/streamchat/internal/eventbus"
	"github.com/Rorical/streamchat/internal/models"
	"github.com/Rorical/streamchat/internal/update"
)

func newTestModel(t *testing.T) (*AppModel, *eventbus.EventBus) {
	t.Helper()
	eb := eventbus.NewEventBus()
	m := newAppModel(dispatcher.NewEventDispatcher(eb), "http://relay")
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return m, eb
}

func TestModelRendersSnapshots(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(update.CoreEventMsg{Event: eventbus.StateUpdateEvent{
		Messages: []models.Message{{Role: models.Human, Text: "hi"}, {Role: models.AI, Text: "Hello"}},
	}})
	assert.NotNil(t, cmd, "the model must keep listening for core events")

	view := m.View()
	assert.Contains(t, view, "You: hi")
	assert.Contains(t, view, "Hello")
	assert.Contains(t, view, update.StatusReady)
}

func TestModelSubmitsTypedPrompt(t *testing.T) {
	m, eb := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	select {
	case ev := <-eb.UIToCore():
		assert.Equal(t, eventbus.SubmitEvent{Prompt: "hi"}, ev)
	default:
		t.Fatal("enter did not submit")
	}
	assert.Empty(t, m.input.Value())
}

func TestModelShowsStopHintWhileBusy(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(update.CoreEventMsg{Event: eventbus.StateUpdateEvent{
		Messages:          []models.Message{{Role: models.Human, Text: "hi"}, {Role: models.AI}},
		AssistantThinking: true,
	}})
	assert.Contains(t, m.View(), "esc: stop generating")
}

func TestPlaceholder(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Equal(t, inputPlaceholder, m.input.Placeholder)
}

func TestTUILoggerConfigAvoidsTerminal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".streamchat", "config.yaml")
	cfg, err := config.LoadConfigFrom(path)
	require.NoError(t, err)

	lc := tuiLoggerConfig(cfg)
	assert.Equal(t, filepath.Join(dir, ".streamchat", "streamchat.log"), lc.Output)

	cfg.Logger.Output = filepath.Join(dir, "custom.log")
	assert.Equal(t, cfg.Logger.Output, tuiLoggerConfig(cfg).Output)
}
