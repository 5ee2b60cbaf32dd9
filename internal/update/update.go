package update

import (
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rorical/streamchat/internal/eventbus"
	"github.com/Rorical/streamchat/internal/models"
)

// HandleUpdateWithEventBus handles the messages that change AppModel. The
// second return is false when msg should also reach the input widget.
func HandleUpdateWithEventBus(appModel *models.AppModel, input *textarea.Model, msg tea.Msg, eb *eventbus.EventBus) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return HandleKeyMsgWithEventBus(appModel, input, msg, eb)
	case tea.WindowSizeMsg:
		HandleWindowSizeMsg(appModel, msg)
		return nil, false
	case CoreEventMsg:
		return HandleCoreEvent(appModel, msg), true
	}
	return nil, false
}
