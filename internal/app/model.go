package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Rorical/streamchat/internal/dispatcher"
	"github.com/Rorical/streamchat/internal/models"
	"github.com/Rorical/streamchat/internal/update"
	"github.com/Rorical/streamchat/ui/components"
)

const (
	inputPlaceholder = "How can I build a chatbot in Go?"
	inputHeight      = 3
)

type AppModel struct {
	appModel   models.AppModel
	dispatcher *dispatcher.EventDispatcher
	input      textarea.Model
	spinner    spinner.Model
	viewport   viewport.Model
	title      string
}

func newAppModel(disp *dispatcher.EventDispatcher, serverURL string) *AppModel {
	ta := textarea.New()
	ta.Placeholder = inputPlaceholder
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &AppModel{
		appModel: models.AppModel{
			Messages:  make([]models.Message, 0),
			Status:    update.StatusReady,
			ServerURL: serverURL,
		},
		dispatcher: disp,
		input:      ta,
		spinner:    sp,
		viewport:   viewport.New(80, 20),
		title:      "streamchat · " + serverURL,
	}
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.dispatcher.ListenForCoreEvents(),
	)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if _, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.appModel.AssistantThinking {
			m.refreshViewport()
		}
		return m, cmd
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "pgup":
			m.viewport.HalfViewUp()
			return m, nil
		case "pgdown":
			m.viewport.HalfViewDown()
			return m, nil
		}
	}

	eventBus := m.dispatcher.GetEventBus()
	cmd, handled := update.HandleUpdateWithEventBus(&m.appModel, &m.input, msg, eventBus)
	cmds = append(cmds, cmd)

	switch msg.(type) {
	case update.CoreEventMsg:
		m.refreshViewport()
		cmds = append(cmds, m.dispatcher.ListenForCoreEvents())
	case tea.WindowSizeMsg:
		m.resize()
	}

	if !handled {
		var inputCmd tea.Cmd
		m.input, inputCmd = m.input.Update(msg)
		cmds = append(cmds, inputCmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *AppModel) resize() {
	width := m.appModel.Width
	m.input.SetWidth(max(width-6, 10))

	// header + input box (content plus border) + status bar
	chrome := 1 + inputHeight + 2 + 1
	m.viewport.Width = width
	m.viewport.Height = max(m.appModel.Height-chrome, 3)
	m.refreshViewport()
}

func (m *AppModel) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(components.RenderMessages(m.appModel.Messages, m.viewport.Width, m.spinner.View()))
	if atBottom || m.appModel.Busy() {
		m.viewport.GotoBottom()
	}
}

func (m *AppModel) View() string {
	var b strings.Builder

	width := m.appModel.Width
	b.WriteString(components.RenderHeader(m.title, width))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(components.RenderInput(m.input.View(), width))
	b.WriteString("\n")
	b.WriteString(components.RenderStatus(m.appModel.Status, m.appModel.Busy(), m.appModel.Failed, m.spinner.View(), width))

	return b.String()
}
