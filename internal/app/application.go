package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rorical/streamchat/internal/client"
	"github.com/Rorical/streamchat/internal/config"
	"github.com/Rorical/streamchat/internal/core"
	"github.com/Rorical/streamchat/internal/dispatcher"
	"github.com/Rorical/streamchat/internal/eventbus"
	"github.com/Rorical/streamchat/internal/logger"
)

// Application manages the complete application lifecycle
type Application struct {
	config      *config.Config
	logger      *slog.Logger
	closeLog    func() error
	eventBus    *eventbus.EventBus
	dispatcher  *dispatcher.EventDispatcher
	service     *core.ChatService
	model       *AppModel
	programOpts []tea.ProgramOption
}

func NewApplication(cfg *config.Config) (*Application, error) {
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}

	log, closeLog, err := logger.New(tuiLoggerConfig(cfg))
	if err != nil {
		return nil, err
	}

	eb := eventbus.NewEventBus()
	eb.SetErrorCallback(func(e eventbus.EventBusError) {
		log.Warn("event bus", "operation", e.Operation, "error", e.Err)
	})

	disp := dispatcher.NewEventDispatcher(eb)
	relayClient := client.New(cfg.Client.ServerURL, cfg.ClientToken(), nil)
	chatService := core.NewChatService(relayClient, eb, log.With("component", "controller"))

	return &Application{
		config:      cfg,
		logger:      log,
		closeLog:    closeLog,
		eventBus:    eb,
		dispatcher:  disp,
		service:     chatService,
		model:       newAppModel(disp, cfg.Client.ServerURL),
		programOpts: []tea.ProgramOption{tea.WithAltScreen()},
	}, nil
}

// tuiLoggerConfig keeps log lines off the terminal the UI draws on.
func tuiLoggerConfig(cfg *config.Config) config.LoggerConfig {
	lc := cfg.Logger
	switch strings.ToLower(lc.Output) {
	case "", "stderr", "stdout":
		dir := "."
		if cfg.Path() != "" {
			dir = filepath.Dir(cfg.Path())
		}
		lc.Output = filepath.Join(dir, "streamchat.log")
	}
	return lc
}

func (app *Application) Start() error {
	app.logger.Info("starting chat", "server", app.config.Client.ServerURL)
	app.service.Start()

	p := tea.NewProgram(app.model, app.programOpts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func (app *Application) Stop() {
	app.dispatcher.Stop()
	app.service.Stop()
	app.eventBus.Close()
	if err := app.closeLog(); err != nil {
		app.logger.Error("close log", "error", err)
	}
}
