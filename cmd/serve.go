package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rorical/streamchat/internal/config"
	"github.com/Rorical/streamchat/internal/llm"
	"github.com/Rorical/streamchat/internal/logger"
	"github.com/Rorical/streamchat/internal/relay"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stream relay",
	Long: `Serve POST /api: authenticate the bearer token, replay the posted history to the
provider of the active profile and stream its tokens back verbatim.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		return runServer(cmd.Context(), cfg)
	},
}

// newProvider builds the relay's upstream: the active profile's OpenAI
// endpoint behind a circuit breaker.
func newProvider(cfg *config.Config, log *slog.Logger) *llm.CircuitBreakerProvider {
	return llm.NewCircuitBreakerProvider(llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:     cfg.GetAPIKey(),
		BaseURL:    cfg.GetBaseURL(),
		Model:      cfg.GetModel(),
		MaxRetries: llm.DefaultMaxRetries,
	}, log), llm.BreakerConfig{}, log)
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	provider := newProvider(cfg, log)
	handler := relay.New(relay.Config{APIKey: cfg.ServerAPIKey()}, provider, log).Handler()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("relay listening", "addr", srv.Addr, "provider", provider.Name(), "profile", cfg.ActiveProfile)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}
