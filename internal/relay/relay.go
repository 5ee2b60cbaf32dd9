package relay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Rorical/streamchat/internal/llm"
	logging "github.com/Rorical/streamchat/internal/logger"
	"github.com/Rorical/streamchat/internal/models"
)

// SystemPrompt is prepended to every conversation sent to the provider.
const SystemPrompt = "You are a friendly assistant."

const (
	unauthorizedBody = "Unauthorized"
	failureBody      = "Error processing request"
)

// Config is the relay's explicit configuration value.
type Config struct {
	APIKey string // bearer secret clients must present
	Model  string // optional override of the provider's default model
}

// Relay bridges a provider token stream onto an HTTP response. It keeps no
// state between requests.
type Relay struct {
	provider llm.Provider
	apiKey   []byte
	model    string
	logger   *slog.Logger
}

func New(cfg Config, provider llm.Provider, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Relay{
		provider: provider,
		apiKey:   []byte(cfg.APIKey),
		model:    cfg.Model,
		logger:   logger,
	}
}

// Handler returns the relay's routes wrapped in request logging.
func (r *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api", r.handleChat)
	mux.HandleFunc("GET /healthz", r.handleHealth)
	return LogRequests(r.logger, mux)
}

func (r *Relay) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (r *Relay) handleChat(w http.ResponseWriter, req *http.Request) {
	if err := r.authenticate(req); err != nil {
		r.logger.Warn("rejected chat request", "remote", req.RemoteAddr, "error", err)
		writeText(w, http.StatusUnauthorized, unauthorizedBody)
		return
	}

	messages, err := decodeConversation(req.Body)
	if err != nil {
		r.logger.Warn("rejected chat request", "remote", req.RemoteAddr, "error", err)
		writeText(w, http.StatusInternalServerError, failureBody)
		return
	}

	// Headers are committed before the provider is even contacted; from here
	// on the only failure signal left is an aborted body.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	sink := &responseSink{w: w, rc: http.NewResponseController(w)}
	if err := sink.Flush(); err != nil {
		r.abort(err)
	}

	if err := r.forward(req.Context(), messages, sink); err != nil {
		r.abort(err)
	}
}

// abort drops the connection without the chunked terminator so the client
// sees an abnormal end of stream. net/http recovers ErrAbortHandler quietly.
func (r *Relay) abort(err error) {
	r.logger.Error("chat stream aborted", "error", err)
	panic(http.ErrAbortHandler)
}

func (r *Relay) authenticate(req *http.Request) error {
	if len(r.apiKey) == 0 {
		return fmt.Errorf("%w: no bearer secret configured", ErrUnauthorized)
	}
	token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(token), r.apiKey) != 1 {
		return fmt.Errorf("%w: bad bearer token", ErrUnauthorized)
	}
	return nil
}

// decodeConversation parses the request body and returns the full provider
// input: system instruction, history, then the prompt as the newest human
// turn. Any entry with an unknown role fails the whole request.
func decodeConversation(body io.Reader) ([]models.Message, error) {
	var chatReq models.ChatRequest
	if err := json.NewDecoder(body).Decode(&chatReq); err != nil {
		return nil, fmt.Errorf("%w: decode body: %w", ErrMalformedInput, err)
	}
	history, err := chatReq.History()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	return BuildMessages(history, chatReq.Prompt), nil
}

// BuildMessages assembles the provider input for one turn.
func BuildMessages(history []models.Message, prompt string) []models.Message {
	messages := make([]models.Message, 0, len(history)+2)
	messages = append(messages, models.Message{Role: models.System, Text: SystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, models.Message{Role: models.Human, Text: prompt})
	return messages
}

type flushWriter interface {
	io.Writer
	Flush() error
}

type responseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (s *responseSink) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *responseSink) Flush() error                { return s.rc.Flush() }

// forward runs one provider session and copies each token to out as soon as
// it arrives. It returns nil only when the provider signalled a clean end.
func (r *Relay) forward(ctx context.Context, messages []models.Message, out flushWriter) error {
	stream, err := r.provider.Stream(ctx, llm.Request{Messages: messages, Model: r.model})
	if err != nil {
		return fmt.Errorf("%w: open: %w", ErrProviderStream, err)
	}
	defer stream.Close()

	tokens := 0
	for {
		ev, err := stream.Recv()
		if err != nil {
			return fmt.Errorf("%w: after %d tokens: %w", ErrProviderStream, tokens, err)
		}

		switch ev.Type {
		case llm.EventToken:
			if ev.Text == "" {
				continue
			}
			if _, err := io.WriteString(out, ev.Text); err != nil {
				return fmt.Errorf("%w: write: %w", ErrProviderStream, err)
			}
			if err := out.Flush(); err != nil {
				return fmt.Errorf("%w: flush: %w", ErrProviderStream, err)
			}
			tokens++
		case llm.EventDone:
			r.logger.Debug("chat stream finished", "provider", r.provider.Name(), "tokens", tokens)
			return nil
		case llm.EventError:
			return fmt.Errorf("%w: after %d tokens: %w", ErrProviderStream, tokens, ev.Err)
		}
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
