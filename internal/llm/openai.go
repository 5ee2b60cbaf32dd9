package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"

	logging "github.com/Rorical/streamchat/internal/logger"
	"github.com/Rorical/streamchat/internal/models"
)

// DefaultMaxRetries is how many times opening a stream is retried after the
// first attempt fails.
const DefaultMaxRetries = 1

// OpenAIConfig configures OpenAIProvider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional, for OpenAI-compatible gateways
	Model      string
	MaxRetries int
	HTTPClient *http.Client
}

// OpenAIProvider streams chat completions from the OpenAI API.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	maxRetries int
	logger     *slog.Logger
}

func NewOpenAIProvider(cfg OpenAIConfig, logger *slog.Logger) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("OpenAI (%s)", p.model)
}

// Stream opens the completion synchronously so open failures reach the caller
// as errors; only the receive loop runs in the background.
func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	stream, err := p.open(ctx, req)
	if err != nil {
		return nil, err
	}

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		// Closing the body unblocks a Recv waiting on the upstream.
		stop := context.AfterFunc(ctx, func() { stream.Close() })
		defer stop()
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("openai streaming error: %w", err)
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if err := emit(ctx, events, Event{Type: EventToken, Text: resp.Choices[0].Delta.Content}); err != nil {
				return err
			}
		}
	}), nil
}

// open starts the completion stream. Only the open is retried: once a token
// has been emitted a retry would duplicate output.
func (p *OpenAIProvider) open(ctx context.Context, req Request) (*openai.ChatCompletionStream, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    chooseModel(req.Model, p.model),
		Messages: toOpenAIMessages(req.Messages),
		Stream:   true,
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Warn("retrying completion stream", "attempt", attempt, "error", lastErr)
		}
		stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
		if err == nil {
			return stream, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("openai API error: %w", lastErr)
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openAIRole(msg.Role),
			Content: msg.Text,
		})
	}
	return out
}

func openAIRole(role models.Role) string {
	switch role {
	case models.AI:
		return openai.ChatMessageRoleAssistant
	case models.System:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
