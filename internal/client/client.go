package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Rorical/streamchat/internal/models"
)

// ErrUnexpectedStatus is returned when the relay answers with anything but
// 200, e.g. 401 for a bad token or 500 for a rejected body.
var ErrUnexpectedStatus = errors.New("unexpected relay status")

// Client posts conversations to a relay and hands back the raw token stream.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// New builds a client for the relay at baseURL. No timeout is set on the
// HTTP client: a stream lives as long as the provider keeps producing.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:   strings.TrimSuffix(baseURL, "/") + "/api",
		token:      token,
		httpClient: httpClient,
	}
}

// Stream sends history and prompt and returns the response body. Cancelling
// ctx aborts the request, which makes a pending Read on the body fail.
func (c *Client) Stream(ctx context.Context, history []models.Message, prompt string) (io.ReadCloser, error) {
	body, err := json.Marshal(models.NewChatRequest(history, prompt))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return resp.Body, nil
}
