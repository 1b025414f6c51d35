// Package openaichat implements llm.Completer against any OpenAI-compatible
// chat completions endpoint (OpenAI itself, Ollama, vLLM, LiteLLM, an
// in-cluster gateway, ...).
package openaichat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/engramhq/engram/pkg/llm"
)

const completionsPath = "/chat/completions"

// defaultTimeout bounds a single collaborator call at the transport level.
// Callers typically wrap Complete in their own tighter context deadline.
var defaultTimeout = 60 * time.Second

// Config holds client settings for the collaborator endpoint.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:11434/v1".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	config Config
	http   *http.Client
}

var _ llm.Completer = (*Client)(nil)

// New creates a collaborator client for the given endpoint.
func New(config Config) *Client {
	return &Client{
		config: config,
		http:   &http.Client{Timeout: defaultTimeout},
	}
}

// Complete performs one non-streaming completion call and returns the
// assistant's text content. Empty content or an empty choice list yields
// ("", nil) — the collaborator answered, it just said nothing usable.
// Transport failures, non-2xx statuses, and undecodable bodies return errors.
func (c *Client) Complete(ctx context.Context, req *llm.ChatRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+completionsPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building completion request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling extraction model: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr chatError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("extraction model returned %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("extraction model returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", nil
	}

	return parsed.Choices[0].Message.Content, nil
}
