// Package assistant is the AI study helper. Messages starting with @bot are
// forwarded to an OpenAI-compatible completion API and the reply comes back
// into the room as a regular chat message. The collaborator is opaque: the
// chat core only sees Complete.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/studyroomhq/studyroom-chat/internal/config"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("assistant: not configured")

const systemPrompt = `You are an AI Study Assistant designed to help students with academic topics.
Explain concepts in simple terms, answer academic questions clearly and concisely,
summarize discussion points when requested, and offer study guidance.
If a question is not academic-related, politely redirect to study topics.`

// Assistant produces a completion for a study prompt.
type Assistant interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Enabled() bool
	Model() string
}

// Client talks to an OpenAI-compatible chat completions endpoint
// (OpenRouter by default).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
}

// NewClient builds the assistant from config. A client with no API key is
// valid but disabled.
func NewClient(cfg config.AssistantConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the prompt and returns the assistant's reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0.7,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("assistant: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("assistant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("assistant: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assistant: completion API returned %d", resp.StatusCode)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("assistant: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("assistant: completion API error: %s", completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("assistant: empty completion")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
