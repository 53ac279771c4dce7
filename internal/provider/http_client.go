package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"promptpilot/internal/logging"
)

// HTTPClient implements Client against any OpenAI-compatible chat-completions
// endpoint. It performs exactly one request per call; retry and backoff are the
// executor's responsibility, not the transport's.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client

	// Minimum spacing between requests, enforced under mu.
	mu          sync.Mutex
	minInterval time.Duration
	lastRequest time.Time
}

// HTTPConfig holds configuration for the HTTP client.
type HTTPConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MinInterval time.Duration
}

// DefaultHTTPConfig returns sensible defaults for an OpenAI-compatible endpoint.
func DefaultHTTPConfig(apiKey string) HTTPConfig {
	return HTTPConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		MaxTokens:   4096,
		Temperature: 0.2,
		Timeout:     120 * time.Second,
		MinInterval: 500 * time.Millisecond,
	}
}

// NewHTTPClient creates a client with default config.
func NewHTTPClient(apiKey string) *HTTPClient {
	return NewHTTPClientWithConfig(DefaultHTTPConfig(apiKey))
}

// NewHTTPClientWithConfig creates a client with custom config.
func NewHTTPClientWithConfig(config HTTPConfig) *HTTPClient {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	return &HTTPClient{
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		minInterval: config.MinInterval,
		httpClient:  &http.Client{Timeout: config.Timeout},
	}
}

// chatRequest is the wire request structure.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// chatMessage is one message in the conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the wire response structure.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Complete sends a prompt and returns the completion.
func (c *HTTPClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *HTTPClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", newError(NameOpenAI, ErrKindAuth, "API key not configured", nil)
	}

	c.throttle()

	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", newError(NameOpenAI, ErrKindBadInput, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", newError(NameOpenAI, ErrKindBadInput, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", newError(NameOpenAI, ErrKindTransport, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newError(NameOpenAI, ErrKindTransport, "failed to read response", err)
	}

	logging.API("POST /chat/completions model=%s status=%d elapsed=%v", c.model, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", newError(NameOpenAI, ErrKindQuota, "rate limit exceeded (429)", nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", newError(NameOpenAI, ErrKindAuth, fmt.Sprintf("request rejected with status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return "", newError(NameOpenAI, ErrKindTransport,
			fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, truncateBody(body)), nil)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", newError(NameOpenAI, ErrKindTransport, "failed to parse response", err)
	}
	if parsed.Error != nil {
		return "", newError(NameOpenAI, ErrKindTransport, "API error: "+parsed.Error.Message, nil)
	}
	if len(parsed.Choices) == 0 {
		return "", newError(NameOpenAI, ErrKindEmpty, "no completion returned", nil)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// SetModel changes the model used for completions.
func (c *HTTPClient) SetModel(model string) {
	c.model = model
}

// GetModel returns the current model.
func (c *HTTPClient) GetModel() string {
	return c.model
}

// throttle enforces the minimum inter-request spacing.
func (c *HTTPClient) throttle() {
	if c.minInterval <= 0 {
		return
	}
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.minInterval {
		time.Sleep(c.minInterval - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

func truncateBody(body []byte) string {
	const max = 300
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
