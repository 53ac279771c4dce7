package provider

import (
	"context"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient implements Client on top of the official genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey: apiKey,
		Model:  "gemini-2.0-flash",
	}
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, newError(NameGemini, ErrKindAuth, "API key required", nil)
	}
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: config.APIKey})
	if err != nil {
		return nil, newError(NameGemini, ErrKindTransport, "failed to create genai client", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if systemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), cfg)
	if err != nil {
		return "", classifyGeminiErr(err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", newError(NameGemini, ErrKindEmpty, "no completion returned", nil)
	}
	return text, nil
}

// GetModel returns the current model.
func (c *GeminiClient) GetModel() string {
	return c.model
}

func classifyGeminiErr(err error) *Error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "quota"):
		return newError(NameGemini, ErrKindQuota, "quota exceeded", err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(strings.ToLower(msg), "api key"):
		return newError(NameGemini, ErrKindAuth, "credentials rejected", err)
	default:
		return newError(NameGemini, ErrKindTransport, "generate failed", err)
	}
}
