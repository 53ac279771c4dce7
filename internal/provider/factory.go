package provider

import (
	"context"
	"fmt"
	"os"
)

// Settings is the resolved provider choice handed to New.
type Settings struct {
	Provider Name
	APIKey   string
	Model    string
	BaseURL  string
}

// New constructs a client for the given settings.
func New(ctx context.Context, s Settings) (Client, error) {
	switch s.Provider {
	case NameOpenAI, "":
		cfg := DefaultHTTPConfig(s.APIKey)
		if s.Model != "" {
			cfg.Model = s.Model
		}
		if s.BaseURL != "" {
			cfg.BaseURL = s.BaseURL
		}
		return NewHTTPClientWithConfig(cfg), nil
	case NameGemini:
		cfg := DefaultGeminiConfig(s.APIKey)
		if s.Model != "" {
			cfg.Model = s.Model
		}
		return NewGeminiClient(ctx, cfg)
	case NameMock:
		return NewMockClient("mock completion"), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", s.Provider)
	}
}

// DetectFromEnv resolves provider settings from environment variables.
// Priority: PILOT_PROVIDER override, then OPENAI_API_KEY, then GEMINI_API_KEY.
func DetectFromEnv() (Settings, error) {
	if p := os.Getenv("PILOT_PROVIDER"); p != "" {
		s := Settings{Provider: Name(p), Model: os.Getenv("PILOT_MODEL")}
		switch Name(p) {
		case NameOpenAI:
			s.APIKey = os.Getenv("OPENAI_API_KEY")
		case NameGemini:
			s.APIKey = os.Getenv("GEMINI_API_KEY")
		case NameMock:
			return s, nil
		}
		if s.APIKey == "" {
			return Settings{}, fmt.Errorf("provider %s selected but no API key found", p)
		}
		return s, nil
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return Settings{Provider: NameOpenAI, APIKey: key, Model: os.Getenv("PILOT_MODEL")}, nil
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return Settings{Provider: NameGemini, APIKey: key, Model: os.Getenv("PILOT_MODEL")}, nil
	}
	return Settings{}, fmt.Errorf("no provider credentials found in environment")
}
