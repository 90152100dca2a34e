package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Adapter wraps one (provider, model) pair behind a uniform capability
// surface. Identity is stable for the process lifetime; selection order
// among adapters is recomputed per call by the router.
type Adapter interface {
	Name() string
	Provider() string
	// DailyTokenLimit returns the per-day token ceiling. A value <= 0
	// means unbounded (paid tier).
	DailyTokenLimit() int
	Available() bool
	Call(ctx context.Context, systemPrompt, userPrompt string) (*CallResult, error)
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type CallResult struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
	Model   string `json:"model"`
}

// ChatAdapter calls an OpenAI-compatible chat completions endpoint. Groq,
// OpenRouter and Gemini's compatibility endpoint all speak this shape.
type ChatAdapter struct {
	name       string
	provider   string
	model      string
	baseURL    string
	apiKey     string
	dailyLimit int
	maxTokens  int
	http       *http.Client
}

type ChatAdapterConfig struct {
	Name       string
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	DailyLimit int
	MaxTokens  int
}

func NewChatAdapter(cfg ChatAdapterConfig) *ChatAdapter {
	name := cfg.Name
	if name == "" {
		name = cfg.Provider + "/" + cfg.Model
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxCompletionTokens
	}
	return &ChatAdapter{
		name:       name,
		provider:   cfg.Provider,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		dailyLimit: cfg.DailyLimit,
		maxTokens:  maxTokens,
		http:       &http.Client{Timeout: 120 * time.Second},
	}
}

func (a *ChatAdapter) Name() string         { return a.name }
func (a *ChatAdapter) Provider() string     { return a.provider }
func (a *ChatAdapter) DailyTokenLimit() int { return a.dailyLimit }

func (a *ChatAdapter) Available() bool {
	return a.apiKey != "" && a.baseURL != ""
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *ChatAdapter) Call(ctx context.Context, systemPrompt, userPrompt string) (*CallResult, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.2,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: status %d: %s", a.name, resp.StatusCode, snippet)
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", a.name, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty choices", a.name)
	}

	usedModel := out.Model
	if usedModel == "" {
		usedModel = a.model
	}
	return &CallResult{
		Content: out.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
		Model: usedModel,
	}, nil
}

// AdaptersFromEnv builds the adapter list in static priority order:
// fastest/cheapest known-good providers first. Adapters without an API key
// stay in the list but report unavailable.
func AdaptersFromEnv() []Adapter {
	return []Adapter{
		NewChatAdapter(ChatAdapterConfig{
			Provider:   "groq",
			Model:      envOrDefault("GROQ_MODEL", "llama-3.3-70b-versatile"),
			BaseURL:    envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			APIKey:     os.Getenv("GROQ_API_KEY"),
			DailyLimit: envIntOrDefault("GROQ_DAILY_TOKEN_LIMIT", 100_000),
		}),
		NewChatAdapter(ChatAdapterConfig{
			Provider:   "gemini",
			Model:      envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
			BaseURL:    envOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
			APIKey:     os.Getenv("GEMINI_API_KEY"),
			DailyLimit: envIntOrDefault("GEMINI_DAILY_TOKEN_LIMIT", 1_000_000),
		}),
		NewChatAdapter(ChatAdapterConfig{
			Provider:   "openrouter",
			Model:      envOrDefault("OPENROUTER_MODEL", "deepseek/deepseek-chat-v3-0324:free"),
			BaseURL:    envOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			APIKey:     os.Getenv("OPENROUTER_API_KEY"),
			DailyLimit: envIntOrDefault("OPENROUTER_DAILY_TOKEN_LIMIT", 50_000),
		}),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}
