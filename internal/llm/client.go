// Package llm is a small OpenAI-compatible chat client used to phrase
// adherence tips. Calls go through a circuit breaker so a dead provider
// fails fast instead of holding up every insights request.
package llm

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

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/config"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/security"
)

// Client provides LLM API access
type Client struct {
	cfg     config.InsightsConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[string]
	logger  *zap.Logger
}

// NewClient creates a new LLM client
func NewClient(cfg config.InsightsConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 3
	}
	cooldown := cfg.BreakerCooldown
	if cooldown == 0 {
		cooldown = 60
	}

	c := &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "summarizer",
		MaxRequests: 1,
		Timeout:     time.Duration(cooldown) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Summarizer circuit changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents an API request
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// ChatResponse represents a non-streaming API response
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ChatCompletion sends a chat completion request
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, security.RedactSecrets(string(bodyBytes)))
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// SimpleChat sends one system and one user message through the breaker
// and returns the first choice. An open circuit and transport failures
// both surface as ErrSummarizerOffline.
func (c *Client) SimpleChat(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	content, err := c.breaker.Execute(func() (string, error) {
		resp, err := c.ChatCompletion(ctx, ChatRequest{
			Model: c.cfg.Model,
			Messages: []Message{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: userMessage},
			},
			MaxTokens:   c.cfg.MaxTokens,
			Temperature: 0.7,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("no response from model")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Debug("Summarizer call failed", zap.Error(err))
		}
		return "", apperrors.ErrSummarizerOffline.WithCause(err)
	}
	return content, nil
}

// State reports the breaker state, for health output.
func (c *Client) State() string {
	return c.breaker.State().String()
}

// GetModel returns the configured model name
func (c *Client) GetModel() string {
	return c.cfg.Model
}
