package proposer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/soundprediction/ontoweave/pkg/alert"
	"github.com/soundprediction/ontoweave/pkg/config"
)

// Chatter sends one system and one user message to a language model and
// returns the reply text.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// OpenAIChat is a Chatter backed by OpenAI or an OpenAI-compatible service.
type OpenAIChat struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	jsonMode    bool
}

// NewOpenAIChat creates an OpenAIChat from cfg. A custom BaseURL selects an
// OpenAI-compatible service.
func NewOpenAIChat(cfg config.ProposerConfig) (*OpenAIChat, error) {
	apiKey := cfg.APIKey
	var client *openai.Client
	if cfg.BaseURL != "" {
		if err := validateBaseURL(cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		// Some services don't require authentication
		if apiKey == "" {
			apiKey = "dummy-key"
		}
		clientConfig := openai.DefaultConfig(apiKey)
		clientConfig.BaseURL = cfg.BaseURL
		if !hasAPIPath(cfg.BaseURL) {
			clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/v1"
		}
		client = openai.NewClientWithConfig(clientConfig)
	} else {
		if apiKey == "" {
			return nil, errors.New("proposer api key is required")
		}
		client = openai.NewClient(apiKey)
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIChat{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		// JSON mode is only guaranteed by OpenAI itself
		jsonMode: cfg.BaseURL == "",
	}, nil
}

// Chat implements Chatter.
func (c *OpenAIChat) Chat(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	} else {
		req.Messages[1].Content += "\n\nPlease respond with valid JSON only."
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// validateBaseURL validates the base URL format.
func validateBaseURL(baseURL string) error {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid baseURL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("baseURL must use http:// or https:// scheme")
	}
	return nil
}

// hasAPIPath checks if the base URL already includes an API path component.
func hasAPIPath(baseURL string) bool {
	for _, path := range []string{"/v1", "/api", "/v1/", "/api/"} {
		if strings.HasSuffix(baseURL, path) {
			return true
		}
	}
	return false
}

// CircuitBreaker stops calling a failing Chatter until it recovers.
type CircuitBreaker struct {
	next Chatter
	cb   *gobreaker.CircuitBreaker
}

// NewCircuitBreaker wraps next. With cfg.Enabled false, next is returned
// unchanged. alerter, if not nil, is told when the breaker trips.
func NewCircuitBreaker(next Chatter, cfg config.CircuitBreakerConfig, name string, alerter alert.Alerter, logger *slog.Logger) Chatter {
	if !cfg.Enabled {
		return next
	}
	if logger == nil {
		logger = slog.Default()
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Error("circuit breaker tripped", "name", name, "from", from.String(), "to", to.String())
				if alerter != nil {
					msg := fmt.Sprintf("Circuit breaker '%s' changed from %s to %s after repeated proposer failures.", name, from, to)
					if err := alerter.Alert("circuit breaker tripped: "+name, msg); err != nil {
						logger.Warn("failed to send alert", "error", err)
					}
				}
				return
			}
			logger.Info("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &CircuitBreaker{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// Chat implements Chatter.
func (c *CircuitBreaker) Chat(ctx context.Context, system, user string) (string, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.next.Chat(ctx, system, user)
	})
	if err != nil {
		return "", err
	}
	return resp.(string), nil
}

// Script is a Chatter that replays canned replies in order. It is used for
// offline runs and tests.
type Script struct {
	mu      sync.Mutex
	replies []string
	prompts []string
}

// NewScript creates a Script.
func NewScript(replies ...string) *Script {
	return &Script{replies: replies}
}

// Chat implements Chatter.
func (s *Script) Chat(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, user)
	if len(s.replies) == 0 {
		return "", ErrScriptExhausted
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

// Prompts returns the user messages received so far.
func (s *Script) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Remaining returns the number of unread replies.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}
