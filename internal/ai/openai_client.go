package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// OpenAIClient adapts the go-openai SDK to Runtime. Any OpenAI-compatible
// endpoint works when BaseURL is set.
type OpenAIClient struct {
	client *openai.Client
	hasKey bool
	retry  retryPolicy
	log    *zap.Logger
}

// NewOpenAIClient builds a client; baseURL may be empty for api.openai.com.
func NewOpenAIClient(apiKey, baseURL string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *OpenAIClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: httpTimeout}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		hasKey: apiKey != "",
		retry:  newRetryPolicy(retryMax, baseDelay, maxDelay, 500*time.Millisecond, 4*time.Second),
		log:    zap.NewNop(),
	}
}

// WithLogger attaches a logger for request diagnostics.
func (c *OpenAIClient) WithLogger(l *zap.Logger) *OpenAIClient {
	if l != nil {
		c.log = l.Named("openai")
	}
	return c
}

func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if !c.hasKey {
		return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY)", ErrMissingAPIKey)
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	creq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}

	for attempt := 1; ; attempt++ {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, creq)
		if err == nil {
			c.log.Debug("completion done",
				zap.String("model", req.Model),
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
				zap.Duration("elapsed", time.Since(start)))
			return fromOpenAI(resp), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		apiErr := openAIAPIError(err)
		if apiErr == nil {
			if isRetryableNetErr(err) && attempt < c.retry.attempts {
				if err := sleepCtx(ctx, c.retry.backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("openai request: %w", err)
		}
		if attempt >= c.retry.attempts || !retryableStatus(apiErr.StatusCode) {
			return nil, classifyAPIError(apiErr, nil)
		}
		wait := c.retry.backoff(attempt)
		c.log.Debug("retrying after status", zap.Int("status", apiErr.StatusCode), zap.Int("attempt", attempt), zap.Duration("wait", wait))
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// openAIAPIError converts SDK errors carrying an HTTP status into APIError.
func openAIAPIError(err error) *APIError {
	var ae *openai.APIError
	if errors.As(err, &ae) {
		return &APIError{StatusCode: ae.HTTPStatusCode, Code: cast.ToString(ae.Code), Message: ae.Message}
	}
	var re *openai.RequestError
	if errors.As(err, &re) {
		msg := ""
		if re.Err != nil {
			msg = re.Err.Error()
		}
		return &APIError{StatusCode: re.HTTPStatusCode, Message: msg}
	}
	return nil
}

func fromOpenAI(resp openai.ChatCompletionResponse) *GenerateResponse {
	out := &GenerateResponse{
		ID: resp.ID,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		RequestID: resp.Header().Get("X-Request-Id"),
	}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{Message: Message{Role: ch.Message.Role, Content: ch.Message.Content}})
	}
	return out
}
