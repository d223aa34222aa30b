package agent

import (
	"context"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Completer is the language-understanding collaborator. Everything the
// agent does (scoring, intent parsing, generation, extraction) goes
// through this one call, so tests can swap in a fake.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAIClient wraps chat completions with a per-call timeout and a single
// bounded retry on transient failure. Callers degrade to their own
// fallback when an error still comes back.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	retry       retrypolicy.RetryPolicy[string]
	logger      *zap.Logger
}

func NewOpenAIClient(apiKey, model string, maxTokens int, temperature float64, timeout time.Duration, logger *zap.Logger) *OpenAIClient {
	retry := retrypolicy.NewBuilder[string]().
		WithBackoff(500*time.Millisecond, 2*time.Second).
		WithMaxRetries(1).
		Build()

	return &OpenAIClient{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
		retry:       retry,
		logger:      logger,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	return failsafe.With(c.retry).WithContext(ctx).Get(func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(
			callCtx,
			openai.ChatCompletionRequest{
				Model: c.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: system},
					{Role: openai.ChatMessageRoleUser, Content: user},
				},
				MaxTokens:   c.maxTokens,
				Temperature: float32(c.temperature),
			},
		)
		if err != nil {
			c.logger.Warn("completion call failed", zap.Error(err))
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
}

// StripJSONFence removes a surrounding markdown code fence so the payload
// can be unmarshalled directly.
func StripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
