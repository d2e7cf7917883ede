package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/batchflow/batchflow/internal/batching"
)

const anthropicMaxTokens = 1024

// AnthropicExecutor processes batches against the Anthropic Messages API.
// The batching key is used as the model name.
type AnthropicExecutor struct {
	client anthropic.Client
	policy RetryPolicy
	logger *slog.Logger
}

// NewAnthropicExecutor constructs an executor with the default retry policy.
func NewAnthropicExecutor(apiKey string, logger *slog.Logger) *AnthropicExecutor {
	return &AnthropicExecutor{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		policy: DefaultRetryPolicy(),
		logger: logger,
	}
}

// Execute implements batching.Collaborator with the same partial-result
// contract as the OpenAI executor.
func (e *AnthropicExecutor) Execute(ctx context.Context, key string, payloads [][]byte) ([]batching.Response, error) {
	responses := make([]batching.Response, 0, len(payloads))

	for i, payload := range payloads {
		resp, err := e.message(ctx, key, payload)
		if err != nil {
			e.logger.Error("anthropic call failed",
				"model", key,
				"position", i,
				"error", err)
			if len(responses) == 0 {
				return nil, fmt.Errorf("anthropic batch for %q: %w", key, err)
			}
			return responses, nil
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (e *AnthropicExecutor) message(ctx context.Context, model string, payload []byte) (batching.Response, error) {
	var out batching.Response

	err := Retry(ctx, e.policy, func() error {
		start := time.Now()
		resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: anthropicMaxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(string(payload))),
			},
		})
		if err != nil {
			return classifyAnthropicError(err)
		}

		var content string
		for _, block := range resp.Content {
			if block.Type == "text" {
				content = block.Text
				break
			}
		}
		if content == "" {
			return errors.New("no text content in response")
		}

		out = batching.Response{
			Content:     []byte(content),
			InputUnits:  int(resp.Usage.InputTokens),
			OutputUnits: int(resp.Usage.OutputTokens),
		}

		e.logger.Debug("anthropic call completed",
			"model", model,
			"tokens", resp.Usage.InputTokens+resp.Usage.OutputTokens,
			"latency_ms", time.Since(start).Milliseconds())
		return nil
	})

	return out, err
}

// classifyAnthropicError marks rate limits and server errors as retryable.
func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return NewRetryableErrorWithDelay(err, 5*time.Second)
		}
		if apiErr.StatusCode >= 500 {
			return NewRetryableError(err)
		}
	}
	return err
}
