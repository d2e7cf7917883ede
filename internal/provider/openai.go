package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/batchflow/batchflow/internal/batching"
)

// OpenAIExecutor processes batches against the OpenAI chat completion API.
// The batching key is used as the model name.
type OpenAIExecutor struct {
	client *openai.Client
	policy RetryPolicy
	logger *slog.Logger
}

// NewOpenAIExecutor constructs an executor with the default retry policy.
func NewOpenAIExecutor(apiKey string, logger *slog.Logger) *OpenAIExecutor {
	return &OpenAIExecutor{
		client: openai.NewClient(apiKey),
		policy: DefaultRetryPolicy(),
		logger: logger,
	}
}

// Execute implements batching.Collaborator. Payloads are processed in
// order; a mid-batch failure returns the results collected so far, which
// the executor resolves positionally with missing-result failures for the
// remainder. A failure before any result is a whole-batch failure.
func (e *OpenAIExecutor) Execute(ctx context.Context, key string, payloads [][]byte) ([]batching.Response, error) {
	responses := make([]batching.Response, 0, len(payloads))

	for i, payload := range payloads {
		resp, err := e.complete(ctx, key, payload)
		if err != nil {
			e.logger.Error("openai call failed",
				"model", key,
				"position", i,
				"error", err)
			if len(responses) == 0 {
				return nil, fmt.Errorf("openai batch for %q: %w", key, err)
			}
			return responses, nil
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (e *OpenAIExecutor) complete(ctx context.Context, model string, payload []byte) (batching.Response, error) {
	var out batching.Response

	err := Retry(ctx, e.policy, func() error {
		start := time.Now()
		resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: string(payload)},
			},
		})
		if err != nil {
			return classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("no response choices")
		}

		out = batching.Response{
			Content:     []byte(resp.Choices[0].Message.Content),
			InputUnits:  resp.Usage.PromptTokens,
			OutputUnits: resp.Usage.CompletionTokens,
		}

		e.logger.Debug("openai call completed",
			"model", model,
			"tokens", resp.Usage.TotalTokens,
			"latency_ms", time.Since(start).Milliseconds())
		return nil
	})

	return out, err
}

// classifyOpenAIError marks rate limits and server errors as retryable.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 {
			return NewRetryableErrorWithDelay(err, 5*time.Second)
		}
		if apiErr.HTTPStatusCode >= 500 {
			return NewRetryableError(err)
		}
	}
	return err
}
