package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Varun-Kachroo/RubrikAI/internal/llm/prompts"
	"github.com/Varun-Kachroo/RubrikAI/internal/model"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const (
	anthropicMaxTokens = 4096
	anthropicAttempts  = 2
)

// AnthropicClient grades through the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic creates a client for the given API key and model.
func NewAnthropic(apiKey, modelName string, opts ...option.RequestOption) *AnthropicClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{client: &client, model: modelName}
}

// Grade sends the answer to the model and parses its verdict.
func (c *AnthropicClient) Grade(ctx context.Context, req Request) (*model.QuestionResult, error) {
	system, user, err := prompts.Build(req.Mode, req.Question, req.Rubric, req.Answer)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: param.NewOpt(Temperature(req.Mode)),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}

	message, err := c.callWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	var raw string
	for _, block := range message.Content {
		if block.Type == "text" {
			raw = block.Text
			break
		}
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: no text content", ErrEmptyResponse)
	}

	slog.Debug("LLM response", "question", req.Question.Number, "raw", raw,
		"input_tokens", message.Usage.InputTokens, "output_tokens", message.Usage.OutputTokens)
	return finish(raw, req)
}

func (c *AnthropicClient) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt < anthropicAttempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			slog.Warn("retrying Anthropic API call", "attempt", attempt+1, "wait", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			return message, nil
		}
		lastErr = err
		slog.Warn("Anthropic API call failed", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("anthropic API failed after retries: %w", lastErr)
}
