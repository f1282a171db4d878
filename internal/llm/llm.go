package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/Varun-Kachroo/RubrikAI/internal/llm/prompts"
	"github.com/Varun-Kachroo/RubrikAI/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse is returned when the oracle answers with no content.
var ErrEmptyResponse = errors.New("LLM returned an empty response")

// Request is one answer to grade.
type Request struct {
	Question model.Question
	Rubric   []model.Criterion
	Answer   string
	Mode     model.EvaluationMode
}

// Oracle grades a single answer against a rubric.
type Oracle interface {
	Grade(ctx context.Context, req Request) (*model.QuestionResult, error)
}

// Temperature returns the sampling temperature for a grading mode.
func Temperature(mode model.EvaluationMode) float64 {
	switch mode {
	case model.ModeStrict:
		return 0.05
	case model.ModeLenient:
		return 0.6
	default:
		return 0.3
	}
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Grade sends the answer to the model in JSON mode and parses its verdict.
func (c *Client) Grade(ctx context.Context, req Request) (*model.QuestionResult, error) {
	system, user, err := prompts.Build(req.Mode, req.Question, req.Rubric, req.Answer)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: float32(Temperature(req.Mode)),
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrEmptyResponse)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "question", req.Question.Number, "raw", raw)
	return finish(raw, req)
}

// finish parses raw and stamps the request's question number and answer
// length on the result.
func finish(raw string, req Request) (*model.QuestionResult, error) {
	res, err := ParseResult(raw)
	if err != nil {
		return nil, err
	}
	res.QuestionNumber = req.Question.Number
	res.AnswerLength = utf8.RuneCountInString(req.Answer)
	return res, nil
}
