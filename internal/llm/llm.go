package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Completer is the single chat-completion contract the rest of the
// system depends on. Structured-JSON extraction runs at low temperature,
// free-text generation around 0.7.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error)
}

// OpenAIClient backs Completer with the OpenAI chat-completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAIClient(apiKey, model string, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: system,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: user,
				},
			},
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
	)
	if err != nil {
		c.logger.Error("Failed to get chat completion", zap.Error(err))
		return "", fmt.Errorf("error creating chat completion: %v", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("error creating chat completion: empty response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
