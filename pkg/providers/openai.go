package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1/"

type OpenAIClient struct {
	client *openai.Client
}

// OpenAi builds an OpenAI-compatible client. The key and base URL fall back to
// OPENAI_API_KEY and OPENAI_API_BASE_URL.
func OpenAi(ctx context.Context, opts ...ProviderOption) *OpenAIClient {
	params := applyOptions(opts, "OPENAI_API_KEY", "OPENAI_API_BASE_URL")
	if params.BaseURL == "" {
		params.BaseURL = defaultOpenAIBaseURL
	}

	var client *openai.Client
	if params.APIKey != "" {
		client = openai.NewClient(
			option.WithAPIKey(params.APIKey),
			option.WithBaseURL(params.BaseURL),
		)
	} else {
		client = openai.NewClient(
			option.WithBaseURL(params.BaseURL),
		)
	}
	slog.Debug("using openai base url", "url", params.BaseURL)
	return &OpenAIClient{
		client: client,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, model string, prompt string) (string, error) {
	chatCompletion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		}),
		Model: openai.F(model),
	})
	if err != nil {
		return "", err
	}
	if len(chatCompletion.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return chatCompletion.Choices[0].Message.Content, nil
}
