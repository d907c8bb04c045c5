package providers

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1/"

type OpenAIClient struct {
	client *openai.Client
}

func newOpenAIClient(params ProviderParams) *OpenAIClient {
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
	log.Println("Using Base URL", params.BaseURL)
	return &OpenAIClient{
		client: client,
	}
}

func OpenAi(ctx context.Context, opts ...ProviderOption) *OpenAIClient {
	params := &ProviderParams{}
	for _, opt := range opts {
		opt(params)
	}

	// Set defaults and environment fallbacks
	if params.BaseURL == "" {
		params.BaseURL = os.Getenv("OPENAI_API_BASE_URL")
		if params.BaseURL == "" {
			params.BaseURL = defaultOpenAIBaseURL
		}
	}
	if params.APIKey == "" {
		params.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return newOpenAIClient(*params)
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
		return "", errors.New("openai: response has no choices")
	}
	return chatCompletion.Choices[0].Message.Content, nil
}
