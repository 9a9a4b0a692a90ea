package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/IgorGrieder/llm-edge-gateway/internal/processing/links"
	"github.com/sashabaranov/go-openai"
)

type IntroConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	// HTTPClient is shared with the relay so both go through the same
	// breaker and tracing transport. Nil uses the SDK default.
	HTTPClient *http.Client
}

// IntroGenerator precomputes link intros with one non-streamed chat
// completion.
type IntroGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewIntroGenerator(cfg IntroConfig) *IntroGenerator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &IntroGenerator{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

func (g *IntroGenerator) GenerateIntro(ctx context.Context, systemPrompt string) (links.Intro, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		},
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return links.Intro{}, fmt.Errorf("completion api status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return links.Intro{}, fmt.Errorf("completion call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return links.Intro{}, errors.New("completion returned no choices")
	}

	model := resp.Model
	if model == "" {
		model = g.model
	}
	return links.Intro{
		Text:        resp.Choices[0].Message.Content,
		Model:       model,
		TotalTokens: int64(resp.Usage.TotalTokens),
	}, nil
}
