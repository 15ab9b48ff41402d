package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
)

// OllamaProvider talks to a local model server through its
// OpenAI-compatible endpoint. No API key is needed.
type OllamaProvider struct {
	client *goopenai.Client
	model  string
}

func NewOllamaProvider(cfg OllamaConfig, httpClient *http.Client) (*OllamaProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama base URL is required")
	}

	config := goopenai.DefaultConfig("ollama")
	config.BaseURL = cfg.BaseURL
	if httpClient != nil {
		config.HTTPClient = httpClient
	}

	return &OllamaProvider{
		client: goopenai.NewClientWithConfig(config),
		model:  cfg.Model,
	}, nil
}

func (p *OllamaProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	chatReq := goopenai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    buildOllamaMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, mapOllamaError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("no choices in response")}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonLength {
		return nil, &ErrMaxTokensExceeded{Content: choice.Message.Content}
	}

	return &Response{
		Text: choice.Message.Content,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Model:      resp.Model,
		StopReason: "end",
	}, nil
}

func (p *OllamaProvider) ModelID() string {
	return p.model
}

// Ping lists the models the server has pulled.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return mapOllamaError(ctx, err)
	}
	for _, m := range list.Models {
		if m.ID == p.model || m.ID == p.model+":latest" {
			return nil
		}
	}
	return &ErrProviderUnavailable{Err: fmt.Errorf("model %q not pulled", p.model)}
}

func buildOllamaMessages(req Request) []goopenai.ChatCompletionMessage {
	var messages []goopenai.ChatCompletionMessage

	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, m := range req.Messages {
		role := goopenai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	return messages
}

func mapOllamaError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("chat completion: %w", ctx.Err())
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &ErrRateLimit{Err: err}
	}
	return &ErrProviderUnavailable{Err: err}
}
