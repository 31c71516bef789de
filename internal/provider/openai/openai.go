// Package openai generates chart configs through the OpenAI chat completions
// API in JSON mode.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/provider"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1"
	DefaultModel    = "gpt-4o-mini"
	name            = "openai"
)

type Adapter struct {
	httpClient *http.Client
}

// New returns an OpenAI adapter. A nil httpClient uses http.DefaultClient.
func New(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Adapter{httpClient: httpClient}
}

func (a *Adapter) Kind() provider.Kind { return provider.KindOpenAI }

func (a *Adapter) Generate(ctx context.Context, req provider.Request, creds provider.Credentials) (string, error) {
	if creds.APIKey == "" {
		return "", &chart.ConfigurationError{Provider: name, Setting: "OPENAI_API_KEY"}
	}
	endpoint := creds.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model := creds.Model
	if model == "" {
		model = DefaultModel
	}

	cfg := goopenai.DefaultConfig(creds.APIKey)
	cfg.BaseURL = provider.TrimChatCompletions(endpoint)
	cfg.HTTPClient = a.httpClient
	client := goopenai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       model,
		Temperature: creds.Temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: provider.SystemInstruction(req.Language, req.Mode)},
			userMessage(req),
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", mapError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &chart.EmptyResponseError{Provider: name}
	}
	return resp.Choices[0].Message.Content, nil
}

// userMessage sends the prompt as plain text, or as a text part followed by
// an image_url part when an image is attached.
func userMessage(req provider.Request) goopenai.ChatCompletionMessage {
	text := provider.UserMessage(req)
	if req.Image == nil {
		return goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: text}
	}
	return goopenai.ChatCompletionMessage{
		Role: goopenai.ChatMessageRoleUser,
		MultiContent: []goopenai.ChatMessagePart{
			{Type: goopenai.ChatMessagePartTypeText, Text: text},
			{
				Type:     goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{URL: provider.DataURL(req.Image)},
			},
		},
	}
}

func mapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &chart.ProviderError{
			Provider:   name,
			StatusCode: apiErr.HTTPStatusCode,
			Body:       provider.TruncateBody(apiErr.Message),
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &chart.ProviderError{
			Provider:   name,
			StatusCode: reqErr.HTTPStatusCode,
			Body:       provider.TruncateBody(string(reqErr.Body)),
		}
	}
	return fmt.Errorf("failed to call openai: %w", err)
}
