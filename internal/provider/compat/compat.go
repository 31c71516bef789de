// Package compat talks to OpenAI-compatible chat completion endpoints such as
// DeepSeek, Moonshot, Xiaomi MiMo and Zhipu GLM.
package compat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/provider"
)

const name = "compatible"

// request types mirror the chat completions API.
type request struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float32         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// message.Content is either a string or a list of parts.
type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type Adapter struct {
	client *http.Client
}

func New(client *http.Client) *Adapter {
	if client == nil {
		client = &http.Client{}
	}
	return &Adapter{client: client}
}

func (a *Adapter) Kind() provider.Kind { return provider.KindCompatible }

// Generate requires an endpoint, key and model in creds. Callers fill in
// platform defaults before calling.
func (a *Adapter) Generate(ctx context.Context, req provider.Request, creds provider.Credentials) (string, error) {
	switch {
	case creds.APIKey == "":
		return "", &chart.ConfigurationError{Provider: name, Setting: "API key"}
	case creds.Endpoint == "":
		return "", &chart.ConfigurationError{Provider: name, Setting: "API URL"}
	case creds.Model == "":
		return "", &chart.ConfigurationError{Provider: name, Setting: "model"}
	}

	body := request{
		Model:       creds.Model,
		Temperature: creds.Temperature,
		Messages: []message{
			{Role: "system", Content: provider.SystemInstruction(req.Language, req.Mode)},
			buildUserMessage(req),
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.ChatCompletionsURL(creds.Endpoint), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+creds.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call %s: %w", creds.Endpoint, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close compatible response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &chart.ProviderError{
			Provider:   name,
			StatusCode: resp.StatusCode,
			Body:       provider.TruncateBody(string(errBody)),
		}
	}

	var respBody response
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(respBody.Choices) == 0 || strings.TrimSpace(respBody.Choices[0].Message.Content) == "" {
		return "", &chart.EmptyResponseError{Provider: name}
	}
	return respBody.Choices[0].Message.Content, nil
}

func buildUserMessage(req provider.Request) message {
	text := provider.UserMessage(req)
	if req.Image == nil {
		return message{Role: "user", Content: text}
	}
	return message{
		Role: "user",
		Content: []part{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &imageURL{URL: provider.DataURL(req.Image)}},
		},
	}
}

// Resolve fills blank endpoint and model fields from the named platform's
// defaults.
func Resolve(platform string, creds provider.Credentials) (provider.Credentials, error) {
	p, ok := provider.Platforms[platform]
	if !ok {
		return creds, &chart.ConfigurationError{Provider: name, Setting: fmt.Sprintf("known platform (got %q)", platform)}
	}
	if creds.Endpoint == "" {
		creds.Endpoint = p.Endpoint
	}
	if creds.Model == "" {
		creds.Model = p.Model
	}
	return creds, nil
}
