// Package anthropic generates chart configs with Claude. The messages API has
// no JSON mode, so replies rely on the system instruction and the normalizer's
// fence stripping.
package anthropic

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/provider"
)

const (
	DefaultEndpoint = "https://api.anthropic.com/v1"
	DefaultModel    = "claude-opus-4-6"
	name            = "anthropic"

	// Charts with a few dozen points and markup components fit well within
	// this budget.
	maxTokens = 4096
)

type Adapter struct {
	httpClient *http.Client
}

func New(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Adapter{httpClient: httpClient}
}

func (a *Adapter) Kind() provider.Kind { return provider.KindAnthropic }

func (a *Adapter) Generate(ctx context.Context, req provider.Request, creds provider.Credentials) (string, error) {
	if creds.APIKey == "" {
		return "", &chart.ConfigurationError{Provider: name, Setting: "CLAUDE_API_KEY"}
	}
	endpoint := creds.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model := creds.Model
	if model == "" {
		model = DefaultModel
	}

	// The SDK error types do not expose the HTTP status, so record it on the
	// way back through the transport.
	status := &statusTransport{next: a.httpClient.Transport}
	client := anthropic.NewClient(creds.APIKey,
		anthropic.WithBaseURL(strings.TrimRight(endpoint, "/")),
		anthropic.WithHTTPClient(&http.Client{Transport: status, Timeout: a.httpClient.Timeout}),
	)

	temperature := creds.Temperature
	resp, err := client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(model),
		System:      provider.SystemInstruction(req.Language, req.Mode),
		Messages:    []anthropic.Message{buildMessage(req)},
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		if status.code >= 300 {
			body := err.Error()
			var apiErr *anthropic.APIError
			if errors.As(err, &apiErr) {
				body = apiErr.Message
			}
			return "", &chart.ProviderError{
				Provider:   name,
				StatusCode: status.code,
				Body:       provider.TruncateBody(body),
			}
		}
		return "", fmt.Errorf("failed to call claude: %w", err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == anthropic.MessagesContentTypeText {
			text.WriteString(c.GetText())
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", &chart.EmptyResponseError{Provider: name}
	}
	return text.String(), nil
}

func buildMessage(req provider.Request) anthropic.Message {
	var content []anthropic.MessageContent
	if req.Image != nil {
		content = append(content, anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(
				anthropic.MessagesContentSourceTypeBase64,
				provider.NormaliseMIME(req.Image.MIMEType),
				base64.StdEncoding.EncodeToString(req.Image.Data),
			),
		))
	}
	content = append(content, anthropic.NewTextMessageContent(provider.UserMessage(req)))
	return anthropic.Message{Role: anthropic.RoleUser, Content: content}
}

// statusTransport remembers the status code of the last response. Each
// Generate call uses its own instance.
type statusTransport struct {
	next http.RoundTripper
	code int
}

func (t *statusTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(r)
	if resp != nil {
		t.code = resp.StatusCode
	}
	return resp, err
}
