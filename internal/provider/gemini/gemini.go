// Package gemini generates chart configs through the Gemini API with a
// response schema, so the model is constrained to the config shape.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/provider"
)

const (
	DefaultModel = "gemini-2.5-flash"
	name         = "gemini"
)

type Adapter struct {
	httpClient *http.Client
}

// New returns a Gemini adapter. A nil httpClient uses the SDK default.
func New(httpClient *http.Client) *Adapter {
	return &Adapter{httpClient: httpClient}
}

func (a *Adapter) Kind() provider.Kind { return provider.KindGemini }

func (a *Adapter) Generate(ctx context.Context, req provider.Request, creds provider.Credentials) (string, error) {
	if creds.APIKey == "" {
		return "", &chart.ConfigurationError{Provider: name, Setting: "GEMINI_API_KEY"}
	}
	model := creds.Model
	if model == "" {
		model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     creds.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: a.httpClient,
	}
	if creds.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: creds.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}

	var parts []*genai.Part
	if req.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, provider.NormaliseMIME(req.Image.MIMEType)))
	}
	parts = append(parts, genai.NewPartFromText(provider.UserMessage(req)))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(provider.SystemInstruction(req.Language, req.Mode), genai.RoleUser),
		Temperature:       genai.Ptr(creds.Temperature),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    ResponseSchema(req.Mode),
	}

	resp, err := client.Models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &chart.ProviderError{
				Provider:   name,
				StatusCode: apiErr.Code,
				Body:       provider.TruncateBody(apiErr.Message),
			}
		}
		return "", fmt.Errorf("failed to call gemini: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", &chart.EmptyResponseError{Provider: name}
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &chart.EmptyResponseError{Provider: name}
	}
	return text, nil
}

// ResponseSchema mirrors the chart config for the given mode.
func ResponseSchema(mode provider.Mode) *genai.Schema {
	var kinds []string
	switch mode {
	case provider.ModeMarkup:
		kinds = []string{string(chart.KindMarkup)}
	case provider.ModeStandard:
		kinds = []string{"line", "bar", "area", "pie", "composed", "diagram"}
	default:
		kinds = []string{"line", "bar", "area", "pie", "composed", "diagram", "markup"}
	}

	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	num := &genai.Schema{Type: genai.TypeNumber}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       str("A short, descriptive title for the chart"),
			"description": str("A brief explanation of the data context"),
			"chartKind": {
				Type:        genai.TypeString,
				Enum:        kinds,
				Description: "Use 'diagram' for flowcharts, sequence diagrams, architectures or process maps, 'markup' for UI components, and the others for statistical data.",
			},
			"xAxisKey": {
				Type:        genai.TypeString,
				Description: "The data point key used for X-axis labels. Required for line, bar, area and composed charts.",
				Nullable:    genai.Ptr(true),
			},
			"dataPoints": {
				Type:        genai.TypeArray,
				Description: "Data points, required for statistical charts",
				Nullable:    genai.Ptr(true),
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":    str(""),
						"label":   str(""),
						"month":   str(""),
						"quarter": str(""),
						"year":    str(""),
						"value":   num,
						"sales":   num,
						"profit":  num,
						"count":   num,
					},
				},
			},
			"series": {
				Type:        genai.TypeArray,
				Description: "Series config, required for statistical charts",
				Nullable:    genai.Ptr(true),
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"dataKey": str(""),
						"name":    str(""),
						"color":   str("Hex color such as #3B82F6"),
						"interpolation": {
							Type: genai.TypeString,
							Enum: []string{"monotone", "linear", "step"},
						},
					},
					Required: []string{"dataKey"},
				},
			},
			"diagramSource": str("Raw Mermaid source without markdown fences. Only for kind 'diagram'."),
			"markupSource":  str("A self-contained HTML fragment. Only for kind 'markup'."),
		},
		PropertyOrdering: []string{"title", "description", "chartKind", "xAxisKey", "dataPoints", "series", "diagramSource", "markupSource"},
		Required:         []string{"title", "chartKind"},
	}
}
