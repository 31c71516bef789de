package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/provider"
)

const replyText = `{"title":"Sales","chartKind":"bar","xAxisKey":"m","dataPoints":[{"m":"Jan","sales":1}],"series":[{"dataKey":"sales"}]}`

func candidateBody(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": text}},
			},
		}},
	}
}

func creds(url string) provider.Credentials {
	return provider.Credentials{Endpoint: url, APIKey: "g-test", Temperature: 0.3}
}

func TestGenerate(t *testing.T) {
	var (
		gotPath string
		gotKey  string
		gotBody []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(candidateBody(replyText)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	req := provider.Request{
		Prompt:   "monthly sales",
		Language: provider.LanguageEnglish,
		Mode:     provider.ModeAuto,
		Image:    &provider.Image{Data: []byte{1, 2}, MIMEType: "image/png"},
	}
	text, err := New(server.Client()).Generate(context.Background(), req, creds(server.URL))
	require.NoError(t, err)
	assert.Equal(t, replyText, text)

	assert.Equal(t, "/v1beta/models/"+DefaultModel+":generateContent", gotPath)
	assert.Equal(t, "g-test", gotKey)

	body := string(gotBody)
	assert.Contains(t, body, `"responseMimeType":"application/json"`)
	assert.Contains(t, body, `"responseSchema"`)
	assert.Contains(t, body, `"systemInstruction"`)
	assert.Contains(t, body, "YOU MUST USE ENGLISH")
	assert.Contains(t, body, `"inlineData"`)
	assert.Contains(t, body, `"AQI="`)
	assert.Contains(t, body, "monthly sales")
}

func TestGenerate_CustomModel(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(candidateBody(replyText))
	}))
	defer server.Close()

	c := creds(server.URL)
	c.Model = "gemini-2.0-pro"
	_, err := New(server.Client()).Generate(context.Background(), provider.Request{Prompt: "x"}, c)
	require.NoError(t, err)
	assert.Equal(t, "/v1beta/models/gemini-2.0-pro:generateContent", gotPath)
}

func TestGenerate_MissingKey(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	c := creds(server.URL)
	c.APIKey = ""
	_, err := New(server.Client()).Generate(context.Background(), provider.Request{Prompt: "x"}, c)

	var ce *chart.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "GEMINI_API_KEY", ce.Setting)
	assert.Zero(t, hits.Load())
}

func TestGenerate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	_, err := New(server.Client()).Generate(context.Background(), provider.Request{Prompt: "x"}, creds(server.URL))

	var pe *chart.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	assert.Equal(t, "quota exhausted", pe.Body)
}

func TestGenerate_Empty(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"no candidates", map[string]any{"candidates": []any{}}},
		{"blank text", candidateBody("  \n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			_, err := New(server.Client()).Generate(context.Background(), provider.Request{Prompt: "x"}, creds(server.URL))
			var ee *chart.EmptyResponseError
			assert.ErrorAs(t, err, &ee)
		})
	}
}

func TestResponseSchema(t *testing.T) {
	auto := ResponseSchema(provider.ModeAuto)
	assert.Equal(t, []string{"title", "chartKind"}, auto.Required)
	assert.Contains(t, auto.Properties["chartKind"].Enum, "markup")

	markup := ResponseSchema(provider.ModeMarkup)
	assert.Equal(t, []string{"markup"}, markup.Properties["chartKind"].Enum)

	standard := ResponseSchema(provider.ModeStandard)
	assert.NotContains(t, standard.Properties["chartKind"].Enum, "markup")
	assert.Equal(t, []string{"dataKey"}, standard.Properties["series"].Items.Required)
}
