package chart

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barConfig() *Config {
	return &Config{
		Title:    "Sales",
		Kind:     KindBar,
		XAxisKey: "month",
		DataPoints: []DataPoint{
			{"month": "Jan", "sales": json.Number("10")},
			{"month": "Feb", "sales": json.Number("12.5")},
		},
		Series: []Series{{DataKey: "sales", Name: "Sales", Color: "#3B82F6", Interpolation: InterpolationMonotone}},
	}
}

func TestValidate_Valid(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"bar", barConfig()},
		{"pie without series", &Config{
			Title: "T",
			Kind:  KindPie,
			DataPoints: []DataPoint{
				{"name": "A", "value": json.Number("1")},
				{"name": "B", "value": 2.0},
			},
		}},
		{"pie with series", &Config{
			Title:      "T",
			Kind:       KindPie,
			DataPoints: []DataPoint{{"name": "A", "value": 1}},
			Series:     []Series{{DataKey: "value"}},
		}},
		{"diagram", &Config{Title: "D", Kind: KindDiagram, DiagramSource: "graph TD\nA-->B"}},
		{"markup", &Config{Title: "M", Kind: KindMarkup, MarkupSource: "<div>hi</div>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, tt.cfg.Validate())
		})
	}
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"missing title", func(c *Config) { c.Title = " " }, "title"},
		{"unknown kind", func(c *Config) { c.Kind = "radar" }, "chartKind"},
		{"missing xAxisKey", func(c *Config) { c.XAxisKey = "" }, "xAxisKey"},
		{"xAxisKey absent from point", func(c *Config) { c.XAxisKey = "day" }, "dataPoints[0]"},
		{"empty dataPoints", func(c *Config) { c.DataPoints = nil }, "dataPoints"},
		{"empty series", func(c *Config) { c.Series = nil }, "series"},
		{"duplicate dataKey", func(c *Config) { c.Series = append(c.Series, Series{DataKey: "sales"}) }, "series[1].dataKey"},
		{"dataKey absent from point", func(c *Config) { c.Series[0].DataKey = "profit" }, "series[0].dataKey"},
		{"bad color", func(c *Config) { c.Series[0].Color = "blue" }, "series[0].color"},
		{"bad interpolation", func(c *Config) { c.Series[0].Interpolation = "cubic" }, "series[0].interpolation"},
		{"non-scalar value", func(c *Config) { c.DataPoints[1]["sales"] = []any{1} }, "dataPoints[1].sales"},
		{"null value", func(c *Config) { c.DataPoints[0]["sales"] = nil }, "dataPoints[0].sales"},
		{"stray diagram source", func(c *Config) { c.DiagramSource = "graph TD" }, "chartKind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := barConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			var sv *SchemaViolationError
			require.True(t, errors.As(err, &sv), "expected SchemaViolationError, got %v", err)
			assert.Equal(t, tt.field, sv.Field)
		})
	}
}

func TestValidate_PiePayloadAsBarFails(t *testing.T) {
	cfg := &Config{
		Title: "T",
		Kind:  KindBar,
		DataPoints: []DataPoint{
			{"name": "A", "value": json.Number("1")},
			{"name": "B", "value": json.Number("2")},
		},
	}
	var sv *SchemaViolationError
	require.ErrorAs(t, cfg.Validate(), &sv)
	assert.Equal(t, "xAxisKey", sv.Field)
}

func TestValidate_PieRequiresNameAndValue(t *testing.T) {
	cfg := &Config{
		Title:      "T",
		Kind:       KindPie,
		DataPoints: []DataPoint{{"name": "A", "value": "lots"}},
	}
	var sv *SchemaViolationError
	require.ErrorAs(t, cfg.Validate(), &sv)
	assert.Equal(t, "dataPoints[0].value", sv.Field)
}

func TestValidate_DiagramRejectsNumericFields(t *testing.T) {
	cfg := &Config{Title: "D", Kind: KindDiagram, DiagramSource: "graph TD", XAxisKey: "x"}
	var sv *SchemaViolationError
	assert.ErrorAs(t, cfg.Validate(), &sv)
}

func TestCanonical_ClearsIrrelevantFields(t *testing.T) {
	cfg := &Config{
		Title:         "T",
		Kind:          KindPie,
		XAxisKey:      "name",
		DataPoints:    []DataPoint{{"name": "A", "value": 1}},
		DiagramSource: "graph TD",
	}

	got := cfg.Canonical()
	assert.Empty(t, got.XAxisKey)
	assert.Empty(t, got.DiagramSource)
	assert.Len(t, got.DataPoints, 1)
	assert.Equal(t, "name", cfg.XAxisKey, "original must be untouched")
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"bar", KindBar, true},
		{"Line", KindLine, true},
		{"MERMAID", KindDiagram, true},
		{"html", KindMarkup, true},
		{" pie ", KindPie, true},
		{"scatter", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseKind(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarshal_StableAndUnescaped(t *testing.T) {
	cfg := &Config{Title: "M", Kind: KindMarkup, MarkupSource: "<b>a & b</b>"}

	out, err := Marshal(cfg)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"title\": \"M\",\n  \"chartKind\": \"markup\",\n  \"markupSource\": \"<b>a & b</b>\"\n}", string(out))
}

func TestWithSeriesColors(t *testing.T) {
	cfg := barConfig()
	cfg.Series = append(cfg.Series, Series{DataKey: "month"})

	got := cfg.WithSeriesColors([]string{"#111111"})
	assert.Equal(t, "#111111", got.Series[0].Color)
	assert.Equal(t, "#111111", got.Series[1].Color)
	assert.Equal(t, "#3B82F6", cfg.Series[0].Color, "original must be untouched")
}

func TestErrors(t *testing.T) {
	long := make([]rune, 600)
	for i := range long {
		long[i] = 'x'
	}
	inner := errors.New("boom")
	mre := NewMalformedResponseError(string(long), inner)
	assert.Len(t, []rune(mre.Snippet), 500)
	assert.ErrorIs(t, mre, inner)

	pe := &ProviderError{Provider: "openai", StatusCode: 429, Body: "rate limited"}
	assert.Contains(t, pe.Error(), "429")

	ce := &ConfigurationError{Provider: "gemini", Setting: "GEMINI_API_KEY"}
	assert.Contains(t, ce.Error(), "GEMINI_API_KEY")
}

func TestPaletteNames(t *testing.T) {
	assert.Equal(t, []string{"benchmark", "default", "forest", "monochrome", "ocean", "sunset"}, PaletteNames())
}
