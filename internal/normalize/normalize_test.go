package normalize

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/chartgen/internal/chart"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence is a no-op", "  {\"a\":1}\n", "  {\"a\":1}\n"},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"other tag", "```javascript\n{\"a\":1}\n```\n", `{"a":1}`},
		{"surrounding whitespace", "\n\n```JSON\n{\"a\":1}\n```  \n", `{"a":1}`},
		{"single line", "```json {\"a\":1}```", `{"a":1}`},
		{"single line with space before tag", "``` json {\"a\":1} ```", `{"a":1}`},
		{"single line without tag", "``` {\"a\":1}```", `{"a":1}`},
		{"only one closing fence removed", "```\nx\n``````", "x\n```"},
		{"opening without closing", "```json\n{\"a\":1}", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestNormalize_Fenced(t *testing.T) {
	raw := "```json\n{\"title\":\"Sales\",\"chartKind\":\"bar\",\"xAxisKey\":\"m\",\"dataPoints\":[{\"m\":\"Jan\",\"v\":1}],\"series\":[{\"dataKey\":\"v\"}]}\n```"

	cfg, err := New(false).Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, chart.KindBar, cfg.Kind)
	assert.Equal(t, "m", cfg.XAxisKey)
	assert.Equal(t, json.Number("1"), cfg.DataPoints[0]["v"])
}

func TestNormalize_Aliases(t *testing.T) {
	raw := `{"title":"T","chartType":"LINE","xAxisKey":"x","data":[{"x":"a","y":2}],"series":[{"dataKey":"y","type":"Step"}]}`

	cfg, err := New(false).Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, chart.KindLine, cfg.Kind)
	require.Len(t, cfg.DataPoints, 1)
	assert.Equal(t, chart.InterpolationStep, cfg.Series[0].Interpolation)
}

func TestNormalize_LegacyDiagramAndMarkup(t *testing.T) {
	cfg, err := New(false).Normalize(`{"title":"Flow","chartType":"mermaid","mermaidCode":"graph TD\nA-->B"}`)
	require.NoError(t, err)
	assert.Equal(t, chart.KindDiagram, cfg.Kind)
	assert.Equal(t, "graph TD\nA-->B", cfg.DiagramSource)

	cfg, err = New(false).Normalize(`{"title":"Card","chartType":"html","htmlCode":"<div>x</div>"}`)
	require.NoError(t, err)
	assert.Equal(t, chart.KindMarkup, cfg.Kind)
	assert.Equal(t, "<div>x</div>", cfg.MarkupSource)
}

func TestNormalize_FormatsMarkup(t *testing.T) {
	raw := `{"title":"Card","chartKind":"markup","markupSource":"<div><p>x</p></div>"}`

	cfg, err := New(true).Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "<div>\n  <p>\n    x\n  </p>\n</div>", cfg.MarkupSource)
}

func TestNormalize_FormatKeepsInlineText(t *testing.T) {
	raw := `{"title":"Card","chartKind":"markup","markupSource":"<p>Total: <b>42</b>!</p><span>a</span><span>b</span>"}`

	cfg, err := New(true).Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "<p>\n  Total: <b>42</b>!\n</p>\n<span>a</span><span>b</span>", cfg.MarkupSource)
}

func TestNormalize_IrrelevantFieldsUnset(t *testing.T) {
	raw := `{"title":"P","chartKind":"pie","xAxisKey":"name","diagramSource":"graph TD","dataPoints":[{"name":"A","value":1},{"name":"B","value":2}]}`

	cfg, err := New(false).Normalize(raw)
	require.NoError(t, err)
	assert.Empty(t, cfg.XAxisKey)
	assert.Empty(t, cfg.DiagramSource)
	assert.Nil(t, cfg.Series)
}

func TestNormalize_PieWithoutXAxisKey(t *testing.T) {
	raw := `{"chartKind":"pie","title":"T","dataPoints":[{"name":"A","value":1},{"name":"B","value":2}]}`

	_, err := New(false).Normalize(raw)
	assert.NoError(t, err)
}

func TestNormalize_BarWithoutXAxisKey(t *testing.T) {
	raw := `{"chartKind":"bar","title":"T","dataPoints":[{"name":"A","value":1},{"name":"B","value":2}]}`

	_, err := New(false).Normalize(raw)
	var sv *chart.SchemaViolationError
	assert.ErrorAs(t, err, &sv)
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unquoted keys", "{title: 'T'}"},
		{"empty", ""},
		{"array", `[{"title":"T"}]`},
		{"trailing garbage", `{"title":"T","chartKind":"bar"} and more`},
		{"prose", "Sure! Here is your chart."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := New(false).Normalize(tt.raw)
			assert.Nil(t, cfg)
			var mre *chart.MalformedResponseError
			assert.ErrorAs(t, err, &mre)
		})
	}
}

func TestNormalize_SchemaViolations(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing kind", `{"title":"T"}`, "chartKind"},
		{"numeric kind", `{"title":"T","chartKind":3}`, "chartKind"},
		{"unknown kind", `{"title":"T","chartType":"radar"}`, "chartType"},
		{"missing title", `{"chartKind":"diagram","diagramSource":"graph TD"}`, "title"},
		{"title not string", `{"title":5,"chartKind":"diagram","diagramSource":"graph TD"}`, "title"},
		{"empty diagram", `{"title":"T","chartKind":"diagram","diagramSource":"  "}`, "diagramSource"},
		{"empty markup", `{"title":"T","chartKind":"markup"}`, "markupSource"},
		{"points not array", `{"title":"T","chartKind":"bar","xAxisKey":"x","dataPoints":{}}`, "dataPoints"},
		{"point not object", `{"title":"T","chartKind":"bar","xAxisKey":"x","data":[1]}`, "data[0]"},
		{"series dataKey not string", `{"title":"T","chartKind":"bar","xAxisKey":"x","dataPoints":[{"x":1}],"series":[{"dataKey":1}]}`, "series[0].dataKey"},
		{"boolean value", `{"title":"T","chartKind":"bar","xAxisKey":"x","dataPoints":[{"x":"a","y":true}],"series":[{"dataKey":"y"}]}`, "dataPoints[0].y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(false).Normalize(tt.raw)
			var sv *chart.SchemaViolationError
			require.ErrorAs(t, err, &sv)
			assert.Equal(t, tt.field, sv.Field)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	configs := []*chart.Config{
		{
			Title:       "Revenue",
			Description: "Quarterly",
			Kind:        chart.KindComposed,
			XAxisKey:    "q",
			DataPoints: []chart.DataPoint{
				{"q": "Q1", "rev": json.Number("1.5"), "cost": json.Number("1")},
				{"q": "Q2", "rev": json.Number("2.25"), "cost": json.Number("-3e2")},
			},
			Series: []chart.Series{
				{DataKey: "rev", Name: "Revenue", Color: "#fff", Interpolation: chart.InterpolationLinear},
				{DataKey: "cost"},
			},
		},
		{
			Title:      "Share",
			Kind:       chart.KindPie,
			DataPoints: []chart.DataPoint{{"name": "A", "value": json.Number("3")}},
		},
		{Title: "Flow", Kind: chart.KindDiagram, DiagramSource: "sequenceDiagram\nA->>B: hi"},
		{Title: "Card", Kind: chart.KindMarkup, MarkupSource: `<div class="x">a & b</div>`},
	}

	for _, cfg := range configs {
		t.Run(string(cfg.Kind), func(t *testing.T) {
			require.NoError(t, cfg.Validate())
			text, err := Encode(cfg)
			require.NoError(t, err)

			got, err := Decode(text)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}
}

func TestMalformedSnippetTruncated(t *testing.T) {
	raw := "{oops" + strings.Repeat("x", 800)
	_, err := New(false).Normalize(raw)
	var mre *chart.MalformedResponseError
	require.ErrorAs(t, err, &mre)
	assert.Len(t, []rune(mre.Snippet), 500)
}
