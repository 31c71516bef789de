package detect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/chartgen/internal/chart"
)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := New(16)
	require.NoError(t, err)
	return d
}

func TestDetect_Diagram(t *testing.T) {
	tests := []string{
		"flowchart TD\nA-->B",
		"graph LR;\nA-->B",
		"sequenceDiagram\nAlice->>Bob: hi",
		"stateDiagram-v2\n[*] --> Still",
		"erDiagram\nCUSTOMER ||--o{ ORDER : places",
		"%% a comment\n%%{init: {'theme':'dark'}}%%\ngantt\ntitle A",
		"---\ntitle: Flow\n---\nflowchart LR\nA-->B",
		"  timeline\n  title History",
		"pie title Pets\n\"Dogs\" : 386",
	}

	d := newDetector(t)
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			cfg, err := d.Detect(in)
			require.NoError(t, err)
			assert.Equal(t, chart.KindDiagram, cfg.Kind)
			assert.Equal(t, DiagramTitle, cfg.Title)
			assert.Equal(t, in, cfg.DiagramSource)
		})
	}
}

func TestDetect_FlowchartVerbatim(t *testing.T) {
	cfg, err := newDetector(t).Detect("flowchart TD\nA-->B")
	require.NoError(t, err)
	assert.Equal(t, &chart.Config{Title: DiagramTitle, Kind: chart.KindDiagram, DiagramSource: "flowchart TD\nA-->B"}, cfg)
}

func TestDetect_Markup(t *testing.T) {
	tests := []string{
		"<div>hello</div>",
		"  <section class=\"a\"></section>",
		"Click <a href='/x'>here</a>",
		"text with class=\"card\">inside",
	}

	d := newDetector(t)
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			cfg, err := d.Detect(in)
			require.NoError(t, err)
			assert.Equal(t, chart.KindMarkup, cfg.Kind)
			assert.Equal(t, MarkupTitle, cfg.Title)
			assert.Equal(t, in, cfg.MarkupSource)
		})
	}
}

func TestDetect_JSON(t *testing.T) {
	in := `{"title":"T","chartKind":"pie","dataPoints":[{"name":"A","value":1}]}`

	cfg, err := newDetector(t).Detect(in)
	require.NoError(t, err)
	assert.Equal(t, chart.KindPie, cfg.Kind)
	assert.Equal(t, "T", cfg.Title)
}

func TestDetect_JSONSchemaViolationDoesNotFallThrough(t *testing.T) {
	in := `{"title":"T","chartKind":"bar","dataPoints":[{"name":"A","value":1}]}`

	_, err := newDetector(t).Detect(in)
	var sv *chart.SchemaViolationError
	assert.ErrorAs(t, err, &sv)
}

func TestDetect_Failure(t *testing.T) {
	tests := []string{
		"",
		"   \n ",
		"just some prose about charts",
		`{"title":"no kind"}`,
		"[1, 2, 3]",
		"%% only a comment",
	}

	d := newDetector(t)
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			cfg, err := d.Detect(in)
			assert.Nil(t, cfg)
			assert.True(t, errors.Is(err, chart.ErrDetectionFailed))
		})
	}
}

func TestDetect_Idempotent(t *testing.T) {
	inputs := []string{
		"flowchart TD\nA-->B\n",
		"<div class=\"x\"><p>a & b</p></div>",
		`{"title":"S","chartType":"line","xAxisKey":"x","data":[{"x":"a","y":1.50}],"series":[{"dataKey":"y"}]}`,
	}

	d := newDetector(t)
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			first, err := d.Detect(in)
			require.NoError(t, err)

			text, err := chart.Marshal(first)
			require.NoError(t, err)

			second, err := d.Detect(string(text))
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestDetect_CachesSuccess(t *testing.T) {
	d := newDetector(t)

	first, err := d.Detect("graph TD\nA-->B")
	require.NoError(t, err)
	second, err := d.Detect("graph TD\nA-->B")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, d.cache.Len())

	_, err = d.Detect("nothing here")
	assert.Error(t, err)
	assert.Equal(t, 1, d.cache.Len())
}
