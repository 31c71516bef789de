package chart

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type Kind string

const (
	KindLine     Kind = "line"
	KindBar      Kind = "bar"
	KindArea     Kind = "area"
	KindPie      Kind = "pie"
	KindComposed Kind = "composed"
	KindDiagram  Kind = "diagram"
	KindMarkup   Kind = "markup"
)

var kindAliases = map[string]Kind{
	"line":     KindLine,
	"bar":      KindBar,
	"area":     KindArea,
	"pie":      KindPie,
	"composed": KindComposed,
	"diagram":  KindDiagram,
	"mermaid":  KindDiagram,
	"markup":   KindMarkup,
	"html":     KindMarkup,
}

// ParseKind resolves a kind name case-insensitively, accepting the legacy
// "mermaid" and "html" spellings.
func ParseKind(s string) (Kind, bool) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

func (k Kind) Valid() bool {
	switch k {
	case KindLine, KindBar, KindArea, KindPie, KindComposed, KindDiagram, KindMarkup:
		return true
	}
	return false
}

// Numeric reports whether the kind is rendered from dataPoints and series.
func (k Kind) Numeric() bool {
	switch k {
	case KindLine, KindBar, KindArea, KindPie, KindComposed:
		return true
	}
	return false
}

type Interpolation string

const (
	InterpolationMonotone Interpolation = "monotone"
	InterpolationLinear   Interpolation = "linear"
	InterpolationStep     Interpolation = "step"
)

func (i Interpolation) Valid() bool {
	switch i {
	case InterpolationMonotone, InterpolationLinear, InterpolationStep:
		return true
	}
	return false
}

type Series struct {
	DataKey       string        `json:"dataKey"`
	Name          string        `json:"name,omitempty"`
	Color         string        `json:"color,omitempty"`
	Interpolation Interpolation `json:"interpolation,omitempty"`
}

// DataPoint maps a field name to a string or a number. Decoded numbers are
// kept as json.Number so their textual form survives a round trip.
type DataPoint map[string]any

// Config is the canonical chart definition. A Config is never mutated in
// place once produced; callers build a new one instead.
type Config struct {
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	Kind          Kind        `json:"chartKind"`
	XAxisKey      string      `json:"xAxisKey,omitempty"`
	DataPoints    []DataPoint `json:"dataPoints,omitempty"`
	Series        []Series    `json:"series,omitempty"`
	DiagramSource string      `json:"diagramSource,omitempty"`
	MarkupSource  string      `json:"markupSource,omitempty"`
}

// Canonical returns a copy of c with every field irrelevant to its kind unset.
func (c *Config) Canonical() *Config {
	out := &Config{
		Title:       c.Title,
		Description: c.Description,
		Kind:        c.Kind,
	}
	switch {
	case c.Kind == KindDiagram:
		out.DiagramSource = c.DiagramSource
	case c.Kind == KindMarkup:
		out.MarkupSource = c.MarkupSource
	case c.Kind == KindPie:
		out.DataPoints = c.DataPoints
		out.Series = c.Series
	default:
		out.XAxisKey = c.XAxisKey
		out.DataPoints = c.DataPoints
		out.Series = c.Series
	}
	return out
}

// WithSeriesColors returns a copy of c whose series are recolored by cycling
// through colors. The data points are shared with c.
func (c *Config) WithSeriesColors(colors []string) *Config {
	out := *c
	if len(c.Series) == 0 || len(colors) == 0 {
		return &out
	}
	out.Series = make([]Series, len(c.Series))
	for i, s := range c.Series {
		s.Color = colors[i%len(colors)]
		out.Series[i] = s
	}
	return &out
}

// Marshal serializes c as indented JSON without HTML escaping so that markup
// sources stay readable in an editor.
func Marshal(c *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type Image struct {
	Key      string `json:"key"`
	MimeType string `json:"mimeType"`
}

type HistoryEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Prompt    string    `json:"prompt"`
	Config    *Config   `json:"config"`
	Image     *Image    `json:"image,omitempty"`
}
