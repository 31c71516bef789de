// Package normalize turns raw model replies into validated chart configs.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/markup"
)

const fence = "```"

// Field names accepted when reading a config. The first name in each list is
// the canonical one.
var (
	kindKeys    = []string{"chartKind", "chartType"}
	pointsKeys  = []string{"dataPoints", "data"}
	diagramKeys = []string{"diagramSource", "mermaidCode"}
	markupKeys  = []string{"markupSource", "htmlCode"}
	interpKeys  = []string{"interpolation", "type"}
)

// KindKeys lists the field names that identify a chart kind.
func KindKeys() []string {
	return append([]string(nil), kindKeys...)
}

type Normalizer struct {
	// FormatMarkup re-indents markup sources. Formatting is best effort and
	// never causes Normalize to fail.
	FormatMarkup bool
}

func New(formatMarkup bool) *Normalizer {
	return &Normalizer{FormatMarkup: formatMarkup}
}

// Normalize strips code fences from raw, decodes it and validates the result
// against the rules of its declared kind.
func (n *Normalizer) Normalize(raw string) (*chart.Config, error) {
	cfg, err := Decode(StripFences(strings.TrimSpace(raw)))
	if err != nil {
		return nil, err
	}
	if n.FormatMarkup && cfg.Kind == chart.KindMarkup {
		if formatted := markup.Format(cfg.MarkupSource); strings.TrimSpace(formatted) != "" {
			out := *cfg
			out.MarkupSource = formatted
			cfg = &out
		}
	}
	return cfg, nil
}

// StripFences removes one opening markdown code fence (with any language tag)
// and one closing fence. Text without fences is returned unchanged.
func StripFences(text string) string {
	t := strings.TrimSpace(text)
	opened := strings.HasPrefix(t, fence)
	if opened {
		if i := strings.IndexByte(t, '\n'); i >= 0 {
			t = t[i+1:]
		} else {
			t = strings.TrimLeft(t[len(fence):], " \t")
			t = strings.TrimLeftFunc(t, isTagRune)
		}
	}
	trimmed := strings.TrimSpace(t)
	if strings.HasSuffix(trimmed, fence) {
		return strings.TrimSpace(strings.TrimSuffix(trimmed, fence))
	}
	if !opened {
		return text
	}
	return trimmed
}

func isTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '+'
}

// Decode parses text as a single JSON object and validates it. Unlike
// Normalize it neither strips fences nor formats markup.
func Decode(text string) (*chart.Config, error) {
	obj, err := parseObject(text)
	if err != nil {
		return nil, chart.NewMalformedResponseError(text, err)
	}
	cfg, err := fromObject(obj)
	if err != nil {
		return nil, err
	}
	cfg = cfg.Canonical()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseObject(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected content after JSON value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", jsonType(v))
	}
	return obj, nil
}

func fromObject(obj map[string]any) (*chart.Config, error) {
	cfg := &chart.Config{}

	kindVal, kindField, ok := lookup(obj, kindKeys)
	if !ok {
		return nil, &chart.SchemaViolationError{Field: "chartKind", Reason: "is required"}
	}
	kindStr, isStr := kindVal.(string)
	if !isStr || strings.TrimSpace(kindStr) == "" {
		return nil, &chart.SchemaViolationError{Field: kindField, Reason: "must be a non-empty string"}
	}
	kind, known := chart.ParseKind(kindStr)
	if !known {
		return nil, &chart.SchemaViolationError{Field: kindField, Reason: fmt.Sprintf("has unknown value %q", kindStr)}
	}
	cfg.Kind = kind

	var err error
	if cfg.Title, err = stringField(obj, "title"); err != nil {
		return nil, err
	}
	if cfg.Description, err = stringField(obj, "description"); err != nil {
		return nil, err
	}
	if cfg.XAxisKey, err = stringField(obj, "xAxisKey"); err != nil {
		return nil, err
	}
	if cfg.DiagramSource, err = stringField(obj, diagramKeys...); err != nil {
		return nil, err
	}
	if cfg.MarkupSource, err = stringField(obj, markupKeys...); err != nil {
		return nil, err
	}
	if cfg.DataPoints, err = dataPoints(obj); err != nil {
		return nil, err
	}
	if cfg.Series, err = series(obj); err != nil {
		return nil, err
	}
	return cfg, nil
}

func lookup(obj map[string]any, keys []string) (any, string, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, k, true
		}
	}
	return nil, "", false
}

func stringField(obj map[string]any, keys ...string) (string, error) {
	v, field, ok := lookup(obj, keys)
	if !ok {
		return "", nil
	}
	s, isStr := v.(string)
	if !isStr {
		return "", &chart.SchemaViolationError{Field: field, Reason: "must be a string"}
	}
	return s, nil
}

func dataPoints(obj map[string]any) ([]chart.DataPoint, error) {
	v, field, ok := lookup(obj, pointsKeys)
	if !ok {
		return nil, nil
	}
	arr, isArr := v.([]any)
	if !isArr {
		return nil, &chart.SchemaViolationError{Field: field, Reason: "must be an array"}
	}
	points := make([]chart.DataPoint, 0, len(arr))
	for i, item := range arr {
		m, isObj := item.(map[string]any)
		if !isObj {
			return nil, &chart.SchemaViolationError{Field: fmt.Sprintf("%s[%d]", field, i), Reason: "must be an object"}
		}
		points = append(points, chart.DataPoint(m))
	}
	return points, nil
}

func series(obj map[string]any) ([]chart.Series, error) {
	v, ok := obj["series"]
	if !ok || v == nil {
		return nil, nil
	}
	arr, isArr := v.([]any)
	if !isArr {
		return nil, &chart.SchemaViolationError{Field: "series", Reason: "must be an array"}
	}
	out := make([]chart.Series, 0, len(arr))
	for i, item := range arr {
		m, isObj := item.(map[string]any)
		if !isObj {
			return nil, &chart.SchemaViolationError{Field: fmt.Sprintf("series[%d]", i), Reason: "must be an object"}
		}
		var (
			s   chart.Series
			err error
		)
		if s.DataKey, err = stringField(m, "dataKey"); err != nil {
			return nil, prefixed(i, err)
		}
		if s.Name, err = stringField(m, "name"); err != nil {
			return nil, prefixed(i, err)
		}
		if s.Color, err = stringField(m, "color"); err != nil {
			return nil, prefixed(i, err)
		}
		interp, err := stringField(m, interpKeys...)
		if err != nil {
			return nil, prefixed(i, err)
		}
		s.Interpolation = chart.Interpolation(strings.ToLower(interp))
		out = append(out, s)
	}
	return out, nil
}

func prefixed(i int, err error) error {
	var sv *chart.SchemaViolationError
	if errors.As(err, &sv) {
		return &chart.SchemaViolationError{Field: fmt.Sprintf("series[%d].%s", i, sv.Field), Reason: sv.Reason}
	}
	return err
}

func jsonType(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	}
	return "value"
}

// Encode serializes cfg in canonical form.
func Encode(cfg *chart.Config) (string, error) {
	out, err := chart.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return string(bytes.TrimSpace(out)), nil
}
