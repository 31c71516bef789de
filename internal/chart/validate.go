package chart

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Validate checks the structural rules of c's kind. Every failure is a
// *SchemaViolationError; nothing is repaired.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return violation("title", "is required")
	}
	if !c.Kind.Valid() {
		return violation("chartKind", "has unknown value %q", c.Kind)
	}

	switch c.Kind {
	case KindDiagram:
		if strings.TrimSpace(c.DiagramSource) == "" {
			return violation("diagramSource", "is required for kind diagram")
		}
		if c.hasNumericFields() || c.MarkupSource != "" {
			return violation("diagramSource", "must be the only populated payload for kind diagram")
		}
		return nil
	case KindMarkup:
		if strings.TrimSpace(c.MarkupSource) == "" {
			return violation("markupSource", "is required for kind markup")
		}
		if c.hasNumericFields() || c.DiagramSource != "" {
			return violation("markupSource", "must be the only populated payload for kind markup")
		}
		return nil
	}

	if c.DiagramSource != "" || c.MarkupSource != "" {
		return violation("chartKind", "%s must not carry diagram or markup source", c.Kind)
	}
	if len(c.DataPoints) == 0 {
		return violation("dataPoints", "must be non-empty for kind %s", c.Kind)
	}
	for i, p := range c.DataPoints {
		if p == nil {
			return violation(fmt.Sprintf("dataPoints[%d]", i), "must be an object")
		}
		for k, v := range p {
			if !isScalar(v) {
				return violation(fmt.Sprintf("dataPoints[%d].%s", i, k), "must be a string or a number")
			}
		}
	}

	if c.Kind == KindPie {
		return c.validatePie()
	}
	return c.validateCartesian()
}

func (c *Config) validatePie() error {
	if c.XAxisKey != "" {
		return violation("xAxisKey", "must be unset for kind pie")
	}
	for i, p := range c.DataPoints {
		name, ok := p["name"].(string)
		if !ok || name == "" {
			return violation(fmt.Sprintf("dataPoints[%d].name", i), "must be a non-empty string")
		}
		if !isNumber(p["value"]) {
			return violation(fmt.Sprintf("dataPoints[%d].value", i), "must be a number")
		}
	}
	if len(c.Series) == 0 {
		return nil
	}
	return c.validateSeries()
}

func (c *Config) validateCartesian() error {
	if strings.TrimSpace(c.XAxisKey) == "" {
		return violation("xAxisKey", "is required for kind %s", c.Kind)
	}
	for i, p := range c.DataPoints {
		if _, ok := p[c.XAxisKey]; !ok {
			return violation(fmt.Sprintf("dataPoints[%d]", i), "is missing xAxisKey %q", c.XAxisKey)
		}
	}
	if len(c.Series) == 0 {
		return violation("series", "must be non-empty for kind %s", c.Kind)
	}
	return c.validateSeries()
}

func (c *Config) validateSeries() error {
	seen := make(map[string]struct{}, len(c.Series))
	for i, s := range c.Series {
		field := fmt.Sprintf("series[%d]", i)
		if s.DataKey == "" {
			return violation(field+".dataKey", "is required")
		}
		if _, dup := seen[s.DataKey]; dup {
			return violation(field+".dataKey", "duplicates %q", s.DataKey)
		}
		seen[s.DataKey] = struct{}{}
		for j, p := range c.DataPoints {
			if _, ok := p[s.DataKey]; !ok {
				return violation(field+".dataKey", "%q is missing from dataPoints[%d]", s.DataKey, j)
			}
		}
		if s.Color != "" && !hexColor.MatchString(s.Color) {
			return violation(field+".color", "%q is not a hex color", s.Color)
		}
		if s.Interpolation != "" && !s.Interpolation.Valid() {
			return violation(field+".interpolation", "has unknown value %q", s.Interpolation)
		}
	}
	return nil
}

func (c *Config) hasNumericFields() bool {
	return c.XAxisKey != "" || len(c.DataPoints) > 0 || len(c.Series) > 0
}

func isScalar(v any) bool {
	if _, ok := v.(string); ok {
		return true
	}
	return isNumber(v)
}

func isNumber(v any) bool {
	switch n := v.(type) {
	case json.Number:
		_, err := n.Float64()
		return err == nil
	case float64, float32, int, int32, int64:
		return true
	}
	return false
}
