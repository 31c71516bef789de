// Package detect classifies hand-edited text as a chart config, a diagram or
// a markup fragment without calling a model.
package detect

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tidwall/gjson"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/normalize"
)

const (
	DiagramTitle = "Custom Diagram"
	MarkupTitle  = "Custom Component"
)

// diagramKeywords are the lowercased first tokens of the diagram dialects
// the renderer understands.
var diagramKeywords = map[string]bool{
	"graph":              true,
	"flowchart":          true,
	"flowchart-elk":      true,
	"sequencediagram":    true,
	"classdiagram":       true,
	"classdiagram-v2":    true,
	"statediagram":       true,
	"statediagram-v2":    true,
	"erdiagram":          true,
	"journey":            true,
	"gantt":              true,
	"pie":                true,
	"gitgraph":           true,
	"mindmap":            true,
	"timeline":           true,
	"quadrantchart":      true,
	"requirementdiagram": true,
	"c4context":          true,
	"c4container":        true,
	"c4component":        true,
	"c4dynamic":          true,
	"c4deployment":       true,
	"sankey-beta":        true,
	"xychart-beta":       true,
	"block-beta":         true,
	"packet-beta":        true,
	"kanban":             true,
	"architecture-beta":  true,
}

var markupAttr = regexp.MustCompile(`(?i)\b(class|classname|style|id|href|src)\s*=\s*["']`)

type Detector struct {
	cache *lru.Cache[string, *chart.Config]
}

// New returns a Detector that remembers up to cacheSize successful
// classifications.
func New(cacheSize int) (*Detector, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[string, *chart.Config](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create detection cache: %w", err)
	}
	return &Detector{cache: cache}, nil
}

// Detect classifies text. JSON carrying a chart kind field is validated and
// returned as is; a validation failure there is reported rather than falling
// through to the diagram and markup rules. Text matching nothing yields
// chart.ErrDetectionFailed.
func (d *Detector) Detect(text string) (*chart.Config, error) {
	if cfg, ok := d.cache.Get(text); ok {
		return cfg, nil
	}

	cfg, err := classify(text)
	if err != nil {
		return nil, err
	}
	d.cache.Add(text, cfg)
	return cfg, nil
}

func classify(text string) (*chart.Config, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, chart.ErrDetectionFailed
	}

	if hasKindField(trimmed) {
		return normalize.Decode(trimmed)
	}

	if diagramKeywords[leadingToken(trimmed)] {
		return &chart.Config{
			Title:         DiagramTitle,
			Kind:          chart.KindDiagram,
			DiagramSource: text,
		}, nil
	}

	if strings.HasPrefix(trimmed, "<") || (markupAttr.MatchString(trimmed) && strings.Contains(trimmed, ">")) {
		return &chart.Config{
			Title:        MarkupTitle,
			Kind:         chart.KindMarkup,
			MarkupSource: text,
		}, nil
	}

	return nil, chart.ErrDetectionFailed
}

func hasKindField(text string) bool {
	if !gjson.Valid(text) {
		return false
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return false
	}
	for _, key := range normalize.KindKeys() {
		if doc.Get(key).Exists() {
			return true
		}
	}
	return false
}

// leadingToken returns the lowercased first word of text, skipping blank
// lines, %% comment and directive lines, and a leading --- front matter block.
func leadingToken(text string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), len(text)+1)

	inFrontMatter := false
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if first && line == "---" {
			inFrontMatter = true
			first = false
			continue
		}
		first = false
		if inFrontMatter {
			if line == "---" {
				inFrontMatter = false
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		fields := strings.Fields(line)
		return strings.TrimRight(strings.ToLower(fields[0]), ";:")
	}
	return ""
}
