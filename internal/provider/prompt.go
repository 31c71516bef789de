package provider

import (
	"fmt"
	"strings"
)

// DefaultPrompt is used when the user supplies an image but no text.
func DefaultPrompt(lang Language) string {
	if lang == LanguageEnglish {
		return "Analyze this image and create a chart"
	}
	return "分析这张图片并绘制图表"
}

func languageRule(lang Language) string {
	if lang == LanguageEnglish {
		return "YOU MUST USE ENGLISH for all text fields."
	}
	return "YOU MUST USE CHINESE (Simplified) for all text fields unless explicitly requested otherwise."
}

const numericRules = `[IF STATISTICAL CHART]:
- Set "chartKind" to one of: "line", "bar", "area", "pie", "composed".
- Fill "dataPoints" with objects whose values are strings or numbers.
- For "line", "bar", "area" and "composed": set "xAxisKey" to a key present in every data point and fill "series" with at least one entry.
- For "pie": every data point must have "name" (string) and "value" (number); omit "xAxisKey".
- Each series entry has "dataKey" (required, unique, present in every data point), optional "name", optional "color" (hex such as "#3B82F6") and optional "interpolation" ("monotone", "linear" or "step").
- Omit "diagramSource" and "markupSource".`

const diagramRules = `[IF DIAGRAM/FLOWCHART]:
- Set "chartKind" to "diagram".
- Put valid Mermaid syntax in "diagramSource". Use "graph TD" or "graph LR" for flowcharts and subgraphs for clusters.
- Use professional node labels (e.g. [SFT Model] instead of A). Keep styling simple.
- Omit "xAxisKey", "dataPoints", "series" and "markupSource".`

const markupRules = `[IF UI COMPONENT]:
- Set "chartKind" to "markup".
- Put a self-contained HTML fragment with inline styles in "markupSource".
- Omit "xAxisKey", "dataPoints", "series" and "diagramSource".`

// SystemInstruction builds the instruction sent ahead of every user prompt.
func SystemInstruction(lang Language, mode Mode) string {
	var b strings.Builder
	b.WriteString("You are a chart configuration generator. Generate a valid JSON configuration based on the user's request.\n\n")

	switch mode {
	case ModeMarkup:
		b.WriteString("The user wants a rendered UI component.\n\n")
		b.WriteString(markupRules)
	case ModeStandard:
		b.WriteString("Guidelines:\n1. Determine if the user wants a Statistical Chart (numbers, trends) or a Diagram (processes, architectures, relationships).\n\n")
		b.WriteString(numericRules + "\n\n" + diagramRules)
	default:
		b.WriteString("Guidelines:\n1. Determine if the user wants a Statistical Chart (numbers, trends), a Diagram (processes, architectures, relationships) or a UI Component (cards, tables, dashboards).\n\n")
		b.WriteString(numericRules + "\n\n" + diagramRules + "\n\n" + markupRules)
	}

	b.WriteString(`

Response Format:
{
  "title": "A short, descriptive title",
  "description": "A brief explanation of the data context (optional)",
  "chartKind": "line" | "bar" | "area" | "pie" | "composed" | "diagram" | "markup",
  "xAxisKey": "string",
  "dataPoints": [objects],
  "series": [{"dataKey": "string", "name": "string", "color": "#hex", "interpolation": "monotone" | "linear" | "step"}],
  "diagramSource": "string",
  "markupSource": "string"
}
`)
	fmt.Fprintf(&b, "\nLanguage Rule: %s\n\n", languageRule(lang))
	b.WriteString("IMPORTANT: Return ONLY valid JSON. Do not include any markdown code blocks, explanations, or other text.")
	return b.String()
}

// UserMessage wraps the prompt the way every backend receives it.
func UserMessage(req Request) string {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = DefaultPrompt(req.Language)
	}
	return fmt.Sprintf("Generate a chart configuration for: %q", prompt)
}
