package chart

import "sort"

// Palettes maps a palette name to the colors cycled across series.
var Palettes = map[string][]string{
	"benchmark":  {"#F97316", "#64748B", "#94A3B8", "#CBD5E1", "#E2E8F0", "#F1F5F9"},
	"default":    {"#3B82F6", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6", "#EC4899"},
	"ocean":      {"#0ea5e9", "#3b82f6", "#6366f1", "#8b5cf6", "#a855f7"},
	"sunset":     {"#f97316", "#ef4444", "#e11d48", "#be123c", "#881337"},
	"forest":     {"#84cc16", "#22c55e", "#10b981", "#14b8a6", "#06b6d4"},
	"monochrome": {"#1f2937", "#4b5563", "#6b7280", "#9ca3af", "#d1d5db"},
}

func PaletteNames() []string {
	names := make([]string, 0, len(Palettes))
	for n := range Palettes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
