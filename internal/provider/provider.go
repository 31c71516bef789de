// Package provider defines the contract shared by the model backends that turn
// a prompt into chart config text.
package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/vbonduro/chartgen/internal/chart"
)

type Kind string

const (
	KindGemini     Kind = "gemini"
	KindOpenAI     Kind = "openai"
	KindCompatible Kind = "compatible"
	KindAnthropic  Kind = "anthropic"
)

type Language string

const (
	LanguageChinese Language = "zh"
	LanguageEnglish Language = "en"
)

// ParseLanguage defaults to Chinese for anything other than "en".
func ParseLanguage(s string) Language {
	if s == string(LanguageEnglish) {
		return LanguageEnglish
	}
	return LanguageChinese
}

// Mode restricts which chart kinds a model may choose.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeStandard Mode = "standard"
	ModeMarkup   Mode = "markup"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeStandard:
		return ModeStandard, nil
	case ModeMarkup, "html":
		return ModeMarkup, nil
	}
	return "", fmt.Errorf("unknown generation mode %q", s)
}

type Image struct {
	Data     []byte
	MIMEType string
}

type Request struct {
	Prompt   string
	Language Language
	Mode     Mode
	Image    *Image
}

// Credentials are resolved by the caller and handed to every call; adapters
// never read the environment themselves.
type Credentials struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float32
}

// Selection names the backend for one generation together with its
// credentials.
type Selection struct {
	Kind        Kind
	Platform    string
	Credentials Credentials
}

// Adapter sends one request to a backend and returns the reply text verbatim.
// Implementations fail with *chart.ConfigurationError before any network call
// when credentials are missing, *chart.ProviderError on a non-success status
// and *chart.EmptyResponseError when the reply carries no text. They never
// retry.
type Adapter interface {
	Kind() Kind
	Generate(ctx context.Context, req Request, creds Credentials) (string, error)
}

type Registry struct {
	adapters map[Kind]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Kind]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Kind()] = a
	}
	return r
}

func (r *Registry) Adapter(kind Kind) (Adapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, &chart.ConfigurationError{Provider: string(kind), Setting: "a registered adapter"}
	}
	return a, nil
}

func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.adapters))
	for k := range r.adapters {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
