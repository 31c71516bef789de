package provider

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Platform holds the defaults of an OpenAI-compatible vendor.
type Platform struct {
	Name        string
	DisplayName string
	Endpoint    string
	Model       string
	// EnvPrefix is prepended to _API_KEY, _API_URL and _MODEL.
	EnvPrefix string
}

var Platforms = map[string]Platform{
	"xiaomi": {
		Name:        "xiaomi",
		DisplayName: "Xiaomi AI",
		Endpoint:    "https://api.xiaomimimo.com/v1",
		Model:       "mimo-v2-flash",
		EnvPrefix:   "XM",
	},
	"deepseek": {
		Name:        "deepseek",
		DisplayName: "DeepSeek",
		Endpoint:    "https://api.deepseek.com/v1",
		Model:       "deepseek-chat",
		EnvPrefix:   "DS",
	},
	"moonshot": {
		Name:        "moonshot",
		DisplayName: "Moonshot",
		Endpoint:    "https://api.moonshot.cn/v1",
		Model:       "moonshot-v1-8k",
		EnvPrefix:   "MS",
	},
	"zhipu": {
		Name:        "zhipu",
		DisplayName: "Zhipu GLM",
		Endpoint:    "https://open.bigmodel.cn/api/paas/v4",
		Model:       "glm-4-flash",
		EnvPrefix:   "ZP",
	},
	"custom": {
		Name:        "custom",
		DisplayName: "Custom OpenAI",
		Endpoint:    "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		EnvPrefix:   "CUSTOM",
	},
}

func PlatformNames() []string {
	names := make([]string, 0, len(Platforms))
	for n := range Platforms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ChatCompletionsURL appends /chat/completions to endpoint unless it is
// already there.
func ChatCompletionsURL(endpoint string) string {
	if strings.HasSuffix(endpoint, "/chat/completions") {
		return endpoint
	}
	return strings.TrimRight(endpoint, "/") + "/chat/completions"
}

// TrimChatCompletions strips a trailing /chat/completions so the endpoint can
// be used as an SDK base URL.
func TrimChatCompletions(endpoint string) string {
	return strings.TrimRight(strings.TrimSuffix(endpoint, "/chat/completions"), "/")
}

// DataURL encodes img as a data: URL.
func DataURL(img *Image) string {
	return "data:" + NormaliseMIME(img.MIMEType) + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// ParseDataURL decodes a base64 data URL such as the ones DataURL produces.
func ParseDataURL(s string) (*Image, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data URL has no payload")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, fmt.Errorf("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return &Image{Data: data, MIMEType: NormaliseMIME(mimeType)}, nil
}

// NormaliseMIME maps image types to the set every backend accepts. Unknown
// types become image/jpeg.
func NormaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}

const maxErrorBody = 2048

// TruncateBody caps an error body so provider errors stay loggable. It never
// splits a multi-byte rune.
func TruncateBody(body string) string {
	if len(body) <= maxErrorBody {
		return body
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}
