package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/provider"
	"github.com/vbonduro/chartgen/internal/provider/compat"
)

type Endpoint struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   string
	LogFile    string

	DefaultProvider string
	DefaultPlatform string
	DefaultLanguage string
	Temperature     float32
	FormatMarkup    bool
	EditorDebounce  time.Duration
	DetectCacheSize int

	ImageBackend   string
	ImageLocalPath string
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UseSSL       bool

	Gemini    Endpoint
	OpenAI    Endpoint
	Anthropic Endpoint
	// Platforms holds the OpenAI-compatible vendors keyed by platform name.
	Platforms map[string]Endpoint
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		DBPath:     getEnv("DB_PATH", "/data/chartgen.db"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFile:    getEnv("LOG_FILE", ""),

		DefaultProvider: getEnv("DEFAULT_PROVIDER", string(provider.KindGemini)),
		DefaultPlatform: getEnv("DEFAULT_PLATFORM", "xiaomi"),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", string(provider.LanguageChinese)),
		Temperature:     float32(getEnvFloat("LLM_TEMPERATURE", 0.3)),
		FormatMarkup:    getEnvBool("FORMAT_MARKUP", true),
		EditorDebounce:  getEnvDuration("EDITOR_DEBOUNCE", 500*time.Millisecond),
		DetectCacheSize: getEnvInt("DETECT_CACHE_SIZE", 256),

		ImageBackend:   getEnv("IMAGE_BACKEND", "local"),
		ImageLocalPath: getEnv("IMAGE_LOCAL_PATH", "/data/images"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3Region:       getEnv("S3_REGION", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3Bucket:       getEnv("S3_BUCKET", "chartgen"),
		S3UseSSL:       getEnvBool("S3_USE_SSL", true),

		Gemini: Endpoint{
			APIKey:  getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
			BaseURL: getEnv("GEMINI_BASE_URL", ""),
			Model:   getEnv("GEMINI_MODEL", ""),
		},
		OpenAI: Endpoint{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", ""),
		},
		Anthropic: Endpoint{
			APIKey:  getEnv("CLAUDE_API_KEY", ""),
			BaseURL: getEnv("CLAUDE_BASE_URL", ""),
			Model:   getEnv("CLAUDE_MODEL", ""),
		},
		Platforms: make(map[string]Endpoint, len(provider.Platforms)),
	}

	for name, p := range provider.Platforms {
		cfg.Platforms[name] = Endpoint{
			APIKey:  getEnv(p.EnvPrefix+"_API_KEY", ""),
			BaseURL: getEnv(p.EnvPrefix+"_API_URL", ""),
			Model:   getEnv(p.EnvPrefix+"_MODEL", ""),
		}
	}

	return cfg
}

// Selection resolves the credentials for one generation. Empty arguments fall
// back to the configured defaults; platform only matters for the compatible
// kind.
func (c *Config) Selection(kind, platform string) (provider.Selection, error) {
	if kind == "" {
		kind = c.DefaultProvider
	}
	if platform == "" {
		platform = c.DefaultPlatform
	}

	sel := provider.Selection{Kind: provider.Kind(kind)}
	var ep Endpoint
	switch sel.Kind {
	case provider.KindGemini:
		ep = c.Gemini
	case provider.KindOpenAI:
		ep = c.OpenAI
	case provider.KindAnthropic:
		ep = c.Anthropic
	case provider.KindCompatible:
		ep = c.Platforms[platform]
		sel.Platform = platform
	default:
		return sel, &chart.ConfigurationError{Provider: kind, Setting: "DEFAULT_PROVIDER (unknown provider)"}
	}

	sel.Credentials = provider.Credentials{
		Endpoint:    ep.BaseURL,
		APIKey:      ep.APIKey,
		Model:       ep.Model,
		Temperature: c.Temperature,
	}

	if sel.Kind == provider.KindCompatible {
		creds, err := compat.Resolve(platform, sel.Credentials)
		if err != nil {
			return sel, err
		}
		sel.Credentials = creds
	}
	return sel, nil
}

type PlatformStatus struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Model       string `json:"model"`
	Configured  bool   `json:"configured"`
}

type ProviderStatus struct {
	Kind       provider.Kind    `json:"kind"`
	Configured bool             `json:"configured"`
	Platforms  []PlatformStatus `json:"platforms,omitempty"`
}

// Providers reports which backends have credentials. Keys are never included.
func (c *Config) Providers() []ProviderStatus {
	platforms := make([]PlatformStatus, 0, len(provider.Platforms))
	anyPlatform := false
	for _, name := range provider.PlatformNames() {
		p := provider.Platforms[name]
		ep := c.Platforms[name]
		model := ep.Model
		if model == "" {
			model = p.Model
		}
		configured := ep.APIKey != ""
		anyPlatform = anyPlatform || configured
		platforms = append(platforms, PlatformStatus{
			Name:        name,
			DisplayName: p.DisplayName,
			Model:       model,
			Configured:  configured,
		})
	}

	return []ProviderStatus{
		{Kind: provider.KindGemini, Configured: c.Gemini.APIKey != ""},
		{Kind: provider.KindOpenAI, Configured: c.OpenAI.APIKey != ""},
		{Kind: provider.KindCompatible, Configured: anyPlatform, Platforms: platforms},
		{Kind: provider.KindAnthropic, Configured: c.Anthropic.APIKey != ""},
	}
}

// Validate rejects settings that would only fail later at first use.
func (c *Config) Validate() error {
	switch c.ImageBackend {
	case "local":
	case "s3":
		if c.S3Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required when IMAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown IMAGE_BACKEND %q", c.ImageBackend)
	}
	if c.DetectCacheSize <= 0 {
		return fmt.Errorf("DETECT_CACHE_SIZE must be positive, got %d", c.DetectCacheSize)
	}
	if c.EditorDebounce < 0 {
		return fmt.Errorf("EDITOR_DEBOUNCE must not be negative, got %s", c.EditorDebounce)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return defaultVal
	}
	return d
}
