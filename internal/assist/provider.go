package assist

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Provider names accepted in Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderGemini = "gemini"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultAzureAPIVersion = "2024-02-15-preview"
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultTimeout         = 60 * time.Second
)

// Provider sends one completion request to a remote language model service.
type Provider interface {
	// Complete returns the raw content produced for the request.
	Complete(ctx context.Context, req Request) (string, error)
	// Name returns a human-readable provider name (e.g. "openai/gpt-4o-mini").
	Name() string
}

// Request is a single completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
}

// Config holds the credentials of every supported provider. Empty fields mean
// "not configured".
type Config struct {
	Provider string // preferred provider: openai, azure, gemini or empty

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	AzureAPIKey     string
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIVersion string

	GeminiAPIKey string
	GeminiModel  string

	Timeout time.Duration
}

func (c Config) hasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c Config) hasAzure() bool {
	return c.AzureAPIKey != "" && c.AzureEndpoint != "" && c.AzureDeployment != ""
}

func (c Config) hasGemini() bool {
	return c.GeminiAPIKey != ""
}

// resolve picks the provider to use. An explicit azure or gemini preference is
// honored only when that provider is fully configured; otherwise OpenAI wins
// when its key exists, then Azure, then Gemini.
func (c Config) resolve() string {
	switch strings.ToLower(strings.TrimSpace(c.Provider)) {
	case ProviderAzure:
		if c.hasAzure() {
			return ProviderAzure
		}
		return ""
	case ProviderGemini:
		if c.hasGemini() {
			return ProviderGemini
		}
		return ""
	}
	switch {
	case c.hasOpenAI():
		return ProviderOpenAI
	case c.hasAzure():
		return ProviderAzure
	case c.hasGemini():
		return ProviderGemini
	}
	return ""
}

// Status describes whether assisted clustering can run. It never carries
// credentials.
type Status struct {
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
}

// ResolveStatus reports the provider Config would select.
func ResolveStatus(cfg Config) Status {
	p := cfg.resolve()
	return Status{Available: p != "", Provider: p}
}

// NewProvider creates the provider selected by cfg.
func NewProvider(cfg Config) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	switch cfg.resolve() {
	case ProviderOpenAI:
		base := strings.TrimRight(cfg.OpenAIBaseURL, "/")
		if base == "" {
			base = defaultOpenAIBaseURL
		}
		model := cfg.OpenAIModel
		if model == "" {
			model = defaultOpenAIModel
		}
		return &chatProvider{
			name:   ProviderOpenAI + "/" + model,
			url:    base + "/v1/chat/completions",
			model:  model,
			header: "Authorization",
			secret: "Bearer " + cfg.OpenAIAPIKey,
			client: client,
		}, nil

	case ProviderAzure:
		version := cfg.AzureAPIVersion
		if version == "" {
			version = defaultAzureAPIVersion
		}
		return &chatProvider{
			name:   ProviderAzure + "/" + cfg.AzureDeployment,
			url:    azureURL(cfg.AzureEndpoint, cfg.AzureDeployment, version),
			header: "api-key",
			secret: cfg.AzureAPIKey,
			client: client,
		}, nil

	case ProviderGemini:
		model := cfg.GeminiModel
		if model == "" {
			model = defaultGeminiModel
		}
		return &geminiProvider{apiKey: cfg.GeminiAPIKey, model: model, httpClient: client}, nil
	}

	if p := strings.ToLower(strings.TrimSpace(cfg.Provider)); p != "" {
		return nil, notConfigured(p + " provider selected but its credentials are incomplete")
	}
	return nil, notConfigured("no provider credentials configured")
}
