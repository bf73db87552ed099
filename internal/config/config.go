// Package config provides configuration management for feudsurvey.
//
// Configuration is layered: built-in defaults, then ~/.feudsurvey/settings.json
// (keys named like FEUDSURVEY_WORKER_PORT), then environment variables with the
// same names. AI provider credentials also honor the conventional variables
// (OPENAI_API_KEY, AZURE_OPENAI_*, GEMINI_API_KEY, AI_PROVIDER).
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/thebtf/feudsurvey/internal/assist"
	"github.com/thebtf/feudsurvey/pkg/models"
)

const (
	// DefaultWorkerPort is the HTTP port of the survey service.
	DefaultWorkerPort = 3001
	// DefaultWorkerHost binds all interfaces so audience devices can connect.
	DefaultWorkerHost = "0.0.0.0"
	// DefaultDBDriver is the default database driver.
	DefaultDBDriver = "sqlite"
	// DefaultLogLevel is the default zerolog level.
	DefaultLogLevel = "info"
	// DefaultAITimeout bounds a single assisted clustering request.
	DefaultAITimeout = 60 * time.Second

	dataDirName  = ".feudsurvey"
	settingsName = "settings.json"
	dbName       = "feudsurvey.db"
)

// Config holds all runtime settings.
type Config struct {
	WorkerHost   string
	DBDriver     string // sqlite or postgres
	DBPath       string
	DBDSN        string
	SessionID    string
	SynonymsFile string // optional YAML/JSON/text rules file, watched for changes
	LogLevel     string
	CORSOrigins  []string
	WorkerPort   int
	MaxConns     int
	// RecomputeOnLabelEdit re-runs local clustering after a label edit on a
	// locally clustered board.
	RecomputeOnLabelEdit bool

	AIProvider            string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	AzureOpenAIAPIKey     string
	AzureOpenAIEndpoint   string
	AzureOpenAIDeployment string
	AzureOpenAIAPIVersion string
	GeminiAPIKey          string
	GeminiModel           string
	AITimeout             time.Duration
}

var (
	global     *Config
	globalOnce sync.Once
	globalMu   sync.RWMutex
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		WorkerHost:           DefaultWorkerHost,
		WorkerPort:           DefaultWorkerPort,
		DBDriver:             DefaultDBDriver,
		DBPath:               DBPath(),
		MaxConns:             4,
		SessionID:            models.DefaultSessionID,
		LogLevel:             DefaultLogLevel,
		CORSOrigins:          []string{"*"},
		RecomputeOnLabelEdit: true,
		AITimeout:            DefaultAITimeout,
	}
}

// DataDir returns ~/.feudsurvey.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, dataDirName)
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), dbName)
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), settingsName)
}

// EnsureDataDir creates the data directory if needed.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes a settings file with defaults if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	defaults := map[string]any{
		"FEUDSURVEY_WORKER_PORT":             DefaultWorkerPort,
		"FEUDSURVEY_WORKER_HOST":             DefaultWorkerHost,
		"FEUDSURVEY_DB_DRIVER":               DefaultDBDriver,
		"FEUDSURVEY_LOG_LEVEL":               DefaultLogLevel,
		"FEUDSURVEY_RECOMPUTE_ON_LABEL_EDIT": true,
	}
	data, err := json.MarshalIndent(defaults, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureAll creates the data directory and default settings.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load builds a configuration from defaults, the settings file and the
// environment. A missing or malformed settings file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	settings := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &settings); err != nil {
			settings = map[string]any{}
		}
	}

	src := source{settings: settings}
	cfg.WorkerHost = src.str("FEUDSURVEY_WORKER_HOST", cfg.WorkerHost)
	cfg.WorkerPort = src.port("FEUDSURVEY_WORKER_PORT", cfg.WorkerPort, "PORT")
	cfg.DBDriver = strings.ToLower(src.str("FEUDSURVEY_DB_DRIVER", cfg.DBDriver))
	cfg.DBPath = src.str("FEUDSURVEY_DB_PATH", cfg.DBPath)
	cfg.DBDSN = src.str("FEUDSURVEY_DB_DSN", cfg.DBDSN, "DATABASE_URL")
	cfg.MaxConns = src.num("FEUDSURVEY_MAX_CONNS", cfg.MaxConns)
	cfg.SessionID = src.str("FEUDSURVEY_SESSION_ID", cfg.SessionID)
	cfg.SynonymsFile = src.str("FEUDSURVEY_SYNONYMS_FILE", cfg.SynonymsFile)
	cfg.LogLevel = src.str("FEUDSURVEY_LOG_LEVEL", cfg.LogLevel)
	cfg.CORSOrigins = src.list("FEUDSURVEY_CORS_ORIGINS", cfg.CORSOrigins)
	cfg.RecomputeOnLabelEdit = src.boolean("FEUDSURVEY_RECOMPUTE_ON_LABEL_EDIT", cfg.RecomputeOnLabelEdit)

	cfg.AIProvider = src.str("FEUDSURVEY_AI_PROVIDER", cfg.AIProvider, "AI_PROVIDER")
	cfg.OpenAIAPIKey = src.str("FEUDSURVEY_OPENAI_API_KEY", cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	cfg.OpenAIBaseURL = src.str("FEUDSURVEY_OPENAI_BASE_URL", cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	cfg.OpenAIModel = src.str("FEUDSURVEY_OPENAI_MODEL", cfg.OpenAIModel, "OPENAI_MODEL")
	cfg.AzureOpenAIAPIKey = src.str("FEUDSURVEY_AZURE_OPENAI_API_KEY", cfg.AzureOpenAIAPIKey, "AZURE_OPENAI_API_KEY")
	cfg.AzureOpenAIEndpoint = src.str("FEUDSURVEY_AZURE_OPENAI_ENDPOINT", cfg.AzureOpenAIEndpoint, "AZURE_OPENAI_ENDPOINT")
	cfg.AzureOpenAIDeployment = src.str("FEUDSURVEY_AZURE_OPENAI_DEPLOYMENT", cfg.AzureOpenAIDeployment, "AZURE_OPENAI_DEPLOYMENT")
	cfg.AzureOpenAIAPIVersion = src.str("FEUDSURVEY_AZURE_OPENAI_API_VERSION", cfg.AzureOpenAIAPIVersion, "AZURE_OPENAI_API_VERSION")
	cfg.GeminiAPIKey = src.str("FEUDSURVEY_GEMINI_API_KEY", cfg.GeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	cfg.GeminiModel = src.str("FEUDSURVEY_GEMINI_MODEL", cfg.GeminiModel, "GEMINI_MODEL")
	if secs := src.num("FEUDSURVEY_AI_TIMEOUT_SECONDS", 0); secs > 0 {
		cfg.AITimeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		globalMu.Lock()
		global = cfg
		globalMu.Unlock()
	})
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// GetWorkerPort returns the port from FEUDSURVEY_WORKER_PORT when it holds a
// valid port, otherwise the configured one.
func GetWorkerPort() int {
	if p, ok := parsePort(os.Getenv("FEUDSURVEY_WORKER_PORT")); ok {
		return p
	}
	return Get().WorkerPort
}

// Assist returns the assisted clustering settings.
func (c *Config) Assist() assist.Config {
	return assist.Config{
		Provider:        c.AIProvider,
		OpenAIAPIKey:    c.OpenAIAPIKey,
		OpenAIBaseURL:   c.OpenAIBaseURL,
		OpenAIModel:     c.OpenAIModel,
		AzureAPIKey:     c.AzureOpenAIAPIKey,
		AzureEndpoint:   c.AzureOpenAIEndpoint,
		AzureDeployment: c.AzureOpenAIDeployment,
		AzureAPIVersion: c.AzureOpenAIAPIVersion,
		GeminiAPIKey:    c.GeminiAPIKey,
		GeminiModel:     c.GeminiModel,
		Timeout:         c.AITimeout,
	}
}

// source resolves a key from the environment first (the key itself, then any
// aliases), then from the settings file.
type source struct {
	settings map[string]any
}

func (s source) env(key string, aliases []string) (string, bool) {
	for _, k := range append([]string{key}, aliases...) {
		if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func (s source) str(key, def string, aliases ...string) string {
	if v, ok := s.env(key, aliases); ok {
		return v
	}
	if v, ok := s.settings[key].(string); ok && v != "" {
		return v
	}
	return def
}

func (s source) num(key string, def int, aliases ...string) int {
	if v, ok := s.env(key, aliases); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	switch v := s.settings[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (s source) port(key string, def int, aliases ...string) int {
	if v, ok := s.env(key, aliases); ok {
		if p, ok := parsePort(v); ok {
			return p
		}
	}
	if p := s.num(key, 0); p > 0 && p <= 65535 {
		return p
	}
	return def
}

func (s source) boolean(key string, def bool, aliases ...string) bool {
	if v, ok := s.env(key, aliases); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	switch v := s.settings[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func (s source) list(key string, def []string, aliases ...string) []string {
	if v, ok := s.env(key, aliases); ok {
		return splitTrim(v)
	}
	switch v := s.settings[key].(type) {
	case string:
		return splitTrim(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
				out = append(out, strings.TrimSpace(str))
			}
		}
		return out
	}
	return def
}

func parsePort(v string) (int, bool) {
	p, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || p <= 0 || p > 65535 {
		return 0, false
	}
	return p, true
}

// splitTrim splits a comma-separated list, trimming and dropping empty values.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
