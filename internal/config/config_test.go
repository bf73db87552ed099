package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// envKeys are cleared before each test so the host environment cannot leak in.
var envKeys = []string{
	"PORT", "DATABASE_URL", "AI_PROVIDER", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
	"GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_MODEL",
	"FEUDSURVEY_WORKER_PORT", "FEUDSURVEY_WORKER_HOST", "FEUDSURVEY_DB_DRIVER", "FEUDSURVEY_DB_PATH",
	"FEUDSURVEY_DB_DSN", "FEUDSURVEY_CORS_ORIGINS", "FEUDSURVEY_RECOMPUTE_ON_LABEL_EDIT",
	"FEUDSURVEY_AI_PROVIDER", "FEUDSURVEY_OPENAI_API_KEY", "FEUDSURVEY_AI_TIMEOUT_SECONDS",
}

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	home string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) SetupTest() {
	s.home = s.T().TempDir()
	s.T().Setenv("HOME", s.home)
	for _, k := range envKeys {
		s.T().Setenv(k, "")
		s.Require().NoError(os.Unsetenv(k))
	}
}

func (s *ConfigSuite) writeSettings(content string) {
	dir := filepath.Join(s.home, ".feudsurvey")
	s.Require().NoError(os.MkdirAll(dir, 0750))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "settings.json"), []byte(content), 0600))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultWorkerPort, cfg.WorkerPort)
	s.Equal(DefaultWorkerHost, cfg.WorkerHost)
	s.Equal("sqlite", cfg.DBDriver)
	s.Equal(4, cfg.MaxConns)
	s.Equal("default", cfg.SessionID)
	s.True(cfg.RecomputeOnLabelEdit)
	s.Equal([]string{"*"}, cfg.CORSOrigins)
	s.Equal(DefaultAITimeout, cfg.AITimeout)
}

func (s *ConfigSuite) TestPaths() {
	s.Equal(filepath.Join(s.home, ".feudsurvey"), DataDir())
	s.Contains(DBPath(), "feudsurvey.db")
	s.Contains(SettingsPath(), "settings.json")
}

// TestEnsureAll tests full initialization.
func (s *ConfigSuite) TestEnsureAll() {
	s.Require().NoError(EnsureAll())

	info, err := os.Stat(DataDir())
	s.Require().NoError(err)
	s.True(info.IsDir())
	_, err = os.Stat(SettingsPath())
	s.NoError(err)

	// existing file is left alone
	s.writeSettings(`{"FEUDSURVEY_WORKER_PORT": 4100}`)
	s.Require().NoError(EnsureSettings())
	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(4100, cfg.WorkerPort)
}

func (s *ConfigSuite) TestEnsuredSettingsLoadBack() {
	s.Require().NoError(EnsureAll())
	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(DefaultWorkerPort, cfg.WorkerPort)
	s.True(cfg.RecomputeOnLabelEdit)
}

// TestLoad_TableDriven tests configuration loading with various scenarios.
func (s *ConfigSuite) TestLoad_TableDriven() {
	tests := []struct {
		name         string
		settingsJSON string
		wantPort     int
		wantDriver   string
		wantRecomp   bool
	}{
		{name: "no settings file", wantPort: DefaultWorkerPort, wantDriver: "sqlite", wantRecomp: true},
		{name: "custom port", settingsJSON: `{"FEUDSURVEY_WORKER_PORT": 38888}`, wantPort: 38888, wantDriver: "sqlite", wantRecomp: true},
		{name: "port out of range", settingsJSON: `{"FEUDSURVEY_WORKER_PORT": 70000}`, wantPort: DefaultWorkerPort, wantDriver: "sqlite", wantRecomp: true},
		{name: "postgres driver", settingsJSON: `{"FEUDSURVEY_DB_DRIVER": "Postgres"}`, wantPort: DefaultWorkerPort, wantDriver: "postgres", wantRecomp: true},
		{name: "label edit recompute off", settingsJSON: `{"FEUDSURVEY_RECOMPUTE_ON_LABEL_EDIT": false}`, wantPort: DefaultWorkerPort, wantDriver: "sqlite", wantRecomp: false},
		{name: "invalid JSON returns defaults", settingsJSON: `{invalid}`, wantPort: DefaultWorkerPort, wantDriver: "sqlite", wantRecomp: true},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Require().NoError(os.RemoveAll(DataDir()))
			if tt.settingsJSON != "" {
				s.writeSettings(tt.settingsJSON)
			}

			cfg, err := Load()
			s.Require().NoError(err)
			s.Equal(tt.wantPort, cfg.WorkerPort)
			s.Equal(tt.wantDriver, cfg.DBDriver)
			s.Equal(tt.wantRecomp, cfg.RecomputeOnLabelEdit)
		})
	}
}

func (s *ConfigSuite) TestEnvOverridesSettings() {
	s.writeSettings(`{"FEUDSURVEY_WORKER_PORT": 4100, "FEUDSURVEY_CORS_ORIGINS": ["https://a.example"]}`)
	s.T().Setenv("PORT", "5200")
	s.T().Setenv("FEUDSURVEY_CORS_ORIGINS", "https://b.example, https://c.example")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(5200, cfg.WorkerPort)
	s.Equal([]string{"https://b.example", "https://c.example"}, cfg.CORSOrigins)
}

func (s *ConfigSuite) TestProviderCredentials() {
	s.writeSettings(`{"FEUDSURVEY_AZURE_OPENAI_API_KEY": "from-file", "FEUDSURVEY_AI_TIMEOUT_SECONDS": 5}`)
	s.T().Setenv("AI_PROVIDER", "azure")
	s.T().Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com/")
	s.T().Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt4o")
	s.T().Setenv("GOOGLE_API_KEY", "g-key")

	cfg, err := Load()
	s.Require().NoError(err)

	a := cfg.Assist()
	s.Equal("azure", a.Provider)
	s.Equal("from-file", a.AzureAPIKey)
	s.Equal("gpt4o", a.AzureDeployment)
	s.Equal("g-key", a.GeminiAPIKey)
	s.Equal(5*time.Second, a.Timeout)
}

// TestSplitTrim tests the splitTrim helper function.
func TestSplitTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: []string{}},
		{name: "single value", input: "https://a", expected: []string{"https://a"}},
		{name: "values with spaces", input: " a , b ,c ", expected: []string{"a", "b", "c"}},
		{name: "empty values filtered", input: "a,,b,,", expected: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitTrim(tt.input))
		})
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"38888", 38888, true},
		{" 80 ", 80, true},
		{"0", 0, false},
		{"65536", 0, false},
		{"not-a-number", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePort(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

// TestGet tests the global config getter.
func TestGet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.MkdirAll(DataDir(), 0750))

	cfg := Get()
	require.NotNil(t, cfg)
	assert.Greater(t, cfg.WorkerPort, 0)
	assert.Same(t, cfg, Get())
}

func TestGetWorkerPort_WithEnv(t *testing.T) {
	t.Setenv("FEUDSURVEY_WORKER_PORT", "45678")
	assert.Equal(t, 45678, GetWorkerPort())

	t.Setenv("FEUDSURVEY_WORKER_PORT", "not-a-number")
	assert.Greater(t, GetWorkerPort(), 0)

	t.Setenv("FEUDSURVEY_WORKER_PORT", "0")
	assert.Greater(t, GetWorkerPort(), 0)
}
