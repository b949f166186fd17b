// Package projectconfig provides the ProjectConfig struct and loader for
// .staffeval.yaml configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spboyer/staffeval/internal/models"
	"github.com/spboyer/staffeval/internal/utils"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by Load.
const FileName = ".staffeval.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultServerAddr   = "127.0.0.1:8080"
	DefaultAuthTokenEnv = "STAFFEVAL_AUTH_TOKEN"

	BackendOpenAI  = "openai"
	BackendCopilot = "copilot"
	BackendMock    = "mock"

	DefaultBackend           = BackendOpenAI
	DefaultBaseURL           = "https://api.openai.com/v1"
	DefaultAPIKeyEnv         = "OPENAI_API_KEY"
	DefaultTimeoutSeconds    = 60
	DefaultRequestsPerSecond = 2.0

	DefaultMaxTokens     = 2048
	DefaultTemperature   = 0.7
	DefaultIdleTimeoutMs = 60000
	DefaultRetryDelayMs  = 2000

	DefaultArbiterModel = "gpt-4o"

	DefaultMemorySubjectPrefix = "staffeval.memory"
)

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
	// AuthTokenEnv names the environment variable holding the bearer token.
	AuthTokenEnv   string   `yaml:"auth_token_env,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// BackendConfig selects the streamed generation backend.
type BackendConfig struct {
	Kind              string  `yaml:"kind,omitempty"`
	BaseURL           string  `yaml:"base_url,omitempty"`
	APIKeyEnv         string  `yaml:"api_key_env,omitempty"`
	DefaultModel      string  `yaml:"default_model,omitempty"`
	TimeoutSeconds    int     `yaml:"timeout_seconds,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// GenerationConfig holds the base generation parameters for test tasks and
// deep analysis variants.
type GenerationConfig struct {
	MaxTokens     int      `yaml:"max_tokens,omitempty"`
	Temperature   *float64 `yaml:"temperature,omitempty"`
	IdleTimeoutMs int      `yaml:"idle_timeout_ms,omitempty"`
	RetryDelayMs  int      `yaml:"retry_delay_ms,omitempty"`
}

// VerdictConfig names the evaluator models.
type VerdictConfig struct {
	ArbiterModels  []string `yaml:"arbiter_models,omitempty"`
	ModeratorModel string   `yaml:"moderator_model,omitempty"`
}

// StorageConfig selects session persistence. An empty path keeps sessions in
// memory.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"`
}

// MemoryConfig configures the NATS memory collaborator. An empty URL
// disables it.
type MemoryConfig struct {
	NATSURL       string `yaml:"nats_url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// AuditConfig configures the verdict archive. A blob service URL takes
// precedence over a directory.
type AuditConfig struct {
	Dir            string `yaml:"dir,omitempty"`
	BlobServiceURL string `yaml:"blob_service_url,omitempty"`
	BlobContainer  string `yaml:"blob_container,omitempty"`
}

// EventsConfig configures the per-session NDJSON event log.
type EventsConfig struct {
	LogDir string `yaml:"log_dir,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .staffeval.yaml.
type ProjectConfig struct {
	Server     ServerConfig     `yaml:"server,omitempty"`
	Backend    BackendConfig    `yaml:"backend,omitempty"`
	Generation GenerationConfig `yaml:"generation,omitempty"`
	Verdict    VerdictConfig    `yaml:"verdict,omitempty"`
	Storage    StorageConfig    `yaml:"storage,omitempty"`
	Memory     MemoryConfig     `yaml:"memory,omitempty"`
	Audit      AuditConfig      `yaml:"audit,omitempty"`
	Events     EventsConfig     `yaml:"events,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Server: ServerConfig{
			Addr:         DefaultServerAddr,
			AuthTokenEnv: DefaultAuthTokenEnv,
		},
		Backend: BackendConfig{
			Kind:              DefaultBackend,
			BaseURL:           DefaultBaseURL,
			APIKeyEnv:         DefaultAPIKeyEnv,
			TimeoutSeconds:    DefaultTimeoutSeconds,
			RequestsPerSecond: DefaultRequestsPerSecond,
		},
		Generation: GenerationConfig{
			MaxTokens:     DefaultMaxTokens,
			Temperature:   utils.Ptr(DefaultTemperature),
			IdleTimeoutMs: DefaultIdleTimeoutMs,
			RetryDelayMs:  DefaultRetryDelayMs,
		},
		Verdict: VerdictConfig{
			ArbiterModels: []string{DefaultArbiterModel},
		},
		Memory: MemoryConfig{
			SubjectPrefix: DefaultMemorySubjectPrefix,
		},
	}
}

// Load finds .staffeval.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	mergeConfig(cfg, &fileCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *ProjectConfig) Validate() error {
	switch c.Backend.Kind {
	case BackendOpenAI, BackendCopilot, BackendMock:
	default:
		return fmt.Errorf("backend.kind %q: must be one of %s, %s, %s", c.Backend.Kind, BackendOpenAI, BackendCopilot, BackendMock)
	}
	if t := c.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("generation.temperature %v: must be between 0 and 2", *t)
	}
	if c.Generation.MaxTokens < 0 || c.Generation.IdleTimeoutMs < 0 || c.Generation.RetryDelayMs < 0 {
		return errors.New("generation: values must not be negative")
	}
	if c.Audit.BlobServiceURL != "" && c.Audit.BlobContainer == "" {
		return errors.New("audit.blob_container is required with audit.blob_service_url")
	}
	return nil
}

// BaseGeneration returns the configured generation parameters.
func (c *ProjectConfig) BaseGeneration() models.GenerationConfig {
	out := models.GenerationConfig{
		MaxTokens:     c.Generation.MaxTokens,
		Temperature:   DefaultTemperature,
		IdleTimeoutMs: c.Generation.IdleTimeoutMs,
	}
	if c.Generation.Temperature != nil {
		out.Temperature = *c.Generation.Temperature
	}
	return out
}

// RetryDelay returns the pause between generation attempts.
func (c *ProjectConfig) RetryDelay() time.Duration {
	return time.Duration(c.Generation.RetryDelayMs) * time.Millisecond
}

// AuthToken reads the bearer token from the configured environment
// variable. An empty result disables authentication.
func (c *ProjectConfig) AuthToken() string {
	if c.Server.AuthTokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Server.AuthTokenEnv)
}

// APIKey reads the backend API key from the configured environment variable.
func (c *ProjectConfig) APIKey() string {
	if c.Backend.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Backend.APIKeyEnv)
}

// findConfigFile walks up from dir looking for .staffeval.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found.
func findConfigFile(dir string) ([]byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for range 10 {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Server
	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if src.Server.AuthTokenEnv != "" {
		dst.Server.AuthTokenEnv = src.Server.AuthTokenEnv
	}
	if len(src.Server.AllowedOrigins) > 0 {
		dst.Server.AllowedOrigins = src.Server.AllowedOrigins
	}

	// Backend
	if src.Backend.Kind != "" {
		dst.Backend.Kind = src.Backend.Kind
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.APIKeyEnv != "" {
		dst.Backend.APIKeyEnv = src.Backend.APIKeyEnv
	}
	if src.Backend.DefaultModel != "" {
		dst.Backend.DefaultModel = src.Backend.DefaultModel
	}
	if src.Backend.TimeoutSeconds != 0 {
		dst.Backend.TimeoutSeconds = src.Backend.TimeoutSeconds
	}
	if src.Backend.RequestsPerSecond != 0 {
		dst.Backend.RequestsPerSecond = src.Backend.RequestsPerSecond
	}

	// Generation
	if src.Generation.MaxTokens != 0 {
		dst.Generation.MaxTokens = src.Generation.MaxTokens
	}
	if src.Generation.Temperature != nil {
		dst.Generation.Temperature = src.Generation.Temperature
	}
	if src.Generation.IdleTimeoutMs != 0 {
		dst.Generation.IdleTimeoutMs = src.Generation.IdleTimeoutMs
	}
	if src.Generation.RetryDelayMs != 0 {
		dst.Generation.RetryDelayMs = src.Generation.RetryDelayMs
	}

	// Verdict
	if len(src.Verdict.ArbiterModels) > 0 {
		dst.Verdict.ArbiterModels = src.Verdict.ArbiterModels
	}
	if src.Verdict.ModeratorModel != "" {
		dst.Verdict.ModeratorModel = src.Verdict.ModeratorModel
	}

	// Storage
	if src.Storage.Path != "" {
		dst.Storage.Path = src.Storage.Path
	}

	// Memory
	if src.Memory.NATSURL != "" {
		dst.Memory.NATSURL = src.Memory.NATSURL
	}
	if src.Memory.SubjectPrefix != "" {
		dst.Memory.SubjectPrefix = src.Memory.SubjectPrefix
	}

	// Audit
	if src.Audit.Dir != "" {
		dst.Audit.Dir = src.Audit.Dir
	}
	if src.Audit.BlobServiceURL != "" {
		dst.Audit.BlobServiceURL = src.Audit.BlobServiceURL
	}
	if src.Audit.BlobContainer != "" {
		dst.Audit.BlobContainer = src.Audit.BlobContainer
	}

	// Events
	if src.Events.LogDir != "" {
		dst.Events.LogDir = src.Events.LogDir
	}
}
