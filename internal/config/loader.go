package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"storyd/internal/common/fsutil"
)

// Provider names accepted in Config.Provider.
const (
	ProviderLlamaServer = "llama-server"
	ProviderLlama       = "llama"
)

// Config holds runtime parameters for the service.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	ModelID     string `json:"model_id" yaml:"model_id" toml:"model_id"`
	Provider    string `json:"provider" yaml:"provider" toml:"provider"`
	ProviderURL string `json:"provider_url" yaml:"provider_url" toml:"provider_url"`
	// Device is the descriptor reported for llama-server backends.
	Device    string `json:"device" yaml:"device" toml:"device"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	GPULayers int    `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	CtxSize   int    `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads   int    `json:"threads" yaml:"threads" toml:"threads"`

	CredentialEnv  string `json:"credential_env" yaml:"credential_env" toml:"credential_env"`
	AllowAnonymous bool   `json:"allow_anonymous" yaml:"allow_anonymous" toml:"allow_anonymous"`
	EnvFile        string `json:"env_file" yaml:"env_file" toml:"env_file"`

	MaxNewTokens      int     `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`
	Temperature       float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopK              int     `json:"top_k" yaml:"top_k" toml:"top_k"`
	TopP              float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty" yaml:"repetition_penalty" toml:"repetition_penalty"`
	PromptMaxTokens   int     `json:"prompt_max_tokens" yaml:"prompt_max_tokens" toml:"prompt_max_tokens"`

	DeadlineSeconds    int  `json:"deadline_seconds" yaml:"deadline_seconds" toml:"deadline_seconds"`
	Workers            int  `json:"workers" yaml:"workers" toml:"workers"`
	QueueDepth         int  `json:"queue_depth" yaml:"queue_depth" toml:"queue_depth"`
	QueueWaitMs        int  `json:"queue_wait_ms" yaml:"queue_wait_ms" toml:"queue_wait_ms"`
	LoadTimeoutSeconds int  `json:"load_timeout_seconds" yaml:"load_timeout_seconds" toml:"load_timeout_seconds"`
	LoadOnStart        bool `json:"load_on_start" yaml:"load_on_start" toml:"load_on_start"`
	DeviceProbeSeconds int  `json:"device_probe_seconds" yaml:"device_probe_seconds" toml:"device_probe_seconds"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	CORSEnabled            bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins            []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes           int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	ShutdownTimeoutSeconds int      `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
}

// Defaults returns the configuration used when nothing else is specified.
func Defaults() Config {
	return Config{
		Addr:                   ":8000",
		ModelID:                "google/gemma-3-270m-it",
		Provider:               ProviderLlamaServer,
		ProviderURL:            "http://127.0.0.1:8080",
		Device:                 "remote",
		ModelsDir:              "~/models/llm",
		CtxSize:                2048,
		CredentialEnv:          "MODEL_ACCESS_TOKEN",
		EnvFile:                ".env",
		MaxNewTokens:           300,
		Temperature:            0.85,
		TopK:                   60,
		TopP:                   0.92,
		RepetitionPenalty:      1.3,
		PromptMaxTokens:        512,
		DeadlineSeconds:        45,
		QueueWaitMs:            5000,
		LoadTimeoutSeconds:     600,
		LoadOnStart:            true,
		DeviceProbeSeconds:     10,
		LogLevel:               "info",
		LogFormat:              "json",
		CORSEnabled:            true,
		CORSOrigins:            []string{"*"},
		MaxBodyBytes:           1 << 20,
		ShutdownTimeoutSeconds: 30,
	}
}

// Load reads a configuration file on top of Defaults, based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	p, err := fsutil.ResolvePath(path)
	if err != nil || p == "" {
		return err
	}
	if !fsutil.PathExists(p) {
		return nil
	}
	if err := godotenv.Load(p); err != nil {
		return fmt.Errorf("env file %s: %w", p, err)
	}
	return nil
}

// ApplyEnv overrides fields from STORYD_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Addr, "STORYD_ADDR")
	set(&c.LogLevel, "STORYD_LOG_LEVEL")
	set(&c.ProviderURL, "STORYD_PROVIDER_URL")
	set(&c.ModelID, "STORYD_MODEL_ID")
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }
	if strings.TrimSpace(c.Addr) == "" {
		bad("addr is empty")
	}
	if strings.TrimSpace(c.ModelID) == "" {
		bad("model_id is empty")
	}
	switch c.Provider {
	case ProviderLlamaServer:
		if strings.TrimSpace(c.ProviderURL) == "" {
			bad("provider_url is required for provider %q", c.Provider)
		}
	case ProviderLlama:
		if strings.TrimSpace(c.ModelsDir) == "" {
			bad("models_dir is required for provider %q", c.Provider)
		}
	default:
		bad("unknown provider %q (want %s or %s)", c.Provider, ProviderLlamaServer, ProviderLlama)
	}
	if c.MaxNewTokens <= 0 {
		bad("max_new_tokens must be positive")
	}
	if c.Temperature < 0 {
		bad("temperature must not be negative")
	}
	if c.TopP <= 0 || c.TopP > 1 {
		bad("top_p must be in (0, 1]")
	}
	if c.TopK < 0 || c.PromptMaxTokens < 0 || c.Workers < 0 || c.QueueDepth < 0 {
		bad("top_k, prompt_max_tokens, workers and queue_depth must not be negative")
	}
	if c.RepetitionPenalty < 0 {
		bad("repetition_penalty must not be negative")
	}
	if c.DeadlineSeconds <= 0 {
		bad("deadline_seconds must be positive")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		bad("log_format must be json or console")
	}
	return errors.Join(errs...)
}

// Deadline is the per-request generation budget.
func (c Config) Deadline() time.Duration { return time.Duration(c.DeadlineSeconds) * time.Second }

// QueueWait bounds how long a request waits for a worker.
func (c Config) QueueWait() time.Duration { return time.Duration(c.QueueWaitMs) * time.Millisecond }

// LoadTimeout bounds a single model load.
func (c Config) LoadTimeout() time.Duration { return time.Duration(c.LoadTimeoutSeconds) * time.Second }

// DeviceProbeInterval is the GPU probe cadence.
func (c Config) DeviceProbeInterval() time.Duration {
	return time.Duration(c.DeviceProbeSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// CredentialEnvs lists the variables consulted for the model credential.
func (c Config) CredentialEnvs() []string {
	envs := []string{}
	if v := strings.TrimSpace(c.CredentialEnv); v != "" {
		envs = append(envs, v)
	}
	for _, legacy := range []string{"MODEL_ACCESS_TOKEN", "HUGGING_FACE_TOKEN"} {
		if legacy != c.CredentialEnv {
			envs = append(envs, legacy)
		}
	}
	return envs
}
