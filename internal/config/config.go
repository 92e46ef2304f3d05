// Package config assembles runtime settings from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"webpage-compliance/internal/ai"
	"webpage-compliance/internal/retry"
	"webpage-compliance/internal/scraper"
)

// Classifier backends accepted by CLASSIFIER_BACKEND.
const (
	BackendHuggingFace = "huggingface"
	BackendOpenAI      = "openai"
	BackendChain       = "huggingface+openai"
)

// Config is the complete service configuration.
type Config struct {
	Port           string        `yaml:"port"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Backend     string               `yaml:"classifier_backend"`
	HuggingFace ai.HuggingFaceConfig `yaml:"huggingface"`
	OpenAI      ai.ChatConfig        `yaml:"openai"`

	BatchSize int         `yaml:"batch_size"`
	Retry     RetryConfig `yaml:"retry"`

	Fetch     scraper.Config `yaml:"fetch"`
	PageCache CacheConfig    `yaml:"page_cache"`
}

// RetryConfig mirrors retry.Policy with YAML tags.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// Policy converts the settings into a retry policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: r.InitialBackoff,
		MaxBackoff:     r.MaxBackoff,
		AttemptTimeout: r.AttemptTimeout,
	}
}

// CacheConfig controls the page snapshot cache. A zero TTL disables it.
type CacheConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	policy := retry.DefaultPolicy()
	return Config{
		Port:           "3000",
		LogLevel:       "info",
		LogFormat:      "text",
		RequestTimeout: 5 * time.Minute,
		Backend:        BackendHuggingFace,
		BatchSize:      1,
		Retry: RetryConfig{
			MaxAttempts:    policy.MaxAttempts,
			InitialBackoff: policy.InitialBackoff,
			MaxBackoff:     policy.MaxBackoff,
			AttemptTimeout: policy.AttemptTimeout,
		},
		Fetch: scraper.Config{Timeout: 30 * time.Second},
		// the snapshot cache is opt-in through PAGE_CACHE_TTL
		PageCache: CacheConfig{Path: "data/page-cache.db"},
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and then with environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	switch c.Backend {
	case BackendHuggingFace, BackendOpenAI, BackendChain:
	default:
		return fmt.Errorf("unknown classifier backend %q", c.Backend)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables. Unparseable values
// are ignored and the previous setting is kept.
func (c *Config) ApplyEnv() {
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	setDuration(&c.RequestTimeout, "REQUEST_TIMEOUT")

	if backend := strings.TrimSpace(os.Getenv("CLASSIFIER_BACKEND")); backend != "" {
		c.Backend = strings.ToLower(backend)
	}
	setString(&c.HuggingFace.Token, "HUGGING_FACE_TOKEN")
	setString(&c.HuggingFace.Model, "HUGGING_FACE_MODEL")
	setString(&c.HuggingFace.BaseURL, "HUGGING_FACE_BASE_URL")
	setDuration(&c.HuggingFace.Timeout, "HUGGING_FACE_TIMEOUT")

	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	if temp := os.Getenv("OPENAI_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			c.OpenAI.Temperature = v
		}
	}
	setPositiveInt(&c.OpenAI.MaxTokens, "OPENAI_MAX_TOKENS")

	setPositiveInt(&c.BatchSize, "BATCH_SIZE")
	setPositiveInt(&c.Retry.MaxAttempts, "RETRY_MAX_ATTEMPTS")
	setDuration(&c.Retry.InitialBackoff, "RETRY_INITIAL_BACKOFF")
	setDuration(&c.Retry.MaxBackoff, "RETRY_MAX_BACKOFF")
	setDuration(&c.Retry.AttemptTimeout, "RETRY_ATTEMPT_TIMEOUT")

	setDuration(&c.Fetch.Timeout, "FETCH_TIMEOUT")
	setString(&c.Fetch.UserAgent, "FETCH_USER_AGENT")
	if v := strings.TrimSpace(os.Getenv("FETCH_MAX_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Fetch.MaxBodyBytes = n
		}
	}

	setString(&c.PageCache.Path, "PAGE_CACHE_PATH")
	setDuration(&c.PageCache.TTL, "PAGE_CACHE_TTL")
}

// ApplyLogging sets the global logrus level and formatter. An unknown
// level keeps the current one.
func (c Config) ApplyLogging() {
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.WithField("log_level", c.LogLevel).Warn("unknown log level")
	}
	if strings.EqualFold(c.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			*dst = d
		}
	}
}

func setPositiveInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
