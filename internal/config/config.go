// Package config loads client settings from defaults, an optional YAML
// file, a .env file and ALTRON_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "ALTRON"

	MinPollInterval = 5 * time.Second
	MaxPollInterval = 60 * time.Second
)

type Config struct {
	BackendURL     string        `mapstructure:"backend_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Model          string        `mapstructure:"model"`
	ThreadID       string        `mapstructure:"thread_id"`
	AltScreen      bool          `mapstructure:"alt_screen"`
	Reply          ReplyConfig   `mapstructure:"reply"`
	Models         ModelsConfig  `mapstructure:"models"`
	OpenAI         OpenAIConfig  `mapstructure:"openai"`
	Log            LogConfig     `mapstructure:"log"`
}

type ReplyConfig struct {
	Mode          string        `mapstructure:"mode"`
	CannedText    string        `mapstructure:"canned_text"`
	CannedDelay   time.Duration `mapstructure:"canned_delay"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
}

type ModelsConfig struct {
	Limit int    `mapstructure:"limit"`
	Type  string `mapstructure:"type"`
}

type OpenAIConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

var keys = []string{
	"backend_url", "poll_interval", "probe_timeout", "request_timeout",
	"model", "thread_id", "alt_screen",
	"reply.mode", "reply.canned_text", "reply.canned_delay", "reply.rate_per_second",
	"models.limit", "models.type",
	"openai.base_url", "openai.api_key", "openai.model", "openai.max_tokens", "openai.temperature",
	"log.level", "log.file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_url", "http://127.0.0.1:8000/api/v1")
	v.SetDefault("poll_interval", 30*time.Second)
	v.SetDefault("probe_timeout", 5*time.Second)
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("model", "")
	v.SetDefault("thread_id", "")
	v.SetDefault("alt_screen", true)
	v.SetDefault("reply.mode", "echo")
	v.SetDefault("reply.canned_text", "This is a mock AI response. Connect your backend API to get real responses.")
	v.SetDefault("reply.canned_delay", time.Second)
	v.SetDefault("reply.rate_per_second", 2.0)
	v.SetDefault("models.limit", 0)
	v.SetDefault("models.type", "")
	v.SetDefault("openai.base_url", "http://127.0.0.1:1234/v1")
	v.SetDefault("openai.api_key", "lm-studio")
	v.SetDefault("openai.model", "")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(os.TempDir(), "altron-tui.log"))
}

// Load reads configuration. path may name a YAML file; an empty path
// skips the file. envFile is loaded into the process environment first
// when it exists; variables already set win over it.
func Load(path string, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// NEXT_PUBLIC_BACKEND_URL is a fallback when nothing else sets the URL.
	if os.Getenv(EnvPrefix+"_BACKEND_URL") == "" && !(path != "" && v.InConfig("backend_url")) {
		if legacy := strings.TrimSpace(os.Getenv("NEXT_PUBLIC_BACKEND_URL")); legacy != "" {
			cfg.BackendURL = legacy
		}
	}

	cfg.Normalize()
	return &cfg, nil
}

// Normalize clamps durations and tidies free-form strings.
func (c *Config) Normalize() {
	c.BackendURL = strings.TrimRight(strings.TrimSpace(c.BackendURL), "/")
	c.PollInterval = clampDuration(c.PollInterval, MinPollInterval, MaxPollInterval)
	c.ProbeTimeout = clampDuration(c.ProbeTimeout, time.Second, c.PollInterval)
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.Reply.CannedDelay < 0 {
		c.Reply.CannedDelay = 0
	}
	if c.Models.Limit < 0 {
		c.Models.Limit = 0
	}
	c.Reply.Mode = strings.ToLower(strings.TrimSpace(c.Reply.Mode))
	c.Models.Type = strings.ToLower(strings.TrimSpace(c.Models.Type))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

func clampDuration(value, min, max time.Duration) time.Duration {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
