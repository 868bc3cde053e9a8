package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Search  SearchConfig  `json:"search" yaml:"search"`
	Tasks   TasksConfig   `json:"tasks" yaml:"tasks"`
	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	Redis   RedisConfig   `json:"redis" yaml:"redis"`
	Sentry  SentryConfig  `json:"sentry" yaml:"sentry"`
}

type ServerConfig struct {
	Port     int    `json:"port" yaml:"port"`
	LogLevel string `json:"log_level" yaml:"log_level"`
	// BaseURL prefixes status links sent to chat users.
	BaseURL string `json:"base_url" yaml:"base_url"`
}

type SearchConfig struct {
	Source            string        `json:"source" yaml:"source"` // mock | portal
	ResultLimit       int           `json:"result_limit" yaml:"result_limit"`
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second"`
	ReportOffers      int           `json:"report_offers" yaml:"report_offers"`
	Browser           BrowserConfig `json:"browser" yaml:"browser"`
}

type BrowserConfig struct {
	Headless       bool   `json:"headless" yaml:"headless"`
	ExecPath       string `json:"exec_path" yaml:"exec_path"`
	UserAgent      string `json:"user_agent" yaml:"user_agent"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type TasksConfig struct {
	Workers        int `json:"workers" yaml:"workers"`
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type GatewayConfig struct {
	Telegram TelegramGatewayConfig `json:"telegram" yaml:"telegram"`
	Slack    SlackGatewayConfig    `json:"slack" yaml:"slack"`
	Discord  DiscordGatewayConfig  `json:"discord" yaml:"discord"`
	REST     RESTGatewayConfig     `json:"rest" yaml:"rest"`
}

type TelegramGatewayConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	BotToken string `json:"bot_token" yaml:"bot_token"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	BotToken string `json:"bot_token" yaml:"bot_token"`
	AppToken string `json:"app_token" yaml:"app_token"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	BotToken string `json:"bot_token" yaml:"bot_token"`
}

type RESTGatewayConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type RedisConfig struct {
	URL    string `json:"url" yaml:"url"`
	Stream string `json:"stream" yaml:"stream"`
}

type SentryConfig struct {
	DSN         string `json:"dsn" yaml:"dsn"`
	Environment string `json:"environment" yaml:"environment"`
}

const (
	SourceMock   = "mock"
	SourcePortal = "portal"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, LogLevel: "info"},
		Search: SearchConfig{
			Source:            SourceMock,
			ResultLimit:       20,
			RequestsPerSecond: 1,
			ReportOffers:      10,
			Browser:           BrowserConfig{Headless: true, TimeoutSeconds: 45},
		},
		Tasks:   TasksConfig{Workers: 4, TimeoutSeconds: 120},
		Gateway: GatewayConfig{REST: RESTGatewayConfig{Enabled: true}},
		Sentry:  SentryConfig{Environment: "development"},
	}
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON or YAML config file, substituting environment variable
// references first. Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal([]byte(resolved), cfg)
	default:
		err = json.Unmarshal([]byte(resolved), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Search.Source {
	case SourceMock, SourcePortal:
	default:
		return fmt.Errorf("search.source must be %q or %q, got %q", SourceMock, SourcePortal, c.Search.Source)
	}
	if c.Search.RequestsPerSecond < 0 {
		return fmt.Errorf("search.requests_per_second must not be negative")
	}
	if c.Tasks.Workers <= 0 {
		return fmt.Errorf("tasks.workers must be positive")
	}
	if c.Tasks.TimeoutSeconds <= 0 {
		return fmt.Errorf("tasks.timeout_seconds must be positive")
	}
	if c.Gateway.Telegram.Enabled && c.Gateway.Telegram.BotToken == "" {
		return fmt.Errorf("gateway.telegram.bot_token is required when telegram is enabled")
	}
	if c.Gateway.Slack.Enabled && (c.Gateway.Slack.BotToken == "" || c.Gateway.Slack.AppToken == "") {
		return fmt.Errorf("gateway.slack needs bot_token and app_token when enabled")
	}
	if c.Gateway.Discord.Enabled && c.Gateway.Discord.BotToken == "" {
		return fmt.Errorf("gateway.discord.bot_token is required when discord is enabled")
	}
	return nil
}

func (t TasksConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

func (b BrowserConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// StatusURL returns the public status link for a task, or "" if no base
// URL is configured.
func (s ServerConfig) StatusURL(taskID string) string {
	if s.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(s.BaseURL, "/") + "/status/" + taskID
}
