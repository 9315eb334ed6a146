package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	DefaultBackendURL   = "http://localhost:8000"
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 18790
	DefaultBufSize      = 100
	DefaultDigestPrompt = "Give me a short digest of my projects, goals and anything due soon."
)

type Config struct {
	Backend  BackendConfig  `json:"backend"`
	Supabase SupabaseConfig `json:"supabase"`
	Channels ChannelsConfig `json:"channels"`
	Gateway  GatewayConfig  `json:"gateway"`
	Digest   DigestConfig   `json:"digest"`
}

// BackendConfig points at the assistant chat/data API.
type BackendConfig struct {
	URL string `json:"url"`
}

// SupabaseConfig points at the managed auth/storage service.
type SupabaseConfig struct {
	URL     string `json:"url"`
	AnonKey string `json:"anonKey"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WebUI    WebUIConfig    `json:"webui"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type WebUIConfig struct {
	Enabled   bool     `json:"enabled"`
	AllowFrom []string `json:"allowFrom"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DigestConfig drives the scheduled digest job in serve mode.
type DigestConfig struct {
	Enabled bool   `json:"enabled"`
	Prompt  string `json:"prompt,omitempty"`
	Channel string `json:"channel,omitempty"`
	To      string `json:"to,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{URL: DefaultBackendURL},
		Channels: ChannelsConfig{
			WebUI: WebUIConfig{Enabled: true},
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Digest: DigestConfig{
			Prompt: DefaultDigestPrompt,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".synaptic")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func SessionPath() string {
	return filepath.Join(ConfigDir(), "session.json")
}

func LoadConfig() (*Config, error) {
	// Optional .env in the working directory; real env always wins.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if url := os.Getenv("SYNAPTIC_BACKEND_URL"); url != "" {
		cfg.Backend.URL = url
	}
	if url := os.Getenv("SYNAPTIC_SUPABASE_URL"); url != "" {
		cfg.Supabase.URL = url
	}
	if key := os.Getenv("SYNAPTIC_SUPABASE_KEY"); key != "" {
		cfg.Supabase.AnonKey = key
	}
	if token := os.Getenv("SYNAPTIC_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if enabled := os.Getenv("SYNAPTIC_TELEGRAM_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Channels.Telegram.Enabled = parsed
		}
	}
	if host := os.Getenv("SYNAPTIC_GATEWAY_HOST"); host != "" {
		cfg.Gateway.Host = host
	}
	if port := os.Getenv("SYNAPTIC_GATEWAY_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = parsed
		}
	}

	if cfg.Backend.URL == "" {
		cfg.Backend.URL = DefaultBackendURL
	}
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = DefaultHost
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = DefaultPort
	}
	if cfg.Digest.Prompt == "" {
		cfg.Digest.Prompt = DefaultDigestPrompt
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
