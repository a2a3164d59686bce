package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"dicebridge/internal/catalog"
)

type Config struct {
	Instance InstanceConfig  `json:"instance"`
	Server   ServerConfig    `json:"server"`
	Store    StoreConfig     `json:"store"`
	Timeouts TimeoutConfig   `json:"timeouts"`
	Catalog  []catalog.Entry `json:"catalog"`
}

type InstanceConfig struct {
	Namespace string `json:"namespace"`
	Version   string `json:"version"`
	// Respond enables the responder role; a pure caller turns it off.
	Respond            bool `json:"respond"`
	PublishCompletions bool `json:"publish_completions"`
}

type ServerConfig struct {
	ListenAddr      string `json:"listen_addr"`
	ClientPath      string `json:"client_path"`
	ClientAuthToken string `json:"client_auth_token"`
}

type StoreConfig struct {
	RedisAddr string `json:"redis_addr"`
}

type TimeoutConfig struct {
	ProbeSeconds             int `json:"probe_seconds"`
	RollSeconds              int `json:"roll_seconds"`
	HeartbeatIntervalSeconds int `json:"heartbeat_interval_seconds"`
}

func Default() Config {
	return Config{
		Instance: InstanceConfig{
			Namespace:          envOrDefault("DICEBRIDGE_NAMESPACE", "default"),
			Respond:            true,
			PublishCompletions: true,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ClientPath:      "/ws/client",
			ClientAuthToken: os.Getenv("DICEBRIDGE_CLIENT_TOKEN"),
		},
		Store: StoreConfig{
			RedisAddr: os.Getenv("DICEBRIDGE_REDIS_ADDR"),
		},
		Timeouts: TimeoutConfig{
			ProbeSeconds:             3,
			RollSeconds:              30,
			HeartbeatIntervalSeconds: 30,
		},
		Catalog: catalog.Default().Entries(),
	}
}

// Load reads a HuJSON config file (comments and trailing commas allowed)
// on top of the defaults. An empty path returns the defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config failed: %w", err)
	}

	std, err := hujson.Standardize(content)
	if err != nil {
		return Config{}, fmt.Errorf("parse config failed: %w", err)
	}
	if err := json.Unmarshal(std, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config failed: %w", err)
	}

	if cfg.Instance.Namespace == "" {
		cfg.Instance.Namespace = "default"
	}
	if cfg.Server.ClientPath == "" {
		cfg.Server.ClientPath = "/ws/client"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Timeouts.ProbeSeconds <= 0 {
		cfg.Timeouts.ProbeSeconds = 3
	}
	if cfg.Timeouts.RollSeconds <= 0 {
		cfg.Timeouts.RollSeconds = 30
	}
	if cfg.Timeouts.HeartbeatIntervalSeconds <= 0 {
		cfg.Timeouts.HeartbeatIntervalSeconds = 30
	}
	if len(cfg.Catalog) == 0 {
		cfg.Catalog = catalog.Default().Entries()
	}

	return cfg, nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
