package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Marketplace backend (user directory, signup)
	MarketURL string `yaml:"market_url"`

	// Bridge server
	ListenAddr string `yaml:"listen_addr"`

	// Logging
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration in ascending precedence: built-in defaults,
// then the YAML file named by UNICHAT_CONFIG (if any), then environment
// variables.
func Load() (Config, error) {
	cfg := Config{
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "unisale",
		SurrealDBDatabase:  "chat",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",
		MarketURL:          "http://localhost:5000",
		ListenAddr:         ":8080",
		LogFile:            "/tmp/unichat.log",
		LogLevel:           "INFO",
	}

	if path := os.Getenv("UNICHAT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	overlayEnv(&cfg.SurrealDBURL, "SURREALDB_URL")
	overlayEnv(&cfg.SurrealDBNamespace, "SURREALDB_NAMESPACE")
	overlayEnv(&cfg.SurrealDBDatabase, "SURREALDB_DATABASE")
	overlayEnv(&cfg.SurrealDBUser, "SURREALDB_USER")
	overlayEnv(&cfg.SurrealDBPass, "SURREALDB_PASS")
	overlayEnv(&cfg.SurrealDBAuthLevel, "SURREALDB_AUTH_LEVEL")
	overlayEnv(&cfg.MarketURL, "UNICHAT_MARKET_URL")
	overlayEnv(&cfg.ListenAddr, "UNICHAT_LISTEN_ADDR")
	overlayEnv(&cfg.LogFile, "UNICHAT_LOG_FILE")
	overlayEnv(&cfg.LogLevel, "UNICHAT_LOG_LEVEL")

	return cfg, nil
}

// Level parses the configured log level, defaulting to info.
func (c Config) Level() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func overlayEnv(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}
