// Package config loads server configuration from an optional YAML file with
// environment overrides. A local .env file is honored for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration decodes YAML strings like "30s" or "24h" via time.ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds everything the weight OCR server needs at startup.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	OCR     OCRConfig     `yaml:"ocr"`
	History HistoryConfig `yaml:"history"`
	Webhook WebhookConfig `yaml:"webhook"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`       // HTTP listen address, e.g. ":8080"
	UploadDir string `yaml:"upload_dir"` // scratch dir for uploaded frames
}

type OCRConfig struct {
	// MaxConcurrent bounds simultaneous recognitions. Tesseract is CPU and
	// memory heavy; excess requests are rejected, not queued. Fixed at
	// startup, not hot-reloadable.
	MaxConcurrent int    `yaml:"max_concurrent"`
	Language      string `yaml:"language"` // Tesseract language pack
}

type HistoryConfig struct {
	Capacity  int      `yaml:"capacity"`
	Retention Duration `yaml:"retention"`
}

type WebhookConfig struct {
	URL     string   `yaml:"url"` // empty disables the relay
	Timeout Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML file at path (missing file means defaults), then lets
// environment variables override individual fields. A ./.env file is loaded
// first without overwriting variables already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8080", UploadDir: "uploads"},
		OCR:     OCRConfig{MaxConcurrent: 2, Language: "eng"},
		History: HistoryConfig{Capacity: 100, Retention: Duration(24 * time.Hour)},
		Webhook: WebhookConfig{Timeout: Duration(5 * time.Second)},
		Logging: LoggingConfig{Level: "info"},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Server.UploadDir = v
	}
	if v := os.Getenv("OCR_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OCR.MaxConcurrent = n
		}
	}
	if v := os.Getenv("OCR_LANGUAGE"); v != "" {
		cfg.OCR.Language = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploads"
	}
	if cfg.OCR.MaxConcurrent < 1 {
		cfg.OCR.MaxConcurrent = 2
	}
	if cfg.OCR.Language == "" {
		cfg.OCR.Language = "eng"
	}
	if cfg.History.Capacity < 1 {
		cfg.History.Capacity = 100
	}
	if cfg.History.Retention <= 0 {
		cfg.History.Retention = Duration(24 * time.Hour)
	}
	if cfg.Webhook.Timeout <= 0 {
		cfg.Webhook.Timeout = Duration(5 * time.Second)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
