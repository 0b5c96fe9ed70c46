package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Queue    string `yaml:"queue"` // task list key prefix
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // empty disables owner scoping
}

type SandboxConfig struct {
	Mode             string        `yaml:"mode"` // e2b | local
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	Template         string        `yaml:"template"`
	ProvisionTimeout time.Duration `yaml:"provision_timeout"`
}

type AIConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	GeminiKey    string `yaml:"gemini_key"`
	GeminiURL    string `yaml:"gemini_url"`
	DefaultModel string `yaml:"default_model"`
}

type ExportConfig struct {
	Format string `yaml:"format"` // json | xlsx
}

type StorageConfig struct {
	Dir       string        `yaml:"dir"`
	BaseURL   string        `yaml:"base_url"`
	UploadTTL time.Duration `yaml:"upload_ttl"`
}

type WorkerConfig struct {
	Workers      int           `yaml:"workers"`
	ReapInterval time.Duration `yaml:"reap_interval"`
	// VisibilityTimeout must exceed the worst-case task duration
	// (sandbox provisioning plus inference) or in-flight tasks get
	// requeued and run twice.
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	AI       AIConfig       `yaml:"ai"`
	Export   ExportConfig   `yaml:"export"`
	Storage  StorageConfig  `yaml:"storage"`
	Worker   WorkerConfig   `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.Queue == "" {
		cfg.Redis.Queue = "adept:tasks"
	}
	if cfg.Sandbox.Mode == "" {
		cfg.Sandbox.Mode = "e2b"
	}
	if cfg.Sandbox.ProvisionTimeout <= 0 {
		cfg.Sandbox.ProvisionTimeout = 120 * time.Second
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o"
	}
	if cfg.Export.Format == "" {
		cfg.Export.Format = "json"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "data/storage"
	}
	if cfg.Storage.UploadTTL <= 0 {
		cfg.Storage.UploadTTL = 15 * time.Minute
	}
	if cfg.Worker.Workers <= 0 {
		cfg.Worker.Workers = 4
	}
	if cfg.Worker.ReapInterval <= 0 {
		cfg.Worker.ReapInterval = time.Minute
	}
	if cfg.Worker.VisibilityTimeout <= 0 {
		cfg.Worker.VisibilityTimeout = 10 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	switch cfg.Sandbox.Mode {
	case "e2b", "local":
	default:
		return nil, fmt.Errorf("sandbox.mode must be e2b or local, got %q", cfg.Sandbox.Mode)
	}
	switch cfg.Export.Format {
	case "json", "xlsx":
	default:
		return nil, fmt.Errorf("export.format must be json or xlsx, got %q", cfg.Export.Format)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
