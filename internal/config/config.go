// Package config defines the service configuration, its YAML loader and the
// environment overrides applied on top of it.
package config

import "time"

type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Model      ModelConfig      `yaml:"model"`
	Detections DetectionsConfig `yaml:"detections"`
}

type ServerConfig struct {
	// ListenAddr is the HTTP listen address, e.g. ":8080".
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown after a signal.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// SessionTTL is how long an untouched session is kept before pruning.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	// Type is "sqlite" or "postgres".
	Type string `yaml:"type"`

	Path string `yaml:"path"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`

	MigrationsPath string `yaml:"migrations_path"`
}

type StorageConfig struct {
	// ExportDir receives a copy of every exported CSV when ArchiveExports is set.
	ExportDir      string `yaml:"export_dir"`
	ArchiveExports bool   `yaml:"archive_exports"`
}

type ModelConfig struct {
	// DefaultURL pre-fills the model URL field on the page.
	DefaultURL string `yaml:"default_url"`

	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// RecentLimit caps how many catalog entries the page offers.
	RecentLimit int `yaml:"recent_limit"`

	ProbabilityThreshold            float64 `yaml:"probability_threshold"`
	OverlapFactor                   float64 `yaml:"overlap_factor"`
	InvokeCallbackOnNoiseAndUnknown bool    `yaml:"invoke_callback_on_noise_and_unknown"`
}

type DetectionsConfig struct {
	// RecentSize is how many records the live log panel shows.
	RecentSize int `yaml:"recent_size"`

	// TimestampLayout is a Go time layout for record timestamps.
	TimestampLayout string `yaml:"timestamp_layout"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			LogLevel:        LogInfo,
			ShutdownTimeout: 15 * time.Second,
			SessionTTL:      2 * time.Hour,
		},
		Database: DatabaseConfig{
			Type:           "sqlite",
			Path:           "./listenlog.db",
			Host:           "localhost",
			Port:           5432,
			User:           "listenlog",
			Password:       "listenlog_dev",
			Name:           "listenlog",
			MigrationsPath: "./migrations",
		},
		Storage: StorageConfig{
			ExportDir: "./exports",
		},
		Model: ModelConfig{
			FetchTimeout:                    30 * time.Second,
			RecentLimit:                     5,
			ProbabilityThreshold:            0.5,
			OverlapFactor:                   0.5,
			InvokeCallbackOnNoiseAndUnknown: true,
		},
		Detections: DetectionsConfig{
			RecentSize:      10,
			TimestampLayout: "3:04:05 PM",
		},
	}
}
