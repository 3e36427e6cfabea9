package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()

		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if err := ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates it.
// Environment variables are not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with the deployment environment variables.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		cfg.Server.ListenAddr = ":" + v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}

	if v := getenv("DB_TYPE"); v != "" {
		cfg.Database.Type = v
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid DB_PORT %q: %w", v, err)
		}
		cfg.Database.Port = port
	}
	if v := getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := getenv("MIGRATIONS_PATH"); v != "" {
		cfg.Database.MigrationsPath = v
	}

	if v := getenv("EXPORT_DIR"); v != "" {
		cfg.Storage.ExportDir = v
	}
	if v := getenv("ARCHIVE_EXPORTS"); v != "" {
		archive, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid ARCHIVE_EXPORTS %q: %w", v, err)
		}
		cfg.Storage.ArchiveExports = archive
	}

	if v := getenv("MODEL_URL"); v != "" {
		cfg.Model.DefaultURL = v
	}

	return nil
}

// Validate returns all problems found in cfg joined into one error.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if cfg.Server.SessionTTL <= 0 {
		errs = append(errs, errors.New("server.session_ttl must be positive"))
	}

	switch cfg.Database.Type {
	case "sqlite":
		if cfg.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case "postgres":
		if cfg.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required for postgres"))
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errs = append(errs, fmt.Errorf("database.port %d is out of range", cfg.Database.Port))
		}
		if cfg.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.type %q is invalid; valid values: sqlite, postgres", cfg.Database.Type))
	}

	if cfg.Storage.ArchiveExports && cfg.Storage.ExportDir == "" {
		errs = append(errs, errors.New("storage.export_dir is required when archive_exports is enabled"))
	}

	if cfg.Model.FetchTimeout <= 0 {
		errs = append(errs, errors.New("model.fetch_timeout must be positive"))
	}
	if cfg.Model.RecentLimit < 0 {
		errs = append(errs, fmt.Errorf("model.recent_limit %d must not be negative", cfg.Model.RecentLimit))
	}
	if cfg.Model.ProbabilityThreshold < 0 || cfg.Model.ProbabilityThreshold > 1 {
		errs = append(errs, fmt.Errorf("model.probability_threshold %.2f is out of range [0, 1]", cfg.Model.ProbabilityThreshold))
	}
	if cfg.Model.OverlapFactor < 0 || cfg.Model.OverlapFactor >= 1 {
		errs = append(errs, fmt.Errorf("model.overlap_factor %.2f is out of range [0, 1)", cfg.Model.OverlapFactor))
	}

	if cfg.Detections.RecentSize <= 0 {
		errs = append(errs, fmt.Errorf("detections.recent_size %d must be positive", cfg.Detections.RecentSize))
	}
	if cfg.Detections.TimestampLayout == "" {
		errs = append(errs, errors.New("detections.timestamp_layout is required"))
	}

	return errors.Join(errs...)
}
