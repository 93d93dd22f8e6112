package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dispatchstack/dispatch-etl/internal/engine"
	"github.com/dispatchstack/dispatch-etl/internal/ingest"
	"github.com/dispatchstack/dispatch-etl/internal/models"
)

// Config captures the settings required to run a batch.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Report   ReportConfig   `yaml:"report"`
	Logging  LoggingConfig  `yaml:"logging"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Sources  SourcesConfig  `yaml:"sources"`
	Files    FilesConfig    `yaml:"files"`
}

// ServerConfig controls the metrics listener.
type ServerConfig struct {
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// DatabaseConfig configures the Postgres store.
type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConns       int32         `yaml:"maxConns"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	MigrationsPath string        `yaml:"migrationsPath"`
}

// CacheConfig controls the Redis-backed cache used for run-window locks.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	TLS          bool          `yaml:"tls"`
	LockTTL      time.Duration `yaml:"lockTTL"`
}

// ReportConfig controls outbound report publishing.
type ReportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Queue   string `yaml:"queue"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// PipelineConfig tunes the enrichment stages.
type PipelineConfig struct {
	ClassTablePath string                 `yaml:"classTablePath"`
	ForceThreshold int                    `yaml:"forceThreshold"`
	Timezone       string                 `yaml:"timezone"`
	Trackers       []engine.TrackerConfig `yaml:"trackers"`
}

// SourcesConfig holds per-feed column schemas. Zero-valued schemas fall back
// to the compiled-in defaults.
type SourcesConfig struct {
	Fire ingest.Schema `yaml:"fire"`
	EMS  ingest.Schema `yaml:"ems"`
}

// FilesConfig controls where processed inputs are routed.
type FilesConfig struct {
	ArchiveDir string `yaml:"archiveDir"`
	FailureDir string `yaml:"failureDir"`
}

// SchemaFor returns the configured schema for a source, falling back to the
// compiled-in default when the config file leaves it unset.
func (c *Config) SchemaFor(source models.Source) ingest.Schema {
	var s ingest.Schema
	switch source {
	case models.SourceFire:
		s = c.Sources.Fire
	default:
		s = c.Sources.EMS
	}
	if s.Validate() != nil {
		return ingest.DefaultSchema(source)
	}
	return s
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("DISPATCH_ETL_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:       4,
			ConnectTimeout: 5 * time.Second,
			MigrationsPath: "migrations",
		},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			LockTTL:      30 * time.Minute,
		},
		Report: ReportConfig{
			Enabled: false,
			Queue:   "dispatch-etl:reports",
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Pipeline: PipelineConfig{
			ClassTablePath: "configs/unit_classes.yaml",
			ForceThreshold: 15,
			Timezone:       "UTC",
		},
		Files: FilesConfig{
			ArchiveDir: "data/archive",
			FailureDir: "data/failed",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DISPATCH_ETL_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("DISPATCH_ETL_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("DISPATCH_ETL_MIGRATIONS_PATH"); v != "" {
		cfg.Database.MigrationsPath = v
	}
	if v := os.Getenv("DISPATCH_ETL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DISPATCH_ETL_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("DISPATCH_ETL_CLASS_TABLE_PATH"); v != "" {
		cfg.Pipeline.ClassTablePath = v
	}
	if v := os.Getenv("DISPATCH_ETL_FORCE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.ForceThreshold = n
		}
	}
	if v := os.Getenv("DISPATCH_ETL_TIMEZONE"); v != "" {
		cfg.Pipeline.Timezone = v
	}
	if v := os.Getenv("DISPATCH_ETL_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("DISPATCH_ETL_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("DISPATCH_ETL_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("DISPATCH_ETL_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("DISPATCH_ETL_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("DISPATCH_ETL_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("DISPATCH_ETL_LOCK_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.LockTTL = d
		}
	}
	if v := os.Getenv("DISPATCH_ETL_REPORT_ENABLED"); v != "" {
		cfg.Report.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("DISPATCH_ETL_REPORT_QUEUE"); v != "" {
		cfg.Report.Queue = v
	}
	if v := os.Getenv("DISPATCH_ETL_ARCHIVE_DIR"); v != "" {
		cfg.Files.ArchiveDir = v
	}
	if v := os.Getenv("DISPATCH_ETL_FAILURE_DIR"); v != "" {
		cfg.Files.FailureDir = v
	}
}
