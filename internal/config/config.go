package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/keibalab/racedata-ingester/internal/jvdata"
	"github.com/keibalab/racedata-ingester/internal/session"
)

type Config struct {
	Service  ServiceConfig  `koanf:"service"`
	Vendor   VendorConfig   `koanf:"vendor"`
	Database DatabaseConfig `koanf:"database"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Monitor  MonitorConfig  `koanf:"monitor"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

type VendorConfig struct {
	Feed       string `koanf:"feed"`
	ServiceKey string `koanf:"service_key"`

	// BridgeCmd launches the helper process that hosts the vendor's
	// native data-lab component and speaks the stdio protocol.
	BridgeCmd []string `koanf:"bridge_cmd"`

	PollIntervalMs          int `koanf:"poll_interval_ms"`
	RateLimitBackoffSeconds int `koanf:"rate_limit_backoff_seconds"`
	StallTimeoutSeconds     int `koanf:"stall_timeout_seconds"`
	ReopenWaitSeconds       int `koanf:"reopen_wait_seconds"`
	MaxReopens              int `koanf:"max_reopens"`
	ReadBudget              int `koanf:"read_budget"`

	// RegionalOptionRemap rewrites open option 1/2 to 3/4 on the
	// regional feed. Confirm against the vendor's current documentation
	// before enabling.
	RegionalOptionRemap bool `koanf:"regional_option_remap"`
}

type DatabaseConfig struct {
	Driver   string `koanf:"driver"` // postgres or sqlite
	DSN      string `koanf:"dsn"`
	Path     string `koanf:"path"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

type IngestConfig struct {
	BatchSize int `koanf:"batch_size"`

	// ChunkDays splits backfill ranges; 0 picks the feed default
	// (regional feeds chunk one day per session).
	ChunkDays int `koanf:"chunk_days"`

	UseWorkerProcess     bool   `koanf:"use_worker_process"`
	WorkerTimeoutSeconds int    `koanf:"worker_timeout_seconds"`
	ArchiveDir           string `koanf:"archive_dir"`
	StateFile            string `koanf:"state_file"`
}

type MonitorConfig struct {
	IntervalSeconds int      `koanf:"interval_seconds"`
	Specs           []string `koanf:"specs"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: RACEDATA_DATABASE__DSN → database.dsn
	if err := k.Load(env.Provider("RACEDATA_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "RACEDATA_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "racedata-ingester-1",
			HTTPListen:             ":8765",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Vendor: VendorConfig{
			Feed:                    "central",
			PollIntervalMs:          80,
			RateLimitBackoffSeconds: 30,
			StallTimeoutSeconds:     60,
			ReopenWaitSeconds:       10,
			MaxReopens:              5,
			ReadBudget:              100000,
		},
		Database: DatabaseConfig{
			Driver:   "postgres",
			MaxConns: 10,
			MinConns: 1,
		},
		Ingest: IngestConfig{
			BatchSize:            1000,
			WorkerTimeoutSeconds: 300,
		},
		Monitor: MonitorConfig{
			IntervalSeconds: 300,
			Specs:           []string{"0B12", "0B15", "0B20", "0B30", "0B31"},
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Split comma-separated env strings for slice fields.
	if len(cfg.Monitor.Specs) == 1 && strings.Contains(cfg.Monitor.Specs[0], ",") {
		cfg.Monitor.Specs = strings.Split(cfg.Monitor.Specs[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.Vendor.ParseFeed(); err != nil {
		return err
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("config: database.dsn is required for the postgres driver")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("config: database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("config: database.driver must be postgres or sqlite (got %q)", c.Database.Driver)
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("config: database.max_conns must be > 0 (got %d)", c.Database.MaxConns)
	}
	if c.Database.MinConns < 0 {
		return fmt.Errorf("config: database.min_conns must be >= 0 (got %d)", c.Database.MinConns)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("config: ingest.batch_size must be > 0 (got %d)", c.Ingest.BatchSize)
	}
	if c.Ingest.ChunkDays < 0 {
		return fmt.Errorf("config: ingest.chunk_days must be >= 0 (got %d)", c.Ingest.ChunkDays)
	}
	if c.Ingest.WorkerTimeoutSeconds <= 0 {
		return fmt.Errorf("config: ingest.worker_timeout_seconds must be > 0 (got %d)", c.Ingest.WorkerTimeoutSeconds)
	}
	if c.Vendor.PollIntervalMs <= 0 {
		return fmt.Errorf("config: vendor.poll_interval_ms must be > 0 (got %d)", c.Vendor.PollIntervalMs)
	}
	if c.Monitor.IntervalSeconds <= 0 {
		return fmt.Errorf("config: monitor.interval_seconds must be > 0 (got %d)", c.Monitor.IntervalSeconds)
	}
	if len(c.Monitor.Specs) == 0 {
		return fmt.Errorf("config: monitor.specs is required")
	}
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	return nil
}

// ParseFeed resolves the configured feed name.
func (v *VendorConfig) ParseFeed() (jvdata.Feed, error) {
	switch strings.ToLower(v.Feed) {
	case "central", "":
		return jvdata.FeedCentral, nil
	case "regional":
		return jvdata.FeedRegional, nil
	default:
		return 0, fmt.Errorf("config: vendor.feed must be central or regional (got %q)", v.Feed)
	}
}

// SessionConfig maps the vendor section onto the session manager's
// tuning knobs.
func (v *VendorConfig) SessionConfig() session.Config {
	return session.Config{
		ServiceKey:          v.ServiceKey,
		PollInterval:        time.Duration(v.PollIntervalMs) * time.Millisecond,
		RateLimitBackoff:    time.Duration(v.RateLimitBackoffSeconds) * time.Second,
		StallTimeout:        time.Duration(v.StallTimeoutSeconds) * time.Second,
		ReopenWait:          time.Duration(v.ReopenWaitSeconds) * time.Second,
		MaxReopens:          v.MaxReopens,
		ReadBudget:          v.ReadBudget,
		RegionalOptionRemap: v.RegionalOptionRemap,
	}
}
