// Package config loads application settings from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Data sources.
const (
	SourceSample   = "sample"
	SourcePostgres = "postgres"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageR2    = "r2"
)

// Config holds all application configuration.
type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	DataSource  string   `env:"DATA_SOURCE" envDefault:"sample"`
	JWTSecret   string   `env:"JWT_SECRET"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	// TrustedProxies is how many reverse proxies append to X-Forwarded-For.
	TrustedProxies int `env:"TRUSTED_PROXIES" envDefault:"0"`

	DB       DBConfig       `envPrefix:"DB_"`
	Cache    CacheConfig    `envPrefix:"CACHE_"`
	Snapshot SnapshotConfig `envPrefix:"SNAPSHOT_"`
	Upload   UploadConfig   `envPrefix:"UPLOAD_"`
	R2       R2Config       `envPrefix:"R2_"`
	Log      LogConfig      `envPrefix:"LOG_"`
	Admin    AdminConfig    `envPrefix:"ADMIN_"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"`
	RedisURL       string `env:"REDIS_URL"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	URL      string `env:"URL"` // DB_URL; DATABASE_URL is accepted too
	MaxConns int32  `env:"MAX_CONNS" envDefault:"10"`
	MinConns int32  `env:"MIN_CONNS" envDefault:"2"`
	Migrate  bool   `env:"MIGRATE" envDefault:"true"`
}

// CacheConfig controls the stale-while-revalidate cache in front of the
// data source.
type CacheConfig struct {
	TTL            time.Duration `env:"TTL" envDefault:"30s"`
	MaxStale       time.Duration `env:"MAX_STALE" envDefault:"10m"`
	RefreshTimeout time.Duration `env:"REFRESH_TIMEOUT" envDefault:"10s"`
	MaxRetries     uint          `env:"MAX_RETRIES" envDefault:"3"`
}

// SnapshotConfig controls the snapshot archiver. A zero Interval disables
// it; a zero Retain keeps every snapshot.
type SnapshotConfig struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"1h"`
	Retain   time.Duration `env:"RETAIN" envDefault:"720h"`
}

// UploadConfig is the local storage backend.
type UploadConfig struct {
	Dir     string `env:"DIR" envDefault:"./uploads"`
	BaseURL string `env:"BASE_URL" envDefault:"/api/files"`
}

// R2Config holds Cloudflare R2 credentials.
type R2Config struct {
	AccountID       string `env:"ACCOUNT_ID"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Bucket          string `env:"BUCKET"`
	PublicURL       string `env:"PUBLIC_URL"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// AdminConfig seeds one admin account at startup when both fields are set.
// An existing account with the same username is left untouched.
type AdminConfig struct {
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	Role     string `env:"ROLE" envDefault:"admin"`
}

// Load reads .env (if any) and parses the environment into a Config.
func Load() (*Config, error) {
	// Missing .env is normal in containers.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DB.URL == "" {
		var alias struct {
			URL string `env:"DATABASE_URL"`
		}
		if err := env.Parse(&alias); err != nil {
			return nil, fmt.Errorf("parse env: %w", err)
		}
		cfg.DB.URL = alias.URL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	switch c.DataSource {
	case SourceSample:
	case SourcePostgres:
		if c.DB.URL == "" {
			errs = append(errs, errors.New("DATA_SOURCE=postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DATA_SOURCE %q", c.DataSource))
	}

	switch c.StorageBackend {
	case StorageLocal:
		if c.Upload.Dir == "" {
			errs = append(errs, errors.New("STORAGE_BACKEND=local requires UPLOAD_DIR"))
		}
	case StorageR2:
		if c.R2.AccountID == "" || c.R2.AccessKeyID == "" || c.R2.SecretAccessKey == "" || c.R2.Bucket == "" {
			errs = append(errs, errors.New("STORAGE_BACKEND=r2 requires R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	if c.Cache.TTL < 0 || c.Cache.MaxStale < 0 {
		errs = append(errs, errors.New("cache durations must not be negative"))
	}
	if c.Cache.MaxStale > 0 && c.Cache.MaxStale < c.Cache.TTL {
		errs = append(errs, errors.New("CACHE_MAX_STALE must be at least CACHE_TTL"))
	}
	if c.Snapshot.Interval < 0 {
		errs = append(errs, errors.New("SNAPSHOT_INTERVAL must not be negative"))
	}
	if c.Snapshot.Retain < 0 {
		errs = append(errs, errors.New("SNAPSHOT_RETAIN must not be negative"))
	}
	if c.Snapshot.Retain > 0 && c.Snapshot.Retain < c.Snapshot.Interval {
		errs = append(errs, errors.New("SNAPSHOT_RETAIN must be at least SNAPSHOT_INTERVAL"))
	}

	if c.TrustedProxies < 0 {
		errs = append(errs, errors.New("TRUSTED_PROXIES must not be negative"))
	}

	if (c.Admin.Username == "") != (c.Admin.Password == "") {
		errs = append(errs, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together"))
	}
	if c.Admin.Username != "" && c.DataSource != SourcePostgres {
		errs = append(errs, errors.New("ADMIN_USERNAME requires DATA_SOURCE=postgres"))
	}
	if c.Admin.Username != "" && c.JWTSecret == "" {
		errs = append(errs, errors.New("ADMIN_USERNAME requires JWT_SECRET"))
	}
	if c.Admin.Username != "" && c.Admin.Role != "admin" && c.Admin.Role != "viewer" {
		errs = append(errs, fmt.Errorf("unknown ADMIN_ROLE %q", c.Admin.Role))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// UsesPostgres reports whether the dashboard reads from the database.
func (c *Config) UsesPostgres() bool {
	return c.DataSource == SourcePostgres
}
