package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Storage and credential backend names.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMariaDB  = "mariadb"
)

type Config struct {
	Google      GoogleConfig      `yaml:"google"`
	Picker      PickerConfig      `yaml:"picker"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Storage     StorageConfig     `yaml:"storage"`
	Recognizer  RecognizerConfig  `yaml:"recognizer"`
	Database    DatabaseConfig    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
	Web         WebConfig         `yaml:"web"`
}

type GoogleConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"` // used when the caller's origin is unknown
	Scopes       []string `yaml:"scopes"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	PickerAPIURL string   `yaml:"picker_api_url"`
}

// GetClientSecret returns the OAuth client secret.
func (c *GoogleConfig) GetClientSecret() string {
	return c.ClientSecret
}

type PickerConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	PageSize          int           `yaml:"page_size"`
	ImportConcurrency int           `yaml:"import_concurrency"`
}

type CredentialsConfig struct {
	Backend  string `yaml:"backend"` // file, redis or postgres
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	RedisKey string `yaml:"redis_key"`
}

type StorageConfig struct {
	ImageDir        string `yaml:"image_dir"`
	MetadataBackend string `yaml:"metadata_backend"` // file, postgres, sqlite or mariadb
	MetadataPath    string `yaml:"metadata_path"`
	SQLitePath      string `yaml:"sqlite_path"`
	MariaDBDSN      string `yaml:"mariadb_dsn"` // e.g. picker:picker@tcp(mariadb:3306)/picker?parseTime=true
}

type RecognizerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`            // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // auto, console or json
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration reads an environment variable as a positive duration ("2s", "1m").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadDefaults() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return cfg
}

func Load() *Config {
	d := loadDefaults()

	return &Config{
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  envString("GOOGLE_REDIRECT_URL", d.Google.RedirectURL),
			Scopes:       envList("GOOGLE_SCOPES", d.Google.Scopes),
			AuthURL:      envString("GOOGLE_AUTH_URL", d.Google.AuthURL),
			TokenURL:     envString("GOOGLE_TOKEN_URL", d.Google.TokenURL),
			PickerAPIURL: envString("GOOGLE_PICKER_API_URL", d.Google.PickerAPIURL),
		},
		Picker: PickerConfig{
			PollInterval:      envDuration("PICKER_POLL_INTERVAL", d.Picker.PollInterval),
			PageSize:          envInt("PICKER_PAGE_SIZE", d.Picker.PageSize),
			ImportConcurrency: envInt("IMPORT_CONCURRENCY", d.Picker.ImportConcurrency),
		},
		Credentials: CredentialsConfig{
			Backend:  envString("CREDENTIALS_BACKEND", d.Credentials.Backend),
			Path:     envString("CREDENTIALS_PATH", d.Credentials.Path),
			RedisURL: os.Getenv("REDIS_URL"),
			RedisKey: envString("REDIS_CREDENTIALS_KEY", d.Credentials.RedisKey),
		},
		Storage: StorageConfig{
			ImageDir:        envString("IMAGE_STORAGE_DIR", d.Storage.ImageDir),
			MetadataBackend: envString("METADATA_BACKEND", d.Storage.MetadataBackend),
			MetadataPath:    envString("METADATA_PATH", d.Storage.MetadataPath),
			SQLitePath:      envString("SQLITE_PATH", d.Storage.SQLitePath),
			MariaDBDSN:      os.Getenv("MARIADB_DSN"),
		},
		Recognizer: RecognizerConfig{
			URL:     envString("RECOGNIZER_URL", d.Recognizer.URL),
			Timeout: envDuration("RECOGNIZER_TIMEOUT", d.Recognizer.Timeout),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", d.Log.Level),
			Format: envString("LOG_FORMAT", d.Log.Format),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", nil),
		},
	}
}

// Validate checks that the configuration can be used to talk to Google and
// that every backend name is known.
func (c *Config) Validate() error {
	var errs []error
	if c.Google.ClientID == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID environment variable is required"))
	}
	switch c.Credentials.Backend {
	case BackendFile, BackendPostgres:
	case BackendRedis:
		if c.Credentials.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis credentials backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown credentials backend %q", c.Credentials.Backend))
	}
	switch c.Storage.MetadataBackend {
	case BackendFile, BackendPostgres, BackendSQLite:
	case BackendMariaDB:
		if c.Storage.MariaDBDSN == "" {
			errs = append(errs, errors.New("MARIADB_DSN is required for the mariadb metadata backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown metadata backend %q", c.Storage.MetadataBackend))
	}
	if c.NeedsPostgres() && c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable is required for the postgres backend"))
	}
	return errors.Join(errs...)
}

// NeedsPostgres reports whether any backend is configured to use PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	return c.Credentials.Backend == BackendPostgres || c.Storage.MetadataBackend == BackendPostgres
}
