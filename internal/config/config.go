package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the inference service.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Artifacts ArtifactsConfig `yaml:"artifacts" toml:"artifacts"`
	Dataset   DatasetConfig   `yaml:"dataset" toml:"dataset"`
	Events    EventsConfig    `yaml:"events" toml:"events"`
}

// ServerConfig controls the HTTP, gRPC and metrics listeners.
type ServerConfig struct {
	HTTPAddress     string        `yaml:"httpAddress" toml:"httpAddress"`
	GRPCAddress     string        `yaml:"grpcAddress" toml:"grpcAddress"`
	MetricsAddress  string        `yaml:"metricsAddress" toml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout" toml:"gracefulTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes" toml:"maxUploadBytes"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" toml:"allowedOrigins"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
	JSON  bool   `yaml:"json" toml:"json"`
}

// ArtifactsConfig names the model files loaded once at startup. Relative names resolve against Dir.
type ArtifactsConfig struct {
	Dir                string `yaml:"dir" toml:"dir"`
	LogModel           string `yaml:"logModel" toml:"logModel"`
	FileIntegrityModel string `yaml:"fileIntegrityModel" toml:"fileIntegrityModel"`
	PhishingModel      string `yaml:"phishingModel" toml:"phishingModel"`
	PhishingVectorizer string `yaml:"phishingVectorizer" toml:"phishingVectorizer"`
	ImageModel         string `yaml:"imageModel" toml:"imageModel"`
}

// DatasetConfig locates the labeled URL dataset behind the static lookup table.
type DatasetConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
	DSN    string `yaml:"dsn" toml:"dsn"`
	Query  string `yaml:"query" toml:"query"`
}

// EventsConfig controls optional NATS notifications.
type EventsConfig struct {
	Enabled         bool   `yaml:"enabled" toml:"enabled"`
	NATSURL         string `yaml:"natsURL" toml:"natsURL"`
	AnomalySubject  string `yaml:"anomalySubject" toml:"anomalySubject"`
	PhishingSubject string `yaml:"phishingSubject" toml:"phishingSubject"`
}

// Dataset drivers understood by the URL label loader.
const (
	DriverCSV       = "csv"
	DriverPostgres  = "postgres"
	DriverMySQL     = "mysql"
	DriverSQLite    = "sqlite"
	DriverSQLServer = "sqlserver"
)

// Load initialises Config from a YAML or TOML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("THREATLENS_CONFIG")
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
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	names := map[string]string{
		"artifacts.logModel":           c.Artifacts.LogModel,
		"artifacts.fileIntegrityModel": c.Artifacts.FileIntegrityModel,
		"artifacts.phishingModel":      c.Artifacts.PhishingModel,
		"artifacts.phishingVectorizer": c.Artifacts.PhishingVectorizer,
		"artifacts.imageModel":         c.Artifacts.ImageModel,
	}
	for key, value := range names {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}

	switch c.Dataset.Driver {
	case DriverCSV, DriverSQLite:
		if c.Dataset.Path == "" && c.Dataset.DSN == "" {
			return fmt.Errorf("dataset.path is required for driver %s", c.Dataset.Driver)
		}
	case DriverPostgres, DriverMySQL, DriverSQLServer:
		if c.Dataset.DSN == "" {
			return fmt.Errorf("dataset.dsn is required for driver %s", c.Dataset.Driver)
		}
	default:
		return fmt.Errorf("unknown dataset driver %q", c.Dataset.Driver)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.maxUploadBytes must be positive")
	}
	if c.Events.Enabled && c.Events.NATSURL == "" {
		return fmt.Errorf("events.natsURL is required when events are enabled")
	}
	return nil
}

// ArtifactPath resolves an artifact file name against the artifacts directory.
func (a ArtifactsConfig) ArtifactPath(name string) string {
	if filepath.IsAbs(name) || a.Dir == "" {
		return name
	}
	return filepath.Join(a.Dir, name)
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddress:     ":5001",
			GRPCAddress:     ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			MaxUploadBytes:  32 << 20,
			AllowedOrigins:  []string{"*"},
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Artifacts: ArtifactsConfig{
			Dir:                "models",
			LogModel:           "log_analysis_model.json",
			FileIntegrityModel: "file_integrity_model.json",
			PhishingModel:      "url_phishing_model.json",
			PhishingVectorizer: "url_vectorizer.json",
			ImageModel:         "image_analysis_model.json",
		},
		Dataset: DatasetConfig{
			Driver: DriverCSV,
			Path:   "data/phishing_site_urls.csv",
			Query:  "SELECT url, label FROM phishing_urls",
		},
		Events: EventsConfig{
			AnomalySubject:  "threatlens.logs.anomalies",
			PhishingSubject: "threatlens.urls.phishing",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("THREATLENS_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("THREATLENS_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("THREATLENS_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("THREATLENS_GRACEFUL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.GracefulTimeout = d
		}
	}
	if v := os.Getenv("THREATLENS_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("THREATLENS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("THREATLENS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("THREATLENS_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("THREATLENS_ARTIFACTS_DIR"); v != "" {
		cfg.Artifacts.Dir = v
	}
	if v := os.Getenv("THREATLENS_DATASET_DRIVER"); v != "" {
		cfg.Dataset.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("THREATLENS_DATASET_PATH"); v != "" {
		cfg.Dataset.Path = v
	}
	if v := os.Getenv("THREATLENS_DATASET_DSN"); v != "" {
		cfg.Dataset.DSN = v
	}
	if v := os.Getenv("THREATLENS_DATASET_QUERY"); v != "" {
		cfg.Dataset.Query = v
	}
	if v := os.Getenv("THREATLENS_EVENTS_ENABLED"); v != "" {
		cfg.Events.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("THREATLENS_NATS_URL"); v != "" {
		cfg.Events.NATSURL = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
