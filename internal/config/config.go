package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Application
	Version         string        `yaml:"version" env:"VERSION"`
	Environment     string        `yaml:"environment" env:"ENVIRONMENT"`
	InstanceID      string        `yaml:"instance_id" env:"INSTANCE_ID"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// Filesystem layout. Relative paths are resolved against ProjectRoot,
	// except WorkerBinary and CustomModelsDir which are relative to WorkerDir.
	ProjectRoot       string `yaml:"project_root" env:"PROJECT_ROOT"`
	WorkerDir         string `yaml:"worker_dir" env:"WORKER_DIR"`
	WorkerBinary      string `yaml:"worker_binary" env:"WORKER_BINARY"`
	WorkerLibraryPath string `yaml:"worker_library_path" env:"WORKER_LIBRARY_PATH"`
	LogDir            string `yaml:"log_dir" env:"LOG_DIR"`
	ConfigDir         string `yaml:"config_dir" env:"CONFIG_DIR"`
	CustomModelsDir   string `yaml:"custom_models_dir" env:"CUSTOM_MODELS_DIR"`
	MaxUploadBytes    int64  `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`

	// Streams
	BaseStreamPort  int    `yaml:"base_stream_port" env:"BASE_STREAM_PORT"`
	DefaultRTSPPort int    `yaml:"default_rtsp_port" env:"DEFAULT_RTSP_PORT"`
	StreamHost      string `yaml:"stream_host" env:"STREAM_HOST"` // Host used in streamUrl

	// NATS (worker lifecycle events)
	// Default: nats://localhost:4222, nats://nats:4222 inside Docker
	NatsEnabled        bool          `yaml:"nats_enabled" env:"NATS_ENABLED"`
	NatsURL            string        `yaml:"nats_url" env:"NATS_URL"`
	NatsSubject        string        `yaml:"nats_subject" env:"NATS_SUBJECT"`
	NatsConnectTimeout time.Duration `yaml:"nats_connect_timeout" env:"NATS_CONNECT_TIMEOUT"`
	NatsReconnectWait  time.Duration `yaml:"nats_reconnect_wait" env:"NATS_RECONNECT_WAIT"`
	NatsMaxReconnects  int           `yaml:"nats_max_reconnects" env:"NATS_MAX_RECONNECTS"`

	// gRPC health service
	GRPCEnabled bool `yaml:"grpc_enabled" env:"GRPC_ENABLED"`
	GRPCPort    int  `yaml:"grpc_port" env:"GRPC_PORT"`

	MetricsEnabled bool `yaml:"metrics_enabled" env:"METRICS_ENABLED"`
	SwaggerEnabled bool `yaml:"swagger_enabled" env:"SWAGGER_ENABLED"`

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool   `yaml:"logdy_enabled" env:"LOGDY_ENABLED"`
	LogdyHost    string `yaml:"logdy_host" env:"LOGDY_HOST"`
	LogdyPort    int    `yaml:"logdy_port" env:"LOGDY_PORT"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Version:         "1.0.0",
		Environment:     "development",
		InstanceID:      "fleet-1",
		Host:            "0.0.0.0",
		Port:            3000,
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,

		ProjectRoot:       ".",
		WorkerDir:         "darknet",
		WorkerBinary:      filepath.Join("build", "src-examples", "simple_stream_progressive"),
		WorkerLibraryPath: "/usr/local/cuda/lib64",
		LogDir:            "logs",
		ConfigDir:         "config",
		CustomModelsDir:   "custom_models",
		MaxUploadBytes:    500 * 1024 * 1024,

		BaseStreamPort:  8080,
		DefaultRTSPPort: 554,
		StreamHost:      "localhost",

		NatsEnabled:        false,
		NatsURL:            defaultNatsURL(),
		NatsSubject:        "fleet.workers",
		NatsConnectTimeout: 10 * time.Second,
		NatsReconnectWait:  2 * time.Second,
		NatsMaxReconnects:  -1, // -1 = unlimited

		GRPCEnabled: false,
		GRPCPort:    50051,

		MetricsEnabled: true,
		SwaggerEnabled: true,

		LogdyEnabled: false,
		LogdyHost:    "localhost",
		LogdyPort:    8999,
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence. path may be empty; CONFIG_FILE is
// consulted then.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		log.Info().Str("path", path).Msg("Loaded configuration file")
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the supervisor cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.Port))
	}
	if c.BaseStreamPort <= 0 || c.BaseStreamPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid BASE_STREAM_PORT %d", c.BaseStreamPort))
	}
	if c.DefaultRTSPPort <= 0 || c.DefaultRTSPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid DEFAULT_RTSP_PORT %d", c.DefaultRTSPPort))
	}
	if c.GRPCEnabled && (c.GRPCPort <= 0 || c.GRPCPort > 65535) {
		errs = append(errs, fmt.Errorf("invalid GRPC_PORT %d", c.GRPCPort))
	}
	if c.WorkerDir == "" {
		errs = append(errs, errors.New("WORKER_DIR is required"))
	}
	if c.WorkerBinary == "" {
		errs = append(errs, errors.New("WORKER_BINARY is required"))
	}
	if c.LogDir == "" {
		errs = append(errs, errors.New("LOG_DIR is required"))
	}
	if c.ConfigDir == "" {
		errs = append(errs, errors.New("CONFIG_DIR is required"))
	}
	if c.CustomModelsDir == "" || filepath.IsAbs(c.CustomModelsDir) {
		errs = append(errs, errors.New("CUSTOM_MODELS_DIR must be a relative path"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("invalid MAX_UPLOAD_BYTES %d", c.MaxUploadBytes))
	}
	return errors.Join(errs...)
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) resolvePaths() {
	root := c.ProjectRoot
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	c.ProjectRoot = root
	c.WorkerDir = underRoot(root, c.WorkerDir)
	c.WorkerBinary = underRoot(c.WorkerDir, c.WorkerBinary)
	c.LogDir = underRoot(root, c.LogDir)
	c.ConfigDir = underRoot(root, c.ConfigDir)
}

func underRoot(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

func defaultNatsURL() string {
	// If running in Docker, use service name; otherwise use localhost
	if isRunningInDocker() {
		return "nats://nats:4222"
	}
	return "nats://localhost:4222"
}
