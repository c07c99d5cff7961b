package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all machwatch configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Dataset  DatasetConfig `yaml:"dataset"`
	Model    ModelConfig   `yaml:"model"`
	Replay   ReplayConfig  `yaml:"replay"`
	Output   OutputConfig  `yaml:"output"`
	Server   ServerConfig  `yaml:"server"`
}

// DatasetConfig holds dataset loading settings.
type DatasetConfig struct {
	Delimiter     string   `yaml:"delimiter"`
	StrictColumns bool     `yaml:"strict_columns"`
	HTTPToken     string   `yaml:"http_token"` // bearer token for http(s) datasets
	S3            S3Config `yaml:"s3"`
}

// S3Config holds object storage settings for s3:// datasets.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
}

// ModelConfig holds classifier settings.
type ModelConfig struct {
	Path       string `yaml:"path"`
	Kind       string `yaml:"kind"` // "onnx", "logistic", or empty to infer from Path
	RuntimeLib string `yaml:"runtime_lib"`
}

// ReplayConfig holds replay pacing settings.
type ReplayConfig struct {
	Delay time.Duration `yaml:"delay"`
}

// OutputConfig holds output destination settings.
type OutputConfig struct {
	LogFile        string `yaml:"log_file"`
	MaxLogSize     int64  `yaml:"max_log_size"` // bytes, 0 = no rotation
	JSON           bool   `yaml:"json"`
	Pretty         bool   `yaml:"pretty"`
	ChartsDir      string `yaml:"charts_dir"`
	HistoryDB      string `yaml:"history_db"`
	WebhookURL     string `yaml:"webhook_url"`
	WebhookAllRows bool   `yaml:"webhook_all_rows"`
	WebhookBuffer  int    `yaml:"webhook_buffer"`
	Tail           int    `yaml:"tail"`
}

// ServerConfig holds HTTP surface settings.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Dataset:  DatasetConfig{Delimiter: ","},
		Model:    ModelConfig{Path: "models/edge_model.onnx"},
		Replay:   ReplayConfig{Delay: 500 * time.Millisecond},
		Output: OutputConfig{
			LogFile:       "live_monitor_log.txt",
			WebhookBuffer: 256,
			Tail:          20,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 32 << 20,
		},
	}
}

// Load builds a Config from defaults, the optional YAML file at path, a
// .env file in the working directory (if any), and MACHWATCH_* environment
// variables, each layer overriding the one before.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("config: .env: %w", err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.LogLevel = getenv("MACHWATCH_LOG_LEVEL", cfg.LogLevel)

	cfg.Dataset.Delimiter = getenv("MACHWATCH_DELIMITER", cfg.Dataset.Delimiter)
	cfg.Dataset.StrictColumns = getenvBool("MACHWATCH_STRICT_COLUMNS", cfg.Dataset.StrictColumns)
	cfg.Dataset.HTTPToken = getenv("MACHWATCH_HTTP_TOKEN", cfg.Dataset.HTTPToken)
	cfg.Dataset.S3.Endpoint = getenv("MACHWATCH_S3_ENDPOINT", cfg.Dataset.S3.Endpoint)
	cfg.Dataset.S3.AccessKey = getenv("MACHWATCH_S3_ACCESS_KEY", cfg.Dataset.S3.AccessKey)
	cfg.Dataset.S3.SecretKey = getenv("MACHWATCH_S3_SECRET_KEY", cfg.Dataset.S3.SecretKey)
	cfg.Dataset.S3.Region = getenv("MACHWATCH_S3_REGION", cfg.Dataset.S3.Region)
	cfg.Dataset.S3.Secure = getenvBool("MACHWATCH_S3_SECURE", cfg.Dataset.S3.Secure)

	cfg.Model.Path = getenv("MACHWATCH_MODEL_PATH", cfg.Model.Path)
	cfg.Model.Kind = getenv("MACHWATCH_MODEL_KIND", cfg.Model.Kind)
	cfg.Model.RuntimeLib = getenv("MACHWATCH_ONNX_RUNTIME_LIB", cfg.Model.RuntimeLib)

	cfg.Replay.Delay = getenvDuration("MACHWATCH_DELAY", cfg.Replay.Delay)

	cfg.Output.LogFile = getenv("MACHWATCH_LOG_FILE", cfg.Output.LogFile)
	cfg.Output.MaxLogSize = int64(getenvInt("MACHWATCH_MAX_LOG_SIZE", int(cfg.Output.MaxLogSize)))
	cfg.Output.JSON = getenvBool("MACHWATCH_JSON", cfg.Output.JSON)
	cfg.Output.Pretty = getenvBool("MACHWATCH_PRETTY", cfg.Output.Pretty)
	cfg.Output.ChartsDir = getenv("MACHWATCH_CHARTS_DIR", cfg.Output.ChartsDir)
	cfg.Output.HistoryDB = getenv("MACHWATCH_HISTORY_DB", cfg.Output.HistoryDB)
	cfg.Output.WebhookURL = getenv("MACHWATCH_WEBHOOK_URL", cfg.Output.WebhookURL)
	cfg.Output.WebhookAllRows = getenvBool("MACHWATCH_WEBHOOK_ALL_ROWS", cfg.Output.WebhookAllRows)
	cfg.Output.WebhookBuffer = getenvInt("MACHWATCH_WEBHOOK_BUFFER", cfg.Output.WebhookBuffer)
	cfg.Output.Tail = getenvInt("MACHWATCH_TAIL", cfg.Output.Tail)

	cfg.Server.Addr = getenv("MACHWATCH_ADDR", cfg.Server.Addr)
	cfg.Server.MaxUploadBytes = int64(getenvInt("MACHWATCH_MAX_UPLOAD_BYTES", int(cfg.Server.MaxUploadBytes)))
}

// Validate checks settings shared by every command. All problems are
// reported together.
func (c Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if utf8.RuneCountInString(c.Dataset.Delimiter) != 1 {
		errs = append(errs, fmt.Errorf("delimiter must be a single character, got %q", c.Dataset.Delimiter))
	}
	if c.Replay.Delay < 0 {
		errs = append(errs, fmt.Errorf("replay delay must be >= 0, got %v", c.Replay.Delay))
	}
	if c.Output.LogFile == "" {
		errs = append(errs, errors.New("log file path is required (MACHWATCH_LOG_FILE)"))
	}
	if c.Output.MaxLogSize < 0 {
		errs = append(errs, fmt.Errorf("max log size must be >= 0, got %d", c.Output.MaxLogSize))
	}
	if c.Output.Tail <= 0 {
		errs = append(errs, fmt.Errorf("tail must be > 0, got %d", c.Output.Tail))
	}
	if c.Output.WebhookURL != "" {
		u, err := url.Parse(c.Output.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("webhook url must be an absolute http(s) URL, got %q", c.Output.WebhookURL))
		}
		if c.Output.WebhookBuffer <= 0 {
			errs = append(errs, fmt.Errorf("webhook buffer must be > 0, got %d", c.Output.WebhookBuffer))
		}
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server max upload bytes must be > 0, got %d", c.Server.MaxUploadBytes))
	}

	return errors.Join(errs...)
}

// ValidateModel checks the classifier settings, for commands that load it.
func (c Config) ValidateModel() error {
	var errs []error

	switch c.Model.Kind {
	case "", "onnx", "logistic":
	default:
		errs = append(errs, fmt.Errorf("model kind must be onnx or logistic, got %q", c.Model.Kind))
	}
	if c.Model.Path == "" {
		errs = append(errs, errors.New("model path is required (MACHWATCH_MODEL_PATH)"))
	} else if _, err := os.Stat(c.Model.Path); err != nil {
		errs = append(errs, fmt.Errorf("model file: %w", err))
	}
	if c.Model.RuntimeLib != "" {
		if _, err := os.Stat(c.Model.RuntimeLib); err != nil {
			errs = append(errs, fmt.Errorf("onnx runtime library: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Comma returns the dataset delimiter as a rune.
func (c Config) Comma() rune {
	r, _ := utf8.DecodeRuneInString(c.Dataset.Delimiter)
	return r
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
