// Package config handles TOML and YAML configuration for aws-audit-tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultRegions is used when neither the file nor the environment names any.
var DefaultRegions = []string{"us-east-1", "us-east-2", "us-west-1", "us-west-2"}

// Config is the root configuration structure.
type Config struct {
	AWS         AWSConfig         `toml:"aws" yaml:"aws"`
	Output      OutputConfig      `toml:"output" yaml:"output"`
	S3          S3Config          `toml:"s3" yaml:"s3"`
	CloudMapper CloudMapperConfig `toml:"cloudmapper" yaml:"cloudmapper"`
	OTEL        OTELConfig        `toml:"otel" yaml:"otel"`
	Scanner     ScannerConfig     `toml:"scanner" yaml:"scanner"`
	Log         LogConfig         `toml:"log" yaml:"log"`
}

// AWSConfig holds account and collection settings.
type AWSConfig struct {
	Regions           []string      `toml:"regions" yaml:"regions" validate:"dive,required"`
	Profile           string        `toml:"profile" yaml:"profile"`
	AccountName       string        `toml:"account_name" yaml:"account_name" validate:"required"`
	AccountID         string        `toml:"account_id" yaml:"account_id"`
	MaxWorkers        int           `toml:"max_workers" yaml:"max_workers" validate:"min=1"`
	GlobalRegion      string        `toml:"global_region" yaml:"global_region" validate:"required"`
	RequestsPerSecond float64       `toml:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	CallTimeoutStr    string        `toml:"call_timeout" yaml:"call_timeout"`
	CallTimeout       time.Duration `toml:"-" yaml:"-"`
}

// OutputConfig holds local artifact settings.
type OutputConfig struct {
	Dir string `toml:"dir" yaml:"dir" validate:"required"`
}

// S3Config holds upload settings. An empty bucket disables upload.
type S3Config struct {
	Bucket string `toml:"bucket" yaml:"bucket"`
	Prefix string `toml:"prefix" yaml:"prefix"`
	Region string `toml:"region" yaml:"region"`
}

// CloudMapperConfig holds settings for the external CloudMapper tool.
type CloudMapperConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Dir       string `toml:"dir" yaml:"dir" validate:"required_if=Enabled true"`
	Python    string `toml:"python" yaml:"python" validate:"required_if=Enabled true"`
	Port      int    `toml:"port" yaml:"port" validate:"min=1,max=65535"`
	Bind      string `toml:"bind" yaml:"bind" validate:"required,ip|hostname"`
	Webserver bool   `toml:"webserver" yaml:"webserver"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint" yaml:"endpoint"`
	Insecure    bool          `toml:"insecure" yaml:"insecure"`
	ServiceName string        `toml:"service_name" yaml:"service_name"`
	Traces      TracesConfig  `toml:"traces" yaml:"traces"`
	Metrics     MetricsConfig `toml:"metrics" yaml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled" yaml:"enabled"`
	SampleRate float64 `toml:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// ScannerConfig holds settings for serve mode.
type ScannerConfig struct {
	IntervalStr string        `toml:"interval" yaml:"interval"`
	Interval    time.Duration `toml:"-" yaml:"-"`
	MetricsAddr string        `toml:"metrics_addr" yaml:"metrics_addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		AWS: AWSConfig{
			Regions:      append([]string(nil), DefaultRegions...),
			AccountName:  "CRIT",
			MaxWorkers:   8,
			GlobalRegion: "us-east-1",
		},
		Output: OutputConfig{Dir: "outputs"},
		S3:     S3Config{Prefix: "aws-audit-tool"},
		CloudMapper: CloudMapperConfig{
			Enabled: true,
			Dir:     filepath.Join(home, "cloudmapper"),
			Python:  "python3",
			Port:    8000,
			Bind:    "127.0.0.1",
		},
		OTEL:    OTELConfig{ServiceName: "aws-audit-tool"},
		Scanner: ScannerConfig{IntervalStr: "1h", MetricsAddr: ":9090"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads an optional config file over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := parseDurations(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.Unmarshal(data, cfg)
	}
}

// applyEnv overrides file values with AWS_AUDIT_* and CLOUDMAPPER_* variables.
// Empty variables are ignored. Boolean switches are on only for "1".
func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("AWS_AUDIT_ACCOUNT_NAME"); ok && v != "" {
		cfg.AWS.AccountName = v
	}
	if v, ok := os.LookupEnv("AWS_AUDIT_ACCOUNT_ID"); ok && v != "" {
		cfg.AWS.AccountID = v
	}
	if v, ok := os.LookupEnv("AWS_AUDIT_REGIONS"); ok {
		if regions := SplitCSV(v); len(regions) > 0 {
			cfg.AWS.Regions = regions
		}
	}
	if v, ok := os.LookupEnv("AWS_AUDIT_MAX_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse AWS_AUDIT_MAX_WORKERS %q: %w", v, err)
		}
		cfg.AWS.MaxWorkers = n
	}
	if v, ok := os.LookupEnv("AWS_AUDIT_OUTPUT_DIR"); ok && v != "" {
		cfg.Output.Dir = v
	}
	if v, ok := os.LookupEnv("AWS_AUDIT_S3_BUCKET"); ok && v != "" {
		cfg.S3.Bucket = v
	}
	if v, ok := os.LookupEnv("AWS_AUDIT_S3_PREFIX"); ok && v != "" {
		cfg.S3.Prefix = v
	}
	if v, ok := os.LookupEnv("AWS_AUDIT_RUN_CLOUDMAPPER"); ok && v != "" {
		cfg.CloudMapper.Enabled = v == "1"
	}
	if v, ok := os.LookupEnv("CLOUDMAPPER_DIR"); ok && v != "" {
		cfg.CloudMapper.Dir = v
	}
	if v, ok := os.LookupEnv("CLOUDMAPPER_PORT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CLOUDMAPPER_PORT %q: %w", v, err)
		}
		cfg.CloudMapper.Port = n
	}
	if v, ok := os.LookupEnv("CLOUDMAPPER_BIND"); ok && v != "" {
		cfg.CloudMapper.Bind = v
	}
	if v, ok := os.LookupEnv("CLOUDMAPPER_WEBSERVER"); ok && v != "" {
		cfg.CloudMapper.Webserver = v == "1"
	}
	if v, ok := os.LookupEnv("CLOUDMAPPER_PYTHON"); ok && v != "" {
		cfg.CloudMapper.Python = v
	}
	return nil
}

func parseDurations(cfg *Config) error {
	d, err := time.ParseDuration(cfg.Scanner.IntervalStr)
	if err != nil {
		return fmt.Errorf("parse interval %q: %w", cfg.Scanner.IntervalStr, err)
	}
	cfg.Scanner.Interval = d

	if cfg.AWS.CallTimeoutStr != "" {
		d, err := time.ParseDuration(cfg.AWS.CallTimeoutStr)
		if err != nil {
			return fmt.Errorf("parse call_timeout %q: %w", cfg.AWS.CallTimeoutStr, err)
		}
		cfg.AWS.CallTimeout = d
	}
	return nil
}

// SplitCSV splits a comma separated list, dropping blank entries.
func SplitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
