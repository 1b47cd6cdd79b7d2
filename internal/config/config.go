package config

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Output   string             `yaml:",omitempty" json:"output,omitempty"`
	Level    string             `yaml:",omitempty" json:"level,omitempty"`
	Rotation *LogRotationConfig `yaml:",omitempty" json:"rotation,omitempty"`
}

type LogRotationConfig struct {
	// MaxSize is the maximum size in megabytes of the log file before it gets
	// rotated. It defaults to 100 megabytes.
	MaxSize int `yaml:"maxSize,omitempty" json:"maxSize,omitempty" mapstructure:"maxSize"`
	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `yaml:"maxAge,omitempty" json:"maxAge,omitempty" mapstructure:"maxAge"`
	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int  `yaml:"maxBackups,omitempty" json:"maxBackups,omitempty" mapstructure:"maxBackups"`
	LocalTime  bool `yaml:"localTime,omitempty" json:"localTime,omitempty" mapstructure:"localTime"`
	Compress   bool `yaml:"compress,omitempty" json:"compress,omitempty"`
}

type APIConfig struct {
	Addr       string `json:"addr"`
	PathPrefix string `yaml:"pathPrefix,omitempty" json:"pathPrefix,omitempty" mapstructure:"pathPrefix"`
	AccessLog  bool   `yaml:"accesslog,omitempty" json:"accesslog,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:",omitempty" json:"enabled,omitempty"`
	Path    string `yaml:",omitempty" json:"path,omitempty"`
}

type EvaluatorConfig struct {
	// Workers bounds per-request batch parallelism; 0 means GOMAXPROCS.
	Workers int `yaml:",omitempty" json:"workers,omitempty"`
}

type ScanConfig struct {
	Timeout     time.Duration `yaml:",omitempty" json:"timeout,omitempty"`
	Concurrency int           `yaml:",omitempty" json:"concurrency,omitempty"`
	CacheTTL    time.Duration `yaml:"cacheTTL,omitempty" json:"cacheTTL,omitempty" mapstructure:"cacheTTL"`
}

// RulesConfig names the rule set imported at start-up.
type RulesConfig struct {
	Provider string `yaml:",omitempty" json:"provider,omitempty"` // "file", "mariadb" or empty
	File     string `yaml:",omitempty" json:"file,omitempty"`
	DSN      string `yaml:",omitempty" json:"dsn,omitempty"`
}

type Config struct {
	Log       *LogConfig       `yaml:",omitempty" json:"log,omitempty"`
	API       *APIConfig       `yaml:",omitempty" json:"api,omitempty"`
	Metrics   *MetricsConfig   `yaml:",omitempty" json:"metrics,omitempty"`
	Evaluator *EvaluatorConfig `yaml:",omitempty" json:"evaluator,omitempty"`
	Scan      *ScanConfig      `yaml:",omitempty" json:"scan,omitempty"`
	Rules     *RulesConfig     `yaml:",omitempty" json:"rules,omitempty"`
}

func Default() *Config {
	return &Config{
		Log: &LogConfig{Level: "INFO"},
		API: &APIConfig{Addr: ":8000", PathPrefix: "/api", AccessLog: true},
		Metrics: &MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Evaluator: &EvaluatorConfig{Workers: runtime.NumCPU()},
		Scan: &ScanConfig{
			Timeout:     time.Second,
			Concurrency: 100,
			CacheTTL:    time.Minute,
		},
		Rules: &RulesConfig{},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("simulator")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/firewall-simulator/")
	v.AddConfigPath("$HOME/.firewall-simulator/")
	v.AddConfigPath(".")
	v.SetEnvPrefix("FWSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())
	return v
}

// setDefaults registers every key so AutomaticEnv can see it during
// Unmarshal, e.g. FWSIM_API_ADDR or FWSIM_SCAN_CACHETTL. Log rotation has
// no env form; it stays nil unless a file sets it.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("log.output", c.Log.Output)
	v.SetDefault("log.level", c.Log.Level)

	v.SetDefault("api.addr", c.API.Addr)
	v.SetDefault("api.pathPrefix", c.API.PathPrefix)
	v.SetDefault("api.accesslog", c.API.AccessLog)

	v.SetDefault("metrics.enabled", c.Metrics.Enabled)
	v.SetDefault("metrics.path", c.Metrics.Path)

	v.SetDefault("evaluator.workers", c.Evaluator.Workers)

	v.SetDefault("scan.timeout", c.Scan.Timeout)
	v.SetDefault("scan.concurrency", c.Scan.Concurrency)
	v.SetDefault("scan.cacheTTL", c.Scan.CacheTTL)

	v.SetDefault("rules.provider", c.Rules.Provider)
	v.SetDefault("rules.file", c.Rules.File)
	v.SetDefault("rules.dsn", c.Rules.DSN)
}

// Load reads path, or searches the default locations when path is empty.
// A missing default file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

// Read parses a YAML document from r on top of the defaults.
func Read(r io.Reader) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults restores sections a config file set to null.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Log == nil {
		c.Log = def.Log
	}
	if c.API == nil {
		c.API = def.API
	}
	if c.Metrics == nil {
		c.Metrics = def.Metrics
	}
	if c.Evaluator == nil {
		c.Evaluator = def.Evaluator
	}
	if c.Scan == nil {
		c.Scan = def.Scan
	}
	if c.Rules == nil {
		c.Rules = def.Rules
	}
}
