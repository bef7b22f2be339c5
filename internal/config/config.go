// File: internal/config/config.go
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig          `mapstructure:"logger" yaml:"logger"`
	Engine    EngineConfig          `mapstructure:"engine" yaml:"engine"`
	Discovery DiscoveryConfig       `mapstructure:"discovery" yaml:"discovery"`
	Rules     map[string]RuleConfig `mapstructure:"rules" yaml:"rules"`
	Report    ReportConfig          `mapstructure:"report" yaml:"report"`
	Watch     WatchConfig           `mapstructure:"watch" yaml:"watch"`
	Store     StoreConfig           `mapstructure:"store" yaml:"store"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig controls the file scanning worker pool.
type EngineConfig struct {
	WorkerConcurrency int           `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	FileTimeout       time.Duration `mapstructure:"file_timeout" yaml:"file_timeout"`
	MaxFileBytes      int64         `mapstructure:"max_file_bytes" yaml:"max_file_bytes"`
}

// DiscoveryConfig controls which files are picked up from the scanned paths.
type DiscoveryConfig struct {
	// Exclude holds directory names and glob patterns matched against base names.
	Exclude       []string `mapstructure:"exclude" yaml:"exclude"`
	IncludeHidden bool     `mapstructure:"include_hidden" yaml:"include_hidden"`
	// ChangedOnly keeps only files that differ from HEAD in the git work tree
	// of each scanned path.
	ChangedOnly bool `mapstructure:"changed_only" yaml:"changed_only"`
}

// RuleConfig adjusts a built-in rule or defines a new one. For built-in rules
// Sources and Sinks are appended to the built-in catalogs. For new rules they
// are the catalogs; an empty Sources list falls back to the default sources.
type RuleConfig struct {
	Enabled     bool     `mapstructure:"enabled" yaml:"enabled"`
	Title       string   `mapstructure:"title" yaml:"title"`
	Description string   `mapstructure:"description" yaml:"description"`
	CWE         int      `mapstructure:"cwe" yaml:"cwe"`
	Sources     []string `mapstructure:"sources" yaml:"sources"`
	Sinks       []string `mapstructure:"sinks" yaml:"sinks"`
}

// ReportConfig selects how findings are rendered.
type ReportConfig struct {
	Format         string `mapstructure:"format" yaml:"format"`
	Output         string `mapstructure:"output" yaml:"output"`
	NoColor        bool   `mapstructure:"no_color" yaml:"no_color"`
	FailOnFindings bool   `mapstructure:"fail_on_findings" yaml:"fail_on_findings"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce            time.Duration `mapstructure:"debounce" yaml:"debounce"`
	MaxRescansPerSecond float64       `mapstructure:"max_rescans_per_second" yaml:"max_rescans_per_second"`
	Burst               int           `mapstructure:"burst" yaml:"burst"`
}

// StoreConfig enables the PostgreSQL scan history. An empty DSN disables it.
type StoreConfig struct {
	DSN            string        `mapstructure:"dsn" yaml:"dsn"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	AutoMigrate    bool          `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// Enabled reports whether scan results should be persisted.
func (s StoreConfig) Enabled() bool {
	return s.DSN != ""
}

// BuiltinRuleIDs are the rules enabled by default. Kept here so defaults can
// be registered without importing the analysis packages.
var BuiltinRuleIDs = []string{
	"sql-injection",
	"command-injection",
	"xss",
	"code-injection",
	"path-traversal",
}

// SupportedFormats lists the accepted values of report.format.
var SupportedFormats = []string{"text", "json", "yaml", "sarif", "checkstyle"}

// NewDefaultConfig returns a configuration populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "snitchlint")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Engine --
	v.SetDefault("engine.worker_concurrency", 8)
	v.SetDefault("engine.file_timeout", "30s")
	v.SetDefault("engine.max_file_bytes", 2<<20)

	// -- Discovery --
	v.SetDefault("discovery.exclude", []string{"node_modules", ".git", "dist", "build", "coverage", "*.min.js"})
	v.SetDefault("discovery.include_hidden", false)
	v.SetDefault("discovery.changed_only", false)

	// -- Rules --
	for _, id := range BuiltinRuleIDs {
		v.SetDefault("rules."+id+".enabled", true)
	}

	// -- Report --
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "")
	v.SetDefault("report.no_color", false)
	v.SetDefault("report.fail_on_findings", false)

	// -- Watch --
	v.SetDefault("watch.debounce", "300ms")
	v.SetDefault("watch.max_rescans_per_second", 2.0)
	v.SetDefault("watch.burst", 1)

	// -- Store --
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.connect_timeout", "10s")
	v.SetDefault("store.auto_migrate", true)
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Engine.WorkerConcurrency <= 0 {
		return fmt.Errorf("engine.worker_concurrency must be a positive integer")
	}
	if c.Engine.FileTimeout <= 0 {
		return fmt.Errorf("engine.file_timeout must be a positive duration")
	}
	if c.Engine.MaxFileBytes <= 0 {
		return fmt.Errorf("engine.max_file_bytes must be a positive integer")
	}
	if !isSupportedFormat(c.Report.Format) {
		return fmt.Errorf("report.format must be one of %s, got %q", strings.Join(SupportedFormats, ", "), c.Report.Format)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if c.Watch.MaxRescansPerSecond <= 0 {
		return fmt.Errorf("watch.max_rescans_per_second must be positive")
	}
	if c.Watch.Burst <= 0 {
		return fmt.Errorf("watch.burst must be a positive integer")
	}
	if c.Store.Enabled() && c.Store.ConnectTimeout <= 0 {
		return fmt.Errorf("store.connect_timeout must be a positive duration")
	}
	for _, id := range c.RuleIDs() {
		if err := c.Rules[id].validate(id); err != nil {
			return fmt.Errorf("rules.%s: %w", id, err)
		}
	}
	return nil
}

// RuleIDs returns the configured rule IDs in sorted order.
func (c *Config) RuleIDs() []string {
	ids := make([]string, 0, len(c.Rules))
	for id := range c.Rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsBuiltinRule reports whether id names a built-in rule.
func IsBuiltinRule(id string) bool {
	for _, b := range BuiltinRuleIDs {
		if b == id {
			return true
		}
	}
	return false
}

func (r RuleConfig) validate(id string) error {
	if r.CWE < 0 {
		return fmt.Errorf("cwe must not be negative")
	}
	if !IsBuiltinRule(id) && r.Enabled && len(r.Sinks) == 0 {
		return fmt.Errorf("custom rule needs at least one sink")
	}
	return nil
}

func isSupportedFormat(format string) bool {
	for _, f := range SupportedFormats {
		if f == format {
			return true
		}
	}
	return false
}
