package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"fip/internal/autofix"
	"fip/internal/feedback"
	"fip/internal/incremental"
	"fip/internal/paths"
	"fip/internal/priority"
	"fip/internal/scheduler"
)

// EnvPrefix is the prefix of environment overrides, e.g. FIP_LOGGING_LEVEL.
const EnvPrefix = "FIP"

// Config represents the complete pipeline configuration
// Stored in .fip/config.json
type Config struct {
	Version     int               `json:"version" mapstructure:"version"`
	Incremental IncrementalConfig `json:"incremental" mapstructure:"incremental"`
	Correlation CorrelationConfig `json:"correlation" mapstructure:"correlation"`
	Feedback    FeedbackConfig    `json:"feedback" mapstructure:"feedback"`
	Priority    PriorityConfig    `json:"priority" mapstructure:"priority"`
	Autofix     AutofixConfig     `json:"autofix" mapstructure:"autofix"`
	Typemap     TypemapConfig     `json:"typemap" mapstructure:"typemap"`
	Producers   ProducersConfig   `json:"producers" mapstructure:"producers"`
	Health      HealthConfig      `json:"health" mapstructure:"health"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
	Metrics     MetricsConfig     `json:"metrics" mapstructure:"metrics"`
}

// IncrementalConfig contains change detection settings
type IncrementalConfig struct {
	Extensions       []string `json:"extensions" mapstructure:"extensions"`
	SkipDirs         []string `json:"skipDirs" mapstructure:"skipDirs"`
	MaxHops          int      `json:"maxHops" mapstructure:"maxHops"`
	ResultTTL        string   `json:"resultTTL" mapstructure:"resultTTL"`
	MaxCachedResults int      `json:"maxCachedResults" mapstructure:"maxCachedResults"`
	CompressCache    bool     `json:"compressCache" mapstructure:"compressCache"`
	Workers          int      `json:"workers" mapstructure:"workers"`
}

// CorrelationConfig contains correlation hub settings
type CorrelationConfig struct {
	MaxFindingAge string `json:"maxFindingAge" mapstructure:"maxFindingAge"`
	RulesFile     string `json:"rulesFile,omitempty" mapstructure:"rulesFile"`
}

// FeedbackConfig contains feedback store settings
type FeedbackConfig struct {
	OptimizeSchedule string `json:"optimizeSchedule" mapstructure:"optimizeSchedule"`
	CleanupSchedule  string `json:"cleanupSchedule" mapstructure:"cleanupSchedule"`
	HistoryLimit     int    `json:"historyLimit" mapstructure:"historyLimit"`
	HistoryMaxAge    string `json:"historyMaxAge" mapstructure:"historyMaxAge"`
	PatternMaxAge    string `json:"patternMaxAge" mapstructure:"patternMaxAge"`
}

// PriorityConfig contains scoring settings
type PriorityConfig struct {
	Weights priority.Weights `json:"weights" mapstructure:"weights"`
}

// AutofixConfig contains fix generation settings
type AutofixConfig struct {
	SuggestThreshold   float64 `json:"suggestThreshold" mapstructure:"suggestThreshold"`
	AutoApplyThreshold float64 `json:"autoApplyThreshold" mapstructure:"autoApplyThreshold"`
	MigrationsDir      string  `json:"migrationsDir" mapstructure:"migrationsDir"`
}

// TypemapConfig contains type normalizer settings
type TypemapConfig struct {
	OverridesFile string `json:"overridesFile,omitempty" mapstructure:"overridesFile"`
}

// ProducersConfig selects the finding producers of a run
type ProducersConfig struct {
	FindingsDir string `json:"findingsDir,omitempty" mapstructure:"findingsDir"`
	Secrets     bool   `json:"secrets" mapstructure:"secrets"`
}

// HealthConfig contains health gate settings
type HealthConfig struct {
	FailUnder int `json:"failUnder" mapstructure:"failUnder"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format"` // "text" or "json"
	Level      string `json:"level" mapstructure:"level"`   // "debug", "info", "warn", "error"
	File       bool   `json:"file" mapstructure:"file"`     // also log to .fip/logs/fip.log
	MaxSize    string `json:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
}

// MetricsConfig contains metrics export settings
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Textfile string `json:"textfile,omitempty" mapstructure:"textfile"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	inc := incremental.DefaultConfig()
	fb := feedback.DefaultConfig()
	return &Config{
		Version: 1,
		Incremental: IncrementalConfig{
			Extensions:       inc.Extensions,
			SkipDirs:         inc.SkipDirs,
			MaxHops:          inc.MaxHops,
			ResultTTL:        "24h",
			MaxCachedResults: inc.MaxCachedResults,
			CompressCache:    false,
			Workers:          inc.Workers,
		},
		Correlation: CorrelationConfig{
			MaxFindingAge: "1h",
		},
		Feedback: FeedbackConfig{
			OptimizeSchedule: fb.OptimizeSchedule,
			CleanupSchedule:  fb.CleanupSchedule,
			HistoryLimit:     fb.HistoryLimit,
			HistoryMaxAge:    "168h",
			PatternMaxAge:    "720h",
		},
		Priority: PriorityConfig{
			Weights: priority.DefaultWeights(),
		},
		Autofix: AutofixConfig{
			SuggestThreshold:   autofix.SuggestThreshold,
			AutoApplyThreshold: autofix.AutoApplyThreshold,
			MigrationsDir:      "migrations",
		},
		Producers: ProducersConfig{
			Secrets: true,
		},
		Health: HealthConfig{
			FailUnder: 60,
		},
		Logging: LoggingConfig{
			Format:     "text",
			Level:      "info",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads .fip/config.json under repoRoot, applies FIP_* environment
// overrides and returns the validated result. A missing file yields the
// defaults.
func Load(repoRoot string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	// Seed viper with the defaults so every key is known to the env lookup.
	defaults, err := json.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("seed defaults: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := paths.For(repoRoot).Config()
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := v.MergeConfig(bytes.NewReader(raw)); err != nil {
			return nil, &ConfigError{Field: path, Message: err.Error()}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to .fip/config.json under repoRoot
func (c *Config) Save(repoRoot string) error {
	path := paths.For(repoRoot).Config()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported version %d", c.Version)}
	}

	if c.Incremental.MaxHops < 0 {
		return &ConfigError{Field: "incremental.maxHops", Message: "must not be negative"}
	}
	if c.Incremental.Workers < 0 {
		return &ConfigError{Field: "incremental.workers", Message: "must not be negative"}
	}
	for field, value := range map[string]string{
		"incremental.resultTTL":     c.Incremental.ResultTTL,
		"correlation.maxFindingAge": c.Correlation.MaxFindingAge,
		"feedback.historyMaxAge":    c.Feedback.HistoryMaxAge,
		"feedback.patternMaxAge":    c.Feedback.PatternMaxAge,
	} {
		if _, err := ParseDuration(value); err != nil {
			return &ConfigError{Field: field, Message: err.Error()}
		}
	}

	for field, expr := range map[string]string{
		"feedback.optimizeSchedule": c.Feedback.OptimizeSchedule,
		"feedback.cleanupSchedule":  c.Feedback.CleanupSchedule,
	} {
		if _, err := scheduler.ParseExpression(expr); err != nil {
			return &ConfigError{Field: field, Message: err.Error()}
		}
	}

	if err := c.Priority.Weights.Validate(); err != nil {
		return &ConfigError{Field: "priority.weights", Message: err.Error()}
	}

	if c.Autofix.SuggestThreshold < 0 || c.Autofix.SuggestThreshold > 1 {
		return &ConfigError{Field: "autofix.suggestThreshold", Message: "must be between 0 and 1"}
	}
	if c.Autofix.AutoApplyThreshold < 0 || c.Autofix.AutoApplyThreshold > 1 {
		return &ConfigError{Field: "autofix.autoApplyThreshold", Message: "must be between 0 and 1"}
	}
	if c.Autofix.AutoApplyThreshold < c.Autofix.SuggestThreshold {
		return &ConfigError{Field: "autofix.autoApplyThreshold", Message: "must not be below suggestThreshold"}
	}

	if c.Health.FailUnder < 0 || c.Health.FailUnder > 100 {
		return &ConfigError{Field: "health.failUnder", Message: "must be between 0 and 100"}
	}

	switch c.Logging.Format {
	case "text", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}

	return nil
}

// TrackerConfig returns the change tracker configuration for repoRoot.
func (c *Config) TrackerConfig(repoRoot string) incremental.Config {
	ttl, _ := ParseDuration(c.Incremental.ResultTTL)
	return incremental.Config{
		Extensions:       c.Incremental.Extensions,
		SkipDirs:         c.Incremental.SkipDirs,
		MaxHops:          c.Incremental.MaxHops,
		ResultTTL:        ttl,
		MaxCachedResults: c.Incremental.MaxCachedResults,
		Workers:          c.Incremental.Workers,
		SnapshotPath:     paths.For(repoRoot).TrackerSnapshot(c.Incremental.CompressCache),
	}
}

// FeedbackStoreConfig returns the feedback store configuration for repoRoot.
func (c *Config) FeedbackStoreConfig(repoRoot string) feedback.Config {
	historyAge, _ := ParseDuration(c.Feedback.HistoryMaxAge)
	patternAge, _ := ParseDuration(c.Feedback.PatternMaxAge)
	return feedback.Config{
		Path:             paths.For(repoRoot).Feedback(),
		HistoryLimit:     c.Feedback.HistoryLimit,
		HistoryMaxAge:    historyAge,
		PatternMaxAge:    patternAge,
		OptimizeSchedule: c.Feedback.OptimizeSchedule,
		CleanupSchedule:  c.Feedback.CleanupSchedule,
	}
}

// MaxFindingAge returns the correlation hub purge age.
func (c *Config) MaxFindingAge() time.Duration {
	d, _ := ParseDuration(c.Correlation.MaxFindingAge)
	return d
}

// ResolvePath makes a configured path absolute against repoRoot. Empty stays
// empty.
func ResolvePath(repoRoot, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoRoot, p)
}

// ParseDuration accepts Go durations plus a "d" day suffix. Empty is zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		var n int
		if _, err := fmt.Sscanf(days, "%d", &n); err != nil || n < 0 || fmt.Sprint(n) != days {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in " + e.Field + ": " + e.Message
}
