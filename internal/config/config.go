// Package config loads uistep settings from defaults, an optional YAML
// file, UISTEP_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/action"
	"github.com/v0xg/uistep/internal/browser"
	"github.com/v0xg/uistep/internal/controller"
	"github.com/v0xg/uistep/internal/locator"
	"github.com/v0xg/uistep/internal/recording"
	"github.com/v0xg/uistep/internal/snapshot"
	"github.com/v0xg/uistep/internal/suggest"
)

// EnvPrefix prefixes every environment override; "engine.timeout" is read
// from UISTEP_ENGINE_TIMEOUT.
const EnvPrefix = "UISTEP"

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Stability StabilityConfig `mapstructure:"stability" yaml:"stability"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Run       RunConfig       `mapstructure:"run" yaml:"run"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	// LogFile enables a rotating JSON log next to the console output.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	// Color colorizes console levels.
	Color bool `mapstructure:"color" yaml:"color"`
}

// BrowserConfig configures the Chrome instance.
type BrowserConfig struct {
	Bin         string        `mapstructure:"bin" yaml:"bin"`
	Headless    bool          `mapstructure:"headless" yaml:"headless"`
	ProfileDir  string        `mapstructure:"profile_dir" yaml:"profile_dir"`
	Width       int           `mapstructure:"width" yaml:"width"`
	Height      int           `mapstructure:"height" yaml:"height"`
	LoadTimeout time.Duration `mapstructure:"load_timeout" yaml:"load_timeout"`
}

// EngineConfig configures resolution, commands and snapshots.
type EngineConfig struct {
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	TestIDAttributes []string      `mapstructure:"test_id_attributes" yaml:"test_id_attributes"`
	StrictAmbiguity  bool          `mapstructure:"strict_ambiguity" yaml:"strict_ambiguity"`
	HintWords        []string      `mapstructure:"hint_words" yaml:"hint_words"`

	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	OverlayTimeout    time.Duration `mapstructure:"overlay_timeout" yaml:"overlay_timeout"`
	OptionTimeout     time.Duration `mapstructure:"option_timeout" yaml:"option_timeout"`
	PreClickTimeout   time.Duration `mapstructure:"pre_click_timeout" yaml:"pre_click_timeout"`
	Pause             time.Duration `mapstructure:"pause" yaml:"pause"`
	TypeDelay         time.Duration `mapstructure:"type_delay" yaml:"type_delay"`

	SnapshotTimeout     time.Duration `mapstructure:"snapshot_timeout" yaml:"snapshot_timeout"`
	SnapshotMaxPerGroup int           `mapstructure:"snapshot_max_per_group" yaml:"snapshot_max_per_group"`
	SnapshotMaxText     int           `mapstructure:"snapshot_max_text" yaml:"snapshot_max_text"`
}

// StabilityConfig configures the wait after each action.
type StabilityConfig struct {
	Keywords         []string      `mapstructure:"keywords" yaml:"keywords"`
	Long             time.Duration `mapstructure:"long" yaml:"long"`
	Short            time.Duration `mapstructure:"short" yaml:"short"`
	DOMContentLoaded time.Duration `mapstructure:"dom_content_loaded" yaml:"dom_content_loaded"`
}

// LLMConfig selects the selector suggester.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider" yaml:"provider"`
	Model           string        `mapstructure:"model" yaml:"model"`
	APIKey          string        `mapstructure:"api_key" yaml:"-"`
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens       int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
	MaxElapsed      time.Duration `mapstructure:"max_elapsed" yaml:"max_elapsed"`
}

// RunConfig configures scenario runs.
type RunConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// Record is the GIF path; empty disables recording.
	Record        string        `mapstructure:"record" yaml:"record"`
	FrameHold     time.Duration `mapstructure:"frame_hold" yaml:"frame_hold"`
	GIFMaxWidth   uint          `mapstructure:"gif_max_width" yaml:"gif_max_width"`
	GIFMinDelay   time.Duration `mapstructure:"gif_min_delay" yaml:"gif_min_delay"`
	NoSuggestions bool          `mapstructure:"no_suggestions" yaml:"no_suggestions"`
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "uistep")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.color", true)

	// -- Browser --
	b := browser.DefaultOptions()
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.headless", b.Headless)
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.width", b.Width)
	v.SetDefault("browser.height", b.Height)
	v.SetDefault("browser.load_timeout", b.LoadTimeout)

	// -- Engine --
	r := locator.DefaultOptions()
	t := action.DefaultTimeouts()
	v.SetDefault("engine.timeout", r.Timeout)
	v.SetDefault("engine.poll_interval", r.PollInterval)
	v.SetDefault("engine.test_id_attributes", r.TestIDAttributes)
	v.SetDefault("engine.strict_ambiguity", false)
	v.SetDefault("engine.hint_words", locator.DefaultHintWords)
	v.SetDefault("engine.action_timeout", t.Action)
	v.SetDefault("engine.navigation_timeout", t.Navigation)
	v.SetDefault("engine.overlay_timeout", t.Overlay)
	v.SetDefault("engine.option_timeout", t.Option)
	v.SetDefault("engine.pre_click_timeout", t.PreClick)
	v.SetDefault("engine.pause", t.Pause)
	v.SetDefault("engine.type_delay", t.TypeDelay)
	v.SetDefault("engine.snapshot_timeout", 10*time.Second)
	v.SetDefault("engine.snapshot_max_per_group", 50)
	v.SetDefault("engine.snapshot_max_text", 100)

	// -- Stability --
	s := controller.DefaultStability()
	v.SetDefault("stability.keywords", s.Keywords)
	v.SetDefault("stability.long", s.Long)
	v.SetDefault("stability.short", s.Short)
	v.SetDefault("stability.dom_content_loaded", s.DOMContentLoaded)

	// -- LLM --
	v.SetDefault("llm.provider", "claude")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.initial_interval", time.Second)
	v.SetDefault("llm.max_interval", 30*time.Second)
	v.SetDefault("llm.max_elapsed", 2*time.Minute)

	// -- Run --
	v.SetDefault("run.max_attempts", 3)
	v.SetDefault("run.record", "")
	v.SetDefault("run.frame_hold", time.Second)
	v.SetDefault("run.gif_max_width", 800)
	v.SetDefault("run.gif_min_delay", 500*time.Millisecond)
	v.SetDefault("run.no_suggestions", false)
}

// NewDefaultConfig returns the configuration with nothing but defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Load prepares v with defaults and environment overrides, reads path when
// given, and returns the validated configuration. Flags bound to v before
// the call take precedence over both.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper unmarshals and validates v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	// A timeout lowered below the poll interval takes the interval with it.
	if cfg.Engine.Timeout > 0 && cfg.Engine.PollInterval > cfg.Engine.Timeout {
		cfg.Engine.PollInterval = cfg.Engine.Timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	var errs []error
	switch c.Logger.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format))
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		errs = append(errs, errors.New("browser.width and browser.height must be positive integers"))
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, errors.New("engine.timeout must be positive"))
	}
	if c.Engine.PollInterval <= 0 {
		errs = append(errs, errors.New("engine.poll_interval must be positive"))
	}
	if c.Engine.PollInterval > c.Engine.Timeout {
		errs = append(errs, errors.New("engine.poll_interval must not exceed engine.timeout"))
	}
	if c.LLM.MaxAttempts <= 0 {
		errs = append(errs, errors.New("llm.max_attempts must be a positive integer"))
	}
	if c.Run.MaxAttempts <= 0 {
		errs = append(errs, errors.New("run.max_attempts must be a positive integer"))
	}
	return errors.Join(errs...)
}

// BrowserOptions converts the browser section.
func (c *Config) BrowserOptions(log *zap.Logger) browser.Options {
	return browser.Options{
		Bin:         c.Browser.Bin,
		Headless:    c.Browser.Headless,
		ProfileDir:  c.Browser.ProfileDir,
		Width:       c.Browser.Width,
		Height:      c.Browser.Height,
		LoadTimeout: c.Browser.LoadTimeout,
		Logger:      log,
	}
}

// ControllerOptions converts the engine and stability sections.
func (c *Config) ControllerOptions(log *zap.Logger) controller.Options {
	e := c.Engine
	return controller.Options{
		Resolver: locator.Options{
			Timeout:          e.Timeout,
			PollInterval:     e.PollInterval,
			TestIDAttributes: e.TestIDAttributes,
			StrictAmbiguity:  e.StrictAmbiguity,
		},
		Timeouts: action.Timeouts{
			Action:     e.ActionTimeout,
			Navigation: e.NavigationTimeout,
			Overlay:    e.OverlayTimeout,
			Option:     e.OptionTimeout,
			PreClick:   e.PreClickTimeout,
			Pause:      e.Pause,
			TypeDelay:  e.TypeDelay,
		},
		Stability: controller.Stability{
			Keywords:         c.Stability.Keywords,
			Long:             c.Stability.Long,
			Short:            c.Stability.Short,
			DOMContentLoaded: c.Stability.DOMContentLoaded,
		},
		HintWords: e.HintWords,
		Snapshot: snapshot.Options{
			MaxPerGroup: e.SnapshotMaxPerGroup,
			MaxText:     e.SnapshotMaxText,
		},
		SnapshotTimeout: e.SnapshotTimeout,
		Logger:          log,
	}
}

// ProviderOptions converts the llm section for suggest.NewCompleter.
func (c *Config) ProviderOptions() suggest.ProviderOptions {
	return suggest.ProviderOptions{
		Name:      c.LLM.Provider,
		Model:     c.LLM.Model,
		APIKey:    c.LLM.APIKey,
		BaseURL:   c.LLM.BaseURL,
		MaxTokens: c.LLM.MaxTokens,
	}
}

// SuggestOptions converts the retry settings of the llm section.
func (c *Config) SuggestOptions(log *zap.Logger) suggest.Options {
	return suggest.Options{
		MaxAttempts:     c.LLM.MaxAttempts,
		InitialInterval: c.LLM.InitialInterval,
		MaxInterval:     c.LLM.MaxInterval,
		MaxElapsed:      c.LLM.MaxElapsed,
		Logger:          log,
	}
}

// GIFOptions converts the recording settings of the run section.
func (c *Config) GIFOptions() recording.GIFOptions {
	return recording.GIFOptions{MaxWidth: c.Run.GIFMaxWidth, MinDelay: c.Run.GIFMinDelay}
}
