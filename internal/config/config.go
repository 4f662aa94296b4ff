package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Probe   ProbeConfig   `mapstructure:"probe" yaml:"probe"`
}

// LoggerConfig controls the zap logger built by the observability package.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // console or json
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console color of each log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// BrowserConfig selects the browser session queues run against.
type BrowserConfig struct {
	Kind string `mapstructure:"kind" yaml:"kind"`
	// Server is a DevTools endpoint. Ignored when Launch is set.
	Server         string        `mapstructure:"server" yaml:"server"`
	Launch         bool          `mapstructure:"launch" yaml:"launch"`
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
}

// ProbeConfig configures the readiness check run before a script.
type ProbeConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	// URL defaults to the /json/version endpoint of Browser.Server.
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	cfg.resolveProbeURL()
	return &cfg
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "actionq")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.kind", "chrome")
	v.SetDefault("browser.server", "http://127.0.0.1:9222")
	v.SetDefault("browser.launch", false)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.default_timeout", "10s")

	// -- Probe --
	v.SetDefault("probe.enabled", true)
	v.SetDefault("probe.url", "")
	v.SetDefault("probe.timeout", "5s")
}

// Load reads cfgFile (or ./actionq.yaml when empty) plus ACTIONQ_* environment
// variables into v. A missing default file is not an error.
func Load(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("actionq")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ACTIONQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.resolveProbeURL()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	if c.Browser.DefaultTimeout <= 0 {
		return fmt.Errorf("browser.default_timeout must be positive")
	}
	if !c.Browser.Launch {
		if err := validateURL("browser.server", c.Browser.Server); err != nil {
			return err
		}
	}
	if c.Probe.Enabled && !c.Browser.Launch {
		if err := validateURL("probe.url", c.Probe.URL); err != nil {
			return err
		}
		if c.Probe.Timeout <= 0 {
			return fmt.Errorf("probe.timeout must be positive")
		}
	}
	return nil
}

func (c *Config) resolveProbeURL() {
	if c.Probe.URL == "" {
		c.Probe.URL = DevToolsVersionURL(c.Browser.Server)
	}
}

// DevToolsVersionURL returns the /json/version endpoint served next to a
// DevTools server, mapping ws and wss to http and https. It returns "" when
// server cannot be parsed or has no host.
func DevToolsVersionURL(server string) string {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/json/version"
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func validateURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%s: unsupported scheme %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", field)
	}
	return nil
}
