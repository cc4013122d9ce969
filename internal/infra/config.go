package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trade_core/internal/domain"
	"trade_core/internal/event"
)

// Config holds every setting of the trading core. LoadConfig reads it from
// YAML and then lets environment variables override secrets and paths.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Bus struct {
		TimerIntervalMS int `yaml:"timer_interval_ms"`
		PollIntervalMS  int `yaml:"poll_interval_ms"`
		JoinTimeoutMS   int `yaml:"join_timeout_ms"`
	} `yaml:"bus"`

	Logging struct {
		Level      string `yaml:"level"`
		Dir        string `yaml:"dir"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`

	Email EmailConfig `yaml:"email"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`

	Server struct {
		MetricsAddr string `yaml:"metrics_addr"`
		PprofAddr   string `yaml:"pprof_addr"`
	} `yaml:"server"`

	Adapters   []AdapterConfig  `yaml:"adapters"`
	Strategies []StrategyConfig `yaml:"strategies"`
}

// EmailConfig configures the outgoing mail server.
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Sender   string `yaml:"sender"`
	Receiver string `yaml:"receiver"`
}

// AdapterConfig selects an adapter kind, the name it registers under and
// the setting passed to Connect.
type AdapterConfig struct {
	Kind    string         `yaml:"kind"`
	Name    string         `yaml:"name"`
	Setting map[string]any `yaml:"setting"`
}

// StrategyConfig configures one strategy instance of the strategy app.
type StrategyConfig struct {
	Kind     string  `yaml:"kind"`
	VtSymbol string  `yaml:"vt_symbol"`
	Adapter  string  `yaml:"adapter"`
	Short    int     `yaml:"short"`
	Long     int     `yaml:"long"`
	Volume   float64 `yaml:"volume"`
}

// LoadConfig reads .env (if present) next to the process, then the YAML file
// at path, then applies environment overrides, defaults and validation.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes YAML, applies environment overrides and defaults, and
// validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "trade_core"
	}
	if c.Bus.TimerIntervalMS == 0 {
		c.Bus.TimerIntervalMS = 1000
	}
	if c.Bus.PollIntervalMS == 0 {
		c.Bus.PollIntervalMS = 1000
	}
	if c.Bus.JoinTimeoutMS == 0 {
		c.Bus.JoinTimeoutMS = 1000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 28
	}
	if c.Email.Port == 0 {
		c.Email.Port = 465
	}
	if c.Server.PprofAddr == "" {
		c.Server.PprofAddr = "localhost:6060"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = "localhost:9100"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Bus.TimerIntervalMS <= 0 {
		return &domain.ConfigError{Field: "bus.timer_interval_ms", Err: errors.New("must be positive")}
	}
	if c.Bus.PollIntervalMS <= 0 {
		return &domain.ConfigError{Field: "bus.poll_interval_ms", Err: errors.New("must be positive")}
	}
	if c.Bus.JoinTimeoutMS <= 0 {
		return &domain.ConfigError{Field: "bus.join_timeout_ms", Err: errors.New("must be positive")}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &domain.ConfigError{Field: "logging.level", Err: fmt.Errorf("unknown level %q", c.Logging.Level)}
	}

	if c.Email.Enabled {
		if c.Email.Server == "" {
			return &domain.ConfigError{Field: "email.server", Err: errors.New("required when email is enabled")}
		}
		if c.Email.Sender == "" || c.Email.Receiver == "" {
			return &domain.ConfigError{Field: "email.sender", Err: errors.New("sender and receiver are required when email is enabled")}
		}
	}

	seen := make(map[string]bool, len(c.Adapters))
	for i, a := range c.Adapters {
		if a.Kind == "" {
			return &domain.ConfigError{Field: fmt.Sprintf("adapters[%d].kind", i), Err: errors.New("required")}
		}
		name := a.Name
		if name == "" {
			name = strings.ToUpper(a.Kind)
		}
		if seen[name] {
			return &domain.ConfigError{Field: fmt.Sprintf("adapters[%d].name", i), Err: fmt.Errorf("duplicate adapter %q", name)}
		}
		seen[name] = true
	}

	for i, sc := range c.Strategies {
		field := fmt.Sprintf("strategies[%d]", i)
		switch {
		case sc.Kind != "sma_cross":
			return &domain.ConfigError{Field: field + ".kind", Err: fmt.Errorf("unknown strategy %q", sc.Kind)}
		case !strings.Contains(sc.VtSymbol, "."):
			return &domain.ConfigError{Field: field + ".vt_symbol", Err: errors.New("must be symbol.exchange")}
		case sc.Adapter == "":
			return &domain.ConfigError{Field: field + ".adapter", Err: errors.New("required")}
		case sc.Short <= 0 || sc.Short >= sc.Long:
			return &domain.ConfigError{Field: field + ".short", Err: errors.New("need 0 < short < long")}
		case sc.Volume <= 0:
			return &domain.ConfigError{Field: field + ".volume", Err: errors.New("must be positive")}
		}
	}

	return nil
}

// BusConfig converts the bus section.
func (c *Config) BusConfig() event.Config {
	return event.Config{
		TimerInterval: time.Duration(c.Bus.TimerIntervalMS) * time.Millisecond,
		PollInterval:  time.Duration(c.Bus.PollIntervalMS) * time.Millisecond,
		JoinTimeout:   time.Duration(c.Bus.JoinTimeoutMS) * time.Millisecond,
	}
}

// overrideWithEnv replaces secrets and paths with environment values when set.
func overrideWithEnv(cfg *Config) {
	if pass := os.Getenv("TRADE_EMAIL_PASSWORD"); pass != "" {
		cfg.Email.Password = pass
	}
	if level := os.Getenv("TRADE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if path := os.Getenv("TRADE_JOURNAL_PATH"); path != "" {
		cfg.Journal.Path = path
	}
}
