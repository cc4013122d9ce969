package infra

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trade_core/internal/domain"
)

const sampleConfig = `
app:
  name: trade_core_test
bus:
  timer_interval_ms: 250
logging:
  level: debug
journal:
  enabled: true
  path: /tmp/journal.db
adapters:
  - kind: paper
    setting:
      contracts: ["rb2405.SHFE"]
      fill_on_send: true
strategies:
  - kind: sma_cross
    vt_symbol: rb2405.SHFE
    adapter: PAPER
    short: 5
    long: 20
    volume: 1
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	bus := cfg.BusConfig()
	if bus.TimerInterval != 250*time.Millisecond {
		t.Errorf("Expected 250ms timer, got %v", bus.TimerInterval)
	}
	if bus.PollInterval != time.Second || bus.JoinTimeout != time.Second {
		t.Errorf("Expected one second defaults, got poll=%v join=%v", bus.PollInterval, bus.JoinTimeout)
	}
	if cfg.Logging.Dir != "logs" {
		t.Errorf("Expected default log dir, got %q", cfg.Logging.Dir)
	}
	if len(cfg.Adapters) != 1 || cfg.Adapters[0].Kind != "paper" {
		t.Fatalf("Expected one paper adapter, got %+v", cfg.Adapters)
	}
	contracts, ok := cfg.Adapters[0].Setting["contracts"].([]any)
	if !ok || len(contracts) != 1 {
		t.Errorf("Expected contracts list in setting, got %#v", cfg.Adapters[0].Setting["contracts"])
	}
	if len(cfg.Strategies) != 1 || cfg.Strategies[0].Long != 20 || cfg.Strategies[0].Volume != 1 {
		t.Errorf("Expected one sma_cross strategy, got %+v", cfg.Strategies)
	}
}

func TestParseConfig_EnvOverride(t *testing.T) {
	t.Setenv("TRADE_EMAIL_PASSWORD", "secret")
	t.Setenv("TRADE_LOG_LEVEL", "warn")
	t.Setenv("TRADE_JOURNAL_PATH", "/var/lib/journal.db")

	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Email.Password != "secret" {
		t.Errorf("Expected password from env, got %q", cfg.Email.Password)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected level from env, got %q", cfg.Logging.Level)
	}
	if cfg.Journal.Path != "/var/lib/journal.db" {
		t.Errorf("Expected journal path from env, got %q", cfg.Journal.Path)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"negative timer", "bus:\n  timer_interval_ms: -1\n", "bus.timer_interval_ms"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"email without server", "email:\n  enabled: true\n", "email.server"},
		{"adapter without kind", "adapters:\n  - name: X\n", "adapters[0].kind"},
		{"duplicate adapter", "adapters:\n  - kind: paper\n  - kind: paper\n", "adapters[1].name"},
		{"unknown strategy", "strategies:\n  - kind: grid\n", "strategies[0].kind"},
		{"strategy periods", "strategies:\n  - kind: sma_cross\n    vt_symbol: rb2405.SHFE\n    adapter: PAPER\n    short: 20\n    long: 5\n    volume: 1\n", "strategies[0].short"},
		{"strategy volume", "strategies:\n  - kind: sma_cross\n    vt_symbol: rb2405.SHFE\n    adapter: PAPER\n    short: 5\n    long: 20\n", "strategies[0].volume"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, cfgErr.Field)
			}
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.App.Name != "trade_core_test" {
		t.Errorf("Expected app name, got %q", cfg.App.Name)
	}
}

func TestNewLogger(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Logging.Dir = t.TempDir()

	logger := NewLogger(cfg)
	if !logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("Expected debug level to be enabled")
	}
	logger.Info("hello")
	if _, err := os.Stat(filepath.Join(cfg.Logging.Dir, "trade_core_test.log")); err != nil {
		t.Errorf("Expected log file: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
