package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

const appName = "goldpulse"

var (
	defaultBullish = []string{
		"rise", "rising", "gain", "rally", "surge", "record high", "bullish", "climb",
		"上涨", "走高", "攀升", "看涨", "新高",
	}
	defaultBearish = []string{
		"fall", "drop", "slide", "slump", "plunge", "bearish", "decline",
		"下跌", "走低", "回落", "看跌", "暴跌",
	}
	defaultDenylist = []string{
		"负面", "批评", "指责", "谴责", "丑闻", "腐败", "冲突", "对抗",
		"抵制", "封锁", "制裁", "虚假", "造假", "欺骗", "误导", "抹黑",
		"scandal", "corruption", "boycott", "sanction", "fraud", "smear",
	}
)

type Config struct {
	Topics     []string   `yaml:"topics" validate:"min=1,dive,required"`
	Schedule   Schedule   `yaml:"schedule"`
	Search     Search     `yaml:"search"`
	Extraction Extraction `yaml:"extraction"`
	Forecast   Forecast   `yaml:"forecast"`
	Conversion Conversion `yaml:"conversion"`
	Policy     Policy     `yaml:"policy"`
	Prompts    Prompts    `yaml:"prompts"`
	Market     Market     `yaml:"market"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Schedule struct {
	FullRefresh string `yaml:"full_refresh" validate:"required"`
	NewsRefresh string `yaml:"news_refresh" validate:"required"`
	RunOnStart  bool   `yaml:"run_on_start"`
}

type Search struct {
	Providers []string     `yaml:"providers" validate:"min=1,dive,oneof=script tavily feed"`
	Script    ScriptConfig `yaml:"script"`
	Tavily    TavilyConfig `yaml:"tavily"`
	Feeds     []Feed       `yaml:"feeds" validate:"dive"`
}

type ScriptConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type TavilyConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"required,url"`
	APIKeyEnv         string        `yaml:"api_key_env" validate:"required"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"gt=0"`
}

type Feed struct {
	URL  string `yaml:"url" validate:"required,url"`
	Name string `yaml:"name"`
}

// Extraction holds the heuristics used to pull a price and a sentiment
// out of free-text search results.
type Extraction struct {
	MinPrice        float64  `yaml:"min_price" validate:"gt=0"`
	MaxPrice        float64  `yaml:"max_price" validate:"gtfield=MinPrice"`
	Sentinel        float64  `yaml:"sentinel" validate:"gt=0"`
	PersistFallback bool     `yaml:"persist_fallback"`
	Bullish         []string `yaml:"bullish_keywords" validate:"min=1"`
	Bearish         []string `yaml:"bearish_keywords" validate:"min=1"`
}

type Forecast struct {
	Volatility float64 `yaml:"volatility" validate:"gt=0,lt=1"`
	Band       float64 `yaml:"band" validate:"gt=0"`
}

// Conversion derives the secondary price: base * Rate / Divisor.
type Conversion struct {
	Currency string  `yaml:"currency" validate:"required"`
	Rate     float64 `yaml:"rate" validate:"gt=0"`
	Divisor  float64 `yaml:"divisor" validate:"gt=0"`
}

type Policy struct {
	Denylist []string `yaml:"denylist"`
	Backfill bool     `yaml:"backfill_content"`
}

type Prompts struct {
	Path string `yaml:"path"`
}

type Market struct {
	MIC            string `yaml:"mic" validate:"required"`
	SkipClosedDays bool   `yaml:"skip_closed_days"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"gt=0,lt=65536"`
}

type Logging struct {
	Level      string `yaml:"level" validate:"oneof=trace debug info warn warning error TRACE DEBUG INFO WARN WARNING ERROR"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
}

// ConfigDir returns the XDG config directory for goldpulse.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// DataDir returns the XDG data directory for goldpulse.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// ResolveConfigPath finds the config file following priority:
// explicit path > $XDG_CONFIG_HOME/goldpulse/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'goldpulse init' to create a default config",
		xdgConfig,
	)
}

// Load reads, parses and validates a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Topics: []string{"ai", "robotics", "quantum"},
		Schedule: Schedule{
			FullRefresh: "0 */2 * * *",
			NewsRefresh: "0 * * * *",
			RunOnStart:  true,
		},
		Search: Search{
			Providers: []string{"script", "tavily"},
			Script: ScriptConfig{
				Path:    "scripts/tavily.sh",
				Timeout: 60 * time.Second,
			},
			Tavily: TavilyConfig{
				BaseURL:           "https://api.tavily.com",
				APIKeyEnv:         "TAVILY_API_KEY",
				Timeout:           30 * time.Second,
				RequestsPerMinute: 20,
			},
		},
		Extraction: Extraction{
			MinPrice:        2000,
			MaxPrice:        3000,
			Sentinel:        2350,
			PersistFallback: true,
			Bullish:         append([]string(nil), defaultBullish...),
			Bearish:         append([]string(nil), defaultBearish...),
		},
		Forecast: Forecast{
			Volatility: 0.002,
			Band:       20,
		},
		Conversion: Conversion{
			Currency: "CNY",
			Rate:     7.2,
			Divisor:  31.1,
		},
		Policy: Policy{
			Denylist: append([]string(nil), defaultDenylist...),
			Backfill: true,
		},
		Market: Market{MIC: "xlon"},
		Server: Server{Host: "127.0.0.1", Port: 8000},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks struct constraints and cron expressions.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []error
	for name, expr := range map[string]string{
		"schedule.full_refresh": c.Schedule.FullRefresh,
		"schedule.news_refresh": c.Schedule.NewsRefresh,
	} {
		if _, err := cron.ParseStandard(expr); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", name, expr, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the SQLite database location inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), appName+".db")
}
