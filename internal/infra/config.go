package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"paper_trade/internal/domain"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override (e.g., PAPERTRADE_ADDR).
const EnvPrefix = "PAPERTRADE"

// Config holds all application settings.
// LoadConfig decodes the YAML file over DefaultConfig, then applies environment overrides.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr      string `yaml:"addr"`
		PprofAddr string `yaml:"pprof_addr"` // empty disables pprof
	} `yaml:"server"`

	Simulation struct {
		IntervalMS   int             `yaml:"interval_ms"`
		MaxHistory   int             `yaml:"max_history"`
		MaxChangePct decimal.Decimal `yaml:"max_change_pct"` // fraction, 0.015 = 1.5%
		MinPrice     decimal.Decimal `yaml:"min_price"`
		Seed         uint64          `yaml:"seed"` // 0 = random
	} `yaml:"simulation"`

	Portfolio struct {
		InitialCash decimal.Decimal `yaml:"initial_cash"`
	} `yaml:"portfolio"`

	Stocks []domain.StockDefinition `yaml:"stocks"`

	Storage struct {
		Enabled     bool   `yaml:"enabled"`
		JournalPath string `yaml:"journal_path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// envOverrides lists the settings that may come from the environment or a .env file.
type envOverrides struct {
	Addr        string `envconfig:"ADDR"`
	IntervalMS  int    `envconfig:"INTERVAL_MS"`
	Seed        uint64 `envconfig:"SEED"`
	JournalPath string `envconfig:"JOURNAL_PATH"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	LogDir      string `envconfig:"LOG_DIR"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "paper-trade"
	cfg.App.Version = "0.1.0"
	cfg.Server.Addr = ":3000"
	cfg.Simulation.IntervalMS = 5000
	cfg.Simulation.MaxHistory = 100
	cfg.Simulation.MaxChangePct = decimal.RequireFromString("0.015")
	cfg.Simulation.MinPrice = decimal.NewFromInt(1)
	cfg.Portfolio.InitialCash = decimal.NewFromInt(100_000)
	cfg.Stocks = domain.DefaultStocks()
	cfg.Storage.Enabled = true
	cfg.Storage.JournalPath = "data/journal.db"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// LoadConfig reads the YAML file at path. An empty path skips the file.
// A missing file yields an error wrapping domain.ErrConfigNotFound.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// overrideWithEnv applies PAPERTRADE_* variables. A .env file in the working
// directory is loaded first if present; real environment variables win over it.
func overrideWithEnv(cfg *Config) error {
	_ = godotenv.Load()

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return &domain.ConfigError{Field: "env", Err: err}
	}

	if env.Addr != "" {
		cfg.Server.Addr = env.Addr
	}
	if env.IntervalMS != 0 {
		cfg.Simulation.IntervalMS = env.IntervalMS
	}
	if env.Seed != 0 {
		cfg.Simulation.Seed = env.Seed
	}
	if env.JournalPath != "" {
		cfg.Storage.JournalPath = env.JournalPath
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	if env.LogDir != "" {
		cfg.Logging.Dir = env.LogDir
	}
	return nil
}

func (c *Config) normalize() {
	for i := range c.Stocks {
		c.Stocks[i].Symbol = strings.ToUpper(strings.TrimSpace(c.Stocks[i].Symbol))
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return &domain.ConfigError{Field: "server.addr", Err: errors.New("must not be empty")}
	}

	// Simulation
	if c.Simulation.IntervalMS <= 0 {
		return &domain.ConfigError{Field: "simulation.interval_ms", Err: errors.New("must be positive")}
	}
	if c.Simulation.MaxHistory <= 0 {
		return &domain.ConfigError{Field: "simulation.max_history", Err: errors.New("must be positive")}
	}
	if !c.Simulation.MaxChangePct.IsPositive() || c.Simulation.MaxChangePct.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return &domain.ConfigError{Field: "simulation.max_change_pct", Err: errors.New("must be in (0, 1)")}
	}
	if !c.Simulation.MinPrice.IsPositive() {
		return &domain.ConfigError{Field: "simulation.min_price", Err: errors.New("must be positive")}
	}

	if c.Portfolio.InitialCash.IsNegative() {
		return &domain.ConfigError{Field: "portfolio.initial_cash", Err: errors.New("must not be negative")}
	}

	// Stocks
	if len(c.Stocks) == 0 {
		return &domain.ConfigError{Field: "stocks", Err: errors.New("at least one stock is required")}
	}
	seen := make(map[string]bool, len(c.Stocks))
	for _, s := range c.Stocks {
		if s.Symbol == "" {
			return &domain.ConfigError{Field: "stocks", Err: errors.New("symbol must not be empty")}
		}
		if seen[s.Symbol] {
			return &domain.ConfigError{Field: "stocks", Err: fmt.Errorf("duplicate symbol %s", s.Symbol)}
		}
		seen[s.Symbol] = true
	}

	if c.Storage.Enabled && c.Storage.JournalPath == "" {
		return &domain.ConfigError{Field: "storage.journal_path", Err: errors.New("required when storage is enabled")}
	}

	return nil
}
