package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the q-alpha service.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	BaoStock BaoStock `yaml:"baostock"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Backtest Backtest `yaml:"backtest"`
	Fetch    Fetch    `yaml:"fetch"`
	Logging  Logging  `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir          string `yaml:"data_dir"`
	SQLitePath       string `yaml:"sqlite_path"`
	CacheExpireHours int    `yaml:"cache_expire_hours"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BaoStock holds connection parameters for the BaoStock data service.
type BaoStock struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Backtest holds engine parameters.
type Backtest struct {
	RiskFreeRate       float64           `yaml:"risk_free_rate"`
	TradingDaysPerYear int               `yaml:"trading_days_per_year"`
	Benchmarks         map[string]string `yaml:"benchmarks"`
}

// Fetch controls upstream data retrieval behaviour.
type Fetch struct {
	RetryAttempts     int `yaml:"retry_attempts"`
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`
	RateLimitPerMin   int `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config populated with working defaults for every field
// a deployment may omit.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:          "data",
			SQLitePath:       "data/qalpha.db",
			CacheExpireHours: 24,
		},
		Server: Server{
			Host: "0.0.0.0",
			Port: 8000,
		},
		BaoStock: BaoStock{
			Host:           "www.baostock.com",
			Port:           17809,
			TimeoutSeconds: 30,
		},
		Backtest: Backtest{
			RiskFreeRate:       0.03,
			TradingDaysPerYear: 252,
			Benchmarks: map[string]string{
				"sh":    "000001",
				"hs300": "000300",
			},
		},
		Fetch: Fetch{
			RetryAttempts:     3,
			RetryDelaySeconds: 2,
			RateLimitPerMin:   120,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML configuration file at the given path over the
// defaults, then applies environment variable overrides. A missing file is
// not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("BAOSTOCK_HOST"); v != "" {
		cfg.BaoStock.Host = v
	}
	if v := os.Getenv("BAOSTOCK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.BaoStock.Port = port
		}
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Canonical Alpaca SDK names take priority over the local ones.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
