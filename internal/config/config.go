package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Pair configures one trading pair: the oracle seed quote, its random walk
// and the price range used for synthetic orders.
type Pair struct {
	Name          string  `yaml:"name"`
	InitialPrice  float64 `yaml:"initial_price"`
	BaseVolume    float64 `yaml:"base_volume"`
	Confidence    float64 `yaml:"confidence"`
	Volatility    float64 `yaml:"volatility"`
	OrderPriceMin float64 `yaml:"order_price_min"`
	OrderPriceMax float64 `yaml:"order_price_max"`
}

type Config struct {
	LogLevel    string `yaml:"log_level"`
	HTTPAddr    string `yaml:"http_addr"`
	DatabaseURL string `yaml:"database_url"`
	Seed        uint64 `yaml:"seed"`

	BlockInterval  time.Duration `yaml:"block_interval"`
	OracleInterval time.Duration `yaml:"oracle_interval"`
	ScanInterval   time.Duration `yaml:"scan_interval"`
	StatusInterval time.Duration `yaml:"status_interval"`

	// PriceBand is the max fractional deviation of an order price from the
	// confirmed quote.
	PriceBand float64 `yaml:"price_band"`
	Dampening float64 `yaml:"dampening"`

	JournalBuffer int `yaml:"journal_buffer"`

	Pairs []Pair `yaml:"pairs"`
}

// Default mirrors the single DOT/USDC market the venue was first run with.
func Default() Config {
	return Config{
		LogLevel:       "info",
		HTTPAddr:       ":8080",
		Seed:           1,
		BlockInterval:  6 * time.Second,
		OracleInterval: 6 * time.Second,
		ScanInterval:   time.Second,
		StatusInterval: 30 * time.Second,
		PriceBand:      0.05,
		Dampening:      0.1,
		JournalBuffer:  256,
		Pairs: []Pair{{
			Name:          "DOT/USDC",
			InitialPrice:  7.45,
			BaseVolume:    1_000_000,
			Confidence:    0.98,
			Volatility:    0.02,
			OrderPriceMin: 5,
			OrderPriceMax: 25,
		}},
	}
}

// Load reads a YAML file over the defaults. An empty path returns defaults.
// DATABASE_URL and LOG_LEVEL override the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.BlockInterval <= 0 || c.OracleInterval <= 0 || c.ScanInterval <= 0 || c.StatusInterval <= 0 {
		return errors.New("intervals must be positive")
	}
	if c.PriceBand <= 0 || c.PriceBand >= 1 {
		return fmt.Errorf("price_band must be in (0,1), got %v", c.PriceBand)
	}
	if c.Dampening <= 0 || c.Dampening > 1 {
		return fmt.Errorf("dampening must be in (0,1], got %v", c.Dampening)
	}
	if c.JournalBuffer < 1 {
		return errors.New("journal_buffer must be at least 1")
	}
	if len(c.Pairs) == 0 {
		return errors.New("at least one pair is required")
	}
	seen := make(map[string]bool, len(c.Pairs))
	for _, p := range c.Pairs {
		if strings.Count(p.Name, "/") != 1 || strings.HasPrefix(p.Name, "/") || strings.HasSuffix(p.Name, "/") {
			return fmt.Errorf("pair %q must look like BASE/QUOTE", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("pair %s configured twice", p.Name)
		}
		seen[p.Name] = true
		if p.InitialPrice <= 0 || p.BaseVolume <= 0 {
			return fmt.Errorf("pair %s: initial_price and base_volume must be positive", p.Name)
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			return fmt.Errorf("pair %s: confidence must be in [0,1]", p.Name)
		}
		if p.Volatility <= 0 || p.Volatility >= 1 {
			return fmt.Errorf("pair %s: volatility must be in (0,1)", p.Name)
		}
		if p.OrderPriceMin <= 0 || p.OrderPriceMax < p.OrderPriceMin {
			return fmt.Errorf("pair %s: bad synthetic order price range [%v,%v]", p.Name, p.OrderPriceMin, p.OrderPriceMax)
		}
	}
	return nil
}

// PairNames returns the configured pairs in file order.
func (c Config) PairNames() []string {
	out := make([]string, len(c.Pairs))
	for i, p := range c.Pairs {
		out[i] = p.Name
	}
	return out
}
