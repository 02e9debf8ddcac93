// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/filipviz/juicy-reimburser/internal/juicebox"
	"github.com/filipviz/juicy-reimburser/internal/safe"
	"github.com/filipviz/juicy-reimburser/internal/subgraph"
)

type Config struct {
	RPCURL      string `env:"RPC_URL,required,notEmpty"`
	SafeAPIURL  string `env:"SAFE_API_URL"`
	SubgraphURL string `env:"SUBGRAPH_URL"`
	ChainID     string `env:"CHAIN_ID"`

	LookupWorkers    int    `env:"LOOKUP_WORKERS"`
	JuiceboxMaxPages int    `env:"JUICEBOX_MAX_PAGES"`
	CostMode         string `env:"COST_MODE"`

	LogLevel     string `env:"LOG_LEVEL"`
	OtelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func defaults() Config {
	return Config{
		SafeAPIURL:  safe.DefaultEndpoint,
		SubgraphURL: subgraph.DefaultEndpoint,
		ChainID:     "1",
		CostMode:    string(juicebox.CostGasLimit),
		LogLevel:    "warn",
	}
}

// Load reads ./.env when it exists, then the process environment.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	cfg := defaults()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Parse reads settings from environ only.
func Parse(environ map[string]string) (Config, error) {
	cfg := defaults()
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.LookupWorkers < 0 {
		return fmt.Errorf("LOOKUP_WORKERS must not be negative, got %d", c.LookupWorkers)
	}
	if c.JuiceboxMaxPages < 0 {
		return fmt.Errorf("JUICEBOX_MAX_PAGES must not be negative, got %d", c.JuiceboxMaxPages)
	}
	if _, err := juicebox.ParseCostMode(c.CostMode); err != nil {
		return fmt.Errorf("COST_MODE: %w", err)
	}
	if c.SafeAPIURL == "" || c.SubgraphURL == "" {
		return errors.New("SAFE_API_URL and SUBGRAPH_URL must not be empty")
	}
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
