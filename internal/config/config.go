package config

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
)

// Config holds the runtime configuration for the server. Gateway settings
// read the conventional IBKR_* environment variables; everything else can
// also be set through IBMCP_-prefixed variables bound by the CLI layer.
type Config struct {
	IBKRHost       string
	IBKRPort       int
	IBKRClientID   int
	DatabaseURL    string
	MCPPort        int
	APIPort        int
	MarketDataType int
	SnapshotCron   string
	Debug          bool
}

func Load() (*Config, error) {
	cfg := &Config{
		IBKRHost:       getEnvOrDefault("IBKR_HOST", "localhost"),
		IBKRPort:       getEnvIntOrDefault("IBKR_PORT", 4001),
		IBKRClientID:   getEnvIntOrDefault("IBKR_CLIENT_ID", 0),
		DatabaseURL:    getEnvOrDefault("DATABASE_URL", "ibmcp.db"),
		MCPPort:        getEnvIntOrDefault("MCP_PORT", 3000),
		APIPort:        getEnvIntOrDefault("API_PORT", 8585),
		MarketDataType: getEnvIntOrDefault("IBKR_MARKET_DATA_TYPE", 4),
		SnapshotCron:   getEnvOrDefault("SNAPSHOT_CRON", "@every 15m"),
		Debug:          getEnvBoolOrDefault("DEBUG", false),
	}

	if cfg.IBKRPort <= 0 || cfg.IBKRPort > 65535 {
		return nil, fmt.Errorf("invalid IBKR_PORT %d", cfg.IBKRPort)
	}
	if cfg.MarketDataType < 1 || cfg.MarketDataType > 4 {
		return nil, fmt.Errorf("invalid IBKR_MARKET_DATA_TYPE %d (must be 1-4)", cfg.MarketDataType)
	}

	return cfg, nil
}

// ClientID returns the configured gateway client id, generating a random one
// below 1,000,000 when none was set so concurrent sessions don't collide.
func (c *Config) ClientID() int {
	if c.IBKRClientID != 0 {
		return c.IBKRClientID
	}
	return rand.Intn(999_999) + 1
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
