package main

import (
	"fmt"
	"os"

	"ibmcp/internal/config"
	"ibmcp/internal/logging"
	"ibmcp/internal/version"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "ibmcp",
	Short: "IBKR MCP Server - Interactive Brokers for MCP clients",
	Long: `ibmcp bridges the Interactive Brokers TWS/Gateway socket API to the
Model Context Protocol so LLM clients can read portfolio state, fetch
market data and manage orders through a paper or live trading session.`,
	Version: version.GetVersionString(),
}

func init() {
	rootCmd.SetVersionTemplate(version.GetFullVersionString() + "\n")
}

func init() {
	cobra.OnInitialize(initConfig)
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stdioCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	serveCmd.Flags().Int("mcp-port", 3000, "MCP streamable HTTP port")
	serveCmd.Flags().Int("api-port", 8585, "Status API port")
	serveCmd.Flags().String("database", "ibmcp.db", "Database file path")
	serveCmd.Flags().String("ibkr-host", "localhost", "TWS/Gateway host")
	serveCmd.Flags().Int("ibkr-port", 4001, "TWS/Gateway port (4001 live gateway, 4002 paper)")
	serveCmd.Flags().Int("client-id", 0, "API client id (0 picks a random one)")
	serveCmd.Flags().String("snapshot-schedule", "@every 15m", "Account snapshot cron schedule")
	serveCmd.Flags().Bool("debug", false, "Enable debug logging")

	stdioCmd.Flags().String("database", "ibmcp.db", "Database file path")
	stdioCmd.Flags().String("ibkr-host", "localhost", "TWS/Gateway host")
	stdioCmd.Flags().Int("ibkr-port", 4001, "TWS/Gateway port (4001 live gateway, 4002 paper)")
	stdioCmd.Flags().Int("client-id", 0, "API client id (0 picks a random one)")

	viper.BindPFlag("mcp_port", serveCmd.Flags().Lookup("mcp-port"))
	viper.BindPFlag("api_port", serveCmd.Flags().Lookup("api-port"))
	viper.BindPFlag("database_url", serveCmd.Flags().Lookup("database"))
	viper.BindPFlag("ibkr_host", serveCmd.Flags().Lookup("ibkr-host"))
	viper.BindPFlag("ibkr_port", serveCmd.Flags().Lookup("ibkr-port"))
	viper.BindPFlag("ibkr_client_id", serveCmd.Flags().Lookup("client-id"))
	viper.BindPFlag("snapshot_cron", serveCmd.Flags().Lookup("snapshot-schedule"))
	viper.BindPFlag("debug", serveCmd.Flags().Lookup("debug"))
}

func initConfig() {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("IBMCP")
}

// applyOverrides pushes flag and IBMCP_* values into the environment the
// config loader reads. Precedence: changed flags, then plain env vars,
// then IBMCP_-prefixed env vars picked up through viper.
func applyOverrides(cmd *cobra.Command) {
	set := func(envKey, flagName, viperKey string) {
		if f := cmd.Flags().Lookup(flagName); f != nil && f.Changed {
			os.Setenv(envKey, f.Value.String())
			return
		}
		if os.Getenv(envKey) == "" && viper.IsSet(viperKey) {
			os.Setenv(envKey, fmt.Sprintf("%v", viper.Get(viperKey)))
		}
	}

	set("MCP_PORT", "mcp-port", "mcp_port")
	set("API_PORT", "api-port", "api_port")
	set("DATABASE_URL", "database", "database_url")
	set("IBKR_HOST", "ibkr-host", "ibkr_host")
	set("IBKR_PORT", "ibkr-port", "ibkr_port")
	set("IBKR_CLIENT_ID", "client-id", "ibkr_client_id")
	set("SNAPSHOT_CRON", "snapshot-schedule", "snapshot_cron")
	set("DEBUG", "debug", "debug")
}

func initLogging() {
	cfg, err := config.Load()
	if err != nil {
		logging.Initialize(false)
		return
	}
	logging.Initialize(cfg.Debug)
}

// loadConfig resolves flags and environment into the effective config.
// Logging is re-initialized from the result: the OnInitialize hooks run
// before the command's flags reach the environment, so a --debug flag only
// takes effect here.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	applyOverrides(cmd)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Initialize(cfg.Debug)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
