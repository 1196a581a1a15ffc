package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("IBKR Host:        %s\n", cfg.IBKRHost)
	fmt.Printf("IBKR Port:        %d\n", cfg.IBKRPort)
	if cfg.IBKRClientID != 0 {
		fmt.Printf("Client ID:        %d\n", cfg.IBKRClientID)
	} else {
		fmt.Printf("Client ID:        (random per session)\n")
	}
	fmt.Printf("Market Data Type: %d\n", cfg.MarketDataType)
	fmt.Printf("Database:         %s\n", cfg.DatabaseURL)
	fmt.Printf("MCP Port:         %d\n", cfg.MCPPort)
	fmt.Printf("API Port:         %d\n", cfg.APIPort)
	fmt.Printf("Snapshot Cron:    %s\n", cfg.SnapshotCron)
	fmt.Printf("Debug:            %t\n", cfg.Debug)

	return nil
}
