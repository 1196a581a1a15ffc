package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ibmcp/internal/db"
	"ibmcp/internal/db/repositories"
	"ibmcp/internal/ibkr"
	"ibmcp/internal/mcp"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP over stdin/stdout",
	Long: `Serve MCP over stdio for direct integration with desktop MCP clients.

The gateway session is established lazily on the first tool call, so the
server starts even when TWS/Gateway is not yet running.`,
	RunE: runStdio,
}

func runStdio(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	gateway := ibkr.New(ibkr.Options{
		Host:           cfg.IBKRHost,
		Port:           cfg.IBKRPort,
		ClientID:       cfg.ClientID(),
		MarketDataType: cfg.MarketDataType,
	})
	defer gateway.Close()

	mcpServer := mcp.NewServer(gateway, repositories.New(database), cfg)

	return mcpServer.StartStdio(context.Background())
}
