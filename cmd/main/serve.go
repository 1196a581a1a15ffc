package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ibmcp/internal/api"
	"ibmcp/internal/db"
	"ibmcp/internal/db/repositories"
	"ibmcp/internal/ibkr"
	"ibmcp/internal/logging"
	"ibmcp/internal/mcp"
	"ibmcp/internal/services"
	"ibmcp/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP and status API servers",
	Long:  "Start the MCP server over streamable HTTP plus the REST status API and account snapshot poller",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("Starting ibmcp %s\n", version.GetVersionString())
	fmt.Printf("MCP Port: %d\n", cfg.MCPPort)
	fmt.Printf("API Port: %d\n", cfg.APIPort)
	fmt.Printf("Gateway: %s:%d\n", cfg.IBKRHost, cfg.IBKRPort)
	fmt.Printf("Database: %s\n", cfg.DatabaseURL)

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repos := repositories.New(database)

	gateway := ibkr.New(ibkr.Options{
		Host:           cfg.IBKRHost,
		Port:           cfg.IBKRPort,
		ClientID:       cfg.ClientID(),
		MarketDataType: cfg.MarketDataType,
	})
	defer gateway.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mcpServer := mcp.NewServer(gateway, repos, cfg)
	apiServer := api.New(cfg, gateway, repos)
	poller := services.NewSnapshotPoller(gateway, repos, cfg.SnapshotCron)

	errCh := make(chan error, 2)

	go func() {
		if err := mcpServer.Start(ctx, cfg.MCPPort); err != nil {
			errCh <- fmt.Errorf("MCP server: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("API server: %w", err)
		}
	}()

	if err := poller.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("Received signal %v, shutting down...", sig)
	case err := <-errCh:
		logging.Error("Server failed: %v", err)
		cancel()
		poller.Stop()
		return err
	}

	cancel()
	poller.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := mcpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("MCP server shutdown error: %v", err)
	}

	return nil
}
