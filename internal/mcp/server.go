package mcp

import (
	"context"
	"fmt"
	"time"

	"ibmcp/internal/config"
	"ibmcp/internal/db/repositories"
	"ibmcp/internal/ibkr"
	"ibmcp/internal/logging"
	"ibmcp/internal/version"

	"github.com/mark3labs/mcp-go/server"
)

// Gateway is the slice of the IBKR client the MCP surface uses; tests
// substitute a stub.
type Gateway interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Status() ibkr.ConnectionStatus
	Positions(ctx context.Context) ([]ibkr.Position, error)
	AccountSummary(ctx context.Context, tags []string) ([]ibkr.AccountValue, error)
	SnapshotMarketData(ctx context.Context, contract ibkr.Contract) (*ibkr.Quote, error)
	ContractDetails(ctx context.Context, contract ibkr.Contract) ([]ibkr.ContractDetails, error)
	PlaceOrder(ctx context.Context, contract ibkr.Contract, order ibkr.Order) (*ibkr.OrderStatus, error)
	CancelOrder(ctx context.Context, orderID int64) error
	OpenOrders(ctx context.Context) ([]ibkr.OpenOrder, error)
	CurrentTime(ctx context.Context) (time.Time, error)
	ManagedAccounts(ctx context.Context) ([]string, error)
}

type Server struct {
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
	gateway    Gateway
	repos      *repositories.Repositories
	config     *config.Config
}

func NewServer(gateway Gateway, repos *repositories.Repositories, cfg *config.Config) *Server {
	mcpServer := server.NewMCPServer(
		"IBKR MCP Server",
		version.GetVersionString(),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithRecovery(),
	)

	httpServer := server.NewStreamableHTTPServer(mcpServer)

	s := &Server{
		mcpServer:  mcpServer,
		httpServer: httpServer,
		gateway:    gateway,
		repos:      repos,
		config:     cfg,
	}

	s.setupTools()
	s.setupResources()

	logging.Debug("MCP server setup complete: tools for gateway operations, resources for read-only data")

	return s
}

// Start serves MCP over streamable HTTP.
func (s *Server) Start(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("Starting MCP server using streamable HTTP transport on %s", addr)

	if err := s.httpServer.Start(addr); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// StartStdio serves MCP over stdin/stdout.
func (s *Server) StartStdio(ctx context.Context) error {
	logging.Info("Starting MCP server using stdio transport")

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("MCP server shutting down...")

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ensureConnected lazily establishes the gateway session before an
// operation, mirroring how connection parameters come from the
// environment rather than tool arguments.
func (s *Server) ensureConnected(ctx context.Context) error {
	if s.gateway.IsConnected() {
		return nil
	}
	if err := s.gateway.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to IBKR gateway: %w", err)
	}
	return nil
}
