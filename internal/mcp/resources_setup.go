package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// setupResources registers read-only resources for portfolio and session state
func (s *Server) setupResources() {
	positionsResource := mcp.NewResource(
		"ibkr://positions",
		"Portfolio Positions",
		mcp.WithResourceDescription("All open positions across managed accounts"),
		mcp.WithMIMEType("application/json"),
	)
	s.mcpServer.AddResource(positionsResource, s.handlePositionsResource)

	summaryResource := mcp.NewResource(
		"ibkr://account/summary",
		"Account Summary",
		mcp.WithResourceDescription("Key account values such as net liquidation, cash and buying power"),
		mcp.WithMIMEType("application/json"),
	)
	s.mcpServer.AddResource(summaryResource, s.handleAccountSummaryResource)

	connectionResource := mcp.NewResource(
		"ibkr://connection",
		"Gateway Connection",
		mcp.WithResourceDescription("Current TWS/Gateway session state and managed accounts"),
		mcp.WithMIMEType("application/json"),
	)
	s.mcpServer.AddResource(connectionResource, s.handleConnectionResource)

	ordersResource := mcp.NewResource(
		"ibkr://orders",
		"Order History",
		mcp.WithResourceDescription("Recently submitted orders from the local audit trail"),
		mcp.WithMIMEType("application/json"),
	)
	s.mcpServer.AddResource(ordersResource, s.handleOrdersResource)
}
