package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// setupTools registers the gateway operations exposed to MCP clients.
func (s *Server) setupTools() {
	getPositions := mcp.NewTool("get_positions",
		mcp.WithDescription("Get current positions from IBKR"),
	)
	s.mcpServer.AddTool(getPositions, s.handleGetPositions)

	getAccountSummary := mcp.NewTool("get_account_summary",
		mcp.WithDescription("Get account summary values (net liquidation, buying power, cash...) from IBKR"),
		mcp.WithString("tags", mcp.Description("Comma-separated summary tags to request (defaults to the standard set)")),
	)
	s.mcpServer.AddTool(getAccountSummary, s.handleGetAccountSummary)

	getMarketSnapshot := mcp.NewTool("get_market_snapshot",
		mcp.WithDescription("Get a market data snapshot for an instrument (delayed data unless the account has live subscriptions)"),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Ticker symbol, e.g. AAPL")),
		mcp.WithString("sec_type", mcp.Description("Security type: STK, OPT, FUT, CASH... (default STK)")),
		mcp.WithString("exchange", mcp.Description("Routing exchange (default SMART)")),
		mcp.WithString("currency", mcp.Description("Currency (default USD)")),
	)
	s.mcpServer.AddTool(getMarketSnapshot, s.handleGetMarketSnapshot)

	getContractDetails := mcp.NewTool("get_contract_details",
		mcp.WithDescription("Resolve an instrument description to full IBKR contract details"),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Ticker symbol, e.g. AAPL")),
		mcp.WithString("sec_type", mcp.Description("Security type: STK, OPT, FUT, CASH... (default STK)")),
		mcp.WithString("exchange", mcp.Description("Routing exchange (default SMART)")),
		mcp.WithString("currency", mcp.Description("Currency (default USD)")),
	)
	s.mcpServer.AddTool(getContractDetails, s.handleGetContractDetails)

	placeOrder := mcp.NewTool("place_order",
		mcp.WithDescription("Place an order through IBKR. The submission is recorded in the local audit trail."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Ticker symbol, e.g. AAPL")),
		mcp.WithString("action", mcp.Required(), mcp.Description("BUY or SELL")),
		mcp.WithString("quantity", mcp.Required(), mcp.Description("Quantity as a decimal string, e.g. '10' or '0.5'")),
		mcp.WithString("order_type", mcp.Required(), mcp.Description("Order type: MKT, LMT, STP or STP LMT")),
		mcp.WithNumber("limit_price", mcp.Description("Limit price (required for LMT and STP LMT)")),
		mcp.WithNumber("aux_price", mcp.Description("Stop price (required for STP and STP LMT)")),
		mcp.WithString("tif", mcp.Description("Time in force: DAY, GTC, IOC... (default DAY)")),
		mcp.WithBoolean("transmit", mcp.Description("Transmit immediately (default true); false stages the order in TWS")),
		mcp.WithString("sec_type", mcp.Description("Security type (default STK)")),
		mcp.WithString("exchange", mcp.Description("Routing exchange (default SMART)")),
		mcp.WithString("currency", mcp.Description("Currency (default USD)")),
		mcp.WithString("account", mcp.Description("Account code (defaults to the session's account)")),
	)
	s.mcpServer.AddTool(placeOrder, s.handlePlaceOrder)

	cancelOrder := mcp.NewTool("cancel_order",
		mcp.WithDescription("Cancel a working order by its IBKR order id"),
		mcp.WithNumber("order_id", mcp.Required(), mcp.Description("Gateway order id to cancel")),
	)
	s.mcpServer.AddTool(cancelOrder, s.handleCancelOrder)

	listOpenOrders := mcp.NewTool("list_open_orders",
		mcp.WithDescription("List this session's working orders"),
	)
	s.mcpServer.AddTool(listOpenOrders, s.handleListOpenOrders)

	getServerTime := mcp.NewTool("get_server_time",
		mcp.WithDescription("Get the IBKR gateway's current time"),
	)
	s.mcpServer.AddTool(getServerTime, s.handleGetServerTime)
}
