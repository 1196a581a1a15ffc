package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ibmcp/internal/config"
	"ibmcp/internal/db"
	"ibmcp/internal/db/repositories"
	"ibmcp/internal/ibkr"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	connected    bool
	connectCalls int
	connectErr   error

	positions   []ibkr.Position
	summary     []ibkr.AccountValue
	quote       *ibkr.Quote
	details     []ibkr.ContractDetails
	orderStatus *ibkr.OrderStatus
	placeErr    error
	cancelErr   error
	openOrders  []ibkr.OpenOrder
	serverTime  time.Time
	accounts    []string

	placedContract ibkr.Contract
	placedOrder    ibkr.Order
	cancelledID    int64
}

func (g *stubGateway) Connect(ctx context.Context) error {
	g.connectCalls++
	if g.connectErr != nil {
		return g.connectErr
	}
	g.connected = true
	return nil
}

func (g *stubGateway) IsConnected() bool { return g.connected }

func (g *stubGateway) Status() ibkr.ConnectionStatus {
	return ibkr.ConnectionStatus{Connected: g.connected, ManagedAccounts: g.accounts}
}

func (g *stubGateway) Positions(ctx context.Context) ([]ibkr.Position, error) {
	return g.positions, nil
}

func (g *stubGateway) AccountSummary(ctx context.Context, tags []string) ([]ibkr.AccountValue, error) {
	return g.summary, nil
}

func (g *stubGateway) SnapshotMarketData(ctx context.Context, contract ibkr.Contract) (*ibkr.Quote, error) {
	return g.quote, nil
}

func (g *stubGateway) ContractDetails(ctx context.Context, contract ibkr.Contract) ([]ibkr.ContractDetails, error) {
	return g.details, nil
}

func (g *stubGateway) PlaceOrder(ctx context.Context, contract ibkr.Contract, order ibkr.Order) (*ibkr.OrderStatus, error) {
	g.placedContract = contract
	g.placedOrder = order
	if g.placeErr != nil {
		return nil, g.placeErr
	}
	return g.orderStatus, nil
}

func (g *stubGateway) CancelOrder(ctx context.Context, orderID int64) error {
	g.cancelledID = orderID
	return g.cancelErr
}

func (g *stubGateway) OpenOrders(ctx context.Context) ([]ibkr.OpenOrder, error) {
	return g.openOrders, nil
}

func (g *stubGateway) CurrentTime(ctx context.Context) (time.Time, error) {
	return g.serverTime, nil
}

func (g *stubGateway) ManagedAccounts(ctx context.Context) ([]string, error) {
	return g.accounts, nil
}

func setupTestServer(t *testing.T, gateway *stubGateway) *Server {
	t.Helper()

	database, err := db.New(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	cfg := &config.Config{IBKRHost: "127.0.0.1", IBKRPort: 4002}
	return NewServer(gateway, repositories.New(database), cfg)
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestGetPositions_LazyConnect(t *testing.T) {
	gateway := &stubGateway{
		positions: []ibkr.Position{
			{Account: "DU123456", Contract: ibkr.Stock("AAPL", "", ""), Quantity: decimal.NewFromInt(100)},
		},
	}
	s := setupTestServer(t, gateway)

	result, err := s.handleGetPositions(context.Background(), callRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, 1, gateway.connectCalls)

	var response struct {
		Count     int             `json:"count"`
		Positions []ibkr.Position `json:"positions"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &response))
	assert.Equal(t, 1, response.Count)
	assert.Equal(t, "AAPL", response.Positions[0].Contract.Symbol)

	// Established sessions are reused.
	_, err = s.handleGetPositions(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, gateway.connectCalls)
}

func TestGetPositions_ConnectFailure(t *testing.T) {
	gateway := &stubGateway{connectErr: ibkr.ErrConnectionLost}
	s := setupTestServer(t, gateway)

	result, err := s.handleGetPositions(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "failed to connect")
}

func TestGetAccountSummary_TagsParsed(t *testing.T) {
	gateway := &stubGateway{
		summary: []ibkr.AccountValue{
			{Account: "DU123456", Tag: "NetLiquidation", Value: "100000.00", Currency: "USD"},
		},
	}
	s := setupTestServer(t, gateway)

	result, err := s.handleGetAccountSummary(context.Background(), callRequest(map[string]any{
		"tags": "NetLiquidation, BuyingPower",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, textContent(t, result), "NetLiquidation")
}

func TestGetMarketSnapshot_RequiresSymbol(t *testing.T) {
	s := setupTestServer(t, &stubGateway{})

	result, err := s.handleGetMarketSnapshot(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "symbol is required")
}

func TestGetMarketSnapshot(t *testing.T) {
	quote := &ibkr.Quote{
		Prices:         map[string]float64{"DELAYED_LAST": 185.5},
		Sizes:          map[string]int64{"DELAYED_LAST_SIZE": 300},
		MarketDataType: 4,
	}
	gateway := &stubGateway{quote: quote}
	s := setupTestServer(t, gateway)

	result, err := s.handleGetMarketSnapshot(context.Background(), callRequest(map[string]any{
		"symbol": "aapl",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, textContent(t, result), "DELAYED_LAST")
	assert.Contains(t, textContent(t, result), `"AAPL"`)
}

func TestPlaceOrder_RecordsAudit(t *testing.T) {
	gateway := &stubGateway{
		orderStatus: &ibkr.OrderStatus{OrderID: 7, Status: "Submitted"},
	}
	s := setupTestServer(t, gateway)

	result, err := s.handlePlaceOrder(context.Background(), callRequest(map[string]any{
		"symbol":      "MSFT",
		"action":      "buy",
		"quantity":    "10",
		"order_type":  "lmt",
		"limit_price": 420.5,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	assert.Equal(t, "BUY", gateway.placedOrder.Action)
	assert.Equal(t, "LMT", gateway.placedOrder.OrderType)
	assert.True(t, gateway.placedOrder.Quantity.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, gateway.placedOrder.LimitPrice)
	assert.Equal(t, 420.5, *gateway.placedOrder.LimitPrice)

	records, err := s.repos.Orders.List(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), records[0].OrderID)
	assert.Equal(t, "Submitted", records[0].Status)
	assert.Equal(t, "MSFT", records[0].Symbol)
	assert.NotEmpty(t, records[0].ClientRef)
}

func TestPlaceOrder_RejectionRecorded(t *testing.T) {
	gateway := &stubGateway{
		placeErr: &ibkr.GatewayError{Code: 201, Message: "Order rejected - insufficient funds"},
	}
	s := setupTestServer(t, gateway)

	result, err := s.handlePlaceOrder(context.Background(), callRequest(map[string]any{
		"symbol":     "MSFT",
		"action":     "BUY",
		"quantity":   "10",
		"order_type": "MKT",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	records, err := s.repos.Orders.List(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Rejected", records[0].Status)
	assert.Contains(t, records[0].StatusDetail, "insufficient funds")
}

func TestPlaceOrder_ValidationBeforeConnect(t *testing.T) {
	gateway := &stubGateway{}
	s := setupTestServer(t, gateway)

	result, err := s.handlePlaceOrder(context.Background(), callRequest(map[string]any{
		"symbol":     "MSFT",
		"action":     "HOLD",
		"quantity":   "10",
		"order_type": "MKT",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Zero(t, gateway.connectCalls)
}

func TestCancelOrder(t *testing.T) {
	gateway := &stubGateway{orderStatus: &ibkr.OrderStatus{OrderID: 9, Status: "Submitted"}}
	s := setupTestServer(t, gateway)

	_, err := s.handlePlaceOrder(context.Background(), callRequest(map[string]any{
		"symbol":     "MSFT",
		"action":     "SELL",
		"quantity":   "5",
		"order_type": "MKT",
	}))
	require.NoError(t, err)

	result, err := s.handleCancelOrder(context.Background(), callRequest(map[string]any{
		"order_id": float64(9),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, int64(9), gateway.cancelledID)

	records, err := s.repos.Orders.List(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "PendingCancel", records[0].Status)
}

func TestCancelOrder_RequiresID(t *testing.T) {
	s := setupTestServer(t, &stubGateway{})

	result, err := s.handleCancelOrder(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGetServerTime(t *testing.T) {
	now := time.Unix(1756600000, 0).UTC()
	gateway := &stubGateway{serverTime: now}
	s := setupTestServer(t, gateway)

	result, err := s.handleGetServerTime(context.Background(), callRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, textContent(t, result), "1756600000")
}

func TestPositionsResource(t *testing.T) {
	gateway := &stubGateway{
		positions: []ibkr.Position{
			{Account: "DU123456", Contract: ibkr.Stock("AAPL", "", ""), Quantity: decimal.NewFromInt(100)},
		},
	}
	s := setupTestServer(t, gateway)

	request := mcp.ReadResourceRequest{}
	request.Params.URI = "ibkr://positions"

	contents, err := s.handlePositionsResource(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "ibkr://positions", text.URI)
	assert.Contains(t, text.Text, `"total_count": 1`)
}

func TestConnectionResource_NoConnectAttempt(t *testing.T) {
	gateway := &stubGateway{accounts: []string{"DU123456"}}
	s := setupTestServer(t, gateway)

	request := mcp.ReadResourceRequest{}
	request.Params.URI = "ibkr://connection"

	contents, err := s.handleConnectionResource(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text := contents[0].(mcp.TextResourceContents)
	assert.Contains(t, text.Text, `"connected": false`)
	assert.Zero(t, gateway.connectCalls)
}
