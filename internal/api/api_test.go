package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ibmcp/internal/config"
	"ibmcp/internal/db"
	"ibmcp/internal/db/repositories"
	"ibmcp/internal/ibkr"
	"ibmcp/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	connected bool
	positions []ibkr.Position
}

func (g *fakeGateway) Connect(ctx context.Context) error { g.connected = true; return nil }
func (g *fakeGateway) IsConnected() bool                 { return g.connected }

func (g *fakeGateway) Status() ibkr.ConnectionStatus {
	return ibkr.ConnectionStatus{Connected: g.connected, Host: "127.0.0.1", Port: 4002}
}

func (g *fakeGateway) Positions(ctx context.Context) ([]ibkr.Position, error) {
	return g.positions, nil
}

func (g *fakeGateway) AccountSummary(ctx context.Context, tags []string) ([]ibkr.AccountValue, error) {
	return nil, nil
}

func (g *fakeGateway) SnapshotMarketData(ctx context.Context, contract ibkr.Contract) (*ibkr.Quote, error) {
	return nil, nil
}

func (g *fakeGateway) ContractDetails(ctx context.Context, contract ibkr.Contract) ([]ibkr.ContractDetails, error) {
	return nil, nil
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, contract ibkr.Contract, order ibkr.Order) (*ibkr.OrderStatus, error) {
	return nil, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, orderID int64) error { return nil }

func (g *fakeGateway) OpenOrders(ctx context.Context) ([]ibkr.OpenOrder, error) { return nil, nil }

func (g *fakeGateway) CurrentTime(ctx context.Context) (time.Time, error) {
	return time.Time{}, nil
}

func (g *fakeGateway) ManagedAccounts(ctx context.Context) ([]string, error) { return nil, nil }

func setupTestServer(t *testing.T, gateway *fakeGateway) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	cfg := &config.Config{APIPort: 8585}
	return New(cfg, gateway, repositories.New(database))
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	s := setupTestServer(t, &fakeGateway{})

	w := doRequest(s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestGetConnection(t *testing.T) {
	s := setupTestServer(t, &fakeGateway{connected: true})

	w := doRequest(s, http.MethodGet, "/api/v1/connection")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Connection ibkr.ConnectionStatus `json:"connection"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Connection.Connected)
	assert.Equal(t, 4002, body.Connection.Port)
}

func TestGetPositions_NotConnected(t *testing.T) {
	s := setupTestServer(t, &fakeGateway{})

	w := doRequest(s, http.MethodGet, "/api/v1/positions")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetPositions(t *testing.T) {
	gateway := &fakeGateway{
		connected: true,
		positions: []ibkr.Position{
			{Account: "DU123456", Contract: ibkr.Stock("AAPL", "", ""), Quantity: decimal.NewFromInt(100)},
		},
	}
	s := setupTestServer(t, gateway)

	w := doRequest(s, http.MethodGet, "/api/v1/positions")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "AAPL")
}

func TestListOrders(t *testing.T) {
	s := setupTestServer(t, &fakeGateway{})

	_, err := s.repos.Orders.Create(&models.OrderRecord{
		ClientRef: "ref-1",
		Symbol:    "MSFT",
		SecType:   "STK",
		Action:    "BUY",
		Quantity:  "10",
		OrderType: "MKT",
		Status:    "Submitted",
	})
	require.NoError(t, err)

	w := doRequest(s, http.MethodGet, "/api/v1/orders")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "MSFT")

	w = doRequest(s, http.MethodGet, "/api/v1/orders?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAccountSnapshots(t *testing.T) {
	s := setupTestServer(t, &fakeGateway{})

	snapshots := []*models.AccountSnapshot{
		{Account: "DU123456", Tag: "NetLiquidation", Value: "100000.00", Currency: "USD"},
		{Account: "DU123456", Tag: "BuyingPower", Value: "400000.00", Currency: "USD"},
	}
	require.NoError(t, s.repos.AccountSnapshots.RecordBatch(snapshots))

	w := doRequest(s, http.MethodGet, "/api/v1/accounts/DU123456/snapshots")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "NetLiquidation")

	w = doRequest(s, http.MethodGet, "/api/v1/accounts/DU123456/snapshots?tag=BuyingPower")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "400000.00")
	assert.NotContains(t, w.Body.String(), "NetLiquidation")
}
