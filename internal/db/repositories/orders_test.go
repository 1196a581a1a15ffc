package repositories

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibmcp/internal/db"
	"ibmcp/pkg/models"
)

func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := db.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, database.Migrate())
	return New(database)
}

func TestOrderRepo_CreateAndGet(t *testing.T) {
	repos := setupTestRepos(t)

	limit := 150.0
	created, err := repos.Orders.Create(&models.OrderRecord{
		ClientRef:  "9e2f1a40-0000-4000-8000-000000000001",
		OrderID:    12,
		Symbol:     "AAPL",
		SecType:    "STK",
		Action:     "BUY",
		Quantity:   "10",
		OrderType:  "LMT",
		LimitPrice: &limit,
		Status:     "Submitted",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repos.Orders.GetByClientRef(created.ClientRef)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, int64(12), got.OrderID)
	require.NotNil(t, got.LimitPrice)
	assert.Equal(t, 150.0, *got.LimitPrice)
	assert.Nil(t, got.AuxPrice)
}

func TestOrderRepo_UpdateStatus(t *testing.T) {
	repos := setupTestRepos(t)

	created, err := repos.Orders.Create(&models.OrderRecord{
		ClientRef: "9e2f1a40-0000-4000-8000-000000000002",
		OrderID:   7,
		Symbol:    "MSFT",
		Action:    "SELL",
		Quantity:  "5",
		OrderType: "MKT",
		Status:    "Submitted",
	})
	require.NoError(t, err)

	require.NoError(t, repos.Orders.UpdateStatus(7, "Filled", "avg fill 411.20"))

	got, err := repos.Orders.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Filled", got.Status)
	assert.Equal(t, "avg fill 411.20", got.StatusDetail)
}

func TestOrderRepo_List(t *testing.T) {
	repos := setupTestRepos(t)

	for i, ref := range []string{"ref-a", "ref-b", "ref-c"} {
		_, err := repos.Orders.Create(&models.OrderRecord{
			ClientRef: ref,
			OrderID:   int64(i + 1),
			Symbol:    "AAPL",
			Action:    "BUY",
			Quantity:  "1",
			OrderType: "MKT",
			Status:    "Submitted",
		})
		require.NoError(t, err)
	}

	orders, err := repos.Orders.List(2)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	// Newest first
	assert.Equal(t, "ref-c", orders[0].ClientRef)

	all, err := repos.Orders.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAccountSnapshotRepo(t *testing.T) {
	repos := setupTestRepos(t)

	batch := []*models.AccountSnapshot{
		{Account: "DU123456", Tag: "NetLiquidation", Value: "100000.00", Currency: "USD"},
		{Account: "DU123456", Tag: "BuyingPower", Value: "400000.00", Currency: "USD"},
	}
	require.NoError(t, repos.AccountSnapshots.RecordBatch(batch))

	latest, err := repos.AccountSnapshots.Latest("DU123456")
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "BuyingPower", latest[0].Tag)

	history, err := repos.AccountSnapshots.History("DU123456", "NetLiquidation", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "100000.00", history[0].Value)

	// Empty batch is a no-op
	require.NoError(t, repos.AccountSnapshots.RecordBatch(nil))
}
