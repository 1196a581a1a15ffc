package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"ibmcp/pkg/models"
)

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

const orderColumns = `id, client_ref, order_id, account, symbol, sec_type, action, quantity,
	order_type, limit_price, aux_price, tif, status, status_detail, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.OrderRecord, error) {
	var o models.OrderRecord
	var limitPrice, auxPrice sql.NullFloat64
	err := row.Scan(&o.ID, &o.ClientRef, &o.OrderID, &o.Account, &o.Symbol, &o.SecType,
		&o.Action, &o.Quantity, &o.OrderType, &limitPrice, &auxPrice, &o.TimeInForce,
		&o.Status, &o.StatusDetail, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if limitPrice.Valid {
		o.LimitPrice = &limitPrice.Float64
	}
	if auxPrice.Valid {
		o.AuxPrice = &auxPrice.Float64
	}
	return &o, nil
}

// Create records an order submission and returns the stored row.
func (r *OrderRepo) Create(o *models.OrderRecord) (*models.OrderRecord, error) {
	var limitPrice, auxPrice sql.NullFloat64
	if o.LimitPrice != nil {
		limitPrice = sql.NullFloat64{Float64: *o.LimitPrice, Valid: true}
	}
	if o.AuxPrice != nil {
		auxPrice = sql.NullFloat64{Float64: *o.AuxPrice, Valid: true}
	}

	result, err := r.db.Exec(`INSERT INTO orders
		(client_ref, order_id, account, symbol, sec_type, action, quantity, order_type,
		 limit_price, aux_price, tif, status, status_detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ClientRef, o.OrderID, o.Account, o.Symbol, o.SecType, o.Action, o.Quantity,
		o.OrderType, limitPrice, auxPrice, o.TimeInForce, o.Status, o.StatusDetail)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

func (r *OrderRepo) GetByID(id int64) (*models.OrderRecord, error) {
	row := r.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	return scanOrder(row)
}

func (r *OrderRepo) GetByClientRef(clientRef string) (*models.OrderRecord, error) {
	row := r.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE client_ref = ?`, clientRef)
	return scanOrder(row)
}

// UpdateStatus records a status transition for a gateway order id.
func (r *OrderRepo) UpdateStatus(orderID int64, status, detail string) error {
	_, err := r.db.Exec(`UPDATE orders SET status = ?, status_detail = ?, updated_at = ?
		WHERE order_id = ?`, status, detail, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}

// List returns the most recent orders, newest first.
func (r *OrderRepo) List(limit int) ([]*models.OrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT `+orderColumns+` FROM orders
		ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.OrderRecord
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
