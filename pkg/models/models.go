package models

import "time"

// OrderRecord is one row of the order audit trail. ClientRef is the uuid
// assigned at submission time, before the gateway order id is known.
type OrderRecord struct {
	ID           int64     `json:"id" db:"id"`
	ClientRef    string    `json:"client_ref" db:"client_ref"`
	OrderID      int64     `json:"order_id" db:"order_id"`
	Account      string    `json:"account,omitempty" db:"account"`
	Symbol       string    `json:"symbol" db:"symbol"`
	SecType      string    `json:"sec_type" db:"sec_type"`
	Action       string    `json:"action" db:"action"`
	Quantity     string    `json:"quantity" db:"quantity"`
	OrderType    string    `json:"order_type" db:"order_type"`
	LimitPrice   *float64  `json:"limit_price,omitempty" db:"limit_price"`
	AuxPrice     *float64  `json:"aux_price,omitempty" db:"aux_price"`
	TimeInForce  string    `json:"tif,omitempty" db:"tif"`
	Status       string    `json:"status" db:"status"`
	StatusDetail string    `json:"status_detail,omitempty" db:"status_detail"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// AccountSnapshot is one persisted account summary value.
type AccountSnapshot struct {
	ID       int64     `json:"id" db:"id"`
	Account  string    `json:"account" db:"account"`
	Tag      string    `json:"tag" db:"tag"`
	Value    string    `json:"value" db:"value"`
	Currency string    `json:"currency,omitempty" db:"currency"`
	TakenAt  time.Time `json:"taken_at" db:"taken_at"`
}
