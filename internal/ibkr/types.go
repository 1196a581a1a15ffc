package ibkr

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contract identifies a tradable instrument. The JSON shape is the flat
// serialization exposed through tools and resources.
type Contract struct {
	ConID           int64   `json:"id,omitempty"`
	Symbol          string  `json:"symbol"`
	SecType         string  `json:"type"`
	Currency        string  `json:"currency"`
	Exchange        string  `json:"exchange"`
	PrimaryExchange string  `json:"primary_exchange,omitempty"`
	LastTradeDate   string  `json:"last_trade_date,omitempty"`
	Strike          float64 `json:"strike,omitempty"`
	Right           string  `json:"right,omitempty"`
	Multiplier      string  `json:"multiplier,omitempty"`
	LocalSymbol     string  `json:"local_symbol,omitempty"`
	TradingClass    string  `json:"trading_class,omitempty"`
}

// Stock builds the common case: a stock contract routed through SMART.
func Stock(symbol, exchange, currency string) Contract {
	if exchange == "" {
		exchange = "SMART"
	}
	if currency == "" {
		currency = "USD"
	}
	return Contract{Symbol: symbol, SecType: "STK", Exchange: exchange, Currency: currency}
}

// encodeContract appends the standard contract field block to a message.
func encodeContract(b *messageBuilder, c Contract) {
	b.addInt64(c.ConID)
	b.addString(c.Symbol)
	b.addString(c.SecType)
	b.addString(c.LastTradeDate)
	b.addFloat(c.Strike)
	b.addString(c.Right)
	b.addString(c.Multiplier)
	b.addString(c.Exchange)
	b.addString(c.PrimaryExchange)
	b.addString(c.Currency)
	b.addString(c.LocalSymbol)
	b.addString(c.TradingClass)
}

// Position is a holding in an account. Identity is (account, conId); a
// positions refresh replaces earlier rows with the same identity.
type Position struct {
	Account     string          `json:"account"`
	Contract    Contract        `json:"contract"`
	Quantity    decimal.Decimal `json:"position"`
	AverageCost float64         `json:"average_cost"`
}

// AccountValue is one tag/value pair from an account summary.
type AccountValue struct {
	Account  string `json:"account"`
	Tag      string `json:"tag"`
	Value    string `json:"value"`
	Currency string `json:"currency,omitempty"`
}

// Quote holds accumulated market data for a contract, keyed by tick name.
type Quote struct {
	Prices         map[string]float64 `json:"price"`
	Sizes          map[string]int64   `json:"size"`
	MarketDataType int                `json:"market_data_type"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func newQuote(marketDataType int) *Quote {
	return &Quote{
		Prices:         make(map[string]float64),
		Sizes:          make(map[string]int64),
		MarketDataType: marketDataType,
	}
}

// clone returns a copy safe to hand out while the reader keeps writing.
func (q *Quote) clone() *Quote {
	out := newQuote(q.MarketDataType)
	out.UpdatedAt = q.UpdatedAt
	for k, v := range q.Prices {
		out.Prices[k] = v
	}
	for k, v := range q.Sizes {
		out.Sizes[k] = v
	}
	return out
}

// ContractDetails is the gateway's extended description of a contract.
type ContractDetails struct {
	Contract       Contract `json:"contract"`
	MarketName     string   `json:"market_name,omitempty"`
	MinTick        float64  `json:"min_tick,omitempty"`
	PriceMagnifier int      `json:"price_magnifier,omitempty"`
	OrderTypes     string   `json:"order_types,omitempty"`
	ValidExchanges string   `json:"valid_exchanges,omitempty"`
	LongName       string   `json:"long_name,omitempty"`
	ContractMonth  string   `json:"contract_month,omitempty"`
	Industry       string   `json:"industry,omitempty"`
	Category       string   `json:"category,omitempty"`
	TimeZoneID     string   `json:"time_zone,omitempty"`
	TradingHours   string   `json:"trading_hours,omitempty"`
	LiquidHours    string   `json:"liquid_hours,omitempty"`
}

// OrderStatus is the gateway's execution state for a placed order.
type OrderStatus struct {
	OrderID       int64           `json:"order_id"`
	Status        string          `json:"status"`
	Filled        decimal.Decimal `json:"filled"`
	Remaining     decimal.Decimal `json:"remaining"`
	AvgFillPrice  float64         `json:"avg_fill_price"`
	PermID        int64           `json:"perm_id,omitempty"`
	LastFillPrice float64         `json:"last_fill_price,omitempty"`
	WhyHeld       string          `json:"why_held,omitempty"`
}

// OpenOrder pairs a working order with its contract.
type OpenOrder struct {
	OrderID    int64           `json:"order_id"`
	Contract   Contract        `json:"contract"`
	Action     string          `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	OrderType  string          `json:"order_type"`
	LimitPrice float64         `json:"limit_price,omitempty"`
	AuxPrice   float64         `json:"aux_price,omitempty"`
	TIF        string          `json:"tif,omitempty"`
	Status     string          `json:"status,omitempty"`
}

// ConnectionStatus describes the session for the status surfaces.
type ConnectionStatus struct {
	Connected       bool     `json:"connected"`
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	ClientID        int      `json:"client_id"`
	ServerVersion   int      `json:"server_version,omitempty"`
	ConnectionTime  string   `json:"connection_time,omitempty"`
	ManagedAccounts []string `json:"managed_accounts,omitempty"`
}
