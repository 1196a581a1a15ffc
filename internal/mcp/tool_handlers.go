package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ibmcp/internal/ibkr"
	"ibmcp/internal/logging"
	"ibmcp/pkg/models"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"
)

// contractFromRequest builds a contract from the common instrument
// arguments shared by the market data and order tools.
func contractFromRequest(request mcp.CallToolRequest) (ibkr.Contract, error) {
	symbol := strings.TrimSpace(request.GetString("symbol", ""))
	if symbol == "" {
		return ibkr.Contract{}, fmt.Errorf("symbol is required")
	}

	contract := ibkr.Stock(strings.ToUpper(symbol),
		strings.ToUpper(request.GetString("exchange", "")),
		strings.ToUpper(request.GetString("currency", "")))
	if secType := request.GetString("sec_type", ""); secType != "" {
		contract.SecType = strings.ToUpper(secType)
	}
	return contract, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetPositions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	positions, err := s.gateway.Positions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get positions: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"count":     len(positions),
		"positions": positions,
	})
}

func (s *Server) handleGetAccountSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var tags []string
	if raw := request.GetString("tags", ""); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	values, err := s.gateway.AccountSummary(ctx, tags)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get account summary: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"count":  len(values),
		"values": values,
	})
}

func (s *Server) handleGetMarketSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contract, err := contractFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.ensureConnected(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	quote, err := s.gateway.SnapshotMarketData(ctx, contract)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get market data for %s: %v", contract.Symbol, err)), nil
	}

	return jsonResult(map[string]interface{}{
		"contract": contract,
		"quote":    quote,
	})
}

func (s *Server) handleGetContractDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contract, err := contractFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.ensureConnected(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	details, err := s.gateway.ContractDetails(ctx, contract)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get contract details for %s: %v", contract.Symbol, err)), nil
	}

	return jsonResult(map[string]interface{}{
		"count":   len(details),
		"details": details,
	})
}

func (s *Server) handlePlaceOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contract, err := contractFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	quantity, err := decimal.NewFromString(request.GetString("quantity", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid quantity: %v", err)), nil
	}

	order := ibkr.Order{
		Action:    strings.ToUpper(request.GetString("action", "")),
		Quantity:  quantity,
		OrderType: strings.ToUpper(request.GetString("order_type", "")),
		TIF:       strings.ToUpper(request.GetString("tif", "")),
		Account:   request.GetString("account", ""),
	}
	if transmit := request.GetBool("transmit", true); !transmit {
		order.Transmit = &transmit
	}
	if limit := request.GetFloat("limit_price", 0); limit != 0 {
		order.LimitPrice = &limit
	}
	if aux := request.GetFloat("aux_price", 0); aux != 0 {
		order.AuxPrice = &aux
	}
	if err := order.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.ensureConnected(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// The client ref identifies this submission in the audit trail even
	// when the gateway rejects it before assigning an order id.
	clientRef := uuid.New().String()
	order.OrderRef = clientRef

	status, placeErr := s.gateway.PlaceOrder(ctx, contract, order)

	record := &models.OrderRecord{
		ClientRef:   clientRef,
		Account:     order.Account,
		Symbol:      contract.Symbol,
		SecType:     contract.SecType,
		Action:      order.Action,
		Quantity:    order.Quantity.String(),
		OrderType:   order.OrderType,
		LimitPrice:  order.LimitPrice,
		AuxPrice:    order.AuxPrice,
		TimeInForce: order.TIF,
	}
	if placeErr != nil {
		record.Status = "Rejected"
		record.StatusDetail = placeErr.Error()
	} else {
		record.OrderID = status.OrderID
		record.Status = status.Status
	}
	if _, err := s.repos.Orders.Create(record); err != nil {
		logging.Error("Failed to record order submission %s: %v", clientRef, err)
	}

	if placeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Order rejected: %v", placeErr)), nil
	}

	return jsonResult(map[string]interface{}{
		"client_ref": clientRef,
		"status":     status,
	})
}

func (s *Server) handleCancelOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orderID := int64(request.GetFloat("order_id", 0))
	if orderID <= 0 {
		return mcp.NewToolResultError("order_id is required"), nil
	}

	if err := s.ensureConnected(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.gateway.CancelOrder(ctx, orderID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to cancel order %d: %v", orderID, err)), nil
	}

	if err := s.repos.Orders.UpdateStatus(orderID, "PendingCancel", "cancel requested"); err != nil {
		logging.Error("Failed to record cancel for order %d: %v", orderID, err)
	}

	return jsonResult(map[string]interface{}{
		"order_id": orderID,
		"status":   "PendingCancel",
	})
}

func (s *Server) handleListOpenOrders(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	orders, err := s.gateway.OpenOrders(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list open orders: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"count":  len(orders),
		"orders": orders,
	})
}

func (s *Server) handleGetServerTime(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	serverTime, err := s.gateway.CurrentTime(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get server time: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"server_time": serverTime,
		"unix":        serverTime.Unix(),
	})
}
