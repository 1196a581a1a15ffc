package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

func resourceContents(uri string, response map[string]interface{}) ([]mcp.ResourceContents, error) {
	response["resource_uri"] = uri
	response["timestamp"] = time.Now().UTC()

	jsonData, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:  uri,
			Text: string(jsonData),
		},
	}, nil
}

func (s *Server) handlePositionsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	positions, err := s.gateway.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	return resourceContents(request.Params.URI, map[string]interface{}{
		"total_count": len(positions),
		"positions":   positions,
	})
}

func (s *Server) handleAccountSummaryResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	values, err := s.gateway.AccountSummary(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read account summary: %w", err)
	}

	return resourceContents(request.Params.URI, map[string]interface{}{
		"total_count": len(values),
		"values":      values,
	})
}

func (s *Server) handleConnectionResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	status := s.gateway.Status()

	return resourceContents(request.Params.URI, map[string]interface{}{
		"connection": status,
	})
}

func (s *Server) handleOrdersResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	orders, err := s.repos.Orders.List(50)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return resourceContents(request.Params.URI, map[string]interface{}{
		"total_count": len(orders),
		"orders":      orders,
	})
}
