// Package api provides the HTTP status API for the IBKR MCP server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ibmcp/internal/config"
	"ibmcp/internal/db/repositories"
	"ibmcp/internal/logging"
	"ibmcp/internal/mcp"
	"ibmcp/internal/version"
)

type Server struct {
	cfg        *config.Config
	gateway    mcp.Gateway
	repos      *repositories.Repositories
	httpServer *http.Server
}

func New(cfg *config.Config, gateway mcp.Gateway, repos *repositories.Repositories) *Server {
	return &Server{
		cfg:     cfg,
		gateway: gateway,
		repos:   repos,
	}
}

func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS for browser dashboards hitting the status endpoints
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", s.healthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/connection", s.getConnection)
		v1.GET("/positions", s.getPositions)
		v1.GET("/orders", s.listOrders)
		v1.GET("/accounts/:account/snapshots", s.getAccountSnapshots)
	}

	return router
}

func (s *Server) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.APIPort),
		Handler: s.router(),
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("API server error: %v", err)
		}
	}()

	logging.Info("Status API listening on :%d", s.cfg.APIPort)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "ibmcp-api",
		"build":   version.GetBuildInfo(),
	})
}

func (s *Server) getConnection(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connection": s.gateway.Status()})
}

func (s *Server) getPositions(c *gin.Context) {
	if !s.gateway.IsConnected() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "not connected to IBKR gateway"})
		return
	}

	positions, err := s.gateway.Positions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(positions),
		"positions": positions,
	})
}

func (s *Server) listOrders(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	orders, err := s.repos.Orders.List(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(orders),
		"orders": orders,
	})
}

func (s *Server) getAccountSnapshots(c *gin.Context) {
	account := c.Param("account")

	if tag := c.Query("tag"); tag != "" {
		limit := 100
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = parsed
		}

		history, err := s.repos.AccountSnapshots.History(account, tag, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"account":   account,
			"tag":       tag,
			"count":     len(history),
			"snapshots": history,
		})
		return
	}

	latest, err := s.repos.AccountSnapshots.Latest(account)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":   account,
		"count":     len(latest),
		"snapshots": latest,
	})
}
