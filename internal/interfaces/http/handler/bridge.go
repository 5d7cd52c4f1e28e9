package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/chatbridge/internal/application/bridge"
	"github.com/erp/chatbridge/internal/infrastructure/logger"
)

// OrderLookup reads the order-to-session correlation
type OrderLookup interface {
	ResolveSession(ctx context.Context, order string) (string, bool, error)
	OrdersForSession(ctx context.Context, sessionID string) ([]string, error)
}

// StatusSource reports coordinator state
type StatusSource interface {
	Stats() bridge.Stats
}

// BridgeHandler exposes read-only views of the bridge
type BridgeHandler struct {
	orders OrderLookup
	status StatusSource
}

// NewBridgeHandler creates the handler. status may be nil.
func NewBridgeHandler(orders OrderLookup, status StatusSource) *BridgeHandler {
	return &BridgeHandler{orders: orders, status: status}
}

// OrderResponse is the session an order's replies are routed to
type OrderResponse struct {
	OrderNumber string `json:"order_number"`
	SessionID   string `json:"session_id"`
}

// SessionOrdersResponse lists the orders currently routed to a session
type SessionOrdersResponse struct {
	SessionID    string   `json:"session_id"`
	OrderNumbers []string `json:"order_numbers"`
}

// RegisterRoutes mounts the handler under the API group
func (h *BridgeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/orders/:number", h.GetOrder)
	rg.GET("/sessions/:id/orders", h.GetSessionOrders)
	if h.status != nil {
		rg.GET("/status", h.GetStatus)
	}
}

// GetOrder handles GET /orders/:number
func (h *BridgeHandler) GetOrder(c *gin.Context) {
	order := strings.TrimSpace(c.Param("number"))
	if order == "" {
		respondError(c, http.StatusBadRequest, CodeInvalidInput, "order number is required")
		return
	}

	sessionID, ok, err := h.orders.ResolveSession(c.Request.Context(), order)
	if err != nil {
		logger.L(c.Request.Context()).Error("order lookup failed", zap.String("order_number", order), zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, CodeUnavailable, "order store unavailable")
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, CodeNotFound, "order "+order+" is not registered")
		return
	}
	c.JSON(http.StatusOK, OrderResponse{OrderNumber: order, SessionID: sessionID})
}

// GetSessionOrders handles GET /sessions/:id/orders
func (h *BridgeHandler) GetSessionOrders(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("id"))
	if sessionID == "" {
		respondError(c, http.StatusBadRequest, CodeInvalidInput, "session id is required")
		return
	}

	orders, err := h.orders.OrdersForSession(c.Request.Context(), sessionID)
	if err != nil {
		logger.L(c.Request.Context()).Error("session order lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, CodeUnavailable, "order store unavailable")
		return
	}
	if orders == nil {
		orders = []string{}
	}
	c.JSON(http.StatusOK, SessionOrdersResponse{SessionID: sessionID, OrderNumbers: orders})
}

// GetStatus handles GET /status
func (h *BridgeHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Stats())
}
