// Package webhook is the HTTP surface of the order gateway. It accepts
// trade-action commands and relays them to the upstream order endpoint.
package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"tickcandles-v1/internal/execution"
	"tickcandles-v1/internal/model"
)

const (
	DefaultTimeout    = 15 * time.Second
	defaultOrderLimit = 50
	maxOrderLimit     = 500
)

// OrderPlacer forwards one command upstream.
type OrderPlacer interface {
	Place(ctx context.Context, cmd model.OrderCommand) (execution.Result, error)
}

// OrderLog reads the order journal.
type OrderLog interface {
	Recent(ctx context.Context, limit int) ([]model.OrderRecord, error)
	Ping(ctx context.Context) error
}

// Handler serves the order gateway routes.
type Handler struct {
	orders OrderPlacer
	log    OrderLog
	logger *slog.Logger
}

// NewHandler returns a Handler. orderLog may be nil when no journal is kept.
func NewHandler(orders OrderPlacer, orderLog OrderLog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{orders: orders, log: orderLog, logger: logger.With("component", "webhook")}
}

// Routes builds the gin engine.
func (h *Handler) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(accessLog(h.logger))
	router.Use(gin.Recovery())

	router.POST("/webhook", h.PlaceOrder)
	router.GET("/orders", h.ListOrders)
	router.GET("/healthz", h.Health)
	return router
}

// PlaceOrder handles POST /webhook.
func (h *Handler) PlaceOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	var cmd model.OrderCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		h.fail(c, err, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := h.orders.Place(ctx, cmd)
	switch cause := errors.Cause(err); {
	case err == nil:
	case cause == execution.ErrUnsupportedAction:
		h.fail(c, err, http.StatusBadRequest, execution.ErrUnsupportedAction.Error())
		return
	case cause == execution.ErrInvalidCommand:
		h.fail(c, err, http.StatusBadRequest, err.Error())
		return
	default:
		h.fail(c, err, http.StatusBadGateway, "upstream unavailable")
		return
	}

	if res.ClientOrderID != "" {
		c.Header("X-Client-Order-Id", res.ClientOrderID)
	}
	contentType := res.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(res.Status, contentType, res.Body)
}

// ListOrders handles GET /orders?limit=.
func (h *Handler) ListOrders(c *gin.Context) {
	if h.log == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order journal disabled"})
		return
	}
	limit := defaultOrderLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxOrderLimit {
			h.fail(c, errors.Errorf("bad limit %q", s), http.StatusBadRequest,
				"limit must be between 1 and "+strconv.Itoa(maxOrderLimit))
			return
		}
		limit = n
	}

	recs, err := h.log.Recent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": recs, "count": len(recs)})
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	journal := "disabled"
	if h.log != nil {
		journal = "ok"
		if err := h.log.Ping(c.Request.Context()); err != nil {
			status, code, journal = "degraded", http.StatusServiceUnavailable, err.Error()
		}
	}
	c.JSON(code, gin.H{
		"status":    status,
		"journal":   journal,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) fail(c *gin.Context, err error, code int, msg string) {
	id := requestID(c)
	h.logger.Warn("request failed",
		"request_id", id,
		"path", c.Request.URL.Path,
		"status", code,
		"error", err,
	)
	c.JSON(code, gin.H{"error": msg, "request_id": id})
}
