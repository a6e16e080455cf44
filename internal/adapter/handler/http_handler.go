package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/core/service"
)

// InventoryService is the engine surface exposed over HTTP and gRPC.
type InventoryService interface {
	ApplyStockDelta(ctx context.Context, itemID int64, delta int, actorID string) (service.StockChange, error)
	GetItem(ctx context.Context, itemID int64) (*domain.Item, error)
	ListItems(ctx context.Context) ([]domain.Item, error)
	CreateItem(ctx context.Context, in domain.NewItem) (*domain.Item, error)
	DeactivateItem(ctx context.Context, itemID int64) (*domain.Item, error)
	ListCritical(ctx context.Context) ([]domain.Item, error)
	ListLedger(ctx context.Context, itemID int64) ([]domain.LedgerEntry, error)
	ListLedgerByDateRange(ctx context.Context, r domain.LedgerRange) ([]domain.LedgerEntry, error)
	ListAlerts(ctx context.Context, itemID *int64) ([]domain.Alert, error)
}

type HTTPHandler struct {
	inventory InventoryService
	auth      *Authenticator
	logger    *zap.Logger
}

type UpdateStockRequest struct {
	Delta int `json:"delta"`
}

type CreateItemRequest struct {
	Name         string `json:"name" binding:"required"`
	Stock        int    `json:"stock" binding:"gte=0"`
	MinimumStock int    `json:"minimum_stock" binding:"gte=0"`
}

type StockChangeResponse struct {
	ItemID   int64 `json:"item_id"`
	NewStock int   `json:"new_stock"`
}

type ItemResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Stock        int       `json:"stock"`
	MinimumStock int       `json:"minimum_stock"`
	State        string    `json:"state"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type LedgerEntryResponse struct {
	ID        string    `json:"id"`
	ItemID    int64     `json:"item_id"`
	Delta     int       `json:"delta"`
	Kind      string    `json:"kind"`
	ActorID   string    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

type AlertResponse struct {
	ID        string    `json:"id"`
	ItemID    int64     `json:"item_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHTTPHandler(inventory InventoryService, auth *Authenticator, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		inventory: inventory,
		auth:      auth,
		logger:    logger.Named("http"),
	}
}

// NewRouter builds the gin engine with tracing, recovery and access logs.
// A non-nil metrics handler is served at /metrics.
func NewRouter(h *HTTPHandler, serviceName string, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(otelgin.Middleware(serviceName))
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.logger))
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	h.RegisterRoutes(r)
	return r
}

func (h *HTTPHandler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api/v1")
	api.GET("/health", h.HealthCheck)

	authed := api.Group("", h.auth.Authenticate())
	authed.GET("/items", h.ListItems)
	authed.GET("/items/:id", h.GetItem)

	admin := authed.Group("", h.auth.RequireAdmin())
	admin.POST("/items", h.CreateItem)
	admin.DELETE("/items/:id", h.DeactivateItem)
	admin.PATCH("/items/:id/stock", h.UpdateStock)
	admin.GET("/items/critical", h.ListCritical)
	admin.GET("/items/:id/ledger", h.ListItemLedger)
	admin.GET("/ledger", h.ListLedgerByRange)
	admin.GET("/alerts", h.ListAlerts)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) UpdateStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	change, err := h.inventory.ApplyStockDelta(c.Request.Context(), id, req.Delta, actorID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, StockChangeResponse{ItemID: change.ItemID, NewStock: change.NewStock})
}

func (h *HTTPHandler) GetItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := h.inventory.GetItem(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(*item))
}

func (h *HTTPHandler) ListItems(c *gin.Context) {
	items, err := h.inventory.ListItems(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponses(items))
}

func (h *HTTPHandler) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	item, err := h.inventory.CreateItem(c.Request.Context(), domain.NewItem{
		Name:         req.Name,
		Stock:        req.Stock,
		MinimumStock: req.MinimumStock,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toItemResponse(*item))
}

func (h *HTTPHandler) DeactivateItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := h.inventory.DeactivateItem(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(*item))
}

func (h *HTTPHandler) ListCritical(c *gin.Context) {
	items, err := h.inventory.ListCritical(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponses(items))
}

func (h *HTTPHandler) ListItemLedger(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	entries, err := h.inventory.ListLedger(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLedgerResponses(entries))
}

// ListLedgerByRange serves GET /ledger?start=&end=&item_id= with RFC3339
// bounds, both inclusive.
func (h *HTTPHandler) ListLedgerByRange(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "start must be an RFC3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "end must be an RFC3339 timestamp")
		return
	}
	itemID, ok := optionalItemID(c)
	if !ok {
		return
	}

	entries, err := h.inventory.ListLedgerByDateRange(c.Request.Context(), domain.LedgerRange{
		Start:  start,
		End:    end,
		ItemID: itemID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLedgerResponses(entries))
}

func (h *HTTPHandler) ListAlerts(c *gin.Context) {
	itemID, ok := optionalItemID(c)
	if !ok {
		return
	}

	alerts, err := h.inventory.ListAlerts(c.Request.Context(), itemID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp = append(resp, AlertResponse{ID: a.ID, ItemID: a.ItemID, Message: a.Message, CreatedAt: a.CreatedAt})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		abortWithError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		abortWithError(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		abortWithError(c, http.StatusBadRequest, "INSUFFICIENT_STOCK", err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		abortWithError(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func optionalItemID(c *gin.Context) (*int64, bool) {
	raw := c.Query("item_id")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "item_id must be a positive integer")
		return nil, false
	}
	return &id, true
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func toItemResponse(i domain.Item) ItemResponse {
	return ItemResponse{
		ID:           i.ID,
		Name:         i.Name,
		Stock:        i.Stock,
		MinimumStock: i.MinimumStock,
		State:        string(i.State),
		Version:      i.Version,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

func toItemResponses(items []domain.Item) []ItemResponse {
	resp := make([]ItemResponse, 0, len(items))
	for _, i := range items {
		resp = append(resp, toItemResponse(i))
	}
	return resp
}

func toLedgerResponses(entries []domain.LedgerEntry) []LedgerEntryResponse {
	resp := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, LedgerEntryResponse{
			ID:        e.ID,
			ItemID:    e.ItemID,
			Delta:     e.Delta,
			Kind:      string(e.Kind),
			ActorID:   e.ActorID,
			CreatedAt: e.CreatedAt,
		})
	}
	return resp
}
