package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"agrimart-orders/internal/models"
	"agrimart-orders/internal/service"
	"agrimart-orders/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orderService *service.OrderService
	jwtSecret    []byte
	readiness    map[string]Pinger
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(orderService *service.OrderService, jwtSecret string, readiness map[string]Pinger) *Handler {
	return &Handler{
		orderService: orderService,
		jwtSecret:    []byte(jwtSecret),
		readiness:    readiness,
		logger:       util.ComponentLogger("http"),
	}
}

// OrderIDRequest identifies the order for transitions that carry no other input
type OrderIDRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	orders := router.Group("/api/orders", AuthMiddleware(h.jwtSecret))
	{
		orders.POST("/place", h.placeOrder)
		orders.POST("/confirm-shipment", h.confirmShipment)
		orders.POST("/confirm-delivery", h.confirmDelivery)
		orders.POST("/request-return", h.requestReturn)
		orders.POST("/confirm-return", h.confirmReturn)
		orders.POST("/extend-rental", h.extendRental)
		orders.POST("/cancel", h.cancelOrder)
		orders.POST("/seller-viewed", h.markSellerViewed)
		orders.GET("/my-orders", h.myOrders)
		orders.GET("/seller-orders", h.sellerOrders)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.readiness {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.orderService.PlaceOrder(c.Request.Context(), currentUser(c), &req)
	h.respondOrder(c, http.StatusCreated, order, err)
}

func (h *Handler) confirmShipment(c *gin.Context) {
	var req OrderIDRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.orderService.ConfirmShipment(c.Request.Context(), currentUser(c), req.OrderID)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) confirmDelivery(c *gin.Context) {
	var req service.ConfirmDeliveryRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.orderService.ConfirmDelivery(c.Request.Context(), currentUser(c), &req)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) requestReturn(c *gin.Context) {
	var req service.RequestReturnRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.orderService.RequestReturn(c.Request.Context(), currentUser(c), &req)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) confirmReturn(c *gin.Context) {
	var req OrderIDRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.orderService.ConfirmReturn(c.Request.Context(), currentUser(c), req.OrderID)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) extendRental(c *gin.Context) {
	var req service.ExtendRentalRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.orderService.ExtendRental(c.Request.Context(), currentUser(c), &req)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	var req OrderIDRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.orderService.CancelOrder(c.Request.Context(), currentUser(c), req.OrderID)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) markSellerViewed(c *gin.Context) {
	var req OrderIDRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.orderService.MarkSellerViewed(c.Request.Context(), currentUser(c), req.OrderID)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) myOrders(c *gin.Context) {
	orders, err := h.orderService.ListBuyerOrders(c.Request.Context(), currentUser(c))
	h.respondOrders(c, orders, err)
}

func (h *Handler) sellerOrders(c *gin.Context) {
	orders, err := h.orderService.ListSellerOrders(c.Request.Context(), currentUser(c))
	h.respondOrders(c, orders, err)
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func (h *Handler) respondOrder(c *gin.Context, status int, order *models.Order, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, gin.H{
		"success": true,
		"order":   order,
	})
}

func (h *Handler) respondOrders(c *gin.Context, orders []models.OrderListing, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	if orders == nil {
		orders = []models.OrderListing{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(orders),
		"orders":  orders,
	})
}

// respondError maps business rejections to client statuses. Internal
// failures are logged and reported generically.
func (h *Handler) respondError(c *gin.Context, err error) {
	e, ok := service.AsError(err)
	if !ok {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Server error",
		})
		return
	}

	c.JSON(statusFor(e.Kind), gin.H{
		"success": false,
		"message": e.Message,
	})
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	case service.KindValidation, service.KindState:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
