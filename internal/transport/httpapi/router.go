package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/lifecycle"
)

// OrderService — операции жизненного цикла заказа, доступные через REST.
type OrderService interface {
	CreateOrder(ctx context.Context, req lifecycle.CreateOrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrdersForArtist(ctx context.Context, artistID string) ([]domain.Order, error)
	TransitionStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// NewRouter собирает gin-роутер REST API заказов.
func NewRouter(orders OrderService, logger *log.Entry) *gin.Engine {
	if logger == nil {
		logger = log.WithField("component", "http")
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), PrometheusMiddleware())

	h := &handler{orders: orders, logger: logger}

	api := router.Group("/api")
	api.POST("/orders", h.createOrder)
	api.GET("/orders/:id", h.getOrder)
	api.PUT("/orders/:id/status", h.updateStatus)
	api.DELETE("/orders/:id", h.deleteOrder)
	api.GET("/orders/user/:userId", h.listForUser)
	api.GET("/users/:userId/orders", h.listForUser)
	api.GET("/artists/:artistId/orders", h.listForArtist)

	return router
}

func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(log.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("error", c.Errors.Last().Error())
		}
		if c.Writer.Status() >= 500 {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}
