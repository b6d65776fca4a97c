package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/lifecycle"
)

type handler struct {
	orders OrderService
	logger *log.Entry
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *handler) createOrder(c *gin.Context) {
	var req lifecycle.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handler) listForUser(c *gin.Context) {
	orders, err := h.orders.ListOrdersForUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *handler) listForArtist(c *gin.Context) {
	orders, err := h.orders.ListOrdersForArtist(c.Request.Context(), c.Param("artistId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// updateStatus принимает статус из query (?status=) или из JSON-тела.
func (h *handler) updateStatus(c *gin.Context) {
	raw := c.Query("status")
	if raw == "" {
		var body statusRequest
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		raw = body.Status
	}
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	order, err := h.orders.TransitionStatus(c.Request.Context(), c.Param("id"), domain.OrderStatus(raw))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handler) deleteOrder(c *gin.Context) {
	if err := h.orders.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) fail(c *gin.Context, err error) {
	code := statusFor(err)
	_ = c.Error(err)
	if code == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("unexpected error")
		c.JSON(code, gin.H{"error": "internal error"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// statusFor переводит доменную ошибку в HTTP-код.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrReservationFailed), domain.IsVersionConflict(err):
		return http.StatusConflict
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
