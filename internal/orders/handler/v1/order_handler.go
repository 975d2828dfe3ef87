// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package v1

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopmesh/shopmesh/internal/orders/client"
	"github.com/shopmesh/shopmesh/internal/orders/model"
	"github.com/shopmesh/shopmesh/internal/orders/repository"
	"github.com/shopmesh/shopmesh/internal/orders/service"
	"github.com/shopmesh/shopmesh/internal/pkg/middleware"
	"github.com/shopmesh/shopmesh/pkg/logger"
	"github.com/shopmesh/shopmesh/pkg/resilience"
	"github.com/shopmesh/shopmesh/pkg/saga"
)

// OrderHandler serves the orders service HTTP API.
type OrderHandler struct {
	orderService service.OrderService
	verifier     client.UserVerifier
	jwtSecret    []byte
}

// NewOrderHandler creates the handler. verifier may be nil, in which case
// order creation trusts the locally verified token without the remote
// profile check.
func NewOrderHandler(orderService service.OrderService, verifier client.UserVerifier, jwtSecret []byte) *OrderHandler {
	return &OrderHandler{orderService: orderService, verifier: verifier, jwtSecret: jwtSecret}
}

// RegisterRoutes registers the HTTP routes on the engine.
func (h *OrderHandler) RegisterRoutes(router *gin.Engine) {
	auth := middleware.RequireAuth(h.jwtSecret)
	router.POST("/orders", auth, h.Create)
	router.GET("/orders/:id", auth, h.Get)
	router.GET("/sagas/:id", auth, h.GetSaga)
}

// Create handles POST /orders.
func (h *OrderHandler) Create(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req model.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.verifier != nil {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if _, err := h.verifier.Verify(c.Request.Context(), raw); err != nil {
			h.writeVerifyError(c, err)
			return
		}
	}

	order, err := h.orderService.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		logger.GetLogger().Error("order creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, order.ToResponse())
}

// writeVerifyError maps a users-service verification failure to a response.
// A fast rejection from the breaker carries the remaining cooldown, exposed
// as Retry-After so well-behaved clients back off.
func (h *OrderHandler) writeVerifyError(c *gin.Context, err error) {
	var openErr *resilience.CircuitOpenError
	switch {
	case errors.As(err, &openErr):
		c.Header("Retry-After", fmt.Sprintf("%d", retryAfterSeconds(openErr)))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "users service unavailable"})
	case errors.Is(err, client.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	default:
		logger.GetLogger().Error("users verification failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "users service unavailable"})
	}
}

func retryAfterSeconds(err *resilience.CircuitOpenError) int {
	secs := int(err.RetryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Get handles GET /orders/:id. Orders are visible to their owner and to
// admins only.
func (h *OrderHandler) Get(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, err := h.orderService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		logger.GetLogger().Error("order lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if order.UserID != claims.UserID && claims.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, order.ToResponse())
}

// GetSaga handles GET /sagas/:id, the observability surface of a running
// or finished fulfillment transaction.
func (h *OrderHandler) GetSaga(c *gin.Context) {
	s, err := h.orderService.GetSaga(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, saga.ErrSagaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "saga not found"})
			return
		}
		logger.GetLogger().Error("saga lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, s)
}
