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

package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shopmesh/shopmesh/internal/orders/client"
	"github.com/shopmesh/shopmesh/internal/orders/config"
	v1 "github.com/shopmesh/shopmesh/internal/orders/handler/v1"
	"github.com/shopmesh/shopmesh/internal/orders/listener"
	"github.com/shopmesh/shopmesh/internal/orders/model"
	"github.com/shopmesh/shopmesh/internal/orders/repository"
	"github.com/shopmesh/shopmesh/internal/orders/service"
	"github.com/shopmesh/shopmesh/internal/pkg/db"
	"github.com/shopmesh/shopmesh/pkg/logger"
	"github.com/shopmesh/shopmesh/pkg/messaging"
	"github.com/shopmesh/shopmesh/pkg/messaging/rabbitmq"
	"github.com/shopmesh/shopmesh/pkg/resilience"
	"github.com/shopmesh/shopmesh/pkg/saga"
)

// Server is the orders service: the HTTP API plus the saga step listener.
type Server struct {
	engine     *gin.Engine
	port       string
	listener   *listener.Listener
	subscriber messaging.EventSubscriber
}

// New wires the orders service: database, broker, saga coordinator,
// users-service client behind its circuit breaker, HTTP handlers.
func New() (*Server, error) {
	cfg := config.GetConfig()

	gdb, err := db.Open(db.Options{
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		DBName:   cfg.Database.DBName,
	})
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&model.Order{}); err != nil {
		return nil, err
	}

	brokerConfig := rabbitmq.Config{URL: cfg.Broker.URL}
	publisher, err := rabbitmq.NewPublisher(brokerConfig)
	if err != nil {
		return nil, err
	}
	subscriber, err := rabbitmq.NewSubscriber(brokerConfig)
	if err != nil {
		return nil, err
	}

	coordinator, err := saga.NewCoordinator(saga.Config{Publisher: publisher})
	if err != nil {
		return nil, err
	}

	metrics := resilience.NewMetrics("shopmesh", prometheus.DefaultRegisterer)
	executor := resilience.NewExecutor(resilience.NewRegistry(metrics), metrics)
	users := client.NewUsersClient(cfg.Users.BaseURL, executor)

	orders := repository.NewOrderRepository(gdb)
	orderService := service.NewOrderService(orders, coordinator, publisher)
	handler := v1.NewOrderHandler(orderService, users, []byte(cfg.JWT.Secret))

	engine := gin.New()
	engine.Use(gin.Recovery())
	handler.RegisterRoutes(engine)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"service":  "orders",
			"breakers": executor.Registry().Snapshots(),
		})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		engine:     engine,
		port:       cfg.Server.Port,
		listener:   listener.New(coordinator, orders),
		subscriber: subscriber,
	}, nil
}

// Run starts the saga step listener and serves HTTP until the listener
// socket fails.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := s.listener.Start(ctx, s.subscriber); err != nil {
			logger.GetLogger().Error("saga step listener stopped", zap.Error(err))
		}
	}()

	return s.engine.Run(":" + s.port)
}
