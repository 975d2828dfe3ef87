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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shopmesh/shopmesh/internal/notifications/config"
	"github.com/shopmesh/shopmesh/internal/notifications/consumer"
	"github.com/shopmesh/shopmesh/internal/notifications/email"
	"github.com/shopmesh/shopmesh/pkg/logger"
	"github.com/shopmesh/shopmesh/pkg/messaging"
	"github.com/shopmesh/shopmesh/pkg/messaging/rabbitmq"
)

// Server is the notifications service: the order event consumer plus a
// small HTTP surface for health and metrics.
type Server struct {
	engine     *gin.Engine
	port       string
	consumer   *consumer.Consumer
	subscriber messaging.EventSubscriber
}

// New wires the notifications service.
func New() (*Server, error) {
	cfg := config.GetConfig()

	subscriber, err := rabbitmq.NewSubscriber(rabbitmq.Config{URL: cfg.Broker.URL})
	if err != nil {
		return nil, err
	}

	sender := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notifications"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		engine:     engine,
		port:       cfg.Server.Port,
		consumer:   consumer.New(sender),
		subscriber: subscriber,
	}, nil
}

// Run starts the order event consumer and serves HTTP until the listener
// socket fails.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := s.consumer.Start(ctx, s.subscriber); err != nil {
			logger.GetLogger().Error("order event consumer stopped", zap.Error(err))
		}
	}()

	return s.engine.Run(":" + s.port)
}
