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
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopmesh/shopmesh/internal/gateway/config"
	"github.com/shopmesh/shopmesh/internal/gateway/proxy"
	"github.com/shopmesh/shopmesh/pkg/resilience"
)

// Server is the API gateway HTTP server.
type Server struct {
	engine *gin.Engine
	port   string
}

// New wires the gateway: route table, per-upstream circuit breakers, CORS.
func New() (*Server, error) {
	cfg := config.GetConfig()

	routes := []proxy.Route{
		{Prefix: "/users", Service: "users", Target: cfg.Upstreams.Users},
		{Prefix: "/token", Service: "users", Target: cfg.Upstreams.Users},
		{Prefix: "/orders", Service: "orders", Target: cfg.Upstreams.Orders},
		{Prefix: "/sagas", Service: "orders", Target: cfg.Upstreams.Orders},
		{Prefix: "/notifications", Service: "notifications", Target: cfg.Upstreams.Notifications},
	}

	breakerConfig := resilience.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
	}

	metrics := resilience.NewMetrics("shopmesh", prometheus.DefaultRegisterer)
	executor := resilience.NewExecutor(resilience.NewRegistry(metrics), metrics)
	p := proxy.New(routes, executor, breakerConfig, cfg.Proxy.Timeout)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")

	engine := gin.New()
	engine.Use(gin.Recovery(), cors.New(corsConfig))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"service":  "gateway",
			"routes":   len(p.Routes()),
			"breakers": executor.Registry().Snapshots(),
		})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.NoRoute(p.Handle)

	return &Server{engine: engine, port: cfg.Server.Port}, nil
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	return s.engine.Run(":" + s.port)
}
