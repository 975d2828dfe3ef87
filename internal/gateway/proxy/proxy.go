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

// Package proxy forwards gateway requests to the owning service by path
// prefix, one circuit breaker per upstream. A dead upstream degrades to
// fast 503s instead of tying the gateway's handlers up in connect attempts.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopmesh/shopmesh/pkg/logger"
	"github.com/shopmesh/shopmesh/pkg/resilience"
)

// Route maps one path prefix to an upstream service.
type Route struct {
	// Prefix is the first path segment, e.g. "/orders". Matching is by
	// whole segment: "/orders" matches "/orders" and "/orders/x", never
	// "/ordersx".
	Prefix string `json:"prefix"`

	// Service names the upstream; it is also the breaker name.
	Service string `json:"service"`

	// Target is the upstream base URL.
	Target string `json:"-"`
}

// Proxy is the forwarding core of the gateway.
type Proxy struct {
	routes        []Route
	executor      *resilience.Executor
	breakerConfig resilience.Config
	httpClient    *http.Client
	timeout       time.Duration
}

// New creates a proxy over the given route table. timeout bounds one
// upstream round trip; zero means 10s.
func New(routes []Route, executor *resilience.Executor, breakerConfig resilience.Config, timeout time.Duration) *Proxy {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Proxy{
		routes:        routes,
		executor:      executor,
		breakerConfig: breakerConfig,
		httpClient:    &http.Client{},
		timeout:       timeout,
	}
}

// Routes returns the route table for the health endpoint.
func (p *Proxy) Routes() []Route {
	return p.routes
}

// match returns the route owning the path, or nil.
func (p *Proxy) match(path string) *Route {
	for i := range p.routes {
		prefix := p.routes[i].Prefix
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return &p.routes[i]
		}
	}
	return nil
}

// Handle is the gateway's catch-all gin handler.
func (p *Proxy) Handle(c *gin.Context) {
	route := p.match(c.Request.URL.Path)
	if route == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no route"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), p.timeout)
	defer cancel()

	resp, err := resilience.Call(ctx, p.executor, route.Service, func() (*http.Response, error) {
		return p.forward(ctx, route, c.Request)
	}, p.breakerConfig)
	if err != nil {
		p.writeError(c, route, err)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		logger.GetLogger().Warn("response copy interrupted",
			zap.String("service", route.Service),
			zap.Error(err))
	}
}

// forward replays the inbound request against the route's target.
func (p *Proxy) forward(ctx context.Context, route *Route, in *http.Request) (*http.Response, error) {
	target := route.Target + in.URL.Path
	if in.URL.RawQuery != "" {
		target += "?" + in.URL.RawQuery
	}

	out, err := http.NewRequestWithContext(ctx, in.Method, target, in.Body)
	if err != nil {
		return nil, err
	}
	for key, values := range in.Header {
		if key == "Host" || key == "Connection" {
			continue
		}
		for _, value := range values {
			out.Header.Add(key, value)
		}
	}

	resp, err := p.httpClient.Do(out)
	if err != nil {
		return nil, err
	}
	// 5xx from the upstream counts as a dependency failure so the breaker
	// sees unhealthy services, not just unreachable ones.
	if resp.StatusCode >= http.StatusInternalServerError {
		resp.Body.Close()
		return nil, fmt.Errorf("%s returned status %d", route.Service, resp.StatusCode)
	}
	return resp, nil
}

// writeError maps a failed upstream call to the gateway response: fast
// breaker rejection → 503 with Retry-After, timeout → 504, anything else
// (connect refused, upstream 5xx) → 503.
func (p *Proxy) writeError(c *gin.Context, route *Route, err error) {
	log := logger.GetLogger()

	var openErr *resilience.CircuitOpenError
	if errors.As(err, &openErr) {
		secs := int(openErr.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", fmt.Sprintf("%d", secs))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   fmt.Sprintf("%s is unavailable", route.Service),
			"breaker": "open",
		})
		return
	}
	if errors.Is(err, resilience.ErrProbeInFlight) {
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   fmt.Sprintf("%s is unavailable", route.Service),
			"breaker": "half_open",
		})
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn("upstream timed out",
			zap.String("service", route.Service),
			zap.Error(err))
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error": fmt.Sprintf("%s timed out", route.Service),
		})
		return
	}

	log.Warn("upstream call failed",
		zap.String("service", route.Service),
		zap.Error(err))
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error": fmt.Sprintf("%s is unavailable", route.Service),
	})
}
