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

package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmesh/shopmesh/pkg/resilience"
)

func newGateway(routes []Route, breakerConfig resilience.Config, timeout time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	executor := resilience.NewExecutor(resilience.NewRegistry(nil), nil)
	p := New(routes, executor, breakerConfig, timeout)

	router := gin.New()
	router.NoRoute(p.Handle)
	return router
}

func relaxedBreaker() resilience.Config {
	return resilience.Config{
		FailureThreshold: 100,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 1,
	}
}

func TestForwardsToMatchedRoute(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Upstream", "users")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(r.URL.Path + "?" + r.URL.RawQuery + " auth=" + r.Header.Get("Authorization") + " body=" + string(body)))
	}))
	defer upstream.Close()

	router := newGateway([]Route{
		{Prefix: "/users", Service: "users", Target: upstream.URL},
	}, relaxedBreaker(), time.Second)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/users/me?verbose=1", strings.NewReader("hello"))
	req.Header.Set("Authorization", "Bearer abc")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "users", w.Header().Get("X-Upstream"))
	assert.Contains(t, w.Body.String(), "/users/me?verbose=1")
	assert.Contains(t, w.Body.String(), "auth=Bearer abc")
	assert.Contains(t, w.Body.String(), "body=hello")
}

func TestUnknownRouteIs404(t *testing.T) {
	router := newGateway([]Route{
		{Prefix: "/users", Service: "users", Target: "http://localhost:1"},
	}, relaxedBreaker(), time.Second)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payments/1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrefixMatchesWholeSegments(t *testing.T) {
	router := newGateway([]Route{
		{Prefix: "/orders", Service: "orders", Target: "http://localhost:1"},
	}, relaxedBreaker(), time.Second)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ordersummary", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnreachableUpstreamIs503(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := upstream.URL
	upstream.Close()

	router := newGateway([]Route{
		{Prefix: "/orders", Service: "orders", Target: target},
	}, relaxedBreaker(), time.Second)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUpstream500Is503(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	router := newGateway([]Route{
		{Prefix: "/orders", Service: "orders", Target: upstream.URL},
	}, relaxedBreaker(), time.Second)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSlowUpstreamIs504(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer upstream.Close()

	router := newGateway([]Route{
		{Prefix: "/orders", Service: "orders", Target: upstream.URL},
	}, relaxedBreaker(), 50*time.Millisecond)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestBreakerOpensAndFastFails(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := upstream.URL
	upstream.Close()

	router := newGateway([]Route{
		{Prefix: "/orders", Service: "orders", Target: target},
	}, resilience.Config{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 1,
	}, time.Second)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Empty(t, w.Header().Get("Retry-After"))
	}

	// Threshold reached; the next request must be rejected by the breaker
	// without touching the network.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "open")
}
