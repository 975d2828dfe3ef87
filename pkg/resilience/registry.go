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

package resilience

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/shopmesh/shopmesh/pkg/logger"
)

// Registry owns one circuit breaker per downstream dependency name. It is
// constructed once at process start and passed to everything that makes
// outbound calls; breakers are created lazily on first use and live for the
// lifetime of the process.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	metrics  *Metrics
}

// NewRegistry creates an empty breaker registry. metrics may be nil when
// Prometheus instrumentation is not wanted (tests).
func NewRegistry(metrics *Metrics) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		metrics:  metrics,
	}
}

// GetBreaker returns the breaker for the named dependency, creating it on
// first use. The first caller's configuration wins; configuration passed on
// later calls for the same name is ignored. Concurrent first-time lookups
// for one name yield exactly one instance.
func (r *Registry) GetBreaker(name string, config ...Config) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg.OnStateChange = r.chainStateChange(cfg.OnStateChange)

	cb, err := NewCircuitBreaker(name, cfg)
	if err != nil {
		// Invalid tuning falls back to defaults rather than leaving the
		// dependency unguarded.
		logger.GetLogger().Warn("invalid circuit breaker config, using defaults",
			zap.String("circuit", name), zap.Error(err))
		cfg = DefaultConfig()
		cfg.OnStateChange = r.chainStateChange(nil)
		cb, _ = NewCircuitBreaker(name, cfg)
	}
	r.breakers[name] = cb
	return cb
}

func (r *Registry) chainStateChange(next func(string, State, State)) func(string, State, State) {
	return func(name string, from, to State) {
		if r.metrics != nil {
			r.metrics.RecordStateChange(name, to)
		}
		if next != nil {
			next(name, from, to)
		}
	}
}

// Snapshots returns the stats of every registered breaker, sorted by name,
// for the monitoring endpoints.
func (r *Registry) Snapshots() []Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Stats, 0, len(r.breakers))
	for _, cb := range r.breakers {
		out = append(out, cb.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
