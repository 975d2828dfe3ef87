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

package config

import (
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// GatewayConfig is the configuration of the API gateway, read from
// shopmesh-gateway.yaml with SHOPMESH_* environment overrides.
type GatewayConfig struct {
	Server struct {
		Port string `json:"port" yaml:"port"`
	} `json:"server" yaml:"server"`
	Upstreams struct {
		Users         string `json:"users" yaml:"users"`
		Orders        string `json:"orders" yaml:"orders"`
		Notifications string `json:"notifications" yaml:"notifications"`
	} `json:"upstreams" yaml:"upstreams"`
	Proxy struct {
		Timeout time.Duration `json:"timeout" yaml:"timeout"`
	} `json:"proxy" yaml:"proxy"`
	Breaker struct {
		FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold"`
		RecoveryTimeout  time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`
		SuccessThreshold int           `json:"success_threshold" yaml:"success_threshold"`
	} `json:"breaker" yaml:"breaker"`
	CORS struct {
		AllowOrigins []string `json:"allow_origins" yaml:"allow_origins"`
	} `json:"cors" yaml:"cors"`
}

var (
	config *GatewayConfig
	once   sync.Once
)

// GetConfig loads the configuration once per process.
func GetConfig() *GatewayConfig {
	once.Do(func() {
		v := viper.New()
		v.SetConfigName("shopmesh-gateway")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		v.SetDefault("server.port", "8000")
		v.SetDefault("upstreams.users", "http://localhost:8001")
		v.SetDefault("upstreams.orders", "http://localhost:8002")
		v.SetDefault("upstreams.notifications", "http://localhost:8003")
		v.SetDefault("proxy.timeout", "10s")
		v.SetDefault("breaker.failure_threshold", 5)
		v.SetDefault("breaker.recovery_timeout", "30s")
		v.SetDefault("breaker.success_threshold", 2)
		v.SetDefault("cors.allow_origins", []string{"*"})

		v.SetEnvPrefix("SHOPMESH")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				panic(err)
			}
		}

		config = &GatewayConfig{}
		if err := v.Unmarshal(config); err != nil {
			panic(err)
		}
	})
	return config
}
