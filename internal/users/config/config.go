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

	"github.com/spf13/viper"
)

// UsersConfig is the configuration of the users service, read from
// shopmesh-users.yaml with SHOPMESH_* environment overrides.
type UsersConfig struct {
	Server struct {
		Port string `json:"port" yaml:"port"`
	} `json:"server" yaml:"server"`
	Database struct {
		Username string `json:"username" yaml:"username"`
		Password string `json:"password" yaml:"password"`
		Host     string `json:"host" yaml:"host"`
		Port     string `json:"port" yaml:"port"`
		DBName   string `json:"dbname" yaml:"dbname"`
	} `json:"database" yaml:"database"`
	JWT struct {
		Secret string `json:"secret" yaml:"secret"`
	} `json:"jwt" yaml:"jwt"`
}

var (
	config *UsersConfig
	once   sync.Once
)

// GetConfig loads the configuration once per process.
func GetConfig() *UsersConfig {
	once.Do(func() {
		v := viper.New()
		v.SetConfigName("shopmesh-users")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		v.SetDefault("server.port", "8001")
		v.SetDefault("database.username", "shopmesh")
		v.SetDefault("database.password", "shopmesh")
		v.SetDefault("database.host", "localhost")
		v.SetDefault("database.port", "3306")
		v.SetDefault("database.dbname", "shopmesh_users")
		v.SetDefault("jwt.secret", "dev-secret-change-me")

		v.SetEnvPrefix("SHOPMESH")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				panic(err)
			}
		}

		config = &UsersConfig{}
		if err := v.Unmarshal(config); err != nil {
			panic(err)
		}
	})
	return config
}
