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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopmesh/shopmesh/internal/pkg/db"
	"github.com/shopmesh/shopmesh/internal/users/config"
	v1 "github.com/shopmesh/shopmesh/internal/users/handler/v1"
	"github.com/shopmesh/shopmesh/internal/users/model"
	"github.com/shopmesh/shopmesh/internal/users/repository"
	"github.com/shopmesh/shopmesh/internal/users/service"
)

// Server is the users service HTTP server.
type Server struct {
	engine *gin.Engine
	port   string
}

// New wires the users service: database, repository, service, handlers.
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
	if err := gdb.AutoMigrate(&model.User{}); err != nil {
		return nil, err
	}

	users := repository.NewUserRepository(gdb)
	userService := service.NewUserService(users, []byte(cfg.JWT.Secret))
	handler := v1.NewUserHandler(userService, []byte(cfg.JWT.Secret))

	engine := gin.New()
	engine.Use(gin.Recovery())
	handler.RegisterRoutes(engine)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "users"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{engine: engine, port: cfg.Server.Port}, nil
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	return s.engine.Run(":" + s.port)
}
