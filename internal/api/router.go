/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter
// RouterOptions 配置 NewRouter
type RouterOptions struct {
	// ServiceName labels the HTTP server spans
	ServiceName string

	// TracerProvider receives the HTTP spans, nil uses the global provider
	TracerProvider trace.TracerProvider

	// Metrics serves GET /metrics when set
	Metrics http.Handler

	Logger *zap.Logger
}

// NewRouter registers the admin routes.
// NewRouter 注册管理路由。
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "seatunnel-launcher"
	}

	r := gin.New()
	r.Use(gin.Recovery())

	var otelOpts []otelgin.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(opts.TracerProvider))
	}
	r.Use(otelgin.Middleware(opts.ServiceName, otelOpts...), loggerMiddleware(opts.Logger))

	r.GET("/healthz", h.Health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	// API V1
	apiV1Router := r.Group("/api/v1")
	{
		containerRouter := apiV1Router.Group("/containers")
		{
			containerRouter.GET("", h.ListContainers)
			containerRouter.POST("", h.ForkContainer)
			containerRouter.GET("/:id", h.GetContainer)
			containerRouter.DELETE("/:id", h.DestroyContainer)
			containerRouter.GET("/:id/exit_status", h.GetExitStatus)
			containerRouter.GET("/:id/history", h.GetHistory)
		}
	}
	return r
}

// loggerMiddleware logs every request with its status and latency
func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// Server serves the admin API until stopped
// Server 提供管理 API 直到被停止
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer creates a Server listening on address
func NewServer(address string, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              address,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background. Errors other than a clean shutdown are
// reported on the returned channel.
// Start 在后台提供服务，非正常关闭的错误通过返回的通道报告。
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Admin API listening", zap.String("address", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Stop shuts the server down gracefully
// Stop 优雅地关闭服务器
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
