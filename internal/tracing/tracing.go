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

// Package tracing sets up OpenTelemetry tracing for the launcher agent.
// tracing 包为启动器 Agent 配置 OpenTelemetry 追踪。
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/seatunnel/launcher/internal/config"
)

// InstrumentationName names the tracer used by launcher components
const InstrumentationName = "github.com/seatunnel/launcher"

// Provider owns the tracer provider and its shutdown
// Provider 持有追踪提供者及其关闭函数
type Provider struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
	enabled  bool
}

// Init initializes tracing based on configuration. When telemetry is
// disabled a noop provider is returned.
// Init 根据配置初始化追踪。禁用遥测时返回空操作提供者。
func Init(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("OpenTelemetry tracing is disabled")
		return &Provider{
			provider: noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = config.DefaultServiceName
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry tracing initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("service", serviceName))
	return &Provider{provider: tp, shutdown: tp.Shutdown, enabled: true}, nil
}

// Tracer returns the tracer for launcher components
func (p *Provider) Tracer() trace.Tracer {
	return p.provider.Tracer(InstrumentationName)
}

// TracerProvider returns the underlying provider, e.g. for HTTP middleware
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.provider
}

// Enabled reports whether spans are exported
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Shutdown flushes pending spans and stops the exporter
// Shutdown 刷新待发送的 span 并停止导出器
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}
