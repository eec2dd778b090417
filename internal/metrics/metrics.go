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

// Package metrics exposes launcher activity as Prometheus metrics.
// metrics 包将启动器活动暴露为 Prometheus 指标。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "launcher"

// Result label values
const (
	resultSuccess = "success"
	resultError   = "error"
)

// Collector records launcher operation outcomes
// Collector 记录启动器操作结果
type Collector struct {
	forks      *prometheus.CounterVec
	destroys   *prometheus.CounterVec
	recoveries *prometheus.CounterVec
	recovered  prometheus.Counter
	tracked    prometheus.Gauge

	registry *prometheus.Registry
}

// NewCollector creates a Collector on its own registry. The registry also
// carries the Go runtime and process collectors.
// NewCollector 在独立的注册表上创建 Collector，注册表同时包含 Go 运行时和进程收集器。
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.forks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forks_total",
			Help:      "Total number of container forks by result",
		},
		[]string{"result"},
	)

	c.destroys = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "destroys_total",
			Help:      "Total number of completed container destroys by result",
		},
		[]string{"result"},
	)

	c.recoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoveries_total",
			Help:      "Total number of recovery calls by result",
		},
		[]string{"result"},
	)

	c.recovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovered_containers_total",
			Help:      "Total number of containers registered by recovery",
		},
	)

	c.tracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_containers",
			Help:      "Number of containers currently tracked by the launcher",
		},
	)

	c.registry.MustRegister(
		c.forks,
		c.destroys,
		c.recoveries,
		c.recovered,
		c.tracked,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// ForkCompleted records the outcome of a fork
func (c *Collector) ForkCompleted(err error) {
	c.forks.WithLabelValues(result(err)).Inc()
}

// DestroyCompleted records the outcome of a destroy
func (c *Collector) DestroyCompleted(err error) {
	c.destroys.WithLabelValues(result(err)).Inc()
}

// RecoverCompleted records a recovery call and, on success, its size
func (c *Collector) RecoverCompleted(count int, err error) {
	c.recoveries.WithLabelValues(result(err)).Inc()
	if err == nil {
		c.recovered.Add(float64(count))
	}
}

// SetTracked records the current registry size
func (c *Collector) SetTracked(n int) {
	c.tracked.Set(float64(n))
}

// Registry returns the Prometheus registry for HTTP handler setup
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
// Handler 以 Prometheus 格式提供注册表内容
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
