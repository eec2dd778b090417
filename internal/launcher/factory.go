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

package launcher

import (
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/seatunnel/launcher/internal/config"
	"github.com/seatunnel/launcher/internal/process"
	"github.com/seatunnel/launcher/internal/systemd"
)

// Options injects the collaborators of a launcher. Nil fields get the host
// implementations.
// Options 注入启动器的协作组件，nil 字段使用主机实现。
type Options struct {
	Spawner  Spawner
	Killer   TreeKiller
	Reaper   Reaper
	Lifetime LifetimeExtender
	Recorder Recorder
	Tracer   trace.Tracer
	Logger   *zap.Logger
}

func (o Options) withDefaults(reapInterval time.Duration, slice string) Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Spawner == nil {
		o.Spawner = process.NewSpawner(o.Logger)
	}
	if o.Killer == nil {
		o.Killer = process.NewTreeKiller(o.Logger)
	}
	if o.Reaper == nil {
		o.Reaper = process.NewReaper(reapInterval, o.Logger)
	}
	if o.Lifetime == nil {
		o.Lifetime = systemd.NewManager(slice)
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("")
	}
	return o
}

// HostVariant returns the launcher name matching the running platform
// HostVariant 返回与当前平台匹配的启动器名称
func HostVariant() string {
	if runtime.GOOS == "windows" {
		return config.LauncherWindows
	}
	return config.LauncherPosix
}

// Create builds the launcher named by cfg.Launcher.Name, or the host's
// variant when the name is empty. Only in-memory setup happens here.
// Create 构建 cfg.Launcher.Name 指定的启动器，名称为空时使用主机变体。此处只做内存初始化。
func Create(cfg *config.Config, opts Options) (Launcher, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	name := cfg.Launcher.Name
	if name == "" {
		name = HostVariant()
	}

	switch name {
	case config.LauncherPosix:
		if runtime.GOOS == "windows" {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
		}
		interval := cfg.Launcher.ReapInterval
		if interval <= 0 {
			interval = config.DefaultReapInterval
		}
		l := NewPosixLauncher(cfg.Launcher.RuntimeDir, opts.withDefaults(interval, cfg.Launcher.SystemdSlice))
		return l, nil
	case config.LauncherWindows:
		return NewWindowsLauncher(cfg.Launcher.RuntimeDir), nil
	default:
		return nil, fmt.Errorf("%w: unknown launcher %q", ErrUnsupported, name)
	}
}
