//go:build windows
// +build windows

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

package process

import (
	"time"

	"go.uber.org/zap"
)

// DefaultReapInterval is the default polling interval of the Reaper
const DefaultReapInterval = 100 * time.Millisecond

// Reaper is a placeholder on Windows.
// Reaper 在 Windows 上是占位实现。
type Reaper struct {
	logger *zap.Logger
}

// NewReaper creates a new Reaper instance
func NewReaper(interval time.Duration, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{logger: logger}
}

// Reap resolves immediately with ErrUnsupported.
func (r *Reaper) Reap(pid int) <-chan ExitResult {
	ch := make(chan ExitResult, 1)
	ch <- ExitResult{Err: ErrUnsupported}
	close(ch)
	return ch
}

// IsAlive is not implemented on Windows and always reports false.
func IsAlive(pid int) bool {
	return false
}
