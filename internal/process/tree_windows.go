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
	"syscall"

	"go.uber.org/zap"
)

// TreeKiller has no process groups to signal on Windows.
type TreeKiller struct {
	logger *zap.Logger
}

// NewTreeKiller creates a TreeKiller
func NewTreeKiller(logger *zap.Logger) *TreeKiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeKiller{logger: logger}
}

// KillTree always fails with ErrUnsupported.
func (k *TreeKiller) KillTree(pid int, sig syscall.Signal, groups, sessions bool) ([]Process, error) {
	return nil, ErrUnsupported
}
