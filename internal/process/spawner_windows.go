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
	"go.uber.org/zap"
)

// Spawner is a placeholder on Windows, where sessions and process groups
// cannot be created the way the launcher needs them.
// Spawner 在 Windows 上是占位实现。
type Spawner struct {
	logger *zap.Logger
}

// NewSpawner creates a new Spawner instance
// NewSpawner 创建一个新的 Spawner 实例
func NewSpawner(logger *zap.Logger) *Spawner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Spawner{logger: logger}
}

// Spawn always fails with ErrUnsupported.
func (s *Spawner) Spawn(opts SpawnOptions) (int, error) {
	return 0, ErrUnsupported
}
