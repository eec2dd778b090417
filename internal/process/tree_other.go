//go:build !linux && !windows
// +build !linux,!windows

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

// TreeKiller signals a container's process group. Without a Linux procfs the
// session cannot be enumerated, so the group led by the container's pid is
// what gets killed.
// TreeKiller 向容器的进程组发送信号。没有 Linux procfs 时无法枚举会话，因此只杀死以容器 pid 为首的进程组。
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

// KillTree sends sig to pid and, when groups or sessions is set, to its
// process group.
// KillTree 向 pid 发送 sig，并在 groups 或 sessions 为真时发送给其进程组。
func (k *TreeKiller) KillTree(pid int, sig syscall.Signal, groups, sessions bool) ([]Process, error) {
	killed, err := killGroup(pid, sig, groups || sessions)
	if err == nil {
		k.logger.Debug("Signalled process group", zap.Int("pid", pid), zap.String("signal", sig.String()))
	}
	return killed, err
}
