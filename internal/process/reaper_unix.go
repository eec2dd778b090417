//go:build !windows
// +build !windows

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
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// DefaultReapInterval is the default polling interval of the Reaper
// DefaultReapInterval 是 Reaper 的默认轮询间隔
const DefaultReapInterval = 100 * time.Millisecond

// Reaper waits asynchronously for processes to be reclaimed by the kernel.
// Children of the agent are collected with wait4; other processes (for
// example ones recovered after an agent restart) are polled with signal 0
// until they disappear.
// Reaper 异步等待进程被内核回收。Agent 的子进程通过 wait4 收集；
// 其他进程（例如 Agent 重启后恢复的进程）通过信号 0 轮询直到消失。
type Reaper struct {
	interval time.Duration
	logger   *zap.Logger
}

// NewReaper creates a new Reaper instance
// NewReaper 创建一个新的 Reaper 实例
func NewReaper(interval time.Duration, logger *zap.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{interval: interval, logger: logger}
}

// Reap returns a channel that receives exactly one result once pid is gone.
// Reap 返回一个通道，在 pid 消失后恰好接收一个结果。
func (r *Reaper) Reap(pid int) <-chan ExitResult {
	ch := make(chan ExitResult, 1)
	if pid <= 0 {
		ch <- ExitResult{Err: fmt.Errorf("%w: invalid pid %d", ErrReapFailed, pid)}
		close(ch)
		return ch
	}

	go r.watch(pid, ch)
	return ch
}

// watch polls pid until it has been reclaimed
func (r *Reaper) watch(pid int, ch chan<- ExitResult) {
	defer close(ch)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if result, done := r.poll(pid); done {
			r.logger.Debug("Reaped process",
				zap.Int("pid", pid),
				zap.String("result", result.Describe()))
			ch <- result
			return
		}
		<-ticker.C
	}
}

// poll checks pid once. done is false while the process still exists.
func (r *Reaper) poll(pid int) (ExitResult, bool) {
	var ws unix.WaitStatus
	wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
	switch {
	case err == nil && wpid == pid:
		status := int(ws)
		return ExitResult{Status: &status}, true
	case err == nil:
		// Our child, still running / 是子进程，仍在运行
		return ExitResult{}, false
	case errors.Is(err, unix.EINTR):
		return ExitResult{}, false
	case errors.Is(err, unix.ECHILD):
		// Not our child (or already reaped): fall back to a liveness check.
		// 不是子进程（或已被回收）：退回到存活检查。
		if IsAlive(pid) {
			return ExitResult{}, false
		}
		return ExitResult{}, true
	default:
		return ExitResult{Err: fmt.Errorf("%w: wait4(%d): %v", ErrReapFailed, pid, err)}, true
	}
}

// IsAlive checks if a process with the given PID exists.
// IsAlive 检查给定 PID 的进程是否存在。
// Signal 0 performs the permission and existence checks without delivering
// anything; EPERM still means the process exists.
// 信号 0 只做权限和存在性检查而不实际发送；EPERM 仍表示进程存在。
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
