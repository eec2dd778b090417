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

// Package systemd integrates launched containers with systemd.
// systemd 包将启动的容器与 systemd 集成。
//
// When systemd is the init system, a service restart kills every process in
// the agent's cgroup. Moving a freshly forked child into a dedicated slice
// keeps it (and anything it forks later) alive across agent restarts.
// 当 systemd 是 init 系统时，服务重启会杀死 Agent cgroup 中的所有进程。
// 将新派生的子进程移入专用 slice，可使其（及其之后派生的进程）在 Agent 重启后继续运行。
package systemd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/seatunnel/launcher/internal/process"
)

// DefaultSlice is the slice children are moved into
// DefaultSlice 是子进程被移入的 slice
const DefaultSlice = "launcher_executors.slice"

// HookName identifies the lifetime extension hook
const HookName = "systemd-extend-lifetime"

// Default filesystem locations
// 默认文件系统位置
const (
	DefaultRuntimeDir = "/run/systemd/system"
	DefaultCgroupRoot = "/sys/fs/cgroup"
)

// Manager detects systemd and extends child lifetimes
// Manager 探测 systemd 并延长子进程生命周期
type Manager struct {
	slice      string
	runtimeDir string
	cgroupRoot string
}

// NewManager creates a Manager for the given slice
// NewManager 为给定的 slice 创建 Manager
func NewManager(slice string) *Manager {
	return NewManagerWithPaths(slice, DefaultRuntimeDir, DefaultCgroupRoot)
}

// NewManagerWithPaths creates a Manager using alternative filesystem roots
func NewManagerWithPaths(slice, runtimeDir, cgroupRoot string) *Manager {
	if slice == "" {
		slice = DefaultSlice
	}
	return &Manager{
		slice:      slice,
		runtimeDir: runtimeDir,
		cgroupRoot: cgroupRoot,
	}
}

// Enabled reports whether the host was booted with systemd, using the same
// test as sd_booted(3).
// Enabled 判断主机是否由 systemd 启动，与 sd_booted(3) 的检测方式相同。
func (m *Manager) Enabled() bool {
	info, err := os.Stat(m.runtimeDir)
	return err == nil && info.IsDir()
}

// Slice returns the slice name
func (m *Manager) Slice() string {
	return m.slice
}

// procsFile returns the cgroup.procs file of the slice. On the unified
// hierarchy slices live directly under the cgroup root, on the legacy one
// under the named systemd hierarchy.
func (m *Manager) procsFile() string {
	if _, err := os.Stat(filepath.Join(m.cgroupRoot, "cgroup.controllers")); err == nil {
		return filepath.Join(m.cgroupRoot, m.slice, "cgroup.procs")
	}
	return filepath.Join(m.cgroupRoot, "systemd", m.slice, "cgroup.procs")
}

// ExtendLifetime moves pid into the slice.
// ExtendLifetime 将 pid 移入 slice。
func (m *Manager) ExtendLifetime(pid int) error {
	procs := m.procsFile()
	if err := os.MkdirAll(filepath.Dir(procs), 0755); err != nil {
		return fmt.Errorf("failed to create slice %s: %w", m.slice, err)
	}

	f, err := os.OpenFile(procs, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", procs, err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(pid)); err != nil {
		return fmt.Errorf("failed to move pid %d into %s: %w", pid, m.slice, err)
	}
	return nil
}

// Hook returns ExtendLifetime as a parent hook for the spawner
// Hook 将 ExtendLifetime 作为启动器的父进程钩子返回
func (m *Manager) Hook() process.Hook {
	return process.Hook{
		Name: HookName,
		Run:  m.ExtendLifetime,
	}
}
