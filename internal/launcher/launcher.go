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

// Package launcher starts, tracks, recovers and destroys the process trees
// backing containers.
// launcher 包负责启动、跟踪、恢复和销毁承载容器的进程树。
//
// This package provides:
// 此包提供：
// - Launcher: the operations shared by every launcher variant / 所有启动器变体共享的操作
// - PosixLauncher: session based launcher for POSIX hosts / 基于会话的 POSIX 启动器
// - WindowsLauncher: placeholder variant for Windows hosts / Windows 占位变体
// - Create: builds the variant selected by configuration / 按配置构建启动器
package launcher

import (
	"context"
	"syscall"

	"github.com/seatunnel/launcher/internal/containerid"
	"github.com/seatunnel/launcher/internal/process"
)

// Launcher manages the primary process of each container.
// Launcher 管理每个容器的主进程。
type Launcher interface {
	// Name returns the variant name used in checkpoint paths
	// Name 返回用于检查点路径的变体名称
	Name() string

	// Recover repopulates the registry from checkpointed state and returns the
	// orphan containers it found.
	// Recover 根据检查点状态重建注册表，并返回发现的孤儿容器。
	Recover(ctx context.Context, states []ContainerState) ([]*containerid.ID, error)

	// Fork starts the primary process of a container and returns its pid.
	// Fork 启动容器的主进程并返回其 pid。
	Fork(ctx context.Context, id *containerid.ID, req ForkRequest) (int, error)

	// Destroy kills the container's process tree. The container is forgotten
	// before Destroy returns; the completion resolves once the process is reaped.
	// Destroy 杀死容器的进程树。容器在返回前即被移除；进程被回收后完成。
	Destroy(ctx context.Context, id *containerid.ID) *Completion

	// Status returns the pid recorded for a container.
	// Status 返回容器记录的 pid。
	Status(ctx context.Context, id *containerid.ID) (*ContainerStatus, error)

	// Containers lists the tracked containers, sorted by id
	// Containers 列出被跟踪的容器，按 id 排序
	Containers(ctx context.Context) []ContainerState

	// ExitStatusCheckpointPath returns the exit status checkpoint of a container.
	ExitStatusCheckpointPath(id *containerid.ID) (string, error)
}

// ContainerState is one recovered (container, pid) record
// ContainerState 是一条恢复的（容器，pid）记录
type ContainerState struct {
	ContainerID *containerid.ID `json:"container_id" yaml:"container_id"`
	PID         int             `json:"pid" yaml:"pid"`
}

// ContainerStatus is a snapshot of a tracked container
// ContainerStatus 是被跟踪容器的快照
type ContainerStatus struct {
	ContainerID string `json:"container_id"`
	ExecutorPID int    `json:"executor_pid"`
}

// ForkRequest describes the primary process of a container
// ForkRequest 描述容器的主进程
type ForkRequest struct {
	// Path is the executable / Path 是可执行文件
	Path string

	// Argv is the argument vector including argv[0]
	// Argv 是包含 argv[0] 的参数列表
	Argv []string

	Stdin  process.IO
	Stdout process.IO
	Stderr process.IO

	// Flags are passed to the child as --key=value arguments
	// Flags 以 --key=value 参数传给子进程
	Flags map[string]string

	// Environment replaces the child's environment when non-nil
	// Environment 非 nil 时替换子进程环境
	Environment map[string]string

	// Namespaces is the CLONE_NEW* mask of requested isolation. Must be zero
	// for the POSIX launcher.
	// Namespaces 是请求隔离的 CLONE_NEW* 掩码，POSIX 启动器必须为零。
	Namespaces int

	// ParentHooks run in the parent once the child exists
	// ParentHooks 在子进程创建后于父进程中运行
	ParentHooks []process.Hook
}

// Spawner creates child processes
type Spawner interface {
	Spawn(opts process.SpawnOptions) (int, error)
}

// TreeKiller signals a process together with its group and session
type TreeKiller interface {
	KillTree(pid int, sig syscall.Signal, groups, sessions bool) ([]process.Process, error)
}

// Reaper waits asynchronously for a pid to be reclaimed
type Reaper interface {
	Reap(pid int) <-chan process.ExitResult
}

// LifetimeExtender keeps forked processes alive past the agent's own exit
// LifetimeExtender 使派生的进程在 Agent 退出后继续存活
type LifetimeExtender interface {
	// Enabled reports whether the extension is available on this host
	Enabled() bool

	// Hook returns the parent hook applying the extension to a new child
	Hook() process.Hook
}

// Recorder receives operation outcomes, e.g. for metrics
// Recorder 接收操作结果，例如用于指标
type Recorder interface {
	ForkCompleted(err error)
	DestroyCompleted(err error)
	RecoverCompleted(count int, err error)
	SetTracked(n int)
}

type nopRecorder struct{}

func (nopRecorder) ForkCompleted(error)         {}
func (nopRecorder) DestroyCompleted(error)      {}
func (nopRecorder) RecoverCompleted(int, error) {}
func (nopRecorder) SetTracked(int)              {}
