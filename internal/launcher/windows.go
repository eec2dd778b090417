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
	"context"

	"github.com/seatunnel/launcher/internal/config"
	"github.com/seatunnel/launcher/internal/containerid"
)

// WindowsLauncher is the launcher variant for Windows hosts. It can be
// created, but every operation reports ErrNotImplemented.
// WindowsLauncher 是 Windows 主机的启动器变体。可以创建，但所有操作都返回 ErrNotImplemented。
type WindowsLauncher struct {
	runtimeDir string
}

// NewWindowsLauncher creates a Windows launcher
func NewWindowsLauncher(runtimeDir string) *WindowsLauncher {
	return &WindowsLauncher{runtimeDir: runtimeDir}
}

// Name returns "windows".
func (l *WindowsLauncher) Name() string {
	return config.LauncherWindows
}

// Recover is not implemented on Windows.
// Recover 在 Windows 上未实现。
func (l *WindowsLauncher) Recover(ctx context.Context, states []ContainerState) ([]*containerid.ID, error) {
	return nil, ErrNotImplemented
}

// Fork is not implemented on Windows.
// Fork 在 Windows 上未实现。
func (l *WindowsLauncher) Fork(ctx context.Context, id *containerid.ID, req ForkRequest) (int, error) {
	return 0, ErrNotImplemented
}

// Destroy returns a completion that already failed with ErrNotImplemented.
// Destroy 返回一个已因 ErrNotImplemented 失败的结果。
func (l *WindowsLauncher) Destroy(ctx context.Context, id *containerid.ID) *Completion {
	return failedCompletion(ErrNotImplemented)
}

// Status is not implemented on Windows.
// Status 在 Windows 上未实现。
func (l *WindowsLauncher) Status(ctx context.Context, id *containerid.ID) (*ContainerStatus, error) {
	return nil, ErrNotImplemented
}

// Containers always reports an empty registry.
// Containers 始终返回空注册表。
func (l *WindowsLauncher) Containers(ctx context.Context) []ContainerState {
	return nil
}

// ExitStatusCheckpointPath returns
// <runtime_dir>/launcher/windows/<hierarchy path>/exit_status.
func (l *WindowsLauncher) ExitStatusCheckpointPath(id *containerid.ID) (string, error) {
	return ExitStatusCheckpointPath(l.runtimeDir, l.Name(), id)
}
