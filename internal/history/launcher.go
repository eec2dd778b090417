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

package history

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/seatunnel/launcher/internal/containerid"
	"github.com/seatunnel/launcher/internal/launcher"
)

// RecordingLauncher wraps a Launcher and records every fork, recovery and
// destroy in the history. Recording failures are logged and never fail the
// launcher operation.
// RecordingLauncher 包装 Launcher，将每次派生、恢复和销毁记录到历史中。
// 记录失败只记日志，不会使启动器操作失败。
type RecordingLauncher struct {
	launcher.Launcher

	repo   *Repository
	logger *zap.Logger

	// pending tracks destroys whose outcome is not recorded yet
	pending sync.WaitGroup
}

// NewRecordingLauncher creates a RecordingLauncher around inner.
// NewRecordingLauncher 创建包装 inner 的 RecordingLauncher。
func NewRecordingLauncher(inner launcher.Launcher, repo *Repository, logger *zap.Logger) *RecordingLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingLauncher{Launcher: inner, repo: repo, logger: logger}
}

// Recover implements launcher.Launcher.
func (l *RecordingLauncher) Recover(ctx context.Context, states []launcher.ContainerState) ([]*containerid.ID, error) {
	orphans, err := l.Launcher.Recover(ctx, states)
	if err != nil {
		return orphans, err
	}

	recordCtx := context.WithoutCancel(ctx)
	for _, st := range states {
		if _, err := l.repo.RecordRecovered(recordCtx, st.ContainerID.String(), st.PID); err != nil {
			l.logger.Warn("Failed to record recovered container",
				zap.String("container_id", st.ContainerID.String()), zap.Int("pid", st.PID), zap.Error(err))
		}
	}
	return orphans, nil
}

// Fork implements launcher.Launcher.
func (l *RecordingLauncher) Fork(ctx context.Context, id *containerid.ID, req launcher.ForkRequest) (int, error) {
	pid, err := l.Launcher.Fork(ctx, id, req)
	if err != nil {
		return pid, err
	}

	if _, err := l.repo.RecordFork(context.WithoutCancel(ctx), id.String(), pid, req.Path); err != nil {
		l.logger.Warn("Failed to record fork",
			zap.String("container_id", id.String()), zap.Int("pid", pid), zap.Error(err))
	}
	return pid, nil
}

// Destroy implements launcher.Launcher. The run is closed once the
// completion resolves.
// Destroy 实现 launcher.Launcher。完成后关闭运行记录。
func (l *RecordingLauncher) Destroy(ctx context.Context, id *containerid.ID) *launcher.Completion {
	completion := l.Launcher.Destroy(ctx, id)

	recordCtx := context.WithoutCancel(ctx)
	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		<-completion.Done()

		err := completion.Err()
		if errors.Is(err, launcher.ErrUnknownContainer) {
			return
		}
		if _, rerr := l.repo.RecordDestroy(recordCtx, id.String(), completion.ExitStatus(), err); rerr != nil {
			l.logger.Warn("Failed to record destroy", zap.String("container_id", id.String()), zap.Error(rerr))
		}
	}()
	return completion
}

// Flush waits until every resolved destroy has been recorded.
// Flush 等待所有已完成的销毁被记录。
func (l *RecordingLauncher) Flush() {
	l.pending.Wait()
}
