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
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatunnel/launcher/internal/containerid"
	"github.com/seatunnel/launcher/internal/launcher"
	"github.com/seatunnel/launcher/internal/process"
)

type stubSpawner struct{ next int }

func (s *stubSpawner) Spawn(process.SpawnOptions) (int, error) {
	s.next++
	return s.next, nil
}

type stubKiller struct{}

func (stubKiller) KillTree(pid int, _ syscall.Signal, _, _ bool) ([]process.Process, error) {
	return []process.Process{{PID: pid}}, nil
}

// stubReaper reports every pid as killed by SIGKILL
type stubReaper struct{}

func (stubReaper) Reap(int) <-chan process.ExitResult {
	ch := make(chan process.ExitResult, 1)
	status := 9
	ch <- process.ExitResult{Status: &status}
	close(ch)
	return ch
}

type noLifetime struct{}

func (noLifetime) Enabled() bool      { return false }
func (noLifetime) Hook() process.Hook { return process.Hook{} }

func newRecordingLauncher(t *testing.T) (*RecordingLauncher, *Repository) {
	t.Helper()
	repo := setupTestRepo(t)
	inner := launcher.NewPosixLauncher(t.TempDir(), launcher.Options{
		Spawner:  &stubSpawner{next: 500},
		Killer:   stubKiller{},
		Reaper:   stubReaper{},
		Lifetime: noLifetime{},
	})
	return NewRecordingLauncher(inner, repo, nil), repo
}

func mustParse(t *testing.T, s string) *containerid.ID {
	t.Helper()
	id, err := containerid.Parse(s)
	require.NoError(t, err)
	return id
}

// TestRecordingLauncherLifecycle tests fork and destroy recording
// TestRecordingLauncherLifecycle 测试派生和销毁的记录
func TestRecordingLauncherLifecycle(t *testing.T) {
	l, repo := newRecordingLauncher(t)
	ctx := context.Background()
	id := mustParse(t, "job.task")

	pid, err := l.Fork(ctx, id, launcher.ForkRequest{Path: "/bin/worker", Argv: []string{"worker"}})
	require.NoError(t, err)
	assert.Equal(t, 501, pid)

	run, err := repo.LatestRun(ctx, "job.task")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, pid, run.PID)

	completion := l.Destroy(ctx, id)
	require.NoError(t, completion.Wait(ctx))
	l.Flush()

	run, err = repo.LatestRun(ctx, "job.task")
	require.NoError(t, err)
	assert.Equal(t, RunStatusExited, run.Status)
	require.NotNil(t, run.ExitStatus)
	assert.Equal(t, 9, *run.ExitStatus)
}

// TestRecordingLauncherForkFailure tests that failed forks leave no run
func TestRecordingLauncherForkFailure(t *testing.T) {
	l, repo := newRecordingLauncher(t)
	ctx := context.Background()
	id := mustParse(t, "dup")

	_, err := l.Fork(ctx, id, launcher.ForkRequest{Path: "/bin/true"})
	require.NoError(t, err)
	_, err = l.Fork(ctx, id, launcher.ForkRequest{Path: "/bin/true"})
	assert.ErrorIs(t, err, launcher.ErrAlreadyForked)

	_, total, err := repo.ListRuns(ctx, &RunFilter{ContainerID: "dup"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

// TestRecordingLauncherUnknownDestroy tests that unknown containers are not recorded
func TestRecordingLauncherUnknownDestroy(t *testing.T) {
	l, repo := newRecordingLauncher(t)
	ctx := context.Background()

	completion := l.Destroy(ctx, mustParse(t, "ghost"))
	assert.ErrorIs(t, completion.Wait(ctx), launcher.ErrUnknownContainer)
	l.Flush()

	_, err := repo.LatestRun(ctx, "ghost")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

// TestRecordingLauncherRecover tests recovery recording
// TestRecordingLauncherRecover 测试恢复记录
func TestRecordingLauncherRecover(t *testing.T) {
	l, repo := newRecordingLauncher(t)
	ctx := context.Background()

	orphans, err := l.Recover(ctx, []launcher.ContainerState{
		{ContainerID: mustParse(t, "a"), PID: 4001},
		{ContainerID: mustParse(t, "a.b"), PID: 4002},
	})
	require.NoError(t, err)
	assert.Empty(t, orphans)

	run, err := repo.LatestRun(ctx, "a.b")
	require.NoError(t, err)
	assert.True(t, run.Recovered)
	assert.Equal(t, 4002, run.PID)

	// A rejected batch records nothing / 被拒绝的批次不记录
	_, err = l.Recover(ctx, []launcher.ContainerState{{ContainerID: mustParse(t, "c"), PID: 4001}})
	assert.ErrorIs(t, err, launcher.ErrDuplicatePID)
	_, err = repo.LatestRun(ctx, "c")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
