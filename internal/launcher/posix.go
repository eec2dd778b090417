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
	"errors"
	"fmt"
	"sort"
	"sync"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/seatunnel/launcher/internal/config"
	"github.com/seatunnel/launcher/internal/containerid"
	"github.com/seatunnel/launcher/internal/process"
)

// entry is one registry record
type entry struct {
	id  *containerid.ID
	pid int
}

// PosixLauncher runs each container as a new session so the whole process
// tree can be signalled through the session and process group ids.
// PosixLauncher 将每个容器作为新会话运行，以便通过会话和进程组 ID 向整个进程树发送信号。
type PosixLauncher struct {
	runtimeDir string
	spawner    Spawner
	killer     TreeKiller
	reaper     Reaper
	lifetime   LifetimeExtender
	recorder   Recorder
	tracer     trace.Tracer
	logger     *zap.Logger

	mu       sync.Mutex
	registry map[string]entry
}

// NewPosixLauncher creates a POSIX launcher checkpointing under runtimeDir.
// Collaborators missing from opts get the host implementations.
// NewPosixLauncher 创建以 runtimeDir 为检查点目录的 POSIX 启动器。
func NewPosixLauncher(runtimeDir string, opts Options) *PosixLauncher {
	opts = opts.withDefaults(config.DefaultReapInterval, config.DefaultSystemdSlice)
	return &PosixLauncher{
		runtimeDir: runtimeDir,
		spawner:    opts.Spawner,
		killer:     opts.Killer,
		reaper:     opts.Reaper,
		lifetime:   opts.Lifetime,
		recorder:   opts.Recorder,
		tracer:     opts.Tracer,
		logger:     opts.Logger,
		registry:   make(map[string]entry),
	}
}

// Name returns "posix".
func (l *PosixLauncher) Name() string {
	return config.LauncherPosix
}

// Recover registers every record of states. The batch is atomic: a pid
// claimed twice, by the batch or by an already tracked container, fails the
// call and nothing is registered. A container named again, in the batch or
// already tracked, takes the pid of its last record. This launcher finds no
// orphans of its own.
// Recover 注册 states 中的每条记录。批次是原子的：任何 pid 被声明两次都会使调用失败且不注册任何记录。
func (l *PosixLauncher) Recover(ctx context.Context, states []ContainerState) ([]*containerid.ID, error) {
	_, span := l.tracer.Start(ctx, "launcher.Recover",
		trace.WithAttributes(attribute.Int("launcher.states", len(states))))
	defer span.End()

	l.mu.Lock()
	err := l.recoverLocked(states)
	tracked := len(l.registry)
	l.mu.Unlock()

	l.recorder.RecoverCompleted(len(states), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Error("Failed to recover containers", zap.Int("states", len(states)), zap.Error(err))
		return nil, err
	}

	l.recorder.SetTracked(tracked)
	l.logger.Info("Recovered containers", zap.Int("recovered", len(states)), zap.Int("tracked", tracked))
	return []*containerid.ID{}, nil
}

func (l *PosixLauncher) recoverLocked(states []ContainerState) error {
	owners := make(map[int]string, len(l.registry)+len(states))
	for key, e := range l.registry {
		owners[e.pid] = key
	}

	staged := make(map[string]entry, len(states))
	for _, state := range states {
		if err := state.ContainerID.Validate(); err != nil {
			return err
		}
		key := state.ContainerID.String()
		if state.PID <= 0 {
			return fmt.Errorf("%w %d for container %s", ErrInvalidPID, state.PID, key)
		}
		// Pids replaced by a later record stay claimed for the rest of the batch.
		if _, ok := owners[state.PID]; ok {
			return fmt.Errorf("%w %d for container %s", ErrDuplicatePID, state.PID, key)
		}
		owners[state.PID] = key
		staged[key] = entry{id: state.ContainerID, pid: state.PID}
	}

	for key, e := range staged {
		l.registry[key] = e
	}
	return nil
}

// Fork validates the request, spawns the child as a new session leader and
// records its pid.
// Fork 校验请求，以新会话首进程启动子进程并记录其 pid。
func (l *PosixLauncher) Fork(ctx context.Context, id *containerid.ID, req ForkRequest) (pid int, err error) {
	_, span := l.tracer.Start(ctx, "launcher.Fork",
		trace.WithAttributes(attribute.String("container.id", id.String()), attribute.String("process.path", req.Path)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("process.pid", pid))
		}
		span.End()
		l.recorder.ForkCompleted(err)
	}()

	if err := id.Validate(); err != nil {
		return 0, err
	}
	if req.Namespaces != 0 {
		return 0, ErrNamespacesUnsupported
	}

	key := id.String()
	if l.tracked(key) {
		return 0, fmt.Errorf("%w %s", ErrAlreadyForked, key)
	}

	hooks := append([]process.Hook(nil), req.ParentHooks...)
	if l.lifetime != nil && l.lifetime.Enabled() {
		hooks = append(hooks, l.lifetime.Hook())
	}

	pid, err = l.spawner.Spawn(process.SpawnOptions{
		Path:        req.Path,
		Argv:        req.Argv,
		Stdin:       req.Stdin,
		Stdout:      req.Stdout,
		Stderr:      req.Stderr,
		Flags:       req.Flags,
		Environment: req.Environment,
		Setsid:      true,
		ParentHooks: hooks,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrForkFailed, err)
	}

	l.mu.Lock()
	if _, ok := l.registry[key]; ok {
		l.mu.Unlock()
		// Lost a race with a concurrent Fork of the same container.
		l.discard(pid)
		return 0, fmt.Errorf("%w %s", ErrAlreadyForked, key)
	}
	l.registry[key] = entry{id: id, pid: pid}
	tracked := len(l.registry)
	l.mu.Unlock()

	l.recorder.SetTracked(tracked)
	l.logger.Info("Forked child process",
		zap.String("container_id", key),
		zap.Int("pid", pid),
		zap.String("path", req.Path))
	return pid, nil
}

// discard kills and reaps a child that never entered the registry
func (l *PosixLauncher) discard(pid int) {
	if _, err := l.killer.KillTree(pid, syscall.SIGKILL, true, true); err != nil {
		l.logger.Warn("Failed to kill discarded child", zap.Int("pid", pid), zap.Error(err))
	}
	results := l.reaper.Reap(pid)
	go func() {
		<-results
	}()
}

// Destroy forgets the container, kills its session and process group and
// returns a completion that resolves once the pid is reaped.
// Destroy 移除容器，杀死其会话和进程组，并返回在 pid 被回收后完成的结果。
func (l *PosixLauncher) Destroy(ctx context.Context, id *containerid.ID) *Completion {
	key := id.String()
	_, span := l.tracer.Start(ctx, "launcher.Destroy",
		trace.WithAttributes(attribute.String("container.id", key)))

	l.mu.Lock()
	e, ok := l.registry[key]
	if ok {
		delete(l.registry, key)
	}
	tracked := len(l.registry)
	l.mu.Unlock()

	if !ok {
		err := fmt.Errorf("%w %s", ErrUnknownContainer, key)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		l.recorder.DestroyCompleted(err)
		return failedCompletion(err)
	}
	l.recorder.SetTracked(tracked)
	span.SetAttributes(attribute.Int("process.pid", e.pid))

	killed, err := l.killer.KillTree(e.pid, syscall.SIGKILL, true, true)
	switch {
	case errors.Is(err, process.ErrProcessNotFound):
		l.logger.Debug("Process already gone", zap.String("container_id", key), zap.Int("pid", e.pid))
	case err != nil:
		l.logger.Warn("Failed to kill all processes",
			zap.String("container_id", key), zap.Int("pid", e.pid), zap.Error(err))
	default:
		l.logger.Debug("Killed process tree",
			zap.String("container_id", key), zap.Int("pid", e.pid), zap.Int("killed", len(killed)))
	}

	c := newCompletion()
	results := l.reaper.Reap(e.pid)
	go func() {
		defer span.End()

		result, ok := <-results
		if !ok {
			result = process.ExitResult{Err: errors.New("exit-wait ended without a result")}
		}

		var err error
		if result.Err != nil {
			err = fmt.Errorf("%w: %w", ErrKillFailed, result.Err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			l.logger.Error("Failed to destroy container",
				zap.String("container_id", key), zap.Int("pid", e.pid), zap.Error(err))
		} else {
			l.logger.Info("Destroyed container",
				zap.String("container_id", key), zap.Int("pid", e.pid), zap.String("exit", result.Describe()))
		}
		l.recorder.DestroyCompleted(err)
		c.resolve(result, err)
	}()
	return c
}

// Status returns the pid recorded for the container.
// Status 返回容器记录的 pid。
func (l *PosixLauncher) Status(ctx context.Context, id *containerid.ID) (*ContainerStatus, error) {
	key := id.String()

	l.mu.Lock()
	e, ok := l.registry[key]
	l.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, key)
	}
	return &ContainerStatus{ContainerID: key, ExecutorPID: e.pid}, nil
}

// Containers lists the tracked containers sorted by id.
func (l *PosixLauncher) Containers(ctx context.Context) []ContainerState {
	l.mu.Lock()
	states := make([]ContainerState, 0, len(l.registry))
	for _, e := range l.registry {
		states = append(states, ContainerState{ContainerID: e.id, PID: e.pid})
	}
	l.mu.Unlock()

	sort.Slice(states, func(i, j int) bool {
		return states[i].ContainerID.String() < states[j].ContainerID.String()
	})
	return states
}

// ExitStatusCheckpointPath returns
// <runtime_dir>/launcher/posix/<hierarchy path>/exit_status.
func (l *PosixLauncher) ExitStatusCheckpointPath(id *containerid.ID) (string, error) {
	return ExitStatusCheckpointPath(l.runtimeDir, l.Name(), id)
}

func (l *PosixLauncher) tracked(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.registry[key]
	return ok
}
