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
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Spawner starts child processes with os/exec
// Spawner 使用 os/exec 启动子进程
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

// setSessionAttr sets session attributes for Unix systems
// setSessionAttr 为 Unix 系统设置会话属性
// A new session also creates a new process group whose id is the child pid,
// so the whole tree can be signalled later and survives the agent's exit.
// 新会话同时创建以子进程 pid 为 ID 的新进程组，便于之后向整棵树发送信号，且不随 Agent 退出。
func setSessionAttr(cmd *exec.Cmd, setsid bool) {
	if setsid {
		cmd.SysProcAttr = &unix.SysProcAttr{
			Setsid: true, // Create new session / 创建新会话
		}
	}
}

// Spawn starts the child described by opts and returns its pid. The child is
// released, not waited on: reaping belongs to the Reaper.
//
// With parent hooks the child starts as a gated trampoline: the hooks run
// while it is blocked, and only then is the target exec'd. The target and
// everything it forks therefore already see the effects of the hooks.
// Spawn 启动 opts 描述的子进程并返回其 pid。子进程被释放而非等待，回收由 Reaper 负责。
// 存在父进程钩子时，子进程以带闸门的跳板启动：钩子在其阻塞期间运行，之后才 exec 目标。
func (s *Spawner) Spawn(opts SpawnOptions) (int, error) {
	if opts.Path == "" {
		return 0, fmt.Errorf("%w: empty executable path", ErrSpawnFailed)
	}
	path, err := exec.LookPath(opts.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	argv := opts.argv()
	hooks := activeHooks(opts.ParentHooks)

	var cmd *exec.Cmd
	var g *gate
	if len(hooks) == 0 {
		cmd = exec.Command(path, argv[1:]...)
		cmd.Args = argv
		cmd.Env = opts.env()
	} else {
		if g, err = newGate(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		}
		defer g.close()

		self, err := os.Executable()
		if err != nil {
			return 0, fmt.Errorf("%w: locate agent executable: %v", ErrSpawnFailed, err)
		}
		cmd = exec.Command(self)
		cmd.Args = append([]string{trampolineArg0, path}, argv...)

		env := opts.env()
		if env == nil {
			env = os.Environ()
		}
		cmd.Env = append(env, gateEnv+"="+gateValue)
		cmd.ExtraFiles = []*os.File{g.childRead, g.childErr}
	}
	setSessionAttr(cmd, opts.Setsid)

	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	streams := []struct {
		name   string
		io     IO
		std    *os.File
		output bool
	}{
		{"stdin", opts.Stdin, os.Stdin, false},
		{"stdout", opts.Stdout, os.Stdout, true},
		{"stderr", opts.Stderr, os.Stderr, true},
	}
	files := make([]*os.File, len(streams))
	for i, st := range streams {
		f, closer, err := st.io.open(st.std, st.output)
		if err != nil {
			closeAll()
			return 0, fmt.Errorf("%w: open %s (%s): %v", ErrSpawnFailed, st.name, st.io, err)
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		files[i] = f
	}
	// A nil *os.File must stay an untyped nil so exec uses the null device.
	if files[0] != nil {
		cmd.Stdin = files[0]
	}
	if files[1] != nil {
		cmd.Stdout = files[1]
	}
	if files[2] != nil {
		cmd.Stderr = files[2]
	}

	if err := cmd.Start(); err != nil {
		closeAll()
		return 0, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	// The child holds its own copies now.
	closeAll()

	pid := cmd.Process.Pid
	if g != nil {
		g.started()

		for _, hook := range hooks {
			if err := hook.Run(pid); err != nil {
				// Closing the gate makes the trampoline exit without exec.
				g.close()
				s.abort(cmd, opts.Setsid)
				return 0, fmt.Errorf("%w: %s: %v", ErrHookFailed, hook.Name, err)
			}
		}

		if err := g.release(); err != nil {
			s.abort(cmd, opts.Setsid)
			return 0, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		}
	}

	s.logger.Debug("Spawned child process",
		zap.String("path", path),
		zap.Strings("argv", argv),
		zap.Int("pid", pid),
		zap.Bool("setsid", opts.Setsid),
		zap.Int("hooks", len(hooks)))

	if err := cmd.Process.Release(); err != nil {
		s.logger.Warn("Failed to release process handle", zap.Int("pid", pid), zap.Error(err))
	}
	return pid, nil
}

// activeHooks drops hooks without a Run function
func activeHooks(hooks []Hook) []Hook {
	active := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h.Run != nil {
			active = append(active, h)
		}
	}
	return active
}

// gate holds the two pipes shared with a trampoline child
type gate struct {
	// childRead and childErr are handed to the child
	childRead *os.File
	childErr  *os.File

	// releaseW is written once to let the child exec
	releaseW *os.File
	// errRead carries the exec failure of the child, EOF on success
	errRead *os.File
}

func newGate() (*gate, error) {
	gr, gw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	er, ew, err := os.Pipe()
	if err != nil {
		gr.Close()
		gw.Close()
		return nil, err
	}
	return &gate{childRead: gr, childErr: ew, releaseW: gw, errRead: er}, nil
}

// started drops the parent's copies of the child's ends
func (g *gate) started() {
	closeFile(&g.childRead)
	closeFile(&g.childErr)
}

// release lets the child exec and waits for the outcome of the exec
func (g *gate) release() error {
	if _, err := g.releaseW.Write([]byte{0}); err != nil {
		return fmt.Errorf("release child: %w", err)
	}
	closeFile(&g.releaseW)

	msg, err := io.ReadAll(g.errRead)
	if err != nil {
		return fmt.Errorf("read exec status: %w", err)
	}
	if len(msg) > 0 {
		return errors.New(string(msg))
	}
	return nil
}

func (g *gate) close() {
	closeFile(&g.childRead)
	closeFile(&g.childErr)
	closeFile(&g.releaseW)
	closeFile(&g.errRead)
}

func closeFile(f **os.File) {
	if *f != nil {
		_ = (*f).Close()
		*f = nil
	}
}

// abort kills a child rejected by a hook and reaps it
func (s *Spawner) abort(cmd *exec.Cmd, setsid bool) {
	pid := cmd.Process.Pid
	target := pid
	if setsid {
		target = -pid
	}
	if err := unix.Kill(target, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		s.logger.Warn("Failed to kill aborted child", zap.Int("pid", pid), zap.Error(err))
	}
	_ = cmd.Wait()
}
