//go:build linux
// +build linux

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
	"os"
	"sort"
	"syscall"

	"github.com/prometheus/procfs"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// TreeKiller signals every process of a container's session and process group
// TreeKiller 向容器会话和进程组中的每个进程发送信号
type TreeKiller struct {
	procRoot string
	self     int
	logger   *zap.Logger
}

// NewTreeKiller creates a TreeKiller reading the process table from /proc
// NewTreeKiller 创建一个从 /proc 读取进程表的 TreeKiller
func NewTreeKiller(logger *zap.Logger) *TreeKiller {
	return NewTreeKillerWithRoot(procfs.DefaultMountPoint, logger)
}

// NewTreeKillerWithRoot creates a TreeKiller reading an alternative procfs mount
func NewTreeKillerWithRoot(procRoot string, logger *zap.Logger) *TreeKiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeKiller{
		procRoot: procRoot,
		self:     os.Getpid(),
		logger:   logger,
	}
}

// KillTree sends sig to pid, its descendants and, when requested, every
// member of its process group and session. The selected processes are
// stopped first so none of them can fork a new child between the scan and
// the kill, then signalled, then continued.
// KillTree 向 pid、其后代以及（按需）同一进程组和会话的所有成员发送 sig。
// 先暂停选中的进程以防止在扫描与发送信号之间派生新进程，然后发送信号，最后恢复。
func (k *TreeKiller) KillTree(pid int, sig syscall.Signal, groups, sessions bool) ([]Process, error) {
	if pid <= 1 {
		return nil, fmt.Errorf("refusing to kill process tree of pid %d", pid)
	}

	table, err := k.snapshot()
	if err != nil {
		return nil, err
	}

	root, ok := table[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrProcessNotFound, pid)
	}

	selected := k.selectTree(table, root, groups, sessions)
	pids := make([]int, 0, len(selected))
	for p := range selected {
		pids = append(pids, p)
	}
	sort.Ints(pids)

	var errs []error
	for _, p := range pids {
		if err := signal(p, unix.SIGSTOP); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range pids {
		if err := signal(p, sig); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range pids {
		_ = signal(p, unix.SIGCONT)
	}

	killed := make([]Process, 0, len(pids))
	for _, p := range pids {
		killed = append(killed, selected[p])
	}

	k.logger.Debug("Signalled process tree",
		zap.Int("pid", pid),
		zap.String("signal", sig.String()),
		zap.Ints("pids", pids))

	return killed, errors.Join(errs...)
}

// snapshot reads the process table keyed by pid
func (k *TreeKiller) snapshot() (map[int]Process, error) {
	fs, err := procfs.NewFS(k.procRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs at %s: %w", k.procRoot, err)
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	table := make(map[int]Process, len(procs))
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			// Exited between listing and reading / 在列出和读取之间已退出
			continue
		}
		table[stat.PID] = Process{
			PID:     stat.PID,
			PPID:    stat.PPID,
			PGID:    stat.PGRP,
			SID:     stat.Session,
			Command: stat.Comm,
		}
	}
	return table, nil
}

// selectTree collects root, the members of its group and session (unless
// they are shared with the agent itself), and all their descendants.
func (k *TreeKiller) selectTree(table map[int]Process, root Process, groups, sessions bool) map[int]Process {
	self := table[k.self]

	selected := map[int]Process{root.PID: root}
	for _, p := range table {
		if groups && root.PGID != self.PGID && p.PGID == root.PGID {
			selected[p.PID] = p
		}
		if sessions && root.SID != self.SID && p.SID == root.SID {
			selected[p.PID] = p
		}
	}

	children := make(map[int][]Process)
	for _, p := range table {
		children[p.PPID] = append(children[p.PPID], p)
	}
	queue := make([]int, 0, len(selected))
	for p := range selected {
		queue = append(queue, p)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range children[cur] {
			if _, seen := selected[c.PID]; !seen {
				selected[c.PID] = c
				queue = append(queue, c.PID)
			}
		}
	}

	delete(selected, k.self)
	delete(selected, 1)
	return selected
}

// signal sends sig to pid, treating an already exited process as success
func signal(pid int, sig syscall.Signal) error {
	if err := unix.Kill(pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill(%d, %s): %w", pid, sig, err)
	}
	return nil
}
