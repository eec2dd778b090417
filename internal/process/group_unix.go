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
	"syscall"

	"golang.org/x/sys/unix"
)

// killGroup signals pid and, when groups is set and pid leads its own process
// group, the whole group. It needs no process table, so it serves hosts
// without procfs: children spawned with Setsid lead both their session and
// their group, and their descendants stay in that group unless they move.
// killGroup 向 pid 发送信号；当 groups 为真且 pid 是其进程组首进程时，向整个进程组发送信号。
func killGroup(pid int, sig syscall.Signal, groups bool) ([]Process, error) {
	if pid <= 1 {
		return nil, fmt.Errorf("refusing to kill process tree of pid %d", pid)
	}

	pgid, err := unix.Getpgid(pid)
	if err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil, fmt.Errorf("%w: %d", ErrProcessNotFound, pid)
		}
		return nil, fmt.Errorf("getpgid(%d): %w", pid, err)
	}
	sid, _ := unix.Getsid(pid)
	root := Process{PID: pid, PGID: pgid, SID: sid}

	target := pid
	if groups && pgid == pid && pgid != unix.Getpgrp() {
		target = -pid
	}
	if err := unix.Kill(target, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return []Process{root}, fmt.Errorf("kill(%d, %s): %w", target, sig, err)
	}
	return []Process{root}, nil
}
