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

// Package process provides the OS process primitives used by the launcher.
// process 包提供启动器使用的操作系统进程原语。
//
// This package provides:
// 此包提供：
// - Spawner: start a child as a new session leader / 以新会话首进程启动子进程
// - TreeKiller: signal a whole session and process group / 向整个会话和进程组发送信号
// - Reaper: wait asynchronously until a pid is reclaimed / 异步等待进程被回收
package process

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"
)

// Common errors for process primitives
// 进程原语的常见错误
var (
	// ErrSpawnFailed indicates the child process could not be created
	// ErrSpawnFailed 表示无法创建子进程
	ErrSpawnFailed = errors.New("spawn failed")

	// ErrHookFailed indicates a parent hook rejected the new child
	// ErrHookFailed 表示父进程钩子拒绝了新的子进程
	ErrHookFailed = errors.New("parent hook failed")

	// ErrProcessNotFound indicates the process was not found
	// ErrProcessNotFound 表示进程未找到
	ErrProcessNotFound = errors.New("process not found")

	// ErrReapFailed indicates a pid could not be waited on
	// ErrReapFailed 表示无法等待该进程
	ErrReapFailed = errors.New("failed to reap process")

	// ErrUnsupported indicates the primitive is not available on this platform
	// ErrUnsupported 表示该原语在当前平台不可用
	ErrUnsupported = errors.New("not supported on this platform")
)

// ioKind selects how a standard stream of the child is wired
type ioKind int

const (
	ioNull ioKind = iota
	ioInherit
	ioPath
	ioFile
)

// IO describes one standard stream of a child process. The zero value
// connects the stream to the null device.
// IO 描述子进程的一个标准流。零值表示连接到空设备。
type IO struct {
	kind ioKind
	path string
	file *os.File
}

// Null connects the stream to the null device.
func Null() IO { return IO{kind: ioNull} }

// Inherit passes the agent's own stream to the child.
// Inherit 将 Agent 自身的流传递给子进程。
func Inherit() IO { return IO{kind: ioInherit} }

// Path opens the file at path for the child. Output streams are created if
// missing and appended to.
// Path 为子进程打开 path 处的文件。输出流在不存在时创建并以追加方式写入。
func Path(path string) IO { return IO{kind: ioPath, path: path} }

// FD passes an already open file to the child. The caller keeps ownership.
// FD 将已打开的文件传递给子进程，调用方保留所有权。
func FD(f *os.File) IO { return IO{kind: ioFile, file: f} }

// ParseIO maps a textual stream description to an IO: "" or "null" is the null
// device, "inherit" passes the agent's stream, anything else is a file path.
// ParseIO 将文本流描述映射为 IO。
func ParseIO(value string) IO {
	switch strings.ToLower(value) {
	case "", "null":
		return Null()
	case "inherit":
		return Inherit()
	default:
		return Path(value)
	}
}

// String describes the stream for logs.
func (io IO) String() string {
	switch io.kind {
	case ioInherit:
		return "inherit"
	case ioPath:
		return "path:" + io.path
	case ioFile:
		if io.file == nil {
			return "fd:nil"
		}
		return fmt.Sprintf("fd:%d", io.file.Fd())
	default:
		return "null"
	}
}

// open resolves the stream to a file. The returned closer is non-nil only
// when the file was opened here and must be closed after the child started.
func (io IO) open(std *os.File, output bool) (*os.File, func() error, error) {
	switch io.kind {
	case ioInherit:
		return std, nil, nil
	case ioPath:
		flag := os.O_RDONLY
		if output {
			flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		f, err := os.OpenFile(io.path, flag, 0644)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	case ioFile:
		return io.file, nil, nil
	default:
		return nil, nil, nil
	}
}

// Hook runs in the parent with the pid of a freshly started child, while the
// child is still blocked before exec'ing its target. A failing hook makes the
// spawn fail and the child is killed without ever running the target.
// Hook 在父进程中以新启动子进程的 pid 运行，此时子进程仍阻塞在 exec 目标之前。
// 钩子失败会导致启动失败，子进程在运行目标之前即被杀死。
type Hook struct {
	// Name identifies the hook in errors and logs
	// Name 在错误和日志中标识钩子
	Name string

	// Run receives the child's pid
	// Run 接收子进程的 pid
	Run func(pid int) error
}

// SpawnOptions contains parameters for starting a child process
// SpawnOptions 包含启动子进程的参数
type SpawnOptions struct {
	// Path is the executable to run
	// Path 是要运行的可执行文件
	Path string

	// Argv is the full argument vector including argv[0]. Defaults to [Path].
	// Argv 是包含 argv[0] 的完整参数列表，默认为 [Path]
	Argv []string

	Stdin  IO
	Stdout IO
	Stderr IO

	// Flags are appended to argv as --key=value, sorted by key
	// Flags 以 --key=value 形式按键排序追加到 argv
	Flags map[string]string

	// Environment replaces the child's environment when non-nil.
	// A nil map inherits the agent's environment.
	// Environment 非 nil 时替换子进程环境；nil 时继承 Agent 环境
	Environment map[string]string

	// Setsid makes the child a new session leader and thus a group leader
	// Setsid 使子进程成为新的会话首进程，从而也是进程组首进程
	Setsid bool

	// ParentHooks run in order once the child exists and before it execs
	// ParentHooks 在子进程创建后、exec 之前按顺序运行
	ParentHooks []Hook
}

// argv returns the argument vector with flags appended
func (o *SpawnOptions) argv() []string {
	args := make([]string, 0, len(o.Argv)+len(o.Flags)+1)
	if len(o.Argv) == 0 {
		args = append(args, o.Path)
	} else {
		args = append(args, o.Argv...)
	}
	return append(args, FlagArgs(o.Flags)...)
}

// env returns the environment in KEY=VALUE form, nil to inherit
func (o *SpawnOptions) env() []string {
	if o.Environment == nil {
		return nil
	}
	keys := make([]string, 0, len(o.Environment))
	for k := range o.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+o.Environment[k])
	}
	return env
}

// FlagArgs renders flags as sorted --key=value arguments.
// FlagArgs 将标志渲染为排序后的 --key=value 参数。
func FlagArgs(flags map[string]string) []string {
	if len(flags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("--%s=%s", k, flags[k]))
	}
	return args
}

// Process is one entry of the process table
// Process 是进程表中的一项
type Process struct {
	PID     int    `json:"pid"`
	PPID    int    `json:"ppid"`
	PGID    int    `json:"pgid"`
	SID     int    `json:"sid"`
	Command string `json:"command"`
}

// ExitResult is the outcome of waiting on a pid
// ExitResult 是等待进程的结果
type ExitResult struct {
	// Status is the raw wait(2) status, nil when the process was not our
	// child or had already been reaped elsewhere.
	// Status 是原始 wait(2) 状态；当进程不是子进程或已被其他地方回收时为 nil
	Status *int

	// Err is set when the pid could not be waited on
	// Err 在无法等待该进程时设置
	Err error
}

// Describe renders the result for logs, e.g. "exited with status 0".
// Describe 将结果渲染为日志文本。
func (r ExitResult) Describe() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	if r.Status == nil {
		return "exited with unknown status"
	}
	// POSIX wait status layout: low 7 bits signal, next byte exit code.
	status := *r.Status
	sig := status & 0x7f
	switch {
	case sig == 0:
		return fmt.Sprintf("exited with status %d", (status>>8)&0xff)
	case sig != 0x7f:
		return fmt.Sprintf("terminated with signal %s", syscall.Signal(sig))
	default:
		return fmt.Sprintf("wait status %d", status)
	}
}
