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
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// The trampoline is this binary started again with gateEnv set. It blocks on
// the gate until the parent hooks ran, then execs the real target, so the
// target never runs before the hooks saw its pid.
// 跳板是设置了 gateEnv 的本程序再次启动。它在闸门上阻塞直到父进程钩子执行完毕，
// 然后 exec 真正的目标，因此目标在钩子看到其 pid 之前不会运行。
const (
	gateEnv   = "LAUNCHER_EXEC_GATE"
	gateValue = "1"

	// trampolineArg0 is argv[0] of the trampoline, visible in ps while it waits
	trampolineArg0 = "launcher-exec-gate"

	// Descriptors inherited through cmd.ExtraFiles
	gateFD  = 3
	errorFD = 4

	// trampolineExitCode is used when the target could not be exec'd
	trampolineExitCode = 127
)

func init() {
	if os.Getenv(gateEnv) == gateValue {
		runTrampoline()
	}
}

// runTrampoline never returns: it either execs the target or exits.
// Arguments are [trampolineArg0, path, argv...].
func runTrampoline() {
	_ = os.Unsetenv(gateEnv)
	gate := os.NewFile(gateFD, "gate")
	errPipe := os.NewFile(errorFD, "exec-error")

	// One byte releases the child, EOF means the parent gave up on it.
	var buf [1]byte
	if _, err := io.ReadFull(gate, buf[:]); err != nil {
		os.Exit(trampolineExitCode)
	}
	_ = gate.Close()

	if len(os.Args) < 3 {
		fmt.Fprintf(errPipe, "missing exec target")
		os.Exit(trampolineExitCode)
	}

	// The error pipe closes on a successful exec.
	unix.CloseOnExec(errorFD)
	err := unix.Exec(os.Args[1], os.Args[2:], os.Environ())
	fmt.Fprintf(errPipe, "exec %s: %v", os.Args[1], err)
	os.Exit(trampolineExitCode)
}
